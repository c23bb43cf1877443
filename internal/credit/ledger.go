// Package credit implements the prepaid credit ledger: a two-tier balance
// (subscription pool drained before the top-up pool), an unlimited override,
// and an append-only transaction log that never diverges from the balance.
package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrInsufficientCredits is returned when a debit would drive the combined
// balance negative, including when the balance changed between check and
// debit.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrAccountNotFound is returned for unknown client ids.
var ErrAccountNotFound = errors.New("credit account not found")

// Account mirrors one credit_accounts row.
type Account struct {
	ClientID              string    `db:"client_id"`
	SubscriptionCredits   float64   `db:"subscription_credits"`
	TopUpCredits          float64   `db:"topup_credits"`
	IsUnlimited           bool      `db:"is_unlimited"`
	TotalCreditsUsed      float64   `db:"total_credits_used"`
	TotalCreditsPurchased float64   `db:"total_credits_purchased"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// Transaction is one immutable ledger entry. Amount is signed: negative for
// debits, positive for grants, zero for unlimited-account audit entries.
type Transaction struct {
	TransactionID string    `db:"transaction_id"`
	ClientID      string    `db:"client_id"`
	Amount        float64   `db:"amount"`
	Description   string    `db:"description"`
	BalanceAfter  float64   `db:"balance_after"`
	CreatedAt     time.Time `db:"created_at"`
}

// Ledger mediates every credit account mutation.
type Ledger struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewLedger wires the database handle.
func NewLedger(db *sqlx.DB, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// GetAccount loads a client's account.
func (l *Ledger) GetAccount(ctx context.Context, clientID string) (*Account, error) {
	var account Account
	err := l.db.GetContext(ctx, &account, `
		SELECT client_id, subscription_credits, topup_credits, is_unlimited,
		       total_credits_used, total_credits_purchased, updated_at
		FROM credit_accounts
		WHERE client_id = $1
	`, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get credit account: %w", err)
	}
	return &account, nil
}

// Check reports the available balance. It is a precondition check only; the
// authoritative sufficiency test happens inside Debit.
func (l *Ledger) Check(ctx context.Context, clientID string, cost float64) (float64, bool, error) {
	account, err := l.GetAccount(ctx, clientID)
	if err != nil {
		return 0, false, err
	}
	return account.SubscriptionCredits + account.TopUpCredits, account.IsUnlimited, nil
}

// Debit atomically charges cost against the live balance, draining the
// subscription pool first, and writes the transaction row in the same
// database transaction. The account row is locked for the duration, so a
// balance that changed since Check surfaces as ErrInsufficientCredits.
// Unlimited accounts skip the balance mutation but still log a zero-amount
// transaction for audit continuity.
func (l *Ledger) Debit(ctx context.Context, clientID string, cost float64, description string) (remaining float64, unlimited bool, err error) {
	if cost < 0 {
		return 0, false, fmt.Errorf("negative debit amount %.2f", cost)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin debit tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Row lock closes the check/debit race: the balance read here cannot
	// change before the update commits.
	var account Account
	err = tx.GetContext(ctx, &account, `
		SELECT client_id, subscription_credits, topup_credits, is_unlimited,
		       total_credits_used, total_credits_purchased, updated_at
		FROM credit_accounts
		WHERE client_id = $1
		FOR UPDATE
	`, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAccountNotFound
		return 0, false, err
	}
	if err != nil {
		err = fmt.Errorf("lock credit account: %w", err)
		return 0, false, err
	}

	if account.IsUnlimited {
		balance := account.SubscriptionCredits + account.TopUpCredits
		if err = l.logTransaction(ctx, tx, clientID, 0, description, balance); err != nil {
			return 0, false, err
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit debit tx: %w", err)
			return 0, false, err
		}
		l.logger.Info("Unlimited account job logged",
			slog.String("client_id", clientID),
			slog.String("description", description),
		)
		return balance, true, nil
	}

	subAfter, topUpAfter, ok := SplitDebit(account.SubscriptionCredits, account.TopUpCredits, cost)
	if !ok {
		err = fmt.Errorf("%w: required %.1f, available %.1f",
			ErrInsufficientCredits, cost, account.SubscriptionCredits+account.TopUpCredits)
		return 0, false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE credit_accounts
		SET subscription_credits = $2,
		    topup_credits = $3,
		    total_credits_used = total_credits_used + $4,
		    updated_at = NOW()
		WHERE client_id = $1
	`, clientID, subAfter, topUpAfter, cost)
	if err != nil {
		err = fmt.Errorf("debit account: %w", err)
		return 0, false, err
	}

	balance := subAfter + topUpAfter
	if err = l.logTransaction(ctx, tx, clientID, -cost, description, balance); err != nil {
		return 0, false, err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit debit tx: %w", err)
		return 0, false, err
	}

	l.logger.Info("Credits debited",
		slog.String("client_id", clientID),
		slog.Float64("amount", cost),
		slog.Float64("balance_after", balance),
	)
	return balance, false, nil
}

// Grant adds top-up credits and logs the matching transaction.
func (l *Ledger) Grant(ctx context.Context, clientID string, amount float64, description string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %.2f", amount)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin grant tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var after struct {
		Subscription float64 `db:"subscription_credits"`
		TopUp        float64 `db:"topup_credits"`
	}
	err = tx.GetContext(ctx, &after, `
		UPDATE credit_accounts
		SET topup_credits = topup_credits + $2,
		    total_credits_purchased = total_credits_purchased + $2,
		    updated_at = NOW()
		WHERE client_id = $1
		RETURNING subscription_credits, topup_credits
	`, clientID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAccountNotFound
		return 0, err
	}
	if err != nil {
		err = fmt.Errorf("grant credits: %w", err)
		return 0, err
	}

	balance := after.Subscription + after.TopUp
	if err = l.logTransaction(ctx, tx, clientID, amount, description, balance); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit grant tx: %w", err)
		return 0, err
	}

	l.logger.Info("Credits granted",
		slog.String("client_id", clientID),
		slog.Float64("amount", amount),
		slog.Float64("balance_after", balance),
	)
	return balance, nil
}

// ListTransactions returns the newest entries of a client's ledger.
func (l *Ledger) ListTransactions(ctx context.Context, clientID string, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var txs []Transaction
	err := l.db.SelectContext(ctx, &txs, `
		SELECT transaction_id, client_id, amount, description, balance_after, created_at
		FROM credit_transactions
		WHERE client_id = $1
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (l *Ledger) logTransaction(ctx context.Context, tx *sqlx.Tx, clientID string, amount float64, description string, balanceAfter float64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (transaction_id, client_id, amount, description, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New().String(), clientID, amount, description, balanceAfter)
	if err != nil {
		return fmt.Errorf("log transaction: %w", err)
	}
	return nil
}

// SplitDebit computes the two-pool drain for a debit: subscription credits
// first, remainder from the top-up pool. ok is false when the combined
// balance cannot cover the cost.
func SplitDebit(subscription, topUp, cost float64) (subAfter, topUpAfter float64, ok bool) {
	if cost > subscription+topUp {
		return subscription, topUp, false
	}
	fromSub := cost
	if fromSub > subscription {
		fromSub = subscription
	}
	return subscription - fromSub, topUp - (cost - fromSub), true
}
