package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/writgo/content-engine/internal/api/dto"
	"github.com/writgo/content-engine/internal/credit"
)

// GetBalance handles GET /api/v1/credits/:client_id
func (h *CreditHandler) GetBalance(c *gin.Context) {
	clientID := c.Param("client_id")

	account, err := h.ledger.GetAccount(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, credit.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Credit account not found",
			})
			return
		}
		h.logger.Error("Failed to get credit account", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get credit account",
		})
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		ClientID:            account.ClientID,
		SubscriptionCredits: account.SubscriptionCredits,
		TopUpCredits:        account.TopUpCredits,
		Available:           account.SubscriptionCredits + account.TopUpCredits,
		IsUnlimited:         account.IsUnlimited,
		TotalCreditsUsed:    account.TotalCreditsUsed,
	})
}

// TopUp handles POST /api/v1/credits/:client_id/topup
func (h *CreditHandler) TopUp(c *gin.Context) {
	clientID := c.Param("client_id")

	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	description := req.Description
	if description == "" {
		description = "credit top-up"
	}

	balance, err := h.ledger.Grant(c.Request.Context(), clientID, req.Amount, description)
	if err != nil {
		if errors.Is(err, credit.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Credit account not found",
			})
			return
		}
		h.logger.Error("Failed to grant credits", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to grant credits",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_id": clientID,
		"available": balance,
	})
}

// ListTransactions handles GET /api/v1/credits/:client_id/transactions
func (h *CreditHandler) ListTransactions(c *gin.Context) {
	clientID := c.Param("client_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	txs, err := h.ledger.ListTransactions(c.Request.Context(), clientID, limit)
	if err != nil {
		h.logger.Error("Failed to list transactions", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list transactions",
		})
		return
	}

	response := make([]dto.TransactionDTO, len(txs))
	for i, tx := range txs {
		response[i] = dto.TransactionDTO{
			TransactionID: tx.TransactionID,
			Amount:        tx.Amount,
			Description:   tx.Description,
			BalanceAfter:  tx.BalanceAfter,
			CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": response,
	})
}
