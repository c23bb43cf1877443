package handler

import (
	"context"
	"log/slog"

	"github.com/writgo/content-engine/internal/api/model"
	"github.com/writgo/content-engine/internal/api/storage"
	"github.com/writgo/content-engine/internal/credit"
	"github.com/writgo/content-engine/internal/pipeline"
	"github.com/writgo/content-engine/shared/rabbitmq"
)

// JobStore is the slice of the storage layer the job handlers use.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	MarkJobTerminal(ctx context.Context, jobID, status, resultJSON, errorCode, errorMessage string) error
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
}

// QueuePublisher hands queued job messages to the worker service.
type QueuePublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Storage      *storage.Storage
	Ledger       *credit.Ledger
	Orchestrator *pipeline.Orchestrator
	RabbitClient *rabbitmq.Client
}

// JobHandler handles pipeline job HTTP requests
type JobHandler struct {
	logger       *slog.Logger
	storage      JobStore
	ledger       *credit.Ledger
	orchestrator *pipeline.Orchestrator
	rabbitClient QueuePublisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		storage:      deps.Storage,
		ledger:       deps.Ledger,
		orchestrator: deps.Orchestrator,
		rabbitClient: deps.RabbitClient,
	}
}

// CreditHandler handles credit account HTTP requests
type CreditHandler struct {
	logger *slog.Logger
	ledger *credit.Ledger
}

// NewCreditHandler creates a new CreditHandler instance
func NewCreditHandler(deps *Dependencies) *CreditHandler {
	return &CreditHandler{
		logger: deps.Logger,
		ledger: deps.Ledger,
	}
}
