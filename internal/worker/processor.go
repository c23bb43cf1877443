package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/writgo/content-engine/internal/credit"
	"github.com/writgo/content-engine/internal/pipeline"
	"github.com/writgo/content-engine/internal/worker/domain"
)

// processJob claims a queued job and runs the full pipeline for it, draining
// progress events to the log and recording the terminal outcome on the job row.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	w.logger.Info("Processing job",
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", w.workerID),
	)

	job, err := w.storage.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}

	spec, err := buildSpec(job)
	if err != nil {
		w.logger.Error("Failed to build job spec",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
		_ = w.storage.UpdateJobOutcome(ctx, job.JobID, domain.JobStatusFailed, "",
			string(pipeline.CodeInternal), err.Error())
		return fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	var terminal pipeline.Event
	for ev := range w.orchestrator.Run(jobCtx, *spec) {
		switch ev.Type {
		case pipeline.EventProgress:
			w.logger.Info("Pipeline progress",
				slog.String("job_id", job.JobID),
				slog.String("message", ev.Message),
				slog.Int("percent", ev.Percent),
			)
		default:
			terminal = ev
		}
	}

	timedOut := errors.Is(jobCtx.Err(), context.DeadlineExceeded)
	return w.recordOutcome(ctx, job.JobID, terminal, timedOut)
}

// outcomeStatus maps a terminal event to the stored job status. A timed-out
// run surfaces inside the pipeline as a cancellation, so the timedOut flag
// keeps it recorded as FAILED; CANCELED is reserved for shutdown mid-run.
func outcomeStatus(ev pipeline.Event, timedOut bool) string {
	if ev.Type == pipeline.EventSuccess {
		return domain.JobStatusCompleted
	}
	if ev.Err != nil && ev.Err.Code == pipeline.CodeCanceled && !timedOut {
		return domain.JobStatusCanceled
	}
	return domain.JobStatusFailed
}

// recordOutcome persists the terminal event on the job row. A failed run is
// returned as an error so the queue message is NACKed without requeue.
func (w *Worker) recordOutcome(ctx context.Context, jobID string, ev pipeline.Event, timedOut bool) error {
	status := outcomeStatus(ev, timedOut)
	if status == domain.JobStatusCompleted {
		var resultJSON string
		if ev.Result != nil {
			if data, err := json.Marshal(ev.Result); err == nil {
				resultJSON = string(data)
			}
		}
		if err := w.storage.UpdateJobOutcome(ctx, jobID, domain.JobStatusCompleted, resultJSON, "", ""); err != nil {
			w.logger.Error("Failed to record job success",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			// Pipeline succeeded; still ACK the message.
		}
		return nil
	}

	errorCode := string(pipeline.CodeInternal)
	errorMessage := "pipeline ended without a terminal event"
	if ev.Err != nil {
		errorCode = string(ev.Err.Code)
		errorMessage = ev.Err.Message
	}
	if timedOut {
		errorMessage = fmt.Sprintf("job exceeded the %s timeout", w.jobTimeout)
	}

	if err := w.storage.UpdateJobOutcome(ctx, jobID, status, "", errorCode, errorMessage); err != nil {
		w.logger.Error("Failed to record job failure",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	return fmt.Errorf("pipeline run failed: %s: %s", errorCode, errorMessage)
}

// buildSpec turns a claimed job row back into a runnable pipeline spec.
func buildSpec(job *domain.ClaimedJob) (*pipeline.JobSpec, error) {
	kind := pipeline.JobKind(job.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}

	var opts pipeline.Options
	if job.Options != "" {
		if err := json.Unmarshal([]byte(job.Options), &opts); err != nil {
			return nil, fmt.Errorf("parse job options: %w", err)
		}
	}

	cost, err := credit.CostFor(job.Kind, opts.ExtraImages)
	if err != nil {
		return nil, err
	}

	return &pipeline.JobSpec{
		JobID:     job.JobID,
		ClientID:  job.ClientID,
		ProjectID: job.ProjectID,
		Kind:      kind,
		Topic:     job.Topic,
		PostID:    job.PostID,
		Options:   opts,
		Cost:      cost,
	}, nil
}
