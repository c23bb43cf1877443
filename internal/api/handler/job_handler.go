package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/writgo/content-engine/internal/api/domain"
	"github.com/writgo/content-engine/internal/api/dto"
	"github.com/writgo/content-engine/internal/api/model"
	"github.com/writgo/content-engine/internal/api/storage"
	"github.com/writgo/content-engine/internal/credit"
	"github.com/writgo/content-engine/internal/pipeline"
	"github.com/writgo/content-engine/internal/stream"
)

// RunJob handles POST /api/v1/jobs/run
// Runs the pipeline synchronously, streaming progress as line-delimited JSON
// on the open connection. Disconnecting cancels the job best-effort.
func (h *JobHandler) RunJob(c *gin.Context) {
	var req dto.RunJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	spec, err := buildJobSpec(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	job := jobRecord(spec, domain.JobStatusRunning)
	if err := h.storage.CreateJob(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.logger.Info("Streaming pipeline run started",
		slog.String("job_id", spec.JobID),
		slog.String("client_id", spec.ClientID),
		slog.String("kind", string(spec.Kind)),
	)

	stream.WriteHeaders(c.Writer.Header())
	c.Writer.WriteHeader(http.StatusOK)
	emitter := stream.NewEmitter(c.Writer)

	// The request context doubles as the job's cancellation token: a client
	// disconnect stops further stages.
	events := h.orchestrator.Run(c.Request.Context(), *spec)
	for ev := range events {
		if err := emitter.Emit(ev); err != nil {
			h.logger.Warn("Progress stream write failed, caller likely disconnected",
				slog.String("job_id", spec.JobID),
				slog.String("error", err.Error()),
			)
			// Keep draining so the terminal event still lands in the job row.
		}
		if ev.Terminal() {
			h.recordTerminal(spec.JobID, ev)
		}
	}
}

// recordTerminal persists the job outcome; storage errors are logged, not
// surfaced, since the stream already carried the terminal event.
func (h *JobHandler) recordTerminal(jobID string, ev pipeline.Event) {
	// Detached context: the request may already be gone.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := domain.JobStatusCompleted
	var resultJSON, errorCode, errorMessage string
	if ev.Type == pipeline.EventError {
		status = domain.JobStatusFailed
		if ev.Err != nil {
			errorCode = string(ev.Err.Code)
			errorMessage = ev.Err.Message
			if ev.Err.Code == pipeline.CodeCanceled {
				status = domain.JobStatusCanceled
			}
		}
	} else if ev.Result != nil {
		if data, err := json.Marshal(ev.Result); err == nil {
			resultJSON = string(data)
		}
	}

	if err := h.storage.MarkJobTerminal(ctx, jobID, status, resultJSON, errorCode, errorMessage); err != nil {
		h.logger.Error("Failed to persist job outcome",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// ExecutePlan handles POST /api/v1/plans/execute
// Creates one queued job per topic and hands them to the worker service via
// RabbitMQ. Used for content-plan bulk generation.
func (h *JobHandler) ExecutePlan(c *gin.Context) {
	var req dto.ExecutePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	kind := pipeline.JobKind(req.Kind)
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "kind must be one of generate, rewrite, review",
		})
		return
	}

	// All rows are created before anything is enqueued, so a mid-plan failure
	// leaves only PENDING rows behind and the response always names the jobs
	// that exist.
	jobIDs := make([]string, 0, len(req.Topics))
	for _, topic := range req.Topics {
		spec := &pipeline.JobSpec{
			JobID:     uuid.New().String(),
			ClientID:  req.ClientID,
			ProjectID: req.ProjectID,
			Kind:      kind,
			Topic:     topic,
			Options: pipeline.Options{
				Language:        req.Language,
				TargetWordCount: req.TargetWordCount,
				IncludeFAQ:      req.IncludeFAQ,
				IncludeYouTube:  req.IncludeYouTube,
				Tone:            req.Tone,
			},
		}

		job := jobRecord(spec, domain.JobStatusPending)
		if err := h.storage.CreateJob(c.Request.Context(), job); err != nil {
			h.logger.Error("Failed to create queued job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to create job",
				"job_ids": jobIDs,
			})
			return
		}
		jobIDs = append(jobIDs, spec.JobID)
	}

	for _, jobID := range jobIDs {
		msg, _ := json.Marshal(map[string]string{"job_id": jobID})
		if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), msg, "application/json"); err != nil {
			h.logger.Error("Failed to enqueue job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			// Unpublished jobs stay PENDING and can be re-enqueued.
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to enqueue job",
				"job_ids": jobIDs,
			})
			return
		}
	}

	h.logger.Info("Content plan enqueued",
		slog.String("project_id", req.ProjectID),
		slog.Int("jobs", len(jobIDs)),
	)
	c.JSON(http.StatusAccepted, dto.ExecutePlanResponse{JobIDs: jobIDs})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, jobToDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		Kind:      req.Kind,
		Status:    req.Status,
		PageSize:  req.PageSize,
		Cursor:    cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = jobToDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor, err = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// buildJobSpec validates the request and resolves the job's fixed cost.
func buildJobSpec(req *dto.RunJobRequest) (*pipeline.JobSpec, error) {
	kind := pipeline.JobKind(req.Kind)
	if !kind.Valid() {
		return nil, errors.New("kind must be one of generate, rewrite, review")
	}
	if kind == pipeline.JobKindRewrite && req.PostID <= 0 {
		return nil, errors.New("rewrite jobs require post_id")
	}
	if kind != pipeline.JobKindRewrite && req.Topic == "" {
		return nil, errors.New("topic is required")
	}

	cost, err := credit.CostFor(req.Kind, req.ExtraImages)
	if err != nil {
		return nil, err
	}

	return &pipeline.JobSpec{
		JobID:        uuid.New().String(),
		ClientID:     req.ClientID,
		ProjectID:    req.ProjectID,
		Kind:         kind,
		Topic:        req.Topic,
		PostID:       req.PostID,
		Improvements: req.Improvements,
		Options: pipeline.Options{
			Language:        req.Language,
			TargetWordCount: req.TargetWordCount,
			IncludeFAQ:      req.IncludeFAQ,
			IncludeYouTube:  req.IncludeYouTube,
			Tone:            req.Tone,
			ExtraImages:     req.ExtraImages,
		},
		Cost: cost,
	}, nil
}

func jobRecord(spec *pipeline.JobSpec, status string) *model.Job {
	options, _ := json.Marshal(spec.Options)
	now := time.Now()
	return &model.Job{
		JobID:     spec.JobID,
		ClientID:  spec.ClientID,
		ProjectID: spec.ProjectID,
		Kind:      string(spec.Kind),
		Topic:     spec.Topic,
		PostID:    spec.PostID,
		Options:   string(options),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func jobToDTO(job *model.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:        job.JobID,
		ClientID:     job.ClientID,
		ProjectID:    job.ProjectID,
		Kind:         job.Kind,
		Topic:        job.Topic,
		Status:       job.Status,
		Result:       job.Result.String,
		ErrorCode:    job.ErrorCode.String,
		ErrorMessage: job.ErrorMessage.String,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
}
