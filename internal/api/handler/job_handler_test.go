package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writgo/content-engine/internal/api/domain"
	"github.com/writgo/content-engine/internal/api/dto"
	"github.com/writgo/content-engine/internal/api/model"
	"github.com/writgo/content-engine/internal/api/storage"
)

type fakeJobStore struct {
	created      []*model.Job
	failCreateAt int // 1-based index of the CreateJob call that fails, 0 never
}

func (f *fakeJobStore) CreateJob(_ context.Context, job *model.Job) error {
	if f.failCreateAt > 0 && len(f.created)+1 == f.failCreateAt {
		return errors.New("insert failed")
	}
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobStore) GetJobByID(context.Context, string) (*model.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (f *fakeJobStore) MarkJobTerminal(context.Context, string, string, string, string, string) error {
	return nil
}

func (f *fakeJobStore) ListJobs(context.Context, storage.JobFilter) ([]model.Job, error) {
	return nil, nil
}

type fakeQueue struct {
	published [][]byte
	failAt    int // 1-based index of the publish call that fails, 0 never
}

func (f *fakeQueue) PublishWithRetry(_ context.Context, body []byte, _ string) error {
	if f.failAt > 0 && len(f.published)+1 == f.failAt {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, body)
	return nil
}

func newPlanHandler(store *fakeJobStore, queue *fakeQueue) *JobHandler {
	return &JobHandler{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		storage:      store,
		rabbitClient: queue,
	}
}

func executePlan(t *testing.T, h *JobHandler, req dto.ExecutePlanRequest) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/plans/execute", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.ExecutePlan(c)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func planRequest(topics ...string) dto.ExecutePlanRequest {
	return dto.ExecutePlanRequest{
		ClientID:  "client-1",
		ProjectID: "project-1",
		Kind:      "generate",
		Topics:    topics,
	}
}

func TestExecutePlan_EnqueuesAllTopics(t *testing.T) {
	store := &fakeJobStore{}
	queue := &fakeQueue{}
	h := newPlanHandler(store, queue)

	rec, resp := executePlan(t, h, planRequest("ponds", "pumps", "liners"))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, resp["job_ids"], 3)
	require.Len(t, store.created, 3)
	require.Len(t, queue.published, 3)

	for i, job := range store.created {
		assert.Equal(t, domain.JobStatusPending, job.Status)

		var msg map[string]string
		require.NoError(t, json.Unmarshal(queue.published[i], &msg))
		assert.Equal(t, job.JobID, msg["job_id"])
	}
}

func TestExecutePlan_PublishFailureReportsCreatedJobs(t *testing.T) {
	store := &fakeJobStore{}
	queue := &fakeQueue{failAt: 2}
	h := newPlanHandler(store, queue)

	rec, resp := executePlan(t, h, planRequest("ponds", "pumps", "liners"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Every row was created before publishing started, so all three ids come
	// back even though only the first message made it to the broker.
	assert.Len(t, resp["job_ids"], 3)
	assert.Len(t, store.created, 3)
	assert.Len(t, queue.published, 1)
}

func TestExecutePlan_CreateFailureReportsPartialJobs(t *testing.T) {
	store := &fakeJobStore{failCreateAt: 3}
	queue := &fakeQueue{}
	h := newPlanHandler(store, queue)

	rec, resp := executePlan(t, h, planRequest("ponds", "pumps", "liners"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, resp["job_ids"], 2)
	// Nothing reaches the broker until every row exists.
	assert.Empty(t, queue.published)
}

func TestExecutePlan_InvalidKind(t *testing.T) {
	h := newPlanHandler(&fakeJobStore{}, &fakeQueue{})

	rec, _ := executePlan(t, h, dto.ExecutePlanRequest{
		ClientID:  "client-1",
		ProjectID: "project-1",
		Kind:      "translate",
		Topics:    []string{"ponds"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
