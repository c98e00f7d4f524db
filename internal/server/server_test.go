package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"day2do/internal/models"
	"day2do/internal/planner"
	"day2do/internal/storage/sqlite"
)

type taskResponse struct {
	Task models.Task `json:"task"`
}

type stateResponse struct {
	Tasks    []models.Task         `json:"tasks"`
	Thoughts string                `json:"thoughts"`
	Stats    models.Stats          `json:"stats"`
	Insights models.Insights       `json:"insights"`
	Persist  planner.PersistStatus `json:"persist"`
}

func newTestServer(t *testing.T) (*Server, *planner.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs, err := sqlite.Open(filepath.Join(t.TempDir(), "day2do.db"), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store := planner.New(blobs, logger, planner.Options{Backoff: time.Millisecond})
	store.Load(context.Background())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = store.Close(ctx)
		_ = blobs.Close()
	})
	return New(store, logger), store
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func createTask(t *testing.T, srv *Server, body map[string]any) models.Task {
	t.Helper()
	w := doRequest(t, srv, http.MethodPost, "/api/tasks", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	return decode[taskResponse](t, w).Task
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestCreateToggleAndState(t *testing.T) {
	srv, _ := newTestServer(t)

	task := createTask(t, srv, map[string]any{"title": "Write report", "estimatedTime": "60", "priority": "High"})
	if task.EstimatedTime != 60 || task.Completed || task.ActualTime != 0 || task.Priority != models.PriorityHigh {
		t.Fatalf("unexpected task %+v", task)
	}

	w := doRequest(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/toggle", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", w.Code, w.Body.String())
	}
	if !decode[taskResponse](t, w).Task.Completed {
		t.Fatal("expected completed task after toggle")
	}

	w = doRequest(t, srv, http.MethodGet, "/api/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("state status = %d", w.Code)
	}
	state := decode[stateResponse](t, w)
	if len(state.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(state.Tasks))
	}
	if state.Stats.TotalTasks != 1 || state.Stats.CompletedTasks != 1 {
		t.Errorf("unexpected stats %+v", state.Stats)
	}
	if state.Insights.CompletionRate != 100 {
		t.Errorf("CompletionRate = %v, want 100", state.Insights.CompletionRate)
	}
}

func TestCreateAcceptsNumericEstimate(t *testing.T) {
	srv, _ := newTestServer(t)

	task := createTask(t, srv, map[string]any{"title": "Run", "estimatedTime": 25})
	if task.EstimatedTime != 25 {
		t.Errorf("EstimatedTime = %d, want 25", task.EstimatedTime)
	}
	if task.Priority != models.PriorityMedium || task.Category != models.DefaultCategory {
		t.Errorf("defaults not applied: %+v", task)
	}
}

func TestCreateRejectsBlankTitle(t *testing.T) {
	srv, store := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/tasks", map[string]any{"title": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(store.Tasks()) != 0 {
		t.Error("blank task was stored")
	}
}

func TestUpdateTask(t *testing.T) {
	srv, _ := newTestServer(t)
	task := createTask(t, srv, map[string]any{"title": "Draft", "estimatedTime": "30"})

	w := doRequest(t, srv, http.MethodPut, "/api/tasks/"+task.ID, map[string]any{"title": "Final", "estimatedTime": "45", "priority": "Low", "category": "Work"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	updated := decode[taskResponse](t, w).Task
	if updated.ID != task.ID || updated.Title != "Final" || updated.EstimatedTime != 45 || updated.Category != "Work" {
		t.Errorf("unexpected update result %+v", updated)
	}

	w = doRequest(t, srv, http.MethodPut, "/api/tasks/missing", map[string]any{"title": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", w.Code)
	}
}

func TestGetTask(t *testing.T) {
	srv, _ := newTestServer(t)
	task := createTask(t, srv, map[string]any{"title": "Read"})

	w := doRequest(t, srv, http.MethodGet, "/api/tasks/"+task.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[taskResponse](t, w).Task; got.Title != "Read" {
		t.Errorf("unexpected task %+v", got)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/tasks/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if got := decode[map[string]string](t, w)["error"]; got != planner.ErrTaskNotFound.Error() {
		t.Errorf("error = %q, want %q", got, planner.ErrTaskNotFound.Error())
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	srv, store := newTestServer(t)
	task := createTask(t, srv, map[string]any{"title": "Call mom"})

	w := doRequest(t, srv, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	if w.Code != http.StatusPreconditionRequired {
		t.Fatalf("status = %d, want 428", w.Code)
	}
	if len(store.Tasks()) != 1 {
		t.Fatal("unconfirmed delete removed the task")
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/tasks/"+task.ID+"?confirm=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(store.Tasks()) != 0 {
		t.Fatal("confirmed delete kept the task")
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/tasks/"+task.ID+"?confirm=true", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestThoughts(t *testing.T) {
	srv, store := newTestServer(t)

	w := doRequest(t, srv, http.MethodPut, "/api/thoughts", map[string]any{"thoughts": "Ship the release"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if store.Thoughts() != "Ship the release" {
		t.Errorf("Thoughts = %q", store.Thoughts())
	}

	w = doRequest(t, srv, http.MethodGet, "/api/thoughts", nil)
	if !strings.Contains(w.Body.String(), "Ship the release") {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	w = doRequest(t, srv, http.MethodPut, "/api/thoughts", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field status = %d, want 400", w.Code)
	}
}

func TestInsightsTimeAccuracy(t *testing.T) {
	srv, _ := newTestServer(t)
	createTask(t, srv, map[string]any{"title": "a", "estimatedTime": "30"})
	createTask(t, srv, map[string]any{"title": "b", "estimatedTime": "20"})

	w := doRequest(t, srv, http.MethodGet, "/api/insights", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[stateResponse](t, w)
	if body.Stats.TotalEstimatedTime != 50 {
		t.Errorf("TotalEstimatedTime = %d, want 50", body.Stats.TotalEstimatedTime)
	}
	// No actual time is tracked yet, so the estimate is entirely off.
	if body.Insights.TimeAccuracy != 0 {
		t.Errorf("TimeAccuracy = %v, want 0", body.Insights.TimeAccuracy)
	}
	if body.Insights.Advice == "" {
		t.Error("expected advice")
	}
}

func TestOversizedEstimatesKeepTotalsNonNegative(t *testing.T) {
	srv, _ := newTestServer(t)
	for i := 0; i < 2; i++ {
		task := createTask(t, srv, map[string]any{"title": "forever", "estimatedTime": "9223372036854775807"})
		if task.EstimatedTime < 0 || task.EstimatedTime > models.MaxMinutes {
			t.Fatalf("EstimatedTime = %d out of range", task.EstimatedTime)
		}
	}

	body := decode[stateResponse](t, doRequest(t, srv, http.MethodGet, "/api/insights", nil))
	if body.Stats.TotalEstimatedTime < 0 || body.Stats.TotalActualTime < 0 {
		t.Errorf("negative totals: %+v", body.Stats)
	}
}

func TestStatePersistsThroughFlush(t *testing.T) {
	srv, store := newTestServer(t)
	createTask(t, srv, map[string]any{"title": "persist me"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	state := decode[stateResponse](t, doRequest(t, srv, http.MethodGet, "/api/state", nil))
	if state.Persist.Unsaved {
		t.Errorf("expected saved state, got %+v", state.Persist)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	createTask(t, srv, map[string]any{"title": "count me"})

	w := doRequest(t, srv, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"day2do_tasks 1", "day2do_http_requests_total", "day2do_unsaved_changes", "day2do_persist_failures_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := doRequest(t, srv, http.MethodGet, "/api/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
