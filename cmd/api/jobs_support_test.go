package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/media-scribe/internal/jobs"
)

func newStatusRouter(store jobs.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/jobs/:id", jobStatusHandler(store))
	return router
}

func TestJobStatusHandlerNotFound(t *testing.T) {
	router := newStatusRouter(jobs.NewMemoryStore(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Code != "JOB_NOT_FOUND" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestJobStatusHandlerRunningJob(t *testing.T) {
	store := jobs.NewMemoryStore(time.Hour)
	_ = store.Upsert(context.Background(), &jobs.Record{
		JobID:    "job-1",
		Status:   jobs.StatusProcessing,
		Progress: jobs.ProgressInfo{Percent: 50, Stage: "transcribing"},
	})
	router := newStatusRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID    string `json:"jobId"`
		Status   string `json:"status"`
		Progress struct {
			Percent int    `json:"percent"`
			Stage   string `json:"stage"`
		} `json:"progress"`
		Result *jobs.JobResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.JobID != "job-1" || resp.Status != "processing" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Progress.Percent != 50 || resp.Progress.Stage != "transcribing" {
		t.Errorf("progress = %+v", resp.Progress)
	}
	if resp.Result != nil {
		t.Error("running job must not expose a result")
	}
}

func TestJobStatusHandlerDoneJobIncludesResult(t *testing.T) {
	store := jobs.NewMemoryStore(time.Hour)
	ctx := context.Background()
	_ = store.Upsert(ctx, &jobs.Record{JobID: "job-1", Status: jobs.StatusQueued})
	_ = store.MarkDone(ctx, "job-1", &jobs.JobResult{
		Transcript:   "t0 t1",
		Summary:      "sum",
		SegmentCount: 2,
	})
	router := newStatusRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status string          `json:"status"`
		Result *jobs.JobResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "done" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Result == nil || resp.Result.Transcript != "t0 t1" {
		t.Errorf("result = %+v", resp.Result)
	}
}

func TestJobStatusHandlerFailedJobIncludesError(t *testing.T) {
	store := jobs.NewMemoryStore(time.Hour)
	ctx := context.Background()
	_ = store.Upsert(ctx, &jobs.Record{JobID: "job-1", Status: jobs.StatusQueued})
	_ = store.MarkFailed(ctx, "job-1", &jobs.ErrorInfo{Code: "SEGMENTATION_FAILED", Message: "ffmpeg error"})
	router := newStatusRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp struct {
		Status string          `json:"status"`
		Error  *jobs.ErrorInfo `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Error == nil || resp.Error.Code != "SEGMENTATION_FAILED" {
		t.Errorf("error = %+v", resp.Error)
	}
}
