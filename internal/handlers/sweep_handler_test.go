package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/meetsweeper/internal/services"
)

type stubRunner struct {
	summary services.SweepSummary
	err     error
}

func (s *stubRunner) RunNow(ctx context.Context) (services.SweepSummary, error) {
	return s.summary, s.err
}

func newRouter(runner SweepRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/cron/meeting-lifecycle", RunSweep(runner))
	r.GET("/cron/meeting-lifecycle", RunSweep(runner))
	return r
}

func sampleSummary() services.SweepSummary {
	return services.SweepSummary{
		Success:   true,
		Timestamp: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		NoShowCheck: services.NoShowReport{
			Checked:   2,
			Cancelled: 1,
			Results:   []services.SessionOutcome{{Status: services.OutcomeSucceeded}, {Status: services.OutcomeSkipped}},
		},
		CompletionCheck: services.CompletionReport{Checked: 0, Completed: 0},
	}
}

func TestRunSweepReturnsSummary(t *testing.T) {
	r := newRouter(&stubRunner{summary: sampleSummary()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron/meeting-lifecycle", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	noShow, ok := body["noShowCheck"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing noShowCheck in %s", w.Body.String())
	}
	if noShow["checked"] != float64(2) || noShow["cancelled"] != float64(1) {
		t.Errorf("unexpected noShowCheck %v", noShow)
	}
	if _, ok := noShow["results"]; ok {
		t.Error("results must be omitted without verbose")
	}
	if _, ok := body["completionCheck"]; !ok {
		t.Error("missing completionCheck")
	}
}

func TestRunSweepVerboseIncludesResults(t *testing.T) {
	r := newRouter(&stubRunner{summary: sampleSummary()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cron/meeting-lifecycle?verbose=true", nil))

	var body struct {
		NoShowCheck struct {
			Results []services.SessionOutcome `json:"results"`
		} `json:"noShowCheck"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.NoShowCheck.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(body.NoShowCheck.Results))
	}
}

func TestRunSweepConflict(t *testing.T) {
	r := newRouter(&stubRunner{err: services.ErrSweepInProgress})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron/meeting-lifecycle", nil))

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestRunSweepUnexpectedFailure(t *testing.T) {
	r := newRouter(&stubRunner{err: errors.New("context canceled")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron/meeting-lifecycle", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["success"] != false || body["error"] != "context canceled" {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health("meetsweeper"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
