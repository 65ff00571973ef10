package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/coursecrm/internal/metrics"
	"github.com/hitoshi/coursecrm/internal/model"
)

func TestRecoveryMiddleware_PanicReturns500(t *testing.T) {
	var buf bytes.Buffer
	spy := &statusSpy{}
	handler := NewRecoveryMiddleware(newJSONLogger(&buf), spy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/courses", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if len(spy.statuses) != 1 || spy.statuses[0] != http.StatusInternalServerError {
		t.Errorf("recorded statuses = %v, want [500]", spy.statuses)
	}

	entry := parseLogEntry(t, &buf)
	if entry["msg"] != "panic recovered" {
		t.Errorf("msg = %v, want %q", entry["msg"], "panic recovered")
	}
	if entry["panic"] != "boom" {
		t.Errorf("panic = %v, want %q", entry["panic"], "boom")
	}
	if entry["path"] != "/courses" {
		t.Errorf("path = %v, want %q", entry["path"], "/courses")
	}
}

func TestRecoveryMiddleware_NoPanic_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	spy := &statusSpy{}
	handler := NewRecoveryMiddleware(newJSONLogger(&buf), spy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
	if len(spy.statuses) != 0 {
		t.Errorf("recorded statuses = %v, want none", spy.statuses)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}

func TestRecoveryMiddleware_ErrAbortHandler_Repanics(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRecoveryMiddleware(newJSONLogger(&buf), metrics.Nop{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered = %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
}
