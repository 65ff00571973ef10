package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, reg *prometheus.Registry, accept string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, string(body)
}

func TestHandler_ServesRecordedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordEventDropped("user-events", "timeout")
	c.RecordEventConsumed("course-events", "course.created")
	c.RecordLogin(LoginFailure)
	c.RecordHTTPStatus(http.StatusTooManyRequests)

	resp, body := scrape(t, reg, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	for _, line := range []string{
		`coursecrm_events_dropped_total{reason="timeout",topic="user-events"} 1`,
		`coursecrm_events_consumed_total{event_type="course.created",topic="course-events"} 1`,
		`coursecrm_logins_total{result="failure"} 1`,
		`coursecrm_http_responses_total{status_code="429"} 1`,
	} {
		if !strings.Contains(body, line) {
			t.Errorf("response should contain %q, got:\n%s", line, body)
		}
	}
}

func TestHandler_NegotiatesOpenMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordLogin(LoginSuccess)

	resp, body := scrape(t, reg, "application/openmetrics-text; version=1.0.0")

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/openmetrics-text") {
		t.Errorf("Content-Type = %q, want application/openmetrics-text", ct)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "# EOF") {
		t.Errorf("OpenMetrics body should end with # EOF, got:\n%s", body)
	}
}
