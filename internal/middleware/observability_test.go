package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"wabridge/internal/metrics"
	"wabridge/internal/tracing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestObservabilityAddsRequestContext(t *testing.T) {
	metrics.Default().Reset()

	var seenRequestID string
	handler := Observability(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRequestID = tracing.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, seenRequestID)
}

func TestObservabilityRecordsMetrics(t *testing.T) {
	metrics.Default().Reset()

	handler := Observability(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/webhook/waha", nil))

	snap := metrics.Default().Snapshot()
	require.NotEmpty(t, snap.Counters)

	found := false
	for _, c := range snap.Counters {
		if c.Name == "http_requests_total" && c.Labels["status_code"] == "500" {
			found = true
			assert.Equal(t, "/webhook/waha", c.Labels["endpoint"])
		}
	}
	assert.True(t, found)
}

func TestObservabilityCapturesResponseSize(t *testing.T) {
	metrics.Default().Reset()

	handler := Observability(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, "hello", rec.Body.String())
}

func TestWebhookObservabilityCountsOutcomes(t *testing.T) {
	metrics.Default().Reset()

	ok := WebhookObservability(quietLogger(), "waha")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	bad := WebhookObservability(quietLogger(), "waha")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/webhook/waha", nil))
	bad.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/webhook/waha", nil))

	snap := metrics.Default().Snapshot()
	var successes, errors float64
	for _, c := range snap.Counters {
		switch c.Name {
		case "webhook_success_total":
			successes += c.Value
		case "webhook_errors_total":
			errors += c.Value
		}
	}
	assert.Equal(t, 1.0, successes)
	assert.Equal(t, 1.0, errors)
}
