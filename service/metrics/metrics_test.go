package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHelpers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRPCCall("getTransaction", "success", 0.2)
	m.RecordRPCCall("getTransaction", "not_found", 0.1)
	m.RecordRPCCall("getTransaction", "success", 0.3)
	m.RecordLLMCall("gemini", "quota", 0.5)
	m.RecordFallback("success")
	m.RecordExplanation("ok")
	m.RecordExplanation("quota")
	m.RecordSummary(true, 3)
	m.RecordNATSPublish("txplain.explained.sol-transfer", "success", 0.001)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.solanaRPCCallsTotal.WithLabelValues("getTransaction", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.solanaRPCCallsTotal.WithLabelValues("getTransaction", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCallsTotal.WithLabelValues("gemini", "quota")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacksTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.explanationsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.explanationsTotal.WithLabelValues("quota")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.summariesTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.natsMessagesPublished.WithLabelValues("txplain.explained.sol-transfer", "success")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRPCCall("getTransaction", "error", 1)
		m.RecordLLMCall("openrouter", "success", 1)
		m.RecordFallback("failed")
		m.RecordExplanation("provider")
		m.RecordSummary(false, 0)
		m.RecordHTTPRequest("/explain", http.MethodPost, 200, 1)
		m.RecordNATSPublish("subject", "error", 1)
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "/explain")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	req := httptest.NewRequest(http.MethodPost, "/explain", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/explain", http.MethodPost, "4xx")))
}

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{99, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCodeToString(tt.code))
	}
}
