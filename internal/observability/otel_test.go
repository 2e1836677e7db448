package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cvinsight/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledManager(t *testing.T) {
	om := Disabled()

	called := false
	err := om.GetMetrics().TrackBackendCall(context.Background(), "analyze", func(ctx context.Context) error {
		called = true
		return nil
	}, om)
	assert.NoError(t, err)
	assert.True(t, called)

	// recording on an uninitialized manager is a no-op
	om.GetMetrics().RecordBusinessMetric(context.Background(), "export", true, om)
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestEnabledManagerTracksBackendCalls(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.Prometheus.Enabled = false
	cfg.Observability.OTLP.Enabled = false

	om, err := NewObservabilityManager(GetObservabilityConfig(cfg, "test"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })

	m := om.GetMetrics()
	require.NotNil(t, m.BackendCallDuration)
	require.NotNil(t, m.Submissions)

	boom := errors.New("boom")
	err = m.TrackBackendCall(context.Background(), "analyze", func(ctx context.Context) error {
		return boom
	}, om)
	assert.ErrorIs(t, err, boom)

	m.RecordBusinessMetric(context.Background(), "submission", false, om)
	m.RecordBusinessMetric(context.Background(), "rate_limit_hit", false, om)
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.ServiceVersion = ""

	oc := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "cvinsight", oc.ServiceName)
	assert.Equal(t, "1.2.3", oc.ServiceVersion)

	fallback := GetObservabilityConfig(nil, "dev")
	assert.False(t, fallback.Enabled)
	assert.False(t, fallback.Prometheus.Enabled)
}

func TestPrometheusScrape(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.OTLP.Enabled = false
	cfg.Observability.Prometheus.Enabled = true
	cfg.Observability.Prometheus.Port = "0"

	om, err := NewObservabilityManager(GetObservabilityConfig(cfg, "test"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })
	require.NotNil(t, om.scrape)

	om.GetMetrics().RecordBusinessMetric(context.Background(), "submission", true, om)

	rec := httptest.NewRecorder()
	om.scrape.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cvinsight_submissions_total")
	assert.NotContains(t, rec.Body.String(), "go_goroutines", "process collectors stay on the default registry")
}
