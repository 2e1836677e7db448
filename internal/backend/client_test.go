package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cvinsight/internal/config"
	"cvinsight/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) config.BackendConfig {
	cfg := config.Default().Backend
	cfg.Endpoint = endpoint
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestClientAnalyze_SendsMultipartWithKeyHeader(t *testing.T) {
	var gotKey, gotFilename string
	var gotContent []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-openai-key")
		file, header, err := r.FormFile("pdf_doc")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		gotContent, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "result": {"full_name": "Ada"}}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), nil)
	v, err := client.Analyze(context.Background(), Upload{Filename: "/tmp/cv.pdf", Content: []byte("%PDF-1.4")}, "  sk-test  ")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", gotKey)
	assert.Equal(t, "cv.pdf", gotFilename)
	assert.Equal(t, []byte("%PDF-1.4"), gotContent)

	name, ok := v.Field("full_name")
	require.True(t, ok)
	assert.Equal(t, "Ada", name.String)
}

func TestClientAnalyze_BackendErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success": false, "error": "Incorrect API key provided"}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CircuitBreaker.Enabled = false
	_, err := NewClient(cfg, nil).Analyze(context.Background(), Upload{Filename: "cv.pdf", Content: []byte("x")}, "bad")

	require.Error(t, err)
	assert.Equal(t, "Incorrect API key provided", errors.UserMessage(err))
	assert.True(t, errors.HasCode(err, errors.ErrCodeBackendRejected))
}

func TestClientAnalyze_NoRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil).Analyze(context.Background(), Upload{Content: []byte("x")}, "k")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, errors.UserMessage(err), "Request failed (HTTP 502)")
}

func TestClientAnalyze_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CircuitBreaker = config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      2,
		FailureThreshold: 0.5,
	}
	client := NewClient(cfg, nil)

	for range 2 {
		_, err := client.Analyze(context.Background(), Upload{Content: []byte("x")}, "k")
		require.Error(t, err)
	}
	assert.False(t, client.Healthy())

	_, err := client.Analyze(context.Background(), Upload{Content: []byte("x")}, "k")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBackendUnavailable))
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the backend")
	assert.Equal(t, true, client.BreakerStats()["enabled"])
}

func TestClientAnalyze_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success": false, "error": "No file provided (field name must be 'pdf_doc')"}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CircuitBreaker.MinRequests = 1
	client := NewClient(cfg, nil)

	for range 3 {
		_, err := client.Analyze(context.Background(), Upload{Content: []byte("x")}, "k")
		require.Error(t, err)
		assert.Contains(t, errors.UserMessage(err), "No file provided")
	}
	assert.True(t, client.Healthy())
}

func TestClientAnalyze_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	_, err := NewClient(cfg, nil).Analyze(context.Background(), Upload{Content: []byte("x")}, "k")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNetworkTimeout))
}

func TestClientAnalyze_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"` + strings.Repeat("a", 100) + `"}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxResponseSize = 32
	_, err := NewClient(cfg, nil).Analyze(context.Background(), Upload{Content: []byte("x")}, "k")

	require.Error(t, err)
	assert.Equal(t, "Backend response is too large", errors.UserMessage(err))
}

func TestClientAnalyze_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(testConfig(url), nil).Analyze(context.Background(), Upload{Content: []byte("x")}, "k")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBackendUnavailable))
	assert.True(t, strings.HasPrefix(errors.UserMessage(err), "Request failed"))
}
