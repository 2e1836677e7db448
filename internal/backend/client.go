// Package backend talks to the remote resume analysis service.
package backend

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"cvinsight/internal/config"
	"cvinsight/internal/errors"
	"cvinsight/internal/normalize"
	"cvinsight/internal/observability"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Upload is a resume document ready to send.
type Upload struct {
	Filename string
	Content  []byte
}

// Client submits resumes to the analysis backend. Calls are never retried:
// every attempt costs the user an LLM call on their own key.
type Client struct {
	endpoint        string
	keyHeader       string
	fileField       string
	maxResponseSize int64
	legacyUnwrap    bool
	timeout         time.Duration

	httpClient *http.Client
	breaker    *CircuitBreaker
	logger     *errors.Logger
	obs        *observability.ObservabilityManager
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObservability records backend call metrics on om.
func WithObservability(om *observability.ObservabilityManager) Option {
	return func(c *Client) { c.obs = om }
}

// NewClient creates a backend client from configuration.
func NewClient(cfg config.BackendConfig, logger *errors.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = errors.NewWithHandler(slog.DiscardHandler)
	}
	c := &Client{
		endpoint:        cfg.Endpoint,
		keyHeader:       cfg.KeyHeader,
		fileField:       cfg.FileField,
		maxResponseSize: cfg.MaxResponseSize,
		legacyUnwrap:    cfg.LegacyUnwrap,
		timeout:         cfg.Timeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: NewCircuitBreaker("analysis-backend", cfg.CircuitBreaker, logger),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze uploads the document with the user's credential and returns the
// unwrapped analysis payload.
func (c *Client) Analyze(ctx context.Context, upload Upload, apiKey string) (normalize.Value, error) {
	apiKey = strings.TrimSpace(apiKey)

	var result normalize.Value
	call := func(ctx context.Context) error {
		var err error
		result, err = c.analyze(ctx, upload, apiKey)
		return err
	}

	if c.obs != nil {
		return result, c.obs.GetMetrics().TrackBackendCall(ctx, "analyze", call, c.obs)
	}
	return result, call(ctx)
}

func (c *Client) analyze(ctx context.Context, upload Upload, apiKey string) (normalize.Value, error) {
	tracer := otel.Tracer("cvinsight.backend")
	ctx, span := tracer.Start(ctx, "backend.analyze")
	defer span.End()

	span.SetAttributes(
		attribute.String("backend.endpoint", c.endpoint),
		attribute.Int("upload.size", len(upload.Content)),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, contentType, err := c.encode(upload)
	if err != nil {
		span.RecordError(err)
		return normalize.Value{}, err
	}

	c.logger.Debug("Submitting resume to backend",
		"endpoint", c.endpoint,
		"filename", upload.Filename,
		"size", len(upload.Content))

	resp, err := c.breaker.execute(func() (*rawResponse, error) {
		return c.do(ctx, body, contentType, apiKey)
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return normalize.Value{}, c.transportError(err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.status))

	payload, err := Unwrap(resp.status, resp.body, c.legacyUnwrap)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return normalize.Value{}, err
	}

	span.SetAttributes(attribute.Bool("success", true))
	return payload, nil
}

func (c *Client) encode(upload Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := filepath.Base(upload.Filename)
	if filename == "." || filename == "/" || filename == "" {
		filename = "resume.pdf"
	}

	part, err := mw.CreateFormFile(c.fileField, filename)
	if err != nil {
		return nil, "", errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to build upload", err)
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, "", errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to build upload", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to build upload", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// do performs one HTTP exchange. Only transport failures and 5xx answers
// count against the breaker; a rejected credential is the caller's problem.
func (c *Client) do(ctx context.Context, body *bytes.Buffer, contentType, apiKey string) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(c.keyHeader, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxResponseSize {
		return nil, errResponseTooLarge
	}

	raw := &rawResponse{status: resp.StatusCode, body: data}
	if resp.StatusCode >= http.StatusInternalServerError {
		return raw, &serverError{raw: raw}
	}
	return raw, nil
}

var errResponseTooLarge = stderrors.New("response exceeds configured size limit")

// serverError carries a 5xx response through the breaker so its body can still be reported.
type serverError struct {
	raw *rawResponse
}

func (e *serverError) Error() string {
	return fmt.Sprintf("backend responded with HTTP %d", e.raw.status)
}

func (c *Client) transportError(err error) error {
	var srvErr *serverError
	if stderrors.As(err, &srvErr) {
		// surface the backend's own error message when it sent one
		if _, uerr := Unwrap(srvErr.raw.status, srvErr.raw.body, c.legacyUnwrap); uerr != nil {
			return uerr
		}
	}

	switch {
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.NewNetworkError(errors.ErrCodeBackendUnavailable,
			"Analysis service is temporarily unavailable, please try again shortly", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			"Request timed out waiting for the analysis service", err)
	case stderrors.Is(err, errResponseTooLarge):
		return errors.NewParseError(errors.ErrCodeInvalidResponse,
			"Backend response is too large", err)
	}
	return errors.NewNetworkError(errors.ErrCodeBackendUnavailable,
		fmt.Sprintf("Request failed: %v", err), err)
}

// BreakerStats exposes circuit breaker statistics for health endpoints.
func (c *Client) BreakerStats() map[string]any {
	return c.breaker.GetStats()
}

// Healthy reports whether the breaker currently lets calls through.
func (c *Client) Healthy() bool {
	return c.breaker.IsHealthy()
}
