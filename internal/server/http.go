package server

import (
	"log/slog"
	"time"

	"cvinsight/internal/config"
	"cvinsight/internal/errors"
	"cvinsight/internal/export"
	"cvinsight/internal/observability"
	"cvinsight/internal/session"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// BackendStatus is the slice of the backend client the health endpoints need.
type BackendStatus interface {
	Healthy() bool
	BreakerStats() map[string]any
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// TLS Configuration
	TLSConfig config.TLSConfig

	// Report pipeline
	Controller *session.Controller
	Backend    BackendStatus
	Renderer   export.Renderer // nil disables /export.pdf
	StoreName  string

	SessionCookie string

	// API Authentication
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Observability *observability.ObservabilityManager
	Logger        *errors.Logger

	startedAt time.Time
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
	SessionCookie  string

	Controller    *session.Controller
	Backend       BackendStatus
	Renderer      export.Renderer
	StoreName     string
	Observability *observability.ObservabilityManager
}

// multipartOverhead is added to the file size limit so the form boundaries
// and the api_key field fit in the request body.
const multipartOverhead = 64 * 1024

// RequestLimit returns the request body limit for a given upload limit.
func RequestLimit(maxFileSize int64) int64 {
	if maxFileSize <= 0 {
		return 0
	}
	return maxFileSize + multipartOverhead
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, logger *errors.Logger) *Server {
	if logger == nil {
		logger = errors.NewWithHandler(slog.DiscardHandler)
	}

	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, cfg.RateLimit.IdleTTL, logger)
	}

	om := cfg.Observability
	if om == nil {
		om = observability.Disabled()
	}

	cookie := cfg.SessionCookie
	if cookie == "" {
		cookie = "cvinsight_session"
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		Controller:     cfg.Controller,
		Backend:        cfg.Backend,
		Renderer:       cfg.Renderer,
		StoreName:      cfg.StoreName,
		SessionCookie:  cookie,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Observability:  om,
		Logger:         logger,
		startedAt:      time.Now(),
	}
}
