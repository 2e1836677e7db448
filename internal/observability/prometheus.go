package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"cvinsight/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusConfig holds Prometheus-specific configuration
type PrometheusConfig struct {
	Enabled  bool
	Endpoint string
	Port     string
}

// scrapeEndpoint exposes cvinsight metrics on a dedicated listener. It owns
// its registry so the report server's process metrics stay out of it.
type scrapeEndpoint struct {
	reader   sdkmetric.Reader
	registry *prometheus.Registry
	server   *http.Server
}

func newScrapeEndpoint(cfg PrometheusConfig) (*scrapeEndpoint, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle("GET "+endpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &scrapeEndpoint{
		reader:   exporter,
		registry: registry,
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
	}, nil
}

// start binds before returning so a taken port fails startup instead of
// disappearing into a goroutine.
func (e *scrapeEndpoint) start() error {
	ln, err := net.Listen("tcp", e.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", e.server.Addr, err)
	}
	go func() { _ = e.server.Serve(ln) }()
	return nil
}

func (e *scrapeEndpoint) shutdown(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}

// GetPrometheusConfig creates Prometheus configuration from provided config
func GetPrometheusConfig(cfg *config.Config) PrometheusConfig {
	if cfg == nil {
		return PrometheusConfig{Endpoint: "/metrics", Port: "9090"}
	}
	p := cfg.Observability.Prometheus
	return PrometheusConfig{Enabled: p.Enabled, Endpoint: p.Endpoint, Port: p.Port}
}
