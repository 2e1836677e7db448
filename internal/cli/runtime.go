package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cvinsight/internal/backend"
	"cvinsight/internal/chart"
	"cvinsight/internal/config"
	"cvinsight/internal/errors"
	"cvinsight/internal/normalize"
	"cvinsight/internal/observability"
	"cvinsight/internal/schemas"
	"cvinsight/internal/session"
	"cvinsight/internal/store"
	"cvinsight/internal/types"

	"github.com/google/uuid"
)

// components is the report pipeline shared by process, serve and watch.
type components struct {
	obs        *observability.ObservabilityManager
	client     *backend.Client
	store      store.ReportStore
	controller *session.Controller
	logger     *errors.Logger
}

type componentOptions struct {
	// telemetry starts exporters; one-shot commands skip it
	telemetry bool
	// persistent uses the configured store instead of memory
	persistent bool
}

func newComponents(ctx context.Context, cfg *config.Config, logger *errors.Logger, opts componentOptions) (*components, error) {
	om := observability.Disabled()
	if opts.telemetry {
		var err error
		om, err = observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize observability: %w", err)
		}
	}

	var (
		st  store.ReportStore
		err error
	)
	if opts.persistent {
		st, err = store.New(ctx, cfg.Store)
		if err != nil {
			shutdownObservability(om, logger)
			return nil, err
		}
	} else {
		st = store.NewMemoryStore(cfg.Store.TTL)
	}

	client := backend.NewClient(cfg.Backend, logger, backend.WithObservability(om))
	controller := session.NewController(client, st,
		session.WithMaxFileSize(cfg.App.MaxFileSize),
		session.WithLogger(logger),
		session.WithObservability(om))

	return &components{
		obs:        om,
		client:     client,
		store:      st,
		controller: controller,
		logger:     logger,
	}, nil
}

func (c *components) Close() {
	if err := c.store.Close(); err != nil {
		c.logger.LogError(err, "Failed to close report store")
	}
	shutdownObservability(c.obs, c.logger)
}

func shutdownObservability(om *observability.ObservabilityManager, logger *errors.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		logger.LogError(err, "Failed to shutdown observability")
	}
}

// loadReport accepts a stored report, a candidate export or a raw backend
// response and returns a report with chart data.
func loadReport(data []byte, source string, legacyUnwrap bool) (*types.Report, error) {
	if kind, err := schemas.Detect(data); err == nil && kind == schemas.KindReport {
		var report types.Report
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, errors.NewParseError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Invalid report file: %s", source), err)
		}
		if report.Chart == nil {
			report.Chart = chart.ForCandidate(report.Candidate)
		}
		return &report, nil
	}

	raw, err := backend.Unwrap(http.StatusOK, data, legacyUnwrap)
	if err != nil {
		return nil, err
	}
	candidate := normalize.NewNormalizer().Normalize(raw)
	return &types.Report{
		ID:        uuid.NewString(),
		Source:    source,
		Candidate: candidate,
		Chart:     chart.ForCandidate(candidate),
	}, nil
}
