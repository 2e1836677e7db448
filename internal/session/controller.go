// Package session drives one resume submission from upload to stored report.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cvinsight/internal/backend"
	"cvinsight/internal/chart"
	"cvinsight/internal/errors"
	"cvinsight/internal/normalize"
	"cvinsight/internal/observability"
	"cvinsight/internal/store"
	"cvinsight/internal/types"
	"cvinsight/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Submission is one user request: a chosen document and a credential.
type Submission struct {
	Filename string
	Content  []byte
	APIKey   string
}

// Analyzer is the remote analysis call. *backend.Client implements it.
type Analyzer interface {
	Analyze(ctx context.Context, upload backend.Upload, apiKey string) (normalize.Value, error)
}

// Controller owns session state transitions. Each session allows a single
// submission in flight; the report and error it leaves behind live in the store.
type Controller struct {
	analyzer    Analyzer
	normalizer  *normalize.Normalizer
	store       store.ReportStore
	maxFileSize int64
	logger      *errors.Logger
	obs         *observability.ObservabilityManager

	busy sync.Map // sessionID -> struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxFileSize caps upload size. Zero disables the cap.
func WithMaxFileSize(n int64) Option {
	return func(c *Controller) { c.maxFileSize = n }
}

// WithLogger sets the controller logger.
func WithLogger(l *errors.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithObservability records submission metrics.
func WithObservability(om *observability.ObservabilityManager) Option {
	return func(c *Controller) { c.obs = om }
}

// NewController wires a controller. A nil store falls back to memory.
func NewController(analyzer Analyzer, st store.ReportStore, opts ...Option) *Controller {
	if st == nil {
		st = store.NewMemoryStore(0)
	}
	c := &Controller{
		analyzer:   analyzer,
		normalizer: normalize.NewNormalizer(),
		store:      st,
		logger:     errors.NewWithHandler(slog.DiscardHandler),
		obs:        observability.Disabled(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether the session has a submission in flight.
func (c *Controller) Busy(sessionID string) bool {
	_, ok := c.busy.Load(sessionID)
	return ok
}

// Validate applies the pre-network checks in the order users see them.
func (c *Controller) Validate(sub Submission) error {
	if len(sub.Content) == 0 {
		return errors.NewValidationError(errors.ErrCodeNoFile, "Please choose a PDF first", nil)
	}
	info, err := utils.InspectPDF(sub.Content, c.maxFileSize)
	if err != nil {
		return err
	}
	if info.PageErr != nil {
		c.logger.Warn("Could not read PDF structure, sending it anyway",
			"filename", sub.Filename, "error", info.PageErr)
	}
	if strings.TrimSpace(sub.APIKey) == "" {
		return errors.NewValidationError(errors.ErrCodeMissingAPIKey, "Please enter your OpenAI API key", nil)
	}
	return nil
}

// Submit validates, calls the backend once and stores the outcome.
//
// Validation failures record the error but keep the previous report. Once
// the request is sent the previous report and error are gone; the session
// ends up with either a new report or the new error.
func (c *Controller) Submit(ctx context.Context, sessionID string, sub Submission) (*types.Report, error) {
	if _, loaded := c.busy.LoadOrStore(sessionID, struct{}{}); loaded {
		return nil, errors.NewValidationError(errors.ErrCodeSubmissionPending,
			"A submission is already in progress", nil)
	}
	defer c.busy.Delete(sessionID)

	if err := c.Validate(sub); err != nil {
		c.logger.LogError(err, "Submission rejected", "session", sessionID, "filename", sub.Filename)
		c.recordError(ctx, sessionID, err, true)
		return nil, err
	}

	if err := c.store.Put(ctx, sessionID, &store.Entry{}); err != nil {
		return nil, err
	}

	start := time.Now()
	c.logger.Info("Submitting resume",
		"session", sessionID,
		"filename", sub.Filename,
		"size", utils.FormatFileSize(int64(len(sub.Content))))

	raw, err := c.analyzer.Analyze(ctx, backend.Upload{Filename: sub.Filename, Content: sub.Content}, sub.APIKey)
	if err != nil {
		c.logger.LogError(err, "Analysis failed", "session", sessionID, "duration", time.Since(start).String())
		c.recordError(ctx, sessionID, err, false)
		c.obs.GetMetrics().RecordBusinessMetric(ctx, "submission", false, c.obs)
		return nil, err
	}

	candidate := c.normalizer.Normalize(raw)
	report := &types.Report{
		ID:        uuid.NewString(),
		Source:    sub.Filename,
		Candidate: candidate,
		Chart:     chart.ForCandidate(candidate),
	}

	if err := c.store.Put(ctx, sessionID, &store.Entry{Report: report}); err != nil {
		c.logger.LogError(err, "Failed to store report", "session", sessionID)
		return nil, err
	}

	c.obs.GetMetrics().RecordBusinessMetric(ctx, "submission", true, c.obs,
		attribute.Int("jobs", len(candidate.Employment)))
	c.logger.Info("Resume analyzed",
		"session", sessionID,
		"report_id", report.ID,
		"candidate", candidate.DisplayName("unknown"),
		"duration", time.Since(start).String())

	return report, nil
}

// recordError stores the user-facing message. keepReport leaves the current
// report in place.
func (c *Controller) recordError(ctx context.Context, sessionID string, err error, keepReport bool) {
	entry := &store.Entry{Error: errors.UserMessage(err)}
	if keepReport {
		if prev, gerr := c.store.Get(ctx, sessionID); gerr == nil && prev != nil {
			entry.Report = prev.Report
		}
	}
	if perr := c.store.Put(ctx, sessionID, entry); perr != nil {
		c.logger.LogError(perr, "Failed to store session error", "session", sessionID)
	}
}

// State returns the session's current report and error. Unknown sessions
// yield an empty entry.
func (c *Controller) State(ctx context.Context, sessionID string) (*store.Entry, error) {
	entry, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry = &store.Entry{}
	}
	return entry, nil
}

// Report returns the current report or a NO_REPORT error.
func (c *Controller) Report(ctx context.Context, sessionID string) (*types.Report, error) {
	entry, err := c.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if entry.Report == nil {
		return nil, errors.NewValidationError(errors.ErrCodeNoReport, "No report available yet", nil)
	}
	return entry.Report, nil
}

// SetError records a failure that happened outside Submit, such as a
// snapshot export, without touching the report.
func (c *Controller) SetError(ctx context.Context, sessionID string, err error) {
	c.recordError(ctx, sessionID, err, true)
}

// ClearError forgets the last error after a later action succeeded.
func (c *Controller) ClearError(ctx context.Context, sessionID string) error {
	entry, err := c.store.Get(ctx, sessionID)
	if err != nil || entry == nil || entry.Error == "" {
		return err
	}
	entry.Error = ""
	return c.store.Put(ctx, sessionID, entry)
}

// Clear drops the session's report and error.
func (c *Controller) Clear(ctx context.Context, sessionID string) error {
	return c.store.Delete(ctx, sessionID)
}
