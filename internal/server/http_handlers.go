package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"cvinsight/internal/chart"
	"cvinsight/internal/errors"
	"cvinsight/internal/export"
	"cvinsight/internal/formatters"
	"cvinsight/internal/session"
	"cvinsight/internal/types"
	"cvinsight/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	formFileField = "pdf_doc"
	formKeyField  = "api_key"
)

// sessionID returns the caller's session, issuing a cookie on first visit
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.SessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// pageHandler renders the upload form and the current report
func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	s.renderPage(w, r, id, http.StatusOK, "")
}

// renderPage writes the page for a session. A non-empty override replaces
// the stored error message.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, id string, status int, override string) {
	entry, err := s.Controller.State(r.Context(), id)
	if err != nil {
		s.Logger.LogError(err, "Failed to load session", "session", id)
		writeErrorResponse(w, "Session unavailable", errors.UserMessage(err), http.StatusInternalServerError)
		return
	}

	msg := entry.Error
	if override != "" {
		msg = override
	}

	data := formatters.NewPageData(entry.Report, msg, s.Controller.Busy(id))
	if s.AppConfig != nil {
		data.Background = s.AppConfig.Export.Snapshot.Background
	}

	var buf bytes.Buffer
	if err := formatters.RenderPage(&buf, data); err != nil {
		s.Logger.LogError(err, "Failed to render page", "session", id)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// processHandler accepts the upload form and runs one submission
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	if s.Controller.Busy(id) {
		s.renderPage(w, r, id, http.StatusConflict, "A submission is already in progress")
		return
	}

	sub, err := s.readSubmission(r)
	if err != nil {
		s.Controller.SetError(r.Context(), id, err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	// a reload or dropped connection must not abort the analysis; the
	// backend timeout still bounds it
	ctx := context.WithoutCancel(r.Context())
	if _, err := s.Controller.Submit(ctx, id, sub); err != nil {
		if errors.HasCode(err, errors.ErrCodeSubmissionPending) {
			s.renderPage(w, r, id, http.StatusConflict, errors.UserMessage(err))
			return
		}
		s.Logger.Debug("Submission finished with error", "session", id, "error", errors.UserMessage(err))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// readSubmission extracts the file and credential from the multipart form.
// A missing file is not an error here; the controller reports it in order.
func (s *Server) readSubmission(r *http.Request) (session.Submission, error) {
	var sub session.Submission

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return sub, errors.NewValidationError(errors.ErrCodeFileTooLarge,
				fmt.Sprintf("File is too large (limit %s)", utils.FormatFileSize(s.maxFileSize())), err)
		}
		return sub, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Could not read the upload form", err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	sub.APIKey = r.FormValue(formKeyField)

	file, header, err := r.FormFile(formFileField)
	if err != nil {
		if stderrors.Is(err, http.ErrMissingFile) {
			return sub, nil
		}
		return sub, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Could not read the upload form", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return sub, errors.NewIOError(errors.ErrCodeFileNotReadable, "Could not read the uploaded file", err)
	}
	sub.Filename = header.Filename
	sub.Content = content
	return sub, nil
}

func (s *Server) maxFileSize() int64 {
	if s.AppConfig != nil {
		return s.AppConfig.App.MaxFileSize
	}
	return s.MaxRequestSize
}

// clearHandler drops the session's report and error
func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	if err := s.Controller.Clear(r.Context(), id); err != nil {
		s.Logger.LogError(err, "Failed to clear session", "session", id)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// exportJSONHandler downloads the normalized candidate
func (s *Server) exportJSONHandler(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	report, err := s.Controller.Report(r.Context(), id)
	if err != nil {
		s.exportFailed(w, r, id, "json", err)
		return
	}

	data, err := export.JSON(report.Candidate)
	if err != nil {
		s.exportFailed(w, r, id, "json", err)
		return
	}

	s.exportSucceeded(r.Context(), id, "json")
	writeAttachment(w, "application/json", export.JSONFilename(report.Candidate), data)
}

// exportPDFHandler renders the report in a headless browser and downloads it
func (s *Server) exportPDFHandler(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	if s.Renderer == nil {
		s.exportFailed(w, r, id, "pdf", errors.NewConfigError(errors.ErrCodeSnapshotFailed,
			"PDF generation failed: snapshot export is not configured", nil))
		return
	}

	report, err := s.Controller.Report(r.Context(), id)
	if err != nil {
		s.exportFailed(w, r, id, "pdf", err)
		return
	}

	start := time.Now()
	data, err := s.Renderer.Snapshot(r.Context(), report)
	if err != nil {
		s.exportFailed(w, r, id, "pdf", err)
		return
	}

	s.Logger.Info("Snapshot exported",
		"session", id,
		"report_id", report.ID,
		"size", utils.FormatFileSize(int64(len(data))),
		"duration", time.Since(start).String())
	s.exportSucceeded(r.Context(), id, "pdf")
	writeAttachment(w, "application/pdf", export.PDFFilename(report.Candidate), data)
}

// exportFailed keeps the report, records the message and sends the user back to the page
func (s *Server) exportFailed(w http.ResponseWriter, r *http.Request, id, format string, err error) {
	s.Logger.LogError(err, "Export failed", "session", id, "format", format)
	s.Observability.GetMetrics().RecordBusinessMetric(r.Context(), "export", false, s.Observability,
		attribute.String("format", format))
	s.Controller.SetError(r.Context(), id, err)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) exportSucceeded(ctx context.Context, id, format string) {
	s.Observability.GetMetrics().RecordBusinessMetric(ctx, "export", true, s.Observability,
		attribute.String("format", format))
	if err := s.Controller.ClearError(ctx, id); err != nil {
		s.Logger.LogError(err, "Failed to clear session error", "session", id)
	}
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}

// apiReportHandler returns the session's report as JSON
func (s *Server) apiReportHandler(w http.ResponseWriter, r *http.Request) {
	report, ok := s.currentReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// apiChartHandler returns the chart slices of the session's report
func (s *Server) apiChartHandler(w http.ResponseWriter, r *http.Request) {
	report, ok := s.currentReport(w, r)
	if !ok {
		return
	}
	slices := report.Chart
	if slices == nil {
		slices = chart.ForCandidate(report.Candidate)
	}
	writeJSON(w, http.StatusOK, slices)
}

func (s *Server) currentReport(w http.ResponseWriter, r *http.Request) (*types.Report, bool) {
	id := s.sessionID(w, r)
	report, err := s.Controller.Report(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.HasCode(err, errors.ErrCodeNoReport) {
			status = http.StatusNotFound
		}
		writeAppError(w, err, status)
		return nil, false
	}
	return report, true
}

// healthHandler reports backend breaker and store status
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "cvinsight",
		"version": s.Version,
		"store":   s.StoreName,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		"snapshot": map[string]any{
			"enabled": s.Renderer != nil,
		},
	}

	status := http.StatusOK
	if s.Backend != nil {
		healthy := s.Backend.Healthy()
		response["backend"] = map[string]any{
			"healthy":         healthy,
			"circuit_breaker": s.Backend.BreakerStats(),
		}
		if !healthy {
			response["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, response)
}

// statsHandler reports rate limiting and breaker statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "cvinsight",
		"version": s.Version,
	}

	if s.RateLimiter != nil {
		stats := s.RateLimiter.GetStats()
		stats["enabled"] = true
		response["rate_limiting"] = stats
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.Backend != nil {
		response["circuit_breaker"] = s.Backend.BreakerStats()
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: error, Message: message})
}

func writeAppError(w http.ResponseWriter, err error, statusCode int) {
	resp := ErrorResponse{Error: http.StatusText(statusCode), Message: errors.UserMessage(err)}
	if appErr, ok := errors.As(err); ok {
		resp.Code = appErr.Code
	}
	writeJSON(w, statusCode, resp)
}
