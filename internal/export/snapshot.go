package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/png"
	"strconv"
	"strings"
	"time"

	"cvinsight/internal/config"
	"cvinsight/internal/errors"
	"cvinsight/internal/formatters"
	"cvinsight/internal/types"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// cssPixelsPerInch converts raster pixels to the inch-based paper size
// Chrome's printer expects.
const cssPixelsPerInch = 96.0

// ReportSelector is the element captured by the snapshot.
const ReportSelector = "#report"

// Renderer produces a PDF snapshot of a report.
type Renderer interface {
	Snapshot(ctx context.Context, report *types.Report) ([]byte, error)
}

// Snapshotter rasterizes the rendered report in headless Chrome and wraps
// the image in a single-page PDF sized to the raster.
type Snapshotter struct {
	cfg config.SnapshotConfig
}

// NewSnapshotter creates a Chrome-backed snapshotter.
func NewSnapshotter(cfg config.SnapshotConfig) *Snapshotter {
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Snapshotter{cfg: cfg}
}

// Snapshot renders report as a PDF. Every failure is reported as
// "PDF generation failed: <cause>".
func (s *Snapshotter) Snapshot(ctx context.Context, report *types.Report) ([]byte, error) {
	if report == nil {
		return nil, errors.NewValidationError(errors.ErrCodeNoReport, "No report available yet", nil)
	}

	doc, err := formatters.ReportDocument(report, s.cfg.Background)
	if err != nil {
		return nil, snapshotError(err)
	}

	data, err := s.RenderHTML(ctx, doc)
	if err != nil {
		return nil, snapshotError(err)
	}
	return data, nil
}

func snapshotError(err error) error {
	return errors.NewRenderError(errors.ErrCodeSnapshotFailed, "PDF generation failed: "+err.Error(), err)
}

// RenderHTML captures the ReportSelector element of document and returns
// the PDF bytes.
func (s *Snapshotter) RenderHTML(ctx context.Context, document string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if s.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if s.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ChromePath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, s.cfg.Timeout)
	defer cancel()

	raster, err := s.capture(browserCtx, document)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raster))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return printRaster(browserCtx, raster, cfg.Width, cfg.Height)
}

func (s *Snapshotter) capture(ctx context.Context, document string) ([]byte, error) {
	var raster []byte
	actions := chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.EmulateViewport(s.cfg.ViewportWidth, 900),
		setContent(document),
		chromedp.WaitVisible(ReportSelector, chromedp.ByQuery),
	}
	if bg, ok := parseHexColor(s.cfg.Background); ok {
		actions = append(actions, emulation.SetDefaultBackgroundColorOverride().WithColor(bg))
	}
	actions = append(actions, chromedp.ScreenshotScale(ReportSelector, s.cfg.Scale, &raster, chromedp.ByQuery))

	if err := chromedp.Run(ctx, actions); err != nil {
		return nil, fmt.Errorf("capture report: %w", err)
	}
	return raster, nil
}

// printRaster lays the PNG at the origin of a page exactly its size.
func printRaster(ctx context.Context, raster []byte, width, height int) ([]byte, error) {
	doc := fmt.Sprintf(`<!DOCTYPE html><html><head><style>
@page { size: %[1]dpx %[2]dpx; margin: 0; }
html, body { margin: 0; padding: 0; }
img { display: block; width: %[1]dpx; height: %[2]dpx; }
</style></head><body><img alt="report" src="data:image/png;base64,%[3]s"></body></html>`,
		width, height, base64.StdEncoding.EncodeToString(raster))

	var pdf []byte
	err := chromedp.Run(ctx,
		setContent(doc),
		chromedp.WaitReady("img", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(float64(width) / cssPixelsPerInch).
				WithPaperHeight(float64(height) / cssPixelsPerInch).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPageRanges("1").
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print snapshot: %w", err)
	}
	return pdf, nil
}

func setContent(document string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, document).Do(ctx)
	})
}

// parseHexColor reads #rgb or #rrggbb.
func parseHexColor(s string) (*cdp.RGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return nil, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, false
	}
	return &cdp.RGBA{R: int64(v >> 16 & 0xff), G: int64(v >> 8 & 0xff), B: int64(v & 0xff), A: 1}, true
}
