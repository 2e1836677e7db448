package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cvinsight/internal/errors"
	"cvinsight/internal/export"
	"cvinsight/internal/session"
)

// Pipeline submits an inbox file and writes its exports to the outbox.
type Pipeline struct {
	Controller *session.Controller
	APIKey     string
	Outbox     string
	// Renderer produces the PDF snapshot; nil skips it.
	Renderer export.Renderer
	Logger   *errors.Logger
}

// Process implements ProcessFunc.
func (p *Pipeline) Process(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", path), err)
	}

	// each inbox file is its own session so one failure never hides another report
	sessionID := "watch:" + filepath.Base(path)
	defer func() { _ = p.Controller.Clear(context.WithoutCancel(ctx), sessionID) }()

	report, err := p.Controller.Submit(ctx, sessionID, session.Submission{
		Filename: filepath.Base(path),
		Content:  content,
		APIKey:   p.APIKey,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.Outbox, 0750); err != nil {
		return errors.NewIOError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Cannot create directory: %s", p.Outbox), err)
	}

	// nameless candidates are named after their inbox file
	name := report.Candidate.DisplayName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	data, err := export.JSON(report.Candidate)
	if err != nil {
		return err
	}
	jsonPath, err := writeNew(p.Outbox, export.JSONName(name), data)
	if err != nil {
		return err
	}

	written := []string{jsonPath}
	if p.Renderer != nil {
		pdf, err := p.Renderer.Snapshot(ctx, report)
		if err != nil {
			return err
		}
		pdfPath, err := writeNew(p.Outbox, export.PDFName(name), pdf)
		if err != nil {
			return err
		}
		written = append(written, pdfPath)
	}

	if p.Logger != nil {
		p.Logger.Info("Exports written", "source", path, "report_id", report.ID, "files", written)
	}
	return nil
}

// writeNew writes data under filename in dir without replacing an existing
// file; taken names get a -2, -3, ... suffix before the extension.
func writeNew(dir, filename string, data []byte) (string, error) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	for n := 1; ; n++ {
		target := filepath.Join(dir, filename)
		if n > 1 {
			target = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
		}

		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", errors.NewIOError("FILE_WRITE_FAILED", fmt.Sprintf("Cannot write file: %s", target), err)
		}
		_, err = f.Write(data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", errors.NewIOError("FILE_WRITE_FAILED", fmt.Sprintf("Cannot write file: %s", target), err)
		}
		return target, nil
	}
}
