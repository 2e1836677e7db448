package utils

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cvinsight/internal/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// PDFMIMEType is the only document type the analysis backend accepts.
const PDFMIMEType = "application/pdf"

// PDFInfo describes a document that passed preflight.
type PDFInfo struct {
	MIME string
	Size int64
	// Pages is 0 when the page tree could not be read; PageErr says why.
	Pages   int
	PageErr error
}

// ValidateInputFile checks if a file exists and is readable
func ValidateInputFile(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", filename)
		}
		return fmt.Errorf("cannot access file %s: %w", filename, err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filename)
	}

	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("cannot read file %s: %w", filename, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", filename, err)
	}

	return nil
}

// ValidateOutputFile checks if the output file path is valid
func ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// GetFileExtension returns the file extension in lowercase
func GetFileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// IsPDFName reports whether the filename carries a .pdf extension.
func IsPDFName(filename string) bool {
	return GetFileExtension(filename) == ".pdf"
}

// InspectPDF runs the upload preflight: the content must be present, within
// maxSize (when positive) and sniff as application/pdf. Documents the local
// reader cannot open still pass, since viewers and the backend repair
// damaged cross-reference tables; only a readable empty page tree is rejected.
func InspectPDF(content []byte, maxSize int64) (*PDFInfo, error) {
	size := int64(len(content))
	if size == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeNoFile, "Please choose a PDF first", nil)
	}
	if maxSize > 0 && size > maxSize {
		return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File is too large (%s, limit %s)", FormatFileSize(size), FormatFileSize(maxSize)), nil).
			WithContext("size", size)
	}

	mt := mimetype.Detect(content)
	if !mt.Is(PDFMIMEType) {
		return nil, wrongType(fmt.Errorf("detected %s", mt.String()))
	}

	info := &PDFInfo{MIME: mt.String(), Size: size}
	pages, err := countPages(content)
	if err != nil {
		info.PageErr = err
		return info, nil
	}
	if pages == 0 {
		return nil, wrongType(fmt.Errorf("document has no pages"))
	}
	info.Pages = pages
	return info, nil
}

// countPages opens the document. The reader panics on some malformed
// object streams, which is reported as an unreadable document.
func countPages(content []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

func wrongType(cause error) error {
	return errors.NewValidationError(errors.ErrCodeInvalidFileType, "Please select a PDF file", cause)
}

// FormatFileSize returns a human-readable file size
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
