package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cvinsight/internal/errors"
	"cvinsight/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectPDF(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		info, err := InspectPDF(testutil.SamplePDF(2), 0)
		require.NoError(t, err)
		assert.Equal(t, PDFMIMEType, info.MIME)
		assert.Equal(t, 2, info.Pages)
		assert.NoError(t, info.PageErr)
	})

	t.Run("unreadable structure still passes", func(t *testing.T) {
		tests := []struct {
			name    string
			content []byte
		}{
			{"stale xref offsets", staleXref(testutil.SamplePDF(1))},
			{"truncated", []byte("%PDF-1.4\n1 0 obj\n<<")},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				info, err := InspectPDF(tt.content, 0)
				require.NoError(t, err)
				assert.Equal(t, PDFMIMEType, info.MIME)
				assert.Equal(t, 0, info.Pages)
				assert.Error(t, info.PageErr)
			})
		}
	})

	tests := []struct {
		name     string
		content  []byte
		maxSize  int64
		wantCode string
		wantMsg  string
	}{
		{"empty", nil, 0, errors.ErrCodeNoFile, "Please choose a PDF first"},
		{"plain text", []byte("Jane Doe\nSoftware Engineer\n"), 0, errors.ErrCodeInvalidFileType, "Please select a PDF file"},
		{"png image", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0, errors.ErrCodeInvalidFileType, "Please select a PDF file"},
		{"zero pages", testutil.SamplePDF(0), 0, errors.ErrCodeInvalidFileType, "Please select a PDF file"},
		{"over limit", testutil.SamplePDF(1), 64, errors.ErrCodeFileTooLarge, "File is too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InspectPDF(tt.content, tt.maxSize)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
			assert.True(t, strings.HasPrefix(errors.UserMessage(err), tt.wantMsg))
		})
	}
}

// staleXref inserts a binary marker comment after the header, shifting every
// object away from the offsets the xref table records.
func staleXref(doc []byte) []byte {
	header, rest, _ := bytes.Cut(doc, []byte("\n"))
	out := append([]byte{}, header...)
	out = append(out, "\n%\xe2\xe3\xcf\xd3\n"...)
	return append(out, rest...)
}

func TestIsPDFName(t *testing.T) {
	assert.True(t, IsPDFName("cv.pdf"))
	assert.True(t, IsPDFName("CV.PDF"))
	assert.False(t, IsPDFName("cv.docx"))
	assert.False(t, IsPDFName("pdf"))
}

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(file, testutil.SamplePDF(1), 0600))

	assert.NoError(t, ValidateInputFile(file))
	assert.Error(t, ValidateInputFile(""))
	assert.ErrorContains(t, ValidateInputFile(filepath.Join(dir, "missing.pdf")), "does not exist")
	assert.ErrorContains(t, ValidateInputFile(dir), "directory")
}

func TestValidateOutputFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "out", "report.json")

	require.NoError(t, ValidateOutputFile(target))
	_, err := os.Stat(filepath.Dir(target))
	assert.NoError(t, err)
	assert.NoError(t, ValidateOutputFile(""))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "10.0 MB", FormatFileSize(10*1024*1024))
}
