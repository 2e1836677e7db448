package session

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"cvinsight/internal/backend"
	"cvinsight/internal/errors"
	"cvinsight/internal/normalize"
	"cvinsight/internal/store"
	"cvinsight/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   int
	lastKey string
	body    string
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, upload backend.Upload, apiKey string) (normalize.Value, error) {
	f.mu.Lock()
	f.calls++
	f.lastKey = apiKey
	f.mu.Unlock()

	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return normalize.Value{}, f.err
	}
	return normalize.Parse([]byte(f.body))
}

const analysis = `{
	"full_name": "Ada Lovelace",
	"employment_details": [{"job_title": "Analyst", "company": "Babbage & Co"}],
	"experience_analysis": {"per_job": [{"job_title": "Analyst", "duration_months": 18}]}
}`

func TestSubmit_Validation(t *testing.T) {
	pdf := testutil.SamplePDF(1)

	tests := []struct {
		name     string
		sub      Submission
		wantCode string
		wantMsg  string
	}{
		{"no file", Submission{APIKey: "sk"}, errors.ErrCodeNoFile, "Please choose a PDF first"},
		{"not a pdf", Submission{Filename: "cv.txt", Content: []byte("plain text resume"), APIKey: "sk"},
			errors.ErrCodeInvalidFileType, "Please select a PDF file"},
		{"missing key", Submission{Filename: "cv.pdf", Content: pdf}, errors.ErrCodeMissingAPIKey, "Please enter your OpenAI API key"},
		{"blank key", Submission{Filename: "cv.pdf", Content: pdf, APIKey: "   "}, errors.ErrCodeMissingAPIKey, "Please enter your OpenAI API key"},
		{"file checked before key", Submission{Filename: "cv.txt", Content: []byte("nope")},
			errors.ErrCodeInvalidFileType, "Please select a PDF file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{body: analysis}
			c := NewController(analyzer, nil)

			_, err := c.Submit(context.Background(), "s1", tt.sub)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode))
			assert.Equal(t, tt.wantMsg, errors.UserMessage(err))
			assert.Zero(t, analyzer.calls, "validation failures must not reach the backend")

			state, err := c.State(context.Background(), "s1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantMsg, state.Error)
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	analyzer := &fakeAnalyzer{body: analysis}
	c := NewController(analyzer, store.NewMemoryStore(0))
	ctx := context.Background()

	report, err := c.Submit(ctx, "s1", Submission{Filename: "ada.pdf", Content: testutil.SamplePDF(1), APIKey: " sk-live "})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "ada.pdf", report.Source)
	assert.Equal(t, "Ada Lovelace", *report.Candidate.FullName)
	require.Len(t, report.Chart, 1)
	assert.Equal(t, 18.0, report.Chart[0].Value)
	assert.Equal(t, 1, analyzer.calls)

	got, err := c.Report(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)
	assert.False(t, c.Busy("s1"))
}

func TestSubmit_UnreadablePDFStillSent(t *testing.T) {
	var logs bytes.Buffer
	analyzer := &fakeAnalyzer{body: analysis}
	c := NewController(analyzer, nil, WithLogger(errors.NewWithHandler(slog.NewJSONHandler(&logs, nil))))

	report, err := c.Submit(context.Background(), "s1", Submission{
		Filename: "scanned.pdf",
		Content:  []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog"),
		APIKey:   "sk",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", *report.Candidate.FullName)
	assert.Equal(t, 1, analyzer.calls)
	assert.Contains(t, logs.String(), "Could not read PDF structure")
}

func TestSubmit_FailureClearsPreviousReport(t *testing.T) {
	analyzer := &fakeAnalyzer{body: analysis}
	c := NewController(analyzer, nil)
	ctx := context.Background()
	sub := Submission{Filename: "ada.pdf", Content: testutil.SamplePDF(1), APIKey: "sk"}

	_, err := c.Submit(ctx, "s1", sub)
	require.NoError(t, err)

	analyzer.err = errors.NewNetworkError(errors.ErrCodeBackendRejected, "Incorrect API key provided", nil)
	_, err = c.Submit(ctx, "s1", sub)
	require.Error(t, err)

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, state.Report)
	assert.Equal(t, "Incorrect API key provided", state.Error)

	_, err = c.Report(ctx, "s1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeNoReport))
}

func TestSubmit_ValidationKeepsPreviousReport(t *testing.T) {
	c := NewController(&fakeAnalyzer{body: analysis}, nil)
	ctx := context.Background()

	_, err := c.Submit(ctx, "s1", Submission{Filename: "ada.pdf", Content: testutil.SamplePDF(1), APIKey: "sk"})
	require.NoError(t, err)

	_, err = c.Submit(ctx, "s1", Submission{Filename: "ada.pdf", Content: testutil.SamplePDF(1)})
	require.Error(t, err)

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, state.Report)
	assert.Equal(t, "Please enter your OpenAI API key", state.Error)

	require.NoError(t, c.ClearError(ctx, "s1"))
	state, _ = c.State(ctx, "s1")
	assert.Empty(t, state.Error)
	assert.NotNil(t, state.Report)
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	analyzer := &fakeAnalyzer{
		body:    analysis,
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	c := NewController(analyzer, nil)
	ctx := context.Background()
	sub := Submission{Filename: "ada.pdf", Content: testutil.SamplePDF(1), APIKey: "sk"}

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx, "s1", sub)
		done <- err
	}()
	<-analyzer.entered
	assert.True(t, c.Busy("s1"))

	_, err := c.Submit(ctx, "s1", sub)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSubmissionPending))

	// other sessions are independent
	assert.False(t, c.Busy("s2"))

	close(analyzer.block)
	require.NoError(t, <-done)
	assert.False(t, c.Busy("s1"))
	assert.Equal(t, 1, analyzer.calls)
}

func TestSubmit_FileTooLarge(t *testing.T) {
	analyzer := &fakeAnalyzer{body: analysis}
	c := NewController(analyzer, nil, WithMaxFileSize(16))

	_, err := c.Submit(context.Background(), "s1", Submission{Filename: "big.pdf", Content: testutil.SamplePDF(3), APIKey: "sk"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileTooLarge))
	assert.Zero(t, analyzer.calls)
}

func TestClear(t *testing.T) {
	c := NewController(&fakeAnalyzer{body: analysis}, nil)
	ctx := context.Background()

	_, err := c.Submit(ctx, "s1", Submission{Filename: "ada.pdf", Content: testutil.SamplePDF(1), APIKey: "sk"})
	require.NoError(t, err)
	require.NoError(t, c.Clear(ctx, "s1"))

	state, err := c.State(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, state.Report)
	assert.Empty(t, state.Error)
}
