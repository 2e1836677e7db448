package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cvinsight/internal/backend"
	"cvinsight/internal/normalize"
	"cvinsight/internal/session"
	"cvinsight/internal/testutil"
	"cvinsight/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	processed []string
	active    atomic.Int32
	maxActive atomic.Int32
}

func (r *recorder) process(ctx context.Context, path string) error {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxActive.Load()
		if n <= m || r.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)

	r.mu.Lock()
	r.processed = append(r.processed, filepath.Base(path))
	r.mu.Unlock()
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.processed...)
}

func startWatcher(t *testing.T, inbox string, fn ProcessFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewInboxWatcher(inbox, 50*time.Millisecond, fn, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not start")
	}
}

func TestInboxWatcher_ProcessesExistingAndNewFiles(t *testing.T) {
	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "early.pdf"), testutil.SamplePDF(1), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("ignore me"), 0600))

	rec := &recorder{}
	startWatcher(t, inbox, rec.process)

	require.Eventually(t, func() bool { return len(rec.names()) == 1 }, 2*time.Second, 10*time.Millisecond)

	for _, name := range []string{"a.pdf", "b.PDF", "c.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(inbox, name), testutil.SamplePDF(1), 0600))
	}

	require.Eventually(t, func() bool { return len(rec.names()) == 4 }, 3*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"early.pdf", "a.pdf", "b.PDF", "c.pdf"}, rec.names())
	assert.Equal(t, int32(1), rec.maxActive.Load(), "files must be processed one at a time")
}

func TestInboxWatcher_DebouncesRepeatedWrites(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{}
	startWatcher(t, inbox, rec.process)

	path := filepath.Join(inbox, "cv.pdf")
	for range 5 {
		require.NoError(t, os.WriteFile(path, testutil.SamplePDF(1), 0600))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(rec.names()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, rec.names(), 1)
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, upload backend.Upload, apiKey string) (normalize.Value, error) {
	return normalize.Parse([]byte(`{"full_name": "Grace Hopper", "technical_skills": ["COBOL"]}`))
}

type fakeRenderer struct{ calls int }

func (f *fakeRenderer) Snapshot(ctx context.Context, report *types.Report) ([]byte, error) {
	f.calls++
	return []byte("%PDF-1.4 fake"), nil
}

func TestPipeline_WritesExports(t *testing.T) {
	inbox, outbox := t.TempDir(), filepath.Join(t.TempDir(), "out")
	src := filepath.Join(inbox, "grace.pdf")
	require.NoError(t, os.WriteFile(src, testutil.SamplePDF(1), 0600))

	renderer := &fakeRenderer{}
	p := &Pipeline{
		Controller: session.NewController(fakeAnalyzer{}, nil),
		APIKey:     "sk-test",
		Outbox:     outbox,
		Renderer:   renderer,
	}

	require.NoError(t, p.Process(context.Background(), src))

	data, err := os.ReadFile(filepath.Join(outbox, "grace_hopper.json"))
	require.NoError(t, err)
	var c types.NormalizedCandidate
	require.NoError(t, json.Unmarshal(data, &c))
	assert.Equal(t, "Grace Hopper", *c.FullName)

	pdf, err := os.ReadFile(filepath.Join(outbox, "grace-hopper.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(pdf))
	assert.Equal(t, 1, renderer.calls)
}

// echoAnalyzer answers with a fixed payload plus an email naming the uploaded file.
type echoAnalyzer string

func (a echoAnalyzer) Analyze(ctx context.Context, upload backend.Upload, apiKey string) (normalize.Value, error) {
	payload := fmt.Sprintf(`{%s"email": %q}`, string(a), upload.Filename+"@example.com")
	return normalize.Parse([]byte(payload))
}

func TestPipeline_OutputNamesNeverCollide(t *testing.T) {
	tests := []struct {
		name     string
		fields   string
		inputs   []string
		expected map[string]string
	}{
		{
			name:   "nameless candidates use the inbox file name",
			inputs: []string{"a.pdf", "b.pdf"},
			expected: map[string]string{
				"a.json": "a.pdf@example.com",
				"b.json": "b.pdf@example.com",
			},
		},
		{
			name:   "same candidate twice gets a numbered file",
			fields: `"full_name": "Grace Hopper", `,
			inputs: []string{"first.pdf", "second.pdf"},
			expected: map[string]string{
				"grace_hopper.json":   "first.pdf@example.com",
				"grace_hopper-2.json": "second.pdf@example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbox, outbox := t.TempDir(), t.TempDir()
			p := &Pipeline{
				Controller: session.NewController(echoAnalyzer(tt.fields), nil),
				APIKey:     "sk-test",
				Outbox:     outbox,
			}

			for _, in := range tt.inputs {
				src := filepath.Join(inbox, in)
				require.NoError(t, os.WriteFile(src, testutil.SamplePDF(1), 0600))
				require.NoError(t, p.Process(context.Background(), src))
			}

			entries, err := os.ReadDir(outbox)
			require.NoError(t, err)
			assert.Len(t, entries, len(tt.inputs))

			for file, email := range tt.expected {
				data, err := os.ReadFile(filepath.Join(outbox, file))
				require.NoError(t, err, file)
				var c types.NormalizedCandidate
				require.NoError(t, json.Unmarshal(data, &c))
				require.NotNil(t, c.Email)
				assert.Equal(t, email, *c.Email)
			}
		})
	}
}

func TestPipeline_RejectsNonPDF(t *testing.T) {
	inbox := t.TempDir()
	src := filepath.Join(inbox, "fake.pdf")
	require.NoError(t, os.WriteFile(src, []byte("not really a pdf"), 0600))

	p := &Pipeline{
		Controller: session.NewController(fakeAnalyzer{}, nil),
		APIKey:     "sk-test",
		Outbox:     t.TempDir(),
	}

	err := p.Process(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please select a PDF file")
}
