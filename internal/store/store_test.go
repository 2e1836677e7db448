package store

import (
	"context"
	"os"
	"testing"
	"time"

	"cvinsight/internal/config"
	"cvinsight/internal/errors"
	"cvinsight/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *Entry {
	name := "Ada Lovelace"
	return &Entry{
		Report: &types.Report{
			ID:        "r-1",
			Source:    "ada.pdf",
			Candidate: types.NormalizedCandidate{FullName: &name, TechnicalSkills: []string{"Go"}},
		},
	}
}

// exerciseStore runs the behaviour every ReportStore must share.
func exerciseStore(t *testing.T, s ReportStore) {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Put(ctx, id, sampleEntry()))
	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Report)
	assert.Equal(t, "Ada Lovelace", *got.Report.Candidate.FullName)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, s.Put(ctx, id, &Entry{Error: "Please select a PDF file"}))
	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Report)
	assert.Equal(t, "Please select a PDF file", got.Error)

	require.NoError(t, s.Delete(ctx, id))
	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(context.Background(), "a", sampleEntry()))

	now = now.Add(30 * time.Second)
	got, err := s.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.NotNil(t, got)

	now = now.Add(time.Minute)
	got, err = s.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_SweepDropsUnvisitedSessions(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.mu.Lock()
	s.now = func() time.Time { return now }
	s.mu.Unlock()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "abandoned-1", sampleEntry()))
	require.NoError(t, s.Put(ctx, "abandoned-2", &Entry{Error: "Request failed"}))

	now = now.Add(30 * time.Second)
	require.NoError(t, s.Put(ctx, "active", sampleEntry()))

	now = now.Add(45 * time.Second)
	assert.Equal(t, 2, s.sweep())
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(ctx, "active")
	require.NoError(t, err)
	assert.NotNil(t, got)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a", &Entry{Error: "first"}))

	got, _ := s.Get(ctx, "a")
	got.Error = "mutated"

	again, _ := s.Get(ctx, "a")
	assert.Equal(t, "first", again.Error)
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), config.StoreConfig{Backend: "memory", TTL: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(context.Background(), config.StoreConfig{Backend: "etcd"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CVINSIGHT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CVINSIGHT_TEST_REDIS_ADDR not set")
	}

	s, err := NewRedisStore(context.Background(), config.RedisConfig{
		Addr:      addr,
		KeyPrefix: "cvinsight:test:",
	}, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}

func TestNewRedisStore_RequiresAddr(t *testing.T) {
	_, err := NewRedisStore(context.Background(), config.RedisConfig{}, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
}
