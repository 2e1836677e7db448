// Package store keeps per-session report state between requests.
package store

import (
	"context"
	"fmt"
	"time"

	"cvinsight/internal/config"
	"cvinsight/internal/errors"
	"cvinsight/internal/types"
)

// Entry is what a session remembers: the last report and the last error
// message. A new submission replaces both.
type Entry struct {
	Report    *types.Report `json:"report,omitempty"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ReportStore persists session entries. Get returns (nil, nil) for unknown
// or expired sessions.
type ReportStore interface {
	Get(ctx context.Context, sessionID string) (*Entry, error)
	Put(ctx context.Context, sessionID string, entry *Entry) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// New builds the store selected by configuration.
func New(ctx context.Context, cfg config.StoreConfig) (ReportStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.TTL), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis, cfg.TTL)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown store backend: %s", cfg.Backend), nil)
	}
}
