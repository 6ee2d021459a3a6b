package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clearclaim/billaudit/internal/common"
)

// NewFromConfig opens the configured backend.
func NewFromConfig(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (BillStore, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "bolt":
		return NewBolt(cfg.BoltPath)
	case "redis":
		return NewRedis(cfg)
	case "postgres":
		return NewPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
