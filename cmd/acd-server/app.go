package main

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/vehicle-quality/acd-registry/pkg/authz"
	"github.com/vehicle-quality/acd-registry/pkg/cache"
	"github.com/vehicle-quality/acd-registry/pkg/config"
	"github.com/vehicle-quality/acd-registry/pkg/db"
	"github.com/vehicle-quality/acd-registry/pkg/investigation"
	"github.com/vehicle-quality/acd-registry/pkg/logging"
	"github.com/vehicle-quality/acd-registry/pkg/seed"
)

// app wires the database, the investigation service and the response cache.
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	svc    *investigation.Service
	cache  *cache.CacheManager
	logger *slog.Logger
}

func newApp(cfg *config.Config, opts ...investigation.Option) (*app, error) {
	gdb, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}

	// Cached bodies depend on the caller role, so the role header is part of the key.
	cm := cache.NewCacheManager(&cfg.Cache, authz.RoleHeader)

	base := []investigation.Option{
		investigation.WithStrictTransitions(cfg.Lifecycle.StrictTransitions),
		investigation.WithCommitHook(cm.InvalidateAll),
	}
	svc := investigation.NewService(gdb, append(base, opts...)...)

	return &app{
		cfg:    cfg,
		db:     gdb,
		svc:    svc,
		cache:  cm,
		logger: logging.New("server"),
	}, nil
}

func (a *app) migrate(ctx context.Context) error {
	return db.Migrate(ctx, a.db, a.svc)
}

func (a *app) seed(ctx context.Context) (int, error) {
	ds, err := seed.Default()
	if err != nil {
		return 0, err
	}
	return seed.Load(ctx, a.svc, ds, logging.New("seed"))
}

func (a *app) close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
