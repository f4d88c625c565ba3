package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dkeye/hearth/internal/adapters/store/memory"
	"github.com/dkeye/hearth/internal/adapters/store/sqlite"
	"github.com/dkeye/hearth/internal/app/gateway"
	"github.com/dkeye/hearth/internal/app/orch"
	"github.com/dkeye/hearth/internal/config"
	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/logging"
)

// accountStore is a store that can also provision users and servers.
type accountStore interface {
	core.Store
	CreateUser(ctx context.Context, u domain.User) error
	IssueToken(ctx context.Context, user domain.UserID, token string) error
	CreateServer(ctx context.Context, srv domain.Server) error
	AddMember(ctx context.Context, m domain.Member) error
}

type app struct {
	cfg   *config.Config
	store accountStore
	logs  io.Closer
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logs := logging.Setup(cfg.Mode, cfg.Log)
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	return &app{cfg: cfg, store: store, logs: logs}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (accountStore, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(ctx, sqlite.Config{Path: cfg.Path, PoolSize: cfg.PoolSize})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func (a *app) close() {
	_ = a.store.Close()
	_ = a.logs.Close()
}

func (a *app) newOrchestrator(knocks orch.Limiter) *orch.Orchestrator {
	var policy gateway.Policy = gateway.DropPolicy{}
	if a.cfg.KickSlow {
		policy = gateway.KickPolicy{}
	}
	gw := gateway.New(gateway.Options{Policy: policy})
	o := orch.New(gw, a.store)
	o.Content.MaxLen = a.cfg.MaxMessageLength
	if a.cfg.RoomCleanupDelay > 0 {
		o.CleanupDelay = a.cfg.RoomCleanupDelay
	}
	if knocks != nil {
		o.Knocks = knocks
	}
	return o
}
