// Package app собирает реестр из конфигурации: хранилище в памяти, сервисы,
// логгер и постоянное хранилище снимков. Снимок читается при старте и пишется при закрытии.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clinic/internal/config"
	"clinic/internal/platform/logger"
	"clinic/internal/repository"
	"clinic/internal/service"
	"clinic/internal/storage"
	"clinic/internal/storage/jsonfile"
	"clinic/internal/storage/postgres"
)

type App struct {
	Catalog  *service.CatalogService
	Registry *service.Registry
	Logger   *slog.Logger

	store   *repository.MemoryStore
	persist storage.Store
	closers []func() error
}

// New собирает приложение и загружает сохранённое состояние, если оно есть
func New(ctx context.Context, cfg *config.Config, l *slog.Logger) (*App, error) {
	if l == nil {
		l = logger.Setup(cfg.Log)
	}
	policy, err := service.ParseMutationPolicy(cfg.Registry.MutationPolicy)
	if err != nil {
		return nil, err
	}

	store := repository.NewMemoryStore()
	queue := repository.NewMemoryQueue(store)
	log := repository.NewMemoryLog(store)
	tx := repository.NewMemoryTx(store)

	registry, err := service.NewRegistry(store, store, queue, log, tx, service.Options{
		MaxOpenPerOwner: cfg.Registry.MaxOpenPerOwner,
		Mutation:        policy,
		Logger:          l,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		Catalog:  service.NewCatalogService(store, store, queue, log, tx, l),
		Registry: registry,
		Logger:   l,
		store:    store,
	}
	if err := a.openStore(ctx, cfg.Store); err != nil {
		return nil, err
	}
	if err := a.Load(ctx); err != nil {
		_ = a.closeAll()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.Driver {
	case "memory", "":
		return nil
	case "jsonfile":
		a.persist = jsonfile.New(cfg.Path)
		return nil
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			_ = a.closeAll()
			return err
		}
		a.persist = pg
		return nil
	}
	return fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// Load заменяет состояние в памяти сохранённым снимком. Отсутствие снимка означает пустой реестр.
func (a *App) Load(ctx context.Context) error {
	if a.persist == nil {
		return nil
	}
	snap, err := a.persist.Load(ctx)
	if errors.Is(err, storage.ErrStoreNotFound) {
		a.Logger.Info("no saved state, starting empty")
		return nil
	}
	if err != nil {
		return err
	}
	st, err := snap.ToState()
	if err != nil {
		return err
	}
	a.store.ImportState(ctx, st)
	a.Logger.Info("state loaded",
		slog.Int("subjects", len(st.Subjects)),
		slog.Int("owners", len(st.Owners)),
		slog.Int("interactions", len(st.Interactions)),
		slog.Int("waiting", len(st.Queue)))
	return nil
}

// Save пишет текущее состояние; без постоянного хранилища ничего не делает
func (a *App) Save(ctx context.Context) error {
	if a.persist == nil {
		return nil
	}
	if err := a.persist.Save(ctx, storage.FromState(a.store.ExportState(ctx))); err != nil {
		return err
	}
	a.Logger.Debug("state saved")
	return nil
}

// Close сохраняет состояние и освобождает ресурсы
func (a *App) Close(ctx context.Context) error {
	err := a.Save(ctx)
	return errors.Join(err, a.closeAll())
}

func (a *App) closeAll() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
