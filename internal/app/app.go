// Package app wires configuration into the repositories, collaborators and
// services shared by the HTTP server and the planctl CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fithero/planner/internal/achievement"
	"fithero/planner/internal/config"
	"fithero/planner/internal/generator"
	"fithero/planner/internal/lock"
	"fithero/planner/internal/logger"
	"fithero/planner/internal/repository"
	"fithero/planner/internal/repository/memory"
	"fithero/planner/internal/repository/mongo"
	"fithero/planner/internal/service"
	"fithero/planner/internal/storage"
)

const indexTimeout = time.Minute

type App struct {
	Config config.Config
	Log    *logger.Logger
	Store  repository.Store

	Plans        service.PlanService
	Daily        service.DailyService
	Achievements service.AchievementService
	Renewal      service.RenewalService

	closers []func() error
}

// Options overrides collaborators that are otherwise built from config.
type Options struct {
	Generator generator.Generator
	Archive   storage.Archive
}

// New connects every backing service named in cfg and builds the services.
// On failure anything already opened is closed again.
func New(ctx context.Context, cfg config.Config, log *logger.Logger, opts Options) (a *App, err error) {
	log = logger.OrNop(log)
	a = &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	// --- Repositories ---
	if err = a.openStore(ctx); err != nil {
		return
	}

	// --- Generation lock ---
	var locker lock.Locker = lock.NewLocalLocker(cfg.Redis.LockWait)
	if cfg.Redis.Addr != "" {
		rdb, dialErr := lock.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if dialErr != nil {
			err = fmt.Errorf("connect redis: %w", dialErr)
			return
		}
		a.closers = append(a.closers, rdb.Close)
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTL, cfg.Redis.LockWait, log)
		log.Info("Using Redis generation lock", "addr", cfg.Redis.Addr)
	}

	// --- Raw payload archive ---
	archive := opts.Archive
	if archive == nil && cfg.S3.BucketName != "" {
		archive, err = storage.NewS3Storage(ctx, cfg.S3, log)
		if err != nil {
			err = fmt.Errorf("initialize s3 archive: %w", err)
			return
		}
	}
	if archive == nil {
		log.Warn("Raw payload archive disabled, s3.bucket_name is empty")
	}

	gen := opts.Generator
	if gen == nil {
		gen = generator.NewHTTPClient(cfg.AI, log)
	}

	loc, err := cfg.Achievements.Location()
	if err != nil {
		return
	}

	// --- Services ---
	a.Plans = service.NewPlanService(a.Store.Plans, gen, locker, archive, service.PlanOptions{
		RegenerationMode: cfg.Plans.RegenerationMode,
		ArchivePrefix:    cfg.S3.ArchivePrefix,
		PresignExpiry:    cfg.S3.PresignExpiry,
		GenerateTimeout:  cfg.AI.Timeout,
	}, log)
	a.Daily = service.NewDailyService(a.Store.Plans, a.Store.Slices, cfg.Plans.SweepConcurrency, log)
	a.Achievements = service.NewAchievementService(a.Store, achievement.NewEngine(loc), log)
	a.Renewal = service.NewRenewalService(a.Plans, a.Store, service.RenewalOptions{
		ActiveWindow: cfg.Plans.RenewalActiveWindow,
		Concurrency:  cfg.Plans.SweepConcurrency,
	}, log)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.Driver == "memory" {
		a.Log.Warn("Using in-memory store, data is lost on exit")
		a.Store = memory.New().Repositories()
		return nil
	}

	client, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	a.closers = append(a.closers, func() error { return mongo.DisconnectDB(client) })
	db := client.Database(cfg.Name)

	idxCtx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()
	if err := mongo.EnsureIndexes(idxCtx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	a.Store = mongo.NewStore(db)
	a.Log.Info("Database connection established", "database", cfg.Name)
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
