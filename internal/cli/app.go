package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/bitleak/lmstfy/client"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"wash-sync-backend/config"
	"wash-sync-backend/internal/api"
	"wash-sync-backend/internal/board"
	"wash-sync-backend/internal/codec"
	"wash-sync-backend/internal/crm"
	"wash-sync-backend/internal/db"
	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/metrics"
	"wash-sync-backend/internal/mw"
	"wash-sync-backend/internal/notification"
	"wash-sync-backend/internal/queue"
	"wash-sync-backend/internal/reconcile"
	"wash-sync-backend/internal/statemachine"
	"wash-sync-backend/internal/store"
	"wash-sync-backend/internal/syncbus"
	"wash-sync-backend/internal/syncworker"
	"wash-sync-backend/internal/webhook"
)

// App is the wired service shared by every command.
type App struct {
	Config    *config.Config
	Log       logger.Logger
	DB        *gorm.DB
	Store     store.Store
	Redis     *redis.Client
	Bus       *syncbus.Bus
	Queues    []queue.Queue
	CRM       *crm.Client
	Machine   *statemachine.Machine
	Reconcile *reconcile.Service
	Board     *board.Publisher
	Push      *notification.WorkerPool
	WebPush   *webpush.Options
	Devices   *mw.ResponseCache
}

// loadApp reads the configuration and opens the database.
func loadApp(opts *RootOptions) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", opts.ConfigPath(), err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return NewApp(cfg, log, gormDB)
}

// NewApp wires every component on top of an open database.
func NewApp(cfg *config.Config, log logger.Logger, gormDB *gorm.DB) (*App, error) {
	metrics.Register()

	app := &App{
		Config: cfg,
		Log:    log,
		DB:     gormDB,
		Store:  store.NewGormStore(gormDB),
		CRM:    crm.NewClient(cfg.CRM, log),
	}

	if cfg.Redis.Addr != "" {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	backends := queue.Backends{DB: gormDB, Redis: app.Redis, Log: log}
	if cfg.Queue.Driver == "lmstfy" {
		backends.Lmstfy = client.NewLmstfyClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	}
	for _, name := range syncbus.QueueNames {
		q, err := queue.New(cfg, name, backends)
		if err != nil {
			return nil, err
		}
		app.Queues = append(app.Queues, q)
	}
	app.Bus = syncbus.New(log, app.Queues...)

	app.Board = board.NewPublisher(app.Redis, log)
	app.Devices = mw.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)
	hooks := []statemachine.PostCommitHook{app.Board, api.InvalidateDevices(app.Devices)}

	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		app.WebPush = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		app.Push = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, app.WebPush, log)
		hooks = append(hooks, app.Push)
	} else {
		log.Warnf(context.Background(), "VAPID keys are not configured; web push is disabled")
	}

	hooks = append(hooks, app.Bus)
	app.Machine = statemachine.New(app.Store, log, hooks...)
	app.Reconcile = reconcile.New(app.Store, app.Bus, cfg.Reconcile, log)
	return app, nil
}

// Webhook builds the device webhook handler. It needs the codec keys.
func (a *App) Webhook() (*webhook.Handler, error) {
	c, err := codec.New(codec.Keys{
		DeviceID:   a.Config.Codec.DeviceID,
		SecretKey:  a.Config.Codec.SecretKey,
		PrivateKey: a.Config.Codec.PrivateKey,
		PublicKey:  a.Config.Codec.PublicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid codec keys: %w", err)
	}
	return webhook.NewHandler(c, a.Store, a.Machine, a.Config.Codec.OrderNoPrefix, a.Log), nil
}

// Workers creates one sync worker per queue.
func (a *App) Workers() []*syncworker.Worker {
	procs := syncworker.NewProcessors(a.Store, a.CRM, a.Log)
	opts := syncworker.Options{
		RatePerSec:   a.Config.Sync.RatePerSec,
		PollInterval: a.Config.Sync.PollInterval,
		JobTimeout:   a.Config.Sync.JobTimeout,
	}

	workers := make([]*syncworker.Worker, 0, len(a.Queues))
	for _, q := range a.Queues {
		proc, ok := procs[q.Name()]
		if !ok {
			continue
		}
		workers = append(workers, syncworker.NewWorker(q, proc, opts, a.Log))
	}
	return workers
}

// Close releases connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	_ = a.Log.Sync()
	return errors.Join(errs...)
}
