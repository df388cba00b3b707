package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/database"
	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/meme/session"
)

// lockTTL bounds how long a crashed handler can hold a chat's redis lock.
const lockTTL = 2 * time.Minute

// Options control the bootstrap pipeline. Nil hooks use the defaults.
type Options struct {
	Config *config.Config

	LoggerInit func(*config.Config) error
	Connect    func(context.Context, database.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, database.Config) error
}

// Result exposes the session infrastructure selected by configuration.
type Result struct {
	Store  session.Store
	Locker session.Locker
}

// Close releases the store.
func (r *Result) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Run initializes the logger and opens the configured session backend,
// applying migrations first when the backend is postgres and auto_migrate
// is set.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.Init
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	start := time.Now()
	res, err := openSession(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, logger.CompStore, "session.opened",
		slog.String("backend", cfg.Session.Backend),
		slog.String("lock", cfg.Session.Lock),
		slog.Duration("duration", logger.Took(start)),
	)
	return res, nil
}

func openSession(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	sc := cfg.Session
	res := &Result{}

	switch sc.Backend {
	case config.BackendRedis:
		store, err := session.NewRedis(sc.Redis.URL, sc.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: redis store: %w", err)
		}
		res.Store = store
		if sc.Lock == config.LockRedis {
			res.Locker = session.NewRedisLocker(store.Client(), sc.Redis.Prefix, lockTTL)
		}
	case config.BackendPostgres:
		if cfg.Database.AutoMigrate {
			migrate := opts.Migrate
			if migrate == nil {
				migrate = database.RunMigrations
			}
			if err := migrate(ctx, cfg.Database); err != nil {
				return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
			}
		}
		connect := opts.Connect
		if connect == nil {
			connect = database.Connect
		}
		db, err := connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.Store = session.NewSQL(db)
	case config.BackendBolt:
		store, err := session.OpenBolt(sc.Bolt.Path, sc.Bolt.Bucket)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: bolt store: %w", err)
		}
		res.Store = store
	case config.BackendMemory:
		res.Store = session.NewMemoryStore()
	default:
		return nil, fmt.Errorf("bootstrap: unknown session backend %q", sc.Backend)
	}

	if res.Locker == nil {
		if sc.Lock == config.LockMemory {
			res.Locker = session.NewMemoryLocker()
		} else {
			res.Locker = session.NoLock{}
		}
	}
	return res, nil
}

// WaitReady pings the store until it answers or ctx ends.
func WaitReady(ctx context.Context, store session.Store, every time.Duration) error {
	if every <= 0 {
		every = time.Second
	}
	for attempt := 1; ; attempt++ {
		err := store.Ping(ctx)
		if err == nil {
			return nil
		}
		logger.Warn(ctx, logger.CompStore, "session.not_ready",
			slog.Int("attempt", attempt),
			slog.String("err_code", "store_not_ready"),
			slog.Any("err", err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("session store not ready: %w", err)
		case <-time.After(every):
		}
	}
}
