package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/database"
	"github.com/m3rciful/memebot/meme/session"
)

func noLogger(*config.Config) error { return nil }

func TestRun_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := []struct {
		name   string
		sc     config.SessionConfig
		store  any
		locker any
	}{
		{"memory", config.SessionConfig{Backend: config.BackendMemory, Lock: config.LockNone}, &session.MemoryStore{}, session.NoLock{}},
		{"memory with lock", config.SessionConfig{Backend: config.BackendMemory, Lock: config.LockMemory}, &session.MemoryStore{}, &session.MemoryLocker{}},
		{"redis", config.SessionConfig{
			Backend: config.BackendRedis, Lock: config.LockRedis,
			Redis: config.RedisConfig{URL: "redis://" + mr.Addr()},
		}, &session.RedisStore{}, &session.RedisLocker{}},
		{"bolt", config.SessionConfig{
			Backend: config.BackendBolt, Lock: config.LockNone,
			Bolt: config.BoltConfig{Path: filepath.Join(t.TempDir(), "s.db"), Bucket: "sessions"},
		}, &session.BoltStore{}, session.NoLock{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Run(context.Background(), Options{
				Config:     &config.Config{Session: tc.sc},
				LoggerInit: noLogger,
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = res.Close() })
			assert.IsType(t, tc.store, res.Store)
			assert.IsType(t, tc.locker, res.Locker)
			require.NoError(t, res.Store.Ping(context.Background()))
		})
	}
}

func TestRun_PostgresMigratesFirst(t *testing.T) {
	var order []string
	_, err := Run(context.Background(), Options{
		Config: &config.Config{
			Session:  config.SessionConfig{Backend: config.BackendPostgres},
			Database: config.DatabaseConfig{AutoMigrate: true},
		},
		LoggerInit: noLogger,
		Migrate: func(context.Context, database.Config) error {
			order = append(order, "migrate")
			return nil
		},
		Connect: func(context.Context, database.Config) (*sqlx.DB, error) {
			order = append(order, "connect")
			return nil, errors.New("connection refused")
		},
	})
	require.Error(t, err)
	assert.Equal(t, []string{"migrate", "connect"}, order)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{
		Config:     &config.Config{},
		LoggerInit: func(*config.Config) error { return errors.New("bad sink") },
	})
	assert.ErrorContains(t, err, "logger init failed")

	_, err = Run(context.Background(), Options{
		Config:     &config.Config{Session: config.SessionConfig{Backend: "etcd"}},
		LoggerInit: noLogger,
	})
	assert.ErrorContains(t, err, "unknown session backend")
}

type flakyStore struct {
	session.MemoryStore
	failures int
}

func (f *flakyStore) Ping(context.Context) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("LOADING Redis is loading the dataset in memory")
	}
	return nil
}

func TestWaitReady(t *testing.T) {
	store := &flakyStore{failures: 2}
	require.NoError(t, WaitReady(context.Background(), store, time.Millisecond))
	assert.Zero(t, store.failures)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := WaitReady(ctx, &flakyStore{failures: 1 << 20}, 5*time.Millisecond)
	assert.ErrorContains(t, err, "not ready")
}
