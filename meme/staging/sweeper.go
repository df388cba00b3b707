// Package staging keeps the on-disk image staging area from growing without
// bound. Files there are transient: downloaded sources, rendered memes and
// their copies are each sent once and then left behind.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/logger"
)

// Counter receives the number of removed files per sweep.
type Counter interface {
	FilesSwept(n int)
}

// Sweeper deletes regular files older than MaxAge from Dir.
type Sweeper struct {
	dir      string
	interval time.Duration
	maxAge   time.Duration
	counter  Counter
}

// New builds a sweeper from normalized staging config. counter may be nil.
func New(cfg config.StagingConfig, counter Counter) *Sweeper {
	return &Sweeper{
		dir:      cfg.Dir,
		interval: cfg.SweepInterval,
		maxAge:   cfg.MaxAge,
		counter:  counter,
	}
}

// Prepare creates the staging dir when missing.
func (s *Sweeper) Prepare() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	return nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info(ctx, logger.CompSweep, "sweep.started",
		slog.String("dir", s.dir),
		slog.Duration("interval", s.interval),
	)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.Sweep(now); err != nil {
				logger.Warn(ctx, logger.CompSweep, "sweep.failed", slog.Any("err", err))
			}
		}
	}
}

// Sweep removes stale files relative to now and returns how many went away.
// Subdirectories are left alone. A missing dir is not an error.
func (s *Sweeper) Sweep(now time.Time) (int, error) {
	start := time.Now()
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read staging dir: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if now.Sub(info.ModTime()) <= s.maxAge {
			continue
		}
		err = os.Remove(filepath.Join(s.dir, entry.Name()))
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
		default:
			errs = append(errs, err)
		}
	}

	if s.counter != nil && removed > 0 {
		s.counter.FilesSwept(removed)
	}
	err = errors.Join(errs...)
	logger.Debug(context.Background(), logger.CompSweep, "sweep.done",
		slog.String("status", logger.Status(err)),
		slog.Int("removed", removed),
		slog.Int("scanned", len(entries)),
		slog.Duration("duration", logger.Took(start)),
	)
	return removed, err
}
