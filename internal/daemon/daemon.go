package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"derivate/internal/config"
	"derivate/internal/deps"
	"derivate/internal/derive"
	"derivate/internal/filestore"
	"derivate/internal/logging"
	"derivate/internal/ready"
	"derivate/internal/server"
	"derivate/internal/store"
	"derivate/internal/transcode"
	"derivate/internal/worker"
)

// Daemon owns the background worker and the HTTP server and enforces
// single-instance execution per data directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	files  *filestore.Local
	worker *worker.Worker
	server *server.Server
	coord  *ready.Coordinator

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon and its full component graph.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil {
		return nil, errors.New("daemon requires config, store and logger")
	}

	files, err := filestore.NewLocal(cfg.Paths.BasePath)
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}

	resolver := derive.NewResolver(st, files)
	builder := derive.NewBuilder(cfg, logger)
	transcoder := transcode.New(cfg, st, files, logger)
	coord := ready.NewCoordinator(cfg, st, files, resolver, builder, logger)

	lockPath := filepath.Join(cfg.Paths.DataDir, "derivated.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		files:    files,
		worker:   worker.New(cfg, st, files, resolver, builder, transcoder, logger),
		server:   server.New(cfg, st, coord, logger),
		coord:    coord,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Worker exposes the lifecycle hooks carried by the job worker.
func (d *Daemon) Worker() *worker.Worker {
	return d.worker
}

// Start acquires the instance lock and launches the worker and server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another derivated instance is already running")
	}

	for _, status := range deps.Missing(deps.Check(d.cfg)) {
		d.logger.Warn("required tool unavailable",
			slog.String("tool", status.Name),
			slog.String("command", status.Command),
			slog.String("detail", status.Detail))
	}
	if d.cfg.TypeEnabled("alto") {
		d.logger.Warn("alto is enabled but no merger is configured; requests will report it as infeasible")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.worker.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start worker: %w", err)
	}
	if err := d.server.Start(runCtx); err != nil {
		d.worker.Stop()
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("derivated started", slog.String("lock", d.lockPath))
	return nil
}

// Stop stops the server and worker and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.worker.Stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("derivated stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
