package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"derivate/internal/catalog"
	"derivate/internal/config"
	"derivate/internal/derive"
	"derivate/internal/filestore"
	"derivate/internal/logging"
	"derivate/internal/ready"
	"derivate/internal/store"
	"derivate/internal/transcode"
)

// Worker claims queued jobs one at a time and executes them. Builds and
// transcodes run sequentially; the queue is the only concurrency control.
type Worker struct {
	cfg        *config.Config
	store      *store.Store
	files      *filestore.Local
	resolver   *derive.Resolver
	builder    *derive.Builder
	transcoder *transcode.Transcoder
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a worker.
func New(cfg *config.Config, st *store.Store, files *filestore.Local, resolver *derive.Resolver, builder *derive.Builder, transcoder *transcode.Transcoder, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:        cfg,
		store:      st,
		files:      files,
		resolver:   resolver,
		builder:    builder,
		transcoder: transcoder,
		logger:     logging.NewComponentLogger(logger, "worker"),
	}
}

// Start begins background processing.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.store.ClaimNextJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("claim next job failed", logging.Error(err))
			w.sleep(ctx)
			continue
		}
		if job == nil {
			w.sleep(ctx)
			continue
		}

		w.execute(ctx, job)
	}
}

func (w *Worker) sleep(ctx context.Context) {
	interval := time.Duration(w.cfg.Worker.PollInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}

// execute runs one claimed job and records its outcome. Outcome writes
// use a fresh context so a shutdown mid-job still leaves a final status.
func (w *Worker) execute(ctx context.Context, job *store.Job) {
	log := w.logger.With(
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
	)
	log.Info("job started")

	var err error
	switch job.Kind {
	case store.JobBuildItem:
		err = w.buildItem(ctx, job)
	case store.JobTranscodeMedia:
		err = w.transcodeMedia(ctx, job.MediaID)
	case store.JobTranscodeItem:
		err = w.transcodeItem(ctx, job.ItemID)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		log.Error("job failed", logging.Error(err))
	} else {
		log.Info("job completed")
	}

	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if finishErr := w.store.FinishJob(finishCtx, job.ID, errMsg); finishErr != nil {
		log.Error("record job outcome failed", logging.Error(finishErr))
	}
}

func (w *Worker) buildItem(ctx context.Context, job *store.Job) error {
	spec, ok := catalog.Lookup(job.TypeKey)
	if !ok || spec.Level != catalog.LevelItem {
		return fmt.Errorf("type %q is not an item-level type", job.TypeKey)
	}
	if !w.cfg.TypeEnabled(job.TypeKey) {
		return fmt.Errorf("type %q is not enabled", job.TypeKey)
	}
	if _, err := w.store.GetItem(ctx, job.ItemID); err != nil {
		return err
	}

	// Prefer the snapshot resolved when the job was queued, so the build
	// reflects exactly what the enqueuing request saw.
	entries, err := ready.DecodePayload(job.Payload)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		entries, err = w.resolver.Resolve(ctx, job.ItemID, job.TypeKey)
		if err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		return fmt.Errorf("item %d has no media eligible for %q", job.ItemID, job.TypeKey)
	}

	_, err = w.builder.Build(ctx, spec, job.ItemID, entries)
	return err
}

func (w *Worker) transcodeMedia(ctx context.Context, mediaID int64) error {
	media, err := w.store.GetMedia(ctx, mediaID)
	if err != nil {
		return err
	}
	return w.transcoder.Run(ctx, media)
}

func (w *Worker) transcodeItem(ctx context.Context, itemID int64) error {
	medias, err := w.store.ListMedia(ctx, itemID)
	if err != nil {
		return err
	}
	var failed []error
	for _, media := range medias {
		if !media.Managed() {
			continue
		}
		if err := w.transcoder.Run(ctx, media); err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed = append(failed, fmt.Errorf("media %d: %w", media.ID, err))
		}
	}
	return errors.Join(failed...)
}
