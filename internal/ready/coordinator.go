package ready

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"derivate/internal/catalog"
	"derivate/internal/config"
	"derivate/internal/derive"
	"derivate/internal/filestore"
	"derivate/internal/fileutil"
	"derivate/internal/logging"
	"derivate/internal/store"
)

// State classifies the outcome of a derivative request.
type State string

const (
	// StateReady means the final file exists and can be served.
	StateReady State = "ready"
	// StateQueued means a background build was dispatched; retry later.
	StateQueued State = "queued"
)

var (
	// ErrUnknownType rejects type keys absent from the catalog.
	ErrUnknownType = errors.New("derivative type is not supported")
	// ErrMediaLevel rejects media-level types on the item endpoint.
	ErrMediaLevel = errors.New("derivative type is not an item-level type")
	// ErrDisabled rejects types not administratively enabled.
	ErrDisabled = errors.New("derivative type is not enabled")
	// ErrNotReady reports a static-mode derivative that has not been
	// produced by its out-of-band process yet.
	ErrNotReady = errors.New("derivative is not ready")
	// ErrInfeasible reports that the item has no eligible media for the type.
	ErrInfeasible = errors.New("item has no media eligible for this derivative")
	// ErrInProgress reports a build already running; retry later.
	ErrInProgress = errors.New("derivative is being created, come back later")
)

// Request is one item-level derivative query.
type Request struct {
	TypeKey string
	ItemID  int64
	// Force bypasses the already-ready shortcut and rebuilds.
	Force bool
	// Prepare probes and triggers only; no file bytes are served and no
	// synchronous build is started.
	Prepare bool
}

// Result is a successful request outcome.
type Result struct {
	State State
	Spec  catalog.TypeSpec
	// Path is the final file path, set when State is StateReady.
	Path string
}

// jobPayload is the resolved-media snapshot carried by queued builds.
type jobPayload struct {
	Entries []derive.Entry `json:"entries"`
}

// Coordinator runs the readiness state machine over the resolver, the
// builder and the job queue.
type Coordinator struct {
	cfg      *config.Config
	store    *store.Store
	files    *filestore.Local
	resolver *derive.Resolver
	builder  *derive.Builder
	logger   *slog.Logger
}

// NewCoordinator constructs a coordinator.
func NewCoordinator(cfg *config.Config, st *store.Store, files *filestore.Local, resolver *derive.Resolver, builder *derive.Builder, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		store:    st,
		files:    files,
		resolver: resolver,
		builder:  builder,
		logger:   logging.NewComponentLogger(logger, "ready"),
	}
}

// Handle runs the state machine for one request. The returned error is
// one of the package sentinels, a store.ErrNotFound wrap, or a build
// failure.
func (c *Coordinator) Handle(ctx context.Context, req Request) (*Result, error) {
	spec, ok := catalog.Lookup(req.TypeKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, req.TypeKey)
	}
	if spec.Level == catalog.LevelMedia {
		return nil, fmt.Errorf("%w: %q", ErrMediaLevel, req.TypeKey)
	}
	if !c.cfg.TypeEnabled(req.TypeKey) {
		return nil, fmt.Errorf("%w: %q", ErrDisabled, req.TypeKey)
	}
	item, err := c.store.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	finalPath := derive.ItemPath(c.cfg.Paths.BasePath, spec, item.ID)
	if !req.Force && fileutil.ReadableFile(finalPath) {
		return &Result{State: StateReady, Spec: spec, Path: finalPath}, nil
	}

	if spec.Mode == catalog.ModeStatic {
		return nil, fmt.Errorf("%w: %q is produced out of band", ErrNotReady, req.TypeKey)
	}

	if fileutil.FileSize(derive.TempPath(finalPath)) > 0 {
		return nil, ErrInProgress
	}

	if req.TypeKey == "alto" && !c.builder.AltoSupported() {
		return nil, fmt.Errorf("%w: no alto merger is configured", ErrInfeasible)
	}

	entries, err := c.resolver.Resolve(ctx, item.ID, req.TypeKey)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrInfeasible
	}

	if !req.Prepare && c.buildableSync(spec, entries) {
		path, err := c.builder.Build(ctx, spec, item.ID, entries)
		if err != nil {
			if errors.Is(err, derive.ErrInProgress) {
				return nil, ErrInProgress
			}
			return nil, err
		}
		return &Result{State: StateReady, Spec: spec, Path: path}, nil
	}

	if err := c.enqueue(ctx, item.ID, req.TypeKey, entries); err != nil {
		return nil, err
	}
	return &Result{State: StateQueued, Spec: spec}, nil
}

// PrepareItem queues builds for a set of item-level types at once. An
// empty set means every enabled item-level type. Media-level, unknown
// and disabled keys in the set are skipped, as are types that turn out
// infeasible or already ready; the returned map records the outcome per
// attempted type.
func (c *Coordinator) PrepareItem(ctx context.Context, itemID int64, keys []string) (map[string]State, error) {
	if _, err := c.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		keys = c.cfg.Derivatives.Enabled
	}

	states := make(map[string]State, len(keys))
	for _, key := range keys {
		spec, ok := catalog.Lookup(key)
		if !ok || spec.Level == catalog.LevelMedia || !c.cfg.TypeEnabled(key) {
			continue
		}
		result, err := c.Handle(ctx, Request{TypeKey: key, ItemID: itemID, Prepare: true})
		switch {
		case err == nil:
			states[key] = result.State
		case errors.Is(err, ErrInfeasible), errors.Is(err, ErrNotReady):
			continue
		case errors.Is(err, ErrInProgress):
			states[key] = StateQueued
		default:
			return nil, fmt.Errorf("prepare %s: %w", key, err)
		}
	}
	return states, nil
}

// buildableSync reports whether this build may block the request.
func (c *Coordinator) buildableSync(spec catalog.TypeSpec, entries []derive.Entry) bool {
	switch spec.Mode {
	case catalog.ModeLive:
		return true
	case catalog.ModeDynamicLive:
		if !spec.SizeAware {
			return true
		}
		return derive.TotalSize(entries) < c.cfg.ThresholdBytes()
	default:
		return false
	}
}

// enqueue dispatches a background build carrying the resolved snapshot.
// An already pending or running build for the same item and type is not
// duplicated; the queued job covers this request too.
func (c *Coordinator) enqueue(ctx context.Context, itemID int64, typeKey string, entries []derive.Entry) error {
	pending, err := c.store.PendingBuildExists(ctx, itemID, typeKey)
	if err != nil {
		return err
	}
	if pending {
		c.logger.Info("build already queued",
			slog.Int64("item_id", itemID), slog.String("type", typeKey))
		return nil
	}

	payload, err := json.Marshal(jobPayload{Entries: entries})
	if err != nil {
		return fmt.Errorf("encode build payload: %w", err)
	}
	job, err := c.store.EnqueueJob(ctx, store.Job{
		Kind:    store.JobBuildItem,
		ItemID:  itemID,
		TypeKey: typeKey,
		Payload: string(payload),
	})
	if err != nil {
		return fmt.Errorf("enqueue build: %w", err)
	}
	c.logger.Info("build queued",
		slog.Int64("item_id", itemID),
		slog.String("type", typeKey),
		slog.String("job_id", job.ID))
	return nil
}

// DecodePayload restores the resolved-media snapshot of a queued build.
// An empty payload yields nil entries; the worker re-resolves then.
func DecodePayload(payload string) ([]derive.Entry, error) {
	if payload == "" || payload == "{}" {
		return nil, nil
	}
	var decoded jobPayload
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, fmt.Errorf("decode build payload: %w", err)
	}
	return decoded.Entries, nil
}
