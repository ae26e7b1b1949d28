package derive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"derivate/internal/catalog"
	"derivate/internal/config"
	"derivate/internal/fileutil"
	"derivate/internal/logging"
)

var (
	// ErrInProgress reports that another build holds the provisional file.
	ErrInProgress = errors.New("derivative build already in progress")
	// ErrNoEntries rejects a build call with nothing to assemble.
	ErrNoEntries = errors.New("no eligible media to build from")
	// ErrAltoUnavailable marks the alto type as infeasible when no merger
	// collaborator is configured.
	ErrAltoUnavailable = errors.New("alto merge support is not available")
)

// Executor abstracts external tool execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (string, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}

// AltoMerger merges per-page ALTO XML fragments into a single document at
// outPath. The merge itself lives outside this module.
type AltoMerger interface {
	Merge(ctx context.Context, outPath string, entries []Entry) error
}

// BuilderOption configures the builder.
type BuilderOption func(*Builder)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) BuilderOption {
	return func(b *Builder) {
		if exec != nil {
			b.exec = exec
		}
	}
}

// WithAltoMerger wires the optional ALTO merge collaborator.
func WithAltoMerger(merger AltoMerger) BuilderOption {
	return func(b *Builder) {
		b.merger = merger
	}
}

// Builder materializes item-level derivative files.
type Builder struct {
	cfg    *config.Config
	exec   Executor
	merger AltoMerger
	logger *slog.Logger
}

// NewBuilder constructs a builder.
func NewBuilder(cfg *config.Config, logger *slog.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{
		cfg:    cfg,
		exec:   commandExecutor{},
		logger: logging.NewComponentLogger(logger, "derive"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AltoSupported reports whether a page merger was configured. Without
// one the alto type can never be built.
func (b *Builder) AltoSupported() bool {
	return b.merger != nil
}

// Build assembles the derivative for one item and type and returns the
// final path. The artifact is written to the provisional path first and
// renamed into place, so the final path is never partially written. A
// present provisional file means another build is running and yields
// ErrInProgress.
func (b *Builder) Build(ctx context.Context, spec catalog.TypeSpec, itemID int64, entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", ErrNoEntries
	}

	finalPath := ItemPath(b.cfg.Paths.BasePath, spec, itemID)
	if err := fileutil.EnsureDir(filepath.Dir(finalPath)); err != nil {
		return "", fmt.Errorf("create derivative directory: %w", err)
	}
	if err := os.Remove(finalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove existing derivative: %w", err)
	}

	tempPath := TempPath(finalPath)
	if fileutil.FileSize(tempPath) > 0 {
		return "", ErrInProgress
	}

	log := b.logger.With(
		slog.Int64("item_id", itemID),
		slog.String("type", spec.Key),
		slog.Int("entries", len(entries)),
	)
	log.Info("building derivative")

	var err error
	switch spec.Key {
	case "alto":
		err = b.buildAlto(ctx, tempPath, entries)
	case "pdf":
		err = b.buildPDF(ctx, tempPath, entries)
	case "text":
		err = b.buildTextExtracted(tempPath, entries)
	case "txt":
		err = b.buildTextFiles(tempPath, entries)
	case "zip", "zipm", "zipo":
		err = b.buildZip(tempPath, entries)
	default:
		err = fmt.Errorf("type %q has no builder", spec.Key)
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return "", err
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("publish derivative: %w", err)
	}
	// Group read-write so out-of-band cleanup tooling can manage the file.
	_ = os.Chmod(finalPath, 0o664)

	log.Info("derivative built", slog.String("file", ItemStorageName(spec, itemID)))
	return finalPath, nil
}

func (b *Builder) buildAlto(ctx context.Context, outPath string, entries []Entry) error {
	if b.merger == nil {
		return ErrAltoUnavailable
	}
	if err := b.merger.Merge(ctx, outPath, entries); err != nil {
		return fmt.Errorf("merge alto pages: %w", err)
	}
	if fileutil.FileSize(outPath) == 0 {
		return errors.New("alto merge produced no output")
	}
	return nil
}

func (b *Builder) buildPDF(ctx context.Context, outPath string, entries []Entry) error {
	args := make([]string, 0, len(entries)+3)
	for _, entry := range entries {
		args = append(args, entry.Filepath)
	}
	args = append(args, "-quality", "100", outPath)

	output, err := b.exec.Run(ctx, b.cfg.Tools.Convert, args)
	if err != nil {
		b.logger.Error("pdf conversion failed",
			slog.String("tool_output", output), logging.Error(err))
		return fmt.Errorf("convert images to pdf: %w", err)
	}
	if fileutil.FileSize(outPath) == 0 {
		return errors.New("pdf conversion produced no output")
	}
	return nil
}
