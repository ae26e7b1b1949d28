package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sys/unix"

	"derivate/internal/config"
	"derivate/internal/filestore"
	"derivate/internal/fileutil"
	"derivate/internal/logging"
	"derivate/internal/sanitize"
	"derivate/internal/store"
)

// Prober determines a file's media type from its content.
type Prober func(path string) (string, error)

// Option configures the transcoder.
type Option func(*Transcoder)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(t *Transcoder) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// WithProber injects a custom media type prober.
func WithProber(probe Prober) Option {
	return func(t *Transcoder) {
		if probe != nil {
			t.probe = probe
		}
	}
}

// Transcoder runs converter rules for one media at a time.
type Transcoder struct {
	cfg    *config.Config
	store  *store.Store
	files  *filestore.Local
	exec   Executor
	probe  Prober
	logger *slog.Logger
}

// New constructs a transcoder.
func New(cfg *config.Config, st *store.Store, files *filestore.Local, logger *slog.Logger, opts ...Option) *Transcoder {
	t := &Transcoder{
		cfg:    cfg,
		store:  st,
		files:  files,
		exec:   commandExecutor{},
		probe:  detectMediaType,
		logger: logging.NewComponentLogger(logger, "transcode"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func detectMediaType(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	// Strip parameters such as "; charset=utf-8".
	full := mtype.String()
	if idx := strings.IndexByte(full, ';'); idx >= 0 {
		full = strings.TrimSpace(full[:idx])
	}
	return full, nil
}

// Run executes every active converter rule for the media. Per-rule
// failures are logged and skipped; the run only errors out on sanitizer
// rejections, an unreadable source, or cancellation. Partial success is
// success.
func (t *Transcoder) Run(ctx context.Context, media *store.Media) error {
	if media == nil || !media.Managed() {
		return nil
	}
	rules := t.cfg.ActiveRules(media.MainType())
	if len(rules) == 0 {
		return nil
	}

	// Validate the whole table before any work starts.
	for _, rule := range rules {
		if err := sanitize.Check(rule.Pattern, rule.Args); err != nil {
			return fmt.Errorf("converter rule %q: %w", rule.Pattern, err)
		}
	}

	sourcePath, err := t.files.LocalPath(media.OriginalStorageName())
	if err != nil {
		return fmt.Errorf("resolve original: %w", err)
	}
	if !fileutil.ReadableFile(sourcePath) {
		return fmt.Errorf("media %d: original file %s missing or unreadable", media.ID, media.OriginalStorageName())
	}

	log := t.logger.With(slog.Int64("media_id", media.ID))
	derivatives := make(map[string]store.DerivativeFile, len(media.Derivatives))
	for folder, file := range media.Derivatives {
		derivatives[folder] = file
	}

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			log.Warn("transcode stopped", logging.Error(err))
			return err
		}

		target, err := sanitize.Resolve(t.files.Base(), rule.Pattern, media.StorageID)
		if err != nil {
			// A pattern that resolves outside the store voids the run.
			log.Error("converter pattern rejected", slog.String("pattern", rule.Pattern), logging.Error(err))
			return err
		}
		ruleLog := log.With(slog.String("output", target.StorageName))

		if _, statErr := os.Stat(target.Path); statErr == nil {
			if accessErr := unix.Access(target.Path, unix.W_OK); accessErr != nil {
				ruleLog.Warn("existing derivative not writable, skipping rule")
				continue
			}
		}
		if err := fileutil.EnsureDir(filepath.Dir(target.Path)); err != nil {
			ruleLog.Warn("derivative directory not writable, skipping rule", logging.Error(err))
			continue
		}

		// Purge any previous output first so metadata and filesystem never
		// describe two different artifacts for the same subfolder.
		if _, tracked := derivatives[target.Folder]; tracked || fileutil.FileSize(target.Path) > 0 {
			if err := t.files.Delete(target.StorageName); err != nil {
				ruleLog.Warn("remove previous derivative", logging.Error(err))
			}
			delete(derivatives, target.Folder)
			if err := t.store.UpdateMediaDerivatives(ctx, media.ID, derivatives); err != nil {
				return fmt.Errorf("purge derivative metadata: %w", err)
			}
			ruleLog.Info("existing derivative removed before rebuild")
		}

		ruleLog.Info("creating derivative")

		tempPath, err := t.tempOutputPath(target.Basename)
		if err != nil {
			ruleLog.Error("allocate temp output", logging.Error(err))
			continue
		}

		args := make([]string, 0, len(rule.Args)+4)
		args = append(args, "-i", sourcePath)
		args = append(args, strings.Fields(rule.Args)...)
		args = append(args, tempPath)

		output, err := t.exec.Run(ctx, t.cfg.Tools.FFmpeg, args)
		if err != nil {
			ruleLog.Error("encoder failed", slog.String("tool_output", tail(output)), logging.Error(err))
			_ = os.Remove(tempPath)
			continue
		}
		if strings.TrimSpace(output) != "" {
			ruleLog.Debug("encoder output", slog.String("tool_output", tail(output)))
		}

		if fileutil.FileSize(tempPath) == 0 {
			ruleLog.Error("encoder produced empty output")
			_ = os.Remove(tempPath)
			continue
		}

		mediaType, err := t.probe(tempPath)
		if err != nil {
			ruleLog.Error("probe output type", logging.Error(err))
			_ = os.Remove(tempPath)
			continue
		}
		if main := mainType(mediaType); main != "audio" && main != "video" {
			ruleLog.Error("output is not audio/video", slog.String("media_type", mediaType))
			_ = os.Remove(tempPath)
			continue
		}

		if err := t.files.Put(tempPath, target.StorageName); err != nil {
			ruleLog.Error("store derivative", logging.Error(err))
			_ = os.Remove(tempPath)
			continue
		}
		_ = os.Remove(tempPath)

		derivatives[target.Folder] = store.DerivativeFile{
			Filename:  target.Basename,
			MediaType: mediaType,
		}
		if err := t.store.UpdateMediaDerivatives(ctx, media.ID, derivatives); err != nil {
			return fmt.Errorf("record derivative metadata: %w", err)
		}
		ruleLog.Info("derivative created", slog.String("media_type", mediaType))
	}

	return nil
}

// tempOutputPath allocates a unique temp file name that keeps the final
// extension, for encoders that infer the container format from it.
func (t *Transcoder) tempOutputPath(basename string) (string, error) {
	f, err := os.CreateTemp(t.cfg.Paths.TempDir, "derivate-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return name + filepath.Ext(basename), nil
}

func mainType(mediaType string) string {
	if idx := strings.IndexByte(mediaType, '/'); idx > 0 {
		return mediaType[:idx]
	}
	return mediaType
}

// tail bounds logged tool output; encoders can be extremely chatty.
func tail(output string) string {
	const limit = 2000
	output = strings.TrimSpace(output)
	if len(output) <= limit {
		return output
	}
	return "…" + output[len(output)-limit:]
}
