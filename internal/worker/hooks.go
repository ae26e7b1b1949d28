package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"derivate/internal/catalog"
	"derivate/internal/derive"
	"derivate/internal/logging"
	"derivate/internal/store"
)

// ItemSaved reacts to an item save by enqueueing a transcode for every
// managed media that has no derivatives yet.
func (w *Worker) ItemSaved(ctx context.Context, itemID int64) error {
	medias, err := w.store.ListMedia(ctx, itemID)
	if err != nil {
		return err
	}
	for _, media := range medias {
		if err := w.MediaSaved(ctx, media.ID); err != nil {
			return err
		}
	}
	return nil
}

// MediaSaved reacts to a media save. Media that already carry derivative
// metadata are not reprocessed; that is the only debounce against
// duplicate dispatch, so concurrent saves can still race.
func (w *Worker) MediaSaved(ctx context.Context, mediaID int64) error {
	media, err := w.store.GetMedia(ctx, mediaID)
	if err != nil {
		return err
	}
	if !media.Managed() || len(media.Derivatives) > 0 {
		return nil
	}
	if len(w.cfg.ActiveRules(media.MainType())) == 0 {
		return nil
	}

	job, err := w.store.EnqueueJob(ctx, store.Job{
		Kind:    store.JobTranscodeMedia,
		ItemID:  media.ItemID,
		MediaID: media.ID,
	})
	if err != nil {
		return fmt.Errorf("enqueue transcode: %w", err)
	}
	w.logger.Info("transcode queued after save",
		slog.Int64("media_id", media.ID), slog.String("job_id", job.ID))
	return nil
}

// MediaDeleted removes the stored derivative files recorded for a media.
// The caller passes the media as it was before deletion; only files named
// in the metadata are touched.
func (w *Worker) MediaDeleted(media *store.Media) error {
	if media == nil || !media.Managed() || len(media.Derivatives) == 0 {
		return nil
	}
	for folder, file := range media.Derivatives {
		storageName := folder + "/" + file.Filename
		if err := w.files.Delete(storageName); err != nil {
			return fmt.Errorf("delete derivative %s: %w", storageName, err)
		}
		w.logger.Info("derivative removed with media",
			slog.Int64("media_id", media.ID), slog.String("file", storageName))
	}
	return nil
}

// ItemDeleted removes every item-level derivative file of an item,
// including any provisional leftovers.
func (w *Worker) ItemDeleted(itemID int64) error {
	for _, key := range catalog.ItemKeys() {
		spec, _ := catalog.Lookup(key)
		finalPath := derive.ItemPath(w.cfg.Paths.BasePath, spec, itemID)
		for _, path := range []string{finalPath, derive.TempPath(finalPath)} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				w.logger.Warn("remove item derivative failed",
					slog.String("path", path), logging.Error(err))
			}
		}
	}
	return nil
}
