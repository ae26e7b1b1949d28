package derive

import (
	"context"
	"fmt"

	"derivate/internal/filestore"
	"derivate/internal/fileutil"
	"derivate/internal/store"
)

// Entry is one media selected for an item-level build. Entries for the
// "text" type carry inline content and no file path; all others point at
// the media's stored original.
type Entry struct {
	ID        int64  `json:"id"`
	Source    string `json:"source,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Filepath  string `json:"filepath,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	MainType  string `json:"main_type,omitempty"`
	Extension string `json:"extension,omitempty"`
	Size      int64  `json:"size"`
	Content   string `json:"content,omitempty"`
}

// Resolver selects the media of an item that qualify for a derivative
// type. Entry order follows the item's media order and determines page
// numbering and archive entry order downstream.
type Resolver struct {
	store *store.Store
	files *filestore.Local
}

// NewResolver constructs a resolver over the read model and file store.
func NewResolver(st *store.Store, files *filestore.Local) *Resolver {
	return &Resolver{store: st, files: files}
}

// Resolve returns the eligible entries for one item and type key. An
// empty result means the type is infeasible for this item right now,
// which callers treat as a distinct non-error condition.
func (r *Resolver) Resolve(ctx context.Context, itemID int64, typeKey string) ([]Entry, error) {
	medias, err := r.store.ListMedia(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list media of item %d: %w", itemID, err)
	}

	var entries []Entry
	for _, media := range medias {
		if !media.HasOriginal || media.Size == 0 || media.MediaType == "" {
			continue
		}
		// Storage can drift from the database; trust only files that are
		// actually present and non-empty.
		path, err := r.files.LocalPath(media.OriginalStorageName())
		if err != nil || !fileutil.ReadableFile(path) {
			continue
		}

		mainType := media.MainType()
		switch typeKey {
		case "alto":
			if media.MediaType != "application/alto+xml" ||
				(media.Extension == "xml" && !emptyOrAlto(media.MediaType)) {
				continue
			}
		case "pdf":
			if mainType != "image" {
				continue
			}
		case "txt":
			if media.MediaType != "text/plain" ||
				(media.Extension == "txt" && !emptyOrPlain(media.MediaType)) {
				continue
			}
		case "text":
			// Pulls extracted text instead of the stored file.
			if media.ExtractedText != "" {
				entries = append(entries, Entry{
					ID:      media.ID,
					Size:    int64(len(media.ExtractedText)),
					Content: media.ExtractedText,
				})
			}
			continue
		case "zipm":
			if !avOrImage(mainType) {
				continue
			}
		case "zipo":
			if avOrImage(mainType) {
				continue
			}
		}

		entries = append(entries, Entry{
			ID:        media.ID,
			Source:    media.Source,
			Filename:  media.Filename(),
			Filepath:  path,
			MediaType: media.MediaType,
			MainType:  mainType,
			Extension: media.Extension,
			Size:      media.Size,
		})
	}
	return entries, nil
}

// TotalSize sums the entry sizes; used as the build-size estimate.
func TotalSize(entries []Entry) int64 {
	var total int64
	for _, entry := range entries {
		total += entry.Size
	}
	return total
}

func avOrImage(mainType string) bool {
	return mainType == "image" || mainType == "audio" || mainType == "video"
}

func emptyOrAlto(mediaType string) bool {
	return mediaType == "application/x-empty" || mediaType == "application/alto+xml"
}

func emptyOrPlain(mediaType string) bool {
	return mediaType == "application/x-empty" || mediaType == "text/plain"
}
