package ready

import (
	"context"
	"fmt"
	"strings"

	"derivate/internal/catalog"
	"derivate/internal/derive"
	"derivate/internal/fileutil"
)

// TypeState describes the availability of one derivative type for an
// item. It is computed from filesystem probes on every call.
type TypeState struct {
	Mode       catalog.Mode `json:"mode"`
	Feasible   bool         `json:"feasible"`
	InProgress bool         `json:"in_progress"`
	Ready      bool         `json:"ready"`
	MediaType  string       `json:"mediatype"`
	Extension  string       `json:"extension"`
	// Size is the real file size when ready, an estimate for size-aware
	// types that could be built, nil otherwise.
	Size *int64 `json:"size"`
	// File is the path relative to the file-store base.
	File string `json:"file"`
	URL  string `json:"url,omitempty"`
}

// ItemReport computes the state of every enabled item-level type for an
// item, or of a single type when typeKey is non-empty.
func (c *Coordinator) ItemReport(ctx context.Context, itemID int64, typeKey string) (map[string]TypeState, error) {
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var keys []string
	if typeKey != "" {
		if _, ok := catalog.Lookup(typeKey); !ok || !c.cfg.TypeEnabled(typeKey) {
			return map[string]TypeState{}, nil
		}
		keys = []string{typeKey}
	} else {
		keys = c.cfg.Derivatives.Enabled
	}

	report := make(map[string]TypeState, len(keys))
	for _, key := range keys {
		spec, ok := catalog.Lookup(key)
		if !ok || spec.Level == catalog.LevelMedia {
			continue
		}
		state, err := c.typeState(ctx, spec, item.ID)
		if err != nil {
			return nil, err
		}
		report[key] = state
	}
	return report, nil
}

func (c *Coordinator) typeState(ctx context.Context, spec catalog.TypeSpec, itemID int64) (TypeState, error) {
	finalPath := derive.ItemPath(c.cfg.Paths.BasePath, spec, itemID)

	var size *int64
	if actual := fileutil.FileSize(finalPath); actual > 0 {
		size = &actual
	}
	ready := size != nil && fileutil.ReadableFile(finalPath)
	inProgress := !ready && fileutil.FileSize(derive.TempPath(finalPath)) > 0

	feasible := ready || inProgress
	if !feasible {
		entries, err := c.resolver.Resolve(ctx, itemID, spec.Key)
		if err != nil {
			return TypeState{}, err
		}
		feasible = len(entries) > 0
		if feasible && spec.SizeAware {
			estimate := derive.TotalSize(entries)
			size = &estimate
		}
	}

	state := TypeState{
		Mode:       spec.Mode,
		Feasible:   feasible,
		InProgress: inProgress,
		Ready:      ready,
		MediaType:  spec.MediaType,
		Extension:  spec.Extension,
		Size:       size,
		File:       derive.ItemStorageName(spec, itemID),
	}
	if feasible {
		state.URL = c.derivativeURL(spec.Key, itemID)
	}
	return state, nil
}

func (c *Coordinator) derivativeURL(typeKey string, itemID int64) string {
	base := strings.TrimRight(c.cfg.Derivatives.SiteURL, "/")
	return fmt.Sprintf("%s/derivative/%s/%d", base, typeKey, itemID)
}
