package catalog

import (
	"fmt"
	"sort"
)

// Mode controls when a derivative may be built.
type Mode string

const (
	// ModeStatic derivatives are produced by an out-of-band process and are
	// never built on request.
	ModeStatic Mode = "static"
	// ModeDynamic derivatives are built on demand and queued as background
	// work regardless of size.
	ModeDynamic Mode = "dynamic"
	// ModeLive derivatives are built synchronously on every request that
	// finds them absent.
	ModeLive Mode = "live"
	// ModeDynamicLive derivatives are built synchronously below the
	// configured size threshold and queued above it.
	ModeDynamicLive Mode = "dynamic_live"
)

// Level distinguishes item-level artifacts from per-media ones.
type Level string

const (
	LevelItem  Level = "item"
	LevelMedia Level = "media"
)

// TypeSpec describes one derivative type.
type TypeSpec struct {
	Key   string
	Mode  Mode
	Level Level
	// Multiple reports whether several simultaneous derivatives are allowed
	// for one source. Only audio/video transcodes produce more than one
	// output per media.
	Multiple  bool
	MediaType string
	Extension string
	// Subfolder is the directory under the file-store base path where the
	// final artifact is stored. Empty for media-level types, whose output
	// folders come from the converter rules instead.
	Subfolder string
	// SizeAware marks types whose synchronous build is gated by the
	// estimated output size.
	SizeAware bool
}

var specs = map[string]TypeSpec{
	"audio": {
		Key:      "audio",
		Mode:     ModeDynamic,
		Level:    LevelMedia,
		Multiple: true,
	},
	"video": {
		Key:      "video",
		Mode:     ModeDynamic,
		Level:    LevelMedia,
		Multiple: true,
	},
	"zip": {
		Key:       "zip",
		Mode:      ModeDynamicLive,
		Level:     LevelItem,
		MediaType: "application/zip",
		Extension: "zip",
		Subfolder: "zip",
		SizeAware: true,
	},
	"zipm": {
		Key:       "zipm",
		Mode:      ModeDynamicLive,
		Level:     LevelItem,
		MediaType: "application/zip",
		Extension: "zip",
		Subfolder: "zipm",
		SizeAware: true,
	},
	"zipo": {
		Key:       "zipo",
		Mode:      ModeDynamicLive,
		Level:     LevelItem,
		MediaType: "application/zip",
		Extension: "zip",
		Subfolder: "zipo",
		SizeAware: true,
	},
	"pdf": {
		Key:       "pdf",
		Mode:      ModeDynamicLive,
		Level:     LevelItem,
		MediaType: "application/pdf",
		Extension: "pdf",
		Subfolder: "pdf",
		SizeAware: true,
	},
	"txt": {
		Key:       "txt",
		Mode:      ModeLive,
		Level:     LevelItem,
		MediaType: "text/plain",
		Extension: "txt",
		Subfolder: "txt",
	},
	"text": {
		Key:       "text",
		Mode:      ModeLive,
		Level:     LevelItem,
		MediaType: "text/plain",
		Extension: "txt",
		Subfolder: "text",
	},
	"alto": {
		Key:       "alto",
		Mode:      ModeDynamicLive,
		Level:     LevelItem,
		MediaType: "application/alto+xml",
		Extension: "alto.xml",
		Subfolder: "alto",
		SizeAware: true,
	},
	"iiif-2": {
		Key:       "iiif-2",
		Mode:      ModeStatic,
		Level:     LevelItem,
		MediaType: "application/json",
		Extension: "manifest.json",
		Subfolder: "iiif-2",
	},
	"iiif-3": {
		Key:       "iiif-3",
		Mode:      ModeStatic,
		Level:     LevelItem,
		MediaType: "application/json",
		Extension: "manifest.json",
		Subfolder: "iiif-3",
	},
}

func init() {
	for key, spec := range specs {
		if err := validateSpec(key, spec); err != nil {
			panic(err)
		}
	}
}

func validateSpec(key string, spec TypeSpec) error {
	if spec.Key != key {
		return fmt.Errorf("catalog: spec %q carries key %q", key, spec.Key)
	}
	switch spec.Mode {
	case ModeStatic, ModeDynamic, ModeLive, ModeDynamicLive:
	default:
		return fmt.Errorf("catalog: spec %q has unknown mode %q", key, spec.Mode)
	}
	switch spec.Level {
	case LevelItem:
		if spec.MediaType == "" || spec.Extension == "" || spec.Subfolder == "" {
			return fmt.Errorf("catalog: item-level spec %q is missing output descriptors", key)
		}
	case LevelMedia:
		if spec.Subfolder != "" {
			return fmt.Errorf("catalog: media-level spec %q must not declare a subfolder", key)
		}
	default:
		return fmt.Errorf("catalog: spec %q has unknown level %q", key, spec.Level)
	}
	if spec.SizeAware && spec.Mode != ModeDynamicLive {
		return fmt.Errorf("catalog: spec %q is size aware but not dynamic_live", key)
	}
	return nil
}

// Lookup returns the spec for the given type key.
func Lookup(key string) (TypeSpec, bool) {
	spec, ok := specs[key]
	return spec, ok
}

// Keys returns every known type key in stable order.
func Keys() []string {
	keys := make([]string, 0, len(specs))
	for key := range specs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ItemKeys returns the item-level type keys in stable order.
func ItemKeys() []string {
	keys := make([]string, 0, len(specs))
	for key, spec := range specs {
		if spec.Level == LevelItem {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
