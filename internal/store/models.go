package store

import (
	"strings"
	"time"
)

// Item is a library resource owning an ordered list of media.
type Item struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DerivativeFile records one transcoded output of a media, keyed in the
// media's Derivatives map by its storage subfolder.
type DerivativeFile struct {
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
}

// Media is one file attached to an item.
type Media struct {
	ID       int64
	ItemID   int64
	Position int
	// Source is the human-readable upload name, used for zip entry names.
	Source string
	// StorageID names the original file in the store, without extension.
	StorageID   string
	Extension   string
	MediaType   string
	Size        int64
	HasOriginal bool
	Renderer    string
	// ExtractedText holds OCR/extraction output used by the "text"
	// derivative type.
	ExtractedText string
	// Derivatives maps storage subfolder to the transcoded output stored
	// there. Maintained by the transcoder only.
	Derivatives map[string]DerivativeFile
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filename returns the original's file name in the store.
func (m *Media) Filename() string {
	if m.Extension == "" {
		return m.StorageID
	}
	return m.StorageID + "." + m.Extension
}

// OriginalStorageName returns the storage name of the original file.
func (m *Media) OriginalStorageName() string {
	return "original/" + m.Filename()
}

// MainType returns the media type's main type, e.g. "audio" for
// "audio/flac".
func (m *Media) MainType() string {
	if idx := strings.IndexByte(m.MediaType, '/'); idx > 0 {
		return m.MediaType[:idx]
	}
	return m.MediaType
}

// Managed reports whether the transcoder handles this media: a stored
// original rendered as a plain file whose main type is audio or video.
func (m *Media) Managed() bool {
	if !m.HasOriginal || m.Renderer != "file" {
		return false
	}
	main := m.MainType()
	return main == "audio" || main == "video"
}

// JobKind identifies a unit of background work.
type JobKind string

const (
	// JobBuildItem builds one item-level derivative type.
	JobBuildItem JobKind = "build_item"
	// JobTranscodeMedia runs the converter rules for one media.
	JobTranscodeMedia JobKind = "transcode_media"
	// JobTranscodeItem runs the converter rules for every managed media of
	// an item.
	JobTranscodeItem JobKind = "transcode_item"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one queued unit of background work.
type Job struct {
	ID      string
	Kind    JobKind
	ItemID  int64
	MediaID int64
	// TypeKey is the derivative type for build jobs.
	TypeKey string
	// Payload carries an optional resolved-media snapshot as JSON so the
	// worker can rebuild exactly what the enqueuing request saw.
	Payload    string
	Status     JobStatus
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}
