// Package store persists the item/media read model and the background
// build job queue in SQLite.
//
// Items own an ordered list of media. Each media row carries the
// descriptors the resolver needs (storage id, media type, size, extracted
// text) plus a typed derivative-metadata map tracking which transcoded
// outputs exist per subfolder. Jobs are units of background work consumed
// by the worker: item-level builds and per-media transcodes.
//
// The database is working state, not an archive. Schema changes bump the
// version in schema.go; mismatched databases are rejected rather than
// migrated.
package store
