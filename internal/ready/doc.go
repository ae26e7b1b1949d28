// Package ready decides how an item-level derivative request is served:
// from the existing file, by a synchronous build, by queueing background
// work, or not at all.
//
// Readiness is computed from filesystem probes on every call and never
// cached. A provisional ".tmp" sibling of the final file is the only
// in-progress signal; see package derive for the convention.
package ready
