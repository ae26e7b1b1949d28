// Package transcode produces per-media audio/video derivatives by running
// the configured converter rules through an external encoder.
//
// Each rule is executed in declared order against the media's original
// file: the encoder writes to a temp path, the output is probed from
// content before being trusted, and the result is published into the file
// store. Derivative metadata on the media row is updated after every rule
// rather than batched, so an interrupted run leaves filesystem and
// metadata describing the same subset of outputs.
//
// One failing rule skips to the next; a sanitizer rejection aborts the
// whole run before any encoder is launched.
package transcode
