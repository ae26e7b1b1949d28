// Package server exposes the HTTP surface: the public derivative
// download endpoint and a small JSON API for status, per-item derivative
// reports and the job queue.
package server
