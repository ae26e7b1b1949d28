// Package worker drains the background job queue: item-level derivative
// builds and media transcodes. It also carries the resource lifecycle
// hooks that enqueue transcodes after saves and clean up derivative files
// after deletes.
package worker
