// Package daemon wires the file store, job worker and HTTP server into a
// single lifecycle with flock-based locking to prevent multiple
// instances from sharing one file store.
package daemon
