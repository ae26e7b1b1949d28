// Package config loads, normalizes, and validates derivate configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the daemon and CLI need: the file-store base path, enabled derivative
// types, the synchronous build threshold, converter rule tables for audio
// and video transcodes, and external tool commands.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
