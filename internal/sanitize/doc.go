// Package sanitize validates admin-defined converter rules before any
// subprocess is launched or path constructed from them.
//
// Encoder argument strings come from configuration and are ultimately
// handed to an external tool, so they are screened against a fixed
// denylist of shell metacharacters even though invocation uses argument
// vectors rather than a shell. Output patterns are checked for shape and,
// after placeholder substitution, for path traversal out of the file-store
// base path. Any violation rejects the whole rule table, not just the
// offending rule.
package sanitize
