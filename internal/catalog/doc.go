// Package catalog defines the static table of derivative types.
//
// Every derivative the system can produce is described by a TypeSpec:
// its build mode (static, dynamic, live, dynamic_live), whether it is an
// item-level or media-level derivative, the output media type and
// extension, and the storage subfolder derivative files live under.
//
// The table is fixed at compile time and checked for internal consistency
// during init, so lookups never need to re-validate individual fields.
package catalog
