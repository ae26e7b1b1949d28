// Package derive builds item-level derivative files: zip archives, a
// combined PDF, concatenated plain text, and merged ALTO XML.
//
// The resolver selects the item's eligible media per type and the builder
// materializes the artifact. Builds are coordinated through the
// filesystem: a provisional file with a ".tmp" infix marks a build in
// progress, the final file appears atomically by rename. There is no
// lock; two concurrent builders can both start and the last rename wins.
package derive
