package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Placeholder is the token in output patterns replaced by the source
// media's storage id.
const Placeholder = "{filename}"

// placeholderMark is the substring every valid pattern must contain: the
// placeholder sits between the output folder and the extension.
const placeholderMark = "/" + Placeholder + "."

// forbidden are the substrings that reject an encoder argument string.
var forbidden = []string{"sudo", "$", "<", ">", ";", "&", "|", "%", `"`, `\`, ".."}

var (
	// ErrEmptyArgs rejects a rule with no encoder arguments.
	ErrEmptyArgs = errors.New("empty encoder arguments")
	// ErrForbiddenToken rejects arguments containing a denylisted substring.
	ErrForbiddenToken = errors.New("forbidden token in encoder arguments")
	// ErrBadPattern rejects a pattern that cannot produce a safe path.
	ErrBadPattern = errors.New("pattern does not create a real path")
)

// CheckArgs validates an encoder argument string.
func CheckArgs(args string) error {
	args = strings.TrimSpace(args)
	if args == "" {
		return ErrEmptyArgs
	}
	for _, token := range forbidden {
		if strings.Contains(args, token) {
			return fmt.Errorf("%w: %q", ErrForbiddenToken, token)
		}
	}
	return nil
}

// CheckPattern validates an output path pattern's shape.
func CheckPattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	switch {
	case pattern == "":
		return fmt.Errorf("%w: empty pattern", ErrBadPattern)
	case !strings.Contains(pattern, placeholderMark):
		return fmt.Errorf("%w: missing %q", ErrBadPattern, placeholderMark)
	case strings.HasPrefix(pattern, "/"):
		return fmt.Errorf("%w: absolute pattern", ErrBadPattern)
	case strings.Contains(pattern, ".."):
		return fmt.Errorf("%w: parent reference", ErrBadPattern)
	}
	return nil
}

// Check validates a full converter rule.
func Check(pattern, args string) error {
	if err := CheckArgs(args); err != nil {
		return err
	}
	return CheckPattern(pattern)
}

// Target is a resolved output location for one converter rule.
type Target struct {
	// Folder is the subfolder under the base path, e.g. "mp4". It keys the
	// per-media derivative metadata.
	Folder string
	// Basename is the output file name with the placeholder substituted.
	Basename string
	// StorageName is Folder/Basename, the name handed to the file store.
	StorageName string
	// Path is the absolute output path under the base path.
	Path string
}

// Resolve substitutes the storage id into a validated pattern and resolves
// the output location under basePath. Resolution fails when the
// canonicalized path differs from the naive concatenation; that difference
// is exactly what a traversal attempt introduces.
func Resolve(basePath, pattern, storageID string) (Target, error) {
	pattern = strings.TrimSpace(pattern)
	if err := CheckPattern(pattern); err != nil {
		return Target{}, err
	}

	mark := strings.Index(pattern, placeholderMark)
	folder := pattern[:mark]
	basename := strings.Replace(pattern[mark+1:], Placeholder, storageID, 1)
	storageName := folder + "/" + basename

	naive := basePath + "/" + storageName
	if filepath.Clean(naive) != naive {
		return Target{}, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}

	return Target{
		Folder:      folder,
		Basename:    basename,
		StorageName: storageName,
		Path:        naive,
	}, nil
}
