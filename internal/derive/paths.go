package derive

import (
	"path/filepath"
	"strconv"

	"derivate/internal/catalog"
)

// ItemStorageName returns the storage name of an item's derivative file,
// e.g. "zip/42.zip".
func ItemStorageName(spec catalog.TypeSpec, itemID int64) string {
	return spec.Subfolder + "/" + strconv.FormatInt(itemID, 10) + "." + spec.Extension
}

// ItemPath returns the absolute path of an item's derivative file under
// the file-store base path.
func ItemPath(basePath string, spec catalog.TypeSpec, itemID int64) string {
	return basePath + "/" + ItemStorageName(spec, itemID)
}

// TempPath derives the provisional sibling of a final path by inserting a
// ".tmp" infix before the extension. The extension is kept so tools that
// infer the output format from it keep working. Presence of this path is
// the in-progress signal read by the readiness coordinator.
func TempPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + ".tmp"
	}
	return path[:len(path)-len(ext)] + ".tmp" + ext
}
