package derive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"golang.org/x/text/unicode/norm"
)

// buildZip writes all entries into one archive. Sources are stored
// uncompressed except text and XML, which take a fast deflate; images,
// audio, video and pdf are already compressed. Entry names come from the
// media's human-readable source name, de-duplicated with a numeric suffix
// before the extension.
func (b *Builder) buildZip(outPath string, entries []Entry) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestSpeed)
	})

	comment := b.cfg.Derivatives.InstallationTitle + " [" + b.cfg.Derivatives.SiteURL + "]"
	if err := zw.SetComment(comment); err != nil {
		return fmt.Errorf("set archive comment: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		name := uniqueEntryName(entry.Source, seen)
		if err := addZipEntry(zw, name, entry); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return out.Close()
}

func addZipEntry(zw *zip.Writer, name string, entry Entry) error {
	in, err := os.Open(entry.Filepath)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: info.ModTime(),
	}
	if compressibleType(entry.MediaType, entry.MainType) {
		header.Method = zip.Deflate
	}
	header.SetMode(0o644)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

func compressibleType(mediaType, mainType string) bool {
	return mainType == "text" ||
		mediaType == "application/xml" ||
		strings.HasSuffix(mediaType, "+xml")
}

// uniqueEntryName builds the in-archive name from the source name,
// normalized to NFC, appending ".1", ".2", … before the extension on
// collision.
func uniqueEntryName(source string, seen map[string]bool) string {
	source = norm.NFC.String(filepath.Base(source))
	ext := filepath.Ext(source)
	base := strings.TrimSuffix(source, ext)

	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name += fmt.Sprintf(".%d", i)
		}
		name += ext
		if !seen[name] {
			seen[name] = true
			return name
		}
	}
}
