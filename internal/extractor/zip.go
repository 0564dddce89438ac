package extractor

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ArchiveEntry is one supported file pulled out of a ZIP bundle.
type ArchiveEntry struct {
	Name string
	Data []byte
}

// maxArchiveEntryBytes bounds decompression of a single entry.
const maxArchiveEntryBytes = 100 << 20

// ExpandArchive lists the supported files inside a ZIP bundle. The
// pipeline itself rejects ZIPs; the ingestion boundary calls this to
// submit each inner file as its own analysis. Nested archives and
// unsupported extensions are skipped, and a single unreadable entry does
// not fail the expansion.
func ExpandArchive(r io.ReaderAt, size int64) ([]ArchiveEntry, []error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, []error{fmt.Errorf("open archive: %w", err)}
	}

	var entries []ArchiveEntry
	var errs []error
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if strings.HasPrefix(name, ".") || strings.EqualFold(filepath.Ext(name), ".zip") {
			continue
		}
		if !IsSupportedExtension(name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", f.Name, err))
			continue
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxArchiveEntryBytes))
		rc.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", f.Name, err))
			continue
		}
		entries = append(entries, ArchiveEntry{Name: name, Data: data})
	}
	return entries, errs
}
