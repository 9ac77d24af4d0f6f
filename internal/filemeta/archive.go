package filemeta

import (
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
)

// ArchiveInfo is the table of contents of a container file.
type ArchiveInfo struct {
	fileNames        []string
	CompressedSize   uint64
	UncompressedSize uint64
}

// NewArchiveInfo builds an ArchiveInfo from already-listed entries.
func NewArchiveInfo(names []string, compressed, uncompressed uint64) *ArchiveInfo {
	return &ArchiveInfo{
		fileNames:        append([]string(nil), names...),
		CompressedSize:   compressed,
		UncompressedSize: uncompressed,
	}
}

// FileNames returns the contained entry names in archive order.
func (a *ArchiveInfo) FileNames() []string {
	return append([]string(nil), a.fileNames...)
}

// Len returns the number of contained entries.
func (a *ArchiveInfo) Len() int {
	return len(a.fileNames)
}

// Extractor lists the contents of one container format.
type Extractor interface {
	Extract(path string) (*ArchiveInfo, error)
}

// ZipExtractor reads the central directory of a zip file. Entries are not
// decompressed.
type ZipExtractor struct{}

func (ZipExtractor) Extract(path string) (*ArchiveInfo, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, rlerrors.Wrapf(err, rlerrors.ErrArchiveRead, "failed to read archive %s", path).
			WithDetail("path", path)
	}
	defer r.Close()

	info := &ArchiveInfo{fileNames: make([]string, 0, len(r.File))}
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		info.fileNames = append(info.fileNames, f.Name)
		info.CompressedSize += f.CompressedSize64
		info.UncompressedSize += f.UncompressedSize64
	}
	return info, nil
}

// Extractors maps a lowercase file extension to the extractor for it.
type Extractors map[string]Extractor

// DefaultExtractors returns the container formats romlint can list.
func DefaultExtractors() Extractors {
	return Extractors{"zip": ZipExtractor{}}
}

// For returns the extractor matching path's extension.
func (e Extractors) For(path string) (Extractor, bool) {
	if len(e) == 0 {
		return nil, false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return nil, false
	}
	x, ok := e[ext]
	return x, ok
}
