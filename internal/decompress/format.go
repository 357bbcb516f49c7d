package decompress

import (
	"path/filepath"
	"strings"
)

// Format identifies the compression wrapping of a source image. It is a
// closed set chosen once from the file extension; the transfer engine never
// re-sniffs mid-stream.
type Format int

const (
	FormatNone Format = iota
	FormatGzip
	FormatXz
	FormatZstd
)

func (f Format) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatXz:
		return "xz"
	case FormatZstd:
		return "zstd"
	default:
		return "none"
	}
}

// DetectFormat maps a file extension to its Format. Matching is
// case-insensitive. Unknown extensions, or none at all, mean the image is
// used as-is with no decompression.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return FormatGzip
	case ".xz", ".lzma":
		return FormatXz
	case ".zst", ".zstd":
		return FormatZstd
	default:
		return FormatNone
	}
}
