// Package decompress normalizes possibly-compressed source images into plain
// byte streams the block transfer can consume.
package decompress

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"forge-go/internal/forge"
)

// copyBufferSize is the fixed transfer buffer for streaming decoded bytes
// into the scratch file.
const copyBufferSize = 1 << 20

// Normalizer resolves a source image into a TransferSource. Uncompressed
// images pass through untouched; compressed ones are stream-decoded into a
// private scratch file whose ownership transfers to the returned source.
type Normalizer struct {
	tempDir string
	logger  forge.Logger
}

// NewNormalizer creates a Normalizer that places scratch files in tempDir.
// An empty tempDir means the system default temporary directory.
func NewNormalizer(tempDir string, logger forge.Logger) *Normalizer {
	return &Normalizer{tempDir: tempDir, logger: logger}
}

// Normalize turns the image at path into a plain byte stream of known
// length. Total decoded length is unknown in advance, so decompression
// progress reports TotalBytes as zero. Malformed input fails with ErrDecode
// as soon as the decoder rejects a chunk, with no scratch file left behind;
// cancellation mid-decode also removes it.
func (n *Normalizer) Normalize(path string, progress forge.ProgressFunc, cancel *forge.CancelFlag) (*forge.TransferSource, error) {
	format := DetectFormat(path)
	if format == FormatNone {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat source %s: %w", path, err)
		}
		return forge.NewFileSource(path, info.Size()), nil
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source %s: %w", path, err)
	}
	defer in.Close()

	dec, closeDec, err := newDecoder(format, path, in)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s reader for %s: %v", forge.ErrDecode, format, path, err)
	}
	defer closeDec()

	scratch, err := os.CreateTemp(n.tempDir, "forge-*.img")
	if err != nil {
		return nil, fmt.Errorf("creating scratch file: %w", err)
	}
	n.logger.Info("decompressing source", "path", path, "format", format.String(), "scratch", scratch.Name())

	discard := func() {
		scratch.Close()
		if rmErr := os.Remove(scratch.Name()); rmErr != nil {
			n.logger.Warn("removing scratch file failed", "path", scratch.Name(), "error", rmErr)
		}
	}

	buf := make([]byte, copyBufferSize)
	var total int64
	for {
		if cancel.Cancelled() {
			discard()
			return nil, fmt.Errorf("decompressing %s: %w", path, forge.ErrCancelled)
		}

		nr, rerr := dec.Read(buf)
		if nr > 0 {
			if _, werr := scratch.Write(buf[:nr]); werr != nil {
				discard()
				return nil, fmt.Errorf("writing scratch file %s: %w", scratch.Name(), werr)
			}
			total += int64(nr)
			progress.Report(forge.PhaseDecompressing, total, 0)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			discard()
			return nil, fmt.Errorf("%w: decoding %s: %v", forge.ErrDecode, path, rerr)
		}
	}

	if err := scratch.Close(); err != nil {
		os.Remove(scratch.Name())
		return nil, fmt.Errorf("closing scratch file %s: %w", scratch.Name(), err)
	}

	n.logger.Info("decompression complete", "path", path, "bytes", total)
	return forge.NewScratchSource(scratch.Name(), total), nil
}

// newDecoder wraps r in a streaming decoder for the given format and returns
// the reader plus a cleanup func. The .lzma extension is a raw LZMA stream
// rather than an xz container, so it gets its own decoder.
func newDecoder(format Format, path string, r io.Reader) (io.Reader, func(), error) {
	nop := func() {}
	switch format {
	case FormatGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { gz.Close() }, nil
	case FormatXz:
		if strings.EqualFold(filepath.Ext(path), ".lzma") {
			lz, err := lzma.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return lz, nop, nil
		}
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, nop, nil
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, fmt.Errorf("no decoder for format %s", format)
	}
}
