package forge

import "os"

// TransferSource is a byte stream of known total length backing one
// transfer: either the original image file, or a private scratch file
// produced by decompression. Scratch-backed sources own their file
// exclusively and remove it on Close, whatever the exit path was.
type TransferSource struct {
	// Path is the readable file holding the plain (decompressed) bytes.
	Path string
	// Size is the total length in bytes.
	Size int64

	scratch bool
	closed  bool
}

// NewFileSource wraps an existing image file. Close is a no-op.
func NewFileSource(path string, size int64) *TransferSource {
	return &TransferSource{Path: path, Size: size}
}

// NewScratchSource wraps a scratch file owned by the source. Close removes it.
func NewScratchSource(path string, size int64) *TransferSource {
	return &TransferSource{Path: path, Size: size, scratch: true}
}

// Scratch reports whether the source owns a temporary file.
func (s *TransferSource) Scratch() bool { return s.scratch }

// Close releases the source. For scratch-backed sources this deletes the
// temporary file; callers must Close on every exit path. Close is
// idempotent.
func (s *TransferSource) Close() error {
	if s.closed || !s.scratch {
		s.closed = true
		return nil
	}
	s.closed = true
	return os.Remove(s.Path)
}
