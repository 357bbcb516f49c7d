package forge

import "errors"

// Sentinel errors for the imaging engine. Call sites wrap them with path and
// phase context via fmt.Errorf("...: %w", err) so callers can both render an
// actionable message and test the category with errors.Is.
var (
	// ErrSystemDiskUnknown means the catalog could not resolve the boot
	// disk. This is a safety abort: no device list is returned, because
	// the whole point of the catalog is to keep the system disk out of it.
	ErrSystemDiskUnknown = errors.New("could not determine system disk, aborting for safety")

	// ErrDeviceSizeUnknown means the kernel reported a zero size for a
	// device being read. Fatal for the read path.
	ErrDeviceSizeUnknown = errors.New("device size reported as zero")

	// ErrDecode means a compressed source image was rejected by its
	// decoder. No partial scratch file is left behind.
	ErrDecode = errors.New("malformed compressed input")

	// ErrCancelled means the user interrupted the operation. The read
	// path removes its partial output first; the write path leaves the
	// destination device partially written, and the wrapping error says
	// so explicitly.
	ErrCancelled = errors.New("operation cancelled")

	// ErrVerificationMismatch means the post-write digests differ. The
	// write itself already completed; the destination is now suspect.
	ErrVerificationMismatch = errors.New("verification failed: digest mismatch")

	// ErrOperationNotFound means a history record id did not match any row.
	ErrOperationNotFound = errors.New("operation not found")
)
