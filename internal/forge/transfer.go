package forge

import "time"

// TransferStats reports what a completed bulk copy did. Elapsed and the
// derived throughput are computed once at completion; they are a reported
// metric, not engine state.
type TransferStats struct {
	BytesCopied int64
	Elapsed     time.Duration
}

// AvgMiBps returns the average throughput in MiB per second.
func (s TransferStats) AvgMiBps() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.BytesCopied) / (1024 * 1024) / secs
}

// SourceNormalizer turns a possibly compressed image path into a plain byte
// stream of known length, materialized to a private scratch file when
// decompression is required.
type SourceNormalizer interface {
	Normalize(path string, progress ProgressFunc, cancel *CancelFlag) (*TransferSource, error)
}

// DeviceTransfer performs the bulk copy between an image and a block device
// using fixed-size, block-aligned buffers, polling cancel between chunks.
type DeviceTransfer interface {
	// WriteToDevice copies the source onto the device. On cancellation the
	// device is left partially written and the error says so.
	WriteToDevice(src *TransferSource, devicePath string, progress ProgressFunc, cancel *CancelFlag) (TransferStats, error)

	// ReadFromDevice captures the device's contents into a new image file.
	// On cancellation the partial image is deleted before returning.
	ReadFromDevice(devicePath, imagePath string, progress ProgressFunc, cancel *CancelFlag) (TransferStats, error)
}

// Verifier re-reads source and destination after a write and compares
// incremental digests computed over matching chunks. A mismatch is a hard
// failure (ErrVerificationMismatch), never a warning.
type Verifier interface {
	Compare(sourcePath, destPath string, length int64, progress ProgressFunc, cancel *CancelFlag) error
}
