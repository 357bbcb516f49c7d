// Package blockdev performs the bulk copy between image files and raw block
// devices using fixed-size, block-aligned buffers suitable for unbuffered
// device I/O.
package blockdev

import (
	"fmt"
	"io"
	"os"
	"time"
	"unsafe"

	"forge-go/internal/forge"
)

const (
	// chunkSize is the fixed transfer unit for every iteration.
	chunkSize = 1 << 20
	// logicalBlockSize is the assumed logical block size of the device.
	// Unbuffered writes must be a whole number of these blocks, from a
	// buffer whose address is aligned to it.
	logicalBlockSize = 512
)

// Transfer implements forge.DeviceTransfer against the local filesystem and
// block device nodes.
type Transfer struct {
	logger forge.Logger
}

func NewTransfer(logger forge.Logger) *Transfer {
	return &Transfer{logger: logger}
}

// alignedChunk carves a chunk-sized, block-aligned window out of a slice
// allocated with one block of slack.
func alignedChunk() []byte {
	raw := make([]byte, chunkSize+logicalBlockSize)
	off := 0
	if rem := uintptr(unsafe.Pointer(&raw[0])) % logicalBlockSize; rem != 0 {
		off = int(logicalBlockSize - rem)
	}
	return raw[off : off+chunkSize]
}

// WriteToDevice copies the source onto the device at devicePath. The final
// chunk is zero-padded up to the next block boundary before being written,
// but the progress counter and returned stats report only the logical bytes.
// Cancellation is polled before each chunk; a cancelled write leaves the
// device partially written, and the error states the device is now in an
// indeterminate state.
func (t *Transfer) WriteToDevice(src *forge.TransferSource, devicePath string, progress forge.ProgressFunc, cancel *forge.CancelFlag) (forge.TransferStats, error) {
	var stats forge.TransferStats

	in, err := os.Open(src.Path)
	if err != nil {
		return stats, fmt.Errorf("opening source %s: %w", src.Path, err)
	}
	defer in.Close()

	dev, err := openDeviceForWrite(devicePath)
	if err != nil {
		return stats, fmt.Errorf("opening device %s: %w", devicePath, err)
	}
	defer dev.Close()

	t.logger.Info("device write started", "device", devicePath, "source", src.Path, "bytes", src.Size)

	buf := alignedChunk()
	start := time.Now()
	var written int64
	for written < src.Size {
		if cancel.Cancelled() {
			return stats, fmt.Errorf("device %s is in an indeterminate state, partially written (%d of %d bytes): %w",
				devicePath, written, src.Size, forge.ErrCancelled)
		}

		n := chunkSize
		if remaining := src.Size - written; remaining < int64(n) {
			n = int(remaining)
		}
		if _, err := io.ReadFull(in, buf[:n]); err != nil {
			return stats, fmt.Errorf("reading source %s: %w", src.Path, err)
		}

		padded := n
		if n%logicalBlockSize != 0 {
			padded = (n/logicalBlockSize + 1) * logicalBlockSize
			clear(buf[n:padded])
		}
		if _, err := dev.Write(buf[:padded]); err != nil {
			return stats, fmt.Errorf("writing to device %s: %w", devicePath, err)
		}

		written += int64(n)
		progress.Report(forge.PhaseWriting, written, src.Size)
	}

	if err := dev.Sync(); err != nil {
		return stats, fmt.Errorf("syncing device %s: %w", devicePath, err)
	}

	stats.BytesCopied = written
	stats.Elapsed = time.Since(start)
	t.logger.Info("device write complete",
		"device", devicePath,
		"bytes", written,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
		"avg_mibps", stats.AvgMiBps())
	return stats, nil
}

// ReadFromDevice captures the device's contents into a new image file. The
// device capacity comes from a kernel size query against the open
// descriptor, never from seeking. Only the exact requested byte count is
// written to the image: padding must not leak into the captured data. On
// cancellation the partial image is deleted before returning, since a
// partial image is worse than no image.
func (t *Transfer) ReadFromDevice(devicePath, imagePath string, progress forge.ProgressFunc, cancel *forge.CancelFlag) (forge.TransferStats, error) {
	var stats forge.TransferStats

	dev, err := os.Open(devicePath)
	if err != nil {
		return stats, fmt.Errorf("opening device %s: %w", devicePath, err)
	}
	defer dev.Close()

	size, err := queryDeviceSize(dev)
	if err != nil {
		return stats, fmt.Errorf("querying size of %s: %w", devicePath, err)
	}
	if size == 0 {
		return stats, fmt.Errorf("device %s: %w", devicePath, forge.ErrDeviceSizeUnknown)
	}
	total := int64(size)

	img, err := os.Create(imagePath)
	if err != nil {
		return stats, fmt.Errorf("creating image %s: %w", imagePath, err)
	}

	t.logger.Info("device read started", "device", devicePath, "image", imagePath, "bytes", total)

	buf := alignedChunk()
	start := time.Now()
	var read int64
	for read < total {
		if cancel.Cancelled() {
			img.Close()
			if rmErr := os.Remove(imagePath); rmErr != nil {
				t.logger.Warn("removing partial image failed", "path", imagePath, "error", rmErr)
			}
			return stats, fmt.Errorf("reading %s, partial image %s removed: %w", devicePath, imagePath, forge.ErrCancelled)
		}

		n := chunkSize
		if remaining := total - read; remaining < int64(n) {
			n = int(remaining)
		}
		if _, err := io.ReadFull(dev, buf[:n]); err != nil {
			img.Close()
			return stats, fmt.Errorf("reading device %s: %w", devicePath, err)
		}

		if _, err := img.Write(buf[:n]); err != nil {
			img.Close()
			return stats, fmt.Errorf("writing image %s: %w", imagePath, err)
		}

		read += int64(n)
		progress.Report(forge.PhaseReading, read, total)
	}

	if err := img.Sync(); err != nil {
		img.Close()
		return stats, fmt.Errorf("syncing image %s: %w", imagePath, err)
	}
	if err := img.Close(); err != nil {
		return stats, fmt.Errorf("closing image %s: %w", imagePath, err)
	}

	stats.BytesCopied = read
	stats.Elapsed = time.Since(start)
	t.logger.Info("device read complete",
		"image", imagePath,
		"bytes", read,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
		"avg_mibps", stats.AvgMiBps())
	return stats, nil
}
