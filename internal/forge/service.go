package forge

import "fmt"

// ImagerService is the orchestration layer that combines the device catalog,
// decompression front-end, block transfer and verifier into the high-level
// operations needed by the CLI.
type ImagerService struct {
	catalog    DeviceCatalog
	normalizer SourceNormalizer
	transfer   DeviceTransfer
	verifier   Verifier
	logger     Logger
}

// NewImagerService creates a new ImagerService with the provided dependencies.
func NewImagerService(catalog DeviceCatalog, normalizer SourceNormalizer, transfer DeviceTransfer, verifier Verifier, logger Logger) *ImagerService {
	return &ImagerService{
		catalog:    catalog,
		normalizer: normalizer,
		transfer:   transfer,
		verifier:   verifier,
		logger:     logger,
	}
}

// WriteResult reports the outcome of WriteImage.
type WriteResult struct {
	Stats    TransferStats
	Verified bool
}

// ListDevices returns the removable devices that are safe write targets.
func (s *ImagerService) ListDevices() ([]BlockDevice, error) {
	devices, err := s.catalog.ListRemovableDevices()
	if err != nil {
		return nil, fmt.Errorf("scanning for removable devices: %w", err)
	}
	s.logger.Info("device scan complete", "count", len(devices))
	return devices, nil
}

// WriteImage writes the image at imagePath onto the device at devicePath,
// decompressing the source first when its extension calls for it, and
// verifying the written bytes against the plain source when verify is set.
// Any scratch file created during normalization is removed on every exit
// path: success, error, or cancellation during the transfer.
func (s *ImagerService) WriteImage(imagePath, devicePath string, verify bool, progress ProgressFunc, cancel *CancelFlag) (*WriteResult, error) {
	s.logger.Info("write started", "image", imagePath, "device", devicePath, "verify", verify)

	src, err := s.normalizer.Normalize(imagePath, progress, cancel)
	if err != nil {
		return nil, fmt.Errorf("preparing source %s: %w", imagePath, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			s.logger.Warn("removing scratch file failed", "path", src.Path, "error", cerr)
		}
	}()

	stats, err := s.transfer.WriteToDevice(src, devicePath, progress, cancel)
	if err != nil {
		return nil, fmt.Errorf("writing to %s: %w", devicePath, err)
	}

	result := &WriteResult{Stats: stats}
	if verify {
		if err := s.verifier.Compare(src.Path, devicePath, src.Size, progress, cancel); err != nil {
			return nil, fmt.Errorf("verifying %s: %w", devicePath, err)
		}
		result.Verified = true
	}

	s.logger.Info("write complete",
		"device", devicePath,
		"bytes", stats.BytesCopied,
		"elapsed", stats.Elapsed,
		"verified", result.Verified)
	return result, nil
}

// ReadDevice captures the full contents of the device at devicePath into a
// new image file at imagePath.
func (s *ImagerService) ReadDevice(devicePath, imagePath string, progress ProgressFunc, cancel *CancelFlag) (TransferStats, error) {
	s.logger.Info("read started", "device", devicePath, "image", imagePath)

	stats, err := s.transfer.ReadFromDevice(devicePath, imagePath, progress, cancel)
	if err != nil {
		return stats, fmt.Errorf("reading %s: %w", devicePath, err)
	}

	s.logger.Info("read complete", "image", imagePath, "bytes", stats.BytesCopied, "elapsed", stats.Elapsed)
	return stats, nil
}
