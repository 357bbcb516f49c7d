package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"forge-go/internal/blockdev"
	"forge-go/internal/config"
	"forge-go/internal/database"
	"forge-go/internal/decompress"
	"forge-go/internal/forge"
	"forge-go/internal/sysfs"
	"forge-go/internal/verify"
)

// ForgeApp is the application layer between the CLI and ImagerService.
// It constructs all dependencies from config, records each imaging run in the
// history store, and manages resource lifecycles on Close.
type ForgeApp struct {
	cfg     *config.Config
	history forge.HistoryStore
	service *forge.ImagerService
	clock   forge.Clock
	opID    string
	logFile *os.File
	logger  forge.Logger
}

// NewForgeApp creates a fully wired ForgeApp from the given config.
// The caller must call Close when done.
func NewForgeApp(cfg *config.Config) (*ForgeApp, error) {
	history, err := database.NewHistoryFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	opID := uuid.New().String()
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	catalog := sysfs.NewCatalog(logger)
	normalizer := decompress.NewNormalizer(cfg.TempDir, logger)
	transfer := blockdev.NewTransfer(logger)
	verifier := verify.NewVerifier(logger)
	svc := forge.NewImagerService(catalog, normalizer, transfer, verifier, logger)

	return &ForgeApp{
		cfg:     cfg,
		history: history,
		service: svc,
		clock:   forge.RealClock{},
		opID:    opID,
		logFile: logFile,
		logger:  logger,
	}, nil
}

// Config returns the configuration the app was built from.
func (a *ForgeApp) Config() *config.Config {
	return a.cfg
}

// ListDevices returns the removable devices that are safe write targets.
func (a *ForgeApp) ListDevices() ([]forge.BlockDevice, error) {
	return a.service.ListDevices()
}

// WriteImage writes the image onto the device, recording the run in the
// history store with its final status.
func (a *ForgeApp) WriteImage(imagePath, devicePath string, verify bool, progress forge.ProgressFunc, cancel *forge.CancelFlag) (*forge.WriteResult, error) {
	id, err := a.beginOperation("write", imagePath, devicePath)
	if err != nil {
		return nil, err
	}

	result, err := a.service.WriteImage(imagePath, devicePath, verify, progress, cancel)

	var bytes int64
	var verified bool
	if result != nil {
		bytes = result.Stats.BytesCopied
		verified = result.Verified
	}
	a.finishOperation(id, err, bytes, verified)
	return result, err
}

// ReadDevice captures the device into a new image file, recording the run in
// the history store with its final status.
func (a *ForgeApp) ReadDevice(devicePath, imagePath string, progress forge.ProgressFunc, cancel *forge.CancelFlag) (forge.TransferStats, error) {
	id, err := a.beginOperation("read", imagePath, devicePath)
	if err != nil {
		return forge.TransferStats{}, err
	}

	stats, err := a.service.ReadDevice(devicePath, imagePath, progress, cancel)
	a.finishOperation(id, err, stats.BytesCopied, false)
	return stats, err
}

// History returns the most recent imaging operations, newest first.
func (a *ForgeApp) History(limit int) ([]*forge.ImagingOperation, error) {
	return a.history.ListOperations(limit)
}

// beginOperation inserts a running history record for this invocation.
func (a *ForgeApp) beginOperation(operation, imagePath, devicePath string) (int64, error) {
	id, err := a.history.RecordOperation(&forge.ImagingOperation{
		OpID:       a.opID,
		Operation:  operation,
		ImagePath:  imagePath,
		DevicePath: devicePath,
		Status:     forge.StatusRunning,
		StartedAt:  a.clock.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("recording %s operation: %w", operation, err)
	}
	return id, nil
}

// finishOperation finalizes the history record. Failures here are logged,
// not returned: the imaging outcome matters more than the bookkeeping.
func (a *ForgeApp) finishOperation(id int64, opErr error, bytes int64, verified bool) {
	status := forge.StatusSuccess
	errMsg := ""
	switch {
	case errors.Is(opErr, forge.ErrCancelled):
		status = forge.StatusCancelled
		errMsg = opErr.Error()
	case opErr != nil:
		status = forge.StatusError
		errMsg = opErr.Error()
	}

	if err := a.history.FinishOperation(id, status, errMsg, bytes, verified, a.clock.Now()); err != nil {
		a.logger.Warn("finishing history record failed", "id", id, "error", err)
	}
}

// Close closes the history store and the log file.
func (a *ForgeApp) Close() error {
	var firstErr error

	if err := a.history.Close(); err != nil {
		firstErr = fmt.Errorf("closing history store: %w", err)
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}

	return firstErr
}
