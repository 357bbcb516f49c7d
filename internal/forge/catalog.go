package forge

import "fmt"

// BlockDevice describes a removable block device found by a catalog scan.
// Instances are constructed fresh on every scan, never mutated afterwards,
// and discarded once the operation that used them completes.
type BlockDevice struct {
	// Path is the OS device path, e.g. "/dev/sdd".
	Path string
	// KernelName is the kernel's name for the device, e.g. "sdd".
	KernelName string
	// SizeBytes is the capacity computed from the kernel-reported sector
	// count. Always greater than zero for devices surfaced by a catalog.
	SizeBytes uint64
	// MountPoint is the first mount point found for the device or any of
	// its partitions. Empty means nothing is mounted.
	MountPoint string
}

// SizeGB returns the capacity in gigabytes for display.
func (d BlockDevice) SizeGB() float64 {
	return float64(d.SizeBytes) / (1024 * 1024 * 1024)
}

// MountStatus renders the mount state the way selection menus present it.
func (d BlockDevice) MountStatus() string {
	if d.MountPoint != "" {
		return fmt.Sprintf("[Mounted at %s]", d.MountPoint)
	}
	return "[Not mounted]"
}

func (d BlockDevice) String() string {
	return fmt.Sprintf("%-15s %.1f GB %s", d.Path, d.SizeGB(), d.MountStatus())
}

// DeviceCatalog enumerates removable block devices that are safe to image.
// Implementations must never include the running system's boot disk. If the
// boot disk cannot be identified, they return ErrSystemDiskUnknown instead
// of risking a false negative.
type DeviceCatalog interface {
	ListRemovableDevices() ([]BlockDevice, error)
}
