// Package sysfs implements the device catalog against the kernel's
// /sys/block tree and the mount table.
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"forge-go/internal/forge"
)

// Catalog scans /sys/block for removable block devices, excluding anything
// that could be the running system's boot disk. The kernel's "removable"
// attribute is the authoritative removability signal; no path-based
// heuristics are applied.
type Catalog struct {
	sysBlockDir string
	devDir      string
	mountsPath  string
	logger      forge.Logger
}

// NewCatalog creates a catalog backed by the real kernel paths.
func NewCatalog(logger forge.Logger) *Catalog {
	return NewCatalogAt("/sys/block", "/dev", "/proc/mounts", logger)
}

// NewCatalogAt creates a catalog rooted at alternate paths so tests can scan
// a fabricated sysfs tree and mount table.
func NewCatalogAt(sysBlockDir, devDir, mountsPath string, logger forge.Logger) *Catalog {
	return &Catalog{
		sysBlockDir: sysBlockDir,
		devDir:      devDir,
		mountsPath:  mountsPath,
		logger:      logger,
	}
}

type mountEntry struct {
	device     string
	mountPoint string
}

// ListRemovableDevices enumerates removable block devices that are safe to
// image. The boot disk's parent device is always excluded; if it cannot be
// resolved, no list is returned at all (ErrSystemDiskUnknown).
func (c *Catalog) ListRemovableDevices() ([]forge.BlockDevice, error) {
	mounts, err := c.readMounts()
	if err != nil {
		return nil, fmt.Errorf("reading mount table %s: %w", c.mountsPath, err)
	}

	systemParent, ok := c.systemDiskParent(mounts)
	if !ok {
		return nil, fmt.Errorf("resolving boot disk from %s: %w", c.mountsPath, forge.ErrSystemDiskUnknown)
	}
	c.logger.Debug("resolved system disk parent", "path", systemParent)

	entries, err := os.ReadDir(c.sysBlockDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.sysBlockDir, err)
	}

	var devices []forge.BlockDevice
	for _, entry := range entries {
		name := entry.Name()

		// Synthetic loopback devices are never imaging targets.
		if strings.HasPrefix(name, "loop") {
			continue
		}

		devPath := filepath.Join(c.devDir, name)
		if devPath == systemParent {
			continue
		}

		if !c.readSysFlag(name, "removable") {
			continue
		}

		sectors := c.readSysUint(name, "size")
		if sectors == 0 {
			// Empty card-reader slots report a zero sector count.
			continue
		}

		devices = append(devices, forge.BlockDevice{
			Path:       devPath,
			KernelName: name,
			SizeBytes:  sectors * 512,
			MountPoint: firstMountFor(mounts, name),
		})
	}

	return devices, nil
}

// systemDiskParent resolves the mount point for the root filesystem to its
// backing partition and strips the partition suffix to get the parent disk.
func (c *Catalog) systemDiskParent(mounts []mountEntry) (string, bool) {
	for _, m := range mounts {
		if m.mountPoint != "/" {
			continue
		}
		// Root mounted from something that is not a device node
		// (tmpfs, /dev/root indirection, UUID= spec) cannot be
		// resolved to a disk, and guessing is not an option here.
		base := filepath.Base(m.device)
		if !strings.ContainsRune(m.device, '/') || base == "" || base == "root" {
			return "", false
		}
		return filepath.Join(c.devDir, parentDeviceName(base)), true
	}
	return "", false
}

// parentDeviceName strips the partition suffix from a kernel device name:
// sda1 -> sda (alphabetic-suffix rule), nvme0n1p2 -> nvme0n1 and
// mmcblk0p1 -> mmcblk0 (p<N> rule).
func parentDeviceName(name string) string {
	if strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk") {
		if i := strings.LastIndex(name, "p"); i > 0 && i < len(name)-1 {
			if _, err := strconv.Atoi(name[i+1:]); err == nil {
				return name[:i]
			}
		}
		return name
	}
	return strings.TrimRight(name, "0123456789")
}

// firstMountFor finds a live mount point for the device: the first mount
// table entry whose device name is prefixed by the block device's kernel
// name (e.g. "sdd1" for "sdd"). First match wins, in table order.
func firstMountFor(mounts []mountEntry, kernelName string) string {
	for _, m := range mounts {
		if strings.HasPrefix(filepath.Base(m.device), kernelName) && m.mountPoint != "" {
			return m.mountPoint
		}
	}
	return ""
}

func (c *Catalog) readMounts() ([]mountEntry, error) {
	data, err := os.ReadFile(c.mountsPath)
	if err != nil {
		return nil, err
	}

	var mounts []mountEntry
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		mounts = append(mounts, mountEntry{device: fields[0], mountPoint: fields[1]})
	}
	return mounts, nil
}

// readSysFlag reads a boolean attribute like /sys/block/<name>/removable.
// Unreadable attributes count as false, which errs toward exclusion.
func (c *Catalog) readSysFlag(name, attr string) bool {
	return c.readSysFile(name, attr) == "1"
}

// readSysUint reads a numeric attribute like /sys/block/<name>/size.
// Unreadable or unparsable attributes count as zero.
func (c *Catalog) readSysUint(name, attr string) uint64 {
	v, err := strconv.ParseUint(c.readSysFile(name, attr), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (c *Catalog) readSysFile(name, attr string) string {
	data, err := os.ReadFile(filepath.Join(c.sysBlockDir, name, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
