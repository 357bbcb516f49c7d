package sysfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"forge-go/internal/forge"
)

// fakeSysfs builds a /sys/block-style tree plus a mount table under a temp
// dir and returns a catalog rooted at it.
type fakeSysfs struct {
	t        *testing.T
	sysBlock string
	dev      string
	mounts   string
}

func newFakeSysfs(t *testing.T) *fakeSysfs {
	t.Helper()
	root := t.TempDir()
	f := &fakeSysfs{
		t:        t,
		sysBlock: filepath.Join(root, "sys", "block"),
		dev:      filepath.Join(root, "dev"),
		mounts:   filepath.Join(root, "mounts"),
	}
	if err := os.MkdirAll(f.sysBlock, 0755); err != nil {
		t.Fatal(err)
	}
	f.setMounts("")
	return f
}

func (f *fakeSysfs) addDevice(name, removable string, sectors string) {
	f.t.Helper()
	dir := filepath.Join(f.sysBlock, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "removable"), []byte(removable+"\n"), 0644); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "size"), []byte(sectors+"\n"), 0644); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fakeSysfs) setMounts(content string) {
	f.t.Helper()
	if err := os.WriteFile(f.mounts, []byte(content), 0644); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fakeSysfs) catalog() *Catalog {
	return NewCatalogAt(f.sysBlock, f.dev, f.mounts, forge.NewNopLogger())
}

func TestCatalog_ListRemovableDevices(t *testing.T) {
	t.Run("excludes non-removable devices", func(t *testing.T) {
		t.Parallel()
		f := newFakeSysfs(t)
		f.addDevice("nvme0n1", "0", "1953525168")
		f.addDevice("sda", "0", "976773168")
		f.addDevice("sdd", "1", "60948480")
		f.setMounts(filepath.Join(f.dev, "nvme0n1p2") + " / ext4 rw 0 0\n")

		devices, err := f.catalog().ListRemovableDevices()
		if err != nil {
			t.Fatalf("ListRemovableDevices() error = %v", err)
		}
		if len(devices) != 1 {
			t.Fatalf("got %d devices, want 1", len(devices))
		}
		if devices[0].KernelName != "sdd" {
			t.Errorf("KernelName = %q, want %q", devices[0].KernelName, "sdd")
		}
	})

	t.Run("excludes zero-size devices even when removable", func(t *testing.T) {
		t.Parallel()
		f := newFakeSysfs(t)
		f.addDevice("sdb", "1", "0")
		f.addDevice("sdc", "1", "0")
		f.setMounts(filepath.Join(f.dev, "sda1") + " / ext4 rw 0 0\n")

		devices, err := f.catalog().ListRemovableDevices()
		if err != nil {
			t.Fatalf("ListRemovableDevices() error = %v", err)
		}
		if len(devices) != 0 {
			t.Fatalf("got %d devices, want 0", len(devices))
		}
	})

	t.Run("excludes system disk parent even when flagged removable", func(t *testing.T) {
		t.Parallel()
		f := newFakeSysfs(t)
		f.addDevice("mmcblk0", "1", "62333952")
		f.setMounts(filepath.Join(f.dev, "mmcblk0p2") + " / ext4 rw 0 0\n")

		devices, err := f.catalog().ListRemovableDevices()
		if err != nil {
			t.Fatalf("ListRemovableDevices() error = %v", err)
		}
		if len(devices) != 0 {
			t.Fatalf("got %d devices, want 0 (boot disk must be excluded)", len(devices))
		}
	})

	t.Run("excludes loop devices", func(t *testing.T) {
		t.Parallel()
		f := newFakeSysfs(t)
		f.addDevice("loop0", "1", "204800")
		f.setMounts(filepath.Join(f.dev, "sda1") + " / ext4 rw 0 0\n")

		devices, err := f.catalog().ListRemovableDevices()
		if err != nil {
			t.Fatalf("ListRemovableDevices() error = %v", err)
		}
		if len(devices) != 0 {
			t.Fatalf("got %d devices, want 0", len(devices))
		}
	})

	t.Run("fails when root mount cannot be resolved", func(t *testing.T) {
		t.Parallel()
		f := newFakeSysfs(t)
		f.addDevice("sdd", "1", "60948480")
		f.setMounts("tmpfs /tmp tmpfs rw 0 0\n")

		_, err := f.catalog().ListRemovableDevices()
		if !errors.Is(err, forge.ErrSystemDiskUnknown) {
			t.Fatalf("error = %v, want ErrSystemDiskUnknown", err)
		}
	})

	t.Run("fails when root is not backed by a device node", func(t *testing.T) {
		t.Parallel()
		f := newFakeSysfs(t)
		f.addDevice("sdd", "1", "60948480")
		f.setMounts("overlay / overlay rw 0 0\n")

		_, err := f.catalog().ListRemovableDevices()
		if !errors.Is(err, forge.ErrSystemDiskUnknown) {
			t.Fatalf("error = %v, want ErrSystemDiskUnknown", err)
		}
	})

	t.Run("computes size from sector count", func(t *testing.T) {
		t.Parallel()
		f := newFakeSysfs(t)
		f.addDevice("sdd", "1", "60948480")
		f.setMounts(filepath.Join(f.dev, "sda1") + " / ext4 rw 0 0\n")

		devices, err := f.catalog().ListRemovableDevices()
		if err != nil {
			t.Fatalf("ListRemovableDevices() error = %v", err)
		}
		if len(devices) != 1 {
			t.Fatalf("got %d devices, want 1", len(devices))
		}
		want := uint64(60948480) * 512
		if devices[0].SizeBytes != want {
			t.Errorf("SizeBytes = %d, want %d", devices[0].SizeBytes, want)
		}
	})

	t.Run("reports first mount point of a partition", func(t *testing.T) {
		t.Parallel()
		f := newFakeSysfs(t)
		f.addDevice("sdd", "1", "60948480")
		f.setMounts(
			filepath.Join(f.dev, "sda1") + " / ext4 rw 0 0\n" +
				filepath.Join(f.dev, "sdd1") + " /media/usb vfat rw 0 0\n" +
				filepath.Join(f.dev, "sdd2") + " /media/other ext4 rw 0 0\n")

		devices, err := f.catalog().ListRemovableDevices()
		if err != nil {
			t.Fatalf("ListRemovableDevices() error = %v", err)
		}
		if len(devices) != 1 {
			t.Fatalf("got %d devices, want 1", len(devices))
		}
		if devices[0].MountPoint != "/media/usb" {
			t.Errorf("MountPoint = %q, want %q", devices[0].MountPoint, "/media/usb")
		}
	})

	t.Run("unmounted device has empty mount point", func(t *testing.T) {
		t.Parallel()
		f := newFakeSysfs(t)
		f.addDevice("sdd", "1", "60948480")
		f.setMounts(filepath.Join(f.dev, "sda1") + " / ext4 rw 0 0\n")

		devices, err := f.catalog().ListRemovableDevices()
		if err != nil {
			t.Fatalf("ListRemovableDevices() error = %v", err)
		}
		if devices[0].MountPoint != "" {
			t.Errorf("MountPoint = %q, want empty", devices[0].MountPoint)
		}
	})
}

func TestParentDeviceName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want string
	}{
		{"sda1", "sda"},
		{"sdb12", "sdb"},
		{"sdc", "sdc"},
		{"nvme0n1p2", "nvme0n1"},
		{"nvme0n1", "nvme0n1"},
		{"mmcblk0p1", "mmcblk0"},
		{"mmcblk0", "mmcblk0"},
	}
	for _, tt := range tests {
		if got := parentDeviceName(tt.name); got != tt.want {
			t.Errorf("parentDeviceName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
