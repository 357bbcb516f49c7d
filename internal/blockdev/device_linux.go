//go:build linux

package blockdev

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// openDeviceForWrite opens the destination with O_DIRECT so writes bypass
// the page cache. Filesystems that reject O_DIRECT (tmpfs, some overlays)
// get a plain buffered open instead; alignment and whole-block writes still
// hold either way.
func openDeviceForWrite(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_DIRECT, 0)
	if err != nil && (errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTSUP)) {
		return os.OpenFile(path, os.O_WRONLY, 0)
	}
	return f, err
}

// queryDeviceSize asks the kernel for the device capacity via BLKGETSIZE64.
// Seeking is unreliable on block devices, so the ioctl is authoritative.
// Regular files answer ENOTTY and fall back to stat; that path serves image
// fixtures in tests.
func queryDeviceSize(f *os.File) (uint64, error) {
	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno == 0 {
		return size, nil
	}
	if errno != unix.ENOTTY {
		return 0, errno
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}
