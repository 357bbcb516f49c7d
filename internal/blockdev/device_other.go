//go:build !linux

package blockdev

import "os"

// Non-Linux builds exist for development only; they see regular files, not
// raw device nodes, so there is no unbuffered open or kernel size query.

func openDeviceForWrite(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY, 0)
}

func queryDeviceSize(f *os.File) (uint64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}
