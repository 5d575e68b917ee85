package memfd

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

const createFlag = unix.MFD_CLOEXEC | unix.MFD_ALLOW_SEALING

// ReadOnlySeals are the seals that freeze the content and the seal set
const ReadOnlySeals = unix.F_SEAL_SEAL | unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE

// New creates a new memfd, caller need to close the file
func New(name string) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, createFlag)
	if err != nil {
		return nil, fmt.Errorf("memfd: memfd_create failed %v", err)
	}
	file := os.NewFile(uintptr(fd), name)
	if file == nil {
		unix.Close(fd)
		return nil, fmt.Errorf("memfd: NewFile failed for %v", name)
	}
	return file, nil
}

// Seal copies the full content of reader into a new memfd, applies the
// read-only seals and rewinds it. The returned file can be passed to exec
// without any path being involved.
func Seal(name string, reader io.Reader) (*os.File, error) {
	file, err := New(name)
	if err != nil {
		return nil, fmt.Errorf("Seal: %w", err)
	}
	if _, err = io.Copy(file, reader); err != nil {
		file.Close()
		return nil, fmt.Errorf("Seal: copy %w", err)
	}
	if _, err = unix.FcntlInt(file.Fd(), unix.F_ADD_SEALS, ReadOnlySeals); err != nil {
		file.Close()
		return nil, fmt.Errorf("Seal: add seals %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("Seal: seek %w", err)
	}
	return file, nil
}

// IsSealed reports whether f carries every read-only seal
func IsSealed(f *os.File) (bool, error) {
	seals, err := unix.FcntlInt(f.Fd(), unix.F_GET_SEALS, 0)
	if err != nil {
		return false, fmt.Errorf("memfd: get seals %w", err)
	}
	return seals&ReadOnlySeals == ReadOnlySeals, nil
}
