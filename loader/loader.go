// Package loader checks the captured payload image and turns it into a sealed
// executable image. It reads only the snapshot channel, never the path.
package loader

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"

	"github.com/criyle/go-sel/pkg/gio"
	"github.com/criyle/go-sel/pkg/memfd"
	"github.com/criyle/go-sel/types"
)

// Image is a loaded payload ready for control transfer
type Image struct {
	// File is a sealed memfd holding the exact captured bytes
	File    *os.File
	Entry   uint64
	Machine elf.Machine
	Type    elf.Type
	Size    int64
}

// Close releases the image
func (i *Image) Close() error {
	if i == nil || i.File == nil {
		return nil
	}
	return i.File.Close()
}

func (i *Image) String() string {
	return fmt.Sprintf("Image[%v %v entry=%#x size=%v]", i.Machine, i.Type, i.Entry, types.Size(i.Size))
}

var machines = map[string]elf.Machine{
	"386":     elf.EM_386,
	"amd64":   elf.EM_X86_64,
	"arm":     elf.EM_ARM,
	"arm64":   elf.EM_AARCH64,
	"loong64": elf.EM_LOONGARCH,
	"mips64":  elf.EM_MIPS,
	"ppc64le": elf.EM_PPC64,
	"riscv64": elf.EM_RISCV,
	"s390x":   elf.EM_S390,
}

// HostMachine returns the ELF machine of the running architecture
func HostMachine() (elf.Machine, bool) {
	m, ok := machines[runtime.GOARCH]
	return m, ok
}

func hostClass() elf.Class {
	if strconv.IntSize == 64 {
		return elf.ELFCLASS64
	}
	return elf.ELFCLASS32
}

// Loader loads images
type Loader struct {
	Logger *slog.Logger
}

// Load checks the content of ch and copies it into a sealed image. The
// returned status is LoadOK if and only if the image is not nil.
func (l *Loader) Load(ch gio.Channel, name string) (*Image, types.LoadStatus, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	size, err := ch.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, types.LoadReadError, fmt.Errorf("load: size: %w", err)
	}
	if _, err := ch.Seek(0, io.SeekStart); err != nil {
		return nil, types.LoadReadError, fmt.Errorf("load: rewind: %w", err)
	}

	f, st, err := check(gio.NewReaderAt(ch), size)
	if err != nil {
		logger.Debug("payload rejected", "status", st.String(), "error", err)
		return nil, st, err
	}

	if _, err := ch.Seek(0, io.SeekStart); err != nil {
		return nil, types.LoadReadError, fmt.Errorf("load: rewind: %w", err)
	}
	file, err := memfd.Seal(name, io.LimitReader(ch, size))
	if err != nil {
		return nil, types.LoadImageError, fmt.Errorf("load: %w", err)
	}
	img := &Image{
		File:    file,
		Entry:   f.Entry,
		Machine: f.Machine,
		Type:    f.Type,
		Size:    size,
	}
	logger.Debug("payload loaded", "image", img.String())
	return img, types.LoadOK, nil
}

// check verifies the ELF image in r of the given size
func check(r io.ReaderAt, size int64) (*elf.File, types.LoadStatus, error) {
	var ident [elf.EI_NIDENT]byte
	if _, err := r.ReadAt(ident[:], 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, types.LoadBadElfMagic, fmt.Errorf("load: file too short (%d bytes)", size)
		}
		return nil, types.LoadReadError, fmt.Errorf("load: read ident: %w", err)
	}
	if !bytes.Equal(ident[:4], []byte(elf.ELFMAG)) {
		return nil, types.LoadBadElfMagic, fmt.Errorf("load: bad magic % x", ident[:4])
	}
	if c := elf.Class(ident[elf.EI_CLASS]); c != hostClass() {
		return nil, types.LoadBadElfClass, fmt.Errorf("load: class %v, host needs %v", c, hostClass())
	}

	f, err := elf.NewFile(r)
	if err != nil {
		return nil, types.LoadBadHeader, fmt.Errorf("load: %w", err)
	}

	host, ok := HostMachine()
	if !ok {
		return nil, types.LoadBadMachine, fmt.Errorf("load: unsupported host architecture %s", runtime.GOARCH)
	}
	if f.Machine != host {
		return nil, types.LoadBadMachine,
			fmt.Errorf("load: machine %v does not match host %v (%s), was the payload built for another architecture?", f.Machine, host, runtime.GOARCH)
	}
	if f.Type != elf.ET_EXEC && f.Type != elf.ET_DYN {
		return nil, types.LoadBadType, fmt.Errorf("load: type %v is not executable", f.Type)
	}

	var (
		loads    int
		entryOK  bool
		fileSize = uint64(size)
	)
	for i, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		loads++
		if p.Off > fileSize || p.Filesz > fileSize-p.Off {
			return nil, types.LoadSegmentOutsideFile,
				fmt.Errorf("load: segment %d [%#x, +%#x) outside file of %d bytes", i, p.Off, p.Filesz, size)
		}
		if p.Flags&elf.PF_X != 0 && f.Entry >= p.Vaddr && f.Entry-p.Vaddr < p.Memsz {
			entryOK = true
		}
	}
	if loads == 0 {
		return nil, types.LoadNoSegments, errors.New("load: no PT_LOAD segment")
	}
	if !entryOK {
		return nil, types.LoadBadEntry, fmt.Errorf("load: entry %#x not in an executable segment", f.Entry)
	}
	return f, types.LoadOK, nil
}
