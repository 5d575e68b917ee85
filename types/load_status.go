package types

// LoadStatus is the terminal value produced by the load step.
// It gates whether control transfer happens.
type LoadStatus int

// Load statuses. LoadOK is the only value that allows the payload to run.
const (
	LoadOK LoadStatus = iota
	LoadInternal
	LoadOpenError
	LoadReadError
	LoadBadElfMagic
	LoadBadElfClass
	LoadBadHeader
	LoadBadMachine
	LoadBadType
	LoadNoSegments
	LoadSegmentOutsideFile
	LoadBadEntry
	LoadImageError
)

var loadStatusString = []string{
	"OK",
	"Internal error",
	"Cannot open file",
	"Cannot read file",
	"Bad ELF header magic number",
	"Bad ELF class for this host",
	"Malformed ELF header",
	"Bad ELF machine for this host",
	"ELF file is not an executable",
	"ELF file has no loadable segments",
	"ELF segment lies outside the file",
	"ELF entry point is not in an executable segment",
	"Cannot create sealed image",
}

func (s LoadStatus) String() string {
	i := int(s)
	if i >= 0 && i < len(loadStatusString) {
		return loadStatusString[i]
	}
	return loadStatusString[LoadInternal]
}

func (s LoadStatus) Error() string {
	return s.String()
}

// Format reports whether the status describes malformed or
// architecture-mismatched content rather than an I/O problem
func (s LoadStatus) Format() bool {
	return s >= LoadBadElfMagic && s <= LoadBadEntry
}
