package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Size stores number of byte for the object. E.g. Memory.
// Maximum size is bounded by 64-bit limit
type Size uint64

// String stringer interface for print
func (s Size) String() string {
	t := uint64(s)
	switch {
	case t < 1<<10:
		return fmt.Sprintf("%d B", t)
	case t < 1<<20:
		return fmt.Sprintf("%.1f KiB", float64(t)/float64(1<<10))
	case t < 1<<30:
		return fmt.Sprintf("%.1f MiB", float64(t)/float64(1<<20))
	default:
		return fmt.Sprintf("%.1f GiB", float64(t)/float64(1<<30))
	}
}

// Set parse the size value from string, e.g. 256M, 1GiB, 4096
func (s *Size) Set(str string) error {
	str = strings.TrimSpace(str)
	str = strings.TrimSuffix(strings.TrimSuffix(str, "iB"), "ib")
	if str == "" {
		return fmt.Errorf("size: empty value")
	}
	switch str[len(str)-1] {
	case 'b', 'B':
		str = str[:len(str)-1]
	}
	if str == "" {
		return fmt.Errorf("size: missing number")
	}

	factor := 0
	switch str[len(str)-1] {
	case 'k', 'K':
		factor = 10
		str = str[:len(str)-1]
	case 'm', 'M':
		factor = 20
		str = str[:len(str)-1]
	case 'g', 'G':
		factor = 30
		str = str[:len(str)-1]
	}

	t, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return fmt.Errorf("size: %w", err)
	}
	if t > (1<<64-1)>>factor {
		return fmt.Errorf("size: %s overflows", str)
	}
	*s = Size(t << factor)
	return nil
}

// Type names the value for command line flag help
func (s *Size) Type() string {
	return "size"
}

// UnmarshalText parses sizes from manifests
func (s *Size) UnmarshalText(b []byte) error {
	return s.Set(string(b))
}

// MarshalText prints sizes in reports
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Byte return size in bytes
func (s Size) Byte() uint64 {
	return uint64(s)
}

// KiB return size in KiB
func (s Size) KiB() uint64 {
	return uint64(s) >> 10
}

// MiB return size in MiB
func (s Size) MiB() uint64 {
	return uint64(s) >> 20
}
