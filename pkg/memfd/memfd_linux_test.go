package memfd

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func TestNew(t *testing.T) {
	f, err := New("test-memfd")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer f.Close()

	data := []byte("hello world")
	if n, err := f.Write(data); err != nil || n != len(data) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	sealed, err := IsSealed(f)
	if err != nil {
		t.Fatalf("IsSealed: %v", err)
	}
	if sealed {
		t.Error("fresh memfd reported as sealed")
	}
}

func TestSeal(t *testing.T) {
	content := []byte("\x7fELF image bytes")
	f, err := Seal("seal-memfd", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	defer f.Close()

	sealed, err := IsSealed(f)
	if err != nil || !sealed {
		t.Fatalf("IsSealed = %v, %v", sealed, err)
	}
	if _, err = f.Write([]byte("fail")); err == nil {
		t.Error("expected write to sealed memfd to fail, but it succeeded")
	}
	if err := f.Truncate(0); err == nil {
		t.Error("expected truncate of sealed memfd to fail")
	}

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("ReadAll = %q, want %q", got, content)
	}
}

func TestSeal_ErrorPropagation(t *testing.T) {
	if _, err := Seal("seal-memfd-err", errorReader{}); err == nil {
		t.Error("expected error from Seal, got nil")
	}
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) { return 0, os.ErrInvalid }
