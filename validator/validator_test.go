package validator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/criyle/go-sel/pkg/etag"
	"github.com/criyle/go-sel/types"
)

const helperEnv = "SEL_VALIDATOR_HELPER"

// TestHelperProcess is not a real test, it is the validator run by the tests
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}
	path := os.Args[len(os.Args)-1]
	switch mode {
	case "pass":
		fmt.Println("valid")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "bad instruction at 0x10")
		os.Exit(1)
	case "mutate":
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			os.Exit(2)
		}
		f.Write([]byte{0x90})
		f.Close()
		os.Exit(0)
	}
	os.Exit(3)
}

func helperGateway(t *testing.T, mode string) *Gateway {
	t.Setenv(helperEnv, mode)
	return &Gateway{Command: []string{os.Args[0], "-test.run=^TestHelperProcess$", "--"}}
}

func writePayload(t *testing.T) string {
	p := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(p, []byte("\x7fELF payload"), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mode    string
		verdict types.Verdict
		status  int
		err     error
	}{
		{"pass", types.VerdictPassed, 0, nil},
		{"fail", types.VerdictFailed, 1, nil},
		{"mutate", types.VerdictFailed, -1, ErrChanged},
	}
	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			p := writePayload(t)
			want, err := etag.File(p)
			if err != nil {
				t.Fatal(err)
			}

			res, err := helperGateway(t, tc.mode).Validate(context.Background(), p)
			if res.Verdict != tc.verdict {
				t.Fatalf("verdict = %v, expected %v (%v)", res.Verdict, tc.verdict, err)
			}
			if res.ExitStatus != tc.status {
				t.Errorf("exit status = %d, expected %d", res.ExitStatus, tc.status)
			}
			if tc.verdict == types.VerdictPassed {
				if err != nil {
					t.Fatal(err)
				}
				if res.Pinned != want {
					t.Errorf("pinned %v, expected %v", res.Pinned, want)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error with failed verdict")
			}
			if tc.err != nil && !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if !res.Pinned.IsZero() {
				t.Error("failed validation pinned a digest")
			}
		})
	}
}

func TestValidate_LaunchFailure(t *testing.T) {
	g := &Gateway{Command: []string{filepath.Join(t.TempDir(), "no-such-validator")}}
	res, err := g.Validate(context.Background(), writePayload(t))
	if err == nil || res.Verdict != types.VerdictFailed {
		t.Fatalf("got %v %v", res.Verdict, err)
	}
}

func TestValidate_MissingPayload(t *testing.T) {
	g := helperGateway(t, "pass")
	path := filepath.Join(t.TempDir(), "missing")
	res, err := g.Validate(context.Background(), path)
	if err == nil || res.Verdict != types.VerdictFailed {
		t.Fatalf("got %v %v", res.Verdict, err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if n := strings.Count(err.Error(), path); n != 1 {
		t.Errorf("expected the path once in %q, got %d", err, n)
	}
}

func TestValidate_Bypass(t *testing.T) {
	g := &Gateway{Command: []string{"false"}, Bypass: true}
	res, err := g.Validate(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != types.VerdictNotAttempted {
		t.Fatalf("verdict = %v", res.Verdict)
	}
}
