package fault

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestManager_InstallRemove(t *testing.T) {
	m := NewManager(nil)
	if err := m.AssertNoHandlers(); err != nil {
		t.Fatal(err)
	}
	if err := m.AssertInstalled(); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}

	// remove without install is a no-op
	m.Remove()

	if err := m.Install(); err != nil {
		t.Fatal(err)
	}
	if err := m.Install(); err != nil {
		t.Fatal(err)
	}
	if err := m.AssertInstalled(); err != nil {
		t.Fatal(err)
	}
	if err := m.AssertNoHandlers(); !errors.Is(err, ErrResidualHandlers) {
		t.Fatalf("expected ErrResidualHandlers, got %v", err)
	}

	m.Remove()
	if err := m.AssertNoHandlers(); err != nil {
		t.Fatal(err)
	}
	if m.Intercept(Fault{Kind: KindSegmentation}) {
		t.Fatal("intercepted without handlers")
	}
}

func TestManager_Intercept(t *testing.T) {
	m := NewManager(nil)
	if err := m.Handle(KindSegmentation, func(Fault) {}); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
	if err := m.Install(); err != nil {
		t.Fatal(err)
	}
	defer m.Remove()

	var (
		mu  sync.Mutex
		got []Fault
	)
	err := m.HandleAll(func(f Fault) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, k := range Kinds() {
		if !m.Intercept(Fault{Kind: k, Signal: k.Signal(), Origin: OriginPayload}) {
			t.Errorf("%v not intercepted", k)
		}
	}
	if len(got) != len(Kinds()) {
		t.Fatalf("handled %d faults, expected %d", len(got), len(Kinds()))
	}
}

func TestManager_Trigger(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Trigger(ctx, KindTrap); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}

	if err := m.Install(); err != nil {
		t.Fatal(err)
	}
	defer m.Remove()

	handled := make(chan Fault, 1)
	if err := m.Handle(KindTrap, func(f Fault) { handled <- f }); err != nil {
		t.Fatal(err)
	}

	for _, k := range []Kind{KindTrap, KindDisallowedSyscall, KindSegmentation} {
		if err := m.Trigger(ctx, k); err != nil {
			t.Fatalf("trigger %v: %v", k, err)
		}
	}

	// triggers are consumed before reaching handlers
	select {
	case f := <-handled:
		t.Fatalf("trigger reached handler: %v", f)
	default:
	}
}

func TestManager_TriggerInvalidKind(t *testing.T) {
	m := NewManager(nil)
	if err := m.Install(); err != nil {
		t.Fatal(err)
	}
	defer m.Remove()

	if err := m.Trigger(context.Background(), KindNone); err == nil {
		t.Fatal("expected error for KindNone")
	}
}
