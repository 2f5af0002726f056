package common

import (
	"errors"
	"testing"
)

func TestGuardNilView(t *testing.T) {
	if err := Guard(nil, "pool"); err != nil {
		t.Fatalf("nil view: %v", err)
	}
}

func TestGuardPaused(t *testing.T) {
	pauses := NewPauses("pool")
	if err := Guard(pauses, "pool"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("err = %v, want %v", err, ErrModulePaused)
	}
	if err := Guard(pauses, "other"); err != nil {
		t.Fatalf("unpaused module: %v", err)
	}
}

func TestPausesSet(t *testing.T) {
	pauses := NewPauses()
	if pauses.IsPaused("pool") {
		t.Fatal("fresh view must not pause")
	}
	pauses.Set("pool", true)
	if !pauses.IsPaused("pool") {
		t.Fatal("pause flag not set")
	}
	pauses.Set("pool", false)
	if pauses.IsPaused("pool") {
		t.Fatal("pause flag not cleared")
	}
}

func TestGuardEmptyModule(t *testing.T) {
	pauses := NewPauses("")
	if err := Guard(pauses, ""); err != nil {
		t.Fatalf("empty module: %v", err)
	}
}
