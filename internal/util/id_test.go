package util

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	id := NewID("run")
	if !strings.HasPrefix(id, "run_") || len(id) != len("run_")+32 {
		t.Fatalf("NewID() = %q", id)
	}
	if NewID("run") == id {
		t.Fatal("expected distinct ids")
	}
	if got := NewID(""); len(got) != 32 {
		t.Fatalf("NewID(\"\") = %q", got)
	}
}

func TestNewRunID(t *testing.T) {
	started := time.Date(2025, 1, 6, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	id := NewRunID(started)
	if !regexp.MustCompile(`^run_20250106T093000Z_[0-9a-f]{8}$`).MatchString(id) {
		t.Fatalf("NewRunID() = %q", id)
	}

	later := NewRunID(started.Add(time.Second))
	if later <= id {
		t.Fatalf("expected %q to sort after %q", later, id)
	}
}
