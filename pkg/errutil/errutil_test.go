package errutil

import (
	"errors"
	"strings"
	"testing"
)

func TestHandleConfigErrorWraps(t *testing.T) {
	base := errors.New("disk full")
	err := HandleConfigError("save", "/tmp/g1.json", func() error { return base })
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if !strings.Contains(err.Error(), "config save /tmp/g1.json") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err := HandleConfigError("load", "x", func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestHandleDiscordErrorPassesThrough(t *testing.T) {
	base := errors.New("rate limited")
	if err := HandleDiscordError("respond", func() error { return base }); err != base {
		t.Fatalf("expected same error, got %v", err)
	}
	if err := HandleDiscordError("respond", nil); err == nil {
		t.Fatalf("expected error for nil fn")
	}
}
