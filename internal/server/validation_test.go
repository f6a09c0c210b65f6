package server

import (
	"strings"
	"testing"
)

func TestValidateGameName(t *testing.T) {
	name, err := validateGameName("  Sprint    12 ")
	if err != nil {
		t.Fatalf("expected valid name, got %v", err)
	}
	if name != "Sprint 12" {
		t.Fatalf("expected normalized name, got %q", name)
	}
	if _, err := validateGameName(strings.Repeat("a", maxGameNameLength+1)); err == nil {
		t.Fatalf("expected error for long name")
	}
	if _, err := validateGameName("bad\x00name"); err == nil {
		t.Fatalf("expected error for control character")
	}
	if _, err := validateGameName(" \t "); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestValidateStoryNameAllowsLinks(t *testing.T) {
	input := "Fix <login> https://example.com/issues/42 für Café"
	name, err := validateStoryName(input)
	if err != nil {
		t.Fatalf("expected valid story name, got %v", err)
	}
	if name != input {
		t.Fatalf("expected %q, got %q", input, name)
	}
}
