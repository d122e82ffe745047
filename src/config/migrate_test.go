package config

import (
	"strings"
	"testing"
)

func TestMigrateLatestIsNoop(t *testing.T) {
	in := []byte("version: 1\nmodifiers:\n  os: linux\n")
	out, err := MigrateToLatest(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(in) {
		t.Errorf("got %q", out)
	}
}

func TestMigrateStampsUnversionedFiles(t *testing.T) {
	out, err := MigrateToLatest([]byte("modifiers:\n  os: linux\ntargets:\n  - name: a\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), "version: 1\nmodifiers:\n") {
		t.Errorf("got:\n%s", out)
	}

	p, err := ParsePackage("migrated", out)
	if err != nil {
		t.Fatalf("migrated output does not parse: %v", err)
	}
	if _, err := ValidatePackage(p); err != nil {
		t.Errorf("migrated output invalid: %v", err)
	}
}

func TestMigrateEmptyDocument(t *testing.T) {
	out, err := MigrateToLatest(nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(out)) != "version: 1" {
		t.Errorf("got %q", out)
	}
}

func TestMigrateRejectsFutureVersion(t *testing.T) {
	_, err := MigrateToLatest([]byte("version: 7\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown config version 7") {
		t.Errorf("got %v", err)
	}
}

func TestMigrateRejectsNonMapping(t *testing.T) {
	if _, err := MigrateToLatest([]byte("- a\n- b\n")); err == nil {
		t.Error("expected error for sequence document")
	}
}
