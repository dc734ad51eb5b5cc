package langcode

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	tbl, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	tests := []struct {
		name string
		code string
	}{
		{"Finnish", "fi"},
		{"English", "en"},
		{"Norwegian Bokmål", "nb"},
	}
	for _, tt := range tests {
		code, ok := tbl.Code(tt.name)
		if !ok || code != tt.code {
			t.Errorf("Code(%q) = %q, %v; want %q", tt.name, code, ok, tt.code)
		}
		name, ok := tbl.Name(tt.code)
		if !ok || name != tt.name {
			t.Errorf("Name(%q) = %q, %v; want %q", tt.code, name, ok, tt.name)
		}
	}

	if _, ok := tbl.Code("Klingon"); ok {
		t.Error("Code(Klingon) should be unresolved")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "extra.yaml")
	data := "Klingon: tlh\nFinnish: fin\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if code, _ := tbl.Code("Klingon"); code != "tlh" {
		t.Errorf("Code(Klingon) = %q, want tlh", code)
	}
	if code, _ := tbl.Code("Finnish"); code != "fin" {
		t.Errorf("Code(Finnish) = %q, want fin (override)", code)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not a mapping", "- a\n- b\n"},
		{"empty code", "Finnish: \"\"\n"},
	}
	for _, tt := range tests {
		if _, err := Parse([]byte(tt.data)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
