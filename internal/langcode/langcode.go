// Package langcode resolves language names used in section headings to
// language codes and back.
package langcode

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var builtin []byte

// Table is an immutable name/code lookup. It is safe for concurrent use.
type Table struct {
	byName map[string]string
	byCode map[string]string
}

// Default returns the table built from the embedded language list.
func Default() (*Table, error) {
	return Parse(builtin)
}

// Load returns the embedded table extended with the entries in path.
// Entries in path override built-in ones with the same name.
func Load(path string) (*Table, error) {
	t, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("langcode: read %s: %w", path, err)
	}
	extra, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("langcode: %s: %w", path, err)
	}
	for name, code := range extra.byName {
		t.add(name, code)
	}
	return t, nil
}

// Parse builds a table from a YAML mapping of language name to code.
func Parse(data []byte) (*Table, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("langcode: parse: %w", err)
	}

	t := &Table{
		byName: make(map[string]string, len(raw)),
		byCode: make(map[string]string, len(raw)),
	}
	for name, code := range raw {
		name, code = strings.TrimSpace(name), strings.TrimSpace(code)
		if name == "" || code == "" {
			return nil, fmt.Errorf("langcode: empty name or code in %q: %q", name, code)
		}
		t.add(name, code)
	}
	return t, nil
}

func (t *Table) add(name, code string) {
	t.byName[name] = code
	t.byCode[code] = name
}

// Code returns the code for a language name.
func (t *Table) Code(name string) (string, bool) {
	code, ok := t.byName[strings.TrimSpace(name)]
	return code, ok
}

// Name returns the language name for a code.
func (t *Table) Name(code string) (string, bool) {
	name, ok := t.byCode[code]
	return name, ok
}

// Len returns the number of known languages.
func (t *Table) Len() int { return len(t.byName) }
