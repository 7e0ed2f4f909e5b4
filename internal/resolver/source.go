package resolver

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Source loads raw documents by reference. `from` is the resolved reference
// of the referring document (empty for top-level loads); implementations
// resolve relative references against it.
type Source interface {
	Load(ref, from string) (doc map[string]any, resolved string, err error)
}

// FileSource loads YAML documents from the filesystem, resolving relative
// references against the referring document's directory.
type FileSource struct{}

// Load implements Source.
func (FileSource) Load(ref, from string) (map[string]any, string, error) {
	path := ref
	if !filepath.IsAbs(path) && from != "" {
		path = filepath.Join(filepath.Dir(from), ref)
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc == nil {
		return nil, "", fmt.Errorf("%s: expected a mapping at the document root", path)
	}
	return doc, path, nil
}

// MapSource serves documents from an in-memory map keyed by reference.
// References are returned as-is; relative resolution is the caller's
// concern. Used by tests and embedded callers.
type MapSource map[string]map[string]any

// Load implements Source.
func (m MapSource) Load(ref, _ string) (map[string]any, string, error) {
	doc, ok := m[ref]
	if !ok {
		return nil, "", fmt.Errorf("document %q not found", ref)
	}
	return doc, ref, nil
}
