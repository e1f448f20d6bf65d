package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mindscape-ai/core/internal/playbook"
)

// FSSource is a Source backed by a directory of playbook files (§6
// "Playbook file format"), the local single-user adapter's only
// template source: every `.md` file directly under the directory is
// parsed as one Template. This source provides no variants.
type FSSource struct {
	name string
	dir  string
}

// NewFSSource constructs an FSSource rooted at dir.
func NewFSSource(name, dir string) *FSSource {
	return &FSSource{name: name, dir: dir}
}

// Name implements Source.
func (f *FSSource) Name() string { return f.name }

// ListTemplates implements Source, parsing every top-level `.md` file in
// the directory as a playbook Template.
func (f *FSSource) ListTemplates(_ context.Context) ([]*playbook.Template, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry/fs: read %q: %w", f.dir, err)
	}

	var out []*playbook.Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(f.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("registry/fs: read %q: %w", path, err)
		}
		tmpl, err := playbook.ParseFile(string(raw))
		if err != nil {
			return nil, fmt.Errorf("registry/fs: parse %q: %w", path, err)
		}
		out = append(out, tmpl)
	}
	return out, nil
}

// ListVariants implements Source. It reads nothing from disk and always
// returns nil, so templates from this source resolve to their own steps;
// the Loader's pickVariant applies the scope chain to variants from any
// Source that does return them.
func (f *FSSource) ListVariants(_ context.Context, _ string) ([]*playbook.Variant, error) {
	return nil, nil
}
