// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package skills implements the Skill Registry: loading declarative
// Skill Bundles (a directory holding a SKILL.md with a YAML front-matter
// header plus markdown instructions, and optionally a native plugin
// backing its tools) from a directory tree, and serving them to the
// Mode Manager's candidate-skill enumeration.
package skills

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

const bundleFileName = "SKILL.md"

// frontMatterDelim marks the start/end of the YAML header in SKILL.md.
const frontMatterDelim = "---"

// Bundle is a loaded Skill Bundle.
type Bundle struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	ToolNames    []string `yaml:"tools"`
	Instructions string   `yaml:"-"`

	// Dir is the bundle's source directory, used to locate an optional
	// native plugin binary (plugin.go) backing ToolNames.
	Dir string `yaml:"-"`
}

// parseFrontMatter splits SKILL.md's YAML front-matter header from its
// markdown instructions body.
func parseFrontMatter(raw []byte) (yamlHeader, body []byte, err error) {
	text := string(raw)
	if !bytes.HasPrefix(raw, []byte(frontMatterDelim)) {
		return nil, nil, fmt.Errorf("skill bundle: missing %q front-matter delimiter", frontMatterDelim)
	}
	rest := text[len(frontMatterDelim):]
	end := bytes.Index([]byte(rest), []byte("\n"+frontMatterDelim))
	if end == -1 {
		return nil, nil, fmt.Errorf("skill bundle: unterminated front-matter block")
	}
	header := rest[:end]
	remainder := rest[end+len("\n"+frontMatterDelim):]
	return []byte(header), bytes.TrimLeft([]byte(remainder), "\n"), nil
}

// LoadBundle reads dir/SKILL.md and parses it into a Bundle. If name is
// absent from the front-matter, dir's base name is used.
func LoadBundle(dir string) (*Bundle, error) {
	path := filepath.Join(dir, bundleFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("skill bundle %s: %w", dir, err)
	}

	header, body, err := parseFrontMatter(raw)
	if err != nil {
		return nil, fmt.Errorf("skill bundle %s: %w", dir, err)
	}

	var b Bundle
	if err := yaml.Unmarshal(header, &b); err != nil {
		return nil, fmt.Errorf("skill bundle %s: parse front-matter: %w", dir, err)
	}
	if b.Description == "" {
		return nil, fmt.Errorf("skill bundle %s: description is required", dir)
	}
	if b.Name == "" {
		b.Name = filepath.Base(dir)
	}
	b.Instructions = string(body)
	b.Dir = dir
	return &b, nil
}

// LoadDir discovers and loads every immediate subdirectory of root that
// contains a SKILL.md, skipping (and not erroring on) subdirectories that
// don't.
func LoadDir(root string) ([]*Bundle, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("skill registry: read %s: %w", root, err)
	}

	var bundles []*Bundle
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, bundleFileName)); err != nil {
			continue
		}
		b, err := LoadBundle(dir)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// Registry is the process-wide, copy-on-read Skill Registry: the
// Skill Registry and the MCP tool list cache are process-wide,
// copy-on-read.
type Registry struct {
	mu      sync.RWMutex
	bundles map[string]*Bundle
}

func NewRegistry() *Registry {
	return &Registry{bundles: make(map[string]*Bundle)}
}

// Reload replaces the registry's contents atomically with bundles loaded
// from root — the loader re-run by fsnotify on every bundle-directory
// change (the "loading a directory with a valid SKILL.md then
// re-loading yields the same descriptor set" invariant).
func (r *Registry) Reload(root string) error {
	bundles, err := LoadDir(root)
	if err != nil {
		return err
	}
	byName := make(map[string]*Bundle, len(bundles))
	for _, b := range bundles {
		byName[b.Name] = b
	}
	r.mu.Lock()
	r.bundles = byName
	r.mu.Unlock()
	return nil
}

// Get looks up one bundle by name, for the enable_skill builtin.
func (r *Registry) Get(name string) (*Bundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bundles[name]
	return b, ok
}

// List returns a copy-on-read snapshot of all known bundles, for
// list_skills and the Mode Manager's candidate enumeration.
func (r *Registry) List() []*Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Bundle, 0, len(r.bundles))
	for _, b := range r.bundles {
		out = append(out, b)
	}
	return out
}

// ResolveTools returns the tool.Tool set a selected skill name contributes,
// by filtering toolset's resolved tools down to the bundle's ToolNames.
// Tie-break: skill-local wins over MCP on name collision is
// enforced by tool.Registry's Source.Priority ordering, not here.
func ResolveTools(ctx context.Context, bundle *Bundle, toolset tool.Toolset) ([]tool.Tool, error) {
	all, err := toolset.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve skill %s tools: %w", bundle.Name, err)
	}
	wanted := make(map[string]bool, len(bundle.ToolNames))
	for _, name := range bundle.ToolNames {
		wanted[name] = true
	}
	var out []tool.Tool
	for _, t := range all {
		if wanted[t.Descriptor().Name] {
			out = append(out, t)
		}
	}
	return out, nil
}
