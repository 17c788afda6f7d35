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

// Package tool defines the Tool Descriptor model and the Tool/Toolset
// interfaces every transport (builtin, MCP, skill-local, A2A-peer)
// implements against, generalized to the four sources this runtime
// needs, with a Toolset shape for aggregation.
package tool

import (
	"context"
	"fmt"
)

// Source names where a tool's implementation lives. Name conflicts across
// sources are resolved by priority: Builtin > SkillLocal > MCP.
type Source string

const (
	SourceBuiltin   Source = "builtin"
	SourceMCP       Source = "mcp"
	SourceSkillLocal Source = "skill-local"
	SourceA2APeer   Source = "a2a-peer"
)

// sourcePriority ranks sources for conflict resolution: lower wins.
var sourcePriority = map[Source]int{
	SourceBuiltin:    0,
	SourceSkillLocal: 1,
	SourceMCP:        2,
	SourceA2APeer:    3,
}

// Priority returns this source's resolution rank; lower values win ties.
func (s Source) Priority() int {
	if p, ok := sourcePriority[s]; ok {
		return p
	}
	return len(sourcePriority)
}

// PaidSpec marks a tool as requiring payment before the underlying
// implementation runs.
type PaidSpec struct {
	Price     float64 `json:"price" yaml:"price"`
	Currency  string  `json:"currency" yaml:"currency"`
	Recipient string  `json:"recipient" yaml:"recipient"`
}

// Descriptor is the Tool Descriptor: the model-facing metadata for one
// callable tool, independent of its transport.
type Descriptor struct {
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	InputSchema        map[string]any `json:"input_schema"`
	Source             Source         `json:"source"`
	RequireConfirmation bool          `json:"require_confirmation,omitempty"`
	Paid               *PaidSpec      `json:"paid,omitempty"`
}

// Result is the outcome of invoking a tool, mirroring session.ToolResult's
// payload shape so callers can build a session.ToolResult directly from it.
type Result struct {
	Response map[string]any
	Err      error
}

// Tool is one invocable tool: its descriptor plus an in-process Call.
// Builtin, skill-local (native plugin), MCP-bridging, and A2A-peer-bridging
// implementations all satisfy this same interface, so the agent core never
// branches on Source except when assembling the active tool set.
type Tool interface {
	Descriptor() Descriptor
	Call(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Toolset aggregates Tools from one transport (built-ins, one MCP
// server, one skill bundle, one A2A peer).
type Toolset interface {
	// Tools lists the currently available tools from this source. MCP and
	// A2A-peer toolsets may requery their remote on every call (or cache
	// with their own TTL); builtin and skill-local toolsets are static.
	Tools(ctx context.Context) ([]Tool, error)
}

// StaticToolset is a Toolset backed by a fixed, in-memory list — used by
// builtin and skill-local tool collections.
type StaticToolset struct {
	tools []Tool
}

func NewStaticToolset(tools ...Tool) *StaticToolset {
	return &StaticToolset{tools: tools}
}

func (s *StaticToolset) Tools(ctx context.Context) ([]Tool, error) {
	return s.tools, nil
}

// MultiToolset flattens several Toolsets (e.g. one per configured MCP
// server) into the single Toolset the Mode Manager's Sources expects.
type MultiToolset struct {
	sets []Toolset
}

func NewMultiToolset(sets ...Toolset) *MultiToolset {
	return &MultiToolset{sets: sets}
}

func (m *MultiToolset) Tools(ctx context.Context) ([]Tool, error) {
	var out []Tool
	for _, ts := range m.sets {
		tools, err := ts.Tools(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, tools...)
	}
	return out, nil
}

// Registry resolves a tool name to a Tool across zero or more Toolsets,
// applying the builtin > skill-local > mcp > a2a-peer priority rule when
// more than one source offers the same name.
type Registry struct {
	toolsets []Toolset
}

func NewRegistry(toolsets ...Toolset) *Registry {
	return &Registry{toolsets: toolsets}
}

// Resolve returns the active tool set as a name -> Tool map, with conflicts
// resolved by Source.Priority() (lowest wins).
func (r *Registry) Resolve(ctx context.Context) (map[string]Tool, error) {
	resolved := make(map[string]Tool)
	for _, ts := range r.toolsets {
		tools, err := ts.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		for _, t := range tools {
			d := t.Descriptor()
			existing, ok := resolved[d.Name]
			if !ok || d.Source.Priority() < existing.Descriptor().Source.Priority() {
				resolved[d.Name] = t
			}
		}
	}
	return resolved, nil
}

// Lookup resolves a single tool name across all toolsets, honoring the same
// priority rule as Resolve.
func (r *Registry) Lookup(ctx context.Context, name string) (Tool, bool, error) {
	all, err := r.Resolve(ctx)
	if err != nil {
		return nil, false, err
	}
	t, ok := all[name]
	return t, ok, nil
}

// Func adapts a plain Go function into a Tool for builtin tool
// implementations, avoiding a bespoke struct per builtin.
type Func struct {
	desc Descriptor
	fn   func(ctx context.Context, args map[string]any) (map[string]any, error)
}

func NewFunc(desc Descriptor, fn func(ctx context.Context, args map[string]any) (map[string]any, error)) *Func {
	return &Func{desc: desc, fn: fn}
}

func (f *Func) Descriptor() Descriptor { return f.desc }

func (f *Func) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	return f.fn(ctx, args)
}

var _ Tool = (*Func)(nil)
var _ Toolset = (*StaticToolset)(nil)
var _ Toolset = (*MultiToolset)(nil)
