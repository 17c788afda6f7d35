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

package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeTool(name string, src Source) Tool {
	return NewFunc(Descriptor{Name: name, Source: src}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"name": name}, nil
	})
}

func TestStaticToolsetReturnsFixedList(t *testing.T) {
	ts := NewStaticToolset(fakeTool("a", SourceBuiltin), fakeTool("b", SourceBuiltin))
	tools, err := ts.Tools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 2)
}

func TestMultiToolsetFlattensAllSources(t *testing.T) {
	a := NewStaticToolset(fakeTool("a", SourceMCP))
	b := NewStaticToolset(fakeTool("b", SourceMCP), fakeTool("c", SourceMCP))
	m := NewMultiToolset(a, b)

	tools, err := m.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 3)
	names := map[string]bool{}
	for _, tl := range tools {
		names[tl.Descriptor().Name] = true
	}
	assert.True(t, names["a"] && names["b"] && names["c"])
}

func TestRegistryResolvePrefersHigherPriority(t *testing.T) {
	builtin := NewStaticToolset(fakeTool("shared", SourceBuiltin))
	mcp := NewStaticToolset(fakeTool("shared", SourceMCP), fakeTool("only_mcp", SourceMCP))
	reg := NewRegistry(mcp, builtin) // registration order shouldn't matter

	resolved, err := reg.Resolve(context.Background())
	require.NoError(t, err)
	require.Contains(t, resolved, "shared")
	assert.Equal(t, SourceBuiltin, resolved["shared"].Descriptor().Source)
	assert.Contains(t, resolved, "only_mcp")
}

func TestRegistryLookupMissingTool(t *testing.T) {
	reg := NewRegistry(NewStaticToolset(fakeTool("a", SourceBuiltin)))
	_, ok, err := reg.Lookup(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

type erroringToolset struct{}

func (erroringToolset) Tools(ctx context.Context) ([]Tool, error) {
	return nil, assert.AnError
}

func TestMultiToolsetPropagatesError(t *testing.T) {
	m := NewMultiToolset(erroringToolset{})
	_, err := m.Tools(context.Background())
	assert.Error(t, err)
}
