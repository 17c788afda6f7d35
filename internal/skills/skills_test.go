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

package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

func writeBundle(t *testing.T, root, name, body string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, bundleFileName), []byte(body), 0o644))
	return dir
}

const premiumBundle = `---
name: premium_service
description: Paid premium analysis service.
tools:
  - perform_premium_analysis
---
Call perform_premium_analysis to run the paid analysis tool.
`

func TestLoadBundleParsesFrontMatterAndBody(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "premium_service", premiumBundle)

	b, err := LoadBundle(filepath.Join(dir, "premium_service"))
	require.NoError(t, err)
	assert.Equal(t, "premium_service", b.Name)
	assert.Equal(t, []string{"perform_premium_analysis"}, b.ToolNames)
	assert.Contains(t, b.Instructions, "perform_premium_analysis")
}

func TestLoadBundleDefaultsNameFromDir(t *testing.T) {
	dir := t.TempDir()
	body := "---\ndescription: no name given.\ntools: []\n---\nbody text\n"
	writeBundle(t, dir, "my_skill", body)

	b, err := LoadBundle(filepath.Join(dir, "my_skill"))
	require.NoError(t, err)
	assert.Equal(t, "my_skill", b.Name)
}

func TestLoadDirIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "premium_service", premiumBundle)

	first, err := LoadDir(dir)
	require.NoError(t, err)
	second, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Name, second[0].Name)
	assert.Equal(t, first[0].ToolNames, second[0].ToolNames)
}

func TestRegistryReloadAndGet(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "premium_service", premiumBundle)

	r := NewRegistry()
	require.NoError(t, r.Reload(dir))

	b, ok := r.Get("premium_service")
	require.True(t, ok)
	assert.Equal(t, "premium_service", b.Name)
	assert.Len(t, r.List(), 1)
}

func TestResolveToolsFiltersByName(t *testing.T) {
	ctx := context.Background()
	a := tool.NewFunc(tool.Descriptor{Name: "perform_premium_analysis", Source: tool.SourceSkillLocal}, nil)
	b := tool.NewFunc(tool.Descriptor{Name: "unrelated_tool", Source: tool.SourceSkillLocal}, nil)
	toolset := tool.NewStaticToolset(a, b)

	bundle := &Bundle{Name: "premium_service", ToolNames: []string{"perform_premium_analysis"}}
	out, err := ResolveTools(ctx, bundle, toolset)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "perform_premium_analysis", out[0].Descriptor().Name)
}
