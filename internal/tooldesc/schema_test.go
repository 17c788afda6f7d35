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

package tooldesc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readFileArgs struct {
	Path  string `json:"path" jsonschema:"required,description=File path to read"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Max bytes,default=4096"`
}

func TestGenerateSchemaMarksRequiredField(t *testing.T) {
	schema, err := GenerateSchema[readFileArgs]()
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "path")
	assert.Contains(t, props, "limit")

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "path")
	assert.NotContains(t, required, "limit")
}

func TestDecodeWeaklyTypedArgs(t *testing.T) {
	args := map[string]any{"path": "/tmp/x.txt", "limit": "128"}
	out, err := Decode[readFileArgs](args)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.txt", out.Path)
	assert.Equal(t, 128, out.Limit)
}
