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

// Command premium_service is the native plugin binary backing the
// premium_service skill bundle's premium_lookup tool. Build it and copy
// the resulting binary to skills/premium_service/plugin.
package main

import (
	"fmt"

	"github.com/teeppp/adaptive-agent-runtime/internal/skills"
)

type impl struct{}

func (impl) Call(toolName string, args map[string]any) (map[string]any, error) {
	if toolName != "premium_lookup" {
		return nil, fmt.Errorf("premium_service plugin: unknown tool %q", toolName)
	}
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("premium_lookup: query is required")
	}
	return map[string]any{
		"query":  query,
		"result": fmt.Sprintf("verified record for %q", query),
		"source": "premium-data-provider",
	}, nil
}

func main() {
	skills.ServeToolPlugin(impl{})
}
