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

package enforcer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

func TestBareTextBlockedWhenNoToolCall(t *testing.T) {
	e := New(Config{EnableBareTextBlock: true})
	out := e.Check([]session.Part{{Text: "ok"}})
	require.NotNil(t, out)
	assert.True(t, strings.HasPrefix(out[0].Text, BlockedMarker))
}

func TestBareTextAllowedWithToolCall(t *testing.T) {
	e := New(Config{EnableBareTextBlock: true})
	out := e.Check([]session.Part{{ToolCall: &session.ToolCall{ID: "1", Name: "attempt_answer"}}})
	assert.Nil(t, out)
}

func TestBareTextDisabledPassesThrough(t *testing.T) {
	e := New(Config{EnableBareTextBlock: false})
	out := e.Check([]session.Part{{Text: "ok"}})
	assert.Nil(t, out)
}

func TestPlanPactDefaultAllowSet(t *testing.T) {
	pact := NewPlanPact([]string{"read_file"})
	assert.True(t, pact.AllowedTools["read_file"])
	for _, name := range DefaultAllowedTools {
		assert.True(t, pact.AllowedTools[name], "default tool %s must stay allowed", name)
	}
}

func TestPlanPactBlocksDisallowedTool(t *testing.T) {
	e := New(Config{EnablePlanPact: true})
	e.SetPlanPact(NewPlanPact([]string{"read_file"}))

	out := e.Check([]session.Part{{ToolCall: &session.ToolCall{ID: "1", Name: "write_file"}}})
	require.NotNil(t, out)
	assert.Contains(t, out[0].Text, "write_file")
}

func TestPlanPactAllowsListedTool(t *testing.T) {
	e := New(Config{EnablePlanPact: true})
	e.SetPlanPact(NewPlanPact([]string{"read_file"}))

	out := e.Check([]session.Part{{ToolCall: &session.ToolCall{ID: "1", Name: "read_file"}}})
	assert.Nil(t, out)
}

func TestPlanPactInactiveWithoutSet(t *testing.T) {
	e := New(Config{EnablePlanPact: true})
	out := e.Check([]session.Part{{ToolCall: &session.ToolCall{ID: "1", Name: "anything"}}})
	assert.Nil(t, out)
}

func TestSetPlanPactReplacesPreviousPact(t *testing.T) {
	e := New(Config{EnablePlanPact: true})
	e.SetPlanPact(NewPlanPact([]string{"read_file"}))
	e.SetPlanPact(NewPlanPact([]string{"write_file"}))

	out := e.Check([]session.Part{{ToolCall: &session.ToolCall{ID: "1", Name: "read_file"}}})
	require.NotNil(t, out)
	assert.Contains(t, out[0].Text, "read_file")
}
