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

package modemanager

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeppp/adaptive-agent-runtime/internal/llm"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
	"github.com/teeppp/adaptive-agent-runtime/internal/skills"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

func noopTool(name string) tool.Tool {
	return tool.NewFunc(tool.Descriptor{Name: name, Source: tool.SourceBuiltin},
		func(ctx context.Context, args map[string]any) (map[string]any, error) { return nil, nil })
}

func TestShouldSwitchSuppressesFirstTurn(t *testing.T) {
	m := New(Config{MaxContextTokens: 100, Threshold: 0.1}, InitialMode("initial", []tool.Tool{noopTool("switch_mode")}))
	assert.False(t, m.ShouldSwitch(1000))
	assert.True(t, m.ShouldSwitch(1000))
}

func TestShouldSwitchOnThreshold(t *testing.T) {
	m := New(Config{MaxContextTokens: 100, Threshold: 0.5}, InitialMode("initial", nil))
	m.ShouldSwitch(0)
	assert.True(t, m.ShouldSwitch(50))
}

func TestShouldSwitchOnExplicitRequest(t *testing.T) {
	m := New(Config{MaxContextTokens: 1000, Threshold: 0.9}, InitialMode("initial", nil))
	m.ShouldSwitch(0)
	m.RequestSwitch()
	assert.True(t, m.ShouldSwitch(1))
	assert.False(t, m.ShouldSwitch(1))
}

func TestShouldSwitchOnToolNotFoundStreak(t *testing.T) {
	m := New(Config{ToolNotFoundStreak: 2}, InitialMode("initial", nil))
	m.ShouldSwitch(0)
	m.RecordToolNotFound()
	assert.False(t, m.ShouldSwitch(0))
	m.RecordToolNotFound()
	assert.True(t, m.ShouldSwitch(0))
}

func scriptedJSON(t *testing.T, out SwitchOutput) *llm.Response {
	t.Helper()
	b, err := json.Marshal(out)
	require.NoError(t, err)
	return &llm.Response{Parts: []session.Part{{Text: string(b)}}}
}

func TestSynthesizeRejectsMissingEscapeHatch(t *testing.T) {
	provider := llm.NewScriptedProvider(
		scriptedJSON(t, SwitchOutput{Instruction: "no escape clause here", SelectedTools: nil}),
		scriptedJSON(t, SwitchOutput{Instruction: "call switch_mode to rediscover tools", SelectedTools: nil}),
	)
	s := NewSynthesizer(provider)
	out, err := s.Synthesize(context.Background(), SwitchInput{Summary: "hi"})
	require.NoError(t, err)
	assert.Contains(t, out.Instruction, "switch_mode")
}

func TestSynthesizeFailsAfterTwoBadAttempts(t *testing.T) {
	provider := llm.NewScriptedProvider(
		scriptedJSON(t, SwitchOutput{Instruction: "missing"}),
		scriptedJSON(t, SwitchOutput{Instruction: "still missing"}),
	)
	s := NewSynthesizer(provider)
	_, err := s.Synthesize(context.Background(), SwitchInput{Summary: "hi"})
	require.Error(t, err)
}

func TestSwitchInstallsNewModeAndClearsSession(t *testing.T) {
	ctx := context.Background()
	sess := session.New(session.Key{App: "a", User: "u", SessionID: "s"})
	sess.Append(session.UserMessage("hello"))

	readFile := noopTool("read_file")
	mcp := tool.NewStaticToolset(readFile)

	provider := llm.NewScriptedProvider(scriptedJSON(t, SwitchOutput{
		Instruction:   "new instruction, call switch_mode to rediscover tools",
		SelectedTools: []string{"read_file"},
	}))
	synth := NewSynthesizer(provider)

	m := New(Config{}, InitialMode("initial", []tool.Tool{noopTool("switch_mode")}))
	err := m.Switch(ctx, sess.Turns(), sess, synth, Sources{
		Builtins:   []tool.Tool{noopTool("switch_mode")},
		MCPToolset: mcp,
	})
	require.NoError(t, err)

	mode := m.Mode()
	assert.Contains(t, mode.Instruction, "switch_mode")
	assert.Contains(t, mode.ActiveTools, "read_file")
	assert.Contains(t, mode.ActiveTools, "switch_mode")
	assert.Empty(t, sess.Turns())
}

func TestSwitchAppliesSkillTieBreak(t *testing.T) {
	ctx := context.Background()
	sess := session.New(session.Key{App: "a", User: "u", SessionID: "s"})

	mcpVersion := tool.NewFunc(tool.Descriptor{Name: "shared_tool", Source: tool.SourceMCP},
		func(ctx context.Context, args map[string]any) (map[string]any, error) { return map[string]any{"from": "mcp"}, nil })
	skillVersion := tool.NewFunc(tool.Descriptor{Name: "shared_tool", Source: tool.SourceSkillLocal},
		func(ctx context.Context, args map[string]any) (map[string]any, error) { return map[string]any{"from": "skill"}, nil })

	mcp := tool.NewStaticToolset(mcpVersion)
	skillToolset := tool.NewStaticToolset(skillVersion)
	bundle := &skills.Bundle{Name: "premium_service", Description: "paid", ToolNames: []string{"shared_tool"}, Instructions: "use shared_tool"}

	provider := llm.NewScriptedProvider(scriptedJSON(t, SwitchOutput{
		Instruction:    "go, switch_mode is available",
		SelectedTools:  []string{"shared_tool"},
		SelectedSkills: []string{"premium_service"},
	}))
	synth := NewSynthesizer(provider)

	m := New(Config{}, InitialMode("initial", nil))
	err := m.Switch(ctx, nil, sess, synth, Sources{
		MCPToolset:   mcp,
		SkillTools:   skillToolset,
		SkillBundles: []*skills.Bundle{bundle},
	})
	require.NoError(t, err)

	mode := m.Mode()
	out, err := mode.ActiveTools["shared_tool"].Call(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "skill", out["from"])
	assert.Contains(t, mode.Instruction, "use shared_tool")
}
