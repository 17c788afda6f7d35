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
	"fmt"

	"github.com/teeppp/adaptive-agent-runtime/internal/session"
	"github.com/teeppp/adaptive-agent-runtime/internal/skills"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

// Sources bundles everything the switch procedure enumerates candidates
// from.
type Sources struct {
	// Builtins must include every tool every Mode carries regardless of
	// what the meta-LLM selects: the process-wide builtins plus the
	// calling session's own planner/switch_mode/enable_skill instances.
	// The caller is responsible for assembling this slice per call since
	// the session-bound tools don't exist until that session's runtime
	// does.
	Builtins     []tool.Tool
	MCPToolset   tool.Toolset
	SkillTools   tool.Toolset
	SkillBundles []*skills.Bundle
}

// Switch runs the full meta-LLM switch procedure (steps 1-4) and
// installs the resulting Mode, or keeps the previous Mode on any failure.
func (m *Manager) Switch(ctx context.Context, turns []session.Turn, sess *session.Session, synth *Synthesizer, src Sources) error {
	summary := Summarize(turns, 5, 100)

	mcpTools, err := src.MCPToolset.Tools(ctx)
	if err != nil {
		return fmt.Errorf("mode switch: list mcp tools: %w", err)
	}
	mcpByName := make(map[string]tool.Tool, len(mcpTools))
	var candidateDescs []tool.Descriptor
	for _, t := range mcpTools {
		mcpByName[t.Descriptor().Name] = t
		candidateDescs = append(candidateDescs, t.Descriptor())
	}

	var candidateSkills []SkillCandidate
	skillsByName := make(map[string]*skills.Bundle, len(src.SkillBundles))
	for _, b := range src.SkillBundles {
		skillsByName[b.Name] = b
		candidateSkills = append(candidateSkills, SkillCandidate{Name: b.Name, Description: b.Description})
	}

	out, err := synth.Synthesize(ctx, SwitchInput{
		Summary:         summary,
		CandidateTools:  candidateDescs,
		CandidateSkills: candidateSkills,
	})
	if err != nil {
		return err
	}

	var selectedMCP []tool.Tool
	for _, name := range out.SelectedTools {
		if t, ok := mcpByName[name]; ok {
			selectedMCP = append(selectedMCP, t)
		}
	}

	instruction := out.Instruction
	var skillTools []tool.Tool
	if src.SkillTools != nil {
		skillTools, err = src.SkillTools.Tools(ctx)
		if err != nil {
			return fmt.Errorf("mode switch: list skill tools: %w", err)
		}
	}
	skillToolsByName := make(map[string]tool.Tool, len(skillTools))
	for _, t := range skillTools {
		skillToolsByName[t.Descriptor().Name] = t
	}

	var selectedSkillTools []tool.Tool
	for _, name := range out.SelectedSkills {
		bundle, ok := skillsByName[name]
		if !ok {
			continue
		}
		for _, toolName := range bundle.ToolNames {
			if t, ok := skillToolsByName[toolName]; ok {
				selectedSkillTools = append(selectedSkillTools, t)
			}
		}
		instruction += "\n\n" + bundle.Instructions
	}

	// Run the new active set through Registry so name collisions resolve
	// by Source.Priority() (builtin > skill-local > mcp > a2a-peer)
	// instead of by insertion order.
	registry := tool.NewRegistry(
		tool.NewStaticToolset(src.Builtins...),
		tool.NewStaticToolset(selectedSkillTools...),
		tool.NewStaticToolset(selectedMCP...),
	)
	active, err := registry.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("mode switch: resolve active tools: %w", err)
	}

	m.setMode(&Mode{Instruction: instruction, ActiveTools: active, ActiveSkills: out.SelectedSkills})
	sess.ClearAndSeed()
	return nil
}
