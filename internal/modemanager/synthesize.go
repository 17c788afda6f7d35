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
	"fmt"
	"strings"

	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/llm"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

// escapeHatchSubstring is the literal marker test_generic_escape_hatch.py
// checks for in the meta-LLM's synthesized instruction (supplemented
// feature #3): without it, the next model has no way to ask for a
// mode switch, breaking the invariant that switch_mode is always
// reachable.
const escapeHatchSubstring = "switch_mode"

// SkillCandidate is one known skill offered to the meta-LLM synthesis
// call, narrowed from skills.Bundle to name/description.
type SkillCandidate struct {
	Name        string
	Description string
}

// SwitchInput is everything the meta-LLM needs to synthesize a new Mode.
type SwitchInput struct {
	Summary         string
	CandidateTools  []tool.Descriptor
	CandidateSkills []SkillCandidate
}

// SwitchOutput is the meta-LLM's JSON contract.
type SwitchOutput struct {
	Instruction    string   `json:"instruction"`
	SelectedTools  []string `json:"selected_tools"`
	SelectedSkills []string `json:"selected_skills"`
}

// Synthesizer runs the meta-LLM switch procedure.
type Synthesizer struct {
	provider llm.Provider
}

func NewSynthesizer(provider llm.Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Synthesize sends the structured prompt and validates the response,
// retrying once on a malformed or escape-hatch-missing reply before
// giving up (step 3 + supplemented feature #3).
func (s *Synthesizer) Synthesize(ctx context.Context, in SwitchInput) (*SwitchOutput, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		out, err := s.synthesizeOnce(ctx, in)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, errs.Wrap(errs.KindLLMUnavailable, "mode switch synthesis failed", lastErr)
}

func (s *Synthesizer) synthesizeOnce(ctx context.Context, in SwitchInput) (*SwitchOutput, error) {
	prompt := buildSynthesisPrompt(in)
	resp, err := s.provider.Generate(ctx, llm.Request{
		SystemInstruction: prompt,
		Messages:          []llm.Message{{Role: llm.RoleUser, Parts: []session.Part{{Text: "Synthesize the next Mode now."}}}},
		JSONMode:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("meta-llm call failed: %w", err)
	}

	var text string
	for _, p := range resp.Parts {
		text += p.Text
	}
	if text == "" {
		return nil, fmt.Errorf("meta-llm returned no text")
	}

	var out SwitchOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("meta-llm returned invalid JSON: %w", err)
	}
	if out.Instruction == "" {
		return nil, fmt.Errorf("meta-llm instruction is empty")
	}
	if !strings.Contains(out.Instruction, escapeHatchSubstring) {
		return nil, fmt.Errorf("meta-llm instruction omits the %q escape-hatch clause", escapeHatchSubstring)
	}
	return &out, nil
}

func buildSynthesisPrompt(in SwitchInput) string {
	var b strings.Builder
	b.WriteString("You are the Mode Manager's meta-LLM. Produce a JSON object ")
	b.WriteString(`{"instruction": string, "selected_tools": string[], "selected_skills": string[]} `)
	b.WriteString("and nothing else.\n\n")
	b.WriteString("Your instruction text MUST tell the model how to call switch_mode to rediscover tools if the selected set is insufficient.\n\n")
	b.WriteString("Conversation summary:\n")
	b.WriteString(in.Summary)
	b.WriteString("\n\nCandidate tools:\n")
	for _, d := range in.CandidateTools {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	b.WriteString("\nCandidate skills:\n")
	for _, sk := range in.CandidateSkills {
		fmt.Fprintf(&b, "- %s: %s\n", sk.Name, sk.Description)
	}
	return b.String()
}

// Summarize concatenates and truncates the last n turns' parts to
// approximately maxCharsPerPart characters each (step 1: "last 5
// parts to ~100 characters each").
func Summarize(turns []session.Turn, n, maxCharsPerPart int) string {
	var parts []string
	for i := len(turns) - 1; i >= 0 && len(parts) < n; i-- {
		t := turns[i]
		var text string
		switch {
		case t.Kind == session.KindUserMessage:
			text = t.UserText
		case t.Kind == session.KindModelMessage:
			for _, p := range t.ModelParts {
				if p.Text != "" {
					text += p.Text
				}
			}
		case t.Kind == session.KindToolResult && t.ToolResult != nil:
			text = fmt.Sprintf("[%s result]", t.ToolResult.Name)
		default:
			continue
		}
		if text == "" {
			continue
		}
		if len(text) > maxCharsPerPart {
			text = text[:maxCharsPerPart]
		}
		parts = append(parts, text)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " | ")
}
