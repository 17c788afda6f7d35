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

// Package builtintools implements the Tool Governance Layer's control
// tools ("Built-in Tools": planner, switch_mode, ask_question,
// attempt_answer, list_skills, enable_skill, system_retry, read_document).
// check_balance/send_payment live in internal/payment, since they need
// the Wallet Adapter and Payment Broker, not the Enforcer/Mode Manager.
package builtintools

import (
	"context"
	"fmt"

	"github.com/teeppp/adaptive-agent-runtime/internal/enforcer"
	"github.com/teeppp/adaptive-agent-runtime/internal/modemanager"
	"github.com/teeppp/adaptive-agent-runtime/internal/skills"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
	"github.com/teeppp/adaptive-agent-runtime/internal/tooldesc"
)

type plannerArgs struct {
	AllowedTools []string `json:"allowed_tools" jsonschema:"required,description=Tool names the model commits to calling for the rest of this plan"`
}

// NewPlanner builds the planner builtin: the only way to (re-)set the
// active PlanPact.
func NewPlanner(e *enforcer.Enforcer) tool.Tool {
	schema, _ := tooldesc.GenerateSchema[plannerArgs]()
	return tool.NewFunc(tool.Descriptor{
		Name:        "planner",
		Description: "Commit to a plan: only the listed tools (plus the always-allowed control tools) may be called until the next planner call.",
		InputSchema: schema,
		Source:      tool.SourceBuiltin,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		a, err := tooldesc.Decode[plannerArgs](args)
		if err != nil {
			return nil, fmt.Errorf("planner: %w", err)
		}
		e.SetPlanPact(enforcer.NewPlanPact(a.AllowedTools))
		return map[string]any{"allowed_tools": a.AllowedTools}, nil
	})
}

// NewSwitchMode builds the switch_mode builtin: requests an immediate
// Mode switch on the next trigger check. Present in every
// Mode (tie-break: "switch_mode... never removed").
func NewSwitchMode(mgr *modemanager.Manager) tool.Tool {
	return tool.NewFunc(tool.Descriptor{
		Name:        "switch_mode",
		Description: "Request that the runtime rediscover tools and refocus the instruction for a new stretch of conversation.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		Source:      tool.SourceBuiltin,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		mgr.RequestSwitch()
		return map[string]any{"status": "switch_requested"}, nil
	})
}

type askQuestionArgs struct {
	Question string `json:"question" jsonschema:"required,description=The clarifying question to ask the user"`
}

// NewAskQuestion builds the ask_question terminal tool (step g).
func NewAskQuestion() tool.Tool {
	schema, _ := tooldesc.GenerateSchema[askQuestionArgs]()
	return tool.NewFunc(tool.Descriptor{
		Name:        "ask_question",
		Description: "Ask the user a clarifying question instead of answering; ends the turn.",
		InputSchema: schema,
		Source:      tool.SourceBuiltin,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		a, err := tooldesc.Decode[askQuestionArgs](args)
		if err != nil {
			return nil, fmt.Errorf("ask_question: %w", err)
		}
		return map[string]any{"question": a.Question}, nil
	})
}

type attemptAnswerArgs struct {
	Answer      string   `json:"answer" jsonschema:"required,description=The final answer text"`
	Confidence  string   `json:"confidence,omitempty" jsonschema:"description=high/medium/low confidence in the answer"`
	SourcesUsed []string `json:"sources_used,omitempty" jsonschema:"description=Names of tools or skills consulted to produce the answer"`
}

// NewAttemptAnswer builds the attempt_answer terminal tool (step g).
func NewAttemptAnswer() tool.Tool {
	schema, _ := tooldesc.GenerateSchema[attemptAnswerArgs]()
	return tool.NewFunc(tool.Descriptor{
		Name:        "attempt_answer",
		Description: "Give the final answer to the user; ends the turn.",
		InputSchema: schema,
		Source:      tool.SourceBuiltin,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		a, err := tooldesc.Decode[attemptAnswerArgs](args)
		if err != nil {
			return nil, fmt.Errorf("attempt_answer: %w", err)
		}
		return map[string]any{"answer": a.Answer, "confidence": a.Confidence, "sources_used": a.SourcesUsed}, nil
	})
}

// NewSystemRetry builds the system_retry builtin (supplemented feature:
// re-issues the current turn's LLM call without mutating session history,
// used after an EnforcerBlocked/LlmUnavailable recovery).
func NewSystemRetry() tool.Tool {
	return tool.NewFunc(tool.Descriptor{
		Name:        "system_retry",
		Description: "Retry the current turn's model call without changing session history.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		Source:      tool.SourceBuiltin,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"status": "retry_requested"}, nil
	})
}

// NewListSkills builds the list_skills builtin (Skill Registry).
func NewListSkills(registry *skills.Registry) tool.Tool {
	return tool.NewFunc(tool.Descriptor{
		Name:        "list_skills",
		Description: "List all known skill bundles (name + description).",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		Source:      tool.SourceBuiltin,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		bundles := registry.List()
		out := make([]map[string]any, 0, len(bundles))
		for _, b := range bundles {
			out = append(out, map[string]any{"name": b.Name, "description": b.Description, "tools": b.ToolNames})
		}
		return map[string]any{"skills": out}, nil
	})
}

type enableSkillArgs struct {
	Name string `json:"name" jsonschema:"required,description=Name of the skill bundle to enable"`
}

// NewEnableSkill builds the enable_skill builtin: it confirms the named
// skill exists and requests a mode switch. The skill name is not passed
// to the switch's meta-LLM synthesis, so whether the new mode includes
// that skill is decided by the synthesis call alone.
func NewEnableSkill(registry *skills.Registry, mgr *modemanager.Manager) tool.Tool {
	schema, _ := tooldesc.GenerateSchema[enableSkillArgs]()
	return tool.NewFunc(tool.Descriptor{
		Name:        "enable_skill",
		Description: "Request that a named skill bundle be activated on the next mode switch.",
		InputSchema: schema,
		Source:      tool.SourceBuiltin,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		a, err := tooldesc.Decode[enableSkillArgs](args)
		if err != nil {
			return nil, fmt.Errorf("enable_skill: %w", err)
		}
		b, ok := registry.Get(a.Name)
		if !ok {
			return nil, fmt.Errorf("enable_skill: unknown skill %q", a.Name)
		}
		mgr.RequestSwitch()
		return map[string]any{"name": b.Name, "status": "switch_requested"}, nil
	})
}
