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

// Package enforcer implements the Tool Governance Layer's two independent
// disciplines: the bare-text block, and Ulysses Pact plan enforcement.
// Both run over a model response's []session.Part before the Payment
// Broker ever sees it.
package enforcer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

// BlockedMarker prefixes every synthetic response the Enforcer substitutes
// for a blocked model response, so the host can recognize it for auto-retry.
const BlockedMarker = "[ENFORCER_BLOCKED]"

// DefaultAllowedTools is the PlanPact allow-set the planner tool always
// grants implicitly, regardless of what allowed_tools[] it is given (spec
// §4.4/§8: "PlanPact active with {read_file, planner, ask_question,
// attempt_answer, switch_mode, system_retry}").
var DefaultAllowedTools = []string{"planner", "ask_question", "attempt_answer", "switch_mode", "system_retry"}

// PlanPact is the Ulysses Pact: a self-imposed tool allow-set recorded by
// the model via the planner tool, enforced for the remainder of the
// session until re-planned (spec's GLOSSARY "Ulysses Pact").
type PlanPact struct {
	Active      bool
	AllowedTools map[string]bool
}

// NewPlanPact builds a PlanPact from planner's allowed_tools[] argument,
// always including DefaultAllowedTools regardless of what was passed.
func NewPlanPact(allowedTools []string) *PlanPact {
	allowed := make(map[string]bool, len(allowedTools)+len(DefaultAllowedTools))
	for _, name := range DefaultAllowedTools {
		allowed[name] = true
	}
	for _, name := range allowedTools {
		allowed[name] = true
	}
	return &PlanPact{Active: true, AllowedTools: allowed}
}

// Config toggles the two independent disciplines ("both gated
// by config flags").
type Config struct {
	EnableBareTextBlock bool
	EnablePlanPact      bool
}

// Enforcer holds the mutable PlanPact state for one session's lifetime.
type Enforcer struct {
	cfg Config

	mu   sync.Mutex
	pact *PlanPact
}

func New(cfg Config) *Enforcer {
	return &Enforcer{cfg: cfg}
}

// SetPlanPact installs a new PlanPact, replacing any previous one. Called
// only by the planner builtin tool ("The planner tool itself is
// the only way to (re-)set the PlanPact").
func (e *Enforcer) SetPlanPact(pact *PlanPact) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pact = pact
}

func (e *Enforcer) currentPact() *PlanPact {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pact
}

// Check runs both disciplines over a model response's parts. It returns a
// replacement []session.Part if the response is blocked, or nil if the
// response may proceed unchanged.
func (e *Enforcer) Check(parts []session.Part) []session.Part {
	if blocked := e.checkPlanPact(parts); blocked != nil {
		return blocked
	}
	if blocked := e.checkBareText(parts); blocked != nil {
		return blocked
	}
	return nil
}

// checkBareText blocks a response carrying text parts and no tool-call
// parts.
func (e *Enforcer) checkBareText(parts []session.Part) []session.Part {
	if !e.cfg.EnableBareTextBlock {
		return nil
	}
	hasText := false
	hasToolCall := false
	for _, p := range parts {
		if p.ToolCall != nil {
			hasToolCall = true
		}
		if p.Text != "" {
			hasText = true
		}
	}
	if hasText && !hasToolCall {
		return []session.Part{{
			Text: fmt.Sprintf("%s the next turn must contain a tool call; bare text responses are not permitted.", BlockedMarker),
		}}
	}
	return nil
}

// checkPlanPact blocks a response whose ToolCall names fall outside the
// active PlanPact's allowed_tool_names.
func (e *Enforcer) checkPlanPact(parts []session.Part) []session.Part {
	if !e.cfg.EnablePlanPact {
		return nil
	}
	pact := e.currentPact()
	if pact == nil || !pact.Active {
		return nil
	}
	var violations []string
	for _, p := range parts {
		if p.ToolCall == nil {
			continue
		}
		if !pact.AllowedTools[p.ToolCall.Name] {
			violations = append(violations, p.ToolCall.Name)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	allowed := make([]string, 0, len(pact.AllowedTools))
	for name := range pact.AllowedTools {
		allowed = append(allowed, name)
	}
	return []session.Part{{
		Text: fmt.Sprintf("%s plan violation: tool(s) %s are outside the active plan's allowed set: %s.",
			BlockedMarker, strings.Join(violations, ", "), strings.Join(allowed, ", ")),
	}}
}
