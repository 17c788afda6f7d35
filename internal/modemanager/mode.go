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

// Package modemanager implements the Mode Manager state machine: the
// should_switch trigger predicate and the meta-LLM-driven switch
// procedure that atomically replaces a session's instruction and active
// tool set, generalized from context-window summarization to full
// instruction/tool-set resynthesis.
package modemanager

import (
	"sync"

	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

// Mode is the tuple of instruction text + allowed tool set + active
// skills that shapes one stretch of conversation.
type Mode struct {
	Instruction  string
	ActiveTools  map[string]tool.Tool
	ActiveSkills []string
}

// Descriptors returns the Mode's tool descriptors, for reporting to the
// LLM's tool-calling surface.
func (m *Mode) Descriptors() []tool.Descriptor {
	out := make([]tool.Descriptor, 0, len(m.ActiveTools))
	for _, t := range m.ActiveTools {
		out = append(out, t.Descriptor())
	}
	return out
}

// InitialMode builds the minimal first-turn Mode: built-in tools only,
// MCP tools hidden ("The initial Mode is a minimal one").
func InitialMode(instruction string, builtins []tool.Tool) *Mode {
	active := make(map[string]tool.Tool, len(builtins))
	for _, t := range builtins {
		active[t.Descriptor().Name] = t
	}
	return &Mode{Instruction: instruction, ActiveTools: active}
}

// Config parameterizes the trigger predicate (State and the
// adaptive-refinement supplemented feature).
type Config struct {
	MaxContextTokens int
	// Threshold is the token_count/max_context_tokens ratio that forces a
	// switch; defaults to 0.5.
	Threshold float64
	// ToolNotFoundStreak is the number of consecutive ToolNotFound errors
	// within one session that proactively triggers a switch even below
	// Threshold; defaults to 2.
	ToolNotFoundStreak int
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 0.5
	}
	if c.ToolNotFoundStreak <= 0 {
		c.ToolNotFoundStreak = 2
	}
	return c
}

// Manager holds one session's Mode-switch state. One Manager is created
// per session ("the Mode... is guarded by a per-session mutex").
type Manager struct {
	cfg Config

	mu                 sync.Mutex
	mode               *Mode
	isFirstTurn        bool
	switchRequested    bool
	toolNotFoundStreak int
}

func New(cfg Config, initial *Mode) *Manager {
	return &Manager{cfg: cfg.withDefaults(), mode: initial, isFirstTurn: true}
}

// Mode returns the current Mode under lock.
func (m *Manager) Mode() *Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// RequestSwitch marks that the model called switch_mode; consumed by the
// next ShouldSwitch check.
func (m *Manager) RequestSwitch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switchRequested = true
}

// RecordToolNotFound increments the consecutive-miss streak.
func (m *Manager) RecordToolNotFound() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolNotFoundStreak++
}

// RecordToolFound resets the consecutive-miss streak on any successful
// dispatch.
func (m *Manager) RecordToolFound() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolNotFoundStreak = 0
}

// ShouldSwitch evaluates the three triggers here plus the
// supplemented adaptive-refinement trigger, in priority order: first-turn
// suppression, explicit switch_mode request, token-threshold, then
// tool-not-found streak.
func (m *Manager) ShouldSwitch(tokenCount int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isFirstTurn {
		m.isFirstTurn = false
		return false
	}
	if m.switchRequested {
		m.switchRequested = false
		return true
	}
	if m.cfg.MaxContextTokens > 0 {
		ratio := float64(tokenCount) / float64(m.cfg.MaxContextTokens)
		if ratio >= m.cfg.Threshold {
			return true
		}
	}
	if m.toolNotFoundStreak >= m.cfg.ToolNotFoundStreak {
		m.toolNotFoundStreak = 0
		return true
	}
	return false
}

// setMode atomically replaces the current Mode.
func (m *Manager) setMode(mode *Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}
