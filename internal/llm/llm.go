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

// Package llm defines the provider-agnostic interface the Adaptive Agent
// Core and the Mode Manager's meta-LLM call use: a single non-streaming
// Generate call, which is all this runtime's turn loop and meta-LLM
// synthesis call need.
package llm

import (
	"context"

	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

// Role tags a conversation message's speaker, mirroring a2a.MessageRole's
// two-party model extended with "tool" for tool-result turns.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// Message is one entry of the conversation sent to the LLM.
type Message struct {
	Role  Role
	Parts []session.Part
}

// ToolDef describes one callable tool for the provider's tool-calling
// surface, narrowed from tool.Descriptor to what a provider request needs.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request is the input of one non-streaming Provider.Generate call.
type Request struct {
	SystemInstruction string
	Messages          []Message
	Tools             []ToolDef

	// JSONMode requests a structured JSON response (used by the Mode
	// Manager's meta-LLM synthesis call, item 3).
	JSONMode bool

	Temperature *float64
	MaxTokens   *int
}

// Response is the model's reply: zero or more text/tool-call parts.
type Response struct {
	Parts []session.Part

	// PromptTokens/CompletionTokens feed the Mode Manager's
	// should_switch(token_count) trigger.
	PromptTokens     int
	CompletionTokens int
}

// Provider is one LLM backend (test double, OpenAI-compatible HTTP, etc.).
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}
