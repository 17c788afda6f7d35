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

// Package agentcore implements the Adaptive Agent Core: the
// run(session, user_text) -> stream<Event> turn loop, tool dispatch, and
// the wiring between the Enforcer, Mode Manager, and Payment Broker, with
// an outer/inner loop shape (iter.Seq2 event streaming) and a fixed
// Enforcer -> Mode Manager -> dispatch sequencing.
package agentcore

import "github.com/teeppp/adaptive-agent-runtime/internal/session"

// EventKind tags the variant carried by an Event (contract).
type EventKind string

const (
	EventModelText     EventKind = "model_text"
	EventToolCall      EventKind = "tool_call"
	EventToolResult    EventKind = "tool_result"
	EventEnforcerBlock EventKind = "enforcer_block"
	EventModeSwitched  EventKind = "mode_switched"
	EventFinal         EventKind = "final"
)

// confirmationToolName is the synthetic tool-call name the host sees when a
// require_confirmation tool is about to run ("Confirmation protocol").
const confirmationToolName = "adk_request_confirmation"

// Event is one unit of the Core's output stream. Exactly the fields
// matching Kind are populated.
type Event struct {
	Kind EventKind

	// Parts carries the model's raw response (EventModelText), the
	// enforcer's synthetic block (EventEnforcerBlock), or the terminal
	// answer/question (EventFinal).
	Parts []session.Part

	ToolCall   *session.ToolCall
	ToolResult *session.ToolResult

	// ModeInstruction is the newly active instruction text (EventModeSwitched).
	ModeInstruction string

	// Err carries a non-fatal annotation for EventFinal: "timeout" when the
	// turn used up MaxIterations without a terminal tool; empty on a normal
	// terminal-tool Final.
	Err string
}

// ToolResponse is the payload of a functionResponse part in an incoming
// message: either an ordinary tool-call result being fed back, or
// a confirmation decision for a pending require_confirmation tool call.
type ToolResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// NewMessagePart is one part of the "new_message" the host sends into a
// turn (`/run` body): either user text, or a functionResponse
// answering a previously emitted ToolCall/confirmation request.
type NewMessagePart struct {
	Text     string
	ToolResp *ToolResponse
}
