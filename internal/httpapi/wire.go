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

// Package httpapi implements the HTTP Surface: session CRUD under
// /apps/{app}/users/{user}/sessions, the /run turn endpoint, and the
// confirmation-protocol wire mapping onto internal/agentcore, over a
// plain REST/JSON contract (route table, middleware chain shape,
// content.role/parts wire model).
package httpapi

import (
	"github.com/teeppp/adaptive-agent-runtime/internal/agentcore"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

// wirePart is one element of a content.parts[] array: exactly
// one of Text, FunctionCall, or FunctionResponse is populated.
type wirePart struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *wireFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *wireFunctionResp `json:"functionResponse,omitempty"`
}

type wireFunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type wireFunctionResp struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// wireContent is the {role, parts[]} envelope of one event.
type wireContent struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

// wireEvent is one element of the /run response array.
type wireEvent struct {
	Content wireContent `json:"content"`
	// Error annotates a non-fatal Final (the core sets "timeout");
	// omitted on ordinary turns.
	Error string `json:"error,omitempty"`
}

// runRequestBody is the POST /run body.
type runRequestBody struct {
	AppName    string         `json:"app_name"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	NewMessage wireNewMessage `json:"new_message"`
}

type wireNewMessage struct {
	Parts []wirePart `json:"parts"`
}

// partsFromWire converts the incoming wire parts into the agentcore input
// shape, ignoring functionCall parts (the host never sends those).
func partsFromWire(parts []wirePart) []agentcore.NewMessagePart {
	out := make([]agentcore.NewMessagePart, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.FunctionResponse != nil:
			out = append(out, agentcore.NewMessagePart{
				ToolResp: &agentcore.ToolResponse{
					ID:       p.FunctionResponse.ID,
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				},
			})
		case p.Text != "":
			out = append(out, agentcore.NewMessagePart{Text: p.Text})
		}
	}
	return out
}

func turnToWireEvent(t session.Turn) (wireEvent, bool) {
	switch t.Kind {
	case session.KindUserMessage:
		return wireEvent{Content: wireContent{Role: "user", Parts: []wirePart{{Text: t.UserText}}}}, true
	case session.KindModelMessage:
		parts := make([]wirePart, 0, len(t.ModelParts))
		for _, p := range t.ModelParts {
			wp := wirePart{Text: p.Text}
			if p.ToolCall != nil {
				wp.FunctionCall = &wireFunctionCall{ID: p.ToolCall.ID, Name: p.ToolCall.Name, Args: p.ToolCall.Args}
			}
			parts = append(parts, wp)
		}
		return wireEvent{Content: wireContent{Role: "model", Parts: parts}}, true
	case session.KindToolCall:
		tc := t.ToolCall
		return wireEvent{Content: wireContent{Role: "model", Parts: []wirePart{{
			FunctionCall: &wireFunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Args},
		}}}}, true
	case session.KindToolResult:
		tr := t.ToolResult
		resp := tr.Response
		if tr.Error != nil {
			resp = map[string]any{"error": map[string]any{"tag": tr.Error.Tag, "message": tr.Error.Message}}
		}
		return wireEvent{Content: wireContent{Role: "model", Parts: []wirePart{{
			FunctionResponse: &wireFunctionResp{ID: tr.ID, Name: tr.Name, Response: resp},
		}}}}, true
	default:
		return wireEvent{}, false
	}
}
