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

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/teeppp/adaptive-agent-runtime/internal/agentcore"
	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

// handleRun implements POST /run: drives one agentcore.Core
// turn to completion and responds with the full array of events it
// yielded, since this surface is request/response rather than streaming.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var body runRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.AppName == "" || body.UserID == "" || body.SessionID == "" {
		writeError(w, http.StatusBadRequest, "app_name, user_id and session_id are required")
		return
	}

	key := session.Key{App: body.AppName, User: body.UserID, SessionID: body.SessionID}
	parts := partsFromWire(body.NewMessage.Parts)

	run := s.core.Run(r.Context(), key, parts)
	if s.recorder != nil {
		run = s.recorder.Wrap(r.Context(), key, run)
	}

	var events []wireEvent
	var busy error
	run(func(e *agentcore.Event, err error) bool {
		if err != nil {
			busy = err
			return false
		}
		events = append(events, eventToWire(e))
		return true
	})

	if busy != nil {
		if errs.Is(busy, errs.KindSessionBusy) {
			writeError(w, http.StatusConflict, "session busy")
			return
		}
		slog.Error("run failed", "error", busy)
		writeError(w, http.StatusInternalServerError, busy.Error())
		return
	}

	if events == nil {
		events = []wireEvent{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

// eventToWire maps one agentcore.Event onto the wire shape. A
// ToolResult is framed under role "user": the same role the host's own
// confirmation-reply functionResponse parts use, since both represent an
// answer being fed back into the conversation rather than the model
// producing new content.
func eventToWire(e *agentcore.Event) wireEvent {
	switch e.Kind {
	case agentcore.EventToolCall:
		return wireEvent{Content: wireContent{Role: "model", Parts: []wirePart{{
			FunctionCall: &wireFunctionCall{ID: e.ToolCall.ID, Name: e.ToolCall.Name, Args: e.ToolCall.Args},
		}}}}
	case agentcore.EventToolResult:
		resp := e.ToolResult.Response
		if e.ToolResult.Error != nil {
			resp = map[string]any{"error": map[string]any{"tag": e.ToolResult.Error.Tag, "message": e.ToolResult.Error.Message}}
		}
		return wireEvent{Content: wireContent{Role: "user", Parts: []wirePart{{
			FunctionResponse: &wireFunctionResp{ID: e.ToolResult.ID, Name: e.ToolResult.Name, Response: resp},
		}}}}
	case agentcore.EventModeSwitched:
		return wireEvent{Content: wireContent{Role: "model", Parts: []wirePart{{Text: "[mode switched] " + e.ModeInstruction}}}}
	case agentcore.EventFinal:
		return wireEvent{Content: wireContent{Role: "model", Parts: partsToWire(e.Parts)}, Error: e.Err}
	default: // EventModelText, EventEnforcerBlock
		return wireEvent{Content: wireContent{Role: "model", Parts: partsToWire(e.Parts)}}
	}
}

func partsToWire(parts []session.Part) []wirePart {
	out := make([]wirePart, 0, len(parts))
	for _, p := range parts {
		wp := wirePart{Text: p.Text}
		if p.ToolCall != nil {
			wp.FunctionCall = &wireFunctionCall{ID: p.ToolCall.ID, Name: p.ToolCall.Name, Args: p.ToolCall.Args}
		}
		out = append(out, wp)
	}
	return out
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
