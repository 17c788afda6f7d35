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

package agentcore

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

// dispatchable pairs one model-declared ToolCall with its resolved Tool,
// keeping the call's original slice index for order-preserving re-assembly
// ("result order in the session equals the model's declared
// argument order").
type dispatchable struct {
	idx  int
	call session.ToolCall
	t    tool.Tool
}

// dispatchTurn resolves and runs every ToolCall in one model response.
// Independent sibling calls run concurrently via errgroup, fan-out/gather
// style; a require_confirmation tool suspends the whole turn instead of
// running.
func (c *Core) dispatchTurn(ctx context.Context, sess *session.Session, rt *sessionRuntime, calls []session.ToolCall, yield func(*Event, error) bool) (final *Event, suspended bool, ok bool) {
	mode := rt.mode.Mode()
	results := make([]*session.ToolResult, len(calls))
	var toRun []dispatchable

	for i := range calls {
		call := calls[i]
		if !yield(&Event{Kind: EventToolCall, ToolCall: &call}, nil) {
			return nil, false, false
		}

		t, found := mode.ActiveTools[call.Name]
		if !found {
			rt.mode.RecordToolNotFound()
			results[i] = &session.ToolResult{ID: call.ID, Name: call.Name, Error: &session.ToolError{
				Tag:     string(errs.KindToolNotFound),
				Message: fmt.Sprintf("tool %q is not in the active set; call list_skills and switch_mode to rediscover tools", call.Name),
			}}
			continue
		}
		rt.mode.RecordToolFound()

		if t.Descriptor().RequireConfirmation {
			rt.pendingConfirm[call.ID] = pendingConfirmation{call: call, t: t}
			sess.Append(session.NewToolCall(call))
			confirmCall := session.ToolCall{
				ID:   call.ID,
				Name: confirmationToolName,
				Args: map[string]any{"originalFunctionCall": map[string]any{"name": call.Name, "args": call.Args}},
			}
			yield(&Event{Kind: EventToolCall, ToolCall: &confirmCall}, nil)
			return nil, true, true
		}

		sess.Append(session.NewToolCall(call))
		toRun = append(toRun, dispatchable{idx: i, call: call, t: t})
	}

	if len(toRun) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, d := range toRun {
			d := d
			g.Go(func() error {
				result, _ := dispatchOne(gctx, d.t, d.call)
				results[d.idx] = result
				return nil
			})
		}
		_ = g.Wait()
	}

	var terminal *session.ToolResult
	for i, call := range calls {
		r := results[i]
		if r == nil {
			continue
		}
		sess.Append(session.NewToolResult(*r))
		if !yield(&Event{Kind: EventToolResult, ToolResult: r}, nil) {
			return nil, false, false
		}
		if terminalTools[call.Name] {
			terminal = r
		}
	}

	if terminal != nil {
		return &Event{Kind: EventFinal, Parts: []session.Part{{Text: resultText(terminal)}}}, false, true
	}
	return nil, false, true
}

// dispatchOne invokes a single resolved tool, turning any error into a
// structured ToolResult.error rather than propagating it.
func dispatchOne(ctx context.Context, t tool.Tool, call session.ToolCall) (*session.ToolResult, error) {
	resp, err := t.Call(ctx, call.Args)
	if err != nil {
		tag := string(errs.KindToolExecution)
		if tagged, ok := err.(interface{ Tag() string }); ok {
			tag = tagged.Tag()
		}
		return &session.ToolResult{ID: call.ID, Name: call.Name, Error: &session.ToolError{Tag: tag, Message: err.Error()}}, err
	}
	return &session.ToolResult{ID: call.ID, Name: call.Name, Response: resp}, nil
}
