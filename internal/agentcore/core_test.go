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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeppp/adaptive-agent-runtime/internal/builtintools"
	"github.com/teeppp/adaptive-agent-runtime/internal/enforcer"
	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/llm"
	"github.com/teeppp/adaptive-agent-runtime/internal/modemanager"
	"github.com/teeppp/adaptive-agent-runtime/internal/payment"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
	"github.com/teeppp/adaptive-agent-runtime/internal/sessionstore"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
	"github.com/teeppp/adaptive-agent-runtime/internal/wallet"
)

func newCore(t *testing.T, provider llm.Provider, extraBuiltins ...tool.Tool) (*Core, session.Key) {
	t.Helper()
	builtins := append([]tool.Tool{
		builtintools.NewAskQuestion(),
		builtintools.NewAttemptAnswer(),
	}, extraBuiltins...)

	sessions := sessionstore.NewMemory()
	broker := payment.NewBroker(wallet.NewMock(100))
	synth := modemanager.NewSynthesizer(provider)

	core := New(Config{
		Provider:            provider,
		Synthesizer:         synth,
		Sessions:            sessions,
		Broker:              broker,
		Builtins:            builtins,
		InitialInstruction:  "initial instruction",
		EnforcerConfig:      enforcer.Config{EnableBareTextBlock: true, EnablePlanPact: true},
		ModeConfig:          modemanager.Config{MaxContextTokens: 100000, Threshold: 0.9},
		QueueOnBusy:         true,
	})
	return core, session.Key{App: "a", User: "u", SessionID: "s1"}
}

func TestBasicTurnEndsWithAttemptAnswer(t *testing.T) {
	provider := llm.NewScriptedProvider(&llm.Response{Parts: []session.Part{
		{ToolCall: &session.ToolCall{ID: "1", Name: "attempt_answer", Args: map[string]any{"answer": "hi", "confidence": "high"}}},
	}})
	core, key := newCore(t, provider)

	var finalText string
	core.Run(context.Background(), key, []NewMessagePart{{Text: "hello"}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		if e.Kind == EventFinal {
			finalText = e.Parts[0].Text
		}
		return true
	})
	assert.Equal(t, "hi", finalText)
}

func TestEnforcerBlocksBareText(t *testing.T) {
	provider := llm.NewScriptedProvider(&llm.Response{Parts: []session.Part{{Text: "ok"}}})
	core, key := newCore(t, provider)

	var blocked bool
	core.Run(context.Background(), key, []NewMessagePart{{Text: "hello"}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		if e.Kind == EventEnforcerBlock {
			blocked = true
			assert.Contains(t, e.Parts[0].Text, enforcer.BlockedMarker)
		}
		return true
	})
	assert.True(t, blocked)
}

func TestUlyssesPactBlocksDisallowedTool(t *testing.T) {
	writeFile := tool.NewFunc(tool.Descriptor{Name: "write_file", Source: tool.SourceBuiltin},
		func(ctx context.Context, args map[string]any) (map[string]any, error) { return map[string]any{"ok": true}, nil })

	provider := llm.NewScriptedProvider(
		&llm.Response{Parts: []session.Part{{ToolCall: &session.ToolCall{ID: "1", Name: "planner", Args: map[string]any{"allowed_tools": []string{"read_file"}}}}}},
		&llm.Response{Parts: []session.Part{{ToolCall: &session.ToolCall{ID: "2", Name: "write_file", Args: map[string]any{}}}}},
	)
	// planner is built by Core itself, bound to this session's own Enforcer.
	core, key := newCore(t, provider, writeFile)

	var blocked bool
	core.Run(context.Background(), key, []NewMessagePart{{Text: "hello"}})(func(ev *Event, err error) bool {
		require.NoError(t, err)
		if ev.Kind == EventEnforcerBlock {
			blocked = true
			assert.Contains(t, ev.Parts[0].Text, "write_file")
		}
		return true
	})
	assert.True(t, blocked)
}

func TestPaymentRequiredSurfacesAsToolResultError(t *testing.T) {
	paid := tool.NewFunc(tool.Descriptor{
		Name: "perform_premium_analysis", Source: tool.SourceBuiltin,
		Paid: &tool.PaidSpec{Price: 10.0, Currency: "SOL", Recipient: "addr1"},
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"report": "deep analysis"}, nil
	})

	sessions := sessionstore.NewMemory()
	w := wallet.NewMock(100)
	broker := payment.NewBroker(w)
	wrapped := broker.WrapPaid(paid)

	provider := llm.NewScriptedProvider(&llm.Response{Parts: []session.Part{
		{ToolCall: &session.ToolCall{ID: "1", Name: "perform_premium_analysis", Args: map[string]any{"topic": "X"}}},
	}})
	synth := modemanager.NewSynthesizer(provider)

	core := New(Config{
		Provider: provider, Synthesizer: synth, Sessions: sessions, Broker: broker,
		Builtins: []tool.Tool{builtintools.NewAttemptAnswer(), wrapped},
		InitialInstruction: "initial instruction",
		ModeConfig:         modemanager.Config{MaxContextTokens: 100000, Threshold: 0.9},
		QueueOnBusy:        true,
	})
	key := session.Key{App: "a", User: "u", SessionID: "s2"}

	var paymentResult *session.ToolResult
	core.Run(context.Background(), key, []NewMessagePart{{Text: "please analyze X"}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		if e.Kind == EventToolResult && e.ToolResult.Name == "perform_premium_analysis" {
			paymentResult = e.ToolResult
		}
		return true
	})
	require.NotNil(t, paymentResult)
	require.NotNil(t, paymentResult.Error)
	assert.Equal(t, string(errs.KindPaymentRequired), paymentResult.Error.Tag)
}

func TestToolNotFoundReturnsGuidance(t *testing.T) {
	provider := llm.NewScriptedProvider(
		&llm.Response{Parts: []session.Part{{ToolCall: &session.ToolCall{ID: "1", Name: "nonexistent_tool", Args: map[string]any{}}}}},
		&llm.Response{Parts: []session.Part{{ToolCall: &session.ToolCall{ID: "2", Name: "attempt_answer", Args: map[string]any{"answer": "done"}}}}},
	)
	core, key := newCore(t, provider)

	var sawNotFound bool
	core.Run(context.Background(), key, []NewMessagePart{{Text: "hello"}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		if e.Kind == EventToolResult && e.ToolResult.Error != nil {
			sawNotFound = sawNotFound || e.ToolResult.Error.Tag == string(errs.KindToolNotFound)
		}
		return true
	})
	assert.True(t, sawNotFound)
}

func TestConfirmationSuspendsAndResumes(t *testing.T) {
	calledReal := false
	sendMoney := tool.NewFunc(tool.Descriptor{Name: "send_money", Source: tool.SourceBuiltin, RequireConfirmation: true},
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			calledReal = true
			return map[string]any{"status": "sent"}, nil
		})

	provider := llm.NewScriptedProvider(&llm.Response{Parts: []session.Part{
		{ToolCall: &session.ToolCall{ID: "call-1", Name: "send_money", Args: map[string]any{"amount": 5}}},
	}})
	core, key := newCore(t, provider, sendMoney)

	var confirmEvent *Event
	core.Run(context.Background(), key, []NewMessagePart{{Text: "send 5"}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		if e.ToolCall != nil && e.ToolCall.Name == confirmationToolName {
			confirmEvent = e
		}
		return true
	})
	require.NotNil(t, confirmEvent)
	assert.False(t, calledReal)

	core.Run(context.Background(), key, []NewMessagePart{{ToolResp: &ToolResponse{
		ID: "call-1", Name: confirmationToolName, Response: map[string]any{"confirmed": true},
	}}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		return true
	})
	assert.True(t, calledReal)
}

func TestConcurrentSiblingToolCallsPreserveOrder(t *testing.T) {
	order := []string{"alpha", "beta", "gamma"}
	var tools []tool.Tool
	for _, name := range order {
		name := name
		tools = append(tools, tool.NewFunc(tool.Descriptor{Name: name, Source: tool.SourceBuiltin},
			func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return map[string]any{"name": name}, nil
			}))
	}

	var calls []session.Part
	for i, name := range order {
		calls = append(calls, session.Part{ToolCall: &session.ToolCall{ID: string(rune('1' + i)), Name: name, Args: map[string]any{}}})
	}

	provider := llm.NewScriptedProvider(
		&llm.Response{Parts: calls},
		&llm.Response{Parts: []session.Part{{ToolCall: &session.ToolCall{ID: "final", Name: "attempt_answer", Args: map[string]any{"answer": "done"}}}}},
	)
	core, key := newCore(t, provider, tools...)

	var gotOrder []string
	core.Run(context.Background(), key, []NewMessagePart{{Text: "go"}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		if e.Kind == EventToolResult && e.ToolResult.Response != nil {
			if n, ok := e.ToolResult.Response["name"].(string); ok {
				gotOrder = append(gotOrder, n)
			}
		}
		return true
	})
	assert.Equal(t, order, gotOrder)
}

func TestLLMUnavailableSurfacesAsToolResultAndContinues(t *testing.T) {
	provider := llm.NewScriptedProvider() // no responses queued: every call fails
	core, key := newCore(t, provider)

	var sawUnavailable bool
	var finalErr string
	core.Run(context.Background(), key, []NewMessagePart{{Text: "hello"}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		if e.Kind == EventToolResult && e.ToolResult.Name == "llm" && e.ToolResult.Error != nil {
			sawUnavailable = sawUnavailable || e.ToolResult.Error.Tag == string(errs.KindLLMUnavailable)
		}
		if e.Kind == EventFinal {
			finalErr = e.Err
		}
		return true
	})
	assert.True(t, sawUnavailable)
	assert.Equal(t, "timeout", finalErr)
}

func TestModeSwitchKeepsEscapeHatchAndSessionTools(t *testing.T) {
	turnProvider := llm.NewScriptedProvider(
		&llm.Response{Parts: []session.Part{
			{ToolCall: &session.ToolCall{ID: "1", Name: "switch_mode", Args: map[string]any{}}},
		}},
		&llm.Response{Parts: []session.Part{
			{ToolCall: &session.ToolCall{ID: "2", Name: "attempt_answer", Args: map[string]any{"answer": "done"}}},
		}},
	)

	switchJSON := `{"instruction":"new focus; call switch_mode to rediscover tools","selected_tools":[],"selected_skills":[]}`
	synth := modemanager.NewSynthesizer(llm.NewScriptedProvider(&llm.Response{Parts: []session.Part{{Text: switchJSON}}}))

	sessions := sessionstore.NewMemory()
	broker := payment.NewBroker(wallet.NewMock(100))
	builtins := []tool.Tool{
		builtintools.NewAskQuestion(),
		builtintools.NewAttemptAnswer(),
	}

	core := New(Config{
		Provider:    turnProvider,
		Synthesizer: synth,
		Sessions:    sessions,
		Broker:      broker,
		Builtins:    builtins,
		Sources: modemanager.Sources{
			Builtins:   builtins,
			MCPToolset: tool.NewStaticToolset(),
		},
		InitialInstruction: "initial instruction",
		ModeConfig:         modemanager.Config{MaxContextTokens: 100000, Threshold: 0.9},
		QueueOnBusy:        true,
	})
	key := session.Key{App: "a", User: "u", SessionID: "s-switch"}

	var sawModeSwitch bool
	core.Run(context.Background(), key, []NewMessagePart{{Text: "hello"}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		if e.Kind == EventModeSwitched {
			sawModeSwitch = true
		}
		return true
	})
	require.True(t, sawModeSwitch)

	active := core.ModeManagerFor(key).Mode().ActiveTools
	assert.Contains(t, active, "switch_mode")
	assert.Contains(t, active, "planner")
}

func TestIterationCapEmitsTimeoutFinal(t *testing.T) {
	loop := tool.NewFunc(tool.Descriptor{Name: "loop_tool", Source: tool.SourceBuiltin},
		func(ctx context.Context, args map[string]any) (map[string]any, error) { return map[string]any{}, nil })

	var responses []*llm.Response
	for i := 0; i < 40; i++ {
		responses = append(responses, &llm.Response{Parts: []session.Part{
			{ToolCall: &session.ToolCall{ID: "x", Name: "loop_tool", Args: map[string]any{}}},
		}})
	}
	provider := llm.NewScriptedProvider(responses...)
	core, key := newCore(t, provider, loop)

	var finalErr string
	core.Run(context.Background(), key, []NewMessagePart{{Text: "go"}})(func(e *Event, err error) bool {
		require.NoError(t, err)
		if e.Kind == EventFinal {
			finalErr = e.Err
		}
		return true
	})
	assert.Equal(t, "timeout", finalErr)
}
