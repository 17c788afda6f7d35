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
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/teeppp/adaptive-agent-runtime/internal/builtintools"
	"github.com/teeppp/adaptive-agent-runtime/internal/enforcer"
	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/llm"
	"github.com/teeppp/adaptive-agent-runtime/internal/modemanager"
	"github.com/teeppp/adaptive-agent-runtime/internal/payment"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
	"github.com/teeppp/adaptive-agent-runtime/internal/skills"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

// terminalTools end a turn as soon as they are dispatched (step g).
var terminalTools = map[string]bool{"attempt_answer": true, "ask_question": true}

// Config wires the Core to its collaborators. One Config is shared across
// every session; per-session mutable state (Enforcer, Mode Manager,
// PlanPact, token counters) lives in the runtime the Core creates per key.
type Config struct {
	Provider    llm.Provider
	Synthesizer *modemanager.Synthesizer
	Sessions    session.Service
	Broker      *payment.Broker

	// Builtins are always present in every Mode, including the initial one
	// ("list_skills, enable_skill, switch_mode, planner are never
	// removed"). The Broker has already wrapped any paid builtins. planner
	// and switch_mode are NOT listed here — Core builds them itself per
	// session, bound to that session's own Enforcer/Mode Manager.
	Builtins []tool.Tool

	// SkillRegistry, if set, lets Core build the enable_skill builtin bound
	// to each session's own Mode Manager (list_skills has no per-session
	// state and belongs in Builtins directly).
	SkillRegistry *skills.Registry

	// Sources feeds Mode Manager switches: the process-wide MCP toolset and
	// skill registry/toolset ("process-wide, copy-on-read").
	Sources modemanager.Sources

	EnforcerConfig enforcer.Config
	ModeConfig     modemanager.Config

	// InitialInstruction seeds the first-turn Mode ("The initial
	// Mode is a minimal one").
	InitialInstruction string

	// MaxIterations bounds the inner loop (default 32).
	MaxIterations int
	// LLMMaxRetries bounds LLM-call retries (default 2).
	LLMMaxRetries int

	// QueueOnBusy selects the per-session lease policy: true queues a
	// concurrent request for the same session (blocking until the lease
	// frees), false rejects it immediately with SessionBusy. The zero value
	// rejects; cmd/aar sets it to true, so the aar binary queues.
	QueueOnBusy bool

	// ExternalLease coordinates the same per-session exclusivity across
	// processes sharing one session store, for multi-instance deployment.
	// Optional: nil (the default) relies solely on the in-process mutex
	// below, which is enough for a single aar instance.
	ExternalLease LeaseManager
}

// LeaseManager acquires cross-process turn exclusivity for a session key,
// returning a release func to call when the turn completes. Satisfied
// structurally by sessionstore.LocalLeaseManager and
// sessionstore.EtcdLeaseManager without this package importing sessionstore.
type LeaseManager interface {
	Acquire(ctx context.Context, key session.Key) (release func(), err error)
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 32
	}
	if c.LLMMaxRetries <= 0 {
		c.LLMMaxRetries = 2
	}
	return c
}

// sessionRuntime holds the per-session mutable state scoped to one
// session: the Enforcer (and its PlanPact), the Mode Manager, a
// turn-exclusivity lease, cumulative token usage for the should_switch
// threshold, and any tool call suspended awaiting confirmation.
type sessionRuntime struct {
	lease sync.Mutex

	enforcer    *enforcer.Enforcer
	mode        *modemanager.Manager
	totalTokens int

	// sessionBuiltins are this session's own planner/switch_mode/
	// enable_skill instances (closed over this session's Enforcer/Mode
	// Manager), merged into modemanager.Sources.Builtins on every Switch
	// call so a Mode Manager switch never drops them.
	sessionBuiltins []tool.Tool

	pendingConfirm map[string]pendingConfirmation
}

type pendingConfirmation struct {
	call session.ToolCall
	t    tool.Tool
}

// Core runs the Adaptive Agent Core turn loop.
type Core struct {
	cfg Config

	mu       sync.Mutex
	runtimes map[session.Key]*sessionRuntime
}

func New(cfg Config) *Core {
	return &Core{cfg: cfg.withDefaults(), runtimes: make(map[session.Key]*sessionRuntime)}
}

func (c *Core) runtimeFor(key session.Key) *sessionRuntime {
	c.mu.Lock()
	defer c.mu.Unlock()
	rt, ok := c.runtimes[key]
	if !ok {
		e := enforcer.New(c.cfg.EnforcerConfig)

		planner := builtintools.NewPlanner(e)
		builtins := make([]tool.Tool, 0, len(c.cfg.Builtins)+1)
		builtins = append(builtins, c.cfg.Builtins...)
		builtins = append(builtins, planner)

		mode := modemanager.InitialMode(c.cfg.InitialInstruction, builtins)
		mgr := modemanager.New(c.cfg.ModeConfig, mode)

		// switch_mode and enable_skill close over mgr, so they can only be
		// built once mgr exists — added directly to the already-installed
		// Mode rather than threaded back through InitialMode. They, and
		// planner, are also kept in sessionBuiltins so every later Switch
		// carries them into the new Mode too.
		switchMode := builtintools.NewSwitchMode(mgr)
		mode.ActiveTools["switch_mode"] = switchMode
		sessionBuiltins := []tool.Tool{planner, switchMode}

		if c.cfg.SkillRegistry != nil {
			enableSkill := builtintools.NewEnableSkill(c.cfg.SkillRegistry, mgr)
			mode.ActiveTools["enable_skill"] = enableSkill
			sessionBuiltins = append(sessionBuiltins, enableSkill)
		}

		rt = &sessionRuntime{
			enforcer:        e,
			mode:            mgr,
			sessionBuiltins: sessionBuiltins,
			pendingConfirm:  make(map[string]pendingConfirmation),
		}
		c.runtimes[key] = rt
	}
	return rt
}

// EnforcerFor returns key's session-scoped Enforcer, creating the session
// runtime if this is its first reference. Exposed for callers (tests, a
// future admin surface) that need to inspect Tool Governance Layer state
// without going through a turn.
func (c *Core) EnforcerFor(key session.Key) *enforcer.Enforcer {
	return c.runtimeFor(key).enforcer
}

// ModeManagerFor returns key's session-scoped Mode Manager, mirroring
// EnforcerFor.
func (c *Core) ModeManagerFor(key session.Key) *modemanager.Manager {
	return c.runtimeFor(key).mode
}

// Run executes one user turn over key's session, yielding Events as they
// occur (contract). It returns a single errs.KindSessionBusy
// error (via the yielded err) if another turn holds the lease and
// QueueOnBusy is false.
func (c *Core) Run(ctx context.Context, key session.Key, parts []NewMessagePart) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		rt := c.runtimeFor(key)

		if !c.acquireLease(rt) {
			yield(nil, errs.New(errs.KindSessionBusy, "another turn is in flight for this session"))
			return
		}
		defer rt.lease.Unlock()

		if c.cfg.ExternalLease != nil {
			release, err := c.cfg.ExternalLease.Acquire(ctx, key)
			if err != nil {
				yield(nil, fmt.Errorf("agentcore: acquire external lease: %w", err))
				return
			}
			defer release()
		}

		sess, err := c.cfg.Sessions.Get(ctx, key)
		if err != nil {
			sess, err = c.cfg.Sessions.Create(ctx, key)
			if err != nil {
				yield(nil, fmt.Errorf("agentcore: create session: %w", err))
				return
			}
		}

		if resumed := c.resumeConfirmation(ctx, sess, rt, parts, yield); resumed {
			return
		}

		for _, p := range parts {
			if p.Text != "" {
				sess.Append(session.UserMessage(p.Text))
			}
		}

		c.runLoop(ctx, sess, rt, yield)
	}
}

// acquireLease enforces the per-session exclusivity here With
// QueueOnBusy it blocks for the lease; otherwise it does a non-blocking
// TryLock and reports failure.
func (c *Core) acquireLease(rt *sessionRuntime) bool {
	if c.cfg.QueueOnBusy {
		rt.lease.Lock()
		return true
	}
	return rt.lease.TryLock()
}

// resumeConfirmation completes a previously suspended require_confirmation
// tool call if parts carries a matching functionResponse. Returns true
// if a confirmation was resolved, in which case the caller's Run
// invocation handles the continuation.
func (c *Core) resumeConfirmation(ctx context.Context, sess *session.Session, rt *sessionRuntime, parts []NewMessagePart, yield func(*Event, error) bool) bool {
	for _, p := range parts {
		if p.ToolResp == nil {
			continue
		}
		pending, ok := rt.pendingConfirm[p.ToolResp.ID]
		if !ok {
			continue
		}
		delete(rt.pendingConfirm, p.ToolResp.ID)

		confirmed, _ := p.ToolResp.Response["confirmed"].(bool)
		if !confirmed {
			tr := session.ToolResult{ID: pending.call.ID, Name: pending.call.Name, Error: &session.ToolError{
				Tag: string(errs.KindToolExecution), Message: "user declined confirmation",
			}}
			sess.Append(session.NewToolResult(tr))
			if !yield(&Event{Kind: EventToolResult, ToolResult: &tr}, nil) {
				return true
			}
			c.runLoop(ctx, sess, rt, yield)
			return true
		}

		result, callErr := dispatchOne(ctx, pending.t, pending.call)
		sess.Append(session.NewToolResult(*result))
		if !yield(&Event{Kind: EventToolResult, ToolResult: result}, nil) {
			return true
		}
		if callErr != nil {
			slog.Warn("confirmed tool call failed", "tool", pending.call.Name, "error", callErr)
		}
		if terminalTools[pending.call.Name] {
			final := &Event{Kind: EventFinal, Parts: []session.Part{{Text: resultText(result)}}}
			yield(final, nil)
			return true
		}
		c.runLoop(ctx, sess, rt, yield)
		return true
	}
	return false
}

// runLoop executes the inner N=32-iteration loop.
func (c *Core) runLoop(ctx context.Context, sess *session.Session, rt *sessionRuntime, yield func(*Event, error) bool) {
	for iteration := 0; iteration < c.cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return
		}

		mode := rt.mode.Mode()
		req := llm.Request{
			SystemInstruction: mode.Instruction,
			Messages:          turnsToMessages(sess.Turns()),
			Tools:             toolDefs(mode.Descriptors()),
		}

		resp, err := c.generateWithRetry(ctx, req)
		if err != nil {
			// LlmUnavailable is surfaced as a ToolResult error and the turn
			// continues rather than aborting; the next iteration's request
			// carries this result so a future retry has context.
			tr := session.ToolResult{Name: "llm", Error: &session.ToolError{
				Tag: string(errs.KindLLMUnavailable), Message: err.Error(),
			}}
			sess.Append(session.NewToolResult(tr))
			if !yield(&Event{Kind: EventToolResult, ToolResult: &tr}, nil) {
				return
			}
			continue
		}
		rt.totalTokens += resp.PromptTokens + resp.CompletionTokens

		sess.Append(session.ModelMessage(resp.Parts...))
		if !yield(&Event{Kind: EventModelText, Parts: resp.Parts}, nil) {
			return
		}

		if blocked := rt.enforcer.Check(resp.Parts); blocked != nil {
			sess.Append(session.ModelMessage(blocked...))
			yield(&Event{Kind: EventEnforcerBlock, Parts: blocked}, nil)
			return
		}

		if rt.mode.ShouldSwitch(rt.totalTokens) {
			src := c.cfg.Sources
			src.Builtins = append(append([]tool.Tool{}, src.Builtins...), rt.sessionBuiltins...)
			if err := rt.mode.Switch(ctx, sess.Turns(), sess, c.cfg.Synthesizer, src); err != nil {
				slog.Warn("mode switch failed, keeping previous mode", "error", err)
			} else {
				newMode := rt.mode.Mode()
				if !yield(&Event{Kind: EventModeSwitched, ModeInstruction: newMode.Instruction}, nil) {
					return
				}
			}
		}

		calls := toolCallsOf(resp.Parts)
		if len(calls) == 0 {
			continue
		}

		final, suspended, ok := c.dispatchTurn(ctx, sess, rt, calls, yield)
		if !ok {
			return
		}
		if suspended {
			return
		}
		if final != nil {
			yield(final, nil)
			return
		}
	}

	yield(&Event{Kind: EventFinal, Err: "timeout"}, nil)
}

// generateWithRetry calls the provider, retrying up to cfg.LLMMaxRetries
// times with exponential backoff ("Failure semantics").
func (c *Core) generateWithRetry(ctx context.Context, req llm.Request) (*llm.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.LLMMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond):
			}
		}
		resp, err := c.cfg.Provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, errs.Wrap(errs.KindLLMUnavailable, "llm generate failed after retries", lastErr)
}

func toolCallsOf(parts []session.Part) []session.ToolCall {
	var out []session.ToolCall
	for _, p := range parts {
		if p.ToolCall != nil {
			out = append(out, *p.ToolCall)
		}
	}
	return out
}

func toolDefs(descs []tool.Descriptor) []llm.ToolDef {
	out := make([]llm.ToolDef, 0, len(descs))
	for _, d := range descs {
		out = append(out, llm.ToolDef{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	return out
}

// turnsToMessages reconstructs the LLM-facing conversation from session
// turns. ToolResult turns have no native session.Part representation
// (session.Part models only text/tool-call), so they are serialized as a
// RoleTool text part, the same flattening an OpenAI-compatible provider
// expects for tool messages.
func turnsToMessages(turns []session.Turn) []llm.Message {
	var out []llm.Message
	for _, t := range turns {
		switch t.Kind {
		case session.KindUserMessage:
			out = append(out, llm.Message{Role: llm.RoleUser, Parts: []session.Part{{Text: t.UserText}}})
		case session.KindModelMessage:
			out = append(out, llm.Message{Role: llm.RoleModel, Parts: t.ModelParts})
		case session.KindToolResult:
			out = append(out, llm.Message{Role: llm.RoleTool, Parts: []session.Part{{Text: formatToolResult(t.ToolResult)}}})
		}
	}
	return out
}

func formatToolResult(tr *session.ToolResult) string {
	if tr.Error != nil {
		return fmt.Sprintf("[%s error] %s: %s", tr.Name, tr.Error.Tag, tr.Error.Message)
	}
	return fmt.Sprintf("[%s result] %v", tr.Name, tr.Response)
}

func resultText(tr *session.ToolResult) string {
	if tr.Error != nil {
		return tr.Error.Message
	}
	if answer, ok := tr.Response["answer"].(string); ok {
		return answer
	}
	if question, ok := tr.Response["question"].(string); ok {
		return question
	}
	return fmt.Sprintf("%v", tr.Response)
}
