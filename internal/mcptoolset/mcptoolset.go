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

// Package mcptoolset is a tool.Toolset backed by an MCP server over the
// streamable HTTP transport. The filter is mutable in place (SetFilter)
// rather than composed via a wrapping WithFilter toolset, since the Mode
// Manager swaps the active filter on every mode switch without tearing
// down the connection; the transport is mark3labs/mcp-go's client
// package directly rather than a hand-rolled JSON-RPC-over-http.Client
// loop.
package mcptoolset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

// Config configures one MCP server connection.
type Config struct {
	// Name identifies this toolset among others in the active tool set.
	Name string
	// URL is the MCP server's streamable-HTTP endpoint.
	URL string
	// Filter, if non-empty, restricts Tools() to these tool names.
	Filter []string
}

// Toolset is a lazily-connected, mutably-filtered MCP tool.Toolset.
type Toolset struct {
	cfg Config

	mu        sync.Mutex
	client    *mcpclient.Client
	connected bool
	allTools  []*remoteTool

	filterMu  sync.RWMutex
	filterSet map[string]bool
}

func New(cfg Config) (*Toolset, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mcptoolset: url is required")
	}
	t := &Toolset{cfg: cfg}
	t.SetFilter(cfg.Filter)
	return t, nil
}

// SetFilter replaces the active filter in place. An empty filter exposes
// every tool the server offers. Safe to call concurrently with Tools/Call.
func (t *Toolset) SetFilter(names []string) {
	var set map[string]bool
	if len(names) > 0 {
		set = make(map[string]bool, len(names))
		for _, n := range names {
			set[n] = true
		}
	}
	t.filterMu.Lock()
	t.filterSet = set
	t.filterMu.Unlock()
}

func (t *Toolset) allowed(name string) bool {
	t.filterMu.RLock()
	defer t.filterMu.RUnlock()
	return t.filterSet == nil || t.filterSet[name]
}

// Tools lazily connects on first call and returns the filtered tool list.
func (t *Toolset) Tools(ctx context.Context) ([]tool.Tool, error) {
	t.mu.Lock()
	if !t.connected {
		if err := t.connect(ctx); err != nil {
			t.mu.Unlock()
			return nil, fmt.Errorf("connect to mcp server %q: %w", t.cfg.Name, err)
		}
	}
	all := t.allTools
	t.mu.Unlock()

	out := make([]tool.Tool, 0, len(all))
	for _, rt := range all {
		if t.allowed(rt.name) {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (t *Toolset) connect(ctx context.Context) error {
	c, err := mcpclient.NewStreamableHttpClient(t.cfg.URL)
	if err != nil {
		return fmt.Errorf("new streamable http client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "adaptive-agent-runtime", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	tools := make([]*remoteTool, 0, len(listResp.Tools))
	for _, mt := range listResp.Tools {
		tools = append(tools, &remoteTool{
			toolset: t,
			name:    mt.Name,
			desc:    mt.Description,
			schema:  schemaToMap(mt.InputSchema),
		})
	}

	t.client = c
	t.allTools = tools
	t.connected = true
	slog.Info("connected to mcp server", "name", t.cfg.Name, "url", t.cfg.URL, "tools", len(tools))
	return nil
}

// Close tears down the underlying MCP connection.
func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	t.connected = false
	t.allTools = nil
	return err
}

// remoteTool bridges one MCP tool into tool.Tool.
type remoteTool struct {
	toolset *Toolset
	name    string
	desc    string
	schema  map[string]any
}

func (r *remoteTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        r.name,
		Description: r.desc,
		InputSchema: r.schema,
		Source:      tool.SourceMCP,
	}
}

func (r *remoteTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	r.toolset.mu.Lock()
	client := r.toolset.client
	r.toolset.mu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("mcptoolset %q: not connected", r.toolset.cfg.Name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = r.name
	req.Params.Arguments = args

	resp, err := client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp tools/call %q: %w", r.name, err)
	}
	return parseResult(resp)
}

func parseResult(resp *mcp.CallToolResult) (map[string]any, error) {
	result := make(map[string]any)
	if resp.IsError {
		for _, c := range resp.Content {
			if tc, ok := c.(mcp.TextContent); ok {
				result["error"] = tc.Text
				break
			}
		}
		if result["error"] == nil {
			result["error"] = "unknown mcp tool error"
		}
		return result, nil
	}

	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	switch len(texts) {
	case 0:
	case 1:
		result["result"] = texts[0]
	default:
		result["results"] = texts
	}
	return result, nil
}

func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	// Round-trip through JSON to get a plain map[string]any.
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

var _ tool.Toolset = (*Toolset)(nil)
