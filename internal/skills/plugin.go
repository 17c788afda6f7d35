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

// Plugin-backed skill-local tool implementations: a skill bundle may ship
// a native Go plugin binary instead of (or alongside) in-process Go code
// for its local_tool_impls, using go-plugin's handshake/client-lifecycle
// pattern narrowed to a single "skill tool" plugin kind over go-plugin's
// simpler net/rpc transport (a gRPC transport needs generated .pb.go
// stubs per plugin kind; net/rpc needs none, and a skill tool's
// Call(args) (result, error) shape has no streaming requirement that
// would justify gRPC).
package skills

import (
	"context"
	"fmt"
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"

	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

// handshakeConfig is the go-plugin handshake magic cookie every skill
// plugin binary and this host must agree on.
var handshakeConfig = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ADAPTIVE_AGENT_SKILL_PLUGIN",
	MagicCookieValue: "skill-tool-plugin",
}

// ToolPlugin is the RPC surface a skill's native plugin binary implements:
// one Call per tool name it backs.
type ToolPlugin interface {
	Call(toolName string, args map[string]any) (map[string]any, error)
}

// rpcToolPlugin adapts go-plugin's net/rpc transport to ToolPlugin.
type rpcToolPlugin struct{ client *rpc.Client }

type callArgs struct {
	ToolName string
	Args     map[string]any
}

type callResult struct {
	Response map[string]any
	ErrMsg   string
}

func (p *rpcToolPlugin) Call(toolName string, args map[string]any) (map[string]any, error) {
	var resp callResult
	if err := p.client.Call("Plugin.Call", callArgs{ToolName: toolName, Args: args}, &resp); err != nil {
		return nil, fmt.Errorf("skill plugin rpc: %w", err)
	}
	if resp.ErrMsg != "" {
		return nil, fmt.Errorf("skill plugin: %s", resp.ErrMsg)
	}
	return resp.Response, nil
}

// toolPlugin is the go-plugin Plugin implementation both host and plugin
// binaries link against.
type toolPlugin struct{ Impl ToolPlugin }

func (p *toolPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.Impl}, nil
}

func (p *toolPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcToolPlugin{client: c}, nil
}

type rpcServer struct{ impl ToolPlugin }

func (s *rpcServer) Call(args callArgs, resp *callResult) error {
	out, err := s.impl.Call(args.ToolName, args.Args)
	if err != nil {
		resp.ErrMsg = err.Error()
		return nil
	}
	resp.Response = out
	return nil
}

// PluginMap is the go-plugin plugin-map for the single "tool" kind this
// runtime dispenses.
func PluginMap(impl ToolPlugin) map[string]goplugin.Plugin {
	return map[string]goplugin.Plugin{"tool": &toolPlugin{Impl: impl}}
}

// ServeToolPlugin is the entry point a skill bundle's plugin binary calls
// from its own main. Unlike a gRPC-based plugin kind, there is no gRPC
// server to configure — go-plugin handles the net/rpc handshake itself.
func ServeToolPlugin(impl ToolPlugin) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: handshakeConfig,
		Plugins:         PluginMap(impl),
	})
}

// LoadedPlugin wraps a live go-plugin client for a skill's binary.
type LoadedPlugin struct {
	client *goplugin.Client
	proxy  ToolPlugin
}

// LoadPlugin launches binaryPath as a skill tool plugin subprocess.
func LoadPlugin(binaryPath string) (*LoadedPlugin, error) {
	logger := hclog.New(&hclog.LoggerOptions{Name: "skill-plugin", Level: hclog.Info})
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: handshakeConfig,
		Plugins:         map[string]goplugin.Plugin{"tool": &toolPlugin{}},
		Cmd:             exec.Command(binaryPath),
		Logger:          logger,
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("skill plugin %s: %w", binaryPath, err)
	}
	raw, err := rpcClient.Dispense("tool")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("skill plugin %s: dispense: %w", binaryPath, err)
	}
	proxy, ok := raw.(ToolPlugin)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("skill plugin %s: unexpected dispensed type %T", binaryPath, raw)
	}
	return &LoadedPlugin{client: client, proxy: proxy}, nil
}

func (lp *LoadedPlugin) Close() { lp.client.Kill() }

// Tool adapts one plugin-backed tool name into a tool.Tool.
func (lp *LoadedPlugin) Tool(desc tool.Descriptor) tool.Tool {
	return tool.NewFunc(desc, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return lp.proxy.Call(desc.Name, args)
	})
}
