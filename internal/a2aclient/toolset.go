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

package a2aclient

import (
	"context"
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
)

// Toolset exposes each configured peer as a single a2a-peer tool named
// "ask_<peer_name>", whose only operation is forwarding a text request
//. ConsumerMode gates whether these tools are exposed at all:
// a provider-only deployment leaves ConsumerMode false so it never itself
// originates A2A calls, avoiding request cycles.
type Toolset struct {
	client        *Client
	peers         []PeerConfig
	consumerMode  bool
	cardOverrides map[string]*a2a.AgentCard // test/offline override, peer name -> card
}

func NewToolset(client *Client, peers []PeerConfig, consumerMode bool) *Toolset {
	return &Toolset{client: client, peers: peers, consumerMode: consumerMode}
}

// WithAgentCard lets a caller (tests, or a deployment with pre-fetched
// cards) short-circuit DiscoverAgent for a named peer.
func (t *Toolset) WithAgentCard(peerName string, card *a2a.AgentCard) *Toolset {
	if t.cardOverrides == nil {
		t.cardOverrides = make(map[string]*a2a.AgentCard)
	}
	t.cardOverrides[peerName] = card
	return t
}

func (t *Toolset) Tools(ctx context.Context) ([]tool.Tool, error) {
	if !t.consumerMode {
		return nil, nil
	}
	out := make([]tool.Tool, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, &peerTool{toolset: t, peer: p})
	}
	return out, nil
}

type peerTool struct {
	toolset *Toolset
	peer    PeerConfig
}

func (pt *peerTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "ask_" + pt.peer.Name,
		Description: fmt.Sprintf("Forward a text request to the peer agent %q and return its final answer.", pt.peer.Name),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string", "description": "the request to forward"},
			},
			"required": []string{"text"},
		},
		Source: tool.SourceA2APeer,
	}
}

func (pt *peerTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, _ := args["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("ask_%s: missing required arg %q", pt.peer.Name, "text")
	}

	card := pt.toolset.cardOverrides[pt.peer.Name]
	if card == nil {
		var err error
		card, err = pt.toolset.client.DiscoverAgent(ctx, pt.peer.URL, pt.peer.Name)
		if err != nil {
			return nil, fmt.Errorf("discover peer %q: %w", pt.peer.Name, err)
		}
	}

	answer, err := pt.toolset.client.Forward(ctx, card, pt.peer, text)
	if err != nil {
		return nil, fmt.Errorf("forward to peer %q: %w", pt.peer.Name, err)
	}
	return map[string]any{"answer": answer}, nil
}

var _ tool.Toolset = (*Toolset)(nil)
var _ tool.Tool = (*peerTool)(nil)
