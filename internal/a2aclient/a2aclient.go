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

// Package a2aclient reaches peer agents over the A2A transport: fetch a
// peer's agent card, then forward a text request to its /run endpoint
// and return its final answer. This is narrowed to one peer operation —
// forward a text request and return the peer's final answer — rather
// than the full A2A task lifecycle (message/send, task polling, task
// cancel) a multi-method client would expose. The wire types for the
// card and the forwarded message are the a2a-go package's own types
// (TextPart/NewMessage), not bespoke structs.
package a2aclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
)

// PeerConfig is one entry of the peer configuration file:
// `a2a_peers: [{name, url, capabilities}]`.
type PeerConfig struct {
	Name         string   `yaml:"name"`
	URL          string   `yaml:"url"`
	Capabilities []string `yaml:"capabilities"`

	// AuthScheme/AuthToken carry the credentials this runtime presents when
	// forwarding to the peer, when the peer's own agent card does not embed
	// them in a fetchable security scheme.
	AuthScheme string `yaml:"auth_scheme,omitempty"`
	AuthToken  string `yaml:"auth_token,omitempty"`
}

// AgentCardURL builds the well-known agent card URL for a peer, per spec
// §4.7: base_url + "/a2a/<peer_name>/.well-known/agent-card.json".
func AgentCardURL(baseURL, peerName string) string {
	return fmt.Sprintf("%s/a2a/%s/.well-known/agent-card.json", baseURL, peerName)
}

// Client is an A2A protocol client restricted to this runtime's peer-agent
// use case: discover a card, forward one text request, read back the
// peer's final answer.
type Client struct {
	httpClient *http.Client
}

// DefaultTimeout is the A2A dispatch budget ("A2A default 120s").
const DefaultTimeout = 120 * time.Second

func New() *Client {
	return &Client{httpClient: &http.Client{Timeout: DefaultTimeout}}
}

func NewWithHTTPClient(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// DiscoverAgent fetches a peer's agent card from baseURL, decoding it as
// the a2a-go a2a.AgentCard wire type.
func (c *Client) DiscoverAgent(ctx context.Context, baseURL, peerName string) (*a2a.AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, AgentCardURL(baseURL, peerName), nil)
	if err != nil {
		return nil, fmt.Errorf("build agent card request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch agent card for %q: %w", peerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch agent card for %q: %s: %s", peerName, resp.Status, string(body))
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decode agent card for %q: %w", peerName, err)
	}
	return &card, nil
}

// runRequest is the body this runtime's own /run endpoint accepts (see
// internal/httpapi); forwarding wraps the text in an a2a.Message.
type runRequest struct {
	Message *a2a.Message `json:"message"`
}

type runResponse struct {
	Message *a2a.Message `json:"message"`
}

// Forward POSTs text as a nested a2a.Message to the peer's /run endpoint,
// using the credentials supplied in peer, and returns the peer's final
// answer text extracted from the first TextPart of its response message
// ("a2a-peer": POST the model's request as a nested message to
// the peer's /run endpoint).
func (c *Client) Forward(ctx context.Context, card *a2a.AgentCard, peer PeerConfig, text string) (string, error) {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})

	body, err := json.Marshal(runRequest{Message: msg})
	if err != nil {
		return "", fmt.Errorf("marshal forwarded request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, card.URL+"/run", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuthHeaders(req, peer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("forward to peer %q: %w", card.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("forward to peer %q: %s: %s", card.Name, resp.Status, string(raw))
	}

	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode peer response from %q: %w", card.Name, err)
	}
	return firstText(out.Message), nil
}

func firstText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	for _, p := range msg.Parts {
		if tp, ok := p.(a2a.TextPart); ok {
			return tp.Text
		}
	}
	return ""
}

func setAuthHeaders(req *http.Request, peer PeerConfig) {
	switch peer.AuthScheme {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+peer.AuthToken)
	case "apiKey":
		req.Header.Set("X-API-Key", peer.AuthToken)
	}
}
