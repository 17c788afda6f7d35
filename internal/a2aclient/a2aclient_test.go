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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentCardURL(t *testing.T) {
	assert.Equal(t, "https://host/a2a/billing/.well-known/agent-card.json", AgentCardURL("https://host", "billing"))
}

func TestDiscoverAndForward(t *testing.T) {
	var peerURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/a2a/billing/.well-known/agent-card.json":
			_ = json.NewEncoder(w).Encode(a2a.AgentCard{Name: "billing", URL: peerURL})
		case r.Method == http.MethodPost && r.URL.Path == "/run":
			var req runRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			reply := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "echo: " + firstText(req.Message)})
			_ = json.NewEncoder(w).Encode(runResponse{Message: reply})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	peerURL = srv.URL

	c := New()
	card, err := c.DiscoverAgent(context.Background(), srv.URL, "billing")
	require.NoError(t, err)
	assert.Equal(t, "billing", card.Name)

	answer, err := c.Forward(context.Background(), card, PeerConfig{Name: "billing", URL: srv.URL}, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", answer)
}

func TestToolsetHiddenWhenNotConsumerMode(t *testing.T) {
	ts := NewToolset(New(), []PeerConfig{{Name: "billing", URL: "http://x"}}, false)
	tools, err := ts.Tools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestToolsetExposesPeerTool(t *testing.T) {
	ts := NewToolset(New(), []PeerConfig{{Name: "billing", URL: "http://x"}}, true)
	tools, err := ts.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "ask_billing", tools[0].Descriptor().Name)
}
