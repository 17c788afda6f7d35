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

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAppendAndTurns(t *testing.T) {
	s := New(Key{App: "app", User: "u1", SessionID: "s1"})
	s.Append(UserMessage("hello"))
	s.Append(ModelMessage(Part{Text: "hi there"}))

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, KindUserMessage, turns[0].Kind)
	assert.Equal(t, "hello", turns[0].UserText)
	assert.Equal(t, KindModelMessage, turns[1].Kind)
}

func TestSessionTurnsReturnsDefensiveCopy(t *testing.T) {
	s := New(Key{App: "a", User: "u", SessionID: "s"})
	s.Append(UserMessage("x"))

	turns := s.Turns()
	turns[0].UserText = "mutated"

	assert.Equal(t, "x", s.Turns()[0].UserText)
}

func TestClearAndSeedMutatesInPlace(t *testing.T) {
	s := New(Key{App: "a", User: "u", SessionID: "s"})
	s.Append(UserMessage("one"))
	s.Append(UserMessage("two"))
	s.Append(UserMessage("three"))
	require.Len(t, s.Turns(), 3)

	seed := UserMessage("seeded")
	s.ClearAndSeed(seed)

	turns := s.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "seeded", turns[0].UserText)
}

func TestPendingToolCallIDs(t *testing.T) {
	s := New(Key{App: "a", User: "u", SessionID: "s"})
	s.Append(NewToolCall(ToolCall{ID: "1", Name: "foo"}))
	s.Append(NewToolCall(ToolCall{ID: "2", Name: "bar"}))
	s.Append(NewToolResult(ToolResult{ID: "1", Name: "foo"}))

	pending := s.PendingToolCallIDs()
	require.Len(t, pending, 1)
	assert.Equal(t, "2", pending[0])
}

func TestMarkFailed(t *testing.T) {
	s := New(Key{App: "a", User: "u", SessionID: "s"})
	assert.False(t, s.Failed())
	s.MarkFailed()
	assert.True(t, s.Failed())
}
