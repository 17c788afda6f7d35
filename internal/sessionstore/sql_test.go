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

package sessionstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

func newTestSQL(t *testing.T) *SQL {
	t.Helper()
	s, err := NewSQL("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLCreateAppendGet(t *testing.T) {
	ctx := context.Background()
	s := newTestSQL(t)
	key := session.Key{App: "app", User: "u1", SessionID: "s1"}

	_, err := s.Create(ctx, key)
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, key, session.UserMessage("hello")))
	require.NoError(t, s.Append(ctx, key, session.ModelMessage(session.Part{Text: "hi"})))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	turns := got.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "hello", turns[0].UserText)
	assert.Equal(t, session.KindModelMessage, turns[1].Kind)
}

func TestSQLGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestSQL(t)
	_, err := s.Get(ctx, session.Key{App: "a", User: "u", SessionID: "missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSQLListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQL(t)
	k1 := session.Key{App: "app", User: "u1", SessionID: "s1"}
	k2 := session.Key{App: "app", User: "u1", SessionID: "s2"}

	_, err := s.Create(ctx, k1)
	require.NoError(t, err)
	_, err = s.Create(ctx, k2)
	require.NoError(t, err)

	ids, err := s.List(ctx, "app", "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	require.NoError(t, s.Delete(ctx, k1))
	_, err = s.Get(ctx, k1)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

var _ session.Service = (*SQL)(nil)
