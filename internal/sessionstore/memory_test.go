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

func TestMemoryCreateGetAppend(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := session.Key{App: "app", User: "u1", SessionID: "s1"}

	_, err := m.Create(ctx, key)
	require.NoError(t, err)

	require.NoError(t, m.Append(ctx, key, session.UserMessage("hi")))

	got, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, got.Turns(), 1)
	assert.Equal(t, "hi", got.Turns()[0].UserText)
}

func TestMemoryCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := session.Key{App: "app", User: "u1", SessionID: "s1"}

	s1, err := m.Create(ctx, key)
	require.NoError(t, err)
	s2, err := m.Create(ctx, key)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
}

func TestMemoryAppendToMissingSessionFails(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := session.Key{App: "app", User: "u1", SessionID: "missing"}

	err := m.Append(ctx, key, session.UserMessage("hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	k1 := session.Key{App: "app", User: "u1", SessionID: "s1"}
	k2 := session.Key{App: "app", User: "u1", SessionID: "s2"}
	k3 := session.Key{App: "app", User: "u2", SessionID: "s3"}

	for _, k := range []session.Key{k1, k2, k3} {
		_, err := m.Create(ctx, k)
		require.NoError(t, err)
	}

	ids, err := m.List(ctx, "app", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)

	require.NoError(t, m.Delete(ctx, k1))
	ids, err = m.List(ctx, "app", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids)

	_, err = m.Get(ctx, k1)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

var _ session.Service = (*Memory)(nil)
