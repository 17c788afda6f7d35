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

package wallet

import (
	"context"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSendAndVerify(t *testing.T) {
	ctx := context.Background()
	w := NewMock(100)

	balance, err := w.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, balance)

	tx, err := w.Send(ctx, "recipient-1", 10, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx, "MockTx_"))

	balance, err = w.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90.0, balance)

	ok, err := w.Verify(ctx, tx, "recipient-1", 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = w.Verify(ctx, "not-a-mock-tx", "recipient-1", 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMockSendInsufficientBalance(t *testing.T) {
	w := NewMock(5)
	_, err := w.Send(context.Background(), "r", 10, "")
	require.Error(t, err)
}

func TestKeyedSendAndVerify(t *testing.T) {
	ctx := context.Background()
	priv := make([]byte, 32)
	_, err := rand.Read(priv)
	require.NoError(t, err)

	w, err := NewKeyed(priv, 50)
	require.NoError(t, err)

	addr, err := w.Address(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, addr)

	sig, err := w.Send(ctx, "recipient-2", 5, "")
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	ok, err := w.Verify(ctx, sig, "recipient-2", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = w.Verify(ctx, sig, "someone-else", 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyedRejectsShortPrivateKey(t *testing.T) {
	_, err := NewKeyed([]byte{1, 2, 3}, 0)
	require.Error(t, err)
}
