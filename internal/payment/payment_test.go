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

package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
	"github.com/teeppp/adaptive-agent-runtime/internal/wallet"
)

func TestGuardRequiresPaymentHash(t *testing.T) {
	b := NewBroker(wallet.NewMock(100))
	paid := &tool.PaidSpec{Price: 10, Currency: "SOL", Recipient: "R"}

	err := b.Guard(context.Background(), "perform_premium_analysis", paid, map[string]any{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPaymentRequired))
}

func TestGuardVerifiesPaymentHash(t *testing.T) {
	ctx := context.Background()
	w := wallet.NewMock(100)
	b := NewBroker(w)
	paid := &tool.PaidSpec{Price: 10, Currency: "SOL", Recipient: "R"}

	hash, err := w.Send(ctx, "R", 10, "")
	require.NoError(t, err)

	err = b.Guard(ctx, "perform_premium_analysis", paid, map[string]any{"payment_hash": hash})
	assert.NoError(t, err)
}

func TestGuardRejectsBadHash(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(wallet.NewMock(100))
	paid := &tool.PaidSpec{Price: 10, Currency: "SOL", Recipient: "R"}

	err := b.Guard(ctx, "perform_premium_analysis", paid, map[string]any{"payment_hash": "garbage"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPaymentRequired))
}

func TestWrapPaidSkipsUnpaidTools(t *testing.T) {
	b := NewBroker(wallet.NewMock(100))
	plain := tool.NewFunc(tool.Descriptor{Name: "free_tool", Source: tool.SourceBuiltin},
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		})

	wrapped := b.WrapPaid(plain)
	assert.Same(t, plain, wrapped)
}

func TestWrapPaidGuardsPaidTools(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(wallet.NewMock(100))
	paid := tool.NewFunc(tool.Descriptor{
		Name:   "perform_premium_analysis",
		Source: tool.SourceBuiltin,
		Paid:   &tool.PaidSpec{Price: 10, Currency: "SOL", Recipient: "R"},
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"report": "done"}, nil
	})

	wrapped := b.WrapPaid(paid)
	_, err := wrapped.Call(ctx, map[string]any{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPaymentRequired))
}

func TestBuiltinToolsSendAndCheckBalance(t *testing.T) {
	ctx := context.Background()
	w := wallet.NewMock(50)
	b := NewBroker(w)
	tools := b.BuiltinTools()
	require.Len(t, tools, 2)

	var checkBalance, sendPayment tool.Tool
	for _, tl := range tools {
		switch tl.Descriptor().Name {
		case "check_balance":
			checkBalance = tl
		case "send_payment":
			sendPayment = tl
		}
	}
	require.NotNil(t, checkBalance)
	require.NotNil(t, sendPayment)

	out, err := checkBalance.Call(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 50.0, out["balance"])

	out, err = sendPayment.Call(ctx, map[string]any{"recipient": "R", "amount": 5.0})
	require.NoError(t, err)
	assert.NotEmpty(t, out["payment_hash"])
}
