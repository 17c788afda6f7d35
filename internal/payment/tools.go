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
	"fmt"

	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
	"github.com/teeppp/adaptive-agent-runtime/internal/tooldesc"
)

// checkBalanceArgs is empty: check_balance always reports the configured
// wallet's own balance.
type checkBalanceArgs struct{}

type sendPaymentArgs struct {
	Recipient string  `json:"recipient" jsonschema:"required,description=Recipient wallet address"`
	Amount    float64 `json:"amount" jsonschema:"required,description=Amount to send"`
	Memo      string  `json:"memo,omitempty" jsonschema:"description=Optional payment memo"`
}

// BuiltinTools returns the check_balance and send_payment builtins: the
// exact payment-sending tool the model must call, generalized to the
// capability-typed wallet.Adapter.
func (b *Broker) BuiltinTools() []tool.Tool {
	checkBalanceSchema, _ := tooldesc.GenerateSchema[checkBalanceArgs]()
	sendPaymentSchema, _ := tooldesc.GenerateSchema[sendPaymentArgs]()

	checkBalance := tool.NewFunc(tool.Descriptor{
		Name:        "check_balance",
		Description: "Check the current wallet balance.",
		InputSchema: checkBalanceSchema,
		Source:      tool.SourceBuiltin,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		balance, err := b.w.Balance(ctx)
		if err != nil {
			return nil, fmt.Errorf("check_balance: %w", err)
		}
		address, err := b.w.Address(ctx)
		if err != nil {
			return nil, fmt.Errorf("check_balance: %w", err)
		}
		return map[string]any{"address": address, "balance": balance}, nil
	})

	sendPayment := tool.NewFunc(tool.Descriptor{
		Name:                "send_payment",
		Description:         "Send a payment from the wallet and return a payment_hash to retry a paid tool with.",
		InputSchema:         sendPaymentSchema,
		Source:              tool.SourceBuiltin,
		RequireConfirmation: true,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		a, err := tooldesc.Decode[sendPaymentArgs](args)
		if err != nil {
			return nil, fmt.Errorf("send_payment: %w", err)
		}
		hash, err := b.w.Send(ctx, a.Recipient, a.Amount, a.Memo)
		if err != nil {
			return nil, fmt.Errorf("send_payment: %w", err)
		}
		return map[string]any{"payment_hash": hash}, nil
	})

	return []tool.Tool{checkBalance, sendPayment}
}
