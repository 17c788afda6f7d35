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

// Package payment implements the Payment Broker: turning a
// PaymentRequired condition into a structured, model-facing ToolResult
// error instead of auto-paying, and verifying a retried call's
// payment_hash through the Wallet Adapter. A PaymentRequired error
// formats price/address/reason/currency as a structured observation for
// the model; the broker itself never auto-pays.
package payment

import (
	"context"
	"fmt"

	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
	"github.com/teeppp/adaptive-agent-runtime/internal/wallet"
)

// Decision is the structured body of a PaymentRequired ToolResult.error:
// price, currency, recipient, and the retry instructions the model needs
// to settle and retry the call.
type Decision struct {
	Reason            string  `json:"reason"`
	Price             float64 `json:"price"`
	Currency          string  `json:"currency"`
	Recipient         string  `json:"recipient"`
	PaymentTool       string  `json:"payment_tool"`
	RetryInstructions string  `json:"retry_instructions"`
}

// Broker mediates payment-gated tool calls: it never pays on the model's
// behalf, only verifies payment_hash values the model
// supplies after calling a payment tool itself.
type Broker struct {
	w wallet.Adapter
}

func NewBroker(w wallet.Adapter) *Broker {
	return &Broker{w: w}
}

// Required builds the PaymentRequired decision envelope for toolName's
// paid spec, to be carried as the ToolResult.error body.
func (b *Broker) Required(toolName string, paid *tool.PaidSpec, reason string) *Decision {
	if reason == "" {
		reason = "payment required"
	}
	return &Decision{
		Reason:      reason,
		Price:       paid.Price,
		Currency:    paid.Currency,
		Recipient:   paid.Recipient,
		PaymentTool: "send_payment",
		RetryInstructions: fmt.Sprintf(
			"Call send_payment(recipient=%q, amount=%v) to obtain a payment_hash, then retry %s with that payment_hash.",
			paid.Recipient, paid.Price, toolName),
	}
}

// Guard runs before a paid tool's underlying implementation. If args lack
// payment_hash, it returns a
// PaymentRequired error. If payment_hash is present, it verifies it
// against (recipient, amount>=price); on failure, it returns another
// PaymentRequired with reason "verification failed" —
// never proceeding on an unverified hash.
func (b *Broker) Guard(ctx context.Context, toolName string, paid *tool.PaidSpec, args map[string]any) error {
	hash, _ := args["payment_hash"].(string)
	if hash == "" {
		d := b.Required(toolName, paid, "payment required")
		return errs.Wrap(errs.KindPaymentRequired, fmt.Sprintf("%s requires payment: %+v", toolName, d), nil)
	}

	ok, err := b.w.Verify(ctx, hash, paid.Recipient, paid.Price)
	if err != nil {
		return errs.Wrap(errs.KindPaymentRequired, "payment verification failed", err)
	}
	if !ok {
		d := b.Required(toolName, paid, "verification failed")
		return errs.Wrap(errs.KindPaymentRequired, fmt.Sprintf("%s: verification failed: %+v", toolName, d), nil)
	}
	return nil
}

// WrapPaid wraps t so every Call first runs Guard when t's descriptor
// carries a PaidSpec, matching the payment-annotated tool wrapper.
func (b *Broker) WrapPaid(t tool.Tool) tool.Tool {
	d := t.Descriptor()
	if d.Paid == nil {
		return t
	}
	return &paidTool{inner: t, broker: b, paid: d.Paid}
}

type paidTool struct {
	inner  tool.Tool
	broker *Broker
	paid   *tool.PaidSpec
}

func (p *paidTool) Descriptor() tool.Descriptor { return p.inner.Descriptor() }

func (p *paidTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	d := p.inner.Descriptor()
	if err := p.broker.Guard(ctx, d.Name, p.paid, args); err != nil {
		return nil, err
	}
	return p.inner.Call(ctx, args)
}

var _ tool.Tool = (*paidTool)(nil)
