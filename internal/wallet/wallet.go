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

// Package wallet defines the Wallet Adapter capability the Payment Broker
// verifies payment hashes against: address, balance, send, verify, with
// a mock-mode branch every call takes when no real chain credentials are
// configured.
package wallet

import "context"

// Adapter is the capability surface the runtime needs from any wallet
// backend: address, balance, send, verify. It is deliberately a small
// capability interface rather than a concrete chain SDK, so the Payment
// Broker never depends on which chain is configured.
type Adapter interface {
	// Address returns the wallet's public address.
	Address(ctx context.Context) (string, error)
	// Balance returns the current spendable balance.
	Balance(ctx context.Context) (float64, error)
	// Send transfers amount to recipient, returning a transaction
	// hash/signature the caller can later verify.
	Send(ctx context.Context, recipient string, amount float64, memo string) (txHash string, err error)
	// Verify reports whether txHash is a confirmed transaction paying at
	// least amount to recipient.
	Verify(ctx context.Context, txHash, recipient string, amount float64) (bool, error)
}
