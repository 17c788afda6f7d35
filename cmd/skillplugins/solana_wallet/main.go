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

// Command solana_wallet is the native plugin binary backing the
// solana_wallet skill bundle's solana_balance/solana_transfer tools.
// Build it and copy the resulting binary to skills/solana_wallet/plugin.
//
// This is a demonstration stub: balances are tracked in an in-memory
// ledger rather than fetched from a real Solana RPC endpoint, the same
// local-ledger scope internal/wallet.Keyed documents for its own
// "no blockchain-broadcast client exists" limitation.
package main

import (
	"fmt"
	"sync"

	"github.com/teeppp/adaptive-agent-runtime/internal/skills"
)

type impl struct {
	mu       sync.Mutex
	lamports map[string]int64
}

func (p *impl) Call(toolName string, args map[string]any) (map[string]any, error) {
	switch toolName {
	case "solana_balance":
		address, _ := args["address"].(string)
		if address == "" {
			return nil, fmt.Errorf("solana_balance: address is required")
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		return map[string]any{"address": address, "lamports": p.balanceLocked(address)}, nil

	case "solana_transfer":
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		amount, ok := toFloat(args["lamports"])
		if from == "" || to == "" || !ok || amount <= 0 {
			return nil, fmt.Errorf("solana_transfer: from, to, and a positive lamports amount are required")
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		lamports := int64(amount)
		if p.balanceLocked(from) < lamports {
			return nil, fmt.Errorf("solana_transfer: insufficient balance")
		}
		p.lamports[from] -= lamports
		p.lamports[to] += lamports
		return map[string]any{
			"signature": fmt.Sprintf("SimTx_%s_%s_%d", from, to, lamports),
			"lamports":  lamports,
		}, nil

	default:
		return nil, fmt.Errorf("solana_wallet plugin: unknown tool %q", toolName)
	}
}

// balanceLocked seeds an address with a demo starting balance on first
// sight, mirroring internal/wallet.Mock's fixed-starting-balance stance.
func (p *impl) balanceLocked(address string) int64 {
	if _, ok := p.lamports[address]; !ok {
		p.lamports[address] = 1_000_000_000
	}
	return p.lamports[address]
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func main() {
	skills.ServeToolPlugin(&impl{lamports: make(map[string]int64)})
}
