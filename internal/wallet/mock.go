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
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Mock is a deterministic, in-memory Adapter for demos and tests: every
// Send debits a starting balance and mints a "MockTx_<uuid>" signature;
// Verify accepts any hash with that prefix (mock address, mock balance,
// prefix-only verification).
type Mock struct {
	mu      sync.Mutex
	address string
	balance float64
}

const mockAddress = "MockAddr1111111111111111111111111111111111"

// NewMock creates a Mock wallet seeded with startingBalance.
func NewMock(startingBalance float64) *Mock {
	return &Mock{address: mockAddress, balance: startingBalance}
}

func (m *Mock) Address(ctx context.Context) (string, error) {
	return m.address, nil
}

func (m *Mock) Balance(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

func (m *Mock) Send(ctx context.Context, recipient string, amount float64, memo string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount > m.balance {
		return "", fmt.Errorf("mock wallet: insufficient balance: have %.4f, need %.4f", m.balance, amount)
	}
	m.balance -= amount
	return fmt.Sprintf("MockTx_%s", uuid.NewString()), nil
}

func (m *Mock) Verify(ctx context.Context, txHash, recipient string, amount float64) (bool, error) {
	return strings.HasPrefix(txHash, "MockTx_"), nil
}

var _ Adapter = (*Mock)(nil)
