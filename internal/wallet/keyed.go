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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Keyed is a non-mock Adapter that signs payment authorizations locally
// with a secp256k1 keypair, without submitting anything to a chain: the
// "blockchain SDK" that would broadcast and confirm transactions is
// explicitly out of scope for this runtime, but a real (non-mock)
// signature scheme for payment hashes is still worth offering for
// deployments that want cryptographic, not merely prefix-checked, payment
// proofs. The "balance" Keyed reports is a locally-tracked ledger rather
// than an on-chain query, since there is no chain client to query.
type Keyed struct {
	mu      sync.Mutex
	priv    *secp256k1.PrivateKey
	address string
	balance float64
	sent    map[string]sentRecord
}

type sentRecord struct {
	recipient string
	amount    float64
}

// NewKeyed derives a Keyed wallet from a raw private key and a starting
// balance for the local ledger.
func NewKeyed(privKeyBytes []byte, startingBalance float64) (*Keyed, error) {
	if len(privKeyBytes) != 32 {
		return nil, fmt.Errorf("keyed wallet: private key must be 32 bytes, got %d", len(privKeyBytes))
	}
	priv := secp256k1.PrivKeyFromBytes(privKeyBytes)
	pub := priv.PubKey()
	address := hex.EncodeToString(pub.SerializeCompressed())

	return &Keyed{
		priv:    priv,
		address: address,
		balance: startingBalance,
		sent:    make(map[string]sentRecord),
	}, nil
}

func (k *Keyed) Address(ctx context.Context) (string, error) {
	return k.address, nil
}

func (k *Keyed) Balance(ctx context.Context) (float64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.balance, nil
}

func paymentDigest(address, recipient string, amount float64) [32]byte {
	msg := fmt.Sprintf("%s|%s|%.8f", address, recipient, amount)
	return sha256.Sum256([]byte(msg))
}

func (k *Keyed) Send(ctx context.Context, recipient string, amount float64, memo string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if amount > k.balance {
		return "", fmt.Errorf("keyed wallet: insufficient balance: have %.4f, need %.4f", k.balance, amount)
	}

	digest := paymentDigest(k.address, recipient, amount)
	sig := ecdsa.Sign(k.priv, digest[:])
	sigHex := hex.EncodeToString(sig.Serialize())

	k.balance -= amount
	k.sent[sigHex] = sentRecord{recipient: recipient, amount: amount}
	return sigHex, nil
}

func (k *Keyed) Verify(ctx context.Context, txHash, recipient string, amount float64) (bool, error) {
	sigBytes, err := hex.DecodeString(txHash)
	if err != nil {
		return false, nil
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false, nil
	}

	digest := paymentDigest(k.address, recipient, amount)
	if !sig.Verify(digest[:], k.priv.PubKey()) {
		return false, nil
	}

	k.mu.Lock()
	record, ok := k.sent[txHash]
	k.mu.Unlock()
	if !ok {
		return false, nil
	}
	return record.recipient == recipient && record.amount >= amount, nil
}

var _ Adapter = (*Keyed)(nil)
