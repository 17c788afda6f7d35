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

// Package sessionstore provides Session Store durability backends: an
// in-memory implementation for tests, and a SQL-backed one for
// production.
package sessionstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

// Memory is an in-memory session.Service. Append is serialized per session
// via a per-key mutex, matching the "Append is serialized per
// session" requirement.
type Memory struct {
	mu       sync.RWMutex
	sessions map[session.Key]*session.Session
	locks    map[session.Key]*sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[session.Key]*session.Session),
		locks:    make(map[session.Key]*sync.Mutex),
	}
}

func (m *Memory) lockFor(key session.Key) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *Memory) Create(ctx context.Context, key session.Key) (*session.Session, error) {
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}
	s := session.New(key)
	m.sessions[key] = s
	return s, nil
}

func (m *Memory) Append(ctx context.Context, key session.Key, t session.Turn) error {
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("append to %s/%s/%s: %w", key.App, key.User, key.SessionID, session.ErrNotFound)
	}
	s.Append(t)
	return nil
}

func (m *Memory) List(ctx context.Context, app, user string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for k := range m.sessions {
		if k.App == app && k.User == user {
			ids = append(ids, k.SessionID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Get(ctx context.Context, key session.Key) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, fmt.Errorf("get %s/%s/%s: %w", key.App, key.User, key.SessionID, session.ErrNotFound)
	}
	return s, nil
}

func (m *Memory) Delete(ctx context.Context, key session.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[key]; !ok {
		return fmt.Errorf("delete %s/%s/%s: %w", key.App, key.User, key.SessionID, session.ErrNotFound)
	}
	delete(m.sessions, key)
	delete(m.locks, key)
	return nil
}

var _ session.Service = (*Memory)(nil)
