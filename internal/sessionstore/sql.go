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
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teeppp/adaptive-agent-runtime/internal/session"

	// Database drivers, one per supported dialect ("Durability
	// requirement is host-selectable"; teacher wires all three the same way
	// in pkg/memory/session_service_sql.go).
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	app VARCHAR(255) NOT NULL,
	user_id VARCHAR(255) NOT NULL,
	session_id VARCHAR(255) NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (app, user_id, session_id)
);
`
	createTurnsTableSQL = `
CREATE TABLE IF NOT EXISTS session_turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	app VARCHAR(255) NOT NULL,
	user_id VARCHAR(255) NOT NULL,
	session_id VARCHAR(255) NOT NULL,
	seq INTEGER NOT NULL,
	turn_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`
)

// SQL implements session.Service backed by database/sql. The dialect only
// selects the driver: every dialect gets the same DDL (createTurnsTableSQL
// uses SQLite's AUTOINCREMENT) and the same "?" query placeholders.
type SQL struct {
	db      *sql.DB
	dialect string

	mu    sync.Mutex
	locks map[session.Key]*sync.Mutex
}

// NewSQL opens (or reuses) a database/sql connection for the given dialect
// ("sqlite", "postgres", "mysql") and DSN, and ensures the schema exists.
func NewSQL(dialect, dsn string) (*SQL, error) {
	driver := dialect
	if dialect == "sqlite" {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s session store: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s session store: %w", dialect, err)
	}
	if _, err := db.Exec(createSessionsTableSQL); err != nil {
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	if _, err := db.Exec(createTurnsTableSQL); err != nil {
		return nil, fmt.Errorf("create session_turns table: %w", err)
	}
	return &SQL{db: db, dialect: dialect, locks: make(map[session.Key]*sync.Mutex)}, nil
}

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) lockFor(key session.Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *SQL) Create(ctx context.Context, key session.Key) (*session.Session, error) {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (app, user_id, session_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		key.App, key.User, key.SessionID, now, now)
	if err != nil {
		// Already exists: fall through and load it.
		existing, getErr := s.Get(ctx, key)
		if getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session.New(key), nil
}

func (s *SQL) Append(ctx context.Context, key session.Key, t session.Turn) error {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	var seq int
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM session_turns WHERE app=? AND user_id=? AND session_id=?`,
		key.App, key.User, key.SessionID)
	if err := row.Scan(&seq); err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	blob, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO session_turns (app, user_id, session_id, seq, turn_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		key.App, key.User, key.SessionID, seq, string(blob), time.Now()); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at=? WHERE app=? AND user_id=? AND session_id=?`,
		time.Now(), key.App, key.User, key.SessionID)
	return err
}

func (s *SQL) List(ctx context.Context, app, user string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions WHERE app=? AND user_id=?`, app, user)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, rows.Err()
}

func (s *SQL) Get(ctx context.Context, key session.Key) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE app=? AND user_id=? AND session_id=?`,
		key.App, key.User, key.SessionID)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("get session: %w", session.ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_json FROM session_turns WHERE app=? AND user_id=? AND session_id=? ORDER BY seq ASC`,
		key.App, key.User, key.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	sess := session.New(key)
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var t session.Turn
		if err := json.Unmarshal([]byte(blob), &t); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		sess.Append(t)
	}
	return sess, rows.Err()
}

func (s *SQL) Delete(ctx context.Context, key session.Key) error {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE app=? AND user_id=? AND session_id=?`,
		key.App, key.User, key.SessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("delete session: %w", session.ErrNotFound)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_turns WHERE app=? AND user_id=? AND session_id=?`,
		key.App, key.User, key.SessionID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}

var _ session.Service = (*SQL)(nil)
