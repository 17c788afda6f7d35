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

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

// SessionCmd inspects and manages sessions directly against the
// configured store, independent of a running HTTP Surface.
type SessionCmd struct {
	List   SessionListCmd   `cmd:"" help:"List session IDs for an app/user."`
	Show   SessionShowCmd   `cmd:"" help:"Print one session's turn history as JSON."`
	Delete SessionDeleteCmd `cmd:"" help:"Delete one session."`
}

type SessionListCmd struct {
	App  string `required:"" help:"App name."`
	User string `required:"" help:"User ID."`
}

func (c *SessionListCmd) Run(cli *CLI) error {
	store, err := openSessionStore(cli)
	if err != nil {
		return err
	}
	ids, err := store.List(context.Background(), c.App, c.User)
	if err != nil {
		return errs.Wrap(errs.KindConfig, "list sessions", err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

type SessionShowCmd struct {
	App  string `required:"" help:"App name."`
	User string `required:"" help:"User ID."`
	ID   string `required:"" help:"Session ID."`
}

func (c *SessionShowCmd) Run(cli *CLI) error {
	store, err := openSessionStore(cli)
	if err != nil {
		return err
	}
	key := session.Key{App: c.App, User: c.User, SessionID: c.ID}
	sess, err := store.Get(context.Background(), key)
	if err != nil {
		return errs.Wrap(errs.KindConfig, "get session", err)
	}
	out, err := json.MarshalIndent(sess.Turns(), "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindConfig, "marshal session turns", err)
	}
	fmt.Println(string(out))
	return nil
}

type SessionDeleteCmd struct {
	App  string `required:"" help:"App name."`
	User string `required:"" help:"User ID."`
	ID   string `required:"" help:"Session ID."`
}

func (c *SessionDeleteCmd) Run(cli *CLI) error {
	store, err := openSessionStore(cli)
	if err != nil {
		return err
	}
	key := session.Key{App: c.App, User: c.User, SessionID: c.ID}
	if err := store.Delete(context.Background(), key); err != nil {
		return errs.Wrap(errs.KindConfig, "delete session", err)
	}
	fmt.Printf("deleted %s/%s/%s\n", c.App, c.User, c.ID)
	return nil
}

// openSessionStore builds just the session store (dialect/DSN come from
// the environment, same as buildRuntime), skipping the rest of the
// runtime wiring (LLM provider, wallet, tool sources) since these
// subcommands never run a turn.
func openSessionStore(cli *CLI) (session.Service, error) {
	return buildSessionStore()
}
