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

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/teeppp/adaptive-agent-runtime/internal/session"
)

// handleCreateSession implements POST /apps/{app}/users/{user}/sessions.
// The session id is server-generated using github.com/google/uuid.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	key := session.Key{App: chi.URLParam(r, "app"), User: chi.URLParam(r, "user"), SessionID: uuid.NewString()}
	if _, err := s.sessions.Create(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": key.SessionID})
}

// handleGetSession implements GET /apps/{app}/users/{user}/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	key := session.Key{App: chi.URLParam(r, "app"), User: chi.URLParam(r, "user"), SessionID: chi.URLParam(r, "id")}
	sess, err := s.sessions.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	events := make([]wireEvent, 0)
	for _, t := range sess.Turns() {
		if we, ok := turnToWireEvent(t); ok {
			events = append(events, we)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": key.SessionID, "turns": events})
}

// handleDeleteSession implements DELETE /apps/{app}/users/{user}/sessions/{id}.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	key := session.Key{App: chi.URLParam(r, "app"), User: chi.URLParam(r, "user"), SessionID: chi.URLParam(r, "id")}
	if err := s.sessions.Delete(r.Context(), key); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}
