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

package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesRegisteredSeries(t *testing.T) {
	m := NewMetrics()
	m.RecordEvent("model_text")
	m.ObserveTurnDuration(120 * time.Millisecond)
	m.RecordToolCall("ask_question", 5*time.Millisecond, "")
	m.RecordToolCall("pay_invoice", 10*time.Millisecond, "PaymentRequired")
	m.RecordHTTPRequest("/run", "200", 30*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNilMetricsHandlerReturnsServiceUnavailable(t *testing.T) {
	var m *Metrics
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Recording on a nil Metrics must not panic.
	m.RecordEvent("final")
	m.ObserveTurnDuration(time.Second)
	m.RecordToolCall("x", time.Millisecond, "")
	m.RecordHTTPRequest("/health", "200", time.Millisecond)
}
