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
	"fmt"
	"os"

	"github.com/teeppp/adaptive-agent-runtime/internal/logx"
)

const logFileEnvVar = "AAR_LOG_FILE"
const logLevelEnvVar = "AAR_LOG_LEVEL"

// initLogger installs the process-wide logger, priority CLI flag > env var
// > default. Returns a cleanup func to close an opened log file.
func initLogger(cliLevel, cliFile string) (func(), error) {
	level := cliLevel
	if level == "" {
		level = os.Getenv(logLevelEnvVar)
	}
	if level == "" {
		level = "info"
	}

	file := cliFile
	if file == "" {
		file = os.Getenv(logFileEnvVar)
	}

	var output *os.File
	var cleanup func()
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", file, err)
		}
		output = f
		cleanup = func() { _ = f.Close() }
	} else {
		output = os.Stderr
	}

	logx.Init(logx.ParseLevel(level), output)
	return cleanup, nil
}
