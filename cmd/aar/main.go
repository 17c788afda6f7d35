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

// Command aar is the CLI for the Adaptive Agent Runtime.
//
// Usage:
//
//	aar serve --config config.yaml
//	aar session list --app myapp --user alice
//	aar session show --app myapp --user alice --id s1
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	aar "github.com/teeppp/adaptive-agent-runtime"
	"github.com/teeppp/adaptive-agent-runtime/internal/errs"
)

// CLI is the kong command tree: global logging flags plus one struct per
// subcommand.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP Surface."`
	Session SessionCmd `cmd:"" help:"Inspect and manage sessions in the configured store."`

	Config   string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	LogLevel string `help:"Log level (debug, info, warn, error)."`
	LogFile  string `help:"Log file path (empty = stderr)."`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(aar.GetVersion().String())
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("aar"),
		kong.Description("Adaptive Agent Runtime: a payment-aware, tool-governed agent core."),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "aar:", err)
		os.Exit(exitCode(errs.New(errs.KindConfig, "logger init failed")))
	}
	if cleanup != nil {
		defer cleanup()
	}

	runErr := ctx.Run(&cli)
	os.Exit(exitCode(runErr))
}

// exitCode maps a run error to the process exit code: 0 success,
// 2 config error, 3 transport error, 4 blocked by the Tool Governance
// Layer after retries.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errs.Is(err, errs.KindConfig):
		return 2
	case errs.Is(err, errs.KindEnforcerBlocked):
		return 4
	default:
		return 3
	}
}
