// Package adaptiveagentruntime is a payment-aware, tool-governed agent
// runtime: one Adaptive Agent Core per session, driving an LLM through a
// governed tool-call loop with Mode-Manager-triggered context resets, an
// MCP client, an A2A peer client, and a Skill Registry of declarative
// bundles.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/teeppp/adaptive-agent-runtime/cmd/aar@latest
//
// Start the HTTP Surface:
//
//	aar serve --config config.yaml
//
// Inspect a session directly against the configured store:
//
//	aar session show --app myapp --user alice --id s1
//
// # Architecture
//
// Every package a deployment wires lives under internal/: agentcore (the
// turn loop), enforcer (the Tool Governance Layer), modemanager (context
// reset and tool-set switching), payment (the Payment Broker), wallet,
// mcptoolset, a2aclient, skills (the Skill Registry), session/sessionstore,
// httpapi (the HTTP Surface), and obs (tracing/metrics). cmd/aar assembles
// them into the aar binary.
//
// # License
//
// AGPL-3.0 - See LICENSE.md for details.
package adaptiveagentruntime
