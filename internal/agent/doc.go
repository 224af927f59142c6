// Package agent runs sub-agents: LLM conversations that work on a
// delegated task with a restricted tool set.
//
// # Profiles
//
// A [Profile] decides which tools a sub-agent sees. Its Tools map accepts
// exact names and wildcard patterns:
//
//	profile.Tools = map[string]bool{
//	    "*":           true,  // every tool
//	    "run_*":       false, // but nothing that executes
//	    "run_command": true,  // except plain commands
//	}
//
// Exact entries win, then the longest matching pattern. dispatch_agent is
// never enabled, whatever the map says.
//
// # Orchestration
//
// [Orchestrator.Call] runs one agent per prompt. Each agent loops: call
// the model, execute the requested tools one after another, feed the
// results back. It stops when the model answers without tool calls, or
// when MaxIterations or MaxToolUses is reached, after which one more call
// asks for a final answer.
//
// Several prompts run concurrently. Results keep the input order and are
// labelled "Agent N Result:" or "Agent N Error:"; one agent failing does
// not affect the others.
package agent
