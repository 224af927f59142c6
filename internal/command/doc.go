// Package command runs shell commands and interpreter scripts as
// subprocesses.
//
// Every entry point returns a *Result and never an error: rejections,
// spawn failures and timeouts are all encoded in the result. A zero
// ReturnCode means success, -1 is reserved for timeouts, and any other
// nonzero code is either the process exit status or, when ErrorMessage is
// set, a rejection or internal failure.
//
// # Filtering
//
// IsCommandAllowed applies a syntactic blacklist: the first word must not
// be an excluded command and the raw line must not contain shell control
// characters (;, |, &, backticks, $(, redirections). It over-rejects
// quoted uses of those characters and cannot stop an allowed binary from
// doing harm; it is a safety net, not a sandbox.
//
// # Execution
//
// Commands are tokenized with go-shellwords and run directly, without a
// shell, in their own process group. On timeout the whole group is killed.
// Scripts are fed to an interpreter through a ScriptStrategy chosen by the
// interpreter's base name; fish reads its script from a base64 pipeline,
// every other interpreter from stdin. ExecuteScriptFromFile writes the
// script to a temporary file with the language's extension instead.
//
//	exec := command.NewExecutor(gate)
//	res := exec.ExecuteCommand(ctx, "git status", command.Options{Cwd: "/srv/project"})
//	if !res.IsSuccess() {
//		fmt.Println(res.Format())
//	}
package command
