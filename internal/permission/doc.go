// Package permission decides which filesystem paths tools may touch.
//
// # Allow-list and exclusions
//
// A Gate holds a set of allowed directories. A path is allowed when its
// canonical form (absolute, symlinks resolved) equals or lies beneath one of
// them and it is not excluded. Exclusions win over the allow-list:
//
//   - excluded paths deny themselves and their descendants
//   - excluded patterns are matched against every segment of the path;
//     "*.key" is a suffix match, "*secret*" a glob, ".git" an exact segment
//
// DefaultExcludedPatterns (.git, .env, *.key, .ssh, ...) are loaded by New.
//
//	gate := permission.New()
//	_ = gate.AddAllowedPath("/srv/project")
//	gate.IsPathAllowed("/srv/project/main.go")    // true
//	gate.IsPathAllowed("/srv/project/.env")       // false
//	gate.IsPathAllowed("/etc/passwd")             // false
//
// # Approvals
//
// On top of the allow-list, an operation on a path can be approved for a
// limited time (OperationTimeout, 300s by default). An approval is only
// honoured while the path is still allowed. Operations listed with
// RequireApproval are refused by Authorize until approved.
//
//	gate.RequireApproval(permission.OpEdit)
//	gate.Authorize("/srv/project/main.go", permission.OpEdit) // *DeniedError
//	gate.ApproveOperation("/srv/project/main.go", permission.OpEdit)
//	gate.Authorize("/srv/project/main.go", permission.OpEdit) // nil
//
// # Persistence
//
// ToJSON and FromJSON round-trip the gate. Store keeps a snapshot in a
// storage directory; Store.Approve records approvals from another process
// and Store.Watch merges them into a running gate.
//
// # Shell commands
//
// CheckCommandPaths parses a command line with mvdan.cc/sh and checks the
// path operands of file commands (cat, cp, rm, ...) against the gate.
// DoomLoopDetector flags a sub-agent repeating the same tool call.
package permission
