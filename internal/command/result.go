package command

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxOutputLength caps each stream in formatted output.
const MaxOutputLength = 30000

// TimeoutReturnCode marks a process killed because it ran too long.
const TimeoutReturnCode = -1

// Result is the outcome of one execution.
type Result struct {
	ReturnCode   int    `json:"return_code"`
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	ErrorMessage string `json:"error_message,omitempty"`

	rejected bool
}

// IsSuccess reports whether the return code is zero.
func (r *Result) IsSuccess() bool {
	return r.ReturnCode == 0
}

// Rejected reports whether the request was refused before anything was
// spawned.
func (r *Result) Rejected() bool {
	return r.rejected
}

// TimedOut reports whether the process was killed by the timeout.
func (r *Result) TimedOut() bool {
	return r.ReturnCode == TimeoutReturnCode
}

// Format renders the result for a tool response. Failures start with
// "Error:".
func (r *Result) Format() string {
	var sb strings.Builder
	if r.IsSuccess() {
		sb.WriteString(truncate(r.Stdout))
		if r.Stderr != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("STDERR:\n")
			sb.WriteString(truncate(r.Stderr))
		}
		if sb.Len() == 0 {
			return "Command executed successfully (no output)"
		}
		return sb.String()
	}

	if r.ErrorMessage != "" {
		sb.WriteString("Error: " + r.ErrorMessage)
	} else {
		fmt.Fprintf(&sb, "Error: command exited with code %d", r.ReturnCode)
	}
	if r.Stdout != "" {
		sb.WriteString("\n\nSTDOUT:\n")
		sb.WriteString(truncate(r.Stdout))
	}
	if r.Stderr != "" {
		sb.WriteString("\n\nSTDERR:\n")
		sb.WriteString(truncate(r.Stderr))
	}
	return sb.String()
}

func rejected(format string, args ...any) *Result {
	return &Result{ReturnCode: 1, ErrorMessage: fmt.Sprintf(format, args...), rejected: true}
}

// decode converts process output to text, replacing invalid UTF-8.
func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

func truncate(s string) string {
	if len(s) <= MaxOutputLength {
		return s
	}
	return strings.ToValidUTF8(s[:MaxOutputLength], "") + "\n\n(Output truncated)"
}
