package permission

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludedPatterns are denied inside every allowed directory.
var DefaultExcludedPatterns = []string{
	".git",
	".env",
	"*.key",
	"*.pem",
	"*.crt",
	"*secret*",
	"*password*",
	"*credential*",
	".ssh",
	"id_rsa",
	"id_ed25519",
	".aws",
	".gnupg",
	"node_modules",
	"__pycache__",
	".venv",
	"venv",
}

// matchesAnySegment applies one exclusion pattern to the segments of a
// canonical path. A leading "*" with a literal remainder is a suffix match,
// a pattern with other glob metacharacters is a glob, anything else must
// equal a whole segment.
func matchesAnySegment(pattern string, segments []string) bool {
	suffix, isSuffix := strings.CutPrefix(pattern, "*")
	isSuffix = isSuffix && !hasMeta(suffix)
	isGlob := !isSuffix && hasMeta(pattern)

	for _, seg := range segments {
		if seg == "" {
			continue
		}
		switch {
		case isSuffix:
			if strings.HasSuffix(seg, suffix) {
				return true
			}
		case isGlob:
			if ok, err := doublestar.Match(pattern, seg); err == nil && ok {
				return true
			}
		default:
			if seg == pattern {
				return true
			}
		}
	}
	return false
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
