// Package permission decides which filesystem paths tools may touch and
// which operations on them have been approved.
package permission

import (
	"errors"
	"fmt"
)

// Operation names used by tools when asking the gate.
const (
	OpRead    = "read"
	OpWrite   = "write"
	OpEdit    = "edit"
	OpExecute = "execute"
)

// DenyReason says why a path or operation was refused.
type DenyReason string

const (
	ReasonOutsideAllowed DenyReason = "outside_allowed"
	ReasonExcluded       DenyReason = "excluded"
	ReasonNotApproved    DenyReason = "not_approved"
	ReasonUnresolvable   DenyReason = "unresolvable"
)

// DeniedError is returned by Authorize and the shell path checks.
type DeniedError struct {
	Path      string
	Operation string
	Reason    DenyReason
}

func (e *DeniedError) Error() string {
	switch e.Reason {
	case ReasonExcluded:
		return fmt.Sprintf("access denied: %s matches an excluded path or pattern", e.Path)
	case ReasonNotApproved:
		return fmt.Sprintf("operation %q on %s has not been approved", e.Operation, e.Path)
	case ReasonUnresolvable:
		return fmt.Sprintf("access denied: cannot resolve path %q", e.Path)
	default:
		return fmt.Sprintf("access denied: %s is outside the allowed directories", e.Path)
	}
}

// IsDenied reports whether err is (or wraps) a DeniedError.
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}
