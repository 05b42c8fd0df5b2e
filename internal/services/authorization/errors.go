package authorization

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthenticated covers every no-session case: missing, unknown, expired,
// or inactive. The message is deliberately generic; callers must not leak
// which of those it was.
var ErrUnauthenticated = errors.New("authentication required")

// ForbiddenError is returned when a valid session lacks the required
// permission. Missing and Have exist for operator-facing logs; the Error
// string stays generic so nothing about the catalog can be enumerated by a
// caller.
type ForbiddenError struct {
	Missing string   // The required permission the principal does not hold
	Have    []string // The principal's resolved set, sorted
}

func (e *ForbiddenError) Error() string {
	return "insufficient permission"
}

// Detail returns the full denial context for logging.
func (e *ForbiddenError) Detail() string {
	return fmt.Sprintf("missing=%s have=[%s]", e.Missing, strings.Join(e.Have, " "))
}

// IsForbidden reports whether err is a ForbiddenError.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}
