package textmate

import (
	"errors"
	"fmt"
)

// Sentinel errors for the registration surface.  Callers match them with
// errors.Is; the wrapped message carries the offending value.
var (
	// ErrInvalidArgument marks malformed call parameters: an empty host-scope
	// list, a non-scope string in it, a theme without a name.  Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateBinding marks an attempt to bind a language id that is
	// already bound.  Rebinding is always rejected, even to the same scope;
	// there is no unbind, so an overwrite can never be silent.
	ErrDuplicateBinding = errors.New("duplicate language binding")
)

// UnknownScopeError reports a grammar request for a scope that has no
// registered source.  When the scope was reached as a dependency of another
// grammar, DependentScope names the grammar that asked for it.
type UnknownScopeError struct {
	Scope          string
	DependentScope string
}

func (e *UnknownScopeError) Error() string {
	if e.DependentScope != "" {
		return fmt.Sprintf("unknown scope %q (required by %q)", e.Scope, e.DependentScope)
	}
	return fmt.Sprintf("unknown scope %q", e.Scope)
}

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
