package rbac

import (
	"errors"
	"fmt"
)

// ErrInvalidScope is returned when a Scope carries an unknown kind or a
// scoped kind without an id. Callers constructing scopes through the
// provided constructors never see it.
var ErrInvalidScope = errors.New("rbac: invalid scope")

// ValidationError reports a business-rule violation at write time. The
// write is rejected in full; the engine never silently corrects input.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s (%s): %s", e.Field, e.Rule, e.Message)
}

// ConfigurationError reports an impossible permission definition at
// provisioning time, e.g. pairing a resource with an action it does not
// allow. It is never raised while serving requests.
type ConfigurationError struct {
	Resource string
	Action   string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cannot build permission %s/%s: %s", e.Resource, e.Action, e.Reason)
}
