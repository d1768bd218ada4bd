package principal

import "errors"

var (
	// ErrNoCaller is returned when the current context carries no
	// authenticated caller identity.
	ErrNoCaller = errors.New("principal: no caller in context")

	// ErrNotUser is returned when a user principal was required.
	ErrNotUser = errors.New("principal: principal is not a user")

	// ErrNotOrganization is returned when an organization principal was
	// required.
	ErrNotOrganization = errors.New("principal: principal is not an organization")
)
