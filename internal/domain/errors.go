package domain

import "errors"

// Shared authorization errors surfaced by the service layer.
var (
	// ErrForbidden indicates the caller's role does not permit the operation.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrNotMember indicates the caller has no active membership in the team.
	ErrNotMember = errors.New("not an active team member")
)
