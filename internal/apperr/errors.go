// Package apperr defines the error taxonomy shared by the store, transports and editor.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrInvariant reports a rejected self-connection, duplicate connection,
	// missing endpoint or otherwise invalid mutation.
	ErrInvariant = errors.New("invariant violation")

	// ErrNotYetPersisted is returned when an entity is still waiting for its
	// store-assigned id.
	ErrNotYetPersisted = errors.New("not yet persisted")
)
