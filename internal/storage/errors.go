package storage

import dErrors "canon/pkg/domainerrors"

var (
	// ErrNotFound keeps storage-specific 404s consistent across in-memory and
	// postgres implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")
)
