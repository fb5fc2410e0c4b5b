package storage

import "errors"

var (
	// ErrNotFound is returned by adapters when a requested resource
	// does not exist, mirroring the teacher's storage.ErrNotFound.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists is returned on a Create that collides with an
	// existing unique key.
	ErrAlreadyExists = errors.New("storage: already exists")

	// ErrConflict is returned by conditional updates (e.g. refresh
	// token rotation CAS) when the predicate no longer matches any row.
	ErrConflict = errors.New("storage: conflicting update")
)
