package storage

import "errors"

// ErrNotFound is returned when a report does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when creating a report whose ID is taken.
var ErrAlreadyExists = errors.New("already exists")

// ErrNoCriteria is returned by DeleteByIdentity when no identifier is supplied.
// An unconditional delete is never performed.
var ErrNoCriteria = errors.New("at least one identifier is required")
