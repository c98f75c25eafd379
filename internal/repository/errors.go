// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without looking at driver errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation it
// holds no role for. Handlers should translate this into an HTTP 403
// response without saying which role was missing.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a login that is already taken. Handlers
// should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// Lookup misses.  Each maps to HTTP 404.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrGroupNotFound   = errors.New("group not found")
	ErrZoneNotFound    = errors.New("zone not found")
	ErrSeatNotFound    = errors.New("seat not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrBlobNotFound    = errors.New("blob not found")
)

// ErrLoginExists is returned when creating a person or group whose login
// is already used by any principal.
var ErrLoginExists = errors.New("login already exists")
