// Package service holds the rules that sit between HTTP handlers and the
// repositories: session validation, zone authorization, booking writes
// and account bootstrap.
package service

import "errors"

var (
	// ErrUnauthenticated covers a missing, expired or revoked session.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrBadCredentials is the only login failure callers ever see.
	ErrBadCredentials = errors.New("wrong username or password")

	ErrBookingConflict = errors.New("booking conflict")
	ErrSeatDisabled    = errors.New("seat is disabled")
	ErrInvalidRange    = errors.New("invalid time range")
	ErrOutsideWindow   = errors.New("outside booking window")
)
