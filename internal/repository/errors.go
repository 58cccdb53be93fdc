package repository

import "errors"

// Sentinel errors surfaced by the storage layer. Callers branch on these with
// errors.Is; anything else is a transient storage failure.
var (
	ErrDealNotFound      = errors.New("deal not found")
	ErrClaimNotFound     = errors.New("claim not found")
	ErrDuplicateClaim    = errors.New("claim already exists for this user and deal")
	ErrCapacityExhausted = errors.New("deal claim capacity exhausted")
	ErrInvalidTransition = errors.New("claim is not in a transitionable state")
)
