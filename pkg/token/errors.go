package token

import (
	"errors"
	"fmt"
)

// Decode failures, one per validation stage. ErrExpired is the only one a
// client can recover from without re-authenticating.
var (
	ErrFormat       = errors.New("token: malformed")
	ErrAlgorithm    = errors.New("token: algorithm not accepted")
	ErrSignature    = errors.New("token: invalid signature")
	ErrIssuer       = errors.New("token: issuer mismatch")
	ErrExpired      = errors.New("token: expired")
	ErrNotYetValid  = errors.New("token: not valid yet")
	ErrClaimMissing = errors.New("token: required claim missing")
)

// ClaimMissingError names the required claim that was absent or blank.
type ClaimMissingError struct {
	Claim string
}

func (e *ClaimMissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrClaimMissing.Error(), e.Claim)
}

func (e *ClaimMissingError) Unwrap() error { return ErrClaimMissing }
