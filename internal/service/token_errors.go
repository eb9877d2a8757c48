package service

import (
	"errors"

	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/token"
)

// tokenError translates a codec failure into its API error.
func tokenError(err error) error {
	var missing *token.ClaimMissingError
	switch {
	case errors.As(err, &missing):
		return appErrors.Clonef(appErrors.ErrTokenClaimMissing, "token is missing required claim %q", missing.Claim)
	case errors.Is(err, token.ErrExpired):
		return appErrors.Clone(appErrors.ErrTokenExpired, "")
	case errors.Is(err, token.ErrNotYetValid):
		return appErrors.Clone(appErrors.ErrTokenNotYetValid, "")
	case errors.Is(err, token.ErrAlgorithm):
		return appErrors.Clone(appErrors.ErrTokenAlgorithm, "")
	case errors.Is(err, token.ErrSignature):
		return appErrors.Clone(appErrors.ErrTokenSignature, "")
	case errors.Is(err, token.ErrIssuer):
		return appErrors.Clone(appErrors.ErrTokenIssuer, "")
	case errors.Is(err, token.ErrFormat):
		return appErrors.Clone(appErrors.ErrTokenMalformed, "")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify token")
	}
}
