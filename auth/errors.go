package auth

import "errors"

// Authentication errors.
var (
	// ErrInvalidToken indicates the token is malformed or has an invalid signature.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrSecretTooShort indicates the signing secret is too short.
	ErrSecretTooShort = errors.New("token secret must be at least 32 bytes")

	// ErrWrongTicket indicates a valid token presented for another ticket.
	ErrWrongTicket = errors.New("token is not valid for this ticket")

	// ErrMissingClaims indicates a token without a reviewer or ticket.
	ErrMissingClaims = errors.New("token is missing reviewer or ticket")
)
