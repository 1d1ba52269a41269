package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultTokenTTL is how long a decision token stays valid.
const DefaultTokenTTL = 72 * time.Hour

// Config holds signing configuration.
type Config struct {
	// Secret is the HMAC signing key (must be at least 32 bytes).
	Secret []byte

	// Issuer is set on issued tokens and required on parsed ones when non-empty.
	Issuer string

	// TTL defaults to DefaultTokenTTL.
	TTL time.Duration

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

func (c Config) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultTokenTTL
	}
	return c.TTL
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// DecisionClaims authorize one reviewer to decide on one ticket's plan.
// The reviewer is the token subject.
type DecisionClaims struct {
	jwt.RegisteredClaims
	TicketID string `json:"tid"`
}

// Reviewer returns the reviewer the token was issued to.
func (c *DecisionClaims) Reviewer() string {
	return c.Subject
}

// Authorize checks that the token was issued for ticketID.
func (c *DecisionClaims) Authorize(ticketID string) error {
	if c.TicketID != ticketID {
		return fmt.Errorf("%w: issued for %s", ErrWrongTicket, c.TicketID)
	}
	return nil
}

// IssueDecisionToken signs a token for reviewerID to decide on ticketID.
func IssueDecisionToken(cfg Config, ticketID, reviewerID string) (string, error) {
	if len(cfg.Secret) < 32 {
		return "", ErrSecretTooShort
	}
	if ticketID == "" || reviewerID == "" {
		return "", ErrMissingClaims
	}

	tokenID, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}

	now := cfg.now()
	claims := DecisionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   reviewerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.ttl())),
			ID:        tokenID,
		},
		TicketID: ticketID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ParseDecisionToken verifies the signature, expiry, and issuer of a token
// and returns its claims.
func ParseDecisionToken(cfg Config, tokenString string) (*DecisionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &DecisionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.TicketID == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}
