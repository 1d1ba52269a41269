package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("this-is-a-test-secret-key-32-bytes!")

func TestIssueDecisionToken(t *testing.T) {
	cfg := Config{Secret: testSecret, Issuer: "ticketflow"}

	t.Run("round trip", func(t *testing.T) {
		token, err := IssueDecisionToken(cfg, "TK-421", "ana")
		if err != nil {
			t.Fatalf("IssueDecisionToken() error = %v", err)
		}

		claims, err := ParseDecisionToken(cfg, token)
		if err != nil {
			t.Fatalf("ParseDecisionToken() error = %v", err)
		}
		if claims.Reviewer() != "ana" {
			t.Errorf("Reviewer() = %q, want ana", claims.Reviewer())
		}
		if claims.TicketID != "TK-421" {
			t.Errorf("TicketID = %q, want TK-421", claims.TicketID)
		}
		if claims.ID == "" {
			t.Error("token ID is empty")
		}
		if err := claims.Authorize("TK-421"); err != nil {
			t.Errorf("Authorize() error = %v", err)
		}
		if err := claims.Authorize("TK-422"); !errors.Is(err, ErrWrongTicket) {
			t.Errorf("Authorize(other) error = %v, want ErrWrongTicket", err)
		}
	})

	t.Run("secret too short", func(t *testing.T) {
		_, err := IssueDecisionToken(Config{Secret: []byte("short")}, "TK-1", "ana")
		if !errors.Is(err, ErrSecretTooShort) {
			t.Errorf("error = %v, want ErrSecretTooShort", err)
		}
	})

	t.Run("missing reviewer", func(t *testing.T) {
		_, err := IssueDecisionToken(cfg, "TK-1", "")
		if !errors.Is(err, ErrMissingClaims) {
			t.Errorf("error = %v, want ErrMissingClaims", err)
		}
	})
}

func TestParseDecisionToken_Rejects(t *testing.T) {
	cfg := Config{Secret: testSecret, Issuer: "ticketflow"}
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old := cfg
	old.TTL = time.Hour
	old.Now = func() time.Time { return issued }
	expired, err := IssueDecisionToken(old, "TK-1", "ana")
	if err != nil {
		t.Fatal(err)
	}

	otherIssuer, err := IssueDecisionToken(Config{Secret: testSecret, Issuer: "someone-else"}, "TK-1", "ana")
	if err != nil {
		t.Fatal(err)
	}

	otherSecret, err := IssueDecisionToken(Config{Secret: []byte("another-secret-that-is-32-bytes-long"), Issuer: "ticketflow"}, "TK-1", "ana")
	if err != nil {
		t.Fatal(err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, DecisionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ana", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		TicketID:         "TK-1",
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrTokenExpired},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"wrong secret", otherSecret, ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDecisionToken(cfg, tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseDecisionToken_UsesClock(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Secret: testSecret, TTL: time.Hour, Now: func() time.Time { return issued }}

	token, err := IssueDecisionToken(cfg, "TK-1", "ana")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Now = func() time.Time { return issued.Add(30 * time.Minute) }
	if _, err := ParseDecisionToken(cfg, token); err != nil {
		t.Errorf("within TTL: error = %v", err)
	}
	cfg.Now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := ParseDecisionToken(cfg, token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("past TTL: error = %v, want ErrTokenExpired", err)
	}
}
