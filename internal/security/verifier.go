package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tipstream/internal/config"
)

var ErrUnauthorized = errors.New("unauthorized")

// Verifier checks the Authorization header of a webhook delivery.
type Verifier interface {
	// Verify takes the raw Authorization header value and returns
	// ErrUnauthorized (possibly wrapped) when the caller is rejected.
	Verify(authorization string) error
}

// NewVerifier builds the verifier for the configured auth mode:
//
//	""/"none": open endpoint, no secret configured. Only for private
//	           deployments.
//	"token":   shared-secret bearer token, constant-time compare.
//	"jwt":     the bearer value is an HS256 JWT signed with the same
//	           shared secret.
func NewVerifier(cfg *config.AuthConfig) (Verifier, error) {
	mode := cfg.Mode
	if mode == "" && cfg.Token != "" {
		mode = "token"
	}

	switch mode {
	case "", "none":
		return Open{}, nil
	case "token":
		if cfg.Token == "" {
			return nil, errors.New("auth mode 'token' requires a token")
		}
		return &StaticToken{token: cfg.Token}, nil
	case "jwt":
		if cfg.Token == "" {
			return nil, errors.New("auth mode 'jwt' requires a signing secret")
		}
		return &HS256{secret: []byte(cfg.Token), issuer: cfg.Issuer, audience: cfg.Audience}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// Open accepts everything.
type Open struct{}

func (Open) Verify(string) error { return nil }

// StaticToken expects exactly "Bearer <shared secret>".
type StaticToken struct {
	token string
}

func (s *StaticToken) Verify(authorization string) error {
	raw, ok := bearer(authorization)
	if !ok {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(raw), []byte(s.token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// HS256 expects "Bearer <jwt>" signed with the shared secret.
type HS256 struct {
	secret   []byte
	issuer   string
	audience string
}

func (h *HS256) Verify(authorization string) error {
	raw, ok := bearer(authorization)
	if !ok {
		return ErrUnauthorized
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if h.issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.issuer))
	}
	if h.audience != "" {
		opts = append(opts, jwt.WithAudience(h.audience))
	}

	_, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return h.secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

// Mint signs a short-lived token for development and tests.
func (h *HS256) Mint(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if h.issuer != "" {
		claims.Issuer = h.issuer
	}
	if h.audience != "" {
		claims.Audience = jwt.ClaimStrings{h.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func bearer(authorization string) (string, bool) {
	raw, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
