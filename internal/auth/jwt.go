// Package auth verifies who a request comes from.
//
// SIGN-IN FLOW:
//  1. The browser posts email and password to /auth/login, or goes through
//     /auth/google/login and comes back on /auth/google/callback.
//  2. The service layer checks the credential against the stored identity.
//  3. A JWT naming the identity's subject id is set in the HttpOnly
//     "session" cookie. "Remember me" decides whether the cookie outlives
//     the browser session.
//  4. On later requests RequireAuth or OptionalAuth validates the token and
//     puts the subject id in the request context.
//
// WHAT THE TOKEN DOES NOT CARRY:
// The role. The subject id is also the profile id, and the role is read from
// the live profile on every gated request. An admin changing someone's role
// takes effect on that person's next request, not when their token expires.
//
// TOKEN FORMAT:
// HS256, issuer "smartwork", "sub" set to the subject id, "iat" and "exp"
// always present. Tokens without an expiry are refused.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "smartwork"

// TokenService signs and verifies session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService rejects secrets shorter than 16 characters. ttl is the
// lifetime Generate uses.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the token payload. Only the registered claims are used; "sub"
// holds the subject id.
type claims struct {
	jwt.RegisteredClaims
}

// Generate issues a token for subjectID with the default lifetime.
func (s *TokenService) Generate(subjectID string) (string, error) {
	return s.GenerateWithDuration(subjectID, s.ttl)
}

// GenerateWithDuration issues a token that expires after d. "Remember me"
// sign-ins use a longer d.
func (s *TokenService) GenerateWithDuration(subjectID string, d time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate returns the subject id of a well-formed, unexpired token signed
// with this service's secret.
//
// The signing method is pinned to HS256 twice: the key func refuses any
// non-HMAC method, and WithValidMethods refuses the other HMAC sizes. A token
// that names "none" or an RSA algorithm never reaches the signature check.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
