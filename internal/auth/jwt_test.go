package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", 15*time.Minute)
	require.NoError(t, err)
	return ts
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		ttl     time.Duration
		wantErr bool
	}{
		{"valid", "this-is-16-chars", time.Minute, false},
		{"short secret", "short", time.Minute, true},
		{"zero ttl", "this-is-16-chars", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenService(tt.secret, tt.ttl)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerate_ValidateRoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("subject-123")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	got, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "subject-123", got)
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, err := NewTokenService("another-secret-of-sufficient-length", time.Minute)
	require.NoError(t, err)

	expired, err := ts.GenerateWithDuration("u", -time.Second)
	require.NoError(t, err)
	good, err := ts.Generate("u")
	require.NoError(t, err)
	foreign, err := other.Generate("u")
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(ts.secret)
	require.NoError(t, err)

	noSubject, err := ts.GenerateWithDuration("", time.Hour)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt.token",
		"expired":      expired,
		"tampered":     good[:len(good)-3] + "xxx",
		"other secret": foreign,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Validate(token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateWithDuration_RememberMe(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("u", 30*24*time.Hour)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &claims{})
	require.NoError(t, err)
	exp, err := parsed.Claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), exp.Time, time.Minute)
}
