package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGoogle serves a token endpoint and a userinfo endpoint.
func fakeGoogle(t *testing.T, user any, userStatus int) (*httptest.Server, *GoogleProvider) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.WriteHeader(userStatus)
		_ = json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := newGoogleProvider("cid", "secret", "http://localhost/cb",
		oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		srv.URL+"/userinfo")
	return srv, p
}

func TestNewGoogleProvider_DisabledWithoutClientID(t *testing.T) {
	assert.Nil(t, NewGoogleProvider("", "s", "cb"))
	assert.NotNil(t, NewGoogleProvider("id", "s", "cb"))
}

func TestGoogleProvider_AuthURLCarriesState(t *testing.T) {
	_, p := fakeGoogle(t, nil, http.StatusOK)

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "cid", u.Query().Get("client_id"))
}

func TestGoogleProvider_Exchange(t *testing.T) {
	_, p := fakeGoogle(t, GoogleUser{ID: "g-1", Email: "ira@example.com", VerifiedEmail: true, Name: "Ira"}, http.StatusOK)

	u, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "g-1", u.ID)
	assert.True(t, u.VerifiedEmail)
}

func TestGoogleProvider_ExchangeFailures(t *testing.T) {
	t.Run("bad code", func(t *testing.T) {
		_, p := fakeGoogle(t, GoogleUser{ID: "g-1"}, http.StatusOK)
		_, err := p.Exchange(context.Background(), "bad-code")
		assert.Error(t, err)
	})
	t.Run("userinfo error", func(t *testing.T) {
		_, p := fakeGoogle(t, map[string]string{}, http.StatusInternalServerError)
		_, err := p.Exchange(context.Background(), "good-code")
		assert.Error(t, err)
	})
	t.Run("missing id", func(t *testing.T) {
		_, p := fakeGoogle(t, GoogleUser{Email: "x@example.com"}, http.StatusOK)
		_, err := p.Exchange(context.Background(), "good-code")
		assert.Error(t, err)
	})
}
