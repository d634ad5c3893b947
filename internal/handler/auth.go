package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/xid"

	"github.com/sakif/smartwork/internal/access"
	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/auth"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/service"
)

const (
	stateCookieName = "oauth_state"
	stateMaxAge     = 10 * time.Minute
)

// oauthState is what the signed state cookie carries across the Google
// round trip.
type oauthState struct {
	State    string
	Remember bool
}

// AuthHandler handles password and Google sign-in, sign-out and the
// signed-in user's own account.
//
//   - HandleLogin          → POST /auth/login
//   - HandleGoogleLogin    → GET  /auth/google/login
//   - HandleGoogleCallback → GET  /auth/google/callback
//   - HandleLogout         → POST /auth/logout
//   - HandlePassword       → POST /auth/password
//   - HandleMe             → GET  /api/me
type AuthHandler struct {
	authn  *service.Authenticator
	google *auth.GoogleProvider
	state  *securecookie.SecureCookie
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil when federated
// sign-in is not configured; stateKey signs the OAuth state cookie.
func NewAuthHandler(authn *service.Authenticator, google *auth.GoogleProvider, stateKey []byte, logger *slog.Logger) *AuthHandler {
	var sc *securecookie.SecureCookie
	if len(stateKey) > 0 {
		sc = securecookie.New(stateKey, nil).MaxAge(int(stateMaxAge.Seconds()))
	}
	return &AuthHandler{authn: authn, google: google, state: sc, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// SignInResponse tells the client who signed in and where to go next.
type SignInResponse struct {
	Profile  *model.Profile `json:"profile"`
	Area     model.Area     `json:"area"`
	Location string         `json:"location"`
}

// HandleLogin signs in with email and password.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.authn.SignInWithPassword(r.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, r, res)
	writeJSON(w, http.StatusOK, SignInResponse{
		Profile:  res.Profile,
		Area:     res.Area,
		Location: res.Area.Path(),
	})
}

// HandleGoogleLogin redirects the browser to Google's consent page. The
// state travels in a signed, short-lived cookie so the callback can check
// it was started here.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil || h.state == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Google sign-in is not enabled"})
		return
	}

	st := oauthState{State: xid.New().String(), Remember: r.URL.Query().Get("remember") == "true"}
	encoded, err := h.state.Encode(stateCookieName, st)
	if err != nil {
		h.logger.Error("encoding oauth state", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/auth/google",
		MaxAge:   int(stateMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthURL(st.State), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes Google sign-in and sends the browser to
// the user's area, or back to the login page with a message.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil || h.state == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Google sign-in is not enabled"})
		return
	}

	var st oauthState
	cookie, err := r.Cookie(stateCookieName)
	if err == nil {
		err = h.state.Decode(stateCookieName, cookie.Value, &st)
	}
	if err != nil || st.State == "" || r.URL.Query().Get("state") != st.State {
		h.logger.Warn("google callback: invalid state")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/auth/google", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: authorization denied", slog.String("error", errParam))
		redirectToLogin(w, r, "Google sign-in was cancelled")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	user, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		redirectToLogin(w, r, "Google sign-in failed, please try again")
		return
	}

	res, err := h.authn.SignInWithGoogle(r.Context(), user, st.Remember)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			redirectToLogin(w, r, appErr.Message)
			return
		}
		h.logger.Error("google callback: sign-in failed", slog.String("error", err.Error()))
		redirectToLogin(w, r, "Google sign-in failed, please try again")
		return
	}

	setSessionCookie(w, r, res)
	http.Redirect(w, r, res.Area.Path(), http.StatusSeeOther)
}

// HandleLogout clears the session cookie. It is safe to call while signed out.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"location": model.AreaLogin.Path()})
}

type passwordRequest struct {
	Password string `json:"password"`
}

// HandlePassword sets a new password for the signed-in user.
func (h *AuthHandler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	subjectID, _ := auth.SubjectIDFromContext(r.Context())

	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.authn.ChangePassword(r.Context(), subjectID, req.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the signed-in user's profile and home area.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	subjectID, _ := auth.SubjectIDFromContext(r.Context())

	p, err := h.authn.Profile(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	area := access.DefaultArea(p.Role)
	writeJSON(w, http.StatusOK, SignInResponse{Profile: p, Area: area, Location: area.Path()})
}

// setSessionCookie stores the token. Without "remember me" the cookie has
// no MaxAge and ends with the browser session.
func setSessionCookie(w http.ResponseWriter, r *http.Request, res *service.AuthResult) {
	c := &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if res.Remember {
		c.MaxAge = int(res.MaxAge.Seconds())
	}
	http.SetCookie(w, c)
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, model.AreaLogin.Path()+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}
