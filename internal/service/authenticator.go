package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/smartwork/internal/access"
	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/auth"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
)

const badCredentials = "invalid email or password"

// Authenticator turns credentials into a signed-in session.
//
// Accounts are created by an admin beforehand; sign-in never creates a
// profile. A Google account is linked to the provisioned identity with the
// same verified email on first use.
type Authenticator struct {
	identities  repository.IdentityRepository
	profiles    repository.ProfileRepository
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	rememberTTL time.Duration
	logger      *slog.Logger
}

func NewAuthenticator(
	identities repository.IdentityRepository,
	profiles repository.ProfileRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	rememberTTL time.Duration,
	logger *slog.Logger,
) *Authenticator {
	return &Authenticator{
		identities:  identities,
		profiles:    profiles,
		tokens:      tokens,
		passwords:   passwords,
		rememberTTL: rememberTTL,
		logger:      logger,
	}
}

// AuthResult is a successful sign-in. Remember tells the caller to persist
// the cookie for MaxAge instead of keeping it for the browser session.
type AuthResult struct {
	Profile  *model.Profile
	Token    string
	Remember bool
	MaxAge   time.Duration
	Area     model.Area
}

// SignInWithPassword checks email and password. Both an unknown email and a
// wrong password produce the same AuthError.
func (a *Authenticator) SignInWithPassword(ctx context.Context, email, password string, remember bool) (*AuthResult, error) {
	identity, err := a.identities.GetIdentityByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.AuthFailed(badCredentials)
	}
	if err != nil {
		return nil, storeErr(a.logger, "loading identity", err)
	}

	if err := a.passwords.Verify(identity.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			a.logger.Error("verifying password", slog.String("subject_id", identity.SubjectID), slog.String("error", err.Error()))
		}
		return nil, apperror.AuthFailed(badCredentials)
	}

	return a.complete(ctx, identity.SubjectID, "password", remember)
}

// SignInWithGoogle signs in the identity linked to u, linking it by
// verified email on first use.
func (a *Authenticator) SignInWithGoogle(ctx context.Context, u *auth.GoogleUser, remember bool) (*AuthResult, error) {
	if u == nil || u.ID == "" {
		return nil, apperror.AuthFailed("Google sign-in failed")
	}

	identity, err := a.identities.GetIdentityByGoogleSub(ctx, u.ID)
	switch {
	case err == nil:
		return a.complete(ctx, identity.SubjectID, "google", remember)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, storeErr(a.logger, "loading identity", err)
	}

	if !u.VerifiedEmail {
		return nil, apperror.AuthFailed("your Google email address is not verified")
	}
	identity, err = a.identities.GetIdentityByEmail(ctx, u.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotProvisioned()
	}
	if err != nil {
		return nil, storeErr(a.logger, "loading identity", err)
	}
	if identity.GoogleSub != "" {
		// Linked to a different Google account.
		return nil, apperror.AuthFailed("this account is linked to another Google account")
	}

	if err := a.identities.LinkGoogle(ctx, identity.SubjectID, u.ID); err != nil {
		return nil, storeErr(a.logger, "linking Google account", err)
	}
	a.logger.Info("google account linked", slog.String("subject_id", identity.SubjectID))

	return a.complete(ctx, identity.SubjectID, "google", remember)
}

// complete loads the signed-in subject's profile and issues the token.
func (a *Authenticator) complete(ctx context.Context, subjectID, method string, remember bool) (*AuthResult, error) {
	p, err := a.Profile(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	var token string
	var maxAge time.Duration
	if remember {
		token, err = a.tokens.GenerateWithDuration(subjectID, a.rememberTTL)
		maxAge = a.rememberTTL
	} else {
		token, err = a.tokens.Generate(subjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	a.logger.Info("user signed in",
		slog.String("subject_id", subjectID),
		slog.String("role", string(p.Role)),
		slog.String("method", method),
	)
	return &AuthResult{
		Profile:  p,
		Token:    token,
		Remember: remember,
		MaxAge:   maxAge,
		Area:     access.DefaultArea(p.Role),
	}, nil
}

// Profile returns the signed-in subject's profile, failing with guidance
// for the user when the account is incomplete.
func (a *Authenticator) Profile(ctx context.Context, subjectID string) (*model.Profile, error) {
	p, err := a.profiles.GetProfile(ctx, subjectID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotProvisioned()
	}
	if err != nil {
		return nil, storeErr(a.logger, "loading profile", err)
	}
	if !p.Role.Valid() {
		return nil, apperror.ValidationFailed("role", "role not assigned correctly, contact admin")
	}
	return p, nil
}

// ChangePassword replaces the subject's password.
func (a *Authenticator) ChangePassword(ctx context.Context, subjectID, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := a.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("changing password: %w", err)
	}
	if err := a.identities.SetPasswordHash(ctx, subjectID, hash); err != nil {
		return storeErr(a.logger, "storing password", err)
	}
	a.logger.Info("password changed", slog.String("subject_id", subjectID))
	return nil
}
