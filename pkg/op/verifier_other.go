package op

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authcove/idp/pkg/oidc"
)

// VerifyRefreshTokenGrant checks a refresh_token request against the stored
// grant: server and client support, existence and the issuing client.
func VerifyRefreshTokenGrant(ctx context.Context, reqCtx *TokenRequestContext, grant *RefreshTokenGrant) error {
	_, span := tracer.Start(ctx, "VerifyRefreshTokenGrant")
	defer span.End()

	if !reqCtx.ServerConfiguration.GrantTypeSupported(oidc.GrantTypeRefreshToken) {
		return oidc.ErrUnsupportedGrantType().WithDescription("refresh_token grant is not supported by this server")
	}
	if !reqCtx.ClientConfiguration.GrantTypeAllowed(oidc.GrantTypeRefreshToken) {
		return oidc.ErrUnauthorizedClient().WithDescription("client missing grant type " + string(oidc.GrantTypeRefreshToken))
	}
	if grant == nil || grant.Expired(time.Now()) {
		return oidc.ErrInvalidGrant().WithDescription("refresh token does not exist")
	}
	if grant.ClientID != reqCtx.ClientConfiguration.ClientID {
		return oidc.ErrInvalidGrant().WithDescription("refresh token was not issued to this client")
	}
	// Requested scopes may only narrow the original grant.
	for _, scope := range reqCtx.Scopes {
		if !grant.Grant.Scopes.Contains(scope) {
			return oidc.ErrInvalidScope().WithDescription("scope %s exceeds the original grant", scope)
		}
	}
	return nil
}

// VerifyClientCredentialsGrant checks a client_credentials request. The grant
// carries no user, so everything hinges on the client registration.
func VerifyClientCredentialsGrant(ctx context.Context, reqCtx *TokenRequestContext) error {
	_, span := tracer.Start(ctx, "VerifyClientCredentialsGrant")
	defer span.End()

	if !reqCtx.ServerConfiguration.GrantTypeSupported(oidc.GrantTypeClientCredentials) {
		return oidc.ErrUnsupportedGrantType().WithDescription("client_credentials grant is not supported by this server")
	}
	if !reqCtx.ClientConfiguration.GrantTypeAllowed(oidc.GrantTypeClientCredentials) {
		return oidc.ErrUnauthorizedClient().WithDescription("client missing grant type " + string(oidc.GrantTypeClientCredentials))
	}
	if reqCtx.AuthMethod() == oidc.AuthMethodNone {
		return oidc.ErrInvalidClient().WithDescription("client_credentials grant requires an authenticated client")
	}
	for _, scope := range reqCtx.Scopes {
		if !reqCtx.ClientConfiguration.IsScopeAllowed(scope) {
			return oidc.ErrInvalidScope().WithDescription("scope %s is not allowed for this client", scope)
		}
	}
	return nil
}

// VerifyPasswordGrant checks a resource owner password credentials request,
// including the bcrypt comparison against the stored hash.
func VerifyPasswordGrant(ctx context.Context, reqCtx *TokenRequestContext, user *User) error {
	_, span := tracer.Start(ctx, "VerifyPasswordGrant")
	defer span.End()

	if !reqCtx.ServerConfiguration.GrantTypeSupported(oidc.GrantTypePassword) {
		return oidc.ErrUnsupportedGrantType().WithDescription("password grant is not supported by this server")
	}
	if !reqCtx.ClientConfiguration.GrantTypeAllowed(oidc.GrantTypePassword) {
		return oidc.ErrUnauthorizedClient().WithDescription("client missing grant type " + string(oidc.GrantTypePassword))
	}
	if reqCtx.Username == "" || reqCtx.Password == "" {
		return oidc.ErrInvalidRequest().WithDescription("username and password required")
	}
	if user == nil || !user.Exists() {
		return oidc.ErrInvalidGrant().WithDescription("invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(reqCtx.Password)); err != nil {
		return oidc.ErrInvalidGrant().WithDescription("invalid username or password").WithParent(err)
	}
	return nil
}
