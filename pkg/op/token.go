package op

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/authcove/idp/pkg/oidc"
)

// OAuthToken is the persisted record of one token issuance.
type OAuthToken struct {
	ID           string
	AccessToken  string
	RefreshToken string
	IDToken      string
	Grant        AuthorizationGrant
	ExpiresAt    time.Time
}

type OAuthTokenRepository interface {
	Register(ctx context.Context, tenant Tenant, token *OAuthToken) error
}

type tokenResponseOptions struct {
	alwaysMintRefreshToken bool
}

// TokenResponseOption adjusts how CreateTokenResponse mints the token set.
type TokenResponseOption func(*tokenResponseOptions)

// WithRefreshToken mints a refresh token regardless of the client's
// registered grant types. Push mode backchannel delivery carries one in the
// notification body even for clients without the refresh_token grant.
func WithRefreshToken() TokenResponseOption {
	return func(o *tokenResponseOptions) {
		o.alwaysMintRefreshToken = true
	}
}

// CreateTokenResponse mints the full token set for a grant: an access token
// (JWT or opaque, per client configuration), a refresh token when the client
// may use one, and an ID token. The returned OAuthToken is the record the
// caller persists; minting itself has no side effects.
func CreateTokenResponse(
	ctx context.Context,
	grant AuthorizationGrant,
	serverCfg *AuthorizationServerConfiguration,
	clientCfg *ClientConfiguration,
	crypto Crypto,
	opts ...TokenResponseOption,
) (*oidc.AccessTokenResponse, *OAuthToken, error) {
	ctx, span := tracer.Start(ctx, "CreateTokenResponse")
	defer span.End()

	var options tokenResponseOptions
	for _, opt := range opts {
		opt(&options)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(serverCfg.AccessTokenLifetime)

	accessToken, tokenID, err := createAccessToken(ctx, grant, serverCfg, clientCfg, crypto, now, expiresAt)
	if err != nil {
		return nil, nil, err
	}

	var refreshToken string
	if options.alwaysMintRefreshToken || clientCfg.GrantTypeAllowed(oidc.GrantTypeRefreshToken) {
		refreshToken, err = crypto.Encrypt(uuid.NewString())
		if err != nil {
			return nil, nil, err
		}
	}

	idToken, err := createIDToken(ctx, grant, serverCfg, clientCfg, crypto, accessToken, now)
	if err != nil {
		return nil, nil, err
	}

	resp := &oidc.AccessTokenResponse{
		AccessToken:  accessToken,
		TokenType:    oidc.BearerToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(expiresAt.Sub(now) / time.Second),
		IDToken:      idToken,
		Scope:        grant.Scopes,
	}
	token := &OAuthToken{
		ID:           tokenID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IDToken:      idToken,
		Grant:        grant,
		ExpiresAt:    expiresAt,
	}
	return resp, token, nil
}

func createAccessToken(
	ctx context.Context,
	grant AuthorizationGrant,
	serverCfg *AuthorizationServerConfiguration,
	clientCfg *ClientConfiguration,
	crypto Crypto,
	now, expiresAt time.Time,
) (token, tokenID string, err error) {
	tokenID = uuid.NewString()
	if clientCfg.AccessTokenType == AccessTokenTypeJWT {
		claims := &oidc.AccessTokenClaims{
			Issuer:               serverCfg.Issuer,
			Subject:              grant.User.Sub,
			Audience:             []string{grant.ClientID},
			Expiration:           oidc.FromTime(expiresAt),
			IssuedAt:             oidc.FromTime(now),
			NotBefore:            oidc.FromTime(now),
			JWTID:                tokenID,
			ClientID:             grant.ClientID,
			Scopes:               grant.Scopes,
			AuthorizationDetails: grant.AuthorizationDetails,
		}
		token, err = crypto.Sign(ctx, claims)
		return token, tokenID, err
	}
	token, err = crypto.Encrypt(tokenID)
	return token, tokenID, err
}

func createIDToken(
	ctx context.Context,
	grant AuthorizationGrant,
	serverCfg *AuthorizationServerConfiguration,
	clientCfg *ClientConfiguration,
	crypto Crypto,
	accessToken string,
	now time.Time,
) (string, error) {
	lifetime := serverCfg.IDTokenLifetime
	if lifetime == 0 {
		lifetime = serverCfg.AccessTokenLifetime
	}
	claims := &oidc.IDTokenClaims{
		Issuer:                              serverCfg.Issuer,
		Subject:                             grant.User.Sub,
		Audience:                            []string{grant.ClientID},
		Expiration:                          oidc.FromTime(now.Add(lifetime)),
		IssuedAt:                            oidc.FromTime(now),
		AuthTime:                            oidc.FromTime(grant.Authentication.Time),
		AuthenticationContextClassReference: grant.Authentication.ACR,
		AuthenticationMethodsReferences:     grant.Authentication.Methods,
		AuthorizedParty:                     grant.ClientID,
	}
	if len(grant.IDTokenClaims) > 0 && len(grant.User.Claims) > 0 {
		claims.Claims = make(map[string]any, len(grant.IDTokenClaims))
		for _, name := range grant.IDTokenClaims {
			if value, ok := grant.User.Claims[name]; ok {
				claims.Claims[name] = value
			}
		}
	}
	if accessToken != "" {
		atHash, err := oidc.ClaimHash(accessToken, crypto.SignatureAlgorithm())
		if err != nil {
			return "", err
		}
		claims.AccessTokenHash = atHash
	}
	return crypto.Sign(ctx, claims)
}
