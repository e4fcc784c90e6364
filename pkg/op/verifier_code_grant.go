package op

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"time"

	jose "github.com/go-jose/go-jose/v3"

	"github.com/authcove/idp/pkg/oidc"
)

// codeGrantVerifier checks one security profile's constraints on an
// authorization-code token request. Stricter profiles call the weaker ones
// first, so a request passing FAPI Advance verification always passes FAPI
// Baseline and base verification too.
type codeGrantVerifier func(reqCtx *TokenRequestContext, authReq *AuthorizationRequest, codeGrant *AuthorizationCodeGrant) error

// The table is closed: profiles not listed fall back to the base verifier.
var codeGrantVerifiers = map[oidc.Profile]codeGrantVerifier{
	oidc.ProfileOAuth2:       verifyCodeGrantBase,
	oidc.ProfileOIDC:         verifyCodeGrantOIDC,
	oidc.ProfileFAPIBaseline: verifyCodeGrantFAPIBaseline,
	oidc.ProfileFAPIAdvance:  verifyCodeGrantFAPIAdvance,
}

// Minimum key material per FAPI Baseline 5.2.2: 32 octets of symmetric
// entropy, 2048 bit RSA, 160 bit elliptic curves.
const (
	fapiMinSymmetricSecretOctets = 32
	fapiMinRSABits               = 2048
	fapiMinECBits                = 160
)

// VerifyAuthorizationCodeGrant is the profile-aware verification pipeline of
// the authorization_code grant. It selects the verifier declared by the
// original authorization request, runs it and finishes with the PKCE check.
// Every failure is deterministic and returns a protocol error; nothing is
// retried.
func VerifyAuthorizationCodeGrant(
	ctx context.Context,
	reqCtx *TokenRequestContext,
	authReq *AuthorizationRequest,
	codeGrant *AuthorizationCodeGrant,
) error {
	_, span := tracer.Start(ctx, "VerifyAuthorizationCodeGrant")
	defer span.End()

	verify := verifyCodeGrantBase
	if authReq != nil {
		if v, ok := codeGrantVerifiers[authReq.Profile]; ok {
			verify = v
		}
	}
	if err := verify(reqCtx, authReq, codeGrant); err != nil {
		return err
	}
	return AuthorizeCodeChallenge(reqCtx.CodeVerifier, authReq.CodeChallenge)
}

func verifyCodeGrantBase(reqCtx *TokenRequestContext, authReq *AuthorizationRequest, codeGrant *AuthorizationCodeGrant) error {
	if !reqCtx.ServerConfiguration.GrantTypeSupported(oidc.GrantTypeCode) {
		return oidc.ErrUnsupportedGrantType().WithDescription("authorization_code grant is not supported by this server")
	}
	if !reqCtx.ClientConfiguration.GrantTypeAllowed(oidc.GrantTypeCode) {
		return oidc.ErrUnauthorizedClient().WithDescription("client missing grant type " + string(oidc.GrantTypeCode))
	}
	now := time.Now()
	if codeGrant == nil || codeGrant.Expired(now) {
		return oidc.ErrInvalidGrant().WithDescription("authorization code does not exist")
	}
	if codeGrant.ClientID != reqCtx.ClientConfiguration.ClientID {
		return oidc.ErrInvalidGrant().WithDescription("authorization code was not issued to this client")
	}
	if authReq == nil || authReq.Expired(now) {
		return oidc.ErrInvalidGrant().WithDescription("authorization request does not exist")
	}
	if authReq.RedirectURI != "" && reqCtx.RedirectURI != authReq.RedirectURI {
		return oidc.ErrInvalidGrant().WithDescription("redirect_uri does not correspond")
	}
	return nil
}

func verifyCodeGrantOIDC(reqCtx *TokenRequestContext, authReq *AuthorizationRequest, codeGrant *AuthorizationCodeGrant) error {
	if err := verifyCodeGrantBase(reqCtx, authReq, codeGrant); err != nil {
		return err
	}
	if !authReq.Scopes.Contains(oidc.ScopeOpenID) {
		return oidc.ErrInvalidGrant().WithDescription("authorization request is missing the openid scope")
	}
	return nil
}

func verifyCodeGrantFAPIBaseline(reqCtx *TokenRequestContext, authReq *AuthorizationRequest, codeGrant *AuthorizationCodeGrant) error {
	if err := verifyCodeGrantBase(reqCtx, authReq, codeGrant); err != nil {
		return err
	}
	switch reqCtx.AuthMethod() {
	case oidc.AuthMethodBasic:
		return oidc.ErrUnauthorizedClient().WithDescription("client_secret_basic must not be used under the FAPI Baseline profile")
	case oidc.AuthMethodPost:
		return oidc.ErrUnauthorizedClient().WithDescription("client_secret_post must not be used under the FAPI Baseline profile")
	case oidc.AuthMethodClientSecretJWT:
		if len(reqCtx.ClientConfiguration.ClientSecret) < fapiMinSymmetricSecretOctets {
			return oidc.ErrInvalidClient().WithDescription("symmetric client secret must hold at least %d octets of entropy", fapiMinSymmetricSecretOctets)
		}
	}
	if err := verifyKeyStrength(reqCtx.ClientConfiguration.JWKS); err != nil {
		return err
	}
	return verifyAssertionClientID(reqCtx)
}

func verifyCodeGrantFAPIAdvance(reqCtx *TokenRequestContext, authReq *AuthorizationRequest, codeGrant *AuthorizationCodeGrant) error {
	if err := verifyCodeGrantFAPIBaseline(reqCtx, authReq, codeGrant); err != nil {
		return err
	}
	switch reqCtx.AuthMethod() {
	case oidc.AuthMethodClientSecretJWT:
		return oidc.ErrUnauthorizedClient().WithDescription("client_secret_jwt must not be used under the FAPI Advance profile")
	case oidc.AuthMethodNone:
		return oidc.ErrInvalidClient().WithDescription("unauthenticated clients are not accepted under the FAPI Advance profile")
	}
	return nil
}

// verifyKeyStrength enforces the FAPI minimum key sizes on every registered
// client key.
func verifyKeyStrength(keySet *jose.JSONWebKeySet) error {
	if keySet == nil {
		return nil
	}
	for _, key := range keySet.Keys {
		switch k := key.Key.(type) {
		case *rsa.PublicKey:
			if k.Size()*8 < fapiMinRSABits {
				return oidc.ErrInvalidClient().WithDescription("RSA keys must hold at least %d bits", fapiMinRSABits)
			}
		case *ecdsa.PublicKey:
			if k.Curve.Params().BitSize < fapiMinECBits {
				return oidc.ErrInvalidClient().WithDescription("EC keys must hold at least %d bits", fapiMinECBits)
			}
		}
	}
	return nil
}

// verifyAssertionClientID requires the iss and sub of a presented
// client_assertion to name the registered client. The signature itself was
// already checked during client authentication.
func verifyAssertionClientID(reqCtx *TokenRequestContext) error {
	if reqCtx.Credentials.ClientAssertion == "" {
		return nil
	}
	var claims clientAssertionClaims
	if err := UnsafeClaimsWithoutVerification(reqCtx.Credentials.ClientAssertion, &claims); err != nil {
		return oidc.ErrInvalidClient().WithDescription("invalid client_assertion").WithParent(err)
	}
	clientID := reqCtx.ClientConfiguration.ClientID
	if claims.Issuer != clientID || claims.Subject != clientID {
		return oidc.ErrInvalidClient().WithDescription("client_assertion issuer and subject must be the client id")
	}
	return nil
}
