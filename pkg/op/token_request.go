package op

import (
	"context"
	"crypto/subtle"
	"crypto/x509"
	"encoding/json"
	"time"

	jose "github.com/go-jose/go-jose/v3"

	"github.com/authcove/idp/pkg/oidc"
)

// ClientCredentials carries the client authentication material exactly as the
// client presented it on the current request.
type ClientCredentials struct {
	ClientID            string
	ClientSecret        string
	ClientAssertion     string
	ClientAssertionType string
	ClientCertificate   *x509.Certificate
}

// TokenRequestContext is the per-request view every token verifier works on:
// the presented parameters plus the resolved server and client configuration.
type TokenRequestContext struct {
	Tenant      Tenant
	GrantType   oidc.GrantType
	Credentials ClientCredentials

	Code         string
	CodeVerifier string
	RedirectURI  string
	RefreshToken string
	Username     string
	Password     string
	Scopes       oidc.SpaceDelimitedArray

	ServerConfiguration *AuthorizationServerConfiguration
	ClientConfiguration *ClientConfiguration
}

// AuthMethod is the client authentication method registered for the client,
// the one every profile check judges against.
func (c *TokenRequestContext) AuthMethod() oidc.AuthMethod {
	if c.ClientConfiguration == nil {
		return oidc.AuthMethodNone
	}
	return c.ClientConfiguration.AuthMethod
}

type clientAssertionClaims struct {
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Expiration oidc.Time `json:"exp"`
}

// AuthenticateClient validates the presented credentials against the
// registered authentication method. Every failure maps to invalid_client.
func AuthenticateClient(ctx context.Context, creds ClientCredentials, clientCfg *ClientConfiguration) error {
	_, span := tracer.Start(ctx, "AuthenticateClient")
	defer span.End()

	switch clientCfg.AuthMethod {
	case oidc.AuthMethodNone:
		return nil
	case oidc.AuthMethodBasic, oidc.AuthMethodPost:
		if !verifyClientSecret(clientCfg.ClientSecret, creds.ClientSecret) {
			return oidc.ErrInvalidClient().WithDescription("invalid client_id / client_secret")
		}
		return nil
	case oidc.AuthMethodPrivateKeyJWT:
		return verifyClientAssertion(creds, clientCfg, clientCfg.JWKS, nil)
	case oidc.AuthMethodClientSecretJWT:
		return verifyClientAssertion(creds, clientCfg, nil, []byte(clientCfg.ClientSecret))
	case oidc.AuthMethodTLSClientAuth, oidc.AuthMethodSelfSignedTLSAuth:
		if creds.ClientCertificate == nil {
			return oidc.ErrInvalidClient().WithDescription("client certificate required")
		}
		return nil
	default:
		return oidc.ErrInvalidClient().WithDescription("unsupported authentication method")
	}
}

func verifyClientSecret(registered, presented string) bool {
	if registered == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(registered), []byte(presented)) == 1
}

// verifyClientAssertion checks signature, lifetime and issuer / subject of a
// client_assertion JWT. Exactly one of keySet or secret is used, depending on
// whether the client registered private_key_jwt or client_secret_jwt.
func verifyClientAssertion(creds ClientCredentials, clientCfg *ClientConfiguration, keySet *jose.JSONWebKeySet, secret []byte) error {
	if creds.ClientAssertionType != oidc.ClientAssertionTypeJWTAssertion || creds.ClientAssertion == "" {
		return oidc.ErrInvalidClient().WithDescription("client_assertion required")
	}
	jws, err := jose.ParseSigned(creds.ClientAssertion)
	if err != nil {
		return oidc.ErrInvalidClient().WithDescription("invalid client_assertion").WithParent(err)
	}
	payload, err := verifyAssertionSignature(jws, keySet, secret)
	if err != nil {
		return oidc.ErrInvalidClient().WithDescription("client_assertion signature verification failed").WithParent(err)
	}
	var claims clientAssertionClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return oidc.ErrInvalidClient().WithDescription("invalid client_assertion payload").WithParent(err)
	}
	if claims.Expiration != 0 && time.Now().After(claims.Expiration.AsTime()) {
		return oidc.ErrInvalidClient().WithDescription("client_assertion expired")
	}
	clientID := clientCfg.ClientID
	if claims.Issuer != clientID || claims.Subject != clientID {
		return oidc.ErrInvalidClient().WithDescription("client_assertion issuer and subject must be the client id")
	}
	return nil
}

func verifyAssertionSignature(jws *jose.JSONWebSignature, keySet *jose.JSONWebKeySet, secret []byte) ([]byte, error) {
	if secret != nil {
		return jws.Verify(secret)
	}
	if keySet == nil || len(keySet.Keys) == 0 {
		return nil, jose.ErrCryptoFailure
	}
	var err error
	var payload []byte
	for _, key := range keySet.Keys {
		payload, err = jws.Verify(key)
		if err == nil {
			return payload, nil
		}
	}
	if err == nil {
		err = jose.ErrCryptoFailure
	}
	return nil, err
}

// AuthorizeCodeChallenge authorizes a client by validating the code_verifier
// against the previously stored code_challenge of the auth request (PKCE).
func AuthorizeCodeChallenge(codeVerifier string, challenge *oidc.CodeChallenge) error {
	if challenge == nil {
		if codeVerifier != "" {
			return oidc.ErrInvalidRequest().WithDescription("code_verifier unexpectedly provided")
		}
		return nil
	}
	if codeVerifier == "" {
		return oidc.ErrInvalidRequest().WithDescription("code_verifier required")
	}
	if !oidc.VerifyCodeChallenge(challenge, codeVerifier) {
		return oidc.ErrInvalidGrant().WithDescription("invalid code_verifier")
	}
	return nil
}
