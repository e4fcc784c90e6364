package oidc

import (
	"encoding/json"
	"time"
)

// Time is a UNIX timestamp as used inside JWT claims.
type Time int64

func FromTime(t time.Time) Time {
	if t.IsZero() {
		return 0
	}
	return Time(t.Unix())
}

func (t Time) AsTime() time.Time {
	if t == 0 {
		return time.Time{}
	}
	return time.Unix(int64(t), 0)
}

// AccessTokenRequest is the token request of the authorization_code grant.
type AccessTokenRequest struct {
	Code                string `schema:"code"`
	RedirectURI         string `schema:"redirect_uri"`
	ClientID            string `schema:"client_id"`
	ClientSecret        string `schema:"client_secret"`
	CodeVerifier        string `schema:"code_verifier"`
	ClientAssertion     string `schema:"client_assertion"`
	ClientAssertionType string `schema:"client_assertion_type"`
}

func (a *AccessTokenRequest) GrantType() GrantType {
	return GrantTypeCode
}

// SetClientID implements op.AuthenticatedTokenRequest
func (a *AccessTokenRequest) SetClientID(clientID string) {
	a.ClientID = clientID
}

// SetClientSecret implements op.AuthenticatedTokenRequest
func (a *AccessTokenRequest) SetClientSecret(clientSecret string) {
	a.ClientSecret = clientSecret
}

// RefreshTokenRequest is the token request of the refresh_token grant.
type RefreshTokenRequest struct {
	RefreshToken string              `schema:"refresh_token"`
	Scopes       SpaceDelimitedArray `schema:"scope"`
	ClientID     string              `schema:"client_id"`
	ClientSecret string              `schema:"client_secret"`
}

func (r *RefreshTokenRequest) GrantType() GrantType {
	return GrantTypeRefreshToken
}

func (r *RefreshTokenRequest) SetClientID(clientID string) {
	r.ClientID = clientID
}

func (r *RefreshTokenRequest) SetClientSecret(clientSecret string) {
	r.ClientSecret = clientSecret
}

// ClientCredentialsRequest is the token request of the client_credentials grant.
type ClientCredentialsRequest struct {
	Scopes       SpaceDelimitedArray `schema:"scope"`
	ClientID     string              `schema:"client_id"`
	ClientSecret string              `schema:"client_secret"`
}

func (c *ClientCredentialsRequest) GrantType() GrantType {
	return GrantTypeClientCredentials
}

func (c *ClientCredentialsRequest) SetClientID(clientID string) {
	c.ClientID = clientID
}

func (c *ClientCredentialsRequest) SetClientSecret(clientSecret string) {
	c.ClientSecret = clientSecret
}

// PasswordRequest is the token request of the resource owner password grant.
type PasswordRequest struct {
	Username     string              `schema:"username"`
	Password     string              `schema:"password"`
	Scopes       SpaceDelimitedArray `schema:"scope"`
	ClientID     string              `schema:"client_id"`
	ClientSecret string              `schema:"client_secret"`
}

func (p *PasswordRequest) GrantType() GrantType {
	return GrantTypePassword
}

func (p *PasswordRequest) SetClientID(clientID string) {
	p.ClientID = clientID
}

func (p *PasswordRequest) SetClientSecret(clientSecret string) {
	p.ClientSecret = clientSecret
}

// AccessTokenResponse is the successful response of the token endpoint
// (RFC 6749 §5.1) and the body of a CIBA push notification minus the auth_req_id.
type AccessTokenResponse struct {
	AccessToken  string              `json:"access_token"`
	TokenType    string              `json:"token_type"`
	RefreshToken string              `json:"refresh_token,omitempty"`
	ExpiresIn    int64               `json:"expires_in,omitempty"`
	IDToken      string              `json:"id_token,omitempty"`
	Scope        SpaceDelimitedArray `json:"scope,omitempty"`
}

// IDTokenClaims are the claims this server mints into ID tokens. Claims holds
// additional, consent-scoped claims merged into the token on serialization;
// registered claim names never get overridden by it.
type IDTokenClaims struct {
	Issuer                              string         `json:"iss"`
	Subject                             string         `json:"sub"`
	Audience                            []string       `json:"aud"`
	Expiration                          Time           `json:"exp"`
	IssuedAt                            Time           `json:"iat"`
	AuthTime                            Time           `json:"auth_time,omitempty"`
	Nonce                               string         `json:"nonce,omitempty"`
	AuthenticationContextClassReference string         `json:"acr,omitempty"`
	AuthenticationMethodsReferences     []string       `json:"amr,omitempty"`
	AuthorizedParty                     string         `json:"azp,omitempty"`
	AccessTokenHash                     string         `json:"at_hash,omitempty"`
	Claims                              map[string]any `json:"-"`
}

func (c *IDTokenClaims) MarshalJSON() ([]byte, error) {
	type alias IDTokenClaims
	registered, err := json.Marshal((*alias)(c))
	if err != nil || len(c.Claims) == 0 {
		return registered, err
	}
	merged := make(map[string]json.RawMessage, len(c.Claims)+12)
	if err := json.Unmarshal(registered, &merged); err != nil {
		return nil, err
	}
	for name, value := range c.Claims {
		if _, ok := merged[name]; ok {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		merged[name] = raw
	}
	return json.Marshal(merged)
}

// AccessTokenClaims are the claims minted into JWT access tokens.
type AccessTokenClaims struct {
	Issuer               string               `json:"iss"`
	Subject              string               `json:"sub"`
	Audience             []string             `json:"aud"`
	Expiration           Time                 `json:"exp"`
	IssuedAt             Time                 `json:"iat"`
	NotBefore            Time                 `json:"nbf,omitempty"`
	JWTID                string               `json:"jti"`
	ClientID             string               `json:"client_id,omitempty"`
	Scopes               SpaceDelimitedArray  `json:"scope,omitempty"`
	AuthorizationDetails AuthorizationDetails `json:"authorization_details,omitempty"`
}
