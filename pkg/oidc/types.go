package oidc

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	// ScopeOpenID defines the scope `openid`, required for every OIDC and CIBA request.
	ScopeOpenID = "openid"

	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopePhone   = "phone"
	ScopeAddress = "address"

	// BearerToken is the only token_type this server issues.
	BearerToken = "Bearer"
)

const (
	// GrantTypeCode defines the grant_type `authorization_code` used for the Token Request in the Authorization Code Flow
	GrantTypeCode GrantType = "authorization_code"

	// GrantTypeRefreshToken defines the grant_type `refresh_token` used for the Token Refresh Request
	GrantTypeRefreshToken GrantType = "refresh_token"

	// GrantTypeClientCredentials defines the grant_type `client_credentials` used for the client credentials flow
	GrantTypeClientCredentials GrantType = "client_credentials"

	// GrantTypePassword defines the grant_type `password` used for the resource owner password credentials flow
	GrantTypePassword GrantType = "password"

	// GrantTypeCIBA defines the grant_type `urn:openid:params:grant-type:ciba` used
	// to poll the token endpoint for the result of a backchannel authentication request
	GrantTypeCIBA GrantType = "urn:openid:params:grant-type:ciba"
)

type GrantType string

const (
	AuthMethodBasic             AuthMethod = "client_secret_basic"
	AuthMethodPost              AuthMethod = "client_secret_post"
	AuthMethodNone              AuthMethod = "none"
	AuthMethodPrivateKeyJWT     AuthMethod = "private_key_jwt"
	AuthMethodClientSecretJWT   AuthMethod = "client_secret_jwt"
	AuthMethodTLSClientAuth     AuthMethod = "tls_client_auth"
	AuthMethodSelfSignedTLSAuth AuthMethod = "self_signed_tls_client_auth"
)

type AuthMethod string

// ClientAssertionTypeJWTAssertion is the client_assertion_type for private_key_jwt
// and client_secret_jwt client authentication.
const ClientAssertionTypeJWTAssertion = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Profile is the security profile an authorization request was classified into.
// The zero value is the plain OAuth2 profile; every stricter profile layers
// additional mandatory checks on top of the previous ones.
type Profile int

const (
	ProfileOAuth2 Profile = iota
	ProfileOIDC
	ProfileFAPIBaseline
	ProfileFAPIAdvance
)

func (p Profile) String() string {
	switch p {
	case ProfileOIDC:
		return "oidc"
	case ProfileFAPIBaseline:
		return "fapi_baseline"
	case ProfileFAPIAdvance:
		return "fapi_advance"
	default:
		return "oauth2"
	}
}

// ProfileFromString normalizes a configured profile name. Unknown values
// fall back to the plain OAuth2 profile.
func ProfileFromString(s string) Profile {
	switch s {
	case "oidc":
		return ProfileOIDC
	case "fapi_baseline":
		return ProfileFAPIBaseline
	case "fapi_advance", "fapi_advanced":
		return ProfileFAPIAdvance
	default:
		return ProfileOAuth2
	}
}

// SpaceDelimitedArray marshals to and from a single space delimited string,
// as used by the `scope` parameter (RFC 6749 §3.3).
type SpaceDelimitedArray []string

func (s SpaceDelimitedArray) String() string {
	return strings.Join(s, " ")
}

func (s SpaceDelimitedArray) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SpaceDelimitedArray) UnmarshalText(text []byte) error {
	*s = strings.Fields(string(text))
	return nil
}

func (s SpaceDelimitedArray) Contains(value string) bool {
	for _, v := range s {
		if v == value {
			return true
		}
	}
	return false
}

// Locales parses the ui_locales parameter, dropping tags which fail to parse.
type Locales []language.Tag

func (l *Locales) UnmarshalText(text []byte) error {
	locales := strings.Fields(string(text))
	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err == nil && !tag.IsRoot() {
			*l = append(*l, tag)
		}
	}
	return nil
}
