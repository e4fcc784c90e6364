package op

import (
	"context"
	"errors"
	"time"

	jose "github.com/go-jose/go-jose/v3"

	"github.com/authcove/idp/pkg/oidc"
)

var (
	ErrServerConfigurationNotFound = errors.New("authorization server configuration not found")
	ErrClientConfigurationNotFound = errors.New("client configuration not found")
)

// BackchannelAuthenticationConfig contains the CIBA defaults of one tenant.
type BackchannelAuthenticationConfig struct {
	// Lifetime is the duration for which an auth_req_id is valid.
	Lifetime time.Duration

	// PollInterval is the minimum time the client should wait between
	// polling requests to the token endpoint.
	PollInterval time.Duration
}

var DefaultBackchannelAuthenticationConfig = BackchannelAuthenticationConfig{
	Lifetime:     5 * time.Minute,
	PollInterval: 5 * time.Second,
}

// DefaultAuthRequestLifetime is the TTL of an authorization request when the
// tenant configuration does not set one.
const DefaultAuthRequestLifetime = 30 * time.Minute

// AuthorizationServerConfiguration is the per-tenant server configuration.
// It is resolved once per logical operation and treated as read-only;
// repeated resolutions may return different pointers but equivalent values.
type AuthorizationServerConfiguration struct {
	Issuer string

	SupportedGrantTypes  []oidc.GrantType
	SupportedAuthMethods []oidc.AuthMethod

	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
	IDTokenLifetime      time.Duration
	AuthRequestLifetime  time.Duration

	Backchannel BackchannelAuthenticationConfig

	// BackchannelUserCodeSupported enables the CIBA user_code parameter.
	BackchannelUserCodeSupported bool
}

func (c *AuthorizationServerConfiguration) GrantTypeSupported(grantType oidc.GrantType) bool {
	for _, gt := range c.SupportedGrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

func (c *AuthorizationServerConfiguration) AuthRequestTTL() time.Duration {
	if c.AuthRequestLifetime > 0 {
		return c.AuthRequestLifetime
	}
	return DefaultAuthRequestLifetime
}

func (c *AuthorizationServerConfiguration) BackchannelConfig() BackchannelAuthenticationConfig {
	cfg := c.Backchannel
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultBackchannelAuthenticationConfig.Lifetime
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultBackchannelAuthenticationConfig.PollInterval
	}
	return cfg
}

const (
	AccessTokenTypeBearer AccessTokenType = iota
	AccessTokenTypeJWT
)

type AccessTokenType int

// ClientConfiguration is the registered configuration of one client within a
// tenant.
type ClientConfiguration struct {
	ClientID     string
	ClientSecret string

	AuthMethod      oidc.AuthMethod
	GrantTypes      []oidc.GrantType
	RedirectURIs    []string
	Scopes          []string
	Profile         oidc.Profile
	JWKS            *jose.JSONWebKeySet
	AccessTokenType AccessTokenType

	// BackchannelTokenDeliveryMode is one of poll, ping or push.
	BackchannelTokenDeliveryMode oidc.DeliveryMode
	// BackchannelClientNotificationEndpoint receives ping and push callbacks.
	BackchannelClientNotificationEndpoint string
}

func (c *ClientConfiguration) GrantTypeAllowed(grantType oidc.GrantType) bool {
	for _, gt := range c.GrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

func (c *ClientConfiguration) IsScopeAllowed(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IsConfidential reports whether the client authenticates itself. Public
// clients (auth method none) must prove possession through PKCE instead.
func (c *ClientConfiguration) IsConfidential() bool {
	return c.AuthMethod != oidc.AuthMethodNone
}

type ServerConfigurationRepository interface {
	Get(ctx context.Context, tenant Tenant) (*AuthorizationServerConfiguration, error)
}

type ClientConfigurationRepository interface {
	Get(ctx context.Context, tenant Tenant, clientID string) (*ClientConfiguration, error)
}
