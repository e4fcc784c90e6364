package op

import (
	"context"
	"time"

	"github.com/authcove/idp/pkg/oidc"
)

// AuthorizationRequest is the immutable record of an initiated front-channel
// authorization request. It is created when the /authorize request is accepted
// and only ever read afterwards.
type AuthorizationRequest struct {
	ID       string
	ClientID string

	ResponseType string
	RedirectURI  string
	Scopes       oidc.SpaceDelimitedArray
	State        string
	Nonce        string

	CodeChallenge *oidc.CodeChallenge

	ACRValues       []string
	RequestedClaims []string
	Profile         oidc.Profile
	UILocales       oidc.Locales

	AuthorizationDetails oidc.AuthorizationDetails

	ExpiresAt time.Time
}

func (r *AuthorizationRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

type AuthorizationRequestRepository interface {
	Register(ctx context.Context, tenant Tenant, request *AuthorizationRequest) error
	Get(ctx context.Context, tenant Tenant, id string) (*AuthorizationRequest, error)
	Delete(ctx context.Context, tenant Tenant, id string) error
}

// AuthorizationCodeGrant is the one-time code issued after successful
// interactive authorization. It is redeemed at most once: the token endpoint
// deletes it on successful exchange, a second redemption surfaces as
// invalid_grant because the record no longer exists.
type AuthorizationCodeGrant struct {
	Code                   string
	AuthorizationRequestID string
	ClientID               string
	Grant                  AuthorizationGrant
	ExpiresAt              time.Time
}

func (g *AuthorizationCodeGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && now.After(g.ExpiresAt)
}

type AuthorizationCodeGrantRepository interface {
	Register(ctx context.Context, tenant Tenant, grant *AuthorizationCodeGrant) error
	// Find returns ErrNotFound for absent and for expired codes.
	Find(ctx context.Context, tenant Tenant, code string) (*AuthorizationCodeGrant, error)
	Delete(ctx context.Context, tenant Tenant, code string) error
}

// RefreshTokenGrant is the stored state behind a refresh token.
type RefreshTokenGrant struct {
	Token     string
	ClientID  string
	Grant     AuthorizationGrant
	ExpiresAt time.Time
}

func (g *RefreshTokenGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && now.After(g.ExpiresAt)
}

type RefreshTokenGrantRepository interface {
	Register(ctx context.Context, tenant Tenant, grant *RefreshTokenGrant) error
	Find(ctx context.Context, tenant Tenant, token string) (*RefreshTokenGrant, error)
	Delete(ctx context.Context, tenant Tenant, token string) error
}
