package ciba

import (
	"context"
	"time"

	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
)

const (
	// PatternNormal is a plain form-encoded backchannel authentication request.
	PatternNormal RequestPattern = iota
	// PatternRequestObject carries the parameters inside a signed request object.
	PatternRequestObject
	// PatternRequestURI references a request object by reference.
	PatternRequestURI
)

// RequestPattern classifies how the client transported the request parameters.
type RequestPattern int

func classifyPattern(req *oidc.BackchannelAuthenticationRequest) RequestPattern {
	switch {
	case req.RequestParam != "":
		return PatternRequestObject
	case req.RequestURI != "":
		return PatternRequestURI
	default:
		return PatternNormal
	}
}

// UserHintType selects the resolver for the user hint a request carried.
type UserHintType string

const (
	UserHintLoginHint      UserHintType = "login_hint"
	UserHintLoginHintToken UserHintType = "login_hint_token"
	UserHintIDTokenHint    UserHintType = "id_token_hint"
)

// BackchannelAuthenticationRequest is the persisted record of an accepted
// backchannel authentication request, the CIBA counterpart of
// op.AuthorizationRequest. Immutable after registration.
type BackchannelAuthenticationRequest struct {
	ID       string
	ClientID string
	Profile  oidc.Profile

	DeliveryMode            oidc.DeliveryMode
	ClientNotificationToken string

	Scopes    oidc.SpaceDelimitedArray
	ACRValues []string

	LoginHint      string
	LoginHintToken string
	IDTokenHint    string

	BindingMessage string
	UserCode       string

	AuthorizationDetails oidc.AuthorizationDetails

	ExpiresAt time.Time
	Interval  time.Duration
}

func (r *BackchannelAuthenticationRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// UserHint returns the hint type and value of the request. The verifier
// guarantees exactly one is present.
func (r *BackchannelAuthenticationRequest) UserHint() (UserHintType, string) {
	switch {
	case r.LoginHintToken != "":
		return UserHintLoginHintToken, r.LoginHintToken
	case r.IDTokenHint != "":
		return UserHintIDTokenHint, r.IDTokenHint
	default:
		return UserHintLoginHint, r.LoginHint
	}
}

func (r *BackchannelAuthenticationRequest) IsPingMode() bool {
	return r.DeliveryMode == oidc.DeliveryModePing
}

func (r *BackchannelAuthenticationRequest) IsPushMode() bool {
	return r.DeliveryMode == oidc.DeliveryModePush
}

type RequestRepository interface {
	Register(ctx context.Context, tenant op.Tenant, request *BackchannelAuthenticationRequest) error
	// Find returns op.ErrNotFound for absent and for expired requests.
	Find(ctx context.Context, tenant op.Tenant, id string) (*BackchannelAuthenticationRequest, error)
}

// RequestContext is the validated, not yet persisted view of one backchannel
// authentication request together with the configuration it was judged
// against.
type RequestContext struct {
	Tenant      op.Tenant
	Pattern     RequestPattern
	Request     *BackchannelAuthenticationRequest
	Credentials op.ClientCredentials

	ServerConfiguration *op.AuthorizationServerConfiguration
	ClientConfiguration *op.ClientConfiguration
}

func (c *RequestContext) ExpiresIn() int64 {
	return int64(time.Until(c.Request.ExpiresAt) / time.Second)
}

func (c *RequestContext) Interval() int64 {
	return int64(c.Request.Interval / time.Second)
}
