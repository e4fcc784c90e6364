package ciba

import (
	"context"
	"time"

	"github.com/authcove/idp/pkg/op"
)

const (
	// GrantStatusPending is the initial status: the user has not decided yet.
	GrantStatusPending GrantStatus = "pending"
	// GrantStatusAuthorized is terminal: the user approved the request.
	GrantStatusAuthorized GrantStatus = "authorized"
	// GrantStatusAccessDenied is terminal: the user rejected the request.
	GrantStatusAccessDenied GrantStatus = "access_denied"
)

// GrantStatus is the lifecycle state of a CIBA grant. Transitions are
// monotonic: pending moves exactly once to authorized or access_denied and
// never back.
type GrantStatus string

// Grant is the mutable authorization state tied 1:1 to a persisted
// BackchannelAuthenticationRequest. The repository enforces the single
// transition away from pending through its conditional update.
type Grant struct {
	ID        string
	AuthReqID string
	RequestID string

	Status        GrantStatus
	Authorization op.AuthorizationGrant

	// LastPolledAt is the time of the most recent poll mode token request,
	// used to answer too eager clients with slow_down.
	LastPolledAt time.Time

	ExpiresAt time.Time
}

func (g *Grant) IsPending() bool {
	return g.Status == GrantStatusPending
}

func (g *Grant) IsAuthorized() bool {
	return g.Status == GrantStatusAuthorized
}

func (g *Grant) IsDenied() bool {
	return g.Status == GrantStatusAccessDenied
}

func (g *Grant) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && now.After(g.ExpiresAt)
}

// Authorize returns a copy of the grant in authorized status with the
// authentication evidence attached. The receiver is not modified.
func (g Grant) Authorize(authentication op.Authentication) *Grant {
	g.Status = GrantStatusAuthorized
	g.Authorization.Authentication = g.Authorization.Authentication.Merge(authentication)
	return &g
}

// Deny returns a copy of the grant in access_denied status.
func (g Grant) Deny() *Grant {
	g.Status = GrantStatusAccessDenied
	return &g
}

type GrantRepository interface {
	Register(ctx context.Context, tenant op.Tenant, grant *Grant) error
	FindByAuthReqID(ctx context.Context, tenant op.Tenant, authReqID string) (*Grant, error)
	FindByRequestID(ctx context.Context, tenant op.Tenant, requestID string) (*Grant, error)
	// UpdateWithStatus persists the grant only if the stored status still
	// equals expected, returning ErrStatusConflict otherwise. This is the
	// linearization point of every status transition.
	UpdateWithStatus(ctx context.Context, tenant op.Tenant, grant *Grant, expected GrantStatus) error
	Delete(ctx context.Context, tenant op.Tenant, authReqID string) error
}
