package op

import (
	"context"
	"time"

	"github.com/authcove/idp/pkg/oidc"
)

// Authentication is the evidence of how and when the user authenticated.
type Authentication struct {
	Methods []string
	Time    time.Time
	ACR     string
}

func (a Authentication) Exists() bool {
	return len(a.Methods) > 0 || !a.Time.IsZero()
}

// Merge combines two pieces of authentication evidence; the later one wins on
// time and ACR, methods are unioned.
func (a Authentication) Merge(other Authentication) Authentication {
	merged := Authentication{
		Methods: unionStrings(a.Methods, other.Methods),
		Time:    a.Time,
		ACR:     a.ACR,
	}
	if other.Time.After(a.Time) {
		merged.Time = other.Time
	}
	if other.ACR != "" {
		merged.ACR = other.ACR
	}
	return merged
}

// AuthorizationGrant captures what was actually granted: the user, the
// authentication evidence, the client and the scopes/claims the user consented
// to. It is immutable once built; Merge returns a new value.
type AuthorizationGrant struct {
	User           User
	Authentication Authentication
	ClientID       string
	GrantType      oidc.GrantType

	Scopes         oidc.SpaceDelimitedArray
	IDTokenClaims  []string
	UserinfoClaims []string

	CustomProperties     map[string]any
	AuthorizationDetails oidc.AuthorizationDetails
}

// Merge unions the receiver with a newer grant for the same client/user pair.
// Scopes and claim sets are unioned, everything else is replaced by the newer
// grant.
func (g AuthorizationGrant) Merge(other AuthorizationGrant) AuthorizationGrant {
	merged := other
	merged.Scopes = oidc.SpaceDelimitedArray(unionStrings(g.Scopes, other.Scopes))
	merged.IDTokenClaims = unionStrings(g.IDTokenClaims, other.IDTokenClaims)
	merged.UserinfoClaims = unionStrings(g.UserinfoClaims, other.UserinfoClaims)
	merged.AuthorizationDetails = g.AuthorizationDetails.Merge(other.AuthorizationDetails)
	if merged.CustomProperties == nil {
		merged.CustomProperties = g.CustomProperties
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))
	for _, values := range [][]string{a, b} {
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				union = append(union, v)
			}
		}
	}
	return union
}

// AuthorizationGranted is the stored record of everything a user has granted
// to one client. Push-mode notification and the token endpoint merge fresh
// grants into it instead of stacking duplicates.
type AuthorizationGranted struct {
	ID    string
	Grant AuthorizationGrant
}

func (a *AuthorizationGranted) Exists() bool {
	return a != nil && a.ID != ""
}

// Merge replaces the stored grant with the union of the stored and the new one.
func (a *AuthorizationGranted) Merge(grant AuthorizationGrant) *AuthorizationGranted {
	return &AuthorizationGranted{
		ID:    a.ID,
		Grant: a.Grant.Merge(grant),
	}
}

type AuthorizationGrantedRepository interface {
	// Find returns ErrNotFound when the (client, user) pair has no record yet.
	Find(ctx context.Context, tenant Tenant, clientID, userID string) (*AuthorizationGranted, error)
	Register(ctx context.Context, tenant Tenant, granted *AuthorizationGranted) error
	Update(ctx context.Context, tenant Tenant, granted *AuthorizationGranted) error
}
