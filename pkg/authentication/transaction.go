package authentication

import (
	"context"
	"time"

	"github.com/authcove/idp/pkg/op"
)

const (
	// FlowOAuth marks a transaction started by a front-channel authorization
	// request.
	FlowOAuth AuthorizationFlow = "oauth"
	// FlowCIBA marks a transaction started by a backchannel authentication
	// request.
	FlowCIBA AuthorizationFlow = "ciba"
)

type AuthorizationFlow string

// AuthorizationIdentifier keys an authentication transaction to the
// authorization it belongs to, shared between the OAuth and the CIBA flow.
type AuthorizationIdentifier struct {
	Flow AuthorizationFlow
	ID   string
}

func (i AuthorizationIdentifier) Exists() bool {
	return i.ID != ""
}

// Request is the originating authentication request of a transaction: who
// should authenticate, with which of the available interaction types, and
// until when.
type Request struct {
	AuthorizationID AuthorizationIdentifier
	ClientID        string
	User            op.User

	AvailableTypes []string
	RequiredTypes  []string

	ACRValues      []string
	BindingMessage string

	ExpiresAt time.Time
}

// InteractionResults tallies every interactor invocation of a transaction.
type InteractionResults struct {
	CallCount    int
	SuccessCount int
	FailureCount int
}

// Transaction is the tenant-scoped aggregate accumulating interaction
// results until it judges the authentication complete or denied. All methods
// are value semantic: UpdateWith returns the successor aggregate, callers
// persist what they get back.
type Transaction struct {
	ID              string
	AuthorizationID AuthorizationIdentifier
	Request         Request

	User           op.User
	Authentication op.Authentication

	Results        InteractionResults
	SatisfiedTypes []string
	Denied         bool
}

// UpdateWith folds one interaction result into the tally. This is the only
// mutation path of the aggregate.
func (t Transaction) UpdateWith(result Result) Transaction {
	t.Results.CallCount++
	switch result.Status {
	case StatusSuccess:
		t.Results.SuccessCount++
	default:
		t.Results.FailureCount++
	}
	if result.Status != StatusSuccess {
		return t
	}
	if result.User != nil {
		t.User = *result.User
	}
	t.Authentication = t.Authentication.Merge(result.Authentication)
	if result.OperationType == OperationDeny {
		t.Denied = true
	}
	if result.OperationType == OperationAuthenticate && !containsType(t.SatisfiedTypes, result.Type) {
		satisfied := make([]string, len(t.SatisfiedTypes), len(t.SatisfiedTypes)+1)
		copy(satisfied, t.SatisfiedTypes)
		t.SatisfiedTypes = append(satisfied, result.Type)
	}
	return t
}

// IsComplete reports whether every required interaction type succeeded and
// the user did not deny.
func (t *Transaction) IsComplete() bool {
	if t.Denied {
		return false
	}
	if len(t.Request.RequiredTypes) == 0 {
		return t.Results.SuccessCount > 0
	}
	for _, required := range t.Request.RequiredTypes {
		if !containsType(t.SatisfiedTypes, required) {
			return false
		}
	}
	return true
}

// IsDeny reports whether the user explicitly rejected the authorization.
func (t *Transaction) IsDeny() bool {
	return t.Denied
}

func (t *Transaction) IsExpired(now time.Time) bool {
	return !t.Request.ExpiresAt.IsZero() && now.After(t.Request.ExpiresAt)
}

func containsType(types []string, typ string) bool {
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

// TransactionRepository persists transactions for the lifetime of their
// authorization. Cleanup of finished transactions is not this package's job.
type TransactionRepository interface {
	Register(ctx context.Context, tenant op.Tenant, transaction *Transaction) error
	Find(ctx context.Context, tenant op.Tenant, id AuthorizationIdentifier) (*Transaction, error)
	Update(ctx context.Context, tenant op.Tenant, transaction *Transaction) error
}
