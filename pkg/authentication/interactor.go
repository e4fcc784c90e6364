package authentication

import (
	"context"

	"github.com/authcove/idp/pkg/op"
)

const (
	StatusSuccess Status = iota
	StatusClientError
	StatusServerError
)

// Status classifies the outcome of one interactor invocation.
type Status int

func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

const (
	// OperationChallenge started an interaction, e.g. sent a one time code.
	OperationChallenge OperationType = "challenge"
	// OperationAuthenticate produced authentication evidence.
	OperationAuthenticate OperationType = "authenticate"
	// OperationDeny recorded the user's rejection of the authorization.
	OperationDeny OperationType = "deny"
)

type OperationType string

// InteractionRequest carries the parameters of one interaction step as
// submitted by the authentication device.
type InteractionRequest map[string]any

func (r InteractionRequest) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Result is what every interactor returns: an outcome status, the evidence
// gathered on success, a response payload for the device and an event type
// for audit publication.
type Result struct {
	Status        Status
	Type          string
	OperationType OperationType
	Method        string

	User           *op.User
	Authentication op.Authentication

	Response  map[string]any
	EventType string

	Error error
}

func ClientErrorResult(typ string, err error) Result {
	return Result{Status: StatusClientError, Type: typ, Error: err}
}

func ServerErrorResult(typ string, err error) Result {
	return Result{Status: StatusServerError, Type: typ, Error: err}
}

// Interactor performs one kind of authentication interaction. Implementations
// carry their own gateways and storage; the dispatch only looks them up and
// invokes them.
type Interactor interface {
	Interact(ctx context.Context, tenant op.Tenant, authorizationID AuthorizationIdentifier, typ string, req InteractionRequest, transaction *Transaction, users op.UserQueryRepository) Result
}

// Interactors is the type-keyed interactor lookup. All registration happens
// explicitly at process start; the map is read-only afterwards.
type Interactors struct {
	byType map[string]Interactor
}

func NewInteractors() *Interactors {
	return &Interactors{byType: make(map[string]Interactor)}
}

func (i *Interactors) Register(typ string, interactor Interactor) {
	i.byType[typ] = interactor
}

func (i *Interactors) Get(typ string) (Interactor, error) {
	interactor, ok := i.byType[typ]
	if !ok {
		return nil, ErrUnsupportedInteraction
	}
	return interactor, nil
}
