// Package webauthn implements WebAuthn assertion based authentication.
package webauthn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/authcove/idp/pkg/authentication"
	"github.com/authcove/idp/pkg/op"
)

const (
	// TypeChallenge begins the assertion ceremony and returns the options the
	// authenticator needs.
	TypeChallenge = "webauthn-authentication-challenge"
	// TypeVerification validates the signed assertion.
	TypeVerification = "webauthn-authentication"

	MethodWebAuthn = "fido"
)

// CredentialRepository stores the registered WebAuthn credentials per user.
type CredentialRepository interface {
	List(ctx context.Context, tenant op.Tenant, userID string) ([]webauthn.Credential, error)
	Update(ctx context.Context, tenant op.Tenant, userID string, credential *webauthn.Credential) error
}

// SessionRepository keeps the ceremony session data between challenge and
// verification.
type SessionRepository interface {
	Register(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, session *webauthn.SessionData) error
	Find(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) (*webauthn.SessionData, error)
	Delete(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) error
}

// user adapts an op.User and its stored credentials to the webauthn.User
// contract.
type user struct {
	op.User
	credentials []webauthn.Credential
}

func (u *user) WebAuthnID() []byte {
	return []byte(u.ID)
}

func (u *user) WebAuthnName() string {
	return u.Username
}

func (u *user) WebAuthnDisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func (u *user) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func (u *user) WebAuthnIcon() string {
	return ""
}

// ChallengeInteractor starts the assertion ceremony for the transaction's
// user and hands the login options to the authentication device.
type ChallengeInteractor struct {
	WebAuthn    *webauthn.WebAuthn
	Credentials CredentialRepository
	Sessions    SessionRepository
}

func (i *ChallengeInteractor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	u, result, ok := loadUser(ctx, tenant, typ, transaction, i.Credentials)
	if !ok {
		return result
	}
	options, session, err := i.WebAuthn.BeginLogin(u)
	if err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	if err := i.Sessions.Register(ctx, tenant, id, session); err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationChallenge,
		Response:      map[string]any{"publicKey": options.Response},
		EventType:     "webauthn_authentication_challenge",
	}
}

// VerificationInteractor validates the signed assertion against the stored
// session and the user's registered credentials.
type VerificationInteractor struct {
	WebAuthn    *webauthn.WebAuthn
	Credentials CredentialRepository
	Sessions    SessionRepository
}

func (i *VerificationInteractor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	assertion := req.String("assertion_response")
	if assertion == "" {
		return authentication.ClientErrorResult(typ, fmt.Errorf("assertion_response is required"))
	}
	parsed, err := protocol.ParseCredentialRequestResponseBody(strings.NewReader(assertion))
	if err != nil {
		return authentication.ClientErrorResult(typ, err)
	}
	session, err := i.Sessions.Find(ctx, tenant, id)
	if err != nil {
		return authentication.ClientErrorResult(typ, fmt.Errorf("no outstanding webauthn challenge"))
	}
	u, result, ok := loadUser(ctx, tenant, typ, transaction, i.Credentials)
	if !ok {
		return result
	}
	credential, err := i.WebAuthn.ValidateLogin(u, *session, parsed)
	if err != nil {
		return authentication.ClientErrorResult(typ, err)
	}
	if err := i.Sessions.Delete(ctx, tenant, id); err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	// Persist the updated sign counter for clone detection.
	if err := i.Credentials.Update(ctx, tenant, u.ID, credential); err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationAuthenticate,
		Method:        MethodWebAuthn,
		User:          &u.User,
		Authentication: op.Authentication{
			Methods: []string{MethodWebAuthn},
			Time:    time.Now(),
		},
		EventType: "webauthn_authentication_success",
	}
}

func loadUser(ctx context.Context, tenant op.Tenant, typ string, transaction *authentication.Transaction, credentials CredentialRepository) (*user, authentication.Result, bool) {
	stored := transaction.Request.User
	if stored.ID == "" {
		return nil, authentication.ClientErrorResult(typ, fmt.Errorf("transaction has no resolved user")), false
	}
	creds, err := credentials.List(ctx, tenant, stored.ID)
	if err != nil {
		return nil, authentication.ServerErrorResult(typ, err), false
	}
	if len(creds) == 0 {
		return nil, authentication.ClientErrorResult(typ, fmt.Errorf("user has no registered webauthn credentials")), false
	}
	return &user{User: stored, credentials: creds}, authentication.Result{}, true
}
