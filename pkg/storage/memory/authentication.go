package memory

import (
	"context"

	wa "github.com/go-webauthn/webauthn/webauthn"

	"github.com/authcove/idp/pkg/authentication"
	"github.com/authcove/idp/pkg/authentication/email"
	"github.com/authcove/idp/pkg/authentication/sms"
	"github.com/authcove/idp/pkg/op"
)

func authorizationKey(tenant op.Tenant, id authentication.AuthorizationIdentifier) string {
	return tenantKey(tenant, string(id.Flow)+"/"+id.ID)
}

type TransactionRepository struct {
	transactions *store[*authentication.Transaction]
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{transactions: newStore[*authentication.Transaction]()}
}

func (r *TransactionRepository) Register(_ context.Context, tenant op.Tenant, transaction *authentication.Transaction) error {
	r.transactions.set(authorizationKey(tenant, transaction.AuthorizationID), transaction)
	return nil
}

func (r *TransactionRepository) Find(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) (*authentication.Transaction, error) {
	transaction, ok := r.transactions.get(authorizationKey(tenant, id))
	if !ok {
		return nil, op.ErrNotFound
	}
	copied := *transaction
	return &copied, nil
}

func (r *TransactionRepository) Update(_ context.Context, tenant op.Tenant, transaction *authentication.Transaction) error {
	r.transactions.set(authorizationKey(tenant, transaction.AuthorizationID), transaction)
	return nil
}

type SMSChallengeRepository struct {
	challenges *store[*sms.Challenge]
}

func NewSMSChallengeRepository() *SMSChallengeRepository {
	return &SMSChallengeRepository{challenges: newStore[*sms.Challenge]()}
}

func (r *SMSChallengeRepository) Register(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, challenge *sms.Challenge) error {
	r.challenges.set(authorizationKey(tenant, id), challenge)
	return nil
}

func (r *SMSChallengeRepository) Find(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) (*sms.Challenge, error) {
	challenge, ok := r.challenges.get(authorizationKey(tenant, id))
	if !ok {
		return nil, op.ErrNotFound
	}
	return challenge, nil
}

func (r *SMSChallengeRepository) Delete(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) error {
	if !r.challenges.delete(authorizationKey(tenant, id)) {
		return op.ErrNotFound
	}
	return nil
}

type EmailChallengeRepository struct {
	challenges *store[*email.Challenge]
}

func NewEmailChallengeRepository() *EmailChallengeRepository {
	return &EmailChallengeRepository{challenges: newStore[*email.Challenge]()}
}

func (r *EmailChallengeRepository) Register(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, challenge *email.Challenge) error {
	r.challenges.set(authorizationKey(tenant, id), challenge)
	return nil
}

func (r *EmailChallengeRepository) Find(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) (*email.Challenge, error) {
	challenge, ok := r.challenges.get(authorizationKey(tenant, id))
	if !ok {
		return nil, op.ErrNotFound
	}
	return challenge, nil
}

func (r *EmailChallengeRepository) Delete(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) error {
	if !r.challenges.delete(authorizationKey(tenant, id)) {
		return op.ErrNotFound
	}
	return nil
}

type WebAuthnSessionRepository struct {
	sessions *store[*wa.SessionData]
}

func NewWebAuthnSessionRepository() *WebAuthnSessionRepository {
	return &WebAuthnSessionRepository{sessions: newStore[*wa.SessionData]()}
}

func (r *WebAuthnSessionRepository) Register(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, session *wa.SessionData) error {
	r.sessions.set(authorizationKey(tenant, id), session)
	return nil
}

func (r *WebAuthnSessionRepository) Find(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) (*wa.SessionData, error) {
	session, ok := r.sessions.get(authorizationKey(tenant, id))
	if !ok {
		return nil, op.ErrNotFound
	}
	return session, nil
}

func (r *WebAuthnSessionRepository) Delete(_ context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) error {
	if !r.sessions.delete(authorizationKey(tenant, id)) {
		return op.ErrNotFound
	}
	return nil
}

type WebAuthnCredentialRepository struct {
	credentials *store[[]wa.Credential]
}

func NewWebAuthnCredentialRepository() *WebAuthnCredentialRepository {
	return &WebAuthnCredentialRepository{credentials: newStore[[]wa.Credential]()}
}

func (r *WebAuthnCredentialRepository) Seed(tenant op.Tenant, userID string, credential wa.Credential) {
	key := tenantKey(tenant, userID)
	creds, _ := r.credentials.get(key)
	r.credentials.set(key, append(creds, credential))
}

func (r *WebAuthnCredentialRepository) List(_ context.Context, tenant op.Tenant, userID string) ([]wa.Credential, error) {
	creds, _ := r.credentials.get(tenantKey(tenant, userID))
	return creds, nil
}

func (r *WebAuthnCredentialRepository) Update(_ context.Context, tenant op.Tenant, userID string, credential *wa.Credential) error {
	key := tenantKey(tenant, userID)
	creds, _ := r.credentials.get(key)
	for i := range creds {
		if string(creds[i].ID) == string(credential.ID) {
			creds[i] = *credential
		}
	}
	r.credentials.set(key, creds)
	return nil
}
