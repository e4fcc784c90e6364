package memory

import (
	"context"
	"sync"
	"time"

	"github.com/authcove/idp/pkg/op"
)

// ServerConfigurationRepository returns the same configuration for every
// tenant it was seeded with.
type ServerConfigurationRepository struct {
	configs *store[*op.AuthorizationServerConfiguration]
}

func NewServerConfigurationRepository() *ServerConfigurationRepository {
	return &ServerConfigurationRepository{configs: newStore[*op.AuthorizationServerConfiguration]()}
}

func (r *ServerConfigurationRepository) Seed(tenant op.Tenant, cfg *op.AuthorizationServerConfiguration) {
	r.configs.set(tenant.ID, cfg)
}

func (r *ServerConfigurationRepository) Get(_ context.Context, tenant op.Tenant) (*op.AuthorizationServerConfiguration, error) {
	cfg, ok := r.configs.get(tenant.ID)
	if !ok {
		return nil, op.ErrServerConfigurationNotFound
	}
	return cfg, nil
}

type ClientConfigurationRepository struct {
	clients *store[*op.ClientConfiguration]
}

func NewClientConfigurationRepository() *ClientConfigurationRepository {
	return &ClientConfigurationRepository{clients: newStore[*op.ClientConfiguration]()}
}

func (r *ClientConfigurationRepository) Seed(tenant op.Tenant, cfg *op.ClientConfiguration) {
	r.clients.set(tenantKey(tenant, cfg.ClientID), cfg)
}

func (r *ClientConfigurationRepository) Get(_ context.Context, tenant op.Tenant, clientID string) (*op.ClientConfiguration, error) {
	cfg, ok := r.clients.get(tenantKey(tenant, clientID))
	if !ok {
		return nil, op.ErrClientConfigurationNotFound
	}
	return cfg, nil
}

type AuthorizationRequestRepository struct {
	requests *store[*op.AuthorizationRequest]
}

func NewAuthorizationRequestRepository() *AuthorizationRequestRepository {
	return &AuthorizationRequestRepository{requests: newStore[*op.AuthorizationRequest]()}
}

func (r *AuthorizationRequestRepository) Register(_ context.Context, tenant op.Tenant, request *op.AuthorizationRequest) error {
	r.requests.set(tenantKey(tenant, request.ID), request)
	return nil
}

func (r *AuthorizationRequestRepository) Get(_ context.Context, tenant op.Tenant, id string) (*op.AuthorizationRequest, error) {
	request, ok := r.requests.get(tenantKey(tenant, id))
	if !ok || request.Expired(time.Now()) {
		return nil, op.ErrNotFound
	}
	return request, nil
}

func (r *AuthorizationRequestRepository) Delete(_ context.Context, tenant op.Tenant, id string) error {
	if !r.requests.delete(tenantKey(tenant, id)) {
		return op.ErrNotFound
	}
	return nil
}

type AuthorizationCodeGrantRepository struct {
	grants *store[*op.AuthorizationCodeGrant]
}

func NewAuthorizationCodeGrantRepository() *AuthorizationCodeGrantRepository {
	return &AuthorizationCodeGrantRepository{grants: newStore[*op.AuthorizationCodeGrant]()}
}

func (r *AuthorizationCodeGrantRepository) Register(_ context.Context, tenant op.Tenant, grant *op.AuthorizationCodeGrant) error {
	r.grants.set(tenantKey(tenant, grant.Code), grant)
	return nil
}

func (r *AuthorizationCodeGrantRepository) Find(_ context.Context, tenant op.Tenant, code string) (*op.AuthorizationCodeGrant, error) {
	grant, ok := r.grants.get(tenantKey(tenant, code))
	if !ok || grant.Expired(time.Now()) {
		return nil, op.ErrNotFound
	}
	return grant, nil
}

func (r *AuthorizationCodeGrantRepository) Delete(_ context.Context, tenant op.Tenant, code string) error {
	if !r.grants.delete(tenantKey(tenant, code)) {
		return op.ErrNotFound
	}
	return nil
}

type RefreshTokenGrantRepository struct {
	grants *store[*op.RefreshTokenGrant]
}

func NewRefreshTokenGrantRepository() *RefreshTokenGrantRepository {
	return &RefreshTokenGrantRepository{grants: newStore[*op.RefreshTokenGrant]()}
}

func (r *RefreshTokenGrantRepository) Register(_ context.Context, tenant op.Tenant, grant *op.RefreshTokenGrant) error {
	r.grants.set(tenantKey(tenant, grant.Token), grant)
	return nil
}

func (r *RefreshTokenGrantRepository) Find(_ context.Context, tenant op.Tenant, token string) (*op.RefreshTokenGrant, error) {
	grant, ok := r.grants.get(tenantKey(tenant, token))
	if !ok || grant.Expired(time.Now()) {
		return nil, op.ErrNotFound
	}
	return grant, nil
}

func (r *RefreshTokenGrantRepository) Delete(_ context.Context, tenant op.Tenant, token string) error {
	if !r.grants.delete(tenantKey(tenant, token)) {
		return op.ErrNotFound
	}
	return nil
}

type AuthorizationGrantedRepository struct {
	granted *store[*op.AuthorizationGranted]
}

func NewAuthorizationGrantedRepository() *AuthorizationGrantedRepository {
	return &AuthorizationGrantedRepository{granted: newStore[*op.AuthorizationGranted]()}
}

func grantedKey(tenant op.Tenant, clientID, userID string) string {
	return tenantKey(tenant, clientID+"/"+userID)
}

func (r *AuthorizationGrantedRepository) Find(_ context.Context, tenant op.Tenant, clientID, userID string) (*op.AuthorizationGranted, error) {
	granted, ok := r.granted.get(grantedKey(tenant, clientID, userID))
	if !ok {
		return nil, op.ErrNotFound
	}
	return granted, nil
}

func (r *AuthorizationGrantedRepository) Register(_ context.Context, tenant op.Tenant, granted *op.AuthorizationGranted) error {
	r.granted.set(grantedKey(tenant, granted.Grant.ClientID, granted.Grant.User.ID), granted)
	return nil
}

func (r *AuthorizationGrantedRepository) Update(_ context.Context, tenant op.Tenant, granted *op.AuthorizationGranted) error {
	r.granted.set(grantedKey(tenant, granted.Grant.ClientID, granted.Grant.User.ID), granted)
	return nil
}

type OAuthTokenRepository struct {
	tokens *store[*op.OAuthToken]
}

func NewOAuthTokenRepository() *OAuthTokenRepository {
	return &OAuthTokenRepository{tokens: newStore[*op.OAuthToken]()}
}

func (r *OAuthTokenRepository) Register(_ context.Context, tenant op.Tenant, token *op.OAuthToken) error {
	r.tokens.set(tenantKey(tenant, token.ID), token)
	return nil
}

// Find is not part of the repository contract the core needs; it exists for
// tests and the example server's introspection of issued tokens.
func (r *OAuthTokenRepository) Find(_ context.Context, tenant op.Tenant, id string) (*op.OAuthToken, error) {
	token, ok := r.tokens.get(tenantKey(tenant, id))
	if !ok {
		return nil, op.ErrNotFound
	}
	return token, nil
}

// UserRepository answers the user lookups of the hint resolvers and the
// password flows.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string][]*op.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string][]*op.User)}
}

func (r *UserRepository) Seed(tenant op.Tenant, user *op.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[tenant.ID] = append(r.users[tenant.ID], user)
}

func (r *UserRepository) find(tenant op.Tenant, match func(*op.User) bool) (*op.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users[tenant.ID] {
		if match(user) {
			return user, nil
		}
	}
	return nil, op.ErrNotFound
}

func (r *UserRepository) Get(_ context.Context, tenant op.Tenant, id string) (*op.User, error) {
	return r.find(tenant, func(u *op.User) bool { return u.ID == id })
}

func (r *UserRepository) FindBySub(_ context.Context, tenant op.Tenant, sub string) (*op.User, error) {
	return r.find(tenant, func(u *op.User) bool { return u.Sub == sub })
}

func (r *UserRepository) FindByPhone(_ context.Context, tenant op.Tenant, phone string) (*op.User, error) {
	return r.find(tenant, func(u *op.User) bool { return u.PhoneNumber == phone })
}

func (r *UserRepository) FindByEmail(_ context.Context, tenant op.Tenant, email string) (*op.User, error) {
	return r.find(tenant, func(u *op.User) bool { return u.Email == email })
}

func (r *UserRepository) FindByUsername(_ context.Context, tenant op.Tenant, username string) (*op.User, error) {
	return r.find(tenant, func(u *op.User) bool { return u.Username == username })
}
