package memory

import (
	"context"
	"sync"
	"time"

	"github.com/authcove/idp/pkg/ciba"
	"github.com/authcove/idp/pkg/op"
)

type BackchannelRequestRepository struct {
	requests *store[*ciba.BackchannelAuthenticationRequest]
}

func NewBackchannelRequestRepository() *BackchannelRequestRepository {
	return &BackchannelRequestRepository{requests: newStore[*ciba.BackchannelAuthenticationRequest]()}
}

func (r *BackchannelRequestRepository) Register(_ context.Context, tenant op.Tenant, request *ciba.BackchannelAuthenticationRequest) error {
	r.requests.set(tenantKey(tenant, request.ID), request)
	return nil
}

func (r *BackchannelRequestRepository) Find(_ context.Context, tenant op.Tenant, id string) (*ciba.BackchannelAuthenticationRequest, error) {
	request, ok := r.requests.get(tenantKey(tenant, id))
	if !ok || request.Expired(time.Now()) {
		return nil, op.ErrNotFound
	}
	return request, nil
}

// CibaGrantRepository holds the CIBA grants and arbitrates their status
// transitions. A single mutex spans the compare-and-swap of UpdateWithStatus
// so at most one transition away from pending can ever succeed.
type CibaGrantRepository struct {
	mu          sync.RWMutex
	byAuthReqID map[string]*ciba.Grant
	byRequestID map[string]string
}

func NewCibaGrantRepository() *CibaGrantRepository {
	return &CibaGrantRepository{
		byAuthReqID: make(map[string]*ciba.Grant),
		byRequestID: make(map[string]string),
	}
}

func (r *CibaGrantRepository) Register(_ context.Context, tenant op.Tenant, grant *ciba.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenantKey(tenant, grant.AuthReqID)
	r.byAuthReqID[key] = grant
	r.byRequestID[tenantKey(tenant, grant.RequestID)] = key
	return nil
}

func (r *CibaGrantRepository) FindByAuthReqID(_ context.Context, tenant op.Tenant, authReqID string) (*ciba.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	grant, ok := r.byAuthReqID[tenantKey(tenant, authReqID)]
	if !ok {
		return nil, op.ErrNotFound
	}
	copied := *grant
	return &copied, nil
}

func (r *CibaGrantRepository) FindByRequestID(_ context.Context, tenant op.Tenant, requestID string) (*ciba.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byRequestID[tenantKey(tenant, requestID)]
	if !ok {
		return nil, op.ErrNotFound
	}
	grant, ok := r.byAuthReqID[key]
	if !ok {
		return nil, op.ErrNotFound
	}
	copied := *grant
	return &copied, nil
}

func (r *CibaGrantRepository) UpdateWithStatus(_ context.Context, tenant op.Tenant, grant *ciba.Grant, expected ciba.GrantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenantKey(tenant, grant.AuthReqID)
	stored, ok := r.byAuthReqID[key]
	if !ok {
		return op.ErrNotFound
	}
	if stored.Status != expected {
		return ciba.ErrStatusConflict
	}
	copied := *grant
	r.byAuthReqID[key] = &copied
	return nil
}

func (r *CibaGrantRepository) Delete(_ context.Context, tenant op.Tenant, authReqID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenantKey(tenant, authReqID)
	grant, ok := r.byAuthReqID[key]
	if !ok {
		return op.ErrNotFound
	}
	delete(r.byAuthReqID, key)
	delete(r.byRequestID, tenantKey(tenant, grant.RequestID))
	return nil
}
