package ciba

import (
	"context"
	"errors"
	"net/http"
	"time"

	httphelper "github.com/authcove/idp/pkg/http"
	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
)

// TokenHandler is the poll and ping mode token exchange: clients present
// their auth_req_id at the token endpoint until the grant leaves pending.
// It registers itself as the handler of the ciba extension grant type.
type TokenHandler struct {
	Endpoint *op.TokenEndpoint
	Grants   GrantRepository
	Requests RequestRepository
}

func NewTokenHandler(endpoint *op.TokenEndpoint, grants GrantRepository, requests RequestRepository) *TokenHandler {
	h := &TokenHandler{
		Endpoint: endpoint,
		Grants:   grants,
		Requests: requests,
	}
	endpoint.RegisterGrantHandler(oidc.GrantTypeCIBA, h.serveHTTP)
	return h
}

func (h *TokenHandler) serveHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "TokenHandler.serveHTTP")
	defer span.End()
	r = r.WithContext(ctx)

	tokenReq := new(oidc.BackchannelTokenRequest)
	if err := op.ParseAuthenticatedTokenRequest(r, h.Endpoint.Decoder(), tokenReq); err != nil {
		op.RequestError(w, r, err, h.Endpoint.Logger())
		return
	}
	if tokenReq.AuthReqID == "" {
		op.RequestError(w, r, oidc.ErrInvalidRequest().WithDescription("auth_req_id missing"), h.Endpoint.Logger())
		return
	}
	reqCtx, err := h.Endpoint.NewTokenRequestContext(r, oidc.GrantTypeCIBA, tokenReq.ClientID)
	if err != nil {
		op.RequestError(w, r, err, h.Endpoint.Logger())
		return
	}
	reqCtx.Credentials.ClientSecret = tokenReq.ClientSecret

	if err := op.AuthenticateClient(ctx, reqCtx.Credentials, reqCtx.ClientConfiguration); err != nil {
		op.RequestError(w, r, err, h.Endpoint.Logger())
		return
	}
	resp, err := h.exchange(ctx, reqCtx, tokenReq.AuthReqID)
	if err != nil {
		op.RequestError(w, r, err, h.Endpoint.Logger())
		return
	}
	httphelper.MarshalJSON(w, resp)
}

// exchange maps the grant status to the CIBA token response: pending answers
// authorization_pending (or slow_down when polled faster than the interval),
// denial answers access_denied, expiry answers expired_token and an
// authorized grant is redeemed exactly once.
func (h *TokenHandler) exchange(ctx context.Context, reqCtx *op.TokenRequestContext, authReqID string) (*oidc.AccessTokenResponse, error) {
	if !reqCtx.ServerConfiguration.GrantTypeSupported(oidc.GrantTypeCIBA) {
		return nil, oidc.ErrUnsupportedGrantType().WithDescription("ciba grant is not supported by this server")
	}
	if !reqCtx.ClientConfiguration.GrantTypeAllowed(oidc.GrantTypeCIBA) {
		return nil, oidc.ErrUnauthorizedClient().WithDescription("client is not allowed to use the ciba grant")
	}
	grant, err := h.Grants.FindByAuthReqID(ctx, reqCtx.Tenant, authReqID)
	if err != nil {
		if errors.Is(err, op.ErrNotFound) {
			return nil, oidc.ErrInvalidGrant().WithDescription("auth_req_id does not exist")
		}
		return nil, oidc.ErrServerError().WithParent(err)
	}
	if grant.Authorization.ClientID != reqCtx.ClientConfiguration.ClientID {
		return nil, oidc.ErrInvalidGrant().WithDescription("auth_req_id was issued to another client")
	}
	request, err := h.Requests.Find(ctx, reqCtx.Tenant, grant.RequestID)
	if err != nil && !errors.Is(err, op.ErrNotFound) {
		return nil, oidc.ErrServerError().WithParent(err)
	}
	if request != nil && request.IsPushMode() {
		return nil, oidc.ErrUnauthorizedClient().WithDescription("push mode clients must not call the token endpoint")
	}

	now := time.Now()
	if grant.Expired(now) {
		return nil, oidc.ErrExpiredToken().WithDescription("auth_req_id is expired")
	}
	switch grant.Status {
	case GrantStatusPending:
		return nil, h.pendingResponse(ctx, reqCtx, grant, request, now)
	case GrantStatusAccessDenied:
		return nil, oidc.ErrAccessDenied().WithDescription("the end-user denied the authorization request")
	case GrantStatusAuthorized:
	default:
		return nil, oidc.ErrInvalidGrant().WithDescription("auth_req_id does not exist")
	}

	// The authorized grant is single use: delete before minting so a second
	// poll with the same auth_req_id cannot succeed.
	if err := h.Grants.Delete(ctx, reqCtx.Tenant, authReqID); err != nil {
		return nil, oidc.ErrInvalidGrant().WithDescription("auth_req_id does not exist").WithParent(err)
	}
	return h.Endpoint.IssueTokens(ctx, reqCtx, grant.Authorization)
}

// pendingResponse answers authorization_pending and records the poll time.
// Polling again before the interval elapsed answers slow_down instead.
func (h *TokenHandler) pendingResponse(ctx context.Context, reqCtx *op.TokenRequestContext, grant *Grant, request *BackchannelAuthenticationRequest, now time.Time) error {
	if request != nil && !grant.LastPolledAt.IsZero() && now.Before(grant.LastPolledAt.Add(request.Interval)) {
		return oidc.ErrSlowDown().WithDescription("polling faster than the interval allows")
	}
	polled := *grant
	polled.LastPolledAt = now
	// A lost race here means an authorize or deny transition just happened;
	// the client learns about it on its next poll.
	if err := h.Grants.UpdateWithStatus(ctx, reqCtx.Tenant, &polled, GrantStatusPending); err != nil && !errors.Is(err, ErrStatusConflict) {
		return oidc.ErrServerError().WithParent(err)
	}
	return oidc.ErrAuthorizationPending()
}
