package ciba

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
)

// RequestHandler drives a backchannel authentication request from wire
// parameters to a persisted request and pending grant.
type RequestHandler struct {
	ServerConfigs op.ServerConfigurationRepository
	ClientConfigs op.ClientConfigurationRepository
	Requests      RequestRepository
	Grants        GrantRepository
	Users         op.UserQueryRepository
	HintResolvers UserHintResolvers

	logger *slog.Logger
}

func NewRequestHandler(logger *slog.Logger) *RequestHandler {
	return &RequestHandler{
		HintResolvers: NewUserHintResolvers(),
		logger:        logger,
	}
}

// HandleRequest resolves configuration, classifies the request pattern,
// builds the request context and runs client authentication and request
// verification. The context is validated but nothing is persisted yet.
func (h *RequestHandler) HandleRequest(ctx context.Context, tenant op.Tenant, req *oidc.BackchannelAuthenticationRequest, creds op.ClientCredentials) (*RequestContext, error) {
	ctx, span := tracer.Start(ctx, "RequestHandler.HandleRequest")
	defer span.End()

	serverCfg, err := h.ServerConfigs.Get(ctx, tenant)
	if err != nil {
		return nil, oidc.ErrServerError().WithDescription("authorization server configuration unavailable").WithParent(err)
	}
	if creds.ClientID == "" {
		creds.ClientID = req.ClientID
	}
	clientCfg, err := h.ClientConfigs.Get(ctx, tenant, creds.ClientID)
	if err != nil {
		if errors.Is(err, op.ErrClientConfigurationNotFound) {
			return nil, oidc.ErrInvalidClient().WithDescription("client %q is not registered", creds.ClientID)
		}
		return nil, oidc.ErrServerError().WithParent(err)
	}

	pattern := classifyPattern(req)
	if pattern == PatternRequestObject {
		req, err = h.resolveRequestObject(ctx, req, clientCfg)
		if err != nil {
			return nil, err
		}
	}
	if pattern == PatternRequestURI {
		return nil, oidc.ErrInvalidRequest().WithDescription("request_uri is not supported")
	}

	record, err := buildRequest(req, serverCfg, clientCfg)
	if err != nil {
		return nil, err
	}
	reqCtx := &RequestContext{
		Tenant:              tenant,
		Pattern:             pattern,
		Request:             record,
		Credentials:         creds,
		ServerConfiguration: serverCfg,
		ClientConfiguration: clientCfg,
	}
	if err := op.AuthenticateClient(ctx, creds, clientCfg); err != nil {
		return nil, err
	}
	if err := VerifyRequest(ctx, reqCtx); err != nil {
		return nil, err
	}
	return reqCtx, nil
}

// resolveRequestObject verifies the signed request object against the
// client's registered key set and replaces the form parameters with its
// claims. Only the client_id may remain on the form.
func (h *RequestHandler) resolveRequestObject(ctx context.Context, req *oidc.BackchannelAuthenticationRequest, clientCfg *op.ClientConfiguration) (*oidc.BackchannelAuthenticationRequest, error) {
	_, span := tracer.Start(ctx, "resolveRequestObject")
	defer span.End()

	payload, err := op.VerifyAgainstKeySet(req.RequestParam, clientCfg.JWKS)
	if err != nil {
		return nil, oidc.ErrInvalidRequest().WithDescription("request object signature verification failed").WithParent(err)
	}
	resolved := new(oidc.BackchannelAuthenticationRequest)
	if err := resolved.UnmarshalRequestObject(payload); err != nil {
		return nil, oidc.ErrInvalidRequest().WithDescription("malformed request object").WithParent(err)
	}
	resolved.ClientID = req.ClientID
	return resolved, nil
}

func buildRequest(req *oidc.BackchannelAuthenticationRequest, serverCfg *op.AuthorizationServerConfiguration, clientCfg *op.ClientConfiguration) (*BackchannelAuthenticationRequest, error) {
	if req.RequestedExpiry < 0 {
		return nil, oidc.ErrInvalidRequest().WithDescription("requested_expiry must be a positive integer")
	}
	cfg := serverCfg.BackchannelConfig()
	lifetime := cfg.Lifetime
	if req.RequestedExpiry > 0 {
		if requested := time.Duration(req.RequestedExpiry) * time.Second; requested < lifetime {
			lifetime = requested
		}
	}
	return &BackchannelAuthenticationRequest{
		ClientID:                clientCfg.ClientID,
		Profile:                 clientCfg.Profile,
		DeliveryMode:            clientCfg.BackchannelTokenDeliveryMode,
		ClientNotificationToken: req.ClientNotificationToken,
		Scopes:                  req.Scopes,
		ACRValues:               req.ACRValues,
		LoginHint:               req.LoginHint,
		LoginHintToken:          req.LoginHintToken,
		IDTokenHint:             req.IDTokenHint,
		BindingMessage:          req.BindingMessage,
		UserCode:                req.UserCode,
		AuthorizationDetails:    req.AuthorizationDetails,
		ExpiresAt:               time.Now().Add(lifetime),
		Interval:                cfg.PollInterval,
	}, nil
}

// HandleIssueResponse persists the validated request together with its
// pending grant and returns the auth_req_id response body.
func (h *RequestHandler) HandleIssueResponse(ctx context.Context, reqCtx *RequestContext) (*oidc.BackchannelAuthenticationResponse, error) {
	ctx, span := tracer.Start(ctx, "RequestHandler.HandleIssueResponse")
	defer span.End()

	user, err := h.HintResolvers.Resolve(ctx, reqCtx.Tenant, h.Users, reqCtx.Request)
	if err != nil {
		return nil, err
	}

	reqCtx.Request.ID = uuid.NewString()
	if err := h.Requests.Register(ctx, reqCtx.Tenant, reqCtx.Request); err != nil {
		return nil, oidc.ErrServerError().WithParent(err)
	}

	grant := &Grant{
		ID:        uuid.NewString(),
		AuthReqID: uuid.NewString(),
		RequestID: reqCtx.Request.ID,
		Status:    GrantStatusPending,
		Authorization: op.AuthorizationGrant{
			User:                 *user,
			ClientID:             reqCtx.Request.ClientID,
			GrantType:            oidc.GrantTypeCIBA,
			Scopes:               reqCtx.Request.Scopes,
			AuthorizationDetails: reqCtx.Request.AuthorizationDetails,
		},
		ExpiresAt: reqCtx.Request.ExpiresAt,
	}
	if err := h.Grants.Register(ctx, reqCtx.Tenant, grant); err != nil {
		return nil, oidc.ErrServerError().WithParent(err)
	}
	h.logger.InfoContext(ctx, "backchannel authentication request accepted",
		"client_id", reqCtx.Request.ClientID,
		"delivery_mode", reqCtx.Request.DeliveryMode,
	)

	return &oidc.BackchannelAuthenticationResponse{
		AuthReqID: grant.AuthReqID,
		ExpiresIn: reqCtx.ExpiresIn(),
		Interval:  reqCtx.Interval(),
	}, nil
}

// HandleGettingRequest looks up a stored backchannel authentication request.
func (h *RequestHandler) HandleGettingRequest(ctx context.Context, tenant op.Tenant, id string) (*BackchannelAuthenticationRequest, error) {
	ctx, span := tracer.Start(ctx, "RequestHandler.HandleGettingRequest")
	defer span.End()

	request, err := h.Requests.Find(ctx, tenant, id)
	if err != nil {
		if errors.Is(err, op.ErrNotFound) {
			return nil, oidc.ErrInvalidRequest().WithDescription("backchannel authentication request does not exist")
		}
		return nil, oidc.ErrServerError().WithParent(err)
	}
	return request, nil
}

// AuthorizeHandler fires the pending to authorized transition and the
// resulting client notification.
type AuthorizeHandler struct {
	Grants   GrantRepository
	Notifier *ClientNotificationService
}

// Handle loads the grant belonging to the backchannel request, requires its
// status to still be pending and transitions it to authorized. The
// conditional repository update is the sole arbiter between concurrent
// transitions; a lost race reports as invalid_grant like any other
// non-pending grant.
func (h *AuthorizeHandler) Handle(ctx context.Context, tenant op.Tenant, requestID string, authentication op.Authentication) error {
	ctx, span := tracer.Start(ctx, "AuthorizeHandler.Handle")
	defer span.End()

	grant, err := findPendingGrant(ctx, h.Grants, tenant, requestID)
	if err != nil {
		return err
	}
	next := grant.Authorize(authentication)
	if err := h.Grants.UpdateWithStatus(ctx, tenant, next, GrantStatusPending); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return oidc.ErrInvalidGrant().WithDescription("ciba grant is no longer pending")
		}
		return oidc.ErrServerError().WithParent(err)
	}
	return h.Notifier.Notify(ctx, tenant, next)
}

// DenyHandler fires the pending to access_denied transition. Ping clients
// are notified so they stop waiting; push clients receive an error body in
// place of the tokens they expected. Poll clients learn about the denial on
// their next token request.
type DenyHandler struct {
	Grants   GrantRepository
	Requests RequestRepository
	Notifier *ClientNotificationService
}

func (h *DenyHandler) Handle(ctx context.Context, tenant op.Tenant, requestID string) error {
	ctx, span := tracer.Start(ctx, "DenyHandler.Handle")
	defer span.End()

	grant, err := findPendingGrant(ctx, h.Grants, tenant, requestID)
	if err != nil {
		return err
	}
	next := grant.Deny()
	if err := h.Grants.UpdateWithStatus(ctx, tenant, next, GrantStatusPending); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return oidc.ErrInvalidGrant().WithDescription("ciba grant is no longer pending")
		}
		return oidc.ErrServerError().WithParent(err)
	}
	request, err := h.Requests.Find(ctx, tenant, next.RequestID)
	if err != nil {
		return oidc.ErrServerError().WithParent(err)
	}
	switch {
	case request.IsPingMode():
		return h.Notifier.Notify(ctx, tenant, next)
	case request.IsPushMode():
		return h.Notifier.NotifyError(ctx, tenant, next, oidc.ErrAccessDenied().WithDescription("the end-user denied the authorization request"))
	}
	return nil
}

func findPendingGrant(ctx context.Context, grants GrantRepository, tenant op.Tenant, requestID string) (*Grant, error) {
	grant, err := grants.FindByRequestID(ctx, tenant, requestID)
	if err != nil {
		if errors.Is(err, op.ErrNotFound) {
			return nil, oidc.ErrInvalidGrant().WithDescription("ciba grant does not exist")
		}
		return nil, oidc.ErrServerError().WithParent(err)
	}
	if grant.Expired(time.Now()) {
		return nil, oidc.ErrInvalidGrant().WithDescription("ciba grant is expired")
	}
	if !grant.IsPending() {
		return nil, oidc.ErrInvalidGrant().WithDescription("ciba grant is no longer pending")
	}
	return grant, nil
}
