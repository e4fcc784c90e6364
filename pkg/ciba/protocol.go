package ciba

import (
	"context"
	"log/slog"

	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
)

// Protocol is the boundary facade over the CIBA flows. Every method catches
// the typed errors of its flow, logs them and maps them to an ErrorResult;
// callers never see a raw error escape.
type Protocol struct {
	Handler    *RequestHandler
	Authorizer *AuthorizeHandler
	Denier     *DenyHandler

	// OnIssued, when set, runs after a request and its pending grant were
	// persisted, before the response returns to the client. The entry layer
	// uses it to start the end-user interaction, typically an authentication
	// device notification. A failure here fails the whole request.
	OnIssued func(ctx context.Context, tenant op.Tenant, reqCtx *RequestContext, resp *oidc.BackchannelAuthenticationResponse) error

	requestErrors   errorHandler
	authorizeErrors errorHandler
	denyErrors      errorHandler
	getErrors       errorHandler
}

func NewProtocol(handler *RequestHandler, authorizer *AuthorizeHandler, denier *DenyHandler, logger *slog.Logger) *Protocol {
	return &Protocol{
		Handler:         handler,
		Authorizer:      authorizer,
		Denier:          denier,
		requestErrors:   errorHandler{flow: "request", logger: logger},
		authorizeErrors: errorHandler{flow: "authorize", logger: logger},
		denyErrors:      errorHandler{flow: "deny", logger: logger},
		getErrors:       errorHandler{flow: "get", logger: logger},
	}
}

// Request runs the full backchannel authentication request flow: validation,
// client authentication and persistence of request and pending grant.
func (p *Protocol) Request(ctx context.Context, tenant op.Tenant, req *oidc.BackchannelAuthenticationRequest, creds op.ClientCredentials) (*oidc.BackchannelAuthenticationResponse, *ErrorResult) {
	ctx, span := tracer.Start(ctx, "Protocol.Request")
	defer span.End()

	reqCtx, err := p.Handler.HandleRequest(ctx, tenant, req, creds)
	if err != nil {
		return nil, p.requestErrors.handle(ctx, err)
	}
	resp, err := p.Handler.HandleIssueResponse(ctx, reqCtx)
	if err != nil {
		return nil, p.requestErrors.handle(ctx, err)
	}
	if p.OnIssued != nil {
		if err := p.OnIssued(ctx, tenant, reqCtx, resp); err != nil {
			return nil, p.requestErrors.handle(ctx, oidc.DefaultToServerError(err, "starting the end-user interaction failed"))
		}
	}
	return resp, nil
}

// Authorize transitions the grant of the given backchannel request to
// authorized and notifies the client.
func (p *Protocol) Authorize(ctx context.Context, tenant op.Tenant, requestID string, authentication op.Authentication) *ErrorResult {
	ctx, span := tracer.Start(ctx, "Protocol.Authorize")
	defer span.End()

	if err := p.Authorizer.Handle(ctx, tenant, requestID, authentication); err != nil {
		return p.authorizeErrors.handle(ctx, err)
	}
	return nil
}

// Deny transitions the grant of the given backchannel request to
// access_denied.
func (p *Protocol) Deny(ctx context.Context, tenant op.Tenant, requestID string) *ErrorResult {
	ctx, span := tracer.Start(ctx, "Protocol.Deny")
	defer span.End()

	if err := p.Denier.Handle(ctx, tenant, requestID); err != nil {
		return p.denyErrors.handle(ctx, err)
	}
	return nil
}

// Get returns a stored backchannel authentication request, e.g. for the
// authentication device to render binding message and scopes.
func (p *Protocol) Get(ctx context.Context, tenant op.Tenant, id string) (*BackchannelAuthenticationRequest, *ErrorResult) {
	ctx, span := tracer.Start(ctx, "Protocol.Get")
	defer span.End()

	request, err := p.Handler.HandleGettingRequest(ctx, tenant, id)
	if err != nil {
		return nil, p.getErrors.handle(ctx, err)
	}
	return request, nil
}
