package ciba

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httphelper "github.com/authcove/idp/pkg/http"
	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
)

// ClientNotificationGateway delivers a notification body to a client's
// backchannel notification endpoint.
type ClientNotificationGateway interface {
	Notify(ctx context.Context, endpoint, notificationToken string, body *oidc.ClientNotificationBody) error
}

// ClientNotificationService tells ping and push clients that their
// backchannel authentication request completed. Push mode additionally mints
// the token set and persists it, exactly as the poll token exchange would.
type ClientNotificationService struct {
	Requests      RequestRepository
	ServerConfigs op.ServerConfigurationRepository
	ClientConfigs op.ClientConfigurationRepository
	Granted       op.AuthorizationGrantedRepository
	Tokens        op.OAuthTokenRepository
	RefreshGrants op.RefreshTokenGrantRepository
	Crypto        op.Crypto
	Gateway       ClientNotificationGateway

	logger *slog.Logger
}

func NewClientNotificationService(gateway ClientNotificationGateway, logger *slog.Logger) *ClientNotificationService {
	return &ClientNotificationService{
		Gateway: gateway,
		logger:  logger,
	}
}

// Notify performs the delivery matching the request's mode. Poll clients are
// never contacted. Delivery failures propagate to the caller; retrying is the
// gateway's business, not this service's.
func (s *ClientNotificationService) Notify(ctx context.Context, tenant op.Tenant, grant *Grant) error {
	ctx, span := tracer.Start(ctx, "ClientNotificationService.Notify")
	defer span.End()

	request, err := s.Requests.Find(ctx, tenant, grant.RequestID)
	if err != nil {
		return oidc.ErrServerError().WithDescription("backchannel authentication request unavailable").WithParent(err)
	}
	if !request.DeliveryMode.RequiresNotification() {
		return nil
	}
	clientCfg, err := s.ClientConfigs.Get(ctx, tenant, request.ClientID)
	if err != nil {
		return oidc.ErrServerError().WithParent(err)
	}

	body := &oidc.ClientNotificationBody{AuthReqID: grant.AuthReqID}
	if request.IsPushMode() {
		serverCfg, err := s.ServerConfigs.Get(ctx, tenant)
		if err != nil {
			return oidc.ErrServerError().WithParent(err)
		}
		// The push body always carries a refresh token, even for clients
		// without the refresh_token grant registered.
		resp, token, err := op.CreateTokenResponse(ctx, grant.Authorization, serverCfg, clientCfg, s.Crypto, op.WithRefreshToken())
		if err != nil {
			return oidc.ErrServerError().WithDescription("token creation failed").WithParent(err)
		}
		if err := op.RegisterOrUpdateGranted(ctx, s.Granted, tenant, grant.Authorization); err != nil {
			return oidc.ErrServerError().WithParent(err)
		}
		if err := s.Tokens.Register(ctx, tenant, token); err != nil {
			return oidc.ErrServerError().WithParent(err)
		}
		refreshGrant := &op.RefreshTokenGrant{
			Token:     resp.RefreshToken,
			ClientID:  grant.Authorization.ClientID,
			Grant:     grant.Authorization,
			ExpiresAt: time.Now().Add(serverCfg.RefreshTokenLifetime),
		}
		if err := s.RefreshGrants.Register(ctx, tenant, refreshGrant); err != nil {
			return oidc.ErrServerError().WithParent(err)
		}
		body.AccessToken = resp.AccessToken
		body.TokenType = resp.TokenType
		body.ExpiresIn = resp.ExpiresIn
		body.RefreshToken = resp.RefreshToken
		body.IDToken = resp.IDToken
	}

	s.logger.InfoContext(ctx, "sending client notification",
		"client_id", request.ClientID, "delivery_mode", request.DeliveryMode)
	if err := s.Gateway.Notify(ctx, clientCfg.BackchannelClientNotificationEndpoint, request.ClientNotificationToken, body); err != nil {
		return oidc.ErrServerError().WithDescription("client notification delivery failed").WithParent(err)
	}
	return nil
}

// NotifyError informs a notification client that its request finished
// without tokens, e.g. because the end-user denied it.
func (s *ClientNotificationService) NotifyError(ctx context.Context, tenant op.Tenant, grant *Grant, notifyErr *oidc.Error) error {
	ctx, span := tracer.Start(ctx, "ClientNotificationService.NotifyError")
	defer span.End()

	request, err := s.Requests.Find(ctx, tenant, grant.RequestID)
	if err != nil {
		return oidc.ErrServerError().WithParent(err)
	}
	if !request.DeliveryMode.RequiresNotification() {
		return nil
	}
	clientCfg, err := s.ClientConfigs.Get(ctx, tenant, request.ClientID)
	if err != nil {
		return oidc.ErrServerError().WithParent(err)
	}
	body := &oidc.ClientNotificationBody{
		AuthReqID:        grant.AuthReqID,
		Error:            string(notifyErr.ErrorType),
		ErrorDescription: notifyErr.Description,
	}
	if err := s.Gateway.Notify(ctx, clientCfg.BackchannelClientNotificationEndpoint, request.ClientNotificationToken, body); err != nil {
		return oidc.ErrServerError().WithDescription("client notification delivery failed").WithParent(err)
	}
	return nil
}

// HTTPClientNotificationGateway posts notification bodies over HTTP,
// authenticating with the client notification token as a bearer token.
type HTTPClientNotificationGateway struct {
	Client *http.Client
}

func NewHTTPClientNotificationGateway() *HTTPClientNotificationGateway {
	return &HTTPClientNotificationGateway{Client: httphelper.DefaultHTTPClient}
}

func (g *HTTPClientNotificationGateway) Notify(ctx context.Context, endpoint, notificationToken string, body *oidc.ClientNotificationBody) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+notificationToken)
	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("client notification endpoint answered %s", resp.Status)
	}
	return nil
}
