package ciba

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
)

func testRequestContext(profile oidc.Profile) *RequestContext {
	return &RequestContext{
		Tenant: op.Tenant{ID: "local"},
		Request: &BackchannelAuthenticationRequest{
			ID:           "req-1",
			ClientID:     "client",
			Profile:      profile,
			DeliveryMode: oidc.DeliveryModePoll,
			Scopes:       oidc.SpaceDelimitedArray{"openid", "profile"},
			LoginHint:    "test-user",
			ExpiresAt:    time.Now().Add(5 * time.Minute),
		},
		ServerConfiguration: &op.AuthorizationServerConfiguration{
			SupportedGrantTypes: []oidc.GrantType{oidc.GrantTypeCIBA},
		},
		ClientConfiguration: &op.ClientConfiguration{
			ClientID:                     "client",
			AuthMethod:                   oidc.AuthMethodPrivateKeyJWT,
			GrantTypes:                   []oidc.GrantType{oidc.GrantTypeCIBA},
			Scopes:                       []string{"openid", "profile", "email"},
			Profile:                      profile,
			BackchannelTokenDeliveryMode: oidc.DeliveryModePoll,
		},
	}
}

func TestVerifyRequest(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(reqCtx *RequestContext)
		wantErr *oidc.Error
	}{
		{
			name:   "valid poll request",
			modify: func(*RequestContext) {},
		},
		{
			name: "server without ciba",
			modify: func(reqCtx *RequestContext) {
				reqCtx.ServerConfiguration.SupportedGrantTypes = nil
			},
			wantErr: oidc.ErrUnsupportedGrantType(),
		},
		{
			name: "client without ciba",
			modify: func(reqCtx *RequestContext) {
				reqCtx.ClientConfiguration.GrantTypes = []oidc.GrantType{oidc.GrantTypeCode}
			},
			wantErr: oidc.ErrUnauthorizedClient(),
		},
		{
			name: "missing openid scope",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.Scopes = oidc.SpaceDelimitedArray{"profile"}
			},
			wantErr: oidc.ErrInvalidScope(),
		},
		{
			name: "unregistered scope",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.Scopes = oidc.SpaceDelimitedArray{"openid", "admin"}
			},
			wantErr: oidc.ErrInvalidScope(),
		},
		{
			name: "no user hint",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.LoginHint = ""
			},
			wantErr: oidc.ErrInvalidRequest(),
		},
		{
			name: "two user hints",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.IDTokenHint = "token"
			},
			wantErr: oidc.ErrInvalidRequest(),
		},
		{
			name: "no delivery mode registered",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.DeliveryMode = ""
			},
			wantErr: oidc.ErrInvalidRequest(),
		},
		{
			name: "ping without notification token",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.DeliveryMode = oidc.DeliveryModePing
				reqCtx.ClientConfiguration.BackchannelClientNotificationEndpoint = "https://client.example/notify"
			},
			wantErr: oidc.ErrInvalidRequest(),
		},
		{
			name: "ping without notification endpoint",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.DeliveryMode = oidc.DeliveryModePing
				reqCtx.Request.ClientNotificationToken = "notify-token"
			},
			wantErr: oidc.ErrInvalidRequest(),
		},
		{
			name: "ping fully configured",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.DeliveryMode = oidc.DeliveryModePing
				reqCtx.Request.ClientNotificationToken = "notify-token"
				reqCtx.ClientConfiguration.BackchannelClientNotificationEndpoint = "https://client.example/notify"
			},
		},
		{
			name: "binding_message too long",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.BindingMessage = strings.Repeat("x", 21)
			},
			wantErr: oidc.ErrInvalidRequest(),
		},
		{
			name: "binding_message at the limit",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.BindingMessage = strings.Repeat("x", 20)
			},
		},
		{
			name: "user_code unsupported",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.UserCode = "1234"
			},
			wantErr: oidc.ErrInvalidRequest(),
		},
		{
			name: "user_code supported",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.UserCode = "1234"
				reqCtx.ServerConfiguration.BackchannelUserCodeSupported = true
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqCtx := testRequestContext(oidc.ProfileOIDC)
			tt.modify(reqCtx)
			err := VerifyRequest(context.Background(), reqCtx)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyRequest_FAPI(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(reqCtx *RequestContext)
		wantErr *oidc.Error
	}{
		{
			name:   "poll with private_key_jwt passes",
			modify: func(*RequestContext) {},
		},
		{
			name: "push mode forbidden",
			modify: func(reqCtx *RequestContext) {
				reqCtx.Request.DeliveryMode = oidc.DeliveryModePush
				reqCtx.Request.ClientNotificationToken = "notify-token"
				reqCtx.ClientConfiguration.BackchannelClientNotificationEndpoint = "https://client.example/notify"
			},
			wantErr: oidc.ErrInvalidRequest(),
		},
		{
			name: "client_secret_basic forbidden",
			modify: func(reqCtx *RequestContext) {
				reqCtx.ClientConfiguration.AuthMethod = oidc.AuthMethodBasic
			},
			wantErr: oidc.ErrUnauthorizedClient(),
		},
		{
			name: "client_secret_jwt forbidden",
			modify: func(reqCtx *RequestContext) {
				reqCtx.ClientConfiguration.AuthMethod = oidc.AuthMethodClientSecretJWT
			},
			wantErr: oidc.ErrUnauthorizedClient(),
		},
		{
			name: "public client forbidden",
			modify: func(reqCtx *RequestContext) {
				reqCtx.ClientConfiguration.AuthMethod = oidc.AuthMethodNone
			},
			wantErr: oidc.ErrUnauthorizedClient(),
		},
		{
			name: "tls_client_auth passes",
			modify: func(reqCtx *RequestContext) {
				reqCtx.ClientConfiguration.AuthMethod = oidc.AuthMethodTLSClientAuth
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqCtx := testRequestContext(oidc.ProfileFAPIAdvance)
			tt.modify(reqCtx)
			err := VerifyRequest(context.Background(), reqCtx)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
