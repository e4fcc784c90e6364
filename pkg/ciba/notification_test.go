package ciba_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcove/idp/pkg/ciba"
	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
)

// recordingTokenRepository captures registered tokens for inspection.
type recordingTokenRepository struct {
	registered []*op.OAuthToken
}

func (r *recordingTokenRepository) Register(_ context.Context, _ op.Tenant, token *op.OAuthToken) error {
	r.registered = append(r.registered, token)
	return nil
}

func testCrypto(t *testing.T) op.Crypto {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	crypto, err := op.NewCrypto(key, "test-key", "0123456789abcdef")
	require.NoError(t, err)
	return crypto
}

func seedPushClient(f *cibaFixture) {
	f.clientConfigs.Seed(testTenant, &op.ClientConfiguration{
		ClientID:                              "push-client",
		ClientSecret:                          "secret",
		AuthMethod:                            oidc.AuthMethodBasic,
		GrantTypes:                            []oidc.GrantType{oidc.GrantTypeCIBA},
		Scopes:                                []string{"openid", "profile"},
		Profile:                               oidc.ProfileOIDC,
		BackchannelTokenDeliveryMode:          oidc.DeliveryModePush,
		BackchannelClientNotificationEndpoint: "https://push.example/notify",
	})
}

func TestClientNotificationService_Notify(t *testing.T) {
	t.Run("poll client is never contacted", func(t *testing.T) {
		f := newCIBAFixture(t)
		_, grant := f.issue(t, "poll-client", nil)
		require.NoError(t, f.notifier.Notify(context.Background(), testTenant, grant))
		assert.Zero(t, f.gateway.count())
	})
	t.Run("ping body carries only the auth_req_id", func(t *testing.T) {
		f := newCIBAFixture(t)
		resp, grant := f.issue(t, "ping-client", nil)
		require.NoError(t, f.notifier.Notify(context.Background(), testTenant, grant))
		require.Equal(t, 1, f.gateway.count())
		body := f.gateway.last()
		assert.Equal(t, resp.AuthReqID, body.AuthReqID)
		assert.Empty(t, body.AccessToken)
		assert.Empty(t, body.IDToken)
		assert.Equal(t, []string{"notify-token"}, f.gateway.tokens)
	})
	t.Run("push body carries the minted tokens", func(t *testing.T) {
		f := newCIBAFixture(t)
		seedPushClient(f)
		f.notifier.Crypto = testCrypto(t)
		tokens := &recordingTokenRepository{}
		f.notifier.Tokens = tokens

		resp, grant := f.issue(t, "push-client", func(req *oidc.BackchannelAuthenticationRequest) {
			req.ClientNotificationToken = "push-token"
		})
		authorized := grant.Authorize(op.Authentication{Methods: []string{"sms"}, Time: time.Now()})
		require.NoError(t, f.notifier.Notify(context.Background(), testTenant, authorized))

		require.Equal(t, 1, f.gateway.count())
		body := f.gateway.last()
		assert.Equal(t, resp.AuthReqID, body.AuthReqID)
		assert.NotEmpty(t, body.AccessToken)
		assert.Equal(t, oidc.BearerToken, body.TokenType)
		assert.NotEmpty(t, body.IDToken)
		// The push client has no refresh_token grant registered; the
		// notification body carries a refresh token regardless.
		require.NotEmpty(t, body.RefreshToken)

		require.Len(t, tokens.registered, 1)
		assert.Equal(t, body.AccessToken, tokens.registered[0].AccessToken)
		assert.Equal(t, "user-1", tokens.registered[0].Grant.User.ID)

		refreshGrant, err := f.refreshGrants.Find(context.Background(), testTenant, body.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", refreshGrant.Grant.User.ID)
	})
	t.Run("delivery failure surfaces as server error", func(t *testing.T) {
		f := newCIBAFixture(t)
		f.gateway.err = errors.New("connection refused")
		_, grant := f.issue(t, "ping-client", nil)
		err := f.notifier.Notify(context.Background(), testTenant, grant)
		assert.ErrorIs(t, err, oidc.ErrServerError())
	})
}

func TestClientNotificationService_NotifyError(t *testing.T) {
	f := newCIBAFixture(t)
	resp, grant := f.issue(t, "ping-client", nil)

	notifyErr := oidc.ErrAccessDenied().WithDescription("the end-user denied the authorization request")
	require.NoError(t, f.notifier.NotifyError(context.Background(), testTenant, grant, notifyErr))

	require.Equal(t, 1, f.gateway.count())
	body := f.gateway.last()
	assert.Equal(t, resp.AuthReqID, body.AuthReqID)
	assert.Equal(t, "access_denied", body.Error)
	assert.NotEmpty(t, body.ErrorDescription)
	assert.Empty(t, body.AccessToken)
}

func TestHTTPClientNotificationGateway(t *testing.T) {
	t.Run("posts bearer authenticated json", func(t *testing.T) {
		var gotAuth, gotContentType string
		var gotBody oidc.ClientNotificationBody
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotContentType = r.Header.Get("Content-Type")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		gateway := ciba.NewHTTPClientNotificationGateway()
		err := gateway.Notify(context.Background(), srv.URL, "notify-token", &oidc.ClientNotificationBody{AuthReqID: "abc"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer notify-token", gotAuth)
		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, "abc", gotBody.AuthReqID)
	})
	t.Run("non 2xx answers fail", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		gateway := ciba.NewHTTPClientNotificationGateway()
		err := gateway.Notify(context.Background(), srv.URL, "notify-token", &oidc.ClientNotificationBody{AuthReqID: "abc"})
		assert.Error(t, err)
	})
}
