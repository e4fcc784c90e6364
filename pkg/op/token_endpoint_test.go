package op_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
	"github.com/authcove/idp/pkg/storage/memory"
)

var exchangeTenant = op.Tenant{ID: "local", Name: "Local", Domain: "issuer.example"}

type exchangeFixture struct {
	endpoint     *op.TokenEndpoint
	authRequests *memory.AuthorizationRequestRepository
	codeGrants   *memory.AuthorizationCodeGrantRepository
}

func newExchangeFixture(t *testing.T) *exchangeFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	crypto, err := op.NewCrypto(key, "test-key", "0123456789abcdef")
	require.NoError(t, err)

	serverConfigs := memory.NewServerConfigurationRepository()
	serverConfigs.Seed(exchangeTenant, &op.AuthorizationServerConfiguration{
		Issuer: exchangeTenant.Issuer(),
		SupportedGrantTypes: []oidc.GrantType{
			oidc.GrantTypeCode,
			oidc.GrantTypeRefreshToken,
		},
		AccessTokenLifetime:  time.Hour,
		RefreshTokenLifetime: 24 * time.Hour,
	})
	clientConfigs := memory.NewClientConfigurationRepository()
	clientConfigs.Seed(exchangeTenant, &op.ClientConfiguration{
		ClientID:     "web",
		ClientSecret: "secret",
		AuthMethod:   oidc.AuthMethodBasic,
		GrantTypes:   []oidc.GrantType{oidc.GrantTypeCode, oidc.GrantTypeRefreshToken},
		RedirectURIs: []string{"https://rp.example/callback"},
		Scopes:       []string{"openid", "profile"},
		Profile:      oidc.ProfileOIDC,
	})

	f := &exchangeFixture{
		authRequests: memory.NewAuthorizationRequestRepository(),
		codeGrants:   memory.NewAuthorizationCodeGrantRepository(),
	}
	endpoint := op.NewTokenEndpoint(slog.New(slog.NewTextHandler(io.Discard, nil)))
	endpoint.ServerConfigs = serverConfigs
	endpoint.ClientConfigs = clientConfigs
	endpoint.AuthRequests = f.authRequests
	endpoint.CodeGrants = f.codeGrants
	endpoint.RefreshGrants = memory.NewRefreshTokenGrantRepository()
	endpoint.Granted = memory.NewAuthorizationGrantedRepository()
	endpoint.Tokens = memory.NewOAuthTokenRepository()
	endpoint.Users = memory.NewUserRepository()
	endpoint.Crypto = crypto
	endpoint.ResolveTenant = func(*http.Request) (op.Tenant, error) { return exchangeTenant, nil }
	f.endpoint = endpoint
	return f
}

// issueCode stores an accepted authorization request and its one-time code,
// as the authorize flow would after successful end-user authentication.
func (f *exchangeFixture) issueCode(t *testing.T, code string) {
	t.Helper()
	require.NoError(t, f.authRequests.Register(context.Background(), exchangeTenant, &op.AuthorizationRequest{
		ID:           "auth-req-1",
		ClientID:     "web",
		ResponseType: "code",
		RedirectURI:  "https://rp.example/callback",
		Scopes:       oidc.SpaceDelimitedArray{"openid", "profile"},
		Profile:      oidc.ProfileOIDC,
		ExpiresAt:    time.Now().Add(5 * time.Minute),
	}))
	require.NoError(t, f.codeGrants.Register(context.Background(), exchangeTenant, &op.AuthorizationCodeGrant{
		Code:                   code,
		AuthorizationRequestID: "auth-req-1",
		ClientID:               "web",
		Grant: op.AuthorizationGrant{
			User: op.User{ID: "user-1", Sub: "user-1"},
			Authentication: op.Authentication{
				Methods: []string{"pwd"},
				Time:    time.Now(),
			},
			ClientID:  "web",
			GrantType: oidc.GrantTypeCode,
			Scopes:    oidc.SpaceDelimitedArray{"openid", "profile"},
		},
		ExpiresAt: time.Now().Add(time.Minute),
	}))
}

func (f *exchangeFixture) post(t *testing.T, form url.Values) (int, []byte) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.endpoint.ServeHTTP(w, r)
	return w.Code, w.Body.Bytes()
}

func (f *exchangeFixture) redeem(t *testing.T, code string) (int, []byte) {
	t.Helper()
	return f.post(t, url.Values{
		"grant_type":    {string(oidc.GrantTypeCode)},
		"code":          {code},
		"redirect_uri":  {"https://rp.example/callback"},
		"client_id":     {"web"},
		"client_secret": {"secret"},
	})
}

func errorName(t *testing.T, body []byte) string {
	t.Helper()
	var errBody struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &errBody))
	return errBody.Error
}

func TestCodeExchange(t *testing.T) {
	f := newExchangeFixture(t)
	f.issueCode(t, "code-1")

	status, body := f.redeem(t, "code-1")
	require.Equal(t, http.StatusOK, status, "body: %s", body)
	var resp oidc.AccessTokenResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, oidc.BearerToken, resp.TokenType)
	assert.NotEmpty(t, resp.IDToken)
	assert.NotEmpty(t, resp.RefreshToken)

	// The code is single use: redeeming it again must fail.
	status, body = f.redeem(t, "code-1")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_grant", errorName(t, body))
}

func TestCodeExchange_Rejections(t *testing.T) {
	f := newExchangeFixture(t)
	f.issueCode(t, "code-1")

	t.Run("unknown code", func(t *testing.T) {
		status, body := f.redeem(t, "ghost")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_grant", errorName(t, body))
	})
	t.Run("missing code", func(t *testing.T) {
		status, body := f.post(t, url.Values{
			"grant_type":    {string(oidc.GrantTypeCode)},
			"client_id":     {"web"},
			"client_secret": {"secret"},
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_request", errorName(t, body))
	})
	t.Run("wrong client secret", func(t *testing.T) {
		status, body := f.post(t, url.Values{
			"grant_type":    {string(oidc.GrantTypeCode)},
			"code":          {"code-1"},
			"redirect_uri":  {"https://rp.example/callback"},
			"client_id":     {"web"},
			"client_secret": {"wrong"},
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "invalid_client", errorName(t, body))
	})
	t.Run("redirect_uri mismatch", func(t *testing.T) {
		status, body := f.post(t, url.Values{
			"grant_type":    {string(oidc.GrantTypeCode)},
			"code":          {"code-1"},
			"redirect_uri":  {"https://attacker.example/callback"},
			"client_id":     {"web"},
			"client_secret": {"secret"},
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_grant", errorName(t, body))
	})
}

func TestRefreshExchange_Rotation(t *testing.T) {
	f := newExchangeFixture(t)
	f.issueCode(t, "code-1")

	status, body := f.redeem(t, "code-1")
	require.Equal(t, http.StatusOK, status, "body: %s", body)
	var resp oidc.AccessTokenResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.RefreshToken)

	refresh := func(token string) (int, []byte) {
		return f.post(t, url.Values{
			"grant_type":    {string(oidc.GrantTypeRefreshToken)},
			"refresh_token": {token},
			"client_id":     {"web"},
			"client_secret": {"secret"},
		})
	}

	status, body = refresh(resp.RefreshToken)
	require.Equal(t, http.StatusOK, status, "body: %s", body)
	var refreshed oidc.AccessTokenResponse
	require.NoError(t, json.Unmarshal(body, &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEmpty(t, refreshed.RefreshToken)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)

	// Rotation invalidates the presented token.
	status, body = refresh(resp.RefreshToken)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_grant", errorName(t, body))
}
