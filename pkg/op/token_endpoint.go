package op

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/zitadel/schema"

	httphelper "github.com/authcove/idp/pkg/http"
	"github.com/authcove/idp/pkg/oidc"
)

// TenantResolver maps an incoming request to the tenant it belongs to,
// typically from the host name. Routing is an adapter concern; the core only
// needs the result.
type TenantResolver func(r *http.Request) (Tenant, error)

// TokenEndpoint dispatches token requests by grant type. The built-in grants
// (authorization_code, refresh_token, client_credentials, password) run
// in-process; extension grants such as CIBA register an explicit handler at
// startup.
type TokenEndpoint struct {
	ServerConfigs ServerConfigurationRepository
	ClientConfigs ClientConfigurationRepository
	AuthRequests  AuthorizationRequestRepository
	CodeGrants    AuthorizationCodeGrantRepository
	RefreshGrants RefreshTokenGrantRepository
	Granted       AuthorizationGrantedRepository
	Tokens        OAuthTokenRepository
	Users         UserQueryRepository
	Crypto        Crypto

	ResolveTenant TenantResolver

	extensions map[oidc.GrantType]http.HandlerFunc
	decoder    httphelper.Decoder
	logger     *slog.Logger
}

func NewTokenEndpoint(logger *slog.Logger) *TokenEndpoint {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &TokenEndpoint{
		extensions: make(map[oidc.GrantType]http.HandlerFunc),
		decoder:    decoder,
		logger:     logger,
	}
}

// RegisterGrantHandler wires an extension grant type. Registration happens at
// process start; the map is read-only afterwards.
func (te *TokenEndpoint) RegisterGrantHandler(grantType oidc.GrantType, handler http.HandlerFunc) {
	te.extensions[grantType] = handler
}

func (te *TokenEndpoint) Logger() *slog.Logger {
	return te.logger
}

func (te *TokenEndpoint) Decoder() httphelper.Decoder {
	return te.decoder
}

func (te *TokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "TokenEndpoint.ServeHTTP")
	defer span.End()
	r = r.WithContext(ctx)

	if err := r.ParseForm(); err != nil {
		RequestError(w, r, oidc.ErrInvalidRequest().WithDescription("error parsing form").WithParent(err), te.logger)
		return
	}
	grantType := oidc.GrantType(r.Form.Get("grant_type"))
	switch grantType {
	case oidc.GrantTypeCode:
		te.codeExchange(w, r)
		return
	case oidc.GrantTypeRefreshToken:
		te.refreshExchange(w, r)
		return
	case oidc.GrantTypeClientCredentials:
		te.clientCredentialsExchange(w, r)
		return
	case oidc.GrantTypePassword:
		te.passwordExchange(w, r)
		return
	case "":
		RequestError(w, r, oidc.ErrInvalidRequest().WithDescription("grant_type missing"), te.logger)
		return
	}
	if handler, ok := te.extensions[grantType]; ok {
		handler(w, r)
		return
	}
	RequestError(w, r, oidc.ErrUnsupportedGrantType().WithDescription("%s not supported", grantType), te.logger)
}

// AuthenticatedTokenRequest is implemented by every token request wire type
// carrying client credentials in form or Basic Auth.
type AuthenticatedTokenRequest interface {
	SetClientID(string)
	SetClientSecret(string)
}

// ParseAuthenticatedTokenRequest decodes the form into the request struct and
// overlays client_id / client_secret from the Basic Auth header if present.
func ParseAuthenticatedTokenRequest(r *http.Request, decoder httphelper.Decoder, request AuthenticatedTokenRequest) error {
	if err := r.ParseForm(); err != nil {
		return oidc.ErrInvalidRequest().WithDescription("error parsing form").WithParent(err)
	}
	if err := decoder.Decode(request, r.Form); err != nil {
		return oidc.ErrInvalidRequest().WithDescription("error decoding form").WithParent(err)
	}
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		return nil
	}
	clientID, err := url.QueryUnescape(clientID)
	if err != nil {
		return oidc.ErrInvalidClient().WithDescription("invalid basic auth header").WithParent(err)
	}
	clientSecret, err = url.QueryUnescape(clientSecret)
	if err != nil {
		return oidc.ErrInvalidClient().WithDescription("invalid basic auth header").WithParent(err)
	}
	request.SetClientID(clientID)
	request.SetClientSecret(clientSecret)
	return nil
}

// NewTokenRequestContext resolves tenant, server and client configuration for
// a token request and assembles the context every verifier works on.
func (te *TokenEndpoint) NewTokenRequestContext(r *http.Request, grantType oidc.GrantType, clientID string) (*TokenRequestContext, error) {
	tenant, err := te.ResolveTenant(r)
	if err != nil {
		return nil, oidc.ErrInvalidRequest().WithDescription("unknown tenant").WithParent(err)
	}
	serverCfg, err := te.ServerConfigs.Get(r.Context(), tenant)
	if err != nil {
		return nil, oidc.ErrServerError().WithDescription("server configuration unavailable").WithParent(err)
	}
	clientCfg, err := te.ClientConfigs.Get(r.Context(), tenant, clientID)
	if err != nil {
		return nil, oidc.ErrInvalidClient().WithDescription("unknown client").WithParent(err)
	}
	return &TokenRequestContext{
		Tenant:              tenant,
		GrantType:           grantType,
		Credentials:         ClientCredentials{ClientID: clientID},
		ServerConfiguration: serverCfg,
		ClientConfiguration: clientCfg,
	}, nil
}

func (te *TokenEndpoint) codeExchange(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "codeExchange")
	defer span.End()
	r = r.WithContext(ctx)

	tokenReq := new(oidc.AccessTokenRequest)
	if err := ParseAuthenticatedTokenRequest(r, te.decoder, tokenReq); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	if tokenReq.Code == "" {
		RequestError(w, r, oidc.ErrInvalidRequest().WithDescription("code missing"), te.logger)
		return
	}
	reqCtx, err := te.NewTokenRequestContext(r, oidc.GrantTypeCode, tokenReq.ClientID)
	if err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	reqCtx.Credentials.ClientSecret = tokenReq.ClientSecret
	reqCtx.Credentials.ClientAssertion = tokenReq.ClientAssertion
	reqCtx.Credentials.ClientAssertionType = tokenReq.ClientAssertionType
	if certs := r.TLS; certs != nil && len(certs.PeerCertificates) > 0 {
		reqCtx.Credentials.ClientCertificate = certs.PeerCertificates[0]
	}
	reqCtx.Code = tokenReq.Code
	reqCtx.CodeVerifier = tokenReq.CodeVerifier
	reqCtx.RedirectURI = tokenReq.RedirectURI

	if err := AuthenticateClient(ctx, reqCtx.Credentials, reqCtx.ClientConfiguration); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	resp, err := te.exchangeCode(ctx, reqCtx)
	if err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	httphelper.MarshalJSON(w, resp)
}

func (te *TokenEndpoint) exchangeCode(ctx context.Context, reqCtx *TokenRequestContext) (*oidc.AccessTokenResponse, error) {
	codeGrant, err := te.CodeGrants.Find(ctx, reqCtx.Tenant, reqCtx.Code)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, oidc.ErrServerError().WithParent(err)
	}
	var authReq *AuthorizationRequest
	if codeGrant != nil {
		authReq, err = te.AuthRequests.Get(ctx, reqCtx.Tenant, codeGrant.AuthorizationRequestID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, oidc.ErrServerError().WithParent(err)
		}
	}
	if err := VerifyAuthorizationCodeGrant(ctx, reqCtx, authReq, codeGrant); err != nil {
		return nil, err
	}
	// The code is single use: delete before minting so a concurrent redemption
	// of the same code cannot succeed twice.
	if err := te.CodeGrants.Delete(ctx, reqCtx.Tenant, reqCtx.Code); err != nil {
		return nil, oidc.ErrInvalidGrant().WithDescription("authorization code does not exist").WithParent(err)
	}
	return te.IssueTokens(ctx, reqCtx, codeGrant.Grant)
}

// IssueTokens mints the token set for the grant, merges it into the granted
// authorization record of the (client, user) pair and persists the result.
// The CIBA poll exchange reuses it for authorized grants.
func (te *TokenEndpoint) IssueTokens(ctx context.Context, reqCtx *TokenRequestContext, grant AuthorizationGrant) (*oidc.AccessTokenResponse, error) {
	resp, token, err := CreateTokenResponse(ctx, grant, reqCtx.ServerConfiguration, reqCtx.ClientConfiguration, te.Crypto)
	if err != nil {
		return nil, oidc.ErrServerError().WithDescription("token creation failed").WithParent(err)
	}
	if grant.User.Exists() {
		if err := RegisterOrUpdateGranted(ctx, te.Granted, reqCtx.Tenant, grant); err != nil {
			return nil, oidc.ErrServerError().WithParent(err)
		}
	}
	if err := te.Tokens.Register(ctx, reqCtx.Tenant, token); err != nil {
		return nil, oidc.ErrServerError().WithParent(err)
	}
	if resp.RefreshToken != "" {
		refreshGrant := &RefreshTokenGrant{
			Token:     resp.RefreshToken,
			ClientID:  grant.ClientID,
			Grant:     grant,
			ExpiresAt: time.Now().Add(reqCtx.ServerConfiguration.RefreshTokenLifetime),
		}
		if err := te.RefreshGrants.Register(ctx, reqCtx.Tenant, refreshGrant); err != nil {
			return nil, oidc.ErrServerError().WithParent(err)
		}
	}
	return resp, nil
}

// RegisterOrUpdateGranted merges a fresh grant into the stored granted
// authorization of the (client, user) pair, or creates the record if none
// exists yet.
func RegisterOrUpdateGranted(ctx context.Context, repo AuthorizationGrantedRepository, tenant Tenant, grant AuthorizationGrant) error {
	granted, err := repo.Find(ctx, tenant, grant.ClientID, grant.User.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if granted.Exists() {
		return repo.Update(ctx, tenant, granted.Merge(grant))
	}
	return repo.Register(ctx, tenant, &AuthorizationGranted{
		ID:    uuid.NewString(),
		Grant: grant,
	})
}

func (te *TokenEndpoint) refreshExchange(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "refreshExchange")
	defer span.End()
	r = r.WithContext(ctx)

	tokenReq := new(oidc.RefreshTokenRequest)
	if err := ParseAuthenticatedTokenRequest(r, te.decoder, tokenReq); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	reqCtx, err := te.NewTokenRequestContext(r, oidc.GrantTypeRefreshToken, tokenReq.ClientID)
	if err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	reqCtx.Credentials.ClientSecret = tokenReq.ClientSecret
	reqCtx.RefreshToken = tokenReq.RefreshToken
	reqCtx.Scopes = tokenReq.Scopes

	if err := AuthenticateClient(ctx, reqCtx.Credentials, reqCtx.ClientConfiguration); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	grant, err := te.RefreshGrants.Find(ctx, reqCtx.Tenant, tokenReq.RefreshToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		RequestError(w, r, oidc.ErrServerError().WithParent(err), te.logger)
		return
	}
	if err := VerifyRefreshTokenGrant(ctx, reqCtx, grant); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	// Rotate: the presented token is invalidated before a new one is minted.
	if err := te.RefreshGrants.Delete(ctx, reqCtx.Tenant, tokenReq.RefreshToken); err != nil {
		RequestError(w, r, oidc.ErrInvalidGrant().WithDescription("refresh token does not exist").WithParent(err), te.logger)
		return
	}
	next := grant.Grant
	if len(reqCtx.Scopes) > 0 {
		next.Scopes = reqCtx.Scopes
	}
	resp, err := te.IssueTokens(ctx, reqCtx, next)
	if err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	httphelper.MarshalJSON(w, resp)
}

func (te *TokenEndpoint) clientCredentialsExchange(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "clientCredentialsExchange")
	defer span.End()
	r = r.WithContext(ctx)

	tokenReq := new(oidc.ClientCredentialsRequest)
	if err := ParseAuthenticatedTokenRequest(r, te.decoder, tokenReq); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	reqCtx, err := te.NewTokenRequestContext(r, oidc.GrantTypeClientCredentials, tokenReq.ClientID)
	if err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	reqCtx.Credentials.ClientSecret = tokenReq.ClientSecret
	reqCtx.Scopes = tokenReq.Scopes

	if err := AuthenticateClient(ctx, reqCtx.Credentials, reqCtx.ClientConfiguration); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	if err := VerifyClientCredentialsGrant(ctx, reqCtx); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	grant := AuthorizationGrant{
		ClientID:  reqCtx.ClientConfiguration.ClientID,
		GrantType: oidc.GrantTypeClientCredentials,
		Scopes:    tokenReq.Scopes,
	}
	resp, err := te.IssueTokens(ctx, reqCtx, grant)
	if err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	httphelper.MarshalJSON(w, resp)
}

func (te *TokenEndpoint) passwordExchange(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "passwordExchange")
	defer span.End()
	r = r.WithContext(ctx)

	tokenReq := new(oidc.PasswordRequest)
	if err := ParseAuthenticatedTokenRequest(r, te.decoder, tokenReq); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	reqCtx, err := te.NewTokenRequestContext(r, oidc.GrantTypePassword, tokenReq.ClientID)
	if err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	reqCtx.Credentials.ClientSecret = tokenReq.ClientSecret
	reqCtx.Username = tokenReq.Username
	reqCtx.Password = tokenReq.Password
	reqCtx.Scopes = tokenReq.Scopes

	if err := AuthenticateClient(ctx, reqCtx.Credentials, reqCtx.ClientConfiguration); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	user, err := te.Users.FindByUsername(ctx, reqCtx.Tenant, tokenReq.Username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		RequestError(w, r, oidc.ErrServerError().WithParent(err), te.logger)
		return
	}
	if err := VerifyPasswordGrant(ctx, reqCtx, user); err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	grant := AuthorizationGrant{
		User: *user,
		Authentication: Authentication{
			Methods: []string{"pwd"},
			Time:    time.Now(),
		},
		ClientID:  reqCtx.ClientConfiguration.ClientID,
		GrantType: oidc.GrantTypePassword,
		Scopes:    tokenReq.Scopes,
	}
	resp, err := te.IssueTokens(ctx, reqCtx, grant)
	if err != nil {
		RequestError(w, r, err, te.logger)
		return
	}
	httphelper.MarshalJSON(w, resp)
}
