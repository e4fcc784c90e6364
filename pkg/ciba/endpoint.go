package ciba

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/zitadel/schema"

	httphelper "github.com/authcove/idp/pkg/http"
	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
)

// BackchannelEndpoint serves the backchannel authentication endpoint over
// HTTP. It only shapes the wire exchange; the flow itself lives in Protocol.
type BackchannelEndpoint struct {
	Protocol      *Protocol
	ResolveTenant op.TenantResolver

	decoder httphelper.Decoder
	logger  *slog.Logger
}

func NewBackchannelEndpoint(protocol *Protocol, resolveTenant op.TenantResolver, logger *slog.Logger) *BackchannelEndpoint {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &BackchannelEndpoint{
		Protocol:      protocol,
		ResolveTenant: resolveTenant,
		decoder:       decoder,
		logger:        logger,
	}
}

func (e *BackchannelEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "BackchannelEndpoint.ServeHTTP")
	defer span.End()
	r = r.WithContext(ctx)

	tenant, err := e.ResolveTenant(r)
	if err != nil {
		op.RequestError(w, r, oidc.ErrInvalidRequest().WithDescription("unknown tenant").WithParent(err), e.logger)
		return
	}
	if err := r.ParseForm(); err != nil {
		op.RequestError(w, r, oidc.ErrInvalidRequest().WithDescription("error parsing form").WithParent(err), e.logger)
		return
	}
	req := new(oidc.BackchannelAuthenticationRequest)
	if err := e.decoder.Decode(req, r.PostForm); err != nil {
		op.RequestError(w, r, oidc.ErrInvalidRequest().WithDescription("error decoding form").WithParent(err), e.logger)
		return
	}
	creds, err := parseClientCredentials(r)
	if err != nil {
		op.RequestError(w, r, err, e.logger)
		return
	}
	if creds.ClientID == "" {
		creds.ClientID = req.ClientID
	}

	resp, errResult := e.Protocol.Request(ctx, tenant, req, creds)
	if errResult != nil {
		httphelper.MarshalJSONWithStatus(w, errResult.Error, errResult.Status)
		return
	}
	httphelper.MarshalJSON(w, resp)
}

// parseClientCredentials collects the client authentication material from the
// form body and, when present, the Basic Auth header. Header credentials win.
func parseClientCredentials(r *http.Request) (op.ClientCredentials, error) {
	creds := op.ClientCredentials{
		ClientID:            r.PostForm.Get("client_id"),
		ClientSecret:        r.PostForm.Get("client_secret"),
		ClientAssertion:     r.PostForm.Get("client_assertion"),
		ClientAssertionType: r.PostForm.Get("client_assertion_type"),
	}
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		creds.ClientCertificate = r.TLS.PeerCertificates[0]
	}
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		return creds, nil
	}
	clientID, err := url.QueryUnescape(clientID)
	if err != nil {
		return creds, oidc.ErrInvalidClient().WithDescription("invalid basic auth header").WithParent(err)
	}
	clientSecret, err = url.QueryUnescape(clientSecret)
	if err != nil {
		return creds, oidc.ErrInvalidClient().WithDescription("invalid basic auth header").WithParent(err)
	}
	creds.ClientID = clientID
	creds.ClientSecret = clientSecret
	return creds, nil
}
