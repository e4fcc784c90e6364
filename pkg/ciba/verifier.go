package ciba

import (
	"context"

	"github.com/authcove/idp/pkg/oidc"
)

// maxBindingMessageLength bounds the binding_message so authentication
// devices with constrained displays can render it in full.
const maxBindingMessageLength = 20

type requestVerifier func(reqCtx *RequestContext) error

var requestVerifiers = map[oidc.Profile]requestVerifier{
	oidc.ProfileOAuth2:       verifyRequestBase,
	oidc.ProfileOIDC:         verifyRequestBase,
	oidc.ProfileFAPIBaseline: verifyRequestFAPI,
	oidc.ProfileFAPIAdvance:  verifyRequestFAPI,
}

// VerifyRequest validates a backchannel authentication request against the
// resolved server and client configuration. The verifier is selected by the
// client's declared profile; unknown profiles fall back to the base verifier.
func VerifyRequest(ctx context.Context, reqCtx *RequestContext) error {
	_, span := tracer.Start(ctx, "VerifyRequest")
	defer span.End()

	verify := verifyRequestBase
	if v, ok := requestVerifiers[reqCtx.Request.Profile]; ok {
		verify = v
	}
	return verify(reqCtx)
}

func verifyRequestBase(reqCtx *RequestContext) error {
	req := reqCtx.Request
	if !reqCtx.ServerConfiguration.GrantTypeSupported(oidc.GrantTypeCIBA) {
		return oidc.ErrUnsupportedGrantType().WithDescription("backchannel authentication is not supported by this server")
	}
	if !reqCtx.ClientConfiguration.GrantTypeAllowed(oidc.GrantTypeCIBA) {
		return oidc.ErrUnauthorizedClient().WithDescription("client is not allowed to use the ciba grant")
	}
	if !req.Scopes.Contains(oidc.ScopeOpenID) {
		return oidc.ErrInvalidScope().WithDescription("backchannel authentication requests must request the openid scope")
	}
	for _, scope := range req.Scopes {
		if !reqCtx.ClientConfiguration.IsScopeAllowed(scope) {
			return oidc.ErrInvalidScope().WithDescription("scope %q is not allowed for this client", scope)
		}
	}
	if err := verifyUserHint(req); err != nil {
		return err
	}
	if err := verifyDeliveryMode(reqCtx); err != nil {
		return err
	}
	if len([]rune(req.BindingMessage)) > maxBindingMessageLength {
		return oidc.ErrInvalidRequest().WithDescription("binding_message must not exceed %d characters", maxBindingMessageLength)
	}
	if req.UserCode != "" && !reqCtx.ServerConfiguration.BackchannelUserCodeSupported {
		return oidc.ErrInvalidRequest().WithDescription("user_code is not supported by this server")
	}
	return nil
}

// verifyUserHint requires exactly one of login_hint, login_hint_token and
// id_token_hint.
func verifyUserHint(req *BackchannelAuthenticationRequest) error {
	hints := 0
	for _, hint := range []string{req.LoginHint, req.LoginHintToken, req.IDTokenHint} {
		if hint != "" {
			hints++
		}
	}
	switch {
	case hints == 0:
		return oidc.ErrInvalidRequest().WithDescription("one of login_hint, login_hint_token or id_token_hint is required")
	case hints > 1:
		return oidc.ErrInvalidRequest().WithDescription("only one of login_hint, login_hint_token and id_token_hint may be provided")
	}
	return nil
}

func verifyDeliveryMode(reqCtx *RequestContext) error {
	mode := reqCtx.Request.DeliveryMode
	switch mode {
	case oidc.DeliveryModePoll, oidc.DeliveryModePing, oidc.DeliveryModePush:
	default:
		return oidc.ErrInvalidRequest().WithDescription("client has no registered backchannel token delivery mode")
	}
	if !mode.RequiresNotification() {
		return nil
	}
	if reqCtx.Request.ClientNotificationToken == "" {
		return oidc.ErrInvalidRequest().WithDescription("client_notification_token is required for %s mode", mode)
	}
	if reqCtx.ClientConfiguration.BackchannelClientNotificationEndpoint == "" {
		return oidc.ErrInvalidRequest().WithDescription("client has no registered backchannel notification endpoint")
	}
	return nil
}

// verifyRequestFAPI layers the FAPI-CIBA constraints over the base checks:
// push delivery is forbidden and client authentication is limited to
// private_key_jwt and mutual TLS.
func verifyRequestFAPI(reqCtx *RequestContext) error {
	if err := verifyRequestBase(reqCtx); err != nil {
		return err
	}
	if reqCtx.Request.IsPushMode() {
		return oidc.ErrInvalidRequest().WithDescription("push delivery mode is not permitted under the fapi ciba profile")
	}
	switch reqCtx.ClientConfiguration.AuthMethod {
	case oidc.AuthMethodBasic, oidc.AuthMethodPost:
		return oidc.ErrUnauthorizedClient().WithDescription("client_secret_basic and client_secret_post are not permitted under the fapi ciba profile")
	case oidc.AuthMethodClientSecretJWT:
		return oidc.ErrUnauthorizedClient().WithDescription("client_secret_jwt is not permitted under the fapi ciba profile")
	case oidc.AuthMethodNone:
		return oidc.ErrUnauthorizedClient().WithDescription("unauthenticated clients are not permitted under the fapi ciba profile")
	}
	return nil
}
