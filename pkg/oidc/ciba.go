package oidc

import "encoding/json"

const (
	// DeliveryModePoll lets the client poll the token endpoint with the auth_req_id.
	DeliveryModePoll DeliveryMode = "poll"
	// DeliveryModePing notifies the client that authentication completed; the
	// client then calls the token endpoint itself.
	DeliveryModePing DeliveryMode = "ping"
	// DeliveryModePush delivers the tokens directly to the client notification endpoint.
	DeliveryModePush DeliveryMode = "push"
)

// DeliveryMode is the CIBA token delivery mode registered for a client.
type DeliveryMode string

func (m DeliveryMode) RequiresNotification() bool {
	return m == DeliveryModePing || m == DeliveryModePush
}

// BackchannelAuthenticationRequest represents a request to the backchannel
// authentication endpoint as defined in the CIBA specification, section 7.1.
//
// Client authentication (client_secret, client_assertion) is carried separately,
// via HTTP Basic Auth, POST body or JWT assertion, not in this struct.
type BackchannelAuthenticationRequest struct {
	Scopes SpaceDelimitedArray `json:"scope" schema:"scope"`

	// ClientNotificationToken is the bearer token the server uses to authenticate
	// its ping/push callback at the client notification endpoint.
	ClientNotificationToken string `json:"client_notification_token" schema:"client_notification_token"`

	ACRValues SpaceDelimitedArray `json:"acr_values" schema:"acr_values"`

	// Exactly one of the three user hints must be present.
	LoginHintToken string `json:"login_hint_token" schema:"login_hint_token"`
	IDTokenHint    string `json:"id_token_hint" schema:"id_token_hint"`
	LoginHint      string `json:"login_hint" schema:"login_hint"`

	// BindingMessage is displayed on both the consumption and the authentication
	// device so the user can correlate the request. Max 20 characters.
	BindingMessage string `json:"binding_message" schema:"binding_message"`

	// UserCode is a secret code known only to the user, verified on the
	// authentication device.
	UserCode string `json:"user_code" schema:"user_code"`

	// RequestedExpiry is a positive integer allowing the client to request the
	// expires_in value for the auth_req_id (in seconds).
	RequestedExpiry int `json:"requested_expiry" schema:"requested_expiry"`

	// RequestParam carries a signed request object (JWS) when the client uses
	// the `request` parameter instead of plain form encoding.
	RequestParam string `json:"-" schema:"request"`

	// RequestURI references a request object by reference.
	RequestURI string `json:"-" schema:"request_uri"`

	ClientID string `json:"client_id" schema:"client_id"`

	AuthorizationDetails AuthorizationDetails `json:"authorization_details" schema:"authorization_details"`
}

// UnmarshalRequestObject fills the request from the JSON claims of a verified
// request object.
func (b *BackchannelAuthenticationRequest) UnmarshalRequestObject(payload []byte) error {
	return json.Unmarshal(payload, b)
}

// BackchannelAuthenticationResponse represents the successful response of the
// backchannel authentication endpoint, CIBA section 7.3.
type BackchannelAuthenticationResponse struct {
	AuthReqID string `json:"auth_req_id"`
	ExpiresIn int64  `json:"expires_in"`
	Interval  int64  `json:"interval,omitempty"`
}

// BackchannelTokenRequest is the token request a poll or ping mode client sends
// until the authentication completed.
type BackchannelTokenRequest struct {
	GrantType    GrantType `schema:"grant_type"`
	AuthReqID    string    `schema:"auth_req_id"`
	ClientID     string    `schema:"client_id"`
	ClientSecret string    `schema:"client_secret"`
}

func (b *BackchannelTokenRequest) SetClientID(clientID string) {
	b.ClientID = clientID
}

func (b *BackchannelTokenRequest) SetClientSecret(clientSecret string) {
	b.ClientSecret = clientSecret
}

// ClientNotificationBody is the JSON body posted to the client notification
// endpoint. Ping mode sends only the auth_req_id, push mode additionally
// carries the minted tokens, error notifications carry error and description.
type ClientNotificationBody struct {
	AuthReqID string `json:"auth_req_id"`

	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`

	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}
