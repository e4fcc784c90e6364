package oidc

import "encoding/json"

// AuthorizationDetail is a single entry of the `authorization_details`
// parameter defined by RFC 9396 (Rich Authorization Requests).
type AuthorizationDetail struct {
	Type           string         `json:"type"`
	Locations      []string       `json:"locations,omitempty"`
	Actions        []string       `json:"actions,omitempty"`
	DataTypes      []string       `json:"datatypes,omitempty"`
	Identifier     string         `json:"identifier,omitempty"`
	Privileges     []string       `json:"privileges,omitempty"`
	AdditionalData map[string]any `json:"-"`
}

type AuthorizationDetails []AuthorizationDetail

// UnmarshalText implements form decoding for the authorization_details
// parameter, which is sent as a JSON array inside a form field.
func (a *AuthorizationDetails) UnmarshalText(text []byte) error {
	return json.Unmarshal(text, (*[]AuthorizationDetail)(a))
}

func (a AuthorizationDetails) MarshalText() ([]byte, error) {
	return json.Marshal([]AuthorizationDetail(a))
}

// Merge unions the receiver with other, replacing entries of the same type.
func (a AuthorizationDetails) Merge(other AuthorizationDetails) AuthorizationDetails {
	if len(other) == 0 {
		return a
	}
	merged := make(AuthorizationDetails, 0, len(a)+len(other))
	replaced := make(map[string]bool, len(other))
	for _, detail := range other {
		replaced[detail.Type] = true
	}
	for _, detail := range a {
		if !replaced[detail.Type] {
			merged = append(merged, detail)
		}
	}
	return append(merged, other...)
}
