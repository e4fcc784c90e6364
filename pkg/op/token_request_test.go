package op

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcove/idp/pkg/oidc"
)

func signAssertion(t *testing.T, alg jose.SignatureAlgorithm, key any, claims clientAssertionClaims) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, nil)
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	jws, err := signer.Sign(payload)
	require.NoError(t, err)
	compact, err := jws.CompactSerialize()
	require.NoError(t, err)
	return compact
}

func TestAuthenticateClient_Secret(t *testing.T) {
	type args struct {
		creds     ClientCredentials
		clientCfg *ClientConfiguration
	}
	tests := []struct {
		name    string
		args    args
		wantErr bool
	}{
		{
			name: "public client always passes",
			args: args{
				creds:     ClientCredentials{ClientID: "client"},
				clientCfg: &ClientConfiguration{ClientID: "client", AuthMethod: oidc.AuthMethodNone},
			},
		},
		{
			name: "basic with matching secret",
			args: args{
				creds:     ClientCredentials{ClientID: "client", ClientSecret: "secret"},
				clientCfg: &ClientConfiguration{ClientID: "client", AuthMethod: oidc.AuthMethodBasic, ClientSecret: "secret"},
			},
		},
		{
			name: "basic with wrong secret",
			args: args{
				creds:     ClientCredentials{ClientID: "client", ClientSecret: "wrong"},
				clientCfg: &ClientConfiguration{ClientID: "client", AuthMethod: oidc.AuthMethodBasic, ClientSecret: "secret"},
			},
			wantErr: true,
		},
		{
			name: "post with empty secret",
			args: args{
				creds:     ClientCredentials{ClientID: "client"},
				clientCfg: &ClientConfiguration{ClientID: "client", AuthMethod: oidc.AuthMethodPost, ClientSecret: "secret"},
			},
			wantErr: true,
		},
		{
			name: "tls without certificate",
			args: args{
				creds:     ClientCredentials{ClientID: "client"},
				clientCfg: &ClientConfiguration{ClientID: "client", AuthMethod: oidc.AuthMethodTLSClientAuth},
			},
			wantErr: true,
		},
		{
			name: "tls with certificate",
			args: args{
				creds:     ClientCredentials{ClientID: "client", ClientCertificate: &x509.Certificate{}},
				clientCfg: &ClientConfiguration{ClientID: "client", AuthMethod: oidc.AuthMethodTLSClientAuth},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthenticateClient(context.Background(), tt.args.creds, tt.args.clientCfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, oidc.ErrInvalidClient())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAuthenticateClient_ClientSecretJWT(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	clientCfg := &ClientConfiguration{
		ClientID:     "client",
		ClientSecret: secret,
		AuthMethod:   oidc.AuthMethodClientSecretJWT,
	}
	validClaims := clientAssertionClaims{
		Issuer:     "client",
		Subject:    "client",
		Expiration: oidc.FromTime(time.Now().Add(time.Minute)),
	}

	tests := []struct {
		name    string
		creds   ClientCredentials
		wantErr bool
	}{
		{
			name: "valid assertion",
			creds: ClientCredentials{
				ClientID:            "client",
				ClientAssertionType: oidc.ClientAssertionTypeJWTAssertion,
				ClientAssertion:     signAssertion(t, jose.HS256, []byte(secret), validClaims),
			},
		},
		{
			name: "missing assertion type",
			creds: ClientCredentials{
				ClientID:        "client",
				ClientAssertion: signAssertion(t, jose.HS256, []byte(secret), validClaims),
			},
			wantErr: true,
		},
		{
			name: "signed with the wrong secret",
			creds: ClientCredentials{
				ClientID:            "client",
				ClientAssertionType: oidc.ClientAssertionTypeJWTAssertion,
				ClientAssertion:     signAssertion(t, jose.HS256, []byte("fedcba9876543210fedcba9876543210"), validClaims),
			},
			wantErr: true,
		},
		{
			name: "expired assertion",
			creds: ClientCredentials{
				ClientID:            "client",
				ClientAssertionType: oidc.ClientAssertionTypeJWTAssertion,
				ClientAssertion: signAssertion(t, jose.HS256, []byte(secret), clientAssertionClaims{
					Issuer:     "client",
					Subject:    "client",
					Expiration: oidc.FromTime(time.Now().Add(-time.Minute)),
				}),
			},
			wantErr: true,
		},
		{
			name: "issuer names another client",
			creds: ClientCredentials{
				ClientID:            "client",
				ClientAssertionType: oidc.ClientAssertionTypeJWTAssertion,
				ClientAssertion: signAssertion(t, jose.HS256, []byte(secret), clientAssertionClaims{
					Issuer:     "other",
					Subject:    "client",
					Expiration: oidc.FromTime(time.Now().Add(time.Minute)),
				}),
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthenticateClient(context.Background(), tt.creds, clientCfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, oidc.ErrInvalidClient())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAuthenticateClient_PrivateKeyJWT(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	clientCfg := &ClientConfiguration{
		ClientID:   "client",
		AuthMethod: oidc.AuthMethodPrivateKeyJWT,
		JWKS: &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
			{Key: &key.PublicKey, KeyID: "1", Algorithm: string(jose.RS256), Use: "sig"},
		}},
	}
	claims := clientAssertionClaims{
		Issuer:     "client",
		Subject:    "client",
		Expiration: oidc.FromTime(time.Now().Add(time.Minute)),
	}

	creds := ClientCredentials{
		ClientID:            "client",
		ClientAssertionType: oidc.ClientAssertionTypeJWTAssertion,
		ClientAssertion:     signAssertion(t, jose.RS256, key, claims),
	}
	assert.NoError(t, AuthenticateClient(context.Background(), creds, clientCfg))

	creds.ClientAssertion = signAssertion(t, jose.RS256, otherKey, claims)
	assert.ErrorIs(t, AuthenticateClient(context.Background(), creds, clientCfg), oidc.ErrInvalidClient())
}
