package op

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/authcove/idp/pkg/oidc"
)

func TestVerifyRefreshTokenGrant(t *testing.T) {
	newReqCtx := func(scopes ...string) *TokenRequestContext {
		return &TokenRequestContext{
			GrantType: oidc.GrantTypeRefreshToken,
			Scopes:    oidc.SpaceDelimitedArray(scopes),
			ServerConfiguration: &AuthorizationServerConfiguration{
				SupportedGrantTypes: []oidc.GrantType{oidc.GrantTypeRefreshToken},
			},
			ClientConfiguration: &ClientConfiguration{
				ClientID:   "client",
				AuthMethod: oidc.AuthMethodBasic,
				GrantTypes: []oidc.GrantType{oidc.GrantTypeRefreshToken},
			},
		}
	}
	newGrant := func() *RefreshTokenGrant {
		return &RefreshTokenGrant{
			Token:    "rt-1",
			ClientID: "client",
			Grant: AuthorizationGrant{
				ClientID: "client",
				Scopes:   oidc.SpaceDelimitedArray{"openid", "profile"},
			},
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, VerifyRefreshTokenGrant(context.Background(), newReqCtx("openid"), newGrant()))
	})
	t.Run("missing token", func(t *testing.T) {
		err := VerifyRefreshTokenGrant(context.Background(), newReqCtx(), nil)
		assert.ErrorIs(t, err, oidc.ErrInvalidGrant())
	})
	t.Run("expired token", func(t *testing.T) {
		grant := newGrant()
		grant.ExpiresAt = time.Now().Add(-time.Minute)
		err := VerifyRefreshTokenGrant(context.Background(), newReqCtx(), grant)
		assert.ErrorIs(t, err, oidc.ErrInvalidGrant())
	})
	t.Run("issued to another client", func(t *testing.T) {
		grant := newGrant()
		grant.ClientID = "other"
		err := VerifyRefreshTokenGrant(context.Background(), newReqCtx(), grant)
		assert.ErrorIs(t, err, oidc.ErrInvalidGrant())
	})
	t.Run("scope narrowing allowed", func(t *testing.T) {
		assert.NoError(t, VerifyRefreshTokenGrant(context.Background(), newReqCtx("profile"), newGrant()))
	})
	t.Run("scope widening rejected", func(t *testing.T) {
		err := VerifyRefreshTokenGrant(context.Background(), newReqCtx("openid", "email"), newGrant())
		assert.ErrorIs(t, err, oidc.ErrInvalidScope())
	})
	t.Run("server without the grant", func(t *testing.T) {
		reqCtx := newReqCtx()
		reqCtx.ServerConfiguration.SupportedGrantTypes = nil
		err := VerifyRefreshTokenGrant(context.Background(), reqCtx, newGrant())
		assert.ErrorIs(t, err, oidc.ErrUnsupportedGrantType())
	})
}

func TestVerifyClientCredentialsGrant(t *testing.T) {
	newReqCtx := func(authMethod oidc.AuthMethod, scopes ...string) *TokenRequestContext {
		return &TokenRequestContext{
			GrantType: oidc.GrantTypeClientCredentials,
			Scopes:    oidc.SpaceDelimitedArray(scopes),
			ServerConfiguration: &AuthorizationServerConfiguration{
				SupportedGrantTypes: []oidc.GrantType{oidc.GrantTypeClientCredentials},
			},
			ClientConfiguration: &ClientConfiguration{
				ClientID:   "client",
				AuthMethod: authMethod,
				GrantTypes: []oidc.GrantType{oidc.GrantTypeClientCredentials},
				Scopes:     []string{"api:read", "api:write"},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, VerifyClientCredentialsGrant(context.Background(), newReqCtx(oidc.AuthMethodBasic, "api:read")))
	})
	t.Run("public client rejected", func(t *testing.T) {
		err := VerifyClientCredentialsGrant(context.Background(), newReqCtx(oidc.AuthMethodNone))
		assert.ErrorIs(t, err, oidc.ErrInvalidClient())
	})
	t.Run("unregistered scope rejected", func(t *testing.T) {
		err := VerifyClientCredentialsGrant(context.Background(), newReqCtx(oidc.AuthMethodBasic, "admin"))
		assert.ErrorIs(t, err, oidc.ErrInvalidScope())
	})
	t.Run("client without the grant", func(t *testing.T) {
		reqCtx := newReqCtx(oidc.AuthMethodBasic)
		reqCtx.ClientConfiguration.GrantTypes = nil
		err := VerifyClientCredentialsGrant(context.Background(), reqCtx)
		assert.ErrorIs(t, err, oidc.ErrUnauthorizedClient())
	})
}

func TestVerifyPasswordGrant(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("verysecure"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &User{
		ID:             "user-1",
		Username:       "test-user",
		HashedPassword: string(hash),
	}
	newReqCtx := func(username, password string) *TokenRequestContext {
		return &TokenRequestContext{
			GrantType: oidc.GrantTypePassword,
			Username:  username,
			Password:  password,
			ServerConfiguration: &AuthorizationServerConfiguration{
				SupportedGrantTypes: []oidc.GrantType{oidc.GrantTypePassword},
			},
			ClientConfiguration: &ClientConfiguration{
				ClientID:   "client",
				AuthMethod: oidc.AuthMethodBasic,
				GrantTypes: []oidc.GrantType{oidc.GrantTypePassword},
			},
		}
	}

	t.Run("valid credentials", func(t *testing.T) {
		assert.NoError(t, VerifyPasswordGrant(context.Background(), newReqCtx("test-user", "verysecure"), user))
	})
	t.Run("wrong password", func(t *testing.T) {
		err := VerifyPasswordGrant(context.Background(), newReqCtx("test-user", "wrong"), user)
		assert.ErrorIs(t, err, oidc.ErrInvalidGrant())
	})
	t.Run("unknown user", func(t *testing.T) {
		err := VerifyPasswordGrant(context.Background(), newReqCtx("test-user", "verysecure"), nil)
		assert.ErrorIs(t, err, oidc.ErrInvalidGrant())
	})
	t.Run("missing password", func(t *testing.T) {
		err := VerifyPasswordGrant(context.Background(), newReqCtx("test-user", ""), user)
		assert.ErrorIs(t, err, oidc.ErrInvalidRequest())
	})
}

func TestAuthorizationGrant_Merge(t *testing.T) {
	stored := AuthorizationGrant{
		User:     User{ID: "user-1"},
		ClientID: "client",
		Scopes:   oidc.SpaceDelimitedArray{"openid", "profile"},
		Authentication: Authentication{
			Methods: []string{"pwd"},
			Time:    time.Now().Add(-time.Hour),
		},
	}
	fresh := AuthorizationGrant{
		User:      User{ID: "user-1"},
		ClientID:  "client",
		GrantType: oidc.GrantTypeCIBA,
		Scopes:    oidc.SpaceDelimitedArray{"openid", "email"},
	}

	merged := stored.Merge(fresh)
	assert.ElementsMatch(t, oidc.SpaceDelimitedArray{"openid", "profile", "email"}, merged.Scopes)
	assert.Equal(t, oidc.GrantTypeCIBA, merged.GrantType)
}
