package ciba_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcove/idp/pkg/ciba"
	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/storage/memory"
)

func TestUserHintResolvers_LoginHint(t *testing.T) {
	f := newCIBAFixture(t)
	resolvers := ciba.NewUserHintResolvers()

	tests := []struct {
		name      string
		loginHint string
		wantUser  string
		wantErr   bool
	}{
		{name: "phone number", loginHint: "tel:+12025550123", wantUser: "user-1"},
		{name: "email address", loginHint: "test-user@example.com", wantUser: "user-1"},
		{name: "subject", loginHint: "user-1", wantUser: "user-1"},
		{name: "username", loginHint: "test-user", wantUser: "user-1"},
		{name: "unknown user", loginHint: "nobody", wantErr: true},
		{name: "unknown phone", loginHint: "tel:+10000000000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := &ciba.BackchannelAuthenticationRequest{LoginHint: tt.loginHint}
			user, err := resolvers.Resolve(context.Background(), testTenant, f.users, request)
			if tt.wantErr {
				assert.ErrorIs(t, err, oidc.ErrInvalidRequest())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, user.ID)
		})
	}
}

func TestUserHintResolvers_TenantIsolation(t *testing.T) {
	resolvers := ciba.NewUserHintResolvers()
	users := memory.NewUserRepository()
	request := &ciba.BackchannelAuthenticationRequest{LoginHint: "test-user"}

	_, err := resolvers.Resolve(context.Background(), testTenant, users, request)
	assert.ErrorIs(t, err, oidc.ErrInvalidRequest())
}
