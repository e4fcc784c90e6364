package ciba

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/authcove/idp/pkg/op"
)

func TestGrant_Transitions(t *testing.T) {
	grant := Grant{
		ID:        "grant-1",
		AuthReqID: "auth-req-1",
		RequestID: "request-1",
		Status:    GrantStatusPending,
		Authorization: op.AuthorizationGrant{
			Authentication: op.Authentication{Methods: []string{"pwd"}},
		},
	}

	authorized := grant.Authorize(op.Authentication{Methods: []string{"sms"}, Time: time.Now()})
	assert.True(t, authorized.IsAuthorized())
	assert.ElementsMatch(t, []string{"pwd", "sms"}, authorized.Authorization.Authentication.Methods)
	// The receiver must stay untouched.
	assert.True(t, grant.IsPending())
	assert.Equal(t, []string{"pwd"}, grant.Authorization.Authentication.Methods)

	denied := grant.Deny()
	assert.True(t, denied.IsDenied())
	assert.True(t, grant.IsPending())
}

func TestGrant_Expired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Grant{}).Expired(now))
	assert.False(t, (&Grant{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&Grant{ExpiresAt: now.Add(-time.Minute)}).Expired(now))
}
