package authentication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/authcove/idp/pkg/op"
)

func TestTransaction_UpdateWith(t *testing.T) {
	transaction := Transaction{
		ID: "txn-1",
		AuthorizationID: AuthorizationIdentifier{
			Flow: FlowCIBA,
			ID:   "request-1",
		},
	}

	transaction = transaction.UpdateWith(Result{
		Status:        StatusSuccess,
		Type:          "sms-authentication-challenge",
		OperationType: OperationChallenge,
	})
	transaction = transaction.UpdateWith(ClientErrorResult("sms-authentication", assert.AnError))
	transaction = transaction.UpdateWith(Result{
		Status:         StatusSuccess,
		Type:           "sms-authentication",
		OperationType:  OperationAuthenticate,
		User:           &op.User{ID: "user-1"},
		Authentication: op.Authentication{Methods: []string{"sms"}, Time: time.Now()},
	})

	assert.Equal(t, 3, transaction.Results.CallCount)
	assert.Equal(t, 2, transaction.Results.SuccessCount)
	assert.Equal(t, 1, transaction.Results.FailureCount)
	assert.Equal(t, "user-1", transaction.User.ID)
	assert.Equal(t, []string{"sms-authentication"}, transaction.SatisfiedTypes)
	assert.Equal(t, []string{"sms"}, transaction.Authentication.Methods)
}

func TestTransaction_UpdateWith_ValueSemantics(t *testing.T) {
	original := Transaction{ID: "txn-1"}
	updated := original.UpdateWith(Result{
		Status:        StatusSuccess,
		Type:          "password-authentication",
		OperationType: OperationAuthenticate,
	})
	assert.Zero(t, original.Results.CallCount)
	assert.Empty(t, original.SatisfiedTypes)
	assert.Equal(t, 1, updated.Results.CallCount)
}

func TestTransaction_IsComplete(t *testing.T) {
	tests := []struct {
		name        string
		transaction Transaction
		want        bool
	}{
		{
			name:        "no success yet",
			transaction: Transaction{},
			want:        false,
		},
		{
			name: "any success suffices without required types",
			transaction: Transaction{
				Results: InteractionResults{CallCount: 1, SuccessCount: 1},
			},
			want: true,
		},
		{
			name: "required type not yet satisfied",
			transaction: Transaction{
				Request:        Request{RequiredTypes: []string{"sms-authentication"}},
				Results:        InteractionResults{CallCount: 1, SuccessCount: 1},
				SatisfiedTypes: []string{"password-authentication"},
			},
			want: false,
		},
		{
			name: "all required types satisfied",
			transaction: Transaction{
				Request:        Request{RequiredTypes: []string{"sms-authentication"}},
				SatisfiedTypes: []string{"password-authentication", "sms-authentication"},
			},
			want: true,
		},
		{
			name: "denied is never complete",
			transaction: Transaction{
				Results: InteractionResults{CallCount: 2, SuccessCount: 2},
				Denied:  true,
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.transaction.IsComplete())
		})
	}
}

func TestTransaction_Deny(t *testing.T) {
	transaction := Transaction{}
	transaction = transaction.UpdateWith(Result{
		Status:        StatusSuccess,
		Type:          "authentication-device-deny",
		OperationType: OperationDeny,
	})
	assert.True(t, transaction.IsDeny())
	assert.False(t, transaction.IsComplete())
}

func TestTransaction_IsExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Transaction{}).IsExpired(now))
	assert.True(t, (&Transaction{Request: Request{ExpiresAt: now.Add(-time.Second)}}).IsExpired(now))
}

func TestInteractors_Get(t *testing.T) {
	interactors := NewInteractors()
	_, err := interactors.Get("unknown")
	assert.ErrorIs(t, err, ErrUnsupportedInteraction)
}
