package oidc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationDetails_UnmarshalText(t *testing.T) {
	var details AuthorizationDetails
	err := details.UnmarshalText([]byte(`[{"type":"payment_initiation","actions":["initiate"],"locations":["https://bank.example/payments"]}]`))
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "payment_initiation", details[0].Type)
	assert.Equal(t, []string{"initiate"}, details[0].Actions)
}

func TestAuthorizationDetails_Merge(t *testing.T) {
	type args struct {
		base  AuthorizationDetails
		other AuthorizationDetails
	}
	tests := []struct {
		name string
		args args
		want AuthorizationDetails
	}{
		{
			name: "empty other keeps base",
			args: args{
				base:  AuthorizationDetails{{Type: "account_information"}},
				other: nil,
			},
			want: AuthorizationDetails{{Type: "account_information"}},
		},
		{
			name: "same type replaced by newer",
			args: args{
				base:  AuthorizationDetails{{Type: "payment_initiation", Actions: []string{"initiate"}}},
				other: AuthorizationDetails{{Type: "payment_initiation", Actions: []string{"initiate", "status"}}},
			},
			want: AuthorizationDetails{{Type: "payment_initiation", Actions: []string{"initiate", "status"}}},
		},
		{
			name: "different types unioned",
			args: args{
				base:  AuthorizationDetails{{Type: "account_information"}},
				other: AuthorizationDetails{{Type: "payment_initiation"}},
			},
			want: AuthorizationDetails{{Type: "account_information"}, {Type: "payment_initiation"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.args.base.Merge(tt.args.other)
			assert.Equal(t, tt.want, got)
		})
	}
}
