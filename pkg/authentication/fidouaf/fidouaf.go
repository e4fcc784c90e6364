// Package fidouaf delegates FIDO UAF authentication to an external server.
package fidouaf

import (
	"context"
	"fmt"
	"time"

	"github.com/authcove/idp/pkg/authentication"
	"github.com/authcove/idp/pkg/op"
)

const (
	TypeChallenge    = "fido-uaf-authentication-challenge"
	TypeVerification = "fido-uaf-authentication"

	MethodFIDOUAF = "fido-uaf"
)

// Gateway is the external FIDO UAF server. Challenge returns the UAF request
// message for the authenticator, Verify checks the signed UAF response.
type Gateway interface {
	Challenge(ctx context.Context, tenant op.Tenant, userID string) (map[string]any, error)
	Verify(ctx context.Context, tenant op.Tenant, userID string, response map[string]any) error
}

type ChallengeInteractor struct {
	Gateway Gateway
}

func (i *ChallengeInteractor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	userID := transaction.Request.User.ID
	if userID == "" {
		return authentication.ClientErrorResult(typ, fmt.Errorf("transaction has no resolved user"))
	}
	challenge, err := i.Gateway.Challenge(ctx, tenant, userID)
	if err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationChallenge,
		Response:      challenge,
		EventType:     "fido_uaf_authentication_challenge",
	}
}

type VerificationInteractor struct {
	Gateway Gateway
}

func (i *VerificationInteractor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	userID := transaction.Request.User.ID
	if userID == "" {
		return authentication.ClientErrorResult(typ, fmt.Errorf("transaction has no resolved user"))
	}
	if err := i.Gateway.Verify(ctx, tenant, userID, req); err != nil {
		return authentication.ClientErrorResult(typ, err)
	}
	user := transaction.Request.User
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationAuthenticate,
		Method:        MethodFIDOUAF,
		User:          &user,
		Authentication: op.Authentication{
			Methods: []string{MethodFIDOUAF},
			Time:    time.Now(),
		},
		EventType: "fido_uaf_authentication_success",
	}
}
