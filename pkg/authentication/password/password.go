// Package password implements username and password authentication.
package password

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authcove/idp/pkg/authentication"
	"github.com/authcove/idp/pkg/op"
)

const (
	Type = "password-authentication"

	MethodPassword = "pwd"
)

// Interactor checks a username/password pair against the stored bcrypt hash.
type Interactor struct{}

func (i *Interactor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	username := req.String("username")
	password := req.String("password")
	if username == "" || password == "" {
		return authentication.ClientErrorResult(typ, fmt.Errorf("username and password are required"))
	}
	user, err := users.FindByUsername(ctx, tenant, username)
	if err != nil {
		// Indistinguishable from a wrong password on purpose.
		return authentication.ClientErrorResult(typ, fmt.Errorf("authentication failed"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return authentication.ClientErrorResult(typ, fmt.Errorf("authentication failed"))
	}
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationAuthenticate,
		Method:        MethodPassword,
		User:          user,
		Authentication: op.Authentication{
			Methods: []string{MethodPassword},
			Time:    time.Now(),
		},
		EventType: "password_success",
	}
}
