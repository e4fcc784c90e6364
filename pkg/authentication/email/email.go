// Package email implements one time code authentication delivered by mail.
package email

import (
	"context"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/authcove/idp/pkg/authentication"
	"github.com/authcove/idp/pkg/op"
)

const (
	TypeChallenge    = "email-authentication-challenge"
	TypeVerification = "email-authentication"

	MethodEmail = "email"

	codePeriod = 10 * time.Minute
	codeDigits = otp.DigitsSix
)

// Sender delivers a verification code mail. Implementations wrap an SMTP
// relay or a mail provider API.
type Sender interface {
	Send(ctx context.Context, address, subject, body string) error
}

type Challenge struct {
	Secret    string
	Address   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

type ChallengeRepository interface {
	Register(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, challenge *Challenge) error
	Find(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) (*Challenge, error)
	Delete(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) error
}

type ChallengeInteractor struct {
	Challenges ChallengeRepository
	Sender     Sender
	Issuer     string
}

func (i *ChallengeInteractor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	address := transaction.Request.User.Email
	if v := req.String("email"); v != "" {
		address = v
	}
	if address == "" {
		return authentication.ClientErrorResult(typ, fmt.Errorf("user has no email address"))
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      i.Issuer,
		AccountName: address,
		Period:      uint(codePeriod / time.Second),
		Digits:      codeDigits,
	})
	if err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	now := time.Now()
	code, err := totp.GenerateCodeCustom(key.Secret(), now, validateOpts())
	if err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	challenge := &Challenge{
		Secret:    key.Secret(),
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(codePeriod),
	}
	if err := i.Challenges.Register(ctx, tenant, id, challenge); err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	body := "Your verification code is " + code
	if err := i.Sender.Send(ctx, address, "Verification code", body); err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationChallenge,
		Response:      map[string]any{"expires_in": int64(codePeriod / time.Second)},
		EventType:     "email_verification_challenge",
	}
}

type VerificationInteractor struct {
	Challenges ChallengeRepository
}

func (i *VerificationInteractor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	code := req.String("verification_code")
	if code == "" {
		return authentication.ClientErrorResult(typ, fmt.Errorf("verification_code is required"))
	}
	challenge, err := i.Challenges.Find(ctx, tenant, id)
	if err != nil {
		return authentication.ClientErrorResult(typ, fmt.Errorf("no outstanding email challenge"))
	}
	now := time.Now()
	if challenge.Expired(now) {
		return authentication.ClientErrorResult(typ, fmt.Errorf("verification code expired"))
	}
	valid, err := totp.ValidateCustom(code, challenge.Secret, challenge.IssuedAt, validateOpts())
	if err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	if !valid {
		return authentication.ClientErrorResult(typ, fmt.Errorf("invalid verification code"))
	}
	if err := i.Challenges.Delete(ctx, tenant, id); err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	user, err := users.FindByEmail(ctx, tenant, challenge.Address)
	if err != nil {
		user = &transaction.Request.User
	}
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationAuthenticate,
		Method:        MethodEmail,
		User:          user,
		Authentication: op.Authentication{
			Methods: []string{MethodEmail},
			Time:    now,
		},
		EventType: "email_verification_success",
	}
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period: uint(codePeriod / time.Second),
		Digits: codeDigits,
	}
}
