// Package sms implements one time code authentication delivered over SMS.
package sms

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
	// TypeChallenge sends a fresh verification code to the user's phone.
	TypeChallenge = "sms-authentication-challenge"
	// TypeVerification checks the code the user entered.
	TypeVerification = "sms-authentication"

	// MethodSMS is the amr value recorded on successful verification.
	MethodSMS = "sms"

	codePeriod = 5 * time.Minute
	codeDigits = otp.DigitsSix
)

// Gateway sends a text message to a phone number. Implementations wrap
// whatever SMS provider the deployment uses.
type Gateway interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// Challenge is one outstanding verification code, stored per authorization.
type Challenge struct {
	Secret      string
	PhoneNumber string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

type ChallengeRepository interface {
	Register(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, challenge *Challenge) error
	Find(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) (*Challenge, error)
	Delete(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier) error
}

// ChallengeInteractor generates a one time code and sends it to the phone
// number of the transaction's user.
type ChallengeInteractor struct {
	Challenges ChallengeRepository
	Gateway    Gateway
	Issuer     string
}

func (i *ChallengeInteractor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	phoneNumber := transaction.Request.User.PhoneNumber
	if v := req.String("phone_number"); v != "" {
		phoneNumber = v
	}
	if phoneNumber == "" {
		return authentication.ClientErrorResult(typ, fmt.Errorf("user has no phone number"))
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      i.Issuer,
		AccountName: phoneNumber,
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
		Secret:      key.Secret(),
		PhoneNumber: phoneNumber,
		IssuedAt:    now,
		ExpiresAt:   now.Add(codePeriod),
	}
	if err := i.Challenges.Register(ctx, tenant, id, challenge); err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	if err := i.Gateway.Send(ctx, phoneNumber, "Your verification code is "+code); err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationChallenge,
		Response:      map[string]any{"expires_in": int64(codePeriod / time.Second)},
		EventType:     "sms_verification_challenge",
	}
}

// VerificationInteractor validates the submitted code against the stored
// challenge. The challenge is consumed on success.
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
		return authentication.ClientErrorResult(typ, fmt.Errorf("no outstanding sms challenge"))
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
	user, err := users.FindByPhone(ctx, tenant, challenge.PhoneNumber)
	if err != nil {
		user = &transaction.Request.User
	}
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationAuthenticate,
		Method:        MethodSMS,
		User:          user,
		Authentication: op.Authentication{
			Methods: []string{MethodSMS},
			Time:    now,
		},
		EventType: "sms_verification_success",
	}
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period: uint(codePeriod / time.Second),
		Digits: codeDigits,
	}
}
