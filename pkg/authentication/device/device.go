// Package device implements the authentication-device side of the CIBA flow:
// notifying the user's device about a pending authorization and recording
// the user's denial.
package device

import (
	"context"
	"fmt"

	"github.com/authcove/idp/pkg/authentication"
	"github.com/authcove/idp/pkg/op"
)

const (
	// TypeNotification pushes the pending authorization to the user's
	// registered authentication device.
	TypeNotification = "authentication-device-notification"
	// TypeDeny records that the user rejected the authorization on the
	// device.
	TypeDeny = "authentication-device-deny"
)

// NotificationGateway pushes a message to the user's authentication device,
// e.g. via FCM or APNs.
type NotificationGateway interface {
	Notify(ctx context.Context, tenant op.Tenant, user op.User, payload map[string]any) error
}

// NotificationInteractor starts the user interaction of the backchannel
// flow. The payload carries everything the device needs to render the
// consent screen.
type NotificationInteractor struct {
	Gateway NotificationGateway
}

func (i *NotificationInteractor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	target := transaction.Request.User
	if target.ID == "" {
		return authentication.ClientErrorResult(typ, fmt.Errorf("transaction has no resolved user"))
	}
	payload := map[string]any{
		"authorization_flow": string(id.Flow),
		"authorization_id":   id.ID,
		"client_id":          transaction.Request.ClientID,
	}
	if transaction.Request.BindingMessage != "" {
		payload["binding_message"] = transaction.Request.BindingMessage
	}
	if err := i.Gateway.Notify(ctx, tenant, target, payload); err != nil {
		return authentication.ServerErrorResult(typ, err)
	}
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationChallenge,
		EventType:     "authentication_device_notification",
	}
}

// DenyInteractor records the user's rejection. The transaction reports
// IsDeny afterwards; the caller drives the grant denial from there.
type DenyInteractor struct{}

func (i *DenyInteractor) Interact(ctx context.Context, tenant op.Tenant, id authentication.AuthorizationIdentifier, typ string, req authentication.InteractionRequest, transaction *authentication.Transaction, users op.UserQueryRepository) authentication.Result {
	return authentication.Result{
		Status:        authentication.StatusSuccess,
		Type:          typ,
		OperationType: authentication.OperationDeny,
		EventType:     "authentication_device_deny",
	}
}
