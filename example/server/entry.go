package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/authcove/idp/pkg/authentication"
	"github.com/authcove/idp/pkg/authentication/device"
	"github.com/authcove/idp/pkg/authentication/password"
	"github.com/authcove/idp/pkg/authentication/sms"
	"github.com/authcove/idp/pkg/ciba"
	"github.com/authcove/idp/pkg/oidc"
	"github.com/authcove/idp/pkg/op"
)

// entryService glues the CIBA protocol to the authentication transaction: it
// starts a transaction when a backchannel request is accepted, serves the
// simulated authentication device and fires the authorize or deny transition
// once the transaction judges itself complete.
type entryService struct {
	dispatch     *authentication.Dispatch
	transactions authentication.TransactionRepository
	grants       ciba.GrantRepository
	protocol     *ciba.Protocol
	tenant       op.Tenant
	logger       *slog.Logger
}

// onIssued registers the authentication transaction for a freshly accepted
// backchannel request and pushes the notification to the user's device.
func (s *entryService) onIssued(ctx context.Context, tenant op.Tenant, reqCtx *ciba.RequestContext, resp *oidc.BackchannelAuthenticationResponse) error {
	grant, err := s.grants.FindByAuthReqID(ctx, tenant, resp.AuthReqID)
	if err != nil {
		return err
	}
	authorizationID := authentication.AuthorizationIdentifier{
		Flow: authentication.FlowCIBA,
		ID:   grant.RequestID,
	}
	transaction := &authentication.Transaction{
		ID:              uuid.NewString(),
		AuthorizationID: authorizationID,
		Request: authentication.Request{
			AuthorizationID: authorizationID,
			ClientID:        reqCtx.Request.ClientID,
			User:            grant.Authorization.User,
			AvailableTypes:  []string{password.Type, sms.TypeChallenge, sms.TypeVerification, device.TypeDeny},
			RequiredTypes:   []string{sms.TypeVerification},
			BindingMessage:  reqCtx.Request.BindingMessage,
			ExpiresAt:       reqCtx.Request.ExpiresAt,
		},
	}
	if err := s.transactions.Register(ctx, tenant, transaction); err != nil {
		return err
	}
	_, _, err = s.dispatch.Interact(ctx, tenant, authorizationID, device.TypeNotification, nil)
	return err
}

type interactionRequest struct {
	RequestID       string                            `json:"request_id"`
	InteractionType string                            `json:"interaction_type"`
	Parameters      authentication.InteractionRequest `json:"parameters"`
}

// handleInteraction is the simulated authentication device: it submits one
// interaction step and, when the transaction completes or denies, drives the
// grant transition.
func (s *entryService) handleInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	authorizationID := authentication.AuthorizationIdentifier{
		Flow: authentication.FlowCIBA,
		ID:   req.RequestID,
	}
	result, transaction, err := s.dispatch.Interact(ctx, s.tenant, authorizationID, req.InteractionType, req.Parameters)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case transaction.IsDeny():
		if errResult := s.protocol.Deny(ctx, s.tenant, req.RequestID); errResult != nil {
			http.Error(w, errResult.Error.Error(), errResult.Status)
			return
		}
	case transaction.IsComplete():
		authn := transaction.Authentication
		if authn.Time.IsZero() {
			authn.Time = time.Now()
		}
		if errResult := s.protocol.Authorize(ctx, s.tenant, req.RequestID, authn); errResult != nil {
			http.Error(w, errResult.Error.Error(), errResult.Status)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":  result.Status.IsSuccess(),
		"complete": transaction.IsComplete(),
		"denied":   transaction.IsDeny(),
		"response": result.Response,
	})
}
