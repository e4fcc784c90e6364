package authentication

import (
	"context"
	"log/slog"
	"time"

	"github.com/authcove/idp/pkg/op"
)

// Dispatch looks up the interactor for a requested interaction type, invokes
// it and folds the result into the stored transaction. No business logic
// lives here.
type Dispatch struct {
	Interactors  *Interactors
	Transactions TransactionRepository
	Users        op.UserQueryRepository

	logger *slog.Logger
}

func NewDispatch(interactors *Interactors, transactions TransactionRepository, users op.UserQueryRepository, logger *slog.Logger) *Dispatch {
	return &Dispatch{
		Interactors:  interactors,
		Transactions: transactions,
		Users:        users,
		logger:       logger,
	}
}

// Interact runs one interaction step and returns the result together with
// the updated transaction, already persisted.
func (d *Dispatch) Interact(ctx context.Context, tenant op.Tenant, authorizationID AuthorizationIdentifier, typ string, req InteractionRequest) (Result, *Transaction, error) {
	ctx, span := tracer.Start(ctx, "Dispatch.Interact")
	defer span.End()

	transaction, err := d.Transactions.Find(ctx, tenant, authorizationID)
	if err != nil {
		return Result{}, nil, err
	}
	if transaction.IsExpired(time.Now()) {
		return Result{}, nil, op.ErrNotFound
	}
	interactor, err := d.Interactors.Get(typ)
	if err != nil {
		return Result{}, nil, err
	}

	result := interactor.Interact(ctx, tenant, authorizationID, typ, req, transaction, d.Users)
	updated := transaction.UpdateWith(result)
	if err := d.Transactions.Update(ctx, tenant, &updated); err != nil {
		return Result{}, nil, err
	}

	level := slog.LevelInfo
	if result.Status == StatusServerError {
		level = slog.LevelError
	} else if result.Status == StatusClientError {
		level = slog.LevelWarn
	}
	d.logger.Log(ctx, level, "authentication interaction",
		"type", typ,
		"operation", string(result.OperationType),
		"success", result.Status.IsSuccess(),
		"calls", updated.Results.CallCount,
	)
	return result, &updated, nil
}
