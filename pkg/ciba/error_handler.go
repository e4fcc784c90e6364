package ciba

import (
	"context"
	"log/slog"

	"github.com/authcove/idp/pkg/oidc"
)

// ErrorResult is the boundary representation of a failed flow: the HTTP
// status to answer with and the protocol error body.
type ErrorResult struct {
	Status int
	Error  *oidc.Error
}

// errorHandler converts whatever a flow returned into an ErrorResult and
// logs it. One handler per flow keeps the log lines attributable.
type errorHandler struct {
	flow   string
	logger *slog.Logger
}

func (h errorHandler) handle(ctx context.Context, err error) *ErrorResult {
	e := oidc.DefaultToServerError(err, "unexpected error")
	if h.logger != nil {
		level := slog.LevelWarn
		if e.IsServerCaused() {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "ciba flow failed",
			"flow", h.flow,
			"oidc_error", string(e.ErrorType),
			"description", e.Description,
			"parent", e.Parent,
		)
	}
	return &ErrorResult{Status: e.StatusCode(), Error: e}
}
