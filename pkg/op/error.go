package op

import (
	"context"
	"log/slog"
	"net/http"

	httphelper "github.com/authcove/idp/pkg/http"
	"github.com/authcove/idp/pkg/oidc"
)

// RequestError writes the protocol error as JSON body with the status the
// error type maps to. Client-caused failures log at warn, server-caused at
// error; the response never carries internals beyond code and description.
func RequestError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	e := oidc.DefaultToServerError(err, "unexpected error")
	LogError(r.Context(), e, logger)
	httphelper.MarshalJSONWithStatus(w, e, e.StatusCode())
}

// LogError logs a protocol error at the level its origin demands.
func LogError(ctx context.Context, e *oidc.Error, logger *slog.Logger) {
	if logger == nil {
		return
	}
	level := slog.LevelWarn
	if e.IsServerCaused() {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "request error",
		"oidc_error", string(e.ErrorType),
		"description", e.Description,
		"parent", e.Parent,
	)
}
