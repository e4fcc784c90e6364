package op

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/zitadel/logging"
)

const (
	healthEndpoint                 = "/healthz"
	defaultTokenEndpoint           = "/oauth/v2/token"
	defaultBackchannelAuthEndpoint = "/backchannel/v1/authentications"
)

var defaultCORSOptions = cors.Options{
	AllowCredentials: true,
	AllowedHeaders:   []string{"Origin", "Accept", "Accept-Language", "Authorization", "Content-Type", "X-Requested-With"},
	AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost},
	AllowedOrigins:   []string{"*"},
}

// NewRouter assembles the HTTP surface of the server core: the token endpoint
// and, when provided, the backchannel authentication endpoint. Everything else
// (authorize UI, discovery, administration) is an adapter concern.
func NewRouter(token *TokenEndpoint, backchannel http.Handler, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()
	router.Use(requestLogger(logger))
	router.Get(healthEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Post(defaultTokenEndpoint, token.ServeHTTP)
	if backchannel != nil {
		router.Post(defaultBackchannelAuthEndpoint, backchannel.ServeHTTP)
	}
	return cors.New(defaultCORSOptions).Handler(router)
}

// requestLogger attaches the logger to the request context and emits one line
// per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r = r.WithContext(logging.ToContext(r.Context(), logger))
			next.ServeHTTP(w, r)
			logger.InfoContext(r.Context(), "request served",
				"method", r.Method,
				"path", r.URL.Path,
				"took", time.Since(start),
			)
		})
	}
}
