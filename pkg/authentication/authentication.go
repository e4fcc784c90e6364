// Package authentication holds the transaction aggregate and the interactor
// contract driving multi-step end-user authentication for both the
// front-channel and the backchannel flow.
package authentication

import (
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/authcove/idp/pkg/authentication")

// ErrUnsupportedInteraction is returned when no interactor is registered for
// a requested interaction type.
var ErrUnsupportedInteraction = errors.New("unsupported authentication interaction")
