// Package op implements the tenant-scoped core of the authorization server:
// configuration resolution, the authorization-code grant verification pipeline,
// client authentication and token minting. Protocol extensions (CIBA) and
// authentication interaction live in their own packages on top of this one.
package op

import (
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/authcove/idp/pkg/op")

// ErrNotFound is returned by every repository when a record is absent.
// Expired records are reported the same way, callers never get to see
// stale-valid state.
var ErrNotFound = errors.New("not found")
