// Package ciba implements Client-Initiated Backchannel Authentication on top
// of the op core: request validation, the pending/authorized/access_denied
// grant state machine, client notification and the poll-mode token exchange.
package ciba

import (
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/authcove/idp/pkg/ciba")

// ErrStatusConflict is returned by GrantRepository.UpdateWithStatus when the
// stored status no longer matches the expected one, i.e. a concurrent
// transition won the race.
var ErrStatusConflict = errors.New("ciba grant status conflict")
