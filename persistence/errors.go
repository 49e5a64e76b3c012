package persistence

import (
	"errors"

	"github.com/tutorlinkhq/tutorlink/lifecycle"
	"github.com/tutorlinkhq/tutorlink/mirror"
)

// outcome classifies a primary-backend attempt. The fallback decision is
// a pure function of this classification, never a race.
type outcome int

const (
	outcomeOK outcome = iota
	// outcomePolicy: the operation was rejected by lifecycle policy.
	// Propagated verbatim, never retried against the mirror.
	outcomePolicy
	// outcomeUnavailable: the primary could not service the operation
	// (unreachable, erroring, or missing the record entirely - mirror-born
	// records never exist on the primary). Falls through to the mirror.
	outcomeUnavailable
	// outcomeStorage: the mirror itself failed to persist. Fatal; there
	// is no fallback beneath the mirror store.
	outcomeStorage
)

func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeOK
	case lifecycle.IsPolicy(err):
		return outcomePolicy
	case errors.Is(err, mirror.ErrStorage):
		return outcomeStorage
	default:
		return outcomeUnavailable
	}
}
