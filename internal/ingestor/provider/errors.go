package provider

import (
	"errors"
	"fmt"
)

// TransientError marks a provider failure that exhausted its retries but is
// expected to succeed on a later cycle (network errors, rate limits). The
// orchestrator abandons the identity's batch without advancing its watermark.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
