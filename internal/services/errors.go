// internal/services/errors.go
package services

import "errors"

// Error kinds surfaced by the settlement core. Exhausted and insufficient
// credit are expected operational outcomes; invalid transitions and
// reconciliation mismatches are programmer errors and must fail loudly
// without persisting anything.
var (
	ErrExhausted              = errors.New("license pool exhausted")
	ErrPoolInactive           = errors.New("license pool inactive or missing")
	ErrAlreadyGranted         = errors.New("access already granted")
	ErrInsufficientCredit     = errors.New("sponsor credit balance would go negative")
	ErrInvalidTransition      = errors.New("voucher already in a terminal state")
	ErrReconciliationMismatch = errors.New("settlement components do not reconcile")
	ErrBelowPayoutMinimum     = errors.New("pending payout below minimum threshold")
)
