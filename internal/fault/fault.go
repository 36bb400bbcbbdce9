// Package fault defines the error taxonomy shared across the reconcile and
// marketplace flows. Raw RPC errors are classified once, at the chain
// boundary, so callers can branch on sentinels instead of provider-specific
// message text.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUserRejected marks a confirmation prompt declined by the acting
	// party. Expected outcome, not an operational error.
	ErrUserRejected = errors.New("transaction rejected by user")

	// ErrPolicyRejected marks an external anti-abuse rejection. Callers must
	// surface it with retry-later guidance and never retry in a loop.
	ErrPolicyRejected = errors.New("transaction rejected by rpc policy")

	// ErrWriteRejected marks a submitted write that the ledger reverted.
	ErrWriteRejected = errors.New("ledger write reverted")

	ErrInsufficientBalance   = errors.New("insufficient payment balance")
	ErrInsufficientAllowance = errors.New("insufficient payment allowance")
	ErrFeedRowMissing        = errors.New("no feed row for pool")
	ErrNotListed             = errors.New("token has no active listing")
	ErrNotSeller             = errors.New("caller is not the listing seller")
	ErrSoldOut               = errors.New("pool supply exhausted")
	ErrInvalidPrice          = errors.New("listing price must be positive")
)

// Classify maps a raw ledger transport error onto the taxonomy. Errors that
// match no known pattern pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user denied"),
		strings.Contains(msg, "action_rejected"),
		strings.Contains(msg, "rejected by user"):
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	case strings.Contains(msg, "spam filter"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"):
		return fmt.Errorf("%w: %v", ErrPolicyRejected, err)
	}
	return err
}

// Benign reports whether the error is an expected user-driven outcome that
// should be logged without alarm.
func Benign(err error) bool {
	return errors.Is(err, ErrUserRejected)
}
