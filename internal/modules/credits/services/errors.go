package services

import (
	"errors"
	"fmt"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
)

var (
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountClosed        = errors.New("account closed")
	ErrMissingUserID        = errors.New("user id is required")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrIdempotencyKeyReused = errors.New("idempotency key already used for a different mutation")

	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = fmt.Errorf("%w: cannot use your own code", ErrInvalidReferralCode)
	ErrReferralCycle       = fmt.Errorf("%w: referrer was referred by this user", ErrInvalidReferralCode)
	ErrNotReferred         = errors.New("user was not referred by this referrer")

	ErrMissionNotFound = errors.New("mission not found")
	ErrMissionExpired  = errors.New("mission expired")

	// ErrInvalidCursor is a history page token that does not decode
	ErrInvalidCursor = repositories.ErrInvalidCursor

	// ErrTransactionConflict is a lost compare-and-set; retried internally
	ErrTransactionConflict = repositories.ErrConflict

	// ErrRetriesExhausted is the transient failure surfaced when conflicts outlast the retry budget
	ErrRetriesExhausted = errors.New("transaction retries exhausted")
)

// InsufficientCreditsError carries the balance observed when a spend was rejected
type InsufficientCreditsError struct {
	CurrentBalance int64
	Requested      int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, requested %d", e.CurrentBalance, e.Requested)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}
