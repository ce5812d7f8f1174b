// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the request conflicts with existing state (e.g. a
// duplicate agent UID or credential, or a second proposal from one author).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates a request failed field-level validation.
var ErrValidation = errors.New("validation failed")

// ErrInsufficientCredit indicates an agent lacks the liquid conviction points
// required to perform an action (e.g. self-stake on submit_proposal).
var ErrInsufficientCredit = errors.New("insufficient credit")

// ErrMaxCreditExceeded indicates an award would push an agent's balance past
// Mechanism.MaximumCredit.
var ErrMaxCreditExceeded = errors.New("maximum credit exceeded")

// ErrStakeNotFound indicates a referenced stake id does not exist.
var ErrStakeNotFound = errors.New("stake not found")

// ErrStakeImmutable indicates a stake cannot be withdrawn or switched because
// it is a mandatory stake rather than a voluntary one.
var ErrStakeImmutable = errors.New("stake is immutable")

// ErrInvalidPhase indicates the requested action is not admissible in the
// issue's current phase.
var ErrInvalidPhase = errors.New("action not valid in current phase")

// ErrUnauthenticated indicates the caller's credential did not match any
// enrolled agent.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrNotAssigned indicates the caller is not an agent assigned to the issue.
var ErrNotAssigned = errors.New("agent not assigned to issue")

// ErrQuotaExceeded indicates a per-round or per-agent cap was exceeded
// (e.g. MaxFeedbackPerAgent).
var ErrQuotaExceeded = errors.New("quota exceeded")

// ErrFeedbackTooLong indicates feedback body exceeds FeedbackCharLimit.
var ErrFeedbackTooLong = errors.New("feedback exceeds character limit")

// ErrSemantic indicates a structurally valid action was rejected by a
// domain-specific semantic rule.
var ErrSemantic = errors.New("semantic validation failed")

// ErrLedgerClosed indicates an append was attempted after the issue reached
// FINALIZE.
var ErrLedgerClosed = errors.New("ledger closed: issue already finalized")
