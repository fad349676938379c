package core

import "errors"

var (
	// ErrPeriodClosed is returned when a mutation targets a transaction
	// whose fiscal period has already been closed.
	ErrPeriodClosed = errors.New("fiscal period is closed")

	// ErrNoOpenPeriod is returned when the period chain is empty and no
	// bootstrap has been performed yet.
	ErrNoOpenPeriod = errors.New("no open fiscal period")

	// ErrOutOfOrder is returned when a closing targets a period that is not
	// the single currently open one.
	ErrOutOfOrder = errors.New("period is not the current open period")

	// ErrAlreadyClosed is returned on a duplicate closing attempt. The first
	// closing stays untouched; the second call is a no-op error.
	ErrAlreadyClosed = errors.New("period already closed")

	// ErrConfigUnavailable aborts a closing attempt when the closing
	// configuration cannot be loaded. Nothing is persisted.
	ErrConfigUnavailable = errors.New("closing configuration unavailable")

	ErrNotFound         = errors.New("not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidMovement  = errors.New("invalid movement type")
	ErrInvalidRelevance = errors.New("invalid relevance code")
	ErrInvalidPeriod    = errors.New("invalid fiscal period")
	ErrEmptyConcept     = errors.New("empty concept")
	ErrEmptyName        = errors.New("empty name")
)
