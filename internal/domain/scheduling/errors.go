package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced by the scheduling service. Callers branch on these
// with errors.Is / errors.As; the HTTP handler maps them to status classes.
var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrSlotUnavailable = errors.New("slot is no longer available")
	ErrPastSlot        = errors.New("slot start time has already passed")
	ErrBadConfirmCode  = errors.New("confirmation code does not match")
	ErrSlotBooked      = errors.New("slot is held by an active booking")
)

// ValidationError reports malformed generation or creation input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// InvalidTransitionError reports a state-machine guard violation.
type InvalidTransitionError struct {
	From BookingStatus
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a booking in status %s", e.Op, e.From)
}

// TooLateToCancelError reports a cancellation attempt inside the blackout
// window. Remaining is the lead time left before the scheduled instant.
type TooLateToCancelError struct {
	Remaining time.Duration
}

func (e *TooLateToCancelError) Error() string {
	return fmt.Sprintf("cannot cancel less than %s before the scheduled time (%d minutes remain)",
		CancelWindow, int(e.Remaining.Minutes()))
}

// ConflictAbortedError reports that recurring generation under the FAIL
// policy hit a conflict; nothing from the batch was persisted.
type ConflictAbortedError struct {
	Date   string
	Window string
}

func (e *ConflictAbortedError) Error() string {
	return fmt.Sprintf("conflict at %s %s aborted the batch", e.Date, e.Window)
}
