package scheduling

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeSlot maps to the time_slot table. A slot is a bookable interval for one
// professional/unit/service combination. All instants are UTC; Date carries
// the calendar day at UTC midnight and duration is derived from the interval.
type TimeSlot struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Date           time.Time `db:"slot_date" json:"date"`
	StartTime      time.Time `db:"start_time" json:"start_time"`
	EndTime        time.Time `db:"end_time" json:"end_time"`
	Available      bool      `db:"available" json:"available"`
	ProfessionalID uuid.UUID `db:"professional_id" json:"professional_id"`
	UnitID         uuid.UUID `db:"unit_id" json:"unit_id"`
	ServiceID      uuid.UUID `db:"service_id" json:"service_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Validate checks the interval invariant.
func (s *TimeSlot) Validate() error {
	if !s.StartTime.Before(s.EndTime) {
		return &ValidationError{Msg: "start_time must be before end_time"}
	}
	return nil
}

// DurationMinutes returns the slot length in whole minutes.
func (s *TimeSlot) DurationMinutes() int {
	return int(s.EndTime.Sub(s.StartTime) / time.Minute)
}

// Overlaps reports whether the slot intersects the half-open interval
// [start,end). Touching endpoints do not overlap.
func (s *TimeSlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

// IsPast reports whether the slot's start has already elapsed at now.
func (s *TimeSlot) IsPast(now time.Time) bool {
	return s.StartTime.Before(now)
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusScheduled BookingStatus = "SCHEDULED"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusAttended  BookingStatus = "ATTENDED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusMissed    BookingStatus = "MISSED"
)

// ValidBookingStatus reports whether s is a known status value.
func ValidBookingStatus(s BookingStatus) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusAttended, StatusCancelled, StatusMissed:
		return true
	}
	return false
}

// Terminal reports whether no transition is permitted out of s.
func (s BookingStatus) Terminal() bool {
	return s == StatusAttended || s == StatusCancelled || s == StatusMissed
}

// CancelWindow is the minimum lead time before the scheduled instant during
// which cancellation is refused. Exactly CancelWindow ahead is still allowed.
const CancelWindow = 2 * time.Hour

// Booking maps to the booking table: a citizen's claim on one TimeSlot.
// ScheduledAt is copied from the slot's start at creation and drives the
// cancellation-window arithmetic.
type Booking struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	SlotID      uuid.UUID     `db:"slot_id" json:"slot_id"`
	CitizenID   uuid.UUID     `db:"citizen_id" json:"citizen_id"`
	Status      BookingStatus `db:"status" json:"status"`
	ScheduledAt time.Time     `db:"scheduled_at" json:"scheduled_at"`
	ConfirmCode string        `db:"confirm_code" json:"confirm_code"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// Confirm moves the booking to CONFIRMED after checking the code. Codes are
// stored uppercase and compared byte-for-byte.
func (b *Booking) Confirm(code string) error {
	if b.ConfirmCode != code {
		return ErrBadConfirmCode
	}
	if b.Status != StatusScheduled {
		return &InvalidTransitionError{From: b.Status, Op: "confirm"}
	}
	b.Status = StatusConfirmed
	return nil
}

// Cancel moves the booking to CANCELLED. A booking inside the cancellation
// window (0 < scheduledAt-now < CancelWindow) is refused; one whose time has
// fully passed may still be cancelled.
func (b *Booking) Cancel(now time.Time) error {
	if b.Status.Terminal() {
		return &InvalidTransitionError{From: b.Status, Op: "cancel"}
	}
	lead := b.ScheduledAt.Sub(now)
	if lead > 0 && lead < CancelWindow {
		return &TooLateToCancelError{Remaining: lead}
	}
	b.Status = StatusCancelled
	return nil
}

// MarkAttended moves a SCHEDULED or CONFIRMED booking to ATTENDED.
func (b *Booking) MarkAttended() error {
	if b.Status != StatusScheduled && b.Status != StatusConfirmed {
		return &InvalidTransitionError{From: b.Status, Op: "complete"}
	}
	b.Status = StatusAttended
	return nil
}

// MarkMissed moves a SCHEDULED or CONFIRMED booking to MISSED.
func (b *Booking) MarkMissed() error {
	if b.Status != StatusScheduled && b.Status != StatusConfirmed {
		return &InvalidTransitionError{From: b.Status, Op: "mark-missed"}
	}
	b.Status = StatusMissed
	return nil
}

// CanBeCancelled mirrors the guard in Cancel without side effects.
func (b *Booking) CanBeCancelled(now time.Time) bool {
	if b.Status.Terminal() {
		return false
	}
	lead := b.ScheduledAt.Sub(now)
	return lead <= 0 || lead >= CancelWindow
}

const confirmCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewConfirmCode generates a random 6-character uppercase alphanumeric code.
func NewConfirmCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to an
		// id-derived code rather than a predictable constant.
		return strings.ToUpper(uuid.NewString()[:6])
	}
	for i, c := range buf {
		buf[i] = confirmCodeAlphabet[int(c)%len(confirmCodeAlphabet)]
	}
	return string(buf)
}
