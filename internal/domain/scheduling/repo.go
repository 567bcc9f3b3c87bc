package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlotFilters narrows FindAvailable queries. Nil fields are ignored.
type SlotFilters struct {
	UnitID         *uuid.UUID
	ServiceID      *uuid.UUID
	ProfessionalID *uuid.UUID
	DateFrom       *time.Time
	DateTo         *time.Time
	Available      *bool
}

// SlotRepository is the durable store of time slots.
type SlotRepository interface {
	Create(ctx context.Context, s *TimeSlot) error
	CreateMany(ctx context.Context, slots []*TimeSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	// FindConflicts returns slots of the professional overlapping [start,end).
	FindConflicts(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]*TimeSlot, error)
	FindAvailable(ctx context.Context, f SlotFilters, limit, offset int) ([]*TimeSlot, int, error)
	Update(ctx context.Context, s *TimeSlot) error
	// Reserve flips the availability flag to false only if it is still true,
	// returning ErrSlotUnavailable when another reserver won the race.
	Reserve(ctx context.Context, id uuid.UUID) error
	// Release flips the availability flag back to true.
	Release(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// BookingRepository is the durable store of bookings.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByConfirmCode(ctx context.Context, code string) (*Booking, error)
	ListByCitizen(ctx context.Context, citizenID uuid.UUID, limit, offset int) ([]*Booking, int, error)
	ListByStatus(ctx context.Context, status BookingStatus, limit, offset int) ([]*Booking, int, error)
	Update(ctx context.Context, b *Booking) error
	Delete(ctx context.Context, id uuid.UUID) error
}
