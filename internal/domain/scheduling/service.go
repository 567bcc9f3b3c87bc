package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agendasaude/agendasaude/internal/platform/clock"
)

// TxRunner executes fn as one storage transaction. Repositories pick the
// pinned connection up from the context, so every statement fn issues lands
// in the same transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service is the slot-allocation and booking-lifecycle engine. All mutable
// shared state (slot availability, booking status) is resolved at the store
// through conditional updates, never optimistically in memory.
type Service struct {
	slots    SlotRepository
	bookings BookingRepository
	clock    clock.Clock
	tx       TxRunner
}

func NewService(slots SlotRepository, bookings BookingRepository, clk clock.Clock) *Service {
	return &Service{
		slots:    slots,
		bookings: bookings,
		clock:    clk,
		tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
}

// WithTxRunner installs the transaction boundary for multi-write operations.
// Without it each statement commits on its own.
func (s *Service) WithTxRunner(tx TxRunner) *Service {
	if tx != nil {
		s.tx = tx
	}
	return s
}

// -- Slots --

func (s *Service) CreateSlot(ctx context.Context, sl *TimeSlot) error {
	if sl.ProfessionalID == uuid.Nil {
		return &ValidationError{Msg: "professional_id is required"}
	}
	if sl.UnitID == uuid.Nil {
		return &ValidationError{Msg: "unit_id is required"}
	}
	if sl.ServiceID == uuid.Nil {
		return &ValidationError{Msg: "service_id is required"}
	}
	if err := sl.Validate(); err != nil {
		return err
	}
	sl.Available = true
	return s.slots.Create(ctx, sl)
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return s.slots.GetByID(ctx, id)
}

func (s *Service) SearchAvailableSlots(ctx context.Context, f SlotFilters, limit, offset int) ([]*TimeSlot, int, error) {
	return s.slots.FindAvailable(ctx, f, limit, offset)
}

// DeleteSlot removes a slot. Slots held by an active booking are protected.
func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	sl, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !sl.Available {
		return ErrSlotBooked
	}
	return s.slots.Delete(ctx, id)
}

// GenerateSlots expands a single-day window and persists the batch.
func (s *Service) GenerateSlots(ctx context.Context, req GenerateRequest) (*GenerationReport, error) {
	if req.ProfessionalID == uuid.Nil {
		return nil, &ValidationError{Msg: "professional_id is required"}
	}
	slots, err := GenerateDay(req)
	if err != nil {
		return nil, err
	}
	if len(slots) > 0 {
		if err := s.slots.CreateMany(ctx, slots); err != nil {
			return nil, err
		}
	}
	return &GenerationReport{Created: len(slots), Slots: slots}, nil
}

// GenerateRecurring expands the request across the date range and applies the
// conflict policy against already-persisted slots of the professional.
// Under SKIP the batch continues and conflicts are aggregated in the report;
// under FAIL the first conflict aborts before anything is persisted; under
// REPLACE conflicting slots are deleted first, except slots held by an active
// booking, which are skipped and reported like SKIP.
func (s *Service) GenerateRecurring(ctx context.Context, req RecurringRequest) (*GenerationReport, error) {
	if req.ProfessionalID == uuid.Nil {
		return nil, &ValidationError{Msg: "professional_id is required"}
	}
	if req.Policy == "" {
		req.Policy = PolicySkip
	}
	switch req.Policy {
	case PolicySkip, PolicyFail, PolicyReplace:
	default:
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown conflict policy %q", req.Policy)}
	}

	start, end, err := req.validate()
	if err != nil {
		return nil, err
	}

	report := &GenerationReport{}
	var staged []*TimeSlot
	replaceIDs := map[uuid.UUID]bool{}

	for _, cand := range req.expand(start, end) {
		conflicts, err := s.slots.FindConflicts(ctx, req.ProfessionalID, cand.StartTime, cand.EndTime)
		if err != nil {
			return nil, err
		}
		if len(conflicts) == 0 {
			staged = append(staged, cand)
			continue
		}

		date := cand.Date.Format("2006-01-02")
		window := slotWindow(cand)

		switch req.Policy {
		case PolicyFail:
			return nil, &ConflictAbortedError{Date: date, Window: window}
		case PolicySkip:
			report.Skipped++
			report.Conflicts = addConflict(report.Conflicts, date, window)
		case PolicyReplace:
			booked := false
			var freeIDs []uuid.UUID
			for _, c := range conflicts {
				if !c.Available {
					booked = true
					continue
				}
				freeIDs = append(freeIDs, c.ID)
			}
			if booked {
				// A citizen's appointment holds one of the conflicting slots;
				// never destroy it, report the candidate as skipped instead.
				// Free slots caught in the same conflict survive too, since
				// the candidate that would replace them is not being created.
				report.Skipped++
				report.Conflicts = addConflict(report.Conflicts, date, window)
				continue
			}
			for _, id := range freeIDs {
				replaceIDs[id] = true
			}
			staged = append(staged, cand)
		}
	}

	// Replacement deletes and the batch insert commit or fail together.
	err = s.tx(ctx, func(ctx context.Context) error {
		for id := range replaceIDs {
			if err := s.slots.Delete(ctx, id); err != nil {
				return err
			}
		}
		if len(staged) > 0 {
			return s.slots.CreateMany(ctx, staged)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.Created = len(staged)
	report.Slots = staged
	return report, nil
}

// CopyWeekRequest copies a professional's slots from one week to another.
// Both dates are the first day (YYYY-MM-DD) of their respective weeks.
type CopyWeekRequest struct {
	SourceWeekStart string    `json:"source_week_start"`
	TargetWeekStart string    `json:"target_week_start"`
	ProfessionalID  uuid.UUID `json:"professional_id"`
}

// CopyWeekSchedule replicates every slot of the source week into the target
// week, shifted by the day delta. Candidates that conflict with existing
// slots are skipped and reported.
func (s *Service) CopyWeekSchedule(ctx context.Context, req CopyWeekRequest) (*GenerationReport, error) {
	if req.ProfessionalID == uuid.Nil {
		return nil, &ValidationError{Msg: "professional_id is required"}
	}
	source, err := parseDay(req.SourceWeekStart)
	if err != nil {
		return nil, err
	}
	target, err := parseDay(req.TargetWeekStart)
	if err != nil {
		return nil, err
	}
	if target.Equal(source) {
		return nil, &ValidationError{Msg: "target week must differ from source week"}
	}

	existing, err := s.slots.FindConflicts(ctx, req.ProfessionalID, source, source.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}

	deltaDays := int(target.Sub(source).Hours() / 24)
	report := &GenerationReport{}
	var staged []*TimeSlot

	for _, src := range existing {
		cand := &TimeSlot{
			Date:           src.Date.AddDate(0, 0, deltaDays),
			StartTime:      src.StartTime.AddDate(0, 0, deltaDays),
			EndTime:        src.EndTime.AddDate(0, 0, deltaDays),
			Available:      true,
			ProfessionalID: src.ProfessionalID,
			UnitID:         src.UnitID,
			ServiceID:      src.ServiceID,
		}
		conflicts, err := s.slots.FindConflicts(ctx, req.ProfessionalID, cand.StartTime, cand.EndTime)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			report.Skipped++
			report.Conflicts = addConflict(report.Conflicts, cand.Date.Format("2006-01-02"), slotWindow(cand))
			continue
		}
		staged = append(staged, cand)
	}

	if len(staged) > 0 {
		if err := s.slots.CreateMany(ctx, staged); err != nil {
			return nil, err
		}
	}
	report.Created = len(staged)
	report.Slots = staged
	return report, nil
}

// -- Bookings --

// Reserve claims an available slot for a citizen. The availability flip is a
// conditional update at the store, so exactly one of N concurrent reservers
// wins; if the booking insert then fails the flip is rolled back.
func (s *Service) Reserve(ctx context.Context, slotID, citizenID uuid.UUID) (*Booking, error) {
	if citizenID == uuid.Nil {
		return nil, &ValidationError{Msg: "citizen_id is required"}
	}
	sl, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if !sl.Available {
		return nil, ErrSlotUnavailable
	}
	if sl.IsPast(s.clock.Now()) {
		return nil, ErrPastSlot
	}

	b := &Booking{
		SlotID:      slotID,
		CitizenID:   citizenID,
		Status:      StatusScheduled,
		ScheduledAt: sl.StartTime,
		ConfirmCode: NewConfirmCode(),
	}
	// Flip and insert form one unit: under a transaction the rollback is
	// implicit, without one the compensating Release restores the flag.
	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.slots.Reserve(ctx, slotID); err != nil {
			return err
		}
		if err := s.bookings.Create(ctx, b); err != nil {
			if relErr := s.slots.Release(ctx, slotID); relErr != nil {
				return fmt.Errorf("create booking: %w (slot release also failed: %v)", err, relErr)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Confirm validates the confirmation code and moves the booking to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, code string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Confirm(code); err != nil {
		return nil, err
	}
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Cancel moves the booking to CANCELLED and releases the slot for reuse.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Cancel(s.clock.Now()); err != nil {
		return nil, err
	}
	// Status change and slot release commit together.
	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.bookings.Update(ctx, b); err != nil {
			return err
		}
		if err := s.slots.Release(ctx, b.SlotID); err != nil {
			return fmt.Errorf("booking cancelled but slot release failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Complete marks the booking ATTENDED. The slot stays held: the appointment
// happened.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.MarkAttended(); err != nil {
		return nil, err
	}
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// MarkMissed marks the booking MISSED. Like Complete, the slot is not
// released.
func (s *Service) MarkMissed(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.MarkMissed(); err != nil {
		return nil, err
	}
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// CanBeCancelled is the read-only counterpart of Cancel's guard.
func (s *Service) CanBeCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return b.CanBeCancelled(s.clock.Now()), nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *Service) GetBookingByConfirmCode(ctx context.Context, code string) (*Booking, error) {
	return s.bookings.GetByConfirmCode(ctx, code)
}

func (s *Service) ListBookingsByCitizen(ctx context.Context, citizenID uuid.UUID, limit, offset int) ([]*Booking, int, error) {
	return s.bookings.ListByCitizen(ctx, citizenID, limit, offset)
}

func (s *Service) ListBookingsByStatus(ctx context.Context, status BookingStatus, limit, offset int) ([]*Booking, int, error) {
	if !ValidBookingStatus(status) {
		return nil, 0, &ValidationError{Msg: fmt.Sprintf("unknown booking status %q", status)}
	}
	return s.bookings.ListByStatus(ctx, status, limit, offset)
}

// DeleteBooking is the administrative hard delete, distinct from Cancel: it
// does not touch the slot's availability.
func (s *Service) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	if _, err := s.bookings.GetByID(ctx, id); err != nil {
		return err
	}
	return s.bookings.Delete(ctx, id)
}
