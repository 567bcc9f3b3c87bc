package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictPolicy selects how recurring generation treats candidate slots that
// overlap already-persisted slots of the same professional.
type ConflictPolicy string

const (
	// PolicySkip omits conflicting candidates and reports them.
	PolicySkip ConflictPolicy = "SKIP"
	// PolicyFail aborts the whole batch on the first conflict.
	PolicyFail ConflictPolicy = "FAIL"
	// PolicyReplace deletes conflicting slots before inserting, except slots
	// held by an active booking, which are skipped instead.
	PolicyReplace ConflictPolicy = "REPLACE"
)

// GenerateRequest describes a single working window on one calendar day.
// Date is YYYY-MM-DD; StartTime/EndTime are HH:MM, 24h, interpreted as UTC.
type GenerateRequest struct {
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	ProfessionalID  uuid.UUID `json:"professional_id"`
	UnitID          uuid.UUID `json:"unit_id"`
	ServiceID       uuid.UUID `json:"service_id"`
}

// Window is one daily time range of a recurring request.
type Window struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// RecurringRequest describes slot generation over a date range filtered by
// weekday, with one or more windows per day (e.g. morning and afternoon).
type RecurringRequest struct {
	StartDate       string         `json:"start_date"`
	EndDate         string         `json:"end_date"`
	DaysOfWeek      []time.Weekday `json:"days_of_week"`
	Windows         []Window       `json:"windows"`
	DurationMinutes int            `json:"duration_minutes"`
	ProfessionalID  uuid.UUID      `json:"professional_id"`
	UnitID          uuid.UUID      `json:"unit_id"`
	ServiceID       uuid.UUID      `json:"service_id"`
	Policy          ConflictPolicy `json:"policy"`
}

// ConflictEntry aggregates skipped candidates by date and time range so a
// caller can render "08:00-08:30 skipped 3 times".
type ConflictEntry struct {
	Date   string `json:"date"`
	Window string `json:"window"`
	Count  int    `json:"count"`
}

// GenerationReport summarizes a batch generation call.
type GenerationReport struct {
	Created   int             `json:"created"`
	Skipped   int             `json:"skipped"`
	Conflicts []ConflictEntry `json:"conflicts,omitempty"`
	Slots     []*TimeSlot     `json:"slots"`
}

const maxSlotDurationMinutes = 480

// parseDay parses a YYYY-MM-DD calendar date as UTC midnight.
func parseDay(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &ValidationError{Msg: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return d.UTC(), nil
}

// parseClock parses HH:MM into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, &ValidationError{Msg: fmt.Sprintf("invalid time %q, want HH:MM", s)}
	}
	return t.Hour()*60 + t.Minute(), nil
}

// expandWindow emits consecutive slots of duration minutes starting at
// startMin, advancing until the next slot would overflow endMin. Overflow
// slots are dropped, not truncated. day must be a UTC midnight instant.
func expandWindow(day time.Time, startMin, endMin, duration int, professionalID, unitID, serviceID uuid.UUID) []*TimeSlot {
	var slots []*TimeSlot
	for cur := startMin; cur+duration <= endMin; cur += duration {
		start := day.Add(time.Duration(cur) * time.Minute)
		end := day.Add(time.Duration(cur+duration) * time.Minute)
		slots = append(slots, &TimeSlot{
			Date:           day,
			StartTime:      start,
			EndTime:        end,
			Available:      true,
			ProfessionalID: professionalID,
			UnitID:         unitID,
			ServiceID:      serviceID,
		})
	}
	return slots
}

// GenerateDay expands a single-day request into candidate slots. The result
// is non-overlapping by construction and every slot satisfies start < end
// with the requested duration.
func GenerateDay(req GenerateRequest) ([]*TimeSlot, error) {
	if req.DurationMinutes <= 0 || req.DurationMinutes > maxSlotDurationMinutes {
		return nil, &ValidationError{Msg: fmt.Sprintf("duration must be between 1 and %d minutes", maxSlotDurationMinutes)}
	}
	day, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	startMin, err := parseClock(req.StartTime)
	if err != nil {
		return nil, err
	}
	endMin, err := parseClock(req.EndTime)
	if err != nil {
		return nil, err
	}
	if startMin >= endMin {
		return nil, &ValidationError{Msg: "start_time must be before end_time"}
	}
	return expandWindow(day, startMin, endMin, req.DurationMinutes, req.ProfessionalID, req.UnitID, req.ServiceID), nil
}

// validate checks the recurring request shape without touching any store.
func (r RecurringRequest) validate() (start, end time.Time, err error) {
	if r.DurationMinutes <= 0 || r.DurationMinutes > maxSlotDurationMinutes {
		return start, end, &ValidationError{Msg: fmt.Sprintf("duration must be between 1 and %d minutes", maxSlotDurationMinutes)}
	}
	if len(r.DaysOfWeek) == 0 {
		return start, end, &ValidationError{Msg: "at least one day of week is required"}
	}
	if len(r.Windows) == 0 {
		return start, end, &ValidationError{Msg: "at least one time window is required"}
	}
	start, err = parseDay(r.StartDate)
	if err != nil {
		return start, end, err
	}
	end, err = parseDay(r.EndDate)
	if err != nil {
		return start, end, err
	}
	if !start.Before(end) {
		return start, end, &ValidationError{Msg: "start_date must be before end_date"}
	}
	for _, w := range r.Windows {
		s, err := parseClock(w.StartTime)
		if err != nil {
			return start, end, err
		}
		e, err := parseClock(w.EndTime)
		if err != nil {
			return start, end, err
		}
		if s >= e {
			return start, end, &ValidationError{Msg: fmt.Sprintf("window %s-%s: start must be before end", w.StartTime, w.EndTime)}
		}
	}
	return start, end, nil
}

// expand walks every day in [start, end] and emits candidates for days whose
// weekday is selected, one run per window.
func (r RecurringRequest) expand(start, end time.Time) []*TimeSlot {
	wanted := make(map[time.Weekday]bool, len(r.DaysOfWeek))
	for _, d := range r.DaysOfWeek {
		wanted[d] = true
	}

	var candidates []*TimeSlot
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if !wanted[day.Weekday()] {
			continue
		}
		for _, w := range r.Windows {
			// Window bounds were validated up front; errors cannot occur here.
			sMin, _ := parseClock(w.StartTime)
			eMin, _ := parseClock(w.EndTime)
			candidates = append(candidates,
				expandWindow(day, sMin, eMin, r.DurationMinutes, r.ProfessionalID, r.UnitID, r.ServiceID)...)
		}
	}
	return candidates
}

// slotWindow formats a slot's time range for conflict reports.
func slotWindow(s *TimeSlot) string {
	return s.StartTime.Format("15:04") + "-" + s.EndTime.Format("15:04")
}

// addConflict increments the entry for (date, window), appending it on first
// occurrence.
func addConflict(list []ConflictEntry, date, window string) []ConflictEntry {
	for i := range list {
		if list[i].Date == date && list[i].Window == window {
			list[i].Count++
			return list
		}
	}
	return append(list, ConflictEntry{Date: date, Window: window, Count: 1})
}
