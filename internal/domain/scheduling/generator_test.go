package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateDay(t *testing.T) {
	req := GenerateRequest{
		Date:            "2026-03-02",
		StartTime:       "08:00",
		EndTime:         "09:00",
		DurationMinutes: 30,
		ProfessionalID:  uuid.New(),
		UnitID:          uuid.New(),
		ServiceID:       uuid.New(),
	}
	slots, err := GenerateDay(req)
	if err != nil {
		t.Fatalf("GenerateDay: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}

	first, second := slots[0], slots[1]
	if !first.StartTime.Equal(utc(2026, 3, 2, 8, 0)) || !first.EndTime.Equal(utc(2026, 3, 2, 8, 30)) {
		t.Errorf("first slot %v-%v, want 08:00-08:30", first.StartTime, first.EndTime)
	}
	if !second.StartTime.Equal(utc(2026, 3, 2, 8, 30)) || !second.EndTime.Equal(utc(2026, 3, 2, 9, 0)) {
		t.Errorf("second slot %v-%v, want 08:30-09:00", second.StartTime, second.EndTime)
	}
	for _, s := range slots {
		if !s.Available {
			t.Error("generated slot not available")
		}
		if s.StartTime.Location() != time.UTC {
			t.Error("slot time not pinned to UTC")
		}
		if !s.Date.Equal(utc(2026, 3, 2, 0, 0)) {
			t.Errorf("slot date %v, want 2026-03-02 midnight UTC", s.Date)
		}
		if s.ProfessionalID != req.ProfessionalID || s.UnitID != req.UnitID || s.ServiceID != req.ServiceID {
			t.Error("generated slot lost a reference")
		}
	}
}

func TestGenerateDayDropsOverflowSlot(t *testing.T) {
	// 08:00-09:00 at 45 minutes: only one slot fits, the 08:45-09:30
	// candidate would overrun the window and is dropped.
	slots, err := GenerateDay(GenerateRequest{
		Date: "2026-03-02", StartTime: "08:00", EndTime: "09:00",
		DurationMinutes: 45, ProfessionalID: uuid.New(), UnitID: uuid.New(), ServiceID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("GenerateDay: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if !slots[0].EndTime.Equal(utc(2026, 3, 2, 8, 45)) {
		t.Errorf("slot ends %v, want 08:45", slots[0].EndTime)
	}
}

func TestGenerateDayWindowLargerThanDuration(t *testing.T) {
	// Duration exceeding the whole window produces nothing.
	slots, err := GenerateDay(GenerateRequest{
		Date: "2026-03-02", StartTime: "08:00", EndTime: "09:00",
		DurationMinutes: 90, ProfessionalID: uuid.New(), UnitID: uuid.New(), ServiceID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("GenerateDay: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("got %d slots, want 0", len(slots))
	}
}

func TestGenerateDayValidation(t *testing.T) {
	base := GenerateRequest{
		Date: "2026-03-02", StartTime: "08:00", EndTime: "09:00", DurationMinutes: 30,
		ProfessionalID: uuid.New(), UnitID: uuid.New(), ServiceID: uuid.New(),
	}

	tests := []struct {
		name   string
		mutate func(*GenerateRequest)
	}{
		{"zero duration", func(r *GenerateRequest) { r.DurationMinutes = 0 }},
		{"negative duration", func(r *GenerateRequest) { r.DurationMinutes = -15 }},
		{"duration over cap", func(r *GenerateRequest) { r.DurationMinutes = 481 }},
		{"bad date", func(r *GenerateRequest) { r.Date = "02/03/2026" }},
		{"bad start time", func(r *GenerateRequest) { r.StartTime = "8am" }},
		{"bad end time", func(r *GenerateRequest) { r.EndTime = "25:00" }},
		{"inverted window", func(r *GenerateRequest) { r.StartTime, r.EndTime = "09:00", "08:00" }},
		{"empty window", func(r *GenerateRequest) { r.EndTime = "08:00" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			var vErr *ValidationError
			if _, err := GenerateDay(req); !errors.As(err, &vErr) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestGenerateDayMaxDuration(t *testing.T) {
	// 480 minutes is the inclusive cap.
	slots, err := GenerateDay(GenerateRequest{
		Date: "2026-03-02", StartTime: "08:00", EndTime: "16:00",
		DurationMinutes: 480, ProfessionalID: uuid.New(), UnitID: uuid.New(), ServiceID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("GenerateDay: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
}

func TestRecurringExpandInclusiveRange(t *testing.T) {
	req := RecurringRequest{
		StartDate:       "2026-03-02", // Monday
		EndDate:         "2026-03-16", // Monday, two weeks later
		DaysOfWeek:      []time.Weekday{time.Monday},
		Windows:         []Window{{StartTime: "08:00", EndTime: "09:00"}},
		DurationMinutes: 30,
		ProfessionalID:  uuid.New(),
		UnitID:          uuid.New(),
		ServiceID:       uuid.New(),
	}
	start, end, err := req.validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	candidates := req.expand(start, end)

	// Three Mondays inclusive, two slots each.
	if len(candidates) != 6 {
		t.Fatalf("got %d candidates, want 6", len(candidates))
	}
	days := map[string]int{}
	for _, c := range candidates {
		if c.Date.Weekday() != time.Monday {
			t.Errorf("candidate on %s, want Monday", c.Date.Weekday())
		}
		days[c.Date.Format("2006-01-02")]++
	}
	for _, want := range []string{"2026-03-02", "2026-03-09", "2026-03-16"} {
		if days[want] != 2 {
			t.Errorf("day %s: %d slots, want 2", want, days[want])
		}
	}
}

func TestRecurringExpandMultipleWindows(t *testing.T) {
	req := RecurringRequest{
		StartDate:  "2026-03-02",
		EndDate:    "2026-03-03",
		DaysOfWeek: []time.Weekday{time.Monday, time.Tuesday},
		Windows: []Window{
			{StartTime: "08:00", EndTime: "09:00"},
			{StartTime: "14:00", EndTime: "15:00"},
		},
		DurationMinutes: 60,
		ProfessionalID:  uuid.New(),
		UnitID:          uuid.New(),
		ServiceID:       uuid.New(),
	}
	start, end, err := req.validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	candidates := req.expand(start, end)
	if len(candidates) != 4 {
		t.Fatalf("got %d candidates, want 4 (2 days x 2 windows)", len(candidates))
	}
}

func TestRecurringValidate(t *testing.T) {
	base := RecurringRequest{
		StartDate:       "2026-03-02",
		EndDate:         "2026-03-09",
		DaysOfWeek:      []time.Weekday{time.Monday},
		Windows:         []Window{{StartTime: "08:00", EndTime: "09:00"}},
		DurationMinutes: 30,
	}

	tests := []struct {
		name   string
		mutate func(*RecurringRequest)
	}{
		{"start equals end", func(r *RecurringRequest) { r.EndDate = r.StartDate }},
		{"start after end", func(r *RecurringRequest) { r.StartDate, r.EndDate = r.EndDate, r.StartDate }},
		{"no weekdays", func(r *RecurringRequest) { r.DaysOfWeek = nil }},
		{"no windows", func(r *RecurringRequest) { r.Windows = nil }},
		{"inverted window", func(r *RecurringRequest) { r.Windows = []Window{{StartTime: "09:00", EndTime: "08:00"}} }},
		{"duration over cap", func(r *RecurringRequest) { r.DurationMinutes = 500 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			var vErr *ValidationError
			if _, _, err := req.validate(); !errors.As(err, &vErr) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestGeneratedCandidatesNeverOverlap(t *testing.T) {
	req := RecurringRequest{
		StartDate:       "2026-03-02",
		EndDate:         "2026-03-06",
		DaysOfWeek:      []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		Windows:         []Window{{StartTime: "08:00", EndTime: "12:00"}, {StartTime: "13:00", EndTime: "17:00"}},
		DurationMinutes: 25,
		ProfessionalID:  uuid.New(),
		UnitID:          uuid.New(),
		ServiceID:       uuid.New(),
	}
	start, end, err := req.validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	candidates := req.expand(start, end)
	for i, a := range candidates {
		for _, b := range candidates[i+1:] {
			if a.Overlaps(b.StartTime, b.EndTime) {
				t.Fatalf("candidates overlap: %v-%v and %v-%v",
					a.StartTime, a.EndTime, b.StartTime, b.EndTime)
			}
		}
	}
}
