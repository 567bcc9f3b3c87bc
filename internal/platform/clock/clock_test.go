package clock

import (
	"testing"
	"time"
)

func TestSystemReturnsUTC(t *testing.T) {
	now := System().Now()
	if now.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", now.Location())
	}
}

func TestFixed(t *testing.T) {
	at := time.Date(2025, 11, 20, 8, 0, 0, 0, time.UTC)
	c := At(at)
	if !c.Now().Equal(at) {
		t.Errorf("expected %v, got %v", at, c.Now())
	}
	// Repeated reads do not advance.
	if !c.Now().Equal(at) {
		t.Error("fixed clock moved")
	}
}
