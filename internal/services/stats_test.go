package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"odo-backend/internal/models"
)

func TestValidDate(t *testing.T) {
	valid := []string{"2026-01-01", "1999-12-31"}
	invalid := []string{"", "2026-1-1", "01-01-2026", "2026/01/01", "yesterday"}

	for _, s := range valid {
		if !validDate(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if validDate(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestFillMissingDays(t *testing.T) {
	userID := uuid.New()
	day := func(s string) time.Time {
		d, _ := time.Parse("2006-01-02", s)
		return d
	}

	stats := []models.DailyStat{
		{UserID: userID, Date: day("2026-03-02"), TotalMinutes: 30, TotalEarnings: 30},
	}

	filled := fillMissingDays(stats, userID, "2026-03-01", "2026-03-04")
	if len(filled) != 4 {
		t.Fatalf("expected 4 days, got %d", len(filled))
	}
	if filled[0].TotalMinutes != 0 {
		t.Fatalf("expected zero row for the missing first day")
	}
	if filled[1].TotalMinutes != 30 {
		t.Fatalf("expected the stored row to survive filling")
	}
	if filled[3].Date.Format("2006-01-02") != "2026-03-04" {
		t.Fatalf("expected the range to run through the end date")
	}
}

func TestFillMissingDaysRejectsInvertedRange(t *testing.T) {
	stats := []models.DailyStat{{TotalMinutes: 5}}
	filled := fillMissingDays(stats, uuid.New(), "2026-03-10", "2026-03-01")
	if len(filled) != 1 {
		t.Fatalf("inverted ranges pass through unchanged, got %d rows", len(filled))
	}
}
