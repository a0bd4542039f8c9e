package spacedrep

import (
	"testing"
	"time"
)

func TestIsDue_BeforeDate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := &ReviewState{DueAt: now.Add(24 * time.Hour)}
	if rs.IsDue(now) {
		t.Error("expected not due before review date")
	}
}

func TestIsDue_OnDate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := &ReviewState{DueAt: now}
	if !rs.IsDue(now) {
		t.Error("expected due on review date")
	}
}

func TestOverdueDays_ThreeDaysOverdue(t *testing.T) {
	due := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := due.Add(3 * 24 * time.Hour)
	rs := &ReviewState{DueAt: due}
	got := rs.OverdueDays(now)
	if got < 2.99 || got > 3.01 {
		t.Errorf("OverdueDays() = %f, want ~3.0", got)
	}
}

func TestStatus(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rs   ReviewState
		want ReviewStatus
	}{
		{"new card", NewState("c1", now), ReviewNew},
		{"not due", ReviewState{Repetitions: 1, IntervalDays: 6, LastReviewedAt: now.Add(-24 * time.Hour), DueAt: now.Add(5 * 24 * time.Hour)}, ReviewNotDue},
		{"due within grace", ReviewState{Repetitions: 2, IntervalDays: 6, LastReviewedAt: now.Add(-7 * 24 * time.Hour), DueAt: now.Add(-24 * time.Hour)}, ReviewDue},
		{"overdue", ReviewState{Repetitions: 2, IntervalDays: 6, LastReviewedAt: now.Add(-10 * 24 * time.Hour), DueAt: now.Add(-4 * 24 * time.Hour)}, ReviewOverdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rs.Status(now); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDaysUntilReview(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := &ReviewState{DueAt: now.Add(36 * time.Hour)}
	if got := rs.DaysUntilReview(now); got != 2 {
		t.Errorf("DaysUntilReview() = %d, want 2", got)
	}
	rs.DueAt = now.Add(-time.Hour)
	if got := rs.DaysUntilReview(now); got != 0 {
		t.Errorf("DaysUntilReview() = %d, want 0", got)
	}
}
