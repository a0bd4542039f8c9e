package spacedrep

import "time"

// ReviewState holds the SM-2 state of one flashcard for one learner.
type ReviewState struct {
	FlashcardID    string    `json:"flashcard_id"`
	EaseFactor     float64   `json:"ease_factor"`
	IntervalDays   int       `json:"interval_days"`
	Repetitions    int       `json:"repetitions"`
	DueAt          time.Time `json:"due_at"`
	LastReviewedAt time.Time `json:"last_reviewed_at"`
}

// NewState returns the state of a card that has never been reviewed. It is
// due immediately.
func NewState(flashcardID string, now time.Time) ReviewState {
	return ReviewState{
		FlashcardID: flashcardID,
		EaseFactor:  DefaultEaseFactor,
		DueAt:       now,
	}
}

// IsDue returns true if the card is due for review (at or past the due date).
func (rs *ReviewState) IsDue(now time.Time) bool {
	return !now.Before(rs.DueAt)
}

// OverdueDays returns how many days past due the card is. Returns 0 if not yet due.
func (rs *ReviewState) OverdueDays(now time.Time) float64 {
	if now.Before(rs.DueAt) {
		return 0
	}
	return now.Sub(rs.DueAt).Hours() / 24.0
}

// ReviewStatus describes a card's review status for display.
type ReviewStatus string

const (
	ReviewNew     ReviewStatus = "new"
	ReviewNotDue  ReviewStatus = "not_due"
	ReviewDue     ReviewStatus = "due"
	ReviewOverdue ReviewStatus = "overdue"
)

// Status returns the review status for display. A card is overdue once it
// has been due for longer than half its interval.
func (rs *ReviewState) Status(now time.Time) ReviewStatus {
	if rs.Repetitions == 0 && rs.LastReviewedAt.IsZero() {
		return ReviewNew
	}
	if !rs.IsDue(now) {
		return ReviewNotDue
	}
	grace := float64(max(rs.IntervalDays, 1)) * 0.5
	if rs.OverdueDays(now) > grace {
		return ReviewOverdue
	}
	return ReviewDue
}

// DaysUntilReview returns the number of days until the next review.
// Returns 0 if already due.
func (rs *ReviewState) DaysUntilReview(now time.Time) int {
	if rs.IsDue(now) {
		return 0
	}
	return int(rs.DueAt.Sub(now).Hours()/24.0) + 1
}
