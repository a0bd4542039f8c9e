package spacedrep

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultEaseFactor is the SM-2 starting ease.
	DefaultEaseFactor = 2.5

	// MinEaseFactor is the SM-2 floor.
	MinEaseFactor = 1.3

	// PassingQuality is the lowest recall grade that counts as remembered.
	PassingQuality = 3

	MaxQuality = 5
)

// Review applies an SM-2 grade (0-5) to rs and returns the new state.
// Grades below PassingQuality reset the repetition count and schedule the
// card for tomorrow.
func Review(rs ReviewState, quality int, now time.Time) (ReviewState, error) {
	if quality < 0 || quality > MaxQuality {
		return rs, fmt.Errorf("quality %d out of range 0-%d", quality, MaxQuality)
	}
	if rs.EaseFactor == 0 {
		rs.EaseFactor = DefaultEaseFactor
	}

	if quality < PassingQuality {
		rs.Repetitions = 0
		rs.IntervalDays = 1
	} else {
		switch rs.Repetitions {
		case 0:
			rs.IntervalDays = 1
		case 1:
			rs.IntervalDays = 6
		default:
			rs.IntervalDays = int(math.Round(float64(rs.IntervalDays) * rs.EaseFactor))
		}
		rs.Repetitions++
	}

	q := float64(MaxQuality - quality)
	rs.EaseFactor += 0.1 - q*(0.08+q*0.02)
	if rs.EaseFactor < MinEaseFactor {
		rs.EaseFactor = MinEaseFactor
	}

	rs.LastReviewedAt = now
	rs.DueAt = now.Add(time.Duration(rs.IntervalDays) * 24 * time.Hour)
	return rs, nil
}
