// Package streak decides whether a habit may be completed on a given day and what its
// streak becomes.
//
// The counter increments once for every calendar day with at least one completion.
// Gaps between completions do not reset it.
package streak

import (
	"time"

	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/utils"
)

// Complete marks h as completed on today (YYYY-MM-DD). It returns the resulting habit and
// whether anything changed. A habit already completed today is returned unchanged.
func Complete(h models.Habit, today string) (models.Habit, bool) {
	if h.CompletedOn(today) {
		return h, false
	}
	h.Streak++
	h.LastCompletedDate = today
	return h, true
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	return utils.DateIn(now, loc)
}
