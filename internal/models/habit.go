package models

import (
	"time"
)

// Habit represents a named practice tracked once per calendar day
type Habit struct {
	ID                string    `json:"id"`
	Owner             string    `json:"user_id"`
	Name              string    `json:"name"`
	Category          Category  `json:"category"`
	Streak            int       `json:"streak"`
	LastCompletedDate string    `json:"last_completed_date,omitempty"` // YYYY-MM-DD format, empty if never completed
	CreatedAt         time.Time `json:"created_at"`
}

// CompletedOn reports whether the habit's last completion falls on day (YYYY-MM-DD).
func (h Habit) CompletedOn(day string) bool {
	return h.LastCompletedDate != "" && h.LastCompletedDate == day
}

// HabitView is a read-time projection of a Habit. CompletedToday is derived and never stored.
type HabitView struct {
	Habit
	CompletedToday bool `json:"completed_today"`
}

// View projects h against today.
func (h Habit) View(today string) HabitView {
	return HabitView{Habit: h, CompletedToday: h.CompletedOn(today)}
}
