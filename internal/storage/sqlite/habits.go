package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

const habitColumns = "id, user_id, name, category, streak, last_completed_date, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var category, createdAt string
	var lastCompleted sql.NullString

	if err := row.Scan(&h.ID, &h.Owner, &h.Name, &category, &h.Streak, &lastCompleted, &createdAt); err != nil {
		return models.Habit{}, err
	}

	h.Category = models.Category(category)
	if lastCompleted.Valid {
		h.LastCompletedDate = lastCompleted.String
	}

	var err error
	h.CreatedAt, err = parseTimestamp(createdAt)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse created_at for habit %s: %w", h.ID, err)
	}
	return h, nil
}

func (s *Store) ListHabits(ctx context.Context) ([]models.Habit, error) {
	sess, err := s.currentSession()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE user_id = ? ORDER BY created_at, rowid", sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read habits: %w", err)
	}

	return habits, nil
}

func (s *Store) InsertHabit(ctx context.Context, name string, category models.Category) (models.Habit, error) {
	sess, err := s.currentSession()
	if err != nil {
		return models.Habit{}, err
	}

	habit := models.Habit{
		ID:        uuid.NewString(),
		Owner:     sess.UserID,
		Name:      name,
		Category:  category,
		CreatedAt: s.now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO habits (id, user_id, name, category, streak, last_completed_date, created_at)
		VALUES (?, ?, ?, ?, 0, NULL, ?)`,
		habit.ID, habit.Owner, habit.Name, string(habit.Category), s.timestamp(habit.CreatedAt))
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to insert habit: %w", err)
	}

	return habit, nil
}

func (s *Store) UpdateHabitCompletion(ctx context.Context, id string, streak int, lastCompletedDate string) (models.Habit, error) {
	sess, err := s.currentSession()
	if err != nil {
		return models.Habit{}, err
	}

	var last sql.NullString
	if lastCompletedDate != "" {
		last = sql.NullString{String: lastCompletedDate, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE habits SET streak = ?, last_completed_date = ? WHERE id = ? AND user_id = ?",
		streak, last, id, sess.UserID)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to update habit: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return models.Habit{}, err
	} else if rows == 0 {
		return models.Habit{}, storage.ErrNotFound
	}

	h, err := scanHabit(s.db.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = ? AND user_id = ?", id, sess.UserID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, storage.ErrNotFound
	}
	return h, err
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	sess, err := s.currentSession()
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM habits WHERE id = ? AND user_id = ?", id, sess.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}
