package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

const habitColumns = "id, user_id, name, category, streak, to_char(last_completed_date, 'YYYY-MM-DD'), created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var category string
	var lastCompleted sql.NullString

	if err := row.Scan(&h.ID, &h.Owner, &h.Name, &category, &h.Streak, &lastCompleted, &h.CreatedAt); err != nil {
		return models.Habit{}, err
	}
	h.Category = models.Category(category)
	h.LastCompletedDate = lastCompleted.String
	return h, nil
}

// asOwner runs fn in a transaction whose row-level security identity is the signed-in user.
func (s *Store) asOwner(ctx context.Context, fn func(tx *sql.Tx, userID string) error) error {
	sess, err := s.currentSession()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SELECT set_config($1, $2, true)", constants.PostgresUserSetting, sess.UserID); err != nil {
		return wrap("set row-level identity", err)
	}

	if err := fn(tx, sess.UserID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrap("commit", err)
	}
	return nil
}

func (s *Store) ListHabits(ctx context.Context) ([]models.Habit, error) {
	habits := []models.Habit{}
	err := s.asOwner(ctx, func(tx *sql.Tx, _ string) error {
		rows, err := tx.QueryContext(ctx, "SELECT "+habitColumns+" FROM habits ORDER BY created_at, id")
		if err != nil {
			return wrap("query habits", err)
		}
		defer rows.Close()

		for rows.Next() {
			h, err := scanHabit(rows)
			if err != nil {
				return wrap("scan habit", err)
			}
			habits = append(habits, h)
		}
		if err := rows.Err(); err != nil {
			return wrap("read habits", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return habits, nil
}

func (s *Store) InsertHabit(ctx context.Context, name string, category models.Category) (models.Habit, error) {
	var habit models.Habit
	err := s.asOwner(ctx, func(tx *sql.Tx, userID string) error {
		var err error
		habit, err = scanHabit(tx.QueryRowContext(ctx, `
			INSERT INTO habits (id, user_id, name, category)
			VALUES ($1, $2, $3, $4)
			RETURNING `+habitColumns,
			uuid.NewString(), userID, name, string(category)))
		if err != nil {
			return wrap("insert habit", err)
		}
		return nil
	})
	return habit, err
}

func (s *Store) UpdateHabitCompletion(ctx context.Context, id string, streak int, lastCompletedDate string) (models.Habit, error) {
	var last sql.NullString
	if lastCompletedDate != "" {
		last = sql.NullString{String: lastCompletedDate, Valid: true}
	}

	var habit models.Habit
	err := s.asOwner(ctx, func(tx *sql.Tx, _ string) error {
		var err error
		habit, err = scanHabit(tx.QueryRowContext(ctx, `
			UPDATE habits SET streak = $1, last_completed_date = $2::date
			WHERE id = $3
			RETURNING `+habitColumns,
			streak, last, id))
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return wrap("update habit", err)
		}
		return nil
	})
	return habit, err
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	return s.asOwner(ctx, func(tx *sql.Tx, _ string) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM habits WHERE id = $1", id)
		if err != nil {
			return wrap("delete habit", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return wrap("delete habit", err)
		}
		if rows == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}
