package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

const habitsPath = "/rest/v1/habits"

var returnRepresentation = map[string]string{"Prefer": "return=representation"}

// rest sends a PostgREST request on the habits table as the signed-in user.
func (s *Store) rest(ctx context.Context, method string, query url.Values, body any, headers map[string]string) ([]models.Habit, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := s.do(ctx, method, habitsPath, query, body, token, headers)
	if err != nil {
		if statusOf(err) == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %v", storage.ErrNoSession, err)
		}
		return nil, err
	}

	habits := []models.Habit{}
	if len(bytes.TrimSpace(data)) == 0 {
		return habits, nil
	}
	if err := json.Unmarshal(data, &habits); err != nil {
		return nil, fmt.Errorf("failed to decode habits: %w", err)
	}
	return habits, nil
}

func byID(id string) url.Values {
	return url.Values{"id": {"eq." + id}}
}

func (s *Store) ListHabits(ctx context.Context) ([]models.Habit, error) {
	return s.rest(ctx, http.MethodGet, url.Values{
		"select": {"*"},
		"order":  {"created_at.asc,id.asc"},
	}, nil, nil)
}

func (s *Store) InsertHabit(ctx context.Context, name string, category models.Category) (models.Habit, error) {
	sess, err := s.currentSession()
	if err != nil {
		return models.Habit{}, err
	}

	rows, err := s.rest(ctx, http.MethodPost, nil, map[string]any{
		"user_id":  sess.UserID,
		"name":     name,
		"category": category,
	}, returnRepresentation)
	if err != nil {
		return models.Habit{}, err
	}
	if len(rows) == 0 {
		return models.Habit{}, errors.New("supabase: insert returned no row")
	}
	return rows[0], nil
}

func (s *Store) UpdateHabitCompletion(ctx context.Context, id string, streak int, lastCompletedDate string) (models.Habit, error) {
	var last any
	if lastCompletedDate != "" {
		last = lastCompletedDate
	}

	rows, err := s.rest(ctx, http.MethodPatch, byID(id), map[string]any{
		"streak":              streak,
		"last_completed_date": last,
	}, returnRepresentation)
	if err != nil {
		return models.Habit{}, err
	}
	if len(rows) == 0 {
		return models.Habit{}, storage.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	rows, err := s.rest(ctx, http.MethodDelete, byID(id), nil, returnRepresentation)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return storage.ErrNotFound
	}
	return nil
}
