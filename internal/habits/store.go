// Package habits holds the signed-in user's habit list and coordinates every change to it
// with the persistence gateway. Local state changes only after the gateway confirms.
package habits

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/daystreak/internal/constants"
	errs "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/streak"
	"github.com/julianstephens/daystreak/internal/validation"
)

// SessionSource reports the identity habits are loaded for.
type SessionSource interface {
	Current() *models.Session
}

// Options configures a Store. Zero values select defaults.
type Options struct {
	Validator *validation.Validator
	Location  *time.Location
	Timeout   time.Duration
	Now       func() time.Time
}

type Store struct {
	repo     storage.HabitRepository
	sessions SessionSource
	validate *validation.Validator
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	owner  string
	habits []models.Habit

	toggles singleflight.Group
}

func New(repo storage.HabitRepository, sessions SessionSource, opts Options) *Store {
	s := &Store{
		repo:     repo,
		sessions: sessions,
		validate: opts.Validator,
		loc:      opts.Location,
		timeout:  opts.Timeout,
		now:      opts.Now,
	}
	if s.validate == nil {
		s.validate = validation.New()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.timeout <= 0 {
		s.timeout = constants.DefaultTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Store) today() string {
	return streak.Today(s.now(), s.loc)
}

func (s *Store) session(op string) (*models.Session, error) {
	sess := s.sessions.Current()
	if sess == nil {
		return nil, errs.New(errs.KindNotAuthenticated, op, nil)
	}
	return sess, nil
}

// Load replaces the local list with the user's habits in creation order.
// On failure the previous list is kept.
func (s *Store) Load(ctx context.Context) error {
	sess, err := s.session("load habits")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.repo.ListHabits(ctx)
	if err != nil {
		return errs.FromGateway("load habits", err, errs.KindNetwork)
	}

	owned := make([]models.Habit, 0, len(list))
	for _, h := range list {
		if h.Owner != sess.UserID {
			logger.Warn("Ignoring habit owned by another user", "habit", h.ID)
			continue
		}
		owned = append(owned, h)
	}

	s.mu.Lock()
	s.owner = sess.UserID
	s.habits = owned
	s.mu.Unlock()

	logger.Debug("Loaded habits", "count", len(owned))
	return nil
}

// Add creates a habit with a zero streak and appends it to the list.
// An empty category means general.
func (s *Store) Add(ctx context.Context, name string, category models.Category) (models.Habit, error) {
	if category == "" {
		category = models.CategoryGeneral
	}
	name, err := s.validate.Habit(name, category)
	if err != nil {
		return models.Habit{}, errs.New(errs.KindValidation, "add habit", err)
	}

	sess, err := s.session("add habit")
	if err != nil {
		return models.Habit{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	habit, err := s.repo.InsertHabit(ctx, name, category)
	if err != nil {
		return models.Habit{}, errs.FromGateway("add habit", err, errs.KindNetwork)
	}

	s.mu.Lock()
	if s.owner != sess.UserID {
		s.owner = sess.UserID
		s.habits = nil
	}
	s.habits = append(s.habits, habit)
	s.mu.Unlock()

	logger.Info("Habit added", "habit", habit.ID, "category", habit.Category)
	return habit, nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.habits, func(h models.Habit) bool { return h.ID == id })
}

func (s *Store) lookup(sess *models.Session, id string) (models.Habit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.owner != sess.UserID {
		return models.Habit{}, false
	}
	i := s.indexOf(id)
	if i < 0 {
		return models.Habit{}, false
	}
	return s.habits[i], true
}

func (s *Store) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		s.habits = slices.Delete(s.habits, i, i+1)
	}
}

// Remove deletes a habit. Removing an id that is not in the list does nothing.
func (s *Store) Remove(ctx context.Context, id string) error {
	sess, err := s.session("remove habit")
	if err != nil {
		return err
	}
	if _, ok := s.lookup(sess, id); !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.DeleteHabit(ctx, id); err != nil {
		// Already gone on the server
		if !errors.Is(err, storage.ErrNotFound) {
			return errs.FromGateway("remove habit", err, errs.KindNetwork)
		}
	}

	s.drop(id)
	logger.Info("Habit removed", "habit", id)
	return nil
}

// ToggleComplete records today's completion. A habit already completed today is returned
// unchanged without contacting the gateway. Concurrent toggles of one habit share a result.
func (s *Store) ToggleComplete(ctx context.Context, id string) (models.HabitView, error) {
	sess, err := s.session("complete habit")
	if err != nil {
		return models.HabitView{}, err
	}

	v, err, shared := s.toggles.Do(sess.UserID+"/"+id, func() (any, error) {
		return s.complete(ctx, sess, id)
	})
	if err != nil {
		return models.HabitView{}, err
	}
	if shared {
		logger.Debug("Collapsed concurrent completion", "habit", id)
	}
	return v.(models.HabitView), nil
}

func (s *Store) complete(ctx context.Context, sess *models.Session, id string) (models.HabitView, error) {
	current, ok := s.lookup(sess, id)
	if !ok {
		return models.HabitView{}, errs.New(errs.KindNotFound, "complete habit", nil)
	}

	today := s.today()
	next, changed := streak.Complete(current, today)
	if !changed {
		return current.View(today), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	persisted, err := s.repo.UpdateHabitCompletion(ctx, id, next.Streak, next.LastCompletedDate)
	if err != nil {
		return models.HabitView{}, errs.FromGateway("complete habit", err, errs.KindNetwork)
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 && s.owner == sess.UserID {
		s.habits[i] = persisted
	}
	s.mu.Unlock()

	logger.Info("Habit completed", "habit", id, "streak", persisted.Streak)
	return persisted.View(today), nil
}

// Habits returns the list with completion recomputed against the current date.
// It is empty when the session no longer belongs to the loaded owner.
func (s *Store) Habits() []models.HabitView {
	return s.Filter("")
}

// Filter is Habits restricted to one category. An empty category matches all.
func (s *Store) Filter(category models.Category) []models.HabitView {
	views := []models.HabitView{}
	sess := s.sessions.Current()
	if sess == nil {
		return views
	}

	today := s.today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.owner != sess.UserID {
		return views
	}
	for _, h := range s.habits {
		if category == "" || h.Category == category {
			views = append(views, h.View(today))
		}
	}
	return views
}

// Reset drops all local state.
func (s *Store) Reset() {
	s.mu.Lock()
	s.owner = ""
	s.habits = nil
	s.mu.Unlock()
}

// OnSessionChange resets the store when the identity it was loaded for goes away.
func (s *Store) OnSessionChange(sess *models.Session) {
	s.mu.RLock()
	owner := s.owner
	s.mu.RUnlock()

	if owner != "" && (sess == nil || sess.UserID != owner) {
		s.Reset()
	}
}
