// Package service is the mutation/query API over the local store and the
// progression engine. Every mutation is atomic with respect to the store and
// ends by scheduling a debounced backup sync; a failure to schedule never
// fails the mutation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/bilbotrack/internal/models"
	"github.com/claude/bilbotrack/internal/progress"
	"github.com/claude/bilbotrack/internal/storage"
	"github.com/google/uuid"
)

// ErrInvalidInput marks a mutation rejected before touching the store.
var ErrInvalidInput = errors.New("service: invalid input")

// ErrNoActiveCycle is returned when a session is logged against an exercise
// without an active cycle.
var ErrNoActiveCycle = errors.New("service: exercise has no active cycle")

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Scheduler requests a debounced background sync. The sync coordinator
// implements it; tests stub it.
type Scheduler interface {
	Schedule()
}

// PREvent is the transient personal-record signal raised when a logged
// session's estimated 1RM beats the cycle's previous best. It is not
// persisted beyond the cycle's improved 1RM field and must be cleared by the
// consumer.
type PREvent struct {
	ExerciseID    string  `json:"exerciseId"`
	CycleIndex    int     `json:"cycleIndex"`
	Previous1RMKg float64 `json:"previous1RMKg"`
	New1RMKg      float64 `json:"new1RMKg"`
}

// ExerciseData bundles everything the exercise detail view needs.
type ExerciseData struct {
	Exercise    models.Exercise  `json:"exercise"`
	Cycles      []models.Cycle   `json:"cycles"`
	Sessions    []models.Session `json:"sessions"`
	ActiveCycle *models.Cycle    `json:"activeCycle,omitempty"`
}

// Stats is the aggregate view over all tracked data.
type Stats struct {
	ExerciseCount int     `json:"exerciseCount"`
	CycleCount    int     `json:"cycleCount"`
	SessionCount  int     `json:"sessionCount"`
	TotalWorkKg   float64 `json:"totalWorkKg"`
	LastSessionAt string  `json:"lastSessionAt,omitempty"`
}

// Service orchestrates storage and progression into the API the UI consumes.
type Service struct {
	store *storage.Store
	sched Scheduler
	log   *slog.Logger
	now   func() time.Time

	mu sync.Mutex
	pr *PREvent
}

// New creates the training data service. sched may be nil when no sync is
// wired (the offline backup utility).
func New(store *storage.Store, sched Scheduler, log *slog.Logger) *Service {
	return &Service{
		store: store,
		sched: sched,
		log:   log,
		now:   time.Now,
	}
}

func (s *Service) scheduleSync() {
	if s.sched == nil {
		return
	}
	s.sched.Schedule()
}

// Exercises lists all tracked exercises in creation order.
func (s *Service) Exercises(ctx context.Context) ([]models.Exercise, error) {
	return s.store.ListExercises(ctx)
}

// Exercise fetches one exercise.
func (s *Service) Exercise(ctx context.Context, id string) (models.Exercise, error) {
	return s.store.GetExercise(ctx, id)
}

// CreateExercise adds a new tracked exercise.
func (s *Service) CreateExercise(ctx context.Context, name, presetType, iconKey, emoji string) (models.Exercise, error) {
	if name == "" {
		return models.Exercise{}, fmt.Errorf("%w: exercise name is required", ErrInvalidInput)
	}

	now := s.now().UnixMilli()
	e := models.Exercise{
		ID:         uuid.NewString(),
		Name:       name,
		PresetType: presetType,
		IconKey:    iconKey,
		Emoji:      emoji,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.PutExercise(ctx, e); err != nil {
		return models.Exercise{}, err
	}

	s.log.Info("exercise created", "id", e.ID, "name", e.Name)
	s.scheduleSync()
	return e, nil
}

// ExerciseUpdate carries the fields UpdateExercise may change. Nil fields are
// left alone.
type ExerciseUpdate struct {
	Name       *string
	PresetType *string
	IconKey    *string
	Emoji      *string
}

// UpdateExercise applies a partial update to an exercise.
func (s *Service) UpdateExercise(ctx context.Context, id string, upd ExerciseUpdate) (models.Exercise, error) {
	e, err := s.store.GetExercise(ctx, id)
	if err != nil {
		return models.Exercise{}, err
	}

	if upd.Name != nil {
		if *upd.Name == "" {
			return models.Exercise{}, fmt.Errorf("%w: exercise name is required", ErrInvalidInput)
		}
		e.Name = *upd.Name
	}
	if upd.PresetType != nil {
		e.PresetType = *upd.PresetType
	}
	if upd.IconKey != nil {
		e.IconKey = *upd.IconKey
	}
	if upd.Emoji != nil {
		e.Emoji = *upd.Emoji
	}
	e.UpdatedAt = s.now().UnixMilli()

	if err := s.store.PutExercise(ctx, e); err != nil {
		return models.Exercise{}, err
	}
	s.scheduleSync()
	return e, nil
}

// DeleteExercise removes an exercise and everything under it.
func (s *Service) DeleteExercise(ctx context.Context, id string) error {
	if err := s.store.DeleteExercise(ctx, id); err != nil {
		return err
	}
	s.log.Info("exercise deleted", "id", id)
	s.scheduleSync()
	return nil
}

// ExerciseData returns the exercise with its cycles and sessions.
func (s *Service) ExerciseData(ctx context.Context, id string) (ExerciseData, error) {
	e, err := s.store.GetExercise(ctx, id)
	if err != nil {
		return ExerciseData{}, err
	}
	cycles, err := s.store.CyclesForExercise(ctx, id)
	if err != nil {
		return ExerciseData{}, err
	}
	sessions, err := s.store.SessionsForExercise(ctx, id)
	if err != nil {
		return ExerciseData{}, err
	}

	data := ExerciseData{Exercise: e, Cycles: cycles, Sessions: sessions}
	for i := range cycles {
		if cycles[i].IsActive {
			data.ActiveCycle = &cycles[i]
			break
		}
	}
	return data, nil
}

// CreateCycle starts a new cycle for an exercise. Any currently active cycle
// is deactivated and closed first; the new cycle starts now (first cycle) or
// one day after the previous cycle's end, and takes the next sequential
// index.
func (s *Service) CreateCycle(ctx context.Context, exerciseID string, base1RMKg float64) (models.Cycle, error) {
	if base1RMKg <= 0 {
		return models.Cycle{}, fmt.Errorf("%w: base 1RM must be positive", ErrInvalidInput)
	}
	if _, err := s.store.GetExercise(ctx, exerciseID); err != nil {
		return models.Cycle{}, err
	}

	existing, err := s.store.CyclesForExercise(ctx, exerciseID)
	if err != nil {
		return models.Cycle{}, err
	}

	nowMs := s.now().UnixMilli()
	for i := range existing {
		if !existing[i].IsActive {
			continue
		}
		existing[i].IsActive = false
		ended := nowMs
		existing[i].EndedAt = &ended
		if err := s.store.PutCycle(ctx, existing[i]); err != nil {
			return models.Cycle{}, err
		}
	}

	startedAt := nowMs
	if n := len(existing); n > 0 {
		// existing is ordered by index; the previous cycle is the last one.
		prev := existing[n-1]
		if prev.EndedAt != nil {
			startedAt = *prev.EndedAt + 24*time.Hour.Milliseconds()
		}
	}

	cycle := models.Cycle{
		ID:         uuid.NewString(),
		ExerciseID: exerciseID,
		Index:      len(existing) + 1,
		Base1RMKg:  base1RMKg,
		StartedAt:  startedAt,
		IsActive:   true,
	}
	if err := s.store.PutCycle(ctx, cycle); err != nil {
		return models.Cycle{}, err
	}

	s.log.Info("cycle started", "exercise", exerciseID, "index", cycle.Index, "base_1rm_kg", base1RMKg)
	s.scheduleSync()
	return cycle, nil
}

// FinishCycle closes a cycle without touching its sessions.
func (s *Service) FinishCycle(ctx context.Context, cycleID string) (models.Cycle, error) {
	c, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return models.Cycle{}, err
	}

	c.IsActive = false
	ended := s.now().UnixMilli()
	c.EndedAt = &ended
	if err := s.store.PutCycle(ctx, c); err != nil {
		return models.Cycle{}, err
	}

	s.log.Info("cycle finished", "exercise", c.ExerciseID, "index", c.Index)
	s.scheduleSync()
	return c, nil
}

// CycleUpdate carries the manual corrections UpdateCycle may apply. Nil
// fields are left alone; ClearEnded reopens the end date.
type CycleUpdate struct {
	StartedAt  *int64
	EndedAt    *int64
	ClearEnded bool
	Base1RMKg  *float64
}

// UpdateCycle applies manual date or base-1RM corrections to a cycle. The
// index stays immutable.
func (s *Service) UpdateCycle(ctx context.Context, cycleID string, upd CycleUpdate) (models.Cycle, error) {
	c, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return models.Cycle{}, err
	}

	if upd.StartedAt != nil {
		c.StartedAt = *upd.StartedAt
	}
	if upd.ClearEnded {
		c.EndedAt = nil
	} else if upd.EndedAt != nil {
		c.EndedAt = upd.EndedAt
	}
	if upd.Base1RMKg != nil {
		if *upd.Base1RMKg <= 0 {
			return models.Cycle{}, fmt.Errorf("%w: base 1RM must be positive", ErrInvalidInput)
		}
		c.Base1RMKg = *upd.Base1RMKg
	}

	if err := s.store.PutCycle(ctx, c); err != nil {
		return models.Cycle{}, err
	}
	s.scheduleSync()
	return c, nil
}

// DeleteCycle removes a cycle and its sessions.
func (s *Service) DeleteCycle(ctx context.Context, cycleID string) error {
	if err := s.store.DeleteCycle(ctx, cycleID); err != nil {
		return err
	}
	s.scheduleSync()
	return nil
}

// SessionInput is the caller-supplied part of a new session. Phase, suggested
// load, and work are computed here, never accepted from the caller.
type SessionInput struct {
	ExerciseID  string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM, optional
	LoadUsedKg  float64
	Reps        int
	TimeSeconds *int
	Notes       string
}

// LogSession records a workout against the exercise's active cycle. The
// phase comes from the ratchet rule over the cycle's existing sessions, the
// suggested load is captured as it stood at logging time, and a new estimated
// 1RM beating the cycle's best raises a PR event.
func (s *Service) LogSession(ctx context.Context, in SessionInput) (models.Session, error) {
	if in.LoadUsedKg <= 0 || in.Reps < 1 {
		return models.Session{}, fmt.Errorf("%w: load and reps must be positive", ErrInvalidInput)
	}
	datetime, err := buildDatetime(in.Date, in.Time)
	if err != nil {
		return models.Session{}, err
	}

	cycle, err := s.store.ActiveCycleForExercise(ctx, in.ExerciseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, ErrNoActiveCycle
		}
		return models.Session{}, err
	}

	prior, err := s.store.SessionsForCycle(ctx, cycle.ID)
	if err != nil {
		return models.Session{}, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return models.Session{}, err
	}

	var lastLoad *float64
	if len(prior) > 0 {
		lastLoad = &prior[0].LoadUsedKg
	}
	suggested := progress.SuggestedLoad(cycle.Base1RMKg, lastLoad, settings.GlobalIncrementKg, settings.RoundStepKg)

	session := models.Session{
		ID:              uuid.NewString(),
		ExerciseID:      in.ExerciseID,
		CycleID:         cycle.ID,
		Phase:           progress.PhaseForNewSession(prior),
		Datetime:        datetime,
		SuggestedLoadKg: suggested,
		LoadUsedKg:      in.LoadUsedKg,
		Reps:            in.Reps,
		TimeSeconds:     in.TimeSeconds,
		Notes:           in.Notes,
		WorkKg:          progress.Work(in.LoadUsedKg, in.Reps),
		UpdatedAt:       s.now().UnixMilli(),
	}
	if err := s.store.PutSession(ctx, session); err != nil {
		return models.Session{}, err
	}

	if err := s.detectPR(ctx, cycle, session); err != nil {
		return models.Session{}, err
	}

	s.log.Info("session logged",
		"exercise", in.ExerciseID, "cycle", cycle.Index,
		"phase", session.Phase, "load_kg", in.LoadUsedKg, "reps", in.Reps)
	s.scheduleSync()
	return session, nil
}

// detectPR updates the cycle's improved 1RM and raises the transient PR
// event when the session's estimated 1RM beats the cycle's best.
func (s *Service) detectPR(ctx context.Context, cycle models.Cycle, session models.Session) error {
	estimated := progress.Estimate1RM(session.LoadUsedKg, session.Reps)
	previousBest := cycle.Best1RMKg()
	if estimated <= previousBest {
		return nil
	}

	cycle.Improved1RMKg = &estimated
	if err := s.store.PutCycle(ctx, cycle); err != nil {
		return err
	}

	s.mu.Lock()
	s.pr = &PREvent{
		ExerciseID:    cycle.ExerciseID,
		CycleIndex:    cycle.Index,
		Previous1RMKg: previousBest,
		New1RMKg:      estimated,
	}
	s.mu.Unlock()

	s.log.Info("personal record",
		"exercise", cycle.ExerciseID, "previous_kg", previousBest, "new_kg", estimated)
	return nil
}

// PR returns the pending PR event, if any.
func (s *Service) PR() *PREvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pr
}

// ClearPR acknowledges the pending PR event.
func (s *Service) ClearPR() {
	s.mu.Lock()
	s.pr = nil
	s.mu.Unlock()
}

// SessionUpdate carries the editable fields of a session. The phase is fixed
// at creation and cannot be changed here.
type SessionUpdate struct {
	Date        string // YYYY-MM-DD
	Time        string // HH:MM, optional
	LoadUsedKg  float64
	Reps        int
	TimeSeconds *int
	Notes       string
}

// UpdateSession edits a logged session. Work is recomputed; the original
// phase and captured suggested load are preserved.
func (s *Service) UpdateSession(ctx context.Context, sessionID string, upd SessionUpdate) (models.Session, error) {
	if upd.LoadUsedKg <= 0 || upd.Reps < 1 {
		return models.Session{}, fmt.Errorf("%w: load and reps must be positive", ErrInvalidInput)
	}
	datetime, err := buildDatetime(upd.Date, upd.Time)
	if err != nil {
		return models.Session{}, err
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, err
	}

	session.Datetime = datetime
	session.LoadUsedKg = upd.LoadUsedKg
	session.Reps = upd.Reps
	session.TimeSeconds = upd.TimeSeconds
	session.Notes = upd.Notes
	session.WorkKg = progress.Work(upd.LoadUsedKg, upd.Reps)
	session.UpdatedAt = s.now().UnixMilli()

	if err := s.store.PutSession(ctx, session); err != nil {
		return models.Session{}, err
	}
	s.scheduleSync()
	return session, nil
}

// DeleteSession removes a logged session.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	s.scheduleSync()
	return nil
}

// LastSession returns the most recent session for an exercise, or nil.
func (s *Service) LastSession(ctx context.Context, exerciseID string) (*models.Session, error) {
	sessions, err := s.store.SessionsForExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// SuggestedLoad computes the next suggested load for an exercise, or nil when
// it has no active cycle.
func (s *Service) SuggestedLoad(ctx context.Context, exerciseID string) (*float64, error) {
	cycle, err := s.store.ActiveCycleForExercise(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	sessions, err := s.store.SessionsForCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	var lastLoad *float64
	if len(sessions) > 0 {
		lastLoad = &sessions[0].LoadUsedKg
	}
	suggested := progress.SuggestedLoad(cycle.Base1RMKg, lastLoad, settings.GlobalIncrementKg, settings.RoundStepKg)
	return &suggested, nil
}

// Settings returns the current settings.
func (s *Service) Settings(ctx context.Context) (models.Settings, error) {
	return s.store.GetSettings(ctx)
}

// SettingsUpdate carries the user-editable settings fields. Nil fields are
// left alone; the sync sub-state is owned by the sync coordinator and cannot
// be changed here.
type SettingsUpdate struct {
	Units             *models.Units
	GlobalIncrementKg *float64
	RoundStepKg       *float64
	Language          *string
}

// UpdateSettings applies a partial settings update.
func (s *Service) UpdateSettings(ctx context.Context, upd SettingsUpdate) (models.Settings, error) {
	if upd.Units != nil && *upd.Units != models.UnitsKg && *upd.Units != models.UnitsLb {
		return models.Settings{}, fmt.Errorf("%w: unknown unit system %q", ErrInvalidInput, *upd.Units)
	}

	settings, err := s.store.UpdateSettings(ctx, func(st *models.Settings) {
		if upd.Units != nil {
			st.Units = *upd.Units
		}
		if upd.GlobalIncrementKg != nil {
			st.GlobalIncrementKg = *upd.GlobalIncrementKg
		}
		if upd.RoundStepKg != nil {
			st.RoundStepKg = *upd.RoundStepKg
		}
		if upd.Language != nil {
			st.Language = *upd.Language
		}
	})
	if err != nil {
		return models.Settings{}, err
	}
	s.scheduleSync()
	return settings, nil
}

// CompleteOnboarding marks the first-run flow as done. The flag is persisted
// with the settings so it survives restarts.
func (s *Service) CompleteOnboarding(ctx context.Context) error {
	_, err := s.store.UpdateSettings(ctx, func(st *models.Settings) {
		st.OnboardingCompleted = true
	})
	if err != nil {
		return err
	}
	s.scheduleSync()
	return nil
}

// ClearAllData wipes every record and resets settings to defaults. No sync
// is scheduled: wiping the remote copy as a side effect would be
// irreversible, so the next upload waits for a deliberate mutation.
func (s *Service) ClearAllData(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return err
	}
	s.ClearPR()
	s.log.Info("all training data cleared")
	return nil
}

// Stats aggregates across all tracked data.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	exercises, cycles, sessionCount, err := s.store.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		ExerciseCount: exercises,
		CycleCount:    cycles,
		SessionCount:  sessionCount,
	}
	for _, sess := range sessions {
		stats.TotalWorkKg += sess.WorkKg
		if sess.Datetime > stats.LastSessionAt {
			stats.LastSessionAt = sess.Datetime
		}
	}
	return stats, nil
}

func buildDatetime(date, timeOfDay string) (string, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidInput, date)
	}
	if timeOfDay == "" {
		return date + "T00:00:00", nil
	}
	if _, err := time.Parse(timeLayout, timeOfDay); err != nil {
		return "", fmt.Errorf("%w: time %q", ErrInvalidInput, timeOfDay)
	}
	return date + "T" + timeOfDay + ":00", nil
}
