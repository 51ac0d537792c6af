package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/bilbotrack/internal/models"
	"github.com/claude/bilbotrack/internal/storage"
)

// countingScheduler records how many sync requests the service issued.
type countingScheduler struct {
	n int
}

func (c *countingScheduler) Schedule() { c.n++ }

func newTestService(t *testing.T) (*Service, *countingScheduler) {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sched := &countingScheduler{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, sched, log), sched
}

func mustExercise(t *testing.T, svc *Service) models.Exercise {
	t.Helper()
	e, err := svc.CreateExercise(context.Background(), "Bench Press", "bench", "bench", "")
	if err != nil {
		t.Fatalf("CreateExercise: %v", err)
	}
	return e
}

func mustCycle(t *testing.T, svc *Service, exerciseID string, baseRM float64) models.Cycle {
	t.Helper()
	c, err := svc.CreateCycle(context.Background(), exerciseID, baseRM)
	if err != nil {
		t.Fatalf("CreateCycle: %v", err)
	}
	return c
}

func mustLog(t *testing.T, svc *Service, exerciseID string, loadKg float64, reps int) models.Session {
	t.Helper()
	sess, err := svc.LogSession(context.Background(), SessionInput{
		ExerciseID: exerciseID,
		Date:       "2026-02-01",
		Time:       "10:00",
		LoadUsedKg: loadKg,
		Reps:       reps,
	})
	if err != nil {
		t.Fatalf("LogSession(%v x %d): %v", loadKg, reps, err)
	}
	return sess
}

func TestCreateExerciseRequiresName(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CreateExercise(context.Background(), "", "bench", "bench", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

// TestCreateCycleSequence verifies starting a second cycle closes the first,
// leaves exactly one active cycle, assigns the next index, and starts one day
// after the previous cycle's end.
func TestCreateCycleSequence(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)

	first := mustCycle(t, svc, e.ID, 100)
	if first.Index != 1 || !first.IsActive {
		t.Fatalf("first cycle = %+v", first)
	}

	second := mustCycle(t, svc, e.ID, 110)
	if second.Index != 2 {
		t.Errorf("second index = %d, want 2", second.Index)
	}

	data, err := svc.ExerciseData(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	active := 0
	for _, c := range data.Cycles {
		if c.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("active cycles = %d, want 1", active)
	}

	closedFirst := data.Cycles[0]
	if closedFirst.IsActive || closedFirst.EndedAt == nil {
		t.Fatalf("first cycle not closed: %+v", closedFirst)
	}
	wantStart := *closedFirst.EndedAt + 24*time.Hour.Milliseconds()
	if second.StartedAt != wantStart {
		t.Errorf("second start = %d, want previous end + 1 day = %d", second.StartedAt, wantStart)
	}
}

func TestCreateCycleUnknownExercise(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CreateCycle(context.Background(), "missing", 100); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// TestProgressionScenario walks the canonical cycle: base 100 kg, increment
// and step 2.5 kg. The first suggestion is half the base; after a 50x10
// session the next suggestion is last load plus increment, and no PR fires
// since the estimate stays below the base.
func TestProgressionScenario(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)
	mustCycle(t, svc, e.ID, 100)

	suggested, err := svc.SuggestedLoad(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if suggested == nil || *suggested != 50 {
		t.Fatalf("first suggestion = %v, want 50", suggested)
	}

	sess := mustLog(t, svc, e.ID, 50, 10)
	if sess.SuggestedLoadKg != 50 {
		t.Errorf("captured suggestion = %v, want 50", sess.SuggestedLoadKg)
	}
	if sess.WorkKg != 500 {
		t.Errorf("work = %v, want 500", sess.WorkKg)
	}
	if sess.Phase != models.PhaseBilbo {
		t.Errorf("phase = %s, want bilbo", sess.Phase)
	}

	suggested, err = svc.SuggestedLoad(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if suggested == nil || *suggested != 52.5 {
		t.Errorf("next suggestion = %v, want 52.5", suggested)
	}

	if pr := svc.PR(); pr != nil {
		t.Errorf("unexpected PR event: %+v", pr)
	}
}

// TestPhaseRatchet verifies new sessions switch to strength once any session
// in the cycle dropped below 15 reps, while earlier sessions keep bilbo.
func TestPhaseRatchet(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)
	mustCycle(t, svc, e.ID, 100)

	first := mustLog(t, svc, e.ID, 50, 16)
	if first.Phase != models.PhaseBilbo {
		t.Fatalf("first phase = %s, want bilbo", first.Phase)
	}

	second := mustLog(t, svc, e.ID, 52.5, 14)
	if second.Phase != models.PhaseBilbo {
		t.Errorf("second phase = %s, want bilbo (ratchet looks at prior sessions only)", second.Phase)
	}

	third := mustLog(t, svc, e.ID, 55, 12)
	if third.Phase != models.PhaseStrength {
		t.Errorf("third phase = %s, want strength", third.Phase)
	}

	// Editing the first session does not reclassify it.
	updated, err := svc.UpdateSession(context.Background(), first.ID, SessionUpdate{
		Date: "2026-02-01", LoadUsedKg: 50, Reps: 5,
	})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if updated.Phase != models.PhaseBilbo {
		t.Errorf("edited phase = %s, want bilbo preserved", updated.Phase)
	}
	if updated.WorkKg != 250 {
		t.Errorf("edited work = %v, want recomputed 250", updated.WorkKg)
	}
}

// TestPRDetection verifies the 60 kg cycle scenario: 60x16 estimates
// 60*(1+16/30) = 92 kg, beating the 60 kg base.
func TestPRDetection(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)
	mustCycle(t, svc, e.ID, 60)

	mustLog(t, svc, e.ID, 60, 16)

	pr := svc.PR()
	if pr == nil {
		t.Fatal("no PR event")
	}
	if pr.Previous1RMKg != 60 || pr.New1RMKg != 92 {
		t.Errorf("PR = %v -> %v, want 60 -> 92", pr.Previous1RMKg, pr.New1RMKg)
	}

	data, err := svc.ExerciseData(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	cycle := data.Cycles[0]
	if cycle.Improved1RMKg == nil || *cycle.Improved1RMKg != 92 {
		t.Errorf("improved 1RM = %v, want 92", cycle.Improved1RMKg)
	}

	svc.ClearPR()
	if svc.PR() != nil {
		t.Errorf("PR event survived ClearPR")
	}

	// A weaker follow-up does not beat the new best.
	mustLog(t, svc, e.ID, 60, 10)
	if pr := svc.PR(); pr != nil {
		t.Errorf("unexpected PR event: %+v", pr)
	}
}

func TestLogSessionWithoutActiveCycle(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)

	_, err := svc.LogSession(context.Background(), SessionInput{
		ExerciseID: e.ID, Date: "2026-02-01", LoadUsedKg: 50, Reps: 10,
	})
	if !errors.Is(err, ErrNoActiveCycle) {
		t.Errorf("error = %v, want ErrNoActiveCycle", err)
	}
}

func TestLogSessionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)
	mustCycle(t, svc, e.ID, 100)

	tests := []struct {
		name string
		in   SessionInput
	}{
		{"zero load", SessionInput{ExerciseID: e.ID, Date: "2026-02-01", LoadUsedKg: 0, Reps: 10}},
		{"zero reps", SessionInput{ExerciseID: e.ID, Date: "2026-02-01", LoadUsedKg: 50, Reps: 0}},
		{"bad date", SessionInput{ExerciseID: e.ID, Date: "02/01/2026", LoadUsedKg: 50, Reps: 10}},
		{"bad time", SessionInput{ExerciseID: e.ID, Date: "2026-02-01", Time: "morning", LoadUsedKg: 50, Reps: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.LogSession(context.Background(), tt.in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSuggestedLoadWithoutCycle(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)

	suggested, err := svc.SuggestedLoad(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("SuggestedLoad: %v", err)
	}
	if suggested != nil {
		t.Errorf("suggestion = %v, want nil", *suggested)
	}
}

func TestFinishCycleKeepsSessions(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)
	c := mustCycle(t, svc, e.ID, 100)
	mustLog(t, svc, e.ID, 50, 10)

	finished, err := svc.FinishCycle(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("FinishCycle: %v", err)
	}
	if finished.IsActive || finished.EndedAt == nil {
		t.Errorf("cycle not closed: %+v", finished)
	}

	data, err := svc.ExerciseData(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(data.Sessions))
	}
	if data.ActiveCycle != nil {
		t.Errorf("active cycle = %+v, want none", data.ActiveCycle)
	}
}

func TestMutationsScheduleSync(t *testing.T) {
	svc, sched := newTestService(t)

	e := mustExercise(t, svc)
	mustCycle(t, svc, e.ID, 100)
	mustLog(t, svc, e.ID, 50, 10)

	if sched.n != 3 {
		t.Errorf("scheduled syncs = %d, want 3", sched.n)
	}
}

// TestClearAllData verifies the wipe resets everything locally and does not
// schedule an upload of the now-empty dataset.
func TestClearAllData(t *testing.T) {
	svc, sched := newTestService(t)
	e := mustExercise(t, svc)
	mustCycle(t, svc, e.ID, 100)
	before := sched.n

	if err := svc.ClearAllData(context.Background()); err != nil {
		t.Fatalf("ClearAllData: %v", err)
	}
	if sched.n != before {
		t.Errorf("ClearAllData scheduled a sync")
	}

	exercises, err := svc.Exercises(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(exercises) != 0 {
		t.Errorf("exercises = %d, want 0", len(exercises))
	}
	settings, err := svc.Settings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if settings != models.DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", settings)
	}
}

func TestCompleteOnboarding(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.CompleteOnboarding(context.Background()); err != nil {
		t.Fatalf("CompleteOnboarding: %v", err)
	}
	settings, err := svc.Settings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !settings.OnboardingCompleted {
		t.Errorf("onboarding flag not persisted")
	}
}

func TestUpdateSettingsRejectsUnknownUnits(t *testing.T) {
	svc, _ := newTestService(t)
	bad := models.Units("stone")
	if _, err := svc.UpdateSettings(context.Background(), SettingsUpdate{Units: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)
	mustCycle(t, svc, e.ID, 100)
	mustLog(t, svc, e.ID, 50, 10)
	mustLog(t, svc, e.ID, 52.5, 10)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ExerciseCount != 1 || stats.CycleCount != 1 || stats.SessionCount != 2 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.TotalWorkKg != 1025 {
		t.Errorf("total work = %v, want 1025", stats.TotalWorkKg)
	}
	if stats.LastSessionAt != "2026-02-01T10:00:00" {
		t.Errorf("last session = %q", stats.LastSessionAt)
	}
}

func TestRestLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)

	resting, err := svc.StartRest(context.Background(), e.ID, "2026-03-01", "2026-03-15")
	if err != nil {
		t.Fatalf("StartRest: %v", err)
	}
	if !resting.IsResting || resting.RestStartDate != "2026-03-01" {
		t.Fatalf("exercise after StartRest = %+v", resting)
	}

	ended, err := svc.EndRest(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("EndRest: %v", err)
	}
	if ended.IsResting || ended.RestStartDate != "" {
		t.Errorf("rest fields not cleared: %+v", ended)
	}
	if len(ended.RestHistory) != 1 {
		t.Fatalf("history = %+v, want one entry", ended.RestHistory)
	}
	entry := ended.RestHistory[0]
	if entry.StartDate != "2026-03-01" || entry.EndDate != "2026-03-15" || entry.ActualEnd == "" {
		t.Errorf("history entry = %+v", entry)
	}
}

func TestCancelRestLeavesNoHistory(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)

	if _, err := svc.StartRest(context.Background(), e.ID, "2026-03-01", ""); err != nil {
		t.Fatal(err)
	}
	cancelled, err := svc.CancelRest(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("CancelRest: %v", err)
	}
	if cancelled.IsResting || len(cancelled.RestHistory) != 0 {
		t.Errorf("exercise after cancel = %+v", cancelled)
	}
}

func TestHistoricalRestEdits(t *testing.T) {
	svc, _ := newTestService(t)
	e := mustExercise(t, svc)

	if _, err := svc.StartRest(context.Background(), e.ID, "2026-03-01", ""); err != nil {
		t.Fatal(err)
	}
	ended, err := svc.EndRest(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	restID := ended.RestHistory[0].ID

	updated, err := svc.UpdateHistoricalRest(context.Background(), e.ID, restID,
		"2026-03-02", "2026-03-10", "2026-03-08")
	if err != nil {
		t.Fatalf("UpdateHistoricalRest: %v", err)
	}
	got := updated.RestHistory[0]
	if got.StartDate != "2026-03-02" || got.EndDate != "2026-03-10" || got.ActualEnd != "2026-03-08" {
		t.Errorf("entry = %+v", got)
	}

	if _, err := svc.UpdateHistoricalRest(context.Background(), e.ID, "nope",
		"2026-03-02", "", "2026-03-08"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown rest id error = %v, want ErrInvalidInput", err)
	}

	deleted, err := svc.DeleteHistoricalRest(context.Background(), e.ID, restID)
	if err != nil {
		t.Fatalf("DeleteHistoricalRest: %v", err)
	}
	if len(deleted.RestHistory) != 0 {
		t.Errorf("history = %+v, want empty", deleted.RestHistory)
	}
}
