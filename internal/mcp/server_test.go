package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/claude/bilbotrack/internal/models"
	"github.com/claude/bilbotrack/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubSource is a canned DataSource for handler tests.
type stubSource struct {
	exercises []models.Exercise
	data      service.ExerciseData
	suggested *float64
	stats     service.Stats
	err       error
}

func (s *stubSource) Exercises(ctx context.Context) ([]models.Exercise, error) {
	return s.exercises, s.err
}

func (s *stubSource) ExerciseData(ctx context.Context, id string) (service.ExerciseData, error) {
	return s.data, s.err
}

func (s *stubSource) SuggestedLoad(ctx context.Context, id string) (*float64, error) {
	return s.suggested, s.err
}

func (s *stubSource) Stats(ctx context.Context) (service.Stats, error) {
	return s.stats, s.err
}

func testHandlers(src *stubSource) *handlers {
	return &handlers{
		ds:  src,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func TestListExercises(t *testing.T) {
	h := testHandlers(&stubSource{exercises: []models.Exercise{
		{ID: "e1", Name: "Bench Press"},
	}})

	result, err := h.listExercises(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "Bench Press") {
		t.Errorf("result missing exercise: %s", resultText(t, result))
	}
}

func TestGetSuggestedLoadRequiresID(t *testing.T) {
	h := testHandlers(&stubSource{})

	result, err := h.getSuggestedLoad(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("missing exercise_id accepted")
	}
}

func TestGetSuggestedLoad(t *testing.T) {
	load := 52.5
	h := testHandlers(&stubSource{suggested: &load})

	result, err := h.getSuggestedLoad(context.Background(),
		callRequest(map[string]any{"exercise_id": "e1"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(resultText(t, result), "52.5") {
		t.Errorf("result = %s", resultText(t, result))
	}
}

func TestGetCycleProgressNoActiveCycle(t *testing.T) {
	h := testHandlers(&stubSource{data: service.ExerciseData{
		Exercise: models.Exercise{ID: "e1", Name: "Squat"},
	}})

	result, err := h.getCycleProgress(context.Background(),
		callRequest(map[string]any{"exercise_id": "e1"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing active cycle")
	}
}

func TestGetCycleProgress(t *testing.T) {
	improved := 92.0
	cycle := models.Cycle{
		ID: "c1", ExerciseID: "e1", Index: 2,
		Base1RMKg: 60, Improved1RMKg: &improved, IsActive: true,
	}
	h := testHandlers(&stubSource{data: service.ExerciseData{
		Exercise:    models.Exercise{ID: "e1", Name: "Squat"},
		Cycles:      []models.Cycle{cycle},
		ActiveCycle: &cycle,
		Sessions: []models.Session{
			{CycleID: "c1", Datetime: "2026-02-01T10:00:00", Phase: models.PhaseBilbo, LoadUsedKg: 60, Reps: 16, WorkKg: 960},
			{CycleID: "other", Datetime: "2026-01-01T10:00:00", Phase: models.PhaseBilbo, LoadUsedKg: 40, Reps: 20, WorkKg: 800},
		},
	}})

	result, err := h.getCycleProgress(context.Background(),
		callRequest(map[string]any{"exercise_id": "e1"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, `"best1RMKg":92`) {
		t.Errorf("result missing best 1RM: %s", text)
	}
	if strings.Contains(text, "2026-01-01") {
		t.Errorf("result includes sessions from another cycle: %s", text)
	}
}

func TestToolErrorsSurfaceAsToolResults(t *testing.T) {
	h := testHandlers(&stubSource{err: errors.New("store closed")})

	result, err := h.getTrainingStats(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handler returned transport error: %v", err)
	}
	if !result.IsError {
		t.Error("data source failure not reported as tool error")
	}
}
