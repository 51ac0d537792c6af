package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List all tracked exercises with their ids, names, and rest status."),
)

var toolGetExerciseHistory = mcp.NewTool("get_exercise_history",
	mcp.WithDescription("Full history for one exercise: every cycle (base and improved 1RM) and every logged session (date, phase, load, reps, work)."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise id (uuid)")),
)

var toolGetSuggestedLoad = mcp.NewTool("get_suggested_load",
	mcp.WithDescription("Suggested load in kg for the next session of an exercise's active cycle. Null when the exercise has no active cycle."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise id (uuid)")),
)

var toolGetCycleProgress = mcp.NewTool("get_cycle_progress",
	mcp.WithDescription("Progress of the active cycle for an exercise: base 1RM, best known 1RM, current phase trajectory, and the cycle's sessions."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise id (uuid)")),
)

var toolGetTrainingStats = mcp.NewTool("get_training_stats",
	mcp.WithDescription("Aggregate totals across all exercises: counts and total work volume in kg."),
)

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercises, err := h.ds.Exercises(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(exercises)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getExerciseHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}

	data, err := h.ds.ExerciseData(ctx, id)
	if err != nil {
		h.log.Error("mcp get_exercise_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(data)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSuggestedLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}

	suggested, err := h.ds.SuggestedLoad(ctx, id)
	if err != nil {
		h.log.Error("mcp get_suggested_load", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]*float64{"suggestedLoadKg": suggested})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCycleProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}

	data, err := h.ds.ExerciseData(ctx, id)
	if err != nil {
		h.log.Error("mcp get_cycle_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if data.ActiveCycle == nil {
		return mcp.NewToolResultError("exercise has no active cycle"), nil
	}

	cycle := *data.ActiveCycle
	progress := map[string]any{
		"cycleIndex": cycle.Index,
		"base1RMKg":  cycle.Base1RMKg,
		"best1RMKg":  cycle.Best1RMKg(),
		"startedAt":  cycle.StartedAt,
	}

	var sessions []any
	for _, s := range data.Sessions {
		if s.CycleID != cycle.ID {
			continue
		}
		sessions = append(sessions, map[string]any{
			"datetime":   s.Datetime,
			"phase":      s.Phase,
			"loadUsedKg": s.LoadUsedKg,
			"reps":       s.Reps,
			"workKg":     s.WorkKg,
		})
	}
	progress["sessions"] = sessions

	result, err := mcp.NewToolResultJSON(progress)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.Stats(ctx)
	if err != nil {
		h.log.Error("mcp get_training_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// --- Resource handlers ---

func (h *handlers) trainingSummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	exercises, err := h.ds.Exercises(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := h.ds.Stats(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]any{
		"exercises": exercises,
		"stats":     stats,
	})
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
