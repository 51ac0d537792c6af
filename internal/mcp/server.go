// Package mcp exposes read-only training-data tools and resources to LLM
// clients over the Model Context Protocol.
package mcp

import (
	"context"
	"log/slog"

	"github.com/claude/bilbotrack/internal/models"
	"github.com/claude/bilbotrack/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DataSource is the read side of the training data service the MCP tools
// consume.
type DataSource interface {
	Exercises(ctx context.Context) ([]models.Exercise, error)
	ExerciseData(ctx context.Context, id string) (service.ExerciseData, error)
	SuggestedLoad(ctx context.Context, id string) (*float64, error)
	Stats(ctx context.Context) (service.Stats, error)
}

// Compile-time check: the training data service satisfies DataSource.
var _ DataSource = (*service.Service)(nil)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("bilbotrack", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Strength training cycle tracker. Query exercises, cycles, logged sessions, suggested loads, and training volume. All tools are read-only."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGetExerciseHistory, Handler: h.getExerciseHistory},
		server.ServerTool{Tool: toolGetSuggestedLoad, Handler: h.getSuggestedLoad},
		server.ServerTool{Tool: toolGetCycleProgress, Handler: h.getCycleProgress},
		server.ServerTool{Tool: toolGetTrainingStats, Handler: h.getTrainingStats},
	)

	s.AddResources(
		server.ServerResource{Resource: resTrainingSummary, Handler: h.trainingSummary},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resTrainingSummary = mcp.NewResource(
	"bilbotrack://training_summary",
	"Training Summary",
	mcp.WithResourceDescription("All tracked exercises with aggregate session counts and total volume"),
	mcp.WithMIMEType("application/json"),
)
