package store

import (
	"context"

	"github.com/brightpath/tutorsim/internal/model"
)

// RunFilter specifies criteria for listing generation runs.
type RunFilter struct {
	Seed   *int64 `json:"seed,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for generated datasets.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.GenerationRun) (*model.GenerationRun, error)
	GetRun(ctx context.Context, runID string) (*model.GenerationRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.GenerationRun, error)
	GetRunSummary(ctx context.Context, runID string) (*model.RunSummary, error)

	// Dataset tables
	SaveDataset(ctx context.Context, runID string, ds *model.Dataset) error
	LoadTutors(ctx context.Context, runID string) ([]model.Tutor, error)
	LoadAggregates(ctx context.Context, runID string) ([]model.TutorAggregate, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// datasetTables lists the dataset tables in insert order; run summaries report
// row counts in this order too.
var datasetTables = []string{
	"tutors",
	"sessions",
	"tutor_aggregates",
	"experiments",
	"experiment_assignments",
	"interventions",
	"engagement_events",
}
