package run

import (
	"context"

	"github.com/google/uuid"

	"github.com/phenotype/phenotype/internal/domain/aggregate"
	"github.com/phenotype/phenotype/internal/domain/mention"
)

type Repository interface {
	CreateRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, int, error)

	SaveRecords(ctx context.Context, runID uuid.UUID, records []aggregate.PatientRecord) error
	ListRecords(ctx context.Context, runID uuid.UUID, limit, offset int) ([]aggregate.PatientRecord, int, error)
	AllRecords(ctx context.Context, runID uuid.UUID) ([]aggregate.PatientRecord, error)

	SaveEvidence(ctx context.Context, runID uuid.UUID, evidence []*mention.Mention) error
	ListEvidence(ctx context.Context, runID uuid.UUID, limit, offset int) ([]*mention.Mention, int, error)
	AllEvidence(ctx context.Context, runID uuid.UUID) ([]*mention.Mention, error)
	ListEvidenceByPatient(ctx context.Context, runID uuid.UUID, patientID string) ([]*mention.Mention, error)
}
