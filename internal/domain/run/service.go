package run

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phenotype/phenotype/internal/domain/aggregate"
	"github.com/phenotype/phenotype/internal/domain/mention"
)

type Service struct {
	repo   Repository
	cfg    aggregate.Config
	norm   *mention.Normalizer
	logger zerolog.Logger
}

func NewService(repo Repository, cfg aggregate.Config, norm *mention.Normalizer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, norm: norm, logger: logger}
}

// Execute runs the normalization and aggregation pipeline over one input
// mention set and persists the run, its patient records, and its complete
// evidence table.
func (s *Service) Execute(ctx context.Context, in *Input) (*Result, error) {
	if in == nil || len(in.Mentions) == 0 && len(in.Notes) == 0 {
		return nil, fmt.Errorf("run input is empty")
	}

	result := Process(s.cfg, s.norm, in)

	for _, w := range result.Warnings {
		s.logger.Warn().Str("run_id", result.Run.ID.String()).Msg(w)
	}

	if err := s.repo.CreateRun(ctx, result.Run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := s.repo.SaveRecords(ctx, result.Run.ID, result.Records); err != nil {
		return nil, fmt.Errorf("save patient records: %w", err)
	}
	if err := s.repo.SaveEvidence(ctx, result.Run.ID, result.Evidence); err != nil {
		return nil, fmt.Errorf("save evidence: %w", err)
	}

	s.logger.Info().
		Str("run_id", result.Run.ID.String()).
		Int("patients", result.Run.PatientCount).
		Int("mentions", result.Run.MentionCount).
		Int("warnings", result.Run.WarningCount).
		Msg("aggregation run completed")

	return result, nil
}

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	return s.repo.GetRun(ctx, id)
}

func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]*Run, int, error) {
	return s.repo.ListRuns(ctx, limit, offset)
}

func (s *Service) ListRecords(ctx context.Context, runID uuid.UUID, limit, offset int) ([]aggregate.PatientRecord, int, error) {
	return s.repo.ListRecords(ctx, runID, limit, offset)
}

func (s *Service) AllRecords(ctx context.Context, runID uuid.UUID) ([]aggregate.PatientRecord, error) {
	return s.repo.AllRecords(ctx, runID)
}

func (s *Service) ListEvidence(ctx context.Context, runID uuid.UUID, limit, offset int) ([]*mention.Mention, int, error) {
	return s.repo.ListEvidence(ctx, runID, limit, offset)
}

func (s *Service) AllEvidence(ctx context.Context, runID uuid.UUID) ([]*mention.Mention, error) {
	return s.repo.AllEvidence(ctx, runID)
}

func (s *Service) ListEvidenceByPatient(ctx context.Context, runID uuid.UUID, patientID string) ([]*mention.Mention, error) {
	return s.repo.ListEvidenceByPatient(ctx, runID, patientID)
}
