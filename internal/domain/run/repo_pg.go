package run

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phenotype/phenotype/internal/domain/aggregate"
	"github.com/phenotype/phenotype/internal/domain/mention"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// -- Runs --

func (r *repoPG) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO phenotype_run (id, created_at, patient_count, mention_count, warning_count)
		VALUES ($1,$2,$3,$4,$5)`,
		run.ID, run.CreatedAt, run.PatientCount, run.MentionCount, run.WarningCount)
	return err
}

const runCols = `id, created_at, patient_count, mention_count, warning_count`

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.CreatedAt, &run.PatientCount, &run.MentionCount, &run.WarningCount)
	return &run, err
}

func (r *repoPG) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	return scanRun(r.pool.QueryRow(ctx, `SELECT `+runCols+` FROM phenotype_run WHERE id = $1`, id))
}

func (r *repoPG) ListRuns(ctx context.Context, limit, offset int) ([]*Run, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM phenotype_run`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+runCols+` FROM phenotype_run ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, run)
	}
	return items, total, rows.Err()
}

// -- Patient records --

func (r *repoPG) SaveRecords(ctx context.Context, runID uuid.UUID, records []aggregate.PatientRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range records {
		if len(rec.Fields) == 0 {
			// Known patient with zero selected fields still gets a row so
			// one-row-per-known-patient survives a round trip.
			batch.Queue(`
				INSERT INTO patient_record (run_id, patient_id, field, value, evidence_id, confidence_bucket)
				VALUES ($1,$2,'',NULL,NULL,NULL)`, runID, rec.PatientID)
			continue
		}
		for _, f := range mention.TrackedFields() {
			fr, ok := rec.Fields[f]
			if !ok {
				continue
			}
			batch.Queue(`
				INSERT INTO patient_record (run_id, patient_id, field, value, evidence_id, confidence_bucket)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				runID, rec.PatientID, string(f), fr.Value, fr.EvidenceID, fr.ConfidenceBucket)
		}
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *repoPG) ListRecords(ctx context.Context, runID uuid.UUID, limit, offset int) ([]aggregate.PatientRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT patient_id) FROM patient_record WHERE run_id = $1`, runID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT patient_id FROM patient_record WHERE run_id = $1
		GROUP BY patient_id ORDER BY patient_id LIMIT $2 OFFSET $3`, runID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	patients, err := collectStrings(rows)
	if err != nil {
		return nil, 0, err
	}
	records, err := r.recordsForPatients(ctx, runID, patients)
	return records, total, err
}

func (r *repoPG) AllRecords(ctx context.Context, runID uuid.UUID) ([]aggregate.PatientRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT patient_id FROM patient_record WHERE run_id = $1
		GROUP BY patient_id ORDER BY patient_id`, runID)
	if err != nil {
		return nil, err
	}
	patients, err := collectStrings(rows)
	if err != nil {
		return nil, err
	}
	return r.recordsForPatients(ctx, runID, patients)
}

func (r *repoPG) recordsForPatients(ctx context.Context, runID uuid.UUID, patients []string) ([]aggregate.PatientRecord, error) {
	if len(patients) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT patient_id, field, value, evidence_id, confidence_bucket
		FROM patient_record
		WHERE run_id = $1 AND patient_id = ANY($2)
		ORDER BY patient_id`, runID, patients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byPatient := make(map[string]*aggregate.PatientRecord, len(patients))
	records := make([]aggregate.PatientRecord, 0, len(patients))
	for _, pid := range patients {
		records = append(records, aggregate.PatientRecord{
			PatientID: pid,
			Fields:    make(map[mention.Field]aggregate.FieldResult),
		})
		byPatient[pid] = &records[len(records)-1]
	}

	for rows.Next() {
		var (
			pid, field string
			value      *string
			evidenceID *uuid.UUID
			bucket     *string
		)
		if err := rows.Scan(&pid, &field, &value, &evidenceID, &bucket); err != nil {
			return nil, err
		}
		rec, ok := byPatient[pid]
		if !ok || field == "" || value == nil {
			continue
		}
		fr := aggregate.FieldResult{Value: *value}
		if evidenceID != nil {
			fr.EvidenceID = *evidenceID
		}
		if bucket != nil {
			fr.ConfidenceBucket = *bucket
		}
		rec.Fields[mention.Field(field)] = fr
	}
	return records, rows.Err()
}

// -- Evidence --

func (r *repoPG) SaveEvidence(ctx context.Context, runID uuid.UUID, evidence []*mention.Mention) error {
	batch := &pgx.Batch{}
	for _, m := range evidence {
		lineage := make([]string, 0, len(m.DerivedFrom))
		for _, id := range m.DerivedFrom {
			lineage = append(lineage, id.String())
		}
		batch.Queue(`
			INSERT INTO evidence (id, run_id, patient_id, note_id, note_type, note_date,
				field, value, raw_text, negated, uncertain, confidence, sequence,
				invalid, uncurated, reconciled, derived_from, won_field)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
			m.ID, runID, m.PatientID, m.NoteID, m.NoteType, m.NoteDate,
			string(m.Field), m.Value, m.RawText, m.Negated, m.Uncertain, m.Confidence, m.Sequence,
			m.Invalid, m.Uncurated, m.Reconciled, lineage, string(m.WonField))
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

const evidenceCols = `id, patient_id, note_id, note_type, note_date,
	field, value, raw_text, negated, uncertain, confidence, sequence,
	invalid, uncurated, reconciled, derived_from, won_field`

func scanEvidence(row pgx.Row) (*mention.Mention, error) {
	var (
		m        mention.Mention
		field    string
		wonField string
		noteDate *time.Time
		lineage  []string
	)
	err := row.Scan(&m.ID, &m.PatientID, &m.NoteID, &m.NoteType, &noteDate,
		&field, &m.Value, &m.RawText, &m.Negated, &m.Uncertain, &m.Confidence, &m.Sequence,
		&m.Invalid, &m.Uncurated, &m.Reconciled, &lineage, &wonField)
	if err != nil {
		return nil, err
	}
	m.Field = mention.Field(field)
	m.WonField = mention.Field(wonField)
	m.NoteDate = noteDate
	for _, s := range lineage {
		if id, perr := uuid.Parse(s); perr == nil {
			m.DerivedFrom = append(m.DerivedFrom, id)
		}
	}
	return &m, nil
}

func (r *repoPG) ListEvidence(ctx context.Context, runID uuid.UUID, limit, offset int) ([]*mention.Mention, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM evidence WHERE run_id = $1`, runID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+evidenceCols+` FROM evidence WHERE run_id = $1
		ORDER BY sequence, reconciled, patient_id, field LIMIT $2 OFFSET $3`, runID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectEvidence(rows)
	return items, total, err
}

func (r *repoPG) AllEvidence(ctx context.Context, runID uuid.UUID) ([]*mention.Mention, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+evidenceCols+` FROM evidence WHERE run_id = $1
		ORDER BY sequence, reconciled, patient_id, field`, runID)
	if err != nil {
		return nil, err
	}
	return collectEvidence(rows)
}

func (r *repoPG) ListEvidenceByPatient(ctx context.Context, runID uuid.UUID, patientID string) ([]*mention.Mention, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+evidenceCols+` FROM evidence WHERE run_id = $1 AND patient_id = $2
		ORDER BY sequence, reconciled, field`, runID, patientID)
	if err != nil {
		return nil, err
	}
	return collectEvidence(rows)
}

func collectEvidence(rows pgx.Rows) ([]*mention.Mention, error) {
	defer rows.Close()
	var items []*mention.Mention
	for rows.Next() {
		m, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var items []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
