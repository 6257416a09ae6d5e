package aggregate

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/phenotype/phenotype/internal/domain/mention"
)

// FieldResult is one resolved field in a patient record. EvidenceID points
// into the evidence table rather than copying the mention, keeping a single
// source of truth.
type FieldResult struct {
	Value            string    `json:"value"`
	EvidenceID       uuid.UUID `json:"evidence_id"`
	ConfidenceBucket string    `json:"confidence_bucket"`
}

// PatientRecord is one row per patient. Records are created once per run
// and never mutated; a new run produces new records rather than patching
// old ones.
type PatientRecord struct {
	PatientID string                        `json:"patient_id"`
	Fields    map[mention.Field]FieldResult `json:"fields"`
}

// Output is the complete result of one aggregation run: one record per
// known patient plus the full evidence table. Every input mention appears
// in Evidence exactly once, winners tagged with the field they won.
type Output struct {
	Records  []PatientRecord
	Evidence []*mention.Mention
}

// Builder composes the per-patient pipeline: HER2 reconciliation, then
// field aggregation across all tracked fields. Patients are independent, so
// the builder fans out one task per patient and merges results by patient
// id; output is deterministic regardless of worker interleaving.
type Builder struct {
	cfg Config
	agg *Aggregator
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, agg: NewAggregator(cfg)}
}

// Build aggregates the run's full mention set. knownPatients lists patient
// ids from the identity mapping; patients with zero mentions still produce
// a record with all fields absent. Mentions without a resolved patient are
// kept in evidence but never aggregated.
func (b *Builder) Build(mentions []*mention.Mention, knownPatients []string) Output {
	// Physical input order must never affect the outcome; sequence is the
	// only order that matters.
	evidence := make([]*mention.Mention, len(mentions))
	copy(evidence, mentions)
	sortEvidence(evidence)

	byPatient := make(map[string][]*mention.Mention)
	for _, m := range evidence {
		if m.PatientID == "" {
			continue
		}
		byPatient[m.PatientID] = append(byPatient[m.PatientID], m)
	}

	patients := make([]string, 0, len(byPatient)+len(knownPatients))
	seen := make(map[string]bool)
	for pid := range byPatient {
		patients = append(patients, pid)
		seen[pid] = true
	}
	for _, pid := range knownPatients {
		if pid != "" && !seen[pid] {
			patients = append(patients, pid)
			seen[pid] = true
		}
	}
	sort.Strings(patients)

	type result struct {
		record    PatientRecord
		synthetic *mention.Mention
	}
	results := make([]result, len(patients))

	workers := b.cfg.Workers
	if workers <= 1 {
		for i, pid := range patients {
			rec, syn := b.buildPatient(pid, byPatient[pid])
			results[i] = result{record: rec, synthetic: syn}
		}
	} else {
		var wg sync.WaitGroup
		tasks := make(chan int)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range tasks {
					rec, syn := b.buildPatient(patients[i], byPatient[patients[i]])
					results[i] = result{record: rec, synthetic: syn}
				}
			}()
		}
		for i := range patients {
			tasks <- i
		}
		close(tasks)
		wg.Wait()
	}

	out := Output{Records: make([]PatientRecord, 0, len(patients))}
	for _, r := range results {
		out.Records = append(out.Records, r.record)
		if r.synthetic != nil {
			evidence = append(evidence, r.synthetic)
		}
	}
	sortEvidence(evidence)
	out.Evidence = evidence
	return out
}

// buildPatient runs the strictly sequential per-patient pipeline:
// reconciliation must see normalized mentions, aggregation must see the
// reconciled her2_final mention.
func (b *Builder) buildPatient(patientID string, ms []*mention.Mention) (PatientRecord, *mention.Mention) {
	var maxSeq int64
	for _, m := range ms {
		if m.Sequence > maxSeq {
			maxSeq = m.Sequence
		}
	}

	reconciler := NewReconciler(b.cfg)
	synthetic := reconciler.Reconcile(ms, maxSeq+1)
	if synthetic != nil {
		ms = append(ms, synthetic)
	}

	rec := PatientRecord{
		PatientID: patientID,
		Fields:    make(map[mention.Field]FieldResult),
	}
	for _, f := range mention.TrackedFields() {
		sel, ok := b.agg.Select(f, ms)
		if !ok {
			continue
		}
		rec.Fields[f] = FieldResult{
			Value:            sel.Value,
			EvidenceID:       sel.MentionID,
			ConfidenceBucket: b.cfg.Bucket(sel.Confidence),
		}
		for _, m := range ms {
			if m.ID == sel.MentionID {
				m.WonField = f
				break
			}
		}
	}
	return rec, synthetic
}

// sortEvidence orders the evidence table deterministically: ingestion
// order, synthetics after their sources, patient id as the last resort.
func sortEvidence(ms []*mention.Mention) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		if a.Reconciled != b.Reconciled {
			return !a.Reconciled
		}
		if a.PatientID != b.PatientID {
			return a.PatientID < b.PatientID
		}
		return a.Field < b.Field
	})
}
