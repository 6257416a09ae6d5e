package run

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/phenotype/phenotype/internal/domain/aggregate"
	"github.com/phenotype/phenotype/internal/domain/mention"
)

// WriteRecordsCSV renders the patient table as a flat CSV: one row per
// patient, three columns per tracked field (value, evidence id, confidence
// bucket). Absent fields stay empty rather than defaulting.
func WriteRecordsCSV(w io.Writer, records []aggregate.PatientRecord) error {
	cw := csv.NewWriter(w)

	header := []string{"patient_id"}
	for _, f := range mention.TrackedFields() {
		header = append(header, string(f), string(f)+"__evidence_id", string(f)+"__confidence")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{rec.PatientID}
		for _, f := range mention.TrackedFields() {
			fr, ok := rec.Fields[f]
			if !ok {
				row = append(row, "", "", "")
				continue
			}
			row = append(row, fr.Value, fr.EvidenceID.String(), fr.ConfidenceBucket)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteEvidenceCSV renders the full evidence table, including losing,
// unclean, invalid, and uncurated mentions, so a field's resolution is
// diagnosable from the export alone.
func WriteEvidenceCSV(w io.Writer, evidence []*mention.Mention) error {
	cw := csv.NewWriter(w)

	header := []string{
		"id", "patient_id", "note_id", "note_type", "note_date",
		"field", "value", "raw_text",
		"negated", "uncertain", "confidence", "sequence",
		"invalid", "uncurated", "reconciled", "derived_from", "won_field",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, m := range evidence {
		noteDate := ""
		if m.NoteDate != nil {
			noteDate = m.NoteDate.Format("2006-01-02")
		}
		lineage := make([]string, 0, len(m.DerivedFrom))
		for _, id := range m.DerivedFrom {
			lineage = append(lineage, id.String())
		}
		row := []string{
			m.ID.String(), m.PatientID, m.NoteID, m.NoteType, noteDate,
			string(m.Field), m.Value, m.RawText,
			strconv.FormatBool(m.Negated), strconv.FormatBool(m.Uncertain),
			strconv.FormatFloat(m.Confidence, 'f', -1, 64),
			strconv.FormatInt(m.Sequence, 10),
			strconv.FormatBool(m.Invalid), strconv.FormatBool(m.Uncurated),
			strconv.FormatBool(m.Reconciled),
			strings.Join(lineage, ";"),
			string(m.WonField),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
