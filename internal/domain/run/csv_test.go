package run

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/phenotype/phenotype/internal/domain/mention"
)

func TestWriteRecordsCSV(t *testing.T) {
	result := processDefault(testInput())

	var buf bytes.Buffer
	if err := WriteRecordsCSV(&buf, result.Records); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output must be valid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus 1 patient row, got %d rows", len(rows))
	}

	header := rows[0]
	// patient_id plus three columns per tracked field.
	wantCols := 1 + 3*len(mention.TrackedFields())
	if len(header) != wantCols {
		t.Errorf("expected %d columns, got %d", wantCols, len(header))
	}

	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	row := rows[1]
	if row[col["patient_id"]] != "p1" {
		t.Errorf("expected p1, got %s", row[col["patient_id"]])
	}
	if row[col["er_status"]] != mention.StatusPositive {
		t.Errorf("expected Positive er_status, got %s", row[col["er_status"]])
	}
	if row[col["her2_final"]] != mention.StatusPositive {
		t.Errorf("expected Positive her2_final, got %s", row[col["her2_final"]])
	}
	// No Ki67 anywhere in the input: value, evidence id, and bucket stay empty.
	if row[col["ki67_percent"]] != "" || row[col["ki67_percent__evidence_id"]] != "" || row[col["ki67_percent__confidence"]] != "" {
		t.Error("absent field must leave all three columns empty")
	}
}

func TestWriteEvidenceCSV(t *testing.T) {
	result := processDefault(testInput())

	var buf bytes.Buffer
	if err := WriteEvidenceCSV(&buf, result.Evidence); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output must be valid CSV: %v", err)
	}
	if len(rows) != 1+len(result.Evidence) {
		t.Fatalf("expected one row per evidence mention, got %d rows", len(rows))
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[name] = i
	}

	var reconciled []string
	for _, row := range rows[1:] {
		if row[col["reconciled"]] == "true" {
			reconciled = append(reconciled, row[col["derived_from"]])
		}
	}
	if len(reconciled) != 1 {
		t.Fatalf("expected exactly 1 reconciled row, got %d", len(reconciled))
	}
	if parts := strings.Split(reconciled[0], ";"); len(parts) != 2 {
		t.Errorf("expected 2 lineage ids, got %q", reconciled[0])
	}
}
