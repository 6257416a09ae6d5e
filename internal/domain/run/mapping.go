package run

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParseMappingCSV reads an identity mapping CSV into NoteInfo rows. The
// file must carry a note_id (or legacy filename) column and a patient_id
// column; note_date and note_type are optional.
func ParseMappingCSV(r io.Reader) ([]NoteInfo, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read mapping header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}

	idCol, ok := cols["note_id"]
	if !ok {
		idCol, ok = cols["filename"]
	}
	if !ok {
		return nil, fmt.Errorf("mapping CSV must include a note_id or filename column")
	}
	patientCol, ok := cols["patient_id"]
	if !ok {
		return nil, fmt.Errorf("mapping CSV must include a patient_id column")
	}

	cell := func(row []string, idx int, present bool) string {
		if !present || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	dateCol, hasDate := cols["note_date"]
	typeCol, hasType := cols["note_type"]

	var notes []NoteInfo
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mapping row: %w", err)
		}
		notes = append(notes, NoteInfo{
			NoteID:    cell(row, idCol, true),
			PatientID: cell(row, patientCol, true),
			NoteDate:  cell(row, dateCol, hasDate),
			NoteType:  cell(row, typeCol, hasType),
		})
	}
	return notes, nil
}

// ParseMentionsJSON reads the NER collaborator's mention dump: either a
// bare array of raw mentions or a full Input document.
func ParseMentionsJSON(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read mentions: %w", err)
	}

	var mentions []RawMention
	if err := json.Unmarshal(data, &mentions); err == nil {
		return &Input{Mentions: mentions}, nil
	}

	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse mentions JSON: %w", err)
	}
	return &in, nil
}
