package mention

import "fmt"

// NormalizationError reports raw text that cannot be parsed into the closed
// vocabulary or numeric range for its field. The mention is retained flagged
// invalid; the run continues.
type NormalizationError struct {
	Field  Field
	Raw    string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %q: %s", e.Field, e.Raw, e.Reason)
}

// UnknownFieldError reports an upstream field hint that does not map onto
// the field enum.
type UnknownFieldError struct {
	Hint string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field hint %q", e.Hint)
}

// MissingIdentityError reports a mention whose note has no resolvable
// patient. The mention is excluded from aggregation but kept in evidence.
type MissingIdentityError struct {
	NoteID string
}

func (e *MissingIdentityError) Error() string {
	return fmt.Sprintf("note %q has no resolved patient_id", e.NoteID)
}
