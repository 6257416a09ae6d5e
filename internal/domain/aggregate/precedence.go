package aggregate

import (
	"sort"

	"github.com/phenotype/phenotype/internal/domain/mention"
)

// Resolver assigns a strict total order to mentions competing for the same
// field: clean evidence first, then note-type rank, then recency, then
// ingestion order. No two mentions ever compare equal, so the order is
// stable under re-invocation with the same input set.
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Less reports whether a sorts before b ("better first").
func (r *Resolver) Less(a, b *mention.Mention) bool {
	// Clean beats unclean regardless of note type.
	if ac, bc := a.Clean(), b.Clean(); ac != bc {
		return ac
	}

	if ar, br := r.cfg.Rank(a.NoteType), r.cfg.Rank(b.NoteType); ar != br {
		return ar > br
	}

	// Later note_date first; undated sorts after all dated mentions.
	switch {
	case a.NoteDate != nil && b.NoteDate == nil:
		return true
	case a.NoteDate == nil && b.NoteDate != nil:
		return false
	case a.NoteDate != nil && b.NoteDate != nil && !a.NoteDate.Equal(*b.NoteDate):
		return a.NoteDate.After(*b.NoteDate)
	}

	return a.Sequence < b.Sequence
}

// Order returns the candidates sorted best-first. The input slice is not
// modified.
func (r *Resolver) Order(candidates []*mention.Mention) []*mention.Mention {
	out := make([]*mention.Mention, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool { return r.Less(out[i], out[j]) })
	return out
}

// Best returns the first candidate under the resolver's order, or nil when
// the set is empty.
func (r *Resolver) Best(candidates []*mention.Mention) *mention.Mention {
	var best *mention.Mention
	for _, m := range candidates {
		if best == nil || r.Less(m, best) {
			best = m
		}
	}
	return best
}
