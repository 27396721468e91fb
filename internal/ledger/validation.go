package ledger

import "time"

type CorruptionKind string

const (
	// ContentMismatch: a stored fingerprint differs from a recomputation over the record's fields.
	ContentMismatch CorruptionKind = "content_mismatch"
	// LinkageBroken: a record does not point at its predecessor's fingerprint.
	LinkageBroken CorruptionKind = "linkage_broken"
	// IndexMismatch: a record's sequence index differs from its position.
	IndexMismatch CorruptionKind = "index_mismatch"
)

type Corruption struct {
	Index    int            `json:"index"`
	Kind     CorruptionKind `json:"kind"`
	Expected string         `json:"expected"`
	Actual   string         `json:"actual"`
}

// ValidationResult is the outcome of a whole-chain check. Corruption is nil
// when Valid is true.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Length     int         `json:"length"`
	Corruption *Corruption `json:"corruption,omitempty"`
	CheckedAt  time.Time   `json:"checked_at"`
}

// Err returns a *CorruptionError for an invalid result and nil otherwise.
func (r ValidationResult) Err() error {
	if r.Valid || r.Corruption == nil {
		return nil
	}
	return &CorruptionError{
		Index:    r.Corruption.Index,
		Kind:     r.Corruption.Kind,
		Expected: r.Corruption.Expected,
		Actual:   r.Corruption.Actual,
	}
}
