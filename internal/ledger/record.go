package ledger

import (
	"fmt"
	"time"

	"github.com/witnz/landledger/internal/hash"
)

// GenesisPrevHash is the predecessor link of the genesis record.
const GenesisPrevHash = "0"

// recordDomain separates record fingerprints from other digests of the same algorithm.
const recordDomain = "landledger/record/v1"

// Record is one immutable, verifiable ledger entry. Fields are unexported so
// stored records cannot be mutated from outside the package; use View to read them.
type Record struct {
	index     int
	createdAt time.Time
	payload   Payload
	prevHash  string
	hash      string
	algorithm hash.Algorithm
}

// RecordView is a read-only copy of a Record for display and export.
type RecordView struct {
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"created_at"`
	Payload   Payload   `json:"payload"`
	PrevHash  string    `json:"previous_hash"`
	Hash      string    `json:"hash"`
}

// NewRecord builds a record and computes its fingerprint.
func NewRecord(index int, createdAt time.Time, payload Payload, prevHash string, algorithm hash.Algorithm) (*Record, error) {
	if index < 0 {
		return nil, fmt.Errorf("record index must be non-negative, got %d", index)
	}

	r := &Record{
		index:     index,
		createdAt: createdAt.UTC(),
		payload:   payload.Clone(),
		prevHash:  prevHash,
		algorithm: algorithm,
	}

	fingerprint, err := r.computeFingerprint()
	if err != nil {
		return nil, err
	}
	r.hash = fingerprint
	return r, nil
}

// fromView rebuilds a record exactly as exported, without recomputing its fingerprint.
func fromView(v RecordView, algorithm hash.Algorithm) *Record {
	return &Record{
		index:     v.Index,
		createdAt: v.CreatedAt.UTC(),
		payload:   v.Payload.Clone(),
		prevHash:  v.PrevHash,
		hash:      v.Hash,
		algorithm: algorithm,
	}
}

func (r *Record) canonicalFields() map[string]any {
	return map[string]any{
		"index":         r.index,
		"created_at":    r.createdAt.Format(time.RFC3339Nano),
		"payload":       r.payload,
		"previous_hash": r.prevHash,
	}
}

func (r *Record) computeFingerprint() (string, error) {
	canonical, err := hash.MarshalCanonical(r.canonicalFields())
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize record %d: %w", r.index, err)
	}
	return r.algorithm.SumWithDomain(recordDomain, canonical)
}

// ComputeFingerprint recomputes the fingerprint from the record's own fields.
// It returns "" when the fields cannot be canonicalized, such as a string
// altered into invalid UTF-8, so such a record never matches its stored hash.
func (r *Record) ComputeFingerprint() string {
	fingerprint, err := r.computeFingerprint()
	if err != nil {
		return ""
	}
	return fingerprint
}

func (r *Record) Index() int           { return r.index }
func (r *Record) CreatedAt() time.Time { return r.createdAt }
func (r *Record) PrevHash() string     { return r.prevHash }
func (r *Record) Hash() string         { return r.hash }

// Payload returns a copy of the record payload.
func (r *Record) Payload() Payload {
	return r.payload.Clone()
}

func (r *Record) View() RecordView {
	return RecordView{
		Index:     r.index,
		CreatedAt: r.createdAt,
		Payload:   r.payload.Clone(),
		PrevHash:  r.prevHash,
		Hash:      r.hash,
	}
}
