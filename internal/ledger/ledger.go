package ledger

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/witnz/landledger/internal/hash"
	"golang.org/x/text/unicode/norm"
)

const DefaultGenesisMarker = "Genesis Block"

// GenesisField is the single payload field of the genesis record.
const GenesisField = "genesis"

// Ledger is an append-only sequence of hash-linked records.
// Append takes the write lock; every read takes the read lock, so a reader sees
// the chain either before or after an append, never in between.
type Ledger struct {
	mu            sync.RWMutex
	records       []*Record
	index         *fieldIndex
	algorithm     hash.Algorithm
	genesisMarker string
	clock         func() time.Time
	logger        *slog.Logger
}

type Option func(*Ledger)

func WithAlgorithm(algorithm hash.Algorithm) Option {
	return func(l *Ledger) {
		l.algorithm = algorithm
	}
}

func WithGenesisMarker(marker string) Option {
	return func(l *Ledger) {
		if marker != "" {
			l.genesisMarker = marker
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithIndexedFields maintains a value index for each named payload field so
// FindByField on them avoids a scan.
func WithIndexedFields(fields ...string) Option {
	return func(l *Ledger) {
		l.index = newFieldIndex(fields...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func newLedger(opts []Option) (*Ledger, error) {
	l := &Ledger{
		algorithm:     hash.DefaultAlgorithm,
		genesisMarker: DefaultGenesisMarker,
		clock:         time.Now,
		index:         newFieldIndex(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if _, err := hash.ParseAlgorithm(string(l.algorithm)); err != nil {
		return nil, err
	}
	return l, nil
}

// New creates a ledger seeded with its genesis record.
func New(opts ...Option) (*Ledger, error) {
	l, err := newLedger(opts)
	if err != nil {
		return nil, err
	}

	genesis, err := l.createGenesis()
	if err != nil {
		return nil, fmt.Errorf("failed to create genesis record: %w", err)
	}
	l.records = []*Record{genesis}
	l.index.add(0, genesis)

	l.logger.Debug("Ledger created",
		"algorithm", l.algorithm,
		"genesis_hash", genesis.hash)
	return l, nil
}

// Restore rebuilds a ledger from exported records exactly as given. Nothing is
// recomputed, so Validate reports any tampering the export carries.
func Restore(records []RecordView, opts ...Option) (*Ledger, error) {
	if len(records) == 0 {
		return nil, ErrEmptyLedger
	}

	l, err := newLedger(opts)
	if err != nil {
		return nil, err
	}

	l.records = make([]*Record, len(records))
	for i, v := range records {
		l.records[i] = fromView(v, l.algorithm)
		l.index.add(i, l.records[i])
	}
	return l, nil
}

func (l *Ledger) createGenesis() (*Record, error) {
	payload, err := NewPayload(Field{Key: GenesisField, Value: String(l.genesisMarker)})
	if err != nil {
		return nil, err
	}
	if payload, err = payload.normalized(); err != nil {
		return nil, err
	}
	return NewRecord(0, l.clock(), payload, GenesisPrevHash, l.algorithm)
}

// Append links a new record carrying payload to the current tail.
// An empty payload is rejected with ErrEmptyPayload. Keys and string values
// are stored in NFC form, so the stored bytes are the hashed bytes.
func (l *Ledger) Append(payload Payload) (RecordView, error) {
	if payload.IsEmpty() {
		return RecordView{}, ErrEmptyPayload
	}
	payload, err := payload.normalized()
	if err != nil {
		return RecordView{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tail := l.records[len(l.records)-1]

	record, err := NewRecord(tail.index+1, l.clock(), payload, tail.hash, l.algorithm)
	if err != nil {
		return RecordView{}, fmt.Errorf("failed to build record: %w", err)
	}

	l.records = append(l.records, record)
	l.index.add(len(l.records)-1, record)

	l.logger.Debug("Record appended",
		"index", record.index,
		"hash", record.hash,
		"previous_hash", record.prevHash)

	return record.View(), nil
}

// FindByField returns the earliest record whose payload has field equal to value.
// The field name and a string value are compared in NFC form.
func (l *Ledger) FindByField(field string, value Value) (RecordView, bool) {
	field = norm.NFC.String(field)
	value = value.normalized()

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.index.covers(field) {
		pos, ok := l.index.lookup(field, value)
		if !ok || pos >= len(l.records) {
			return RecordView{}, false
		}
		return l.records[pos].View(), true
	}

	for _, r := range l.records {
		if v, ok := r.payload.Get(field); ok && v.Equal(value) {
			return r.View(), true
		}
	}
	return RecordView{}, false
}

// Validate recomputes every fingerprint and checks every link, reporting the
// first corruption found. Each record is checked for content, then linkage,
// then position.
func (l *Ledger) Validate() ValidationResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := ValidationResult{
		Valid:     true,
		Length:    len(l.records),
		CheckedAt: time.Now().UTC(),
	}

	for i, r := range l.records {
		if corruption := checkRecord(i, r, l.records); corruption != nil {
			result.Valid = false
			result.Corruption = corruption
			return result
		}
	}
	return result
}

func checkRecord(i int, r *Record, records []*Record) *Corruption {
	if recomputed := r.ComputeFingerprint(); recomputed != r.hash {
		return &Corruption{Index: i, Kind: ContentMismatch, Expected: recomputed, Actual: r.hash}
	}

	expectedPrev := GenesisPrevHash
	if i > 0 {
		expectedPrev = records[i-1].hash
	}
	if r.prevHash != expectedPrev {
		return &Corruption{Index: i, Kind: LinkageBroken, Expected: expectedPrev, Actual: r.prevHash}
	}

	if r.index != i {
		return &Corruption{Index: i, Kind: IndexMismatch, Expected: fmt.Sprint(i), Actual: fmt.Sprint(r.index)}
	}
	return nil
}

// Len returns the number of records, genesis included.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Ledger) Tail() RecordView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.records[len(l.records)-1].View()
}

func (l *Ledger) Get(index int) (RecordView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.records) {
		return RecordView{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return l.records[index].View(), nil
}

// Records returns views of every record in chain order.
func (l *Ledger) Records() []RecordView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	views := make([]RecordView, len(l.records))
	for i, r := range l.records {
		views[i] = r.View()
	}
	return views
}

func (l *Ledger) Algorithm() hash.Algorithm {
	return l.algorithm
}

func (l *Ledger) GenesisMarker() string {
	return l.genesisMarker
}

func (l *Ledger) merkleTree() *hash.MerkleTree {
	mt := hash.NewMerkleTree(l.algorithm)
	for _, r := range l.records {
		mt.AddLeafHash(r.hash)
	}
	return mt
}

// MerkleRoot commits to every stored fingerprint in chain order.
func (l *Ledger) MerkleRoot() (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.merkleTree().Root()
}

// Summary describes one consistent state of the chain.
type Summary struct {
	Length     int    `json:"length"`
	Tip        string `json:"tip"`
	MerkleRoot string `json:"merkle_root"`
}

// Summary reads the length, tip fingerprint and Merkle root under one read
// lock, so all three describe the same chain.
func (l *Ledger) Summary() (Summary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	root, err := l.merkleTree().Root()
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Length:     len(l.records),
		Tip:        l.records[len(l.records)-1].hash,
		MerkleRoot: root,
	}, nil
}

// Proof returns a Merkle inclusion proof for the record at index.
func (l *Ledger) Proof(index int) (*hash.MerkleProof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.records) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return l.merkleTree().Proof(index)
}
