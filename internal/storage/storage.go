// Package storage exports ledgers to bbolt snapshot files for offline audit.
// A snapshot is never used to resume appending.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/witnz/landledger/internal/hash"
	"github.com/witnz/landledger/internal/ledger"
	bolt "go.etcd.io/bbolt"
)

var (
	RecordsBucket  = []byte("records")
	MetadataBucket = []byte("metadata")
)

// Metadata keys.
const (
	MetaAlgorithm     = "algorithm"
	MetaGenesisMarker = "genesis_marker"
	MetaExportedAt    = "exported_at"
	MetaMerkleRoot    = "merkle_root"
	MetaLength        = "length"
)

var ErrRecordNotFound = errors.New("record not found in snapshot")

type Storage struct {
	db *bolt.DB
}

// SnapshotMetadata describes the ledger a snapshot was taken from.
type SnapshotMetadata struct {
	Algorithm     hash.Algorithm
	GenesisMarker string
	ExportedAt    time.Time
	MerkleRoot    string
	Length        int
}

func New(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{RecordsBucket, MetadataBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// RecordKey is the big-endian encoding of index, so cursor order is chain order.
func RecordKey(index int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(index))
	return key
}

// Export replaces the snapshot contents with every record of l and its metadata,
// in a single transaction.
func (s *Storage) Export(l *ledger.Ledger, exportedAt time.Time) (SnapshotMetadata, error) {
	records := l.Records()

	tree := hash.NewMerkleTree(l.Algorithm())
	for _, r := range records {
		tree.AddLeafHash(r.Hash)
	}
	root, err := tree.Root()
	if err != nil {
		return SnapshotMetadata{}, fmt.Errorf("failed to compute merkle root: %w", err)
	}

	meta := SnapshotMetadata{
		Algorithm:     l.Algorithm(),
		GenesisMarker: l.GenesisMarker(),
		ExportedAt:    exportedAt.UTC(),
		MerkleRoot:    root,
		Length:        len(records),
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(RecordsBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		bucket, err := tx.CreateBucket(RecordsBucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		for _, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to marshal record %d: %w", r.Index, err)
			}
			if err := bucket.Put(RecordKey(r.Index), data); err != nil {
				return fmt.Errorf("failed to save record %d: %w", r.Index, err)
			}
		}

		return putMetadata(tx.Bucket(MetadataBucket), meta)
	})
	if err != nil {
		return SnapshotMetadata{}, err
	}
	return meta, nil
}

func putMetadata(bucket *bolt.Bucket, meta SnapshotMetadata) error {
	values := map[string]string{
		MetaAlgorithm:     string(meta.Algorithm),
		MetaGenesisMarker: meta.GenesisMarker,
		MetaExportedAt:    meta.ExportedAt.Format(time.RFC3339Nano),
		MetaMerkleRoot:    meta.MerkleRoot,
		MetaLength:        strconv.Itoa(meta.Length),
	}
	for k, v := range values {
		if err := bucket.Put([]byte(k), []byte(v)); err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", k, err)
		}
	}
	return nil
}

// Records returns every record in the snapshot in key order.
func (s *Storage) Records() ([]ledger.RecordView, error) {
	var records []ledger.RecordView

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(RecordsBucket)
		return bucket.ForEach(func(k, v []byte) error {
			var r ledger.RecordView
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to decode record at key %x: %w", k, err)
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Storage) GetRecord(index int) (ledger.RecordView, error) {
	var r ledger.RecordView

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(RecordsBucket).Get(RecordKey(index))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrRecordNotFound, index)
		}
		return json.Unmarshal(data, &r)
	})
	return r, err
}

// PutRecord overwrites the stored record at r.Index without any checks.
func (s *Storage) PutRecord(r ledger.RecordView) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record %d: %w", r.Index, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(RecordsBucket).Put(RecordKey(r.Index), data)
	})
}

func (s *Storage) DeleteRecord(index int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(RecordsBucket).Delete(RecordKey(index))
	})
}

func (s *Storage) SetMetadata(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(MetadataBucket)
		return bucket.Put([]byte(key), []byte(value))
	})
}

func (s *Storage) GetMetadata(key string) (string, error) {
	var value string

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(MetadataBucket)
		data := bucket.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("metadata key not found: %s", key)
		}
		value = string(data)
		return nil
	})

	return value, err
}

func (s *Storage) Metadata() (SnapshotMetadata, error) {
	var meta SnapshotMetadata

	alg, err := s.GetMetadata(MetaAlgorithm)
	if err != nil {
		return meta, err
	}
	if meta.Algorithm, err = hash.ParseAlgorithm(alg); err != nil {
		return meta, err
	}
	if meta.GenesisMarker, err = s.GetMetadata(MetaGenesisMarker); err != nil {
		return meta, err
	}
	exportedAt, err := s.GetMetadata(MetaExportedAt)
	if err != nil {
		return meta, err
	}
	if meta.ExportedAt, err = time.Parse(time.RFC3339Nano, exportedAt); err != nil {
		return meta, fmt.Errorf("invalid exported_at: %w", err)
	}
	if meta.MerkleRoot, err = s.GetMetadata(MetaMerkleRoot); err != nil {
		return meta, err
	}
	length, err := s.GetMetadata(MetaLength)
	if err != nil {
		return meta, err
	}
	if meta.Length, err = strconv.Atoi(length); err != nil {
		return meta, fmt.Errorf("invalid length: %w", err)
	}
	return meta, nil
}

// Load restores the snapshot as a ledger, using the algorithm and genesis
// marker it was exported with. Nothing is recomputed, so tampering in the file
// surfaces through Validate.
func (s *Storage) Load(opts ...ledger.Option) (*ledger.Ledger, SnapshotMetadata, error) {
	meta, err := s.Metadata()
	if err != nil {
		return nil, meta, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}

	records, err := s.Records()
	if err != nil {
		return nil, meta, err
	}

	opts = append([]ledger.Option{
		ledger.WithAlgorithm(meta.Algorithm),
		ledger.WithGenesisMarker(meta.GenesisMarker),
	}, opts...)

	l, err := ledger.Restore(records, opts...)
	if err != nil {
		return nil, meta, fmt.Errorf("failed to restore ledger: %w", err)
	}
	return l, meta, nil
}
