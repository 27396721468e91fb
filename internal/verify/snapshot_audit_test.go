package verify

import (
	"os"
	"testing"
	"time"

	"github.com/witnz/landledger/internal/ledger"
	"github.com/witnz/landledger/internal/storage"
)

func exportedSnapshot(t *testing.T, landIDs ...string) *storage.Storage {
	t.Helper()

	l, err := ledger.New(ledger.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range landIDs {
		p, _ := ledger.NewPayload(ledger.Field{Key: "Land ID", Value: ledger.String(id)})
		if _, err := l.Append(p); err != nil {
			t.Fatal(err)
		}
	}

	tmpfile, err := os.CreateTemp("", "landledger-audit-*.db")
	if err != nil {
		t.Fatal(err)
	}
	tmpfile.Close()
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	store, err := storage.New(tmpfile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	if _, err := store.Export(l, time.Now()); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestAuditSnapshot(t *testing.T) {
	tests := []struct {
		name          string
		tamper        func(t *testing.T, s *storage.Storage)
		wantValid     bool
		wantChain     bool
		wantRootMatch bool
		wantLenMatch  bool
	}{
		{
			name:          "untouched",
			tamper:        func(t *testing.T, s *storage.Storage) {},
			wantValid:     true,
			wantChain:     true,
			wantRootMatch: true,
			wantLenMatch:  true,
		},
		{
			name: "tail truncated",
			tamper: func(t *testing.T, s *storage.Storage) {
				if err := s.DeleteRecord(3); err != nil {
					t.Fatal(err)
				}
			},
			wantChain:     true,
			wantRootMatch: false,
			wantLenMatch:  false,
		},
		{
			name: "payload modified",
			tamper: func(t *testing.T, s *storage.Storage) {
				r, err := s.GetRecord(1)
				if err != nil {
					t.Fatal(err)
				}
				r.Payload, _ = ledger.NewPayload(ledger.Field{Key: "Land ID", Value: ledger.String("Z9")})
				if err := s.PutRecord(r); err != nil {
					t.Fatal(err)
				}
			},
			wantChain:     false,
			wantRootMatch: true,
			wantLenMatch:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := exportedSnapshot(t, "A1", "B2", "C3")
			tt.tamper(t, store)

			report, err := AuditSnapshot(store)
			if err != nil {
				t.Fatalf("AuditSnapshot() error = %v", err)
			}
			if report.Valid() != tt.wantValid {
				t.Errorf("Valid() = %v, want %v", report.Valid(), tt.wantValid)
			}
			if report.Chain.Valid != tt.wantChain {
				t.Errorf("chain valid = %v, want %v", report.Chain.Valid, tt.wantChain)
			}
			if report.MerkleRootMatch != tt.wantRootMatch {
				t.Errorf("merkle root match = %v, want %v", report.MerkleRootMatch, tt.wantRootMatch)
			}
			if report.LengthMatch != tt.wantLenMatch {
				t.Errorf("length match = %v, want %v", report.LengthMatch, tt.wantLenMatch)
			}
		})
	}
}
