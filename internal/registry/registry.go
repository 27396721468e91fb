// Package registry records land certificates in a ledger and answers
// verification queries against it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/witnz/landledger/internal/certificate"
	"github.com/witnz/landledger/internal/events"
	"github.com/witnz/landledger/internal/ledger"
	"github.com/witnz/landledger/internal/metrics"
)

var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrDuplicateLandID     = errors.New("land id already registered")
)

type Alerter interface {
	SendCorruptionAlert(ctx context.Context, c ledger.Corruption, length int) error
}

// Registration is a certificate together with the record that holds it.
type Registration struct {
	Certificate certificate.Certificate `json:"certificate"`
	Record      ledger.RecordView       `json:"record"`
}

type Options struct {
	UniqueLandIDs bool
	Publisher     events.Publisher
	Alerter       Alerter
	Topic         string
	Clock         func() time.Time
	Logger        *slog.Logger
}

type Registry struct {
	ledger        *ledger.Ledger
	uniqueLandIDs bool
	publisher     events.Publisher
	alerter       Alerter
	topic         string
	clock         func() time.Time
	logger        *slog.Logger

	// registerMu makes the duplicate check and the append one step.
	registerMu sync.Mutex

	alertMu     sync.Mutex
	lastAlerted *ledger.Corruption
}

func New(l *ledger.Ledger, opts Options) *Registry {
	r := &Registry{
		ledger:        l,
		uniqueLandIDs: opts.UniqueLandIDs,
		publisher:     opts.Publisher,
		alerter:       opts.Alerter,
		topic:         opts.Topic,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}
	if r.publisher == nil {
		r.publisher = events.NopPublisher{}
	}
	if r.topic == "" {
		r.topic = events.TopicCertificateRegistered
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	metrics.SetChainLength(l.Len())
	return r
}

func (r *Registry) Ledger() *ledger.Ledger {
	return r.ledger
}

// Register validates cert and appends it to the ledger. A publish failure is
// logged and does not undo the append.
func (r *Registry) Register(ctx context.Context, cert certificate.Certificate) (ledger.RecordView, error) {
	cert = cert.Stamp(r.clock())
	if err := cert.Validate(); err != nil {
		metrics.RecordRejection("invalid")
		return ledger.RecordView{}, err
	}

	payload, err := cert.Payload()
	if err != nil {
		metrics.RecordRejection("invalid")
		return ledger.RecordView{}, fmt.Errorf("failed to build payload: %w", err)
	}
	landID := strings.TrimSpace(cert.LandID)

	r.registerMu.Lock()
	if r.uniqueLandIDs {
		if _, found := r.ledger.FindByField(certificate.FieldLandID, ledger.String(landID)); found {
			r.registerMu.Unlock()
			metrics.RecordRejection("duplicate")
			return ledger.RecordView{}, fmt.Errorf("%w: %s", ErrDuplicateLandID, landID)
		}
	}
	record, err := r.ledger.Append(payload)
	r.registerMu.Unlock()
	if err != nil {
		metrics.RecordRejection("append_failed")
		return ledger.RecordView{}, fmt.Errorf("failed to append certificate: %w", err)
	}

	metrics.RecordAppend(record.Index + 1)
	r.logger.Info("Certificate registered",
		"land_id", landID,
		"index", record.Index,
		"hash", record.Hash)

	event := events.NewCertificateRegistered(landID, strings.TrimSpace(cert.OwnerName), cert.Area, record.Index, record.Hash, record.CreatedAt)
	if err := r.publisher.Publish(ctx, r.topic, event); err != nil {
		metrics.RecordEventPublish(false)
		r.logger.Warn("Failed to publish registration event",
			"land_id", landID,
			"index", record.Index,
			"error", err)
	} else {
		metrics.RecordEventPublish(true)
	}

	return record, nil
}

// Verify looks up the earliest registration for landID.
func (r *Registry) Verify(ctx context.Context, landID string) (Registration, error) {
	landID = strings.TrimSpace(landID)
	record, found := r.ledger.FindByField(certificate.FieldLandID, ledger.String(landID))
	metrics.RecordLookup(found)
	if !found {
		return Registration{}, fmt.Errorf("%w: %s", ErrCertificateNotFound, landID)
	}

	cert, err := certificate.FromPayload(record.Payload)
	if err != nil {
		return Registration{}, fmt.Errorf("failed to read certificate at record %d: %w", record.Index, err)
	}
	return Registration{Certificate: cert, Record: record}, nil
}

// Integrity validates the whole chain. A corruption is alerted once per
// distinct finding so periodic checks do not repeat the same alert.
func (r *Registry) Integrity(ctx context.Context) ledger.ValidationResult {
	start := time.Now()
	result := r.ledger.Validate()
	metrics.RecordValidation(result.Valid, result.Length, time.Since(start))

	if result.Valid {
		r.alertMu.Lock()
		r.lastAlerted = nil
		r.alertMu.Unlock()
		r.logger.Debug("Ledger verified", "length", result.Length)
		return result
	}

	c := *result.Corruption
	r.logger.Error("Ledger corruption detected",
		"index", c.Index,
		"kind", c.Kind,
		"expected", c.Expected,
		"actual", c.Actual)

	r.alertMu.Lock()
	alreadyAlerted := r.lastAlerted != nil && *r.lastAlerted == c
	if !alreadyAlerted {
		r.lastAlerted = &c
	}
	r.alertMu.Unlock()

	if r.alerter != nil && !alreadyAlerted {
		if err := r.alerter.SendCorruptionAlert(ctx, c, result.Length); err != nil {
			r.logger.Warn("Failed to send corruption alert", "error", err)
		}
	}
	return result
}
