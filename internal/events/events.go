package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const TopicCertificateRegistered = "certificate.registered"

// CertificateRegistered is emitted once a certificate has been appended to the ledger.
type CertificateRegistered struct {
	EventID      string          `json:"event_id"`
	LandID       string          `json:"land_id"`
	OwnerName    string          `json:"owner_name"`
	Area         decimal.Decimal `json:"area"`
	Index        int             `json:"index"`
	Fingerprint  string          `json:"fingerprint"`
	RegisteredAt time.Time       `json:"registered_at"`
}

func NewCertificateRegistered(landID, owner string, area decimal.Decimal, index int, fingerprint string, at time.Time) CertificateRegistered {
	return CertificateRegistered{
		EventID:      uuid.NewString(),
		LandID:       landID,
		OwnerName:    owner,
		Area:         area,
		Index:        index,
		Fingerprint:  fingerprint,
		RegisteredAt: at.UTC(),
	}
}

// Key partitions events by Land ID so registrations of one plot stay ordered.
func (e CertificateRegistered) Key() string {
	return e.LandID
}

type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

type Event interface {
	Key() string
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
func (NopPublisher) Close() error                                 { return nil }
