// Package certificate defines the land certificate schema recorded in the ledger
// and the completeness rules a registration must satisfy.
package certificate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/witnz/landledger/internal/ledger"
)

// Payload field names. They are part of every fingerprint, so renaming one
// changes the hash of every certificate that carries it.
const (
	FieldOwnerName      = "Owner Name"
	FieldLandID         = "Land ID"
	FieldLocation       = "Location"
	FieldArea           = "Area (acres)"
	FieldDateRegistered = "Date Registered"
)

// DateLayout is the format of the Date Registered field.
const DateLayout = "2006-01-02 15:04:05"

// MinArea is the smallest registrable plot in acres.
var MinArea = decimal.RequireFromString("0.1")

type Certificate struct {
	OwnerName      string          `json:"owner_name" yaml:"owner_name"`
	LandID         string          `json:"land_id" yaml:"land_id"`
	Location       string          `json:"location" yaml:"location"`
	Area           decimal.Decimal `json:"area" yaml:"area"`
	DateRegistered string          `json:"date_registered,omitempty" yaml:"date_registered,omitempty"`
}

// Validate reports every missing or out-of-range field at once.
func (c *Certificate) Validate() error {
	var missing []string
	if strings.TrimSpace(c.OwnerName) == "" {
		missing = append(missing, FieldOwnerName)
	}
	if strings.TrimSpace(c.LandID) == "" {
		missing = append(missing, FieldLandID)
	}
	if strings.TrimSpace(c.Location) == "" {
		missing = append(missing, FieldLocation)
	}
	if c.Area.IsZero() {
		missing = append(missing, FieldArea)
	}
	if len(missing) > 0 {
		return ledger.NewValidationError("please fill in all required fields", missing...)
	}

	if c.Area.LessThan(MinArea) {
		return ledger.NewValidationError(fmt.Sprintf("area must be at least %s acres", MinArea), FieldArea)
	}
	if c.DateRegistered != "" {
		if _, err := time.Parse(DateLayout, c.DateRegistered); err != nil {
			return ledger.NewValidationError("date registered must use the format "+DateLayout, FieldDateRegistered)
		}
	}
	return nil
}

// Stamp returns a copy with DateRegistered set to now when it is empty.
func (c Certificate) Stamp(now time.Time) Certificate {
	if c.DateRegistered == "" {
		c.DateRegistered = now.Format(DateLayout)
	}
	return c
}

// Payload converts the certificate into ledger fields, trimming surrounding
// whitespace so the same certificate always hashes the same way.
func (c *Certificate) Payload() (ledger.Payload, error) {
	fields := []ledger.Field{
		{Key: FieldOwnerName, Value: ledger.String(strings.TrimSpace(c.OwnerName))},
		{Key: FieldLandID, Value: ledger.String(strings.TrimSpace(c.LandID))},
		{Key: FieldLocation, Value: ledger.String(strings.TrimSpace(c.Location))},
		{Key: FieldArea, Value: ledger.Number(c.Area)},
	}
	if c.DateRegistered != "" {
		fields = append(fields, ledger.Field{Key: FieldDateRegistered, Value: ledger.String(c.DateRegistered)})
	}
	return ledger.NewPayload(fields...)
}

// FromPayload reads a certificate back out of a ledger payload.
func FromPayload(p ledger.Payload) (Certificate, error) {
	var c Certificate
	var err error

	if c.OwnerName, err = stringField(p, FieldOwnerName); err != nil {
		return Certificate{}, err
	}
	if c.LandID, err = stringField(p, FieldLandID); err != nil {
		return Certificate{}, err
	}
	if c.Location, err = stringField(p, FieldLocation); err != nil {
		return Certificate{}, err
	}

	area, ok := p.Get(FieldArea)
	if !ok {
		return Certificate{}, fmt.Errorf("payload has no %q field", FieldArea)
	}
	if c.Area, ok = area.Decimal(); !ok {
		return Certificate{}, fmt.Errorf("field %q is not a number", FieldArea)
	}

	if date, ok := p.Get(FieldDateRegistered); ok {
		c.DateRegistered = date.String()
	}
	return c, nil
}

func stringField(p ledger.Payload, key string) (string, error) {
	v, ok := p.Get(key)
	if !ok {
		return "", fmt.Errorf("payload has no %q field", key)
	}
	s, ok := v.Str()
	if !ok {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return s, nil
}
