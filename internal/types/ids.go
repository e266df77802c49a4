package types

import (
	"github.com/google/uuid"
)

// NewTransactionID generates a random UUIDv4 transaction identifier.
// A fresh value is minted for every inbound request and never reused.
func NewTransactionID() string {
	return uuid.NewString()
}

// NewCorrelatorID generates a random UUIDv4 correlator identifier.
// Same scheme as NewTransactionID so generated correlators are indistinguishable
// from transaction ids in downstream logs.
func NewCorrelatorID() string {
	return uuid.NewString()
}

// NewDispatchID generates a UUIDv7 identifier for a journaled dispatch.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewDispatchID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParseID validates a generated identifier and returns its canonical form.
// Correlators are not parsed: inbound ones are opaque.
func ParseID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
