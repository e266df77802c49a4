package types

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewIDs(t *testing.T) {
	t.Run("transaction ids are unique uuids", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := NewTransactionID()
			if _, err := uuid.Parse(id); err != nil {
				t.Fatalf("invalid uuid %q: %v", id, err)
			}
			if seen[id] {
				t.Fatalf("duplicate id %q", id)
			}
			seen[id] = true
		}
	})

	t.Run("correlator ids differ from transaction ids", func(t *testing.T) {
		if NewCorrelatorID() == NewTransactionID() {
			t.Error("correlator and transaction ids collided")
		}
	})

	t.Run("dispatch ids are version 7", func(t *testing.T) {
		u, err := uuid.Parse(NewDispatchID())
		if err != nil {
			t.Fatalf("invalid uuid: %v", err)
		}
		if u.Version() != 7 {
			t.Errorf("expected version 7, got %d", u.Version())
		}
	})
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "valid", in: "0190a2b4-7c1d-7e3f-8a5b-1c2d3e4f5a6b"},
		{name: "uppercase normalised", in: "0190A2B4-7C1D-7E3F-8A5B-1C2D3E4F5A6B"},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "not-a-uuid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q) failed: %v", tt.in, err)
			}
			if got != "0190a2b4-7c1d-7e3f-8a5b-1c2d3e4f5a6b" {
				t.Errorf("unexpected id %q", got)
			}
		})
	}
}
