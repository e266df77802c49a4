package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/cepgate/internal/core/action"
	"github.com/solatis/cepgate/internal/types"
)

// journalTimeFormat is fixed-width so dispatched_at sorts lexically.
const journalTimeFormat = "2006-01-02T15:04:05.000000Z"

// Journal records action dispatch outcomes.
// Implements action.Recorder.
type Journal struct {
	queries *Queries
}

// NewJournal creates a journal over loaded queries.
func NewJournal(queries *Queries) *Journal {
	return &Journal{queries: queries}
}

type dispatchRow struct {
	ID            string `db:"dispatch_id"`
	TransactionID string `db:"transaction_id"`
	CorrelatorID  string `db:"correlator_id"`
	TargetURL     string `db:"target_url"`
	Success       bool   `db:"success"`
	StatusCode    int    `db:"status_code"`
	Reason        string `db:"reason"`
	DurationMs    int64  `db:"duration_ms"`
	DispatchedAt  string `db:"dispatched_at"`
}

func (r dispatchRow) record() (action.Record, error) {
	at, err := time.Parse(journalTimeFormat, r.DispatchedAt)
	if err != nil {
		return action.Record{}, fmt.Errorf("invalid dispatched_at for %s: %w", r.ID, err)
	}
	return action.Record{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		CorrelatorID:  r.CorrelatorID,
		TargetURL:     r.TargetURL,
		Success:       r.Success,
		StatusCode:    r.StatusCode,
		Reason:        r.Reason,
		DurationMs:    r.DurationMs,
		DispatchedAt:  at,
	}, nil
}

// RecordDispatch inserts one dispatch record.
func (j *Journal) RecordDispatch(ctx context.Context, rec action.Record) error {
	if rec.ID == "" {
		rec.ID = types.NewDispatchID()
	}
	if rec.DispatchedAt.IsZero() {
		rec.DispatchedAt = time.Now()
	}
	_, err := j.queries.ExecContext(ctx, "insert-dispatch",
		rec.ID,
		rec.TransactionID,
		rec.CorrelatorID,
		rec.TargetURL,
		rec.Success,
		rec.StatusCode,
		rec.Reason,
		rec.DurationMs,
		rec.DispatchedAt.UTC().Format(journalTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
// limit <= 0 uses types.DefaultJournalLimit; larger values are capped at
// types.MaxJournalLimit.
func (j *Journal) Recent(ctx context.Context, limit int) ([]action.Record, error) {
	if limit <= 0 {
		limit = types.DefaultJournalLimit
	}
	if limit > types.MaxJournalLimit {
		limit = types.MaxJournalLimit
	}

	var rows []dispatchRow
	if err := j.queries.SelectContext(ctx, "list-recent-dispatches", &rows, limit); err != nil {
		return nil, fmt.Errorf("failed to list dispatches: %w", err)
	}
	return toRecords(rows)
}

// Get returns one dispatch by id.
func (j *Journal) Get(ctx context.Context, id string) (action.Record, error) {
	var row dispatchRow
	if err := j.queries.GetContext(ctx, "get-dispatch", &row, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return action.Record{}, fmt.Errorf("%w: %s", types.ErrDispatchNotFound, id)
		}
		return action.Record{}, fmt.Errorf("failed to get dispatch %s: %w", id, err)
	}
	return row.record()
}

// ByCorrelator returns every dispatch caused by one correlator, oldest first.
func (j *Journal) ByCorrelator(ctx context.Context, correlatorID string) ([]action.Record, error) {
	var rows []dispatchRow
	if err := j.queries.SelectContext(ctx, "list-dispatches-by-correlator", &rows, correlatorID); err != nil {
		return nil, fmt.Errorf("failed to list dispatches for %s: %w", correlatorID, err)
	}
	return toRecords(rows)
}

func toRecords(rows []dispatchRow) ([]action.Record, error) {
	out := make([]action.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
