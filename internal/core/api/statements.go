package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/solatis/cepgate/internal/codec"
	"github.com/solatis/cepgate/internal/core/action"
	"github.com/solatis/cepgate/internal/types"
)

func (s *Service) handleStatements(w http.ResponseWriter, r *http.Request) {
	p, err := s.provider()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	statements := p.Statements()
	docs := make([]types.Document, 0, len(statements))
	for i := range statements {
		docs = append(docs, codec.EncodeStatement(&statements[i]))
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Service) handleStatement(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	p, err := s.provider()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	st, ok := p.Statement(name)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", types.ErrUnknownStatement, name))
		return
	}
	writeJSON(w, http.StatusOK, codec.EncodeStatement(&st))
}

// journalEntry is the wire form of an action.Record.
type journalEntry struct {
	ID            string `json:"id"`
	TransactionID string `json:"transactionId"`
	CorrelatorID  string `json:"correlatorId"`
	TargetURL     string `json:"url"`
	Success       bool   `json:"success"`
	StatusCode    int    `json:"statusCode,omitempty"`
	Reason        string `json:"reason,omitempty"`
	DurationMs    int64  `json:"durationMs"`
	DispatchedAt  string `json:"dispatchedAt"`
}

func newJournalEntry(rec action.Record) journalEntry {
	return journalEntry{
		ID:            rec.ID,
		TransactionID: rec.TransactionID,
		CorrelatorID:  rec.CorrelatorID,
		TargetURL:     rec.TargetURL,
		Success:       rec.Success,
		StatusCode:    rec.StatusCode,
		Reason:        rec.Reason,
		DurationMs:    rec.DurationMs,
		DispatchedAt:  rec.DispatchedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// handleJournal lists recent action dispatches, newest first. With a
// correlator query it lists that correlator's dispatches, oldest first.
func (s *Service) handleJournal(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	correlator := query.Get("correlator")
	raw := query.Get("limit")
	if correlator != "" && raw != "" {
		s.respondError(w, r, fmt.Errorf("%w: limit cannot be combined with correlator", errBadRequest))
		return
	}

	limit := types.DefaultJournalLimit
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, r, fmt.Errorf("%w: limit must be a positive integer, got %q", errBadRequest, raw))
			return
		}
		limit = n
	}

	var records []action.Record
	var err error
	if correlator != "" {
		records, err = s.journal.ByCorrelator(r.Context(), correlator)
	} else {
		records, err = s.journal.Recent(r.Context(), limit)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	entries := make([]journalEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, newJournalEntry(rec))
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleDispatch returns one journaled dispatch.
func (s *Service) handleDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: invalid dispatch id: %v", errBadRequest, err))
		return
	}

	rec, err := s.journal.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJournalEntry(rec))
}
