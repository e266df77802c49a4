package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/solatis/cepgate/internal/codec"
	"github.com/solatis/cepgate/internal/core/metrics"
	"github.com/solatis/cepgate/internal/correlation"
	"github.com/solatis/cepgate/internal/types"
)

// Event status label values for metrics.EventsReceivedTotal.
const (
	eventAccepted    = "accepted"
	eventRejected    = "rejected"
	eventUnavailable = "unavailable"
)

// eventAck acknowledges an accepted event.
type eventAck struct {
	TransactionID string `json:"transactionId"`
	CorrelatorID  string `json:"correlatorId"`
}

// handleEvents decodes one JSON event and sends it to the engine as iotEvent.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := codec.ReadBody(r, s.cfg.MaxBodySize)
	if err != nil {
		if !errors.Is(err, types.ErrPayloadTooLarge) {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		s.rejectEvent(w, r, err)
		return
	}
	attrs, err := codec.DecodeJSON([]byte(body))
	if err != nil {
		s.rejectEvent(w, r, err)
		return
	}

	p, err := s.provider()
	if err != nil {
		s.rejectEvent(w, r, err)
		return
	}
	if err := p.SendEvent(ctx, types.EventTypeName, attrs); err != nil {
		s.rejectEvent(w, r, err)
		return
	}

	metrics.EventsReceivedTotal.WithLabelValues(eventAccepted).Inc()
	s.logger.DebugContext(ctx, "event accepted", "id", attrs[types.FieldID], "type", attrs[types.FieldType])

	c, _ := correlation.FromContext(ctx)
	writeJSON(w, http.StatusOK, eventAck{TransactionID: c.TransactionID, CorrelatorID: c.CorrelatorID})
}

func (s *Service) rejectEvent(w http.ResponseWriter, r *http.Request, err error) {
	label := eventRejected
	if statusFor(err) == http.StatusServiceUnavailable {
		label = eventUnavailable
	}
	metrics.EventsReceivedTotal.WithLabelValues(label).Inc()
	s.logger.WarnContext(r.Context(), "event rejected", "error", err)
	s.respondError(w, r, err)
}
