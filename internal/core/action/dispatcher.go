// Package action delivers action payloads to external HTTP endpoints.
//
// Post is synchronous and classifies the result: any 2xx response is a
// success, anything else (non-2xx, malformed URL, transport failure) is a
// failure carrying a human-readable reason. Response and error bodies are
// drained line by line into the log; nothing beyond the Outcome is returned.
//
// The dispatcher never retries and sets no timeout of its own. Callers that
// need either wrap Post or bound it with the context.
package action

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/cepgate/internal/core/metrics"
	"github.com/solatis/cepgate/internal/correlation"
	"github.com/solatis/cepgate/internal/types"
)

// ContentType is sent on every action request.
const ContentType = "application/json; charset=utf-8"

// maxLineSize bounds a single logged response line.
const maxLineSize = 1024 * 1024

// Outcome is the classified result of one dispatch.
type Outcome struct {
	Success    bool
	StatusCode int    // zero when no response was received
	Reason     string // empty on success
}

// Failed returns a failure outcome with reason.
func Failed(statusCode int, reason string) Outcome {
	return Outcome{StatusCode: statusCode, Reason: reason}
}

// Record describes one dispatch for the journal.
type Record struct {
	ID            string
	TransactionID string
	CorrelatorID  string
	TargetURL     string
	Success       bool
	StatusCode    int
	Reason        string
	DurationMs    int64
	DispatchedAt  time.Time
}

// Recorder persists dispatch records.
// Implemented by *db.Journal.
type Recorder interface {
	RecordDispatch(ctx context.Context, rec Record) error
}

// Dispatcher posts action payloads. Safe for concurrent use: dispatches share
// only the HTTP client, which is itself concurrency-safe.
type Dispatcher struct {
	client   *http.Client
	logger   *slog.Logger
	header   string
	recorder Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClient sets the HTTP client. The default client has no timeout.
func WithClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = c
	}
}

// WithLogger sets the logger for diagnostics and response bodies.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithHeader sets the outbound correlator header name.
func WithHeader(name string) Option {
	return func(d *Dispatcher) {
		d.header = name
	}
}

// WithRecorder journals every outcome. Recorder errors are logged, never returned.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client: &http.Client{},
		logger: slog.Default(),
		header: correlation.DefaultHeader,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// PostFromContext posts body to targetURL carrying the correlator found on ctx.
// Without a correlation on ctx the correlator header is omitted.
func (d *Dispatcher) PostFromContext(ctx context.Context, targetURL string, body types.Document) Outcome {
	return d.Post(ctx, targetURL, body, correlation.CorrelatorFromContext(ctx))
}

// Post serializes body and sends it to targetURL with the correlator header
// set to correlatorID. Blocks until the response body has been drained.
func (d *Dispatcher) Post(ctx context.Context, targetURL string, body types.Document, correlatorID string) Outcome {
	start := time.Now()
	out, outcomeLabel := d.post(ctx, targetURL, body, correlatorID)
	elapsed := time.Since(start)

	metrics.ActionDispatchTotal.WithLabelValues(outcomeLabel).Inc()
	metrics.ActionDispatchDuration.Observe(elapsed.Seconds())

	if !out.Success {
		d.logger.ErrorContext(ctx, "action dispatch failed", "url", targetURL, "reason", out.Reason)
	}

	if d.recorder != nil {
		rec := Record{
			ID:           types.NewDispatchID(),
			CorrelatorID: correlatorID,
			TargetURL:    targetURL,
			Success:      out.Success,
			StatusCode:   out.StatusCode,
			Reason:       out.Reason,
			DurationMs:   elapsed.Milliseconds(),
			DispatchedAt: start.UTC(),
		}
		if c, ok := correlation.FromContext(ctx); ok {
			rec.TransactionID = c.TransactionID
		}
		if err := d.recorder.RecordDispatch(ctx, rec); err != nil {
			d.logger.WarnContext(ctx, "failed to journal action dispatch", "error", err)
		}
	}
	return out
}

func (d *Dispatcher) post(ctx context.Context, targetURL string, body types.Document, correlatorID string) (Outcome, string) {
	u, err := parseTarget(targetURL)
	if err != nil {
		return Failed(0, err.Error()), metrics.OutcomeTransport
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Failed(0, fmt.Sprintf("failed to serialize action body: %v", err)), metrics.OutcomeTransport
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return Failed(0, err.Error()), metrics.OutcomeTransport
	}
	req.Header.Set("Content-Type", ContentType)
	if correlatorID != "" {
		req.Header.Set(d.header, correlatorID)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Failed(0, err.Error()), metrics.OutcomeTransport
	}
	defer resp.Body.Close()

	d.logger.DebugContext(ctx, "action http response", "status", resp.StatusCode, "message", statusMessage(resp))

	if resp.StatusCode/100 == 2 {
		d.drain(ctx, resp.Body, slog.LevelInfo, "action response body")
		return Outcome{Success: true, StatusCode: resp.StatusCode}, metrics.OutcomeSuccess
	}

	reason := fmt.Sprintf("%d %s", resp.StatusCode, statusMessage(resp))
	d.logger.ErrorContext(ctx, "action response is not OK", "status", resp.StatusCode, "message", statusMessage(resp))
	d.drain(ctx, resp.Body, slog.LevelError, "action error response body")
	return Failed(resp.StatusCode, reason), metrics.OutcomeRejected
}

// parseTarget accepts only absolute http(s) URLs so no I/O is attempted for
// anything else.
func parseTarget(targetURL string) (*url.URL, error) {
	u, err := url.ParseRequestURI(targetURL)
	if err != nil {
		return nil, fmt.Errorf("malformed action URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("malformed action URL %q: unsupported scheme %q", targetURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("malformed action URL %q: missing host", targetURL)
	}
	return u, nil
}

// statusMessage returns the reason phrase the target sent, falling back to
// the standard text for the code.
func statusMessage(resp *http.Response) string {
	phrase := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if phrase != "" {
		return phrase
	}
	return http.StatusText(resp.StatusCode)
}

// drain logs every line of r at level. Lines longer than maxLineSize are
// logged truncated and the rest of the body is still read.
func (d *Dispatcher) drain(ctx context.Context, r io.Reader, level slog.Level, msg string) {
	br := bufio.NewReader(r)
	var line []byte
	truncated := false
	emit := func() {
		if truncated {
			d.logger.Log(ctx, level, msg, "line", string(line), "truncated", true)
		} else {
			d.logger.Log(ctx, level, msg, "line", string(line))
		}
		line, truncated = line[:0], false
	}

	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if len(line) > 0 {
				emit()
			}
			if err != io.EOF {
				d.logger.WarnContext(ctx, "failed to read action response body", "error", err)
			}
			return
		}
		if room := maxLineSize - len(line); len(chunk) > room {
			chunk = chunk[:room]
			truncated = true
		}
		line = append(line, chunk...)
		if !isPrefix {
			emit()
		}
	}
}
