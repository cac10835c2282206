// SPDX-License-Identifier: MPL-2.0

// Package audit records security-relevant lifecycle events: every install,
// update and uninstall outcome, and every unsafe-mode override.
//
// Events are written as JSON lines through zerolog so that the log can be
// consumed by standard tooling. A sink that fails to record an event returns
// the error; callers treat that as fatal for the operation being audited.
package audit

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Recorded actions.
const (
	ActionInstall      Action = "install"
	ActionUpdate       Action = "update"
	ActionUninstall    Action = "uninstall"
	ActionUnsafeBypass Action = "unsafe_bypass"
	ActionVerify       Action = "verify"
)

// Recorded outcomes.
const (
	ResultSuccess        Result = "success"
	ResultFailure        Result = "failure"
	ResultBlocked        Result = "blocked"
	ResultBypassed       Result = "bypassed"
	ResultUpToDate       Result = "up_to_date"
	ResultRolledBack     Result = "rolled_back"
	ResultRollbackFailed Result = "rollback_failed"
)

type (
	// Action names the operation an event describes.
	Action string

	// Result is the outcome of the audited operation.
	Result string

	// Event is one audit record.
	Event struct {
		Time   time.Time
		Action Action
		Module string
		Source string
		Result Result
		Reason string
		// SignatureVerified is set when content arrived through a verified signed archive.
		SignatureVerified bool
		Critical          int
		Warning           int
	}

	// Sink receives audit events.
	Sink interface {
		Record(Event) error
	}

	// WriterSink writes JSON-line events to an io.Writer.
	WriterSink struct {
		mu  sync.Mutex
		out io.Writer
		now func() time.Time
	}

	// FileSink is a WriterSink backed by an append-only file.
	FileSink struct {
		*WriterSink
		f *os.File
	}

	// Recorder keeps events in memory.
	Recorder struct {
		mu     sync.Mutex
		events []Event
		// Fail, when set, is returned from Record instead of storing the event.
		Fail error
	}

	nopSink struct{}
)

// Nop is a sink that drops every event.
//
//nolint:gochecknoglobals // Stateless singleton.
var Nop Sink = nopSink{}

func (nopSink) Record(Event) error { return nil }

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{out: w, now: time.Now}
}

// Record encodes ev as one JSON line. A zero Time is stamped with the current time.
func (s *WriterSink) Record(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = s.now()
	}

	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	e := zl.Log().
		Time("time", ev.Time.UTC()).
		Str("action", string(ev.Action)).
		Str("module", ev.Module).
		Str("result", string(ev.Result))
	if ev.Source != "" {
		e = e.Str("source", ev.Source)
	}
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	e.Bool("signature_verified", ev.SignatureVerified).
		Int("critical", ev.Critical).
		Int("warning", ev.Warning).
		Send()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// OpenFile opens (creating if needed) the audit log at path for appending.
func OpenFile(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &FileSink{WriterSink: NewWriterSink(f), f: f}, nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.f.Close()
}

// Record stores ev, or returns r.Fail if set.
func (r *Recorder) Record(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Find returns the recorded events with the given action.
func (r *Recorder) Find(action Action) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}
