// Package audit writes a JSON line per session transition so an operator
// can see who logged in, when, and why a session ended.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pilab-dev/shadow-admin/session"
	"github.com/rs/zerolog"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	User      string    `json:"user,omitempty"`    // User ID
	Target    string    `json:"target,omitempty"`  // Backend origin
	Details   string    `json:"details,omitempty"` // Transition reason
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Logger writes audit events.
type Logger struct {
	out     zerolog.Logger
	service string
	target  string
	now     func() time.Time
}

// New creates a Logger writing to w. target is recorded on every event.
func New(w io.Writer, service, target string) *Logger {
	return &Logger{
		out:     zerolog.New(w),
		service: service,
		target:  target,
		now:     time.Now,
	}
}

// Open appends to the file at path, creating it and its directory.
func Open(path, service, target string) (*Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return New(f, service, target), f, nil
}

// Log records an audit event. Timestamp, Service and Target are filled in
// when empty.
func (l *Logger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	if event.Service == "" {
		event.Service = l.service
	}
	if event.Target == "" {
		event.Target = l.target
	}

	entry, err := json.Marshal(event)
	if err != nil {
		l.out.Error().Err(err).Str("action", event.Action).Msg("Failed to marshal audit event to JSON")
		return
	}
	l.out.Log().RawJSON("audit_event", entry).Msg("")
}

// SessionObserver returns a session subscriber that audits every
// transition.
func (l *Logger) SessionObserver() func(session.Event) {
	return func(ev session.Event) {
		event := Event{
			Action:  "session." + ev.To.String(),
			User:    ev.UserID,
			Details: fmt.Sprintf("%s -> %s (%s)", ev.From, ev.To, ev.Reason),
			Success: ev.Err == nil,
		}
		if ev.Err != nil {
			event.Error = ev.Err.Error()
		}
		l.Log(event)
	}
}
