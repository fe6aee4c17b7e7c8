// Package audit records security-relevant dispatch events as structured
// JSONL and, optionally, in a SQLite store with retention pruning.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"
)

// EventType categorizes audit events.
type EventType string

// Audit event types covering the dispatch pipeline.
const (
	EventDispatch  EventType = "dispatch"
	EventDenied    EventType = "denied"
	EventResult    EventType = "result"
	EventRateLimit EventType = "rate_limit"
)

// Event is a single audit log entry.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	RequestID string            `json:"request_id,omitempty"`
	AgentID   string            `json:"agent_id,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// LoggerConfig configures the audit logger.
type LoggerConfig struct {
	// Writer is the destination for JSONL output. Nil disables the
	// text log (events still go to Store and OnEvent).
	Writer io.Writer

	// Store, if non-nil, persists every event.
	Store *Store

	// OnEvent, if non-nil, is called for every event (used in tests).
	OnEvent func(Event)

	// Logger receives write failures. Defaults to slog.Default.
	Logger *slog.Logger

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Logger writes structured audit events. Safe for concurrent use.
type Logger struct {
	writer  io.Writer
	store   *Store
	onEvent func(Event)
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// NewLogger creates an audit logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		writer:  cfg.Writer,
		store:   cfg.Store,
		onEvent: cfg.OnEvent,
		logger:  logger,
		now:     now,
	}
}

// Log records an audit event. The timestamp is set automatically and
// the detail truncated to keep large tool payloads from bloating the
// log. Failures to persist are logged but never fail the dispatch.
func (l *Logger) Log(event Event) {
	event.Timestamp = l.now().UTC()
	event.Detail = truncateDetail(event.Detail)

	if l.writer != nil {
		line, err := json.Marshal(event)
		if err == nil {
			l.mu.Lock()
			_, err = l.writer.Write(append(line, '\n'))
			l.mu.Unlock()
		}
		if err != nil {
			l.logger.Warn("audit write failed", "error", err)
		}
	}

	if l.store != nil {
		if err := l.store.Insert(context.Background(), event); err != nil {
			l.logger.Warn("audit store insert failed", "error", err)
		}
	}

	if l.onEvent != nil {
		l.onEvent(event)
	}
}

// maxDetailLen bounds audit detail strings.
const maxDetailLen = 4096

// truncateDetail shortens s to maxDetailLen, walking back to a UTF-8
// rune boundary so multi-byte characters are never split.
func truncateDetail(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	i := maxDetailLen
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "...(truncated)"
}
