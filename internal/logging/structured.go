// Package logging provides structured JSON logging for chost components.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelOff   Level = "off"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelOff:   4,
}

// LevelFromString parses a level name, falling back to info.
func LevelFromString(s string) Level {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelRank[l]; ok {
		return l
	}
	return LevelInfo
}

// Event represents a structured log event
type Event struct {
	Timestamp string                 `json:"ts"`
	Level     Level                  `json:"level"`
	Component string                 `json:"component"`
	Event     string                 `json:"event"`
	RequestID string                 `json:"request_id,omitempty"`
	Duration  int64                  `json:"duration_ms,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Logger provides structured logging
type Logger struct {
	component string
	requestID string
	min       Level
	out       io.Writer
}

// New creates a new logger for a component, writing to stderr at info level.
func New(component string) *Logger {
	return &Logger{
		component: component,
		min:       LevelInfo,
		out:       os.Stderr,
	}
}

// Nop returns a logger that drops every event.
func Nop() *Logger {
	return &Logger{component: "nop", min: LevelOff, out: io.Discard}
}

func (l *Logger) clone() *Logger {
	c := *l
	return &c
}

// WithLevel sets the minimum level that is written
func (l *Logger) WithLevel(level Level) *Logger {
	c := l.clone()
	c.min = level
	return c
}

// WithWriter redirects output
func (l *Logger) WithWriter(w io.Writer) *Logger {
	c := l.clone()
	c.out = w
	return c
}

// WithComponent returns a logger for a sub-component
func (l *Logger) WithComponent(component string) *Logger {
	c := l.clone()
	c.component = component
	return c
}

// Ctx attaches the request ID carried by ctx, if any
func (l *Logger) Ctx(ctx context.Context) *Logger {
	id := GetRequestID(ctx)
	if id == "" || id == l.requestID {
		return l
	}
	c := l.clone()
	c.requestID = id
	return c
}

// Enabled reports whether events at level are written
func (l *Logger) Enabled(level Level) bool {
	if l == nil || l.out == nil {
		return false
	}
	return levelRank[level] >= levelRank[l.min] && l.min != LevelOff
}

func (l *Logger) emit(e Event) {
	if !l.Enabled(e.Level) {
		return
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	e.Component = l.component
	e.RequestID = l.requestID

	data, _ := json.Marshal(e)
	fmt.Fprintln(l.out, string(data))
}

// log emits a structured log event
func (l *Logger) log(level Level, event string, extra map[string]interface{}, err error) {
	e := Event{Level: level, Event: event, Extra: extra}
	if err != nil {
		e.Error = err.Error()
	}
	l.emit(e)
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]interface{}) {
	l.log(LevelDebug, event, extra, nil)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]interface{}) {
	l.log(LevelInfo, event, extra, nil)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]interface{}, err error) {
	l.log(LevelWarn, event, extra, err)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]interface{}, err error) {
	l.log(LevelError, event, extra, err)
}

// TimedEvent logs an event with its duration. A non-nil err raises it to error level.
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]interface{}, err error) {
	e := Event{
		Level:    LevelInfo,
		Event:    event,
		Duration: time.Since(start).Milliseconds(),
		Extra:    extra,
	}
	if err != nil {
		e.Level = LevelError
		e.Error = err.Error()
	}
	l.emit(e)
}
