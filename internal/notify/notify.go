// Package notify carries user-facing notifications (toasts in the TUI,
// stderr lines in the CLI) from the grid and action layers.
package notify

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Messager is implemented by errors that carry a message meant for the user
// (e.g. the server's structured error message).
type Messager interface {
	UserMessage() string
}

// Message returns the user-facing message of err, or fallback.
func Message(err error, fallback string) string {
	var m Messager
	if errors.As(err, &m) {
		if msg := strings.TrimSpace(m.UserMessage()); msg != "" {
			return msg
		}
	}
	return fallback
}

type Note struct {
	Level Level
	Text  string
	At    time.Time
}

// Recorder keeps notifications until drained. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	notes []Note
}

func (r *Recorder) add(l Level, msg string) {
	r.mu.Lock()
	r.notes = append(r.notes, Note{Level: l, Text: msg, At: time.Now()})
	r.mu.Unlock()
}

func (r *Recorder) Info(msg string)  { r.add(LevelInfo, msg) }
func (r *Recorder) Warn(msg string)  { r.add(LevelWarn, msg) }
func (r *Recorder) Error(msg string) { r.add(LevelError, msg) }

// Notes returns a copy of the pending notifications.
func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Note(nil), r.notes...)
}

// Drain returns and forgets the pending notifications.
func (r *Recorder) Drain() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notes
	r.notes = nil
	return out
}

// Writer prints one line per notification, e.g. to stderr.
type Writer struct {
	mu sync.Mutex
	W  io.Writer
}

func (w *Writer) write(l Level, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintf(w.W, "%s: %s\n", l, msg)
}

func (w *Writer) Info(msg string)  { w.write(LevelInfo, msg) }
func (w *Writer) Warn(msg string)  { w.write(LevelWarn, msg) }
func (w *Writer) Error(msg string) { w.write(LevelError, msg) }

type Discard struct{}

func (Discard) Info(string)  {}
func (Discard) Warn(string)  {}
func (Discard) Error(string) {}
