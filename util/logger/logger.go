/*
 * S2200 - Log handler and log entry ring
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

type LogHandler struct {
	out      io.Writer
	h        slog.Handler
	mu       *sync.Mutex
	debug    bool
	appender *Appender
	stderr   io.Writer
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, debug: h.debug, appender: h.appender, stderr: h.stderr}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, debug: h.debug, appender: h.appender, stderr: h.stderr}
}

func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	formattedTime := r.Time.Format("2006/01/02 15:04:05")

	strs := []string{r.Message}

	if r.NumAttrs() != 0 {
		r.Attrs(func(a slog.Attr) bool {
			strs = append(strs, a.Value.String())
			return true
		})
	}
	message := strings.Join(strs, " ")
	b := []byte(formattedTime + " " + level + " " + message + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.appender != nil {
		h.appender.Append(r.Time, r.Level, message)
	}

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}

	if h.stderr != nil && (h.debug || r.Level > slog.LevelDebug) {
		_, err = h.stderr.Write(b)
	}
	return err
}

func (h *LogHandler) SetDebug(debug *bool) {
	h.debug = *debug
}

// Change where messages are echoed, nil to stop echo while the screen
// is in use.
func (h *LogHandler) SetStderr(out io.Writer) {
	h.mu.Lock()
	h.stderr = out
	h.mu.Unlock()
}

// Record entries into appender as well as output.
func (h *LogHandler) SetAppender(appender *Appender) {
	h.mu.Lock()
	h.appender = appender
	h.mu.Unlock()
}

func NewHandler(file io.Writer, opts *slog.HandlerOptions, debug *bool) *LogHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	out := file
	if out == nil {
		out = io.Discard
	}
	return &LogHandler{
		out: file,
		h: slog.NewTextHandler(out, &slog.HandlerOptions{
			Level:       opts.Level,
			AddSource:   opts.AddSource,
			ReplaceAttr: nil,
		}),
		mu:     &sync.Mutex{},
		debug:  *debug,
		stderr: os.Stderr,
	}
}

// One captured log entry.
type Entry struct {
	ID      uint64     // Increasing identifier.
	Time    time.Time  // When logged.
	Level   slog.Level // Level of message.
	Message string     // Formatted message text.
}

// Appender holds the most recent log entries for the system console.
type Appender struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	lastID  uint64
}

// Create appender holding size entries.
func NewAppender(size int) *Appender {
	if size <= 0 {
		size = 1
	}
	return &Appender{size: size}
}

// Add an entry, dropping the oldest when full.
func (a *Appender) Append(when time.Time, level slog.Level, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastID++
	if len(a.entries) == a.size {
		copy(a.entries, a.entries[1:])
		a.entries = a.entries[:a.size-1]
	}
	a.entries = append(a.entries, Entry{ID: a.lastID, Time: when, Level: level, Message: message})
}

// Identifier of most recent entry, 0 if none.
func (a *Appender) MostRecentID() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastID
}

// Return entries with identifier at or after first.
func (a *Appender) RetrieveFrom(first uint64) []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := []Entry{}
	for _, e := range a.entries {
		if e.ID >= first {
			result = append(result, e)
		}
	}
	return result
}
