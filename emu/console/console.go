/*
 * S2200 - System console interface
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

// Package console defines what the system processor needs of an operator
// console, and a buffered console used by the command line front end.
package console

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rcornwell/S2200/util/logger"
)

// Input from the operator. ID is zero for unsolicited input, otherwise the
// id of the read reply message being answered.
type InputMessage struct {
	ID   int
	Text string
}

// Console is implemented by each operator front end.
type Console interface {
	PostReadOnlyMessage(text string, rightJustified, cached bool)
	PostReadReplyMessage(id int, text string, maxReplyLength int)
	CancelReadReplyMessage(id int, replacement string)
	PostStatusMessages(lines []string)
	PostSystemLogEntries(entries []logger.Entry)
	PollInputMessage(timeout time.Duration) (InputMessage, bool)
	Reset()
}

const (
	maxLines     = 1000 // Lines kept for display.
	maxInput     = 64   // Input messages waiting for poll.
	consoleWidth = 80
)

var (
	ErrNoReadReply  = errors.New("no read reply message outstanding")
	ErrReplyTooLong = errors.New("reply too long")
	ErrInputFull    = errors.New("console input queue full")
)

type readReply struct {
	text   string
	maxLen int
}

// Buffered keeps console output in memory for a front end to show.
type Buffered struct {
	mu       sync.Mutex
	lines    []string
	first    int // Sequence number of lines[0].
	status   []string
	pending  map[int]readReply
	input    chan InputMessage
	notify   func()
	cached   []string
}

func NewBuffered() *Buffered {
	return &Buffered{
		pending: map[int]readReply{},
		input:   make(chan InputMessage, maxInput),
	}
}

// Register function called whenever new output is available.
func (c *Buffered) SetNotify(notify func()) {
	c.mu.Lock()
	c.notify = notify
	c.mu.Unlock()
}

// Add a line of output. Caller holds mutex.
func (c *Buffered) addLine(line string) {
	if len(c.lines) == maxLines {
		c.lines = c.lines[1:]
		c.first++
	}
	c.lines = append(c.lines, line)
}

func (c *Buffered) post(add func()) {
	c.mu.Lock()
	add()
	notify := c.notify
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
}

func (c *Buffered) PostReadOnlyMessage(text string, rightJustified, cached bool) {
	c.post(func() {
		if rightJustified && len(text) < consoleWidth {
			text = strings.Repeat(" ", consoleWidth-len(text)) + text
		}
		if cached {
			c.cached = append(c.cached, text)
		}
		c.addLine(text)
	})
}

func (c *Buffered) PostReadReplyMessage(id int, text string, maxReplyLength int) {
	c.post(func() {
		c.pending[id] = readReply{text: text, maxLen: maxReplyLength}
		c.addLine(fmt.Sprintf("%d-%s", id, text))
	})
}

func (c *Buffered) CancelReadReplyMessage(id int, replacement string) {
	c.post(func() {
		delete(c.pending, id)
		if replacement != "" {
			c.addLine(replacement)
		}
	})
}

func (c *Buffered) PostStatusMessages(lines []string) {
	c.post(func() {
		c.status = append([]string{}, lines...)
	})
}

func (c *Buffered) PostSystemLogEntries(entries []logger.Entry) {
	c.post(func() {
		for _, e := range entries {
			c.addLine(fmt.Sprintf("%s %s: %s", e.Time.Format("15:04:05"), e.Level, e.Message))
		}
	})
}

// Wait up to timeout for operator input.
func (c *Buffered) PollInputMessage(timeout time.Duration) (InputMessage, bool) {
	select {
	case msg := <-c.input:
		return msg, true
	case <-time.After(timeout):
		return InputMessage{}, false
	}
}

// Drop outstanding replies, status and queued input. Cached messages are
// shown again.
func (c *Buffered) Reset() {
	c.post(func() {
		c.pending = map[int]readReply{}
		c.status = nil
	drain:
		for {
			select {
			case <-c.input:
			default:
				break drain
			}
		}
		for _, line := range c.cached {
			c.addLine(line)
		}
	})
}

// Queue unsolicited input.
func (c *Buffered) SubmitInput(text string) error {
	return c.queue(InputMessage{Text: text})
}

// Answer a read reply message.
func (c *Buffered) Reply(id int, text string) error {
	c.mu.Lock()
	rr, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return errors.Wrapf(ErrNoReadReply, "id %d", id)
	}
	if len(text) > rr.maxLen {
		c.mu.Unlock()
		return errors.Wrapf(ErrReplyTooLong, "id %d max %d", id, rr.maxLen)
	}
	delete(c.pending, id)
	c.mu.Unlock()
	return c.queue(InputMessage{ID: id, Text: text})
}

func (c *Buffered) queue(msg InputMessage) error {
	select {
	case c.input <- msg:
		return nil
	default:
		return ErrInputFull
	}
}

// Lines from sequence number from onward, and the next sequence number.
func (c *Buffered) Lines(from int) ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := max(from-c.first, 0)
	if start > len(c.lines) {
		start = len(c.lines)
	}
	return append([]string{}, c.lines[start:]...), c.first + len(c.lines)
}

func (c *Buffered) Status() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.status...)
}

// Outstanding read reply messages by id.
func (c *Buffered) Pending() map[int]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := map[int]string{}
	for id, rr := range c.pending {
		result[id] = rr.text
	}
	return result
}
