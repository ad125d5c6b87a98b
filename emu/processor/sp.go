/*
 * S2200 - System processor
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

package processor

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rcornwell/S2200/emu/address"
	"github.com/rcornwell/S2200/emu/channel"
	"github.com/rcornwell/S2200/emu/console"
	"github.com/rcornwell/S2200/util/logger"
	"github.com/rcornwell/S2200/util/word36"
)

// How often new log entries are sent to the console.
const logPeriod = time.Second

// Number of jump keys.
const JumpKeyCount = 36

var ErrJumpKey = errors.New("invalid jump key")

// ConfigBuilder lays out the configuration data bank.
type ConfigBuilder interface {
	Build() ([]uint64, error)
}

// SystemProcessor connects the operator console to the system. It holds
// the jump keys and the dayclock, and builds the configuration data bank
// used at boot.
type SystemProcessor struct {
	Base
	stateMu        sync.Mutex
	console        console.Console
	appender       *logger.Appender
	lastLogID      uint64
	nextLogCheck   time.Time
	jumpKeys       uint64
	dayclockOffset int64 // Emulated time minus host time in micro seconds.
	comparator     int64
	cdb            address.AbsoluteAddress
	cdbBuilt       bool
	completions    atomic.Uint64
}

func NewSystemProcessor(name string, upi int, sys System) *SystemProcessor {
	return &SystemProcessor{
		Base: newBase(name, upi, SP, sys, spIdleWait),
	}
}

// Attach operator console.
func (sp *SystemProcessor) SetConsole(cons console.Console) {
	sp.stateMu.Lock()
	sp.console = cons
	sp.stateMu.Unlock()
}

// Attach log entries to forward to the console.
func (sp *SystemProcessor) SetAppender(appender *logger.Appender) {
	sp.stateMu.Lock()
	sp.appender = appender
	if appender != nil {
		sp.lastLogID = appender.MostRecentID()
	}
	sp.stateMu.Unlock()
}

func (sp *SystemProcessor) Initialize() {
	sp.stateMu.Lock()
	sp.nextLogCheck = time.Now().Add(logPeriod)
	sp.stateMu.Unlock()
	sp.start(sp.step)
}

func (sp *SystemProcessor) step() {
	sp.drain(func(int) {}, func(int) {
		sp.completions.Add(1)
	})
	sp.forwardLog(time.Now())
}

// Send any new log entries to the console once a period.
func (sp *SystemProcessor) forwardLog(now time.Time) {
	sp.stateMu.Lock()
	if now.Before(sp.nextLogCheck) || sp.appender == nil || sp.console == nil {
		sp.stateMu.Unlock()
		return
	}
	sp.nextLogCheck = now.Add(logPeriod)
	entries := []logger.Entry{}
	if sp.appender.MostRecentID() > sp.lastLogID {
		entries = sp.appender.RetrieveFrom(sp.lastLogID + 1)
		sp.lastLogID = sp.appender.MostRecentID()
	}
	cons := sp.console
	sp.stateMu.Unlock()

	if len(entries) != 0 {
		cons.PostSystemLogEntries(entries)
	}
}

// IO completion interrupts received.
func (sp *SystemProcessor) Completions() uint64 {
	return sp.completions.Load()
}

// Hand program to an IOP on behalf of this processor.
func (sp *SystemProcessor) StartIO(iopUPI int, program *channel.ChannelProgram) (bool, error) {
	return startIO(sp.sys, sp, iopUPI, program)
}

func (sp *SystemProcessor) getConsole() console.Console {
	sp.stateMu.Lock()
	defer sp.stateMu.Unlock()
	return sp.console
}

func (sp *SystemProcessor) ConsolePostReadOnly(text string, rightJustified, cached bool) {
	if cons := sp.getConsole(); cons != nil {
		cons.PostReadOnlyMessage(text, rightJustified, cached)
	}
}

func (sp *SystemProcessor) ConsolePostReadReply(id int, text string, maxReplyLength int) {
	if cons := sp.getConsole(); cons != nil {
		cons.PostReadReplyMessage(id, text, maxReplyLength)
	}
}

func (sp *SystemProcessor) ConsoleCancelReadReply(id int, replacement string) {
	if cons := sp.getConsole(); cons != nil {
		cons.CancelReadReplyMessage(id, replacement)
	}
}

func (sp *SystemProcessor) ConsolePostStatus(lines []string) {
	if cons := sp.getConsole(); cons != nil {
		cons.PostStatusMessages(lines)
	}
}

// Wait up to timeout for operator input.
func (sp *SystemProcessor) ConsolePollInput(timeout time.Duration) (console.InputMessage, bool) {
	if cons := sp.getConsole(); cons != nil {
		return cons.PollInputMessage(timeout)
	}
	return console.InputMessage{}, false
}

func (sp *SystemProcessor) ConsoleReset() {
	if cons := sp.getConsole(); cons != nil {
		cons.Reset()
	}
}

// Key 1 is the most significant bit of the word.
func jumpKeyBit(id int) (uint64, error) {
	if id < 1 || id > JumpKeyCount {
		return 0, errors.Wrapf(ErrJumpKey, "key %d", id)
	}
	return uint64(1) << (JumpKeyCount - id), nil
}

func (sp *SystemProcessor) JumpKey(id int) (bool, error) {
	bit, err := jumpKeyBit(id)
	if err != nil {
		return false, err
	}
	sp.stateMu.Lock()
	defer sp.stateMu.Unlock()
	return (sp.jumpKeys & bit) != 0, nil
}

func (sp *SystemProcessor) SetJumpKey(id int, state bool) error {
	bit, err := jumpKeyBit(id)
	if err != nil {
		return err
	}
	sp.stateMu.Lock()
	if state {
		sp.jumpKeys |= bit
	} else {
		sp.jumpKeys &^= bit
	}
	sp.stateMu.Unlock()
	return nil
}

func (sp *SystemProcessor) JumpKeys() uint64 {
	sp.stateMu.Lock()
	defer sp.stateMu.Unlock()
	return sp.jumpKeys
}

func (sp *SystemProcessor) SetJumpKeys(word uint64) {
	sp.stateMu.Lock()
	sp.jumpKeys = word & ((uint64(1) << JumpKeyCount) - 1)
	sp.stateMu.Unlock()
}

// Emulated time in micro seconds since the epoch.
func (sp *SystemProcessor) DayclockMicros() int64 {
	sp.stateMu.Lock()
	defer sp.stateMu.Unlock()
	return time.Now().UnixMicro() + sp.dayclockOffset
}

func (sp *SystemProcessor) SetDayclockMicros(value int64) {
	sp.stateMu.Lock()
	sp.dayclockOffset = value - time.Now().UnixMicro()
	sp.stateMu.Unlock()
}

func (sp *SystemProcessor) SetDayclockComparator(value int64) {
	sp.stateMu.Lock()
	sp.comparator = value
	sp.stateMu.Unlock()
}

func (sp *SystemProcessor) DayclockComparator() int64 {
	sp.stateMu.Lock()
	defer sp.stateMu.Unlock()
	return sp.comparator
}

// Build the configuration data bank into a new segment of storage.
func (sp *SystemProcessor) BuildConfigDataBank(builder ConfigBuilder, mspUPI int) (address.AbsoluteAddress, error) {
	words, err := builder.Build()
	if err != nil {
		return address.AbsoluteAddress{}, err
	}
	msp, err := sp.sys.MainStorageProcessor(mspUPI)
	if err != nil {
		return address.AbsoluteAddress{}, err
	}

	sp.stateMu.Lock()
	old, built := sp.cdb, sp.cdbBuilt
	sp.stateMu.Unlock()
	if built && old.UPI == mspUPI {
		if err := msp.DeleteSegment(old.Segment); err != nil {
			slog.Warn(sp.Name() + " " + err.Error())
		}
	}

	segment, err := msp.CreateSegment(len(words))
	if err != nil {
		return address.AbsoluteAddress{}, err
	}
	storage, err := msp.GetStorage(segment)
	if err != nil {
		return address.AbsoluteAddress{}, err
	}
	copy(storage, words)
	addr, err := address.NewAbsoluteAddress(mspUPI, segment, 0)
	if err != nil {
		return address.AbsoluteAddress{}, err
	}

	sp.stateMu.Lock()
	sp.cdb = addr
	sp.cdbBuilt = true
	sp.stateMu.Unlock()
	slog.Info(fmt.Sprintf("%s configuration data bank at %s, %d words", sp.Name(), addr, len(words)))
	return addr, nil
}

// Location of configuration data bank.
func (sp *SystemProcessor) ConfigDataBank() (address.AbsoluteAddress, bool) {
	sp.stateMu.Lock()
	defer sp.stateMu.Unlock()
	return sp.cdb, sp.cdbBuilt
}

func (sp *SystemProcessor) Dump(out io.Writer) {
	sp.dumpBase(out)
	sp.stateMu.Lock()
	defer sp.stateMu.Unlock()
	fmt.Fprintf(out, "  JumpKeys:%s Completions:%d\n", word36.FormatOctal(sp.jumpKeys), sp.completions.Load())
	if sp.cdbBuilt {
		fmt.Fprintf(out, "  ConfigDataBank:%s\n", sp.cdb)
	}
}
