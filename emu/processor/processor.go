/*
 * S2200 - Processor base and UPI protocol
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

// Package processor holds the processors of the system and the UPI
// interrupt protocol they use to talk to each other.
//
// Each processor has a unique processor index (UPI). A processor sends an
// interrupt or an acknowledge to another by UPI. At most one interrupt and
// one acknowledge from each source may be pending at a destination; a
// second send returns AlreadyPending and the sender must try again later.
package processor

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rcornwell/S2200/emu/node"
	"github.com/rcornwell/S2200/emu/worker"
	"github.com/rcornwell/S2200/util/debug"
)

type Type int

// Processor types.
const (
	SP  Type = 0 // System processor.
	IP  Type = 1 // Instruction processor.
	IOP Type = 2 // Input output processor.
	MSP Type = 3 // Main storage processor.
)

func (t Type) String() string {
	switch t {
	case SP:
		return "SystemProcessor"
	case IP:
		return "InstructionProcessor"
	case IOP:
		return "InputOutputProcessor"
	case MSP:
		return "MainStorageProcessor"
	}
	return "None"
}

// Result of a UPI send.
type Result int

const (
	Accepted       Result = iota // Posted to destination.
	AlreadyPending               // Destination holds one from this source.
)

func (r Result) String() string {
	if r == Accepted {
		return "Accepted"
	}
	return "AlreadyPending"
}

var (
	ErrUPINotAssigned         = errors.New("UPI not assigned")
	ErrUPIProcessorType       = errors.New("UPI assigned to wrong processor type")
	ErrNoInstructionProcessor = errors.New("no instruction processor configured")
)

// Worker intervals.
const (
	idleWait   = 100 * time.Millisecond
	spIdleWait = 25 * time.Millisecond
)

// System resolves UPI numbers to processors.
type System interface {
	Processor(upi int) (Processor, error)
	BroadcastTarget() (Processor, error)
	MainStorageProcessor(upi int) (*MainStorageProcessor, error)
}

// Processor is implemented by every processor type.
type Processor interface {
	node.Node
	UPI() int
	ProcessorType() Type
	PostAcknowledge(source int) Result
	PostInterrupt(source int) Result
	Debug(opt string) error
}

// Base holds what all processors share.
type Base struct {
	node.Base
	upi        int
	pType      Type
	sys        System
	mu         sync.Mutex
	acks       []int // Sources with pending acknowledge.
	interrupts []int // Sources with pending interrupt.
	worker     *worker.Worker
	interval   time.Duration
	debugMsk   int
}

func newBase(name string, upi int, pType Type, sys System, interval time.Duration) Base {
	return Base{
		Base:     node.NewBase(name, node.Processor),
		upi:      upi,
		pType:    pType,
		sys:      sys,
		worker:   worker.New(name),
		interval: interval,
	}
}

func (b *Base) UPI() int {
	return b.upi
}

func (b *Base) ProcessorType() Type {
	return b.pType
}

// Processors are the roots of the graph.
func (b *Base) CanConnect(_ node.Node) bool {
	return false
}

// Drop anything pending.
func (b *Base) Clear() {
	b.mu.Lock()
	b.acks = nil
	b.interrupts = nil
	b.mu.Unlock()
}

func (b *Base) Terminate() {
	b.worker.Stop()
}

// Enable debug option.
func (b *Base) Debug(opt string) error {
	bit, err := debug.Option(opt)
	if err != nil {
		return err
	}
	b.debugMsk |= bit
	return nil
}

// Post acknowledge from source. Wakes the worker.
func (b *Base) PostAcknowledge(source int) Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slices.Contains(b.acks, source) {
		return AlreadyPending
	}
	b.acks = append(b.acks, source)
	b.worker.Wake()
	return Accepted
}

// Post interrupt from source. Wakes the worker.
func (b *Base) PostInterrupt(source int) Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slices.Contains(b.interrupts, source) {
		return AlreadyPending
	}
	b.interrupts = append(b.interrupts, source)
	b.worker.Wake()
	return Accepted
}

// Send acknowledge to destination.
func (b *Base) UPIAcknowledge(dest int) (Result, error) {
	p, err := b.sys.Processor(dest)
	if err != nil {
		return AlreadyPending, err
	}
	debug.Debugf(b.Name(), b.debugMsk, debug.UPI, "ack to %s", p.Name())
	return p.PostAcknowledge(b.upi), nil
}

// Send interrupt to destination.
func (b *Base) UPISendDirected(dest int) (Result, error) {
	p, err := b.sys.Processor(dest)
	if err != nil {
		return AlreadyPending, err
	}
	debug.Debugf(b.Name(), b.debugMsk, debug.UPI, "send to %s", p.Name())
	return p.PostInterrupt(b.upi), nil
}

// Send interrupt to the broadcast instruction processor.
func (b *Base) UPISendBroadcast() (Result, error) {
	p, err := b.sys.BroadcastTarget()
	if err != nil {
		return AlreadyPending, err
	}
	debug.Debugf(b.Name(), b.debugMsk, debug.UPI, "broadcast to %s", p.Name())
	return p.PostInterrupt(b.upi), nil
}

// Number of pending acknowledges and interrupts.
func (b *Base) Pending() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.acks), len(b.interrupts)
}

// Take everything pending, acknowledges first.
func (b *Base) drain(onAck func(source int), onInterrupt func(source int)) {
	b.mu.Lock()
	acks := b.acks
	interrupts := b.interrupts
	b.acks = nil
	b.interrupts = nil
	b.mu.Unlock()

	for _, source := range acks {
		debug.Debugf(b.Name(), b.debugMsk, debug.UPI, "ack from %d", source)
		onAck(source)
	}
	for _, source := range interrupts {
		debug.Debugf(b.Name(), b.debugMsk, debug.UPI, "interrupt from %d", source)
		onInterrupt(source)
	}
}

// Start worker running step.
func (b *Base) start(step func()) {
	b.worker.Start(b.interval, step)
}

// Ignore UPI traffic the processor has no use for.
func (b *Base) discard(kind string) func(int) {
	return func(source int) {
		slog.Error(fmt.Sprintf("%s received a UPI %s from %d", b.Name(), kind, source))
	}
}

func (b *Base) dumpBase(out io.Writer) {
	b.DumpBase(out)
	acks, interrupts := b.Pending()
	fmt.Fprintf(out, "  Type:%s UPI:%d Running:%v Acks:%d Interrupts:%d\n",
		b.pType, b.upi, b.worker.Running(), acks, interrupts)
}

// AddressingError reports a reference outside of main storage.
type AddressingError struct {
	UPI     int
	Segment int
	Offset  int
	Reason  string
}

func (e *AddressingError) Error() string {
	return fmt.Sprintf("addressing error %s upi:%d segment:%d offset:%d", e.Reason, e.UPI, e.Segment, e.Offset)
}
