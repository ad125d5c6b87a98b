/*
 * S2200 - Instruction processor
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

	"github.com/rcornwell/S2200/emu/channel"
)

// InstructionProcessor takes part in the UPI protocol. Instruction
// execution is not emulated; interrupts are counted and acknowledged.
type InstructionProcessor struct {
	Base
	stateMu        sync.Mutex
	broadcast      bool // Eligible to take broadcast interrupts.
	stopped        bool
	interruptCount map[int]uint64   // Interrupts received by source.
	ackCount       map[int]uint64   // Acknowledges received by source.
	ackRetries     map[int]struct{} // Acknowledges refused by destination.
}

func NewInstructionProcessor(name string, upi int, sys System) *InstructionProcessor {
	return &InstructionProcessor{
		Base:           newBase(name, upi, IP, sys, idleWait),
		interruptCount: map[int]uint64{},
		ackCount:       map[int]uint64{},
		ackRetries:     map[int]struct{}{},
	}
}

func (ip *InstructionProcessor) Initialize() {
	ip.start(func() {
		ip.drain(ip.handleAck, ip.handleInterrupt)
		ip.retryAcks()
	})
}

func (ip *InstructionProcessor) Clear() {
	ip.Base.Clear()
	ip.stateMu.Lock()
	ip.interruptCount = map[int]uint64{}
	ip.ackCount = map[int]uint64{}
	ip.ackRetries = map[int]struct{}{}
	ip.stateMu.Unlock()
}

func (ip *InstructionProcessor) handleAck(source int) {
	ip.stateMu.Lock()
	ip.ackCount[source]++
	ip.stateMu.Unlock()
}

// Count interrupt and tell source it was taken.
func (ip *InstructionProcessor) handleInterrupt(source int) {
	ip.stateMu.Lock()
	ip.interruptCount[source]++
	ip.stateMu.Unlock()
	if !ip.acknowledge(source) {
		ip.stateMu.Lock()
		ip.ackRetries[source] = struct{}{}
		ip.stateMu.Unlock()
	}
}

// Send acknowledge. Returns false if it must be tried again, a send that
// fails outright is only logged.
func (ip *InstructionProcessor) acknowledge(source int) bool {
	result, err := ip.UPIAcknowledge(source)
	if err != nil {
		slog.Error(ip.Name() + " acknowledge failed: " + err.Error())
		return true
	}
	return result == Accepted
}

// Resend acknowledges refused earlier.
func (ip *InstructionProcessor) retryAcks() {
	ip.stateMu.Lock()
	sources := make([]int, 0, len(ip.ackRetries))
	for source := range ip.ackRetries {
		sources = append(sources, source)
	}
	ip.stateMu.Unlock()

	for _, source := range sources {
		if ip.acknowledge(source) {
			ip.stateMu.Lock()
			delete(ip.ackRetries, source)
			ip.stateMu.Unlock()
		}
	}
}

// Acknowledges still waiting to be delivered.
func (ip *InstructionProcessor) PendingAcknowledges() int {
	ip.stateMu.Lock()
	defer ip.stateMu.Unlock()
	return len(ip.ackRetries)
}

func (ip *InstructionProcessor) SetBroadcastEligible(state bool) {
	ip.stateMu.Lock()
	ip.broadcast = state
	ip.stateMu.Unlock()
}

func (ip *InstructionProcessor) BroadcastEligible() bool {
	ip.stateMu.Lock()
	defer ip.stateMu.Unlock()
	return ip.broadcast
}

func (ip *InstructionProcessor) SetStopped(state bool) {
	ip.stateMu.Lock()
	ip.stopped = state
	ip.stateMu.Unlock()
}

func (ip *InstructionProcessor) Stopped() bool {
	ip.stateMu.Lock()
	defer ip.stateMu.Unlock()
	return ip.stopped
}

// Interrupts received from source.
func (ip *InstructionProcessor) InterruptsFrom(source int) uint64 {
	ip.stateMu.Lock()
	defer ip.stateMu.Unlock()
	return ip.interruptCount[source]
}

// Acknowledges received from source.
func (ip *InstructionProcessor) AcknowledgesFrom(source int) uint64 {
	ip.stateMu.Lock()
	defer ip.stateMu.Unlock()
	return ip.ackCount[source]
}

// Hand program to an IOP on behalf of this processor.
func (ip *InstructionProcessor) StartIO(iopUPI int, program *channel.ChannelProgram) (bool, error) {
	return startIO(ip.sys, ip, iopUPI, program)
}

func (ip *InstructionProcessor) Dump(out io.Writer) {
	ip.dumpBase(out)
	ip.stateMu.Lock()
	defer ip.stateMu.Unlock()
	fmt.Fprintf(out, "  Broadcast:%v Stopped:%v AckRetries:%d\n", ip.broadcast, ip.stopped, len(ip.ackRetries))
	for source, count := range ip.interruptCount {
		fmt.Fprintf(out, "    Interrupts from %d: %d\n", source, count)
	}
}
