/*
 * S2200 - Channel module
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

package channel

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/emu/node"
	"github.com/rcornwell/S2200/emu/worker"
	"github.com/rcornwell/S2200/util/debug"
	"github.com/rcornwell/S2200/util/word36"
)

type Type int

// Channel module types.
const (
	Byte Type = 1
	Word Type = 2
)

func (t Type) String() string {
	switch t {
	case Byte:
		return "Byte"
	case Word:
		return "Word"
	}
	return "None"
}

// Idle wait between worker passes.
const idleWait = 100 * time.Millisecond

// Source is the processor which asked for an IO.
type Source interface {
	Name() string
	UPI() int
}

// Originator is the IO processor which scheduled the program, told when
// the program reaches a final status.
type Originator interface {
	node.Node
	FinalizeIO(program *ChannelProgram, source Source)
}

// Tracker follows one channel program through the module.
type Tracker struct {
	Source    Source
	IOP       Originator
	Program   *ChannelProgram
	Buffer    []uint64
	info      *device.IOInfo // Worker only.
	started   bool           // Guarded by module lock.
	completed bool           // Worker only.
}

type ChannelModule struct {
	node.Base
	chType   Type
	mu       sync.Mutex
	trackers []*Tracker
	worker   *worker.Worker
	debugMsk int
}

func NewChannelModule(name string, chType Type) *ChannelModule {
	return &ChannelModule{
		Base:   node.NewBase(name, node.ChannelModule),
		chType: chType,
		worker: worker.New(name),
	}
}

func (m *ChannelModule) ChannelType() Type {
	return m.chType
}

// Devices check this to match interfaces.
func (m *ChannelModule) ByteInterface() bool {
	return m.chType == Byte
}

// Only IO processors may own a channel module.
func (m *ChannelModule) CanConnect(ancestor node.Node) bool {
	if ancestor.Category() != node.Processor {
		return false
	}
	_, ok := ancestor.(Originator)
	return ok
}

// Cancel programs not yet started. A started program is left for the
// worker to finish.
func (m *ChannelModule) Clear() {
	m.mu.Lock()
	pending := []*Tracker{}
	kept := []*Tracker{}
	for _, tracker := range m.trackers {
		if tracker.started {
			kept = append(kept, tracker)
		} else {
			pending = append(pending, tracker)
		}
	}
	m.trackers = kept
	m.mu.Unlock()

	for _, tracker := range pending {
		tracker.Program.SetChannelStatus(Cancelled)
		tracker.IOP.FinalizeIO(tracker.Program, tracker.Source)
	}
}

func (m *ChannelModule) Initialize() {
	m.worker.Start(idleWait, m.service)
}

func (m *ChannelModule) Terminate() {
	m.worker.Stop()
}

// Enable debug option.
func (m *ChannelModule) Debug(opt string) error {
	bit, err := debug.Option(opt)
	if err != nil {
		return err
	}
	m.debugMsk |= bit
	return nil
}

// Device has finished, wake the worker.
func (m *ChannelModule) Signal() {
	m.worker.Wake()
}

// Queue a channel program for the addressed device. Returns false if the
// device is not configured.
func (m *ChannelModule) ScheduleChannelProgram(source Source, iop Originator, program *ChannelProgram, buffer []uint64) bool {
	dev, ok := m.Links().Descendant(program.DeviceAddress()).(device.Device)
	if !ok {
		debug.Debugf(m.Name(), m.debugMsk, debug.Cmd, "unconfigured device %d", program.DeviceAddress())
		program.SetChannelStatus(UnconfiguredDevice)
		return false
	}

	debug.Debugf(m.Name(), m.debugMsk, debug.Cmd, "schedule %s for %s", program, dev.Name())
	program.SetChannelStatus(InProgress)
	tracker := &Tracker{
		Source:  source,
		IOP:     iop,
		Program: program,
		Buffer:  buffer,
	}
	m.mu.Lock()
	m.trackers = append(m.trackers, tracker)
	m.worker.Wake()
	m.mu.Unlock()
	return true
}

// Number of programs waiting or running.
func (m *ChannelModule) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trackers)
}

// Service trackers in order they were scheduled.
func (m *ChannelModule) service() {
	for {
		m.mu.Lock()
		if len(m.trackers) == 0 {
			m.mu.Unlock()
			return
		}
		tracker := m.trackers[0]
		start := !tracker.started
		tracker.started = true
		m.mu.Unlock()

		if start {
			m.startIO(tracker)
		}
		if !tracker.completed && tracker.info.Status != device.InProgress {
			m.mu.Lock()
			m.complete(tracker)
			m.mu.Unlock()
		}
		if !tracker.completed {
			// Device still busy, wait for signal.
			return
		}

		// Clear leaves started trackers queued, so only the owner of the
		// head entry finalizes it.
		m.mu.Lock()
		owned := len(m.trackers) > 0 && m.trackers[0] == tracker
		if owned {
			m.trackers = m.trackers[1:]
		}
		m.mu.Unlock()
		if owned {
			tracker.IOP.FinalizeIO(tracker.Program, tracker.Source)
		}
	}
}

// Hand the program to the device.
func (m *ChannelModule) startIO(tracker *Tracker) {
	cp := tracker.Program
	fn := cp.Function()
	info := &device.IOInfo{
		Source:   m,
		Function: fn,
		BlockID:  cp.BlockID(),
		Status:   device.InProgress,
	}

	if m.chType == Byte {
		switch {
		case fn.IsWrite() && fn.RequiresBuffer():
			info.ByteBuffer = packBytes(tracker.Buffer, cp.Format())
			info.TransferCount = len(info.ByteBuffer)
		case fn.IsRead() || fn == device.GetInfo:
			info.ByteBuffer = make([]byte, cp.Format().BytesFor(len(tracker.Buffer)))
			info.TransferCount = len(info.ByteBuffer)
		}
	} else if fn.RequiresBuffer() {
		info.WordBuffer = tracker.Buffer
		info.TransferCount = len(tracker.Buffer)
	}

	tracker.info = info
	dev, ok := m.Links().Descendant(cp.DeviceAddress()).(device.Device)
	if !ok {
		// Removed since scheduled.
		info.Status = device.InvalidStatus
		m.mu.Lock()
		cp.SetChannelStatus(UnconfiguredDevice)
		m.mu.Unlock()
		tracker.completed = true
		return
	}
	dev.HandleIO(info)
}

// Copy device results into the program. Called with module lock held.
func (m *ChannelModule) complete(tracker *Tracker) {
	cp := tracker.Program
	info := tracker.info
	tracker.completed = true
	if info.Status != device.Successful {
		cp.SetDeviceStatus(info.Status)
		cp.SetChannelStatus(DeviceError)
		debug.Debugf(m.Name(), m.debugMsk, debug.Cmd, "device error %s", info.Status)
		return
	}

	fn := cp.Function()
	if m.chType == Byte {
		if fn.IsRead() || fn == device.GetInfo {
			count := min(info.TransferredCount, len(info.ByteBuffer))
			words, residual := unpackBytes(info.ByteBuffer[:count], tracker.Buffer, cp.Format())
			cp.SetWordsTransferred(words)
			cp.SetResidualBytes(residual)
		} else if fn.IsWrite() {
			words, residual := frameCount(info.TransferredCount, len(tracker.Buffer), cp.Format())
			cp.SetWordsTransferred(words)
			cp.SetResidualBytes(residual)
		}
	} else {
		cp.SetWordsTransferred(info.TransferredCount)
		cp.SetResidualBytes(0)
	}
	cp.SetDeviceStatus(device.Successful)
	cp.SetChannelStatus(Successful)
	debug.Debugf(m.Name(), m.debugMsk, debug.Cmd, "complete %s", cp)
}

// Convert words to bytes by format.
func packBytes(words []uint64, format Format) []byte {
	switch format {
	case FormatA:
		return word36.PackQuarters(words, true)
	case FormatB:
		return word36.PackSixths(words)
	case FormatC:
		return word36.Pack(words)
	}
	return word36.PackQuarters(words, false)
}

// Convert bytes to words by format. Returns words transferred and residual.
func unpackBytes(data []byte, words []uint64, format Format) (int, int) {
	switch format {
	case FormatB:
		frames := word36.UnpackSixths(data, words)
		return frameCount(frames, len(words), format)
	case FormatC:
		count := word36.Unpack(data, words)
		residual := 0
		if (count&1) != 0 && len(words) > count {
			residual = 5
		}
		return count, residual
	}
	frames := word36.UnpackQuarters(data, words)
	return frameCount(frames, len(words), format)
}

// Words touched and bytes beyond a full word.
func frameCount(frames int, bufferWords int, format Format) (int, int) {
	switch format {
	case FormatB:
		return (frames + 5) / 6, frames % 6
	case FormatC:
		count := min((frames*8+35)/36, bufferWords)
		residual := 0
		if (count&1) != 0 && bufferWords > count {
			residual = 5
		}
		return count, residual
	}
	return (frames + 3) / 4, frames % 4
}

func (m *ChannelModule) Dump(out io.Writer) {
	m.DumpBase(out)
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(out, "  Type:%s Running:%v Queued:%d\n", m.chType, m.worker.Running(), len(m.trackers))
	for _, tracker := range m.trackers {
		fmt.Fprintf(out, "    %s started:%v\n", tracker.Program, tracker.started)
	}
}

