/*
 * S2200 - Input output processor
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
	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/emu/node"
)

// Retry key for broadcast completions.
const broadcastKey = -1

// InputOutputProcessor owns channel modules. It resolves the buffers of a
// channel program, passes it to the channel module, and tells the source
// when the program is done.
type InputOutputProcessor struct {
	Base
	ioMu      sync.Mutex
	composite map[*channel.ChannelProgram][]uint64 // Buffers to scatter on completion.
	retries   map[int]struct{}                     // Completions not yet accepted.
}

func NewInputOutputProcessor(name string, upi int, sys System) *InputOutputProcessor {
	return &InputOutputProcessor{
		Base:      newBase(name, upi, IOP, sys, idleWait),
		composite: map[*channel.ChannelProgram][]uint64{},
		retries:   map[int]struct{}{},
	}
}

func (iop *InputOutputProcessor) Initialize() {
	iop.start(func() {
		iop.drain(func(int) {}, func(int) {})
		iop.retry()
	})
}

func (iop *InputOutputProcessor) Clear() {
	iop.Base.Clear()
	iop.ioMu.Lock()
	iop.retries = map[int]struct{}{}
	iop.ioMu.Unlock()
}

// Channel module at index.
func (iop *InputOutputProcessor) ChannelModule(index int) (*channel.ChannelModule, bool) {
	cm, ok := iop.Links().Descendant(index).(*channel.ChannelModule)
	return cm, ok
}

// Start a channel program for source. Returns false if the program could
// not be scheduled, with the reason in the channel status.
func (iop *InputOutputProcessor) StartIO(source channel.Source, program *channel.ChannelProgram) bool {
	cm, ok := iop.ChannelModule(program.ChannelModuleIndex())
	if !ok {
		program.SetChannelStatus(channel.UnconfiguredChannelModule)
		return false
	}

	buffer, composite, err := iop.buildBuffer(program)
	if err != nil {
		slog.Debug(iop.Name() + " " + err.Error())
		program.SetChannelStatus(channel.InvalidAddress)
		return false
	}

	if composite {
		iop.ioMu.Lock()
		iop.composite[program] = buffer
		iop.ioMu.Unlock()
	}
	if !cm.ScheduleChannelProgram(source, iop, program, buffer) {
		iop.ioMu.Lock()
		delete(iop.composite, program)
		iop.ioMu.Unlock()
		return false
	}
	return true
}

// Single incrementing buffer is used in place, otherwise a composite
// buffer is built.
func (iop *InputOutputProcessor) buildBuffer(program *channel.ChannelProgram) ([]uint64, bool, error) {
	count := program.ACWCount()
	if count == 0 {
		return nil, false, nil
	}

	if count == 1 && program.ACW(0).Modifier == channel.Increment {
		acw := program.ACW(0)
		storage, err := iop.acwStorage(acw)
		if err != nil {
			return nil, false, err
		}
		return storage[acw.Offset : acw.Offset+acw.Size : acw.Offset+acw.Size], false, nil
	}

	buffer := make([]uint64, program.CumulativeTransferWords())
	write := program.Function().IsWrite()
	dx := 0
	for i := range count {
		acw := program.ACW(i)
		if acw.Modifier == channel.SkipData {
			dx += acw.Size
			continue
		}
		storage, err := iop.acwStorage(acw)
		if err != nil {
			return nil, false, err
		}
		if !write {
			dx += acw.Size
			continue
		}
		sx := acw.Offset
		for range acw.Size {
			buffer[dx] = storage[sx]
			dx++
			sx += acw.Modifier.Step()
		}
	}
	return buffer, true, nil
}

// Resolve storage of access control word and check it covers the buffer.
func (iop *InputOutputProcessor) acwStorage(acw channel.AccessControlWord) ([]uint64, error) {
	msp, err := iop.sys.MainStorageProcessor(acw.UPI)
	if err != nil {
		return nil, err
	}
	storage, err := msp.GetStorage(int(acw.Segment))
	if err != nil {
		return nil, err
	}
	low, high := acw.Offset, acw.Offset
	switch acw.Modifier {
	case channel.Increment:
		high = acw.Offset + acw.Size - 1
	case channel.Decrement:
		low = acw.Offset - acw.Size + 1
	}
	if acw.Offset > len(storage) || (acw.Size > 0 && (low < 0 || high >= len(storage))) {
		return nil, &AddressingError{UPI: acw.UPI, Segment: int(acw.Segment), Offset: acw.Offset, Reason: "buffer outside segment"}
	}
	return storage, nil
}

// Copy read data back out to each access control word.
func (iop *InputOutputProcessor) scatter(program *channel.ChannelProgram) {
	iop.ioMu.Lock()
	buffer, ok := iop.composite[program]
	delete(iop.composite, program)
	iop.ioMu.Unlock()
	if !ok {
		return
	}
	fn := program.Function()
	if !fn.IsRead() && fn != device.GetInfo {
		return
	}

	remain := program.WordsTransferred()
	dx := 0
	for i := range program.ACWCount() {
		acw := program.ACW(i)
		if remain <= 0 {
			return
		}
		words := min(acw.Size, remain)
		if acw.Modifier == channel.SkipData {
			dx += acw.Size
			remain -= words
			continue
		}
		storage, err := iop.acwStorage(acw)
		if err != nil {
			// Storage released while IO was running.
			slog.Error(iop.Name() + " " + err.Error())
			return
		}
		sx := acw.Offset
		for k := range words {
			storage[sx] = buffer[dx+k]
			sx += acw.Modifier.Step()
		}
		dx += acw.Size
		remain -= words
	}
}

// Called by a channel module when program is done.
func (iop *InputOutputProcessor) FinalizeIO(program *channel.ChannelProgram, source channel.Source) {
	iop.scatter(program)

	p, ok := source.(Processor)
	if !ok {
		slog.Error(fmt.Sprintf("%s completion for unknown source %s", iop.Name(), source.Name()))
		return
	}
	key := p.UPI()
	switch p.ProcessorType() {
	case IP:
		key = broadcastKey
	case SP:
	default:
		return
	}
	if !iop.notify(key) {
		iop.ioMu.Lock()
		iop.retries[key] = struct{}{}
		iop.ioMu.Unlock()
		iop.worker.Wake()
	}
}

// Send completion interrupt. Returns false if it must be tried again,
// a send that fails outright is only logged.
func (iop *InputOutputProcessor) notify(key int) bool {
	var result Result
	var err error
	if key == broadcastKey {
		result, err = iop.UPISendBroadcast()
	} else {
		result, err = iop.UPISendDirected(key)
	}
	if err != nil {
		slog.Error(iop.Name() + " completion interrupt failed: " + err.Error())
		return true
	}
	return result == Accepted
}

// Resend completions refused earlier.
func (iop *InputOutputProcessor) retry() {
	iop.ioMu.Lock()
	keys := make([]int, 0, len(iop.retries))
	for key := range iop.retries {
		keys = append(keys, key)
	}
	iop.ioMu.Unlock()

	for _, key := range keys {
		if iop.notify(key) {
			iop.ioMu.Lock()
			delete(iop.retries, key)
			iop.ioMu.Unlock()
		}
	}
}

// Completions still waiting to be delivered.
func (iop *InputOutputProcessor) PendingCompletions() int {
	iop.ioMu.Lock()
	defer iop.ioMu.Unlock()
	return len(iop.retries)
}

func (iop *InputOutputProcessor) Dump(out io.Writer) {
	iop.dumpBase(out)
	iop.ioMu.Lock()
	fmt.Fprintf(out, "  Composite:%d Retries:%d\n", len(iop.composite), len(iop.retries))
	iop.ioMu.Unlock()
}

// Look up IOP and start program on it.
func startIO(sys System, source channel.Source, iopUPI int, program *channel.ChannelProgram) (bool, error) {
	p, err := sys.Processor(iopUPI)
	if err != nil {
		return false, err
	}
	iop, ok := p.(*InputOutputProcessor)
	if !ok {
		return false, ErrUPIProcessorType
	}
	return iop.StartIO(source, program), nil
}

// Check interface.
var _ channel.Originator = (*InputOutputProcessor)(nil)
var _ node.Node = (*InputOutputProcessor)(nil)
