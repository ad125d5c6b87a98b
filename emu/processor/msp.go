/*
 * S2200 - Main storage processor
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
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/rcornwell/S2200/emu/address"
	"github.com/rcornwell/S2200/util/word36"
)

// Smallest fixed segment in words.
const MinFixedSize = 256 * 1024

var ErrFixedSize = errors.New("fixed storage size too small")

// MainStorageProcessor holds storage as segments of words. Segment 0 is
// fixed at creation, the rest are created and deleted by the system.
type MainStorageProcessor struct {
	Base
	segMu     sync.Mutex
	segments  map[int][]uint64
	fixedSize int
}

func NewMainStorageProcessor(name string, upi int, fixedSize int, sys System) (*MainStorageProcessor, error) {
	if fixedSize < MinFixedSize {
		return nil, errors.Wrapf(ErrFixedSize, "%s size %d minimum %d", name, fixedSize, MinFixedSize)
	}
	return &MainStorageProcessor{
		Base:      newBase(name, upi, MSP, sys, idleWait),
		segments:  map[int][]uint64{0: make([]uint64, fixedSize)},
		fixedSize: fixedSize,
	}, nil
}

func (m *MainStorageProcessor) fault(segment, offset int, reason string) *AddressingError {
	return &AddressingError{UPI: m.upi, Segment: segment, Offset: offset, Reason: reason}
}

// Nothing sends useful work to storage.
func (m *MainStorageProcessor) Initialize() {
	m.start(func() {
		m.drain(m.discard("ACK"), m.discard("interrupt"))
	})
}

// Drop dynamic segments and zero fixed storage.
func (m *MainStorageProcessor) Clear() {
	m.Base.Clear()
	m.segMu.Lock()
	fixed := m.segments[0]
	clear(fixed)
	m.segments = map[int][]uint64{0: fixed}
	m.segMu.Unlock()
}

// Allocate segment at lowest free index.
func (m *MainStorageProcessor) CreateSegment(size int) (int, error) {
	if size <= 0 {
		return 0, m.fault(0, size, "invalid segment size")
	}
	m.segMu.Lock()
	defer m.segMu.Unlock()
	for idx := 1; idx <= address.MaxSegment; idx++ {
		if _, used := m.segments[idx]; !used {
			m.segments[idx] = make([]uint64, size)
			return idx, nil
		}
	}
	return 0, m.fault(0, 0, "no free segments")
}

func (m *MainStorageProcessor) DeleteSegment(idx int) error {
	if idx == 0 {
		return m.fault(idx, 0, "fixed segment can not be deleted")
	}
	m.segMu.Lock()
	defer m.segMu.Unlock()
	if _, ok := m.segments[idx]; !ok {
		return m.fault(idx, 0, "segment not allocated")
	}
	delete(m.segments, idx)
	return nil
}

// Change size of segment. New words are zero, words past size are lost.
func (m *MainStorageProcessor) ResizeSegment(idx int, size int) ([]uint64, error) {
	if idx == 0 {
		return nil, m.fault(idx, 0, "fixed segment can not be resized")
	}
	if size <= 0 {
		return nil, m.fault(idx, size, "invalid segment size")
	}
	m.segMu.Lock()
	defer m.segMu.Unlock()
	old, ok := m.segments[idx]
	if !ok {
		return nil, m.fault(idx, 0, "segment not allocated")
	}
	if len(old) == size {
		return old, nil
	}
	storage := make([]uint64, size)
	copy(storage, old)
	m.segments[idx] = storage
	return storage, nil
}

// Return storage of segment. The slice is shared.
func (m *MainStorageProcessor) GetStorage(idx int) ([]uint64, error) {
	m.segMu.Lock()
	defer m.segMu.Unlock()
	storage, ok := m.segments[idx]
	if !ok {
		return nil, m.fault(idx, 0, "segment not allocated")
	}
	return storage, nil
}

func (m *MainStorageProcessor) Get(addr address.AbsoluteAddress) (uint64, error) {
	storage, err := m.GetStorage(addr.Segment)
	if err != nil {
		return 0, err
	}
	if addr.Offset < 0 || addr.Offset >= len(storage) {
		return 0, m.fault(addr.Segment, addr.Offset, "offset out of range")
	}
	return storage[addr.Offset], nil
}

func (m *MainStorageProcessor) Set(addr address.AbsoluteAddress, value uint64) error {
	storage, err := m.GetStorage(addr.Segment)
	if err != nil {
		return err
	}
	if addr.Offset < 0 || addr.Offset >= len(storage) {
		return m.fault(addr.Segment, addr.Offset, "offset out of range")
	}
	storage[addr.Offset] = value & word36.Mask
	return nil
}

func (m *MainStorageProcessor) FixedSize() int {
	return m.fixedSize
}

func (m *MainStorageProcessor) MaxSegments() int {
	return address.MaxSegment + 1
}

// Segments allocated, including the fixed segment.
func (m *MainStorageProcessor) SegmentCount() int {
	m.segMu.Lock()
	defer m.segMu.Unlock()
	return len(m.segments)
}

func (m *MainStorageProcessor) Dump(out io.Writer) {
	m.dumpBase(out)
	m.segMu.Lock()
	defer m.segMu.Unlock()
	fmt.Fprintf(out, "  Fixed:%d Segments:%d\n", m.fixedSize, len(m.segments))
	indexes := make([]int, 0, len(m.segments))
	for idx := range m.segments {
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)
	for _, idx := range indexes {
		fmt.Fprintf(out, "    %o: %d words\n", idx, len(m.segments[idx]))
	}
}
