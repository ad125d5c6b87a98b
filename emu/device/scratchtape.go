/*
 * S2200 - Scratch tape device
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

package device

import (
	"github.com/pkg/errors"

	"github.com/rcornwell/S2200/util/tape"
)

// Tape held in memory, nil data is a tape mark.
type memTape struct {
	blocks [][]byte
	pos    int
}

func (m *memTape) ReadRecord() ([]byte, error) {
	if m.pos >= len(m.blocks) {
		return nil, tape.TapeEOT
	}
	block := m.blocks[m.pos]
	m.pos++
	if block == nil {
		return nil, tape.TapeMARK
	}
	return block, nil
}

func (m *memTape) ReadRecordBack() ([]byte, error) {
	if m.pos == 0 {
		return nil, tape.TapeBOT
	}
	m.pos--
	block := m.blocks[m.pos]
	if block == nil {
		return nil, tape.TapeMARK
	}
	return block, nil
}

// Writing drops everything past the head.
func (m *memTape) WriteRecord(data []byte) error {
	block := make([]byte, len(data))
	copy(block, data)
	m.blocks = append(m.blocks[:m.pos], block)
	m.pos++
	return nil
}

func (m *memTape) WriteMark() error {
	m.blocks = append(m.blocks[:m.pos], nil)
	m.pos++
	return nil
}

func (m *memTape) Rewind() error {
	m.pos = 0
	return nil
}

func (m *memTape) TapeAtLoadPt() bool {
	return m.pos == 0
}

// ScratchTapeDevice is a tape drive whose volumes live in memory.
type ScratchTapeDevice struct {
	tapeUnit
}

func NewScratchTape(name string) *ScratchTapeDevice {
	return &ScratchTapeDevice{
		tapeUnit: tapeUnit{Base: NewBase(name, ScratchTape, Tape, true, false)},
	}
}

// Mount a blank volume, path is ignored.
func (d *ScratchTapeDevice) Mount(_ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.medium != nil {
		return errors.Wrap(ErrAlreadyMounted, d.Name())
	}
	d.attach(&memTape{}, nil, false)
	return nil
}

func (d *ScratchTapeDevice) SetWriteProtected(state bool) {
	d.mu.Lock()
	d.writeProtected = state
	d.mu.Unlock()
}
