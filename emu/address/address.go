/*
 * S2200 - Absolute addresses and base table entries
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

package address

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rcornwell/S2200/util/word36"
)

const (
	MaxUPI     = 15             // Highest UPI index in an address.
	MaxSegment = (1 << 25) - 1 // Segment field is 25 bits.
)

var ErrInvalidAddress = errors.New("invalid absolute address")

// Reference to a word in some main storage processor.
type AbsoluteAddress struct {
	UPI     int // UPI of main storage processor.
	Segment int // Segment within MSP.
	Offset  int // Word offset within segment.
}

// Create an absolute address, checking field ranges.
func NewAbsoluteAddress(upi, segment, offset int) (AbsoluteAddress, error) {
	if upi < 0 || upi > MaxUPI {
		return AbsoluteAddress{}, errors.Wrapf(ErrInvalidAddress, "upi %d", upi)
	}
	if segment < 0 || segment > MaxSegment {
		return AbsoluteAddress{}, errors.Wrapf(ErrInvalidAddress, "segment %d", segment)
	}
	if offset < 0 {
		return AbsoluteAddress{}, errors.Wrapf(ErrInvalidAddress, "offset %d", offset)
	}
	return AbsoluteAddress{UPI: upi, Segment: segment, Offset: offset}, nil
}

// Return address moved by n words.
func (a AbsoluteAddress) AddOffset(n int) AbsoluteAddress {
	return AbsoluteAddress{UPI: a.UPI, Segment: a.Segment, Offset: a.Offset + n}
}

// Check if two addresses refer to the same word.
func (a AbsoluteAddress) Equal(b AbsoluteAddress) bool {
	return a.UPI == b.UPI && a.Segment == b.Segment && a.Offset == b.Offset
}

func (a AbsoluteAddress) String() string {
	return fmt.Sprintf("%d:%o:%o", a.UPI, a.Segment, a.Offset)
}

// Active base table entry, packed into one word.
//
//	H1 = level(3) | bank descriptor index(15)
//	H2 = subset offset(18)
type ActiveBaseTableEntry struct {
	value uint64
}

func NewActiveBaseTableEntry(value uint64) ActiveBaseTableEntry {
	return ActiveBaseTableEntry{value: value & word36.Mask}
}

// Build from separate fields, each masked to width.
func NewActiveBaseTableEntryFields(level, bdi, offset uint64) ActiveBaseTableEntry {
	h1 := ((level & 0o7) << 15) | (bdi & 0o77777)
	return ActiveBaseTableEntry{value: (h1 << 18) | (offset & word36.HalfMask)}
}

func (e ActiveBaseTableEntry) Level() uint64 {
	return word36.GetH1(e.value) >> 15
}

func (e ActiveBaseTableEntry) BDI() uint64 {
	return word36.GetH1(e.value) & 0o77777
}

// Level and bank descriptor index combined.
func (e ActiveBaseTableEntry) LBDI() uint64 {
	return word36.GetH1(e.value)
}

func (e ActiveBaseTableEntry) SubsetOffset() uint64 {
	return word36.GetH2(e.value)
}

func (e ActiveBaseTableEntry) Word() uint64 {
	return e.value
}
