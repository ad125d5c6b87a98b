/*
 * S2200 - Channel program packet
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

	"github.com/pkg/errors"

	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/util/word36"
)

// Byte translation formats.
type Format int

const (
	FormatA Format = 0 // Quarter word per byte, bit 9 set ends write.
	FormatB Format = 1 // Sixth word per byte.
	FormatC Format = 2 // Two words packed in nine bytes.
	FormatD Format = 3 // Quarter word per byte, bit 9 ignored.
)

func (f Format) String() string {
	if f >= FormatA && f <= FormatD {
		return string(rune('A' + f))
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Bytes needed for a number of words.
func (f Format) BytesFor(words int) int {
	switch f {
	case FormatB:
		return words * 6
	case FormatC:
		return (words*36 + 7) / 8
	}
	return words * 4
}

type Status int

// Channel status codes.
const (
	Successful                Status = 0
	Cancelled                 Status = 1
	DeviceError               Status = 2
	UnconfiguredChannelModule Status = 3
	UnconfiguredDevice        Status = 4
	InvalidAddress            Status = 5
	InsufficientBuffers       Status = 6
	InProgress                Status = 0o40
	InvalidStatus             Status = 0o77
)

var statusNames = map[Status]string{
	Successful:                "Successful",
	Cancelled:                 "Cancelled",
	DeviceError:               "DeviceError",
	UnconfiguredChannelModule: "UnconfiguredChannelModule",
	UnconfiguredDevice:        "UnconfiguredDevice",
	InvalidAddress:            "InvalidAddress",
	InsufficientBuffers:       "InsufficientBuffers",
	InProgress:                "InProgress",
	InvalidStatus:             "InvalidStatus",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%o)", int(s))
}

type AddressModifier int

// How buffer address moves after each word.
const (
	Increment AddressModifier = 0
	NoChange  AddressModifier = 1
	Decrement AddressModifier = 2
	SkipData  AddressModifier = 3
)

// Amount to add to address after each word.
func (m AddressModifier) Step() int {
	switch m {
	case Increment:
		return 1
	case Decrement:
		return -1
	}
	return 0
}

// Number of words in an access control word.
const ACWSize = 3

// Words before the first access control word.
const HeaderSize = 4

var ErrProgramSize = errors.New("channel program too short")

// AccessControlWord describes one buffer of a transfer.
//
//	+0: [modifier:6][upi:6][reserved:6][size:18]
//	+1: segment
//	+2: offset
type AccessControlWord struct {
	Modifier AddressModifier
	UPI      int
	Segment  uint64
	Offset   int
	Size     int
}

func decodeACW(words []uint64) AccessControlWord {
	return AccessControlWord{
		Modifier: AddressModifier(word36.GetS1(words[0])),
		UPI:      int(word36.GetS2(words[0])),
		Size:     int(word36.GetH2(words[0])),
		Segment:  words[1] & word36.Mask,
		Offset:   int(words[2] & word36.Mask),
	}
}

func (acw AccessControlWord) encode(words []uint64) {
	w := word36.SetS1(0, uint64(acw.Modifier))
	w = word36.SetS2(w, uint64(acw.UPI))
	words[0] = word36.SetH2(w, uint64(acw.Size))
	words[1] = acw.Segment & word36.Mask
	words[2] = uint64(acw.Offset) & word36.Mask
}

// ChannelProgram is a view over the words of a packet in storage.
//
//	+0: [srcUPI:6][chmod:6][devAddr:6][function:6][format:6][acwCount:6]
//	+1: block id
//	+2: [chanStatus:6][devStatus:6][residualBytes:6][reserved:18]
//	+3: [reserved:18][wordsTransferred:18]
//	+4: access control words
type ChannelProgram struct {
	words []uint64
}

// Wrap words already in storage.
func NewChannelProgram(words []uint64) (*ChannelProgram, error) {
	if len(words) < HeaderSize {
		return nil, errors.Wrapf(ErrProgramSize, "length %d", len(words))
	}
	cp := &ChannelProgram{words: words}
	if len(words) < cp.Length() {
		return nil, errors.Wrapf(ErrProgramSize, "length %d need %d", len(words), cp.Length())
	}
	return cp, nil
}

// Build a new program in its own storage.
func BuildChannelProgram(srcUPI, chmod, devAddr int, fn device.Function, format Format,
	blockID uint64, acws []AccessControlWord) *ChannelProgram {
	cp := &ChannelProgram{words: make([]uint64, HeaderSize+ACWSize*len(acws))}
	w := word36.SetS1(0, uint64(srcUPI))
	w = word36.SetS2(w, uint64(chmod))
	w = word36.SetS3(w, uint64(devAddr))
	w = word36.SetS4(w, uint64(fn))
	w = word36.SetS5(w, uint64(format))
	cp.words[0] = word36.SetS6(w, uint64(len(acws)))
	cp.words[1] = blockID & word36.Mask
	for i, acw := range acws {
		acw.encode(cp.words[HeaderSize+ACWSize*i:])
	}
	return cp
}

// Underlying words.
func (cp *ChannelProgram) Words() []uint64 {
	return cp.words[:cp.Length()]
}

// Words in packet.
func (cp *ChannelProgram) Length() int {
	return HeaderSize + ACWSize*cp.ACWCount()
}

func (cp *ChannelProgram) SourceUPI() int {
	return int(word36.GetS1(cp.words[0]))
}

func (cp *ChannelProgram) ChannelModuleIndex() int {
	return int(word36.GetS2(cp.words[0]))
}

func (cp *ChannelProgram) DeviceAddress() int {
	return int(word36.GetS3(cp.words[0]))
}

func (cp *ChannelProgram) Function() device.Function {
	return device.Function(word36.GetS4(cp.words[0]))
}

func (cp *ChannelProgram) Format() Format {
	return Format(word36.GetS5(cp.words[0]))
}

func (cp *ChannelProgram) ACWCount() int {
	return int(word36.GetS6(cp.words[0]))
}

func (cp *ChannelProgram) BlockID() uint64 {
	return cp.words[1] & word36.Mask
}

func (cp *ChannelProgram) ChannelStatus() Status {
	return Status(word36.GetS1(cp.words[2]))
}

func (cp *ChannelProgram) DeviceStatus() device.Status {
	return device.Status(word36.GetS2(cp.words[2]))
}

func (cp *ChannelProgram) ResidualBytes() int {
	return int(word36.GetS3(cp.words[2]))
}

func (cp *ChannelProgram) WordsTransferred() int {
	return int(word36.GetH2(cp.words[3]))
}

func (cp *ChannelProgram) ACW(index int) AccessControlWord {
	return decodeACW(cp.words[HeaderSize+ACWSize*index:])
}

func (cp *ChannelProgram) SetChannelStatus(status Status) {
	cp.words[2] = word36.SetS1(cp.words[2], uint64(status))
}

func (cp *ChannelProgram) SetDeviceStatus(status device.Status) {
	cp.words[2] = word36.SetS2(cp.words[2], uint64(status))
}

func (cp *ChannelProgram) SetResidualBytes(count int) {
	cp.words[2] = word36.SetS3(cp.words[2], uint64(count))
}

func (cp *ChannelProgram) SetWordsTransferred(count int) {
	cp.words[3] = word36.SetH2(cp.words[3], uint64(count))
}

// Total words described by all access control words.
func (cp *ChannelProgram) CumulativeTransferWords() int {
	total := 0
	for i := range cp.ACWCount() {
		total += cp.ACW(i).Size
	}
	return total
}

func (cp *ChannelProgram) String() string {
	return fmt.Sprintf("src:%d chmod:%d dev:%d func:%s fmt:%s acws:%d block:%d chan:%s dev:%s",
		cp.SourceUPI(), cp.ChannelModuleIndex(), cp.DeviceAddress(), cp.Function(),
		cp.Format(), cp.ACWCount(), cp.BlockID(), cp.ChannelStatus(), cp.DeviceStatus())
}
