/*
 * S2200 - SIMH tape image container
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

// Package tape reads and writes tape images in SIMH .tap format. Each
// record is a 32 bit little endian length, the data padded to even length,
// then the length again. A zero length is a tape mark and all ones marks
// end of medium.
package tape

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	tapeMark   uint32 = 0
	endMedium  uint32 = 0xffffffff
	errorFlag  uint32 = 0x80000000
	lengthMask uint32 = 0x00ffffff
)

var (
	TapeEOT      = errors.New("EOT")       // End of tape.
	TapeMARK     = errors.New("MARK")      // Tape mark found.
	TapeBOT      = errors.New("BOT")       // Beginning of tape.
	TapeFORMAT   = errors.New("FORMAT")    // Tape format error.
	TapeATTACHED = errors.New("ATTACHED")  // Tape not attached.
	TapeRING     = errors.New("NO RING")   // Write ring missing.
	TapeRECERR   = errors.New("REC ERROR") // Record flagged bad.
)

// Structure to hold tape information.
type TapeContext struct {
	file     *os.File // file handle
	ring     bool     // Has write ring
	mark     bool     // Last record was tape mark.
	position int64    // Byte offset of head in file.
}

func NewTapeContext() *TapeContext {
	return &TapeContext{}
}

// Check if tape is at load point.
func (tape *TapeContext) TapeAtLoadPt() bool {
	return tape.position == 0
}

// Determine if tape is attached and ready.
func (tape *TapeContext) TapeReady() bool {
	return tape.file != nil
}

// Determine if tape can be written.
func (tape *TapeContext) TapeRing() bool {
	return tape.ring
}

// Last operation passed a tape mark.
func (tape *TapeContext) AtMark() bool {
	return tape.mark
}

// Current byte offset in tape image.
func (tape *TapeContext) Position() int64 {
	return tape.position
}

// Attach file to tape context. With a ring the file is created if missing.
func (tape *TapeContext) Attach(fileName string, ring bool) error {
	var err error
	if ring {
		tape.file, err = os.OpenFile(fileName, os.O_RDWR|os.O_CREATE, 0o644)
	} else {
		tape.file, err = os.Open(fileName)
	}
	if err != nil {
		tape.file = nil
		return errors.Wrapf(err, "attach %s", fileName)
	}
	tape.ring = ring
	tape.position = 0
	tape.mark = false
	return nil
}

// Detach a tape file from a tape context.
func (tape *TapeContext) Detach() error {
	if tape.file == nil {
		return nil
	}
	err := tape.file.Close()
	tape.file = nil
	tape.position = 0
	return err
}

// Return to load point.
func (tape *TapeContext) Rewind() error {
	if tape.file == nil {
		return TapeATTACHED
	}
	tape.position = 0
	tape.mark = false
	return nil
}

func (tape *TapeContext) readLength(pos int64) (uint32, error) {
	var buf [4]byte
	n, err := tape.file.ReadAt(buf[:], pos)
	if n != 4 {
		if errors.Is(err, io.EOF) || err == nil {
			return endMedium, nil
		}
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func padded(length uint32) int64 {
	return int64((length + 1) &^ 1)
}

// Read next record moving forward.
func (tape *TapeContext) ReadRecord() ([]byte, error) {
	if tape.file == nil {
		return nil, TapeATTACHED
	}
	tape.mark = false
	hdr, err := tape.readLength(tape.position)
	if err != nil {
		return nil, err
	}
	switch hdr {
	case endMedium:
		return nil, TapeEOT
	case tapeMark:
		tape.position += 4
		tape.mark = true
		return nil, TapeMARK
	}

	length := hdr & lengthMask
	data := make([]byte, length)
	n, err := tape.file.ReadAt(data, tape.position+4)
	if n != int(length) {
		return nil, errors.Wrapf(TapeFORMAT, "short record at %d", tape.position)
	}
	trail, err := tape.readLength(tape.position + 4 + padded(length))
	if err != nil {
		return nil, err
	}
	if trail != hdr {
		return nil, errors.Wrapf(TapeFORMAT, "length mismatch at %d", tape.position)
	}
	tape.position += 8 + padded(length)
	if (hdr & errorFlag) != 0 {
		return data, TapeRECERR
	}
	return data, nil
}

// Read previous record moving backward. Data is returned in forward order.
func (tape *TapeContext) ReadRecordBack() ([]byte, error) {
	if tape.file == nil {
		return nil, TapeATTACHED
	}
	tape.mark = false
	if tape.position < 4 {
		return nil, TapeBOT
	}
	trail, err := tape.readLength(tape.position - 4)
	if err != nil {
		return nil, err
	}
	if trail == tapeMark {
		tape.position -= 4
		tape.mark = true
		return nil, TapeMARK
	}
	length := trail & lengthMask
	start := tape.position - 8 - padded(length)
	if start < 0 {
		return nil, errors.Wrapf(TapeFORMAT, "record overruns load point at %d", tape.position)
	}
	data := make([]byte, length)
	n, _ := tape.file.ReadAt(data, start+4)
	if n != int(length) {
		return nil, errors.Wrapf(TapeFORMAT, "short record at %d", start)
	}
	tape.position = start
	if (trail & errorFlag) != 0 {
		return data, TapeRECERR
	}
	return data, nil
}

// Write a record, everything beyond it is lost.
func (tape *TapeContext) WriteRecord(data []byte) error {
	if tape.file == nil {
		return TapeATTACHED
	}
	if !tape.ring {
		return TapeRING
	}
	length := uint32(len(data)) & lengthMask
	buf := make([]byte, 8+padded(length))
	binary.LittleEndian.PutUint32(buf, length)
	copy(buf[4:], data)
	binary.LittleEndian.PutUint32(buf[len(buf)-4:], length)
	return tape.write(buf)
}

// Write a tape mark.
func (tape *TapeContext) WriteMark() error {
	if tape.file == nil {
		return TapeATTACHED
	}
	if !tape.ring {
		return TapeRING
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], tapeMark)
	if err := tape.write(buf[:]); err != nil {
		return err
	}
	tape.mark = true
	return nil
}

func (tape *TapeContext) write(buf []byte) error {
	n, err := tape.file.WriteAt(buf, tape.position)
	if err == nil && n != len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return errors.Wrapf(err, "write error on %s", tape.file.Name())
	}
	tape.position += int64(n)
	tape.mark = false
	return tape.file.Truncate(tape.position)
}

// Skip one record forward.
func (tape *TapeContext) SpaceRecord() error {
	_, err := tape.ReadRecord()
	if err == TapeRECERR {
		return nil
	}
	return err
}

// Skip one record backward.
func (tape *TapeContext) SpaceRecordBack() error {
	_, err := tape.ReadRecordBack()
	if err == TapeRECERR {
		return nil
	}
	return err
}

// Skip forward past next tape mark.
func (tape *TapeContext) SpaceFile() error {
	for {
		err := tape.SpaceRecord()
		if err == TapeMARK {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Skip backward past previous tape mark.
func (tape *TapeContext) SpaceFileBack() error {
	for {
		err := tape.SpaceRecordBack()
		if err == TapeMARK {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
