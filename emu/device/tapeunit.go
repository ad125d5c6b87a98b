/*
 * S2200 - Tape unit common handling
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
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/pkg/errors"

	"github.com/rcornwell/S2200/util/tape"
)

// Largest block a tape will accept.
const maxTapeBlock = 0x00ffffff

// Medium mounted on a tape unit. Errors follow util/tape.
type tapeMedium interface {
	ReadRecord() ([]byte, error)
	ReadRecordBack() ([]byte, error)
	WriteRecord(data []byte) error
	WriteMark() error
	Rewind() error
	TapeAtLoadPt() bool
}

// tapeUnit holds function handling shared by tape devices.
type tapeUnit struct {
	Base
	medium         tapeMedium
	detach         func()
	writeProtected bool
	lost           bool // Position lost until rewind.
	mark           bool // Last motion passed mark.
}

func (u *tapeUnit) IsMounted() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.medium != nil
}

func (u *tapeUnit) Unmount() {
	u.mu.Lock()
	u.unmount()
	u.mu.Unlock()
}

// Caller holds mutex.
func (u *tapeUnit) unmount() {
	u.setReady(false)
	if u.detach != nil {
		u.detach()
	}
	u.medium = nil
	u.detach = nil
	u.lost = false
	u.mark = false
}

// Caller holds mutex.
func (u *tapeUnit) attach(medium tapeMedium, detach func(), writeProtected bool) {
	u.medium = medium
	u.detach = detach
	u.writeProtected = writeProtected
	u.lost = false
	u.mark = false
}

func (u *tapeUnit) SetReady(state bool) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if state && u.medium == nil {
		return false
	}
	u.setReady(state)
	return true
}

func (u *tapeUnit) Terminate() {
	u.Unmount()
}

func (u *tapeUnit) HandleIO(info *IOInfo) {
	u.Run(info, u.dispatch)
}

func (u *tapeUnit) dispatch(info *IOInfo) {
	u.mu.Lock()
	defer u.mu.Unlock()
	info.TransferredCount = 0
	switch info.Function {
	case GetInfo:
		u.getInfo(info, u.infoFlags())
		return
	case Reset, Unload:
		u.miscCount.Add(1)
		if !u.ready {
			info.Status = NotReady
			return
		}
		u.unmount()
		info.Status = Successful
		return
	}

	switch {
	case !u.ready:
		info.Status = NotReady
		return
	case u.unitAttention:
		info.Status = UnitAttention
		return
	}

	switch info.Function {
	case Rewind, RewindInterlock:
		u.miscCount.Add(1)
		if err := u.medium.Rewind(); err != nil {
			info.Status = u.status(err)
			return
		}
		u.lost = false
		u.mark = false
		if info.Function == RewindInterlock {
			u.setReady(false)
		}
		info.Status = Successful
	case MoveBlock, MoveBlockBackward, MoveFile, MoveFileBackward:
		u.miscCount.Add(1)
		u.move(info)
	case Read, ReadBackward:
		u.readCount.Add(1)
		u.read(info)
	case Write:
		u.writeCount.Add(1)
		u.write(info)
	case WriteEndOfFile:
		u.writeCount.Add(1)
		if u.writeProtected {
			info.Status = WriteProtected
			return
		}
		info.Status = u.status(u.medium.WriteMark())
	default:
		u.miscCount.Add(1)
		info.Status = InvalidFunction
	}
}

// Flags for device specific info word.
func (u *tapeUnit) infoFlags() uint64 {
	flags := uint64(0)
	if u.medium != nil {
		flags |= 0o400000000000
		if u.medium.TapeAtLoadPt() {
			flags |= 0o040000000000
		}
	}
	if u.writeProtected {
		flags |= 0o200000000000
	}
	if u.mark {
		flags |= 0o100000000000
	}
	return flags
}

// Convert medium error to status.
func (u *tapeUnit) status(err error) Status {
	u.mark = false
	switch {
	case err == nil:
		return Successful
	case errors.Is(err, tape.TapeMARK):
		u.mark = true
		return FileMark
	case errors.Is(err, tape.TapeEOT), errors.Is(err, tape.TapeBOT):
		return EndOfTape
	case errors.Is(err, tape.TapeRECERR):
		return MediaError
	case errors.Is(err, tape.TapeFORMAT):
		u.lost = true
		return LostPosition
	}
	slog.Error(u.Name() + " tape error: " + err.Error())
	return SystemException
}

func (u *tapeUnit) move(info *IOInfo) {
	if u.lost {
		info.Status = LostPosition
		return
	}
	var err error
	switch info.Function {
	case MoveBlock:
		_, err = u.medium.ReadRecord()
	case MoveBlockBackward:
		_, err = u.medium.ReadRecordBack()
	case MoveFile:
		for err == nil {
			_, err = u.medium.ReadRecord()
			if errors.Is(err, tape.TapeRECERR) {
				err = nil
			}
		}
		if errors.Is(err, tape.TapeMARK) {
			err = nil
		}
	case MoveFileBackward:
		for err == nil {
			_, err = u.medium.ReadRecordBack()
			if errors.Is(err, tape.TapeRECERR) {
				err = nil
			}
		}
	}
	info.Status = u.status(err)
	if info.Function == MoveFile && info.Status == Successful {
		u.mark = true
	}
}

func (u *tapeUnit) read(info *IOInfo) {
	if u.lost {
		info.Status = LostPosition
		return
	}
	if len(info.ByteBuffer) < info.TransferCount {
		info.Status = BufferTooSmall
		return
	}
	var data []byte
	var err error
	if info.Function == ReadBackward {
		data, err = u.medium.ReadRecordBack()
		data = slices.Clone(data)
		slices.Reverse(data)
	} else {
		data, err = u.medium.ReadRecord()
	}
	info.Status = u.status(err)
	if data != nil {
		n := copy(info.ByteBuffer[:info.TransferCount], data)
		info.TransferredCount = n
		u.readBytes.Add(uint64(n))
	}
}

func (u *tapeUnit) write(info *IOInfo) {
	switch {
	case u.writeProtected:
		info.Status = WriteProtected
	case len(info.ByteBuffer) < info.TransferCount:
		info.Status = BufferTooSmall
	case info.TransferCount > maxTapeBlock:
		info.Status = InvalidBlockSize
	default:
		info.Status = u.status(u.medium.WriteRecord(info.ByteBuffer[:info.TransferCount]))
		if info.Status == Successful {
			u.lost = false
			info.TransferredCount = info.TransferCount
			u.writeBytes.Add(uint64(info.TransferCount))
		}
	}
}

func (u *tapeUnit) Dump(out io.Writer) {
	u.Base.Dump(out)
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(out, "  Mounted:%v WriteProtected:%v LostPosition:%v Mark:%v\n",
		u.medium != nil, u.writeProtected, u.lost, u.mark)
}
