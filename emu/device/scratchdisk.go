/*
 * S2200 - Scratch disk device
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

	"github.com/pkg/errors"
)

const (
	scratchBlockSize = 512
	scratchPackSize  = 10 * 1024 * 1024
)

var (
	ErrAlreadyMounted = errors.New("media already mounted")
	ErrNotMounted     = errors.New("no media mounted")
)

// ScratchDiskDevice is a disk kept in host memory. Contents are lost when
// the pack is unmounted.
type ScratchDiskDevice struct {
	Base
	mounted        bool
	writeProtected bool
	blockSize      int
	blockCount     uint64
	storage        map[uint64][]byte
}

func NewScratchDisk(name string) *ScratchDiskDevice {
	return &ScratchDiskDevice{
		Base:    NewBase(name, ScratchDisk, Disk, true, false),
		storage: map[uint64][]byte{},
	}
}

// Mount an empty pack, path is ignored.
func (d *ScratchDiskDevice) Mount(_ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mounted {
		return errors.Wrap(ErrAlreadyMounted, d.Name())
	}
	d.blockSize = scratchBlockSize
	d.blockCount = scratchPackSize / scratchBlockSize
	d.storage = map[uint64][]byte{}
	d.mounted = true
	d.writeProtected = false
	return nil
}

func (d *ScratchDiskDevice) Unmount() {
	d.mu.Lock()
	d.unmount()
	d.mu.Unlock()
}

// Caller holds mutex.
func (d *ScratchDiskDevice) unmount() {
	d.setReady(false)
	d.storage = map[uint64][]byte{}
	d.mounted = false
	d.writeProtected = true
}

func (d *ScratchDiskDevice) IsMounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}

func (d *ScratchDiskDevice) SetWriteProtected(state bool) {
	d.mu.Lock()
	d.writeProtected = state
	d.mu.Unlock()
}

// Can't go ready without a pack.
func (d *ScratchDiskDevice) SetReady(state bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state && !d.mounted {
		return false
	}
	d.setReady(state)
	return true
}

func (d *ScratchDiskDevice) Terminate() {
	d.Unmount()
}

func (d *ScratchDiskDevice) HandleIO(info *IOInfo) {
	d.Run(info, d.dispatch)
}

func (d *ScratchDiskDevice) dispatch(info *IOInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch info.Function {
	case GetInfo:
		d.getInfo(info, uint64(d.blockSize), d.blockCount)
	case Read:
		d.read(info)
	case Write:
		d.write(info)
	case Reset:
		d.reset(info)
	case Unload:
		d.unload(info)
	default:
		d.miscCount.Add(1)
		info.Status = InvalidFunction
	}
}

// Validate a block transfer. Returns number of blocks.
func (d *ScratchDiskDevice) check(info *IOInfo, write bool) (uint64, bool) {
	switch {
	case !d.ready:
		info.Status = NotReady
	case d.unitAttention:
		info.Status = UnitAttention
	case !d.mounted:
		info.Status = NotPrepped
	case write && d.writeProtected:
		info.Status = WriteProtected
	case len(info.ByteBuffer) < info.TransferCount:
		info.Status = BufferTooSmall
	case info.TransferCount%d.blockSize != 0:
		info.Status = InvalidBlockSize
	case info.BlockID >= d.blockCount:
		info.Status = InvalidBlockID
	case info.BlockID+uint64(info.TransferCount/d.blockSize) > d.blockCount:
		info.Status = InvalidBlockCount
	default:
		return uint64(info.TransferCount / d.blockSize), true
	}
	return 0, false
}

func (d *ScratchDiskDevice) read(info *IOInfo) {
	d.readCount.Add(1)
	count, ok := d.check(info, false)
	if !ok {
		return
	}

	for i := range count {
		dst := info.ByteBuffer[int(i)*d.blockSize : int(i+1)*d.blockSize]
		if block, ok := d.storage[info.BlockID+i]; ok {
			copy(dst, block)
		} else {
			clear(dst)
		}
	}
	d.readBytes.Add(uint64(info.TransferCount))
	info.TransferredCount = info.TransferCount
	info.Status = Successful
}

func (d *ScratchDiskDevice) write(info *IOInfo) {
	d.writeCount.Add(1)
	count, ok := d.check(info, true)
	if !ok {
		return
	}

	for i := range count {
		block := make([]byte, d.blockSize)
		copy(block, info.ByteBuffer[int(i)*d.blockSize:])
		d.storage[info.BlockID+i] = block
	}
	d.writeBytes.Add(uint64(info.TransferCount))
	info.TransferredCount = info.TransferCount
	info.Status = Successful
}

func (d *ScratchDiskDevice) reset(info *IOInfo) {
	d.miscCount.Add(1)
	if !d.ready {
		info.Status = NotReady
		return
	}
	info.Status = Successful
}

func (d *ScratchDiskDevice) unload(info *IOInfo) {
	d.miscCount.Add(1)
	if !d.ready {
		info.Status = NotReady
		return
	}
	d.unmount()
	info.Status = Successful
}

func (d *ScratchDiskDevice) Dump(out io.Writer) {
	d.Base.Dump(out)
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(out, "  Mounted:%v WriteProtected:%v BlockSize:%d Blocks:%d Used:%d\n",
		d.mounted, d.writeProtected, d.blockSize, d.blockCount, len(d.storage))
}
