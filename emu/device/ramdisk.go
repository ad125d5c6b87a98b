/*
 * S2200 - RAM disk device, word interface
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
	"os"

	"github.com/pkg/errors"

	"github.com/rcornwell/S2200/util/word36"
)

var ErrBlockSize = errors.New("block size must be a multiple of 28 words")

// RAMDiskDevice holds blocks of words in host memory. If mounted with a
// path the pack is loaded from and saved to that file.
type RAMDiskDevice struct {
	Base
	mounted        bool
	writeProtected bool
	path           string
	blockSize      int // In words.
	blockCount     uint64
	storage        map[uint64][]uint64
}

func NewRAMDisk(name string, blockSize int, blockCount uint64) (*RAMDiskDevice, error) {
	if blockSize <= 0 || (blockSize%28) != 0 {
		return nil, errors.Wrapf(ErrBlockSize, "%s size %d", name, blockSize)
	}
	return &RAMDiskDevice{
		Base:       NewBase(name, RAMDisk, Disk, false, true),
		blockSize:  blockSize,
		blockCount: blockCount,
		storage:    map[uint64][]uint64{},
	}, nil
}

func (d *RAMDiskDevice) Mount(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mounted {
		return errors.Wrap(ErrAlreadyMounted, d.Name())
	}
	d.storage = map[uint64][]uint64{}
	if path != "" {
		if err := d.load(path); err != nil {
			return err
		}
	}
	d.path = path
	d.mounted = true
	d.writeProtected = false
	return nil
}

// Load pack image. Missing file gives empty pack.
func (d *RAMDiskDevice) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "%s unable to load", d.Name())
	}
	blockBytes := d.blockSize * 9 / 2
	for id := uint64(0); int(id+1)*blockBytes <= len(data) && id < d.blockCount; id++ {
		block := make([]uint64, d.blockSize)
		word36.Unpack(data[int(id)*blockBytes:int(id+1)*blockBytes], block)
		d.storage[id] = block
	}
	return nil
}

// Save pack image up to highest written block. Caller holds mutex.
func (d *RAMDiskDevice) save() error {
	if d.path == "" {
		return nil
	}
	high := uint64(0)
	for id := range d.storage {
		high = max(high, id+1)
	}
	empty := make([]uint64, d.blockSize)
	data := make([]byte, 0, int(high)*d.blockSize*9/2)
	for id := range high {
		block, ok := d.storage[id]
		if !ok {
			block = empty
		}
		data = append(data, word36.Pack(block)...)
	}
	if err := os.WriteFile(d.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "%s unable to save", d.Name())
	}
	return nil
}

func (d *RAMDiskDevice) Unmount() {
	d.mu.Lock()
	d.unmount()
	d.mu.Unlock()
}

// Caller holds mutex.
func (d *RAMDiskDevice) unmount() {
	if d.mounted {
		if err := d.save(); err != nil {
			slog.Error(err.Error())
		}
	}
	d.setReady(false)
	d.storage = map[uint64][]uint64{}
	d.mounted = false
	d.writeProtected = true
	d.path = ""
}

func (d *RAMDiskDevice) IsMounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}

func (d *RAMDiskDevice) SetWriteProtected(state bool) {
	d.mu.Lock()
	d.writeProtected = state
	d.mu.Unlock()
}

func (d *RAMDiskDevice) SetReady(state bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state && !d.mounted {
		return false
	}
	d.setReady(state)
	return true
}

func (d *RAMDiskDevice) Terminate() {
	d.Unmount()
}

func (d *RAMDiskDevice) HandleIO(info *IOInfo) {
	d.Run(info, d.dispatch)
}

func (d *RAMDiskDevice) dispatch(info *IOInfo) {
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
		d.miscCount.Add(1)
		if !d.ready {
			info.Status = NotReady
			return
		}
		info.Status = Successful
	case Unload:
		d.miscCount.Add(1)
		if !d.ready {
			info.Status = NotReady
			return
		}
		d.unmount()
		info.Status = Successful
	default:
		d.miscCount.Add(1)
		info.Status = InvalidFunction
	}
}

func (d *RAMDiskDevice) check(info *IOInfo, write bool) (uint64, bool) {
	switch {
	case !d.ready:
		info.Status = NotReady
	case d.unitAttention:
		info.Status = UnitAttention
	case !d.mounted:
		info.Status = NotPrepped
	case write && d.writeProtected:
		info.Status = WriteProtected
	case len(info.WordBuffer) < info.TransferCount:
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

func (d *RAMDiskDevice) read(info *IOInfo) {
	d.readCount.Add(1)
	count, ok := d.check(info, false)
	if !ok {
		return
	}
	for i := range count {
		dst := info.WordBuffer[int(i)*d.blockSize : int(i+1)*d.blockSize]
		if block, ok := d.storage[info.BlockID+i]; ok {
			copy(dst, block)
		} else {
			clear(dst)
		}
	}
	d.readBytes.Add(uint64(info.TransferCount) * 4)
	info.TransferredCount = info.TransferCount
	info.Status = Successful
}

func (d *RAMDiskDevice) write(info *IOInfo) {
	d.writeCount.Add(1)
	count, ok := d.check(info, true)
	if !ok {
		return
	}
	for i := range count {
		block := make([]uint64, d.blockSize)
		for j := range block {
			block[j] = info.WordBuffer[int(i)*d.blockSize+j] & word36.Mask
		}
		d.storage[info.BlockID+i] = block
	}
	d.writeBytes.Add(uint64(info.TransferCount) * 4)
	info.TransferredCount = info.TransferCount
	info.Status = Successful
}

func (d *RAMDiskDevice) Dump(out io.Writer) {
	d.Base.Dump(out)
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(out, "  Mounted:%v Path:%s WriteProtected:%v BlockSize:%d Blocks:%d Used:%d\n",
		d.mounted, d.path, d.writeProtected, d.blockSize, d.blockCount, len(d.storage))
}
