/*
 * S2200 - Host file disk device
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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Pack geometry is kept in a scratch pad in the first block of the file.
// Logical block n starts at byte (n+1) * blockSize.
const (
	scratchPadID    = "**FSDD**"
	scratchPadMajor = 1
	scratchPadMinor = 1
)

var (
	ErrNotPack          = errors.New("file is not a disk pack")
	ErrInvalidBlockSize = errors.New("invalid pack block size")
)

type scratchPad struct {
	major      uint16
	minor      uint16
	prepFactor uint32 // Words per block.
	blockSize  uint32 // Bytes per block.
	blockCount uint64
}

func (sp *scratchPad) encode(blockSize int) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(scratchPadID)))
	buf.WriteString(scratchPadID)
	_ = binary.Write(&buf, binary.BigEndian, sp.major)
	_ = binary.Write(&buf, binary.BigEndian, sp.minor)
	_ = binary.Write(&buf, binary.BigEndian, sp.prepFactor)
	_ = binary.Write(&buf, binary.BigEndian, sp.blockSize)
	_ = binary.Write(&buf, binary.BigEndian, sp.blockCount)
	block := make([]byte, blockSize)
	copy(block, buf.Bytes())
	return block
}

func decodeScratchPad(data []byte) (*scratchPad, error) {
	rd := bytes.NewReader(data)
	var idLen uint32
	if err := binary.Read(rd, binary.BigEndian, &idLen); err != nil || idLen != uint32(len(scratchPadID)) {
		return nil, ErrNotPack
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(rd, id); err != nil || string(id) != scratchPadID {
		return nil, ErrNotPack
	}
	sp := &scratchPad{}
	for _, field := range []any{&sp.major, &sp.minor, &sp.prepFactor, &sp.blockSize, &sp.blockCount} {
		if err := binary.Read(rd, binary.BigEndian, field); err != nil {
			return nil, ErrNotPack
		}
	}
	if sp.major != scratchPadMajor || sp.minor != scratchPadMinor {
		return nil, errors.Wrapf(ErrNotPack, "version %d.%d", sp.major, sp.minor)
	}
	if !validBlockSize(int(sp.blockSize)) {
		return nil, errors.Wrapf(ErrInvalidBlockSize, "%d", sp.blockSize)
	}
	return sp, nil
}

// Block sizes are powers of two from 128 to 8192 bytes.
func validBlockSize(size int) bool {
	for s := 128; s <= 8192; s <<= 1 {
		if s == size {
			return true
		}
	}
	return false
}

// Create a host file which can be mounted as a pack.
func PrepPack(path string, blockSize int, blockCount uint64) error {
	if !validBlockSize(blockSize) {
		return errors.Wrapf(ErrInvalidBlockSize, "%d", blockSize)
	}
	sp := scratchPad{
		major:      scratchPadMajor,
		minor:      scratchPadMinor,
		prepFactor: uint32(blockSize / 128 * 28),
		blockSize:  uint32(blockSize),
		blockCount: blockCount,
	}
	if err := os.WriteFile(path, sp.encode(blockSize), 0o644); err != nil {
		return errors.Wrapf(err, "prep %s", path)
	}
	return nil
}

// FileSystemDiskDevice keeps a pack in a host file.
type FileSystemDiskDevice struct {
	Base
	file           *os.File
	path           string
	writeProtected bool
	pad            *scratchPad
}

func NewFileSystemDisk(name string) *FileSystemDiskDevice {
	return &FileSystemDiskDevice{
		Base:           NewBase(name, FileSystemDisk, Disk, true, false),
		writeProtected: true,
	}
}

func (d *FileSystemDiskDevice) Mount(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file != nil {
		return errors.Wrap(ErrAlreadyMounted, d.Name())
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrapf(err, "%s mount", d.Name())
	}
	head := make([]byte, 128)
	if _, err := io.ReadFull(file, head); err != nil {
		file.Close()
		return errors.Wrapf(ErrNotPack, "%s %s", d.Name(), path)
	}
	pad, err := decodeScratchPad(head)
	if err != nil {
		file.Close()
		return errors.Wrapf(err, "%s %s", d.Name(), path)
	}
	d.file = file
	d.path = path
	d.pad = pad
	d.writeProtected = false
	return nil
}

func (d *FileSystemDiskDevice) Unmount() {
	d.mu.Lock()
	d.unmount()
	d.mu.Unlock()
}

// Caller holds mutex.
func (d *FileSystemDiskDevice) unmount() {
	d.setReady(false)
	if d.file != nil {
		d.file.Close()
	}
	d.file = nil
	d.pad = nil
	d.path = ""
	d.writeProtected = true
}

func (d *FileSystemDiskDevice) IsMounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file != nil
}

func (d *FileSystemDiskDevice) SetWriteProtected(state bool) {
	d.mu.Lock()
	d.writeProtected = state
	d.mu.Unlock()
}

func (d *FileSystemDiskDevice) SetReady(state bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state && d.file == nil {
		return false
	}
	d.setReady(state)
	return true
}

func (d *FileSystemDiskDevice) Terminate() {
	d.Unmount()
}

func (d *FileSystemDiskDevice) HandleIO(info *IOInfo) {
	d.Run(info, d.dispatch)
}

func (d *FileSystemDiskDevice) dispatch(info *IOInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch info.Function {
	case GetInfo:
		if d.pad != nil {
			d.getInfo(info, uint64(d.pad.blockSize), d.pad.blockCount, uint64(d.pad.prepFactor))
		} else {
			d.getInfo(info)
		}
	case Read:
		d.readCount.Add(1)
		d.transfer(info, false)
	case Write:
		d.writeCount.Add(1)
		d.transfer(info, true)
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

func (d *FileSystemDiskDevice) transfer(info *IOInfo, write bool) {
	switch {
	case !d.ready:
		info.Status = NotReady
		return
	case d.unitAttention:
		info.Status = UnitAttention
		return
	case d.pad == nil:
		info.Status = NotPrepped
		return
	case write && d.writeProtected:
		info.Status = WriteProtected
		return
	case len(info.ByteBuffer) < info.TransferCount:
		info.Status = BufferTooSmall
		return
	}
	blockSize := int(d.pad.blockSize)
	switch {
	case info.TransferCount%blockSize != 0:
		info.Status = InvalidBlockSize
		return
	case info.BlockID >= d.pad.blockCount:
		info.Status = InvalidBlockID
		return
	case info.BlockID+uint64(info.TransferCount/blockSize) > d.pad.blockCount:
		info.Status = InvalidBlockCount
		return
	}

	offset := int64(info.BlockID+1) * int64(blockSize)
	data := info.ByteBuffer[:info.TransferCount]
	if write {
		if _, err := d.file.WriteAt(data, offset); err != nil {
			d.hostError(info, err)
			return
		}
		d.writeBytes.Add(uint64(len(data)))
	} else {
		n, err := d.file.ReadAt(data, offset)
		if err != nil && !errors.Is(err, io.EOF) {
			d.hostError(info, err)
			return
		}
		// Blocks never written read as zeros.
		clear(data[n:])
		d.readBytes.Add(uint64(len(data)))
	}
	info.TransferredCount = info.TransferCount
	info.Status = Successful
}

func (d *FileSystemDiskDevice) hostError(info *IOInfo, err error) {
	d.logError(err)
	info.Status = SystemException
}

func (d *FileSystemDiskDevice) Dump(out io.Writer) {
	d.Base.Dump(out)
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(out, "  Path:%s WriteProtected:%v", d.path, d.writeProtected)
	if d.pad != nil {
		fmt.Fprintf(out, " BlockSize:%d Blocks:%d PrepFactor:%d", d.pad.blockSize, d.pad.blockCount, d.pad.prepFactor)
	}
	fmt.Fprintln(out)
}
