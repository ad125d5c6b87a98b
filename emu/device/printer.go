/*
 * S2200 - Host file printer device
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
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// FileSystemPrinterDevice appends each line written to a host file.
type FileSystemPrinterDevice struct {
	Base
	file  *os.File
	out   *bufio.Writer
	path  string
	lines uint64
}

func NewFileSystemPrinter(name string) *FileSystemPrinterDevice {
	return &FileSystemPrinterDevice{
		Base: NewBase(name, FileSystemPrinter, Symbiont, true, false),
	}
}

// Attach output file, appending if it exists.
func (d *FileSystemPrinterDevice) Mount(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file != nil {
		return errors.Wrap(ErrAlreadyMounted, d.Name())
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "%s attach", d.Name())
	}
	d.file = file
	d.out = bufio.NewWriter(file)
	d.path = path
	return nil
}

func (d *FileSystemPrinterDevice) Unmount() {
	d.mu.Lock()
	d.unmount()
	d.mu.Unlock()
}

// Caller holds mutex.
func (d *FileSystemPrinterDevice) unmount() {
	d.setReady(false)
	if d.file != nil {
		if err := d.out.Flush(); err != nil {
			d.logError(err)
		}
		d.file.Close()
	}
	d.file = nil
	d.out = nil
	d.path = ""
}

func (d *FileSystemPrinterDevice) IsMounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file != nil
}

func (d *FileSystemPrinterDevice) SetReady(state bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state && d.file == nil {
		return false
	}
	d.setReady(state)
	return true
}

func (d *FileSystemPrinterDevice) Terminate() {
	d.Unmount()
}

func (d *FileSystemPrinterDevice) HandleIO(info *IOInfo) {
	d.Run(info, d.dispatch)
}

func (d *FileSystemPrinterDevice) dispatch(info *IOInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch info.Function {
	case GetInfo:
		d.getInfo(info, d.lines)
	case Reset:
		d.miscCount.Add(1)
		if !d.ready {
			info.Status = NotReady
			return
		}
		if err := d.out.Flush(); err != nil {
			d.logError(err)
			info.Status = SystemException
			return
		}
		info.Status = Successful
	case Write:
		d.writeCount.Add(1)
		d.write(info)
	default:
		d.miscCount.Add(1)
		info.Status = InvalidFunction
	}
}

func (d *FileSystemPrinterDevice) write(info *IOInfo) {
	switch {
	case !d.ready:
		info.Status = NotReady
		return
	case d.unitAttention:
		info.Status = UnitAttention
		return
	case len(info.ByteBuffer) < info.TransferCount:
		info.Status = BufferTooSmall
		return
	}
	d.out.Write(info.ByteBuffer[:info.TransferCount])
	if err := d.out.WriteByte('\n'); err != nil {
		d.logError(err)
		info.Status = SystemException
		return
	}
	d.lines++
	d.writeBytes.Add(uint64(info.TransferCount))
	info.TransferredCount = info.TransferCount
	info.Status = Successful
}

func (d *FileSystemPrinterDevice) Dump(out io.Writer) {
	d.Base.Dump(out)
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(out, "  Path:%s Lines:%d\n", d.path, d.lines)
}
