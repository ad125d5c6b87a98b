/*
 * S2200 - Host file tape device
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

// FileSystemTapeDevice keeps volumes as SIMH tape images on the host.
type FileSystemTapeDevice struct {
	tapeUnit
	ring bool // Mount with write ring.
	path string
}

func NewFileSystemTape(name string) *FileSystemTapeDevice {
	return &FileSystemTapeDevice{
		tapeUnit: tapeUnit{Base: NewBase(name, FileSystemTape, Tape, true, false)},
		ring:     true,
	}
}

// Select whether next mount has a write ring.
func (d *FileSystemTapeDevice) SetRing(ring bool) {
	d.mu.Lock()
	d.ring = ring
	d.mu.Unlock()
}

// Mount tape image, created if it does not exist and ring is set.
func (d *FileSystemTapeDevice) Mount(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.medium != nil {
		return errors.Wrap(ErrAlreadyMounted, d.Name())
	}
	ctx := tape.NewTapeContext()
	if err := ctx.Attach(path, d.ring); err != nil {
		return errors.Wrap(err, d.Name())
	}
	d.path = path
	d.attach(ctx, func() { _ = ctx.Detach() }, !d.ring)
	return nil
}

func (d *FileSystemTapeDevice) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}
