/*
 * S2200 - RAM disk and printer tests
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
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRAMDisk(t *testing.T) {
	if _, err := NewRAMDisk("ram0", 30, 10); !errors.Is(err, ErrBlockSize) {
		t.Errorf("Bad block size accepted got: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ram.pack")
	d, err := NewRAMDisk("ram0", 28, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Mount(path); err != nil {
		t.Fatal(err)
	}
	d.SetReady(true)

	words := make([]uint64, 56)
	for i := range words {
		words[i] = uint64(i) | 0o400000000000
	}
	info := &IOInfo{Function: Write, WordBuffer: words, TransferCount: 56, BlockID: 2}
	d.HandleIO(info)
	if info.Status != UnitAttention {
		t.Errorf("Write status not correct got: %s expected: %s", info.Status, UnitAttention)
	}

	info = &IOInfo{Function: GetInfo, WordBuffer: make([]uint64, 28)}
	d.HandleIO(info)
	if info.Status != Successful || info.WordBuffer[6] != 28 {
		t.Errorf("GetInfo not correct got: %s %d", info.Status, info.WordBuffer[6])
	}

	info = &IOInfo{Function: Write, WordBuffer: words, TransferCount: 56, BlockID: 2}
	d.HandleIO(info)
	if info.Status != Successful {
		t.Fatalf("Write status not correct got: %s", info.Status)
	}
	info = &IOInfo{Function: Write, WordBuffer: words, TransferCount: 56, BlockID: 9}
	d.HandleIO(info)
	if info.Status != InvalidBlockCount {
		t.Errorf("Status not correct got: %s expected: %s", info.Status, InvalidBlockCount)
	}

	// Save and reload pack.
	d.Unmount()
	if err := d.Mount(path); err != nil {
		t.Fatal(err)
	}
	d.SetReady(true)
	d.HandleIO(&IOInfo{Function: GetInfo, WordBuffer: make([]uint64, 28)})
	back := make([]uint64, 84)
	info = &IOInfo{Function: Read, WordBuffer: back, TransferCount: 84, BlockID: 1}
	d.HandleIO(info)
	if info.Status != Successful {
		t.Fatalf("Read status not correct got: %s", info.Status)
	}
	for i := range 28 {
		if back[i] != 0 {
			t.Errorf("Unwritten word %d not zero got: %o", i, back[i])
		}
	}
	for i := range words {
		if back[28+i] != words[i] {
			t.Errorf("Word %d not correct got: %o expected: %o", i, back[28+i], words[i])
		}
	}
}

func TestPrinter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "print.txt")
	d := NewFileSystemPrinter("prt0")
	if d.SetReady(true) {
		t.Error("Printer ready without file")
	}
	if err := d.Mount(path); err != nil {
		t.Fatal(err)
	}
	d.SetReady(true)
	d.HandleIO(&IOInfo{Function: GetInfo})

	for _, line := range []string{"HELLO", "WORLD"} {
		info := &IOInfo{Function: Write, ByteBuffer: []byte(line), TransferCount: len(line)}
		d.HandleIO(info)
		if info.Status != Successful {
			t.Errorf("Write status not correct got: %s", info.Status)
		}
	}
	info := &IOInfo{Function: Read, ByteBuffer: make([]byte, 10), TransferCount: 10}
	d.HandleIO(info)
	if info.Status != InvalidFunction {
		t.Errorf("Read status not correct got: %s expected: %s", info.Status, InvalidFunction)
	}
	d.Unmount()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "HELLO\nWORLD\n" {
		t.Errorf("Printer output not correct got: %q", string(data))
	}
}
