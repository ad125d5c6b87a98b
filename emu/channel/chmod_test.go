/*
 * S2200 - Channel module tests
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
	"io"
	"testing"
	"time"

	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/emu/node"
	"github.com/rcornwell/S2200/util/word36"
)

// Stand in for an IO processor.
type testIOP struct {
	node.Base
	done chan *ChannelProgram
}

func newTestIOP() *testIOP {
	return &testIOP{
		Base: node.NewBase("IOP0", node.Processor),
		done: make(chan *ChannelProgram, 10),
	}
}

func (p *testIOP) CanConnect(_ node.Node) bool { return false }
func (p *testIOP) Clear()                      {}
func (p *testIOP) Initialize()                 {}
func (p *testIOP) Terminate()                  {}
func (p *testIOP) Dump(out io.Writer)          { p.DumpBase(out) }

func (p *testIOP) FinalizeIO(program *ChannelProgram, _ Source) {
	p.done <- program
}

func (p *testIOP) wait(t *testing.T) *ChannelProgram {
	t.Helper()
	select {
	case cp := <-p.done:
		return cp
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for channel program")
	}
	return nil
}

type testSource struct{}

func (testSource) Name() string { return "IP0" }
func (testSource) UPI() int     { return 5 }

func acwList(n int) []AccessControlWord {
	acws := make([]AccessControlWord, n)
	for i := range acws {
		acws[i] = AccessControlWord{Modifier: AddressModifier(i % 4), UPI: 1, Segment: uint64(i), Offset: i * 100, Size: 10 + i}
	}
	return acws
}

func TestProgramLength(t *testing.T) {
	for n := range 10 {
		cp := BuildChannelProgram(5, 1, 2, device.Read, FormatC, 0o1234, acwList(n))
		if cp.Length() != 4+3*n {
			t.Errorf("Length not correct got: %d expected: %d", cp.Length(), 4+3*n)
		}
		if cp.ACWCount() != n {
			t.Errorf("ACW count not correct got: %d expected: %d", cp.ACWCount(), n)
		}
		for i, acw := range acwList(n) {
			if cp.ACW(i) != acw {
				t.Errorf("ACW %d not correct got: %v expected: %v", i, cp.ACW(i), acw)
			}
		}
	}

	cp := BuildChannelProgram(5, 1, 2, device.Write, FormatB, 0o1234, acwList(2))
	if cp.SourceUPI() != 5 || cp.ChannelModuleIndex() != 1 || cp.DeviceAddress() != 2 {
		t.Errorf("Header not correct got: %d %d %d", cp.SourceUPI(), cp.ChannelModuleIndex(), cp.DeviceAddress())
	}
	if cp.Function() != device.Write || cp.Format() != FormatB || cp.BlockID() != 0o1234 {
		t.Errorf("Header not correct got: %s %s %o", cp.Function(), cp.Format(), cp.BlockID())
	}
	if cp.CumulativeTransferWords() != 21 {
		t.Errorf("Cumulative words not correct got: %d expected: %d", cp.CumulativeTransferWords(), 21)
	}
	cp.SetChannelStatus(DeviceError)
	cp.SetDeviceStatus(device.NotReady)
	cp.SetResidualBytes(3)
	cp.SetWordsTransferred(0o777777)
	if cp.ChannelStatus() != DeviceError || cp.DeviceStatus() != device.NotReady ||
		cp.ResidualBytes() != 3 || cp.WordsTransferred() != 0o777777 {
		t.Errorf("Status fields not correct got: %s", cp)
	}
	if cp.SourceUPI() != 5 || cp.ACWCount() != 2 {
		t.Error("Status setters changed header")
	}

	if _, err := NewChannelProgram(make([]uint64, 3)); err == nil {
		t.Error("Short program accepted")
	}
	words := make([]uint64, 6)
	words[0] = word36.SetS6(0, 1)
	if _, err := NewChannelProgram(words); err == nil {
		t.Error("Program shorter than ACWs accepted")
	}
	words = append(words, 0)
	if _, err := NewChannelProgram(words); err != nil {
		t.Errorf("Program rejected: %v", err)
	}
}

func TestUnconfiguredDevice(t *testing.T) {
	iop := newTestIOP()
	cm := NewChannelModule("CM0", Byte)
	if !cm.CanConnect(iop) {
		t.Fatal("Channel module can not connect to IOP")
	}
	for _, addr := range []int{3, 5} {
		if err := node.ConnectAt(cm, device.NewScratchDisk("DISK"), addr); err != nil {
			t.Fatal(err)
		}
	}
	cp := BuildChannelProgram(5, 0, 7, device.Read, FormatA, 0, nil)
	if cm.ScheduleChannelProgram(testSource{}, iop, cp, nil) {
		t.Error("Program scheduled to missing device")
	}
	if cp.ChannelStatus() != UnconfiguredDevice {
		t.Errorf("Status not correct got: %s expected: %s", cp.ChannelStatus(), UnconfiguredDevice)
	}
	if cm.Pending() != 0 {
		t.Errorf("Tracker created got: %d", cm.Pending())
	}
}

func setupByte(t *testing.T) (*ChannelModule, *testIOP) {
	t.Helper()
	iop := newTestIOP()
	cm := NewChannelModule("CM0", Byte)
	disk := device.NewScratchDisk("DISK0")
	if err := node.ConnectAt(cm, disk, 0); err != nil {
		t.Fatal(err)
	}
	if err := disk.Mount(""); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	disk.SetReady(true)
	cm.Initialize()
	t.Cleanup(cm.Terminate)
	return cm, iop
}

func TestByteGetInfo(t *testing.T) {
	cm, iop := setupByte(t)
	buffer := make([]uint64, device.InfoWords)
	cp := BuildChannelProgram(5, 0, 0, device.GetInfo, FormatC, 0, nil)
	if !cm.ScheduleChannelProgram(testSource{}, iop, cp, buffer) {
		t.Fatal("GetInfo not scheduled")
	}
	iop.wait(t)
	if cp.ChannelStatus() != Successful {
		t.Fatalf("Status not correct got: %s", cp)
	}
	if word36.GetS2(buffer[0]) != uint64(device.ScratchDisk) {
		t.Errorf("Info model not correct got: %o", buffer[0])
	}
	if cp.WordsTransferred() != device.InfoWords {
		t.Errorf("Words not correct got: %d expected: %d", cp.WordsTransferred(), device.InfoWords)
	}
}

func TestByteWriteRead(t *testing.T) {
	cm, iop := setupByte(t)

	// Unit attention first.
	buffer := make([]uint64, 128)
	cp := BuildChannelProgram(5, 0, 0, device.Write, FormatD, 0, nil)
	cm.ScheduleChannelProgram(testSource{}, iop, cp, buffer)
	iop.wait(t)
	if cp.ChannelStatus() != DeviceError || cp.DeviceStatus() != device.UnitAttention {
		t.Errorf("Status not correct got: %s", cp)
	}
	cp = BuildChannelProgram(5, 0, 0, device.GetInfo, FormatC, 0, nil)
	cm.ScheduleChannelProgram(testSource{}, iop, cp, make([]uint64, 28))
	iop.wait(t)

	// Format D, 128 words make one block.
	for i := range buffer {
		buffer[i] = uint64(i*0o1010101) & 0o377377377377
	}
	cp = BuildChannelProgram(5, 0, 0, device.Write, FormatD, 4, nil)
	cm.ScheduleChannelProgram(testSource{}, iop, cp, buffer)
	iop.wait(t)
	if cp.ChannelStatus() != Successful || cp.WordsTransferred() != 128 || cp.ResidualBytes() != 0 {
		t.Errorf("Write not correct got: %s words: %d", cp, cp.WordsTransferred())
	}
	back := make([]uint64, 128)
	cp = BuildChannelProgram(5, 0, 0, device.Read, FormatD, 4, nil)
	cm.ScheduleChannelProgram(testSource{}, iop, cp, back)
	iop.wait(t)
	if cp.ChannelStatus() != Successful {
		t.Fatalf("Read not correct got: %s", cp)
	}
	for i := range back {
		if back[i] != buffer[i] {
			t.Errorf("Word %d not correct got: %o expected: %o", i, back[i], buffer[i])
		}
	}

	// Format C, 1024 words make nine blocks.
	buffer = make([]uint64, 1024)
	for i := range buffer {
		buffer[i] = (uint64(i) * 0o123456701) & word36.Mask
	}
	cp = BuildChannelProgram(5, 0, 0, device.Write, FormatC, 10, nil)
	cm.ScheduleChannelProgram(testSource{}, iop, cp, buffer)
	iop.wait(t)
	if cp.ChannelStatus() != Successful {
		t.Fatalf("Write not correct got: %s", cp)
	}
	back = make([]uint64, 1024)
	cp = BuildChannelProgram(5, 0, 0, device.Read, FormatC, 10, nil)
	cm.ScheduleChannelProgram(testSource{}, iop, cp, back)
	iop.wait(t)
	if cp.ChannelStatus() != Successful || cp.WordsTransferred() != 1024 {
		t.Fatalf("Read not correct got: %s words: %d", cp, cp.WordsTransferred())
	}
	for i := range back {
		if back[i] != buffer[i] {
			t.Fatalf("Word %d not correct got: %o expected: %o", i, back[i], buffer[i])
		}
	}
}

// Programs complete in the order scheduled.
func TestFIFO(t *testing.T) {
	cm, iop := setupByte(t)
	programs := []*ChannelProgram{}
	for range 5 {
		cp := BuildChannelProgram(5, 0, 0, device.Reset, FormatA, 0, nil)
		programs = append(programs, cp)
		cm.ScheduleChannelProgram(testSource{}, iop, cp, nil)
	}
	for i := range programs {
		cp := iop.wait(t)
		if cp != programs[i] {
			t.Errorf("Program %d completed out of order", i)
		}
		if cp.ChannelStatus() != Successful {
			t.Errorf("Reset status not correct got: %s", cp)
		}
	}
}

func TestWordModule(t *testing.T) {
	iop := newTestIOP()
	cm := NewChannelModule("CM1", Word)
	ram, err := device.NewRAMDisk("RAM0", 28, 16)
	if err != nil {
		t.Fatal(err)
	}
	if node.ConnectAt(cm, device.NewScratchDisk("DISK0"), 0) == nil {
		t.Error("Byte device connected to word module")
	}
	if err := node.ConnectAt(cm, ram, 1); err != nil {
		t.Fatal(err)
	}
	if err := ram.Mount(""); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	ram.SetReady(true)
	cm.Initialize()
	defer cm.Terminate()

	info := make([]uint64, 28)
	cp := BuildChannelProgram(5, 1, 1, device.GetInfo, FormatA, 0, nil)
	cm.ScheduleChannelProgram(testSource{}, iop, cp, info)
	iop.wait(t)
	if cp.ChannelStatus() != Successful || word36.GetS2(info[0]) != uint64(device.RAMDisk) {
		t.Errorf("GetInfo not correct got: %s %o", cp, info[0])
	}

	buffer := make([]uint64, 56)
	for i := range buffer {
		buffer[i] = word36.Mask - uint64(i)
	}
	cp = BuildChannelProgram(5, 1, 1, device.Write, FormatA, 3, nil)
	cm.ScheduleChannelProgram(testSource{}, iop, cp, buffer)
	iop.wait(t)
	back := make([]uint64, 56)
	cp = BuildChannelProgram(5, 1, 1, device.Read, FormatA, 3, nil)
	cm.ScheduleChannelProgram(testSource{}, iop, cp, back)
	iop.wait(t)
	if cp.ChannelStatus() != Successful || cp.WordsTransferred() != 56 {
		t.Fatalf("Read not correct got: %s", cp)
	}
	for i := range back {
		if back[i] != buffer[i] {
			t.Errorf("Word %d not correct got: %o expected: %o", i, back[i], buffer[i])
		}
	}
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		frames, words int
		format        Format
		count, res    int
	}{
		{11, 10, FormatA, 3, 3},
		{12, 10, FormatD, 3, 0},
		{13, 10, FormatB, 3, 1},
		{9, 10, FormatC, 2, 0},
		{4, 10, FormatC, 1, 5},
		{4, 1, FormatC, 1, 0},
	}
	for _, test := range tests {
		count, res := frameCount(test.frames, test.words, test.format)
		if count != test.count || res != test.res {
			t.Errorf("Format %s frames %d not correct got: %d/%d expected: %d/%d",
				test.format, test.frames, count, res, test.count, test.res)
		}
	}
}

// Disk that holds each IO until released.
type gatedDisk struct {
	*device.ScratchDiskDevice
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDisk) HandleIO(info *device.IOInfo) {
	d.entered <- struct{}{}
	<-d.release
	d.ScratchDiskDevice.HandleIO(info)
}

func TestClearCancelsQueued(t *testing.T) {
	iop := newTestIOP()
	cm := NewChannelModule("CM0", Byte)
	disk := &gatedDisk{
		ScratchDiskDevice: device.NewScratchDisk("DISK0"),
		entered:           make(chan struct{}, 1),
		release:           make(chan struct{}),
	}
	if err := node.ConnectAt(cm, disk, 0); err != nil {
		t.Fatal(err)
	}
	if err := disk.Mount(""); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	disk.SetReady(true)
	cm.Initialize()
	t.Cleanup(cm.Terminate)

	programs := make([]*ChannelProgram, 3)
	for i := range programs {
		programs[i] = BuildChannelProgram(5, 0, 0, device.GetInfo, FormatC, 0, nil)
	}
	if !cm.ScheduleChannelProgram(testSource{}, iop, programs[0], make([]uint64, device.InfoWords)) {
		t.Fatal("First program not scheduled")
	}
	select {
	case <-disk.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Device never started")
	}
	for _, cp := range programs[1:] {
		if !cm.ScheduleChannelProgram(testSource{}, iop, cp, make([]uint64, device.InfoWords)) {
			t.Fatal("Program not scheduled")
		}
	}

	// Dump walks the queue while the worker holds the device.
	dumped := make(chan struct{})
	go func() {
		defer close(dumped)
		for range 50 {
			cm.Dump(io.Discard)
		}
	}()

	cm.Clear()
	for _, exp := range programs[1:] {
		cp := iop.wait(t)
		if cp != exp {
			t.Errorf("Cancelled program out of order got: %s expected: %s", cp, exp)
		}
		if cp.ChannelStatus() != Cancelled {
			t.Errorf("Status not correct got: %s expected: %s", cp.ChannelStatus(), Cancelled)
		}
	}
	if cm.Pending() != 1 {
		t.Errorf("Started program not kept got: %d expected: %d", cm.Pending(), 1)
	}

	<-dumped
	close(disk.release)
	cp := iop.wait(t)
	if cp != programs[0] || cp.ChannelStatus() != Successful {
		t.Errorf("Started program not completed got: %s", cp)
	}

	// Each program finalized exactly once.
	select {
	case cp := <-iop.done:
		t.Errorf("Extra completion for %s", cp)
	case <-time.After(200 * time.Millisecond):
	}
	if cm.Pending() != 0 {
		t.Errorf("Trackers left got: %d", cm.Pending())
	}
}
