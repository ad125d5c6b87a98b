/*
 * S2200 - Configuration data bank
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

// Package cdb builds the configuration data bank, the packed description
// of the configured hardware read by the operating system at boot.
//
// The bank starts with a header of HeaderSize words:
//
//	0: bank size
//	1: words used
//	2-10: table references [count:S1][offset:H2]
//	11: configuration number
//
// Tables follow the header in reference order with no gaps. Growing a
// table moves every later table up; the bank grows but never shrinks.
package cdb

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rcornwell/S2200/emu/channel"
	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/emu/inventory"
	"github.com/rcornwell/S2200/emu/node"
	"github.com/rcornwell/S2200/emu/processor"
	"github.com/rcornwell/S2200/util/octal"
	"github.com/rcornwell/S2200/util/word36"
)

const (
	HeaderSize       = 32
	InitialSize      = 1024 // Words in new bank.
	MinimumIncrement = 1024 // Smallest growth of bank.
	MaxEntries       = 63   // Limit of count field.
)

// Header words.
const (
	SizeWord   = 0
	UsedWord   = 1
	ConfigWord = 11
)

// Table references, the header word holding the reference.
const (
	MailSlotTable Table = 2 + iota
	SPTable
	IPTable
	IOPTable
	MSPTable
	ChannelModuleTable
	DiskTable
	TapeTable
	SymbiontTable
)

const (
	firstTable = MailSlotTable
	lastTable  = SymbiontTable
)

type Table int

var tableNames = map[Table]string{
	MailSlotTable:      "MailSlot",
	SPTable:            "SP",
	IPTable:            "IP",
	IOPTable:           "IOP",
	MSPTable:           "MSP",
	ChannelModuleTable: "ChannelModule",
	DiskTable:          "Disk",
	TapeTable:          "Tape",
	SymbiontTable:      "Symbiont",
}

func (t Table) String() string {
	if n, ok := tableNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Table(%d)", int(t))
}

// Words per entry of each table.
const (
	MailSlotEntrySize      = 3
	nodeEntrySize          = 5
	SPEntrySize            = nodeEntrySize
	IPEntrySize            = nodeEntrySize
	IOPEntrySize           = nodeEntrySize + inventory.MaxChannelModulesPerIOP
	MSPEntrySize           = 7
	ChannelModuleEntrySize = nodeEntrySize + inventory.MaxDevicesPerChannelModule
	DeviceEntrySize        = nodeEntrySize
)

// Node entry state.
const (
	StateDown = 0
	StateUp   = 1
)

var (
	ErrInvalidTable = errors.New("invalid table reference")
	ErrInvalidCount = errors.New("invalid entry count")
	ErrTableFull    = errors.New("too many table entries")
)

// Size of one entry of table.
func (t Table) EntrySize() int {
	switch t {
	case MailSlotTable:
		return MailSlotEntrySize
	case SPTable:
		return SPEntrySize
	case IPTable:
		return IPEntrySize
	case IOPTable:
		return IOPEntrySize
	case MSPTable:
		return MSPEntrySize
	case ChannelModuleTable:
		return ChannelModuleEntrySize
	case DiskTable, TapeTable, SymbiontTable:
		return DeviceEntrySize
	}
	return 0
}

func (t Table) valid() bool {
	return t >= firstTable && t <= lastTable
}

// Bank is the configuration data bank.
type Bank struct {
	mu           sync.Mutex
	words        []uint64
	configNumber uint64
}

func New() *Bank {
	b := &Bank{}
	b.clear()
	return b
}

// Reset to empty tables. Caller holds mutex.
func (b *Bank) clear() {
	b.words = make([]uint64, InitialSize)
	b.words[SizeWord] = InitialSize
	b.words[UsedWord] = HeaderSize
	for t := firstTable; t <= lastTable; t++ {
		b.words[t] = HeaderSize
	}
	b.words[ConfigWord] = b.configNumber
}

func (b *Bank) Clear() {
	b.mu.Lock()
	b.clear()
	b.mu.Unlock()
}

func (b *Bank) offset(t Table) int {
	return int(word36.GetH2(b.words[t]))
}

func (b *Bank) count(t Table) int {
	return int(word36.GetS1(b.words[t]))
}

func (b *Bank) setRef(t Table, count int, offset int) {
	b.words[t] = word36.SetH2(word36.SetS1(0, uint64(count)), uint64(offset))
}

// Words used is the end of the last table. Caller holds mutex.
func (b *Bank) updateUsed() {
	b.words[UsedWord] = uint64(b.offset(lastTable) + b.count(lastTable)*lastTable.EntrySize())
}

// Grow bank by at least inc words. Caller holds mutex.
func (b *Bank) expandArray(inc int) {
	if inc <= 0 {
		return
	}
	grow := max(((inc+MinimumIncrement-1)/MinimumIncrement)*MinimumIncrement, MinimumIncrement)
	words := make([]uint64, len(b.words)+grow)
	copy(words, b.words)
	b.words = words
	b.words[SizeWord] = uint64(len(words))
}

// Add n zeroed entries to end of table. Returns offset of first new entry.
func (b *Bank) ExpandTable(t Table, n int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expandTable(t, n)
}

func (b *Bank) expandTable(t Table, n int) (int, error) {
	if !t.valid() {
		return 0, errors.Wrapf(ErrInvalidTable, "%d", int(t))
	}
	if n < 0 {
		return 0, errors.Wrapf(ErrInvalidCount, "%s %d", t, n)
	}
	count := b.count(t)
	if count+n > MaxEntries {
		return 0, errors.Wrapf(ErrTableFull, "%s %d", t, count+n)
	}

	size := n * t.EntrySize()
	end := b.offset(t) + count*t.EntrySize()
	if t < lastTable {
		next := t + 1
		if err := b.shiftTable(next, b.offset(next)+size); err != nil {
			return 0, err
		}
	} else if end+size > len(b.words) {
		b.expandArray(end + size - len(b.words))
	}
	clear(b.words[end : end+size])
	b.setRef(t, count+n, b.offset(t))
	b.updateUsed()
	return end, nil
}

// Move table up to newOffset, moving later tables first.
func (b *Bank) ShiftTable(t Table, newOffset int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shiftTable(t, newOffset)
}

func (b *Bank) shiftTable(t Table, newOffset int) error {
	if !t.valid() {
		return errors.Wrapf(ErrInvalidTable, "%d", int(t))
	}
	offset := b.offset(t)
	if offset >= newOffset {
		return nil
	}
	length := b.count(t) * t.EntrySize()
	if t < lastTable {
		next := t + 1
		if err := b.shiftTable(next, b.offset(next)+newOffset-offset); err != nil {
			return err
		}
	} else if newOffset+length > len(b.words) {
		b.expandArray(newOffset + length - len(b.words))
	}

	// Back to front, regions may overlap.
	for i := length - 1; i >= 0; i-- {
		b.words[newOffset+i] = b.words[offset+i]
	}
	b.setRef(t, b.count(t), newOffset)
	b.updateUsed()
	return nil
}

// Snapshot of bank.
func (b *Bank) Words() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint64{}, b.words...)
}

func (b *Bank) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.words)
}

func (b *Bank) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.words[UsedWord])
}

func (b *Bank) TableOffset(t Table) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offset(t)
}

func (b *Bank) TableCount(t Table) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count(t)
}

func (b *Bank) ConfigNumber() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configNumber
}

// Offset of entry with name in table.
func (b *Bank) FindEntry(t Table, name string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !t.valid() || t == MailSlotTable {
		return 0, false
	}
	want := word36.NameWords(name)
	for i := range b.count(t) {
		offset := b.offset(t) + i*t.EntrySize()
		if b.words[offset+1] == want[0] && b.words[offset+2] == want[1] {
			return offset, true
		}
	}
	return 0, false
}

func (b *Bank) FindSPEntry(name string) (int, bool) { return b.FindEntry(SPTable, name) }
func (b *Bank) FindIPEntry(name string) (int, bool) { return b.FindEntry(IPTable, name) }
func (b *Bank) FindIOPEntry(name string) (int, bool) { return b.FindEntry(IOPTable, name) }
func (b *Bank) FindMSPEntry(name string) (int, bool) { return b.FindEntry(MSPTable, name) }

func (b *Bank) FindChannelModuleEntry(name string) (int, bool) {
	return b.FindEntry(ChannelModuleTable, name)
}

// Device entry in any device table.
func (b *Bank) FindDeviceEntry(name string) (int, bool) {
	for _, t := range []Table{DiskTable, TapeTable, SymbiontTable} {
		if offset, ok := b.FindEntry(t, name); ok {
			return offset, true
		}
	}
	return 0, false
}

// Mail slot between source and destination processor.
func (b *Bank) FindMailSlotEntry(source, dest int) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.count(MailSlotTable) {
		offset := b.offset(MailSlotTable) + i*MailSlotEntrySize
		w := b.words[offset]
		if int(word36.GetH1(w)) == source && int(word36.GetH2(w)) == dest {
			return offset, true
		}
	}
	return 0, false
}

// Fill common part of a node entry. Caller holds mutex.
func (b *Bank) setNode(offset int, state, nType, model, upi uint64, name string) {
	w := word36.SetS1(0, state)
	w = word36.SetS2(w, nType)
	w = word36.SetS3(w, model)
	b.words[offset] = word36.SetT3(w, upi)
	names := word36.NameWords(name)
	b.words[offset+1] = names[0]
	b.words[offset+2] = names[1]
	b.words[offset+3] = 0
	b.words[offset+4] = 0
}

func deviceTable(dev device.Device) (Table, bool) {
	switch dev.DeviceType() {
	case device.Disk:
		return DiskTable, true
	case device.Tape:
		return TapeTable, true
	case device.Symbiont:
		return SymbiontTable, true
	}
	return 0, false
}

// Build bank from inventory. Every table is sized before any entry is
// written, so offsets stored in entries stay valid.
func (b *Bank) Populate(inv *inventory.Manager) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configNumber++
	b.clear()

	sps := inv.SystemProcessors()
	ips := inv.InstructionProcessors()
	iops := inv.InputOutputProcessors()
	msps := inv.MainStorageProcessors()
	chmods := inv.ChannelModules()
	devices := map[Table][]device.Device{}
	for _, dev := range inv.Devices() {
		if t, ok := deviceTable(dev); ok {
			devices[t] = append(devices[t], dev)
		}
	}

	counts := map[Table]int{
		MailSlotTable:      len(ips) * len(iops),
		SPTable:            len(sps),
		IPTable:            len(ips),
		IOPTable:           len(iops),
		MSPTable:           len(msps),
		ChannelModuleTable: len(chmods),
		DiskTable:          len(devices[DiskTable]),
		TapeTable:          len(devices[TapeTable]),
		SymbiontTable:      len(devices[SymbiontTable]),
	}
	for t := firstTable; t <= lastTable; t++ {
		if _, err := b.expandTable(t, counts[t]); err != nil {
			return err
		}
	}

	// Where each node's entry lives, for links.
	entries := map[node.Node]int{}
	fill := func(t Table, i int) int {
		return b.offset(t) + i*t.EntrySize()
	}

	for i, sp := range sps {
		offset := fill(SPTable, i)
		b.setNode(offset, StateUp, uint64(processor.SP), 0, uint64(sp.UPI()), sp.Name())
		entries[sp] = offset
	}
	for i, ip := range ips {
		offset := fill(IPTable, i)
		b.setNode(offset, StateUp, uint64(processor.IP), 0, uint64(ip.UPI()), ip.Name())
		entries[ip] = offset
	}
	for i, msp := range msps {
		offset := fill(MSPTable, i)
		b.setNode(offset, StateUp, uint64(processor.MSP), 0, uint64(msp.UPI()), msp.Name())
		b.words[offset+5] = uint64(msp.FixedSize()) & word36.Mask
		b.words[offset+6] = uint64(msp.SegmentCount()) & word36.Mask
		entries[msp] = offset
	}
	for t, list := range devices {
		for i, dev := range list {
			offset := fill(t, i)
			state := uint64(StateDown)
			if dev.IsReady() {
				state = StateUp
			}
			b.setNode(offset, state, uint64(dev.DeviceType()), uint64(dev.Model()), 0, dev.Name())
			entries[dev] = offset
		}
	}
	for i, cm := range chmods {
		offset := fill(ChannelModuleTable, i)
		b.setNode(offset, StateUp, uint64(cm.ChannelType()), 0, 0, cm.Name())
		for addr, dev := range cm.Links().Descendants() {
			if addr < inventory.MaxDevicesPerChannelModule {
				b.words[offset+nodeEntrySize+addr] = uint64(entries[dev])
			}
		}
		entries[cm] = offset
	}
	for i, iop := range iops {
		offset := fill(IOPTable, i)
		b.setNode(offset, StateUp, uint64(processor.IOP), 0, uint64(iop.UPI()), iop.Name())
		for index, cm := range iop.Links().Descendants() {
			if _, ok := cm.(*channel.ChannelModule); ok && index < inventory.MaxChannelModulesPerIOP {
				b.words[offset+nodeEntrySize+index] = uint64(entries[cm])
			}
		}
		entries[iop] = offset
	}

	// One mail slot for each IP and IOP pair.
	slot := 0
	for _, ip := range ips {
		for _, iop := range iops {
			offset := fill(MailSlotTable, slot)
			b.words[offset] = word36.SetH2(word36.SetH1(0, uint64(ip.UPI())), uint64(iop.UPI()))
			slot++
		}
	}
	return nil
}

// Builder lays out the bank from an inventory for the system processor.
type Builder struct {
	bank *Bank
	inv  *inventory.Manager
}

func NewBuilder(bank *Bank, inv *inventory.Manager) *Builder {
	return &Builder{bank: bank, inv: inv}
}

func (b *Builder) Build() ([]uint64, error) {
	if err := b.bank.Populate(b.inv); err != nil {
		return nil, err
	}
	b.bank.mu.Lock()
	defer b.bank.mu.Unlock()
	return append([]uint64{}, b.bank.words[:b.bank.words[UsedWord]]...), nil
}

var _ processor.ConfigBuilder = (*Builder)(nil)

func (b *Bank) Dump(out io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(out, "Configuration data bank %d Size:%d Used:%d\n", b.configNumber, len(b.words), b.words[UsedWord])
	for t := firstTable; t <= lastTable; t++ {
		fmt.Fprintf(out, "  %-14s Count:%d Offset:%o\n", t, b.count(t), b.offset(t))
	}
	for _, line := range octal.DumpWords(b.words[:b.words[UsedWord]]) {
		fmt.Fprintln(out, "  "+line)
	}
}
