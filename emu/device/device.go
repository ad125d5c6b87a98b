/*
 * S2200 - Device common support
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
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rcornwell/S2200/emu/node"
	"github.com/rcornwell/S2200/util/debug"
	"github.com/rcornwell/S2200/util/octal"
	"github.com/rcornwell/S2200/util/word36"
)

type Model int

// Device models.
const (
	ModelNone         Model = 0
	FileSystemDisk    Model = 1
	FileSystemPrinter Model = 2
	FileSystemPunch   Model = 3
	FileSystemReader  Model = 4
	FileSystemTape    Model = 5
	RAMDisk           Model = 6
	ScratchDisk       Model = 0o76
	ScratchTape       Model = 0o77
)

var modelNames = map[Model]string{
	ModelNone:         "None",
	FileSystemDisk:    "FileSystemDisk",
	FileSystemPrinter: "FileSystemPrinter",
	FileSystemPunch:   "FileSystemPunch",
	FileSystemReader:  "FileSystemReader",
	FileSystemTape:    "FileSystemTape",
	RAMDisk:           "RAMDisk",
	ScratchDisk:       "ScratchDisk",
	ScratchTape:       "ScratchTape",
}

func (m Model) String() string {
	if s, ok := modelNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Model(%o)", int(m))
}

type Type int

// Device types.
const (
	TypeNone Type = 0
	Disk     Type = 1
	Symbiont Type = 2
	Tape     Type = 3
)

func (t Type) String() string {
	switch t {
	case Disk:
		return "Disk"
	case Symbiont:
		return "Symbiont"
	case Tape:
		return "Tape"
	}
	return "None"
}

type Function int

// IO functions.
const (
	None              Function = 0
	Close             Function = 1
	GetInfo           Function = 2
	MoveBlock         Function = 3
	MoveBlockBackward Function = 4
	MoveFile          Function = 5
	MoveFileBackward  Function = 6
	Read              Function = 7
	ReadBackward      Function = 8
	Reset             Function = 9
	Rewind            Function = 10
	RewindInterlock   Function = 11
	SetMode           Function = 12
	Unload            Function = 13
	Write             Function = 14
	WriteEndOfFile    Function = 15
)

var functionNames = []string{
	"None", "Close", "GetInfo", "MoveBlock", "MoveBlockBackward", "MoveFile",
	"MoveFileBackward", "Read", "ReadBackward", "Reset", "Rewind",
	"RewindInterlock", "SetMode", "Unload", "Write", "WriteEndOfFile",
}

func (f Function) String() string {
	if f >= 0 && int(f) < len(functionNames) {
		return functionNames[f]
	}
	return fmt.Sprintf("Function(%d)", int(f))
}

// Function transfers data from device.
func (f Function) IsRead() bool {
	return f == Read || f == ReadBackward
}

// Function transfers data to device.
func (f Function) IsWrite() bool {
	return f == Write || f == WriteEndOfFile
}

// Function needs a data buffer.
func (f Function) RequiresBuffer() bool {
	return f == GetInfo || f == Read || f == ReadBackward || f == Write
}

type Status int

// IO status codes.
const (
	Successful          Status = 0
	BufferTooSmall      Status = 1
	DeviceBusy          Status = 2
	EndOfTape           Status = 3
	FileMark            Status = 4
	InvalidBlockCount   Status = 5
	InvalidBlockID      Status = 6
	InvalidBlockSize    Status = 7
	InvalidFunction     Status = 0o10
	InvalidMode         Status = 0o11
	InvalidTransferSize Status = 0o12
	LostPosition        Status = 0o13
	MediaError          Status = 0o14
	NoInput             Status = 0o15
	NotPrepped          Status = 0o16
	NotReady            Status = 0o17
	QueueFull           Status = 0o20
	SystemException     Status = 0o21
	UnitAttention       Status = 0o22
	WriteProtected      Status = 0o23
	InProgress          Status = 0o40
	InvalidStatus       Status = 0o77
)

var statusNames = map[Status]string{
	Successful:          "Successful",
	BufferTooSmall:      "BufferTooSmall",
	DeviceBusy:          "DeviceBusy",
	EndOfTape:           "EndOfTape",
	FileMark:            "FileMark",
	InvalidBlockCount:   "InvalidBlockCount",
	InvalidBlockID:      "InvalidBlockId",
	InvalidBlockSize:    "InvalidBlockSize",
	InvalidFunction:     "InvalidFunction",
	InvalidMode:         "InvalidMode",
	InvalidTransferSize: "InvalidTransferSize",
	LostPosition:        "LostPosition",
	MediaError:          "MediaError",
	NoInput:             "NoInput",
	NotPrepped:          "NotPrepped",
	NotReady:            "NotReady",
	QueueFull:           "QueueFull",
	SystemException:     "SystemException",
	UnitAttention:       "UnitAttention",
	WriteProtected:      "WriteProtected",
	InProgress:          "InProgress",
	InvalidStatus:       "InvalidStatus",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%o)", int(s))
}

// Number of words in the GetInfo block.
const InfoWords = 28

// Size of byte buffer holding the GetInfo block.
const InfoBytes = 128

// Signaler is called when a device finishes an IO.
type Signaler interface {
	Signal()
}

// Host is implemented by channel modules so devices can check they speak
// the same interface.
type Host interface {
	ByteInterface() bool
}

// IOInfo describes one request made of a device.
type IOInfo struct {
	Source           Signaler
	Function         Function
	ByteBuffer       []byte
	WordBuffer       []uint64
	TransferCount    int    // Bytes or words requested.
	BlockID          uint64 // Starting block for disks.
	Status           Status
	TransferredCount int // Bytes or words moved.
}

func (info *IOInfo) String() string {
	return fmt.Sprintf("func:%s count:%d block:%d status:%s transferred:%d",
		info.Function, info.TransferCount, info.BlockID, info.Status, info.TransferredCount)
}

// Device is a peripheral attached to a channel module.
type Device interface {
	node.Node
	Model() Model
	DeviceType() Type
	HandleIO(info *IOInfo)
	HasByteInterface() bool
	HasWordInterface() bool
	WriteBuffersToLog(info *IOInfo)
	SetReady(state bool) bool
	IsReady() bool
	UnitAttention() bool
	Debug(opt string) error
}

// Mountable devices accept media from the operator.
type Mountable interface {
	Mount(path string) error
	Unmount()
	IsMounted() bool
}

// Base holds state common to all devices. The mutex guards the flags and
// any variant state; counters are atomic.
type Base struct {
	node.Base
	model         Model
	devType       Type
	byteIntf      bool
	wordIntf      bool
	mu            sync.Mutex
	ready         bool
	unitAttention bool
	miscCount     atomic.Uint64
	readCount     atomic.Uint64
	writeCount    atomic.Uint64
	readBytes     atomic.Uint64
	writeBytes    atomic.Uint64
	debugMsk      int
}

func NewBase(name string, model Model, devType Type, byteIntf, wordIntf bool) Base {
	return Base{
		Base:     node.NewBase(name, node.Device),
		model:    model,
		devType:  devType,
		byteIntf: byteIntf,
		wordIntf: wordIntf,
	}
}

func (b *Base) Model() Model {
	return b.model
}

func (b *Base) DeviceType() Type {
	return b.devType
}

func (b *Base) HasByteInterface() bool {
	return b.byteIntf
}

func (b *Base) HasWordInterface() bool {
	return b.wordIntf
}

// Devices may only hang off a channel module of matching interface.
func (b *Base) CanConnect(ancestor node.Node) bool {
	if ancestor.Category() != node.ChannelModule {
		return false
	}
	host, ok := ancestor.(Host)
	if !ok {
		return false
	}
	if host.ByteInterface() {
		return b.byteIntf
	}
	return b.wordIntf
}

func (b *Base) Clear() {
	b.miscCount.Store(0)
	b.readCount.Store(0)
	b.writeCount.Store(0)
	b.readBytes.Store(0)
	b.writeBytes.Store(0)
}

func (b *Base) Initialize() {}

func (b *Base) Terminate() {}

func (b *Base) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *Base) UnitAttention() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unitAttention
}

// Set ready state, unit attention follows it.
func (b *Base) SetReady(state bool) bool {
	b.mu.Lock()
	b.setReady(state)
	b.mu.Unlock()
	return true
}

// Caller holds mutex.
func (b *Base) setReady(state bool) {
	debug.Debugf(b.Name(), b.debugMsk, debug.Detail, "ready %v", state)
	b.ready = state
	b.unitAttention = state
}

// Enable debug option.
func (b *Base) Debug(opt string) error {
	bit, err := debug.Option(opt)
	if err != nil {
		return err
	}
	b.debugMsk |= bit
	return nil
}

func (b *Base) Dump(out io.Writer) {
	b.DumpBase(out)
	b.mu.Lock()
	ready := b.ready
	ua := b.unitAttention
	b.mu.Unlock()
	fmt.Fprintf(out, "  Model:%s Type:%s Ready:%v UnitAttention:%v\n", b.model, b.devType, ready, ua)
	fmt.Fprintf(out, "  Misc:%d Reads:%d Writes:%d ReadBytes:%d WriteBytes:%d\n",
		b.miscCount.Load(), b.readCount.Load(), b.writeCount.Load(),
		b.readBytes.Load(), b.writeBytes.Load())
}

// Build the GetInfo block. Caller holds mutex.
func (b *Base) infoBlock(extension ...uint64) []uint64 {
	block := make([]uint64, InfoWords)
	if b.ready {
		block[0] = word36.SetS1(block[0], 0o40)
	}
	block[0] = word36.SetS2(block[0], uint64(b.model))
	block[0] = word36.SetS3(block[0], uint64(b.devType))
	block[1] = b.miscCount.Load() & word36.Mask
	block[2] = b.readCount.Load() & word36.Mask
	block[3] = b.writeCount.Load() & word36.Mask
	block[4] = b.readBytes.Load() & word36.Mask
	block[5] = b.writeBytes.Load() & word36.Mask
	for i, w := range extension {
		if 6+i >= InfoWords {
			break
		}
		block[6+i] = w & word36.Mask
	}
	return block
}

// Return the GetInfo block.
func (b *Base) InfoBlock() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.infoBlock()
}

// Handle GetInfo function. Caller holds mutex.
func (b *Base) getInfo(info *IOInfo, extension ...uint64) {
	b.miscCount.Add(1)
	block := b.infoBlock(extension...)
	if b.byteIntf {
		if len(info.ByteBuffer) < InfoBytes {
			info.ByteBuffer = make([]byte, InfoBytes)
		}
		copy(info.ByteBuffer, word36.Pack(block))
		info.TransferredCount = InfoBytes
	} else {
		if len(info.WordBuffer) < InfoWords {
			info.Status = BufferTooSmall
			return
		}
		copy(info.WordBuffer, block)
		info.TransferredCount = InfoWords
	}
	b.unitAttention = false
	info.Status = Successful
}

// Start of every IO.
func (b *Base) IOStart(info *IOInfo) {
	debug.Debugf(b.Name(), b.debugMsk, debug.Cmd, "start %s", info)
	if info.Function.IsWrite() {
		b.WriteBuffersToLog(info)
	}
}

// End of every IO, signals the requester.
func (b *Base) IOEnd(info *IOInfo) {
	if info.Status != Successful && info.Status != NoInput {
		slog.Error(b.Name() + " IO error " + info.String())
	}
	debug.Debugf(b.Name(), b.debugMsk, debug.Cmd, "end %s", info)
	if info.Function.IsRead() && info.Status == Successful {
		b.WriteBuffersToLog(info)
	}
	if info.Source != nil {
		info.Source.Signal()
	}
}

// Dump buffers to debug log.
func (b *Base) WriteBuffersToLog(info *IOInfo) {
	if (b.debugMsk & debug.Data) == 0 {
		return
	}
	if info.ByteBuffer != nil {
		data := info.ByteBuffer
		if info.TransferCount > 0 && info.TransferCount < len(data) {
			data = data[:info.TransferCount]
		}
		debug.DebugLines(b.Name(), b.debugMsk, debug.Data, octal.DumpBytes(data))
	}
	if info.WordBuffer != nil {
		words := info.WordBuffer
		if info.TransferCount > 0 && info.TransferCount < len(words) {
			words = words[:info.TransferCount]
		}
		debug.DebugLines(b.Name(), b.debugMsk, debug.Data, octal.DumpWords(words))
	}
}

// Run handler between IOStart and IOEnd. A panic in the handler becomes
// a SystemException status.
func (b *Base) Run(info *IOInfo, handler func(info *IOInfo)) {
	b.IOStart(info)
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error(b.Name()+" exception handling IO", "function", info.Function.String(), "error", fmt.Sprint(r))
				info.Status = SystemException
			}
		}()
		handler(info)
	}()
	b.IOEnd(info)
}

// Format flags for show commands.
func (b *Base) StatusString() string {
	var str strings.Builder
	b.mu.Lock()
	defer b.mu.Unlock()
	str.WriteString(b.Name())
	str.WriteString(" " + b.model.String())
	if b.ready {
		str.WriteString(" READY")
	} else {
		str.WriteString(" NOT-READY")
	}
	if b.unitAttention {
		str.WriteString(" UA")
	}
	return str.String()
}

func (b *Base) logError(err error) {
	slog.Error(b.Name() + " " + err.Error())
}
