/*
 * S2200 - Inventory manager
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

// Package inventory creates, holds and tears down every node of a system.
// The Manager also resolves UPI numbers for the processors.
package inventory

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rcornwell/S2200/emu/channel"
	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/emu/node"
	"github.com/rcornwell/S2200/emu/processor"
)

// Processor UPI ranges and limits.
const (
	FirstSPUPI  = 0
	FirstMSPUPI = FirstSPUPI + MaxSPs
	FirstIOPUPI = FirstMSPUPI + MaxMSPs
	FirstIPUPI  = FirstIOPUPI + MaxIOPs

	MaxSPs  = 1
	MaxMSPs = 2
	MaxIOPs = 2
	MaxIPs  = 8

	MaxChannelModulesPerIOP    = 8
	MaxDevicesPerChannelModule = 32

	DefaultMSPSize = 1024 * 1024 // Words of fixed storage.
)

var (
	ErrMaxNodes     = errors.New("maximum nodes of type already configured")
	ErrUPIConflict  = errors.New("UPI already assigned")
	ErrUPIRange     = errors.New("UPI out of range for processor type")
	ErrNameConflict = errors.New("node name already in use")
	ErrInvalidIndex = errors.New("invalid channel module index")
	ErrInvalidAddr  = errors.New("invalid device address")
	ErrNoNode       = errors.New("node not found")
)

type upiRange struct {
	first  int
	count  int
	prefix string
}

var ranges = map[processor.Type]upiRange{
	processor.SP:  {FirstSPUPI, MaxSPs, "SP"},
	processor.MSP: {FirstMSPUPI, MaxMSPs, "MSP"},
	processor.IOP: {FirstIOPUPI, MaxIOPs, "IOP"},
	processor.IP:  {FirstIPUPI, MaxIPs, "IP"},
}

// Counters holds the number of nodes of each kind.
type Counters struct {
	SPs            int
	IPs            int
	IOPs           int
	MSPs           int
	ChannelModules int
	Devices        int
}

// Manager is the system context: the owner of all nodes.
type Manager struct {
	mu         sync.Mutex
	processors map[int]processor.Processor
	chmods     []*channel.ChannelModule
	devices    []device.Device
}

func New() *Manager {
	return &Manager{processors: map[int]processor.Processor{}}
}

// Check name is not used by any node. Caller holds mutex.
func (m *Manager) nameInUse(name string) bool {
	return m.findNode(name) != nil
}

// Caller holds mutex.
func (m *Manager) findNode(name string) node.Node {
	for _, p := range m.processors {
		if strings.EqualFold(p.Name(), name) {
			return p
		}
	}
	for _, cm := range m.chmods {
		if strings.EqualFold(cm.Name(), name) {
			return cm
		}
	}
	for _, dev := range m.devices {
		if strings.EqualFold(dev.Name(), name) {
			return dev
		}
	}
	return nil
}

// Find free UPI and name in range. The name follows the UPI index unless
// a node added by name already holds it, then the lowest free index is
// used. Caller holds mutex.
func (m *Manager) probe(pType processor.Type) (int, string, error) {
	r := ranges[pType]
	for i := range r.count {
		upi := r.first + i
		if _, used := m.processors[upi]; used {
			continue
		}
		name := fmt.Sprintf("%s%d", r.prefix, i)
		for j := 0; m.nameInUse(name); j++ {
			name = fmt.Sprintf("%s%d", r.prefix, j)
		}
		return upi, name, nil
	}
	return 0, "", errors.Wrapf(ErrMaxNodes, "%s", pType)
}

// Insert created processor and start it. Caller holds mutex.
func (m *Manager) insert(p processor.Processor) {
	m.processors[p.UPI()] = p
	p.Initialize()
	slog.Debug("Inventory added " + p.Name())
}

func (m *Manager) CreateSystemProcessor() (*processor.SystemProcessor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upi, name, err := m.probe(processor.SP)
	if err != nil {
		return nil, err
	}
	sp := processor.NewSystemProcessor(name, upi, m)
	m.insert(sp)
	return sp, nil
}

func (m *Manager) CreateInstructionProcessor() (*processor.InstructionProcessor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upi, name, err := m.probe(processor.IP)
	if err != nil {
		return nil, err
	}
	ip := processor.NewInstructionProcessor(name, upi, m)
	m.insert(ip)
	return ip, nil
}

func (m *Manager) CreateInputOutputProcessor() (*processor.InputOutputProcessor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upi, name, err := m.probe(processor.IOP)
	if err != nil {
		return nil, err
	}
	iop := processor.NewInputOutputProcessor(name, upi, m)
	m.insert(iop)
	return iop, nil
}

// Create MSP with fixed storage of size words, zero for default.
func (m *Manager) CreateMainStorageProcessor(size int) (*processor.MainStorageProcessor, error) {
	if size == 0 {
		size = DefaultMSPSize
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	upi, name, err := m.probe(processor.MSP)
	if err != nil {
		return nil, err
	}
	msp, err := processor.NewMainStorageProcessor(name, upi, size, m)
	if err != nil {
		return nil, err
	}
	m.insert(msp)
	return msp, nil
}

// Add a processor built by the caller. UPI and name are checked before
// anything is changed.
func (m *Manager) AddProcessor(p processor.Processor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := ranges[p.ProcessorType()]
	if !ok || p.UPI() < r.first || p.UPI() >= r.first+r.count {
		return errors.Wrapf(ErrUPIRange, "%s upi %d", p.Name(), p.UPI())
	}
	if _, used := m.processors[p.UPI()]; used {
		return errors.Wrapf(ErrUPIConflict, "%s upi %d", p.Name(), p.UPI())
	}
	if m.nameInUse(p.Name()) {
		return errors.Wrap(ErrNameConflict, p.Name())
	}
	m.insert(p)
	return nil
}

func (m *Manager) AddSystemProcessor(name string, upi int) (*processor.SystemProcessor, error) {
	sp := processor.NewSystemProcessor(name, upi, m)
	if err := m.AddProcessor(sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (m *Manager) AddInstructionProcessor(name string, upi int) (*processor.InstructionProcessor, error) {
	ip := processor.NewInstructionProcessor(name, upi, m)
	if err := m.AddProcessor(ip); err != nil {
		return nil, err
	}
	return ip, nil
}

func (m *Manager) AddInputOutputProcessor(name string, upi int) (*processor.InputOutputProcessor, error) {
	iop := processor.NewInputOutputProcessor(name, upi, m)
	if err := m.AddProcessor(iop); err != nil {
		return nil, err
	}
	return iop, nil
}

func (m *Manager) AddMainStorageProcessor(name string, upi int, size int) (*processor.MainStorageProcessor, error) {
	if size == 0 {
		size = DefaultMSPSize
	}
	msp, err := processor.NewMainStorageProcessor(name, upi, size, m)
	if err != nil {
		return nil, err
	}
	if err := m.AddProcessor(msp); err != nil {
		return nil, err
	}
	return msp, nil
}

// Stop processor and remove it.
func (m *Manager) DeleteProcessor(upi int) error {
	m.mu.Lock()
	p, ok := m.processors[upi]
	if !ok {
		m.mu.Unlock()
		return errors.Wrapf(processor.ErrUPINotAssigned, "upi %d", upi)
	}
	delete(m.processors, upi)
	m.mu.Unlock()

	node.DisconnectAll(p)
	p.Terminate()
	slog.Debug("Inventory deleted " + p.Name())
	return nil
}

// Create a channel module at index of an IOP. An empty name gives CMu-i.
func (m *Manager) CreateChannelModule(iopUPI int, index int, chType channel.Type, name string) (*channel.ChannelModule, error) {
	if index < 0 || index >= MaxChannelModulesPerIOP {
		return nil, errors.Wrapf(ErrInvalidIndex, "index %d", index)
	}
	if name == "" {
		name = fmt.Sprintf("CM%d-%d", iopUPI, index)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processors[iopUPI]
	if !ok {
		return nil, errors.Wrapf(processor.ErrUPINotAssigned, "upi %d", iopUPI)
	}
	iop, ok := p.(*processor.InputOutputProcessor)
	if !ok {
		return nil, errors.Wrapf(processor.ErrUPIProcessorType, "upi %d", iopUPI)
	}
	if m.nameInUse(name) {
		return nil, errors.Wrap(ErrNameConflict, name)
	}
	cm := channel.NewChannelModule(name, chType)
	if err := node.ConnectAt(iop, cm, index); err != nil {
		return nil, err
	}
	m.chmods = append(m.chmods, cm)
	cm.Initialize()
	slog.Debug("Inventory added " + name)
	return cm, nil
}

// Attach device to a channel module at addr.
func (m *Manager) AddDevice(dev device.Device, chmod string, addr int) error {
	if addr < 0 || addr >= MaxDevicesPerChannelModule {
		return errors.Wrapf(ErrInvalidAddr, "%s address %d", dev.Name(), addr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cm := m.channelModule(chmod)
	if cm == nil {
		return errors.Wrap(ErrNoNode, chmod)
	}
	if m.nameInUse(dev.Name()) {
		return errors.Wrap(ErrNameConflict, dev.Name())
	}
	if err := node.ConnectAt(cm, dev, addr); err != nil {
		return err
	}
	m.devices = append(m.devices, dev)
	dev.Initialize()
	slog.Debug("Inventory added " + dev.Name())
	return nil
}

func (m *Manager) AddScratchDisk(name string, chmod string, addr int) (*device.ScratchDiskDevice, error) {
	dev := device.NewScratchDisk(name)
	if err := m.AddDevice(dev, chmod, addr); err != nil {
		return nil, err
	}
	return dev, nil
}

func (m *Manager) AddRAMDisk(name string, chmod string, addr int, blockSize int, blockCount uint64) (*device.RAMDiskDevice, error) {
	dev, err := device.NewRAMDisk(name, blockSize, blockCount)
	if err != nil {
		return nil, err
	}
	if err := m.AddDevice(dev, chmod, addr); err != nil {
		return nil, err
	}
	return dev, nil
}

func (m *Manager) AddScratchTape(name string, chmod string, addr int) (*device.ScratchTapeDevice, error) {
	dev := device.NewScratchTape(name)
	if err := m.AddDevice(dev, chmod, addr); err != nil {
		return nil, err
	}
	return dev, nil
}

func (m *Manager) AddFileSystemDisk(name string, chmod string, addr int) (*device.FileSystemDiskDevice, error) {
	dev := device.NewFileSystemDisk(name)
	if err := m.AddDevice(dev, chmod, addr); err != nil {
		return nil, err
	}
	return dev, nil
}

func (m *Manager) AddFileSystemTape(name string, chmod string, addr int) (*device.FileSystemTapeDevice, error) {
	dev := device.NewFileSystemTape(name)
	if err := m.AddDevice(dev, chmod, addr); err != nil {
		return nil, err
	}
	return dev, nil
}

func (m *Manager) AddPrinter(name string, chmod string, addr int) (*device.FileSystemPrinterDevice, error) {
	dev := device.NewFileSystemPrinter(name)
	if err := m.AddDevice(dev, chmod, addr); err != nil {
		return nil, err
	}
	return dev, nil
}

// Remove everything, devices first then channel modules then processors.
func (m *Manager) ClearConfiguration() {
	m.mu.Lock()
	devices := m.devices
	chmods := m.chmods
	processors := m.sortedProcessors()
	m.devices = nil
	m.chmods = nil
	m.processors = map[int]processor.Processor{}
	m.mu.Unlock()

	for _, dev := range devices {
		node.DisconnectAll(dev)
		dev.Terminate()
	}
	for _, cm := range chmods {
		node.DisconnectAll(cm)
		cm.Terminate()
	}
	for _, p := range processors {
		node.DisconnectAll(p)
		p.Terminate()
	}
	slog.Debug("Inventory cleared")
}

// Return every node to cleared state.
func (m *Manager) ClearNodes() {
	for _, n := range m.Nodes() {
		n.Clear()
	}
}

// Processors ordered by UPI. Caller holds mutex.
func (m *Manager) sortedProcessors() []processor.Processor {
	upis := make([]int, 0, len(m.processors))
	for upi := range m.processors {
		upis = append(upis, upi)
	}
	slices.Sort(upis)
	result := make([]processor.Processor, 0, len(upis))
	for _, upi := range upis {
		result = append(result, m.processors[upi])
	}
	return result
}

// Processor at UPI.
func (m *Manager) Processor(upi int) (processor.Processor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processors[upi]
	if !ok {
		return nil, errors.Wrapf(processor.ErrUPINotAssigned, "upi %d", upi)
	}
	return p, nil
}

// Instruction processor to take broadcast interrupts: the first marked
// eligible, else the lowest UPI.
func (m *Manager) BroadcastTarget() (processor.Processor, error) {
	ips := m.InstructionProcessors()
	if len(ips) == 0 {
		return nil, processor.ErrNoInstructionProcessor
	}
	for _, ip := range ips {
		if ip.BroadcastEligible() {
			return ip, nil
		}
	}
	return ips[0], nil
}

// Typed lookup of processor at UPI.
func typed[T processor.Processor](m *Manager, upi int) (T, error) {
	var zero T
	p, err := m.Processor(upi)
	if err != nil {
		return zero, err
	}
	t, ok := p.(T)
	if !ok {
		return zero, errors.Wrapf(processor.ErrUPIProcessorType, "upi %d is %s", upi, p.ProcessorType())
	}
	return t, nil
}

func (m *Manager) MainStorageProcessor(upi int) (*processor.MainStorageProcessor, error) {
	return typed[*processor.MainStorageProcessor](m, upi)
}

func (m *Manager) SystemProcessor(upi int) (*processor.SystemProcessor, error) {
	return typed[*processor.SystemProcessor](m, upi)
}

func (m *Manager) InstructionProcessor(upi int) (*processor.InstructionProcessor, error) {
	return typed[*processor.InstructionProcessor](m, upi)
}

func (m *Manager) InputOutputProcessor(upi int) (*processor.InputOutputProcessor, error) {
	return typed[*processor.InputOutputProcessor](m, upi)
}

// All processors of type T ordered by UPI.
func list[T processor.Processor](m *Manager) []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []T{}
	for _, p := range m.sortedProcessors() {
		if t, ok := p.(T); ok {
			result = append(result, t)
		}
	}
	return result
}

func (m *Manager) SystemProcessors() []*processor.SystemProcessor {
	return list[*processor.SystemProcessor](m)
}

func (m *Manager) InstructionProcessors() []*processor.InstructionProcessor {
	return list[*processor.InstructionProcessor](m)
}

func (m *Manager) InputOutputProcessors() []*processor.InputOutputProcessor {
	return list[*processor.InputOutputProcessor](m)
}

func (m *Manager) MainStorageProcessors() []*processor.MainStorageProcessor {
	return list[*processor.MainStorageProcessor](m)
}

// All processors ordered by UPI.
func (m *Manager) Processors() []processor.Processor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedProcessors()
}

// Channel modules in order created.
func (m *Manager) ChannelModules() []*channel.ChannelModule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.chmods)
}

// Devices in order added.
func (m *Manager) Devices() []device.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.devices)
}

// Caller holds mutex.
func (m *Manager) channelModule(name string) *channel.ChannelModule {
	for _, cm := range m.chmods {
		if strings.EqualFold(cm.Name(), name) {
			return cm
		}
	}
	return nil
}

func (m *Manager) ChannelModule(name string) (*channel.ChannelModule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cm := m.channelModule(name); cm != nil {
		return cm, nil
	}
	return nil, errors.Wrap(ErrNoNode, name)
}

func (m *Manager) Device(name string) (device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dev := range m.devices {
		if strings.EqualFold(dev.Name(), name) {
			return dev, nil
		}
	}
	return nil, errors.Wrap(ErrNoNode, name)
}

// Any node by name, case ignored.
func (m *Manager) Node(name string) (node.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.findNode(name); n != nil {
		return n, nil
	}
	return nil, errors.Wrap(ErrNoNode, name)
}

// Every node, processors first.
func (m *Manager) Nodes() []node.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []node.Node{}
	for _, p := range m.sortedProcessors() {
		result = append(result, p)
	}
	for _, cm := range m.chmods {
		result = append(result, cm)
	}
	for _, dev := range m.devices {
		result = append(result, dev)
	}
	return result
}

func (m *Manager) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Counters{ChannelModules: len(m.chmods), Devices: len(m.devices)}
	for _, p := range m.processors {
		switch p.ProcessorType() {
		case processor.SP:
			c.SPs++
		case processor.IP:
			c.IPs++
		case processor.IOP:
			c.IOPs++
		case processor.MSP:
			c.MSPs++
		}
	}
	return c
}

// Dump every node.
func (m *Manager) Dump(out io.Writer) {
	for _, n := range m.Nodes() {
		n.Dump(out)
	}
}

// Check interface.
var _ processor.System = (*Manager)(nil)
