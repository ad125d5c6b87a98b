/*
 * S2200 - Configuration models for processors, channel modules and devices
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

// Package models registers the node types which may appear in a
// configuration file. Import it for side effects.
package models

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	config "github.com/rcornwell/S2200/config/configparser"
	"github.com/rcornwell/S2200/emu/channel"
	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/emu/inventory"
	"github.com/rcornwell/S2200/emu/processor"
)

var (
	ErrUnknownOption = errors.New("unknown option")
	ErrMissingOption = errors.New("missing option")
	ErrBadNumber     = errors.New("invalid number")
)

func init() {
	config.RegisterModel("SP", config.TypeModel, createSP)
	config.RegisterModel("IP", config.TypeModel, createIP)
	config.RegisterModel("IOP", config.TypeModel, createIOP)
	config.RegisterModel("MSP", config.TypeModel, createMSP)
	config.RegisterModel("BYTECM", config.TypeModel, createByteCM)
	config.RegisterModel("WORDCM", config.TypeModel, createWordCM)
	config.RegisterModel("SCRATCHDISK", config.TypeModel, createScratchDisk)
	config.RegisterModel("RAMDISK", config.TypeModel, createRAMDisk)
	config.RegisterModel("SCRATCHTAPE", config.TypeModel, createScratchTape)
	config.RegisterModel("FSDISK", config.TypeModel, createFSDisk)
	config.RegisterModel("FSTAPE", config.TypeModel, createFSTape)
	config.RegisterModel("PRINTER", config.TypeModel, createPrinter)
}

// Collected options of a model line.
type settings struct {
	values map[string]string
	flags  map[string]bool
}

// Sort options into values and flags, rejecting any not in allowed.
func collect(name string, options []config.Option, allowed ...string) (*settings, error) {
	s := &settings{values: map[string]string{}, flags: map[string]bool{}}
	for _, opt := range options {
		key := strings.ToLower(opt.Name)
		found := false
		for _, a := range allowed {
			if a == key {
				found = true
				break
			}
		}
		if !found || len(opt.Value) != 0 {
			return nil, errors.Wrapf(ErrUnknownOption, "%s %s", name, opt.Name)
		}
		if opt.EqualOpt != "" {
			s.values[key] = opt.EqualOpt
		} else {
			s.flags[key] = true
		}
	}
	return s, nil
}

// Get numeric value. Accepts 0o, 0x and leading 0 for octal.
func (s *settings) number(key string, def int, required bool) (int, error) {
	v, ok := s.values[key]
	if !ok {
		if required {
			return 0, errors.Wrap(ErrMissingOption, key)
		}
		return def, nil
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrBadNumber, "%s=%s", key, v)
	}
	return int(n), nil
}

func (s *settings) str(key string, required bool) (string, error) {
	v, ok := s.values[key]
	if !ok && required {
		return "", errors.Wrap(ErrMissingOption, key)
	}
	return v, nil
}

func processorUPI(name string, options []config.Option, allowed ...string) (*settings, int, error) {
	s, err := collect(name, options, append(allowed, "upi")...)
	if err != nil {
		return nil, 0, err
	}
	upi, err := s.number("upi", 0, true)
	return s, upi, err
}

func createSP(inv *inventory.Manager, name string, options []config.Option) error {
	_, upi, err := processorUPI(name, options)
	if err != nil {
		return err
	}
	_, err = inv.AddSystemProcessor(name, upi)
	return err
}

func createIP(inv *inventory.Manager, name string, options []config.Option) error {
	s, upi, err := processorUPI(name, options, "broadcast")
	if err != nil {
		return err
	}
	ip, err := inv.AddInstructionProcessor(name, upi)
	if err != nil {
		return err
	}
	ip.SetBroadcastEligible(s.flags["broadcast"])
	return nil
}

func createIOP(inv *inventory.Manager, name string, options []config.Option) error {
	_, upi, err := processorUPI(name, options)
	if err != nil {
		return err
	}
	_, err = inv.AddInputOutputProcessor(name, upi)
	return err
}

func createMSP(inv *inventory.Manager, name string, options []config.Option) error {
	s, upi, err := processorUPI(name, options, "size")
	if err != nil {
		return err
	}
	size, err := s.number("size", 0, false)
	if err != nil {
		return err
	}
	_, err = inv.AddMainStorageProcessor(name, upi, size)
	return err
}

// Find IOP by UPI number or by name.
func findIOP(inv *inventory.Manager, s *settings) (int, error) {
	v, err := s.str("iop", true)
	if err != nil {
		return 0, err
	}
	if upi, err := strconv.ParseInt(v, 0, 64); err == nil {
		return int(upi), nil
	}
	n, err := inv.Node(v)
	if err != nil {
		return 0, err
	}
	p, ok := n.(processor.Processor)
	if !ok || p.ProcessorType() != processor.IOP {
		return 0, errors.Wrap(processor.ErrUPIProcessorType, v)
	}
	return p.UPI(), nil
}

func createChannelModule(inv *inventory.Manager, name string, options []config.Option, chType channel.Type) error {
	s, err := collect(name, options, "iop", "index")
	if err != nil {
		return err
	}
	upi, err := findIOP(inv, s)
	if err != nil {
		return err
	}
	index, err := s.number("index", 0, true)
	if err != nil {
		return err
	}
	_, err = inv.CreateChannelModule(upi, index, chType, name)
	return err
}

func createByteCM(inv *inventory.Manager, name string, options []config.Option) error {
	return createChannelModule(inv, name, options, channel.Byte)
}

func createWordCM(inv *inventory.Manager, name string, options []config.Option) error {
	return createChannelModule(inv, name, options, channel.Word)
}

// Options common to all devices.
var deviceOptions = []string{"chmod", "addr", "file", "mount", "ready"}

// Get channel module and address of device.
func placement(s *settings) (string, int, error) {
	chmod, err := s.str("chmod", true)
	if err != nil {
		return "", 0, err
	}
	addr, err := s.number("addr", 0, true)
	return chmod, addr, err
}

// Mount media if file given or mount flag set, then ready if asked.
func finish(dev device.Device, s *settings, needsFile bool) error {
	file := s.values["file"]
	if needsFile && s.flags["mount"] && file == "" {
		return errors.Wrap(ErrMissingOption, "file")
	}
	if m, ok := dev.(device.Mountable); ok && (file != "" || s.flags["mount"]) {
		if err := m.Mount(file); err != nil {
			return err
		}
	}
	if s.flags["ready"] && !dev.SetReady(true) {
		return errors.Errorf("%s unable to go ready", dev.Name())
	}
	return nil
}

func createScratchDisk(inv *inventory.Manager, name string, options []config.Option) error {
	s, err := collect(name, options, deviceOptions...)
	if err != nil {
		return err
	}
	chmod, addr, err := placement(s)
	if err != nil {
		return err
	}
	dev, err := inv.AddScratchDisk(name, chmod, addr)
	if err != nil {
		return err
	}
	return finish(dev, s, false)
}

func createRAMDisk(inv *inventory.Manager, name string, options []config.Option) error {
	s, err := collect(name, options, append(deviceOptions, "blocksize", "blocks")...)
	if err != nil {
		return err
	}
	chmod, addr, err := placement(s)
	if err != nil {
		return err
	}
	blockSize, err := s.number("blocksize", 1792, false)
	if err != nil {
		return err
	}
	blocks, err := s.number("blocks", 1000, false)
	if err != nil {
		return err
	}
	if blocks <= 0 {
		return errors.Wrapf(ErrBadNumber, "blocks=%d", blocks)
	}
	dev, err := inv.AddRAMDisk(name, chmod, addr, blockSize, uint64(blocks))
	if err != nil {
		return err
	}
	return finish(dev, s, false)
}

func createScratchTape(inv *inventory.Manager, name string, options []config.Option) error {
	s, err := collect(name, options, deviceOptions...)
	if err != nil {
		return err
	}
	chmod, addr, err := placement(s)
	if err != nil {
		return err
	}
	dev, err := inv.AddScratchTape(name, chmod, addr)
	if err != nil {
		return err
	}
	return finish(dev, s, false)
}

func createFSDisk(inv *inventory.Manager, name string, options []config.Option) error {
	s, err := collect(name, options, deviceOptions...)
	if err != nil {
		return err
	}
	chmod, addr, err := placement(s)
	if err != nil {
		return err
	}
	dev, err := inv.AddFileSystemDisk(name, chmod, addr)
	if err != nil {
		return err
	}
	return finish(dev, s, true)
}

func createFSTape(inv *inventory.Manager, name string, options []config.Option) error {
	s, err := collect(name, options, append(deviceOptions, "ring", "noring")...)
	if err != nil {
		return err
	}
	chmod, addr, err := placement(s)
	if err != nil {
		return err
	}
	dev, err := inv.AddFileSystemTape(name, chmod, addr)
	if err != nil {
		return err
	}
	dev.SetRing(!s.flags["noring"])
	return finish(dev, s, true)
}

func createPrinter(inv *inventory.Manager, name string, options []config.Option) error {
	s, err := collect(name, options, deviceOptions...)
	if err != nil {
		return err
	}
	chmod, addr, err := placement(s)
	if err != nil {
		return err
	}
	dev, err := inv.AddPrinter(name, chmod, addr)
	if err != nil {
		return err
	}
	return finish(dev, s, true)
}
