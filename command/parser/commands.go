/*
 * S2200 - Operator commands
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

package parser

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/pkg/errors"
	command "github.com/rcornwell/S2200/command/command"
	"github.com/rcornwell/S2200/emu/cdb"
	"github.com/rcornwell/S2200/emu/channel"
	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/emu/processor"
	"github.com/rcornwell/S2200/util/octal"
	"github.com/rcornwell/S2200/util/word36"
)

var ErrNoSP = errors.New("no system processor configured")

var cmdList []cmd

func init() {
	cmdList = []cmd{
		{Name: "show", Min: 2, Process: show, Complete: showComplete,
			Help: "show inventory|node <name>|cdb|counters|log [n]|console|jump"},
		{Name: "dump", Min: 2, Process: dump, Complete: nodeComplete, Help: "dump <node>|all"},
		{Name: "ready", Min: 3, Process: ready, Complete: readyComplete, Help: "ready <device> on|off"},
		{Name: "mount", Min: 2, Process: mount, Complete: mountComplete,
			Help: "mount <device> [file] [ring|noring] [ready]"},
		{Name: "unload", Min: 2, Process: unload, Complete: deviceComplete, Help: "unload <device>"},
		{Name: "jump", Min: 1, Process: jump, Help: "jump [<n> on|off]"},
		{Name: "input", Min: 2, Process: input, Help: "input <text>"},
		{Name: "reply", Min: 3, Process: reply, Help: "reply <id> <text>"},
		{Name: "examine", Min: 2, Process: examine, Complete: nodeComplete, Help: "examine <msp> <seg>:<off>[-<end>]"},
		{Name: "deposit", Min: 2, Process: deposit, Complete: nodeComplete, Help: "deposit <msp> <seg>:<off> <octal>..."},
		{Name: "build", Min: 2, Process: build, Help: "build [<msp upi>]"},
		{Name: "clear", Min: 2, Process: clearNodes, Help: "clear"},
		{Name: "help", Min: 1, Process: help, Help: "help"},
		{Name: "quit", Min: 4, Process: quit, Help: "quit"},
	}
}

// Options for mount command.
var mountOptions = []command.Options{
	{Name: "file", OptionType: command.OptionFile, OptionValid: command.ValidMount},
	{Name: "ring", OptionType: command.OptionSwitch, OptionValid: command.ValidMount},
	{Name: "noring", OptionType: command.OptionSwitch, OptionValid: command.ValidMount},
	{Name: "ready", OptionType: command.OptionSwitch, OptionValid: command.ValidMount},
}

// Show subcommands.
var showOptions = []command.Options{
	{Name: "inventory", OptionType: command.OptionSwitch, OptionValid: command.ValidShow},
	{Name: "node", OptionType: command.OptionSwitch, OptionValid: command.ValidShow},
	{Name: "cdb", OptionType: command.OptionSwitch, OptionValid: command.ValidShow},
	{Name: "counters", OptionType: command.OptionSwitch, OptionValid: command.ValidShow},
	{Name: "log", OptionType: command.OptionSwitch, OptionValid: command.ValidShow},
	{Name: "console", OptionType: command.OptionSwitch, OptionValid: command.ValidShow},
	{Name: "jump", OptionType: command.OptionSwitch, OptionValid: command.ValidShow},
}

var readyOptions = []command.Options{
	{Name: "on", OptionType: command.OptionSwitch, OptionValid: command.ValidReady},
	{Name: "off", OptionType: command.OptionSwitch, OptionValid: command.ValidReady},
}

// Handle commands that quit simulation.
func quit(_ *cmdLine, _ *command.System) (bool, error) {
	slog.Debug("Command Quit")
	return true, nil
}

func help(_ *cmdLine, sys *command.System) (bool, error) {
	for _, c := range cmdList {
		fmt.Fprintln(sys.Out, c.Help)
	}
	return false, nil
}

// Return first system processor.
func systemProcessor(sys *command.System) (*processor.SystemProcessor, error) {
	sps := sys.Inv.SystemProcessors()
	if len(sps) == 0 {
		return nil, ErrNoSP
	}
	return sps[0], nil
}

// Process the show command.
func show(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Show")
	what := line.getWord(false)
	if what == "" {
		what = "inventory"
	}
	var match []string
	for _, opt := range showOptions {
		if strings.HasPrefix(opt.Name, what) {
			match = append(match, opt.Name)
		}
	}
	if len(match) != 1 {
		return false, errors.New("show what: " + what)
	}

	switch match[0] {
	case "inventory":
		showInventory(sys)
	case "node":
		n, err := line.getNode(sys)
		if err != nil {
			return false, err
		}
		n.Dump(sys.Out)
	case "cdb":
		if err := sys.Bank.Populate(sys.Inv); err != nil {
			return false, err
		}
		sys.Bank.Dump(sys.Out)
	case "counters":
		c := sys.Inv.Counters()
		fmt.Fprintf(sys.Out, "SP: %d IP: %d IOP: %d MSP: %d Channel modules: %d Devices: %d\n",
			c.SPs, c.IPs, c.IOPs, c.MSPs, c.ChannelModules, c.Devices)
	case "log":
		count := 20
		if !line.atEnd() {
			n, err := line.getNumber()
			if err != nil {
				return false, err
			}
			count = n
		}
		showLog(sys, count)
	case "console":
		lines, _ := sys.Console.Lines(0)
		for _, l := range lines {
			fmt.Fprintln(sys.Out, l)
		}
		for _, l := range sys.Console.Status() {
			fmt.Fprintln(sys.Out, "Status: "+l)
		}
		pending := sys.Console.Pending()
		ids := make([]int, 0, len(pending))
		for id := range pending {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			fmt.Fprintf(sys.Out, "Reply %d: %s\n", id, pending[id])
		}
	case "jump":
		sp, err := systemProcessor(sys)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(sys.Out, "Jump keys: "+word36.FormatOctal(sp.JumpKeys()))
	}
	return false, nil
}

// List every node with one line of state.
func showInventory(sys *command.System) {
	for _, n := range sys.Inv.Nodes() {
		switch v := n.(type) {
		case processor.Processor:
			fmt.Fprintf(sys.Out, "%-8s %-4s UPI %d\n", v.Name(), v.ProcessorType(), v.UPI())
		case *channel.ChannelModule:
			fmt.Fprintf(sys.Out, "%-8s %s channel module\n", v.Name(), v.ChannelType())
		case device.Device:
			fmt.Fprintf(sys.Out, "%-8s %-4s %-12s ready=%v\n", v.Name(), v.DeviceType(), v.Model(), v.IsReady())
		default:
			fmt.Fprintf(sys.Out, "%-8s %s\n", n.Name(), n.Category())
		}
	}
}

// Print most recent count log entries.
func showLog(sys *command.System, count int) {
	if sys.Appender == nil || count <= 0 {
		return
	}
	first := uint64(1)
	if last := sys.Appender.MostRecentID(); last > uint64(count) {
		first = last - uint64(count) + 1
	}
	for _, e := range sys.Appender.RetrieveFrom(first) {
		fmt.Fprintf(sys.Out, "%s %-5s %s\n", e.Time.Format("15:04:05.000"), e.Level, e.Message)
	}
}

// Show completion of subcommand and node name.
func showComplete(line *cmdLine, sys *command.System) []string {
	line.skipSpace()
	leading := line.line[:line.pos]
	word := line.scanWord(false)
	if line.isEOL() {
		matches := []string{}
		for _, opt := range scanOpt(word, showOptions, command.ValidShow) {
			matches = append(matches, leading+opt.Name+" ")
		}
		return matches
	}
	if word == "node" {
		return line.matchNode(sys, nil)
	}
	return nil
}

// Dump state of a node, or all nodes.
func dump(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Dump")
	pos := line.pos
	if line.getWord(false) == "all" {
		for _, n := range sys.Inv.Nodes() {
			n.Dump(sys.Out)
		}
		return false, nil
	}
	line.pos = pos
	n, err := line.getNode(sys)
	if err != nil {
		return false, err
	}
	n.Dump(sys.Out)
	return false, nil
}

// Change ready state of a device.
func ready(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Ready")
	dev, err := line.getDevice(sys)
	if err != nil {
		return false, err
	}
	state := line.getWord(false)
	opt := matchOption(state, readyOptions, command.ValidReady)
	if opt.OptionType == -1 {
		return false, errors.New("ready must be on or off")
	}
	if !dev.SetReady(opt.Name == "on") {
		return false, errors.Errorf("%s unable to change ready state", dev.Name())
	}
	return false, nil
}

func readyComplete(line *cmdLine, sys *command.System) []string {
	devices := line.matchNode(sys, isDevice)
	if len(devices) != 1 {
		return devices
	}
	return []string{devices[0] + "on", devices[0] + "off"}
}

// Mount media on a device.
func mount(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Mount")
	dev, err := line.getDevice(sys)
	if err != nil {
		return false, err
	}
	m, ok := dev.(device.Mountable)
	if !ok {
		return false, errors.Errorf("%s does not take media", dev.Name())
	}
	optlist, err := line.getOptions(mountOptions, command.ValidMount)
	if err != nil {
		return false, err
	}

	file := ""
	goReady := false
	for _, opt := range optlist {
		switch opt.Name {
		case "file":
			file = opt.EqualOpt
		case "ring", "noring":
			tape, ok := dev.(*device.FileSystemTapeDevice)
			if !ok {
				return false, errors.Errorf("%s has no write ring", dev.Name())
			}
			tape.SetRing(opt.Name == "ring")
		case "ready":
			goReady = true
		}
	}

	if err := m.Mount(file); err != nil {
		return false, err
	}
	if goReady && !dev.SetReady(true) {
		return false, errors.Errorf("%s unable to go ready", dev.Name())
	}
	return false, nil
}

// Mount completion, device name then options.
func mountComplete(line *cmdLine, sys *command.System) []string {
	devices := line.matchNode(sys, isMountable)
	if len(devices) != 1 {
		return devices
	}
	_ = line.getName()
	return line.scanOptions(mountOptions, command.ValidMount)
}

// Remove media from a device.
func unload(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Unload")
	dev, err := line.getDevice(sys)
	if err != nil {
		return false, err
	}
	m, ok := dev.(device.Mountable)
	if !ok {
		return false, errors.Errorf("%s does not take media", dev.Name())
	}
	m.Unmount()
	return false, nil
}

// Show or change system processor jump keys.
func jump(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Jump")
	sp, err := systemProcessor(sys)
	if err != nil {
		return false, err
	}
	if line.atEnd() {
		fmt.Fprintln(sys.Out, "Jump keys: "+word36.FormatOctal(sp.JumpKeys()))
		return false, nil
	}
	key, err := line.getNumber()
	if err != nil {
		return false, err
	}
	state := line.getWord(false)
	opt := matchOption(state, readyOptions, command.ValidReady)
	if opt.OptionType == -1 {
		return false, errors.New("jump key must be set on or off")
	}
	return false, sp.SetJumpKey(key, opt.Name == "on")
}

// Queue unsolicited console input.
func input(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Input")
	text := line.rest()
	if text == "" {
		return false, errors.New("input requires text")
	}
	return false, sys.Console.SubmitInput(text)
}

// Answer a read reply message.
func reply(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Reply")
	id, err := line.getNumber()
	if err != nil {
		return false, err
	}
	return false, sys.Console.Reply(id, line.rest())
}

// Find main storage processor named next on line.
func (line *cmdLine) getMSP(sys *command.System) (*processor.MainStorageProcessor, error) {
	n, err := line.getNode(sys)
	if err != nil {
		return nil, err
	}
	msp, ok := n.(*processor.MainStorageProcessor)
	if !ok {
		return nil, errors.Errorf("%s is not a main storage processor", n.Name())
	}
	return msp, nil
}

// Display words of storage.
func examine(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Examine")
	msp, err := line.getMSP(sys)
	if err != nil {
		return false, err
	}
	addr, count, err := line.getAddress(msp.UPI())
	if err != nil {
		return false, err
	}

	words := make([]uint64, 0, 8)
	start := addr
	for i := range count {
		word, err := msp.Get(addr.AddOffset(i))
		if err != nil {
			return false, err
		}
		words = append(words, word)
		if len(words) == 8 || i == count-1 {
			var str strings.Builder
			fmt.Fprintf(&str, "%o:%06o: ", start.Segment, start.Offset)
			octal.FormatWord(&str, words)
			fmt.Fprintln(sys.Out, strings.TrimRight(str.String(), " "))
			start = addr.AddOffset(i + 1)
			words = words[:0]
		}
	}
	return false, nil
}

// Store octal words into storage.
func deposit(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Deposit")
	msp, err := line.getMSP(sys)
	if err != nil {
		return false, err
	}
	addr, _, err := line.getAddress(msp.UPI())
	if err != nil {
		return false, err
	}
	values := []uint64{}
	for !line.atEnd() {
		v, err := line.getOctal()
		if err != nil {
			return false, err
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return false, errors.New("deposit requires values")
	}
	for i, v := range values {
		if err := msp.Set(addr.AddOffset(i), v); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Build configuration data bank into storage.
func build(line *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Build")
	sp, err := systemProcessor(sys)
	if err != nil {
		return false, err
	}
	var upi int
	if !line.atEnd() {
		upi, err = line.getNumber()
		if err != nil {
			return false, err
		}
	} else {
		msps := sys.Inv.MainStorageProcessors()
		if len(msps) == 0 {
			return false, errors.Wrap(processor.ErrUPINotAssigned, "no main storage")
		}
		upi = msps[0].UPI()
	}
	addr, err := sp.BuildConfigDataBank(cdb.NewBuilder(sys.Bank, sys.Inv), upi)
	if err != nil {
		return false, err
	}
	fmt.Fprintf(sys.Out, "Configuration data bank at %s, %d words\n", addr, sys.Bank.Used())
	return false, nil
}

// Return all nodes to cleared state.
func clearNodes(_ *cmdLine, sys *command.System) (bool, error) {
	slog.Debug("Command Clear")
	sys.Inv.ClearNodes()
	return false, nil
}
