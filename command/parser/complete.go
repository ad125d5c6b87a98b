/*
 * S2200 - Command line completion
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
	"slices"
	"strings"
	"unicode"

	command "github.com/rcornwell/S2200/command/command"
	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/emu/node"
)

// Called to complete a command line, during line editing.
func CompleteCmd(commandLine string, sys *command.System) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord(false)

	// We have a command, let it try and complete it.
	if !line.isEOL() {
		match := matchList(name)
		if len(match) != 1 {
			return nil
		}

		if match[0].Complete != nil {
			return match[0].Complete(&line, sys)
		}
		return nil
	}

	// Try and match one command.
	var matches []string
	for _, m := range cmdList {
		if strings.HasPrefix(m.Name, name) {
			matches = append(matches, m.Name+" ")
		}
	}
	slices.Sort(matches)
	return matches
}

func isDevice(n node.Node) bool {
	_, ok := n.(device.Device)
	return ok
}

func isMountable(n node.Node) bool {
	_, ok := n.(device.Mountable)
	return ok
}

// Match partial node name against configured nodes. Position is left
// before the name.
func (line *cmdLine) matchNode(sys *command.System, filter func(node.Node) bool) []string {
	line.skipSpace()
	pos := line.pos
	leading := line.line[:pos]
	partial := strings.ToUpper(line.getToken())
	line.pos = pos

	names := []string{}
	for _, n := range sys.Inv.Nodes() {
		if filter != nil && !filter(n) {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(n.Name()), partial) {
			names = append(names, leading+n.Name()+" ")
		}
	}
	slices.Sort(names)
	return names
}

// Complete any node name.
func nodeComplete(line *cmdLine, sys *command.System) []string {
	return line.matchNode(sys, nil)
}

// Complete device name.
func deviceComplete(line *cmdLine, sys *command.System) []string {
	return line.matchNode(sys, isDevice)
}

// Scan a word, which may be ended by =.
func (line *cmdLine) scanWord(equal bool) string {
	line.skipSpace()

	if line.isEOL() {
		return ""
	}

	pos := line.pos
	value := ""
	by := line.line[line.pos]
	for {
		if !unicode.IsLetter(rune(by)) {
			line.pos = pos
			return ""
		}
		value += string([]byte{by})
		by = line.getNext()
		if line.isEOL() || unicode.IsSpace(rune(by)) {
			break
		}
		if by == '=' {
			if equal {
				break
			}
			line.pos = pos
			return ""
		}
	}

	return strings.ToLower(value)
}

// Scan a string for an option.
func scanOpt(name string, opts []command.Options, cmdType int) []command.Options {
	matches := []command.Options{}
	for _, opt := range opts {
		if (opt.OptionValid & cmdType) == 0 {
			continue
		}
		if opt.Name == name {
			return []command.Options{opt}
		}

		if name == "" || strings.HasPrefix(opt.Name, name) {
			matches = append(matches, opt)
		}
	}

	return matches
}

// Scan to last option and offer completions of it.
func (line *cmdLine) scanOptions(opts []command.Options, cmdType int) []string {
	for {
		line.skipSpace()
		leading := line.line[:line.pos]
		word := line.getToken()
		if !line.isEOL() {
			continue
		}
		if strings.Contains(word, "=") {
			return nil
		}
		matches := []string{}
		for _, opt := range scanOpt(strings.ToLower(word), opts, cmdType) {
			suffix := " "
			if opt.OptionType != command.OptionSwitch {
				suffix = "="
			}
			matches = append(matches, leading+opt.Name+suffix)
		}
		return matches
	}
}
