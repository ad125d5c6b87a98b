/*
 * S2200 - Command parser
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
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	command "github.com/rcornwell/S2200/command/command"
	"github.com/rcornwell/S2200/emu/address"
	"github.com/rcornwell/S2200/emu/device"
	"github.com/rcornwell/S2200/emu/node"
)

var (
	ErrNotFound  = errors.New("command not found")
	ErrAmbiguous = errors.New("unique command not found")
	ErrNumber    = errors.New("not a number")
	ErrNoName    = errors.New("node name required")
)

type cmd struct {
	Name     string // Command name.
	Min      int    // Minimum match size.
	Process  func(*cmdLine, *command.System) (bool, error)
	Complete func(*cmdLine, *command.System) []string
	Help     string
}

type cmdLine struct {
	line string // Current command.
	pos  int    // Position in line.
}

// Execute the command line given. Returns true when the operator asked
// to quit.
func ProcessCommand(commandLine string, sys *command.System) (bool, error) {
	line := cmdLine{line: commandLine}
	command := line.getWord(false)
	if command == "" {
		line.skipSpace()
		if !line.isEOL() {
			return false, errors.Wrap(ErrNotFound, line.line[line.pos:])
		}
		return false, nil
	}

	match := matchList(command)
	if len(match) == 0 {
		return false, errors.Wrap(ErrNotFound, command)
	}

	if len(match) > 1 {
		return false, errors.Wrap(ErrAmbiguous, command)
	}

	return match[0].Process(&line, sys)
}

// Check if command matches at least to minimum length.
func matchCommand(match cmd, command string) bool {
	if len(command) > len(match.Name) || len(command) < match.Min {
		return false
	}
	return strings.HasPrefix(match.Name, command)
}

// Check if command matches one of the commands.
func matchList(command string) []cmd {
	if command == "" {
		return []cmd{}
	}

	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, command) {
			match = append(match, m)
		}
	}
	return match
}

// Match list of options.
func matchOption(option string, optList []command.Options, cmdType int) command.Options {
	for _, opt := range optList {
		if (opt.OptionValid & cmdType) == 0 {
			continue
		}
		if opt.Name == option {
			return opt
		}
	}
	return command.Options{OptionType: -1}
}

// Skip forward over line until none whitespace character found.
func (line *cmdLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

// Check if at end of line.
func (line *cmdLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

// Skip space and check for end of line.
func (line *cmdLine) atEnd() bool {
	line.skipSpace()
	return line.isEOL()
}

// Return next character in line. 0 if EOL.
func (line *cmdLine) getNext() byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	return line.line[line.pos]
}

// Return current character and advance to next.
func (line *cmdLine) getCurrent() byte {
	if line.isEOL() {
		return 0
	}
	by := line.line[line.pos]
	line.pos++
	return by
}

// Return rest of line with surrounding space removed.
func (line *cmdLine) rest() string {
	line.skipSpace()
	text := strings.TrimSpace(line.line[line.pos:])
	line.pos = len(line.line)
	return text
}

// Parse string that is "string" or just string.
func (line *cmdLine) parseQuoteString() (string, bool) {
	var value strings.Builder

	line.skipSpace()
	if line.pos >= len(line.line) {
		return "", false
	}

	if line.line[line.pos] != '"' {
		return line.getToken(), true
	}

	// Inside quotes # is not a comment.
	line.pos++
	for line.pos < len(line.line) {
		by := line.line[line.pos]
		line.pos++
		if by == '"' {
			// "" gets replaced by single quote.
			if line.pos < len(line.line) && line.line[line.pos] == '"' {
				line.pos++
			} else {
				return value.String(), true
			}
		}
		value.WriteByte(by)
	}
	return value.String(), false
}

// Grab characters up to next space.
func (line *cmdLine) getToken() string {
	line.skipSpace()
	start := line.pos
	for !line.isEOL() && !unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
	return line.line[start:line.pos]
}

// Parse a number, 0o and leading 0 give octal, 0x hex.
func (line *cmdLine) getNumber() (int, error) {
	pos := line.pos
	token := line.getToken()
	value, err := strconv.ParseInt(token, 0, 64)
	if err != nil {
		line.pos = pos
		return 0, errors.Wrap(ErrNumber, token)
	}
	return int(value), nil
}

// Parse octal number.
func (line *cmdLine) getOctal() (uint64, error) {
	pos := line.pos
	token := line.getToken()
	value, err := strconv.ParseUint(token, 8, 64)
	if err != nil {
		line.pos = pos
		return 0, errors.Wrap(ErrNumber, token)
	}
	return value, nil
}

// Parse a word of letters, stopping at = when equal is set.
func (line *cmdLine) getWord(equal bool) string {
	line.skipSpace()

	var value strings.Builder
	pos := line.pos
	for !line.isEOL() {
		by := line.line[line.pos]
		if unicode.IsSpace(rune(by)) || (by == '=' && equal) {
			break
		}
		if !unicode.IsLetter(rune(by)) {
			line.pos = pos
			return ""
		}
		value.WriteByte(by)
		line.pos++
	}

	return strings.ToLower(value.String())
}

// Parse a node name, letter followed by letters or digits.
func (line *cmdLine) getName() string {
	line.skipSpace()
	pos := line.pos
	if line.isEOL() || !unicode.IsLetter(rune(line.line[pos])) {
		return ""
	}
	for !line.isEOL() {
		by := line.line[line.pos]
		if unicode.IsSpace(rune(by)) {
			break
		}
		if !unicode.IsLetter(rune(by)) && !unicode.IsDigit(rune(by)) {
			line.pos = pos
			return ""
		}
		line.pos++
	}
	return line.line[pos:line.pos]
}

// Get an option.
func (line *cmdLine) getOption(opts []command.Options, cmdType int) (*command.CmdOption, error) {
	line.skipSpace()
	if line.isEOL() {
		return nil, nil
	}

	// Get a word, stoping at equal or space.
	name := line.getWord(true)

	opt := command.CmdOption{Name: name}

	if name == "" {
		if cmdType != command.ValidMount {
			return nil, errors.New("invalid option")
		}
		// For mount commands a bare value is the file name.
		file, ok := line.parseQuoteString()
		if !ok {
			return nil, errors.New("invalid file name")
		}
		opt.Name = "file"
		opt.EqualOpt = file
		return &opt, nil
	}

	match := matchOption(name, opts, cmdType)
	switch match.OptionType {
	case -1:
		if cmdType == command.ValidMount {
			// Plain word file names.
			opt.Name = "file"
			opt.EqualOpt = name
			return &opt, nil
		}
		return nil, errors.New("unknown option: " + name)
	case command.OptionSwitch:
		if !line.isEOL() && line.line[line.pos] == '=' {
			return nil, errors.New("switch option can't have arguments: " + name)
		}
	case command.OptionFile:
		if line.getCurrent() != '=' {
			return nil, errors.New("file options must be followed by =: " + name)
		}
		file, ok := line.parseQuoteString()
		if !ok {
			return nil, errors.New("file name not valid: " + name)
		}
		opt.EqualOpt = file
	case command.OptionNumber:
		if line.getCurrent() != '=' {
			return nil, errors.New("number options must be followed by number: " + name)
		}
		num, err := line.getNumber()
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		opt.Value = num
	case command.OptionList:
		if line.getCurrent() != '=' {
			return nil, errors.New("list options must be followed by name: " + name)
		}
		listStr := line.getWord(false)
		opt.EqualOpt = listStr
		for _, mod := range match.OptionList {
			if strings.ToLower(mod) == listStr {
				return &opt, nil
			}
		}
		return nil, errors.New("option not valid for type: " + name)
	default:
		return nil, errors.New("invalid option type: " + name)
	}
	return &opt, nil
}

// Scan options and return a list of options.
func (line *cmdLine) getOptions(opts []command.Options, cmdType int) ([]*command.CmdOption, error) {
	optlist := []*command.CmdOption{}
	for {
		opt, err := line.getOption(opts, cmdType)
		if err != nil {
			return optlist, err
		}
		if opt == nil {
			break
		}
		optlist = append(optlist, opt)
	}
	return optlist, nil
}

// Return node named next on line.
func (line *cmdLine) getNode(sys *command.System) (node.Node, error) {
	name := line.getName()
	if name == "" {
		return nil, ErrNoName
	}
	return sys.Inv.Node(name)
}

// Return device named next on line.
func (line *cmdLine) getDevice(sys *command.System) (device.Device, error) {
	name := line.getName()
	if name == "" {
		return nil, ErrNoName
	}
	return sys.Inv.Device(name)
}

// Parse segment:offset in octal. Offset may be followed by -end.
func (line *cmdLine) getAddress(upi int) (address.AbsoluteAddress, int, error) {
	addr := address.AbsoluteAddress{UPI: upi}
	token := line.getToken()
	seg, off, ok := strings.Cut(token, ":")
	if !ok {
		return addr, 0, errors.Errorf("address must be segment:offset: %s", token)
	}
	off, last, hasEnd := strings.Cut(off, "-")
	segment, err := strconv.ParseUint(seg, 8, 32)
	if err != nil {
		return addr, 0, errors.Wrap(ErrNumber, seg)
	}
	offset, err := strconv.ParseUint(off, 8, 32)
	if err != nil {
		return addr, 0, errors.Wrap(ErrNumber, off)
	}
	addr.Segment = int(segment)
	addr.Offset = int(offset)
	count := 1
	if hasEnd {
		end, err := strconv.ParseUint(last, 8, 32)
		if err != nil || int(end) < addr.Offset {
			return addr, 0, errors.Wrap(ErrNumber, last)
		}
		count = int(end) - addr.Offset + 1
	}
	return addr, count, nil
}
