/*
 * S2200 - Command interface
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

package command

import (
	"io"

	"github.com/rcornwell/S2200/emu/cdb"
	"github.com/rcornwell/S2200/emu/console"
	"github.com/rcornwell/S2200/emu/inventory"
	"github.com/rcornwell/S2200/util/logger"
)

// List of options given to a command.
type CmdOption struct {
	Name     string // Name of option.
	EqualOpt string // Value of string after =.
	Value    int    // Numberic value.
}

// List of option types.
const (
	OptionSwitch = 1 + iota
	OptionFile
	OptionNumber
	OptionList
)

const (
	ValidMount = 1 << iota
	ValidShow
	ValidReady
)

type Options struct {
	Name        string   // Name of option.
	OptionType  int      // Type of argument.
	OptionValid int      // Option valid for command type.
	OptionList  []string // List of valid options for this options.
}

// System is what operator commands act on.
type System struct {
	Inv      *inventory.Manager // Configured nodes.
	Console  *console.Buffered  // Operator console traffic.
	Bank     *cdb.Bank          // Configuration data bank.
	Appender *logger.Appender   // Recent log entries.
	Out      io.Writer          // Command output.
}
