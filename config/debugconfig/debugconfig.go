/*
 * S2200 - Debug trace configuration
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

package debugconfig

import (
	"strings"

	"github.com/pkg/errors"
	config "github.com/rcornwell/S2200/config/configparser"
	"github.com/rcornwell/S2200/emu/inventory"
	"github.com/rcornwell/S2200/util/debug"
)

var ErrNoDebug = errors.New("node has no debug options")

// Nodes which accept trace options.
type debugger interface {
	Debug(opt string) error
}

// register debug options on initialize.
func init() {
	config.RegisterModel("DEBUG", config.TypeOptions, setDebug)
	config.RegisterOption("DEBUGFILE", setDebugFile)
}

// Enable trace options on a node: DEBUG <node> opt[,opt...] [opt].
func setDebug(inv *inventory.Manager, name string, options []config.Option) error {
	if len(options) == 0 {
		return errors.Errorf("debug %s requires options", name)
	}
	n, err := inv.Node(name)
	if err != nil {
		return err
	}
	dbg, ok := n.(debugger)
	if !ok {
		return errors.Wrap(ErrNoDebug, name)
	}

	for _, opt := range options {
		if opt.EqualOpt != "" {
			return errors.Errorf("debug option %s can't have equals", opt.Name)
		}
		err := dbg.Debug(strings.ToUpper(opt.Name))
		if err != nil {
			return err
		}
		for _, value := range opt.Value {
			err = dbg.Debug(strings.ToUpper(*value))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Send trace output to file.
func setDebugFile(_ *inventory.Manager, fileName string, _ []config.Option) error {
	return debug.SetFile(fileName)
}
