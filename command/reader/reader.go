/*
 * S2200 - Operator command line reader
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

package reader

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	command "github.com/rcornwell/S2200/command/command"
	"github.com/rcornwell/S2200/command/parser"
)

// Print console lines posted since next, return new next.
func showConsole(sys *command.System, next int) int {
	lines, next := sys.Console.Lines(next)
	for _, l := range lines {
		fmt.Fprintln(sys.Out, l)
	}
	return next
}

func ConsoleReader(sys *command.System) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(line string) []string {
		return parser.CompleteCmd(line, sys)
	})

	next := 0
	for {
		next = showConsole(sys, next)
		command, err := line.Prompt("S2200> ")
		if err == nil {
			line.AppendHistory(command)
			quit, err := parser.ProcessCommand(command, sys)
			if err != nil {
				fmt.Fprintln(sys.Out, "Error: "+err.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return
		}
		slog.Error("error reading line: " + err.Error())
		return
	}
}
