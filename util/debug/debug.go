/*
 * S2200 - Debug trace output
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

package debug

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Debug option bits.
const (
	Cmd    = 1 << iota // Functions requested of node.
	Data               // Buffer contents.
	UPI                // Interprocessor traffic.
	Detail             // Internal state changes.
)

var options = map[string]int{
	"CMD":    Cmd,
	"DATA":   Data,
	"UPI":    UPI,
	"DETAIL": Detail,
}

var (
	ErrInvalidOption = errors.New("debug option invalid")
	ErrFileOpen      = errors.New("can't have more then one debug file")
)

var (
	mu      sync.Mutex
	logFile io.Writer
	closer  io.Closer
)

// Generic debug message.
func Debugf(module string, mask int, level int, format string, a ...interface{}) {
	if (mask & level) == 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return
	}
	fmt.Fprintf(logFile, module+": "+format+"\n", a...)
}

// Write a group of preformatted lines.
func DebugLines(module string, mask int, level int, lines []string) {
	if (mask & level) == 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return
	}
	for _, line := range lines {
		fmt.Fprintln(logFile, module+": "+line)
	}
}

// Convert option name to mask bit.
func Option(name string) (int, error) {
	bit, ok := options[strings.ToUpper(name)]
	if !ok {
		return 0, errors.Wrap(ErrInvalidOption, name)
	}
	return bit, nil
}

// Open debug file.
func SetFile(fileName string) error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		return ErrFileOpen
	}

	file, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "unable to create debug file")
	}
	logFile = file
	closer = file
	return nil
}

// Send debug output to writer, used by tests.
func SetWriter(out io.Writer) {
	mu.Lock()
	logFile = out
	closer = nil
	mu.Unlock()
}

// Close debug file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
	}
	logFile = nil
	closer = nil
}
