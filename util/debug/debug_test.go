/*
 * S2200 - Debug trace tests
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
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

func TestDebugf(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	defer SetWriter(nil)

	Debugf("DISK0", Cmd, Data, "not shown")
	if buf.Len() != 0 {
		t.Errorf("Masked message written: %q", buf.String())
	}

	Debugf("DISK0", Cmd|Data, Data, "block %d", 5)
	if buf.String() != "DISK0: block 5\n" {
		t.Errorf("Debug message not correct got: %q", buf.String())
	}

	buf.Reset()
	DebugLines("DISK0", Data, Data, []string{"a", "b"})
	if buf.String() != "DISK0: a\nDISK0: b\n" {
		t.Errorf("Debug lines not correct got: %q", buf.String())
	}
}

func TestOption(t *testing.T) {
	bit, err := Option("upi")
	if err != nil || bit != UPI {
		t.Errorf("Option UPI not correct got: %d %v", bit, err)
	}
	_, err = Option("bogus")
	if !errors.Is(err, ErrInvalidOption) {
		t.Errorf("Option bogus did not fail")
	}
}
