/*
 * S2200 - Absolute address tests
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

package address

import (
	"testing"

	"github.com/pkg/errors"
)

func TestNewAbsoluteAddress(t *testing.T) {
	a, err := NewAbsoluteAddress(1, 2, 3)
	if err != nil {
		t.Fatalf("NewAbsoluteAddress failed: %v", err)
	}
	if a.UPI != 1 || a.Segment != 2 || a.Offset != 3 {
		t.Errorf("Address fields not correct got: %v", a)
	}
	b := a.AddOffset(5)
	if b.Offset != 8 || a.Offset != 3 {
		t.Errorf("AddOffset not correct got: %d expected: %d", b.Offset, 8)
	}
	if b.String() != "1:2:10" {
		t.Errorf("String not correct got: %s", b.String())
	}
	if a.Equal(b) || !b.Equal(a.AddOffset(5)) {
		t.Errorf("Equal not correct for %v and %v", a, b)
	}

	for _, bad := range [][3]int{{16, 0, 0}, {-1, 0, 0}, {0, MaxSegment + 1, 0}, {0, 0, -1}} {
		_, err := NewAbsoluteAddress(bad[0], bad[1], bad[2])
		if !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Address %v did not fail got: %v", bad, err)
		}
	}
}

func TestActiveBaseTableEntry(t *testing.T) {
	e := NewActiveBaseTableEntryFields(5, 0o12345, 0o654321)
	if e.Level() != 5 {
		t.Errorf("Level not correct got: %o expected: %o", e.Level(), 5)
	}
	if e.BDI() != 0o12345 {
		t.Errorf("BDI not correct got: %o expected: %o", e.BDI(), 0o12345)
	}
	if e.LBDI() != (5<<15)|0o12345 {
		t.Errorf("LBDI not correct got: %o", e.LBDI())
	}
	if e.SubsetOffset() != 0o654321 {
		t.Errorf("Offset not correct got: %o expected: %o", e.SubsetOffset(), 0o654321)
	}

	w := NewActiveBaseTableEntry(e.Word())
	if w != e {
		t.Errorf("Round trip from word not correct got: %o expected: %o", w.Word(), e.Word())
	}

	// Fields are masked to their width.
	e = NewActiveBaseTableEntryFields(0o17, 0o177777, 0o7777777)
	if e.Level() != 7 || e.BDI() != 0o77777 || e.SubsetOffset() != 0o777777 {
		t.Errorf("Masking not correct got: %o %o %o", e.Level(), e.BDI(), e.SubsetOffset())
	}
}
