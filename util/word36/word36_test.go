/*
 * S2200 - 36 bit word field access tests
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

package word36

import (
	"testing"
)

type field struct {
	name  string
	get   func(uint64) uint64
	set   func(uint64, uint64) uint64
	width uint
	shift uint
}

var fields = []field{
	{"S1", GetS1, SetS1, 6, 30},
	{"S2", GetS2, SetS2, 6, 24},
	{"S3", GetS3, SetS3, 6, 18},
	{"S4", GetS4, SetS4, 6, 12},
	{"S5", GetS5, SetS5, 6, 6},
	{"S6", GetS6, SetS6, 6, 0},
	{"T1", GetT1, SetT1, 12, 24},
	{"T2", GetT2, SetT2, 12, 12},
	{"T3", GetT3, SetT3, 12, 0},
	{"H1", GetH1, SetH1, 18, 18},
	{"H2", GetH2, SetH2, 18, 0},
	{"Q1", GetQ1, SetQ1, 9, 27},
	{"Q2", GetQ2, SetQ2, 9, 18},
	{"Q3", GetQ3, SetQ3, 9, 9},
	{"Q4", GetQ4, SetQ4, 9, 0},
}

var patterns = []uint64{
	0,
	Mask,
	0o123456701234,
	0o525252525252,
	0o252525252525,
	0o000000777777,
}

// Setting a field returns it on get and leaves other bits alone.
func TestFieldRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0o52, 0o77, 0o777, 0o7777, 0o777777, 0o1234567, Mask, 0xffffffffffffffff}
	for _, f := range fields {
		fmask := (uint64(1) << f.width) - 1
		for _, x := range patterns {
			for _, v := range values {
				r := f.set(x, v)
				if f.get(r) != v&fmask {
					t.Errorf("%s get not correct got: %o expected: %o", f.name, f.get(r), v&fmask)
				}
				other := Mask &^ (fmask << f.shift)
				if (r & other) != (x & other) {
					t.Errorf("%s changed other fields got: %o expected: %o", f.name, r&other, x&other)
				}
				if (r &^ Mask) != 0 {
					t.Errorf("%s set bits above word got: %o", f.name, r)
				}
			}
		}
	}
}

// Check fields extract from known word.
func TestFieldValues(t *testing.T) {
	w := uint64(0o112233445566)
	exp := []uint64{0o11, 0o22, 0o33, 0o44, 0o55, 0o66}
	for i, f := range fields[:6] {
		if f.get(w) != exp[i] {
			t.Errorf("%s not correct got: %o expected: %o", f.name, f.get(w), exp[i])
		}
		if GetSixth(w, i+1) != exp[i] {
			t.Errorf("Sixth %d not correct got: %o expected: %o", i+1, GetSixth(w, i+1), exp[i])
		}
	}
	if GetH1(w) != 0o112233 || GetH2(w) != 0o445566 {
		t.Errorf("Half words not correct got: %o %o", GetH1(w), GetH2(w))
	}
	if GetT1(w) != 0o1122 || GetT2(w) != 0o3344 || GetT3(w) != 0o5566 {
		t.Errorf("Third words not correct got: %o %o %o", GetT1(w), GetT2(w), GetT3(w))
	}
	w = 0o101202303404
	for i, e := range []uint64{0o101, 0o202, 0o303, 0o404} {
		if GetQuarter(w, i+1) != e {
			t.Errorf("Quarter %d not correct got: %o expected: %o", i+1, GetQuarter(w, i+1), e)
		}
	}
}

func TestNegate(t *testing.T) {
	if !IsNegative(Negate(1)) {
		t.Errorf("Negate of 1 not negative")
	}
	if Negate(0) != Mask {
		t.Errorf("Negate of 0 not correct got: %o expected: %o", Negate(0), Mask)
	}
	if Negate(Negate(0o1234)) != 0o1234 {
		t.Errorf("Double negate not correct got: %o", Negate(Negate(0o1234)))
	}
}

// ASCII LJSF conversion of names.
func TestNameWords(t *testing.T) {
	if StringToWordASCII("A") != 0o101040040040 {
		t.Errorf("String A not correct got: %o expected: %o", StringToWordASCII("A"), uint64(0o101040040040))
	}

	words := NameWords("disk0")
	if WordToStringASCII(words[0]) != "DISK" {
		t.Errorf("First name word not correct got: %s", WordToStringASCII(words[0]))
	}
	if WordToStringASCII(words[1]) != "0   " {
		t.Errorf("Second name word not correct got: %q", WordToStringASCII(words[1]))
	}
	if NameString(words) != "DISK0" {
		t.Errorf("Name string not correct got: %q expected: %q", NameString(words), "DISK0")
	}

	words = NameWords("longername12")
	if NameString(words) != "LONGERNA" {
		t.Errorf("Long name not truncated got: %q", NameString(words))
	}
}

func TestFormatOctal(t *testing.T) {
	tests := []struct {
		word uint64
		exp  string
	}{
		{0, "000000000000"},
		{0o1234, "000000001234"},
		{Mask, "777777777777"},
		{0o1000000000001, "000000000001"},
	}
	for _, test := range tests {
		if FormatOctal(test.word) != test.exp {
			t.Errorf("Format of %o not correct got: %s expected: %s", test.word, FormatOctal(test.word), test.exp)
		}
	}
}
