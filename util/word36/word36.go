/*
 * S2200 - 36 bit word field access
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

// Package word36 holds the field accessors for 36 bit words carried in a uint64.
//
// Bit 0 is the most significant bit of the word, following hardware
// numbering. S1 is bits 0-5, H1 is bits 0-17 and so on.
package word36

import "strings"

const (
	Mask        uint64 = 0o777777777777 // Bits of a full word.
	NegativeBit uint64 = 0o400000000000 // Sign bit.
	HalfMask    uint64 = 0o777777       // 18 bits.
	ThirdMask   uint64 = 0o7777         // 12 bits.
	QuarterMask uint64 = 0o777          // 9 bits.
	SixthMask   uint64 = 0o77           // 6 bits.
)

// Replace field of width mask at shift.
func splice(word uint64, value uint64, mask uint64, shift uint) uint64 {
	return (word & Mask &^ (mask << shift)) | ((value & mask) << shift)
}

// Sixth word fields.
func GetS1(word uint64) uint64 { return (word >> 30) & SixthMask }
func GetS2(word uint64) uint64 { return (word >> 24) & SixthMask }
func GetS3(word uint64) uint64 { return (word >> 18) & SixthMask }
func GetS4(word uint64) uint64 { return (word >> 12) & SixthMask }
func GetS5(word uint64) uint64 { return (word >> 6) & SixthMask }
func GetS6(word uint64) uint64 { return word & SixthMask }

func SetS1(word, value uint64) uint64 { return splice(word, value, SixthMask, 30) }
func SetS2(word, value uint64) uint64 { return splice(word, value, SixthMask, 24) }
func SetS3(word, value uint64) uint64 { return splice(word, value, SixthMask, 18) }
func SetS4(word, value uint64) uint64 { return splice(word, value, SixthMask, 12) }
func SetS5(word, value uint64) uint64 { return splice(word, value, SixthMask, 6) }
func SetS6(word, value uint64) uint64 { return splice(word, value, SixthMask, 0) }

// Third word fields.
func GetT1(word uint64) uint64 { return (word >> 24) & ThirdMask }
func GetT2(word uint64) uint64 { return (word >> 12) & ThirdMask }
func GetT3(word uint64) uint64 { return word & ThirdMask }

func SetT1(word, value uint64) uint64 { return splice(word, value, ThirdMask, 24) }
func SetT2(word, value uint64) uint64 { return splice(word, value, ThirdMask, 12) }
func SetT3(word, value uint64) uint64 { return splice(word, value, ThirdMask, 0) }

// Half word fields.
func GetH1(word uint64) uint64 { return (word >> 18) & HalfMask }
func GetH2(word uint64) uint64 { return word & HalfMask }

func SetH1(word, value uint64) uint64 { return splice(word, value, HalfMask, 18) }
func SetH2(word, value uint64) uint64 { return splice(word, value, HalfMask, 0) }

// Quarter word fields.
func GetQ1(word uint64) uint64 { return (word >> 27) & QuarterMask }
func GetQ2(word uint64) uint64 { return (word >> 18) & QuarterMask }
func GetQ3(word uint64) uint64 { return (word >> 9) & QuarterMask }
func GetQ4(word uint64) uint64 { return word & QuarterMask }

func SetQ1(word, value uint64) uint64 { return splice(word, value, QuarterMask, 27) }
func SetQ2(word, value uint64) uint64 { return splice(word, value, QuarterMask, 18) }
func SetQ3(word, value uint64) uint64 { return splice(word, value, QuarterMask, 9) }
func SetQ4(word, value uint64) uint64 { return splice(word, value, QuarterMask, 0) }

// Return sixth n (1 to 6) of a word.
func GetSixth(word uint64, n int) uint64 {
	return (word >> (6 * uint(6-n))) & SixthMask
}

// Return quarter n (1 to 4) of a word.
func GetQuarter(word uint64, n int) uint64 {
	return (word >> (9 * uint(4-n))) & QuarterMask
}

// Check if ones complement value is negative.
func IsNegative(word uint64) bool {
	return (word & NegativeBit) != 0
}

// Ones complement negate.
func Negate(word uint64) uint64 {
	return (^word) & Mask
}

// Convert up to four ASCII characters into a word, left justified space filled.
func StringToWordASCII(str string) uint64 {
	word := uint64(0)
	for i := range 4 {
		ch := uint64(' ')
		if i < len(str) {
			ch = uint64(str[i])
		}
		word = (word << 9) | (ch & QuarterMask)
	}
	return word
}

// Convert a word of four ASCII quarter words back to a string.
func WordToStringASCII(word uint64) string {
	var str strings.Builder
	for i := 1; i <= 4; i++ {
		str.WriteByte(byte(GetQuarter(word, i) & 0xff))
	}
	return str.String()
}

// Convert a node name to two ASCII LJSF words. Names are upper cased and
// cut to eight characters.
func NameWords(name string) [2]uint64 {
	name = strings.ToUpper(name)
	if len(name) > 8 {
		name = name[:8]
	}
	name += strings.Repeat(" ", 8-len(name))
	return [2]uint64{StringToWordASCII(name[:4]), StringToWordASCII(name[4:])}
}

// Convert name words back to a string with trailing spaces removed.
func NameString(words [2]uint64) string {
	return strings.TrimRight(WordToStringASCII(words[0])+WordToStringASCII(words[1]), " ")
}

// Format word as twelve octal digits.
func FormatOctal(word uint64) string {
	var digits [12]byte
	word &= Mask
	for i := 11; i >= 0; i-- {
		digits[i] = byte('0' + (word & 7))
		word >>= 3
	}
	return string(digits[:])
}
