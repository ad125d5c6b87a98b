/*
 * S2200 - Byte translation of 36 bit words
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

// Convert words to bytes one quarter word per byte. If stop is set a quarter
// with its high bit set ends the transfer.
func PackQuarters(words []uint64, stop bool) []byte {
	data := make([]byte, 0, len(words)*4)
	for _, w := range words {
		for q := 1; q <= 4; q++ {
			quarter := GetQuarter(w, q)
			if stop && (quarter&0o400) != 0 {
				return data
			}
			data = append(data, byte(quarter&0xff))
		}
	}
	return data
}

// Convert bytes to quarter words. Returns number of frames used.
func UnpackQuarters(data []byte, words []uint64) int {
	frames := min(len(data), len(words)*4)
	for i := range frames {
		wx := i / 4
		if i%4 == 0 {
			words[wx] = 0
		}
		words[wx] |= uint64(data[i]) << (9 * uint(3-(i%4)))
	}
	return frames
}

// Convert words to bytes one sixth word per byte.
func PackSixths(words []uint64) []byte {
	data := make([]byte, 0, len(words)*6)
	for _, w := range words {
		for s := 1; s <= 6; s++ {
			data = append(data, byte(GetSixth(w, s)))
		}
	}
	return data
}

// Convert bytes to sixth words. Returns number of frames used.
func UnpackSixths(data []byte, words []uint64) int {
	frames := min(len(data), len(words)*6)
	for i := range frames {
		wx := i / 6
		if i%6 == 0 {
			words[wx] = 0
		}
		words[wx] |= (uint64(data[i]) & SixthMask) << (6 * uint(5-(i%6)))
	}
	return frames
}

// Pack words as a continuous bit stream, two words into nine bytes.
func Pack(words []uint64) []byte {
	data := make([]byte, 0, (len(words)*36+7)/8)
	acc := uint64(0)
	bits := uint(0)
	for _, w := range words {
		acc = (acc << 36) | (w & Mask)
		bits += 36
		for bits >= 8 {
			bits -= 8
			data = append(data, byte(acc>>bits))
		}
		acc &= (1 << bits) - 1
	}
	if bits != 0 {
		data = append(data, byte(acc<<(8-bits)))
	}
	return data
}

// Unpack a bit stream into words. Returns number of words touched,
// including a final partial word.
func Unpack(data []byte, words []uint64) int {
	acc := uint64(0)
	bits := uint(0)
	wx := 0
	for _, by := range data {
		if wx >= len(words) {
			return wx
		}
		acc = (acc << 8) | uint64(by)
		bits += 8
		if bits >= 36 {
			bits -= 36
			words[wx] = (acc >> bits) & Mask
			wx++
			acc &= (1 << bits) - 1
		}
	}
	if bits != 0 && wx < len(words) {
		words[wx] = (acc << (36 - bits)) & Mask
		wx++
	}
	return wx
}
