/*
 * S2200 - Octal formatting of words and bytes
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

package octal

import "strings"

var octMap = "01234567"

// Format 36 bit words as 12 octal digits separated by spaces.
func FormatWord(str *strings.Builder, word []uint64) {
	for _, full := range word {
		shift := 33
		for range 12 {
			str.WriteByte(octMap[(full>>shift)&0o7])
			shift -= 3
		}
		str.WriteByte(' ')
	}
}

// Format a half word as 6 octal digits.
func FormatHalf(str *strings.Builder, half uint64) {
	shift := 15
	for range 6 {
		str.WriteByte(octMap[(half>>shift)&0o7])
		shift -= 3
	}
}

// Format bytes as 3 octal digits each.
func FormatBytes(str *strings.Builder, space bool, data []uint8) {
	for _, by := range data {
		str.WriteByte(octMap[(by>>6)&0o3])
		str.WriteByte(octMap[(by>>3)&0o7])
		str.WriteByte(octMap[by&0o7])
		if space {
			str.WriteByte(' ')
		}
	}
}

// Dump words 8 per line with leading octal offset.
func DumpWords(word []uint64) []string {
	lines := []string{}
	for i := 0; i < len(word); i += 8 {
		var str strings.Builder
		FormatHalf(&str, uint64(i))
		str.WriteString(": ")
		end := min(i+8, len(word))
		FormatWord(&str, word[i:end])
		lines = append(lines, strings.TrimRight(str.String(), " "))
	}
	return lines
}

// Dump bytes 16 per line with octal offset and printable characters.
func DumpBytes(data []byte) []string {
	lines := []string{}
	for i := 0; i < len(data); i += 16 {
		var str strings.Builder
		FormatHalf(&str, uint64(i))
		str.WriteString(": ")
		end := min(i+16, len(data))
		FormatBytes(&str, true, data[i:end])
		for range 16 - (end - i) {
			str.WriteString("    ")
		}
		for _, by := range data[i:end] {
			if by >= ' ' && by < 0o177 {
				str.WriteByte(by)
			} else {
				str.WriteByte('.')
			}
		}
		lines = append(lines, str.String())
	}
	return lines
}
