// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"fmt"
	"strings"
)

// inputCharset is the set of characters a descriptor body may contain,
// ordered so that the index of each character feeds the checksum. The
// order groups characters whose low five bits collide, which is what
// lets the checksum catch case errors in the base58 portions.
const inputCharset = "0123456789()[],'/*abcdefgh@:$%{}IJKLMNOPQRSTUVWXYZ" +
	"&+-.;<=>?!^_|~ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "

// checksumCharset is the bech32 character set used for the eight
// checksum characters themselves.
const checksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// polyMod progresses the BCH checksum state by one 5-bit group.
func polyMod(c uint64, val uint64) uint64 {
	c0 := c >> 35
	c = (c&0x7ffffffff)<<5 ^ val
	if c0&1 != 0 {
		c ^= 0xf5dee51989
	}
	if c0&2 != 0 {
		c ^= 0xa9fdca3312
	}
	if c0&4 != 0 {
		c ^= 0x1bab10e32d
	}
	if c0&8 != 0 {
		c ^= 0x3706b1677a
	}
	if c0&16 != 0 {
		c ^= 0x644d626ffd
	}
	return c
}

// Checksum computes the eight-character checksum of a descriptor body,
// the part before the '#' separator. It fails if the body contains a
// character outside the descriptor character set.
func Checksum(body string) (string, error) {
	c := uint64(1)
	cls := uint64(0)
	clsCount := 0

	for _, r := range body {
		pos := strings.IndexRune(inputCharset, r)
		if pos < 0 {
			return "", fmt.Errorf("%w: character %q is not "+
				"allowed", ErrSyntax, r)
		}
		c = polyMod(c, uint64(pos)&31)

		// Group the high bits of three characters into one extra
		// symbol so they still influence the checksum.
		cls = cls*3 + uint64(pos)>>5
		clsCount++
		if clsCount == 3 {
			c = polyMod(c, cls)
			cls = 0
			clsCount = 0
		}
	}
	if clsCount > 0 {
		c = polyMod(c, cls)
	}

	for i := 0; i < 8; i++ {
		c = polyMod(c, 0)
	}
	c ^= 1

	var sb strings.Builder
	for i := 0; i < 8; i++ {
		sb.WriteByte(checksumCharset[(c>>(5*(7-i)))&31])
	}
	return sb.String(), nil
}
