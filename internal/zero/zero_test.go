package zero

import (
	"bytes"
	"testing"
)

// TestBytes exercises the doubling copy across the lengths where its
// arithmetic changes shape: under one block, exact blocks, one past a
// block, and the 64-byte seed buffers the key derivation code hands in.
func TestBytes(t *testing.T) {
	lengths := []int{0, 1, 16, 31, 32, 33, 63, 64, 65, 128, 257}

	for _, n := range lengths {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(i) | 0x80
		}

		Bytes(b)

		if !bytes.Equal(b, make([]byte, n)) {
			t.Errorf("length %d: buffer not cleared: %x", n, b)
		}
	}
}
