// Package zero clears sensitive material from byte slices once it is no
// longer needed, so seeds and private scalars do not linger in memory
// past the operation that required them.
package zero

// Bytes sets every byte of b to zero.  A stack-allocated block clears
// the first 32 bytes and the cleared prefix is then doubled over the
// remainder, keeping the call allocation free for any length.
func Bytes(b []byte) {
	z := [32]byte{}
	n := uint(copy(b, z[:]))
	for n < uint(len(b)) {
		copy(b[n:], b[:n])
		n <<= 1
	}
}
