// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package desckey

import "errors"

var (
	// ErrMalformedPath is returned when parsing a derivation path whose
	// text does not follow the m/step/step grammar, contains an index
	// outside the 31-bit range, or repeats a hardened marker.
	ErrMalformedPath = errors.New("malformed derivation path")

	// ErrNotDerivable is returned when Derive or Extend is called on a
	// single (non-extended) key. Single keys carry no chain code and
	// cannot produce children.
	ErrNotDerivable = errors.New("key is not derivable")

	// ErrHardenedDerivation is returned when a public key derivation
	// crosses a hardened step. Hardened children require the parent
	// private key.
	ErrHardenedDerivation = errors.New("cannot derive a hardened child " +
		"from a public key")

	// ErrInvalidEntropyLength is returned when building a mnemonic from
	// entropy whose length is not a multiple of 4 bytes between 16 and
	// 32 bytes inclusive.
	ErrInvalidEntropyLength = errors.New("entropy length must be a " +
		"multiple of 4 bytes between 16 and 32")

	// ErrInvalidMnemonic is returned when a mnemonic phrase fails word
	// list or checksum validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")

	// ErrParse is returned when a key string is neither a valid single
	// key encoding nor a valid extended key encoding of the expected
	// kind.
	ErrParse = errors.New("malformed key encoding")
)
