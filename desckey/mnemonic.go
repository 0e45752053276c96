// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package desckey

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// WordCount is the number of words in a mnemonic phrase. Each supported
// count maps to a fixed entropy size per BIP39.
type WordCount int

// Supported mnemonic lengths.
const (
	Words12 WordCount = 12
	Words15 WordCount = 15
	Words18 WordCount = 18
	Words21 WordCount = 21
	Words24 WordCount = 24
)

// entropyBits returns the entropy size in bits backing a phrase of the
// given length, or 0 for an unsupported count.
func (w WordCount) entropyBits() int {
	switch w {
	case Words12, Words15, Words18, Words21, Words24:
		// Every 3 words encode 32 bits of entropy.
		return int(w) / 3 * 32
	}
	return 0
}

// Mnemonic is a validated BIP39 recovery phrase. The zero value is not
// usable; construct one through NewMnemonic, MnemonicFromEntropy or
// MnemonicFromString.
type Mnemonic struct {
	phrase string
}

// NewMnemonic generates a fresh mnemonic of the requested length from the
// system entropy source.
func NewMnemonic(words WordCount) (Mnemonic, error) {
	bits := words.entropyBits()
	if bits == 0 {
		return Mnemonic{}, fmt.Errorf("unsupported word count %d",
			int(words))
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return Mnemonic{}, fmt.Errorf("generate entropy: %w", err)
	}

	return MnemonicFromEntropy(entropy)
}

// MnemonicFromEntropy encodes the given entropy as a mnemonic phrase. The
// entropy length must be a multiple of 4 bytes between 16 and 32 bytes
// inclusive.
func MnemonicFromEntropy(entropy []byte) (Mnemonic, error) {
	if len(entropy) < 16 || len(entropy) > 32 || len(entropy)%4 != 0 {
		return Mnemonic{}, fmt.Errorf("%w: got %d bytes",
			ErrInvalidEntropyLength, len(entropy))
	}

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return Mnemonic{}, fmt.Errorf("encode mnemonic: %w", err)
	}

	return Mnemonic{phrase: phrase}, nil
}

// MnemonicFromString validates an existing phrase against the BIP39 word
// list and checksum.
func MnemonicFromString(phrase string) (Mnemonic, error) {
	phrase = strings.Join(strings.Fields(phrase), " ")
	if !bip39.IsMnemonicValid(phrase) {
		return Mnemonic{}, ErrInvalidMnemonic
	}

	return Mnemonic{phrase: phrase}, nil
}

// String returns the space-separated phrase.
func (m Mnemonic) String() string {
	return m.phrase
}

// Words returns the number of words in the phrase.
func (m Mnemonic) Words() WordCount {
	if m.phrase == "" {
		return 0
	}
	return WordCount(len(strings.Fields(m.phrase)))
}

// Seed derives the 64-byte BIP39 seed for the phrase under the given
// passphrase. Callers should zero the returned slice once the seed has
// been consumed.
func (m Mnemonic) Seed(passphrase string) []byte {
	return bip39.NewSeed(m.phrase, passphrase)
}
