// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package desckey_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/walletkit/desckey"
	"github.com/stretchr/testify/require"
)

// TestNewMnemonicWordCounts checks that every supported phrase length
// produces a phrase of that length which validates on reparse.
func TestNewMnemonicWordCounts(t *testing.T) {
	t.Parallel()

	counts := []desckey.WordCount{
		desckey.Words12,
		desckey.Words15,
		desckey.Words18,
		desckey.Words21,
		desckey.Words24,
	}

	for _, count := range counts {
		mnemonic, err := desckey.NewMnemonic(count)
		require.NoError(t, err)
		require.Equal(t, count, mnemonic.Words())

		reparsed, err := desckey.MnemonicFromString(mnemonic.String())
		require.NoError(t, err)
		require.Equal(t, mnemonic.String(), reparsed.String())
	}

	_, err := desckey.NewMnemonic(desckey.WordCount(13))
	require.Error(t, err)
}

// TestMnemonicFromEntropy checks the deterministic entropy encoding and
// the length validation bounds.
func TestMnemonicFromEntropy(t *testing.T) {
	t.Parallel()

	// 16 zero bytes is the canonical BIP39 reference vector.
	mnemonic, err := desckey.MnemonicFromEntropy(make([]byte, 16))
	require.NoError(t, err)
	require.Equal(t,
		"abandon abandon abandon abandon abandon abandon abandon "+
			"abandon abandon abandon abandon about",
		mnemonic.String(),
	)

	for _, size := range []int{0, 12, 15, 17, 33, 36} {
		_, err := desckey.MnemonicFromEntropy(make([]byte, size))
		require.ErrorIs(t, err, desckey.ErrInvalidEntropyLength,
			"size %d", size)
	}
}

// TestMnemonicFromString checks phrase validation and whitespace
// normalization.
func TestMnemonicFromString(t *testing.T) {
	t.Parallel()

	mnemonic, err := desckey.MnemonicFromString(testMnemonic)
	require.NoError(t, err)
	require.Equal(t, desckey.Words24, mnemonic.Words())

	// Extra whitespace is tolerated and normalized away.
	padded, err := desckey.MnemonicFromString("  " + testMnemonic + " ")
	require.NoError(t, err)
	require.Equal(t, mnemonic.String(), padded.String())

	_, err = desckey.MnemonicFromString("correct horse battery staple")
	require.ErrorIs(t, err, desckey.ErrInvalidMnemonic)
}

// TestMnemonicSeed checks the seed size and that distinct passphrases
// produce distinct seeds.
func TestMnemonicSeed(t *testing.T) {
	t.Parallel()

	mnemonic, err := desckey.MnemonicFromString(testMnemonic)
	require.NoError(t, err)

	seed := mnemonic.Seed("")
	require.Len(t, seed, 64)

	other := mnemonic.Seed("trezor")
	require.Len(t, other, 64)
	require.False(t, bytes.Equal(seed, other))
}
