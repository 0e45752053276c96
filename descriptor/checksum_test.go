// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor_test

import (
	"testing"

	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/netparams"
	"github.com/stretchr/testify/require"
)

func TestChecksumShape(t *testing.T) {
	t.Parallel()

	first, err := descriptor.Checksum("wpkh(" + masterTpub + "/0/*)")
	require.NoError(t, err)
	require.Len(t, first, 8)

	again, err := descriptor.Checksum("wpkh(" + masterTpub + "/0/*)")
	require.NoError(t, err)
	require.Equal(t, first, again)

	other, err := descriptor.Checksum("wpkh(" + masterTpub + "/1/*)")
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func TestChecksumInvalidCharacter(t *testing.T) {
	t.Parallel()

	_, err := descriptor.Checksum("wpkh(é)")
	require.ErrorIs(t, err, descriptor.ErrSyntax)
}

func TestChecksumRoundTrip(t *testing.T) {
	t.Parallel()

	// Everything the package renders must parse back, checksum and all,
	// in both public and private form.
	exprs := []string{
		"wpkh(" + masterTprv + "/0/*)",
		"pkh(" + masterTpub + "/0/*)",
		"sh(wpkh(" + masterTpub + "/0/*))",
		"wpkh(" + testWIF + ")",
	}
	for _, expr := range exprs {
		d, err := descriptor.Parse(expr, netparams.Testnet)
		require.NoError(t, err)

		reparsed, err := descriptor.Parse(
			d.String(), netparams.Testnet,
		)
		require.NoError(t, err)
		require.Equal(t, d.String(), reparsed.String())

		withSecrets, err := descriptor.Parse(
			d.StringWithSecrets(), netparams.Testnet,
		)
		require.NoError(t, err)
		require.Equal(t, d.StringWithSecrets(),
			withSecrets.StringWithSecrets())
		require.Equal(t, d.String(), withSecrets.String())
	}
}
