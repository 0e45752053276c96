// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// TestNetworkParams checks the network-to-chaincfg mapping and the name
// round trip for every supported network.
func TestNetworkParams(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		network Network
		name    string
		params  *chaincfg.Params
	}{
		{Bitcoin, "bitcoin", &chaincfg.MainNetParams},
		{Testnet, "testnet", &chaincfg.TestNet3Params},
		{Testnet4, "testnet4", &testNet4Params},
		{Signet, "signet", &chaincfg.SigNetParams},
		{Regtest, "regtest", &chaincfg.RegressionNetParams},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.True(t, tc.network.Valid())
			require.Equal(t, tc.name, tc.network.String())
			require.Same(t, tc.params, tc.network.Params())

			parsed, err := Parse(tc.name)
			require.NoError(t, err)
			require.Equal(t, tc.network, parsed)
		})
	}
}

// TestParseAliases checks the accepted aliases and the unknown-name error.
func TestParseAliases(t *testing.T) {
	t.Parallel()

	parsed, err := Parse("MAINNET")
	require.NoError(t, err)
	require.Equal(t, Bitcoin, parsed)

	parsed, err = Parse("testnet3")
	require.NoError(t, err)
	require.Equal(t, Testnet, parsed)

	_, err = Parse("litecoin")
	require.ErrorIs(t, err, ErrUnknownNetwork)

	require.False(t, Network(42).Valid())
	require.Nil(t, Network(42).Params())
}
