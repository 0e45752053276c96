// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/txstore"
	"github.com/stretchr/testify/require"
)

// TestRPCSourceConfigValidation checks the `validate` method on the
// RPCSourceConfig behaves as expected.
func TestRPCSourceConfigValidation(t *testing.T) {
	t.Parallel()

	rt := require.New(t)

	// Must specify chain params.
	cfg := &RPCSourceConfig{}
	rt.ErrorContains(cfg.validate(), "chain params")

	// Must specify a connection config.
	cfg = &RPCSourceConfig{
		Params: &chaincfg.Params{},
	}
	rt.ErrorContains(cfg.validate(), "conn config")

	// Must specify a certificate when using TLS.
	cfg = &RPCSourceConfig{
		Params: &chaincfg.Params{},
		Conn:   &rpcclient.ConnConfig{},
	}
	rt.ErrorContains(cfg.validate(), "certs")

	// Validate config.
	cfg = &RPCSourceConfig{
		Params: &chaincfg.Params{},
		Conn: &rpcclient.ConnConfig{
			DisableTLS: true,
		},
	}
	rt.NoError(cfg.validate())

	// When a nil config is provided, it should return an error.
	_, err := NewRPCSource(nil)
	rt.ErrorContains(err, "missing rpc config")
}

// testRawResult serializes a transaction into the verbose result shape
// returned by searchrawtransactions.
func testRawResult(t *testing.T,
	tx *wire.MsgTx) *btcjson.SearchRawTransactionsResult {

	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	return &btcjson.SearchRawTransactionsResult{
		Txid: tx.TxHash().String(),
		Hex:  hex.EncodeToString(buf.Bytes()),
	}
}

// TestEntryFromResult checks that verbose search results decode into
// history entries, resolving confirmed blocks through the per-call
// cache and leaving mempool entries without block metadata.
func TestEntryFromResult(t *testing.T) {
	t.Parallel()

	source := &RPCSource{params: &chaincfg.TestNet3Params}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0xaa}},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(50_000, []byte{txscript.OP_TRUE}))

	// A result without a block hash is a mempool transaction.
	res := testRawResult(t, tx)
	entry, err := source.entryFromResult(
		res, make(map[string]*txstore.BlockMeta),
	)
	require.NoError(t, err)
	require.Nil(t, entry.Block)
	require.Equal(t, tx.TxHash(), entry.Tx.TxHash())

	// A cached block hash resolves without touching the node.
	blockHash := chainhash.Hash{0xbb}
	meta := &txstore.BlockMeta{
		Height: 206,
		Hash:   blockHash,
		Time:   time.Unix(1_700_000_000, 0),
	}
	blocks := map[string]*txstore.BlockMeta{
		blockHash.String(): meta,
	}

	res = testRawResult(t, tx)
	res.BlockHash = blockHash.String()
	entry, err = source.entryFromResult(res, blocks)
	require.NoError(t, err)
	require.Same(t, meta, entry.Block)

	// Garbage hex and truncated transactions both fail cleanly.
	res = &btcjson.SearchRawTransactionsResult{Hex: "not hex"}
	_, err = source.entryFromResult(
		res, make(map[string]*txstore.BlockMeta),
	)
	require.Error(t, err)

	res = &btcjson.SearchRawTransactionsResult{Hex: "0100"}
	_, err = source.entryFromResult(
		res, make(map[string]*txstore.BlockMeta),
	)
	require.Error(t, err)
}

// TestScriptAddress checks the conversion from output scripts to the
// address form the node's index is keyed by.
func TestScriptAddress(t *testing.T) {
	t.Parallel()

	source := &RPCSource{params: &chaincfg.TestNet3Params}

	keyHash := bytes.Repeat([]byte{0x5a}, 20)
	want, err := btcutil.NewAddressWitnessPubKeyHash(
		keyHash, &chaincfg.TestNet3Params,
	)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(want)
	require.NoError(t, err)

	addr, err := source.scriptAddress(pkScript)
	require.NoError(t, err)
	require.Equal(t, want.EncodeAddress(), addr.EncodeAddress())

	// Data pushes have no address form.
	nullData, err := txscript.NullDataScript([]byte("walletkit"))
	require.NoError(t, err)

	_, err = source.scriptAddress(nullData)
	require.ErrorContains(t, err, "no address form")
}

// TestNoTxInfoErr checks the detection of the node's "no transactions
// for address" response, including when it arrives wrapped.
func TestNoTxInfoErr(t *testing.T) {
	t.Parallel()

	rpcErr := &btcjson.RPCError{
		Code:    btcjson.ErrRPCNoTxInfo,
		Message: "No information available about address",
	}
	require.True(t, isNoTxInfoErr(rpcErr))
	require.True(t, isNoTxInfoErr(fmt.Errorf("search: %w", rpcErr)))

	require.False(t, isNoTxInfoErr(errors.New("connection refused")))
	require.False(t, isNoTxInfoErr(&btcjson.RPCError{
		Code: btcjson.ErrRPCMisc,
	}))
}
