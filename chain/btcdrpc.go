// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/txstore"
)

// searchPageSize is the number of transactions requested per
// searchrawtransactions call when walking a script's history.
const searchPageSize = 100

// RPCSourceConfig defines the config options used when initializing the
// btcd-backed chain source.
type RPCSourceConfig struct {
	// Conn describes the connection configuration parameters for the
	// underlying RPC client.
	Conn *rpcclient.ConnConfig

	// Params defines a Bitcoin network by its parameters.
	Params *chaincfg.Params
}

// validate checks the required config options are set.
func (c *RPCSourceConfig) validate() error {
	if c == nil {
		return errors.New("missing rpc config")
	}

	// Make sure the chain params are configed.
	if c.Params == nil {
		return errors.New("missing chain params config")
	}

	// Make sure connection config is supplied.
	if c.Conn == nil {
		return errors.New("missing conn config")
	}

	// If disableTLS is false, the remote RPC certificate must be
	// provided in the certs slice.
	if !c.Conn.DisableTLS && c.Conn.Certificates == nil {
		return errors.New("must provide certs when TLS is enabled")
	}

	return nil
}

// RPCSource supplies chain data from a btcd node over JSON-RPC. Script
// history is served by the node's address index, so the node must run
// with both --txindex and --addrindex. The client operates in HTTP POST
// mode; block discovery is the poller's job, not push notifications.
//
// The underlying RPC client does not accept contexts. Cancellation is
// honored between round trips, not during one.
type RPCSource struct {
	client *rpcclient.Client
	params *chaincfg.Params
}

// A compile-time check to ensure that RPCSource satisfies the Source
// interface.
var _ Source = (*RPCSource)(nil)

// NewRPCSource creates a chain source backed by the btcd node described
// by the config. The connection is established lazily by the first
// request.
func NewRPCSource(cfg *RPCSourceConfig) (*RPCSource, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	connCfg := *cfg.Conn
	connCfg.HTTPPostMode = true

	client, err := rpcclient.New(&connCfg, nil)
	if err != nil {
		return nil, err
	}

	return &RPCSource{
		client: client,
		params: cfg.Params,
	}, nil
}

// Stop shuts down the underlying RPC client and waits for all pending
// requests to drain.
func (s *RPCSource) Stop() {
	s.client.Shutdown()
	s.client.WaitForShutdown()
}

// BestHeight returns the height of the node's best block.
func (s *RPCSource) BestHeight(ctx context.Context) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count, err := s.client.GetBlockCount()
	if err != nil {
		return 0, err
	}

	return int32(count), nil
}

// BlockHash returns the hash of the main chain block at the given
// height.
func (s *RPCSource) BlockHash(ctx context.Context,
	height int32) (chainhash.Hash, error) {

	if err := ctx.Err(); err != nil {
		return chainhash.Hash{}, err
	}

	hash, err := s.client.GetBlockHash(int64(height))
	if err != nil {
		return chainhash.Hash{}, err
	}

	return *hash, nil
}

// ScriptHistory returns every transaction paying to or spending from
// the given output script, confirmed and unconfirmed alike. The node's
// address index answers by address, so the script must have an address
// form, which holds for every script the wallet derives.
func (s *RPCSource) ScriptHistory(ctx context.Context,
	pkScript []byte) ([]Entry, error) {

	addr, err := s.scriptAddress(pkScript)
	if err != nil {
		return nil, err
	}

	log.Debugf("Scanning history for address %v", addr)

	// Block metadata is cached per call so a run of transactions in
	// the same block costs a single getblock round trip.
	blocks := make(map[string]*txstore.BlockMeta)

	var entries []Entry
	for skip := 0; ; skip += searchPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := s.client.SearchRawTransactionsVerbose(
			addr, skip, searchPageSize, false, false, nil,
		)
		if err != nil {
			// The node reports an unused address the same way
			// as one scanned past its last transaction.
			if isNoTxInfoErr(err) {
				break
			}
			return nil, err
		}

		for _, item := range page {
			entry, err := s.entryFromResult(item, blocks)
			if err != nil {
				return nil, fmt.Errorf("tx %s: %w",
					item.Txid, err)
			}
			entries = append(entries, entry)
		}

		if len(page) < searchPageSize {
			break
		}
	}

	log.Debugf("Found %d history entries for address %v",
		len(entries), addr)

	return entries, nil
}

// Broadcast submits a transaction to the network through the node's
// mempool.
func (s *RPCSource) Broadcast(ctx context.Context, tx *wire.MsgTx) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.SendRawTransaction(tx, false)
	return err
}

// FeeEstimate returns the fee rate, in satoshis per virtual byte,
// estimated to confirm a transaction within confTarget blocks.
func (s *RPCSource) FeeEstimate(ctx context.Context,
	confTarget uint32) (float64, error) {

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// The node reports the estimate in BTC per kilobyte, or a
	// non-positive rate when it has not seen enough history.
	btcPerKB, err := s.client.EstimateFee(int64(confTarget))
	if err != nil {
		return 0, err
	}
	if btcPerKB <= 0 {
		return 0, fmt.Errorf("no fee estimate for target %d",
			confTarget)
	}

	satPerKB, err := btcutil.NewAmount(btcPerKB)
	if err != nil {
		return 0, err
	}

	return float64(satPerKB) / 1000, nil
}

// scriptAddress converts an output script to the address the node's
// index files it under.
func (s *RPCSource) scriptAddress(pkScript []byte) (btcutil.Address, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, s.params)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("script %x has no address form",
			pkScript)
	}

	return addrs[0], nil
}

// entryFromResult decodes one searchrawtransactions result into a
// history entry, resolving block metadata through the per-call cache.
func (s *RPCSource) entryFromResult(res *btcjson.SearchRawTransactionsResult,
	blocks map[string]*txstore.BlockMeta) (Entry, error) {

	raw, err := hex.DecodeString(res.Hex)
	if err != nil {
		return Entry{}, err
	}

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return Entry{}, err
	}

	// Mempool transactions come back with no block hash.
	var block *txstore.BlockMeta
	if res.BlockHash != "" {
		block, err = s.blockMeta(res.BlockHash, blocks)
		if err != nil {
			return Entry{}, err
		}
	}

	return Entry{Tx: tx, Block: block}, nil
}

// blockMeta resolves a block hash string to its height and timestamp,
// memoizing the lookup in the given cache.
func (s *RPCSource) blockMeta(hashStr string,
	cache map[string]*txstore.BlockMeta) (*txstore.BlockMeta, error) {

	if meta, ok := cache[hashStr]; ok {
		return meta, nil
	}

	hash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		return nil, err
	}

	info, err := s.client.GetBlockVerbose(hash)
	if err != nil {
		return nil, err
	}

	meta := &txstore.BlockMeta{
		Height: int32(info.Height),
		Hash:   *hash,
		Time:   time.Unix(info.Time, 0),
	}
	cache[hashStr] = meta

	return meta, nil
}

// isNoTxInfoErr reports whether the error is the node telling us the
// address index holds no transactions at the requested offset.
func isNoTxInfoErr(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo
}
