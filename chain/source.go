// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain defines the boundary between the wallet and the
// backend that supplies chain data, along with a poller that turns the
// pull-style backend into block notifications.
package chain

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/txstore"
)

// Entry is one appearance of a watched script: the full transaction
// paying to or spending from it, and where that transaction confirmed.
// Block is nil while the transaction sits in the mempool.
type Entry struct {
	Tx    *wire.MsgTx
	Block *txstore.BlockMeta
}

// Source supplies chain data to the wallet. Implementations wrap a
// concrete backend such as a full node RPC connection or an index
// server. Methods must be safe for concurrent use.
type Source interface {
	// BestHeight returns the height of the backend's best block.
	BestHeight(ctx context.Context) (int32, error)

	// BlockHash returns the hash of the main chain block at the
	// given height.
	BlockHash(ctx context.Context, height int32) (chainhash.Hash,
		error)

	// ScriptHistory returns every transaction known to involve the
	// given output script, confirmed and unconfirmed alike.
	ScriptHistory(ctx context.Context, pkScript []byte) ([]Entry,
		error)

	// Broadcast submits a transaction to the network.
	Broadcast(ctx context.Context, tx *wire.MsgTx) error

	// FeeEstimate returns the fee rate, in satoshis per virtual
	// byte, estimated to confirm a transaction within confTarget
	// blocks.
	FeeEstimate(ctx context.Context, confTarget uint32) (float64,
		error)
}
