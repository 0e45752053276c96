// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txstore

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
)

// BlockMeta identifies the block that confirmed a transaction and when
// it was mined.
type BlockMeta struct {
	// Height is the block's position in the chain.
	Height int32

	// Hash is the block's hash.
	Hash chainhash.Hash

	// Time is the block header's timestamp.
	Time time.Time
}

// ScriptPath locates an output script within a wallet's descriptors:
// which keychain produced it and at which derivation index.
type ScriptPath struct {
	Keychain descriptor.Keychain
	Index    uint32
}

// TxRecord is the stored form of a transaction relevant to the wallet.
// The transaction itself is kept serialized so records survive wire
// format extensions without rewrites.
type TxRecord struct {
	// Hash is the transaction's txid.
	Hash chainhash.Hash

	// Serialized is the full serialized transaction.
	Serialized []byte

	// Received is when the wallet first learned of the transaction.
	Received time.Time

	// Block is the confirming block, or nil while the transaction is
	// unconfirmed.
	Block *BlockMeta
}

// NewTxRecord serializes a transaction into a record stamped with the
// given reception time.
func NewTxRecord(tx *wire.MsgTx, received time.Time) (*TxRecord, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	return &TxRecord{
		Hash:       tx.TxHash(),
		Serialized: buf.Bytes(),
		Received:   received,
	}, nil
}

// MsgTx deserializes the record's transaction.
func (r *TxRecord) MsgTx() (*wire.MsgTx, error) {
	var tx wire.MsgTx
	err := tx.Deserialize(bytes.NewReader(r.Serialized))
	if err != nil {
		return nil, fmt.Errorf("deserialize transaction %v: %w",
			r.Hash, err)
	}
	return &tx, nil
}

// Credit is a transaction output controlled by one of the wallet's
// descriptors. Spent credits stay in the store with the flag set so
// history listings can still resolve input values.
type Credit struct {
	// OutPoint is the output's location.
	OutPoint wire.OutPoint

	// Amount is the output's value.
	Amount btcutil.Amount

	// Script is the output script.
	Script []byte

	// Path records which descriptor script matched the output.
	Path ScriptPath

	// Spent marks credits consumed by a known transaction.
	Spent bool
}

// SyncState records the chain position the wallet has scanned through.
type SyncState struct {
	// Height of the best block at the end of the last sync.
	Height int32

	// Hash of that block.
	Hash chainhash.Hash

	// Time the sync finished.
	Time time.Time
}
