// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/chain"
	"github.com/btcsuite/walletkit/txstore"
)

// PublishTransaction extracts the finalized transaction from a packet,
// hands it to the chain source and records it, so the wallet reflects
// the spend immediately instead of waiting for the next sync.  Change
// paying back to the wallet shows up as trusted pending balance.
func (w *Wallet) PublishTransaction(ctx context.Context, src chain.Source,
	packet *psbt.Packet) (chainhash.Hash, error) {

	if src == nil {
		return chainhash.Hash{}, ErrNoChainSource
	}
	tx, err := psbt.Extract(packet)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("wallet: extract "+
			"transaction: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := src.Broadcast(ctx, tx); err != nil {
		return chainhash.Hash{}, err
	}
	if err := w.recordOwn(tx); err != nil {
		return chainhash.Hash{}, err
	}

	txHash := tx.TxHash()
	log.Infof("Published transaction %v", txHash)
	return txHash, nil
}

// recordOwn stores a transaction the wallet itself produced: the
// record, any outputs paying to wallet scripts, and spend flags for
// the wallet outputs it consumes.  The caller must hold the wallet
// lock.
func (w *Wallet) recordOwn(tx *wire.MsgTx) error {
	rec, err := txstore.NewTxRecord(tx, time.Now())
	if err != nil {
		return err
	}
	if err := w.store.PutTx(rec); err != nil {
		return err
	}

	for vout, txOut := range tx.TxOut {
		path, ok, err := w.store.ScriptPath(txOut.PkScript)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		op := wire.OutPoint{Hash: rec.Hash, Index: uint32(vout)}
		_, exists, err := w.store.Credit(op)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		credit := &txstore.Credit{
			OutPoint: op,
			Amount:   btcutil.Amount(txOut.Value),
			Script:   append([]byte(nil), txOut.PkScript...),
			Path:     path,
		}
		if err := w.store.PutCredit(credit); err != nil {
			return err
		}
	}

	for _, txIn := range tx.TxIn {
		_, ok, err := w.store.Credit(txIn.PreviousOutPoint)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		err = w.store.MarkSpent(txIn.PreviousOutPoint, true)
		if err != nil {
			return err
		}
	}
	return nil
}
