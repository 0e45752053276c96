// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"math"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/txstore"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// BlockTime names the block that confirmed a transaction.
type BlockTime struct {
	Height    int32
	Timestamp time.Time
}

// TransactionDetails summarizes a transaction from the wallet's point
// of view.
type TransactionDetails struct {
	// Txid is the transaction hash.
	Txid chainhash.Hash

	// Received is the value of outputs paying to wallet scripts.
	Received btcutil.Amount

	// Sent is the value of wallet outputs consumed by the inputs.
	Sent btcutil.Amount

	// Fee is set when every input spends a wallet output.  With
	// foreign inputs the fee cannot be computed from wallet data.
	Fee fn.Option[btcutil.Amount]

	// Confirmation is set once the transaction is mined.
	Confirmation fn.Option[BlockTime]

	// Transaction is the decoded transaction.  It is only attached
	// when explicitly requested.
	Transaction *wire.MsgTx
}

// ListTransactions summarizes every transaction the wallet knows of,
// mined transactions first in block order, unconfirmed ones last.
// The decoded transaction is attached when includeRaw is set.
func (w *Wallet) ListTransactions(includeRaw bool) ([]*TransactionDetails, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	recs, err := w.store.Txs()
	if err != nil {
		return nil, err
	}

	details := make([]*TransactionDetails, 0, len(recs))
	for _, rec := range recs {
		detail, err := w.transactionDetails(rec, includeRaw)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}

	// The store promises no iteration order.
	sort.Slice(details, func(i, j int) bool {
		hi, hj := confHeight(details[i]), confHeight(details[j])
		if hi != hj {
			return hi < hj
		}
		return bytes.Compare(details[i].Txid[:],
			details[j].Txid[:]) < 0
	})
	return details, nil
}

// confHeight orders transactions for ListTransactions, sorting
// unconfirmed ones after every mined one.
func confHeight(detail *TransactionDetails) int32 {
	unconfirmed := BlockTime{Height: math.MaxInt32}
	return detail.Confirmation.UnwrapOr(unconfirmed).Height
}

// transactionDetails computes the wallet relevant sums of rec.  The
// caller must hold the wallet lock.
func (w *Wallet) transactionDetails(rec *txstore.TxRecord, includeRaw bool) (*TransactionDetails, error) {
	tx, err := rec.MsgTx()
	if err != nil {
		return nil, err
	}

	var received, sent, totalIn, totalOut btcutil.Amount
	for _, txOut := range tx.TxOut {
		totalOut += btcutil.Amount(txOut.Value)
		_, ok, err := w.store.ScriptPath(txOut.PkScript)
		if err != nil {
			return nil, err
		}
		if ok {
			received += btcutil.Amount(txOut.Value)
		}
	}

	allInputsMine := len(tx.TxIn) > 0
	for _, txIn := range tx.TxIn {
		credit, ok, err := w.store.Credit(txIn.PreviousOutPoint)
		if err != nil {
			return nil, err
		}
		if !ok {
			allInputsMine = false
			continue
		}
		sent += credit.Amount
		totalIn += credit.Amount
	}

	detail := &TransactionDetails{
		Txid:         rec.Hash,
		Received:     received,
		Sent:         sent,
		Fee:          fn.None[btcutil.Amount](),
		Confirmation: fn.None[BlockTime](),
	}
	if allInputsMine {
		detail.Fee = fn.Some(totalIn - totalOut)
	}
	if rec.Block != nil {
		detail.Confirmation = fn.Some(BlockTime{
			Height:    rec.Block.Height,
			Timestamp: rec.Block.Time,
		})
	}
	if includeRaw {
		detail.Transaction = tx
	}
	return detail, nil
}
