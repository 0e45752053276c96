// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
)

// UnspentOutput describes a wallet controlled output that has not
// been spent.
type UnspentOutput struct {
	// OutPoint locates the output in its transaction.
	OutPoint wire.OutPoint

	// Amount is the output value.
	Amount btcutil.Amount

	// Address is the output script rendered as an address.
	Address btcutil.Address

	// PkScript is the raw output script.
	PkScript []byte

	// Keychain is the role of the keychain the output pays to.
	Keychain descriptor.Keychain

	// Index is the derivation index of the output script.
	Index uint32

	// Spent is false for every listed output.  It mirrors the
	// stored flag so callers can reuse the type for spent outputs.
	Spent bool
}

// ListUnspent returns the wallet's unspent outputs ordered by
// outpoint.
func (w *Wallet) ListUnspent() ([]*UnspentOutput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	credits, err := w.store.Credits()
	if err != nil {
		return nil, err
	}

	utxos := make([]*UnspentOutput, 0, len(credits))
	for _, credit := range credits {
		if credit.Spent {
			continue
		}
		desc := w.descriptorFor(credit.Path.Keychain)
		addr, err := desc.AddressAt(credit.Path.Index)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, &UnspentOutput{
			OutPoint: credit.OutPoint,
			Amount:   credit.Amount,
			Address:  addr,
			PkScript: credit.Script,
			Keychain: credit.Path.Keychain,
			Index:    credit.Path.Index,
			Spent:    credit.Spent,
		})
	}

	// The store promises no iteration order.
	sort.Slice(utxos, func(i, j int) bool {
		opi, opj := &utxos[i].OutPoint, &utxos[j].OutPoint
		if c := bytes.Compare(opi.Hash[:], opj.Hash[:]); c != 0 {
			return c < 0
		}
		return opi.Index < opj.Index
	})
	return utxos, nil
}
