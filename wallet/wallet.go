// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements a descriptor backed bitcoin wallet.  A
// wallet watches the scripts of up to two descriptor keychains, an
// external one for receiving and an internal one for change, persists
// the transactions and outputs discovered for them, and assembles,
// signs and fee bumps spending transactions.
//
// All exported methods serialize on one exclusive lock, so a Wallet
// is safe for concurrent use.  Sync holds the lock for its full
// duration, which keeps transaction construction and signing from
// observing a half written store.
package wallet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/netparams"
	"github.com/btcsuite/walletkit/txstore"
)

// defaultGapLimit is the number of consecutive unused scripts a sync
// scans past the last used one before declaring a keychain exhausted.
const defaultGapLimit = 20

// Config supplies the components a Wallet is assembled from.
type Config struct {
	// External is the descriptor receiving addresses are drawn from.
	External *descriptor.Descriptor

	// Internal is the descriptor change outputs are sent to.  It may
	// be nil, in which case change is drawn from External.
	Internal *descriptor.Descriptor

	// Network is the network the wallet operates on.  Every
	// descriptor must carry keys encoded for this network.
	Network netparams.Network

	// Store persists revealed scripts, transactions and outputs.
	Store txstore.Store

	// GapLimit overrides the sync gap limit.  Zero selects the
	// default of 20.
	GapLimit uint32
}

// Wallet tracks the transaction history of two descriptor keychains
// and builds transactions spending the outputs it discovers.
type Wallet struct {
	mu sync.Mutex

	network  netparams.Network
	external *descriptor.Descriptor
	internal *descriptor.Descriptor
	store    txstore.Store
	gapLimit uint32
}

// New assembles a wallet from cfg.  Each descriptor is checked
// against cfg.Network; a descriptor whose keys belong to another
// network is rejected with descriptor.ErrInvalidNetwork.
func New(cfg *Config) (*Wallet, error) {
	if cfg.External == nil {
		return nil, errors.New("wallet: external descriptor is " +
			"required")
	}
	if cfg.Store == nil {
		return nil, errors.New("wallet: store is required")
	}
	if cfg.External.Network() != cfg.Network {
		return nil, fmt.Errorf("wallet: external descriptor: %w",
			descriptor.ErrInvalidNetwork)
	}
	if cfg.Internal != nil && cfg.Internal.Network() != cfg.Network {
		return nil, fmt.Errorf("wallet: internal descriptor: %w",
			descriptor.ErrInvalidNetwork)
	}

	gapLimit := cfg.GapLimit
	if gapLimit == 0 {
		gapLimit = defaultGapLimit
	}

	return &Wallet{
		network:  cfg.Network,
		external: cfg.External,
		internal: cfg.Internal,
		store:    cfg.Store,
		gapLimit: gapLimit,
	}, nil
}

// Network returns the network the wallet operates on.
func (w *Wallet) Network() netparams.Network {
	return w.network
}

// ChainParams returns the chain parameters of the wallet's network.
func (w *Wallet) ChainParams() *chaincfg.Params {
	return w.network.Params()
}

// descriptorFor maps a keychain role to its descriptor.  Wallets
// without an internal descriptor reuse the external one for change.
func (w *Wallet) descriptorFor(keychain descriptor.Keychain) *descriptor.Descriptor {
	if keychain == descriptor.KeychainInternal && w.internal != nil {
		return w.internal
	}
	return w.external
}

// changeKeychain returns the keychain change outputs are drawn from.
func (w *Wallet) changeKeychain() descriptor.Keychain {
	if w.internal != nil {
		return descriptor.KeychainInternal
	}
	return descriptor.KeychainExternal
}

// IsMine reports whether the output script belongs to one of the
// wallet's keychains.  Only scripts at or below each keychain's
// revealed index, plus the sync lookahead, are recognized.
func (w *Wallet) IsMine(pkScript []byte) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, ok, err := w.store.ScriptPath(pkScript)
	return ok, err
}

// AddressInfo describes one script revealed from a keychain.
type AddressInfo struct {
	// Address is the script rendered for the wallet's network.
	Address btcutil.Address

	// Index is the derivation index of the address.
	Index uint32

	// Keychain is the role of the keychain the address belongs to.
	Keychain descriptor.Keychain
}

// NewAddress reveals the next unrevealed address of the keychain.
func (w *Wallet) NewAddress(keychain descriptor.Keychain) (*AddressInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.nextAddress(keychain)
}

// LastUnusedAddress returns the most recently revealed address of the
// keychain if nothing has paid to it yet, and reveals a fresh one
// otherwise.
func (w *Wallet) LastUnusedAddress(keychain descriptor.Keychain) (*AddressInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	last, ok, err := w.store.LastIndex(keychain)
	if err != nil {
		return nil, err
	}
	if !ok {
		return w.reveal(keychain, 0)
	}
	used, err := w.scriptUsed(keychain, last)
	if err != nil {
		return nil, err
	}
	if !used {
		return w.addressAt(keychain, last)
	}
	return w.reveal(keychain, last+1)
}

// PeekAddress derives the address at the given index without
// revealing it: the keychain cursor does not move and the script is
// not recorded.
func (w *Wallet) PeekAddress(keychain descriptor.Keychain, index uint32) (*AddressInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.addressAt(keychain, index)
}

// ResetAddress moves the keychain cursor to the given index and
// returns the address there.  Moving the cursor forward records every
// script up to the index; moving it backward leaves previously
// revealed scripts in place so funds on them stay visible.
func (w *Wallet) ResetAddress(keychain descriptor.Keychain, index uint32) (*AddressInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.reveal(keychain, index)
}

// nextAddress reveals the address following the keychain cursor.
// The caller must hold the wallet lock.
func (w *Wallet) nextAddress(keychain descriptor.Keychain) (*AddressInfo, error) {
	next := uint32(0)
	last, ok, err := w.store.LastIndex(keychain)
	if err != nil {
		return nil, err
	}
	if ok {
		next = last + 1
	}
	return w.reveal(keychain, next)
}

// reveal records the scripts of the keychain up to index and moves
// the cursor there.  The caller must hold the wallet lock.
func (w *Wallet) reveal(keychain descriptor.Keychain, index uint32) (*AddressInfo, error) {
	desc := w.descriptorFor(keychain)

	start := uint32(0)
	last, ok, err := w.store.LastIndex(keychain)
	if err != nil {
		return nil, err
	}
	if ok && index > last {
		start = last + 1
	}
	if !ok || index > last {
		for i := start; i <= index; i++ {
			script, err := desc.ScriptPubKeyAt(i)
			if err != nil {
				return nil, err
			}
			path := txstore.ScriptPath{Keychain: keychain, Index: i}
			if err := w.store.PutScript(script, path); err != nil {
				return nil, err
			}
		}
	}
	if err := w.store.SetLastIndex(keychain, index); err != nil {
		return nil, err
	}
	return w.addressAt(keychain, index)
}

// addressAt renders the keychain address at index without touching
// the store.
func (w *Wallet) addressAt(keychain descriptor.Keychain, index uint32) (*AddressInfo, error) {
	addr, err := w.descriptorFor(keychain).AddressAt(index)
	if err != nil {
		return nil, err
	}
	return &AddressInfo{
		Address:  addr,
		Index:    index,
		Keychain: keychain,
	}, nil
}

// scriptUsed reports whether anything has ever paid to the keychain
// script at index.  The caller must hold the wallet lock.
func (w *Wallet) scriptUsed(keychain descriptor.Keychain, index uint32) (bool, error) {
	credits, err := w.store.Credits()
	if err != nil {
		return false, err
	}
	path := txstore.ScriptPath{Keychain: keychain, Index: index}
	for _, credit := range credits {
		if credit.Path == path {
			return true, nil
		}
	}
	return false, nil
}

// Balance partitions the value of the wallet's unspent outputs by
// spendability.
type Balance struct {
	// Immature is the value of coinbase outputs still short of
	// maturity.
	Immature btcutil.Amount

	// TrustedPending is the value of unconfirmed outputs on the
	// change keychain.
	TrustedPending btcutil.Amount

	// UntrustedPending is the value of unconfirmed outputs on the
	// receiving keychain.
	UntrustedPending btcutil.Amount

	// Confirmed is the value of mined, mature outputs.
	Confirmed btcutil.Amount
}

// Spendable returns the value the wallet will spend from.
func (b *Balance) Spendable() btcutil.Amount {
	return b.TrustedPending + b.Confirmed
}

// Total returns the value of every unspent output, spendable or not.
func (b *Balance) Total() btcutil.Amount {
	return b.Immature + b.TrustedPending + b.UntrustedPending +
		b.Confirmed
}

// Balance sums the wallet's unspent outputs.
func (w *Wallet) Balance() (*Balance, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	credits, err := w.store.Credits()
	if err != nil {
		return nil, err
	}
	tip, err := w.tipHeight()
	if err != nil {
		return nil, err
	}

	var balance Balance
	for _, credit := range credits {
		if credit.Spent {
			continue
		}
		rec, ok, err := w.store.Tx(credit.OutPoint.Hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("wallet: output %v references "+
				"unknown transaction", credit.OutPoint)
		}

		if rec.Block == nil {
			if credit.Path.Keychain == descriptor.KeychainInternal {
				balance.TrustedPending += credit.Amount
			} else {
				balance.UntrustedPending += credit.Amount
			}
			continue
		}

		mature, err := w.creditMature(rec, tip)
		if err != nil {
			return nil, err
		}
		if mature {
			balance.Confirmed += credit.Amount
		} else {
			balance.Immature += credit.Amount
		}
	}
	return &balance, nil
}

// tipHeight returns the height the wallet last synced to, or zero if
// it never synced.  The caller must hold the wallet lock.
func (w *Wallet) tipHeight() (int32, error) {
	state, err := w.store.SyncState()
	if err != nil {
		return 0, err
	}
	if state == nil {
		return 0, nil
	}
	return state.Height, nil
}

// creditMature reports whether outputs of the mined transaction rec
// may be spent at the current tip.  Only coinbase outputs have a
// maturity requirement.
func (w *Wallet) creditMature(rec *txstore.TxRecord, tip int32) (bool, error) {
	tx, err := rec.MsgTx()
	if err != nil {
		return false, err
	}
	if !blockchain.IsCoinBaseTx(tx) {
		return true, nil
	}
	maturity := int32(w.network.Params().CoinbaseMaturity)
	depth := tip - rec.Block.Height + 1
	return depth >= maturity, nil
}

// spendableCredits returns the unspent, mature wallet outputs that
// transaction construction may draw from.  The caller must hold the
// wallet lock.
func (w *Wallet) spendableCredits() ([]txstore.Credit, error) {
	credits, err := w.store.Credits()
	if err != nil {
		return nil, err
	}
	tip, err := w.tipHeight()
	if err != nil {
		return nil, err
	}

	spendable := make([]txstore.Credit, 0, len(credits))
	for _, credit := range credits {
		if credit.Spent {
			continue
		}
		rec, ok, err := w.store.Tx(credit.OutPoint.Hash)
		if err != nil {
			return nil, err
		}
		if ok && rec.Block != nil {
			mature, err := w.creditMature(rec, tip)
			if err != nil {
				return nil, err
			}
			if !mature {
				continue
			}
		}
		spendable = append(spendable, *credit)
	}
	return spendable, nil
}
