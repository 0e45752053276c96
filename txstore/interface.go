// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txstore defines the persistence boundary of the wallet: the
// records a wallet writes while watching the chain, the Store interface
// every backend implements, and a driver registry so backends can be
// selected by name. The memdb, boltdb and sqlstore subpackages provide
// the in-memory, bbolt and database/sql implementations.
package txstore

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
)

// Store persists what a wallet learns from the chain: the script index,
// raw transactions, credits, per-keychain derivation cursors and the
// sync position. Implementations must be safe for concurrent use.
//
// Iteration methods make no ordering promises; callers sort.
type Store interface {
	// PutScript records script as produced by path, replacing any
	// previous mapping in either direction.
	PutScript(script []byte, path ScriptPath) error

	// ScriptPath looks up which keychain and index produced script.
	ScriptPath(script []byte) (ScriptPath, bool, error)

	// ScriptAt returns the script recorded at path.
	ScriptAt(path ScriptPath) ([]byte, bool, error)

	// LastIndex returns the highest derivation index handed out on the
	// keychain, and whether any has been.
	LastIndex(keychain descriptor.Keychain) (uint32, bool, error)

	// SetLastIndex records the highest derivation index handed out on
	// the keychain.
	SetLastIndex(keychain descriptor.Keychain, index uint32) error

	// PutTx inserts or replaces a transaction record.
	PutTx(rec *TxRecord) error

	// Tx fetches the record for a transaction hash.
	Tx(hash chainhash.Hash) (*TxRecord, bool, error)

	// Txs returns all stored transaction records.
	Txs() ([]*TxRecord, error)

	// DeleteTx removes a transaction record. Deleting an unknown hash
	// is not an error.
	DeleteTx(hash chainhash.Hash) error

	// PutCredit inserts or replaces a credit.
	PutCredit(credit *Credit) error

	// Credit fetches the credit at an outpoint.
	Credit(op wire.OutPoint) (*Credit, bool, error)

	// Credits returns all stored credits, spent ones included.
	Credits() ([]*Credit, error)

	// MarkSpent flips the spent flag of the credit at an outpoint.
	// Unknown outpoints are ignored.
	MarkSpent(op wire.OutPoint, spent bool) error

	// DeleteCredit removes the credit at an outpoint. Deleting an
	// unknown outpoint is not an error.
	DeleteCredit(op wire.OutPoint) error

	// SyncState returns the recorded sync position, or nil if the
	// wallet has never synced.
	SyncState() (*SyncState, error)

	// SetSyncState records the sync position.
	SetSyncState(state *SyncState) error

	// Close releases the store's resources. The store must not be
	// used afterwards.
	Close() error
}

// Driver defines the functions a backend provides when it registers
// itself as a store kind.
type Driver struct {
	// Kind is the identifier used to uniquely identify a specific
	// store driver. There can be only one driver with the same kind.
	Kind string

	// Open is the function invoked with all user-specified arguments
	// to open the store, creating it first if it does not exist.
	Open func(args ...interface{}) (Store, error)
}

// drivers holds all of the registered store backends.
var drivers = make(map[string]*Driver)

// RegisterDriver adds a backend store driver to the available kinds.
// ErrDriverRegistered is returned if a driver of the same kind has
// already been registered.
func RegisterDriver(driver Driver) error {
	if _, exists := drivers[driver.Kind]; exists {
		return ErrDriverRegistered
	}

	drivers[driver.Kind] = &driver
	return nil
}

// SupportedDrivers returns a slice of strings that represent the store
// kinds that have been registered and are therefore supported.
func SupportedDrivers() []string {
	supported := make([]string, 0, len(drivers))
	for _, drv := range drivers {
		supported = append(supported, drv.Kind)
	}
	return supported
}

// Open opens the store of the given kind, creating it first if needed.
// The arguments are specific to the store kind; see the documentation
// of the driver package for details.
//
// ErrUnknownDriver is returned if the kind is not registered.
func Open(kind string, args ...interface{}) (Store, error) {
	drv, exists := drivers[kind]
	if !exists {
		return nil, ErrUnknownDriver
	}

	log.Debugf("Opening %s transaction store", kind)
	return drv.Open(args...)
}
