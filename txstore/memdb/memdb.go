// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package memdb implements the txstore.Store interface entirely in
// memory. Nothing survives Close; the driver exists for tests and for
// throwaway wallets.
package memdb

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/txstore"
)

// store is an in-memory txstore.Store backed by plain maps. Records are
// copied on the way in and out so callers can never alias internal
// state.
type store struct {
	mu     sync.RWMutex
	closed bool

	scripts   map[string]txstore.ScriptPath
	paths     map[txstore.ScriptPath]string
	indexes   map[descriptor.Keychain]uint32
	txs       map[chainhash.Hash]*txstore.TxRecord
	credits   map[wire.OutPoint]*txstore.Credit
	syncState *txstore.SyncState
}

// New returns an empty in-memory store.
func New() txstore.Store {
	return &store{
		scripts: make(map[string]txstore.ScriptPath),
		paths:   make(map[txstore.ScriptPath]string),
		indexes: make(map[descriptor.Keychain]uint32),
		txs:     make(map[chainhash.Hash]*txstore.TxRecord),
		credits: make(map[wire.OutPoint]*txstore.Credit),
	}
}

// cloneTx deep-copies a transaction record.
func cloneTx(rec *txstore.TxRecord) *txstore.TxRecord {
	cp := &txstore.TxRecord{
		Hash:       rec.Hash,
		Serialized: append([]byte(nil), rec.Serialized...),
		Received:   rec.Received,
	}
	if rec.Block != nil {
		block := *rec.Block
		cp.Block = &block
	}
	return cp
}

// cloneCredit deep-copies a credit.
func cloneCredit(credit *txstore.Credit) *txstore.Credit {
	cp := *credit
	cp.Script = append([]byte(nil), credit.Script...)
	return &cp
}

func (s *store) PutScript(script []byte, path txstore.ScriptPath) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txstore.ErrClosed
	}

	// Drop any stale mapping in either direction before replacing.
	if old, ok := s.scripts[string(script)]; ok {
		delete(s.paths, old)
	}
	if old, ok := s.paths[path]; ok {
		delete(s.scripts, old)
	}

	s.scripts[string(script)] = path
	s.paths[path] = string(script)
	return nil
}

func (s *store) ScriptPath(script []byte) (txstore.ScriptPath, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return txstore.ScriptPath{}, false, txstore.ErrClosed
	}

	path, ok := s.scripts[string(script)]
	return path, ok, nil
}

func (s *store) ScriptAt(path txstore.ScriptPath) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, txstore.ErrClosed
	}

	script, ok := s.paths[path]
	if !ok {
		return nil, false, nil
	}
	return []byte(script), true, nil
}

func (s *store) LastIndex(keychain descriptor.Keychain) (uint32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, txstore.ErrClosed
	}

	index, ok := s.indexes[keychain]
	return index, ok, nil
}

func (s *store) SetLastIndex(keychain descriptor.Keychain,
	index uint32) error {

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txstore.ErrClosed
	}

	s.indexes[keychain] = index
	return nil
}

func (s *store) PutTx(rec *txstore.TxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txstore.ErrClosed
	}

	s.txs[rec.Hash] = cloneTx(rec)
	return nil
}

func (s *store) Tx(hash chainhash.Hash) (*txstore.TxRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, txstore.ErrClosed
	}

	rec, ok := s.txs[hash]
	if !ok {
		return nil, false, nil
	}
	return cloneTx(rec), true, nil
}

func (s *store) Txs() ([]*txstore.TxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, txstore.ErrClosed
	}

	recs := make([]*txstore.TxRecord, 0, len(s.txs))
	for _, rec := range s.txs {
		recs = append(recs, cloneTx(rec))
	}
	return recs, nil
}

func (s *store) DeleteTx(hash chainhash.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txstore.ErrClosed
	}

	delete(s.txs, hash)
	return nil
}

func (s *store) PutCredit(credit *txstore.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txstore.ErrClosed
	}

	s.credits[credit.OutPoint] = cloneCredit(credit)
	return nil
}

func (s *store) Credit(op wire.OutPoint) (*txstore.Credit, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, txstore.ErrClosed
	}

	credit, ok := s.credits[op]
	if !ok {
		return nil, false, nil
	}
	return cloneCredit(credit), true, nil
}

func (s *store) Credits() ([]*txstore.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, txstore.ErrClosed
	}

	credits := make([]*txstore.Credit, 0, len(s.credits))
	for _, credit := range s.credits {
		credits = append(credits, cloneCredit(credit))
	}
	return credits, nil
}

func (s *store) MarkSpent(op wire.OutPoint, spent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txstore.ErrClosed
	}

	if credit, ok := s.credits[op]; ok {
		credit.Spent = spent
	}
	return nil
}

func (s *store) DeleteCredit(op wire.OutPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txstore.ErrClosed
	}

	delete(s.credits, op)
	return nil
}

func (s *store) SyncState() (*txstore.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, txstore.ErrClosed
	}

	if s.syncState == nil {
		return nil, nil
	}
	state := *s.syncState
	return &state, nil
}

func (s *store) SetSyncState(state *txstore.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txstore.ErrClosed
	}

	cp := *state
	s.syncState = &cp
	return nil
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.scripts = nil
	s.paths = nil
	s.indexes = nil
	s.txs = nil
	s.credits = nil
	s.syncState = nil
	return nil
}
