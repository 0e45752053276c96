// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package boltdb implements the txstore.Store interface on a bbolt
// key/value file. Records are TLV encoded, so the on-disk format
// tolerates new optional fields without migrations.
package boltdb

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/txstore"
	"go.etcd.io/bbolt"
)

var (
	bucketScripts = []byte("scripts")
	bucketPaths   = []byte("paths")
	bucketTxs     = []byte("txs")
	bucketCredits = []byte("credits")
	bucketIndexes = []byte("indexes")
	bucketSync    = []byte("syncstate")

	syncStateKey = []byte("state")
)

// store is a bbolt-backed txstore.Store.
type store struct {
	db *bbolt.DB
}

// Open opens the store at path, creating the file and its buckets when
// missing.
func Open(path string) (txstore.Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketScripts, bucketPaths, bucketTxs,
			bucketCredits, bucketIndexes, bucketSync,
		}
		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create store buckets: %w", err)
	}

	return &store{db: db}, nil
}

// mapErr converts backend lifecycle errors to the shared store
// sentinels.
func mapErr(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return txstore.ErrClosed
	}
	return err
}

func (s *store) PutScript(script []byte, path txstore.ScriptPath) error {
	return mapErr(s.db.Update(func(tx *bbolt.Tx) error {
		scripts := tx.Bucket(bucketScripts)
		paths := tx.Bucket(bucketPaths)
		key := pathKey(path)

		// Drop any stale mapping in either direction.
		if old := scripts.Get(script); old != nil {
			if err := paths.Delete(old); err != nil {
				return err
			}
		}
		if old := paths.Get(key); old != nil {
			if err := scripts.Delete(old); err != nil {
				return err
			}
		}

		if err := scripts.Put(script, key); err != nil {
			return err
		}
		return paths.Put(key, script)
	}))
}

func (s *store) ScriptPath(script []byte) (txstore.ScriptPath, bool, error) {
	var (
		path  txstore.ScriptPath
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketScripts).Get(script)
		if value == nil {
			return nil
		}
		path = decodePathKey(value)
		found = true
		return nil
	})
	return path, found, mapErr(err)
}

func (s *store) ScriptAt(path txstore.ScriptPath) ([]byte, bool, error) {
	var script []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketPaths).Get(pathKey(path))
		if value != nil {
			script = append([]byte(nil), value...)
		}
		return nil
	})
	return script, script != nil, mapErr(err)
}

func (s *store) LastIndex(keychain descriptor.Keychain) (uint32, bool, error) {
	var (
		index uint32
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketIndexes).Get(
			[]byte{uint8(keychain)},
		)
		if value == nil {
			return nil
		}
		index = byteOrder.Uint32(value)
		found = true
		return nil
	})
	return index, found, mapErr(err)
}

func (s *store) SetLastIndex(keychain descriptor.Keychain,
	index uint32) error {

	return mapErr(s.db.Update(func(tx *bbolt.Tx) error {
		var value [4]byte
		byteOrder.PutUint32(value[:], index)
		return tx.Bucket(bucketIndexes).Put(
			[]byte{uint8(keychain)}, value[:],
		)
	}))
}

func (s *store) PutTx(rec *txstore.TxRecord) error {
	value, err := encodeTxRecord(rec)
	if err != nil {
		return err
	}

	return mapErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTxs).Put(rec.Hash[:], value)
	}))
}

func (s *store) Tx(hash chainhash.Hash) (*txstore.TxRecord, bool, error) {
	var rec *txstore.TxRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketTxs).Get(hash[:])
		if value == nil {
			return nil
		}
		var err error
		rec, err = decodeTxRecord(hash, value)
		return err
	})
	if err != nil {
		return nil, false, mapErr(err)
	}
	return rec, rec != nil, nil
}

func (s *store) Txs() ([]*txstore.TxRecord, error) {
	var recs []*txstore.TxRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTxs).ForEach(func(k, v []byte) error {
			var hash chainhash.Hash
			copy(hash[:], k)

			rec, err := decodeTxRecord(hash, v)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, mapErr(err)
}

func (s *store) DeleteTx(hash chainhash.Hash) error {
	return mapErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTxs).Delete(hash[:])
	}))
}

func (s *store) PutCredit(credit *txstore.Credit) error {
	value, err := encodeCredit(credit)
	if err != nil {
		return err
	}

	return mapErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCredits).Put(
			outPointKey(credit.OutPoint), value,
		)
	}))
}

func (s *store) Credit(op wire.OutPoint) (*txstore.Credit, bool, error) {
	var credit *txstore.Credit
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketCredits).Get(outPointKey(op))
		if value == nil {
			return nil
		}
		var err error
		credit, err = decodeCredit(op, value)
		return err
	})
	if err != nil {
		return nil, false, mapErr(err)
	}
	return credit, credit != nil, nil
}

func (s *store) Credits() ([]*txstore.Credit, error) {
	var credits []*txstore.Credit
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredits)
		return bucket.ForEach(func(k, v []byte) error {
			credit, err := decodeCredit(decodeOutPointKey(k), v)
			if err != nil {
				return err
			}
			credits = append(credits, credit)
			return nil
		})
	})
	return credits, mapErr(err)
}

func (s *store) MarkSpent(op wire.OutPoint, spent bool) error {
	return mapErr(s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredits)
		key := outPointKey(op)

		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		credit, err := decodeCredit(op, value)
		if err != nil {
			return err
		}
		credit.Spent = spent

		updated, err := encodeCredit(credit)
		if err != nil {
			return err
		}
		return bucket.Put(key, updated)
	}))
}

func (s *store) DeleteCredit(op wire.OutPoint) error {
	return mapErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCredits).Delete(outPointKey(op))
	}))
}

func (s *store) SyncState() (*txstore.SyncState, error) {
	var state *txstore.SyncState
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketSync).Get(syncStateKey)
		if value == nil {
			return nil
		}
		var err error
		state, err = decodeSyncState(value)
		return err
	})
	return state, mapErr(err)
}

func (s *store) SetSyncState(state *txstore.SyncState) error {
	value, err := encodeSyncState(state)
	if err != nil {
		return err
	}

	return mapErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSync).Put(syncStateKey, value)
	}))
}

func (s *store) Close() error {
	return s.db.Close()
}
