// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sqlstore implements the txstore.Store interface on a
// database/sql handle. The schema and every statement are written in
// the dialect subset that PostgreSQL (via pgx) and SQLite (via modernc)
// execute identically: $n placeholders, TEXT/BIGINT/SMALLINT columns
// and ON CONFLICT upserts. Binary values are hex encoded.
package sqlstore

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/txstore"
)

// createStmts builds the schema. Statements run one at a time because
// the extended query protocol used by pgx does not accept batches.
var createStmts = []string{
	`CREATE TABLE IF NOT EXISTS scripts (
		script TEXT PRIMARY KEY,
		keychain SMALLINT NOT NULL,
		child_index BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS scripts_by_path
		ON scripts (keychain, child_index)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		txid TEXT PRIMARY KEY,
		raw_tx TEXT NOT NULL,
		received_at BIGINT NOT NULL,
		block_height BIGINT,
		block_hash TEXT,
		block_time BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS credits (
		txid TEXT NOT NULL,
		vout BIGINT NOT NULL,
		amount BIGINT NOT NULL,
		script TEXT NOT NULL,
		keychain SMALLINT NOT NULL,
		child_index BIGINT NOT NULL,
		spent SMALLINT NOT NULL DEFAULT 0,
		PRIMARY KEY (txid, vout)
	)`,
	`CREATE TABLE IF NOT EXISTS keychain_indexes (
		keychain SMALLINT PRIMARY KEY,
		last_index BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		id SMALLINT PRIMARY KEY,
		height BIGINT NOT NULL,
		block_hash TEXT NOT NULL,
		synced_at BIGINT NOT NULL
	)`,
}

// store is a database/sql-backed txstore.Store.
type store struct {
	db *sql.DB
}

// New wraps an opened database handle in a store, creating the schema
// when missing. The store takes ownership of the handle; Close closes
// it.
func New(db *sql.DB) (txstore.Store, error) {
	for _, stmt := range createStmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("create store schema: %w", err)
		}
	}
	return &store{db: db}, nil
}

// Open connects to the database identified by the sql driver name and
// DSN and wraps it in a store.
func Open(driverName, dsn string) (txstore.Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName,
			err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driverName,
			err)
	}

	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *store) PutScript(script []byte, path txstore.ScriptPath) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Drop a different script previously recorded at the same path,
	// then upsert the forward mapping.
	_, err = tx.Exec(
		`DELETE FROM scripts
			WHERE keychain = $1 AND child_index = $2
			AND script <> $3`,
		int16(path.Keychain), int64(path.Index),
		hex.EncodeToString(script),
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO scripts (script, keychain, child_index)
			VALUES ($1, $2, $3)
			ON CONFLICT (script) DO UPDATE SET
				keychain = excluded.keychain,
				child_index = excluded.child_index`,
		hex.EncodeToString(script), int16(path.Keychain),
		int64(path.Index),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *store) ScriptPath(script []byte) (txstore.ScriptPath, bool, error) {
	var (
		keychain int16
		index    int64
	)
	err := s.db.QueryRow(
		`SELECT keychain, child_index FROM scripts
			WHERE script = $1`,
		hex.EncodeToString(script),
	).Scan(&keychain, &index)
	if errors.Is(err, sql.ErrNoRows) {
		return txstore.ScriptPath{}, false, nil
	}
	if err != nil {
		return txstore.ScriptPath{}, false, err
	}

	return txstore.ScriptPath{
		Keychain: descriptor.Keychain(keychain),
		Index:    uint32(index),
	}, true, nil
}

func (s *store) ScriptAt(path txstore.ScriptPath) ([]byte, bool, error) {
	var encoded string
	err := s.db.QueryRow(
		`SELECT script FROM scripts
			WHERE keychain = $1 AND child_index = $2`,
		int16(path.Keychain), int64(path.Index),
	).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	script, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("decode stored script: %w", err)
	}
	return script, true, nil
}

func (s *store) LastIndex(keychain descriptor.Keychain) (uint32, bool, error) {
	var index int64
	err := s.db.QueryRow(
		`SELECT last_index FROM keychain_indexes
			WHERE keychain = $1`,
		int16(keychain),
	).Scan(&index)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint32(index), true, nil
}

func (s *store) SetLastIndex(keychain descriptor.Keychain,
	index uint32) error {

	_, err := s.db.Exec(
		`INSERT INTO keychain_indexes (keychain, last_index)
			VALUES ($1, $2)
			ON CONFLICT (keychain) DO UPDATE SET
				last_index = excluded.last_index`,
		int16(keychain), int64(index),
	)
	return err
}

func (s *store) PutTx(rec *txstore.TxRecord) error {
	var (
		height    sql.NullInt64
		blockHash sql.NullString
		blockTime sql.NullInt64
	)
	if rec.Block != nil {
		height = sql.NullInt64{
			Int64: int64(rec.Block.Height), Valid: true,
		}
		blockHash = sql.NullString{
			String: rec.Block.Hash.String(), Valid: true,
		}
		blockTime = sql.NullInt64{
			Int64: rec.Block.Time.Unix(), Valid: true,
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO transactions
			(txid, raw_tx, received_at, block_height,
			 block_hash, block_time)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (txid) DO UPDATE SET
				raw_tx = excluded.raw_tx,
				received_at = excluded.received_at,
				block_height = excluded.block_height,
				block_hash = excluded.block_hash,
				block_time = excluded.block_time`,
		rec.Hash.String(), hex.EncodeToString(rec.Serialized),
		rec.Received.Unix(), height, blockHash, blockTime,
	)
	return err
}

// scanTxRecord turns one transactions row into a record.
func scanTxRecord(txid, rawTx string, receivedAt int64,
	height sql.NullInt64, blockHash sql.NullString,
	blockTime sql.NullInt64) (*txstore.TxRecord, error) {

	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("decode stored txid: %w", err)
	}
	serialized, err := hex.DecodeString(rawTx)
	if err != nil {
		return nil, fmt.Errorf("decode stored transaction: %w", err)
	}

	rec := &txstore.TxRecord{
		Hash:       *hash,
		Serialized: serialized,
		Received:   time.Unix(receivedAt, 0),
	}
	if height.Valid {
		confirmHash, err := chainhash.NewHashFromStr(blockHash.String)
		if err != nil {
			return nil, fmt.Errorf("decode stored block hash: %w",
				err)
		}
		rec.Block = &txstore.BlockMeta{
			Height: int32(height.Int64),
			Hash:   *confirmHash,
			Time:   time.Unix(blockTime.Int64, 0),
		}
	}
	return rec, nil
}

func (s *store) Tx(hash chainhash.Hash) (*txstore.TxRecord, bool, error) {
	var (
		rawTx      string
		receivedAt int64
		height     sql.NullInt64
		blockHash  sql.NullString
		blockTime  sql.NullInt64
	)
	err := s.db.QueryRow(
		`SELECT raw_tx, received_at, block_height, block_hash,
			block_time
			FROM transactions WHERE txid = $1`,
		hash.String(),
	).Scan(&rawTx, &receivedAt, &height, &blockHash, &blockTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rec, err := scanTxRecord(
		hash.String(), rawTx, receivedAt, height, blockHash,
		blockTime,
	)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *store) Txs() ([]*txstore.TxRecord, error) {
	rows, err := s.db.Query(
		`SELECT txid, raw_tx, received_at, block_height, block_hash,
			block_time
			FROM transactions`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*txstore.TxRecord
	for rows.Next() {
		var (
			txid       string
			rawTx      string
			receivedAt int64
			height     sql.NullInt64
			blockHash  sql.NullString
			blockTime  sql.NullInt64
		)
		err := rows.Scan(
			&txid, &rawTx, &receivedAt, &height, &blockHash,
			&blockTime,
		)
		if err != nil {
			return nil, err
		}

		rec, err := scanTxRecord(
			txid, rawTx, receivedAt, height, blockHash, blockTime,
		)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *store) DeleteTx(hash chainhash.Hash) error {
	_, err := s.db.Exec(
		`DELETE FROM transactions WHERE txid = $1`, hash.String(),
	)
	return err
}

func (s *store) PutCredit(credit *txstore.Credit) error {
	spent := 0
	if credit.Spent {
		spent = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO credits
			(txid, vout, amount, script, keychain, child_index,
			 spent)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (txid, vout) DO UPDATE SET
				amount = excluded.amount,
				script = excluded.script,
				keychain = excluded.keychain,
				child_index = excluded.child_index,
				spent = excluded.spent`,
		credit.OutPoint.Hash.String(), int64(credit.OutPoint.Index),
		int64(credit.Amount), hex.EncodeToString(credit.Script),
		int16(credit.Path.Keychain), int64(credit.Path.Index), spent,
	)
	return err
}

// scanCredit turns one credits row into a credit.
func scanCredit(op wire.OutPoint, amount int64, script string,
	keychain int16, index int64, spent int16) (*txstore.Credit, error) {

	decoded, err := hex.DecodeString(script)
	if err != nil {
		return nil, fmt.Errorf("decode stored script: %w", err)
	}

	return &txstore.Credit{
		OutPoint: op,
		Amount:   btcutil.Amount(amount),
		Script:   decoded,
		Path: txstore.ScriptPath{
			Keychain: descriptor.Keychain(keychain),
			Index:    uint32(index),
		},
		Spent: spent != 0,
	}, nil
}

func (s *store) Credit(op wire.OutPoint) (*txstore.Credit, bool, error) {
	var (
		amount   int64
		script   string
		keychain int16
		index    int64
		spent    int16
	)
	err := s.db.QueryRow(
		`SELECT amount, script, keychain, child_index, spent
			FROM credits WHERE txid = $1 AND vout = $2`,
		op.Hash.String(), int64(op.Index),
	).Scan(&amount, &script, &keychain, &index, &spent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	credit, err := scanCredit(op, amount, script, keychain, index, spent)
	if err != nil {
		return nil, false, err
	}
	return credit, true, nil
}

func (s *store) Credits() ([]*txstore.Credit, error) {
	rows, err := s.db.Query(
		`SELECT txid, vout, amount, script, keychain, child_index,
			spent
			FROM credits`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []*txstore.Credit
	for rows.Next() {
		var (
			txid     string
			vout     int64
			amount   int64
			script   string
			keychain int16
			index    int64
			spent    int16
		)
		err := rows.Scan(
			&txid, &vout, &amount, &script, &keychain, &index,
			&spent,
		)
		if err != nil {
			return nil, err
		}

		hash, err := chainhash.NewHashFromStr(txid)
		if err != nil {
			return nil, fmt.Errorf("decode stored txid: %w", err)
		}
		op := wire.OutPoint{Hash: *hash, Index: uint32(vout)}

		credit, err := scanCredit(
			op, amount, script, keychain, index, spent,
		)
		if err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}
	return credits, rows.Err()
}

func (s *store) MarkSpent(op wire.OutPoint, spent bool) error {
	flag := 0
	if spent {
		flag = 1
	}

	// $n placeholders must appear in ascending order: sqlite numbers
	// named parameters by first occurrence, not by suffix.
	_, err := s.db.Exec(
		`UPDATE credits SET spent = $1
			WHERE txid = $2 AND vout = $3`,
		flag, op.Hash.String(), int64(op.Index),
	)
	return err
}

func (s *store) DeleteCredit(op wire.OutPoint) error {
	_, err := s.db.Exec(
		`DELETE FROM credits WHERE txid = $1 AND vout = $2`,
		op.Hash.String(), int64(op.Index),
	)
	return err
}

func (s *store) SyncState() (*txstore.SyncState, error) {
	var (
		height   int64
		hashText string
		syncedAt int64
	)
	err := s.db.QueryRow(
		`SELECT height, block_hash, synced_at FROM sync_state
			WHERE id = 1`,
	).Scan(&height, &hashText, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	hash, err := chainhash.NewHashFromStr(hashText)
	if err != nil {
		return nil, fmt.Errorf("decode stored block hash: %w", err)
	}

	return &txstore.SyncState{
		Height: int32(height),
		Hash:   *hash,
		Time:   time.Unix(syncedAt, 0),
	}, nil
}

func (s *store) SetSyncState(state *txstore.SyncState) error {
	_, err := s.db.Exec(
		`INSERT INTO sync_state (id, height, block_hash, synced_at)
			VALUES (1, $1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET
				height = excluded.height,
				block_hash = excluded.block_hash,
				synced_at = excluded.synced_at`,
		int64(state.Height), state.Hash.String(), state.Time.Unix(),
	)
	return err
}

func (s *store) Close() error {
	return s.db.Close()
}
