// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package boltdb

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/txstore"
	"github.com/lightningnetwork/lnd/tlv"
)

// TLV type assignments for the stored record kinds. Types are scoped to
// the record they appear in.
const (
	typeTxSerialized tlv.Type = 1
	typeTxReceived   tlv.Type = 2
	typeTxHeight     tlv.Type = 3
	typeTxBlockHash  tlv.Type = 4
	typeTxBlockTime  tlv.Type = 5

	typeCreditAmount   tlv.Type = 1
	typeCreditScript   tlv.Type = 2
	typeCreditKeychain tlv.Type = 3
	typeCreditIndex    tlv.Type = 4
	typeCreditSpent    tlv.Type = 5

	typeSyncHeight tlv.Type = 1
	typeSyncHash   tlv.Type = 2
	typeSyncTime   tlv.Type = 3
)

// byteOrder is used for the fixed-width key encodings.
var byteOrder = binary.BigEndian

// pathKey encodes a script path as a fixed-width bucket key that sorts
// by keychain, then index.
func pathKey(path txstore.ScriptPath) []byte {
	var key [5]byte
	key[0] = uint8(path.Keychain)
	byteOrder.PutUint32(key[1:], path.Index)
	return key[:]
}

// decodePathKey is the inverse of pathKey.
func decodePathKey(key []byte) txstore.ScriptPath {
	return txstore.ScriptPath{
		Keychain: descriptor.Keychain(key[0]),
		Index:    byteOrder.Uint32(key[1:]),
	}
}

// outPointKey encodes an outpoint as the 36-byte concatenation of the
// transaction hash and the big-endian output index.
func outPointKey(op wire.OutPoint) []byte {
	var key [36]byte
	copy(key[:32], op.Hash[:])
	byteOrder.PutUint32(key[32:], op.Index)
	return key[:]
}

// decodeOutPointKey is the inverse of outPointKey.
func decodeOutPointKey(key []byte) wire.OutPoint {
	var op wire.OutPoint
	copy(op.Hash[:], key[:32])
	op.Index = byteOrder.Uint32(key[32:])
	return op
}

// encodeTxRecord encodes a transaction record as a TLV stream. The
// block fields are only present for confirmed transactions.
func encodeTxRecord(rec *txstore.TxRecord) ([]byte, error) {
	received := uint64(rec.Received.Unix())
	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeTxSerialized, &rec.Serialized),
		tlv.MakePrimitiveRecord(typeTxReceived, &received),
	}

	if rec.Block != nil {
		height := uint32(rec.Block.Height)
		blockHash := [32]byte(rec.Block.Hash)
		blockTime := uint64(rec.Block.Time.Unix())
		records = append(records,
			tlv.MakePrimitiveRecord(typeTxHeight, &height),
			tlv.MakePrimitiveRecord(typeTxBlockHash, &blockHash),
			tlv.MakePrimitiveRecord(typeTxBlockTime, &blockTime),
		)
	}

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeTxRecord decodes a TLV stream into the transaction record
// stored under hash.
func decodeTxRecord(hash chainhash.Hash,
	data []byte) (*txstore.TxRecord, error) {

	var (
		serialized []byte
		received   uint64
		height     uint32
		blockHash  [32]byte
		blockTime  uint64
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeTxSerialized, &serialized),
		tlv.MakePrimitiveRecord(typeTxReceived, &received),
		tlv.MakePrimitiveRecord(typeTxHeight, &height),
		tlv.MakePrimitiveRecord(typeTxBlockHash, &blockHash),
		tlv.MakePrimitiveRecord(typeTxBlockTime, &blockTime),
	)
	if err != nil {
		return nil, err
	}

	parsedTypes, err := stream.DecodeWithParsedTypes(
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, err
	}

	rec := &txstore.TxRecord{
		Hash:       hash,
		Serialized: serialized,
		Received:   time.Unix(int64(received), 0),
	}
	if _, ok := parsedTypes[typeTxHeight]; ok {
		rec.Block = &txstore.BlockMeta{
			Height: int32(height),
			Hash:   chainhash.Hash(blockHash),
			Time:   time.Unix(int64(blockTime), 0),
		}
	}
	return rec, nil
}

// encodeCredit encodes a credit as a TLV stream. The outpoint is not
// part of the value; it is the bucket key.
func encodeCredit(credit *txstore.Credit) ([]byte, error) {
	var (
		amount   = uint64(credit.Amount)
		keychain = uint8(credit.Path.Keychain)
		spent    uint8
	)
	if credit.Spent {
		spent = 1
	}

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeCreditAmount, &amount),
		tlv.MakePrimitiveRecord(typeCreditScript, &credit.Script),
		tlv.MakePrimitiveRecord(typeCreditKeychain, &keychain),
		tlv.MakePrimitiveRecord(typeCreditIndex, &credit.Path.Index),
		tlv.MakePrimitiveRecord(typeCreditSpent, &spent),
	)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeCredit decodes a TLV stream into the credit stored at op.
func decodeCredit(op wire.OutPoint, data []byte) (*txstore.Credit, error) {
	var (
		amount   uint64
		script   []byte
		keychain uint8
		index    uint32
		spent    uint8
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeCreditAmount, &amount),
		tlv.MakePrimitiveRecord(typeCreditScript, &script),
		tlv.MakePrimitiveRecord(typeCreditKeychain, &keychain),
		tlv.MakePrimitiveRecord(typeCreditIndex, &index),
		tlv.MakePrimitiveRecord(typeCreditSpent, &spent),
	)
	if err != nil {
		return nil, err
	}

	if _, err := stream.DecodeWithParsedTypes(
		bytes.NewReader(data),
	); err != nil {
		return nil, err
	}

	return &txstore.Credit{
		OutPoint: op,
		Amount:   btcutil.Amount(amount),
		Script:   script,
		Path: txstore.ScriptPath{
			Keychain: descriptor.Keychain(keychain),
			Index:    index,
		},
		Spent: spent != 0,
	}, nil
}

// encodeSyncState encodes the sync position as a TLV stream.
func encodeSyncState(state *txstore.SyncState) ([]byte, error) {
	var (
		height   = uint32(state.Height)
		hash     = [32]byte(state.Hash)
		syncTime = uint64(state.Time.Unix())
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeSyncHeight, &height),
		tlv.MakePrimitiveRecord(typeSyncHash, &hash),
		tlv.MakePrimitiveRecord(typeSyncTime, &syncTime),
	)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSyncState decodes a TLV stream into a sync position.
func decodeSyncState(data []byte) (*txstore.SyncState, error) {
	var (
		height   uint32
		hash     [32]byte
		syncTime uint64
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeSyncHeight, &height),
		tlv.MakePrimitiveRecord(typeSyncHash, &hash),
		tlv.MakePrimitiveRecord(typeSyncTime, &syncTime),
	)
	if err != nil {
		return nil, err
	}

	if _, err := stream.DecodeWithParsedTypes(
		bytes.NewReader(data),
	); err != nil {
		return nil, err
	}

	return &txstore.SyncState{
		Height: int32(height),
		Hash:   chainhash.Hash(hash),
		Time:   time.Unix(int64(syncTime), 0),
	}, nil
}
