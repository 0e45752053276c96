// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txsizes estimates the worst case virtual size of unsigned
// transactions ahead of signing, so fees can be committed before any
// signature exists.  Estimates cover the three script families the
// descriptor set produces: P2PKH, P2WPKH and P2WPKH nested in P2SH.
package txsizes

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
)

// Worst case sizes of the script family building blocks.  Signature
// material is sized for a 73-byte DER signature (72 plus the sighash
// byte) and a 33-byte compressed pubkey, each behind a one-byte push.
const (
	// RedeemP2PKHSigScriptSize is the worst case size of the signature
	// script redeeming a compressed P2PKH output: two pushes carrying
	// the signature and the pubkey.
	RedeemP2PKHSigScriptSize = 1 + 73 + 1 + 33

	// P2PKHPkScriptSize is the size of a pay-to-pubkey-hash output
	// script: OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY
	// OP_CHECKSIG.
	P2PKHPkScriptSize = 1 + 1 + 1 + 20 + 1 + 1

	// RedeemP2PKHInputSize is the worst case serialize size of an input
	// redeeming a compressed P2PKH output: 36-byte outpoint, one byte
	// script length, the signature script and the 4-byte sequence.
	RedeemP2PKHInputSize = 32 + 4 + 1 + RedeemP2PKHSigScriptSize + 4

	// P2WPKHPkScriptSize is the size of a pay-to-witness-pubkey-hash
	// output script: OP_0 <20-byte hash>.
	P2WPKHPkScriptSize = 1 + 1 + 20

	// RedeemP2WPKHInputSize is the serialize size of an input redeeming
	// a P2WPKH output.  The signature script must be empty, leaving the
	// outpoint, a zero script length and the sequence.
	RedeemP2WPKHInputSize = 32 + 4 + 1 + 4

	// NestedP2WPKHPkScriptSize is the size of the P2SH output script
	// hiding a nested witness program: OP_HASH160 <20-byte hash>
	// OP_EQUAL.
	NestedP2WPKHPkScriptSize = 1 + 1 + 20 + 1

	// RedeemNestedP2WPKHScriptSize is the size of the canonical push of
	// the version 0 witness program into the signature script of a
	// nested P2WPKH spend.
	RedeemNestedP2WPKHScriptSize = 1 + 1 + 1 + 20

	// RedeemNestedP2WPKHInputSize is the worst case serialize size of
	// an input redeeming a nested P2WPKH output.
	RedeemNestedP2WPKHInputSize = 32 + 4 + 1 +
		RedeemNestedP2WPKHScriptSize + 4

	// RedeemP2WPKHInputWitnessWeight is the worst case weight of the
	// witness redeeming a plain or nested P2WPKH output: item count,
	// then the signature and pubkey items.
	RedeemP2WPKHInputWitnessWeight = 1 + 1 + 73 + 1 + 33
)

// sumOutputSerializeSizes returns the summed serialize size of outputs.
func sumOutputSerializeSizes(outputs []*wire.TxOut) int {
	var size int
	for _, txOut := range outputs {
		size += txOut.SerializeSize()
	}
	return size
}

// EstimateVirtualSize returns the worst case virtual size of a signed
// transaction spending the given mix of P2PKH, P2WPKH and nested
// P2WPKH outputs and paying to txOuts.  A positive changeScriptSize
// accounts for one additional change output of that script size.
func EstimateVirtualSize(numP2PKHIns, numP2WPKHIns, numNestedP2WPKHIns int,
	txOuts []*wire.TxOut, changeScriptSize int) int {

	change := 0
	if changeScriptSize > 0 {
		change = 8 +
			wire.VarIntSerializeSize(uint64(changeScriptSize)) +
			changeScriptSize
	}

	outputCount := len(txOuts)
	if change > 0 {
		outputCount++
	}

	// The non-witness bytes: version and locktime, the input and
	// output count varints, every input at its worst case size and
	// every output including change.
	inputCount := numP2PKHIns + numP2WPKHIns + numNestedP2WPKHIns
	base := 8 +
		wire.VarIntSerializeSize(uint64(inputCount)) +
		wire.VarIntSerializeSize(uint64(outputCount)) +
		numP2PKHIns*RedeemP2PKHInputSize +
		numP2WPKHIns*RedeemP2WPKHInputSize +
		numNestedP2WPKHIns*RedeemNestedP2WPKHInputSize +
		sumOutputSerializeSizes(txOuts) +
		change

	// Witness bytes count only when some input carries a witness: the
	// two marker and flag bytes, the per-input witness item counts and
	// the witness items themselves.
	witness := 0
	numWitnessIns := numP2WPKHIns + numNestedP2WPKHIns
	if numWitnessIns > 0 {
		witness = 2 +
			wire.VarIntSerializeSize(uint64(numWitnessIns)) +
			numWitnessIns*RedeemP2WPKHInputWitnessWeight
	}

	// Adding the scale factor minus one rounds the discounted witness
	// bytes up.
	return base + (witness+3)/blockchain.WitnessScaleFactor
}
