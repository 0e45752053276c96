// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txrules

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// DefaultRelayFeePerKb is the relay fee rate assumed when no live
// mempool policy is available, in satoshis per 1000 bytes.
const DefaultRelayFeePerKb btcutil.Amount = 1e3

// isDust applies the mempool dust rule. An output is dust when its
// value falls under one third of the relay fee charged for the bytes
// the output occupies now plus the bytes its spend will occupy later.
func isDust(value btcutil.Amount, scriptSize, inputSize int,
	relayFeePerKb btcutil.Amount) bool {

	spendSize := 8 + wire.VarIntSerializeSize(uint64(scriptSize)) +
		scriptSize + inputSize
	return int64(value)*1000/(3*int64(spendSize)) < int64(relayFeePerKb)
}

// IsDustAmount reports whether an output of the given value and script
// size would be rejected as dust by a mempool relaying at the given
// rate. The future spend is assumed to redeem a compressed P2PKH
// output and is sized at the 148-byte average rather than the worst
// case, matching the reference mempool policy.
func IsDustAmount(amount btcutil.Amount, scriptSize int, relayFeePerKb btcutil.Amount) bool {
	return isDust(amount, scriptSize, 148, relayFeePerKb)
}

// IsDustOutput reports whether a transaction output would be rejected
// as dust by a mempool relaying at the given rate. Unlike
// IsDustAmount, the future spend is sized from the actual output
// script, so outputs paying a witness program are priced with the
// discounted witness spend size.
func IsDustOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) bool {
	// Data carrier outputs are unspendable on purpose and exempt from
	// the dust rule.
	if txscript.GetScriptClass(output.PkScript) == txscript.NullDataTy {
		return false
	}

	// Every other unspendable output is dust outright.
	if txscript.IsUnspendable(output.PkScript) {
		return true
	}

	// The input which later redeems a witness program carries the
	// signature material in the witness, where it only weighs in at a
	// quarter of its raw size:
	//
	//   36 prev outpoint, 1 script len, 4 sequence, 107/4 witness
	//   [1 element count, 1 sig len, 71 sig, 1 pubkey len, 33 pubkey]
	inputSize := 148
	if txscript.IsWitnessProgram(output.PkScript) {
		inputSize = 41 + 107/4
	}

	return isDust(
		btcutil.Amount(output.Value), len(output.PkScript), inputSize,
		relayFeePerKb,
	)
}

// Violations reported by CheckOutput.
var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
	ErrOutputIsDust     = errors.New("transaction output is dust")
)

// CheckOutput runs the consensus range checks and the dust policy test
// against a single transaction output.
func CheckOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) error {
	if output.Value < 0 {
		return ErrAmountNegative
	}
	if output.Value > btcutil.MaxSatoshi {
		return ErrAmountExceedsMax
	}
	if IsDustOutput(output, relayFeePerKb) {
		return ErrOutputIsDust
	}
	return nil
}

// FeeForSerializeSize returns the fee a transaction of the given
// serialize size must pay under the given relay rate.
func FeeForSerializeSize(relayFeePerKb btcutil.Amount, txSerializeSize int) btcutil.Amount {
	fee := relayFeePerKb * btcutil.Amount(txSerializeSize) / 1000

	// A nonzero rate never charges nothing; tiny transactions round
	// up to the full per-kb rate.
	if fee == 0 && relayFeePerKb > 0 {
		fee = relayFeePerKb
	}

	// Clamp overflowed or absurd products to the coin supply bound.
	if fee < 0 || fee > btcutil.MaxSatoshi {
		fee = btcutil.MaxSatoshi
	}

	return fee
}
