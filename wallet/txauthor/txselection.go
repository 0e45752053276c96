// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcsuite/walletkit/txstore"
	"github.com/btcsuite/walletkit/wallet/txrules"
	"github.com/btcsuite/walletkit/wallet/txsizes"
)

// InsufficientFundsError signals that input selection could not cover
// the target amount plus the required fee. It carries the amounts so
// callers can report how much funding was missing.
type InsufficientFundsError struct {
	TargetAmount btcutil.Amount
	TxFee        btcutil.Amount
	Available    btcutil.Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %v plus a fee of %v, "+
		"have %v spendable", e.TargetAmount, e.TxFee, e.Available)
}

// FeeFunc returns the fee charged for a transaction of the given
// virtual size.
type FeeFunc func(vsize int) btcutil.Amount

// FeeForRate builds a FeeFunc charging the given relay fee rate per
// kilo-vbyte.
func FeeForRate(feePerKb btcutil.Amount) FeeFunc {
	return func(vsize int) btcutil.Amount {
		return txrules.FeeForSerializeSize(feePerKb, vsize)
	}
}

// AbsoluteFee builds a FeeFunc charging a fixed fee regardless of the
// transaction size.
func AbsoluteFee(fee btcutil.Amount) FeeFunc {
	return func(int) btcutil.Amount {
		return fee
	}
}

// inputState tracks a transaction while inputs are selected for it.
// Every grow step reprices the transaction and leaves the remainder in
// the change output value.
type inputState struct {
	// feeFunc prices the current transaction state.
	feeFunc FeeFunc

	// txFee is the fee charged for the state as last priced.
	txFee btcutil.Amount

	// inputTotal is the summed value of the selected inputs.
	inputTotal btcutil.Amount

	// targetAmount is the value the selection must fund, excluding
	// change and fee.
	targetAmount btcutil.Amount

	// change carries the change script and whatever value remains
	// after the target and the fee. The value may sit below the dust
	// limit or go negative while the selection is still short.
	change wire.TxOut

	// inputs are the selected credits. Credits are kept whole rather
	// than reduced to outpoints because the previous output script
	// decides each input's weight in the size estimate.
	inputs []txstore.Credit

	// outputs are the requested payments. Empty for a pure drain,
	// where the change output carries the entire spend.
	outputs []*wire.TxOut
}

// vsize returns the worst case virtual size of the state, optionally
// with the change output counted in.
func (s *inputState) vsize(withChange bool) int {
	// Split the inputs by script family. Any P2SH credit the wallet
	// can spend hides a witness program, so it counts as a nested
	// P2WPKH spend.
	var nested, p2wpkh, p2pkh int
	for _, input := range s.inputs {
		switch {
		case txscript.IsPayToScriptHash(input.Script):
			nested++
		case txscript.IsPayToWitnessPubKeyHash(input.Script):
			p2wpkh++
		default:
			p2pkh++
		}
	}

	changeScriptSize := 0
	if withChange {
		changeScriptSize = len(s.change.PkScript)
	}

	return txsizes.EstimateVirtualSize(
		p2pkh, p2wpkh, nested, s.outputs, changeScriptSize,
	)
}

// funded reports whether the selected inputs carry the transaction.
// Either the change output has reached dust-exempt value, or the inputs
// cover the target plus the fee of a changeless transaction that still
// pays somebody.
func (s *inputState) funded() bool {
	if !txrules.IsDustOutput(&s.change, txrules.DefaultRelayFeePerKb) {
		return true
	}

	// No viable change output. Reprice without one; the surplus that
	// was earmarked for change is folded into the fee.
	s.txFee = s.feeFunc(s.vsize(false))

	if s.inputTotal < s.targetAmount+s.txFee {
		return false
	}

	// A changeless transaction must still have at least one output.
	return len(s.outputs) > 0
}

// clone returns a copy of the state that can be grown and thrown away
// without disturbing the original.
func (s *inputState) clone() inputState {
	c := inputState{
		feeFunc:      s.feeFunc,
		txFee:        s.txFee,
		inputTotal:   s.inputTotal,
		targetAmount: s.targetAmount,
		change:       s.change,
		outputs:      make([]*wire.TxOut, len(s.outputs)),
		inputs:       make([]txstore.Credit, len(s.inputs)),
	}

	// The outputs are copied by value so a repriced clone never
	// reaches back into the originals.
	for i, out := range s.outputs {
		cp := *out
		c.outputs[i] = &cp
	}

	copy(c.inputs, s.inputs)

	return c
}

// outputTotal returns the summed value of all outputs including change.
// The result can be dust or negative while a negative yielding input
// drags the change value down.
func (s *inputState) outputTotal() btcutil.Amount {
	// An empty state reports zero so that the very first input can
	// join even though it falls short of the target. Until the target
	// is met the change value is negative and would otherwise sink
	// every candidate's yield.
	if len(s.inputs) == 0 {
		return 0
	}

	return s.targetAmount + btcutil.Amount(s.change.Value)
}

// grow returns a copy of the state extended by the given inputs, with
// the fee and change value recomputed. With checkYield set, inputs that
// shrink the total output value cost more to spend than they add, and
// nil is returned instead.
func (s *inputState) grow(checkYield bool,
	inputs ...txstore.Credit) *inputState {

	next := s.clone()

	for _, input := range inputs {
		next.inputs = append(next.inputs, input)
		next.inputTotal += input.Amount
	}

	next.txFee = next.feeFunc(next.vsize(true))
	next.change.Value = int64(
		next.inputTotal - next.targetAmount - next.txFee,
	)

	if checkYield {
		if next.outputTotal()-s.outputTotal() <= 0 {
			return nil
		}
	}

	return &next
}

// add grows the state by one input if it is positive yielding and
// reports whether it was added.
func (s *inputState) add(input txstore.Credit) bool {
	next := s.grow(true, input)
	if next == nil {
		return false
	}

	*s = *next
	return true
}

// addRequired grows the state by inputs the caller insists on spending,
// skipping the yield check.
func (s *inputState) addRequired(inputs ...txstore.Credit) {
	*s = *s.grow(false, inputs...)
}
