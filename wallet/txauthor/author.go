// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txauthor assembles unsigned transactions from wallet credits
// and signs their inputs once the caller accepts the result.
package txauthor

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/btcsuite/walletkit/txstore"
	"github.com/btcsuite/walletkit/wallet/txrules"
)

// sumOutputValues returns the summed value of outputs.
func sumOutputValues(outputs []*wire.TxOut) btcutil.Amount {
	var total btcutil.Amount
	for _, txOut := range outputs {
		total += btcutil.Amount(txOut.Value)
	}
	return total
}

// AuthoredTx is an unsigned transaction bundled with the bookkeeping
// needed to sign and audit it. PrevScripts and PrevInputValues are
// index-aligned with Tx.TxIn. ChangeIndex locates the change output in
// Tx.TxOut and is negative when the transaction carries none.
type AuthoredTx struct {
	Tx              *wire.MsgTx
	PrevScripts     [][]byte
	PrevInputValues []btcutil.Amount
	TotalInput      btcutil.Amount
	ChangeIndex     int
}

// ChangeSource yields change output scripts during transaction
// assembly.
type ChangeSource struct {
	// NewScript returns a previously unused change script. Assembly
	// calls it once, whether or not the final transaction carries
	// change.
	NewScript func() ([]byte, error)

	// ScriptSize is the serialize size of scripts returned by
	// NewScript, used to price the change output before it exists.
	ScriptSize int
}

// NewUnsignedTransaction assembles an unsigned transaction paying the
// given outputs, charging the fee priced by feeFunc for the worst case
// size of the signed transaction.
//
// Required credits are spent unconditionally, even when their value
// does not cover their own fee. Optional credits join one at a time
// until the accumulated value covers the outputs plus the fee. A
// candidate that adds more fee than value ends the selection, so
// callers supply the optional credits in descending value order.
//
// Value left over after the outputs and the fee becomes a change
// output built from changeSource, unless that output would be dust, in
// which case the remainder is surrendered to the fee.
//
// When the full optional set cannot fund the transaction, an
// InsufficientFundsError reporting the shortfall is returned.
//
// BUGS: P2PKH inputs are priced for compressed public keys. Spending
// an output paying an uncompressed key underestimates the size, and
// the settled fee falls below the requested rate.
func NewUnsignedTransaction(outputs []*wire.TxOut, feeFunc FeeFunc,
	required, optional []txstore.Credit,
	changeSource *ChangeSource) (*AuthoredTx, error) {

	changeScript, err := changeSource.NewScript()
	if err != nil {
		return nil, err
	}

	state := inputState{
		feeFunc:      feeFunc,
		targetAmount: sumOutputValues(outputs),
		outputs:      outputs,
		change: wire.TxOut{
			PkScript: changeScript,
		},
	}

	if len(required) > 0 {
		state.addRequired(required...)
	}

	for _, input := range optional {
		if state.funded() {
			break
		}

		// With candidates ordered by descending value, the first
		// negative yielding input means every later one is
		// negative yielding too.
		if !state.add(input) {
			return nil, &InsufficientFundsError{
				TargetAmount: state.targetAmount,
				TxFee:        state.txFee,
				Available:    state.inputTotal,
			}
		}
	}

	// The optional set may have run out before the target was
	// covered.
	if !state.funded() {
		return nil, &InsufficientFundsError{
			TargetAmount: state.targetAmount,
			TxFee:        state.txFee,
			Available:    state.inputTotal,
		}
	}

	txIn := make([]*wire.TxIn, 0, len(state.inputs))
	inputValues := make([]btcutil.Amount, 0, len(state.inputs))
	prevScripts := make([][]byte, 0, len(state.inputs))
	for _, input := range state.inputs {
		op := input.OutPoint
		txIn = append(txIn, wire.NewTxIn(&op, nil, nil))
		inputValues = append(inputValues, input.Amount)
		prevScripts = append(prevScripts, input.Script)
	}

	tx := &wire.MsgTx{
		Version: wire.TxVersion,
		TxIn:    txIn,
		TxOut:   outputs,
	}

	// Attach the change output only when its settled value clears
	// the dust limit. A dust remainder stays with the fee.
	changeIndex := -1
	if !txrules.IsDustOutput(&state.change,
		txrules.DefaultRelayFeePerKb) {

		n := len(outputs)
		tx.TxOut = append(outputs[:n:n], &state.change)
		changeIndex = n
	}

	return &AuthoredTx{
		Tx:              tx,
		PrevScripts:     prevScripts,
		PrevInputValues: inputValues,
		TotalInput:      state.inputTotal,
		ChangeIndex:     changeIndex,
	}, nil
}

// SecretsSource looks up the private keys and redeem scripts that sign
// transaction inputs. Lookups are keyed by the address encoded in the
// previous output script, interpreted under the source's chain
// parameters, so a single SecretsSource serves a single network.
type SecretsSource interface {
	txscript.KeyDB
	txscript.ScriptDB
	ChainParams() *chaincfg.Params
}

// AddAllInputScripts signs every input of tx in place. prevPkScripts
// and inputValues describe the outputs being spent, index-aligned with
// tx.TxIn, and secrets resolves the keys they pay to. Witness spends
// commit to the input values, so a wrong value yields a signature that
// fails script verification rather than an error here.
func AddAllInputScripts(tx *wire.MsgTx, prevPkScripts [][]byte,
	inputValues []btcutil.Amount, secrets SecretsSource) error {

	if len(tx.TxIn) != len(prevPkScripts) {
		return errors.New("previous script count mismatches inputs")
	}
	if len(tx.TxIn) != len(inputValues) {
		return errors.New("input value count mismatches inputs")
	}

	// The BIP-143 sighash midstate covers every spent output, so the
	// fetcher carries the full spent set before any input is signed.
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range tx.TxIn {
		fetcher.AddPrevOut(txIn.PreviousOutPoint, &wire.TxOut{
			Value:    int64(inputValues[i]),
			PkScript: prevPkScripts[i],
		})
	}
	hashCache := txscript.NewTxSigHashes(tx, fetcher)

	chainParams := secrets.ChainParams()
	for i, txIn := range tx.TxIn {
		pkScript := prevPkScripts[i]

		switch {
		// A spendable P2SH output always nests a witness program
		// here, needing both the program push in the signature
		// script and a witness.
		case txscript.IsPayToScriptHash(pkScript):
			err := signNestedWitnessKeyHash(
				txIn, pkScript, int64(inputValues[i]),
				chainParams, secrets, tx, hashCache, i,
			)
			if err != nil {
				return err
			}

		case txscript.IsPayToWitnessPubKeyHash(pkScript):
			err := signWitnessKeyHash(
				txIn, pkScript, int64(inputValues[i]),
				chainParams, secrets, tx, hashCache, i,
			)
			if err != nil {
				return err
			}

		// Everything else takes the legacy path, P2PKH in
		// practice.
		default:
			script, err := txscript.SignTxOutput(
				chainParams, tx, i, pkScript,
				txscript.SigHashAll, secrets, secrets,
				txIn.SignatureScript,
			)
			if err != nil {
				return err
			}
			txIn.SignatureScript = script
		}
	}

	return nil
}

// witnessKeyForScript resolves the key paying to pkScript and derives
// the version 0 witness program committing to its public key hash. The
// program honors the compression of the stored key.
func witnessKeyForScript(pkScript []byte, chainParams *chaincfg.Params,
	secrets SecretsSource) (*btcec.PrivateKey, []byte, bool, error) {

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(
		pkScript, chainParams,
	)
	if err != nil {
		return nil, nil, false, err
	}
	if len(addrs) != 1 {
		return nil, nil, false, errors.New("previous output script " +
			"does not name a single address")
	}

	privKey, compressed, err := secrets.GetKey(addrs[0])
	if err != nil {
		return nil, nil, false, err
	}

	pub := privKey.PubKey()
	var keyHash []byte
	if compressed {
		keyHash = btcutil.Hash160(pub.SerializeCompressed())
	} else {
		keyHash = btcutil.Hash160(pub.SerializeUncompressed())
	}

	witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(
		keyHash, chainParams,
	)
	if err != nil {
		return nil, nil, false, err
	}
	program, err := txscript.PayToAddrScript(witnessAddr)
	if err != nil {
		return nil, nil, false, err
	}

	return privKey, program, compressed, nil
}

// signWitnessKeyHash builds the witness spending a P2WPKH previous
// output.
func signWitnessKeyHash(txIn *wire.TxIn, pkScript []byte, inputValue int64,
	chainParams *chaincfg.Params, secrets SecretsSource, tx *wire.MsgTx,
	hashCache *txscript.TxSigHashes, idx int) error {

	privKey, program, _, err := witnessKeyForScript(
		pkScript, chainParams, secrets,
	)
	if err != nil {
		return err
	}

	witness, err := txscript.WitnessSignature(
		tx, hashCache, idx, inputValue, program,
		txscript.SigHashAll, privKey, true,
	)
	if err != nil {
		return err
	}
	txIn.Witness = witness

	return nil
}

// signNestedWitnessKeyHash builds both halves of a nested P2WPKH
// spend. The signature script carries only the canonical push of the
// witness program; the signature itself lives in the witness, exactly
// as in a plain P2WPKH spend.
func signNestedWitnessKeyHash(txIn *wire.TxIn, pkScript []byte,
	inputValue int64, chainParams *chaincfg.Params, secrets SecretsSource,
	tx *wire.MsgTx, hashCache *txscript.TxSigHashes, idx int) error {

	privKey, program, compressed, err := witnessKeyForScript(
		pkScript, chainParams, secrets,
	)
	if err != nil {
		return err
	}

	sigScript, err := txscript.NewScriptBuilder().AddData(program).
		Script()
	if err != nil {
		return err
	}
	txIn.SignatureScript = sigScript

	witness, err := txscript.WitnessSignature(
		tx, hashCache, idx, inputValue, program,
		txscript.SigHashAll, privKey, compressed,
	)
	if err != nil {
		return err
	}
	txIn.Witness = witness

	return nil
}
