// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/txstore"
	"github.com/btcsuite/walletkit/wallet/txauthor"
)

// SignOptions controls how Sign treats a packet.  The zero value signs
// without finalizing; passing nil to Sign uses the defaults noted on
// each field instead.
type SignOptions struct {
	// TrustWitnessUtxo accepts an input's witness output as signing
	// data when the full previous transaction is absent.  When false
	// (the default) such inputs must instead match one of the
	// wallet's own recorded outputs.
	TrustWitnessUtxo bool

	// TryFinalize attempts to finalize every input after signing.
	// Defaults to true.
	TryFinalize bool

	// RemovePartialSigs drops leftover partial signatures from
	// inputs that end up finalized.  Defaults to true.
	RemovePartialSigs bool
}

// Sign adds signatures for every packet input that spends one of the
// wallet's outputs.  Inputs the wallet does not recognize are left for
// other signers.  The boolean result reports whether every input in
// the packet is finalized, meaning the extracted transaction is ready
// for broadcast.
//
// A wallet built from public key descriptors cannot sign and returns
// descriptor.ErrNoSecrets.
func (w *Wallet) Sign(packet *psbt.Packet, opts *SignOptions) (bool, error) {
	if opts == nil {
		opts = &SignOptions{TryFinalize: true, RemovePartialSigs: true}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.external.HasSecrets() &&
		(w.internal == nil || !w.internal.HasSecrets()) {

		return false, descriptor.ErrNoSecrets
	}

	tx := packet.UnsignedTx
	if len(tx.TxIn) == 0 {
		return false, fmt.Errorf("wallet: packet has no inputs")
	}

	// Resolve every input's previous output up front.  Signing needs
	// the output values and scripts even for inputs that are not
	// ours, since segwit digests commit to all of them.
	prevOuts := make([]*wire.TxOut, len(tx.TxIn))
	paths := make([]*txstore.ScriptPath, len(tx.TxIn))
	for idx := range tx.TxIn {
		prevOut, err := w.inputPrevOut(packet, idx, opts.TrustWitnessUtxo)
		if err != nil {
			return false, err
		}
		prevOuts[idx] = prevOut

		path, ok, err := w.store.ScriptPath(prevOut.PkScript)
		if err != nil {
			return false, err
		}
		if ok {
			p := path
			paths[idx] = &p
		}
	}

	// When every input is the wallet's own and nothing asks for an
	// unusual sighash, sign and finalize in a single pass.
	if opts.TryFinalize && allMine(paths) && sigHashAllOnly(packet) {
		if err := w.signAll(packet, prevOuts); err != nil {
			return false, err
		}
		log.Debugf("Signed and finalized all %d %s", len(tx.TxIn),
			pickNoun(len(tx.TxIn), "input", "inputs"))
		return packet.IsComplete(), nil
	}

	// Otherwise attach partial signatures to the owned inputs and
	// leave the rest alone.
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txIn := range tx.TxIn {
		fetcher.AddPrevOut(txIn.PreviousOutPoint, prevOuts[idx])
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	signed := 0
	for idx := range tx.TxIn {
		path := paths[idx]
		if path == nil {
			continue
		}
		in := &packet.Inputs[idx]
		if len(in.FinalScriptSig) > 0 || len(in.FinalScriptWitness) > 0 {
			continue
		}
		err := w.signInput(tx, in, idx, prevOuts[idx], *path, sigHashes)
		if err != nil {
			return false, fmt.Errorf("wallet: input %d: %w", idx, err)
		}
		signed++
	}
	log.Debugf("Signed %d of %d %s", signed, len(tx.TxIn),
		pickNoun(len(tx.TxIn), "input", "inputs"))

	if opts.TryFinalize {
		for idx := range packet.Inputs {
			// Inputs waiting on other signers are expected to
			// refuse finalizing.
			_, err := psbt.MaybeFinalize(packet, idx)
			if err != nil {
				log.Debugf("Input %d not finalized: %v", idx,
					err)
			}
		}
	}
	if opts.RemovePartialSigs {
		removePartialSigs(packet)
	}
	return packet.IsComplete(), nil
}

// inputPrevOut locates the previous output an input spends, preferring
// the data carried in the packet and falling back to the wallet's own
// records.
func (w *Wallet) inputPrevOut(packet *psbt.Packet, idx int,
	trustWitnessUtxo bool) (*wire.TxOut, error) {

	txIn := packet.UnsignedTx.TxIn[idx]
	in := &packet.Inputs[idx]

	if in.NonWitnessUtxo != nil {
		prev := in.NonWitnessUtxo
		if prev.TxHash() != txIn.PreviousOutPoint.Hash {
			return nil, fmt.Errorf("wallet: input %d: previous "+
				"transaction does not match outpoint %v", idx,
				txIn.PreviousOutPoint)
		}
		prevIndex := txIn.PreviousOutPoint.Index
		if prevIndex >= uint32(len(prev.TxOut)) {
			return nil, fmt.Errorf("wallet: input %d: outpoint %v "+
				"exceeds previous outputs", idx,
				txIn.PreviousOutPoint)
		}
		return prev.TxOut[prevIndex], nil
	}

	if trustWitnessUtxo && in.WitnessUtxo != nil {
		return in.WitnessUtxo, nil
	}

	// The wallet's own records beat an untrusted witness output.
	credit, ok, err := w.store.Credit(txIn.PreviousOutPoint)
	if err != nil {
		return nil, err
	}
	if ok {
		return &wire.TxOut{
			Value:    int64(credit.Amount),
			PkScript: credit.Script,
		}, nil
	}

	return nil, fmt.Errorf("wallet: input %d: %w", idx, ErrMissingUtxo)
}

// signAll signs every input through the transaction author and grafts
// the final scripts onto the packet.  All inputs must be wallet
// outputs.  The caller must hold the wallet lock.
func (w *Wallet) signAll(packet *psbt.Packet, prevOuts []*wire.TxOut) error {
	tx := packet.UnsignedTx.Copy()
	prevScripts := make([][]byte, len(prevOuts))
	inputValues := make([]btcutil.Amount, len(prevOuts))
	for i, prevOut := range prevOuts {
		prevScripts[i] = prevOut.PkScript
		inputValues[i] = btcutil.Amount(prevOut.Value)
	}

	err := txauthor.AddAllInputScripts(
		tx, prevScripts, inputValues, secretsSource{w},
	)
	if err != nil {
		return err
	}

	for idx, txIn := range tx.TxIn {
		in := &packet.Inputs[idx]
		in.FinalScriptSig = txIn.SignatureScript
		if len(txIn.Witness) > 0 {
			// Serialize the witness from the stack
			// representation to the wire representation.
			var buf bytes.Buffer
			if err := psbt.WriteTxWitness(&buf, txIn.Witness); err != nil {
				return err
			}
			in.FinalScriptWitness = buf.Bytes()
		}
		in.PartialSigs = nil
	}
	return nil
}

// signInput attaches a partial signature for one owned input.  The
// caller must hold the wallet lock.
func (w *Wallet) signInput(tx *wire.MsgTx, in *psbt.PInput, idx int,
	prevOut *wire.TxOut, path txstore.ScriptPath,
	sigHashes *txscript.TxSigHashes) error {

	desc := w.descriptorFor(path.Keychain)
	privKey, err := desc.PrivKeyAt(path.Index)
	if err != nil {
		return err
	}
	pubBytes, err := desc.PubKeyBytesAt(path.Index)
	if err != nil {
		return err
	}

	hashType := in.SighashType
	if hashType == 0 {
		hashType = txscript.SigHashAll
	}

	var sig []byte
	switch desc.Kind() {
	case descriptor.KindPKH:
		sig, err = txscript.RawTxInSignature(
			tx, idx, prevOut.PkScript, hashType, privKey,
		)

	default:
		// Nested and native inputs sign the same way once the
		// witness program is known.
		witnessProgram := prevOut.PkScript
		if desc.Kind() == descriptor.KindSHWPKH {
			redeem, redeemErr := desc.RedeemScriptAt(path.Index)
			if redeemErr != nil {
				return redeemErr
			}
			witnessProgram = redeem
			in.RedeemScript = redeem
		}
		sig, err = txscript.RawTxInWitnessSignature(
			tx, sigHashes, idx, prevOut.Value, witnessProgram,
			hashType, privKey,
		)

		// The finalizer classifies inputs by their witness
		// output.
		if in.WitnessUtxo == nil {
			in.WitnessUtxo = prevOut
		}
	}
	if err != nil {
		return err
	}

	// Replace any stale signature from an earlier pass.
	for i, partial := range in.PartialSigs {
		if bytes.Equal(partial.PubKey, pubBytes) {
			in.PartialSigs = append(
				in.PartialSigs[:i], in.PartialSigs[i+1:]...,
			)
			break
		}
	}
	in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
		PubKey:    pubBytes,
		Signature: sig,
	})
	in.SighashType = hashType
	return nil
}

// allMine reports whether every input resolved to a wallet script.
func allMine(paths []*txstore.ScriptPath) bool {
	for _, path := range paths {
		if path == nil {
			return false
		}
	}
	return true
}

// sigHashAllOnly reports whether every input either leaves the sighash
// type unset or asks for SigHashAll.
func sigHashAllOnly(packet *psbt.Packet) bool {
	for _, in := range packet.Inputs {
		if in.SighashType != 0 && in.SighashType != txscript.SigHashAll {
			return false
		}
	}
	return true
}

// removePartialSigs drops leftover partial signatures from inputs that
// carry final scripts.
func removePartialSigs(packet *psbt.Packet) {
	for i := range packet.Inputs {
		in := &packet.Inputs[i]
		if len(in.FinalScriptSig) > 0 || len(in.FinalScriptWitness) > 0 {
			in.PartialSigs = nil
		}
	}
}

// secretsSource exposes the wallet's descriptor keys to the
// transaction author, which looks secrets up by address.
type secretsSource struct {
	w *Wallet
}

var _ txauthor.SecretsSource = secretsSource{}

func (s secretsSource) GetKey(addr btcutil.Address) (*btcec.PrivateKey, bool,
	error) {

	desc, index, err := s.resolve(addr)
	if err != nil {
		return nil, false, err
	}
	privKey, err := desc.PrivKeyAt(index)
	if err != nil {
		return nil, false, err
	}
	pubBytes, err := desc.PubKeyBytesAt(index)
	if err != nil {
		return nil, false, err
	}
	return privKey, len(pubBytes) == btcec.PubKeyBytesLenCompressed, nil
}

func (s secretsSource) GetScript(addr btcutil.Address) ([]byte, error) {
	desc, index, err := s.resolve(addr)
	if err != nil {
		return nil, err
	}
	return desc.RedeemScriptAt(index)
}

func (s secretsSource) ChainParams() *chaincfg.Params {
	return s.w.network.Params()
}

// resolve maps an address back to the descriptor and index that
// produced it.
func (s secretsSource) resolve(addr btcutil.Address) (*descriptor.Descriptor,
	uint32, error) {

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, 0, err
	}
	path, ok, err := s.w.store.ScriptPath(script)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, fmt.Errorf("wallet: no derivation known for "+
			"address %v", addr)
	}
	return s.w.descriptorFor(path.Keychain), path.Index, nil
}
