// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/txstore"
)

// newPacket wraps the unsigned transaction in a PSBT packet carrying
// what a signer needs for the wallet's inputs: the previous outputs,
// the derivation path of each script and, for nested witness
// programs, the redeem script.  spent maps each input's outpoint to
// the wallet output it consumes.
func (w *Wallet) newPacket(tx *wire.MsgTx,
	spent map[wire.OutPoint]*txstore.Credit) (*psbt.Packet, error) {

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	for i, txIn := range tx.TxIn {
		credit := spent[txIn.PreviousOutPoint]
		if credit == nil {
			continue
		}
		in := &packet.Inputs[i]
		in.SighashType = txscript.SigHashAll

		// As a fix for CVE-2020-14199 the full previous
		// transaction rides along with the witness form for
		// segwit v0 inputs whenever the wallet has it.
		rec, ok, err := w.store.Tx(credit.OutPoint.Hash)
		if err != nil {
			return nil, err
		}
		if ok {
			prev, err := rec.MsgTx()
			if err != nil {
				return nil, err
			}
			in.NonWitnessUtxo = prev
		}

		desc := w.descriptorFor(credit.Path.Keychain)
		if desc.Kind() != descriptor.KindPKH {
			in.WitnessUtxo = &wire.TxOut{
				Value:    int64(credit.Amount),
				PkScript: credit.Script,
			}
		}
		redeemScript, err := desc.RedeemScriptAt(credit.Path.Index)
		if err != nil {
			return nil, err
		}
		if redeemScript != nil {
			in.RedeemScript = redeemScript
		}

		derivation, err := w.bip32Derivation(credit.Path)
		if err != nil {
			return nil, err
		}
		in.Bip32Derivation = []*psbt.Bip32Derivation{derivation}
	}

	// Mark the wallet's own outputs, change in particular, with
	// their derivation so other signers can verify them.
	for i, txOut := range tx.TxOut {
		path, ok, err := w.store.ScriptPath(txOut.PkScript)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		derivation, err := w.bip32Derivation(path)
		if err != nil {
			return nil, err
		}
		packet.Outputs[i].Bip32Derivation = []*psbt.Bip32Derivation{
			derivation,
		}
	}
	return packet, nil
}

// bip32Derivation renders the derivation of the keychain script at
// path as a PSBT derivation field.
func (w *Wallet) bip32Derivation(path txstore.ScriptPath) (*psbt.Bip32Derivation, error) {
	desc := w.descriptorFor(path.Keychain)
	origin, err := desc.OriginAt(path.Index)
	if err != nil {
		return nil, err
	}
	pubKey, err := desc.PubKeyBytesAt(path.Index)
	if err != nil {
		return nil, err
	}
	return &psbt.Bip32Derivation{
		PubKey:               pubKey,
		MasterKeyFingerprint: binary.LittleEndian.Uint32(origin.Fingerprint[:]),
		Bip32Path:            origin.Path,
	}, nil
}
