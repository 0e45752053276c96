// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/txstore"
	"github.com/btcsuite/walletkit/wallet/txauthor"
	"github.com/btcsuite/walletkit/wallet/txrules"
	"github.com/btcsuite/walletkit/wallet/txsizes"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// BumpFeeBuilder rebuilds an unconfirmed replaceable transaction at a
// higher fee rate.  Like TxBuilder it is an immutable value with
// copy-on-write setters.
type BumpFeeBuilder struct {
	txid    chainhash.Hash
	feeRate float64
	shrink  []byte
	rbf     fn.Option[uint32]
}

// NewBumpFeeBuilder seeds a rebuild of the transaction txid paying
// satPerVbyte satoshis per virtual byte.
func NewBumpFeeBuilder(txid chainhash.Hash, satPerVbyte float64) *BumpFeeBuilder {
	return &BumpFeeBuilder{txid: txid, feeRate: satPerVbyte}
}

// BuildFeeBump starts a fee bump of the transaction txid at the given
// rate.  The builder holds no reference to the wallet; it is handed
// back through Finish.
func (w *Wallet) BuildFeeBump(txid chainhash.Hash, satPerVbyte float64) *BumpFeeBuilder {
	return NewBumpFeeBuilder(txid, satPerVbyte)
}

func (b *BumpFeeBuilder) clone() *BumpFeeBuilder {
	c := *b
	c.shrink = append([]byte(nil), b.shrink...)
	return &c
}

// AllowShrinking names the output script whose value absorbs the
// higher fee.  Without it the fee comes out of the original change
// output, or out of additional inputs when the original has no
// change.  Finish fails with ErrAddressNotInTransaction when no
// output pays to script.
func (b *BumpFeeBuilder) AllowShrinking(script []byte) *BumpFeeBuilder {
	c := b.clone()
	c.shrink = append([]byte(nil), script...)
	return c
}

// EnableRbf signals replaceability on the replacement with the
// default BIP 125 sequence.  This is also the default when no
// sequence directive is given, so the replacement can be bumped
// again.
func (b *BumpFeeBuilder) EnableRbf() *BumpFeeBuilder {
	c := b.clone()
	c.rbf = fn.Some(rbfSequence)
	return c
}

// EnableRbfWithSequence signals replaceability with an explicit
// sequence value.  Finish rejects values above 0xFFFFFFFD with
// ErrInvalidRbfSequence.
func (b *BumpFeeBuilder) EnableRbfWithSequence(sequence uint32) *BumpFeeBuilder {
	c := b.clone()
	c.rbf = fn.Some(sequence)
	return c
}

// Finish compiles the replacement against w.  The original must be
// known to the wallet, still unconfirmed, signal replaceability and
// spend only wallet outputs.  The replacement respends every original
// input, keeps every output except the one absorbing the fee, and
// must clear the original fee plus the minimum relay fee for its own
// size, else Finish fails with ErrFeeTooLow.
func (b *BumpFeeBuilder) Finish(w *Wallet) (*psbt.Packet, *TransactionDetails, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sequence := rbfSequence
	if b.rbf.IsSome() {
		sequence = b.rbf.UnwrapOr(rbfSequence)
		if sequence > rbfSequence {
			return nil, nil, fmt.Errorf("sequence %#x: %w",
				sequence, ErrInvalidRbfSequence)
		}
	}

	rec, ok, err := w.store.Tx(b.txid)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%v: %w", b.txid,
			ErrTransactionNotFound)
	}
	if rec.Block != nil {
		return nil, nil, fmt.Errorf("%v: %w", b.txid,
			ErrTransactionConfirmed)
	}
	originalTx, err := rec.MsgTx()
	if err != nil {
		return nil, nil, err
	}

	// BIP 125 rule 1: the original must signal replaceability.
	signals := false
	for _, txIn := range originalTx.TxIn {
		if txIn.Sequence <= rbfSequence {
			signals = true
			break
		}
	}
	if !signals {
		return nil, nil, fmt.Errorf("%v: %w", b.txid,
			ErrNotReplaceable)
	}

	// The replacement respends the original inputs, so every one
	// must be a known wallet output.
	required := make([]txstore.Credit, 0, len(originalTx.TxIn))
	var originalIn btcutil.Amount
	for _, txIn := range originalTx.TxIn {
		credit, ok, err := w.store.Credit(txIn.PreviousOutPoint)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("input %v: %w",
				txIn.PreviousOutPoint, ErrUnknownOutput)
		}
		required = append(required, *credit)
		originalIn += credit.Amount
	}
	var originalOut btcutil.Amount
	for _, txOut := range originalTx.TxOut {
		originalOut += btcutil.Amount(txOut.Value)
	}
	originalFee := originalIn - originalOut

	outputs, changeSource, err := w.bumpOutputs(originalTx, b.shrink)
	if err != nil {
		return nil, nil, err
	}
	optional, err := w.bumpCandidates(b.txid, required)
	if err != nil {
		return nil, nil, err
	}

	packet, details, err := w.assemble(
		outputs, txauthor.FeeForRate(feeRatePerKb(b.feeRate)),
		required, optional, changeSource, sequence,
	)
	if err != nil {
		return nil, nil, err
	}

	// BIP 125 rule 4: the replacement pays at least the original
	// fee plus the relay fee for its own size.
	vsize, err := w.packetVirtualSize(packet)
	if err != nil {
		return nil, nil, err
	}
	minFee := originalFee + txrules.FeeForSerializeSize(
		txrules.DefaultRelayFeePerKb, vsize,
	)
	newFee := details.Fee.UnwrapOr(0)
	if newFee < minFee {
		return nil, nil, fmt.Errorf("%w: replacement pays %v, "+
			"requires at least %v", ErrFeeTooLow, newFee, minFee)
	}
	return packet, details, nil
}

// bumpOutputs rebuilds the original outputs without the one that will
// absorb the fee change.  The removed output's script becomes the
// change target; when no output qualifies the replacement keeps every
// output and derives fresh change.  The caller must hold the wallet
// lock.
func (w *Wallet) bumpOutputs(originalTx *wire.MsgTx,
	shrink []byte) ([]*wire.TxOut, *txauthor.ChangeSource, error) {

	shrinkIndex := -1
	if len(shrink) > 0 {
		for i, txOut := range originalTx.TxOut {
			if bytes.Equal(txOut.PkScript, shrink) {
				shrinkIndex = i
				break
			}
		}
		if shrinkIndex < 0 {
			return nil, nil, ErrAddressNotInTransaction
		}
	} else {
		changeKeychain := w.changeKeychain()
		for i, txOut := range originalTx.TxOut {
			path, ok, err := w.store.ScriptPath(txOut.PkScript)
			if err != nil {
				return nil, nil, err
			}
			if ok && path.Keychain == changeKeychain {
				shrinkIndex = i
				break
			}
		}
	}

	outputs := make([]*wire.TxOut, 0, len(originalTx.TxOut))
	var changeSource *txauthor.ChangeSource
	for i, txOut := range originalTx.TxOut {
		if i == shrinkIndex {
			changeSource = staticChangeSource(txOut.PkScript)
			continue
		}
		outputs = append(outputs, &wire.TxOut{
			Value:    txOut.Value,
			PkScript: txOut.PkScript,
		})
	}
	if changeSource == nil {
		changeSource = w.derivedChangeSource()
	}
	return outputs, changeSource, nil
}

// bumpCandidates returns the spendable outputs a replacement may add
// beyond the original inputs.  Outputs created by the transaction
// being replaced die with it and are excluded.  The caller must hold
// the wallet lock.
func (w *Wallet) bumpCandidates(txid chainhash.Hash,
	required []txstore.Credit) ([]txstore.Credit, error) {

	spendable, err := w.spendableCredits()
	if err != nil {
		return nil, err
	}
	requiredSet := make(map[wire.OutPoint]struct{}, len(required))
	for _, credit := range required {
		requiredSet[credit.OutPoint] = struct{}{}
	}

	optional := make([]txstore.Credit, 0, len(spendable))
	for _, credit := range spendable {
		if credit.OutPoint.Hash == txid {
			continue
		}
		if _, ok := requiredSet[credit.OutPoint]; ok {
			continue
		}
		optional = append(optional, credit)
	}
	sort.Sort(sort.Reverse(byAmount(optional)))
	return optional, nil
}

// packetVirtualSize estimates the signed virtual size of the packet's
// transaction from the script families of its inputs.  The caller
// must hold the wallet lock.
func (w *Wallet) packetVirtualSize(packet *psbt.Packet) (int, error) {
	var p2pkh, p2wpkh, nested int
	for _, txIn := range packet.UnsignedTx.TxIn {
		credit, ok, err := w.store.Credit(txIn.PreviousOutPoint)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("input %v: %w",
				txIn.PreviousOutPoint, ErrUnknownOutput)
		}
		switch {
		case txscript.IsPayToScriptHash(credit.Script):
			nested++
		case txscript.IsPayToWitnessPubKeyHash(credit.Script):
			p2wpkh++
		default:
			p2pkh++
		}
	}
	vsize := txsizes.EstimateVirtualSize(
		p2pkh, p2wpkh, nested, packet.UnsignedTx.TxOut, 0,
	)
	return vsize, nil
}
