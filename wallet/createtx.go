// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/txstore"
	"github.com/btcsuite/walletkit/wallet/txauthor"
	"github.com/btcsuite/walletkit/wallet/txrules"
	"github.com/btcsuite/walletkit/wallet/txsizes"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// rbfSequence is the highest nSequence that still signals
// replaceability under BIP 125, and the value used when a builder
// enables it without naming one.
const rbfSequence = wire.MaxTxInSequenceNum - 2

// defaultFeeRate prices transactions when the builder carries no fee
// directive, in satoshis per virtual byte.
const defaultFeeRate = 1.0

// Recipient is one payment a transaction under construction makes.
type Recipient struct {
	// Script is the output script being paid.
	Script []byte

	// Amount is the payment value in satoshis.
	Amount btcutil.Amount
}

// ChangeSpendPolicy constrains which keychain coin selection may draw
// candidate outputs from.
type ChangeSpendPolicy uint8

const (
	// ChangeAllowed places no keychain restriction on selection.
	ChangeAllowed ChangeSpendPolicy = iota

	// OnlyChange restricts selection to outputs of the change
	// keychain.
	OnlyChange

	// ChangeForbidden bars outputs of the change keychain from
	// selection.
	ChangeForbidden
)

// TxBuilder accumulates the constraints of a payment before Finish
// compiles them into an unsigned transaction.  A builder is an
// immutable value: every setter returns a copy carrying the change
// and leaves the receiver untouched, so partially configured builders
// can be shared and extended independently.
type TxBuilder struct {
	recipients   []Recipient
	utxos        []wire.OutPoint
	unspendable  []wire.OutPoint
	changePolicy ChangeSpendPolicy
	manualOnly   bool
	feeRate      fn.Option[float64]
	feeAbsolute  fn.Option[btcutil.Amount]
	drainWallet  bool
	drainTo      []byte
	rbf          fn.Option[uint32]
	data         []byte
}

// NewTxBuilder returns an empty transaction builder.
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{}
}

// BuildTx starts a transaction builder.  The builder holds no
// reference to the wallet; it is handed back through Finish.
func (w *Wallet) BuildTx() *TxBuilder {
	return NewTxBuilder()
}

func (b *TxBuilder) clone() *TxBuilder {
	c := *b
	c.recipients = append([]Recipient(nil), b.recipients...)
	c.utxos = append([]wire.OutPoint(nil), b.utxos...)
	c.unspendable = append([]wire.OutPoint(nil), b.unspendable...)
	c.drainTo = append([]byte(nil), b.drainTo...)
	c.data = append([]byte(nil), b.data...)
	return &c
}

// AddRecipient appends a payment of amount to script.
func (b *TxBuilder) AddRecipient(script []byte, amount btcutil.Amount) *TxBuilder {
	c := b.clone()
	c.recipients = append(c.recipients, Recipient{
		Script: script,
		Amount: amount,
	})
	return c
}

// SetRecipients replaces the recipient list wholesale.
func (b *TxBuilder) SetRecipients(recipients []Recipient) *TxBuilder {
	c := b.clone()
	c.recipients = append([]Recipient(nil), recipients...)
	return c
}

// AddUtxo forces the wallet output at op into the input set.
func (b *TxBuilder) AddUtxo(op wire.OutPoint) *TxBuilder {
	c := b.clone()
	c.utxos = append(c.utxos, op)
	return c
}

// AddUtxos forces every listed wallet output into the input set.
func (b *TxBuilder) AddUtxos(ops []wire.OutPoint) *TxBuilder {
	c := b.clone()
	c.utxos = append(c.utxos, ops...)
	return c
}

// AddUnspendable bars the output at op from selection.  Outputs
// forced in with AddUtxo are not affected.
func (b *TxBuilder) AddUnspendable(op wire.OutPoint) *TxBuilder {
	c := b.clone()
	c.unspendable = append(c.unspendable, op)
	return c
}

// SetUnspendable replaces the unspendable set wholesale.
func (b *TxBuilder) SetUnspendable(ops []wire.OutPoint) *TxBuilder {
	c := b.clone()
	c.unspendable = append([]wire.OutPoint(nil), ops...)
	return c
}

// ManuallySelectedOnly restricts selection to the outputs forced in
// with AddUtxo and AddUtxos.
func (b *TxBuilder) ManuallySelectedOnly() *TxBuilder {
	c := b.clone()
	c.manualOnly = true
	return c
}

// DoNotSpendChange bars outputs of the change keychain from
// selection.
func (b *TxBuilder) DoNotSpendChange() *TxBuilder {
	c := b.clone()
	c.changePolicy = ChangeForbidden
	return c
}

// OnlySpendChange restricts selection to outputs of the change
// keychain.
func (b *TxBuilder) OnlySpendChange() *TxBuilder {
	c := b.clone()
	c.changePolicy = OnlyChange
	return c
}

// FeeRate prices the transaction at satPerVbyte satoshis per virtual
// byte.  An absolute fee set on the same builder wins.
func (b *TxBuilder) FeeRate(satPerVbyte float64) *TxBuilder {
	c := b.clone()
	c.feeRate = fn.Some(satPerVbyte)
	return c
}

// FeeAbsolute charges a fixed fee regardless of transaction size,
// overriding any fee rate.
func (b *TxBuilder) FeeAbsolute(fee btcutil.Amount) *TxBuilder {
	c := b.clone()
	c.feeAbsolute = fn.Some(fee)
	return c
}

// DrainWallet spends every selectable wallet output.
func (b *TxBuilder) DrainWallet() *TxBuilder {
	c := b.clone()
	c.drainWallet = true
	return c
}

// DrainTo routes leftover value to script instead of a derived
// change output.  Combined with DrainWallet it empties the wallet
// into script.
func (b *TxBuilder) DrainTo(script []byte) *TxBuilder {
	c := b.clone()
	c.drainTo = append([]byte(nil), script...)
	return c
}

// EnableRbf signals replaceability on every input with the default
// BIP 125 sequence.
func (b *TxBuilder) EnableRbf() *TxBuilder {
	c := b.clone()
	c.rbf = fn.Some(rbfSequence)
	return c
}

// EnableRbfWithSequence signals replaceability with an explicit
// sequence value.  Finish rejects values above 0xFFFFFFFD with
// ErrInvalidRbfSequence.
func (b *TxBuilder) EnableRbfWithSequence(sequence uint32) *TxBuilder {
	c := b.clone()
	c.rbf = fn.Some(sequence)
	return c
}

// AddData attaches a zero value OP_RETURN output carrying data.  A
// later call replaces the data.
func (b *TxBuilder) AddData(data []byte) *TxBuilder {
	c := b.clone()
	c.data = append([]byte(nil), data...)
	return c
}

// Finish compiles the builder against w and returns the unsigned
// transaction as a PSBT packet alongside a summary of the payment.
// The builder state is applied in a fixed order: recipients, change
// policy, forced outputs, unspendable outputs, manual restriction,
// fee directives, drain directives, replaceability and finally the
// data output.  The wallet is not modified beyond revealing a change
// script when one is needed.
func (b *TxBuilder) Finish(w *Wallet) (*psbt.Packet, *TransactionDetails, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sequence := wire.MaxTxInSequenceNum
	if b.rbf.IsSome() {
		sequence = b.rbf.UnwrapOr(rbfSequence)
		if sequence > rbfSequence {
			return nil, nil, fmt.Errorf("sequence %#x: %w",
				sequence, ErrInvalidRbfSequence)
		}
	}

	if len(b.recipients) == 0 && len(b.drainTo) == 0 {
		return nil, nil, ErrNoRecipients
	}

	outputs := make([]*wire.TxOut, 0, len(b.recipients)+1)
	for i, recipient := range b.recipients {
		output := &wire.TxOut{
			Value:    int64(recipient.Amount),
			PkScript: recipient.Script,
		}
		err := txrules.CheckOutput(output, txrules.DefaultRelayFeePerKb)
		if err != nil {
			return nil, nil, fmt.Errorf("recipient %d: %w", i, err)
		}
		outputs = append(outputs, output)
	}
	if len(b.data) > 0 {
		script, err := txscript.NullDataScript(b.data)
		if err != nil {
			return nil, nil, fmt.Errorf("data output: %w", err)
		}
		outputs = append(outputs, &wire.TxOut{PkScript: script})
	}

	required, optional, err := w.selectionCandidates(b)
	if err != nil {
		return nil, nil, err
	}

	feeFunc := txauthor.FeeForRate(feeRatePerKb(defaultFeeRate))
	switch {
	case b.feeAbsolute.IsSome():
		feeFunc = txauthor.AbsoluteFee(b.feeAbsolute.UnwrapOr(0))
	case b.feeRate.IsSome():
		feeFunc = txauthor.FeeForRate(feeRatePerKb(b.feeRate.UnwrapOr(0)))
	}

	if b.drainWallet {
		required = append(required, optional...)
		optional = nil
	}
	changeSource := w.derivedChangeSource()
	if len(b.drainTo) > 0 {
		changeSource = staticChangeSource(b.drainTo)
	}

	return w.assemble(
		outputs, feeFunc, required, optional, changeSource, sequence,
	)
}

// byAmount defines the methods needed to satisify sort.Interface to
// sort credits by their output amount.
type byAmount []txstore.Credit

func (s byAmount) Len() int           { return len(s) }
func (s byAmount) Less(i, j int) bool { return s[i].Amount < s[j].Amount }
func (s byAmount) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// selectionCandidates splits the spendable outputs into the inputs
// the builder forces and the pool selection may draw from.  The
// caller must hold the wallet lock.
func (w *Wallet) selectionCandidates(b *TxBuilder) (required, optional []txstore.Credit, err error) {
	forced := make(map[wire.OutPoint]struct{}, len(b.utxos))
	for _, op := range b.utxos {
		// Tolerate duplicate listings of the same outpoint.
		if _, ok := forced[op]; ok {
			continue
		}
		credit, ok, err := w.store.Credit(op)
		if err != nil {
			return nil, nil, err
		}
		if !ok || credit.Spent {
			return nil, nil, fmt.Errorf("utxo %v: %w", op,
				ErrUnknownOutput)
		}
		forced[op] = struct{}{}
		required = append(required, *credit)
	}

	if b.manualOnly {
		return required, nil, nil
	}

	spendable, err := w.spendableCredits()
	if err != nil {
		return nil, nil, err
	}
	unspendable := make(map[wire.OutPoint]struct{}, len(b.unspendable))
	for _, op := range b.unspendable {
		unspendable[op] = struct{}{}
	}

	changeKeychain := w.changeKeychain()
	for _, credit := range spendable {
		if _, ok := forced[credit.OutPoint]; ok {
			continue
		}
		if _, ok := unspendable[credit.OutPoint]; ok {
			continue
		}
		switch b.changePolicy {
		case ChangeForbidden:
			if credit.Path.Keychain == changeKeychain {
				continue
			}
		case OnlyChange:
			if credit.Path.Keychain != changeKeychain {
				continue
			}
		}
		optional = append(optional, credit)
	}

	// Largest outputs first, so every considered input moves
	// selection forward and the first unproductive one ends it.
	sort.Sort(sort.Reverse(byAmount(optional)))
	return required, optional, nil
}

// feeRatePerKb widens a satoshi-per-vbyte rate to the per-kilobyte
// amount the fee functions consume.
func feeRatePerKb(satPerVbyte float64) btcutil.Amount {
	return btcutil.Amount(math.Round(satPerVbyte * 1000))
}

// derivedChangeSource returns a change source drawing the next script
// of the change keychain.  The script is revealed up front, so a
// change output later purged as dust still consumes an index.  The
// caller must hold the wallet lock.
func (w *Wallet) derivedChangeSource() *txauthor.ChangeSource {
	keychain := w.changeKeychain()
	desc := w.descriptorFor(keychain)
	return &txauthor.ChangeSource{
		ScriptSize: changeScriptSize(desc.Kind()),
		NewScript: func() ([]byte, error) {
			info, err := w.nextAddress(keychain)
			if err != nil {
				return nil, err
			}
			return desc.ScriptPubKeyAt(info.Index)
		},
	}
}

// staticChangeSource routes leftover value to a fixed script.
func staticChangeSource(script []byte) *txauthor.ChangeSource {
	return &txauthor.ChangeSource{
		ScriptSize: len(script),
		NewScript: func() ([]byte, error) {
			return script, nil
		},
	}
}

// changeScriptSize maps a descriptor kind to its output script size.
func changeScriptSize(kind descriptor.ScriptKind) int {
	switch kind {
	case descriptor.KindPKH:
		return txsizes.P2PKHPkScriptSize
	case descriptor.KindSHWPKH:
		return txsizes.NestedP2WPKHPkScriptSize
	default:
		return txsizes.P2WPKHPkScriptSize
	}
}

// assemble runs coin selection over the candidates, wraps the result
// in a PSBT packet and summarizes it.  The caller must hold the
// wallet lock.
func (w *Wallet) assemble(outputs []*wire.TxOut, feeFunc txauthor.FeeFunc,
	required, optional []txstore.Credit,
	changeSource *txauthor.ChangeSource,
	sequence uint32) (*psbt.Packet, *TransactionDetails, error) {

	atx, err := txauthor.NewUnsignedTransaction(
		outputs, feeFunc, required, optional, changeSource,
	)
	if err != nil {
		var insufficient *txauthor.InsufficientFundsError
		if errors.As(err, &insufficient) {
			return nil, nil, fmt.Errorf("%w: target %v, fee %v, "+
				"available %v", ErrInsufficientFunds,
				insufficient.TargetAmount, insufficient.TxFee,
				insufficient.Available)
		}
		return nil, nil, err
	}

	spent := make(map[wire.OutPoint]*txstore.Credit, len(atx.Tx.TxIn))
	for _, txIn := range atx.Tx.TxIn {
		txIn.Sequence = sequence
		credit, ok, err := w.store.Credit(txIn.PreviousOutPoint)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			spent[txIn.PreviousOutPoint] = credit
		}
	}

	packet, err := w.newPacket(atx.Tx, spent)
	if err != nil {
		return nil, nil, err
	}
	details, err := w.authoredDetails(atx)
	if err != nil {
		return nil, nil, err
	}

	log.Debugf("Assembled transaction %v spending %d %s paying %v in "+
		"fees", details.Txid, len(atx.Tx.TxIn),
		pickNoun(len(atx.Tx.TxIn), "input", "inputs"),
		details.Fee.UnwrapOr(0))
	return packet, details, nil
}

// authoredDetails summarizes a freshly authored transaction the same
// way ListTransactions reports stored ones.  The caller must hold the
// wallet lock.
func (w *Wallet) authoredDetails(atx *txauthor.AuthoredTx) (*TransactionDetails, error) {
	var received, totalOut btcutil.Amount
	for _, txOut := range atx.Tx.TxOut {
		totalOut += btcutil.Amount(txOut.Value)
		_, ok, err := w.store.ScriptPath(txOut.PkScript)
		if err != nil {
			return nil, err
		}
		if ok {
			received += btcutil.Amount(txOut.Value)
		}
	}
	return &TransactionDetails{
		Txid:         atx.Tx.TxHash(),
		Received:     received,
		Sent:         atx.TotalInput,
		Fee:          fn.Some(atx.TotalInput - totalOut),
		Confirmation: fn.None[BlockTime](),
	}, nil
}
