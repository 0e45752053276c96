// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/txstore"
	"github.com/btcsuite/walletkit/wallet/txsizes"
	"github.com/davecgh/go-spew/spew"
)

type inputType uint8

const (
	p2pkh inputType = iota
	p2wkh
	p2npkh
)

type testOutput struct {
	amount    btcutil.Amount
	inputType inputType
}

// createOutputs renders testOutputs as wire outputs carrying zeroed
// scripts of the right family size.
func createOutputs(testOutputs ...testOutput) []*wire.TxOut {
	outputs := make([]*wire.TxOut, 0, len(testOutputs))
	var outScript []byte

	for _, output := range testOutputs {
		switch output.inputType {

		case p2pkh:
			outScript = make([]byte, txsizes.P2PKHPkScriptSize)

		case p2wkh:
			outScript = make([]byte, txsizes.P2WPKHPkScriptSize)

		case p2npkh:
			outScript = make([]byte,
				txsizes.NestedP2WPKHPkScriptSize)
		}
		outputs = append(outputs, wire.NewTxOut(
			int64(output.amount), outScript),
		)
	}
	return outputs
}

// createCredits creates the unspent outputs for the transaction in the right
// format. The scripts carry the shape of their type so the fee estimation
// classifies them correctly.
func createCredits(txIn ...testOutput) []txstore.Credit {
	credits := make([]txstore.Credit, len(txIn))

	var (
		p2wkhScript = [22]byte{
			txscript.OP_0, txscript.OP_DATA_20,
		}

		p2shScript = [23]byte{txscript.OP_HASH160,
			txscript.OP_DATA_20,
			0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
			0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
			txscript.OP_EQUAL}

		p2pkhScript = [25]byte{txscript.OP_DUP,
			txscript.OP_HASH160,
			txscript.OP_DATA_20,
			0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
			0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
			txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG}
	)

	var pkScript []byte

	for idx, in := range txIn {
		switch in.inputType {

		case p2pkh:
			pkScript = p2pkhScript[:]

		case p2wkh:
			pkScript = p2wkhScript[:]

		case p2npkh:
			pkScript = p2shScript[:]
		}

		credits[idx] = txstore.Credit{
			OutPoint: wire.OutPoint{Index: uint32(idx)},
			Amount:   in.amount,
			Script:   pkScript,
		}
	}
	return credits
}

func testChangeSource() *ChangeSource {
	return &ChangeSource{
		NewScript: func() ([]byte, error) {
			// The version byte and push opcode make the script a
			// valid witness program, so the dust test prices it
			// with the discounted witness spend size.
			pkScript := make([]byte, txsizes.P2WPKHPkScriptSize)
			pkScript[1] = txscript.OP_DATA_20
			return pkScript, nil
		},
		ScriptSize: txsizes.P2WPKHPkScriptSize,
	}
}

func TestNewUnsignedTransaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		Required        []testOutput
		Optional        []testOutput
		Outputs         []testOutput
		RelayFee        btcutil.Amount
		ChangeAmount    btcutil.Amount
		InsufficientErr bool
		InputCount      int
	}{
		0: {
			name: "funds cover the output but not the fee",
			Optional: []testOutput{{
				amount: 1e8, inputType: p2wkh},
			},
			Outputs: []testOutput{{
				amount: 1e8, inputType: p2wkh},
			},
			RelayFee:        1e3,
			InsufficientErr: true,
		},
		1: {
			name: "single input funds one output with change left",
			Optional: []testOutput{{
				amount: 1e8, inputType: p2wkh},
			},
			Outputs: []testOutput{{
				amount: 1e6, inputType: p2wkh},
			},
			RelayFee: 1e3,
			// One P2WPKH input paying one P2WPKH output plus
			// change estimates at 141 vbytes.
			ChangeAmount: 1e8 - 1e6 - 141,
			InputCount:   1,
		},
		2: {
			name: "changeless spend settling at exactly 10 " +
				"sat/vbyte",
			Optional: []testOutput{{
				amount: 1e8, inputType: p2wkh},
			},
			// The changeless one-in one-out estimate is 110
			// vbytes, so this rate charges exactly 1100.
			Outputs: []testOutput{{
				amount: 1e8 - 1100, inputType: p2wkh},
			},
			RelayFee:     1e4,
			ChangeAmount: 0,
			InputCount:   1,
		},
		3: {
			name: "change exactly at the P2WPKH dust bound " +
				"survives",
			Optional: []testOutput{{
				amount: 1e8, inputType: p2wkh},
			},
			// The change output adds 31 bytes over the 110
			// vbyte changeless estimate, and 294 is the least
			// P2WPKH value that is not dust.
			Outputs: []testOutput{{
				amount: 1e8 - 110 - 31 - 294, inputType: p2wkh},
			},
			RelayFee:     1e3,
			ChangeAmount: 294,
			InputCount:   1,
		},
		4: {
			name: "change one satoshi under the dust bound is " +
				"purged into the fee",
			Optional: []testOutput{{
				amount: 1e8, inputType: p2wkh},
			},
			Outputs: []testOutput{{
				amount: 1e8 - 110 - 31 - 293, inputType: p2wkh},
			},
			RelayFee:     1e3,
			ChangeAmount: 0,
			InputCount:   1,
		},
		5: {
			name: "required input spends even when negative " +
				"yielding",
			Required: []testOutput{{
				amount: 200, inputType: p2wkh},
			},
			Optional: []testOutput{{
				amount: 1e6, inputType: p2wkh},
			},
			Outputs: []testOutput{{
				amount: 1e4, inputType: p2wkh},
			},
			RelayFee: 1e4,
			// Two P2WPKH inputs with one output plus change
			// estimate at 210 vbytes, charging 2100 at this
			// rate.
			ChangeAmount: 1e6 + 200 - 2100 - 1e4,
			InputCount:   2,
		},
		6: {
			name: "selection fails fast when the next input is " +
				"negative yielding",
			Optional: []testOutput{
				{amount: 100, inputType: p2wkh},
				{amount: 1e6, inputType: p2wkh},
			},
			Outputs: []testOutput{{
				amount: 1e4, inputType: p2wkh},
			},
			RelayFee:        1e3,
			InsufficientErr: true,
		},
		7: {
			name: "both positive yielding inputs are needed",
			Optional: []testOutput{
				{amount: 1e6, inputType: p2wkh},
				{amount: 1e6, inputType: p2wkh},
			},
			Outputs: []testOutput{{
				amount: 1.1e6, inputType: p2wkh},
			},
			RelayFee: 1e3,
			// The two-input estimate with change is 210 vbytes.
			ChangeAmount: 2*1e6 - 210 - 1.1e6,
			InputCount:   2,
		},
		8: {
			name: "sweep with no outputs pays the remainder to " +
				"the change script",
			Required: []testOutput{{
				amount: 50_000, inputType: p2wkh},
			},
			RelayFee: 1e3,
			// A drain to the change script sizes like any one-in
			// one-out spend: 110 vbytes.
			ChangeAmount: 50_000 - 110,
			InputCount:   1,
		},
		9: {
			name: "sweep with no outputs at a higher fee rate",
			Required: []testOutput{{
				amount: 50_000, inputType: p2wkh},
			},
			RelayFee:     2e3,
			ChangeAmount: 50_000 - 220,
			InputCount:   1,
		},
		10: {
			name: "sweep with no outputs and dust level change " +
				"cannot create a transaction",
			Required: []testOutput{{
				amount: 100, inputType: p2wkh},
			},
			RelayFee:        1e3,
			InsufficientErr: true,
		},
		11: {
			name: "nested P2WKH input sizing",
			Optional: []testOutput{{
				amount: 1e6, inputType: p2npkh},
			},
			Outputs: []testOutput{{
				amount: 1e4, inputType: p2wkh},
			},
			RelayFee: 1e3,
			// 164 is the tx size in vbytes with 1 nested P2WKH
			// input and 1 P2WKH output plus 1 P2WKH change
			// output.
			ChangeAmount: 1e6 - 164 - 1e4,
			InputCount:   1,
		},
		12: {
			name: "legacy P2PKH input sizing",
			Optional: []testOutput{{
				amount: 1e6, inputType: p2pkh},
			},
			Outputs: []testOutput{{
				amount: 1e4, inputType: p2wkh},
			},
			RelayFee: 1e3,
			// 221 is the tx size in vbytes with 1 P2PKH input
			// and 1 P2WKH output plus 1 P2WKH change output.
			ChangeAmount: 1e6 - 221 - 1e4,
			InputCount:   1,
		},
	}

	for i, test := range tests {
		required := createCredits(test.Required...)
		optional := createCredits(test.Optional...)
		outputs := createOutputs(test.Outputs...)
		tx, err := NewUnsignedTransaction(
			outputs, FeeForRate(test.RelayFee), required,
			optional, testChangeSource(),
		)

		var insufficientErr *InsufficientFundsError
		switch {
		case err == nil:
			if test.InsufficientErr {
				t.Errorf("test %d (%s): transaction built, "+
					"want insufficient funds error", i,
					test.name)
				continue
			}
		case errors.As(err, &insufficientErr):
			if !test.InsufficientErr {
				t.Errorf("test %d (%s): insufficient funds "+
					"error, want change of %v", i,
					test.name, test.ChangeAmount)
			}
			continue
		default:
			t.Errorf("test %d (%s): unexpected error: %v", i,
				test.name, err)
			continue
		}
		if tx.ChangeIndex < 0 {
			if test.ChangeAmount != 0 {
				t.Errorf("test %d (%s): no change output, "+
					"want change of %v", i, test.name,
					test.ChangeAmount)
				continue
			}
		} else {
			changeAmount := btcutil.Amount(
				tx.Tx.TxOut[tx.ChangeIndex].Value,
			)

			if test.ChangeAmount == 0 {
				t.Errorf("test %d (%s): unexpected change "+
					"output of %v", i, test.name,
					changeAmount)
				continue
			}
			if changeAmount != test.ChangeAmount {
				spew.Dump(tx.Tx)
				t.Errorf("test %d (%s): change %v, want %v",
					i, test.name, changeAmount,
					test.ChangeAmount)
				continue
			}
		}
		if len(tx.Tx.TxIn) != test.InputCount {
			t.Errorf("test %d (%s): spent %d inputs, want %d", i,
				test.name, len(tx.Tx.TxIn), test.InputCount)
		}
	}
}

// TestNewUnsignedTransactionAbsoluteFee checks that a fixed fee is charged
// regardless of the transaction size.
func TestNewUnsignedTransactionAbsoluteFee(t *testing.T) {
	t.Parallel()

	optional := createCredits(testOutput{amount: 1e6, inputType: p2wkh})
	outputs := createOutputs(testOutput{amount: 1e4, inputType: p2wkh})

	tx, err := NewUnsignedTransaction(
		outputs, AbsoluteFee(5000), nil, optional, testChangeSource(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tx.ChangeIndex < 0 {
		t.Fatal("no change output")
	}
	changeAmount := btcutil.Amount(tx.Tx.TxOut[tx.ChangeIndex].Value)
	if changeAmount != 1e6-1e4-5000 {
		t.Fatalf("change %v, want %v", changeAmount,
			btcutil.Amount(1e6-1e4-5000))
	}

	// A fixed fee above the available funds cannot be paid.
	_, err = NewUnsignedTransaction(
		outputs, AbsoluteFee(1e6), nil, optional, testChangeSource(),
	)
	var insufficientErr *InsufficientFundsError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("want insufficient funds error, got %v", err)
	}
}

// TestNewUnsignedTransactionBookkeeping checks the metadata of the authored
// transaction needed for signing later on.
func TestNewUnsignedTransactionBookkeeping(t *testing.T) {
	t.Parallel()

	optional := createCredits(
		testOutput{amount: 1e6, inputType: p2wkh},
		testOutput{amount: 1e6, inputType: p2wkh},
	)
	outputs := createOutputs(testOutput{amount: 1.5e6, inputType: p2wkh})

	tx, err := NewUnsignedTransaction(
		outputs, FeeForRate(1e3), nil, optional, testChangeSource(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tx.TotalInput != 2e6 {
		t.Errorf("total input %v, want %v", tx.TotalInput,
			btcutil.Amount(2e6))
	}
	if len(tx.PrevScripts) != 2 || len(tx.PrevInputValues) != 2 {
		t.Fatalf("%d prev scripts and %d prev values, want 2 of each",
			len(tx.PrevScripts), len(tx.PrevInputValues))
	}
	for i, prevValue := range tx.PrevInputValues {
		if prevValue != 1e6 {
			t.Errorf("input %d: prev value %v, want %v",
				i, prevValue, btcutil.Amount(1e6))
		}
	}
	for i, in := range tx.Tx.TxIn {
		if in.PreviousOutPoint != optional[i].OutPoint {
			t.Errorf("input %d: outpoint %v, want %v",
				i, in.PreviousOutPoint, optional[i].OutPoint)
		}
	}
	if tx.Tx.Version != wire.TxVersion {
		t.Errorf("tx version %d, want %d", tx.Tx.Version,
			wire.TxVersion)
	}
	if tx.Tx.LockTime != 0 {
		t.Errorf("lock time %d, want 0", tx.Tx.LockTime)
	}
}
