// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import "errors"

var (
	// ErrInsufficientFunds is returned by transaction construction
	// when the spendable outputs cannot cover the requested payments
	// plus the fee.
	ErrInsufficientFunds = errors.New("insufficient funds available " +
		"to construct transaction")

	// ErrNoRecipients is returned by Finish when the builder names
	// neither a recipient nor a drain target.
	ErrNoRecipients = errors.New("transaction has no recipients or " +
		"drain target")

	// ErrUnknownOutput is returned when a manually selected outpoint
	// does not refer to an unspent wallet output.
	ErrUnknownOutput = errors.New("outpoint is not an unspent wallet " +
		"output")

	// ErrInvalidRbfSequence is returned when an explicit sequence
	// value cannot signal replaceability under BIP 125.
	ErrInvalidRbfSequence = errors.New("sequence does not signal " +
		"replaceability")

	// ErrTransactionNotFound is returned by fee bumping when the
	// wallet has no record of the named transaction.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTransactionConfirmed is returned by fee bumping when the
	// named transaction has already been mined.
	ErrTransactionConfirmed = errors.New("transaction is already " +
		"confirmed")

	// ErrNotReplaceable is returned by fee bumping when no input of
	// the original transaction signals replaceability.
	ErrNotReplaceable = errors.New("transaction does not signal " +
		"replaceability")

	// ErrFeeTooLow is returned by fee bumping when the replacement
	// fee does not clear the original fee plus the minimum relay
	// increment.
	ErrFeeTooLow = errors.New("replacement fee is too low")

	// ErrAddressNotInTransaction is returned by AllowShrinking when
	// the named script does not match any output of the original
	// transaction.
	ErrAddressNotInTransaction = errors.New("script not found among " +
		"transaction outputs")

	// ErrMissingUtxo is returned by Sign when an input's previous
	// output cannot be resolved from the packet or the wallet.
	ErrMissingUtxo = errors.New("input is missing previous output " +
		"data")

	// ErrNoChainSource is returned by Sync when no chain source was
	// provided.
	ErrNoChainSource = errors.New("no chain source")
)
