// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netparams maps the wallet's network identifiers onto the chain
// parameters defined by btcd. All of the test networks share a single set
// of extended-key and WIF version bytes, so a key encoded for one of them
// is accepted by all of them; only the main network is distinct.
package netparams

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network identifies one of the supported bitcoin networks.
type Network uint8

// Supported networks.
const (
	// Bitcoin is the live production network.
	Bitcoin Network = iota

	// Testnet is the public test network (version 3).
	Testnet

	// Testnet4 is the reset public test network (version 4).
	Testnet4

	// Signet is the signature-gated public test network.
	Signet

	// Regtest is the local regression test network.
	Regtest
)

// ErrUnknownNetwork describes a network name or value outside the supported
// set.
var ErrUnknownNetwork = fmt.Errorf("unknown network")

// String returns the canonical lowercase name of the network.
func (n Network) String() string {
	switch n {
	case Bitcoin:
		return "bitcoin"
	case Testnet:
		return "testnet"
	case Testnet4:
		return "testnet4"
	case Signet:
		return "signet"
	case Regtest:
		return "regtest"
	}

	return fmt.Sprintf("unknown(%d)", uint8(n))
}

// Params returns the chain parameters for the network. The result is a
// pointer into chaincfg's package-level state and must not be mutated.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case Bitcoin:
		return &chaincfg.MainNetParams

	case Testnet:
		return &chaincfg.TestNet3Params

	case Testnet4:
		return &testNet4Params

	case Signet:
		return &chaincfg.SigNetParams

	case Regtest:
		return &chaincfg.RegressionNetParams
	}

	return nil
}

// Valid reports whether n is one of the supported networks.
func (n Network) Valid() bool {
	return n.Params() != nil
}

// Parse converts a network name into its Network value. Both the canonical
// names and a few common aliases are accepted.
func Parse(name string) (Network, error) {
	switch strings.ToLower(name) {
	case "bitcoin", "mainnet":
		return Bitcoin, nil

	case "testnet", "testnet3":
		return Testnet, nil

	case "testnet4":
		return Testnet4, nil

	case "signet":
		return Signet, nil

	case "regtest", "regressionnet":
		return Regtest, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
}
