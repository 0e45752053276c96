// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package txrules provides functions that help establish whether or not a
transaction abides by non-consensus mempool policy rules, along with the
fee calculation those rules imply.

Dust determination and the fee-per-kilobyte calculation follow the
default relay policy of btcd and bitcoind mempools: an output is dust
when the cost to the network of relaying it and later spending it
exceeds one third of the relay fee, with data-carrying outputs exempted
since they are provably unspendable and never enter the utxo set.
*/
package txrules
