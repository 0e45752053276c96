// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memdb

import (
	"fmt"

	"github.com/btcsuite/walletkit/txstore"
)

const storeKind = "memory"

// openDriver is the callback provided during driver registration that
// opens a fresh in-memory store.
func openDriver(args ...interface{}) (txstore.Store, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("invalid arguments to %s.Open -- "+
			"no arguments expected", storeKind)
	}

	return New(), nil
}

func init() {
	// Register the driver.
	driver := txstore.Driver{
		Kind: storeKind,
		Open: openDriver,
	}
	if err := txstore.RegisterDriver(driver); err != nil {
		panic(fmt.Sprintf("Failed to register store driver '%s': %v",
			storeKind, err))
	}
}
