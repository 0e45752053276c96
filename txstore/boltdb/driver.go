// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package boltdb

import (
	"fmt"

	"github.com/btcsuite/walletkit/txstore"
)

const storeKind = "bolt"

// parseArgs parses the arguments from the txstore Open method.
func parseArgs(args ...interface{}) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("invalid arguments to %s.Open -- "+
			"expected database path", storeKind)
	}

	path, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("first argument to %s.Open is "+
			"invalid -- expected database path string", storeKind)
	}

	return path, nil
}

// openDriver is the callback provided during driver registration that
// opens the store file, creating it when missing.
func openDriver(args ...interface{}) (txstore.Store, error) {
	path, err := parseArgs(args...)
	if err != nil {
		return nil, err
	}

	return Open(path)
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
