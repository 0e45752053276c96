// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sqlstore

import (
	"fmt"

	"github.com/btcsuite/walletkit/txstore"

	// Register the PostgreSQL and SQLite drivers so callers can open a
	// store with the driver names "pgx" and "sqlite".
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const storeKind = "sql"

// parseArgs parses the arguments from the txstore Open method. The
// store expects the sql driver name followed by the data source name.
func parseArgs(funcName string, args ...interface{}) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("invalid arguments to %s.%s -- "+
			"expected sql driver name and data source name",
			storeKind, funcName)
	}

	driverName, ok := args[0].(string)
	if !ok {
		return "", "", fmt.Errorf("first argument to %s.%s is "+
			"invalid -- expected sql driver name string",
			storeKind, funcName)
	}
	dsn, ok := args[1].(string)
	if !ok {
		return "", "", fmt.Errorf("second argument to %s.%s is "+
			"invalid -- expected data source name string",
			storeKind, funcName)
	}

	return driverName, dsn, nil
}

// openDriver is the callback provided during driver registration that
// opens an existing store or creates its schema on first use.
func openDriver(args ...interface{}) (txstore.Store, error) {
	driverName, dsn, err := parseArgs("Open", args...)
	if err != nil {
		return nil, err
	}

	return Open(driverName, dsn)
}

func init() {
	driver := txstore.Driver{
		Kind: storeKind,
		Open: openDriver,
	}
	if err := txstore.RegisterDriver(driver); err != nil {
		panic(fmt.Sprintf("failed to register store driver '%s': %v",
			storeKind, err))
	}
}
