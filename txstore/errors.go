// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txstore

import "errors"

// Errors that can occur during driver registration and store opening.
var (
	// ErrDriverRegistered is returned when two different drivers
	// attempt to register the same store kind.
	ErrDriverRegistered = errors.New("store kind already registered")

	// ErrUnknownDriver is returned when there is no driver registered
	// for the requested store kind.
	ErrUnknownDriver = errors.New("unknown store kind")
)

// Errors shared by the store implementations.
var (
	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("store is closed")
)
