// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax describes a descriptor expression that does not follow
	// the supported grammar: an unknown script function, unbalanced
	// parentheses, or a key that parses as neither secret nor public.
	ErrSyntax = errors.New("invalid descriptor")

	// ErrChecksum describes a descriptor whose trailing checksum does
	// not match its body. It wraps ErrSyntax, so callers matching on
	// the broader class catch it too.
	ErrChecksum = fmt.Errorf("%w: checksum mismatch", ErrSyntax)

	// ErrInvalidNetwork describes a key whose encoded network differs
	// from the network the descriptor is being built for.
	ErrInvalidNetwork = errors.New("key does not match descriptor network")

	// ErrNoSecrets describes a request for private material on a
	// descriptor that only holds public keys.
	ErrNoSecrets = errors.New("descriptor holds no secret material")
)
