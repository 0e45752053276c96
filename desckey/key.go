// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package desckey

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Wildcard marks whether a key expression ends in a range marker, making
// it expandable at an address index.
type Wildcard uint8

const (
	// WildcardNone denotes a concrete key with no range marker.
	WildcardNone Wildcard = iota

	// WildcardUnhardened denotes a trailing /* marker expanded with
	// unhardened child indexes.
	WildcardUnhardened

	// WildcardHardened denotes a trailing /*' marker expanded with
	// hardened child indexes. Only secret keys can satisfy it.
	WildcardHardened
)

// writeWildcard appends the textual wildcard suffix, if any.
func writeWildcard(sb *strings.Builder, w Wildcard) {
	switch w {
	case WildcardUnhardened:
		sb.WriteString("/*")
	case WildcardHardened:
		sb.WriteString("/*'")
	}
}

// keyParts is the decomposition of a textual key expression into its
// optional origin bracket, the encoded key body, and the trailing
// derivation suffix.
type keyParts struct {
	origin   *KeyOrigin
	body     string
	path     DerivationPath
	wildcard Wildcard
}

// splitKeyExpr decomposes [fingerprint/path]body/step/step/* without
// interpreting the body. Parse errors never include the key text, which
// may hold secret material.
func splitKeyExpr(text string) (keyParts, error) {
	parts := keyParts{path: DerivationPath{}}

	if strings.HasPrefix(text, "[") {
		end := strings.IndexByte(text, ']')
		if end < 0 {
			return parts, fmt.Errorf("%w: unterminated origin",
				ErrParse)
		}
		origin, err := parseOrigin(text[1:end])
		if err != nil {
			return parts, err
		}
		parts.origin = &origin
		text = text[end+1:]
	}

	body, suffix, hasSuffix := strings.Cut(text, "/")
	if body == "" {
		return parts, fmt.Errorf("%w: empty key body", ErrParse)
	}
	parts.body = body
	if !hasSuffix {
		return parts, nil
	}

	segments := strings.Split(suffix, "/")
	for i, seg := range segments {
		var wildcard Wildcard
		switch seg {
		case "*":
			wildcard = WildcardUnhardened
		case "*'", "*h", "*H":
			wildcard = WildcardHardened
		default:
			step, err := parseStep(seg)
			if err != nil {
				return parts, fmt.Errorf("%w: derivation "+
					"suffix", ErrParse)
			}
			parts.path = append(parts.path, step)
			continue
		}

		if i != len(segments)-1 {
			return parts, fmt.Errorf("%w: wildcard must "+
				"terminate the expression", ErrParse)
		}
		parts.wildcard = wildcard
	}

	return parts, nil
}

// keyFingerprint computes the BIP32 fingerprint of the key itself: the
// leading four bytes of the HASH160 of its compressed public key.
func keyFingerprint(key *hdkeychain.ExtendedKey) ([4]byte, error) {
	var fp [4]byte

	pub, err := key.ECPubKey()
	if err != nil {
		return fp, fmt.Errorf("compute fingerprint: %w", err)
	}
	copy(fp[:], btcutil.Hash160(pub.SerializeCompressed()))

	return fp, nil
}
