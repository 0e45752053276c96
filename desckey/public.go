// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package desckey

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/walletkit/netparams"
)

// PublicKey is the public counterpart of SecretKey: a tagged union over
// an extended public key or a single raw public key, carrying the same
// origin, trailing path and wildcard bookkeeping. PublicKey values are
// immutable.
type PublicKey struct {
	origin   *KeyOrigin
	path     DerivationPath
	wildcard Wildcard
	variant  publicVariant
}

// publicVariant is the sealed set of key shapes a PublicKey can take.
type publicVariant interface {
	isPublicVariant()
}

// extendedPublic is the derivable shape: a BIP32 extended public key.
type extendedPublic struct {
	key *hdkeychain.ExtendedKey
}

// singlePublic is the non-derivable shape: one serialized public key.
type singlePublic struct {
	key        *btcec.PublicKey
	compressed bool
}

func (extendedPublic) isPublicVariant() {}
func (singlePublic) isPublicVariant()   {}

var _ publicVariant = extendedPublic{}
var _ publicVariant = singlePublic{}

// ParsePublicKey parses the textual form of a public descriptor key: an
// optional [fingerprint/path] origin, then either an extended public key
// with an optional derivation suffix and wildcard, or a hex-encoded
// public key with neither.
func ParsePublicKey(text string) (PublicKey, error) {
	parts, err := splitKeyExpr(text)
	if err != nil {
		return PublicKey{}, err
	}

	if xkey, err := hdkeychain.NewKeyFromString(parts.body); err == nil {
		if xkey.IsPrivate() {
			return PublicKey{}, fmt.Errorf("%w: secret extended "+
				"key where a public key is required", ErrParse)
		}
		return PublicKey{
			origin:   parts.origin,
			path:     parts.path,
			wildcard: parts.wildcard,
			variant:  extendedPublic{key: xkey},
		}, nil
	}

	raw, err := hex.DecodeString(parts.body)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: not an extended or hex "+
			"encoded public key", ErrParse)
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: invalid public key",
			ErrParse)
	}
	if len(parts.path) > 0 || parts.wildcard != WildcardNone {
		return PublicKey{}, fmt.Errorf("%w: single keys cannot carry "+
			"a derivation suffix", ErrParse)
	}

	return PublicKey{
		origin: parts.origin,
		path:   DerivationPath{},
		variant: singlePublic{
			key:        pub,
			compressed: len(raw) == btcec.PubKeyBytesLenCompressed,
		},
	}, nil
}

// IsDerivable reports whether the key holds extended material and can
// produce children.
func (k PublicKey) IsDerivable() bool {
	_, ok := k.variant.(extendedPublic)
	return ok
}

// Origin returns the key's origin and whether one has been recorded.
func (k PublicKey) Origin() (KeyOrigin, bool) {
	if k.origin == nil {
		return KeyOrigin{}, false
	}
	return k.origin.clone(), true
}

// Wildcard returns the key's range marker.
func (k PublicKey) Wildcard() Wildcard {
	return k.wildcard
}

// Derive computes the child key at path and bakes the path into the
// origin, mirroring SecretKey.Derive. Public material cannot cross a
// hardened step, so any hardened index in path fails with
// ErrHardenedDerivation before anything is derived. Single keys fail
// with ErrNotDerivable.
func (k PublicKey) Derive(path DerivationPath) (PublicKey, error) {
	v, ok := k.variant.(extendedPublic)
	if !ok {
		return PublicKey{}, fmt.Errorf("%w: cannot derive from a "+
			"single key", ErrNotDerivable)
	}
	if path.hasHardened() {
		return PublicKey{}, fmt.Errorf("%w: path %s",
			ErrHardenedDerivation, path)
	}

	child := v.key
	for _, step := range path {
		var err error
		child, err = child.Derive(step)
		if err != nil {
			return PublicKey{}, fmt.Errorf("derive step %d: %w",
				step, err)
		}
	}

	var origin *KeyOrigin
	if k.origin != nil {
		origin = &KeyOrigin{
			Fingerprint: k.origin.Fingerprint,
			Path:        k.origin.Path.Extend(path),
		}
	} else {
		fp, err := keyFingerprint(v.key)
		if err != nil {
			return PublicKey{}, err
		}
		origin = &KeyOrigin{
			Fingerprint: fp,
			Path:        append(DerivationPath(nil), path...),
		}
	}

	return PublicKey{
		origin:   origin,
		path:     DerivationPath{},
		wildcard: k.wildcard,
		variant:  extendedPublic{key: child},
	}, nil
}

// Extend appends path to the trailing derivation path. Hardened steps are
// representable here and only fail once the key is asked to satisfy them.
// Single keys fail with ErrNotDerivable.
func (k PublicKey) Extend(path DerivationPath) (PublicKey, error) {
	v, ok := k.variant.(extendedPublic)
	if !ok {
		return PublicKey{}, fmt.Errorf("%w: cannot extend a single "+
			"key", ErrNotDerivable)
	}

	return PublicKey{
		origin:   k.origin,
		path:     k.path.Extend(path),
		wildcard: k.wildcard,
		variant:  v,
	}, nil
}

// PubKeyAt resolves the concrete public key backing address index, by
// deriving the trailing path and satisfying the wildcard with index. A
// hardened step in the trailing path or a hardened wildcard fails with
// ErrHardenedDerivation. Keys without a wildcard ignore index, and single
// keys resolve to themselves.
func (k PublicKey) PubKeyAt(index uint32) (*btcec.PublicKey, error) {
	switch v := k.variant.(type) {
	case singlePublic:
		return v.key, nil

	case extendedPublic:
		if k.path.hasHardened() || k.wildcard == WildcardHardened {
			return nil, fmt.Errorf("%w: trailing path %s",
				ErrHardenedDerivation, k.path)
		}

		steps := append(DerivationPath(nil), k.path...)
		if k.wildcard == WildcardUnhardened {
			steps = append(steps, index)
		}

		xkey := v.key
		for _, step := range steps {
			var err error
			xkey, err = xkey.Derive(step)
			if err != nil {
				return nil, fmt.Errorf("derive step %d: %w",
					step, err)
			}
		}
		return xkey.ECPubKey()
	}

	return nil, fmt.Errorf("%w: unknown key shape", ErrParse)
}

// PubKeyBytesAt resolves the key at address index and serializes it the
// way the key itself is encoded: compressed for extended keys and for
// compressed singles, uncompressed otherwise. Script builders hash these
// bytes directly.
func (k PublicKey) PubKeyBytesAt(index uint32) ([]byte, error) {
	pub, err := k.PubKeyAt(index)
	if err != nil {
		return nil, err
	}

	if v, ok := k.variant.(singlePublic); ok && !v.compressed {
		return pub.SerializeUncompressed(), nil
	}
	return pub.SerializeCompressed(), nil
}

// IsCompressed reports whether the key serializes to a 33-byte compressed
// point. Extended keys always do.
func (k PublicKey) IsCompressed() bool {
	if v, ok := k.variant.(singlePublic); ok {
		return v.compressed
	}
	return true
}

// Base strips the key to its raw material: no origin, an empty trailing
// path and an unhardened wildcard. Template builders start from this
// shape regardless of how the key was previously dressed.
func (k PublicKey) Base() PublicKey {
	return PublicKey{
		path:     DerivationPath{},
		wildcard: WildcardUnhardened,
		variant:  k.variant,
	}
}

// WithOrigin returns a copy of the key with the given origin recorded,
// replacing any existing one. The material, trailing path and wildcard
// are untouched.
func (k PublicKey) WithOrigin(origin KeyOrigin) PublicKey {
	o := origin.clone()
	return PublicKey{
		origin:   &o,
		path:     append(DerivationPath(nil), k.path...),
		wildcard: k.wildcard,
		variant:  k.variant,
	}
}

// Path returns a copy of the key's trailing derivation path.
func (k PublicKey) Path() DerivationPath {
	return append(DerivationPath(nil), k.path...)
}

// Fingerprint computes the BIP32 fingerprint of the key's own material,
// regardless of any recorded origin.
func (k PublicKey) Fingerprint() ([4]byte, error) {
	switch v := k.variant.(type) {
	case extendedPublic:
		return keyFingerprint(v.key)

	case singlePublic:
		var fp [4]byte
		copy(fp[:], btcutil.Hash160(v.key.SerializeCompressed()))
		return fp, nil
	}

	return [4]byte{}, fmt.Errorf("%w: unknown key shape", ErrParse)
}

// ValidForNetwork reports whether the key's encoded network matches the
// given one. Single public keys carry no network and match any; the
// testnet family shares one encoding.
func (k PublicKey) ValidForNetwork(network netparams.Network) bool {
	params := network.Params()
	if params == nil {
		return false
	}

	if v, ok := k.variant.(extendedPublic); ok {
		return v.key.IsForNet(params)
	}
	return true
}

// String serializes the key with its origin, public body, trailing path
// and wildcard suffix. The output parses back via ParsePublicKey.
func (k PublicKey) String() string {
	var sb strings.Builder
	if k.origin != nil {
		sb.WriteString(k.origin.String())
	}

	switch v := k.variant.(type) {
	case extendedPublic:
		sb.WriteString(v.key.String())
	case singlePublic:
		if v.compressed {
			sb.WriteString(hex.EncodeToString(
				v.key.SerializeCompressed(),
			))
		} else {
			sb.WriteString(hex.EncodeToString(
				v.key.SerializeUncompressed(),
			))
		}
	}

	k.path.writeSteps(&sb)
	writeWildcard(&sb, k.wildcard)

	return sb.String()
}
