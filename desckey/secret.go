// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package desckey

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/walletkit/internal/zero"
	"github.com/btcsuite/walletkit/netparams"
)

// SecretKey is a descriptor key holding private material. It is a tagged
// union over two shapes: an extended key with a chain code that can
// produce children, or a single WIF-encoded key that cannot. Alongside
// the raw material it tracks the key's origin (set once the first
// derivation bakes in a path), a trailing derivation path that has not
// been applied to the material yet, and a wildcard marker.
//
// SecretKey values are immutable. Derive, Extend and AsPublic return new
// values and leave the receiver untouched, so a key can be shared freely
// across goroutines.
type SecretKey struct {
	origin   *KeyOrigin
	path     DerivationPath
	wildcard Wildcard
	variant  secretVariant
}

// secretVariant is the sealed set of key shapes a SecretKey can take.
type secretVariant interface {
	isSecretVariant()
}

// extendedSecret is the derivable shape: a BIP32 extended private key.
type extendedSecret struct {
	key *hdkeychain.ExtendedKey
}

// singleSecret is the non-derivable shape: one WIF-encoded private key.
type singleSecret struct {
	wif *btcutil.WIF
}

func (extendedSecret) isSecretVariant() {}
func (singleSecret) isSecretVariant()   {}

var _ secretVariant = extendedSecret{}
var _ secretVariant = singleSecret{}

// NewSecretKey builds a master secret key for the given network from a
// mnemonic and its passphrase. The fresh key has no origin, an empty
// trailing path and an unhardened wildcard, making it directly usable in
// a range descriptor.
func NewSecretKey(network netparams.Network, mnemonic Mnemonic,
	passphrase string) (SecretKey, error) {

	params := network.Params()
	if params == nil {
		return SecretKey{}, netparams.ErrUnknownNetwork
	}

	seed := mnemonic.Seed(passphrase)
	defer zero.Bytes(seed)

	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return SecretKey{}, fmt.Errorf("derive master key: %w", err)
	}

	return SecretKey{
		path:     DerivationPath{},
		wildcard: WildcardUnhardened,
		variant:  extendedSecret{key: master},
	}, nil
}

// GenerateSecretKey creates a master key from fresh entropy sized for the
// requested mnemonic length, returning the mnemonic alongside the key so
// the caller can store it for recovery.
func GenerateSecretKey(network netparams.Network,
	words WordCount) (SecretKey, Mnemonic, error) {

	mnemonic, err := NewMnemonic(words)
	if err != nil {
		return SecretKey{}, Mnemonic{}, err
	}

	key, err := NewSecretKey(network, mnemonic, "")
	if err != nil {
		return SecretKey{}, Mnemonic{}, err
	}

	return key, mnemonic, nil
}

// SecretKeyFromEntropy builds a master key from caller-provided entropy.
// The entropy is first encoded as a mnemonic, so the same bytes always
// recover the same key.
func SecretKeyFromEntropy(network netparams.Network,
	entropy []byte) (SecretKey, error) {

	mnemonic, err := MnemonicFromEntropy(entropy)
	if err != nil {
		return SecretKey{}, err
	}

	return NewSecretKey(network, mnemonic, "")
}

// ParseSecretKey parses the textual form of a secret descriptor key:
// an optional [fingerprint/path] origin, then either an extended private
// key with an optional derivation suffix and wildcard, or a WIF key with
// neither.
func ParseSecretKey(text string) (SecretKey, error) {
	parts, err := splitKeyExpr(text)
	if err != nil {
		return SecretKey{}, err
	}

	// Extended keys are self-describing, so try them first.
	if xkey, err := hdkeychain.NewKeyFromString(parts.body); err == nil {
		if !xkey.IsPrivate() {
			return SecretKey{}, fmt.Errorf("%w: public extended "+
				"key where a secret key is required", ErrParse)
		}
		return SecretKey{
			origin:   parts.origin,
			path:     parts.path,
			wildcard: parts.wildcard,
			variant:  extendedSecret{key: xkey},
		}, nil
	}

	wif, err := btcutil.DecodeWIF(parts.body)
	if err != nil {
		return SecretKey{}, fmt.Errorf("%w: not an extended or WIF "+
			"encoded private key", ErrParse)
	}
	if len(parts.path) > 0 || parts.wildcard != WildcardNone {
		return SecretKey{}, fmt.Errorf("%w: single keys cannot carry "+
			"a derivation suffix", ErrParse)
	}

	return SecretKey{
		origin:  parts.origin,
		path:    DerivationPath{},
		variant: singleSecret{wif: wif},
	}, nil
}

// IsDerivable reports whether the key holds extended material and can
// produce children.
func (k SecretKey) IsDerivable() bool {
	_, ok := k.variant.(extendedSecret)
	return ok
}

// Origin returns the key's origin and whether one has been recorded.
func (k SecretKey) Origin() (KeyOrigin, bool) {
	if k.origin == nil {
		return KeyOrigin{}, false
	}
	return k.origin.clone(), true
}

// Wildcard returns the key's range marker.
func (k SecretKey) Wildcard() Wildcard {
	return k.wildcard
}

// Derive computes the child key at path relative to the key's raw
// material and bakes the path into the origin: the result's origin
// fingerprint is the existing origin's fingerprint, or the key's own if
// none was recorded yet, and the origin path grows by the derived steps.
// The trailing path resets to empty while the wildcard carries over.
// Single keys fail with ErrNotDerivable.
func (k SecretKey) Derive(path DerivationPath) (SecretKey, error) {
	v, ok := k.variant.(extendedSecret)
	if !ok {
		return SecretKey{}, fmt.Errorf("%w: cannot derive from a "+
			"single key", ErrNotDerivable)
	}

	child := v.key
	for _, step := range path {
		var err error
		child, err = child.Derive(step)
		if err != nil {
			return SecretKey{}, fmt.Errorf("derive step %d: %w",
				step, err)
		}
	}

	origin, err := k.originAfterDerive(v.key, path)
	if err != nil {
		return SecretKey{}, err
	}

	return SecretKey{
		origin:   origin,
		path:     DerivationPath{},
		wildcard: k.wildcard,
		variant:  extendedSecret{key: child},
	}, nil
}

// originAfterDerive computes the origin carried by the result of deriving
// path from a key whose material is root.
func (k SecretKey) originAfterDerive(root *hdkeychain.ExtendedKey,
	path DerivationPath) (*KeyOrigin, error) {

	if k.origin != nil {
		return &KeyOrigin{
			Fingerprint: k.origin.Fingerprint,
			Path:        k.origin.Path.Extend(path),
		}, nil
	}

	fp, err := keyFingerprint(root)
	if err != nil {
		return nil, err
	}

	return &KeyOrigin{
		Fingerprint: fp,
		Path:        append(DerivationPath(nil), path...),
	}, nil
}

// Extend appends path to the key's trailing derivation path without
// touching the key material or origin. Single keys fail with
// ErrNotDerivable.
func (k SecretKey) Extend(path DerivationPath) (SecretKey, error) {
	v, ok := k.variant.(extendedSecret)
	if !ok {
		return SecretKey{}, fmt.Errorf("%w: cannot extend a single "+
			"key", ErrNotDerivable)
	}

	return SecretKey{
		origin:   k.origin,
		path:     k.path.Extend(path),
		wildcard: k.wildcard,
		variant:  v,
	}, nil
}

// AsPublic converts the key to its public counterpart. Any hardened
// prefix of the trailing path is derived into the material first, since
// an extended public key cannot satisfy hardened steps later; the
// remaining unhardened tail and the wildcard carry over unchanged.
func (k SecretKey) AsPublic() (PublicKey, error) {
	switch v := k.variant.(type) {
	case singleSecret:
		var origin *KeyOrigin
		if k.origin != nil {
			o := k.origin.clone()
			origin = &o
		}
		return PublicKey{
			origin:   origin,
			path:     DerivationPath{},
			wildcard: k.wildcard,
			variant: singlePublic{
				key:        v.wif.PrivKey.PubKey(),
				compressed: v.wif.CompressPubKey,
			},
		}, nil

	case extendedSecret:
		split := k.path.splitHardened()
		hardened, tail := k.path[:split], k.path[split:]

		xkey := v.key
		for _, step := range hardened {
			var err error
			xkey, err = xkey.Derive(step)
			if err != nil {
				return PublicKey{}, fmt.Errorf("derive step "+
					"%d: %w", step, err)
			}
		}

		neutered, err := xkey.Neuter()
		if err != nil {
			return PublicKey{}, fmt.Errorf("neuter key: %w", err)
		}

		var origin *KeyOrigin
		switch {
		case k.origin != nil:
			origin = &KeyOrigin{
				Fingerprint: k.origin.Fingerprint,
				Path:        k.origin.Path.Extend(hardened),
			}
		case len(hardened) > 0:
			fp, err := keyFingerprint(v.key)
			if err != nil {
				return PublicKey{}, err
			}
			origin = &KeyOrigin{
				Fingerprint: fp,
				Path: append(DerivationPath(nil),
					hardened...),
			}
		}

		return PublicKey{
			origin:   origin,
			path:     append(DerivationPath(nil), tail...),
			wildcard: k.wildcard,
			variant:  extendedPublic{key: neutered},
		}, nil
	}

	return PublicKey{}, fmt.Errorf("%w: unknown key shape", ErrParse)
}

// SecretBytes returns the raw 32-byte private scalar of the key material.
// The trailing path is not applied first; the scalar belongs to the key
// as stored. Callers should zero the slice when done.
func (k SecretKey) SecretBytes() ([]byte, error) {
	switch v := k.variant.(type) {
	case extendedSecret:
		priv, err := v.key.ECPrivKey()
		if err != nil {
			return nil, fmt.Errorf("extract private scalar: %w",
				err)
		}
		return priv.Serialize(), nil

	case singleSecret:
		return v.wif.PrivKey.Serialize(), nil
	}

	return nil, fmt.Errorf("%w: unknown key shape", ErrParse)
}

// PrivKeyAt resolves the concrete private key backing address index. The
// trailing path is derived first, then the wildcard is satisfied with
// index (offset into the hardened range for a hardened wildcard). Keys
// without a wildcard ignore index, and single keys resolve to themselves.
func (k SecretKey) PrivKeyAt(index uint32) (*btcec.PrivateKey, error) {
	switch v := k.variant.(type) {
	case singleSecret:
		return v.wif.PrivKey, nil

	case extendedSecret:
		steps := append(DerivationPath(nil), k.path...)
		switch k.wildcard {
		case WildcardUnhardened:
			steps = append(steps, index)
		case WildcardHardened:
			steps = append(steps, index+HardenedKeyStart)
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
		return xkey.ECPrivKey()
	}

	return nil, fmt.Errorf("%w: unknown key shape", ErrParse)
}

// Base strips the key to its raw material: no origin, an empty trailing
// path and an unhardened wildcard. Template builders start from this
// shape regardless of how the key was previously dressed.
func (k SecretKey) Base() SecretKey {
	return SecretKey{
		path:     DerivationPath{},
		wildcard: WildcardUnhardened,
		variant:  k.variant,
	}
}

// Path returns a copy of the key's trailing derivation path.
func (k SecretKey) Path() DerivationPath {
	return append(DerivationPath(nil), k.path...)
}

// Fingerprint computes the BIP32 fingerprint of the key's own material,
// regardless of any recorded origin.
func (k SecretKey) Fingerprint() ([4]byte, error) {
	switch v := k.variant.(type) {
	case extendedSecret:
		return keyFingerprint(v.key)

	case singleSecret:
		var fp [4]byte
		pub := v.wif.PrivKey.PubKey()
		copy(fp[:], btcutil.Hash160(pub.SerializeCompressed()))
		return fp, nil
	}

	return [4]byte{}, fmt.Errorf("%w: unknown key shape", ErrParse)
}

// ValidForNetwork reports whether the key's encoded network matches the
// given one. Both extended keys and WIF keys carry a network in their
// serialization, and the testnet family shares one encoding.
func (k SecretKey) ValidForNetwork(network netparams.Network) bool {
	params := network.Params()
	if params == nil {
		return false
	}

	switch v := k.variant.(type) {
	case extendedSecret:
		return v.key.IsForNet(params)
	case singleSecret:
		return v.wif.IsForNet(params)
	}

	return false
}

// String serializes the key with its origin, secret body, trailing path
// and wildcard suffix. The output parses back via ParseSecretKey.
func (k SecretKey) String() string {
	var sb strings.Builder
	if k.origin != nil {
		sb.WriteString(k.origin.String())
	}

	switch v := k.variant.(type) {
	case extendedSecret:
		sb.WriteString(v.key.String())
	case singleSecret:
		sb.WriteString(v.wif.String())
	}

	k.path.writeSteps(&sb)
	writeWildcard(&sb, k.wildcard)

	return sb.String()
}
