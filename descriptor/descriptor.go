// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package descriptor implements output script descriptors over the
// single-key script families pkh, sh(wpkh) and wpkh. A descriptor pairs
// a script expression with one ranged key and can produce the concrete
// address, output script and signing key for any index in the range.
//
// Descriptors built from secret keys keep the private material in a key
// map keyed by the public placeholder; serialization always shows the
// public form unless secrets are explicitly requested.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/walletkit/desckey"
	"github.com/btcsuite/walletkit/netparams"
)

// Keychain identifies which address chain of a wallet a descriptor, or
// an address derived from one, belongs to.
type Keychain uint8

const (
	// KeychainExternal is the chain of addresses handed out to others
	// for receiving.
	KeychainExternal Keychain = iota

	// KeychainInternal is the change chain, only ever paid to by the
	// wallet itself.
	KeychainInternal
)

// String returns a human-readable keychain name.
func (k Keychain) String() string {
	switch k {
	case KeychainExternal:
		return "external"
	case KeychainInternal:
		return "internal"
	}
	return fmt.Sprintf("keychain(%d)", uint8(k))
}

// ScriptKind is the script family a descriptor produces outputs for.
type ScriptKind uint8

const (
	// KindPKH pays to a public key hash.
	KindPKH ScriptKind = iota

	// KindSHWPKH nests a v0 witness public key hash program inside
	// P2SH.
	KindSHWPKH

	// KindWPKH pays to a native v0 witness public key hash.
	KindWPKH
)

// String returns the descriptor function name of the script kind.
func (s ScriptKind) String() string {
	switch s {
	case KindPKH:
		return "pkh"
	case KindSHWPKH:
		return "sh(wpkh)"
	case KindWPKH:
		return "wpkh"
	}
	return fmt.Sprintf("kind(%d)", uint8(s))
}

// KeyMap maps the public placeholder of each descriptor key to the
// secret key behind it. Descriptors built from public material carry an
// empty map.
type KeyMap map[string]desckey.SecretKey

// Descriptor is a parsed output script descriptor: one script kind, the
// ranged public key filling it, and any secret material the key was
// built from. Descriptors are immutable once constructed and safe for
// concurrent use.
type Descriptor struct {
	kind    ScriptKind
	key     desckey.PublicKey
	keyMap  KeyMap
	network netparams.Network
}

// Parse parses a descriptor expression for the given network. The
// trailing "#checksum" fragment is optional, but when present it must
// match the body. The embedded key may be secret, in which case the
// parsed descriptor retains the private material, or public for a
// watch-only descriptor. A key encoded for a different network fails
// with ErrInvalidNetwork.
func Parse(expression string, network netparams.Network) (*Descriptor, error) {
	if network.Params() == nil {
		return nil, netparams.ErrUnknownNetwork
	}

	body := strings.TrimSpace(expression)
	if body == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	body, check, hasCheck := strings.Cut(body, "#")
	if hasCheck {
		want, err := Checksum(body)
		if err != nil {
			return nil, err
		}
		if check != want {
			return nil, fmt.Errorf("%w: expected %s", ErrChecksum,
				want)
		}
	}

	kind, keyText, err := splitExpression(body)
	if err != nil {
		return nil, err
	}

	// Secret keys first: their textual encodings are disjoint from the
	// public ones, so a successful parse is unambiguous.
	if secret, err := desckey.ParseSecretKey(keyText); err == nil {
		return fromSecret(kind, secret, network)
	}

	pub, err := desckey.ParsePublicKey(keyText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return fromPublic(kind, pub, network)
}

// splitExpression matches the body against the supported script
// functions and returns the kind together with the inner key text.
func splitExpression(body string) (ScriptKind, string, error) {
	switch {
	case strings.HasPrefix(body, "wpkh(") && strings.HasSuffix(body, ")"):
		return KindWPKH, body[len("wpkh(") : len(body)-1], nil

	case strings.HasPrefix(body, "sh(wpkh(") &&
		strings.HasSuffix(body, "))"):

		return KindSHWPKH, body[len("sh(wpkh(") : len(body)-2], nil

	case strings.HasPrefix(body, "pkh(") && strings.HasSuffix(body, ")"):
		return KindPKH, body[len("pkh(") : len(body)-1], nil
	}

	return 0, "", fmt.Errorf("%w: unsupported script expression",
		ErrSyntax)
}

// fromSecret assembles a descriptor around a secret key, deriving its
// public placeholder and recording the secret in the key map.
func fromSecret(kind ScriptKind, secret desckey.SecretKey,
	network netparams.Network) (*Descriptor, error) {

	if !secret.ValidForNetwork(network) {
		return nil, fmt.Errorf("%w: secret key encodes another "+
			"network", ErrInvalidNetwork)
	}

	pub, err := secret.AsPublic()
	if err != nil {
		return nil, err
	}
	if err := checkKeyShape(kind, pub); err != nil {
		return nil, err
	}

	return &Descriptor{
		kind:    kind,
		key:     pub,
		keyMap:  KeyMap{pub.String(): secret},
		network: network,
	}, nil
}

// fromPublic assembles a watch-only descriptor around a public key.
func fromPublic(kind ScriptKind, pub desckey.PublicKey,
	network netparams.Network) (*Descriptor, error) {

	if !pub.ValidForNetwork(network) {
		return nil, fmt.Errorf("%w: public key encodes another "+
			"network", ErrInvalidNetwork)
	}
	if err := checkKeyShape(kind, pub); err != nil {
		return nil, err
	}

	return &Descriptor{
		kind:    kind,
		key:     pub,
		keyMap:  KeyMap{},
		network: network,
	}, nil
}

// checkKeyShape rejects key shapes the script family cannot commit to.
// Witness programs require compressed keys.
func checkKeyShape(kind ScriptKind, key desckey.PublicKey) error {
	if kind != KindPKH && !key.IsCompressed() {
		return fmt.Errorf("%w: uncompressed keys cannot be used in "+
			"witness scripts", ErrSyntax)
	}
	return nil
}

// Kind returns the descriptor's script family.
func (d *Descriptor) Kind() ScriptKind {
	return d.kind
}

// Network returns the network the descriptor was built for.
func (d *Descriptor) Network() netparams.Network {
	return d.network
}

// HasSecrets reports whether the descriptor holds private material and
// can therefore produce signing keys.
func (d *Descriptor) HasSecrets() bool {
	return len(d.keyMap) > 0
}

// String renders the descriptor in its public form with a checksum
// appended. Secret material never appears in this form.
func (d *Descriptor) String() string {
	return withChecksum(d.render(d.key.String()))
}

// StringWithSecrets renders the descriptor with the secret key
// substituted for its public placeholder where the key map has one.
// Watch-only descriptors render identically to String.
func (d *Descriptor) StringWithSecrets() string {
	inner := d.key.String()
	if secret, ok := d.keyMap[inner]; ok {
		inner = secret.String()
	}
	return withChecksum(d.render(inner))
}

// render wraps the key text in the descriptor's script function.
func (d *Descriptor) render(inner string) string {
	switch d.kind {
	case KindPKH:
		return "pkh(" + inner + ")"
	case KindSHWPKH:
		return "sh(wpkh(" + inner + "))"
	default:
		return "wpkh(" + inner + ")"
	}
}

// withChecksum appends the checksum fragment to a rendered body. Bodies
// produced by render stay within the descriptor character set, so the
// checksum cannot fail for them.
func withChecksum(body string) string {
	check, err := Checksum(body)
	if err != nil {
		return body
	}
	return body + "#" + check
}

// AddressAt derives the address at the given index of the descriptor's
// range. Descriptors without a wildcard produce the same address for
// every index.
func (d *Descriptor) AddressAt(index uint32) (btcutil.Address, error) {
	pubBytes, err := d.key.PubKeyBytesAt(index)
	if err != nil {
		return nil, err
	}
	params := d.network.Params()

	switch d.kind {
	case KindPKH:
		return btcutil.NewAddressPubKeyHash(
			btcutil.Hash160(pubBytes), params,
		)

	case KindWPKH:
		return btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(pubBytes), params,
		)

	case KindSHWPKH:
		witnessProg, err := witnessProgram(pubBytes, params)
		if err != nil {
			return nil, err
		}
		return btcutil.NewAddressScriptHash(witnessProg, params)
	}

	return nil, fmt.Errorf("%w: unknown script kind", ErrSyntax)
}

// ScriptPubKeyAt derives the output script at the given index.
func (d *Descriptor) ScriptPubKeyAt(index uint32) ([]byte, error) {
	addr, err := d.AddressAt(index)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// RedeemScriptAt returns the script that must be revealed alongside a
// spend of the descriptor's output at index: the inner witness program
// for nested witness descriptors, nil for everything else.
func (d *Descriptor) RedeemScriptAt(index uint32) ([]byte, error) {
	if d.kind != KindSHWPKH {
		return nil, nil
	}

	pubBytes, err := d.key.PubKeyBytesAt(index)
	if err != nil {
		return nil, err
	}
	return witnessProgram(pubBytes, d.network.Params())
}

// witnessProgram builds the v0 witness program paying to the hash of the
// serialized public key.
func witnessProgram(pubBytes []byte, params *chaincfg.Params) ([]byte, error) {
	witAddr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubBytes), params,
	)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(witAddr)
}

// PubKeyBytesAt returns the serialized public key at the given index.
func (d *Descriptor) PubKeyBytesAt(index uint32) ([]byte, error) {
	return d.key.PubKeyBytesAt(index)
}

// PrivKeyAt resolves the private key at the given index from the key
// map. Watch-only descriptors fail with ErrNoSecrets.
func (d *Descriptor) PrivKeyAt(index uint32) (*btcec.PrivateKey, error) {
	secret, ok := d.keyMap[d.key.String()]
	if !ok {
		return nil, ErrNoSecrets
	}
	return secret.PrivKeyAt(index)
}

// OriginAt reports the full BIP32 origin of the key at index: the master
// fingerprint and the path from that master down to the concrete key,
// in the shape PSBT derivation fields want.
func (d *Descriptor) OriginAt(index uint32) (desckey.KeyOrigin, error) {
	var (
		fp   [4]byte
		path desckey.DerivationPath
	)
	if origin, ok := d.key.Origin(); ok {
		fp = origin.Fingerprint
		path = origin.Path
	} else {
		var err error
		fp, err = d.key.Fingerprint()
		if err != nil {
			return desckey.KeyOrigin{}, err
		}
		path = desckey.DerivationPath{}
	}

	path = path.Extend(d.key.Path())
	switch d.key.Wildcard() {
	case desckey.WildcardUnhardened:
		path = path.Extend(desckey.DerivationPath{index})
	case desckey.WildcardHardened:
		path = path.Extend(desckey.DerivationPath{
			index + desckey.HardenedKeyStart,
		})
	}

	return desckey.KeyOrigin{Fingerprint: fp, Path: path}, nil
}
