// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"fmt"

	"github.com/btcsuite/walletkit/desckey"
	"github.com/btcsuite/walletkit/netparams"
)

// NewBip44 builds a pkh descriptor over the path purpose'/coin'/0'/role
// with purpose 44, rooted at the given secret key. Any origin or
// derivation already attached to the key is discarded; templates always
// start from the raw key material.
func NewBip44(key desckey.SecretKey, keychain Keychain,
	network netparams.Network) (*Descriptor, error) {

	return newTemplate(KindPKH, 44, key, keychain, network)
}

// NewBip49 builds a sh(wpkh) descriptor over the BIP49 path, rooted at
// the given secret key.
func NewBip49(key desckey.SecretKey, keychain Keychain,
	network netparams.Network) (*Descriptor, error) {

	return newTemplate(KindSHWPKH, 49, key, keychain, network)
}

// NewBip84 builds a wpkh descriptor over the BIP84 path, rooted at the
// given secret key.
func NewBip84(key desckey.SecretKey, keychain Keychain,
	network netparams.Network) (*Descriptor, error) {

	return newTemplate(KindWPKH, 84, key, keychain, network)
}

// NewBip44Public rebuilds the watch-only half of a BIP44 template from
// an account-level extended public key: the supplied master fingerprint
// and the hardened template prefix become the key's origin, leaving only
// the role step and the address wildcard to derive.
func NewBip44Public(key desckey.PublicKey, fingerprint [4]byte,
	keychain Keychain, network netparams.Network) (*Descriptor, error) {

	return newPublicTemplate(KindPKH, 44, key, fingerprint, keychain,
		network)
}

// NewBip49Public rebuilds the watch-only half of a BIP49 template from
// an account-level extended public key.
func NewBip49Public(key desckey.PublicKey, fingerprint [4]byte,
	keychain Keychain, network netparams.Network) (*Descriptor, error) {

	return newPublicTemplate(KindSHWPKH, 49, key, fingerprint, keychain,
		network)
}

// NewBip84Public rebuilds the watch-only half of a BIP84 template from
// an account-level extended public key.
func NewBip84Public(key desckey.PublicKey, fingerprint [4]byte,
	keychain Keychain, network netparams.Network) (*Descriptor, error) {

	return newPublicTemplate(KindWPKH, 84, key, fingerprint, keychain,
		network)
}

// templatePath is purpose'/coin'/account'/role with the account fixed at
// zero and the role step left unhardened. The coin type is 0' on mainnet
// and 1' everywhere else.
func templatePath(purpose uint32, network netparams.Network,
	keychain Keychain) desckey.DerivationPath {

	coin := uint32(1)
	if network == netparams.Bitcoin {
		coin = 0
	}
	role := uint32(0)
	if keychain == KeychainInternal {
		role = 1
	}

	return desckey.DerivationPath{
		purpose + desckey.HardenedKeyStart,
		coin + desckey.HardenedKeyStart,
		desckey.HardenedKeyStart,
		role,
	}
}

// newTemplate assembles a template descriptor around a root secret key.
// The key keeps the template path as a trailing suffix, so the private
// rendering shows the root key with the full path, while the public
// placeholder bakes the hardened prefix into its origin.
func newTemplate(kind ScriptKind, purpose uint32, key desckey.SecretKey,
	keychain Keychain, network netparams.Network) (*Descriptor, error) {

	if network.Params() == nil {
		return nil, netparams.ErrUnknownNetwork
	}

	base := key.Base()
	if !base.IsDerivable() {
		return nil, fmt.Errorf("%w: templates require an extended "+
			"key", desckey.ErrNotDerivable)
	}
	if !base.ValidForNetwork(network) {
		return nil, fmt.Errorf("%w: secret key encodes another "+
			"network", ErrInvalidNetwork)
	}

	templKey, err := base.Extend(templatePath(purpose, network, keychain))
	if err != nil {
		return nil, err
	}
	return fromSecret(kind, templKey, network)
}

// newPublicTemplate assembles the watch-only counterpart of newTemplate
// from an account-level public key and the fingerprint of the master it
// was derived from.
func newPublicTemplate(kind ScriptKind, purpose uint32,
	key desckey.PublicKey, fingerprint [4]byte, keychain Keychain,
	network netparams.Network) (*Descriptor, error) {

	if network.Params() == nil {
		return nil, netparams.ErrUnknownNetwork
	}

	base := key.Base()
	if !base.IsDerivable() {
		return nil, fmt.Errorf("%w: templates require an extended "+
			"key", desckey.ErrNotDerivable)
	}
	if !base.ValidForNetwork(network) {
		return nil, fmt.Errorf("%w: public key encodes another "+
			"network", ErrInvalidNetwork)
	}

	path := templatePath(purpose, network, keychain)
	hardened, role := path[:len(path)-1], path[len(path)-1:]

	rooted := base.WithOrigin(desckey.KeyOrigin{
		Fingerprint: fingerprint,
		Path:        hardened,
	})
	templKey, err := rooted.Extend(role)
	if err != nil {
		return nil, err
	}
	return fromPublic(kind, templKey, network)
}
