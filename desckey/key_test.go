// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package desckey_test

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/walletkit/desckey"
	"github.com/btcsuite/walletkit/netparams"
	"github.com/stretchr/testify/require"
)

// Reference material for one fixed testnet wallet. The master key pair
// and all derived forms below are standard BIP32/BIP39 results for this
// phrase with an empty passphrase.
const (
	testMnemonic = "chaos fabric time speed sponsor all flat solution " +
		"wisdom trophy crack object robot pave observe combine where " +
		"aware bench orient secret primary cable detect"

	masterTprv = "tprv8ZgxMBicQKsPdWuqM1t1CDRvQtQuBPyfL6GbhQwtxDKgUAVPbx" +
		"mj71pRA8raTqLrec5LyTs5TqCxdABcZr77bt2KyWA5bizJHnC4g4ysm4h"
	masterTpub = "tpubD6NzVbkrYhZ4WywdEfYbbd62yuvqLjAZuPsNyvzCNV85JekAEM" +
		"bKHWSHLF9h3j45SxewXDcLv328B1SEZrxg4iwGfmdt1pDFjZiTkGiFqGa"

	// Child at m/0.
	childTprv = "tprv8d7Y4JLmD25jkKbyDZXcdoPHu1YtMHuH21qeN7mFpjfumtSU7eZ" +
		"imFYUCSa3MYzkEYfSNRBV34GEr2QXwZCMYRZ7M1g6PUtiLhbJhBZEGYJ"
	childTpub = "tpubD9oaCiP1MPmQdndm7DCD3D3QU34pWd6BbKSRedoZF1UJcNhEk3P" +
		"JwkALNYkhxeTKL29oGNR7psqvT1KZydCGqUDEKXN6dVQJY2R8ooLPy8m"

	// Account key at m/44'/1'/0'.
	accountTpub44 = "tpubDCoPjomfTqh1e7o1WgGpQtARWtkueXQAepTeNpWiitS3Sdv" +
		"8RKJ1yvTrGHcwjDXp2SKyMrTEca4LoN7gEUiGCWboyWe2rz99Kf4jK4m2Zmx"

	testWIF = "L2wTu6hQrnDMiFNWA5na6jB12ErGQqtXwqpSL7aWquJaZG8Ai3ch"

	masterSecretHex = "e93315d6ce401eb4db803a56232f0ed3e69b053774e6047df5" +
		"4f1bd00e5ea936"
)

// testMasterKey builds the fixed testnet master key used across the key
// tests.
func testMasterKey(t *testing.T) desckey.SecretKey {
	t.Helper()

	mnemonic, err := desckey.MnemonicFromString(testMnemonic)
	require.NoError(t, err)

	key, err := desckey.NewSecretKey(netparams.Testnet, mnemonic, "")
	require.NoError(t, err)

	return key
}

// mustPath parses a derivation path or fails the test.
func mustPath(t *testing.T, text string) desckey.DerivationPath {
	t.Helper()

	path, err := desckey.ParsePath(text)
	require.NoError(t, err)
	return path
}

// TestNewSecretKey checks the master serialization and its public
// counterpart for the fixed mnemonic.
func TestNewSecretKey(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)
	require.Equal(t, masterTprv+"/*", master.String())

	pub, err := master.AsPublic()
	require.NoError(t, err)
	require.Equal(t, masterTpub+"/*", pub.String())

	_, hasOrigin := master.Origin()
	require.False(t, hasOrigin)
	require.Equal(t, desckey.WildcardUnhardened, master.Wildcard())
}

// TestDeriveSelf checks that deriving the empty path stamps the key's own
// fingerprint as origin while leaving the material unchanged.
func TestDeriveSelf(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)

	derived, err := master.Derive(mustPath(t, "m"))
	require.NoError(t, err)
	require.Equal(t, "[d1d04177]"+masterTprv+"/*", derived.String())

	masterPub, err := master.AsPublic()
	require.NoError(t, err)
	derivedPub, err := masterPub.Derive(mustPath(t, "m"))
	require.NoError(t, err)
	require.Equal(t, "[d1d04177]"+masterTpub+"/*", derivedPub.String())
}

// TestDeriveChild checks a one-step derivation on both the secret and
// public sides, including origin propagation.
func TestDeriveChild(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)

	derived, err := master.Derive(mustPath(t, "m/0"))
	require.NoError(t, err)
	require.Equal(t, "[d1d04177/0]"+childTprv+"/*", derived.String())

	origin, hasOrigin := derived.Origin()
	require.True(t, hasOrigin)
	require.Equal(t, "d1d04177",
		hex.EncodeToString(origin.Fingerprint[:]))

	masterPub, err := master.AsPublic()
	require.NoError(t, err)
	derivedPub, err := masterPub.Derive(mustPath(t, "m/0"))
	require.NoError(t, err)
	require.Equal(t, "[d1d04177/0]"+childTpub+"/*", derivedPub.String())
}

// TestExtend checks that extension only grows the trailing path and never
// touches origin or material.
func TestExtend(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)

	extended, err := master.Extend(mustPath(t, "m/0"))
	require.NoError(t, err)
	require.Equal(t, masterTprv+"/0/*", extended.String())

	// The receiver is unchanged.
	require.Equal(t, masterTprv+"/*", master.String())

	masterPub, err := master.AsPublic()
	require.NoError(t, err)
	extendedPub, err := masterPub.Extend(mustPath(t, "m/0"))
	require.NoError(t, err)
	require.Equal(t, masterTpub+"/0/*", extendedPub.String())
}

// TestDeriveThenExtend checks that a derivation's baked-in origin
// survives later extension.
func TestDeriveThenExtend(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)

	derived, err := master.Derive(mustPath(t, "m/0"))
	require.NoError(t, err)

	extended, err := derived.Extend(mustPath(t, "m/0"))
	require.NoError(t, err)
	require.Equal(t, "[d1d04177/0]"+childTprv+"/0/*", extended.String())
}

// TestExtendAssociative checks that extending by two paths in sequence
// matches extending by their concatenation.
func TestExtendAssociative(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)
	p1 := mustPath(t, "m/3/4")
	p2 := mustPath(t, "m/5'/6")

	once, err := master.Extend(p1)
	require.NoError(t, err)
	twice, err := once.Extend(p2)
	require.NoError(t, err)

	joined, err := master.Extend(p1.Extend(p2))
	require.NoError(t, err)

	require.Equal(t, joined.String(), twice.String())
}

// TestDeriveHardenedPublic checks that public derivation across a
// hardened step fails with the dedicated error before producing anything.
func TestDeriveHardenedPublic(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)
	masterPub, err := master.AsPublic()
	require.NoError(t, err)

	_, err = masterPub.Derive(mustPath(t, "m/84h/1h/0h"))
	require.ErrorIs(t, err, desckey.ErrHardenedDerivation)

	// The same path works on the secret side.
	_, err = master.Derive(mustPath(t, "m/84h/1h/0h"))
	require.NoError(t, err)
}

// TestAsPublicBakesHardenedPrefix checks that converting a key with a
// hardened trailing path derives that prefix into the origin, leaving
// only the unhardened tail pending.
func TestAsPublicBakesHardenedPrefix(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)

	extended, err := master.Extend(mustPath(t, "m/44h/1h/0h/0"))
	require.NoError(t, err)
	require.Equal(t, masterTprv+"/44'/1'/0'/0/*", extended.String())

	pub, err := extended.AsPublic()
	require.NoError(t, err)
	require.Equal(t,
		"[d1d04177/44'/1'/0']"+accountTpub44+"/0/*", pub.String())
}

// TestPublicMirrorsSecret checks that unhardened derivation commutes with
// the secret-to-public conversion.
func TestPublicMirrorsSecret(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)
	masterPub, err := master.AsPublic()
	require.NoError(t, err)

	for _, pathText := range []string{"m/0", "m/0/1/5", "m/7/0"} {
		path := mustPath(t, pathText)

		viaSecret, err := master.Derive(path)
		require.NoError(t, err)
		viaSecretPub, err := viaSecret.AsPublic()
		require.NoError(t, err)

		viaPublic, err := masterPub.Derive(path)
		require.NoError(t, err)

		require.Equal(t, viaPublic.String(), viaSecretPub.String(),
			"path %s", pathText)
	}
}

// TestSingleKeys checks WIF import: round-trip serialization and the
// non-derivable failure mode.
func TestSingleKeys(t *testing.T) {
	t.Parallel()

	single, err := desckey.ParseSecretKey(testWIF)
	require.NoError(t, err)
	require.False(t, single.IsDerivable())
	require.Equal(t, testWIF, single.String())

	_, err = single.Derive(mustPath(t, "m/0"))
	require.ErrorIs(t, err, desckey.ErrNotDerivable)

	_, err = single.Extend(mustPath(t, "m/0"))
	require.ErrorIs(t, err, desckey.ErrNotDerivable)

	// The public side of a single key is a hex pubkey that is equally
	// non-derivable.
	pub, err := single.AsPublic()
	require.NoError(t, err)
	require.False(t, pub.IsDerivable())

	_, err = pub.Derive(mustPath(t, "m/0"))
	require.ErrorIs(t, err, desckey.ErrNotDerivable)

	reparsed, err := desckey.ParsePublicKey(pub.String())
	require.NoError(t, err)
	require.Equal(t, pub.String(), reparsed.String())
}

// TestParseRejectsWrongSide checks that each parser refuses material of
// the opposite visibility.
func TestParseRejectsWrongSide(t *testing.T) {
	t.Parallel()

	_, err := desckey.ParseSecretKey(masterTpub)
	require.ErrorIs(t, err, desckey.ErrParse)

	_, err = desckey.ParsePublicKey(masterTprv)
	require.ErrorIs(t, err, desckey.ErrParse)

	_, err = desckey.ParseSecretKey("clearly not a key")
	require.ErrorIs(t, err, desckey.ErrParse)
}

// TestParseTrailingPaths checks parsing of keys that already carry a
// trailing path and wildcard, and that extension appends behind them.
func TestParseTrailingPaths(t *testing.T) {
	t.Parallel()

	const multiTprv = "tprv8ZgxMBicQKsPcwcD4gSnMti126ZiETsuX7qwrtMypr6FB" +
		"wAP65puFn4v6c3jrN9VwtMRMph6nyT63NrfUL4C3nBzPcduzVSuHD7zbX2J" +
		"KVc"

	secret, err := desckey.ParseSecretKey(multiTprv + "/1/1/1/*")
	require.NoError(t, err)
	require.Equal(t, multiTprv+"/1/1/1/*", secret.String())

	extended, err := secret.Extend(mustPath(t, "m/1/1"))
	require.NoError(t, err)
	require.Equal(t, multiTprv+"/1/1/1/1/1/*", extended.String())

	public, err := desckey.ParsePublicKey(masterTpub + "/1/1/1/*")
	require.NoError(t, err)

	extendedPub, err := public.Extend(mustPath(t, "m/1/1"))
	require.NoError(t, err)
	require.Equal(t, masterTpub+"/1/1/1/1/1/*", extendedPub.String())
}

// TestRoundTrip checks parse-serialize stability across representative
// key forms.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	secretForms := []string{
		masterTprv,
		masterTprv + "/*",
		masterTprv + "/0/*",
		masterTprv + "/44'/1'/0'/1/*",
		"[d1d04177/0]" + childTprv + "/*",
		testWIF,
	}
	for _, form := range secretForms {
		key, err := desckey.ParseSecretKey(form)
		require.NoError(t, err, "form %s", form)
		require.Equal(t, form, key.String())
	}

	publicForms := []string{
		masterTpub,
		masterTpub + "/*",
		"[d1d04177/0]" + childTpub + "/*",
		"[d1d04177/44'/1'/0']" + accountTpub44 + "/0/*",
	}
	for _, form := range publicForms {
		key, err := desckey.ParsePublicKey(form)
		require.NoError(t, err, "form %s", form)
		require.Equal(t, form, key.String())
	}
}

// TestSecretBytes checks the raw scalar exposed for the fixed master key.
func TestSecretBytes(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)

	secret, err := master.SecretBytes()
	require.NoError(t, err)
	require.Equal(t, masterSecretHex, hex.EncodeToString(secret))
}

// TestHardenedWildcard checks that a hardened range marker parses on both
// sides but only the secret side can satisfy it.
func TestHardenedWildcard(t *testing.T) {
	t.Parallel()

	secret, err := desckey.ParseSecretKey(masterTprv + "/*'")
	require.NoError(t, err)
	require.Equal(t, desckey.WildcardHardened, secret.Wildcard())
	require.Equal(t, masterTprv+"/*'", secret.String())

	_, err = secret.PrivKeyAt(0)
	require.NoError(t, err)

	public, err := desckey.ParsePublicKey(masterTpub + "/*'")
	require.NoError(t, err)

	_, err = public.PubKeyAt(0)
	require.ErrorIs(t, err, desckey.ErrHardenedDerivation)
}

// TestConcreteKeysAgree checks that PrivKeyAt and PubKeyAt resolve to the
// same point for an unhardened range key.
func TestConcreteKeysAgree(t *testing.T) {
	t.Parallel()

	master := testMasterKey(t)
	masterPub, err := master.AsPublic()
	require.NoError(t, err)

	for _, index := range []uint32{0, 1, 19} {
		priv, err := master.PrivKeyAt(index)
		require.NoError(t, err)

		pub, err := masterPub.PubKeyAt(index)
		require.NoError(t, err)

		require.Equal(t,
			pub.SerializeCompressed(),
			priv.PubKey().SerializeCompressed(),
			"index %d", index)
	}
}
