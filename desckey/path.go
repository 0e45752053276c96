// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package desckey

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// HardenedKeyStart is the index at which a derivation step becomes
// hardened. Steps at or above this value require the parent private key.
const HardenedKeyStart = hdkeychain.HardenedKeyStart

// DerivationPath is an ordered sequence of BIP32 child indexes. Hardened
// steps carry the HardenedKeyStart offset. Paths are immutable by
// convention: every operation returns a fresh slice and never aliases the
// receiver's backing array.
type DerivationPath []uint32

// ParsePath parses the textual m/step/step notation into a DerivationPath.
// Each step is a non-negative integer below 2^31, optionally suffixed by
// one of ', h or H to mark it hardened. The leading m (alone, or followed
// by /) is required; "m" by itself denotes the empty path.
func ParsePath(text string) (DerivationPath, error) {
	if text == "m" {
		return DerivationPath{}, nil
	}
	rest, ok := strings.CutPrefix(text, "m/")
	if !ok || rest == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedPath, text)
	}

	segments := strings.Split(rest, "/")
	path := make(DerivationPath, 0, len(segments))
	for _, seg := range segments {
		step, err := parseStep(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %q", err, seg)
		}
		path = append(path, step)
	}

	return path, nil
}

// parseStep converts one path segment into its child index, applying the
// hardened offset when the segment carries a hardened suffix.
func parseStep(seg string) (uint32, error) {
	hardened := false
	switch {
	case strings.HasSuffix(seg, "'"),
		strings.HasSuffix(seg, "h"),
		strings.HasSuffix(seg, "H"):

		hardened = true
		seg = seg[:len(seg)-1]
	}
	if seg == "" {
		return 0, ErrMalformedPath
	}

	index, err := strconv.ParseUint(seg, 10, 32)
	if err != nil || index >= HardenedKeyStart {
		return 0, ErrMalformedPath
	}
	if hardened {
		index += HardenedKeyStart
	}

	return uint32(index), nil
}

// Extend returns a new path holding the receiver's steps followed by
// other's steps. Neither input is modified.
func (p DerivationPath) Extend(other DerivationPath) DerivationPath {
	extended := make(DerivationPath, 0, len(p)+len(other))
	extended = append(extended, p...)
	extended = append(extended, other...)
	return extended
}

// String returns the canonical textual form of the path, using ' as the
// hardened marker. The empty path renders as "m".
func (p DerivationPath) String() string {
	var sb strings.Builder
	sb.WriteByte('m')
	p.writeSteps(&sb)
	return sb.String()
}

// writeSteps appends the /-prefixed step notation to sb, without the
// leading m. This is the fragment shared by origin brackets and trailing
// key suffixes.
func (p DerivationPath) writeSteps(sb *strings.Builder) {
	for _, step := range p {
		sb.WriteByte('/')
		if step >= HardenedKeyStart {
			sb.WriteString(strconv.FormatUint(
				uint64(step-HardenedKeyStart), 10,
			))
			sb.WriteByte('\'')
		} else {
			sb.WriteString(strconv.FormatUint(uint64(step), 10))
		}
	}
}

// Equal reports whether both paths hold the same steps.
func (p DerivationPath) Equal(other DerivationPath) bool {
	if len(p) != len(other) {
		return false
	}
	for i, step := range p {
		if other[i] != step {
			return false
		}
	}
	return true
}

// hasHardened reports whether any step of the path is hardened.
func (p DerivationPath) hasHardened() bool {
	for _, step := range p {
		if step >= HardenedKeyStart {
			return true
		}
	}
	return false
}

// splitHardened returns the index just past the last hardened step, which
// splits the path into a prefix that must be derived with private material
// and a purely unhardened tail.
func (p DerivationPath) splitHardened() int {
	for i := len(p); i > 0; i-- {
		if p[i-1] >= HardenedKeyStart {
			return i
		}
	}
	return 0
}

// KeyOrigin records where a derived key sits relative to its root: the
// fingerprint of the root public key and the path from that root. Once a
// key carries an origin, further derivation only ever extends the path;
// the fingerprint is fixed.
type KeyOrigin struct {
	// Fingerprint is the first four bytes of the HASH160 of the root's
	// compressed public key.
	Fingerprint [4]byte

	// Path is the derivation path from the fingerprinted root to the
	// key carrying this origin.
	Path DerivationPath
}

// String returns the bracketed origin notation used inside descriptor key
// expressions, e.g. [d1d04177/44'/1'/0'].
func (o KeyOrigin) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(hex.EncodeToString(o.Fingerprint[:]))
	o.Path.writeSteps(&sb)
	sb.WriteByte(']')
	return sb.String()
}

// clone returns a deep copy so that callers can hold the result without
// aliasing the receiver's path.
func (o KeyOrigin) clone() KeyOrigin {
	return KeyOrigin{
		Fingerprint: o.Fingerprint,
		Path:        append(DerivationPath(nil), o.Path...),
	}
}

// ParseFingerprint decodes an eight-character hex fingerprint such as
// "d1d04177" into its four raw bytes.
func ParseFingerprint(text string) ([4]byte, error) {
	var fp [4]byte
	if len(text) != 8 {
		return fp, fmt.Errorf("%w: fingerprint %q must be 8 hex "+
			"characters", ErrParse, text)
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return fp, fmt.Errorf("%w: fingerprint %q", ErrParse, text)
	}
	copy(fp[:], raw)
	return fp, nil
}

// parseOrigin parses the inner fp/step/step text of a bracketed origin.
func parseOrigin(text string) (KeyOrigin, error) {
	fpText, pathText, hasPath := strings.Cut(text, "/")
	if len(fpText) != 8 {
		return KeyOrigin{}, fmt.Errorf("%w: origin fingerprint %q",
			ErrParse, fpText)
	}
	fpBytes, err := hex.DecodeString(fpText)
	if err != nil {
		return KeyOrigin{}, fmt.Errorf("%w: origin fingerprint %q",
			ErrParse, fpText)
	}

	origin := KeyOrigin{Path: DerivationPath{}}
	copy(origin.Fingerprint[:], fpBytes)

	if hasPath {
		origin.Path, err = ParsePath("m/" + pathText)
		if err != nil {
			return KeyOrigin{}, err
		}
	}

	return origin, nil
}
