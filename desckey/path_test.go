// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package desckey_test

import (
	"testing"

	"github.com/btcsuite/walletkit/desckey"
	"github.com/stretchr/testify/require"
)

// TestParsePath checks the m/step/step grammar, including all three
// hardened markers and the index range limit.
func TestParsePath(t *testing.T) {
	t.Parallel()

	h := uint32(desckey.HardenedKeyStart)

	testCases := []struct {
		name    string
		text    string
		want    desckey.DerivationPath
		wantErr error
	}{
		{
			name: "master only",
			text: "m",
			want: desckey.DerivationPath{},
		},
		{
			name: "single step",
			text: "m/0",
			want: desckey.DerivationPath{0},
		},
		{
			name: "mixed hardened markers",
			text: "m/44'/1h/2H/3",
			want: desckey.DerivationPath{44 + h, 1 + h, 2 + h, 3},
		},
		{
			name: "max index",
			text: "m/2147483647",
			want: desckey.DerivationPath{h - 1},
		},
		{
			name:    "empty",
			text:    "",
			wantErr: desckey.ErrMalformedPath,
		},
		{
			name:    "missing prefix",
			text:    "44/0",
			wantErr: desckey.ErrMalformedPath,
		},
		{
			name:    "trailing slash",
			text:    "m/",
			wantErr: desckey.ErrMalformedPath,
		},
		{
			name:    "empty segment",
			text:    "m/0//1",
			wantErr: desckey.ErrMalformedPath,
		},
		{
			name:    "double marker",
			text:    "m/0''",
			wantErr: desckey.ErrMalformedPath,
		},
		{
			name:    "index overflow",
			text:    "m/2147483648",
			wantErr: desckey.ErrMalformedPath,
		},
		{
			name:    "not a number",
			text:    "m/january",
			wantErr: desckey.ErrMalformedPath,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path, err := desckey.ParsePath(tc.text)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.True(t, tc.want.Equal(path))
		})
	}
}

// TestPathString checks that rendering normalizes every hardened marker
// to ' and survives a reparse.
func TestPathString(t *testing.T) {
	t.Parallel()

	path, err := desckey.ParsePath("m/44h/1H/0'/7")
	require.NoError(t, err)
	require.Equal(t, "m/44'/1'/0'/7", path.String())

	reparsed, err := desckey.ParsePath(path.String())
	require.NoError(t, err)
	require.True(t, path.Equal(reparsed))

	require.Equal(t, "m", desckey.DerivationPath{}.String())
}

// TestPathExtend checks that concatenation is associative and leaves its
// inputs untouched.
func TestPathExtend(t *testing.T) {
	t.Parallel()

	a, err := desckey.ParsePath("m/1'/2")
	require.NoError(t, err)
	b, err := desckey.ParsePath("m/3")
	require.NoError(t, err)
	c, err := desckey.ParsePath("m/4'/5")
	require.NoError(t, err)

	left := a.Extend(b).Extend(c)
	right := a.Extend(b.Extend(c))
	require.True(t, left.Equal(right))
	require.Equal(t, "m/1'/2/3/4'/5", left.String())

	// Inputs must be unchanged.
	require.Equal(t, "m/1'/2", a.String())
	require.Equal(t, "m/3", b.String())
	require.Equal(t, "m/4'/5", c.String())
}
