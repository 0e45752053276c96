// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/chain"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/txstore"
	"github.com/stretchr/testify/require"
)

// fakeChain is an in-memory chain.Source serving canned script
// histories.
type fakeChain struct {
	mu        sync.Mutex
	height    int32
	histories map[string][]chain.Entry
	broadcast []*wire.MsgTx

	historyErr   error
	broadcastErr error
}

var _ chain.Source = (*fakeChain)(nil)

func newFakeChain(height int32) *fakeChain {
	return &fakeChain{
		height:    height,
		histories: make(map[string][]chain.Entry),
	}
}

func (f *fakeChain) add(script []byte, entry chain.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histories[string(script)] = append(f.histories[string(script)], entry)
}

func (f *fakeChain) BestHeight(context.Context) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height, nil
}

func (f *fakeChain) BlockHash(_ context.Context, height int32) (chainhash.Hash, error) {
	return chainhash.Hash{0xcc, byte(height)}, nil
}

func (f *fakeChain) ScriptHistory(_ context.Context, pkScript []byte) ([]chain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.histories[string(pkScript)], nil
}

func (f *fakeChain) Broadcast(_ context.Context, tx *wire.MsgTx) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broadcastErr != nil {
		return f.broadcastErr
	}
	f.broadcast = append(f.broadcast, tx)
	return nil
}

func (f *fakeChain) FeeEstimate(context.Context, uint32) (float64, error) {
	return 2.0, nil
}

// depositTx pays amount to script from a synthetic outside input.  The
// seq byte keeps txids distinct across deposits.
func depositTx(script []byte, amount int64, seq byte) *wire.MsgTx {
	return &wire.MsgTx{
		Version: 2,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{
				Hash: chainhash.Hash{0xaa, seq},
			},
			Sequence: wire.MaxTxInSequenceNum,
		}},
		TxOut: []*wire.TxOut{{Value: amount, PkScript: script}},
	}
}

func blockAt(height int32) *txstore.BlockMeta {
	return &txstore.BlockMeta{
		Height: height,
		Hash:   chainhash.Hash{0xbb, byte(height)},
		Time:   time.Unix(1_700_000_000, 0),
	}
}

func TestSyncNilSource(t *testing.T) {
	t.Parallel()

	w := testWallet(t)
	err := w.Sync(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrNoChainSource)
}

func TestSyncDiscoversFunds(t *testing.T) {
	t.Parallel()

	w := testWallet(t)
	external, _ := testDescriptors(t)
	script0, err := external.ScriptPubKeyAt(0)
	require.NoError(t, err)
	script3, err := external.ScriptPubKeyAt(3)
	require.NoError(t, err)

	f := newFakeChain(205)
	f.add(script0, chain.Entry{
		Tx:    depositTx(script0, 50_000, 1),
		Block: blockAt(100),
	})
	f.add(script3, chain.Entry{Tx: depositTx(script3, 7_000, 2)})

	// The callback runs on the syncing goroutine, so plain append is
	// fine.
	var progress []float64
	err = w.Sync(context.Background(), f, func(pct float64, _ string) {
		progress = append(progress, pct)
	})
	require.NoError(t, err)

	balance, err := w.Balance()
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(50_000), balance.Confirmed)
	require.Equal(t, btcutil.Amount(7_000), balance.UntrustedPending)

	// Use at index three moved the reveal cursor, and the script is
	// now recognized.
	last, ok, err := w.store.LastIndex(descriptor.KeychainExternal)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(3), last)

	mine, err := w.IsMine(script3)
	require.NoError(t, err)
	require.True(t, mine)

	state, err := w.store.SyncState()
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Equal(t, int32(205), state.Height)

	require.NotEmpty(t, progress)
	require.Equal(t, float64(100), progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		require.GreaterOrEqual(t, progress[i], progress[i-1])
	}

	// A second sync over the same history changes nothing.
	require.NoError(t, w.Sync(context.Background(), f, nil))
	again, err := w.Balance()
	require.NoError(t, err)
	require.Equal(t, balance, again)
}

// TestSyncMarksSpent feeds a spend that only appears in the history of
// the script it pays to, not the one it spends from.  The spent flag
// must still land on the consumed output.
func TestSyncMarksSpent(t *testing.T) {
	t.Parallel()

	w := testWallet(t)
	external, _ := testDescriptors(t)
	script0, err := external.ScriptPubKeyAt(0)
	require.NoError(t, err)
	script1, err := external.ScriptPubKeyAt(1)
	require.NoError(t, err)

	deposit := depositTx(script0, 50_000, 1)
	spend := &wire.MsgTx{
		Version: 2,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: deposit.TxHash()},
			Sequence:         wire.MaxTxInSequenceNum,
		}},
		TxOut: []*wire.TxOut{{Value: 30_000, PkScript: script1}},
	}

	f := newFakeChain(205)
	f.add(script0, chain.Entry{Tx: deposit, Block: blockAt(100)})
	f.add(script1, chain.Entry{Tx: spend, Block: blockAt(105)})

	require.NoError(t, w.Sync(context.Background(), f, nil))

	credit, ok, err := w.store.Credit(wire.OutPoint{Hash: deposit.TxHash()})
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, credit.Spent)

	balance, err := w.Balance()
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(30_000), balance.Confirmed)
	require.Equal(t, btcutil.Amount(30_000), balance.Total())
}

// TestSyncConfirmsPending syncs the same deposit twice, first from the
// mempool and then mined, and expects the stored record to pick up the
// confirmation.
func TestSyncConfirmsPending(t *testing.T) {
	t.Parallel()

	w := testWallet(t)
	external, _ := testDescriptors(t)
	script0, err := external.ScriptPubKeyAt(0)
	require.NoError(t, err)
	deposit := depositTx(script0, 20_000, 1)

	f := newFakeChain(205)
	f.add(script0, chain.Entry{Tx: deposit})

	require.NoError(t, w.Sync(context.Background(), f, nil))
	balance, err := w.Balance()
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(20_000), balance.UntrustedPending)
	require.Equal(t, btcutil.Amount(0), balance.Confirmed)

	f.mu.Lock()
	f.histories[string(script0)] = []chain.Entry{{
		Tx:    deposit,
		Block: blockAt(206),
	}}
	f.height = 210
	f.mu.Unlock()

	require.NoError(t, w.Sync(context.Background(), f, nil))
	balance, err = w.Balance()
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(0), balance.UntrustedPending)
	require.Equal(t, btcutil.Amount(20_000), balance.Confirmed)
}

func TestSyncSourceError(t *testing.T) {
	t.Parallel()

	w := testWallet(t)
	f := newFakeChain(205)
	errHistory := errors.New("history unavailable")
	f.historyErr = errHistory

	err := w.Sync(context.Background(), f, nil)
	require.ErrorIs(t, err, errHistory)
}
