// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"
)

// fakeSource is a Source stub whose best height and error can be moved
// by tests.
type fakeSource struct {
	mu     sync.Mutex
	height int32
	err    error
	calls  int
}

func (s *fakeSource) setHeight(height int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height = height
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeSource) BestHeight(context.Context) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.height, nil
}

func (s *fakeSource) BlockHash(context.Context, int32) (chainhash.Hash,
	error) {

	return chainhash.Hash{}, nil
}

func (s *fakeSource) ScriptHistory(context.Context, []byte) ([]Entry, error) {
	return nil, nil
}

func (s *fakeSource) Broadcast(context.Context, *wire.MsgTx) error {
	return nil
}

func (s *fakeSource) FeeEstimate(context.Context, uint32) (float64, error) {
	return 1, nil
}

// heightRecorder collects OnBlock notifications.
type heightRecorder struct {
	mu      sync.Mutex
	heights []int32
}

func (r *heightRecorder) record(height int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heights = append(r.heights, height)
}

func (r *heightRecorder) snapshot() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int32(nil), r.heights...)
}

// TestPollerNotifiesNewBlocks asserts the poller fires once per new
// height, in order, and never re-notifies heights at or below the best
// seen one.
func TestPollerNotifiesNewBlocks(t *testing.T) {
	t.Parallel()

	src := &fakeSource{height: 100}
	force := ticker.NewForce(time.Hour)
	rec := &heightRecorder{}

	p := NewPoller(&PollerConfig{
		Source:  src,
		Ticker:  force,
		OnBlock: rec.record,
	})
	require.NoError(t, p.Start())
	defer p.Stop()

	src.setHeight(103)
	force.Force <- time.Time{}

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 3
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []int32{101, 102, 103}, rec.snapshot())

	// A height regression followed by growth only notifies the
	// heights past the best seen one.
	src.setHeight(102)
	force.Force <- time.Time{}
	src.setHeight(104)
	force.Force <- time.Time{}

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 4
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []int32{101, 102, 103, 104}, rec.snapshot())
}

// TestPollerRecoversFromErrors asserts a failing backend suppresses
// notifications without killing the polling loop.
func TestPollerRecoversFromErrors(t *testing.T) {
	t.Parallel()

	src := &fakeSource{height: 1}
	force := ticker.NewForce(time.Hour)
	rec := &heightRecorder{}

	p := NewPoller(&PollerConfig{
		Source:  src,
		Ticker:  force,
		OnBlock: rec.record,
	})
	require.NoError(t, p.Start())
	defer p.Stop()

	src.setErr(errors.New("backend down"))
	src.setHeight(2)
	force.Force <- time.Time{}

	// Wait for the failing poll before clearing the error, so the
	// error path is what the tick above exercised.
	require.Eventually(t, func() bool {
		return src.callCount() >= 2
	}, 5*time.Second, 10*time.Millisecond)
	require.Empty(t, rec.snapshot())

	src.setErr(nil)
	force.Force <- time.Time{}

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []int32{2}, rec.snapshot())
}

// TestPollerStartError asserts Start surfaces the initial best height
// failure and starts no goroutine.
func TestPollerStartError(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("backend down")}
	force := ticker.NewForce(time.Hour)

	p := NewPoller(&PollerConfig{
		Source:  src,
		Ticker:  force,
		OnBlock: func(int32) {},
	})
	require.Error(t, p.Start())

	// Stop remains safe even though polling never began.
	p.Stop()
	force.Stop()
}
