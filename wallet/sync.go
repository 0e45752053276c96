// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletkit/chain"
	"github.com/btcsuite/walletkit/descriptor"
	"github.com/btcsuite/walletkit/txstore"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentScans bounds the script history lookups in flight
// during a sync.
const maxConcurrentScans = 8

// Progress receives sync progress updates.  pct never decreases and
// stays within [0, 100]; message describes the current stage and may
// be empty.  The callback runs on the syncing goroutine, so a slow
// callback stalls the sync.
type Progress func(pct float64, message string)

// progressReporter clamps reported progress onto a monotonic ramp.
type progressReporter struct {
	callback Progress
	last     float64
}

func (r *progressReporter) report(pct float64, message string) {
	if r.callback == nil {
		return
	}
	if pct < r.last {
		pct = r.last
	}
	if pct > 100 {
		pct = 100
	}
	r.last = pct
	r.callback(pct, message)
}

// scanResult is the fetched history of one keychain script.
type scanResult struct {
	script  []byte
	entries []chain.Entry
}

// Sync walks the wallet's keychains against the chain source and
// records the transactions and outputs it finds.  Each keychain is
// scanned in windows of the gap limit until a full window of scripts
// shows no history.  Sync holds the wallet lock for its entire
// duration: it must not run concurrently with itself, and every other
// wallet call blocks until it returns.
func (w *Wallet) Sync(ctx context.Context, src chain.Source, progress Progress) error {
	if src == nil {
		return ErrNoChainSource
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	reporter := &progressReporter{callback: progress}
	reporter.report(0, "starting sync")

	tipHeight, err := src.BestHeight(ctx)
	if err != nil {
		return err
	}
	tipHash, err := src.BlockHash(ctx, tipHeight)
	if err != nil {
		return err
	}

	keychains := []descriptor.Keychain{descriptor.KeychainExternal}
	if w.internal != nil {
		keychains = append(keychains, descriptor.KeychainInternal)
	}

	scanned := 0
	share := 90.0 / float64(len(keychains))
	for i, keychain := range keychains {
		n, err := w.scanKeychain(
			ctx, src, keychain, reporter, float64(i)*share, share,
		)
		if err != nil {
			return err
		}
		scanned += n
	}

	// A spend can surface in a different script's history than the
	// output it consumes, so spends are resolved in one pass over
	// the full record set.
	if err := w.markSpent(); err != nil {
		return err
	}
	reporter.report(95, "recording sync state")

	err = w.store.SetSyncState(&txstore.SyncState{
		Height: tipHeight,
		Hash:   tipHash,
		Time:   time.Now(),
	})
	if err != nil {
		return err
	}

	reporter.report(100, "sync complete")
	log.Infof("Synced to height %d in %v, %d %s scanned", tipHeight,
		time.Since(start), scanned,
		pickNoun(scanned, "script", "scripts"))
	return nil
}

// scanKeychain walks one keychain in gap limit windows, fetching the
// histories of each window concurrently.  It returns the number of
// scripts scanned.  The caller must hold the wallet lock.
func (w *Wallet) scanKeychain(ctx context.Context, src chain.Source,
	keychain descriptor.Keychain, reporter *progressReporter,
	base, share float64) (int, error) {

	desc := w.descriptorFor(keychain)
	window := w.gapLimit

	// Revealed scripts are always scanned, used or not.
	revealed := uint32(0)
	last, ok, err := w.store.LastIndex(keychain)
	if err != nil {
		return 0, err
	}
	if ok {
		revealed = last + 1
	}

	next := uint32(0)
	highestUsed := int64(-1)
	for {
		results := make([]scanResult, window)
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(maxConcurrentScans)
		for i := uint32(0); i < window; i++ {
			index := next + i
			slot := &results[i]
			group.Go(func() error {
				script, err := desc.ScriptPubKeyAt(index)
				if err != nil {
					return err
				}
				entries, err := src.ScriptHistory(
					groupCtx, script,
				)
				if err != nil {
					return err
				}
				slot.script = script
				slot.entries = entries
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return int(next), err
		}

		anyUsed := false
		for i := range results {
			index := next + uint32(i)
			path := txstore.ScriptPath{
				Keychain: keychain,
				Index:    index,
			}
			err := w.applyHistory(
				path, results[i].script, results[i].entries,
			)
			if err != nil {
				return int(next), err
			}
			if len(results[i].entries) > 0 {
				anyUsed = true
				if int64(index) > highestUsed {
					highestUsed = int64(index)
				}
			}
		}
		next += window

		// Rough share of the keychain covered so far; the
		// reporter keeps the ramp monotonic.
		pct := base + share*float64(highestUsed+1)/float64(next)
		reporter.report(pct, fmt.Sprintf("scanning %v keychain",
			keychain))

		if !anyUsed && next >= revealed {
			break
		}
	}

	// Use discovered beyond the cursor advances it.
	if highestUsed >= 0 {
		last, ok, err := w.store.LastIndex(keychain)
		if err != nil {
			return int(next), err
		}
		if !ok || uint32(highestUsed) > last {
			err := w.store.SetLastIndex(
				keychain, uint32(highestUsed),
			)
			if err != nil {
				return int(next), err
			}
		}
	}
	reporter.report(base+share, fmt.Sprintf("%v keychain scanned",
		keychain))
	return int(next), nil
}

// applyHistory records a scanned script and the transactions touching
// it.  Credits keep their stored spent flag; spends are resolved
// separately.  The caller must hold the wallet lock.
func (w *Wallet) applyHistory(path txstore.ScriptPath, script []byte,
	entries []chain.Entry) error {

	if err := w.store.PutScript(script, path); err != nil {
		return err
	}

	for _, entry := range entries {
		received := time.Now()
		if entry.Block != nil {
			received = entry.Block.Time
		}
		rec, err := txstore.NewTxRecord(entry.Tx, received)
		if err != nil {
			return err
		}
		if entry.Block != nil {
			block := *entry.Block
			rec.Block = &block
		}
		if err := w.store.PutTx(rec); err != nil {
			return err
		}

		for vout, txOut := range entry.Tx.TxOut {
			if !bytes.Equal(txOut.PkScript, script) {
				continue
			}
			op := wire.OutPoint{
				Hash:  rec.Hash,
				Index: uint32(vout),
			}
			_, ok, err := w.store.Credit(op)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			credit := &txstore.Credit{
				OutPoint: op,
				Amount:   btcutil.Amount(txOut.Value),
				Script:   append([]byte(nil), txOut.PkScript...),
				Path:     path,
			}
			if err := w.store.PutCredit(credit); err != nil {
				return err
			}
		}
	}
	return nil
}

// markSpent flags every stored output consumed by a stored
// transaction.  The caller must hold the wallet lock.
func (w *Wallet) markSpent() error {
	recs, err := w.store.Txs()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		tx, err := rec.MsgTx()
		if err != nil {
			return err
		}
		for _, txIn := range tx.TxIn {
			credit, ok, err := w.store.Credit(txIn.PreviousOutPoint)
			if err != nil {
				return err
			}
			if !ok || credit.Spent {
				continue
			}
			err = w.store.MarkSpent(txIn.PreviousOutPoint, true)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
