// Package loop drives the periodic tick of SPEC_FULL.md §4.5: list the
// remote, resolve the watched topic commits plus the target reference,
// fetch them, and run Merger.CheckAndMerge per topic.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/lawliet89/fusionner/internal/gitrepo"
	"github.com/lawliet89/fusionner/internal/merger"
	"github.com/lawliet89/fusionner/internal/watch"
)

// DefaultInterval is used when a configuration omits interval (SPEC_FULL.md
// §6), matching original_source/src/main.rs's DEFAULT_INTERVAL.
const DefaultInterval = 30 * time.Second

// Sentinel errors returned by Tick, dispatched with errors.Is at call sites
// (SPEC_FULL.md §7). ErrEmptyAdvertisement covers both "remote advertised no
// references" and "none of them resolved to an OID", since both mean the
// same thing to a caller: there was nothing to merge this tick.
var (
	ErrEmptyAdvertisement = errors.New("loop: remote advertised no usable references")
	ErrNoWatchMatch       = errors.New("loop: no matching watched reference found")
	ErrUnknownTargetRef   = errors.New("loop: unable to resolve target reference")
)

// Driver owns the remote handle, Merger, and watch set for one repository
// and runs ticks until its context is cancelled.
type Driver struct {
	Remote    *gitrepo.Remote
	Merger    *merger.Merger
	WatchRefs *watch.References
	TargetRef string
	Interval  time.Duration
}

// Run executes Tick once per Interval until ctx is cancelled. A per-tick
// error is logged and does not stop the loop, mirroring the original's
// `warn!("Error: {:?}", e)` inside its infinite `loop {}`.
func (d *Driver) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	for {
		if err := d.Tick(ctx); err != nil {
			logrus.Warnf("Error during tick: %v", err)
		}

		logrus.Infof("Sleeping for %s", interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Tick performs one iteration of SPEC_FULL.md §4.5: ls-remote, resolve the
// watch set, fetch, resolve oids, fetch notes, and check-and-merge every
// watched topic against the target reference.
func (d *Driver) Tick(ctx context.Context) error {
	logrus.Info("Retrieving remote heads")
	remoteLs, err := d.Remote.List(ctx)
	if err != nil {
		return err
	}
	if len(remoteLs) == 0 {
		return ErrEmptyAdvertisement
	}
	logrus.Infof("%d remote heads found", len(remoteLs))
	logrus.Debugf("remote heads: %+v", remoteLs)

	watchHeads := watch.Resolve(d.WatchRefs, remoteLs)
	if len(watchHeads) == 0 {
		return ErrNoWatchMatch
	}
	logrus.Infof("%d remote references matched watch references", len(watchHeads))
	logrus.Debugf("watch heads: %v", watchHeads)

	logrus.Info("Fetching matched remotes and target reference")
	fetchRefs := append(append([]string{}, watchHeads...), d.TargetRef)
	if err := d.Remote.Fetch(ctx, fetchRefs); err != nil {
		return err
	}

	logrus.Info("Resolving references and oid")
	byName := make(map[string]gitrepo.RemoteHead, len(remoteLs))
	for _, h := range remoteLs {
		byName[h.Name()] = h
	}

	oids := make(map[string]plumbing.Hash, len(watchHeads))
	for _, ref := range watchHeads {
		head, ok := byName[ref]
		if !ok {
			logrus.Warnf("No OID found for reference %s", ref)
			continue
		}
		oids[ref] = head.Oid()
	}
	if len(oids) == 0 {
		return ErrEmptyAdvertisement
	}
	logrus.Debugf("resolved oids: %v", oids)

	logrus.Info("Resolving reference and OID for target reference")
	targetHead, ok := byName[d.TargetRef]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTargetRef, d.TargetRef)
	}
	targetOid := targetHead.Oid()

	logrus.Info("Fetching notes for commits")
	if err := d.Merger.FetchNotes(ctx); err != nil {
		return err
	}

	for ref, oid := range oids {
		mg, _, err := d.Merger.CheckAndMerge(ctx, oid, targetOid, ref, d.TargetRef, true)
		if err != nil {
			logrus.Errorf("Error processing %s (%s): %v", ref, oid, err)
			continue
		}
		logrus.Debugf("Merge reference %s up to date at %s", mg.MergeReference, mg.MergeOid)
	}

	d.Remote.Disconnect()
	return nil
}
