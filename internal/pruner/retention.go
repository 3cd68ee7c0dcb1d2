package pruner

import (
	"sort"
	"time"

	"github.com/gristlabs/grist-core-sub007/internal/blobstore"
)

// Policy configures a document's retention window. A KeepLatest of zero
// or less is treated as 5 and a negative bucket count as 0, so the zero
// Policy keeps the 5 newest snapshots and no time-bucketed tail. The
// per-field defaults below are the values DefaultPolicy returns.
type Policy struct {
	// KeepLatest is the number of newest snapshots kept verbatim,
	// irrespective of age. Default 5.
	KeepLatest int

	// HourlyBuckets is how many trailing one-per-hour buckets are kept
	// beyond KeepLatest. Default 24.
	HourlyBuckets int

	// DailyBuckets is how many trailing one-per-day buckets are kept
	// beyond the hourly window. Default 30.
	DailyBuckets int

	// MonthlyBuckets is how many trailing one-per-month buckets are kept
	// beyond the daily window. Default 12.
	MonthlyBuckets int
}

// DefaultPolicy matches the "keep at least 5 latest" default named in
// spec.md §4.8, with an hour/day/month tail sized for a year of coarse
// history.
func DefaultPolicy() Policy {
	return Policy{
		KeepLatest:     5,
		HourlyBuckets:  24,
		DailyBuckets:   30,
		MonthlyBuckets: 12,
	}
}

func (p Policy) withDefaults() Policy {
	if p.KeepLatest <= 0 {
		p.KeepLatest = 5
	}
	if p.HourlyBuckets < 0 {
		p.HourlyBuckets = 0
	}
	if p.DailyBuckets < 0 {
		p.DailyBuckets = 0
	}
	if p.MonthlyBuckets < 0 {
		p.MonthlyBuckets = 0
	}
	return p
}

// Keep computes the set of snapshot ids from snapshots (assumed already
// sorted newest-first, matching BlobStore.Versions' contract) that must
// survive a prune pass under policy, evaluated relative to now.
//
// Snapshot index 0 is always kept. Beyond KeepLatest, at most one
// snapshot per hour/day/month bucket is kept, newest-wins-the-bucket
// (the first one encountered scanning newest-first becomes that
// bucket's representative, since it is the most recent snapshot that
// still falls within the bucket).
func Keep(snapshots []blobstore.Snapshot, policy Policy, now time.Time) map[string]bool {
	policy = policy.withDefaults()
	keep := make(map[string]bool, len(snapshots))

	if len(snapshots) == 0 {
		return keep
	}
	keep[snapshots[0].SnapshotID] = true

	n := len(snapshots)
	latestCount := policy.KeepLatest
	if latestCount > n {
		latestCount = n
	}
	for i := 0; i < latestCount; i++ {
		keep[snapshots[i].SnapshotID] = true
	}

	hourCutoff := now.Add(-time.Duration(policy.HourlyBuckets) * time.Hour)
	dayCutoff := now.AddDate(0, 0, -policy.DailyBuckets)
	monthCutoff := now.AddDate(0, -policy.MonthlyBuckets, 0)

	seenHour := make(map[string]bool)
	seenDay := make(map[string]bool)
	seenMonth := make(map[string]bool)

	for i := latestCount; i < n; i++ {
		snap := snapshots[i]
		ts := snap.LastModified

		switch {
		case !ts.Before(hourCutoff):
			bucket := ts.Format("2006-01-02T15")
			if !seenHour[bucket] {
				seenHour[bucket] = true
				keep[snap.SnapshotID] = true
			}
		case !ts.Before(dayCutoff):
			bucket := ts.Format("2006-01-02")
			if !seenDay[bucket] {
				seenDay[bucket] = true
				keep[snap.SnapshotID] = true
			}
		case !ts.Before(monthCutoff):
			bucket := ts.Format("2006-01")
			if !seenMonth[bucket] {
				seenMonth[bucket] = true
				keep[snap.SnapshotID] = true
			}
		}
	}

	return keep
}

// sortDesc sorts snapshots newest-first, matching BlobStore.Versions'
// documented ordering. Exposed for callers (and tests) that build a
// snapshot list out of order.
func sortDesc(snapshots []blobstore.Snapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].LastModified.After(snapshots[j].LastModified)
	})
}
