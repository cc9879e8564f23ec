package ingest

import (
	"sort"
	"time"
)

// PlannedEvent is one canonical event a run intends to snapshot.
type PlannedEvent struct {
	CanonicalEventID string
	HomeTeam         string
	AwayTeam         string
	CommenceTime     time.Time
}

// PlanUnit is the atomic unit of work: one point-in-time odds capture for
// one canonical event. Its Key is stable across runs so a resumed run can
// skip units the checkpoint already marks complete.
type PlanUnit struct {
	Provider         string
	League           string
	CanonicalEventID string
	HomeTeam         string
	AwayTeam         string
	CommenceTime     time.Time
	SnapshotAt       time.Time
}

// Key identifies the unit independently of run ids or wall-clock time.
func (u PlanUnit) Key() string {
	return u.Provider + "|" + u.League + "|" + u.CanonicalEventID + "|" +
		u.SnapshotAt.UTC().Format(time.RFC3339)
}

// Plan is an ordered list of units. The same inputs always yield the same
// plan in the same order.
type Plan []PlanUnit

// BuildPlan crosses the date's events with the configured snapshot offsets
// and sorts the result deterministically by (snapshot time, event id).
// Offsets are relative to each event's commence time; offsets that land
// after tip-off are dropped so a backfill never requests in-play prices it
// did not ask for.
func BuildPlan(providerName, league string, events []PlannedEvent, offsets []time.Duration) Plan {
	plan := make(Plan, 0, len(events)*len(offsets))
	for _, ev := range events {
		for _, off := range offsets {
			at := ev.CommenceTime.Add(off).UTC()
			if !at.Before(ev.CommenceTime) {
				continue
			}
			plan = append(plan, PlanUnit{
				Provider:         providerName,
				League:           league,
				CanonicalEventID: ev.CanonicalEventID,
				HomeTeam:         ev.HomeTeam,
				AwayTeam:         ev.AwayTeam,
				CommenceTime:     ev.CommenceTime.UTC(),
				SnapshotAt:       at,
			})
		}
	}
	sort.Slice(plan, func(i, j int) bool {
		if !plan[i].SnapshotAt.Equal(plan[j].SnapshotAt) {
			return plan[i].SnapshotAt.Before(plan[j].SnapshotAt)
		}
		return plan[i].CanonicalEventID < plan[j].CanonicalEventID
	})
	return plan
}
