package ingest

import (
	"reflect"
	"testing"
	"time"
)

func planEvents() []PlannedEvent {
	return []PlannedEvent{
		{
			CanonicalEventID: "evt_bbbb",
			HomeTeam:         "Denver Nuggets",
			AwayTeam:         "Phoenix Suns",
			CommenceTime:     time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC),
		},
		{
			CanonicalEventID: "evt_aaaa",
			HomeTeam:         "Los Angeles Lakers",
			AwayTeam:         "Boston Celtics",
			CommenceTime:     time.Date(2024, 3, 2, 0, 30, 0, 0, time.UTC),
		},
	}
}

func planOffsets() []time.Duration {
	return []time.Duration{-24 * time.Hour, -1 * time.Hour, -5 * time.Minute}
}

func TestBuildPlanDeterministic(t *testing.T) {
	a := BuildPlan("oddsapi", "basketball_nba", planEvents(), planOffsets())
	b := BuildPlan("oddsapi", "basketball_nba", planEvents(), planOffsets())
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same inputs produced different plans")
	}

	// Input order must not matter.
	reversed := planEvents()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	c := BuildPlan("oddsapi", "basketball_nba", reversed, planOffsets())
	if !reflect.DeepEqual(a, c) {
		t.Errorf("event order leaked into the plan")
	}
}

func TestBuildPlanOrderingAndSize(t *testing.T) {
	plan := BuildPlan("oddsapi", "basketball_nba", planEvents(), planOffsets())
	if len(plan) != 6 {
		t.Fatalf("plan has %d units, want 2 events x 3 offsets", len(plan))
	}
	for i := 1; i < len(plan); i++ {
		prev, cur := plan[i-1], plan[i]
		if cur.SnapshotAt.Before(prev.SnapshotAt) {
			t.Fatalf("plan not sorted by snapshot time at %d", i)
		}
		if cur.SnapshotAt.Equal(prev.SnapshotAt) && cur.CanonicalEventID < prev.CanonicalEventID {
			t.Fatalf("plan tiebreak not sorted by event id at %d", i)
		}
	}
}

func TestBuildPlanDropsPostCommenceOffsets(t *testing.T) {
	offsets := []time.Duration{-1 * time.Hour, 0, 30 * time.Minute}
	plan := BuildPlan("oddsapi", "basketball_nba", planEvents(), offsets)
	if len(plan) != 2 {
		t.Fatalf("plan has %d units, want only the pre-tip offsets", len(plan))
	}
	for _, u := range plan {
		if !u.SnapshotAt.Before(u.CommenceTime) {
			t.Errorf("unit %s snapshots at or after tip-off", u.Key())
		}
	}
}

func TestPlanUnitKeyStable(t *testing.T) {
	plan := BuildPlan("oddsapi", "basketball_nba", planEvents(), planOffsets())
	unit := plan[0]
	want := "oddsapi|basketball_nba|" + unit.CanonicalEventID + "|" + unit.SnapshotAt.Format(time.RFC3339)
	if unit.Key() != want {
		t.Errorf("Key() = %q, want %q", unit.Key(), want)
	}

	// Keys must survive zone changes on the inputs.
	shifted := unit
	shifted.SnapshotAt = shifted.SnapshotAt.In(time.FixedZone("EST", -5*3600))
	if shifted.Key() != unit.Key() {
		t.Errorf("zone change altered the unit key")
	}
}
