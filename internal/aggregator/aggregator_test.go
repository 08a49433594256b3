package aggregator

import (
	"testing"

	"github.com/pable/go-cs-matchstats/internal/model"
	"github.com/pable/go-cs-matchstats/internal/roster"
)

// makeRounds creates n rounds ending every 1000 ticks (round 1 ends at 1000).
func makeRounds(n int) []model.RoundBoundary {
	rounds := make([]model.RoundBoundary, n)
	for i := range rounds {
		rounds[i] = model.RoundBoundary{Number: i + 1, EndTick: (i + 1) * 1000, Winner: model.TeamCT}
	}
	return rounds
}

// killsInRound returns count kills by attacker spread inside round rn of makeRounds.
func killsInRound(attacker string, rn, count int) []model.KillEvent {
	base := (rn-1)*1000 + 100
	kills := make([]model.KillEvent, count)
	for i := range kills {
		kills[i] = model.KillEvent{Tick: base + i*10, Attacker: attacker, Victim: "enemy"}
	}
	return kills
}

func mustRoster(t *testing.T, names ...string) *roster.Roster {
	t.Helper()
	r, err := roster.New(names)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	return r
}

func findStats(stats []model.PlayerMatchStats, name string) *model.PlayerMatchStats {
	for i := range stats {
		if stats[i].Name == name {
			return &stats[i]
		}
	}
	return nil
}

// ---- Scalar stats ----

func TestAggregate_KillsDeathsHeadshots(t *testing.T) {
	snap := &model.Snapshot{
		Kills: []model.KillEvent{
			{Tick: 100, Attacker: "Nifty", Victim: "enemy1", Headshot: true},
			{Tick: 200, Attacker: "nifty", Victim: "enemy2"},
			{Tick: 300, Attacker: "enemy1", Victim: "NIFTY", Headshot: true},
			{Tick: 400, Attacker: "Dybbis", Victim: "enemy3", Headshot: true},
		},
		Rounds: makeRounds(2),
	}
	stats, warnings, err := Aggregate(snap, mustRoster(t, "nifty", "dybbis"), NewWeaponSet(DefaultUtilityWeapons...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 player rows, got %d", len(stats))
	}

	// Spelling follows the recording, not the configuration.
	nifty := findStats(stats, "Nifty")
	if nifty == nil {
		t.Fatal("Nifty not found")
	}
	if nifty.Kills != 2 || nifty.Deaths != 1 || nifty.HeadshotKills != 1 {
		t.Errorf("Nifty: kills=%d deaths=%d hs=%d, want 2/1/1", nifty.Kills, nifty.Deaths, nifty.HeadshotKills)
	}
	dyb := findStats(stats, "Dybbis")
	if dyb == nil || dyb.Kills != 1 || dyb.HeadshotKills != 1 || dyb.Deaths != 0 {
		t.Errorf("Dybbis stats mismatch: %+v", dyb)
	}
	if nifty.MVPs != 0 || dyb.MVPs != 0 {
		t.Error("MVPs must always be zero")
	}
}

func TestAggregate_UtilityDamage(t *testing.T) {
	snap := &model.Snapshot{
		Kills: []model.KillEvent{{Tick: 10, Attacker: "p1", Victim: "x"}},
		Damage: []model.DamageEvent{
			{Tick: 10, Attacker: "p1", Weapon: "hegrenade", Amount: 50},
			{Tick: 20, Attacker: "p1", Weapon: "ak47", Amount: 40},
			{Tick: 30, Attacker: "x", Weapon: "hegrenade", Amount: 99},
		},
	}
	stats, _, err := Aggregate(snap, mustRoster(t, "p1"), NewWeaponSet("hegrenade"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats[0].UtilityDamage != 50 {
		t.Errorf("utility damage: want 50, got %d", stats[0].UtilityDamage)
	}
	if stats[0].TotalDamage != 90 {
		t.Errorf("total damage: want 90, got %d", stats[0].TotalDamage)
	}
}

func TestAggregate_UnknownWeaponIsNotUtility(t *testing.T) {
	snap := &model.Snapshot{
		Damage: []model.DamageEvent{
			{Attacker: "p1", Weapon: "mystery_launcher", Amount: 30},
			{Attacker: "p1", Weapon: "", Amount: 5},
			{Attacker: "p1", Weapon: "weapon_molotov", Amount: 12},
		},
	}
	stats, _, _ := Aggregate(snap, mustRoster(t, "p1"), NewWeaponSet(DefaultUtilityWeapons...))
	if stats[0].UtilityDamage != 12 {
		t.Errorf("utility damage: want 12, got %d", stats[0].UtilityDamage)
	}
	if stats[0].TotalDamage != 47 {
		t.Errorf("total damage: want 47, got %d", stats[0].TotalDamage)
	}
}

// ---- Partial telemetry ----

func TestAggregate_MissingDamageStillYieldsKills(t *testing.T) {
	snap := &model.Snapshot{
		Kills:  killsInRound("p1", 1, 3),
		Rounds: makeRounds(1),
	}
	snap.MarkMissing(model.CollectionDamage, "event not present")

	stats, warnings, err := Aggregate(snap, mustRoster(t, "p1"), NewWeaponSet(DefaultUtilityWeapons...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats[0].Kills != 3 || stats[0].TripleRounds != 1 {
		t.Errorf("kills=%d triples=%d, want 3/1", stats[0].Kills, stats[0].TripleRounds)
	}
	if stats[0].TotalDamage != 0 || stats[0].UtilityDamage != 0 {
		t.Error("damage must be zero when the damage table is missing")
	}
	if len(warnings) != 1 || warnings[0].Collection != model.CollectionDamage {
		t.Errorf("expected one damage warning, got %v", warnings)
	}
}

func TestAggregate_MissingRoundsZeroesMultiKills(t *testing.T) {
	snap := &model.Snapshot{Kills: killsInRound("p1", 1, 5)}
	snap.MarkMissing(model.CollectionRounds, "event not present")

	stats, warnings, _ := Aggregate(snap, mustRoster(t, "p1"), WeaponSet{})
	if stats[0].Kills != 5 {
		t.Errorf("kills: want 5, got %d", stats[0].Kills)
	}
	if stats[0].AceRounds != 0 {
		t.Errorf("ace rounds must be zero without round boundaries, got %d", stats[0].AceRounds)
	}
	if len(warnings) != 1 || warnings[0].Collection != model.CollectionRounds {
		t.Errorf("expected one round_end warning, got %v", warnings)
	}
}

func TestAggregate_MissingWeaponColumnKeepsDamage(t *testing.T) {
	snap := &model.Snapshot{
		Damage: []model.DamageEvent{
			{Tick: 10, Attacker: "p1", Amount: 50},
			{Tick: 20, Attacker: "p1", Amount: 40},
		},
		Rounds: makeRounds(1),
	}
	snap.MarkMissingColumn(model.CollectionDamage, model.ColumnWeapon)

	stats, warnings, err := Aggregate(snap, mustRoster(t, "p1"), NewWeaponSet(DefaultUtilityWeapons...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats[0].TotalDamage != 90 {
		t.Errorf("dmg: want 90, got %d", stats[0].TotalDamage)
	}
	if stats[0].UtilityDamage != 0 {
		t.Errorf("utility_dmg: want 0, got %d", stats[0].UtilityDamage)
	}
	if len(warnings) != 1 || warnings[0].Column != model.ColumnWeapon {
		t.Fatalf("expected one weapon column warning, got %v", warnings)
	}
	if len(warnings[0].Metrics) != 1 || warnings[0].Metrics[0] != "utility_dmg" {
		t.Errorf("only utility_dmg should be zeroed, got %v", warnings[0].Metrics)
	}
}

func TestAggregate_MissingTickColumnZeroesOnlyMultiKills(t *testing.T) {
	kills := killsInRound("p1", 1, 3)
	for i := range kills {
		kills[i].Tick = 0
	}
	kills = append(kills, model.KillEvent{Attacker: "enemy", Victim: "p1", Headshot: true})
	snap := &model.Snapshot{Kills: kills, Rounds: makeRounds(2)}
	snap.MarkMissingColumn(model.CollectionKills, model.ColumnTick)

	stats, warnings, err := Aggregate(snap, mustRoster(t, "p1"), WeaponSet{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats[0].Kills != 3 || stats[0].Deaths != 1 {
		t.Errorf("kills=%d deaths=%d, want 3/1", stats[0].Kills, stats[0].Deaths)
	}
	if stats[0].TripleRounds != 0 {
		t.Errorf("triple rounds must be zero without kill ticks, got %d", stats[0].TripleRounds)
	}
	if len(warnings) != 1 || warnings[0].Collection != model.CollectionKills || warnings[0].Column != model.ColumnTick {
		t.Errorf("expected one tick column warning, got %v", warnings)
	}
}

func TestAggregate_MissingHeadshotColumn(t *testing.T) {
	snap := &model.Snapshot{Kills: killsInRound("p1", 1, 2), Rounds: makeRounds(1)}
	snap.MarkMissingColumn(model.CollectionKills, model.ColumnHeadshot)

	stats, warnings, _ := Aggregate(snap, mustRoster(t, "p1"), WeaponSet{})
	if stats[0].Kills != 2 || stats[0].HeadshotKills != 0 {
		t.Errorf("kills=%d hs=%d, want 2/0", stats[0].Kills, stats[0].HeadshotKills)
	}
	if len(warnings) != 1 || warnings[0].Metrics[0] != "headshot_kills" {
		t.Errorf("expected one headshot_kills warning, got %v", warnings)
	}
}

func TestAggregate_NilSnapshot(t *testing.T) {
	if _, _, err := Aggregate(nil, mustRoster(t, "p1"), WeaponSet{}); err == nil {
		t.Error("expected error for nil snapshot")
	}
}

// ---- Multi-kill tiers ----

func TestAggregate_MultiKillTiers(t *testing.T) {
	var kills []model.KillEvent
	kills = append(kills, killsInRound("p1", 1, 5)...) // ace
	kills = append(kills, killsInRound("p1", 2, 4)...) // quad
	kills = append(kills, killsInRound("p1", 3, 3)...) // triple
	kills = append(kills, killsInRound("p1", 4, 2)...) // none
	kills = append(kills, killsInRound("p1", 5, 7)...) // ace
	snap := &model.Snapshot{Kills: kills, Rounds: makeRounds(5)}

	stats, _, _ := Aggregate(snap, mustRoster(t, "p1"), WeaponSet{})
	s := stats[0]
	if s.AceRounds != 2 || s.QuadRounds != 1 || s.TripleRounds != 1 {
		t.Errorf("ace=%d quad=%d triple=%d, want 2/1/1", s.AceRounds, s.QuadRounds, s.TripleRounds)
	}
}

func TestClassify_ExclusiveAndExhaustive(t *testing.T) {
	for n := 0; n <= 10; n++ {
		tier := Classify(n)
		var want Tier
		switch {
		case n >= 5:
			want = TierAce
		case n == 4:
			want = TierQuad
		case n == 3:
			want = TierTriple
		default:
			want = TierNone
		}
		if tier != want {
			t.Errorf("Classify(%d) = %v, want %v", n, tier, want)
		}
	}
}

func TestDetectMultiKills_KillsAfterLastBoundary(t *testing.T) {
	idx := NewRoundIndex(makeRounds(2))
	// Three kills after the final boundary belong to round 2.
	mk := DetectMultiKills(idx, []int{2500, 2600, 2700})
	if mk.Triple != 1 {
		t.Errorf("expected one triple, got %+v", mk)
	}
}

// ---- Round index ----

func TestRoundOf_Boundaries(t *testing.T) {
	idx := NewRoundIndex(makeRounds(3))
	cases := []struct{ tick, want int }{
		{0, 1},
		{1000, 1}, // end tick is inclusive
		{1001, 2},
		{2999, 3},
		{3000, 3},
		{999999, 3}, // beyond the final boundary
	}
	for _, c := range cases {
		got, ok := idx.RoundOf(c.tick)
		if !ok || got != c.want {
			t.Errorf("RoundOf(%d) = %d (ok=%v), want %d", c.tick, got, ok, c.want)
		}
	}
}

func TestRoundOf_Monotonic(t *testing.T) {
	idx := NewRoundIndex([]model.RoundBoundary{
		{Number: 2, EndTick: 2400},
		{Number: 1, EndTick: 900},
		{Number: 3, EndTick: 5100},
	})
	prev := 0
	for tick := 0; tick < 6000; tick += 7 {
		rn, _ := idx.RoundOf(tick)
		if rn < prev {
			t.Fatalf("RoundOf not monotonic at tick %d: %d < %d", tick, rn, prev)
		}
		prev = rn
	}
	if prev != 3 {
		t.Errorf("expected last round 3 past the final boundary, got %d", prev)
	}
}

func TestRoundOf_Empty(t *testing.T) {
	idx := NewRoundIndex(nil)
	if _, ok := idx.RoundOf(10); ok {
		t.Error("empty index must report ok=false")
	}
}
