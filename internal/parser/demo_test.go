package parser

import (
	"testing"

	"github.com/markus-wa/demoinfocs-golang/v4/pkg/demoinfocs/common"

	"github.com/pable/go-cs-matchstats/internal/aggregator"
	"github.com/pable/go-cs-matchstats/internal/model"
)

func TestTeamFromCommon(t *testing.T) {
	cases := map[common.Team]model.Team{
		common.TeamTerrorists:        model.TeamT,
		common.TeamCounterTerrorists: model.TeamCT,
		common.TeamSpectators:        model.TeamSpectators,
		common.TeamUnassigned:        model.TeamUnknown,
	}
	for in, want := range cases {
		if got := teamFromCommon(in); got != want {
			t.Errorf("teamFromCommon(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestWeaponID(t *testing.T) {
	cases := []struct {
		eq      common.EquipmentType
		want    string
		utility bool
	}{
		{common.EqHE, "hegrenade", true},
		{common.EqMolotov, "molotov", true},
		{common.EqIncendiary, "incgrenade", true},
		{common.EqAK47, "ak-47", false},
		{common.EqDeagle, "deserteagle", false},
		{common.EqFlash, "flashbang", false},
	}
	utility := aggregator.NewWeaponSet(aggregator.DefaultUtilityWeapons...)
	for _, c := range cases {
		got := weaponID(c.eq)
		if got != c.want {
			t.Errorf("weaponID(%v) = %q, want %q", c.eq, got, c.want)
		}
		if utility.Contains(got) != c.utility {
			t.Errorf("weaponID(%v) = %q: utility = %v, want %v", c.eq, got, !c.utility, c.utility)
		}
	}
}
