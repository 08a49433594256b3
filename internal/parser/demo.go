package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	demoinfocs "github.com/markus-wa/demoinfocs-golang/v4/pkg/demoinfocs"
	common "github.com/markus-wa/demoinfocs-golang/v4/pkg/demoinfocs/common"
	"github.com/markus-wa/demoinfocs-golang/v4/pkg/demoinfocs/events"

	"github.com/pable/go-cs-matchstats/internal/model"
)

// ParseDemo decodes the CS2 demo at path. Side samples are taken every
// sampleInterval ticks and at each round end.
func ParseDemo(path string, sampleInterval int) (*model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open demo: %w", err)
	}
	defer f.Close()

	if sampleInterval <= 0 {
		sampleInterval = DefaultSideSampleInterval
	}

	p := demoinfocs.NewParser(f)
	defer p.Close()

	snap := &model.Snapshot{}

	var (
		roundNumber    int
		lastSampleTick = -sampleInterval
	)

	sampleSides := func(tick int) {
		for _, pl := range p.GameState().Participants().Playing() {
			if pl == nil || pl.Name == "" {
				continue
			}
			side := teamFromCommon(pl.Team)
			if side != model.TeamT && side != model.TeamCT {
				continue
			}
			snap.Sides = append(snap.Sides, model.SideAssignment{Tick: tick, Player: pl.Name, Side: side})
		}
	}

	p.RegisterEventHandler(func(e events.FrameDone) {
		if p.GameState().IsWarmupPeriod() {
			return
		}
		tick := p.GameState().IngameTick()
		if tick-lastSampleTick < sampleInterval {
			return
		}
		lastSampleTick = tick
		sampleSides(tick)
	})

	p.RegisterEventHandler(func(e events.RoundEnd) {
		if p.GameState().IsWarmupPeriod() {
			return
		}
		roundNumber++
		endTick := p.GameState().IngameTick()
		sampleSides(endTick)

		snap.Rounds = append(snap.Rounds, model.RoundBoundary{
			Number:  roundNumber,
			EndTick: endTick,
			Winner:  teamFromCommon(e.Winner),
		})
	})

	p.RegisterEventHandler(func(e events.Kill) {
		if p.GameState().IsWarmupPeriod() || e.Victim == nil {
			return
		}
		var attacker string
		if e.Killer != nil {
			attacker = e.Killer.Name
		}
		snap.Kills = append(snap.Kills, model.KillEvent{
			Tick:     p.GameState().IngameTick(),
			Attacker: attacker,
			Victim:   e.Victim.Name,
			Headshot: e.IsHeadshot,
		})
	})

	p.RegisterEventHandler(func(e events.PlayerHurt) {
		if p.GameState().IsWarmupPeriod() {
			return
		}
		if e.Attacker == nil || e.Player == nil {
			return
		}
		if e.Attacker.SteamID64 == e.Player.SteamID64 {
			return // ignore self-damage
		}
		var weapName string
		if e.Weapon != nil {
			weapName = weaponID(e.Weapon.Type)
		}
		snap.Damage = append(snap.Damage, model.DamageEvent{
			Tick:     p.GameState().IngameTick(),
			Attacker: e.Attacker.Name,
			Weapon:   weapName,
			Amount:   e.HealthDamage,
		})
	})

	if err := p.ParseToEnd(); err != nil {
		if !errors.Is(err, demoinfocs.ErrUnexpectedEndOfDemo) {
			return nil, fmt.Errorf("parse demo: %w", err)
		}
		// Truncated demos still carry every event up to the cut.
		slog.Warn("Demo ended unexpectedly, using events parsed so far",
			slog.String("path", path), slog.Int("rounds", len(snap.Rounds)))
	}

	snap.MapName = p.Header().MapName
	return snap, nil
}

func teamFromCommon(t common.Team) model.Team {
	switch t {
	case common.TeamTerrorists:
		return model.TeamT
	case common.TeamCounterTerrorists:
		return model.TeamCT
	case common.TeamSpectators:
		return model.TeamSpectators
	default:
		return model.TeamUnknown
	}
}

// weaponID maps an equipment type to the identifier used by event exports,
// so utility classification is the same for both adapters.
func weaponID(t common.EquipmentType) string {
	switch t {
	case common.EqHE:
		return "hegrenade"
	case common.EqMolotov:
		return "molotov"
	case common.EqIncendiary:
		return "incgrenade"
	default:
		return strings.ToLower(strings.ReplaceAll(t.String(), " ", ""))
	}
}
