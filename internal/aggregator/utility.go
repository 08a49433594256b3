package aggregator

import "strings"

// DefaultUtilityWeapons are the damage-table weapon identifiers for grenades
// and fire.
var DefaultUtilityWeapons = []string{"hegrenade", "molotov", "incgrenade", "inferno"}

// WeaponSet is an immutable set of weapon identifiers, compared case-insensitively.
type WeaponSet struct {
	m map[string]struct{}
}

// NewWeaponSet builds a set from ids. Blank ids are dropped.
func NewWeaponSet(ids ...string) WeaponSet {
	s := WeaponSet{m: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		id = normalizeWeapon(id)
		if id == "" {
			continue
		}
		s.m[id] = struct{}{}
	}
	return s
}

// Contains reports whether weapon is a member. Unknown and empty
// identifiers are never members.
func (s WeaponSet) Contains(weapon string) bool {
	if s.m == nil {
		return false
	}
	_, ok := s.m[normalizeWeapon(weapon)]
	return ok
}

// Len returns the number of identifiers in the set.
func (s WeaponSet) Len() int { return len(s.m) }

// normalizeWeapon lower-cases and drops the "weapon_" entity prefix some
// exporters keep.
func normalizeWeapon(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.TrimPrefix(id, "weapon_")
}
