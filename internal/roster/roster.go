// Package roster holds the fixed set of tracked players and the gate that
// decides whether a recording involves all of them.
package roster

import (
	"errors"
	"strings"
)

var ErrEmptyRoster = errors.New("roster must contain at least one player")

// Roster is an immutable, case-insensitive set of tracked player names.
// Configured order and spelling are preserved for reporting.
type Roster struct {
	names []string
	index map[string]int // folded name -> position in names
}

// New builds a Roster from names. Blank entries are ignored and duplicates
// (ignoring case) collapse to the first spelling.
func New(names []string) (*Roster, error) {
	r := &Roster{index: make(map[string]int)}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := fold(n)
		if _, ok := r.index[key]; ok {
			continue
		}
		r.index[key] = len(r.names)
		r.names = append(r.names, n)
	}
	if len(r.names) == 0 {
		return nil, ErrEmptyRoster
	}
	return r, nil
}

// Names returns the tracked names in configured order.
func (r *Roster) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Contains reports whether name is tracked, ignoring case.
func (r *Roster) Contains(name string) bool {
	_, ok := r.index[fold(name)]
	return ok
}

// Canonical returns the configured spelling of name if it is tracked.
func (r *Roster) Canonical(name string) (string, bool) {
	i, ok := r.index[fold(name)]
	if !ok {
		return "", false
	}
	return r.names[i], true
}

// Check is the result of gating a recording on roster presence.
type Check struct {
	Pass    bool
	Missing []string // configured spelling, configured order
}

// Check compares the observed player names against the roster.
func (r *Roster) Check(observed []string) Check {
	present := make(map[string]struct{}, len(observed))
	for _, n := range observed {
		present[fold(n)] = struct{}{}
	}
	var missing []string
	for _, n := range r.names {
		if _, ok := present[fold(n)]; !ok {
			missing = append(missing, n)
		}
	}
	return Check{Pass: len(missing) == 0, Missing: missing}
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
