// Package identity derives the match identifier and timestamp from a
// recording's file name.
package identity

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// nameLayout is the timestamp prefix recordings are saved with,
// e.g. 2024_05_01_20_30.dem.
const nameLayout = "2006_01_02_15_04"

const delimiter = "_"

var namePattern = regexp.MustCompile(`^(\d{4})_(\d{2})_(\d{2})_(\d{2})_(\d{2})`)

// Identity identifies one recording.
type Identity struct {
	ID         string
	OccurredAt time.Time
	// FromName is true when OccurredAt was parsed from the file name and
	// false when it fell back to the modification time.
	FromName bool
}

// Derive computes the identity of the recording at path. modTime is used
// when the name carries no timestamp. Name timestamps are interpreted in loc;
// a nil loc means time.Local.
func Derive(path string, modTime time.Time, loc *time.Location) Identity {
	if loc == nil {
		loc = time.Local
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	id := strings.ReplaceAll(stem, delimiter, "")

	if prefix := namePattern.FindString(stem); prefix != "" {
		if ts, err := time.ParseInLocation(nameLayout, prefix, loc); err == nil {
			return Identity{ID: id, OccurredAt: ts, FromName: true}
		}
	}
	return Identity{ID: id, OccurredAt: modTime.In(loc).Truncate(time.Second), FromName: false}
}
