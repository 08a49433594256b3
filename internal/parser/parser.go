// Package parser turns a match recording into a model.Snapshot.
//
// Two formats are supported: raw CS2 demos (.dem), decoded with
// demoinfocs-golang, and JSON event exports (.json) produced by external
// demo tooling.
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pable/go-cs-matchstats/internal/model"
)

var ErrUnsupportedFormat = errors.New("unsupported recording format")

// DefaultSideSampleInterval is how often, in ticks, a demo adapter records
// the side of every playing participant.
const DefaultSideSampleInterval = 64

// Supported reports whether path has an extension one of the adapters handles.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dem", ".json":
		return true
	default:
		return false
	}
}

// Open parses the recording at path with the adapter matching its extension.
func Open(path string) (*model.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat recording: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", path)
	}

	var snap *model.Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dem":
		snap, err = ParseDemo(path, DefaultSideSampleInterval)
	case ".json":
		snap, err = ParseJSONFile(path)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}

	snap.Path = path
	snap.ModTime = info.ModTime()
	snap.Size = info.Size()
	return snap, nil
}
