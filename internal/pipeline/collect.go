package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pable/go-cs-matchstats/internal/model"
	"github.com/pable/go-cs-matchstats/internal/parser"
)

// Collect returns root itself when it is a file, otherwise the supported
// recordings under root, sorted. Subdirectories are only walked when
// recursive is set.
func Collect(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if parser.Supported(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(out)
	return out, nil
}

// Summary tallies a batch of results.
type Summary struct {
	Delivered     int
	AlreadyExists int
	Skipped       int
	Rejected      int
	Failed        int
	DryRun        int
}

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if r.DryRun {
			s.DryRun++
			continue
		}
		switch r.Status {
		case model.StatusDelivered:
			s.Delivered++
		case model.StatusAlreadyExists:
			s.AlreadyExists++
		case model.StatusSkipped:
			s.Skipped++
		case model.StatusRejected:
			s.Rejected++
		case model.StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Failures is the number of results a caller should report as failed.
func (s Summary) Failures() int {
	return s.Rejected + s.Failed
}

func (s Summary) Total() int {
	return s.Delivered + s.AlreadyExists + s.Skipped + s.Rejected + s.Failed + s.DryRun
}
