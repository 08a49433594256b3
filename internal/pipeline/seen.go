package pipeline

import (
	"os"
	"sync"
	"time"

	"github.com/pable/go-cs-matchstats/internal/model"
)

// fileStamp identifies one version of a recording on disk.
type fileStamp struct {
	modTime time.Time
	size    int64
}

func stampOf(path string) (fileStamp, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, false
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, true
}

type seenEntry struct {
	stamp  fileStamp
	result Result
}

// seenFiles remembers recordings that reached a final state so later passes
// over the same folder do not decode them again. Rejected and failed
// recordings are not remembered and are retried.
type seenFiles struct {
	mu      sync.Mutex
	entries map[string]seenEntry
}

func newSeenFiles() *seenFiles {
	return &seenFiles{entries: make(map[string]seenEntry)}
}

// lookup returns the remembered result for path when the file is unchanged.
// The returned stamp is the file's current version, to pass to record.
func (s *seenFiles) lookup(path string) (Result, fileStamp, bool) {
	stamp, ok := stampOf(path)
	if !ok {
		return Result{}, fileStamp{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, found := s.entries[path]
	if !found || !e.stamp.modTime.Equal(stamp.modTime) || e.stamp.size != stamp.size {
		return Result{}, stamp, false
	}
	res := e.result
	res.Unchanged = true
	return res, stamp, true
}

func (s *seenFiles) record(path string, stamp fileStamp, res Result) {
	if stamp.modTime.IsZero() {
		return
	}
	switch res.Status {
	case model.StatusDelivered, model.StatusAlreadyExists, model.StatusSkipped:
	default:
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[path] = seenEntry{stamp: stamp, result: res}
}

// retain forgets every path not in keep.
func (s *seenFiles) retain(keep []string) {
	set := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		set[p] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.entries {
		if _, ok := set[p]; !ok {
			delete(s.entries, p)
		}
	}
}
