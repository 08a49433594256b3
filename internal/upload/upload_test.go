package upload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pable/go-cs-matchstats/internal/model"
)

// memSink is an in-memory Sink with a uniqueness constraint on match id.
type memSink struct {
	mu        sync.Mutex
	matches   map[string]Payload
	rows      int
	existsErr error
	insertErr error
	// hideExisting makes Exists report false so Insert sees the conflict.
	hideExisting bool
	inserts      int
}

func newMemSink() *memSink { return &memSink{matches: make(map[string]Payload)} }

func (s *memSink) Name() string { return "memory" }

func (s *memSink) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	if s.hideExisting {
		return false, nil
	}
	_, ok := s.matches[id]
	return ok, nil
}

func (s *memSink) Insert(_ context.Context, p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.matches[p.MatchID]; ok {
		return ErrConflict
	}
	s.matches[p.MatchID] = p
	s.rows += 1 + len(p.PlayerStats)
	return nil
}

func testPayload(id string) Payload {
	stats := []model.PlayerMatchStats{
		{Name: "nifty", Kills: 20, Deaths: 10, TotalDamage: 2100, UtilityDamage: 150, AceRounds: 1},
		{Name: "Dybbis", Kills: 12, Deaths: 15, HeadshotKills: 6},
	}
	outcome := model.MatchOutcome{
		MapName:    "de_mirage",
		OccurredAt: time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC),
		RosterWon:  true,
	}
	return NewPayload(id, stats, outcome)
}

func TestNewPayload(t *testing.T) {
	p := testPayload("202405012030")
	require.Equal(t, "202405012030", p.MatchID)
	require.Equal(t, MapStats{MapName: "de_mirage", DateTime: "2024-05-01 20:30:00", Won: 1}, p.MapStats)
	require.Len(t, p.PlayerStats, 2)
	require.Equal(t, PlayerStats{
		Name: "nifty", KillsTotal: 20, DeathsTotal: 10, Dmg: 2100, UtilityDmg: 150, AceRoundsTotal: 1,
	}, p.PlayerStats[0])
}

func TestDeliver_Idempotent(t *testing.T) {
	sink := newMemSink()
	c := NewCoordinator(sink)
	p := testPayload("m1")

	first := c.Deliver(t.Context(), p)
	require.Equal(t, model.StatusDelivered, first.Status)
	rows := sink.rows

	second := c.Deliver(t.Context(), p)
	require.Equal(t, model.StatusAlreadyExists, second.Status)
	require.NoError(t, second.Err)
	require.Equal(t, rows, sink.rows)
	require.Equal(t, 1, sink.inserts, "pre-check must avoid the second insert")
}

func TestDeliver_ConflictFromInsert(t *testing.T) {
	sink := newMemSink()
	c := NewCoordinator(sink)
	require.Equal(t, model.StatusDelivered, c.Deliver(t.Context(), testPayload("m1")).Status)

	sink.hideExisting = true
	res := c.Deliver(t.Context(), testPayload("m1"))
	require.Equal(t, model.StatusAlreadyExists, res.Status)
	require.Equal(t, 2, sink.inserts)
}

func TestDeliver_ExistsErrorFallsThroughToInsert(t *testing.T) {
	sink := newMemSink()
	sink.existsErr = errors.New("endpoint flaky")
	c := NewCoordinator(sink)

	res := c.Deliver(t.Context(), testPayload("m1"))
	require.Equal(t, model.StatusDelivered, res.Status)
}

func TestDeliver_InsertFailureIsRejected(t *testing.T) {
	sink := newMemSink()
	sink.insertErr = errors.New("connection refused")
	c := NewCoordinator(sink)

	res := c.Deliver(t.Context(), testPayload("m1"))
	require.Equal(t, model.StatusRejected, res.Status)
	require.Contains(t, res.Reason, "connection refused")
	require.Error(t, res.Err)
}

func TestDeliver_InvalidPayload(t *testing.T) {
	sink := newMemSink()
	c := NewCoordinator(sink)

	res := c.Deliver(t.Context(), Payload{MatchID: "m1"})
	require.Equal(t, model.StatusRejected, res.Status)
	require.ErrorIs(t, res.Err, ErrInvalidPayload)
	require.Zero(t, sink.inserts)

	res = c.Deliver(t.Context(), testPayload(""))
	require.ErrorIs(t, res.Err, ErrInvalidPayload)
}

func TestDeliver_ConcurrentSameMatch(t *testing.T) {
	sink := newMemSink()
	c := NewCoordinator(sink)

	const workers = 16
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Deliver(context.Background(), testPayload("race"))
		}(i)
	}
	wg.Wait()

	delivered := 0
	for _, r := range results {
		switch r.Status {
		case model.StatusDelivered:
			delivered++
		case model.StatusAlreadyExists:
		default:
			t.Fatalf("unexpected status %s", r)
		}
	}
	require.Equal(t, 1, delivered)
	require.Equal(t, 3, sink.rows)
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("redis down")
}

func TestDeliver_LockFailureIsRejected(t *testing.T) {
	sink := newMemSink()
	c := NewCoordinator(sink, WithLocker(failingLocker{}))

	res := c.Deliver(t.Context(), testPayload("m1"))
	require.Equal(t, model.StatusRejected, res.Status)
	require.Zero(t, sink.inserts)
}

func TestKeyedLocker(t *testing.T) {
	l := NewKeyedLocker()

	unlockA, err := l.Lock(t.Context(), "a")
	require.NoError(t, err)

	// A different key is independent.
	unlockB, err := l.Lock(t.Context(), "b")
	require.NoError(t, err)
	unlockB()

	// The same key blocks until released.
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan struct{})
	go func() {
		unlock, err := l.Lock(context.Background(), "a")
		if err == nil {
			unlock()
		}
		close(acquired)
	}()
	unlockA()
	unlockA() // second call is a no-op

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
	require.Zero(t, l.size())
}
