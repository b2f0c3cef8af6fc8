package giveaway

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"guildwarden/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScheduler struct {
	mu      sync.Mutex
	next    int
	jobs    map[int]func()
	stopped bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[int]func())}
}

func (s *fakeScheduler) Every(_ time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.jobs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.jobs, id)
	}
}

func (s *fakeScheduler) Stop(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeScheduler) runAll() {
	s.mu.Lock()
	jobs := make([]func(), 0, len(s.jobs))
	for _, fn := range s.jobs {
		jobs = append(jobs, fn)
	}
	s.mu.Unlock()
	for _, fn := range jobs {
		fn()
	}
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

type fakePublisher struct {
	mu        sync.Mutex
	next      int
	updates   int
	results   map[string][]string
	announced int
	missing   map[string]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{results: make(map[string][]string), missing: make(map[string]bool)}
}

func (p *fakePublisher) PostGiveaway(context.Context, Snapshot) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("msg%d", p.next), nil
}

func (p *fakePublisher) UpdateGiveaway(context.Context, Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates++
	return nil
}

func (p *fakePublisher) AnnounceResult(_ context.Context, g Snapshot, winners []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.announced++
	p.results[g.MessageID] = winners
	return nil
}

func (p *fakePublisher) MessageExists(_ context.Context, _, messageID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.missing[messageID], nil
}

type fixture struct {
	store *storage.Store
	pub   *fakePublisher
	sched *fakeScheduler
	mgr   *Manager
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	f := &fixture{
		store: store,
		pub:   newFakePublisher(),
		sched: newFakeScheduler(),
		now:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.mgr = NewManager(Config{MaxWinners: 5, MaxDuration: 7 * 24 * time.Hour}, store, f.pub, f.sched, nil, zap.NewNop())
	f.mgr.WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) create(t *testing.T, duration, winners string) Snapshot {
	t.Helper()
	snap, err := f.mgr.Create(context.Background(), CreateRequest{
		GuildID:   "g1",
		ChannelID: "c1",
		HostID:    "host",
		Duration:  duration,
		Winners:   winners,
		Prize:     "Nitro",
	})
	require.NoError(t, err)
	return snap
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		req  CreateRequest
		want error
	}{
		{CreateRequest{Duration: "1 h", Winners: "1", Prize: "x"}, ErrInvalidDuration},
		{CreateRequest{Duration: "0s", Winners: "1", Prize: "x"}, ErrInvalidDuration},
		{CreateRequest{Duration: "8d", Winners: "1", Prize: "x"}, ErrDurationTooLong},
		{CreateRequest{Duration: "1h", Winners: "two", Prize: "x"}, ErrInvalidWinners},
		{CreateRequest{Duration: "1h", Winners: "0", Prize: "x"}, ErrInvalidWinners},
		{CreateRequest{Duration: "1h", Winners: "6", Prize: "x"}, ErrInvalidWinners},
		{CreateRequest{Duration: "1h", Winners: "1", Prize: "  "}, ErrEmptyPrize},
	}
	for _, tc := range cases {
		_, err := f.mgr.Create(ctx, tc.req)
		assert.ErrorIs(t, err, tc.want)
	}
	assert.Empty(t, f.mgr.Active(""))
	assert.Equal(t, 0, f.sched.count())
}

func TestCreatePersistsAndSchedules(t *testing.T) {
	f := newFixture(t)
	snap := f.create(t, "1h", "2")

	assert.Equal(t, "msg1", snap.MessageID)
	assert.Equal(t, f.now.Add(time.Hour), snap.EndsAt)
	assert.Equal(t, 1, f.sched.count())

	stored, err := f.store.GetGiveaway(context.Background(), snap.MessageID)
	require.NoError(t, err)
	assert.Equal(t, storage.GiveawayRunning, stored.Status)
	assert.Equal(t, 2, stored.Winners)
}

func TestEnterRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := f.create(t, "1h", "1")

	count, err := f.mgr.Enter(ctx, snap.MessageID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = f.mgr.Enter(ctx, snap.MessageID, "u1")
	assert.ErrorIs(t, err, ErrAlreadyEntered)

	got, ok := f.mgr.Get(snap.MessageID)
	require.True(t, ok)
	assert.Equal(t, 1, got.Entries)

	entries, err := f.store.ListGiveawayEntries(ctx, snap.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, entries)
}

func TestEnterAfterEndTimeRejected(t *testing.T) {
	f := newFixture(t)
	snap := f.create(t, "30s", "1")

	f.now = f.now.Add(31 * time.Second)
	_, err := f.mgr.Enter(context.Background(), snap.MessageID, "late")
	assert.ErrorIs(t, err, ErrEnded)

	_, err = f.mgr.Enter(context.Background(), "unknown", "u1")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestTickRefreshesThenEnds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := f.create(t, "1m", "3")

	_, err := f.mgr.Enter(ctx, snap.MessageID, "a")
	require.NoError(t, err)
	_, err = f.mgr.Enter(ctx, snap.MessageID, "b")
	require.NoError(t, err)
	updates := f.pub.updates

	f.sched.runAll()
	assert.Equal(t, updates+1, f.pub.updates)
	assert.Equal(t, 0, f.pub.announced)

	f.now = f.now.Add(time.Minute)
	f.sched.runAll()

	assert.Equal(t, 1, f.pub.announced)
	assert.Len(t, f.pub.results[snap.MessageID], 2)
	assert.ElementsMatch(t, []string{"a", "b"}, f.pub.results[snap.MessageID])
	assert.Equal(t, 0, f.sched.count())
	assert.Empty(t, f.mgr.Active(""))

	stored, err := f.store.GetGiveaway(ctx, snap.MessageID)
	require.NoError(t, err)
	assert.Equal(t, storage.GiveawayEnded, stored.Status)
	assert.ElementsMatch(t, []string{"a", "b"}, stored.WinnerIDs)

	_, err = f.mgr.Enter(ctx, snap.MessageID, "c")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestEndWithoutEntries(t *testing.T) {
	f := newFixture(t)
	snap := f.create(t, "1h", "3")

	result, err := f.mgr.End(context.Background(), snap.MessageID)
	require.NoError(t, err)
	assert.Empty(t, result.Winners)
	assert.Equal(t, 1, f.pub.announced)

	_, err = f.mgr.End(context.Background(), snap.MessageID)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestReroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := f.create(t, "1h", "1")

	_, err := f.mgr.Reroll(ctx, snap.MessageID, 1)
	assert.ErrorIs(t, err, ErrStillRunning)

	for _, user := range []string{"a", "b", "c"} {
		_, err := f.mgr.Enter(ctx, snap.MessageID, user)
		require.NoError(t, err)
	}
	_, err = f.mgr.End(ctx, snap.MessageID)
	require.NoError(t, err)

	result, err := f.mgr.Reroll(ctx, snap.MessageID, 2)
	require.NoError(t, err)
	assert.Len(t, result.Winners, 2)
	assert.Subset(t, []string{"a", "b", "c"}, result.Winners)
}

func TestRestorePrunesOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	kept := f.create(t, "1h", "1")
	orphan := f.create(t, "1h", "1")
	_, err := f.mgr.Enter(ctx, kept.MessageID, "u1")
	require.NoError(t, err)

	f.mgr.Stop(ctx)
	assert.True(t, f.sched.stopped)
	assert.Equal(t, 0, f.sched.count())
	assert.Empty(t, f.mgr.Active(""))

	f.pub.missing[orphan.MessageID] = true
	restarted := NewManager(Config{MaxWinners: 5}, f.store, f.pub, newFakeScheduler(), nil, zap.NewNop())
	restarted.WithClock(func() time.Time { return f.now })

	restored, pruned, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.Equal(t, 1, pruned)

	got, ok := restarted.Get(kept.MessageID)
	require.True(t, ok)
	assert.Equal(t, 1, got.Entries)

	_, err = restarted.Enter(ctx, kept.MessageID, "u1")
	assert.ErrorIs(t, err, ErrAlreadyEntered)

	_, err = f.store.GetGiveaway(ctx, orphan.MessageID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDrawWinners(t *testing.T) {
	entries := []string{"a", "b"}
	winners := DrawWinners(entries, 3)
	assert.Len(t, winners, 2)
	assert.ElementsMatch(t, entries, winners)

	assert.Empty(t, DrawWinners(nil, 3))

	many := []string{"a", "b", "c", "d", "e", "f"}
	for i := 0; i < 50; i++ {
		got := DrawWinners(many, 3)
		require.Len(t, got, 3)
		seen := make(map[string]bool)
		for _, w := range got {
			assert.False(t, seen[w], "duplicate winner %s", w)
			seen[w] = true
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, many)
}
