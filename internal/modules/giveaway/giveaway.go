package giveaway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/storage"
	"guildwarden/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidDuration = errors.New("invalid duration")
	ErrDurationTooLong = errors.New("duration too long")
	ErrInvalidWinners  = errors.New("invalid winner count")
	ErrEmptyPrize      = errors.New("prize is required")
	ErrNotRunning      = errors.New("giveaway is not running")
	ErrEnded           = errors.New("giveaway has ended")
	ErrAlreadyEntered  = errors.New("already entered")
	ErrStillRunning    = errors.New("giveaway is still running")
)

type Store interface {
	SaveGiveaway(ctx context.Context, g storage.Giveaway) error
	GetGiveaway(ctx context.Context, messageID string) (storage.Giveaway, error)
	ListGiveaways(ctx context.Context, status string) ([]storage.Giveaway, error)
	FinishGiveaway(ctx context.Context, messageID string, winners []string) error
	DeleteGiveaway(ctx context.Context, messageID string) error
	AddGiveawayEntry(ctx context.Context, messageID, userID string, at time.Time) (bool, error)
	ListGiveawayEntries(ctx context.Context, messageID string) ([]string, error)
}

// Publisher renders giveaways on the chat platform.
type Publisher interface {
	PostGiveaway(ctx context.Context, g Snapshot) (messageID string, err error)
	UpdateGiveaway(ctx context.Context, g Snapshot) error
	AnnounceResult(ctx context.Context, g Snapshot, winners []string) error
	MessageExists(ctx context.Context, channelID, messageID string) (bool, error)
}

type Config struct {
	RefreshInterval time.Duration
	MaxWinners      int
	MaxDuration     time.Duration
}

// Snapshot is a read-only view of a giveaway.
type Snapshot struct {
	MessageID string    `json:"message_id"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	HostID    string    `json:"host_id"`
	Prize     string    `json:"prize"`
	Winners   int       `json:"winners"`
	Entries   int       `json:"entries"`
	EndsAt    time.Time `json:"ends_at"`
}

type CreateRequest struct {
	GuildID   string
	ChannelID string
	HostID    string
	Duration  string
	Winners   string
	Prize     string
}

type Result struct {
	Giveaway Snapshot
	Winners  []string
}

type running struct {
	g       storage.Giveaway
	entries map[string]struct{}
	order   []string
	cancel  func()
}

func (r *running) snapshot() Snapshot {
	return Snapshot{
		MessageID: r.g.MessageID,
		GuildID:   r.g.GuildID,
		ChannelID: r.g.ChannelID,
		HostID:    r.g.HostID,
		Prize:     r.g.Prize,
		Winners:   r.g.Winners,
		Entries:   len(r.order),
		EndsAt:    r.g.EndsAt,
	}
}

// Manager owns every running giveaway of the process.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	store  Store
	pub    Publisher
	sched  Scheduler
	audit  *audit.Logger
	logger *zap.Logger
	now    func() time.Time
	active map[string]*running
}

func NewManager(cfg Config, store Store, pub Publisher, sched Scheduler, auditLogger *audit.Logger, logger *zap.Logger) *Manager {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Second
	}
	if cfg.MaxWinners <= 0 {
		cfg.MaxWinners = 20
	}
	return &Manager{
		cfg:    cfg,
		store:  store,
		pub:    pub,
		sched:  sched,
		audit:  auditLogger,
		logger: logger,
		now:    time.Now,
		active: make(map[string]*running),
	}
}

func (m *Manager) WithClock(now func() time.Time) {
	m.now = now
}

// Validate checks the raw form values of a giveaway creation request.
func (m *Manager) Validate(req CreateRequest) (time.Duration, int, error) {
	duration, ok := utils.ParseDuration(req.Duration)
	if !ok {
		return 0, 0, ErrInvalidDuration
	}
	if m.cfg.MaxDuration > 0 && duration > m.cfg.MaxDuration {
		return 0, 0, ErrDurationTooLong
	}
	winners, err := strconv.Atoi(strings.TrimSpace(req.Winners))
	if err != nil || winners < 1 || winners > m.cfg.MaxWinners {
		return 0, 0, ErrInvalidWinners
	}
	if strings.TrimSpace(req.Prize) == "" {
		return 0, 0, ErrEmptyPrize
	}
	return duration, winners, nil
}

func (m *Manager) MaxWinners() int {
	return m.cfg.MaxWinners
}

func (m *Manager) Create(ctx context.Context, req CreateRequest) (Snapshot, error) {
	duration, winners, err := m.Validate(req)
	if err != nil {
		return Snapshot{}, err
	}

	now := m.now()
	g := storage.Giveaway{
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
		HostID:    req.HostID,
		Prize:     strings.TrimSpace(req.Prize),
		Winners:   winners,
		EndsAt:    now.Add(duration),
		Status:    storage.GiveawayRunning,
		CreatedAt: now,
	}
	r := &running{g: g, entries: make(map[string]struct{})}

	messageID, err := m.pub.PostGiveaway(ctx, r.snapshot())
	if err != nil {
		return Snapshot{}, fmt.Errorf("post giveaway: %w", err)
	}
	r.g.MessageID = messageID

	if err := m.store.SaveGiveaway(ctx, r.g); err != nil {
		m.logger.Error("giveaway persist failed", zap.String("message_id", messageID), zap.Error(err))
	}

	m.register(r)
	m.logger.Info("giveaway created",
		zap.String("guild_id", g.GuildID),
		zap.String("message_id", messageID),
		zap.Int("winners", winners),
		zap.Time("ends_at", r.g.EndsAt),
	)
	return r.snapshot(), nil
}

func (m *Manager) register(r *running) {
	id := r.g.MessageID
	m.mu.Lock()
	m.active[id] = r
	m.mu.Unlock()

	cancel := m.sched.Every(m.cfg.RefreshInterval, func() {
		m.tick(context.Background(), id)
	})

	m.mu.Lock()
	if current, ok := m.active[id]; ok && current == r {
		r.cancel = cancel
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	// Ended before the job handle was stored.
	cancel()
}

// Enter adds userID to the giveaway and returns the new entry count.
func (m *Manager) Enter(ctx context.Context, messageID, userID string) (int, error) {
	m.mu.Lock()
	r, ok := m.active[messageID]
	if !ok {
		m.mu.Unlock()
		return 0, ErrNotRunning
	}
	if !m.now().Before(r.g.EndsAt) {
		m.mu.Unlock()
		return 0, ErrEnded
	}
	if _, exists := r.entries[userID]; exists {
		m.mu.Unlock()
		return 0, ErrAlreadyEntered
	}
	r.entries[userID] = struct{}{}
	r.order = append(r.order, userID)
	snap := r.snapshot()
	m.mu.Unlock()

	if _, err := m.store.AddGiveawayEntry(ctx, messageID, userID, m.now()); err != nil {
		m.mu.Lock()
		delete(r.entries, userID)
		r.order = removeID(r.order, userID)
		m.mu.Unlock()
		return 0, fmt.Errorf("persist entry: %w", err)
	}

	if err := m.pub.UpdateGiveaway(ctx, snap); err != nil {
		m.logger.Warn("giveaway refresh failed", zap.String("message_id", messageID), zap.Error(err))
	}
	return snap.Entries, nil
}

func (m *Manager) tick(ctx context.Context, messageID string) {
	m.mu.Lock()
	r, ok := m.active[messageID]
	if !ok {
		m.mu.Unlock()
		return
	}
	expired := !m.now().Before(r.g.EndsAt)
	snap := r.snapshot()
	m.mu.Unlock()

	if expired {
		if _, err := m.End(ctx, messageID); err != nil && !errors.Is(err, ErrNotRunning) {
			m.logger.Error("giveaway end failed", zap.String("message_id", messageID), zap.Error(err))
		}
		return
	}
	if err := m.pub.UpdateGiveaway(ctx, snap); err != nil {
		m.logger.Warn("giveaway refresh failed", zap.String("message_id", messageID), zap.Error(err))
	}
}

// End closes a running giveaway, draws its winners and announces them.
func (m *Manager) End(ctx context.Context, messageID string) (Result, error) {
	m.mu.Lock()
	r, ok := m.active[messageID]
	if !ok {
		m.mu.Unlock()
		return Result{}, ErrNotRunning
	}
	delete(m.active, messageID)
	cancel := r.cancel
	entries := append([]string(nil), r.order...)
	snap := r.snapshot()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	winners := DrawWinners(entries, snap.Winners)
	if err := m.store.FinishGiveaway(ctx, messageID, winners); err != nil {
		m.logger.Error("giveaway finish persist failed", zap.String("message_id", messageID), zap.Error(err))
	}
	if err := m.pub.AnnounceResult(ctx, snap, winners); err != nil {
		m.logger.Warn("giveaway announce failed", zap.String("message_id", messageID), zap.Error(err))
	}
	if m.audit != nil {
		m.audit.Log(ctx, audit.LevelInfo, snap.GuildID, snap.HostID, audit.EventGiveawayEnd,
			fmt.Sprintf("prize=%s entries=%d winners=%s", snap.Prize, len(entries), strings.Join(winners, ",")))
	}
	return Result{Giveaway: snap, Winners: winners}, nil
}

// Reroll draws a fresh winner set for an ended giveaway from its stored entries.
func (m *Manager) Reroll(ctx context.Context, messageID string, count int) (Result, error) {
	g, err := m.store.GetGiveaway(ctx, messageID)
	if err != nil {
		return Result{}, err
	}
	if g.Status != storage.GiveawayEnded {
		return Result{}, ErrStillRunning
	}
	if count <= 0 {
		count = g.Winners
	}
	if count > m.cfg.MaxWinners {
		return Result{}, ErrInvalidWinners
	}
	entries, err := m.store.ListGiveawayEntries(ctx, messageID)
	if err != nil {
		return Result{}, err
	}

	r := &running{g: g, order: entries}
	snap := r.snapshot()
	winners := DrawWinners(entries, count)
	if err := m.store.FinishGiveaway(ctx, messageID, winners); err != nil {
		return Result{}, err
	}
	if err := m.pub.AnnounceResult(ctx, snap, winners); err != nil {
		m.logger.Warn("giveaway reroll announce failed", zap.String("message_id", messageID), zap.Error(err))
	}
	return Result{Giveaway: snap, Winners: winners}, nil
}

// Restore reloads running giveaways after a restart. Giveaways whose
// announcement message no longer exists are deleted.
func (m *Manager) Restore(ctx context.Context) (restored int, pruned int, err error) {
	pending, err := m.store.ListGiveaways(ctx, storage.GiveawayRunning)
	if err != nil {
		return 0, 0, err
	}

	exists := make([]bool, len(pending))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i, g := range pending {
		i, g := i, g
		group.Go(func() error {
			ok, err := m.pub.MessageExists(groupCtx, g.ChannelID, g.MessageID)
			if err != nil {
				m.logger.Warn("giveaway message check failed", zap.String("message_id", g.MessageID), zap.Error(err))
				ok = true
			}
			exists[i] = ok
			return nil
		})
	}
	_ = group.Wait()

	for i, g := range pending {
		if !exists[i] {
			if err := m.store.DeleteGiveaway(ctx, g.MessageID); err != nil {
				m.logger.Warn("orphaned giveaway delete failed", zap.String("message_id", g.MessageID), zap.Error(err))
				continue
			}
			if m.audit != nil {
				m.audit.Log(ctx, audit.LevelInfo, g.GuildID, g.HostID, audit.EventGiveawayPrune, "message_id="+g.MessageID)
			}
			pruned++
			continue
		}

		entries, err := m.store.ListGiveawayEntries(ctx, g.MessageID)
		if err != nil {
			m.logger.Warn("giveaway entries load failed", zap.String("message_id", g.MessageID), zap.Error(err))
			continue
		}
		r := &running{g: g, entries: make(map[string]struct{}, len(entries)), order: entries}
		for _, id := range entries {
			r.entries[id] = struct{}{}
		}
		m.register(r)
		restored++
	}
	m.logger.Info("giveaways restored", zap.Int("restored", restored), zap.Int("pruned", pruned))
	return restored, pruned, nil
}

// Active lists running giveaways, optionally filtered by guild, soonest first.
func (m *Manager) Active(guildID string) []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.active))
	for _, r := range m.active {
		if guildID != "" && r.g.GuildID != guildID {
			continue
		}
		out = append(out, r.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndsAt.Equal(out[j].EndsAt) {
			return out[i].EndsAt.Before(out[j].EndsAt)
		}
		return out[i].MessageID < out[j].MessageID
	})
	return out
}

func (m *Manager) Get(messageID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.active[messageID]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// Stop cancels every refresh job. Running giveaways stay persisted and are
// picked up again by Restore.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	for _, r := range m.active {
		if r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
	}
	m.active = make(map[string]*running)
	m.mu.Unlock()
	m.sched.Stop(ctx)
}

// DrawWinners picks min(len(entries), count) distinct entries uniformly at random.
func DrawWinners(entries []string, count int) []string {
	if count > len(entries) {
		count = len(entries)
	}
	if count <= 0 {
		return nil
	}
	pool := append([]string(nil), entries...)
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:count]
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
