package invites

import (
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Invite struct {
	Uses      int
	InviterID string
}

// Snapshot maps invite codes to their use counters at one point in time.
type Snapshot map[string]Invite

func FromInvites(list []*discordgo.Invite) Snapshot {
	snap := make(Snapshot, len(list))
	for _, inv := range list {
		if inv == nil || inv.Code == "" {
			continue
		}
		entry := Invite{Uses: inv.Uses}
		if inv.Inviter != nil {
			entry.InviterID = inv.Inviter.ID
		}
		snap[inv.Code] = entry
	}
	return snap
}

// Attribute finds the invite whose use counter grew between the two
// snapshots. Only codes present in both are considered. When several grew,
// the lexicographically smallest code wins; this is a best-effort guess
// under concurrent joins.
func Attribute(before, after Snapshot) (code string, inviterID string, ok bool) {
	var candidates []string
	for c, now := range after {
		prev, seen := before[c]
		if !seen {
			continue
		}
		if now.Uses > prev.Uses {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return "", "", false
	}
	sort.Strings(candidates)
	code = candidates[0]
	return code, after[code].InviterID, true
}

// IsFake reports whether the account behind userID is younger than minAge at now.
func IsFake(userID string, now time.Time, minAge time.Duration) bool {
	created, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return false
	}
	return now.Sub(created) < minAge
}

// Tracker caches the latest invite snapshot of every guild.
type Tracker struct {
	mu     sync.Mutex
	guilds map[string]Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{guilds: make(map[string]Snapshot)}
}

func (t *Tracker) Set(guildID string, snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if snap == nil {
		snap = Snapshot{}
	}
	t.guilds[guildID] = snap
}

// Swap stores next as the guild's snapshot and returns the previous one.
func (t *Tracker) Swap(guildID string, next Snapshot) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.guilds[guildID]
	if next == nil {
		next = Snapshot{}
	}
	t.guilds[guildID] = next
	return prev
}

func (t *Tracker) Forget(guildID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.guilds, guildID)
}
