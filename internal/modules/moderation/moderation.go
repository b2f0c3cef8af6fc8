package moderation

import (
	"errors"
	"time"

	"guildwarden/internal/utils"

	"github.com/bwmarrin/discordgo"
)

var (
	ErrUnknownReason     = errors.New("unknown reason")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrDurationTooLong   = errors.New("duration exceeds the maximum timeout")
	ErrSelfTarget        = errors.New("you cannot moderate yourself")
	ErrTargetIsOwner     = errors.New("the server owner cannot be moderated")
	ErrTargetAboveActor  = errors.New("target has a higher role than you")
	ErrTargetAboveBot    = errors.New("target's role is equal to or above the bot's")
	ErrNotTimedOut       = errors.New("member is not muted")
	ErrNotBanned         = errors.New("user is not banned")
	ErrAttachmentMissing = errors.New("proof attachment is required")
)

type Reason struct {
	Key      string
	Label    string
	Duration time.Duration
}

var MuteReasons = []Reason{
	{Key: "spamming", Label: "Spamming", Duration: 15 * time.Minute},
	{Key: "toxicity", Label: "Toxicity", Duration: 30 * time.Minute},
	{Key: "racism", Label: "Racism", Duration: 3 * 24 * time.Hour},
	{Key: "threatening", Label: "Threatening", Duration: 7 * 24 * time.Hour},
	{Key: "advertising", Label: "Advertising", Duration: 24 * time.Hour},
}

var BanReasons = []Reason{
	{Key: "ban_evading", Label: "Ban Evading"},
	{Key: "doxxing", Label: "Doxxing"},
	{Key: "ddos_attack", Label: "DDoS Attack"},
	{Key: "inappropriate_profile", Label: "Inappropriate Profile"},
	{Key: "nsfw", Label: "NSFW"},
}

func lookup(reasons []Reason, key string) (Reason, bool) {
	for _, r := range reasons {
		if r.Key == key {
			return r, true
		}
	}
	return Reason{}, false
}

func MuteReason(key string) (Reason, bool) { return lookup(MuteReasons, key) }

func BanReason(key string) (Reason, bool) { return lookup(BanReasons, key) }

// MuteDuration resolves the timeout length for a mute. A non-empty override
// in compact form ("2h30m") replaces the reason's default.
func MuteDuration(reasonKey, override string, max time.Duration) (time.Duration, error) {
	reason, ok := MuteReason(reasonKey)
	if !ok {
		return 0, ErrUnknownReason
	}
	d := reason.Duration
	if override != "" {
		parsed, ok := utils.ParseDuration(override)
		if !ok {
			return 0, ErrInvalidDuration
		}
		d = parsed
	}
	if max > 0 && d > max {
		return 0, ErrDurationTooLong
	}
	return d, nil
}

type Target struct {
	ActorID      string
	TargetID     string
	OwnerID      string
	ActorTop     int
	TargetTop    int
	BotTop       int
	TargetMember bool
}

// CheckHierarchy applies the role-position guards for acting on a target.
// Guards against role position only apply when the target is a guild member.
func CheckHierarchy(t Target) error {
	if t.ActorID == t.TargetID {
		return ErrSelfTarget
	}
	if t.TargetID == t.OwnerID {
		return ErrTargetIsOwner
	}
	if !t.TargetMember {
		return nil
	}
	if t.ActorID != t.OwnerID && t.TargetTop > t.ActorTop {
		return ErrTargetAboveActor
	}
	if t.TargetTop >= t.BotTop {
		return ErrTargetAboveBot
	}
	return nil
}

// TopPosition returns the highest position among the given role IDs. Members
// without roles sit at zero, the @everyone position.
func TopPosition(guildRoles []*discordgo.Role, roleIDs []string) int {
	positions := make(map[string]int, len(guildRoles))
	for _, role := range guildRoles {
		if role != nil {
			positions[role.ID] = role.Position
		}
	}
	top := 0
	for _, id := range roleIDs {
		if pos, ok := positions[id]; ok && pos > top {
			top = pos
		}
	}
	return top
}

func IsTimedOut(until *time.Time, now time.Time) bool {
	return until != nil && until.After(now)
}
