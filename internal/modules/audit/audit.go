package audit

import (
	"context"
	"time"

	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Event names recorded by the command handlers.
const (
	EventMute          = "mute"
	EventUnmute        = "unmute"
	EventBan           = "ban"
	EventUnban         = "unban"
	EventPurge         = "purge"
	EventLock          = "channel_lock"
	EventUnlock        = "channel_unlock"
	EventStaffPromote  = "staff_promote"
	EventStaffDemote   = "staff_demote"
	EventGiveawayEnd   = "giveaway_end"
	EventGiveawayPrune = "giveaway_pruned"
	EventInviteReset   = "invite_reset"
	EventClaimsAdjust  = "claims_adjust"
	EventSettings      = "settings_update"
	EventSplitSteal    = "split_steal"
)

type Sink interface {
	AddAuditLog(ctx context.Context, log storage.AuditLog) error
}

type Logger struct {
	sink   Sink
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(sink Sink, logger *zap.Logger) *Logger {
	return &Logger{sink: sink, logger: logger, now: time.Now}
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: l.now(),
	}
	if l.sink != nil {
		if err := l.sink.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit persist failed", zap.String("event", event), zap.Error(err))
		}
	}
	l.logger.Info("audit", zap.String("level", level), zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("event", event), zap.String("details", details))
}
