package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type LogKind string

const (
	LogModeration LogKind = "moderation"
	LogWelcome    LogKind = "welcome"
	LogStaff      LogKind = "staff"
	LogTicket     LogKind = "ticket"
)

var logColumns = map[LogKind]string{
	LogModeration: "modlog_channel",
	LogWelcome:    "welcome_channel",
	LogStaff:      "stafflog_channel",
	LogTicket:     "ticket_channel",
}

func ParseLogKind(value string) (LogKind, bool) {
	kind := LogKind(value)
	_, ok := logColumns[kind]
	return kind, ok
}

type GuildSettings struct {
	GuildID         string
	ModLogChannel   string
	WelcomeChannel  string
	StaffLogChannel string
	TicketChannel   string
	JoinRoleID      string
}

func (g GuildSettings) Channel(kind LogKind) string {
	switch kind {
	case LogModeration:
		return g.ModLogChannel
	case LogWelcome:
		return g.WelcomeChannel
	case LogStaff:
		return g.StaffLogChannel
	case LogTicket:
		return g.TicketChannel
	default:
		return ""
	}
}

// GetGuildSettings returns the stored settings, or an empty record when the
// guild has never been configured.
func (s *Store) GetGuildSettings(ctx context.Context, guildID string) (GuildSettings, error) {
	row := s.queryRow(ctx, `
		SELECT modlog_channel, welcome_channel, stafflog_channel, ticket_channel, join_role
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := GuildSettings{GuildID: guildID}
	err := row.Scan(
		&result.ModLogChannel,
		&result.WelcomeChannel,
		&result.StaffLogChannel,
		&result.TicketChannel,
		&result.JoinRoleID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.exec(ctx, `
		INSERT INTO guild_settings (
			guild_id, modlog_channel, welcome_channel, stafflog_channel, ticket_channel, join_role, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			modlog_channel = excluded.modlog_channel,
			welcome_channel = excluded.welcome_channel,
			stafflog_channel = excluded.stafflog_channel,
			ticket_channel = excluded.ticket_channel,
			join_role = excluded.join_role,
			updated_at = excluded.updated_at
	`,
		settings.GuildID,
		settings.ModLogChannel,
		settings.WelcomeChannel,
		settings.StaffLogChannel,
		settings.TicketChannel,
		settings.JoinRoleID,
		time.Now().Unix(),
	)
	return err
}

// SetLogChannel updates a single log channel without touching the others.
func (s *Store) SetLogChannel(ctx context.Context, guildID string, kind LogKind, channelID string) error {
	column, ok := logColumns[kind]
	if !ok {
		return fmt.Errorf("unknown log kind %q", kind)
	}
	_, err := s.exec(ctx, fmt.Sprintf(`
		INSERT INTO guild_settings (guild_id, %[1]s, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET %[1]s = excluded.%[1]s, updated_at = excluded.updated_at
	`, column), guildID, channelID, time.Now().Unix())
	return err
}

func (s *Store) SetJoinRole(ctx context.Context, guildID, roleID string) error {
	_, err := s.exec(ctx, `
		INSERT INTO guild_settings (guild_id, join_role, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET join_role = excluded.join_role, updated_at = excluded.updated_at
	`, guildID, roleID, time.Now().Unix())
	return err
}
