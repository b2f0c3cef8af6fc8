package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	GiveawayRunning = "running"
	GiveawayEnded   = "ended"
)

type Giveaway struct {
	MessageID string
	GuildID   string
	ChannelID string
	HostID    string
	Prize     string
	Winners   int
	EndsAt    time.Time
	Status    string
	WinnerIDs []string
	CreatedAt time.Time
}

const giveawayColumns = `message_id, guild_id, channel_id, host_id, prize, winners, ends_at, status, winner_ids, created_at`

func (s *Store) SaveGiveaway(ctx context.Context, g Giveaway) error {
	_, err := s.exec(ctx, `
		INSERT INTO giveaways (`+giveawayColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			prize = excluded.prize,
			winners = excluded.winners,
			ends_at = excluded.ends_at,
			status = excluded.status,
			winner_ids = excluded.winner_ids
	`, g.MessageID, g.GuildID, g.ChannelID, g.HostID, g.Prize, g.Winners, g.EndsAt.Unix(), g.Status, joinIDs(g.WinnerIDs), g.CreatedAt.Unix())
	return err
}

func (s *Store) GetGiveaway(ctx context.Context, messageID string) (Giveaway, error) {
	row := s.queryRow(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE message_id = ?`, messageID)
	g, err := scanGiveaway(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Giveaway{}, ErrNotFound
	}
	return g, err
}

// ListGiveaways returns giveaways with the given status across all guilds.
func (s *Store) ListGiveaways(ctx context.Context, status string) ([]Giveaway, error) {
	rows, err := s.query(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE status = ? ORDER BY ends_at ASC`, status)
	if err != nil {
		return nil, err
	}
	return collectGiveaways(rows)
}

func (s *Store) ListGuildGiveaways(ctx context.Context, guildID, status string) ([]Giveaway, error) {
	rows, err := s.query(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE guild_id = ? AND status = ? ORDER BY ends_at ASC`, guildID, status)
	if err != nil {
		return nil, err
	}
	return collectGiveaways(rows)
}

func (s *Store) FinishGiveaway(ctx context.Context, messageID string, winners []string) error {
	_, err := s.exec(ctx, `UPDATE giveaways SET status = ?, winner_ids = ? WHERE message_id = ?`, GiveawayEnded, joinIDs(winners), messageID)
	return err
}

func (s *Store) DeleteGiveaway(ctx context.Context, messageID string) error {
	return s.withTx(ctx, func(tx *txn) error {
		if _, err := tx.exec(ctx, `DELETE FROM giveaway_entries WHERE message_id = ?`, messageID); err != nil {
			return err
		}
		_, err := tx.exec(ctx, `DELETE FROM giveaways WHERE message_id = ?`, messageID)
		return err
	})
}

// AddGiveawayEntry reports whether the user was newly entered.
func (s *Store) AddGiveawayEntry(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	res, err := s.exec(ctx, `
		INSERT INTO giveaway_entries (message_id, user_id, entered_at) VALUES (?, ?, ?)
		ON CONFLICT(message_id, user_id) DO NOTHING
	`, messageID, userID, at.Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListGiveawayEntries(ctx context.Context, messageID string) ([]string, error) {
	rows, err := s.query(ctx, `SELECT user_id FROM giveaway_entries WHERE message_id = ? ORDER BY entered_at ASC, user_id ASC`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGiveaway(row rowScanner) (Giveaway, error) {
	var g Giveaway
	var endsAt, createdAt int64
	var winners string
	if err := row.Scan(&g.MessageID, &g.GuildID, &g.ChannelID, &g.HostID, &g.Prize, &g.Winners, &endsAt, &g.Status, &winners, &createdAt); err != nil {
		return Giveaway{}, err
	}
	g.EndsAt = time.Unix(endsAt, 0)
	g.CreatedAt = time.Unix(createdAt, 0)
	g.WinnerIDs = splitIDs(winners)
	return g, nil
}

func collectGiveaways(rows *sql.Rows) ([]Giveaway, error) {
	defer rows.Close()
	var out []Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
