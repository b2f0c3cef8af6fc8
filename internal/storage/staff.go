package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetStaffRank returns the member's stored rank; ok is false when none is stored.
func (s *Store) GetStaffRank(ctx context.Context, guildID, memberID string) (string, bool, error) {
	var rank string
	err := s.queryRow(ctx, `SELECT rank_name FROM staff_ranks WHERE guild_id = ? AND member_id = ?`, guildID, memberID).Scan(&rank)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return rank, true, nil
}

func (s *Store) SetStaffRank(ctx context.Context, guildID, memberID, rank, updatedBy string) error {
	_, err := s.exec(ctx, `
		INSERT INTO staff_ranks (guild_id, member_id, rank_name, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, member_id) DO UPDATE SET
			rank_name = excluded.rank_name,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`, guildID, memberID, rank, updatedBy, time.Now().Unix())
	return err
}

type SplitStealRecord struct {
	ID         string
	GuildID    string
	ChannelID  string
	HostID     string
	PlayerOne  string
	PlayerTwo  string
	ChoiceOne  string
	ChoiceTwo  string
	Prize      string
	Result     string
	WinnerIDs  []string
	ResolvedAt time.Time
}

func (s *Store) AppendSplitSteal(ctx context.Context, rec SplitStealRecord) error {
	_, err := s.exec(ctx, `
		INSERT INTO split_steal_games (
			id, guild_id, channel_id, host_id, player_one, player_two,
			choice_one, choice_two, prize, result, winner_ids, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.GuildID, rec.ChannelID, rec.HostID, rec.PlayerOne, rec.PlayerTwo,
		rec.ChoiceOne, rec.ChoiceTwo, rec.Prize, rec.Result, joinIDs(rec.WinnerIDs), rec.ResolvedAt.Unix())
	return err
}

func (s *Store) ListSplitSteal(ctx context.Context, guildID string, limit int) ([]SplitStealRecord, error) {
	rows, err := s.query(ctx, `
		SELECT id, guild_id, channel_id, host_id, player_one, player_two,
			choice_one, choice_two, prize, result, winner_ids, resolved_at
		FROM split_steal_games
		WHERE guild_id = ?
		ORDER BY resolved_at DESC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SplitStealRecord
	for rows.Next() {
		var rec SplitStealRecord
		var winners string
		var resolved int64
		if err := rows.Scan(&rec.ID, &rec.GuildID, &rec.ChannelID, &rec.HostID, &rec.PlayerOne, &rec.PlayerTwo,
			&rec.ChoiceOne, &rec.ChoiceTwo, &rec.Prize, &rec.Result, &winners, &resolved); err != nil {
			return nil, err
		}
		rec.WinnerIDs = splitIDs(winners)
		rec.ResolvedAt = time.Unix(resolved, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}
