package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type InviteStats struct {
	GuildID string
	UserID  string
	Joined  int
	Left    int
	Fake    int
}

// Net is the invite total shown to users: genuine joins minus departures and fakes.
func (s InviteStats) Net() int {
	return s.Joined - s.Left - s.Fake
}

type MemberRecord struct {
	GuildID   string
	MemberID  string
	InviterID string
	Fake      bool
	RoleName  string
	JoinedAt  time.Time
}

// RecordJoin stores the member record and, when the inviter is known, charges
// one joined or fake invite to them in the same transaction. A member that is
// already recorded is left untouched and false is returned.
func (s *Store) RecordJoin(ctx context.Context, rec MemberRecord) (bool, error) {
	recorded := false
	err := s.withTx(ctx, func(tx *txn) error {
		var existing string
		err := tx.queryRow(ctx, `SELECT member_id FROM invite_members WHERE guild_id = ? AND member_id = ?`, rec.GuildID, rec.MemberID).Scan(&existing)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if _, err := tx.exec(ctx, `
			INSERT INTO invite_members (guild_id, member_id, inviter_id, fake, role_name, joined_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.GuildID, rec.MemberID, rec.InviterID, boolToInt(rec.Fake), rec.RoleName, rec.JoinedAt.Unix()); err != nil {
			return err
		}
		if rec.InviterID != "" {
			joined, fake := 1, 0
			if rec.Fake {
				joined, fake = 0, 1
			}
			if err := bumpInviteStats(ctx, tx, rec.GuildID, rec.InviterID, joined, 0, fake); err != nil {
				return err
			}
		}
		recorded = true
		return nil
	})
	return recorded, err
}

// RecordLeave removes the member record and charges one departure to the
// inviter it names. ok is false when the member was never recorded.
func (s *Store) RecordLeave(ctx context.Context, guildID, memberID string) (MemberRecord, bool, error) {
	rec := MemberRecord{GuildID: guildID, MemberID: memberID}
	found := false
	err := s.withTx(ctx, func(tx *txn) error {
		var fake int
		var joinedAt int64
		err := tx.queryRow(ctx, `
			SELECT inviter_id, fake, role_name, joined_at FROM invite_members
			WHERE guild_id = ? AND member_id = ?
		`, guildID, memberID).Scan(&rec.InviterID, &fake, &rec.RoleName, &joinedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		rec.Fake = fake == 1
		rec.JoinedAt = time.Unix(joinedAt, 0)

		if _, err := tx.exec(ctx, `DELETE FROM invite_members WHERE guild_id = ? AND member_id = ?`, guildID, memberID); err != nil {
			return err
		}
		if rec.InviterID != "" {
			if err := bumpInviteStats(ctx, tx, guildID, rec.InviterID, 0, 1, 0); err != nil {
				return err
			}
		}
		found = true
		return nil
	})
	if err != nil {
		return MemberRecord{}, false, err
	}
	return rec, found, nil
}

func bumpInviteStats(ctx context.Context, tx *txn, guildID, userID string, joined, left, fake int) error {
	_, err := tx.exec(ctx, `
		INSERT INTO invite_stats (guild_id, user_id, joined, left_count, fake)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			joined = invite_stats.joined + excluded.joined,
			left_count = invite_stats.left_count + excluded.left_count,
			fake = invite_stats.fake + excluded.fake
	`, guildID, userID, joined, left, fake)
	return err
}

func (s *Store) GetInviteStats(ctx context.Context, guildID, userID string) (InviteStats, error) {
	stats := InviteStats{GuildID: guildID, UserID: userID}
	err := s.queryRow(ctx, `
		SELECT joined, left_count, fake FROM invite_stats WHERE guild_id = ? AND user_id = ?
	`, guildID, userID).Scan(&stats.Joined, &stats.Left, &stats.Fake)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return InviteStats{}, err
	}
	return stats, nil
}

// InviteLeaderboard ranks inviters by joined minus left.
func (s *Store) InviteLeaderboard(ctx context.Context, guildID string, limit int) ([]InviteStats, error) {
	rows, err := s.query(ctx, `
		SELECT user_id, joined, left_count, fake FROM invite_stats
		WHERE guild_id = ?
		ORDER BY (joined - left_count) DESC, user_id ASC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var board []InviteStats
	for rows.Next() {
		stats := InviteStats{GuildID: guildID}
		if err := rows.Scan(&stats.UserID, &stats.Joined, &stats.Left, &stats.Fake); err != nil {
			return nil, err
		}
		board = append(board, stats)
	}
	return board, rows.Err()
}

// ResetInvites clears invite counters and claims for one user, or for the
// whole guild when userID is empty.
func (s *Store) ResetInvites(ctx context.Context, guildID, userID string) error {
	return s.withTx(ctx, func(tx *txn) error {
		if userID == "" {
			if _, err := tx.exec(ctx, `DELETE FROM invite_stats WHERE guild_id = ?`, guildID); err != nil {
				return err
			}
			_, err := tx.exec(ctx, `DELETE FROM invite_claims WHERE guild_id = ?`, guildID)
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM invite_stats WHERE guild_id = ? AND user_id = ?`, guildID, userID); err != nil {
			return err
		}
		_, err := tx.exec(ctx, `DELETE FROM invite_claims WHERE guild_id = ? AND user_id = ?`, guildID, userID)
		return err
	})
}

// AdjustClaims adds delta to the user's claim count, flooring at zero, and
// returns the new count.
func (s *Store) AdjustClaims(ctx context.Context, guildID, userID string, delta int) (int, error) {
	var next int
	err := s.withTx(ctx, func(tx *txn) error {
		var current int
		err := tx.queryRow(ctx, `SELECT claims FROM invite_claims WHERE guild_id = ? AND user_id = ?`, guildID, userID).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		next = current + delta
		if next < 0 {
			next = 0
		}
		_, err = tx.exec(ctx, `
			INSERT INTO invite_claims (guild_id, user_id, claims) VALUES (?, ?, ?)
			ON CONFLICT(guild_id, user_id) DO UPDATE SET claims = excluded.claims
		`, guildID, userID, next)
		return err
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) GetClaims(ctx context.Context, guildID, userID string) (int, error) {
	var claims int
	err := s.queryRow(ctx, `SELECT claims FROM invite_claims WHERE guild_id = ? AND user_id = ?`, guildID, userID).Scan(&claims)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return claims, nil
}
