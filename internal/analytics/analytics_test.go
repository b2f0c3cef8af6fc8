package analytics

import (
	"context"
	"testing"
	"time"

	"guildwarden/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource []storage.AuditLog

func (f fakeSource) ListAuditLogs(_ context.Context, guildID string, since time.Time) ([]storage.AuditLog, error) {
	var out []storage.AuditLog
	for _, log := range f {
		if log.GuildID == guildID && !log.CreatedAt.Before(since) {
			out = append(out, log)
		}
	}
	return out, nil
}

func TestReportCounts(t *testing.T) {
	now := time.Now()
	source := fakeSource{
		{GuildID: "g1", UserID: "u1", Level: "INFO", Event: "mute", CreatedAt: now},
		{GuildID: "g1", UserID: "u1", Level: "WARN", Event: "ban", CreatedAt: now},
		{GuildID: "g1", UserID: "u2", Level: "INFO", Event: "mute", CreatedAt: now},
		{GuildID: "g1", UserID: "u3", Level: "INFO", Event: "mute", CreatedAt: now.AddDate(0, 0, -10)},
		{GuildID: "g2", UserID: "u1", Level: "INFO", Event: "mute", CreatedAt: now},
	}

	since, err := PeriodStart("week", now)
	require.NoError(t, err)

	report, err := New(source).Report(context.Background(), "g1", since)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.ByLevel["INFO"])
	assert.Equal(t, 2, report.ByEvent["mute"])
	assert.Equal(t, 2, report.ByUser["u1"])

	top := Top(report.ByEvent, 1)
	require.Len(t, top, 1)
	assert.Equal(t, Count{Key: "mute", Value: 2}, top[0])
}

func TestPeriodStartRejectsUnknown(t *testing.T) {
	_, err := PeriodStart("year", time.Now())
	assert.Error(t, err)
}
