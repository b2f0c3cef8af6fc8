package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"guildwarden/internal/storage"
)

type Source interface {
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	source Source
}

func New(source Source) *Service {
	return &Service{source: source}
}

type Report struct {
	Since   time.Time
	Total   int
	ByLevel map[string]int
	ByEvent map[string]int
	ByUser  map[string]int
}

// PeriodStart maps a report period name ("day", "week", "month") to its start time.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	switch strings.ToLower(period) {
	case "", "day":
		return now.Add(-24 * time.Hour), nil
	case "week":
		return now.AddDate(0, 0, -7), nil
	case "month":
		return now.AddDate(0, -1, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown period %q", period)
	}
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.source.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Since:   since,
		ByLevel: make(map[string]int),
		ByEvent: make(map[string]int),
		ByUser:  make(map[string]int),
	}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
		if log.UserID != "" {
			report.ByUser[log.UserID]++
		}
	}
	return report, nil
}

type Count struct {
	Key   string
	Value int
}

// Top returns the n largest entries of counts, ties broken by key.
func Top(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for key, value := range counts {
		out = append(out, Count{Key: key, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
