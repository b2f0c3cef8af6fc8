package purge

import (
	"context"
	"errors"
	"time"

	"guildwarden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// Messages older than this cannot be bulk deleted by the platform.
const bulkDeleteMaxAge = 14*24*time.Hour - time.Minute

const (
	pageSize = 100
	maxPages = 5
)

var ErrAmountOutOfRange = errors.New("amount out of range")

type Client interface {
	Messages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
	BulkDelete(channelID string, messageIDs []string) error
	Delete(channelID, messageID string) error
}

// Filter selects which messages a purge removes.
type Filter struct {
	Cutoff   time.Time
	AuthorID string
	Domain   string
}

func (f Filter) Match(msg *discordgo.Message) bool {
	if msg == nil {
		return false
	}
	if !f.Cutoff.IsZero() && !msg.Timestamp.Before(f.Cutoff) {
		return false
	}
	if f.AuthorID != "" && (msg.Author == nil || msg.Author.ID != f.AuthorID) {
		return false
	}
	if f.Domain != "" && !utils.ContainsDomain(msg.Content, f.Domain) {
		return false
	}
	return true
}

func (f Filter) narrowed() bool {
	return f.AuthorID != "" || f.Domain != ""
}

func ValidateAmount(amount, max int) error {
	if amount < 1 || amount > max {
		return ErrAmountOutOfRange
	}
	return nil
}

type Purger struct {
	client  Client
	limiter *rate.Limiter
	now     func() time.Time
}

func New(client Client, deletesPerSecond float64) *Purger {
	if deletesPerSecond <= 0 {
		deletesPerSecond = 1
	}
	return &Purger{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(deletesPerSecond), 1),
		now:     time.Now,
	}
}

// Collect walks the channel history backwards from beforeID and returns up
// to amount messages that match the filter. Unfiltered purges read a single
// page; filtered ones scan a bounded number of pages.
func (p *Purger) Collect(ctx context.Context, channelID, beforeID string, amount int, f Filter) ([]*discordgo.Message, error) {
	var out []*discordgo.Message
	pages := 1
	if f.narrowed() {
		pages = maxPages
	}
	cursor := beforeID
	for page := 0; page < pages && len(out) < amount; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		limit := pageSize
		if !f.narrowed() {
			limit = amount
		}
		batch, err := p.client.Messages(channelID, limit, cursor)
		if err != nil {
			return out, err
		}
		for _, msg := range batch {
			if len(out) >= amount {
				break
			}
			if f.Match(msg) {
				out = append(out, msg)
			}
		}
		if len(batch) < limit {
			break
		}
		cursor = batch[len(batch)-1].ID
	}
	return out, nil
}

// Partition splits message IDs into those young enough for bulk deletion and
// those that must be deleted one by one.
func Partition(msgs []*discordgo.Message, now time.Time) (bulk []string, single []string) {
	for _, msg := range msgs {
		if now.Sub(msg.Timestamp) < bulkDeleteMaxAge {
			bulk = append(bulk, msg.ID)
		} else {
			single = append(single, msg.ID)
		}
	}
	return bulk, single
}

// Delete removes msgs and returns how many were deleted.
func (p *Purger) Delete(ctx context.Context, channelID string, msgs []*discordgo.Message) (int, error) {
	bulk, single := Partition(msgs, p.now())
	if len(bulk) == 1 {
		single = append(bulk, single...)
		bulk = nil
	}

	deleted := 0
	for start := 0; start < len(bulk); start += pageSize {
		end := start + pageSize
		if end > len(bulk) {
			end = len(bulk)
		}
		if err := p.client.BulkDelete(channelID, bulk[start:end]); err != nil {
			return deleted, err
		}
		deleted += end - start
	}
	for _, id := range single {
		if err := p.limiter.Wait(ctx); err != nil {
			return deleted, err
		}
		if err := p.client.Delete(channelID, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
