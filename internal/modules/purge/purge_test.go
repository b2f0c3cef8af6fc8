package purge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	history []*discordgo.Message
	bulk    [][]string
	single  []string
	calls   int
}

func (c *fakeClient) Messages(_ string, limit int, beforeID string) ([]*discordgo.Message, error) {
	c.calls++
	start := 0
	if beforeID != "" {
		for i, msg := range c.history {
			if msg.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(c.history) {
		end = len(c.history)
	}
	if start >= end {
		return nil, nil
	}
	return c.history[start:end], nil
}

func (c *fakeClient) BulkDelete(_ string, ids []string) error {
	c.bulk = append(c.bulk, append([]string(nil), ids...))
	return nil
}

func (c *fakeClient) Delete(_ string, id string) error {
	c.single = append(c.single, id)
	return nil
}

func history(n int, now time.Time, author func(i int) string, content func(i int) string) []*discordgo.Message {
	out := make([]*discordgo.Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &discordgo.Message{
			ID:        fmt.Sprintf("m%03d", i),
			Timestamp: now.Add(-time.Duration(i+1) * time.Minute),
			Author:    &discordgo.User{ID: author(i)},
			Content:   content(i),
		})
	}
	return out
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(1, 100))
	assert.NoError(t, ValidateAmount(100, 100))
	assert.ErrorIs(t, ValidateAmount(0, 100), ErrAmountOutOfRange)
	assert.ErrorIs(t, ValidateAmount(101, 100), ErrAmountOutOfRange)
}

func TestFilterCutoff(t *testing.T) {
	now := time.Now()
	f := Filter{Cutoff: now.Add(-time.Second)}

	assert.True(t, f.Match(&discordgo.Message{Timestamp: now.Add(-time.Minute)}))
	assert.False(t, f.Match(&discordgo.Message{Timestamp: now}))
	assert.False(t, f.Match(nil))
}

func TestCollectUnfiltered(t *testing.T) {
	now := time.Now()
	client := &fakeClient{history: history(30, now, func(int) string { return "u" }, func(int) string { return "hi" })}
	p := New(client, 100)

	msgs, err := p.Collect(context.Background(), "c1", "", 10, Filter{Cutoff: now})
	require.NoError(t, err)
	assert.Len(t, msgs, 10)
	assert.Equal(t, 1, client.calls)
}

func TestCollectFilteredScansPages(t *testing.T) {
	now := time.Now()
	client := &fakeClient{history: history(250, now,
		func(i int) string {
			if i%50 == 0 {
				return "target"
			}
			return "other"
		},
		func(int) string { return "" },
	)}
	p := New(client, 100)

	msgs, err := p.Collect(context.Background(), "c1", "", 10, Filter{Cutoff: now, AuthorID: "target"})
	require.NoError(t, err)
	assert.Len(t, msgs, 5)
	assert.Equal(t, 3, client.calls)
}

func TestCollectDomainFilter(t *testing.T) {
	now := time.Now()
	client := &fakeClient{history: history(10, now,
		func(int) string { return "u" },
		func(i int) string {
			if i < 3 {
				return "free nitro https://scam.example/claim"
			}
			return "hello"
		},
	)}
	p := New(client, 100)

	msgs, err := p.Collect(context.Background(), "c1", "", 50, Filter{Domain: "scam.example"})
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestCollectDomainFilterNormalizesDomain(t *testing.T) {
	now := time.Now()
	client := &fakeClient{history: history(6, now,
		func(int) string { return "u" },
		func(i int) string {
			if i%2 == 0 {
				return "cheap books https://xn--bcher-kva.de/sale"
			}
			return "no links here"
		},
	)}
	p := New(client, 100)

	for _, domain := range []string{"bücher.de", "https://bücher.de"} {
		msgs, err := p.Collect(context.Background(), "c1", "", 50, Filter{Domain: domain})
		require.NoError(t, err)
		assert.Len(t, msgs, 3, domain)
	}
}

func TestDeletePartitionsByAge(t *testing.T) {
	now := time.Now()
	msgs := []*discordgo.Message{
		{ID: "new1", Timestamp: now.Add(-time.Hour)},
		{ID: "new2", Timestamp: now.Add(-2 * time.Hour)},
		{ID: "old1", Timestamp: now.Add(-20 * 24 * time.Hour)},
	}
	client := &fakeClient{}
	p := New(client, 1000)

	deleted, err := p.Delete(context.Background(), "c1", msgs)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, [][]string{{"new1", "new2"}}, client.bulk)
	assert.Equal(t, []string{"old1"}, client.single)
}

func TestDeleteSingleRecentMessage(t *testing.T) {
	now := time.Now()
	client := &fakeClient{}
	p := New(client, 1000)

	deleted, err := p.Delete(context.Background(), "c1", []*discordgo.Message{{ID: "only", Timestamp: now}})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Empty(t, client.bulk)
	assert.Equal(t, []string{"only"}, client.single)
}
