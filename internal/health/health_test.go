package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"guildwarden/internal/modules/giveaway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubLister []giveaway.Snapshot

func (s stubLister) Active(guildID string) []giveaway.Snapshot {
	var out []giveaway.Snapshot
	for _, g := range s {
		if guildID == "" || g.GuildID == guildID {
			out = append(out, g)
		}
	}
	return out
}

func TestHealthOK(t *testing.T) {
	router := NewRouter(stubPinger{}, stubLister{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthDegraded(t *testing.T) {
	router := NewRouter(stubPinger{err: errors.New("db down")}, stubLister{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGiveawaysFilter(t *testing.T) {
	router := NewRouter(stubPinger{}, stubLister{
		{MessageID: "m1", GuildID: "g1", Prize: "Nitro"},
		{MessageID: "m2", GuildID: "g2", Prize: "Role"},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/giveaways?guild_id=g1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count     int                 `json:"count"`
		Giveaways []giveaway.Snapshot `json:"giveaways"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "m1", body.Giveaways[0].MessageID)
}
