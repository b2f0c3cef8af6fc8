package invites

import (
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestAttributeSingleIncrease(t *testing.T) {
	before := Snapshot{"A": {Uses: 5, InviterID: "U"}}
	after := Snapshot{"A": {Uses: 6, InviterID: "U"}}

	code, inviter, ok := Attribute(before, after)
	assert.True(t, ok)
	assert.Equal(t, "A", code)
	assert.Equal(t, "U", inviter)
}

func TestAttributeNoIncrease(t *testing.T) {
	before := Snapshot{"A": {Uses: 5, InviterID: "U"}}
	after := Snapshot{"A": {Uses: 5, InviterID: "U"}, "NEW": {Uses: 1, InviterID: "V"}}

	_, inviter, ok := Attribute(before, after)
	assert.False(t, ok)
	assert.Empty(t, inviter)
}

func TestAttributeTieBreak(t *testing.T) {
	before := Snapshot{"zeta": {Uses: 1, InviterID: "Z"}, "alpha": {Uses: 1, InviterID: "A"}}
	after := Snapshot{"zeta": {Uses: 2, InviterID: "Z"}, "alpha": {Uses: 2, InviterID: "A"}}

	for i := 0; i < 20; i++ {
		code, inviter, ok := Attribute(before, after)
		assert.True(t, ok)
		assert.Equal(t, "alpha", code)
		assert.Equal(t, "A", inviter)
	}
}

func TestFromInvites(t *testing.T) {
	snap := FromInvites([]*discordgo.Invite{
		{Code: "abc", Uses: 3, Inviter: &discordgo.User{ID: "u1"}},
		{Code: "vanity", Uses: 9},
		nil,
	})
	assert.Len(t, snap, 2)
	assert.Equal(t, Invite{Uses: 3, InviterID: "u1"}, snap["abc"])
	assert.Empty(t, snap["vanity"].InviterID)
}

func TestIsFake(t *testing.T) {
	now := time.Now()
	young := snowflakeAt(now.Add(-2 * 24 * time.Hour))
	old := snowflakeAt(now.Add(-30 * 24 * time.Hour))

	assert.True(t, IsFake(young, now, 7*24*time.Hour))
	assert.False(t, IsFake(old, now, 7*24*time.Hour))
	assert.False(t, IsFake("not-a-snowflake", now, 7*24*time.Hour))
}

func TestTrackerSwap(t *testing.T) {
	tracker := NewTracker()
	tracker.Set("g1", Snapshot{"A": {Uses: 1}})

	prev := tracker.Swap("g1", nil)
	assert.Equal(t, Snapshot{"A": {Uses: 1}}, prev)
	assert.Equal(t, Snapshot{}, tracker.Swap("g1", Snapshot{"B": {Uses: 2}}))

	tracker.Forget("g1")
	assert.Nil(t, tracker.Swap("g1", nil))
}

func snowflakeAt(ts time.Time) string {
	const discordEpoch = 1420070400000
	ms := ts.UnixMilli() - discordEpoch
	return strconv.FormatInt(ms<<22, 10)
}
