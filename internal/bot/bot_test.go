package bot

import (
	"strings"
	"testing"
	"time"

	"guildwarden/internal/analytics"
	"guildwarden/internal/config"
	"guildwarden/internal/modules/giveaway"
	"guildwarden/internal/modules/invites"
	"guildwarden/internal/modules/splitsteal"
	"guildwarden/internal/modules/staff"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
)

func TestLockBitsPreserveOtherPermissions(t *testing.T) {
	var allow int64 = discordgo.PermissionSendMessages | discordgo.PermissionAddReactions
	var deny int64 = discordgo.PermissionAttachFiles

	allow, deny = lockBits(allow, deny)
	if allow != int64(discordgo.PermissionAddReactions) {
		t.Fatalf("unexpected allow bits %d", allow)
	}
	if deny != int64(discordgo.PermissionAttachFiles|discordgo.PermissionSendMessages) {
		t.Fatalf("unexpected deny bits %d", deny)
	}

	allow, deny, empty := unlockBits(allow, deny)
	if empty {
		t.Fatalf("overwrite should not be empty")
	}
	if deny != int64(discordgo.PermissionAttachFiles) || allow != int64(discordgo.PermissionAddReactions) {
		t.Fatalf("unlock changed unrelated bits: allow=%d deny=%d", allow, deny)
	}
}

func TestUnlockBitsReportsEmptyOverwrite(t *testing.T) {
	_, deny := lockBits(0, 0)
	if _, _, empty := unlockBits(0, deny); !empty {
		t.Fatalf("expected empty overwrite after unlock")
	}
}

func TestRoleOverwriteLookup(t *testing.T) {
	channel := &discordgo.Channel{PermissionOverwrites: []*discordgo.PermissionOverwrite{
		{ID: "u1", Type: discordgo.PermissionOverwriteTypeMember, Deny: 1},
		{ID: "g1", Type: discordgo.PermissionOverwriteTypeRole, Allow: 2, Deny: 4},
	}}
	allow, deny, ok := roleOverwrite(channel, "g1")
	if !ok || allow != 2 || deny != 4 {
		t.Fatalf("unexpected overwrite %d %d %v", allow, deny, ok)
	}
	if _, _, ok := roleOverwrite(channel, "u1"); ok {
		t.Fatalf("member overwrite must not match a role lookup")
	}
}

func TestSplitStealCustomIDRoundTrip(t *testing.T) {
	id := splitStealCustomID(splitsteal.Steal, "abc-123")
	choice, game, ok := parseSplitStealID(id)
	if !ok || choice != splitsteal.Steal || game != "abc-123" {
		t.Fatalf("unexpected parse %q %q %v", choice, game, ok)
	}
	for _, bad := range []string{"splitsteal:", "splitsteal:grab:abc", "splitsteal:split:", "giveaway:enter"} {
		if _, _, ok := parseSplitStealID(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestOptionMapAccessors(t *testing.T) {
	opts := options([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "amount", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(42)},
		{Name: "domain", Type: discordgo.ApplicationCommandOptionString, Value: "  example.com "},
		{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: "123"},
	})
	if amount, ok := opts.Int("amount"); !ok || amount != 42 {
		t.Fatalf("unexpected amount %d", amount)
	}
	if opts.String("domain") != "example.com" {
		t.Fatalf("string option not trimmed: %q", opts.String("domain"))
	}
	if opts.ID("user") != "123" {
		t.Fatalf("unexpected user id %q", opts.ID("user"))
	}
	if opts.String("missing") != "" || opts.ID("missing") != "" {
		t.Fatalf("missing options should be empty")
	}
	if _, ok := opts.Int("domain"); ok {
		t.Fatalf("string option must not read as integer")
	}
}

func TestModalValues(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: giveawayModalID,
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: "duration", Value: "1h"}}},
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: "prize", Value: "Nitro"}}},
		},
	}
	values := modalValues(data)
	if values["duration"] != "1h" || values["prize"] != "Nitro" {
		t.Fatalf("unexpected modal values %v", values)
	}
}

func TestWelcomeEmbed(t *testing.T) {
	user := &discordgo.User{ID: "42", Username: "newbie"}

	embed := welcomeEmbed(user, "", false, 0, 1)
	if !strings.Contains(embed.Description, "Invited by: Unknown") {
		t.Fatalf("expected unknown inviter, got %q", embed.Description)
	}
	if embed.Footer != nil {
		t.Fatalf("footer should be omitted without a member number")
	}

	embed = welcomeEmbed(user, "7", true, 128, 1)
	if !strings.Contains(embed.Description, "<@7>") || !strings.Contains(embed.Description, "fake") {
		t.Fatalf("unexpected description %q", embed.Description)
	}
	if embed.Footer == nil || embed.Footer.Text != "Member #128" {
		t.Fatalf("unexpected footer %+v", embed.Footer)
	}
}

func TestJoinRecordRules(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name     string
		before   invites.Snapshot
		after    invites.Snapshot
		roleName string
		record   bool
		inviter  string
	}{
		{
			name:    "attributed invite",
			before:  invites.Snapshot{"abc": {Uses: 1, InviterID: "inv"}},
			after:   invites.Snapshot{"abc": {Uses: 2, InviterID: "inv"}},
			record:  true,
			inviter: "inv",
		},
		{
			name:   "no inviter and no join role",
			before: invites.Snapshot{"abc": {Uses: 1, InviterID: "inv"}},
			after:  invites.Snapshot{"abc": {Uses: 1, InviterID: "inv"}},
			record: false,
		},
		{
			name:     "join role only",
			before:   invites.Snapshot{},
			after:    invites.Snapshot{"abc": {Uses: 1, InviterID: "inv"}},
			roleName: "Member",
			record:   true,
		},
		{
			name:   "empty first snapshot",
			before: nil,
			after:  invites.Snapshot{"abc": {Uses: 5, InviterID: "inv"}},
			record: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker := invites.NewTracker()
			if tc.before != nil {
				tracker.Set("g1", tc.before)
			}
			previous := tracker.Swap("g1", tc.after)
			_, inviterID, found := invites.Attribute(previous, tc.after)

			rec, ok := joinRecord("g1", "u1", inviterID, found, false, tc.roleName, now)
			if ok != tc.record {
				t.Fatalf("record = %v, want %v", ok, tc.record)
			}
			if !ok {
				return
			}
			if rec.GuildID != "g1" || rec.MemberID != "u1" || rec.InviterID != tc.inviter || rec.RoleName != tc.roleName || !rec.JoinedAt.Equal(now) {
				t.Fatalf("unexpected record %+v", rec)
			}
		})
	}
}

func TestJoinRecordKeepsFakeFlag(t *testing.T) {
	rec, ok := joinRecord("g1", "u1", "inv", true, true, "", time.Now())
	if !ok || !rec.Fake || rec.InviterID != "inv" {
		t.Fatalf("fake join should still link the inviter: %+v %v", rec, ok)
	}
}

func TestPurgeDomain(t *testing.T) {
	cases := map[string]string{
		"":                         "",
		"example.com":              "example.com",
		"EXAMPLE.com":              "example.com",
		"https://example.com/x":    "example.com",
		"bücher.de":                "xn--bcher-kva.de",
		" https://Bücher.de/buch ": "xn--bcher-kva.de",
	}
	for raw, want := range cases {
		got, ok := purgeDomain(raw)
		if !ok || got != want {
			t.Fatalf("purgeDomain(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	for _, raw := range []string{"not a domain", "localhost"} {
		if _, ok := purgeDomain(raw); ok {
			t.Fatalf("purgeDomain(%q) should be rejected", raw)
		}
	}
}

func TestLeaderboardText(t *testing.T) {
	if leaderboardText(nil) != "No invites tracked yet." {
		t.Fatalf("unexpected empty leaderboard text")
	}
	text := leaderboardText([]storage.InviteStats{
		{UserID: "a", Joined: 10, Left: 2, Fake: 1},
		{UserID: "b", Joined: 3},
	})
	lines := strings.Split(text, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", text)
	}
	if !strings.HasPrefix(lines[0], "**1.** <@a>: 8 invites") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
}

func TestGiveawayResultMessage(t *testing.T) {
	g := giveaway.Snapshot{MessageID: "m1", GuildID: "g1", ChannelID: "c1", HostID: "h1", Prize: "Nitro", EndsAt: time.Now()}

	none := giveawayResultMessage(g, nil, "#tickets", 1)
	if none.Content != "" || !strings.Contains(none.Embeds[0].Description, "No valid entries") {
		t.Fatalf("unexpected empty result %+v", none.Embeds[0])
	}

	won := giveawayResultMessage(g, []string{"u1", "u2"}, "<#t1>", 1)
	if won.Content != "<@u1>, <@u2>" {
		t.Fatalf("unexpected winner mentions %q", won.Content)
	}
	if !strings.Contains(won.Embeds[0].Description, "<#t1>") {
		t.Fatalf("ticket hint missing: %q", won.Embeds[0].Description)
	}
	if len(won.AllowedMentions.Users) != 2 {
		t.Fatalf("winners should be pingable")
	}
}

func TestRecentlyEndedNewestFirst(t *testing.T) {
	list := []storage.Giveaway{{MessageID: "1"}, {MessageID: "2"}, {MessageID: "3"}}

	got := recentlyEnded(list, 2)
	if len(got) != 2 || got[0].MessageID != "3" || got[1].MessageID != "2" {
		t.Fatalf("unexpected order %+v", got)
	}
	if len(recentlyEnded(nil, 5)) != 0 {
		t.Fatalf("expected no giveaways")
	}

	field := endedField(got)
	if !strings.Contains(field.Value, "ID `3`") || !strings.Contains(field.Value, "ID `2`") {
		t.Fatalf("unexpected field %q", field.Value)
	}
}

func TestGiveawayComponentsDisableWhenClosed(t *testing.T) {
	row := giveawayComponents(true)[0].(discordgo.ActionsRow)
	button := row.Components[0].(discordgo.Button)
	if !button.Disabled || button.CustomID != giveawayEnterID {
		t.Fatalf("unexpected closed button %+v", button)
	}
}

func TestStaffChangeEmbed(t *testing.T) {
	embed := staffChangeEmbed(staff.Demotion, "t", "a", "Moderator", "Helper", "", 1)
	if !strings.Contains(embed.Title, "demotion") {
		t.Fatalf("unexpected title %q", embed.Title)
	}
	if embed.Fields[2].Value != "Moderator → Helper" || embed.Fields[3].Value != "No reason provided" {
		t.Fatalf("unexpected fields %+v %+v", embed.Fields[2], embed.Fields[3])
	}
}

func TestModerationEmbedIncludesProof(t *testing.T) {
	embed := moderationEmbed(modAction{Title: "muted", TargetID: "t", ActorID: "a", Reason: "Spamming", Duration: 15 * time.Minute, ProofURL: "https://cdn/x.png"})
	if embed.Image == nil || embed.Image.URL != "https://cdn/x.png" {
		t.Fatalf("proof image missing")
	}
	if len(embed.Fields) != 4 || embed.Fields[3].Value != "15m0s" {
		t.Fatalf("unexpected fields %+v", embed.Fields)
	}

	embed = moderationEmbed(modAction{Title: "unbanned", TargetID: "t", ActorID: "a", Reason: "appeal"})
	if embed.Image != nil || len(embed.Fields) != 3 {
		t.Fatalf("unexpected unban embed %+v", embed)
	}
}

func TestProofURLRequiresAttachment(t *testing.T) {
	opts := options([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "proof", Type: discordgo.ApplicationCommandOptionAttachment, Value: "att1"},
	})
	data := discordgo.ApplicationCommandInteractionData{Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
		Attachments: map[string]*discordgo.MessageAttachment{"att1": {ID: "att1", URL: "https://cdn/proof.png"}},
	}}
	url, err := proofURL(data, opts)
	if err != nil || url != "https://cdn/proof.png" {
		t.Fatalf("unexpected proof %q %v", url, err)
	}
	if _, err := proofURL(discordgo.ApplicationCommandInteractionData{}, opts); err == nil {
		t.Fatalf("expected missing attachment error")
	}
}

func TestPingRoles(t *testing.T) {
	roles := config.DefaultConfig().PingRoles
	if _, ok := findPingRole(roles, "giveaway ping"); !ok {
		t.Fatalf("lookup should ignore case")
	}
	if _, ok := findPingRole(roles, "Everyone"); ok {
		t.Fatalf("unexpected ping role match")
	}
	got := pingSuggestions(roles, "g")
	if len(got) != 1 || got[0] != "Giveaway Ping" {
		t.Fatalf("unexpected suggestions %v", got)
	}
	if len(pingSuggestions(roles, "")) != len(roles) {
		t.Fatalf("empty prefix should list every role")
	}
}

func TestCountMembers(t *testing.T) {
	counts := countMembers([]*discordgo.Member{
		{User: &discordgo.User{ID: "1"}},
		{User: &discordgo.User{ID: "2", Bot: true}},
		{User: &discordgo.User{ID: "3"}},
		nil,
	})
	if counts.Total != 3 || counts.Humans != 2 || counts.Bots != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestFormatCounts(t *testing.T) {
	if formatCounts(nil, false) != "None" {
		t.Fatalf("unexpected empty format")
	}
	got := formatCounts([]analytics.Count{{Key: "u1", Value: 3}}, true)
	if got != "<@u1>: 3" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestCommandDefinitionsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for _, cmd := range commandDefinitions() {
		if _, dup := seen[cmd.Name]; dup {
			t.Fatalf("duplicate command %s", cmd.Name)
		}
		seen[cmd.Name] = struct{}{}
		if cmd.Description == "" {
			t.Fatalf("command %s has no description", cmd.Name)
		}
	}
	for _, name := range []string{"gcreate", "invites", "staff_update", "split_steal", "lock", "purge", "mute", "ban", "ping", "membercount", "logs"} {
		if _, ok := seen[name]; !ok {
			t.Fatalf("missing command %s", name)
		}
	}
}

func TestMentionHelpers(t *testing.T) {
	if mentionAll([]string{"a", "b"}) != "<@a>, <@b>" {
		t.Fatalf("unexpected mentions")
	}
	if trimID(" `123` ") != "123" {
		t.Fatalf("unexpected trimmed id")
	}
	if orDefault("", "x") != "x" || orDefault("y", "x") != "y" {
		t.Fatalf("unexpected default handling")
	}
}

func TestRoleNames(t *testing.T) {
	roles := []*discordgo.Role{{ID: "1", Name: "Helper"}, {ID: "2", Name: "Staff Team"}}
	names := roleNames(roles, []string{"2", "9"})
	if len(names) != 1 || names[0] != "Staff Team" {
		t.Fatalf("unexpected names %v", names)
	}
	if roleByName(roles, "Helper").ID != "1" || roleByName(roles, "Owner") != nil {
		t.Fatalf("unexpected role lookup")
	}
}
