package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/modules/invites"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) fetchInvites(guildID string) invites.Snapshot {
	list, err := b.session.GuildInvites(guildID)
	if err != nil {
		b.logger.Debug("invite fetch failed", zap.String("guild_id", guildID), zap.Error(err))
		return invites.Snapshot{}
	}
	return invites.FromInvites(list)
}

func (b *Bot) refreshInvites(guildID string) {
	b.invites.Set(guildID, b.fetchInvites(guildID))
}

func (b *Bot) onInviteCreate(_ *discordgo.Session, event *discordgo.InviteCreate) {
	b.refreshInvites(event.GuildID)
}

func (b *Bot) onInviteDelete(_ *discordgo.Session, event *discordgo.InviteDelete) {
	b.refreshInvites(event.GuildID)
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.User == nil {
		return
	}
	ctx := context.Background()
	guildID := event.GuildID
	userID := event.User.ID
	now := time.Now()

	fresh := b.fetchInvites(guildID)
	previous := b.invites.Swap(guildID, fresh)
	code, inviterID, found := invites.Attribute(previous, fresh)
	fake := invites.IsFake(userID, now, time.Duration(b.cfg.Invites.FakeAccountDays)*24*time.Hour)

	settings := b.guildSettings(ctx, guildID)
	roleName := b.assignJoinRole(guildID, userID, settings.JoinRoleID)

	if record, ok := joinRecord(guildID, userID, inviterID, found, fake, roleName, now); ok {
		recorded, err := b.store.RecordJoin(ctx, record)
		if err != nil {
			b.logger.Error("invite join record failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		} else if !recorded {
			b.logger.Debug("member already recorded", zap.String("guild_id", guildID), zap.String("user_id", userID))
		}
	}
	b.logger.Info("member joined",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("invite_code", code),
		zap.String("inviter_id", inviterID),
		zap.Bool("fake", fake),
	)

	memberNumber := 0
	if guild := b.guild(guildID); guild != nil {
		memberNumber = guild.MemberCount
	}
	b.sendLog(ctx, guildID, storage.LogWelcome, welcomeEmbed(event.User, inviterID, fake, memberNumber, b.cfg.EmbedColors.Success))
}

// joinRecord builds the member record for a join. Joins with no attributed
// invite and no assigned join role leave no record.
func joinRecord(guildID, userID, inviterID string, found, fake bool, roleName string, now time.Time) (storage.MemberRecord, bool) {
	if !found && roleName == "" {
		return storage.MemberRecord{}, false
	}
	if !found {
		inviterID = ""
	}
	return storage.MemberRecord{
		GuildID:   guildID,
		MemberID:  userID,
		InviterID: inviterID,
		Fake:      fake,
		RoleName:  roleName,
		JoinedAt:  now,
	}, true
}

// assignJoinRole gives the configured join role and returns its name, or ""
// when no role was assigned.
func (b *Bot) assignJoinRole(guildID, userID, roleID string) string {
	if roleID == "" {
		return ""
	}
	var role *discordgo.Role
	for _, r := range b.guildRoles(guildID) {
		if r != nil && r.ID == roleID {
			role = r
			break
		}
	}
	if role == nil {
		b.logger.Warn("join role missing", zap.String("guild_id", guildID), zap.String("role_id", roleID))
		return ""
	}
	if err := b.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		b.logger.Warn("join role assign failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	return role.Name
}

func welcomeEmbed(user *discordgo.User, inviterID string, fake bool, memberNumber int, color int) *discordgo.MessageEmbed {
	invitedBy := "Unknown"
	if inviterID != "" {
		invitedBy = mention(inviterID)
	}
	var description strings.Builder
	fmt.Fprintf(&description, "Welcome %s!\nInvited by: %s", mention(user.ID), invitedBy)
	if fake {
		description.WriteString("\n⚠️ This account is younger than the minimum age and counts as a fake invite.")
	}
	embed := &discordgo.MessageEmbed{
		Title:       "New member",
		Description: description.String(),
		Color:       color,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("128")},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if memberNumber > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Member #%d", memberNumber)}
	}
	return embed
}

func (b *Bot) onGuildMemberRemove(_ *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.Member == nil || event.User == nil {
		return
	}
	rec, found, err := b.store.RecordLeave(context.Background(), event.GuildID, event.User.ID)
	if err != nil {
		b.logger.Error("invite leave record failed", zap.String("guild_id", event.GuildID), zap.String("user_id", event.User.ID), zap.Error(err))
		return
	}
	if found {
		b.logger.Info("member left", zap.String("guild_id", event.GuildID), zap.String("user_id", event.User.ID), zap.String("inviter_id", rec.InviterID))
	}
}

func (b *Bot) handleInvites(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	userID := opts.ID("user")
	if userID == "" {
		userID = invokerID(interaction)
	}
	stats, err := b.store.GetInviteStats(ctx, interaction.GuildID, userID)
	if err != nil {
		b.logger.Warn("invite stats lookup failed", zap.Error(err))
		b.respondError(session, interaction, "Could not load invite stats.")
		return
	}
	claims, err := b.store.GetClaims(ctx, interaction.GuildID, userID)
	if err != nil {
		b.logger.Warn("claims lookup failed", zap.Error(err))
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Joined", Value: fmt.Sprintf("%d", stats.Joined), Inline: true},
		{Name: "Left", Value: fmt.Sprintf("%d", stats.Left), Inline: true},
		{Name: "Fake", Value: fmt.Sprintf("%d", stats.Fake), Inline: true},
		{Name: "Net", Value: fmt.Sprintf("%d", stats.Net()), Inline: true},
		{Name: "Claims", Value: fmt.Sprintf("%d", claims), Inline: true},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Invite stats", mention(userID), b.cfg.EmbedColors.Action, fields), false)
}

func (b *Bot) handleInviteLeaderboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	board, err := b.store.InviteLeaderboard(ctx, interaction.GuildID, b.cfg.Invites.LeaderboardSize)
	if err != nil {
		b.logger.Warn("invite leaderboard failed", zap.Error(err))
		b.respondError(session, interaction, "Could not load the leaderboard.")
		return
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Invite leaderboard", leaderboardText(board), b.cfg.EmbedColors.Action, nil), false)
}

func leaderboardText(board []storage.InviteStats) string {
	if len(board) == 0 {
		return "No invites tracked yet."
	}
	var sb strings.Builder
	for i, stats := range board {
		fmt.Fprintf(&sb, "**%d.** %s: %d invites (%d left, %d fake)\n", i+1, mention(stats.UserID), stats.Joined-stats.Left, stats.Left, stats.Fake)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) handleInvitesReset(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	if !hasPermission(interaction.Member, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "You need the Manage Server permission.")
		return
	}
	userID := opts.ID("user")
	if err := b.store.ResetInvites(ctx, interaction.GuildID, userID); err != nil {
		b.logger.Error("invite reset failed", zap.Error(err))
		b.respondError(session, interaction, "Could not reset invites.")
		return
	}
	target := "everyone"
	if userID != "" {
		target = mention(userID)
	}
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, invokerID(interaction), audit.EventInviteReset, "target="+target)
	b.respond(session, interaction, "✅ Invites reset for "+target+".", true)
}

func (b *Bot) handleClaimAdjust(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap, sign int) {
	if !hasPermission(interaction.Member, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "You need the Manage Server permission.")
		return
	}
	userID := opts.ID("user")
	number, _ := opts.Int("number")
	if userID == "" || number <= 0 {
		b.respondError(session, interaction, "Provide a member and a positive number.")
		return
	}
	claims, err := b.store.AdjustClaims(ctx, interaction.GuildID, userID, sign*int(number))
	if err != nil {
		b.logger.Error("claims adjust failed", zap.Error(err))
		b.respondError(session, interaction, "Could not update claims.")
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, invokerID(interaction), audit.EventClaimsAdjust,
		fmt.Sprintf("target=%s delta=%d total=%d", userID, sign*int(number), claims))
	b.respond(session, interaction, fmt.Sprintf("%s now has %d claim(s).", mention(userID), claims), true)
}

func (b *Bot) handleClaimsCheck(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	userID := opts.ID("user")
	claims, err := b.store.GetClaims(ctx, interaction.GuildID, userID)
	if err != nil {
		b.logger.Warn("claims lookup failed", zap.Error(err))
		b.respondError(session, interaction, "Could not load claims.")
		return
	}
	b.respond(session, interaction, fmt.Sprintf("%s has %d claim(s).", mention(userID), claims), true)
}

func (b *Bot) handleJoinRole(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	if !hasPermission(interaction.Member, discordgo.PermissionManageRoles) {
		b.respondError(session, interaction, "You need the Manage Roles permission.")
		return
	}
	roleID := opts.ID("role")
	roles := b.guildRoles(interaction.GuildID)
	var role *discordgo.Role
	for _, r := range roles {
		if r != nil && r.ID == roleID {
			role = r
			break
		}
	}
	if role == nil {
		b.respondError(session, interaction, "Role not found.")
		return
	}
	if role.Managed || role.ID == interaction.GuildID {
		b.respondError(session, interaction, "That role cannot be assigned.")
		return
	}
	if role.Position >= b.botTopPosition(interaction.GuildID, roles) {
		b.respondError(session, interaction, "That role is above my highest role.")
		return
	}
	if err := b.store.SetJoinRole(ctx, interaction.GuildID, role.ID); err != nil {
		b.logger.Error("join role update failed", zap.Error(err))
		b.respondError(session, interaction, "Could not save the join role.")
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, invokerID(interaction), audit.EventSettings, "join_role="+role.ID)
	b.respond(session, interaction, "✅ New members will receive <@&"+role.ID+">.", true)
}
