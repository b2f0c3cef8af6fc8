package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guildwarden/internal/analytics"
	"guildwarden/internal/config"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func findPingRole(roles []config.PingRole, name string) (config.PingRole, bool) {
	for _, role := range roles {
		if strings.EqualFold(role.Name, strings.TrimSpace(name)) {
			return role, true
		}
	}
	return config.PingRole{}, false
}

func pingSuggestions(roles []config.PingRole, prefix string) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if strings.HasPrefix(strings.ToLower(role.Name), prefix) {
			out = append(out, role.Name)
		}
		if len(out) == 25 {
			break
		}
	}
	return out
}

func (b *Bot) handlePing(session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	ping, ok := findPingRole(b.cfg.PingRoles, opts.String("role"))
	if !ok {
		b.respondError(session, interaction, "Unknown ping role.")
		return
	}
	role := roleByName(b.guildRoles(interaction.GuildID), ping.Name)
	if role == nil {
		b.respondError(session, interaction, fmt.Sprintf("The %s role does not exist in this server.", ping.Name))
		return
	}
	if _, err := session.ChannelMessageSendComplex(interaction.ChannelID, &discordgo.MessageSend{
		Content:         fmt.Sprintf("<@&%s> %s", role.ID, ping.Message),
		AllowedMentions: &discordgo.MessageAllowedMentions{Roles: []string{role.ID}},
	}); err != nil {
		b.logger.Warn("ping send failed", zap.String("role", ping.Name), zap.Error(err))
		b.respondError(session, interaction, "Failed to send the ping.")
		return
	}
	b.respond(session, interaction, "✅ Pinged "+ping.Name+".", true)
}

type memberCounts struct {
	Total  int
	Humans int
	Bots   int
}

func countMembers(members []*discordgo.Member) memberCounts {
	var counts memberCounts
	for _, member := range members {
		if member == nil || member.User == nil {
			continue
		}
		counts.Total++
		if member.User.Bot {
			counts.Bots++
		} else {
			counts.Humans++
		}
	}
	return counts
}

// allMembers pages through the guild member list.
func (b *Bot) allMembers(guildID string) ([]*discordgo.Member, error) {
	var out []*discordgo.Member
	after := ""
	for {
		page, err := b.session.GuildMembers(guildID, after, 1000)
		if err != nil {
			return out, err
		}
		out = append(out, page...)
		if len(page) < 1000 {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (b *Bot) handleMemberCount(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	members, err := b.allMembers(interaction.GuildID)
	if err != nil {
		b.logger.Warn("member list failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondError(session, interaction, "Could not count members.")
		return
	}
	counts := countMembers(members)
	fields := []*discordgo.MessageEmbedField{
		{Name: "Total", Value: fmt.Sprintf("%d", counts.Total), Inline: true},
		{Name: "Humans", Value: fmt.Sprintf("%d", counts.Humans), Inline: true},
		{Name: "Bots", Value: fmt.Sprintf("%d", counts.Bots), Inline: true},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Member count", "", b.cfg.EmbedColors.Action, fields), false)
}

func (b *Bot) handleLogs(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	if !hasPermission(interaction.Member, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "You need the Manage Server permission.")
		return
	}
	kind, ok := storage.ParseLogKind(opts.String("type"))
	if !ok {
		b.respondError(session, interaction, "Unknown log type.")
		return
	}
	channelID := opts.ID("channel")
	if channelID == "" {
		b.respondError(session, interaction, "Pick a channel.")
		return
	}
	if err := b.store.SetLogChannel(ctx, interaction.GuildID, kind, channelID); err != nil {
		b.logger.Error("log channel update failed", zap.Error(err))
		b.respondError(session, interaction, "Could not save the log channel.")
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, invokerID(interaction), audit.EventSettings, fmt.Sprintf("%s_log=%s", kind, channelID))
	fields := []*discordgo.MessageEmbedField{
		{Name: "Type", Value: string(kind), Inline: true},
		{Name: "Channel", Value: "<#" + channelID + ">", Inline: true},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Log channel updated", "", b.cfg.EmbedColors.Success, fields), true)
}

func (b *Bot) handleModReport(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	since, err := analytics.PeriodStart(opts.String("period"), time.Now())
	if err != nil {
		b.respondError(session, interaction, "Unknown period.")
		return
	}
	report, err := b.analytics.Report(ctx, interaction.GuildID, since)
	if err != nil {
		b.logger.Warn("mod report failed", zap.Error(err))
		b.respondError(session, interaction, "Could not build the report.")
		return
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Total", Value: fmt.Sprintf("%d", report.Total), Inline: true},
		{Name: "Info", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelInfo]), Inline: true},
		{Name: "Warn", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelWarn]), Inline: true},
		{Name: "Crit", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelCrit]), Inline: true},
		{Name: "Top actions", Value: formatCounts(analytics.Top(report.ByEvent, 5), false)},
		{Name: "Most active", Value: formatCounts(analytics.Top(report.ByUser, 5), true)},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Moderation report", fmt.Sprintf("Since <t:%d:f>", since.Unix()), b.cfg.EmbedColors.Action, fields), true)
}

func formatCounts(counts []analytics.Count, users bool) string {
	if len(counts) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(counts))
	for _, c := range counts {
		key := c.Key
		if users {
			key = mention(key)
		}
		lines = append(lines, fmt.Sprintf("%s: %d", key, c.Value))
	}
	return strings.Join(lines, "\n")
}

// startRetention prunes old audit rows once a day until done is closed.
func (b *Bot) startRetention(done <-chan struct{}) {
	if b.cfg.RetentionDays <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			if err := b.store.CleanupAuditLogs(context.Background(), b.cfg.RetentionDays); err != nil {
				b.logger.Warn("audit cleanup failed", zap.Error(err))
			}
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// splitStealTTL bounds how long an undecided split-or-steal game is kept.
const splitStealTTL = 24 * time.Hour

// startGameSweep drops abandoned split-or-steal games every hour until done is closed.
func (b *Bot) startGameSweep(done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if removed := b.games.Expire(splitStealTTL); removed > 0 {
					b.logger.Info("expired split steal games", zap.Int("count", removed))
				}
			}
		}
	}()
}
