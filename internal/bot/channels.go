package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/modules/purge"
	"guildwarden/internal/storage"
	"guildwarden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// lockBits denies SendMessages while keeping every other bit of the overwrite.
func lockBits(allow, deny int64) (int64, int64) {
	return allow &^ discordgo.PermissionSendMessages, deny | discordgo.PermissionSendMessages
}

// unlockBits drops the SendMessages deny. empty reports that nothing is left.
func unlockBits(allow, deny int64) (int64, int64, bool) {
	deny &^= discordgo.PermissionSendMessages
	return allow, deny, allow == 0 && deny == 0
}

func roleOverwrite(channel *discordgo.Channel, roleID string) (int64, int64, bool) {
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type == discordgo.PermissionOverwriteTypeRole && overwrite.ID == roleID {
			return overwrite.Allow, overwrite.Deny, true
		}
	}
	return 0, 0, false
}

func (b *Bot) channel(channelID string) (*discordgo.Channel, error) {
	if channel, err := b.session.State.Channel(channelID); err == nil && channel != nil {
		return channel, nil
	}
	return b.session.Channel(channelID)
}

func (b *Bot) handleLock(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction.Member, discordgo.PermissionManageChannels) {
		b.respondError(session, interaction, "You need the Manage Channels permission.")
		return
	}
	guildID := interaction.GuildID
	staffRole := roleByName(b.guildRoles(guildID), b.cfg.Staff.StaffTeamRole)
	if staffRole == nil {
		b.respondError(session, interaction, fmt.Sprintf("The %s role does not exist.", b.cfg.Staff.StaffTeamRole))
		return
	}
	channel, err := b.channel(interaction.ChannelID)
	if err != nil {
		b.logger.Warn("channel lookup failed", zap.String("channel_id", interaction.ChannelID), zap.Error(err))
		b.respondError(session, interaction, "Could not read this channel.")
		return
	}

	allow, deny, _ := roleOverwrite(channel, guildID)
	allow, deny = lockBits(allow, deny)
	if err := session.ChannelPermissionSet(channel.ID, guildID, discordgo.PermissionOverwriteTypeRole, allow, deny); err != nil {
		b.logger.Error("channel lock failed", zap.String("channel_id", channel.ID), zap.Error(err))
		b.respondError(session, interaction, "Failed to lock the channel.")
		return
	}
	staffAllow, staffDeny, _ := roleOverwrite(channel, staffRole.ID)
	staffAllow |= discordgo.PermissionSendMessages
	staffDeny &^= discordgo.PermissionSendMessages
	if err := session.ChannelPermissionSet(channel.ID, staffRole.ID, discordgo.PermissionOverwriteTypeRole, staffAllow, staffDeny); err != nil {
		b.logger.Warn("staff overwrite failed", zap.String("channel_id", channel.ID), zap.Error(err))
	}

	b.audit.Log(ctx, audit.LevelInfo, guildID, invokerID(interaction), audit.EventLock, "channel="+channel.ID)
	embed := b.commandEmbed("🔒 Channel locked", fmt.Sprintf("%s has been locked by %s.", "<#"+channel.ID+">", mention(invokerID(interaction))), b.cfg.EmbedColors.Warning, nil)
	b.sendLog(ctx, guildID, storage.LogModeration, embed)
	b.respondEmbed(session, interaction, embed, false)
}

func (b *Bot) handleUnlock(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction.Member, discordgo.PermissionManageChannels) {
		b.respondError(session, interaction, "You need the Manage Channels permission.")
		return
	}
	guildID := interaction.GuildID
	channel, err := b.channel(interaction.ChannelID)
	if err != nil {
		b.logger.Warn("channel lookup failed", zap.String("channel_id", interaction.ChannelID), zap.Error(err))
		b.respondError(session, interaction, "Could not read this channel.")
		return
	}

	allow, deny, found := roleOverwrite(channel, guildID)
	if found {
		nextAllow, nextDeny, empty := unlockBits(allow, deny)
		if empty {
			err = session.ChannelPermissionDelete(channel.ID, guildID)
		} else {
			err = session.ChannelPermissionSet(channel.ID, guildID, discordgo.PermissionOverwriteTypeRole, nextAllow, nextDeny)
		}
		if err != nil {
			b.logger.Error("channel unlock failed", zap.String("channel_id", channel.ID), zap.Error(err))
			b.respondError(session, interaction, "Failed to unlock the channel.")
			return
		}
	}

	b.audit.Log(ctx, audit.LevelInfo, guildID, invokerID(interaction), audit.EventUnlock, "channel="+channel.ID)
	embed := b.commandEmbed("🔓 Channel unlocked", fmt.Sprintf("%s has been unlocked by %s.", "<#"+channel.ID+">", mention(invokerID(interaction))), b.cfg.EmbedColors.Success, nil)
	b.sendLog(ctx, guildID, storage.LogModeration, embed)
	b.respondEmbed(session, interaction, embed, false)
}

// purgeDomain turns the typed domain option into the host form links are
// compared in. A blank option disables the filter.
func purgeDomain(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", true
	}
	host, err := utils.NormalizeHost(raw)
	if err != nil || host == "" || !strings.Contains(host, ".") {
		return "", false
	}
	return host, true
}

func (b *Bot) handlePurge(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	if !hasPermission(interaction.Member, discordgo.PermissionManageMessages) {
		b.respondError(session, interaction, "You need the Manage Messages permission.")
		return
	}
	amount, _ := opts.Int("amount")
	if err := purge.ValidateAmount(int(amount), b.cfg.Purge.MaxMessages); err != nil {
		b.respondError(session, interaction, fmt.Sprintf("Amount must be between 1 and %d.", b.cfg.Purge.MaxMessages))
		return
	}
	domain, ok := purgeDomain(opts.String("domain"))
	if !ok {
		b.respondError(session, interaction, "Invalid domain. Use a form like example.com.")
		return
	}
	filter := purge.Filter{
		Cutoff:   time.Now().Add(-time.Second),
		AuthorID: opts.ID("user"),
		Domain:   domain,
	}
	if invokedAt, err := discordgo.SnowflakeTimestamp(interaction.ID); err == nil {
		filter.Cutoff = invokedAt
	}

	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		b.logger.Warn("purge defer failed", zap.Error(err))
		return
	}

	msgs, err := b.purger.Collect(ctx, interaction.ChannelID, interaction.ID, int(amount), filter)
	if err != nil {
		b.logger.Warn("purge collect failed", zap.String("channel_id", interaction.ChannelID), zap.Error(err))
	}
	deleted, err := b.purger.Delete(ctx, interaction.ChannelID, msgs)
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Warn("purge delete failed", zap.String("channel_id", interaction.ChannelID), zap.Int("deleted", deleted), zap.Error(err))
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Channel", Value: "<#" + interaction.ChannelID + ">", Inline: true},
		{Name: "Moderator", Value: mention(invokerID(interaction)), Inline: true},
		{Name: "Deleted", Value: fmt.Sprintf("%d/%d", deleted, amount), Inline: true},
	}
	if filter.AuthorID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "User", Value: mention(filter.AuthorID), Inline: true})
	}
	if filter.Domain != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Domain", Value: filter.Domain, Inline: true})
	}
	embed := b.commandEmbed("🧹 Messages purged", "", b.cfg.EmbedColors.Action, fields)

	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, invokerID(interaction), audit.EventPurge,
		fmt.Sprintf("channel=%s requested=%d deleted=%d", interaction.ChannelID, amount, deleted))
	b.sendLog(ctx, interaction.GuildID, storage.LogModeration, embed)
	if _, err := session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	}); err != nil {
		b.logger.Warn("purge followup failed", zap.Error(err))
	}
}
