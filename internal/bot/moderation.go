package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/modules/moderation"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type modAction struct {
	Title    string
	TargetID string
	ActorID  string
	Reason   string
	Duration time.Duration
	ProofURL string
	Color    int
}

func moderationEmbed(a modAction) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: mention(a.TargetID), Inline: true},
		{Name: "Moderator", Value: mention(a.ActorID), Inline: true},
		{Name: "Reason", Value: a.Reason, Inline: true},
	}
	if a.Duration > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: a.Duration.String(), Inline: true})
	}
	embed := &discordgo.MessageEmbed{
		Title:     a.Title,
		Color:     a.Color,
		Fields:    fields,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if a.ProofURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: a.ProofURL}
	}
	return embed
}

// proofURL resolves the attachment option to its CDN URL.
func proofURL(data discordgo.ApplicationCommandInteractionData, opts optionMap) (string, error) {
	id := opts.ID("proof")
	if id == "" || data.Resolved == nil {
		return "", moderation.ErrAttachmentMissing
	}
	attachment, ok := data.Resolved.Attachments[id]
	if !ok || attachment == nil || attachment.URL == "" {
		return "", moderation.ErrAttachmentMissing
	}
	return attachment.URL, nil
}

// checkTarget applies the role hierarchy guards for acting on userID.
func (b *Bot) checkTarget(interaction *discordgo.InteractionCreate, userID string) (*discordgo.Member, error) {
	guildID := interaction.GuildID
	roles := b.guildRoles(guildID)
	ownerID := ""
	if guild := b.guild(guildID); guild != nil {
		ownerID = guild.OwnerID
	}
	target := b.memberForUser(guildID, userID)
	check := moderation.Target{
		ActorID:      invokerID(interaction),
		TargetID:     userID,
		OwnerID:      ownerID,
		BotTop:       b.botTopPosition(guildID, roles),
		TargetMember: target != nil,
	}
	if interaction.Member != nil {
		check.ActorTop = moderation.TopPosition(roles, interaction.Member.Roles)
	}
	if target != nil {
		check.TargetTop = moderation.TopPosition(roles, target.Roles)
	}
	return target, moderation.CheckHierarchy(check)
}

func (b *Bot) handleMute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, opts optionMap) {
	if !hasPermission(interaction.Member, discordgo.PermissionModerateMembers) {
		b.respondError(session, interaction, "You need the Timeout Members permission.")
		return
	}
	userID := opts.ID("member")
	reason, ok := moderation.MuteReason(opts.String("reason"))
	if !ok {
		b.respondError(session, interaction, b.moderationErrorMessage(moderation.ErrUnknownReason))
		return
	}
	proof, err := proofURL(data, opts)
	if err != nil {
		b.respondError(session, interaction, b.moderationErrorMessage(err))
		return
	}
	duration, err := moderation.MuteDuration(reason.Key, opts.String("duration"), time.Duration(b.cfg.Moderation.MaxMuteDays)*24*time.Hour)
	if err != nil {
		b.respondError(session, interaction, b.moderationErrorMessage(err))
		return
	}
	target, err := b.checkTarget(interaction, userID)
	if err != nil {
		b.respondError(session, interaction, b.moderationErrorMessage(err))
		return
	}
	if target == nil {
		b.respondError(session, interaction, "That user is not a member of this server.")
		return
	}

	until := time.Now().Add(duration)
	if err := session.GuildMemberTimeout(interaction.GuildID, userID, &until); err != nil {
		b.logger.Error("mute failed", zap.String("guild_id", interaction.GuildID), zap.String("user_id", userID), zap.Error(err))
		b.respondError(session, interaction, "Failed to mute the member.")
		return
	}

	action := modAction{
		Title:    "🔇 Member muted",
		TargetID: userID,
		ActorID:  invokerID(interaction),
		Reason:   reason.Label,
		Duration: duration,
		ProofURL: proof,
		Color:    b.cfg.EmbedColors.Warning,
	}
	b.dmUser(userID, b.commandEmbed("You have been muted", fmt.Sprintf("Reason: %s\nDuration: %s", reason.Label, duration), b.cfg.EmbedColors.Warning, nil))
	b.finishModeration(ctx, session, interaction, action, audit.LevelWarn, audit.EventMute)
}

func (b *Bot) handleUnmute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	if !hasPermission(interaction.Member, discordgo.PermissionModerateMembers) {
		b.respondError(session, interaction, "You need the Timeout Members permission.")
		return
	}
	userID := opts.ID("member")
	target := b.memberForUser(interaction.GuildID, userID)
	if target == nil {
		b.respondError(session, interaction, "That user is not a member of this server.")
		return
	}
	if !moderation.IsTimedOut(target.CommunicationDisabledUntil, time.Now()) {
		b.respondError(session, interaction, b.moderationErrorMessage(moderation.ErrNotTimedOut))
		return
	}
	if err := session.GuildMemberTimeout(interaction.GuildID, userID, nil); err != nil {
		b.logger.Error("unmute failed", zap.String("guild_id", interaction.GuildID), zap.String("user_id", userID), zap.Error(err))
		b.respondError(session, interaction, "Failed to unmute the member.")
		return
	}
	action := modAction{
		Title:    "🔊 Member unmuted",
		TargetID: userID,
		ActorID:  invokerID(interaction),
		Reason:   orDefault(opts.String("reason"), "No reason provided"),
		Color:    b.cfg.EmbedColors.Success,
	}
	b.finishModeration(ctx, session, interaction, action, audit.LevelInfo, audit.EventUnmute)
}

func (b *Bot) handleBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, opts optionMap) {
	if !hasPermission(interaction.Member, discordgo.PermissionBanMembers) {
		b.respondError(session, interaction, "You need the Ban Members permission.")
		return
	}
	userID := opts.ID("user")
	reason, ok := moderation.BanReason(opts.String("reason"))
	if !ok {
		b.respondError(session, interaction, b.moderationErrorMessage(moderation.ErrUnknownReason))
		return
	}
	proof, err := proofURL(data, opts)
	if err != nil {
		b.respondError(session, interaction, b.moderationErrorMessage(err))
		return
	}
	if _, err := b.checkTarget(interaction, userID); err != nil {
		b.respondError(session, interaction, b.moderationErrorMessage(err))
		return
	}

	// DM first; the user cannot be reached once banned.
	b.dmUser(userID, b.commandEmbed("You have been banned", "Reason: "+reason.Label, b.cfg.EmbedColors.Error, nil))
	if err := session.GuildBanCreateWithReason(interaction.GuildID, userID, reason.Label, 0); err != nil {
		b.logger.Error("ban failed", zap.String("guild_id", interaction.GuildID), zap.String("user_id", userID), zap.Error(err))
		b.respondError(session, interaction, "Failed to ban the user.")
		return
	}
	action := modAction{
		Title:    "🔨 User banned",
		TargetID: userID,
		ActorID:  invokerID(interaction),
		Reason:   reason.Label,
		ProofURL: proof,
		Color:    b.cfg.EmbedColors.Error,
	}
	b.finishModeration(ctx, session, interaction, action, audit.LevelCrit, audit.EventBan)
}

func (b *Bot) handleUnban(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	if !hasPermission(interaction.Member, discordgo.PermissionBanMembers) {
		b.respondError(session, interaction, "You need the Ban Members permission.")
		return
	}
	userID := opts.ID("user")
	if _, err := session.GuildBan(interaction.GuildID, userID); err != nil {
		if isNotFound(err) {
			b.respondError(session, interaction, b.moderationErrorMessage(moderation.ErrNotBanned))
			return
		}
		b.logger.Error("ban lookup failed", zap.String("guild_id", interaction.GuildID), zap.String("user_id", userID), zap.Error(err))
		b.respondError(session, interaction, "Failed to look up the ban.")
		return
	}
	if err := session.GuildBanDelete(interaction.GuildID, userID); err != nil {
		b.logger.Error("unban failed", zap.String("guild_id", interaction.GuildID), zap.String("user_id", userID), zap.Error(err))
		b.respondError(session, interaction, "Failed to unban the user.")
		return
	}
	action := modAction{
		Title:    "✅ User unbanned",
		TargetID: userID,
		ActorID:  invokerID(interaction),
		Reason:   orDefault(opts.String("reason"), "No reason provided"),
		Color:    b.cfg.EmbedColors.Success,
	}
	b.finishModeration(ctx, session, interaction, action, audit.LevelInfo, audit.EventUnban)
}

func (b *Bot) finishModeration(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, action modAction, level, event string) {
	embed := moderationEmbed(action)
	b.sendLog(ctx, interaction.GuildID, storage.LogModeration, embed)
	details := fmt.Sprintf("target=%s reason=%s", action.TargetID, action.Reason)
	if action.Duration > 0 {
		details += " duration=" + action.Duration.String()
	}
	b.audit.Log(ctx, level, interaction.GuildID, action.ActorID, event, details)
	b.respondEmbed(session, interaction, embed, false)
}

func (b *Bot) moderationErrorMessage(err error) string {
	switch {
	case errors.Is(err, moderation.ErrUnknownReason):
		return "Unknown reason. Pick one from the list."
	case errors.Is(err, moderation.ErrInvalidDuration):
		return "Invalid duration. Use a format like 2h30m."
	case errors.Is(err, moderation.ErrDurationTooLong):
		return fmt.Sprintf("Mutes can last at most %d days.", b.cfg.Moderation.MaxMuteDays)
	case errors.Is(err, moderation.ErrSelfTarget):
		return "You cannot moderate yourself."
	case errors.Is(err, moderation.ErrTargetIsOwner):
		return "The server owner cannot be moderated."
	case errors.Is(err, moderation.ErrTargetAboveActor):
		return "That member has a higher role than you."
	case errors.Is(err, moderation.ErrTargetAboveBot):
		return "That member's role is equal to or above mine."
	case errors.Is(err, moderation.ErrNotTimedOut):
		return "That member is not muted."
	case errors.Is(err, moderation.ErrNotBanned):
		return "That user is not banned."
	case errors.Is(err, moderation.ErrAttachmentMissing):
		return "A proof attachment is required."
	default:
		return "Moderation action failed."
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
