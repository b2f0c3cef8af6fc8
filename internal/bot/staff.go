package bot

import (
	"context"
	"errors"
	"fmt"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/modules/staff"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) handleStaffUpdate(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	guildID := interaction.GuildID
	actorID := invokerID(interaction)
	targetID := opts.ID("member")
	reason := opts.String("reason")

	rank, _, ok := b.staff.Lookup(opts.String("rank"))
	if !ok {
		b.respondError(session, interaction, b.staffErrorMessage(staff.ErrUnknownRank))
		return
	}

	actorRank, err := b.currentRank(ctx, guildID, actorID)
	if err != nil {
		b.respondError(session, interaction, "Could not load staff ranks.")
		return
	}
	targetRank, err := b.currentRank(ctx, guildID, targetID)
	if err != nil {
		b.respondError(session, interaction, "Could not load staff ranks.")
		return
	}

	ownerID := ""
	if guild := b.guild(guildID); guild != nil {
		ownerID = guild.OwnerID
	}
	direction, err := b.staff.Decide(staff.Change{
		ActorID:      actorID,
		TargetID:     targetID,
		ActorRank:    actorRank,
		TargetRank:   targetRank,
		NewRank:      rank,
		ActorIsOwner: actorID == ownerID,
	})
	if err != nil {
		b.respondError(session, interaction, b.staffErrorMessage(err))
		return
	}

	if err := b.store.SetStaffRank(ctx, guildID, targetID, rank, actorID); err != nil {
		b.logger.Error("staff rank persist failed", zap.String("guild_id", guildID), zap.Error(err))
		b.respondError(session, interaction, "Could not save the new rank.")
		return
	}

	if member := b.memberForUser(guildID, targetID); member != nil {
		b.applyRolePlan(guildID, targetID, member.Roles, rank)
	}

	embed := staffChangeEmbed(direction, targetID, actorID, targetRank, rank, reason, b.staffColor(direction))
	b.sendLog(ctx, guildID, storage.LogStaff, embed)
	b.dmUser(targetID, embed)

	event := audit.EventStaffPromote
	if direction == staff.Demotion {
		event = audit.EventStaffDemote
	}
	b.audit.Log(ctx, audit.LevelInfo, guildID, actorID, event, fmt.Sprintf("target=%s from=%s to=%s reason=%s", targetID, b.orBaseline(targetRank), rank, reason))
	b.respond(session, interaction, fmt.Sprintf("✅ %s is now **%s**.", mention(targetID), rank), true)
}

func (b *Bot) currentRank(ctx context.Context, guildID, memberID string) (string, error) {
	rank, ok, err := b.store.GetStaffRank(ctx, guildID, memberID)
	if err != nil {
		b.logger.Warn("staff rank lookup failed", zap.String("guild_id", guildID), zap.String("member_id", memberID), zap.Error(err))
		return "", err
	}
	if !ok {
		return b.staff.Baseline(), nil
	}
	return rank, nil
}

func (b *Bot) orBaseline(rank string) string {
	if rank == "" {
		return b.staff.Baseline()
	}
	return rank
}

// applyRolePlan mirrors rank onto the member's roles. Role changes are best effort.
func (b *Bot) applyRolePlan(guildID, userID string, held []string, rank string) {
	roles := b.guildRoles(guildID)
	plan := b.staff.Plan(rank, roleNames(roles, held), b.cfg.Staff.StaffTeamRole)
	if plan.Empty() {
		return
	}
	for _, name := range plan.Remove {
		role := roleByName(roles, name)
		if role == nil {
			continue
		}
		if err := b.session.GuildMemberRoleRemove(guildID, userID, role.ID); err != nil {
			b.logger.Warn("staff role remove failed", zap.String("role", name), zap.Error(err))
		}
	}
	for _, name := range plan.Add {
		role := roleByName(roles, name)
		if role == nil {
			b.logger.Warn("staff role missing", zap.String("guild_id", guildID), zap.String("role", name))
			continue
		}
		if err := b.session.GuildMemberRoleAdd(guildID, userID, role.ID); err != nil {
			b.logger.Warn("staff role add failed", zap.String("role", name), zap.Error(err))
		}
	}
}

func (b *Bot) staffColor(direction staff.Direction) int {
	if direction == staff.Promotion {
		return b.cfg.EmbedColors.Success
	}
	return b.cfg.EmbedColors.Warning
}

func staffChangeEmbed(direction staff.Direction, targetID, actorID, from, to, reason string, color int) *discordgo.MessageEmbed {
	title := "📈 Staff promotion"
	if direction == staff.Demotion {
		title = "📉 Staff demotion"
	}
	if reason == "" {
		reason = "No reason provided"
	}
	return &discordgo.MessageEmbed{
		Title: title,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: mention(targetID), Inline: true},
			{Name: "Updated by", Value: mention(actorID), Inline: true},
			{Name: "Rank", Value: fmt.Sprintf("%s → %s", from, to)},
			{Name: "Reason", Value: reason},
		},
	}
}

func (b *Bot) staffErrorMessage(err error) string {
	switch {
	case errors.Is(err, staff.ErrUnknownRank):
		return "Unknown rank. Pick one from the list."
	case errors.Is(err, staff.ErrSelfUpdate):
		return "You cannot change your own rank."
	case errors.Is(err, staff.ErrTargetOutranks):
		return "You cannot update a member ranked equal to or above you."
	case errors.Is(err, staff.ErrRankTooHigh):
		return "You cannot assign a rank equal to or above your own."
	case errors.Is(err, staff.ErrSameRank):
		return "That member already holds this rank."
	default:
		return "Could not update the rank."
	}
}
