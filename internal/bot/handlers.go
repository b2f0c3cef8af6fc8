package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func options(opts []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	out := make(optionMap, len(opts))
	for _, opt := range opts {
		if opt != nil {
			out[opt.Name] = opt
		}
	}
	return out
}

func (o optionMap) String(name string) string {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionString {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

func (o optionMap) Int(name string) (int64, bool) {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionInteger {
		return opt.IntValue(), true
	}
	return 0, false
}

// ID returns the raw snowflake of a user, role, channel or attachment option.
func (o optionMap) ID(name string) string {
	opt, ok := o[name]
	if !ok {
		return ""
	}
	if value, ok := opt.Value.(string); ok {
		return value
	}
	return ""
}

func (o optionMap) User(session *discordgo.Session, name string) *discordgo.User {
	if _, ok := o[name]; !ok {
		return nil
	}
	return o[name].UserValue(session)
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(session, interaction)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, session, interaction)
	case discordgo.InteractionModalSubmit:
		b.handleModal(ctx, session, interaction)
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respondError(session, interaction, "This command only works inside a server.")
		return
	}
	data := interaction.ApplicationCommandData()
	opts := options(data.Options)
	b.logger.Debug("command", zap.String("name", data.Name), zap.String("guild_id", interaction.GuildID), zap.String("user_id", invokerID(interaction)))

	switch data.Name {
	case "gcreate":
		b.handleGiveawayCreate(session, interaction)
	case "gend":
		b.handleGiveawayEnd(ctx, session, interaction, opts)
	case "greroll":
		b.handleGiveawayReroll(ctx, session, interaction, opts)
	case "glist":
		b.handleGiveawayList(ctx, session, interaction)
	case "invites":
		b.handleInvites(ctx, session, interaction, opts)
	case "invite_leaderboard":
		b.handleInviteLeaderboard(ctx, session, interaction)
	case "invitesreset":
		b.handleInvitesReset(ctx, session, interaction, opts)
	case "claim_add":
		b.handleClaimAdjust(ctx, session, interaction, opts, 1)
	case "claim_remove":
		b.handleClaimAdjust(ctx, session, interaction, opts, -1)
	case "claims_check":
		b.handleClaimsCheck(ctx, session, interaction, opts)
	case "join_role":
		b.handleJoinRole(ctx, session, interaction, opts)
	case "logs":
		b.handleLogs(ctx, session, interaction, opts)
	case "staff_update":
		b.handleStaffUpdate(ctx, session, interaction, opts)
	case "split_steal":
		b.handleSplitSteal(session, interaction, opts)
	case "lock":
		b.handleLock(ctx, session, interaction)
	case "unlock":
		b.handleUnlock(ctx, session, interaction)
	case "purge":
		b.handlePurge(ctx, session, interaction, opts)
	case "mute":
		b.handleMute(ctx, session, interaction, data, opts)
	case "unmute":
		b.handleUnmute(ctx, session, interaction, opts)
	case "ban":
		b.handleBan(ctx, session, interaction, data, opts)
	case "unban":
		b.handleUnban(ctx, session, interaction, opts)
	case "ping":
		b.handlePing(session, interaction, opts)
	case "membercount":
		b.handleMemberCount(session, interaction)
	case "modreport":
		b.handleModReport(ctx, session, interaction, opts)
	default:
		b.respondError(session, interaction, "Unknown command.")
	}
}

func (b *Bot) handleComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	customID := interaction.MessageComponentData().CustomID
	switch {
	case customID == giveawayEnterID:
		b.handleGiveawayEnter(ctx, session, interaction)
	case strings.HasPrefix(customID, splitStealPrefix):
		b.handleSplitStealChoice(ctx, session, interaction, customID)
	default:
		b.logger.Debug("unhandled component", zap.String("custom_id", customID))
	}
}

func (b *Bot) handleModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ModalSubmitData()
	switch data.CustomID {
	case giveawayModalID:
		b.handleGiveawayModal(ctx, session, interaction, data)
	default:
		b.logger.Debug("unhandled modal", zap.String("custom_id", data.CustomID))
	}
}

func (b *Bot) handleAutocomplete(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	var focused *discordgo.ApplicationCommandInteractionDataOption
	for _, opt := range data.Options {
		if opt != nil && opt.Focused {
			focused = opt
			break
		}
	}
	if focused == nil {
		return
	}
	prefix := focused.StringValue()

	var names []string
	switch data.Name {
	case "staff_update":
		names = b.staff.Suggest(prefix, 25)
	case "ping":
		names = pingSuggestions(b.cfg.PingRoles, prefix)
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(names))
	for _, name := range names {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		b.logger.Debug("autocomplete respond failed", zap.Error(err))
	}
}
