package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"guildwarden/internal/modules/giveaway"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const giveawayModalID = "giveaway:create"

func (b *Bot) handleGiveawayCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.isStaff(interaction.GuildID, interaction.Member) {
		b.respondError(session, interaction, fmt.Sprintf("Only members at or above %s can host giveaways.", b.cfg.Staff.StaffTeamRole))
		return
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: giveawayModalID,
			Title:    "Create a giveaway",
			Components: []discordgo.MessageComponent{
				modalInput("duration", "Duration (e.g. 1d12h, 30m)", "1d", 1, 32),
				modalInput("winners", fmt.Sprintf("Winners (1-%d)", b.giveaways.MaxWinners()), "1", 1, 3),
				modalInput("prize", "Prize", "Discord Nitro", 1, 256),
			},
		},
	})
	if err != nil {
		b.logger.Warn("giveaway modal failed", zap.Error(err))
	}
}

func modalInput(id, label, placeholder string, minLength, maxLength int) discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    id,
				Label:       label,
				Style:       discordgo.TextInputShort,
				Placeholder: placeholder,
				Required:    true,
				MinLength:   minLength,
				MaxLength:   maxLength,
			},
		},
	}
}

// modalValues flattens the text inputs of a modal submission by custom ID.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, row := range data.Components {
		actions, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actions.Components {
			if input, ok := component.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}

func (b *Bot) handleGiveawayModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData) {
	values := modalValues(data)
	req := giveaway.CreateRequest{
		GuildID:   interaction.GuildID,
		ChannelID: interaction.ChannelID,
		HostID:    invokerID(interaction),
		Duration:  values["duration"],
		Winners:   values["winners"],
		Prize:     values["prize"],
	}
	if _, _, err := b.giveaways.Validate(req); err != nil {
		b.respondError(session, interaction, b.giveawayErrorMessage(err))
		return
	}

	snap, err := b.giveaways.Create(ctx, req)
	if err != nil {
		b.logger.Error("giveaway create failed", zap.String("guild_id", req.GuildID), zap.Error(err))
		b.respondError(session, interaction, "Could not start the giveaway.")
		return
	}
	b.respond(session, interaction, fmt.Sprintf("✅ Giveaway for **%s** started, ends <t:%d:R>.", snap.Prize, snap.EndsAt.Unix()), true)
}

func (b *Bot) handleGiveawayEnter(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Message == nil {
		return
	}
	count, err := b.giveaways.Enter(ctx, interaction.Message.ID, invokerID(interaction))
	if err != nil {
		b.respondError(session, interaction, b.giveawayErrorMessage(err))
		return
	}
	b.respond(session, interaction, fmt.Sprintf("🎉 You're in! %d entries so far.", count), true)
}

func (b *Bot) handleGiveawayEnd(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	if !b.isStaff(interaction.GuildID, interaction.Member) {
		b.respondError(session, interaction, "Only staff can end giveaways.")
		return
	}
	id := trimID(opts.String("id"))
	if snap, ok := b.giveaways.Get(id); !ok || snap.GuildID != interaction.GuildID {
		b.respondError(session, interaction, b.giveawayErrorMessage(giveaway.ErrNotRunning))
		return
	}
	result, err := b.giveaways.End(ctx, id)
	if err != nil {
		b.respondError(session, interaction, b.giveawayErrorMessage(err))
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Giveaway for **%s** ended with %d winner(s).", result.Giveaway.Prize, len(result.Winners)), true)
}

func (b *Bot) handleGiveawayReroll(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	if !b.isStaff(interaction.GuildID, interaction.Member) {
		b.respondError(session, interaction, "Only staff can reroll giveaways.")
		return
	}
	id := trimID(opts.String("id"))
	stored, err := b.store.GetGiveaway(ctx, id)
	if err != nil || stored.GuildID != interaction.GuildID {
		b.respondError(session, interaction, "Giveaway not found.")
		return
	}
	count, _ := opts.Int("winners")
	result, err := b.giveaways.Reroll(ctx, id, int(count))
	if err != nil {
		b.respondError(session, interaction, b.giveawayErrorMessage(err))
		return
	}
	if len(result.Winners) == 0 {
		b.respond(session, interaction, "No valid entries to reroll.", true)
		return
	}
	b.respond(session, interaction, "New winners: "+mentionAll(result.Winners), true)
}

// recentlyEnded returns the last n ended giveaways, newest first. list is
// ordered by end time ascending.
func recentlyEnded(list []storage.Giveaway, n int) []storage.Giveaway {
	if len(list) > n {
		list = list[len(list)-n:]
	}
	out := make([]storage.Giveaway, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out
}

func endedField(list []storage.Giveaway) *discordgo.MessageEmbedField {
	lines := make([]string, 0, len(list))
	for _, g := range list {
		lines = append(lines, fmt.Sprintf("%s: ID `%s`, ended <t:%d:R>", g.Prize, g.MessageID, g.EndsAt.Unix()))
	}
	return &discordgo.MessageEmbedField{Name: "Recently ended", Value: strings.Join(lines, "\n")}
}

func (b *Bot) handleGiveawayList(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	active := b.giveaways.Active(interaction.GuildID)
	ended, err := b.store.ListGuildGiveaways(ctx, interaction.GuildID, storage.GiveawayEnded)
	if err != nil {
		b.logger.Warn("ended giveaway lookup failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
	}
	ended = recentlyEnded(ended, 5)
	if len(active) == 0 && len(ended) == 0 {
		b.respond(session, interaction, "No giveaways are running.", true)
		return
	}
	fields := make([]*discordgo.MessageEmbedField, 0, len(active)+1)
	for i, g := range active {
		if i == 24 {
			break
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  g.Prize,
			Value: fmt.Sprintf("ID `%s` in <#%s>\n%d entries, %d winner(s), ends <t:%d:R>", g.MessageID, g.ChannelID, g.Entries, g.Winners, g.EndsAt.Unix()),
		})
	}
	if len(ended) > 0 {
		fields = append(fields, endedField(ended))
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Giveaways", "", b.cfg.EmbedColors.Action, fields), true)
}

func (b *Bot) giveawayErrorMessage(err error) string {
	switch {
	case errors.Is(err, giveaway.ErrInvalidDuration):
		return "Invalid duration. Use a format like 1d12h or 30m."
	case errors.Is(err, giveaway.ErrDurationTooLong):
		return fmt.Sprintf("Giveaways can last at most %d days.", b.cfg.Giveaway.MaxDurationDays)
	case errors.Is(err, giveaway.ErrInvalidWinners):
		return fmt.Sprintf("Winners must be a number between 1 and %d.", b.giveaways.MaxWinners())
	case errors.Is(err, giveaway.ErrEmptyPrize):
		return "The prize cannot be empty."
	case errors.Is(err, giveaway.ErrAlreadyEntered):
		return "You already entered this giveaway."
	case errors.Is(err, giveaway.ErrEnded):
		return "This giveaway has already ended."
	case errors.Is(err, giveaway.ErrNotRunning):
		return "This giveaway is not running."
	case errors.Is(err, giveaway.ErrStillRunning):
		return "This giveaway is still running. End it first."
	case errors.Is(err, storage.ErrNotFound):
		return "Giveaway not found."
	default:
		b.logger.Warn("giveaway action failed", zap.Error(err))
		return "Something went wrong, try again later."
	}
}

func trimID(value string) string {
	return strings.Trim(strings.TrimSpace(value), "`")
}
