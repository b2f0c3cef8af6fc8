package bot

import (
	"context"
	"fmt"

	"guildwarden/internal/modules/giveaway"
	"guildwarden/internal/modules/purge"

	"github.com/bwmarrin/discordgo"
)

const giveawayEnterID = "giveaway:enter"

// platform adapts the discord session to the giveaway and purge modules.
type platform struct {
	session *discordgo.Session
	bot     *Bot
}

var (
	_ giveaway.Publisher = (*platform)(nil)
	_ purge.Client       = (*platform)(nil)
)

func (p *platform) PostGiveaway(_ context.Context, g giveaway.Snapshot) (string, error) {
	msg, err := p.session.ChannelMessageSendComplex(g.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{giveawayEmbed(g, p.bot.cfg.EmbedColors.Action)},
		Components: giveawayComponents(false),
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (p *platform) UpdateGiveaway(_ context.Context, g giveaway.Snapshot) error {
	_, err := p.session.ChannelMessageEditEmbed(g.ChannelID, g.MessageID, giveawayEmbed(g, p.bot.cfg.EmbedColors.Action))
	return err
}

func (p *platform) AnnounceResult(ctx context.Context, g giveaway.Snapshot, winners []string) error {
	ended := giveawayEndedEmbed(g, winners, p.bot.cfg.EmbedColors.Warning)
	if _, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         g.MessageID,
		Channel:    g.ChannelID,
		Embeds:     []*discordgo.MessageEmbed{ended},
		Components: giveawayComponents(true),
	}); err != nil && !isNotFound(err) {
		return err
	}

	hint := p.bot.cfg.Giveaway.TicketHint
	if ticket := p.bot.guildSettings(ctx, g.GuildID).TicketChannel; ticket != "" {
		hint = "<#" + ticket + ">"
	}
	result := giveawayResultMessage(g, winners, hint, p.bot.cfg.EmbedColors.Success)
	_, err := p.session.ChannelMessageSendComplex(g.ChannelID, result)
	return err
}

func (p *platform) MessageExists(_ context.Context, channelID, messageID string) (bool, error) {
	if _, err := p.session.ChannelMessage(channelID, messageID); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *platform) Messages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	return p.session.ChannelMessages(channelID, limit, beforeID, "", "")
}

func (p *platform) BulkDelete(channelID string, messageIDs []string) error {
	return p.session.ChannelMessagesBulkDelete(channelID, messageIDs)
}

func (p *platform) Delete(channelID, messageID string) error {
	return p.session.ChannelMessageDelete(channelID, messageID)
}

func giveawayComponents(closed bool) []discordgo.MessageComponent {
	label := "🎉 Enter"
	if closed {
		label = "Giveaway ended"
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    label,
					Style:    discordgo.PrimaryButton,
					CustomID: giveawayEnterID,
					Disabled: closed,
				},
			},
		},
	}
}

func giveawayEmbed(g giveaway.Snapshot, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎉 " + g.Prize,
		Description: "Click the button below to enter!",
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Hosted by", Value: mention(g.HostID), Inline: true},
			{Name: "Entries", Value: fmt.Sprintf("%d", g.Entries), Inline: true},
			{Name: "Winners", Value: fmt.Sprintf("%d", g.Winners), Inline: true},
			{Name: "Ends", Value: fmt.Sprintf("<t:%d:R>", g.EndsAt.Unix()), Inline: true},
		},
	}
}

func giveawayEndedEmbed(g giveaway.Snapshot, winners []string, color int) *discordgo.MessageEmbed {
	value := "No valid entries."
	if len(winners) > 0 {
		value = mentionAll(winners)
	}
	return &discordgo.MessageEmbed{
		Title: "🎉 " + g.Prize,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Hosted by", Value: mention(g.HostID), Inline: true},
			{Name: "Entries", Value: fmt.Sprintf("%d", g.Entries), Inline: true},
			{Name: "Ended", Value: fmt.Sprintf("<t:%d:R>", g.EndsAt.Unix()), Inline: true},
			{Name: "Winners", Value: value},
		},
	}
}

func giveawayResultMessage(g giveaway.Snapshot, winners []string, ticketHint string, color int) *discordgo.MessageSend {
	if len(winners) == 0 {
		return &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Giveaway ended",
				Description: fmt.Sprintf("No valid entries for **%s**.", g.Prize),
				Color:       color,
			}},
		}
	}
	return &discordgo.MessageSend{
		Content: mentionAll(winners),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🎉 Congratulations!",
			Description: fmt.Sprintf("You won **%s**! Open a ticket in %s to claim your prize.", g.Prize, ticketHint),
			Color:       color,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Hosted by", Value: mention(g.HostID), Inline: true},
				{Name: "Giveaway", Value: fmt.Sprintf("https://discord.com/channels/%s/%s/%s", g.GuildID, g.ChannelID, g.MessageID), Inline: true},
			},
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: winners},
	}
}
