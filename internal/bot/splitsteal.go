package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/modules/splitsteal"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const splitStealPrefix = "splitsteal:"

func splitStealCustomID(choice splitsteal.Choice, gameID string) string {
	return splitStealPrefix + string(choice) + ":" + gameID
}

// parseSplitStealID splits "splitsteal:<choice>:<game>" into its parts.
func parseSplitStealID(customID string) (splitsteal.Choice, string, bool) {
	rest, ok := strings.CutPrefix(customID, splitStealPrefix)
	if !ok {
		return "", "", false
	}
	raw, gameID, ok := strings.Cut(rest, ":")
	if !ok || gameID == "" {
		return "", "", false
	}
	choice, ok := splitsteal.ParseChoice(raw)
	if !ok {
		return "", "", false
	}
	return choice, gameID, true
}

func splitStealComponents(gameID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "🤝 Split", Style: discordgo.SuccessButton, CustomID: splitStealCustomID(splitsteal.Split, gameID)},
				discordgo.Button{Label: "💰 Steal", Style: discordgo.DangerButton, CustomID: splitStealCustomID(splitsteal.Steal, gameID)},
			},
		},
	}
}

func splitStealWaitingEmbed(g splitsteal.Game, color int) *discordgo.MessageEmbed {
	decided := g.Decided()
	status := func(i int) string {
		if decided[i] {
			return "✅ Decided"
		}
		return "⏳ Thinking..."
	}
	return &discordgo.MessageEmbed{
		Title:       "Split or Steal",
		Description: fmt.Sprintf("Prize: **%s**\nBoth split: the prize is shared. One steals: the stealer takes it all. Both steal: nobody wins.", g.Prize),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Player 1", Value: mention(g.Players[0]) + "\n" + status(0), Inline: true},
			{Name: "Player 2", Value: mention(g.Players[1]) + "\n" + status(1), Inline: true},
		},
	}
}

func splitStealResultEmbed(res splitsteal.Resolution, color int) *discordgo.MessageEmbed {
	var summary string
	switch res.Outcome {
	case splitsteal.BothSplit:
		summary = fmt.Sprintf("Both players split. %s share **%s**!", mentionAll(res.Winners), res.Game.Prize)
	case splitsteal.Stolen:
		summary = fmt.Sprintf("%s stole **%s**!", mentionAll(res.Winners), res.Game.Prize)
	default:
		summary = "Both players stole. Nobody wins."
	}
	return &discordgo.MessageEmbed{
		Title:       "Split or Steal: results",
		Description: summary,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Player 1", Value: fmt.Sprintf("%s chose **%s**", mention(res.Game.Players[0]), res.Choices[0]), Inline: true},
			{Name: "Player 2", Value: fmt.Sprintf("%s chose **%s**", mention(res.Game.Players[1]), res.Choices[1]), Inline: true},
		},
	}
}

func (b *Bot) handleSplitSteal(session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionMap) {
	game, err := b.games.Start(interaction.GuildID, interaction.ChannelID, invokerID(interaction), opts.ID("user1"), opts.ID("user2"), opts.String("prize"))
	if err != nil {
		b.respondError(session, interaction, b.splitStealErrorMessage(err))
		return
	}
	err = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         mention(game.Players[0]) + " " + mention(game.Players[1]),
			Embeds:          []*discordgo.MessageEmbed{splitStealWaitingEmbed(game, b.cfg.EmbedColors.Action)},
			Components:      splitStealComponents(game.ID),
			AllowedMentions: &discordgo.MessageAllowedMentions{Users: game.Players[:]},
		},
	})
	if err != nil {
		b.games.Cancel(game.ID)
		b.logger.Warn("split steal post failed", zap.Error(err))
		return
	}
	if msg, err := session.InteractionResponse(interaction.Interaction); err == nil && msg != nil {
		b.games.SetMessage(game.ID, msg.ID)
	}
}

func (b *Bot) handleSplitStealChoice(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, customID string) {
	choice, gameID, ok := parseSplitStealID(customID)
	if !ok {
		b.respondError(session, interaction, b.splitStealErrorMessage(splitsteal.ErrBadChoice))
		return
	}
	game, res, err := b.games.Choose(gameID, invokerID(interaction), choice)
	if err != nil {
		b.respondError(session, interaction, b.splitStealErrorMessage(err))
		return
	}

	if res == nil {
		b.respond(session, interaction, fmt.Sprintf("You chose **%s**. Waiting for the other player.", choice), true)
		if interaction.Message != nil {
			if _, err := session.ChannelMessageEditEmbed(interaction.ChannelID, interaction.Message.ID, splitStealWaitingEmbed(game, b.cfg.EmbedColors.Action)); err != nil {
				b.logger.Debug("split steal refresh failed", zap.Error(err))
			}
		}
		return
	}

	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    "",
			Embeds:     []*discordgo.MessageEmbed{splitStealResultEmbed(*res, b.cfg.EmbedColors.Success)},
			Components: []discordgo.MessageComponent{},
		},
	}); err != nil {
		b.logger.Warn("split steal result failed", zap.Error(err))
	}
	if _, err := session.ChannelMessageSendComplex(interaction.ChannelID, &discordgo.MessageSend{
		Content:         fmt.Sprintf("%s %s the game is over!", mention(game.Players[0]), mention(game.Players[1])),
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: game.Players[:]},
	}); err != nil {
		b.logger.Debug("split steal ping failed", zap.Error(err))
	}

	if err := b.store.AppendSplitSteal(ctx, res.Record()); err != nil {
		b.logger.Error("split steal history append failed", zap.String("game_id", game.ID), zap.Error(err))
	}
	b.audit.Log(ctx, audit.LevelInfo, game.GuildID, game.HostID, audit.EventSplitSteal,
		fmt.Sprintf("game=%s outcome=%s winners=%s", game.ID, res.Outcome, strings.Join(res.Winners, ",")))
}

func (b *Bot) splitStealErrorMessage(err error) string {
	switch {
	case errors.Is(err, splitsteal.ErrSamePlayer):
		return "Pick two different players."
	case errors.Is(err, splitsteal.ErrUnknownGame):
		return "This game is no longer active."
	case errors.Is(err, splitsteal.ErrNotPlayer):
		return "You are not part of this game."
	case errors.Is(err, splitsteal.ErrAlreadyChose):
		return "You already made your choice."
	default:
		return "Invalid choice."
	}
}
