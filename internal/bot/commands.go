package bot

import (
	"guildwarden/internal/modules/moderation"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
)

func permission(p int64) *int64 {
	return &p
}

func reasonChoices(reasons []moderation.Reason) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(reasons))
	for _, reason := range reasons {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: reason.Label, Value: reason.Key})
	}
	return choices
}

func userOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func proofOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionAttachment,
		Name:        "proof",
		Description: "Screenshot proving the violation",
		Required:    true,
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	minAmount := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "gcreate",
			Description: "Create a giveaway",
		},
		{
			Name:                     "gend",
			Description:              "End a running giveaway now",
			DefaultMemberPermissions: permission(discordgo.PermissionManageMessages),
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("id", "Giveaway message ID", true),
			},
		},
		{
			Name:                     "greroll",
			Description:              "Draw new winners for an ended giveaway",
			DefaultMemberPermissions: permission(discordgo.PermissionManageMessages),
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("id", "Giveaway message ID", true),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "winners",
					Description: "Number of winners to draw",
					Required:    false,
					MinValue:    &minAmount,
				},
			},
		},
		{
			Name:        "glist",
			Description: "List running giveaways",
		},
		{
			Name:        "invites",
			Description: "Show invite stats",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member to inspect", false),
			},
		},
		{
			Name:        "invite_leaderboard",
			Description: "Top inviters of the server",
		},
		{
			Name:                     "invitesreset",
			Description:              "Reset invite stats for a member or the whole server",
			DefaultMemberPermissions: permission(discordgo.PermissionManageServer),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member to reset, everyone when omitted", false),
			},
		},
		{
			Name:                     "claim_add",
			Description:              "Add invite claims to a member",
			DefaultMemberPermissions: permission(discordgo.PermissionManageServer),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member", true),
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "number", Description: "Claims to add", Required: true, MinValue: &minAmount},
			},
		},
		{
			Name:                     "claim_remove",
			Description:              "Remove invite claims from a member",
			DefaultMemberPermissions: permission(discordgo.PermissionManageServer),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member", true),
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "number", Description: "Claims to remove", Required: true, MinValue: &minAmount},
			},
		},
		{
			Name:        "claims_check",
			Description: "Show the invite claims of a member",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Member", true),
			},
		},
		{
			Name:                     "join_role",
			Description:              "Role given to new members",
			DefaultMemberPermissions: permission(discordgo.PermissionManageRoles),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to assign on join", Required: true},
			},
		},
		{
			Name:                     "logs",
			Description:              "Set a log channel",
			DefaultMemberPermissions: permission(discordgo.PermissionManageServer),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "Log type",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "moderation", Value: string(storage.LogModeration)},
						{Name: "welcome", Value: string(storage.LogWelcome)},
						{Name: "staff", Value: string(storage.LogStaff)},
						{Name: "ticket", Value: string(storage.LogTicket)},
					},
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Target channel",
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
				},
			},
		},
		{
			Name:        "staff_update",
			Description: "Promote or demote a staff member",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Staff member", true),
				{Type: discordgo.ApplicationCommandOptionString, Name: "rank", Description: "New rank", Required: true, Autocomplete: true},
				stringOption("reason", "Reason for the change", true),
			},
		},
		{
			Name:        "split_steal",
			Description: "Start a split-or-steal game",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user1", "First player", true),
				userOption("user2", "Second player", true),
				stringOption("prize", "Prize at stake", true),
			},
		},
		{
			Name:                     "lock",
			Description:              "Lock this channel",
			DefaultMemberPermissions: permission(discordgo.PermissionManageChannels),
		},
		{
			Name:                     "unlock",
			Description:              "Unlock this channel",
			DefaultMemberPermissions: permission(discordgo.PermissionManageChannels),
		},
		{
			Name:                     "purge",
			Description:              "Delete recent messages in this channel",
			DefaultMemberPermissions: permission(discordgo.PermissionManageMessages),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Messages to delete (1-100)", Required: true, MinValue: &minAmount, MaxValue: 100},
				userOption("user", "Only delete messages from this user", false),
				stringOption("domain", "Only delete messages linking to this domain", false),
			},
		},
		{
			Name:                     "mute",
			Description:              "Time out a member",
			DefaultMemberPermissions: permission(discordgo.PermissionModerateMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Member to mute", true),
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason", Required: true, Choices: reasonChoices(moderation.MuteReasons)},
				proofOption(),
				stringOption("duration", "Override duration, e.g. 2h30m", false),
			},
		},
		{
			Name:                     "unmute",
			Description:              "Remove a member's timeout",
			DefaultMemberPermissions: permission(discordgo.PermissionModerateMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("member", "Member to unmute", true),
				stringOption("reason", "Reason", true),
			},
		},
		{
			Name:                     "ban",
			Description:              "Ban a user",
			DefaultMemberPermissions: permission(discordgo.PermissionBanMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "User to ban", true),
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason", Required: true, Choices: reasonChoices(moderation.BanReasons)},
				proofOption(),
			},
		},
		{
			Name:                     "unban",
			Description:              "Lift a ban",
			DefaultMemberPermissions: permission(discordgo.PermissionBanMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "User to unban", true),
				stringOption("reason", "Reason", true),
			},
		},
		{
			Name:                     "ping",
			Description:              "Ping a notification role",
			DefaultMemberPermissions: permission(discordgo.PermissionMentionEveryone),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "role", Description: "Role to ping", Required: true, Autocomplete: true},
			},
		},
		{
			Name:        "membercount",
			Description: "Show the member count",
		},
		{
			Name:                     "modreport",
			Description:              "Moderation activity report",
			DefaultMemberPermissions: permission(discordgo.PermissionManageServer),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "day, week or month",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
						{Name: "month", Value: "month"},
					},
				},
			},
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.cfg.ApplicationID
	if appID == "" {
		appID = b.session.State.User.ID
	}
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}
