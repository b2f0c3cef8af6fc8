package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"guildwarden/internal/analytics"
	"guildwarden/internal/config"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/modules/giveaway"
	"guildwarden/internal/modules/invites"
	"guildwarden/internal/modules/moderation"
	"guildwarden/internal/modules/purge"
	"guildwarden/internal/modules/splitsteal"
	"guildwarden/internal/modules/staff"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	platform  *platform
	giveaways *giveaway.Manager
	invites   *invites.Tracker
	staff     staff.Hierarchy
	games     *splitsteal.Registry
	purger    *purge.Purger
	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, analyticsSvc *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildInvites |
		discordgo.IntentsGuildBans

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		analytics: analyticsSvc,
		session:   session,
		invites:   invites.NewTracker(),
		staff:     staff.NewHierarchy(cfg.Staff.Hierarchy),
		games:     splitsteal.NewRegistry(),
		done:      make(chan struct{}),
	}
	b.platform = &platform{session: session, bot: b}
	b.purger = purge.New(b.platform, cfg.Purge.DeletesPerSecond)
	b.giveaways = giveaway.NewManager(giveaway.Config{
		RefreshInterval: time.Duration(cfg.Giveaway.RefreshSeconds) * time.Second,
		MaxWinners:      cfg.Giveaway.MaxWinners,
		MaxDuration:     time.Duration(cfg.Giveaway.MaxDurationDays) * 24 * time.Hour,
	}, store, b.platform, giveaway.NewCronScheduler(logger), auditLogger, logger.Named("giveaway"))

	return b, nil
}

// Giveaways exposes the giveaway manager to the status endpoint.
func (b *Bot) Giveaways() *giveaway.Manager {
	return b.giveaways
}

func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onGuildDelete)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onInviteCreate)
	b.session.AddHandler(b.onInviteDelete)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	if _, _, err := b.giveaways.Restore(ctx); err != nil {
		b.logger.Error("giveaway restore failed", zap.Error(err))
	}
	b.startRetention(b.done)
	b.startGameSweep(b.done)
	b.logger.Info("invite the bot with", zap.String("url", b.authorizeURL()))
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	b.closeOnce.Do(func() { close(b.done) })
	b.giveaways.Stop(ctx)
	if b.session != nil {
		_ = b.session.Close()
	}
}

// authorizeURL builds the OAuth2 link that adds the bot to a server.
func (b *Bot) authorizeURL() string {
	clientID := b.cfg.ApplicationID
	if clientID == "" && b.session.State != nil && b.session.State.User != nil {
		clientID = b.session.State.User.ID
	}
	conf := oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{AuthURL: "https://discord.com/oauth2/authorize"},
		Scopes:   []string{"bot", "applications.commands"},
	}
	perms := discordgo.PermissionManageRoles |
		discordgo.PermissionManageChannels |
		discordgo.PermissionKickMembers |
		discordgo.PermissionBanMembers |
		discordgo.PermissionManageMessages |
		discordgo.PermissionModerateMembers |
		discordgo.PermissionManageServer |
		discordgo.PermissionSendMessages |
		discordgo.PermissionEmbedLinks |
		discordgo.PermissionMentionEveryone
	return conf.AuthCodeURL("", oauth2.SetAuthURLParam("permissions", fmt.Sprintf("%d", perms)))
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onGuildCreate(_ *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil || event.Unavailable {
		return
	}
	b.refreshInvites(event.ID)
}

func (b *Bot) onGuildDelete(_ *discordgo.Session, event *discordgo.GuildDelete) {
	if event.Guild == nil || event.Unavailable {
		return
	}
	b.invites.Forget(event.ID)
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	settings, err := b.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.String("guild_id", guildID), zap.Error(err))
		return storage.GuildSettings{GuildID: guildID}
	}
	return settings
}

func (b *Bot) guild(guildID string) *discordgo.Guild {
	guild, err := b.session.State.Guild(guildID)
	if err == nil && guild != nil {
		return guild
	}
	guild, err = b.session.Guild(guildID)
	if err != nil {
		b.logger.Warn("guild lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return nil
	}
	return guild
}

func (b *Bot) guildRoles(guildID string) []*discordgo.Role {
	if guild := b.guild(guildID); guild != nil && len(guild.Roles) > 0 {
		return guild.Roles
	}
	roles, err := b.session.GuildRoles(guildID)
	if err != nil {
		b.logger.Warn("guild roles lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return nil
	}
	return roles
}

func (b *Bot) memberForUser(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

func roleByName(roles []*discordgo.Role, name string) *discordgo.Role {
	for _, role := range roles {
		if role != nil && role.Name == name {
			return role
		}
	}
	return nil
}

func roleNames(roles []*discordgo.Role, ids []string) []string {
	byID := make(map[string]string, len(roles))
	for _, role := range roles {
		if role != nil {
			byID[role.ID] = role.Name
		}
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

// botTopPosition is the position of the bot's highest role in the guild.
func (b *Bot) botTopPosition(guildID string, roles []*discordgo.Role) int {
	if b.session.State == nil || b.session.State.User == nil {
		return 0
	}
	member := b.memberForUser(guildID, b.session.State.User.ID)
	if member == nil {
		return 0
	}
	return moderation.TopPosition(roles, member.Roles)
}

// isStaff reports whether the member's top role sits at or above the staff team role.
func (b *Bot) isStaff(guildID string, member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if guild := b.guild(guildID); guild != nil && member.User != nil && guild.OwnerID == member.User.ID {
		return true
	}
	roles := b.guildRoles(guildID)
	teamRole := roleByName(roles, b.cfg.Staff.StaffTeamRole)
	if teamRole == nil {
		return false
	}
	return moderation.TopPosition(roles, member.Roles) >= teamRole.Position
}

func hasPermission(member *discordgo.Member, perm int64) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return member.Permissions&perm == perm
}

// sendLog posts embed to the configured log channel of the given kind.
func (b *Bot) sendLog(ctx context.Context, guildID string, kind storage.LogKind, embed *discordgo.MessageEmbed) {
	channelID := b.guildSettings(ctx, guildID).Channel(kind)
	if channelID == "" || embed == nil {
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.logger.Warn("log channel send failed", zap.String("guild_id", guildID), zap.String("kind", string(kind)), zap.Error(err))
	}
}

// dmUser sends a direct message and swallows failures.
func (b *Bot) dmUser(userID string, embed *discordgo.MessageEmbed) {
	if userID == "" || embed == nil {
		return
	}
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		b.logger.Debug("dm channel failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
		b.logger.Debug("dm send failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	}); err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	}); err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) respondError(session *discordgo.Session, interaction *discordgo.InteractionCreate, message string) {
	b.respond(session, interaction, "❌ "+message, true)
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func invokerID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func mentionAll(userIDs []string) string {
	parts := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		parts = append(parts, mention(id))
	}
	return strings.Join(parts, ", ")
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
