package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string           `yaml:"discord_token"`
	ApplicationID string           `yaml:"application_id"`
	LogLevel      string           `yaml:"log_level"`
	Database      DatabaseConfig   `yaml:"database"`
	Health        HealthConfig     `yaml:"health"`
	Giveaway      GiveawayConfig   `yaml:"giveaway"`
	Invites       InviteConfig     `yaml:"invites"`
	Moderation    ModerationConfig `yaml:"moderation"`
	Purge         PurgeConfig      `yaml:"purge"`
	Staff         StaffConfig      `yaml:"staff"`
	PingRoles     []PingRole       `yaml:"ping_roles"`
	EmbedColors   EmbedColors      `yaml:"embed_colors"`
	RetentionDays int              `yaml:"retention_days"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type GiveawayConfig struct {
	RefreshSeconds  int    `yaml:"refresh_seconds"`
	MaxWinners      int    `yaml:"max_winners"`
	MaxDurationDays int    `yaml:"max_duration_days"`
	TicketHint      string `yaml:"ticket_hint"`
}

type InviteConfig struct {
	FakeAccountDays int `yaml:"fake_account_days"`
	LeaderboardSize int `yaml:"leaderboard_size"`
}

type ModerationConfig struct {
	MaxMuteDays int `yaml:"max_mute_days"`
}

type PurgeConfig struct {
	MaxMessages      int     `yaml:"max_messages"`
	DeletesPerSecond float64 `yaml:"deletes_per_second"`
}

type StaffConfig struct {
	Hierarchy     []string `yaml:"hierarchy"`
	BaselineRole  string   `yaml:"baseline_role"`
	StaffTeamRole string   `yaml:"staff_team_role"`
}

type PingRole struct {
	Name    string `yaml:"name"`
	Message string `yaml:"message"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Success int `yaml:"success"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		RetentionDays: 90,
		Database:      DatabaseConfig{Driver: "sqlite", DSN: "/data/guildwarden.db"},
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Giveaway: GiveawayConfig{
			RefreshSeconds:  10,
			MaxWinners:      20,
			MaxDurationDays: 60,
			TicketHint:      "#open_ticket_channel",
		},
		Invites:    InviteConfig{FakeAccountDays: 7, LeaderboardSize: 10},
		Moderation: ModerationConfig{MaxMuteDays: 28},
		Purge:      PurgeConfig{MaxMessages: 100, DeletesPerSecond: 1},
		Staff: StaffConfig{
			Hierarchy: []string{
				"Member", "Trainee", "Helper", "Moderator", "Sr Moderator", "Administrator",
				"Sr Administrator", "Developer", "Management", "Executive", "Co Owner", "Owner",
			},
			BaselineRole:  "Member",
			StaffTeamRole: "Staff Team",
		},
		PingRoles: []PingRole{
			{Name: "Quickdrop Ping", Message: "⚡ A quickdrop is live! Be quick!"},
			{Name: "Giveaway Ping", Message: "🎉 A new giveaway just started! Go enter now!"},
			{Name: "Server Booster", Message: "💎 Thank you to all our server boosters!"},
		},
		EmbedColors: EmbedColors{
			Action:  0x5865F2,
			Success: 0x22C55E,
			Warning: 0xF59E0B,
			Error:   0xEF4444,
		},
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	cfg.Database.Driver = normalizeDriver(cfg.Database.Driver)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.Staff.Hierarchy) == 0 {
		return errors.New("staff hierarchy must not be empty")
	}
	if c.Staff.Hierarchy[0] != c.Staff.BaselineRole {
		return errors.New("staff baseline role must be the lowest hierarchy rank")
	}
	if c.Giveaway.MaxWinners < 1 {
		return errors.New("giveaway max_winners must be at least 1")
	}
	if c.Purge.MaxMessages < 1 || c.Purge.MaxMessages > 100 {
		return errors.New("purge max_messages must be between 1 and 100")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.ApplicationID = envString("APPLICATION_ID", cfg.ApplicationID)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envString("DATABASE_DSN", envString("DATABASE_PATH", cfg.Database.DSN))
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Giveaway.RefreshSeconds = envInt("GIVEAWAY_REFRESH_SECONDS", cfg.Giveaway.RefreshSeconds)
	cfg.Giveaway.MaxWinners = envInt("GIVEAWAY_MAX_WINNERS", cfg.Giveaway.MaxWinners)
	cfg.Giveaway.MaxDurationDays = envInt("GIVEAWAY_MAX_DURATION_DAYS", cfg.Giveaway.MaxDurationDays)
	cfg.Invites.FakeAccountDays = envInt("FAKE_ACCOUNT_DAYS", cfg.Invites.FakeAccountDays)
	cfg.Invites.LeaderboardSize = envInt("INVITE_LEADERBOARD_SIZE", cfg.Invites.LeaderboardSize)
	cfg.Moderation.MaxMuteDays = envInt("MAX_MUTE_DAYS", cfg.Moderation.MaxMuteDays)
	cfg.Purge.MaxMessages = envInt("PURGE_MAX_MESSAGES", cfg.Purge.MaxMessages)
	cfg.Purge.DeletesPerSecond = envFloat("PURGE_DELETES_PER_SECOND", cfg.Purge.DeletesPerSecond)
	cfg.Staff.StaffTeamRole = envString("STAFF_TEAM_ROLE", cfg.Staff.StaffTeamRole)
	cfg.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.EmbedColors.Action)
	cfg.EmbedColors.Success = envInt("EMBED_COLOR_SUCCESS", cfg.EmbedColors.Success)
	cfg.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.EmbedColors.Warning)
	cfg.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.EmbedColors.Error)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func normalizeDriver(value string) string {
	switch strings.ToLower(value) {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return "sqlite"
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
