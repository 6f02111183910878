package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultRCONHost          = "127.0.0.1"
	DefaultRCONPort          = 25575
	DefaultProbeTimeoutMs    = 2000
	DefaultGraceSeconds      = 6
	DefaultRetentionDays     = 7
	DefaultActionThreshold   = 60
	DefaultChatThreshold     = 50
	DefaultEasterEgg         = "assemble the avengers"
	DefaultEmbeddingProvider = "local"
	DefaultEmbeddingTimeout  = 5000
	DefaultEmbeddingDim      = 256
	DefaultPresenceOnline    = "🟢 Minecraft Server is ON"
	DefaultPresenceOffline   = "🔴 Minecraft Server is OFF"
	DefaultMetricsAddr       = "127.0.0.1:9464"
	DefaultBufSize           = 100
	DefaultLogMaxSizeMB      = 10
	DefaultLogMaxBackups     = 3
	DefaultLogMaxAgeDays     = 7
)

// DefaultExclude lists file names never written into a backup archive.
var DefaultExclude = []string{"mc_server.py"}

type Config struct {
	Channels       ChannelsConfig `json:"channels"`
	Server         ServerConfig   `json:"server"`
	Backup         BackupConfig   `json:"backup"`
	Intent         IntentConfig   `json:"intent"`
	Presence       PresenceConfig `json:"presence"`
	AuthorizedUser string         `json:"authorizedUser"`
	Log            LogConfig      `json:"log"`
	Metrics        MetricsConfig  `json:"metrics"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type ServerConfig struct {
	RCONHost       string `json:"rconHost"`
	RCONPort       int    `json:"rconPort"`
	RCONPassword   string `json:"rconPassword"`
	Dir            string `json:"dir"`
	StartCommand   string `json:"startCommand"`
	ProbeTimeoutMs int    `json:"probeTimeoutMs"`
	GraceSeconds   int    `json:"graceSeconds"`
}

type BackupConfig struct {
	Dest          string   `json:"dest"`
	RetentionDays int      `json:"retentionDays"`
	Exclude       []string `json:"exclude"`
	LogFile       string   `json:"logFile,omitempty"`
	Schedule      string   `json:"schedule,omitempty"` // cron expression with seconds, e.g. "0 0 4 * * *"
	Script        string   `json:"script,omitempty"`   // external backup command run to completion instead of the built-in archiver
}

type IntentConfig struct {
	ActionThreshold float64         `json:"actionThreshold"`
	ChatThreshold   float64         `json:"chatThreshold"`
	EasterEgg       string          `json:"easterEgg"`
	Embedding       EmbeddingConfig `json:"embedding"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"` // "local" (default), "api" or "ollama"
	BaseURL   string `json:"baseUrl,omitempty"`
	APIKey    string `json:"apiKey,omitempty"`
	Model     string `json:"model,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
	Dimension int    `json:"dimension,omitempty"`
}

type PresenceConfig struct {
	Online          string `json:"online"`
	Offline         string `json:"offline"`
	RefreshSchedule string `json:"refreshSchedule,omitempty"`
}

type LogConfig struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMb,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			RCONHost:       DefaultRCONHost,
			RCONPort:       DefaultRCONPort,
			ProbeTimeoutMs: DefaultProbeTimeoutMs,
			GraceSeconds:   DefaultGraceSeconds,
		},
		Backup: BackupConfig{
			Dest:          filepath.Join(ConfigDir(), "backups"),
			RetentionDays: DefaultRetentionDays,
			Exclude:       append([]string(nil), DefaultExclude...),
		},
		Intent: IntentConfig{
			ActionThreshold: DefaultActionThreshold,
			ChatThreshold:   DefaultChatThreshold,
			EasterEgg:       DefaultEasterEgg,
			Embedding: EmbeddingConfig{
				Provider:  DefaultEmbeddingProvider,
				TimeoutMs: DefaultEmbeddingTimeout,
				Dimension: DefaultEmbeddingDim,
			},
		},
		Presence: PresenceConfig{
			Online:  DefaultPresenceOnline,
			Offline: DefaultPresenceOffline,
		},
		Log: LogConfig{
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
		},
	}
}

func ConfigDir() string {
	if dir := os.Getenv("JARVIS_HOME"); dir != "" {
		return dir
	}
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".jarvis")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// JobStorePath holds scheduled-job state between runs.
func JobStorePath() string {
	return filepath.Join(ConfigDir(), "data", "jobs.json")
}

// AuditLogPath is where backup actions are recorded when backup.logFile is unset.
func (c *Config) AuditLogPath() string {
	if c.Backup.LogFile != "" {
		return c.Backup.LogFile
	}
	return filepath.Join(c.Backup.Dest, "logs", "backup_log.txt")
}

// RCONAddr joins the remote-console host and port.
func (c *Config) RCONAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.RCONHost, c.Server.RCONPort)
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if token := os.Getenv("JARVIS_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
		cfg.Channels.Telegram.Enabled = true
	}
	if host := os.Getenv("JARVIS_RCON_HOST"); host != "" {
		cfg.Server.RCONHost = host
	}
	if port := os.Getenv("JARVIS_RCON_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.RCONPort = parsed
		}
	}
	if password := os.Getenv("JARVIS_RCON_PASSWORD"); password != "" {
		cfg.Server.RCONPassword = password
	}
	if dir := os.Getenv("JARVIS_SERVER_DIR"); dir != "" {
		cfg.Server.Dir = dir
	}
	if command := os.Getenv("JARVIS_START_COMMAND"); command != "" {
		cfg.Server.StartCommand = command
	}
	if dest := os.Getenv("JARVIS_BACKUP_DEST"); dest != "" {
		cfg.Backup.Dest = dest
	}
	if user := os.Getenv("JARVIS_AUTHORIZED_USER"); user != "" {
		cfg.AuthorizedUser = user
	}
	if days := os.Getenv("JARVIS_RETENTION_DAYS"); days != "" {
		if parsed, err := strconv.Atoi(days); err == nil {
			cfg.Backup.RetentionDays = parsed
		}
	}
	if key := os.Getenv("JARVIS_EMBEDDING_API_KEY"); key != "" {
		cfg.Intent.Embedding.APIKey = key
	}

	if cfg.Server.RCONHost == "" {
		cfg.Server.RCONHost = DefaultRCONHost
	}
	if cfg.Server.RCONPort <= 0 {
		cfg.Server.RCONPort = DefaultRCONPort
	}
	if cfg.Server.ProbeTimeoutMs <= 0 {
		cfg.Server.ProbeTimeoutMs = DefaultProbeTimeoutMs
	}
	if cfg.Server.GraceSeconds < 0 {
		cfg.Server.GraceSeconds = DefaultGraceSeconds
	}
	if cfg.Backup.Dest == "" {
		cfg.Backup.Dest = DefaultConfig().Backup.Dest
	}
	if cfg.Backup.RetentionDays < 0 {
		cfg.Backup.RetentionDays = DefaultRetentionDays
	}
	if cfg.Intent.ActionThreshold <= 0 {
		cfg.Intent.ActionThreshold = DefaultActionThreshold
	}
	if cfg.Intent.ChatThreshold <= 0 {
		cfg.Intent.ChatThreshold = DefaultChatThreshold
	}
	if cfg.Intent.Embedding.Provider == "" {
		cfg.Intent.Embedding.Provider = DefaultEmbeddingProvider
	}
	if cfg.Presence.Online == "" {
		cfg.Presence.Online = DefaultPresenceOnline
	}
	if cfg.Presence.Offline == "" {
		cfg.Presence.Offline = DefaultPresenceOffline
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}
