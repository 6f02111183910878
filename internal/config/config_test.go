package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"JARVIS_TELEGRAM_TOKEN", "JARVIS_RCON_HOST", "JARVIS_RCON_PORT", "JARVIS_RCON_PASSWORD",
		"JARVIS_SERVER_DIR", "JARVIS_START_COMMAND", "JARVIS_BACKUP_DEST", "JARVIS_AUTHORIZED_USER",
		"JARVIS_RETENTION_DAYS", "JARVIS_EMBEDDING_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Server.RCONPort != DefaultRCONPort {
		t.Errorf("rconPort = %d, want %d", cfg.Server.RCONPort, DefaultRCONPort)
	}
	if cfg.Server.GraceSeconds != DefaultGraceSeconds {
		t.Errorf("graceSeconds = %d, want %d", cfg.Server.GraceSeconds, DefaultGraceSeconds)
	}
	if cfg.Backup.RetentionDays != 7 {
		t.Errorf("retentionDays = %d, want 7", cfg.Backup.RetentionDays)
	}
	if len(cfg.Backup.Exclude) != 1 || cfg.Backup.Exclude[0] != "mc_server.py" {
		t.Errorf("exclude = %v, want [mc_server.py]", cfg.Backup.Exclude)
	}
	if cfg.Intent.ActionThreshold != 60 || cfg.Intent.ChatThreshold != 50 {
		t.Errorf("thresholds = %v/%v, want 60/50", cfg.Intent.ActionThreshold, cfg.Intent.ChatThreshold)
	}
	if cfg.Intent.Embedding.Provider != "local" {
		t.Errorf("embedding provider = %q, want local", cfg.Intent.Embedding.Provider)
	}
	if cfg.Presence.Online == "" || cfg.Presence.Offline == "" {
		t.Error("presence strings should not be empty")
	}
}

func TestDefaultExcludeIsCopied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backup.Exclude[0] = "changed"
	if DefaultExclude[0] != "mc_server.py" {
		t.Error("DefaultConfig must not alias DefaultExclude")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv("JARVIS_HOME", t.TempDir())
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Server.RCONHost != DefaultRCONHost {
		t.Errorf("rconHost = %q, want %q", cfg.Server.RCONHost, DefaultRCONHost)
	}
	if cfg.Channels.Telegram.Enabled {
		t.Error("telegram should be disabled without a token")
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JARVIS_HOME", dir)
	clearEnv(t)

	raw := map[string]any{
		"server": map[string]any{
			"rconHost":     "mc.local",
			"rconPort":     25580,
			"rconPassword": "secret",
			"dir":          "/srv/mc",
			"startCommand": "./run.sh",
		},
		"backup": map[string]any{
			"dest":          "/srv/backups",
			"retentionDays": 14,
		},
		"authorizedUser": "42",
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Server.RCONHost != "mc.local" || cfg.Server.RCONPort != 25580 {
		t.Errorf("rcon = %s:%d", cfg.Server.RCONHost, cfg.Server.RCONPort)
	}
	if cfg.RCONAddr() != "mc.local:25580" {
		t.Errorf("RCONAddr = %q", cfg.RCONAddr())
	}
	if cfg.Backup.RetentionDays != 14 {
		t.Errorf("retentionDays = %d, want 14", cfg.Backup.RetentionDays)
	}
	if cfg.AuthorizedUser != "42" {
		t.Errorf("authorizedUser = %q, want 42", cfg.AuthorizedUser)
	}
	// Unset fields keep their defaults.
	if cfg.Server.GraceSeconds != DefaultGraceSeconds {
		t.Errorf("graceSeconds = %d, want default", cfg.Server.GraceSeconds)
	}
	if cfg.AuditLogPath() != filepath.Join("/srv/backups", "logs", "backup_log.txt") {
		t.Errorf("AuditLogPath = %q", cfg.AuditLogPath())
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JARVIS_HOME", dir)
	clearEnv(t)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("JARVIS_HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("JARVIS_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("JARVIS_RCON_PORT", "30000")
	t.Setenv("JARVIS_RCON_PASSWORD", "pw")
	t.Setenv("JARVIS_RETENTION_DAYS", "3")
	t.Setenv("JARVIS_AUTHORIZED_USER", "7")
	t.Setenv("JARVIS_START_COMMAND", "java -jar server.jar")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if !cfg.Channels.Telegram.Enabled || cfg.Channels.Telegram.Token != "tg-token" {
		t.Errorf("telegram = %+v", cfg.Channels.Telegram)
	}
	if cfg.Server.RCONPort != 30000 {
		t.Errorf("rconPort = %d", cfg.Server.RCONPort)
	}
	if cfg.Server.RCONPassword != "pw" {
		t.Errorf("rconPassword = %q", cfg.Server.RCONPassword)
	}
	if cfg.Backup.RetentionDays != 3 {
		t.Errorf("retentionDays = %d", cfg.Backup.RetentionDays)
	}
	if cfg.AuthorizedUser != "7" {
		t.Errorf("authorizedUser = %q", cfg.AuthorizedUser)
	}
	if cfg.Server.StartCommand != "java -jar server.jar" {
		t.Errorf("startCommand = %q", cfg.Server.StartCommand)
	}
}

func TestLoadConfig_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("JARVIS_HOME", t.TempDir())
	clearEnv(t)
	t.Setenv("JARVIS_RCON_PORT", "not-a-port")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Server.RCONPort != DefaultRCONPort {
		t.Errorf("rconPort = %d, want default", cfg.Server.RCONPort)
	}
}

func TestSaveConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JARVIS_HOME", dir)
	clearEnv(t)

	cfg := DefaultConfig()
	cfg.Server.StartCommand = "./start.sh"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if loaded.Server.StartCommand != "./start.sh" {
		t.Errorf("startCommand = %q, want ./start.sh", loaded.Server.StartCommand)
	}
}

func TestJobStorePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JARVIS_HOME", dir)
	if got, want := JobStorePath(), filepath.Join(dir, "data", "jobs.json"); got != want {
		t.Errorf("JobStorePath = %q, want %q", got, want)
	}
}
