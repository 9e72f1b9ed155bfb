package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(testLogger(), "no-such-config-file")
	if err != nil {
		t.Fatalf("Load without a file should fall back to defaults: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("server.address = %q", cfg.Server.Address)
	}
	if cfg.Server.ConnectionLimit.MaxPerIP != 10 || cfg.Server.ConnectionLimit.MaxPerIdentity != 3 {
		t.Errorf("connection limits = %+v", cfg.Server.ConnectionLimit)
	}
	if cfg.Server.ConnectionLimit.Mode != "cycle" {
		t.Errorf("connectionLimit.mode = %q", cfg.Server.ConnectionLimit.Mode)
	}
	if cfg.Transport.ReadTimeout != 60*time.Second || cfg.Transport.FlushTimeout != 2*time.Second {
		t.Errorf("transport durations = %+v", cfg.Transport)
	}
	if cfg.Liveness.Timeout != 60*time.Second || cfg.Liveness.SweepInterval != 15*time.Second {
		t.Errorf("liveness = %+v", cfg.Liveness)
	}
	if cfg.Game.MinPlayers != 2 || cfg.Game.MaxPlayers != 12 || cfg.Game.MaxPuzzles != 10 {
		t.Errorf("game bounds = %+v", cfg.Game)
	}
	if cfg.Game.DisconnectGrace != 2*time.Minute {
		t.Errorf("disconnectGrace = %v", cfg.Game.DisconnectGrace)
	}
	if cfg.Game.Chat.MaxLength != 500 || cfg.Game.Chat.PerMinute != 10 {
		t.Errorf("chat = %+v", cfg.Game.Chat)
	}
	if len(cfg.Game.Chat.BannedWords) == 0 {
		t.Error("Expected a default banned word list")
	}
	if cfg.Scoring.ExactWeight != 10 || cfg.Scoring.TimeBonusWindow != 60*time.Second {
		t.Errorf("scoring = %+v", cfg.Scoring)
	}
	if err := cfg.Items.Rarity.Validate(); err != nil {
		t.Errorf("Default rarity weights should validate: %v", err)
	}
	if cfg.Storage.Path != "mastermind.db" {
		t.Errorf("storage.path = %q", cfg.Storage.Path)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("MASTERMIND_SERVER_ADDRESS", ":9191")
	t.Setenv("MASTERMIND_GAME_MAXPLAYERS", "6")
	t.Setenv("MASTERMIND_LIVENESS_TIMEOUT", "90s")
	t.Setenv("MASTERMIND_SERVER_CONNECTIONLIMIT_MODE", "reject")

	cfg, err := Load(testLogger(), "no-such-config-file")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Address != ":9191" {
		t.Errorf("server.address = %q, want :9191", cfg.Server.Address)
	}
	if cfg.Game.MaxPlayers != 6 {
		t.Errorf("game.maxPlayers = %d, want 6", cfg.Game.MaxPlayers)
	}
	if cfg.Liveness.Timeout != 90*time.Second {
		t.Errorf("liveness.timeout = %v, want 90s", cfg.Liveness.Timeout)
	}
	if cfg.Server.ConnectionLimit.Mode != "reject" {
		t.Errorf("connectionLimit.mode = %q, want reject", cfg.Server.ConnectionLimit.Mode)
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("MASTERMIND_GAME_MINPLAYERS", "1")
	if _, err := Load(testLogger(), "no-such-config-file"); err == nil {
		t.Fatal("Expected validation to reject minPlayers below 2")
	}
}

func TestValidateRejections(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{ConnectionLimit: ConnectionLimitConfig{Mode: "cycle"}},
			Game:   GameConfig{MinPlayers: 2, MaxPlayers: 8, MaxPuzzles: 10},
			Items:  ItemsConfig{Rarity: RarityWeights{Common: 0.6, Rare: 0.25, Epic: 0.12, Legendary: 0.03}},
			Liveness: LivenessConfig{
				Timeout:       time.Minute,
				SweepInterval: 15 * time.Second,
			},
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("The baseline should validate: %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"minPlayers", func(c *Config) { c.Game.MinPlayers = 1 }, "minPlayers"},
		{"maxBelowMin", func(c *Config) { c.Game.MaxPlayers = 1 }, "maxPlayers"},
		{"maxPuzzles", func(c *Config) { c.Game.MaxPuzzles = 0 }, "maxPuzzles"},
		{"raritySum", func(c *Config) { c.Items.Rarity.Common = 0.9 }, "sum to 1"},
		{"rarityNegative", func(c *Config) { c.Items.Rarity.Epic = -0.12 }, "negative"},
		{"limitMode", func(c *Config) { c.Server.ConnectionLimit.Mode = "drop" }, "mode"},
		{"liveness", func(c *Config) { c.Liveness.Timeout = 0 }, "liveness"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mut(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestRarityWeightsTolerateFloatNoise(t *testing.T) {
	w := RarityWeights{Common: 0.1, Rare: 0.2, Epic: 0.3, Legendary: 0.4}
	if err := w.Validate(); err != nil {
		t.Errorf("0.1+0.2+0.3+0.4 should pass despite float representation: %v", err)
	}
}
