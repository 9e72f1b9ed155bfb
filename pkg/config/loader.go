package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.connectionLimit.maxPerIP", 10)
	v.SetDefault("server.connectionLimit.maxPerIdentity", 3)
	v.SetDefault("server.connectionLimit.mode", "cycle")
	v.SetDefault("auth.jwtSecret", "default-secret-key-change-me")
	v.SetDefault("transport.readTimeout", "60s")
	v.SetDefault("transport.flushTimeout", "2s")
	v.SetDefault("liveness.timeout", "60s")
	v.SetDefault("liveness.sweepInterval", "15s")
	v.SetDefault("game.minPlayers", 2)
	v.SetDefault("game.maxPlayers", 12)
	v.SetDefault("game.maxPuzzles", 10)
	v.SetDefault("game.disconnectGrace", "2m")
	v.SetDefault("game.attemptsPerMinute", 30)
	v.SetDefault("game.chat.maxLength", 500)
	v.SetDefault("game.chat.perMinute", 10)
	v.SetDefault("game.chat.bannedWords", []string{"spam", "hack", "cheat", "bot", "script"})
	v.SetDefault("scoring.exactWeight", 10)
	v.SetDefault("scoring.partialWeight", 3)
	v.SetDefault("scoring.attemptBonusMax", 50)
	v.SetDefault("scoring.timeBonusMax", 30)
	v.SetDefault("scoring.timeBonusWindow", "60s")
	v.SetDefault("scoring.malusPenalty", 5)
	v.SetDefault("items.rarity.common", 0.60)
	v.SetDefault("items.rarity.rare", 0.25)
	v.SetDefault("items.rarity.epic", 0.12)
	v.SetDefault("items.rarity.legendary", 0.03)
	v.SetDefault("storage.path", "mastermind.db")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory

	// 3. Set up environment variable handling
	v.SetEnvPrefix("MASTERMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
