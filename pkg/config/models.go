package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Transport TransportConfig `mapstructure:"transport"`
	Liveness  LivenessConfig  `mapstructure:"liveness"`
	Game      GameConfig      `mapstructure:"game"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Items     ItemsConfig     `mapstructure:"items"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Address         string                `mapstructure:"address"`
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

// ConnectionLimitConfig bounds connections per remote IP at upgrade time
// and per identity at authenticate time. Mode picks what happens when an
// identity exceeds its cap: "reject" the new connection or "cycle" out the
// oldest one.
type ConnectionLimitConfig struct {
	MaxPerIP       int    `mapstructure:"maxPerIP"`
	MaxPerIdentity int    `mapstructure:"maxPerIdentity"`
	Mode           string `mapstructure:"mode"`
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	FlushTimeout time.Duration `mapstructure:"flushTimeout"`
}

type LivenessConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

type GameConfig struct {
	MinPlayers        int           `mapstructure:"minPlayers"`
	MaxPlayers        int           `mapstructure:"maxPlayers"`
	MaxPuzzles        int           `mapstructure:"maxPuzzles"`
	DisconnectGrace   time.Duration `mapstructure:"disconnectGrace"`
	AttemptsPerMinute int           `mapstructure:"attemptsPerMinute"`
	Chat              ChatConfig    `mapstructure:"chat"`
}

type ChatConfig struct {
	MaxLength   int      `mapstructure:"maxLength"`
	PerMinute   int      `mapstructure:"perMinute"`
	BannedWords []string `mapstructure:"bannedWords"`
}

// ScoringConfig carries the product-tunable attempt scoring constants.
type ScoringConfig struct {
	ExactWeight     int           `mapstructure:"exactWeight"`
	PartialWeight   int           `mapstructure:"partialWeight"`
	AttemptBonusMax int           `mapstructure:"attemptBonusMax"`
	TimeBonusMax    int           `mapstructure:"timeBonusMax"`
	TimeBonusWindow time.Duration `mapstructure:"timeBonusWindow"`
	MalusPenalty    int           `mapstructure:"malusPenalty"`
}

type ItemsConfig struct {
	Rarity RarityWeights `mapstructure:"rarity"`
}

// RarityWeights is the cumulative draw table over rarity tiers. The four
// weights must sum to 1.
type RarityWeights struct {
	Common    float64 `mapstructure:"common"`
	Rare      float64 `mapstructure:"rare"`
	Epic      float64 `mapstructure:"epic"`
	Legendary float64 `mapstructure:"legendary"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// Validate performs the compile-and-check step after unmarshalling, so a
// bad table fails at boot instead of mid-game.
func (c *Config) Validate() error {
	if c.Game.MinPlayers < 2 {
		return fmt.Errorf("game.minPlayers must be at least 2, got %d", c.Game.MinPlayers)
	}
	if c.Game.MaxPlayers < c.Game.MinPlayers {
		return fmt.Errorf("game.maxPlayers (%d) below game.minPlayers (%d)", c.Game.MaxPlayers, c.Game.MinPlayers)
	}
	if c.Game.MaxPuzzles < 1 {
		return fmt.Errorf("game.maxPuzzles must be positive, got %d", c.Game.MaxPuzzles)
	}
	if err := c.Items.Rarity.Validate(); err != nil {
		return err
	}
	switch c.Server.ConnectionLimit.Mode {
	case "reject", "cycle":
	default:
		return fmt.Errorf("server.connectionLimit.mode must be 'reject' or 'cycle', got %q", c.Server.ConnectionLimit.Mode)
	}
	if c.Liveness.Timeout <= 0 || c.Liveness.SweepInterval <= 0 {
		return fmt.Errorf("liveness timeout and sweepInterval must be positive")
	}
	return nil
}

const rarityEpsilon = 1e-9

func (w RarityWeights) Validate() error {
	for name, v := range map[string]float64{
		"common": w.Common, "rare": w.Rare, "epic": w.Epic, "legendary": w.Legendary,
	} {
		if v < 0 {
			return fmt.Errorf("items.rarity.%s must not be negative", name)
		}
	}
	sum := w.Common + w.Rare + w.Epic + w.Legendary
	if sum < 1-rarityEpsilon || sum > 1+rarityEpsilon {
		return fmt.Errorf("items.rarity weights must sum to 1, got %v", sum)
	}
	return nil
}
