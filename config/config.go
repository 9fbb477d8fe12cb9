// Package config loads bot settings from YAML, an optional .env file and the
// environment, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StrategySearch    = "search"
	StrategyHeuristic = "heuristic"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Agent  AgentConfig  `yaml:"agent"`
	Search SearchConfig `yaml:"search"`
	Replay ReplayConfig `yaml:"replay"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	TeamName       string        `yaml:"team_name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type AgentConfig struct {
	Strategy      string   `yaml:"strategy"`
	Strict        *bool    `yaml:"strict"`
	Styles        []string `yaml:"styles"`
	Personalities []string `yaml:"personalities"`
	// Extended models shark and deer threats and the late-game speed-up.
	Extended bool  `yaml:"extended"`
	Seed     int64 `yaml:"seed"`
}

type SearchConfig struct {
	Budget      time.Duration `yaml:"budget"`
	Horizon     int           `yaml:"horizon"`
	Exploration float64       `yaml:"exploration"`
	Rollout     string        `yaml:"rollout"`
	// ModelThreats collapses modeled threats to their predicted move.
	ModelThreats bool `yaml:"model_threats"`
}

type ReplayConfig struct {
	Dir     string `yaml:"dir"`
	Archive string `yaml:"archive"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default is the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:            "ws://127.0.0.1:8765",
			TeamName:       "blitzbot",
			ConnectTimeout: 10 * time.Second,
			WriteTimeout:   5 * time.Second,
		},
		Agent: AgentConfig{
			Strategy:      StrategySearch,
			Styles:        []string{"goldfish", "bull", "shark", "hawk", "deer", "owl"},
			Personalities: []string{},
		},
		Search: SearchConfig{
			Budget:      250 * time.Millisecond,
			Horizon:     20,
			Exploration: 1.41421356,
			Rollout:     "safety",
		},
		Replay: ReplayConfig{Dir: "replays", Archive: "archive"},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads the YAML file at path (skipped when empty), then the .env file
// at envFile (skipped when missing), then environment overrides.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TOKEN"); v != "" {
		c.Server.Token = v
	}
	if v := os.Getenv("SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("TEAM_NAME"); v != "" {
		c.Server.TeamName = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BOT_STRATEGY"); v != "" {
		c.Agent.Strategy = v
	}
	if v := os.Getenv("BOT_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("BOT_SEED: %w", err)
		}
		c.Agent.Seed = seed
	}
	return nil
}

// Strict reports whether unknown threat styles and decision failures are
// fatal. Unless set explicitly, a bot with a token (remote play) is tolerant
// and a local bot is strict.
func (c Config) Strict() bool {
	if c.Agent.Strict != nil {
		return *c.Agent.Strict
	}
	return c.Server.Token == ""
}

func (c Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.Server.Token == "" && c.Server.TeamName == "" {
		return fmt.Errorf("either a token or server.team_name is required")
	}
	switch c.Agent.Strategy {
	case StrategySearch, StrategyHeuristic:
	default:
		return fmt.Errorf("agent.strategy %q: want %q or %q", c.Agent.Strategy, StrategySearch, StrategyHeuristic)
	}
	if c.Search.Budget <= 0 {
		return fmt.Errorf("search.budget must be positive")
	}
	if c.Search.Horizon <= 0 {
		return fmt.Errorf("search.horizon must be positive")
	}
	switch c.Search.Rollout {
	case "safety", "random":
	default:
		return fmt.Errorf("search.rollout %q: want safety or random", c.Search.Rollout)
	}
	return nil
}
