package agent

import (
	"github.com/devnull/blitzbot/config"
	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/mcts"
	"github.com/devnull/blitzbot/rules"
)

// FromConfig maps file configuration onto an agent Config.
func FromConfig(cfg config.Config) Config {
	sim := rules.Default()
	if cfg.Agent.Extended {
		sim = rules.Extended()
	}
	// An empty list means the built-in styles, not "recognise nothing".
	var styles []game.Style
	for _, s := range cfg.Agent.Styles {
		styles = append(styles, game.Style(s))
	}
	opts := []mcts.Option{
		mcts.WithDuration(cfg.Search.Budget),
		mcts.WithHorizon(cfg.Search.Horizon),
		mcts.WithExploration(cfg.Search.Exploration),
	}
	if cfg.Search.Rollout == "safety" {
		opts = append(opts, mcts.WithRollout(mcts.SafetyRollout))
	}
	if cfg.Search.ModelThreats {
		opts = append(opts, mcts.WithModeledThreats())
	}
	return Config{
		Styles:        styles,
		Personalities: cfg.Agent.Personalities,
		Strict:        cfg.Strict(),
		Strategy:      Strategy(cfg.Agent.Strategy),
		Simulator:     sim,
		SearchOptions: opts,
		Seed:          cfg.Agent.Seed,
	}
}
