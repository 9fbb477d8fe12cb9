// Command bot plays one live game over the websocket protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devnull/blitzbot/agent"
	"github.com/devnull/blitzbot/client"
	"github.com/devnull/blitzbot/config"
	"github.com/devnull/blitzbot/logging"
	"github.com/devnull/blitzbot/store"
	"github.com/rs/zerolog/log"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "YAML config file")
	envFile := fs.String("env", ".env", "dotenv file, ignored when missing")
	url := fs.String("url", "", "server websocket URL (overrides config)")
	strategy := fs.String("strategy", "", "search or heuristic (overrides config)")
	replayDir := fs.String("replay-dir", "", "directory for replay logs, empty disables recording")
	noReplay := fs.Bool("no-replay", false, "do not record a replay")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *url != "" {
		cfg.Server.URL = *url
	}
	if *strategy != "" {
		cfg.Agent.Strategy = *strategy
	}
	if *replayDir != "" {
		cfg.Replay.Dir = *replayDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	format := logging.Format(cfg.Log.Format)
	if cfg.Server.Token != "" && cfg.Log.Format == "console" {
		format = logging.JSON
	}
	if _, err := logging.Setup(os.Stderr, cfg.Log.Level, format); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, !*noReplay); err != nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
}

func run(ctx context.Context, cfg config.Config, record bool) error {
	conn, err := client.Dial(ctx, client.Config{
		URL:            cfg.Server.URL,
		ConnectTimeout: cfg.Server.ConnectTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	token, team := cfg.Server.Token, ""
	if token == "" {
		team = cfg.Server.TeamName
	}
	if err := conn.Register(ctx, token, team); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	log.Info().Str("url", cfg.Server.URL).Bool("strict", cfg.Strict()).Msg("registered")

	var rec agent.Recorder
	if record && cfg.Replay.Dir != "" {
		path, sessionID := store.NewReplayPath(cfg.Replay.Dir)
		w, err := store.OpenReplayWriter(path)
		if err != nil {
			return err
		}
		log.Info().Str("session", sessionID).Str("path", path).Msg("recording replay")
		rec = w
	}

	a := agent.New(agent.FromConfig(cfg))
	out, err := a.Run(ctx, conn, rec)
	if err != nil {
		return err
	}
	fmt.Printf("final score: %d (ticks %d, last tick %d)\n", out.Score, out.Ticks, out.LastTick)
	return nil
}
