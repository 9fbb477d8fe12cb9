// Command debuggame plays one self-play game, printing the board every tick,
// and archives it for the viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devnull/blitzbot/agent"
	"github.com/devnull/blitzbot/config"
	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/logging"
	"github.com/devnull/blitzbot/protocol"
	"github.com/devnull/blitzbot/selfplay"
	"github.com/devnull/blitzbot/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// printingConn shows every tick the agent receives and the command it sends.
type printingConn struct {
	*selfplay.Server
}

func (c printingConn) Receive(ctx context.Context) (*protocol.TeamGameState, []byte, error) {
	msg, raw, err := c.Server.Receive(ctx)
	if err != nil {
		return msg, raw, err
	}
	s := c.Server.State()
	marks := map[game.Position]byte{s.Position: 'A'}
	for _, t := range s.Threats {
		marks[t.Position] = 'T'
	}
	fmt.Printf("tick %d  agent %s  threats %d\n%s", s.Tick, s.Position, len(s.Threats), s.Grid.Dump(marks))
	return msg, raw, nil
}

func (c printingConn) Send(ctx context.Context, cmd protocol.Command) error {
	action := "none"
	if len(cmd.Actions) == 1 {
		action = cmd.Actions[0].Type
		if p, ok := cmd.Actions[0].Target(); ok {
			action += " " + p.String()
		}
	}
	fmt.Printf("  -> %s\n\n", action)
	return c.Server.Send(ctx, cmd)
}

func main() {
	mapPath := flag.String("map", "", "initial game state (*.json)")
	outDir := flag.String("out-dir", "debug_games", "archive directory for the played game")
	strategy := flag.String("strategy", "search", "search or heuristic")
	maxTicks := flag.Int("max-ticks", 200, "stop after this many ticks")
	seed := flag.Int64("seed", 1, "agent seed")
	viewer := flag.String("viewer", "http://127.0.0.1:8080", "viewer base URL")
	flag.Parse()

	if *mapPath == "" {
		fmt.Fprintln(os.Stderr, "-map is required")
		os.Exit(2)
	}
	if _, err := logging.Setup(os.Stderr, "warn", logging.Console); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	maps, err := selfplay.LoadMaps(filepath.Dir(*mapPath))
	if err != nil {
		log.Fatal().Err(err).Msg("load maps")
	}
	name := filepath.Base(*mapPath)
	name = name[:len(name)-len(filepath.Ext(name))]
	var m *selfplay.Map
	for i := range maps {
		if maps[i].Name == name {
			m = &maps[i]
		}
	}
	if m == nil {
		log.Fatal().Str("map", *mapPath).Msg("map not found")
	}
	initial, err := m.State()
	if err != nil {
		log.Fatal().Err(err).Msg("map state")
	}

	cfg := config.Default()
	cfg.Agent.Strategy = *strategy
	cfg.Agent.Seed = *seed
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	acfg := agent.FromConfig(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sessionID := uuid.NewString()
	srv := selfplay.NewServer(sessionID, initial, m.Message.YourCharacter.SpawnPoint, acfg.Simulator, *maxTicks)
	out, err := agent.New(acfg).Run(ctx, printingConn{srv}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("game failed")
	}
	fmt.Printf("game over: ticks %d, score %d, survived %v, prediction drift %d\n",
		out.Ticks, out.Score, srv.State().Alive, out.Mismatches)

	path := filepath.Join(*outDir, sessionID+".parquet")
	if err := store.WriteArchiveParquet(path, srv.Rows()); err != nil {
		log.Fatal().Err(err).Msg("write archive")
	}
	fmt.Printf("archived to %s\nview: %s/api/sessions/%s\n", path, *viewer, sessionID)
}
