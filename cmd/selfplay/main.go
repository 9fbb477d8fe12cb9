// Command selfplay plays the agent against the simulator on every map in a
// directory and shows progress in a terminal UI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/devnull/blitzbot/agent"
	"github.com/devnull/blitzbot/config"
	"github.com/devnull/blitzbot/logging"
	"github.com/devnull/blitzbot/selfplay"
	"github.com/devnull/blitzbot/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type model struct {
	total     int
	played    int
	survived  int
	scoreSum  int
	drift     int
	errors    int
	startTime time.Time
	recent    []string
	updates   chan selfplay.Update
	done      chan struct{}
	finished  bool
}

func initialModel(total int, updates chan selfplay.Update, done chan struct{}) model {
	return model{total: total, startTime: time.Now(), updates: updates, done: done}
}

type tickMsg time.Time
type doneMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForUpdate(updates chan selfplay.Update, done chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-updates:
			return u
		case <-done:
			return doneMsg{}
		}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates, m.done), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickCmd()
	case selfplay.Update:
		m = m.record(msg)
		return m, waitForUpdate(m.updates, m.done)
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) record(u selfplay.Update) model {
	m.played++
	r := u.Result
	line := fmt.Sprintf("worker %d: %-20s ticks %4d score %5d", u.Worker, r.Map, r.Ticks, r.Score)
	switch {
	case u.Err != nil:
		m.errors++
		line += " error: " + u.Err.Error()
	case r.Survived:
		m.survived++
		line += " survived"
	default:
		line += " caught"
	}
	if r.Mismatches > 0 {
		m.drift++
		line += fmt.Sprintf(" drift %d", r.Mismatches)
	}
	m.scoreSum += r.Score
	m.recent = append([]string{line}, m.recent...)
	if len(m.recent) > 10 {
		m.recent = m.recent[:10]
	}
	return m
}

func (m model) View() string {
	var b strings.Builder
	elapsed := time.Since(m.startTime)
	avg := 0.0
	if m.played > 0 {
		avg = float64(m.scoreSum) / float64(m.played)
	}
	fmt.Fprintf(&b, "Games:      %d/%d\n", m.played, m.total)
	fmt.Fprintf(&b, "Survived:   %d\n", m.survived)
	fmt.Fprintf(&b, "Avg score:  %.1f\n", avg)
	fmt.Fprintf(&b, "Drifted:    %d\n", m.drift)
	fmt.Fprintf(&b, "Errors:     %d\n", m.errors)
	fmt.Fprintf(&b, "Duration:   %s\n\n", elapsed.Round(time.Second))
	b.WriteString("Recent games:\n")
	for _, g := range m.recent {
		b.WriteString(g + "\n")
	}
	if !m.finished {
		b.WriteString("\nPress q to quit.\n")
	}
	return b.String()
}

func main() {
	mapsDir := flag.String("maps", "maps", "directory of *.json initial game states")
	configPath := flag.String("config", "", "YAML config file")
	workers := flag.Int("workers", 4, "games played in parallel")
	maxTicks := flag.Int("max-ticks", 1000, "stop a game after this many ticks")
	rounds := flag.Int("rounds", 1, "times each map is played")
	strategy := flag.String("strategy", "", "search or heuristic (overrides config)")
	archiveDir := flag.String("archive", "", "write played ticks to a parquet batch in this directory")
	noTUI := flag.Bool("no-tui", false, "log results instead of showing the terminal UI")
	flag.Parse()

	cfg, err := config.Load(*configPath, "")
	if err != nil {
		die("config: %v", err)
	}
	if *strategy != "" {
		cfg.Agent.Strategy = *strategy
		if err := cfg.Validate(); err != nil {
			die("config: %v", err)
		}
	}

	// The TUI owns the terminal, so agent logs are dropped unless asked for.
	logLevel := cfg.Log.Level
	if !*noTUI {
		logLevel = zerolog.LevelDisabledValue
	}
	if _, err := logging.Setup(os.Stderr, logLevel, logging.Console); err != nil {
		die("logging: %v", err)
	}

	maps, err := selfplay.LoadMaps(*mapsDir)
	if err != nil {
		die("%v", err)
	}
	var games []selfplay.Map
	for i := 0; i < *rounds; i++ {
		games = append(games, maps...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agentCfg := agent.FromConfig(cfg)
	newAgent := func() *agent.Agent {
		c := agentCfg
		c.Seed = 0
		return agent.New(c)
	}

	var writer *archiveWriter
	if *archiveDir != "" {
		writer, err = newArchiveWriter(*archiveDir)
		if err != nil {
			die("%v", err)
		}
	}

	updates := make(chan selfplay.Update, len(games))
	done := make(chan struct{})
	var results []selfplay.Result
	go func() {
		defer close(done)
		results = selfplay.RunAll(ctx, games, *workers, newAgent, agentCfg.Simulator, *maxTicks, func(u selfplay.Update) {
			if writer != nil {
				writer.write(u.Result.Rows)
			}
			updates <- u
		})
	}()

	if *noTUI {
		m := initialModel(len(games), updates, done)
	loop:
		for {
			select {
			case u := <-updates:
				m = m.record(u)
				log.Info().Str("map", u.Result.Map).Int("ticks", u.Result.Ticks).Int("score", u.Result.Score).
					Bool("survived", u.Result.Survived).Int("mismatches", u.Result.Mismatches).AnErr("error", u.Err).Msg("game")
			case <-done:
				break loop
			}
		}
		// Drain anything delivered after the last receive.
		for len(updates) > 0 {
			m = m.record(<-updates)
		}
		fmt.Print(m.View())
	} else {
		p := tea.NewProgram(initialModel(len(games), updates, done))
		if _, err := p.Run(); err != nil {
			die("tui: %v", err)
		}
		stop()
		<-done
	}

	summarize(results)
	if writer != nil {
		writer.close()
	}
}

func summarize(results []selfplay.Result) {
	byMap := map[string][]int{}
	for _, r := range results {
		if r.Map != "" {
			byMap[r.Map] = append(byMap[r.Map], r.Score)
		}
	}
	names := make([]string, 0, len(byMap))
	for name := range byMap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		scores := byMap[name]
		sum := 0
		for _, s := range scores {
			sum += s
		}
		fmt.Printf("%-24s games %3d  mean score %.1f\n", name, len(scores), float64(sum)/float64(len(scores)))
	}
}

// archiveWriter serialises BatchWriter access across workers.
type archiveWriter struct {
	mu sync.Mutex
	bw *store.BatchWriter
}

func newArchiveWriter(dir string) (*archiveWriter, error) {
	bw, err := store.NewBatchWriter(dir)
	if err != nil {
		return nil, err
	}
	return &archiveWriter{bw: bw}, nil
}

func (w *archiveWriter) write(rows []store.ArchiveTickRow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.bw.WriteSession(rows); err != nil {
		log.Error().Err(err).Msg("archive write")
	}
}

func (w *archiveWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	out, rows, sessions, err := w.bw.Finalize()
	if err != nil {
		log.Error().Err(err).Msg("archive finalize")
		return
	}
	if out != "" {
		fmt.Printf("archive: %s (%d rows, %d sessions)\n", out, rows, sessions)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
