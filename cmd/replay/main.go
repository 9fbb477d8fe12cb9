// Command replay re-runs recorded sessions through the simulator and
// exports them to the parquet archive.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devnull/blitzbot/logging"
	"github.com/devnull/blitzbot/replay"
	"github.com/devnull/blitzbot/rules"
	"github.com/devnull/blitzbot/store"
	"github.com/rs/zerolog/log"
)

func main() {
	extended := flag.Bool("extended", false, "model shark and deer threats and the late-game speed-up")
	archiveDir := flag.String("archive", "", "write a parquet archive per session into this directory")
	batch := flag.Bool("batch", false, "with -archive, write all sessions into one batch file")
	verbose := flag.Bool("v", false, "print every mismatch")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	if _, err := logging.Setup(os.Stderr, *logLevel, logging.Console); err != nil {
		die("logging: %v", err)
	}
	if flag.NArg() == 0 {
		die("usage: replay [flags] <file.jsonl|dir>...")
	}

	inputs, err := collect(flag.Args())
	if err != nil {
		die("%v", err)
	}
	if len(inputs) == 0 {
		die("no .jsonl replays found")
	}

	sim := rules.Default()
	if *extended {
		sim = rules.Extended()
	}

	var bw *store.BatchWriter
	if *archiveDir != "" && *batch {
		bw, err = store.NewBatchWriter(*archiveDir)
		if err != nil {
			die("%v", err)
		}
	}

	failed, drifted := 0, 0
	for _, path := range inputs {
		ticks, err := store.LoadReplay(path)
		if err != nil {
			failed++
			log.Error().Err(err).Str("path", path).Msg("load replay")
			continue
		}

		report, err := replay.Verify(ticks, sim)
		if err != nil {
			failed++
			log.Error().Err(err).Str("path", path).Msg("verify")
			continue
		}
		printReport(path, report, *verbose)
		if !report.Clean() {
			drifted++
		}

		if *archiveDir == "" {
			continue
		}
		sessionID := store.SessionID(path)
		rows, err := store.ArchiveRows(sessionID, "live", ticks)
		if err != nil {
			failed++
			log.Error().Err(err).Str("path", path).Msg("archive rows")
			continue
		}
		if bw != nil {
			err = bw.WriteSession(rows)
		} else {
			err = store.WriteArchiveParquet(filepath.Join(*archiveDir, sessionID+".parquet"), rows)
		}
		if err != nil {
			failed++
			log.Error().Err(err).Str("path", path).Msg("write archive")
		}
	}

	if bw != nil {
		out, rows, sessions, err := bw.Finalize()
		if err != nil {
			die("finalize batch: %v", err)
		}
		if out != "" {
			log.Info().Str("path", out).Int("rows", rows).Int("sessions", sessions).Msg("batch written")
		}
	}

	fmt.Fprintf(os.Stderr, "done: replays=%d drifted=%d failed=%d\n", len(inputs), drifted, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func printReport(path string, r replay.Report, verbose bool) {
	status := "ok"
	if !r.Clean() {
		status = "DRIFT"
	}
	fmt.Printf("%-5s %s: ticks=%d checked=%d mismatches=%d\n", status, filepath.Base(path), r.Ticks, r.Checked, len(r.Mismatches))
	for _, style := range sortedKeys(r.ByStyle) {
		fmt.Printf("      %s: %d threat mismatches\n", style, r.ByStyle[style])
	}
	for _, style := range sortedKeys(r.Unmodeled) {
		fmt.Printf("      %s: unmodeled (%d threat-ticks not checked)\n", style, r.Unmodeled[style])
	}
	if verbose {
		for _, m := range r.Mismatches {
			fmt.Printf("      %s\n", m)
		}
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// collect expands directories into the .jsonl files under them.
func collect(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil
			}
			if d.IsDir() {
				if d.Name() == "tmp" {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(strings.ToLower(d.Name()), ".jsonl") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
