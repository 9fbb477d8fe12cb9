// Package store persists game sessions: the line-per-tick replay log and its
// columnar parquet archive.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/devnull/blitzbot/protocol"
	"github.com/google/uuid"
)

// ErrMalformedReplay is returned for replay lines that cannot be trusted.
var ErrMalformedReplay = errors.New("malformed replay")

// Record is one replay line: the server message for a tick and the actions
// sent back.
type Record struct {
	GameMessage json.RawMessage   `json:"game_message"`
	Actions     []protocol.Action `json:"actions"`
}

// ReplayWriter appends one Record per tick to a JSONL file.
//
// Each line is synced before Write returns, so a crash loses at most the
// tick in flight.
//
// Format: {"game_message": {...}, "actions": [...]}\n
type ReplayWriter struct {
	mu        sync.Mutex
	path      string
	sessionID string
	file      *os.File
	lines     int
}

// NewReplayPath returns a fresh replay file path under dir, named after a new
// session id.
func NewReplayPath(dir string) (path, sessionID string) {
	sessionID = uuid.NewString()
	return filepath.Join(dir, sessionID+".jsonl"), sessionID
}

// OpenReplayWriter creates or appends to the replay file at path.
func OpenReplayWriter(path string) (*ReplayWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("replay path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create replay dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	return &ReplayWriter{path: path, sessionID: SessionID(path), file: file}, nil
}

func (w *ReplayWriter) Path() string      { return w.path }
func (w *ReplayWriter) SessionID() string { return w.sessionID }

func (w *ReplayWriter) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Write appends the tick's raw server message and the command sent for it.
func (w *ReplayWriter) Write(gameMessage []byte, cmd protocol.Command) error {
	msg := bytes.TrimSpace(gameMessage)
	if !json.Valid(msg) {
		return fmt.Errorf("game message for tick %d is not valid JSON", cmd.Tick)
	}
	actions := cmd.Actions
	if actions == nil {
		actions = []protocol.Action{}
	}
	line, err := json.Marshal(Record{GameMessage: msg, Actions: actions})
	if err != nil {
		return fmt.Errorf("encode replay record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("replay file is closed")
	}
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("append replay: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync replay: %w", err)
	}
	w.lines++
	return nil
}

func (w *ReplayWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Tick is one loaded replay line.
type Tick struct {
	Line   int
	State  *protocol.TeamGameState
	Action *protocol.Action
}

// LoadReplay reads a replay file. Lines with more than one action or with an
// unknown action type fail the whole load with ErrMalformedReplay.
func LoadReplay(path string) ([]Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()
	return ReadReplay(f)
}

// ReadReplay is LoadReplay over a reader.
func ReadReplay(r io.Reader) ([]Tick, error) {
	br := bufio.NewReader(r)
	var ticks []Tick
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read replay line %d: %w", lineNo, err)
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			tick, perr := parseLine(lineNo, trimmed)
			if perr != nil {
				return nil, perr
			}
			ticks = append(ticks, tick)
		}
		if errors.Is(err, io.EOF) {
			return ticks, nil
		}
	}
}

func parseLine(lineNo int, line []byte) (Tick, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Tick{}, fmt.Errorf("%w: line %d: %v", ErrMalformedReplay, lineNo, err)
	}
	if len(rec.GameMessage) == 0 {
		return Tick{}, fmt.Errorf("%w: line %d: missing game_message", ErrMalformedReplay, lineNo)
	}
	if len(rec.Actions) > 1 {
		return Tick{}, fmt.Errorf("%w: line %d: %d actions", ErrMalformedReplay, lineNo, len(rec.Actions))
	}
	state, err := protocol.DecodeGameState(rec.GameMessage)
	if err != nil {
		return Tick{}, fmt.Errorf("%w: line %d: %v", ErrMalformedReplay, lineNo, err)
	}
	tick := Tick{Line: lineNo, State: state}
	if len(rec.Actions) == 1 {
		a := rec.Actions[0]
		if err := a.Validate(); err != nil {
			return Tick{}, fmt.Errorf("%w: line %d: %v", ErrMalformedReplay, lineNo, err)
		}
		tick.Action = &a
	}
	return tick, nil
}

// SessionID derives the session id from a replay file name.
func SessionID(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
