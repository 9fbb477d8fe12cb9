package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/safety"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const archiveSchema = "archive_tick_v1"

// ArchiveTickRow is a single (session, tick) snapshot intended for long-term
// storage and querying.
//
// Action is the wire action type, empty when none was sent. TargetX/TargetY
// are -1 unless Action is MOVE_TO. Safety is the distance from the agent to
// the nearest threat, -1 when no threat can reach it.
type ArchiveTickRow struct {
	SessionID string `parquet:"session_id,dict"`
	Tick      int32  `parquet:"tick"`
	Width     int32  `parquet:"width"`
	Height    int32  `parquet:"height"`

	X     int32 `parquet:"x"`
	Y     int32 `parquet:"y"`
	Alive bool  `parquet:"alive"`

	ThreatX     []int32  `parquet:"threat_x"`
	ThreatY     []int32  `parquet:"threat_y"`
	ThreatStyle []string `parquet:"threat_style"`

	Action  string `parquet:"action,dict"`
	TargetX int32  `parquet:"target_x"`
	TargetY int32  `parquet:"target_y"`
	Safety  int32  `parquet:"safety"`

	Source string `parquet:"source,dict"`
}

// ArchiveRows converts loaded replay ticks to archive rows.
func ArchiveRows(sessionID, source string, ticks []Tick) ([]ArchiveTickRow, error) {
	rows := make([]ArchiveTickRow, 0, len(ticks))
	var prev *game.State
	for _, t := range ticks {
		s, err := t.State.State(prev)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", t.Line, err)
		}
		row := NewArchiveRow(sessionID, source, s)
		if t.Action != nil {
			row.Action = t.Action.Type
			if p, ok := t.Action.Target(); ok {
				row.TargetX, row.TargetY = int32(p.X), int32(p.Y)
			}
		}
		rows = append(rows, row)
		prev = s
	}
	return rows, nil
}

// NewArchiveRow snapshots s with no action.
func NewArchiveRow(sessionID, source string, s *game.State) ArchiveTickRow {
	row := ArchiveTickRow{
		SessionID:   sessionID,
		Tick:        int32(s.Tick),
		Width:       int32(s.Grid.Width),
		Height:      int32(s.Grid.Height),
		X:           int32(s.Position.X),
		Y:           int32(s.Position.Y),
		Alive:       s.Alive,
		ThreatX:     make([]int32, len(s.Threats)),
		ThreatY:     make([]int32, len(s.Threats)),
		ThreatStyle: make([]string, len(s.Threats)),
		TargetX:     -1,
		TargetY:     -1,
		Safety:      int32(safety.Compute(s.Grid, s.ThreatPositions()).At(s.Position)),
		Source:      source,
	}
	for i, th := range s.Threats {
		row.ThreatX[i] = int32(th.Position.X)
		row.ThreatY[i] = int32(th.Position.Y)
		row.ThreatStyle[i] = string(th.Style)
	}
	return row
}

func parquetOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", archiveSchema),
	}
}

// WriteArchiveParquet writes rows to outPath through a temp file, so readers
// never observe a partial archive.
func WriteArchiveParquet(outPath string, rows []ArchiveTickRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, parquetOptions()...); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// ReadArchiveParquet loads every row of an archive file.
func ReadArchiveParquet(path string) ([]ArchiveTickRow, error) {
	rows, err := parquet.ReadFile[ArchiveTickRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}

func batchName() string {
	return fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
}
