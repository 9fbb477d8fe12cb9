package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// DBCache keeps a DuckDB connection with a view over the archive files and
// rebuilds it periodically so new files show up.
type DBCache struct {
	roots       []string
	refreshRate time.Duration

	mu          sync.RWMutex
	db          *sql.DB
	lastRefresh time.Time
}

func NewDBCache(roots []string, refreshRate time.Duration) *DBCache {
	return &DBCache{roots: roots, refreshRate: refreshRate}
}

// Get returns the cached connection, refreshing it when stale.
func (c *DBCache) Get() (*sql.DB, error) {
	c.mu.RLock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		db := c.db
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		return c.db, nil
	}
	return c.refreshLocked()
}

// Refresh forces the view to be rebuilt.
func (c *DBCache) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.refreshLocked()
	return err
}

func (c *DBCache) refreshLocked() (*sql.DB, error) {
	start := time.Now()
	files, err := findParquetFilesMulti(c.roots)
	if err != nil {
		return nil, err
	}
	newDB, err := openDuckDB(files)
	if err != nil {
		return nil, err
	}
	if c.db != nil {
		_ = c.db.Close()
	}
	c.db = newDB
	c.lastRefresh = time.Now()
	log.Debug().Int("files", len(files)).Dur("took", time.Since(start)).Msg("archive view refreshed")
	return c.db, nil
}

func (c *DBCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func findParquetFiles(root string) ([]string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		if os.IsNotExist(walkErr) {
			return nil, nil
		}
		return nil, walkErr
	}
	return files, nil
}

func findParquetFilesMulti(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, r := range roots {
		files, err := findParquetFiles(r)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func openDuckDB(parquetFiles []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA threads=4")

	if len(parquetFiles) == 0 {
		_, err := db.Exec(`CREATE OR REPLACE VIEW ticks AS
			SELECT * FROM (
				SELECT
					NULL::VARCHAR AS session_id,
					NULL::INTEGER AS tick,
					NULL::INTEGER AS width,
					NULL::INTEGER AS height,
					NULL::INTEGER AS x,
					NULL::INTEGER AS y,
					NULL::BOOLEAN AS alive,
					NULL::INTEGER[] AS threat_x,
					NULL::INTEGER[] AS threat_y,
					NULL::VARCHAR[] AS threat_style,
					NULL::VARCHAR AS action,
					NULL::INTEGER AS target_x,
					NULL::INTEGER AS target_y,
					NULL::INTEGER AS safety,
					NULL::VARCHAR AS source,
					NULL::VARCHAR AS filename
			) WHERE 1=0`)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	arr := make([]string, 0, len(parquetFiles))
	for _, p := range parquetFiles {
		arr = append(arr, "'"+escapeSQLString(p)+"'")
	}
	sqlText := "CREATE OR REPLACE VIEW ticks AS SELECT * FROM read_parquet([" + strings.Join(arr, ",") + "], filename=true, union_by_name=true)"
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

const summarySelect = `SELECT
		session_id,
		any_value(source),
		min(filename),
		any_value(width)::INTEGER,
		any_value(height)::INTEGER,
		min(tick)::INTEGER,
		max(tick)::INTEGER,
		count(*)::INTEGER,
		arg_max(alive, tick),
		coalesce(min(safety) FILTER (WHERE safety >= 0), -1)::INTEGER
	FROM ticks`

func scanSummary(sc interface{ Scan(...any) error }) (SessionSummary, error) {
	var s SessionSummary
	err := sc.Scan(&s.SessionID, &s.Source, &s.SourceFile, &s.Width, &s.Height,
		&s.FirstTick, &s.LastTick, &s.TickCount, &s.Survived, &s.MinSafety)
	s.Score = (s.LastTick + 1) * 5
	return s, err
}

func querySessionsTotal(ctx context.Context, db *sql.DB) (int64, error) {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT session_id) FROM ticks`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func querySessions(ctx context.Context, db *sql.DB, limit, offset int) ([]SessionSummary, error) {
	rows, err := db.QueryContext(ctx,
		summarySelect+` GROUP BY session_id ORDER BY max(tick) DESC, session_id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SessionSummary, 0, limit)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func querySession(ctx context.Context, db *sql.DB, id string) (SessionSummary, error) {
	s, err := scanSummary(db.QueryRowContext(ctx, summarySelect+` WHERE session_id = ? GROUP BY session_id`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func queryTicks(ctx context.Context, db *sql.DB, id string) ([]Tick, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tick::INTEGER, x::INTEGER, y::INTEGER, alive, threat_x, threat_y, threat_style,
			coalesce(action, ''), target_x::INTEGER, target_y::INTEGER, safety::INTEGER
		 FROM ticks
		 WHERE session_id = ?
		 ORDER BY tick ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ticks := make([]Tick, 0, 256)
	for rows.Next() {
		var t Tick
		var txAny, tyAny, styleAny any
		var targetX, targetY int32
		if err := rows.Scan(&t.Tick, &t.Position.X, &t.Position.Y, &t.Alive, &txAny, &tyAny, &styleAny,
			&t.Action, &targetX, &targetY, &t.Safety); err != nil {
			return nil, err
		}
		t.Threats = zipThreats(asInt32Slice(txAny), asInt32Slice(tyAny), asStringSlice(styleAny))
		if targetX >= 0 && targetY >= 0 {
			t.Target = &Point{X: targetX, Y: targetY}
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}
