package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/protocol"
	"github.com/devnull/blitzbot/store"
	"github.com/stretchr/testify/require"
)

func archive(t *testing.T, dir, id string, ticks int, caught bool) {
	t.Helper()
	s := &game.State{
		Tick:     1,
		Position: game.Position{X: 3, Y: 0},
		Alive:    true,
		Grid:     game.Open(4, 2),
		Threats:  []game.Threat{game.NewThreat(game.Position{X: 0, Y: 0}, game.Right, game.Bull, "")},
	}
	var rows []store.ArchiveTickRow
	for i := 0; i < ticks; i++ {
		s.Tick = i + 1
		s.Alive = !(caught && i == ticks-1)
		row := store.NewArchiveRow(id, "live", s)
		if i == 0 {
			row.Action = protocol.ActionMoveTo
			row.TargetX, row.TargetY = 3, 1
		}
		rows = append(rows, row)
	}
	require.NoError(t, store.WriteArchiveParquet(filepath.Join(dir, id+".parquet"), rows))
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code == http.StatusOK && out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestSessionsAPI(t *testing.T) {
	dir := t.TempDir()
	archive(t, dir, "alpha", 3, false)
	archive(t, dir, "beta", 5, true)

	cache := NewDBCache([]string{dir}, time.Minute)
	defer cache.Close()
	h := (&server{cache: cache}).routes()

	var list SessionsResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/sessions", &list))
	require.Equal(t, int64(2), list.Total)
	require.Len(t, list.Sessions, 2)
	beta := list.Sessions[0]
	require.Equal(t, "beta", beta.SessionID)
	require.Equal(t, int32(5), beta.TickCount)
	require.Equal(t, int32(5), beta.LastTick)
	require.Equal(t, int32(30), beta.Score)
	require.False(t, beta.Survived)
	require.Equal(t, int32(3), beta.MinSafety)
	require.True(t, list.Sessions[1].Survived)

	var one SessionResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/sessions/alpha", &one))
	require.Equal(t, "alpha", one.Summary.SessionID)
	require.Len(t, one.Ticks, 3)
	first := one.Ticks[0]
	require.Equal(t, protocol.ActionMoveTo, first.Action)
	require.Equal(t, &Point{X: 3, Y: 1}, first.Target)
	require.Equal(t, []Threat{{Position: Point{X: 0, Y: 0}, Style: "bull"}}, first.Threats)
	require.Nil(t, one.Ticks[1].Target)

	require.Equal(t, http.StatusNotFound, get(t, h, "/api/sessions/nope", nil))

	var page SessionsResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/sessions?limit=1&offset=1", &page))
	require.Len(t, page.Sessions, 1)
	require.Equal(t, "alpha", page.Sessions[0].SessionID)
}

func TestEmptyArchive(t *testing.T) {
	cache := NewDBCache([]string{filepath.Join(t.TempDir(), "missing")}, time.Minute)
	defer cache.Close()
	h := (&server{cache: cache}).routes()

	var list SessionsResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/sessions", &list))
	require.Zero(t, list.Total)
	require.Empty(t, list.Sessions)
}

func TestParseDataRoots(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, parseDataRoots(" a, b,,a "))
}

func TestListConversions(t *testing.T) {
	require.Equal(t, []int32{1, 2, 0}, asInt32Slice([]any{int32(1), int64(2), nil}))
	require.Nil(t, asInt32Slice(nil))
	require.Equal(t, []string{"bull", ""}, asStringSlice([]any{"bull", nil}))
	require.Nil(t, asStringSlice("bull"))
}
