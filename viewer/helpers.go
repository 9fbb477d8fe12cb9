package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

func withCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func parseDataRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func zipThreats(xs, ys []int32, styles []string) []Threat {
	n := min(len(xs), len(ys))
	out := make([]Threat, 0, n)
	for i := 0; i < n; i++ {
		t := Threat{Position: Point{X: xs[i], Y: ys[i]}}
		if i < len(styles) {
			t.Style = styles[i]
		}
		out = append(out, t)
	}
	return out
}

// DuckDB scans list columns as []any; INTEGER elements arrive as int32 and
// BIGINT ones as int64.
func asInt32Slice(v any) []int32 {
	vv, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int32, 0, len(vv))
	for _, x := range vv {
		out = append(out, int32(asInt64(x)))
	}
	return out
}

func asStringSlice(v any) []string {
	vv, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vv))
	for _, x := range vv {
		s, _ := x.(string)
		out = append(out, s)
	}
	return out
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	default:
		return 0
	}
}
