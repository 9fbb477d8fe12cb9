// Package logging configures the process-wide zerolog logger.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Format selects how events are rendered.
type Format string

const (
	// Console is zerolog's coloured human format.
	Console Format = "console"
	// JSON is one compact object per line.
	JSON Format = "json"
	// Pretty is indented JSON, one object per event.
	Pretty Format = "pretty"
)

// Setup builds a logger writing to w, installs it as log.Logger and sets the
// global level. An empty level means info.
func Setup(w io.Writer, level string, format Format) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
		}
		lvl = parsed
	}
	if w == nil {
		w = os.Stderr
	}

	var out io.Writer
	switch format {
	case Console, "":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case JSON:
		out = w
	case Pretty:
		out = NewPrettyJSONWriter(w)
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

// PrettyJSONWriter re-indents each zerolog event. zerolog hands every event
// to Write as a single complete JSON object.
type PrettyJSONWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func NewPrettyJSONWriter(w io.Writer) *PrettyJSONWriter {
	return &PrettyJSONWriter{mu: &sync.Mutex{}, w: w}
}

func (p *PrettyJSONWriter) Write(event []byte) (int, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(event), "", "  "); err != nil {
		// Not JSON: pass through untouched rather than drop it.
		buf.Reset()
		buf.Write(bytes.TrimRight(event, "\n"))
	}
	buf.WriteByte('\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(event), nil
}
