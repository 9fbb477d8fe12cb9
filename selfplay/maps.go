// Package selfplay runs the agent offline against the simulator on known
// maps.
package selfplay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/protocol"
)

// Map is an initial game state saved as a server message.
type Map struct {
	Name    string
	Message *protocol.TeamGameState
}

// State converts the map to the first tick's snapshot.
func (m Map) State() (*game.State, error) {
	s, err := m.Message.State(nil)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", m.Name, err)
	}
	return s, nil
}

// LoadMaps reads every *.json file in dir, sorted by name.
func LoadMaps(dir string) ([]Map, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	sort.Strings(paths)

	maps := make([]Map, 0, len(paths))
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read map: %w", err)
		}
		msg, err := protocol.DecodeGameState(b)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", path, err)
		}
		m := Map{Name: strings.TrimSuffix(filepath.Base(path), ".json"), Message: msg}
		if _, err := m.State(); err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	if len(maps) == 0 {
		return nil, fmt.Errorf("no *.json maps in %s", dir)
	}
	return maps, nil
}
