// Package protocol holds the JSON messages exchanged with the game server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devnull/blitzbot/game"
)

const (
	TypeRegister = "REGISTER"
	TypeCommand  = "COMMAND"
)

// Action types.
const (
	ActionMoveUp    = "MOVE_UP"
	ActionMoveDown  = "MOVE_DOWN"
	ActionMoveLeft  = "MOVE_LEFT"
	ActionMoveRight = "MOVE_RIGHT"
	ActionMoveTo    = "MOVE_TO"
)

var ErrUnknownAction = errors.New("unknown action type")

// TeamGameState is the per-tick message sent by the server.
type TeamGameState struct {
	Type              string          `json:"type"`
	Tick              int             `json:"tick"`
	CurrentTickNumber int             `json:"currentTickNumber"`
	LastTickErrors    []string        `json:"lastTickErrors"`
	Constants         json.RawMessage `json:"constants,omitempty"`
	YourCharacter     YourCharacter   `json:"yourCharacter"`
	Threats           []Threat        `json:"threats"`
	Map               GameMap         `json:"map"`
}

type YourCharacter struct {
	ID         string        `json:"id"`
	TeamID     string        `json:"teamId"`
	Position   game.Position `json:"position"`
	Alive      bool          `json:"alive"`
	SpawnPoint game.Position `json:"spawnPoint"`
	// Distances from the agent to each cell, indexed [x][y]; null when
	// unreachable.
	Distances [][]*int `json:"distances,omitempty"`
}

type Threat struct {
	Position    game.Position `json:"position"`
	Direction   string        `json:"direction"`
	Personality string        `json:"personality"`
	Style       string        `json:"style"`
}

// GameMap tiles are indexed [x][y].
type GameMap struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Tiles  [][]string `json:"tiles"`
}

// Action is a single command. Position is set for MOVE_TO only.
type Action struct {
	Type     string         `json:"type"`
	Position *game.Position `json:"position,omitempty"`
}

// Command is the agent's reply for one tick. It carries at most one action.
type Command struct {
	Type    string   `json:"type"`
	Tick    int      `json:"tick"`
	Actions []Action `json:"actions"`
}

// Register is the handshake. Token is used against the ranked server,
// TeamName for local practice.
type Register struct {
	Type     string `json:"type"`
	Token    string `json:"token,omitempty"`
	TeamName string `json:"teamName,omitempty"`
}

// NewCommand builds the reply for tick with an optional action.
func NewCommand(tick int, action *Action) Command {
	c := Command{Type: TypeCommand, Tick: tick, Actions: []Action{}}
	if action != nil {
		c.Actions = append(c.Actions, *action)
	}
	return c
}

// MoveAction converts a directional move. Idle has no action.
func MoveAction(m game.Move) (Action, bool) {
	d, ok := m.Direction()
	if !ok {
		return Action{}, false
	}
	switch d {
	case game.Up:
		return Action{Type: ActionMoveUp}, true
	case game.Down:
		return Action{Type: ActionMoveDown}, true
	case game.Left:
		return Action{Type: ActionMoveLeft}, true
	default:
		return Action{Type: ActionMoveRight}, true
	}
}

func MoveToAction(p game.Position) Action {
	return Action{Type: ActionMoveTo, Position: &p}
}

// Move returns the directional move of a MOVE_* action.
func (a Action) Move() (game.Move, bool) {
	switch a.Type {
	case ActionMoveUp:
		return game.MoveUp, true
	case ActionMoveDown:
		return game.MoveDown, true
	case ActionMoveLeft:
		return game.MoveLeft, true
	case ActionMoveRight:
		return game.MoveRight, true
	}
	return game.Idle, false
}

// Target returns the destination of a MOVE_TO action.
func (a Action) Target() (game.Position, bool) {
	if a.Type != ActionMoveTo || a.Position == nil {
		return game.Position{}, false
	}
	return *a.Position, true
}

// Validate rejects unknown action types and MOVE_TO without a position.
func (a Action) Validate() error {
	if _, ok := a.Move(); ok {
		return nil
	}
	if a.Type == ActionMoveTo {
		if a.Position == nil {
			return fmt.Errorf("%s without position", ActionMoveTo)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
}

// DecodeGameState parses a server tick message.
func DecodeGameState(b []byte) (*TeamGameState, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty game state message")
	}
	var msg TeamGameState
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, fmt.Errorf("decode game state: %w", err)
	}
	return &msg, nil
}
