package main

// SessionSummary is one row of the sessions list.
type SessionSummary struct {
	SessionID  string `json:"session_id"`
	Source     string `json:"source"`
	SourceFile string `json:"file"`
	Width      int32  `json:"width"`
	Height     int32  `json:"height"`
	FirstTick  int32  `json:"first_tick"`
	LastTick   int32  `json:"last_tick"`
	TickCount  int32  `json:"tick_count"`
	Survived   bool   `json:"survived"`
	// MinSafety is the closest any threat came, -1 when none could reach.
	MinSafety int32 `json:"min_safety"`
	Score     int32 `json:"score"`
}

// SessionsResponse is the paginated response for /api/sessions.
type SessionsResponse struct {
	Total    int64            `json:"total"`
	Sessions []SessionSummary `json:"sessions"`
}

// Point is a board coordinate.
type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type Threat struct {
	Position Point  `json:"position"`
	Style    string `json:"style"`
}

// Tick is one step of a session timeline.
type Tick struct {
	Tick     int32    `json:"tick"`
	Position Point    `json:"position"`
	Alive    bool     `json:"alive"`
	Threats  []Threat `json:"threats"`
	Action   string   `json:"action"`
	Target   *Point   `json:"target,omitempty"`
	Safety   int32    `json:"safety"`
}

// SessionResponse is the response for /api/sessions/{id}.
type SessionResponse struct {
	Summary SessionSummary `json:"summary"`
	Ticks   []Tick         `json:"ticks"`
}
