package core

import "sync"

// ConnectionState is the executor's view of the gateway link.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// LightState is the bulb state reported by the gateway in reply to a query.
type LightState struct {
	IsOn  bool
	Color RGB
}

// State holds the agent's last known view of the bulb. Intents update it
// optimistically, query replies overwrite it.
type State struct {
	mu             sync.RWMutex
	IsConnected    bool
	Power          bool
	Color          RGB
	Warm           int
	Mode           string
	RunningPattern string
}

// NewState creates a new State instance.
func NewState() *State {
	return &State{}
}

// Clone returns a snapshot of the current state for safe reading.
func (s *State) Clone() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		IsConnected:    s.IsConnected,
		Power:          s.Power,
		Color:          s.Color,
		Warm:           s.Warm,
		Mode:           s.Mode,
		RunningPattern: s.RunningPattern,
	}
}

// SetConnection updates connection state.
func (s *State) SetConnection(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsConnected = connected
}

// SetPower updates the power state.
func (s *State) SetPower(power bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Power = power
}

// SetColor updates the color and leaves warm/mode behind.
func (s *State) SetColor(c RGB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Color = c
	s.Mode = ""
}

// SetWarm updates the warm white brightness.
func (s *State) SetWarm(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Warm = v
	s.Mode = ""
}

// SetMode updates the active preset mode.
func (s *State) SetMode(m string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mode = m
}

// Apply overwrites power and color with what the bulb reported.
func (s *State) Apply(ls LightState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Power = ls.IsOn
	s.Color = ls.Color
}

// SetRunningPattern updates the running pattern state.
func (s *State) SetRunningPattern(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RunningPattern = pattern
}
