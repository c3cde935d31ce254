package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind identifies what a Command changes on the bulb.
type Kind int

const (
	KindSetColor Kind = iota
	KindSetOnOff
	KindSetWarmBrightness
	KindSetMode
	KindQueryState
)

func (k Kind) String() string {
	switch k {
	case KindSetColor:
		return "SetColor"
	case KindSetOnOff:
		return "SetOnOff"
	case KindSetWarmBrightness:
		return "SetWarmBrightness"
	case KindSetMode:
		return "SetMode"
	case KindQueryState:
		return "QueryState"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Singleton reports whether at most one pending command of this kind may exist.
func (k Kind) Singleton() bool {
	return k == KindSetOnOff || k == KindSetMode
}

// Mode is one of the preset effects built into the bulb.
type Mode int

const (
	ModeDisco Mode = iota
	ModeCool
	ModeSoft
)

func (m Mode) String() string {
	switch m {
	case ModeDisco:
		return "disco"
	case ModeCool:
		return "cool"
	case ModeSoft:
		return "soft"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts a mode name in any case ("Disco", "cool", ...).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disco":
		return ModeDisco, nil
	case "cool":
		return ModeCool, nil
	case "soft":
		return ModeSoft, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// RGB is a 24-bit color, 0xRRGGBB.
type RGB uint32

// NewRGB builds a color from its channels. Values are masked to 8 bits.
func NewRGB(r, g, b int) RGB {
	return RGB(uint32(r&0xFF)<<16 | uint32(g&0xFF)<<8 | uint32(b&0xFF))
}

func (c RGB) R() int { return int(c>>16) & 0xFF }
func (c RGB) G() int { return int(c>>8) & 0xFF }
func (c RGB) B() int { return int(c) & 0xFF }

// Hex returns the color as "#RRGGBB".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%06X", uint32(c)&0xFFFFFF)
}

// Command is a pending change of bulb state. Only the payload field that
// matches Kind is meaningful.
type Command struct {
	ID   string
	Kind Kind
	// Time is a monotonic timestamp in milliseconds.
	Time int64

	Color      RGB
	On         bool
	Brightness int
	Mode       Mode
}

// NewCommand allocates a command of the given kind stamped with ts.
func NewCommand(kind Kind, ts int64) *Command {
	return &Command{
		ID:   uuid.NewString(),
		Kind: kind,
		Time: ts,
	}
}

func (c *Command) String() string {
	var payload string
	switch c.Kind {
	case KindSetColor:
		payload = c.Color.Hex()
	case KindSetOnOff:
		payload = fmt.Sprintf("%t", c.On)
	case KindSetWarmBrightness:
		payload = fmt.Sprintf("%d%%", c.Brightness)
	case KindSetMode:
		payload = c.Mode.String()
	}
	if payload == "" {
		return fmt.Sprintf("%s@%d", c.Kind, c.Time)
	}
	return fmt.Sprintf("%s(%s)@%d", c.Kind, payload, c.Time)
}
