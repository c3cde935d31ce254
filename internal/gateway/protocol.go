package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lightfun-controller/internal/core"
)

// Delimiter terminates every request and reply on the wire.
const Delimiter = "$"

const (
	ReqColor     = "/color"
	ReqIsOn      = "/ison"
	ReqKeepalive = ""

	ReplyOn         = "on"
	ReplyOff        = "off"
	ReplyAlive      = "+"
	ReplyBadRequest = "BAD REQUEST"
	ReplyOffline    = "OFFLINE"
)

var (
	ErrBadRequest   = errors.New("gateway rejected request")
	ErrOffline      = errors.New("bulb offline")
	ErrReplyTimeout = errors.New("no reply delimiter within read attempts")
	ErrBadColor     = errors.New("cannot decode color reply")
	ErrBadPower     = errors.New("cannot decode power reply")
)

var encoders = map[core.Kind]func(*core.Command) []string{
	core.KindSetColor: func(c *core.Command) []string {
		return []string{fmt.Sprintf("/rgb?0x%06x", uint32(c.Color)&0xFFFFFF)}
	},
	core.KindSetWarmBrightness: func(c *core.Command) []string {
		return []string{fmt.Sprintf("/warm?%d", c.Brightness)}
	},
	core.KindSetOnOff: func(c *core.Command) []string {
		if c.On {
			return []string{"/on"}
		}
		return []string{"/off"}
	},
	core.KindSetMode: func(c *core.Command) []string {
		return []string{"/" + c.Mode.String()}
	},
	core.KindQueryState: func(*core.Command) []string {
		return []string{ReqColor, ReqIsOn}
	},
}

// Encode maps a command to the wire requests that carry it out, in order.
func Encode(cmd *core.Command) ([]string, error) {
	enc, ok := encoders[cmd.Kind]
	if !ok {
		return nil, fmt.Errorf("no wire encoding for %s", cmd.Kind)
	}
	return enc(cmd), nil
}

// checkReply turns the reserved reply bodies into errors.
func checkReply(reply string) error {
	switch reply {
	case ReplyBadRequest:
		return ErrBadRequest
	case ReplyOffline:
		return ErrOffline
	}
	return nil
}

// ParseColor decodes a "/color" reply: a two character prefix followed by six
// hex digits, e.g. "0x1a2b3c".
func ParseColor(reply string) (core.RGB, error) {
	if len(reply) != 8 {
		return 0, fmt.Errorf("%w: %q", ErrBadColor, reply)
	}
	v, err := strconv.ParseUint(reply[2:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadColor, reply)
	}
	return core.RGB(v), nil
}

// ParsePower decodes an "/ison" reply.
func ParsePower(reply string) (bool, error) {
	switch strings.TrimSpace(reply) {
	case ReplyOn:
		return true, nil
	case ReplyOff:
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrBadPower, reply)
}

// ParseState builds a LightState from the "/color" and "/ison" replies.
func ParseState(color, power string) (core.LightState, error) {
	c, err := ParseColor(color)
	if err != nil {
		return core.LightState{}, err
	}
	on, err := ParsePower(power)
	if err != nil {
		return core.LightState{}, err
	}
	return core.LightState{IsOn: on, Color: c}, nil
}

// isRejection reports whether err is a protocol-level refusal that leaves the
// connection usable.
func isRejection(err error) bool {
	return errors.Is(err, ErrBadRequest) || errors.Is(err, ErrOffline)
}
