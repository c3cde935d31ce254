package mqtt

import (
	"fmt"
	"strconv"
	"strings"

	"lightfun-controller/internal/core"
)

var commandTopics = []string{
	"power/set",
	"color/set",
	"warm/set",
	"effect/set",
	"pattern/run",
	"pattern/stop",
	"state/get",
}

var stateEvents = []core.EventType{
	core.DeviceConnectedEvent,
	core.StateChangedEvent,
	core.PowerChangedEvent,
	core.ColorChangedEvent,
	core.WarmChangedEvent,
	core.ModeChangedEvent,
	core.PatternChangedEvent,
}

// intentFromMessage maps a command topic (without prefix) and payload to an
// intent.
func intentFromMessage(subtopic, payload string) (core.Intent, bool) {
	payload = strings.TrimSpace(payload)

	switch subtopic {
	case "power/set":
		switch strings.ToLower(payload) {
		case "on", "true", "1":
			return powerIntent(true), true
		case "off", "false", "0":
			return powerIntent(false), true
		}
	case "color/set":
		if c, ok := parseColor(payload); ok {
			return core.Intent{Type: core.IntentSetColor, Payload: map[string]interface{}{
				"r": float64(c.R()), "g": float64(c.G()), "b": float64(c.B()),
			}}, true
		}
	case "warm/set":
		if v, err := strconv.Atoi(payload); err == nil && v >= 0 && v <= 100 {
			return core.Intent{Type: core.IntentSetWarm, Payload: map[string]interface{}{"value": float64(v)}}, true
		}
	case "effect/set":
		if m, err := core.ParseMode(payload); err == nil {
			return core.Intent{Type: core.IntentSetMode, Payload: map[string]interface{}{"mode": m.String()}}, true
		}
		if strings.HasSuffix(payload, ".lua") {
			return core.Intent{Type: core.IntentRunPattern, Payload: map[string]interface{}{"name": payload}}, true
		}
	case "pattern/run":
		if payload != "" {
			return core.Intent{Type: core.IntentRunPattern, Payload: map[string]interface{}{"name": payload}}, true
		}
	case "pattern/stop":
		return core.Intent{Type: core.IntentStopPattern}, true
	case "state/get":
		return core.Intent{Type: core.IntentQueryState}, true
	}
	return core.Intent{}, false
}

func powerIntent(on bool) core.Intent {
	return core.Intent{Type: core.IntentSetPower, Payload: map[string]interface{}{"isOn": on}}
}

// parseColor accepts "r,g,b" or "#RRGGBB"/"RRGGBB".
func parseColor(payload string) (core.RGB, bool) {
	if strings.Contains(payload, ",") {
		parts := strings.Split(payload, ",")
		if len(parts) != 3 {
			return 0, false
		}
		var ch [3]int
		for i, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || v < 0 || v > 255 {
				return 0, false
			}
			ch[i] = v
		}
		return core.NewRGB(ch[0], ch[1], ch[2]), true
	}

	hex := strings.TrimPrefix(payload, "#")
	if len(hex) != 6 {
		return 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	return core.RGB(v), true
}

type publication struct {
	subtopic string
	payload  interface{}
}

// statePublications lists the state topics an event updates.
func statePublications(ev core.Event) []publication {
	p, _ := ev.Payload.(map[string]interface{})

	switch ev.Type {
	case core.DeviceConnectedEvent:
		if connected, ok := p["connected"].(bool); ok {
			status := "disconnected"
			if connected {
				status = "connected"
			}
			return []publication{{"connection", status}}
		}
	case core.PowerChangedEvent:
		if on, ok := p["isOn"].(bool); ok {
			return []publication{{"power/state", onOff(on)}}
		}
	case core.ColorChangedEvent:
		if c, ok := p["rgb"].(core.RGB); ok {
			return []publication{{"color/state", rgbString(c)}}
		}
	case core.WarmChangedEvent:
		if v, ok := p["value"].(int); ok {
			return []publication{{"warm/state", v}}
		}
	case core.ModeChangedEvent:
		if m, ok := p["mode"].(string); ok {
			return []publication{{"effect/state", effectName(m)}}
		}
	case core.PatternChangedEvent:
		if name, ok := p["running"].(string); ok {
			return []publication{{"pattern/state", name}}
		}
	case core.StateChangedEvent:
		var out []publication
		if on, ok := p["isOn"].(bool); ok {
			out = append(out, publication{"power/state", onOff(on)})
		}
		if c, ok := p["rgb"].(core.RGB); ok {
			out = append(out, publication{"color/state", rgbString(c)})
		}
		return out
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func rgbString(c core.RGB) string {
	return fmt.Sprintf("%d,%d,%d", c.R(), c.G(), c.B())
}

// effectName renders a mode the way Home Assistant lists it ("Disco").
func effectName(mode string) string {
	if mode == "" {
		return ""
	}
	return strings.ToUpper(mode[:1]) + mode[1:]
}

// safeObjectID strips everything Home Assistant does not accept in an id.
func safeObjectID(clientID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-':
			return r
		}
		return -1
	}, clientID)
}

func discoveryPayload(prefix, safeID string, patterns []string) map[string]interface{} {
	effects := []string{"Disco", "Cool", "Soft"}
	effects = append(effects, patterns...)

	return map[string]interface{}{
		"name":      "Bulb",
		"unique_id": safeID + "_light",
		"object_id": safeID,
		"icon":      "mdi:lightbulb",

		"command_topic": prefix + "/power/set",
		"state_topic":   prefix + "/power/state",

		"rgb_command_topic": prefix + "/color/set",
		"rgb_state_topic":   prefix + "/color/state",

		"white_command_topic": prefix + "/warm/set",
		"white_scale":         100,

		"effect_command_topic": prefix + "/effect/set",
		"effect_state_topic":   prefix + "/effect/state",
		"effect_list":          effects,

		"availability_mode": "all",
		"availability": []map[string]string{
			{
				"topic":                 prefix + "/availability",
				"payload_available":     "online",
				"payload_not_available": "offline",
			},
			{
				"topic":                 prefix + "/connection",
				"payload_available":     "connected",
				"payload_not_available": "disconnected",
			},
		},

		"device": map[string]interface{}{
			"identifiers":  []string{safeID},
			"name":         "LightFun Bulb",
			"manufacturer": "LightFun",
			"model":        "Gateway Bulb",
		},
	}
}
