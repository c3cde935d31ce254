package server

import "lightfun-controller/internal/core"

// Command represents an incoming JSON command from a WebSocket client.
type Command struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// Intent converts the client command into the agent's envelope.
func (c Command) Intent() core.Intent {
	return core.Intent{Type: core.IntentType(c.Type), Payload: c.Payload}
}

// Message represents an outgoing JSON message sent to WebSocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewMessage creates a new structured Message for broadcasting to clients.
func NewMessage(msgType string, payload interface{}) Message {
	return Message{Type: msgType, Payload: payload}
}

var eventMessageTypes = map[core.EventType]string{
	core.DeviceConnectedEvent: "connection_status",
	core.StateChangedEvent:    "device_state",
	core.PowerChangedEvent:    "power_update",
	core.ColorChangedEvent:    "color_update",
	core.WarmChangedEvent:     "warm_update",
	core.ModeChangedEvent:     "mode_update",
	core.PatternChangedEvent:  "pattern_status",
	core.PatternListEvent:     "pattern_list",
	core.PatternCodeEvent:     "pattern_code",
	core.ScheduleListEvent:    "schedule_list",
}

// forwardedEvents lists the event types pushed to browsers.
func forwardedEvents() []core.EventType {
	types := make([]core.EventType, 0, len(eventMessageTypes))
	for t := range eventMessageTypes {
		types = append(types, t)
	}
	return types
}

// eventMessage maps a bus event onto the client message it becomes.
func eventMessage(ev core.Event) (Message, bool) {
	t, ok := eventMessageTypes[ev.Type]
	if !ok {
		return Message{}, false
	}
	return NewMessage(t, ev.Payload), true
}
