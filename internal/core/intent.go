package core

// IntentType names a request coming from one of the user-facing surfaces
// (web UI, MQTT, scheduler, patterns).
type IntentType string

const (
	IntentSetPower       IntentType = "setPower"
	IntentSetColor       IntentType = "setColor"
	IntentSetWarm        IntentType = "setWarm"
	IntentSetMode        IntentType = "setMode"
	IntentQueryState     IntentType = "queryState"
	IntentRunPattern     IntentType = "runPattern"
	IntentStopPattern    IntentType = "stopPattern"
	IntentAddSchedule    IntentType = "addSchedule"
	IntentRemoveSchedule IntentType = "removeSchedule"
	IntentGetPatternCode IntentType = "getPatternCode"
	IntentSavePattern    IntentType = "savePatternCode"
	IntentDeletePattern  IntentType = "deletePattern"
)

// Intent is the envelope for incoming requests to change state or perform actions.
type Intent struct {
	Type    IntentType
	Payload map[string]interface{}
}

// IntentChannel is the single channel that the Agent listens to for intents.
type IntentChannel chan Intent
