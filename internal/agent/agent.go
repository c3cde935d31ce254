// Package agent wires the light controller, the gateway executor and the
// user-facing surfaces together.
package agent

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"lightfun-controller/internal/config"
	"lightfun-controller/internal/core"
	"lightfun-controller/internal/gateway"
	"lightfun-controller/internal/light"
	"lightfun-controller/internal/lua"
	"lightfun-controller/internal/mqtt"
	"lightfun-controller/internal/queue"
	"lightfun-controller/internal/scheduler"
	"lightfun-controller/internal/server"
)

type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
	wg     sync.WaitGroup

	state    *core.State
	eventBus *core.EventBus
	intents  core.IntentChannel
	// tasks carries executor callbacks onto the orchestrator loop.
	tasks chan func()

	light      *light.Controller
	executor   *gateway.Executor
	luaEngine  *lua.Engine
	scheduler  *scheduler.Scheduler
	server     *server.Server
	mqttClient *mqtt.Client
}

func NewAgent(cfg *config.Config) (*Agent, error) {
	timings, err := cfg.GatewayTimings()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Agent{
		ctx:      ctx,
		cancel:   cancel,
		config:   cfg,
		state:    core.NewState(),
		eventBus: core.NewEventBus(),
		intents:  make(core.IntentChannel, 20),
		tasks:    make(chan func(), 20),
	}

	q := queue.New()
	a.light = light.NewController(q)
	a.executor = gateway.NewExecutor(cfg.Gateway.Host, cfg.Gateway.Port, q, a, a.post, gateway.Options{
		DialTimeout:       timings.DialTimeout,
		RetryInterval:     timings.RetryInterval,
		PollInterval:      timings.PollInterval,
		KeepaliveInterval: timings.KeepaliveInterval,
		ReadTimeout:       timings.ReadTimeout,
		ReadAttempts:      cfg.Gateway.ReadAttempts,
		RateLimit:         cfg.Gateway.RateLimit,
		RateBurst:         cfg.Gateway.RateBurst,
	})

	a.luaEngine = lua.NewEngine(a.light, cfg.PatternsDir, a.eventBus)
	a.scheduler = scheduler.NewScheduler(a.intents, cfg.SchedulesFile)

	a.server = server.NewServer(
		a.luaEngine,
		a.eventBus,
		a.state,
		a.scheduler,
		a.intents,
		cfg.Server.Port,
		cfg.Server.WebFilesDir,
		cfg.Server.AllowedOrigins,
	)

	a.mqttClient = mqtt.NewClient(cfg, a.eventBus, a.intents, a.luaEngine.GetPatternList)

	return a, nil
}

// Run starts every component and blocks in the orchestrator loop until
// Shutdown.
func (a *Agent) Run() {
	patternSub := a.eventBus.Subscribe(core.PatternChangedEvent)
	defer a.eventBus.Unsubscribe(patternSub, core.PatternChangedEvent)

	if a.mqttClient != nil {
		go func() {
			if err := a.mqttClient.Connect(); err != nil {
				log.Printf("[Agent] MQTT Setup Error: %v", err)
			}
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.executor.Run(a.ctx)
	}()

	a.scheduler.Start()

	log.Printf("[Agent] Web UI on http://localhost:%s, gateway %s", a.config.Server.Port, a.executor.Addr())
	go func() {
		if err := a.server.ListenAndServe(); err != nil {
			log.Printf("[Agent] Server error: %v", err)
		}
	}()

	log.Println("[Agent] Orchestrator ready.")
	for {
		select {
		case <-a.ctx.Done():
			log.Println("[Agent] Orchestrator shutting down...")
			return
		case fn := <-a.tasks:
			fn()
		case intent := <-a.intents:
			a.handleIntent(intent)
		case ev := <-patternSub:
			if p, ok := ev.Payload.(map[string]interface{}); ok {
				if name, ok := p["running"].(string); ok {
					a.state.SetRunningPattern(name)
				}
			}
		}
	}
}

// post hands fn to the orchestrator loop. Used by the executor so that
// receiver callbacks never run on the network goroutine.
func (a *Agent) post(fn func()) {
	select {
	case a.tasks <- fn:
	case <-a.ctx.Done():
	}
}

// OnConnect asks for the bulb state as soon as the link is up.
func (a *Agent) OnConnect() {
	log.Println("[Agent] Gateway connected, querying bulb state.")
	a.state.SetConnection(true)
	a.light.QueryState()
	a.eventBus.Publish(core.Event{Type: core.DeviceConnectedEvent, Payload: map[string]interface{}{"connected": true}})
}

func (a *Agent) OnDisconnect() {
	log.Println("[Agent] Gateway disconnected.")
	a.state.SetConnection(false)
	a.eventBus.Publish(core.Event{Type: core.DeviceConnectedEvent, Payload: map[string]interface{}{"connected": false}})
}

func (a *Agent) OnInitState(ls core.LightState) {
	log.Printf("[Agent] Bulb reports power=%t color=%s", ls.IsOn, ls.Color.Hex())
	a.state.Apply(ls)
	a.publishState()
}

func (a *Agent) publishState() {
	st := a.state.Clone()
	payload := server.StatePayload(st)
	payload["rgb"] = st.Color
	a.eventBus.Publish(core.Event{Type: core.StateChangedEvent, Payload: payload})
}

func (a *Agent) handleIntent(in core.Intent) {
	log.Printf("[Agent] Handling intent: %s with payload: %v", in.Type, in.Payload)

	current := a.state.Clone()

	switch in.Type {
	case core.IntentSetPower:
		isOn, _ := in.Payload["isOn"].(bool)
		if current.Power != isOn {
			a.luaEngine.StopCurrentPattern()
		}
		a.light.SetOnOff(isOn)
		a.state.SetPower(isOn)
		a.eventBus.Publish(core.Event{Type: core.PowerChangedEvent, Payload: map[string]interface{}{"isOn": isOn}})

	case core.IntentSetColor:
		c := core.NewRGB(intArg(in.Payload, "r", 0), intArg(in.Payload, "g", 0), intArg(in.Payload, "b", 0))
		if current.Color != c {
			a.luaEngine.StopCurrentPattern()
		}
		a.light.SetColor(c)
		a.state.SetColor(c)
		a.eventBus.Publish(core.Event{Type: core.ColorChangedEvent, Payload: map[string]interface{}{
			"r": c.R(), "g": c.G(), "b": c.B(), "hex": c.Hex(), "rgb": c,
		}})

	case core.IntentSetWarm:
		v := intArg(in.Payload, "value", 100)
		a.luaEngine.StopCurrentPattern()
		a.light.SetWarmBrightness(v)
		a.state.SetWarm(v)
		a.eventBus.Publish(core.Event{Type: core.WarmChangedEvent, Payload: map[string]interface{}{"value": v}})

	case core.IntentSetMode:
		name, _ := in.Payload["mode"].(string)
		mode, err := core.ParseMode(name)
		if err != nil {
			log.Printf("[Agent] %v", err)
			return
		}
		a.luaEngine.StopCurrentPattern()
		a.light.SetMode(mode)
		a.state.SetMode(mode.String())
		a.eventBus.Publish(core.Event{Type: core.ModeChangedEvent, Payload: map[string]interface{}{"mode": mode.String()}})

	case core.IntentQueryState:
		a.light.QueryState()

	case core.IntentRunPattern:
		if name, ok := in.Payload["name"].(string); ok {
			a.luaEngine.RunPattern(name)
		}

	case core.IntentStopPattern:
		a.luaEngine.StopCurrentPattern()

	case core.IntentAddSchedule:
		spec, _ := in.Payload["spec"].(string)
		command, _ := in.Payload["command"].(string)
		if _, err := a.scheduler.Add(spec, command); err != nil {
			log.Printf("[Agent] Cannot add schedule: %v", err)
			return
		}
		a.eventBus.Publish(core.Event{Type: core.ScheduleListEvent, Payload: a.scheduler.GetAll()})

	case core.IntentRemoveSchedule:
		id, ok := scheduleID(in.Payload["id"])
		if !ok {
			return
		}
		a.scheduler.Remove(id)
		a.eventBus.Publish(core.Event{Type: core.ScheduleListEvent, Payload: a.scheduler.GetAll()})

	case core.IntentGetPatternCode:
		if name, ok := in.Payload["name"].(string); ok {
			code, err := a.luaEngine.GetPatternCode(name)
			if err != nil {
				log.Printf("[Agent] Error getting pattern code: %v", err)
				return
			}
			a.eventBus.Publish(core.Event{Type: core.PatternCodeEvent, Payload: map[string]string{"name": name, "code": code}})
		}

	case core.IntentSavePattern:
		name, nameOk := in.Payload["name"].(string)
		code, codeOk := in.Payload["code"].(string)
		if nameOk && codeOk {
			if err := a.luaEngine.SavePatternCode(name, code); err != nil {
				log.Printf("[Agent] Error saving pattern: %v", err)
				return
			}
			a.publishPatternList()
		}

	case core.IntentDeletePattern:
		if name, ok := in.Payload["name"].(string); ok {
			if err := a.luaEngine.DeletePattern(name); err != nil {
				log.Printf("[Agent] Error deleting pattern '%s': %v", name, err)
				return
			}
			a.publishPatternList()
		}

	default:
		log.Printf("[Agent] Unknown intent type: %s", in.Type)
	}
}

func (a *Agent) publishPatternList() {
	patterns, err := a.luaEngine.GetPatternList()
	if err != nil {
		log.Printf("[Agent] Error listing patterns: %v", err)
		return
	}
	a.eventBus.Publish(core.Event{Type: core.PatternListEvent, Payload: patterns})
}

// intArg reads a JSON number from the payload.
func intArg(p map[string]interface{}, key string, def int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// scheduleID accepts the id either as a string or a JSON number.
func scheduleID(v interface{}) (int, bool) {
	switch id := v.(type) {
	case string:
		n, err := strconv.Atoi(id)
		return n, err == nil
	case float64:
		return int(id), true
	}
	return 0, false
}

// Shutdown stops every component and waits for the executor to close the
// gateway connection.
func (a *Agent) Shutdown() {
	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("[Agent] Server shutdown: %v", err)
	}

	a.mqttClient.Disconnect()
	a.luaEngine.Close()
	a.cancel()
	a.wg.Wait()
}
