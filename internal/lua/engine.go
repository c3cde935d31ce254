// Package lua runs user pattern scripts against the light controller.
//
// Scripts call set_color/set_warm/set_power/set_mode at whatever rate they
// like; the controller's coalescing keeps the gateway from being flooded.
package lua

import (
	"context"
	"log"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"lightfun-controller/internal/core"
)

// Light is the subset of the light controller scripts can drive.
type Light interface {
	SetColor(color core.RGB)
	SetWarmBrightness(brightness int)
	SetOnOff(on bool)
	SetMode(mode core.Mode)
}

type jobKind int

const (
	jobRunFile jobKind = iota
	jobRunString
	jobStop
)

type job struct {
	kind jobKind
	name string
	// source is a file path for jobRunFile and Lua code for jobRunString.
	source string
}

// Engine runs at most one script at a time on a single worker goroutine.
// Starting a script stops the previous one.
type Engine struct {
	light       Light
	patternsDir string
	eventBus    *core.EventBus

	jobs      chan job
	closeOnce sync.Once
	done      chan struct{}
}

// NewEngine creates a new Lua engine and starts its background worker.
func NewEngine(light Light, patternsDir string, eb *core.EventBus) *Engine {
	e := &Engine{
		light:       light,
		patternsDir: patternsDir,
		eventBus:    eb,
		jobs:        make(chan job, 10),
		done:        make(chan struct{}),
	}
	go e.worker()
	return e
}

// Close stops any running script and the worker. The engine must not be
// used afterwards.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.jobs)
		<-e.done
	})
}

func (e *Engine) worker() {
	defer close(e.done)

	var cancel context.CancelFunc
	var finished chan struct{}

	stop := func() {
		if cancel == nil {
			return
		}
		cancel()
		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			log.Println("[Lua] Timeout waiting for script to stop")
		}
		cancel = nil
		finished = nil
	}
	defer stop()

	for j := range e.jobs {
		stop()
		if j.kind == jobStop {
			continue
		}

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		finished = make(chan struct{})

		go func(j job, ctx context.Context, finished chan struct{}) {
			defer close(finished)
			e.run(ctx, j)
		}(j, ctx, finished)
	}
}

// StopCurrentPattern stops the running script, if any.
func (e *Engine) StopCurrentPattern() {
	select {
	case e.jobs <- job{kind: jobStop}:
	default:
		log.Println("[Lua] Job queue full, could not send stop")
	}
}

// RunPattern starts the named pattern file.
func (e *Engine) RunPattern(name string) {
	path, err := e.patternPath(name)
	if err != nil {
		log.Printf("[Lua] Cannot run pattern '%s': %v", name, err)
		return
	}
	e.jobs <- job{kind: jobRunFile, name: name, source: path}
}

// ExecuteString runs a one-off snippet of Lua.
func (e *Engine) ExecuteString(code string) {
	e.jobs <- job{kind: jobRunString, name: "inline", source: code}
}

func (e *Engine) run(ctx context.Context, j job) {
	log.Printf("[Lua] Starting pattern '%s'...", j.name)
	e.publishRunning(j.name)
	defer func() {
		log.Printf("[Lua] Pattern '%s' finished.", j.name)
		e.publishRunning("")
	}()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)
	e.registerGoFunctions(L, ctx)

	var err error
	if j.kind == jobRunFile {
		err = L.DoFile(j.source)
	} else {
		err = L.DoString(j.source)
	}
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("[Lua] Pattern '%s' was canceled.", j.name)
		} else {
			log.Printf("[Lua] Error executing pattern '%s': %v", j.name, err)
		}
	}
}

func (e *Engine) publishRunning(name string) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(core.Event{
		Type:    core.PatternChangedEvent,
		Payload: map[string]interface{}{"running": name},
	})
}
