package lua

import (
	"context"
	"log"
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"

	"lightfun-controller/internal/core"
)

// registerGoFunctions exposes Go functions to the given Lua state. Sleeping
// functions return early once ctx is cancelled.
func (e *Engine) registerGoFunctions(L *lua.LState, ctx context.Context) {
	L.SetGlobal("set_color", L.NewFunction(e.luaSetColor))
	L.SetGlobal("set_warm", L.NewFunction(e.luaSetWarm))
	L.SetGlobal("set_power", L.NewFunction(e.luaSetPower))
	L.SetGlobal("set_mode", L.NewFunction(e.luaSetMode))
	L.SetGlobal("print", L.NewFunction(luaPrint))

	L.SetGlobal("sleep", L.NewFunction(func(L *lua.LState) int {
		cancellableSleep(ctx, time.Duration(L.ToInt(1))*time.Millisecond)
		return 0
	}))
	L.SetGlobal("should_stop", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(ctx.Err() != nil))
		return 1
	}))

	L.SetGlobal("breathe", L.NewFunction(func(L *lua.LState) int { return e.luaBreathe(L, ctx) }))
	L.SetGlobal("strobe", L.NewFunction(func(L *lua.LState) int { return e.luaStrobe(L, ctx) }))
	L.SetGlobal("fade", L.NewFunction(func(L *lua.LState) int { return e.luaFade(L, ctx) }))
}

func luaPrint(L *lua.LState) int {
	log.Printf("[LUA] %s", L.ToString(1))
	return 0
}

func (e *Engine) luaSetColor(L *lua.LState) int {
	e.light.SetColor(core.NewRGB(L.ToInt(1), L.ToInt(2), L.ToInt(3)))
	return 0
}

func (e *Engine) luaSetWarm(L *lua.LState) int {
	e.light.SetWarmBrightness(L.ToInt(1))
	return 0
}

func (e *Engine) luaSetPower(L *lua.LState) int {
	e.light.SetOnOff(L.ToBool(1))
	return 0
}

func (e *Engine) luaSetMode(L *lua.LState) int {
	mode, err := core.ParseMode(L.ToString(1))
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	e.light.SetMode(mode)
	return 0
}

// cancellableSleep sleeps for d unless ctx is cancelled first.
// It returns true if the context was cancelled during sleep.
func cancellableSleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-ctx.Done():
		return true
	}
}

// luaBreathe ramps warm white from 1% to 100% and back over the duration.
func (e *Engine) luaBreathe(L *lua.LState, ctx context.Context) int {
	duration := time.Duration(L.ToInt(1)) * time.Millisecond

	steps := 100
	stepDuration := duration / time.Duration(2*steps)

	for i := 1; i <= steps; i++ {
		e.light.SetWarmBrightness(i)
		if cancellableSleep(ctx, stepDuration) {
			return 0
		}
	}
	for i := steps; i >= 1; i-- {
		e.light.SetWarmBrightness(i)
		if cancellableSleep(ctx, stepDuration) {
			return 0
		}
	}
	return 0
}

// luaStrobe flashes a color for a total duration at a given frequency (in Hz).
func (e *Engine) luaStrobe(L *lua.LState, ctx context.Context) int {
	color := core.NewRGB(L.ToInt(1), L.ToInt(2), L.ToInt(3))
	duration := time.Duration(L.ToInt(4)) * time.Millisecond
	hz := float64(L.ToNumber(5))
	if hz <= 0 {
		return 0
	}

	e.light.SetOnOff(true)

	halfPeriod := time.Duration(float64(time.Second) / hz / 2)
	startTime := time.Now()

	for time.Since(startTime) < duration {
		e.light.SetColor(color)
		if cancellableSleep(ctx, halfPeriod) {
			return 0
		}
		e.light.SetColor(0)
		if cancellableSleep(ctx, halfPeriod) {
			return 0
		}
	}
	return 0
}

// luaFade linearly moves from one color to another over a duration.
func (e *Engine) luaFade(L *lua.LState, ctx context.Context) int {
	r1, g1, b1 := L.ToInt(1), L.ToInt(2), L.ToInt(3)
	r2, g2, b2 := L.ToInt(4), L.ToInt(5), L.ToInt(6)
	duration := time.Duration(L.ToInt(7)) * time.Millisecond

	e.light.SetOnOff(true)

	steps := 100
	stepDuration := duration / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		progress := float64(i) / float64(steps)
		r := int(math.Round(float64(r1) + progress*float64(r2-r1)))
		g := int(math.Round(float64(g1) + progress*float64(g2-g1)))
		b := int(math.Round(float64(b1) + progress*float64(b2-b1)))

		e.light.SetColor(core.NewRGB(r, g, b))

		if cancellableSleep(ctx, stepDuration) {
			return 0
		}
	}
	e.light.SetColor(core.NewRGB(r2, g2, b2))
	return 0
}
