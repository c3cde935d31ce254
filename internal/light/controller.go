// Package light maps user intents onto the pending command queue.
//
// Every setter runs as one critical section on the queue: commands made
// obsolete by the new intent are dropped first, then the intent is merged into
// a pending command of the same kind or appended as a new one. The gateway
// executor therefore never observes a half-applied intent, and a drag on a
// color wheel collapses into a handful of requests instead of one per event.
package light

import (
	"lightfun-controller/internal/core"
	"lightfun-controller/internal/queue"
)

// Controller is the public API used by the intent sources.
type Controller struct {
	queue *queue.CommandQueue
	now   func() int64
}

// NewController creates a controller feeding q.
func NewController(q *queue.CommandQueue) *Controller {
	return &Controller{queue: q, now: queue.Timestamp}
}

// SetColor switches the bulb to an RGB color.
func (c *Controller) SetColor(color core.RGB) {
	c.merge(core.KindSetColor, func(cmd *core.Command) { cmd.Color = color },
		core.KindSetOnOff, core.KindSetWarmBrightness)
}

// SetWarmBrightness switches to warm white at brightness 0..100.
func (c *Controller) SetWarmBrightness(brightness int) {
	if brightness < 0 {
		brightness = 0
	}
	if brightness > 100 {
		brightness = 100
	}
	c.merge(core.KindSetWarmBrightness, func(cmd *core.Command) { cmd.Brightness = brightness },
		core.KindSetColor, core.KindSetOnOff)
}

// SetOnOff turns the bulb on or off.
func (c *Controller) SetOnOff(on bool) {
	c.single(core.KindSetOnOff, func(cmd *core.Command) { cmd.On = on },
		core.KindSetColor, core.KindSetWarmBrightness)
}

// SetMode starts one of the bulb's preset effects.
func (c *Controller) SetMode(mode core.Mode) {
	c.single(core.KindSetMode, func(cmd *core.Command) { cmd.Mode = mode })
}

func (c *Controller) SetDiscoMode() { c.SetMode(core.ModeDisco) }
func (c *Controller) SetCoolMode()  { c.SetMode(core.ModeCool) }
func (c *Controller) SetSoftMode()  { c.SetMode(core.ModeSoft) }

// QueryState asks the bulb for its power and color. Queries are never
// coalesced so every one of them gets answered.
func (c *Controller) QueryState() {
	ts := c.now()

	c.queue.Lock()
	defer c.queue.Unlock()
	c.queue.Push(core.NewCommand(core.KindQueryState, ts))
}

// Pending returns the number of commands not yet taken by the executor.
func (c *Controller) Pending() int {
	c.queue.Lock()
	defer c.queue.Unlock()
	return c.queue.Len()
}

// merge handles kinds that coalesce within the affinity window.
func (c *Controller) merge(kind core.Kind, set func(*core.Command), cancels ...core.Kind) {
	ts := c.now()

	c.queue.Lock()
	defer c.queue.Unlock()

	for _, k := range cancels {
		c.queue.RemoveAllOfKind(k)
	}
	c.upsert(c.queue.FindRelevant(kind, ts), kind, ts, set)
}

// single handles kinds with at most one pending instance.
func (c *Controller) single(kind core.Kind, set func(*core.Command), cancels ...core.Kind) {
	ts := c.now()

	c.queue.Lock()
	defer c.queue.Unlock()

	for _, k := range cancels {
		c.queue.RemoveAllOfKind(k)
	}
	c.upsert(c.queue.FindSingle(kind), kind, ts, set)
}

// upsert must be called with the queue locked.
func (c *Controller) upsert(cmd *core.Command, kind core.Kind, ts int64, set func(*core.Command)) {
	if cmd != nil {
		cmd.Time = ts
		set(cmd)
		return
	}
	cmd = core.NewCommand(kind, ts)
	set(cmd)
	c.queue.Push(cmd)
}
