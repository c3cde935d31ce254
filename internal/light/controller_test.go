package light

import (
	"testing"

	"lightfun-controller/internal/core"
	"lightfun-controller/internal/queue"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) now() int64 { return f.t }

func newTestController() (*Controller, *queue.CommandQueue, *fakeClock) {
	q := queue.New()
	clk := &fakeClock{}
	c := NewController(q)
	c.now = clk.now
	return c, q, clk
}

func drain(q *queue.CommandQueue) []*core.Command {
	var out []*core.Command
	for cmd := q.FetchNext(); cmd != nil; cmd = q.FetchNext() {
		out = append(out, cmd)
	}
	return out
}

func TestSetColorCoalescesWithinWindow(t *testing.T) {
	c, q, clk := newTestController()

	c.SetColor(0xFF0000)
	clk.t = 50
	c.SetColor(0x00FF00)

	got := drain(q)
	if len(got) != 1 {
		t.Fatalf("got %d commands, want 1", len(got))
	}
	if got[0].Kind != core.KindSetColor || got[0].Color != 0x00FF00 || got[0].Time != 50 {
		t.Errorf("got %v, want SetColor(#00FF00)@50", got[0])
	}
	if q.FetchNext() != nil {
		t.Error("queue not empty after fetch")
	}
}

func TestSetColorBurstKeepsLastColor(t *testing.T) {
	c, q, clk := newTestController()

	var last core.RGB
	for i := 0; i < 20; i++ {
		clk.t = int64(i * 10)
		last = core.NewRGB(i*10, 255-i*10, i)
		c.SetColor(last)
	}

	got := drain(q)
	if len(got) != 1 {
		t.Fatalf("got %d commands, want 1", len(got))
	}
	if got[0].Color != last {
		t.Errorf("got %s, want %s", got[0].Color.Hex(), last.Hex())
	}
}

func TestSetColorOutsideWindowAppends(t *testing.T) {
	c, q, clk := newTestController()

	c.SetColor(0x111111)
	clk.t = 200
	c.SetColor(0x222222)

	got := drain(q)
	if len(got) != 2 {
		t.Fatalf("got %d commands, want 2", len(got))
	}
	if got[0].Color != 0x111111 || got[1].Color != 0x222222 {
		t.Errorf("got %v, %v", got[0], got[1])
	}
}

func TestSetColorCancelsOnOffAndWarm(t *testing.T) {
	c, q, clk := newTestController()

	c.SetOnOff(true)
	c.SetWarmBrightness(40)
	clk.t = 10
	c.SetColor(0xABCDEF)

	q.Lock()
	onoff := q.FindSingle(core.KindSetOnOff)
	warm := q.FindSingle(core.KindSetWarmBrightness)
	q.Unlock()
	if onoff != nil {
		t.Errorf("pending on/off survived: %v", onoff)
	}
	if warm != nil {
		t.Errorf("pending warm survived: %v", warm)
	}
}

func TestSetWarmCancelsColorAndOnOff(t *testing.T) {
	c, q, _ := newTestController()

	c.SetColor(0x010203)
	c.SetOnOff(false)
	c.SetWarmBrightness(150)

	got := drain(q)
	if len(got) != 1 {
		t.Fatalf("got %d commands, want 1", len(got))
	}
	if got[0].Kind != core.KindSetWarmBrightness || got[0].Brightness != 100 {
		t.Errorf("got %v, want clamped warm 100", got[0])
	}
}

func TestSetOnOffIsSingleton(t *testing.T) {
	c, q, clk := newTestController()

	for i := 0; i < 10; i++ {
		clk.t = int64(i * 1000)
		c.SetOnOff(i%2 == 0)
	}

	got := drain(q)
	if len(got) != 1 {
		t.Fatalf("got %d on/off commands, want 1", len(got))
	}
	if got[0].On != false || got[0].Time != 9000 {
		t.Errorf("got %v, want SetOnOff(false)@9000", got[0])
	}
}

func TestSetOnOffCancelsColor(t *testing.T) {
	c, q, _ := newTestController()

	c.SetColor(0xFF00FF)
	c.SetOnOff(false)

	got := drain(q)
	if len(got) != 1 || got[0].Kind != core.KindSetOnOff {
		t.Fatalf("got %v, want only SetOnOff", got)
	}
}

func TestSetModeCancelsNothing(t *testing.T) {
	c, q, clk := newTestController()

	c.SetColor(0x123456)
	clk.t = 5
	c.SetDiscoMode()
	clk.t = 10000
	c.SetSoftMode()

	got := drain(q)
	if len(got) != 2 {
		t.Fatalf("got %d commands, want 2", len(got))
	}
	if got[0].Kind != core.KindSetColor {
		t.Errorf("got %s first, want SetColor", got[0].Kind)
	}
	if got[1].Kind != core.KindSetMode || got[1].Mode != core.ModeSoft {
		t.Errorf("got %v, want SetMode(soft)", got[1])
	}
}

func TestQueryStateAlwaysAppends(t *testing.T) {
	c, q, _ := newTestController()

	c.SetOnOff(true)
	c.QueryState()
	c.QueryState()

	if n := c.Pending(); n != 3 {
		t.Fatalf("got %d pending, want 3", n)
	}
	got := drain(q)
	queries := 0
	for _, cmd := range got {
		if cmd.Kind == core.KindQueryState {
			queries++
		}
	}
	if queries != 2 {
		t.Errorf("got %d queries, want 2", queries)
	}
}
