package queue

import (
	"sync"
	"testing"

	"lightfun-controller/internal/core"
)

func push(q *CommandQueue, kind core.Kind, ts int64) *core.Command {
	cmd := core.NewCommand(kind, ts)
	q.Lock()
	q.Push(cmd)
	q.Unlock()
	return cmd
}

func TestFetchNextOrdersByTimestamp(t *testing.T) {
	q := New()
	push(q, core.KindSetColor, 30)
	push(q, core.KindSetMode, 10)
	push(q, core.KindQueryState, 20)

	var got []int64
	for cmd := q.FetchNext(); cmd != nil; cmd = q.FetchNext() {
		got = append(got, cmd.Time)
	}
	want := []int64{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFetchNextAfterMerge(t *testing.T) {
	q := New()
	merged := push(q, core.KindSetColor, 0)
	push(q, core.KindSetMode, 100)

	q.Lock()
	merged.Time = 150
	q.Unlock()

	if cmd := q.FetchNext(); cmd.Kind != core.KindSetMode {
		t.Errorf("got %s first, want SetMode", cmd.Kind)
	}
	if cmd := q.FetchNext(); cmd != merged {
		t.Errorf("got %v second, want merged color", cmd)
	}
}

func TestFetchNextEmpty(t *testing.T) {
	if cmd := New().FetchNext(); cmd != nil {
		t.Errorf("got %v, want nil", cmd)
	}
}

func TestFindRelevantWindow(t *testing.T) {
	q := New()
	a := push(q, core.KindSetColor, 1000)
	b := push(q, core.KindSetColor, 1150)
	push(q, core.KindSetWarmBrightness, 1160)

	q.Lock()
	defer q.Unlock()

	if got := q.FindRelevant(core.KindSetColor, 1160); got != b {
		t.Errorf("got %v, want closest %v", got, b)
	}
	if got := q.FindRelevant(core.KindSetColor, 1050); got != a {
		t.Errorf("got %v, want %v", got, a)
	}
	if got := q.FindRelevant(core.KindSetColor, 1350); got != nil {
		t.Errorf("got %v, want nil at exactly the window edge", got)
	}
	if got := q.FindRelevant(core.KindSetMode, 1000); got != nil {
		t.Errorf("got %v, want nil for absent kind", got)
	}
}

func TestRemoveAllOfKind(t *testing.T) {
	q := New()
	push(q, core.KindSetColor, 1)
	push(q, core.KindSetOnOff, 2)
	push(q, core.KindSetColor, 3)

	q.Lock()
	q.RemoveAllOfKind(core.KindSetColor)
	n := q.Len()
	single := q.FindSingle(core.KindSetOnOff)
	q.Unlock()

	if n != 1 {
		t.Fatalf("got %d pending, want 1", n)
	}
	if single == nil || single.Time != 2 {
		t.Errorf("got %v, want on/off command", single)
	}
}

func TestClear(t *testing.T) {
	q := New()
	push(q, core.KindSetColor, 1)
	push(q, core.KindQueryState, 2)
	q.Lock()
	q.Clear()
	q.Unlock()
	if cmd := q.FetchNext(); cmd != nil {
		t.Errorf("got %v after Clear", cmd)
	}
}

func TestConcurrentPushFetch(t *testing.T) {
	q := New()
	const n = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			push(q, core.KindQueryState, int64(i))
		}
	}()

	seen := 0
	for seen < n {
		if q.FetchNext() != nil {
			seen++
		}
	}
	wg.Wait()
	if cmd := q.FetchNext(); cmd != nil {
		t.Errorf("got leftover %v", cmd)
	}
}

func TestTimestampMonotonic(t *testing.T) {
	a := Timestamp()
	b := Timestamp()
	if b < a {
		t.Errorf("timestamp went backwards: %d then %d", a, b)
	}
}
