package scheduler

import (
	"path/filepath"
	"testing"

	"lightfun-controller/internal/core"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want core.IntentType
	}{
		{"power on", core.IntentSetPower},
		{"power off", core.IntentSetPower},
		{"color ff8800", core.IntentSetColor},
		{"color #00FF00", core.IntentSetColor},
		{"warm 40", core.IntentSetWarm},
		{"mode Soft", core.IntentSetMode},
		{"query", core.IntentQueryState},
		{"pattern sunrise.lua", core.IntentRunPattern},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", tt.in, err)
		}
		if got.Type != tt.want {
			t.Errorf("ParseCommand(%q) = %s, want %s", tt.in, got.Type, tt.want)
		}
	}
}

func TestParseCommandPayload(t *testing.T) {
	got, _ := ParseCommand("color ff8800")
	if got.Payload["r"] != float64(255) || got.Payload["g"] != float64(136) || got.Payload["b"] != float64(0) {
		t.Errorf("got %v", got.Payload)
	}
	got, _ = ParseCommand("power off")
	if got.Payload["isOn"] != false {
		t.Errorf("got %v", got.Payload)
	}
}

func TestParseCommandRejects(t *testing.T) {
	for _, in := range []string{"", "power maybe", "color fff", "warm 101", "mode rainbow", "pattern", "reboot"} {
		if _, err := ParseCommand(in); err == nil {
			t.Errorf("ParseCommand(%q): expected error", in)
		}
	}
}

func TestExecuteSendsIntent(t *testing.T) {
	intents := make(core.IntentChannel, 1)
	s := NewScheduler(intents, filepath.Join(t.TempDir(), "schedules.json"))

	s.execute("mode disco")
	got := <-intents
	if got.Type != core.IntentSetMode || got.Payload["mode"] != "disco" {
		t.Errorf("got %+v", got)
	}
}

func TestAddRemovePersist(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	intents := make(core.IntentChannel, 1)

	s := NewScheduler(intents, file)
	if _, err := s.Add("0 7 * * *", "power on"); err != nil {
		t.Fatal(err)
	}
	id, err := s.Add("30 22 * * *", "power off")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add("not a spec", "power on"); err == nil {
		t.Error("expected error for bad spec")
	}
	if _, err := s.Add("0 8 * * *", "explode"); err == nil {
		t.Error("expected error for bad command")
	}
	s.Remove(int(id))

	reloaded := NewScheduler(intents, file)
	all := reloaded.GetAll()
	if len(all) != 1 {
		t.Fatalf("got %d schedules after reload, want 1", len(all))
	}
	for _, entry := range all {
		if entry.Command != "power on" || entry.Spec != "0 7 * * *" {
			t.Errorf("got %+v", entry)
		}
	}
}
