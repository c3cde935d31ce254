package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"lightfun-controller/internal/core"
)

// ScheduleEntry defines the structure for a saved schedule.
type ScheduleEntry struct {
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler fires intents on cron schedules and persists them to a JSON file.
type Scheduler struct {
	cron          *cron.Cron
	store         map[cron.EntryID]ScheduleEntry
	intents       core.IntentChannel
	mu            sync.RWMutex
	schedulesFile string
}

// NewScheduler creates a scheduler and loads saved entries.
func NewScheduler(intents core.IntentChannel, schedulesFile string) *Scheduler {
	s := &Scheduler{
		cron:          cron.New(),
		store:         make(map[cron.EntryID]ScheduleEntry),
		intents:       intents,
		schedulesFile: schedulesFile,
	}
	s.load()
	return s
}

// Start begins the cron job ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] Started.")
}

// Stop halts the cron job ticker.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[Scheduler] Stopped.")
}

// Add validates command, schedules it and saves the store.
func (s *Scheduler) Add(spec, command string) (cron.EntryID, error) {
	if _, err := ParseCommand(command); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.execute(command) })
	if err != nil {
		return 0, fmt.Errorf("bad schedule spec %q: %w", spec, err)
	}
	s.store[id] = ScheduleEntry{Spec: spec, Command: command}
	s.save()
	log.Printf("[Scheduler] Added schedule (ID %d): %s -> %s", id, spec, command)
	return id, nil
}

// Remove deletes a cron job.
func (s *Scheduler) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := cron.EntryID(id)
	s.cron.Remove(entryID)
	delete(s.store, entryID)
	s.save()
	log.Printf("[Scheduler] Removed schedule (ID %d)", id)
}

// GetAll returns a copy of the current schedules.
func (s *Scheduler) GetAll() map[cron.EntryID]ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[cron.EntryID]ScheduleEntry, len(s.store))
	for k, v := range s.store {
		out[k] = v
	}
	return out
}

// ParseCommand turns a schedule command line into an intent:
//
//	power on|off
//	color RRGGBB
//	warm 0-100
//	mode disco|cool|soft
//	query
//	pattern NAME.lua
func ParseCommand(command string) (core.Intent, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return core.Intent{}, fmt.Errorf("empty command")
	}
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch parts[0] {
	case "power":
		switch arg {
		case "on", "off":
			return core.Intent{Type: core.IntentSetPower, Payload: map[string]interface{}{"isOn": arg == "on"}}, nil
		}
	case "color":
		v, err := strconv.ParseUint(strings.TrimPrefix(arg, "#"), 16, 32)
		if err == nil && len(strings.TrimPrefix(arg, "#")) == 6 {
			c := core.RGB(v)
			return core.Intent{Type: core.IntentSetColor, Payload: map[string]interface{}{
				"r": float64(c.R()), "g": float64(c.G()), "b": float64(c.B()),
			}}, nil
		}
	case "warm":
		v, err := strconv.Atoi(arg)
		if err == nil && v >= 0 && v <= 100 {
			return core.Intent{Type: core.IntentSetWarm, Payload: map[string]interface{}{"value": float64(v)}}, nil
		}
	case "mode":
		if m, err := core.ParseMode(arg); err == nil {
			return core.Intent{Type: core.IntentSetMode, Payload: map[string]interface{}{"mode": m.String()}}, nil
		}
	case "query":
		return core.Intent{Type: core.IntentQueryState}, nil
	case "pattern":
		if arg != "" {
			return core.Intent{Type: core.IntentRunPattern, Payload: map[string]interface{}{"name": arg}}, nil
		}
	}
	return core.Intent{}, fmt.Errorf("invalid schedule command %q", command)
}

func (s *Scheduler) execute(command string) {
	log.Printf("[Scheduler] Executing scheduled command: %s", command)
	intent, err := ParseCommand(command)
	if err != nil {
		log.Printf("[Scheduler] %v", err)
		return
	}
	s.intents <- intent
}

func (s *Scheduler) save() {
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		log.Printf("[Scheduler] Error marshalling schedules: %v", err)
		return
	}
	if err := os.WriteFile(s.schedulesFile, data, 0644); err != nil {
		log.Printf("[Scheduler] Error writing %s: %v", s.schedulesFile, err)
	}
}

func (s *Scheduler) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.schedulesFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Scheduler] Error reading schedule file: %v", err)
		}
		return
	}

	saved := make(map[cron.EntryID]ScheduleEntry)
	if err := json.Unmarshal(data, &saved); err != nil {
		log.Printf("[Scheduler] Error unmarshalling schedule file: %v", err)
		return
	}

	log.Printf("[Scheduler] Loading %d schedules from '%s'...", len(saved), s.schedulesFile)
	for _, entry := range saved {
		entry := entry
		id, err := s.cron.AddFunc(entry.Spec, func() { s.execute(entry.Command) })
		if err != nil {
			log.Printf("[Scheduler] Skipping saved schedule %q: %v", entry.Spec, err)
			continue
		}
		s.store[id] = entry
	}
}
