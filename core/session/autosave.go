package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/elimisha/maabara/core/simulation"
)

// AutoSaver decides when local session state is pushed to the remote service,
// balancing freshness against request volume. A repeating timer fires every
// Interval; a forced save bypasses the timer but still honors a short cooldown
// to absorb bursts of rapid user actions. Save failures are swallowed (logged
// only): the next attempt retries with current state, a natural at-least-once
// retry without backoff.
type AutoSaver struct {
	c        *Controller
	interval time.Duration
	cooldown time.Duration

	mu          sync.Mutex
	lastSavedAt time.Time
	saving      bool

	stop     chan struct{}
	stopOnce sync.Once
}

func newAutoSaver(c *Controller, interval, cooldown time.Duration) *AutoSaver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}
	return &AutoSaver{
		c:        c,
		interval: interval,
		cooldown: cooldown,
		stop:     make(chan struct{}),
	}
}

func (as *AutoSaver) run() {
	ticker := time.NewTicker(as.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			as.tick()
		case <-as.stop:
			return
		}
	}
}

// tick attempts a save if at least the full interval elapsed since the last
// successful one.
func (as *AutoSaver) tick() {
	if as.sinceLastSave() < as.interval {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	as.save(ctx)
}

// ForceSave saves immediately, subject only to the burst cooldown.
func (as *AutoSaver) ForceSave(ctx context.Context) {
	if as.sinceLastSave() < as.cooldown {
		return
	}
	as.save(ctx)
}

// FinalSave is the teardown save: no timer, no cooldown, best-effort.
func (as *AutoSaver) FinalSave(ctx context.Context) {
	as.save(ctx)
}

func (as *AutoSaver) Stop() {
	as.stopOnce.Do(func() { close(as.stop) })
}

func (as *AutoSaver) sinceLastSave() time.Duration {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.lastSavedAt.IsZero() {
		return as.interval
	}
	return NowFunc().Sub(as.lastSavedAt)
}

// save builds the diff patch and pushes it. Nothing is sent when local state
// matches the last server-confirmed state; in particular a status equal to the
// last confirmed value is never retransmitted.
func (as *AutoSaver) save(ctx context.Context) {
	as.mu.Lock()
	if as.saving {
		as.mu.Unlock()
		return
	}
	as.saving = true
	as.mu.Unlock()
	defer func() {
		as.mu.Lock()
		as.saving = false
		as.mu.Unlock()
	}()

	patch, snapshot := as.c.buildPatch()
	if patch.IsEmpty() {
		return
	}

	version, err := as.c.api.UpdateSimulationState(ctx, snapshot.ID, patch)
	if err != nil {
		// swallowed: the next scheduled attempt retries with current state
		as.c.logger.Warn(fmt.Sprintf("auto-save failed for simulation %s: %v", snapshot.ID, err))
		return
	}

	as.mu.Lock()
	as.lastSavedAt = NowFunc()
	as.mu.Unlock()

	as.c.confirmSave(snapshot, version)
}

// buildPatch diffs the working copy against the last server-confirmed state.
// Fields are included only when they differ, so the server's strict transition
// validation is never tripped by a no-op write.
func (c *Controller) buildPatch() (simulation.StatePatch, simulation.Simulation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	patch := simulation.StatePatch{Version: c.sim.Version}
	if c.sim.Status != c.confirmed.Status {
		status := c.sim.Status
		patch.Status = &status
	}
	if c.sim.Progress != c.confirmed.Progress {
		patch.Progress = null.Float64From(c.sim.Progress)
	}
	if c.sim.CurrentStep != c.confirmed.CurrentStep {
		patch.CurrentStep = null.IntFrom(c.sim.CurrentStep)
	}
	if c.sim.Score != c.confirmed.Score {
		patch.Score = null.IntFrom(c.sim.Score)
	}
	for k, v := range c.sim.UserInputs {
		if c.confirmed.UserInputs[k] != v {
			if patch.UserInputs == nil {
				patch.UserInputs = make(map[string]string)
			}
			patch.UserInputs[k] = v
		}
	}
	if n := len(c.confirmed.Observations); len(c.sim.Observations) > n {
		patch.Observations = append([]simulation.Observation(nil), c.sim.Observations[n:]...)
	}
	return patch, cloneSimulation(c.sim)
}

// confirmSave records the state the server accepted along with its new version.
func (c *Controller) confirmSave(snapshot simulation.Simulation, version int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot.Version = version
	c.confirmed = snapshot
	c.sim.Version = version
}
