package mira

import (
	"mira/arch"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Fixed-point constants for the adaptive controller (§4.I). All arithmetic
// is integer; the kernel has no FPU-save discipline, so no float appears
// anywhere in this file.
const (
	fpScale      int64 = 1024
	fpEpsilon    int64 = 102
	fpEta        int64 = 102
	fpAlphaShort int64 = 300
	fpAlphaLong  int64 = 50

	detectThreshold int64  = 1500
	detectK         int    = 2
	epochMS         uint64 = 1000
	qDecay          int64  = 5
	controllerIntervalMS uint64 = 150

	numActions = 3
)

// throttleAction is a 1-indexed action id; actionNone means "no action
// currently applied."
type throttleAction int

const (
	actionNone throttleAction = iota
	actionLight
	actionMedium
	actionHeavy
)

var actionPriority = map[throttleAction]Priority{
	actionLight:  PriorityLow,
	actionMedium: PriorityLower,
	actionHeavy:  PriorityIdle,
}

// adaptiveTarget is the per-task state the controller tracks (§3/§4.I).
type adaptiveTarget struct {
	taskID int

	emaShort    int64
	emaLong     int64
	initialized bool

	detectCount int

	currentAction  throttleAction
	actionUntilMS  uint64
	lastFaultRate  int64
	priorBeforeAct Priority

	q [numActions]int64
}

// AdaptiveController is the epsilon-greedy Q-learning supervisor (§4.I): on
// a 150ms interval it tracks each running task's fault-rate EMA divergence,
// and when a sustained anomaly is detected, throttles the task's scheduling
// priority for one epoch and learns from the resulting rate change.
type AdaptiveController struct {
	table  *Table
	rand   func() uint64
	logger *logiface.Logger[*stumpy.Event]

	lastRunMS uint64
	targets   map[int]*adaptiveTarget
	capacity  int
}

// NewAdaptiveController constructs a controller over the given task table,
// with a fixed-capacity target table of size capacity. randSource defaults
// to arch.Rand when nil.
func NewAdaptiveController(table *Table, capacity int, randSource func() uint64, logger *logiface.Logger[*stumpy.Event]) *AdaptiveController {
	if randSource == nil {
		randSource = arch.Rand
	}
	return &AdaptiveController{
		table:    table,
		rand:     randSource,
		logger:   logger,
		targets:  make(map[int]*adaptiveTarget),
		capacity: capacity,
	}
}

// RunOnce runs one controller iteration if the 150ms interval has elapsed;
// otherwise it is a no-op. now is the current monotonic tick in
// milliseconds.
func (c *AdaptiveController) RunOnce(now uint64) {
	if now < c.lastRunMS+controllerIntervalMS {
		return
	}
	c.lastRunMS = now

	for _, t := range c.table.All() {
		if t.Mode != ModeUser || t.Status() != Running {
			continue
		}
		target := c.targetFor(t.ID)
		if target == nil {
			// Table full; task remains observable to the profiler only.
			continue
		}
		c.step(now, t, target)
	}
}

// targetFor returns the tracked state for taskID, claiming a free slot on
// first sight, or nil if the target table is at capacity.
func (c *AdaptiveController) targetFor(taskID int) *adaptiveTarget {
	if target, ok := c.targets[taskID]; ok {
		return target
	}
	if len(c.targets) >= c.capacity {
		return nil
	}
	target := &adaptiveTarget{taskID: taskID}
	c.targets[taskID] = target
	return target
}

// step performs one interval's worth of the §4.I algorithm for a single
// tracked task.
func (c *AdaptiveController) step(now uint64, t *Task, target *adaptiveTarget) {
	count := t.FaultCountPeriod.Swap(0)
	rate := maxOf(clampDiv(int64(count)*1000, int64(controllerIntervalMS)), 0)
	rateFP := rate * fpScale

	// 2. Reward phase.
	if target.currentAction != actionNone && now >= target.actionUntilMS {
		rewardFP := target.lastFaultRate - rateFP
		a := int(target.currentAction) - 1
		target.q[a] = ((fpScale-fpEta)*target.q[a] + fpEta*rewardFP) / fpScale

		t.SetPriority(target.priorBeforeAct)
		target.currentAction = actionNone

		if c.logger != nil {
			c.logger.Debug().Int("pid", t.ID).Log("adaptive controller: action period ended, reward applied")
		}
	}

	// 3. EMA update.
	if !target.initialized {
		target.emaShort = rateFP
		target.emaLong = rateFP
		target.initialized = true
	} else {
		target.emaShort = (fpAlphaShort*rateFP + (fpScale-fpAlphaShort)*target.emaShort) / fpScale
		target.emaLong = (fpAlphaLong*rateFP + (fpScale-fpAlphaLong)*target.emaLong) / fpScale
	}

	// 4. Anomaly detection.
	if target.currentAction == actionNone {
		diff := target.emaShort - target.emaLong
		if diff > detectThreshold*fpScale {
			target.detectCount++
		} else {
			target.detectCount = 0
		}

		if target.detectCount >= detectK {
			target.detectCount = 0
			c.applyAction(now, t, target, rateFP)
		}
	}

	// 5. Q-decay.
	for j := range target.q {
		target.q[j] = target.q[j] * (fpScale - qDecay) / fpScale
	}
}

// applyAction selects an action (explore or exploit) and applies its
// mapped priority, saving the task's pre-action priority for REDESIGN R2's
// restore-not-reset behavior.
func (c *AdaptiveController) applyAction(now uint64, t *Task, target *adaptiveTarget, rateFP int64) {
	var action throttleAction
	if int64(c.rand()%uint64(fpScale)) < fpEpsilon {
		action = throttleAction(1 + int(c.rand()%uint64(numActions)))
	} else {
		action = throttleAction(1 + argmax(target.q[:]))
	}

	target.priorBeforeAct = t.Priority()
	target.currentAction = action
	target.actionUntilMS = now + epochMS
	target.lastFaultRate = rateFP
	t.SetPriority(actionPriority[action])

	if c.logger != nil {
		c.logger.Info().Int("pid", t.ID).Int("action", int(action)).Log("adaptive controller: throttle action applied")
	}
}

// argmax returns the index of the first maximal element, ties broken by
// lowest index.
func argmax(q []int64) int {
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i] > q[best] {
			best = i
		}
	}
	return best
}
