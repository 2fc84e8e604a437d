// Command mirasim drives a mira.Kernel through the reference end-to-end
// scenarios: a benign workload, a brute-force fault burst, a stealth
// sustained fault rate, a moderate adaptive-controller-throttled rate, a
// fork bomb of simultaneous offenders, and a fatal kernel-origin fault. It
// exists to exercise the kernel package the way real hardware interrupts
// would, outside of the test suite's simulated, synchronous driving.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"mira"
	"mira/arch"

	"github.com/joeycumines/go-catrate"
)

// hostTickSource is the real-clock tick source contract; tick_linux.go and
// tick_other.go each supply a platform-appropriate implementation.
type hostTickSource interface {
	mira.TickSource
	Close()
}

// simTickSource drives the kernel as fast as the host CPU allows, one
// simulated millisecond per call, for the default (non -host) run mode.
type simTickSource struct {
	remaining int
	tick      uint64
}

func newSimTickSource(ticks int) *simTickSource {
	return &simTickSource{remaining: ticks}
}

func (s *simTickSource) Next() (uint64, bool) {
	if s.remaining <= 0 {
		return 0, false
	}
	s.remaining--
	s.tick++
	return s.tick, true
}

func main() {
	var (
		scenario = flag.String("scenario", "all", "scenario to run: benign, burst, stealth, moderate, forkbomb, kernelfault, all")
		host     = flag.Bool("host", false, "drive the simulation from a real OS timer instead of the fast synthetic tick source")
		hz       = flag.Int("hz", 1000, "host tick source frequency in Hz (only with -host)")
	)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		cancel()
	}()
	defer cancel()

	scenarios := map[string]func(context.Context, bool, int) error{
		"benign":      runBenign,
		"burst":       runBurst,
		"stealth":     runStealth,
		"moderate":    runModerate,
		"forkbomb":    runForkBomb,
		"kernelfault": runKernelFault,
	}

	names := []string{*scenario}
	if *scenario == "all" {
		names = []string{"benign", "burst", "stealth", "moderate", "forkbomb", "kernelfault"}
	}

	for _, name := range names {
		run, ok := scenarios[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "mirasim: unknown scenario %q\n", name)
			os.Exit(1)
		}
		fmt.Printf("=== scenario: %s ===\n", name)
		if err := run(ctx, *host, *hz); err != nil {
			fmt.Fprintf(os.Stderr, "mirasim: scenario %s failed: %v\n", name, err)
			os.Exit(1)
		}
	}
}

// driveScenario runs the kernel for iterations ticks (fast mode) or until
// ctx expires (host mode), invoking onTick once per tick before Tick itself,
// the simulation harness's analogue of "the interrupt that fires this
// instant." It reports the kernel's final snapshot before returning.
func driveScenario(ctx context.Context, k *mira.Kernel, host bool, hz, iterations int, onTick func()) error {
	var source mira.TickSource
	if host {
		hts, err := newHostTickSource(time.Second / time.Duration(hz))
		if err != nil {
			return err
		}
		defer hts.Close()
		source = hts
	} else {
		source = newSimTickSource(iterations)
	}

	var frame arch.Context
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}
		if _, ok := source.Next(); !ok {
			break
		}
		onTick()
		if next := k.Tick(&frame); next != nil {
			frame = *next
		}
	}

	report(k)
	return nil
}

func report(k *mira.Kernel) {
	snap := k.Snapshot()
	fmt.Printf("total exceptions=%d exception_rate=%.1f/s tasks=%d active=%d reclaimed=%d queue_depth(cur/max/avg)=%d/%d/%.1f\n",
		snap.TotalExceptions, snap.ExceptionRate, snap.TaskCount, snap.ActiveTaskCount, k.Reclaimed(),
		snap.QueueDepth.Current, snap.QueueDepth.Max, snap.QueueDepth.Avg)
	for _, tv := range snap.Tasks {
		fmt.Printf("  task %d %q status=%s priority=%s faults=%d\n", tv.ID, tv.Name, tv.Status, tv.Priority, tv.ProfilerFaultCount)
	}
}

func newScenarioKernel() (*mira.Kernel, error) {
	return mira.New(mira.WithTaskCapacity(32), mira.WithQueueCapacity(32))
}

// runBenign implements scenario 1: a single user task that never faults
// must never be quarantined.
func runBenign(ctx context.Context, host bool, hz int) error {
	k, err := newScenarioKernel()
	if err != nil {
		return err
	}
	benign, err := k.CreateTaskFromEntry(func() {}, "benign", mira.ModeUser)
	if err != nil {
		return err
	}
	k.StartTask(benign.ID)

	return driveScenario(ctx, k, host, hz, 10_000, func() {})
}

// runBurst implements scenario 2: a tight invalid-address write loop trips
// the fast path's burst threshold within milliseconds; a benign task keeps
// running alongside it.
func runBurst(ctx context.Context, host bool, hz int) error {
	k, err := newScenarioKernel()
	if err != nil {
		return err
	}
	benign, err := k.CreateTaskFromEntry(func() {}, "benign", mira.ModeUser)
	if err != nil {
		return err
	}
	k.StartTask(benign.ID)
	victim, err := k.CreateTaskFromEntry(func() {}, "victim", mira.ModeUser)
	if err != nil {
		return err
	}
	k.StartTask(victim.ID)

	burst := newBurstInjector(victim.ID)
	return driveScenario(ctx, k, host, hz, 1_000, func() {
		burst.onTick(k)
	})
}

// burstInjector drives one task to its quarantine threshold via an
// unthrottled tight fault loop the instant it becomes the scheduler's
// current task, then goes quiet; a real brute-force loop never paces
// itself, so neither does this.
type burstInjector struct {
	taskID int
	fired  bool
}

func newBurstInjector(taskID int) *burstInjector {
	return &burstInjector{taskID: taskID}
}

func (b *burstInjector) onTick(k *mira.Kernel) {
	if b.fired || k.CurrentTaskID() != b.taskID {
		return
	}
	b.fired = true
	frame := &arch.Frame{CS: arch.UserCodeSelector}
	for i := 0; i < mira.BurstThreshold; i++ {
		k.PageFaultHandler(frame, []byte{0x90})
	}
}

// runStealth implements scenario 3: a sustained ~5000 faults/sec rate, paced
// by a sliding-window rate limiter so it never trips the fast path, is
// instead caught by the homeostatic profiler's periodic sample.
func runStealth(ctx context.Context, host bool, hz int) error {
	k, err := newScenarioKernel()
	if err != nil {
		return err
	}
	benign, err := k.CreateTaskFromEntry(func() {}, "benign", mira.ModeUser)
	if err != nil {
		return err
	}
	k.StartTask(benign.ID)
	victim, err := k.CreateTaskFromEntry(func() {}, "victim", mira.ModeUser)
	if err != nil {
		return err
	}
	k.StartTask(victim.ID)

	limiter := catrate.NewLimiter(map[time.Duration]int{time.Second: 5000})
	frame := &arch.Frame{CS: arch.UserCodeSelector}
	return driveScenario(ctx, k, host, hz, 2_000, func() {
		if k.CurrentTaskID() != victim.ID {
			return
		}
		if _, ok := limiter.Allow(victim.ID); ok {
			k.PageFaultHandler(frame, []byte{0x90})
		}
	})
}

// runModerate implements scenario 4: a ~1000 faults/sec rate, below both the
// fast-path and profiler thresholds, is instead caught by the adaptive
// controller's EMA-divergence detector and throttled.
func runModerate(ctx context.Context, host bool, hz int) error {
	k, err := newScenarioKernel()
	if err != nil {
		return err
	}
	victim, err := k.CreateTaskFromEntry(func() {}, "victim", mira.ModeUser)
	if err != nil {
		return err
	}
	k.StartTask(victim.ID)

	limiter := catrate.NewLimiter(map[time.Duration]int{time.Second: 1000})
	frame := &arch.Frame{CS: arch.UserCodeSelector}
	return driveScenario(ctx, k, host, hz, 5_000, func() {
		if k.CurrentTaskID() != victim.ID {
			return
		}
		if _, ok := limiter.Allow(victim.ID); ok {
			k.PageFaultHandler(frame, []byte{0x90})
		}
	})
}

// runForkBomb implements scenario 5: 24 independent brute-force offenders
// started in quick succession, each quarantined in turn. The apoptosis
// worker's single-slot eviction handshake serializes them safely because
// burstInjector only fires once per task and the scheduler naturally visits
// every Running task in turn.
func runForkBomb(ctx context.Context, host bool, hz int) error {
	k, err := newScenarioKernel()
	if err != nil {
		return err
	}
	const n = 24
	injectors := make([]*burstInjector, 0, n)
	for i := 0; i < n; i++ {
		victim, err := k.CreateTaskFromEntry(func() {}, "forkbomb", mira.ModeUser)
		if err != nil {
			return err
		}
		k.StartTask(victim.ID)
		injectors = append(injectors, newBurstInjector(victim.ID))
	}

	return driveScenario(ctx, k, host, hz, 5_000, func() {
		for _, inj := range injectors {
			inj.onTick(k)
		}
	})
}

// runKernelFault implements scenario 6: a deliberately-corrupted kernel
// function triggers a page fault tagged with the kernel code selector,
// which is always fatal.
func runKernelFault(ctx context.Context, host bool, hz int) error {
	k, err := newScenarioKernel()
	if err != nil {
		return err
	}
	task, err := k.CreateTaskFromEntry(func() {}, "victim", mira.ModeUser)
	if err != nil {
		return err
	}
	k.StartTask(task.ID)

	fired := false
	return driveScenario(ctx, k, host, hz, 10, func() {
		if fired {
			return
		}
		fired = true
		k.PageFaultHandler(&arch.Frame{CS: arch.KernelCodeSelector, RIP: 0xDEADBEEF}, nil)
	})
}
