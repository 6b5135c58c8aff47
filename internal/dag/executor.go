package dag

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"weave/internal/core"
)

// State is a target's position in the executor's state machine.
type State int

const (
	Pending State = iota
	Ready
	Running
	Done
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// unit is one dispatchable member of the executor's runtime graph: a file
// or phony target keyed by its primary output/phony name. Source leaves
// never become units — resolution already guarantees they exist on disk,
// so they need no state transitions of their own.
type unit struct {
	key         string
	file        *core.FileTarget
	phony       *core.PhonyTarget
	deps        []string // unit keys only; source deps are filtered out
	serialClass string
}

// buildUnits collapses a resolved Graph into the executor's runtime units,
// deduplicating any name that is merely a secondary output of a file target
// already seen under its primary name.
func buildUnits(g *Graph) (map[string]*unit, []string) {
	keyOf := func(n *Node) string {
		switch n.Kind {
		case KindFile:
			return n.File.Primary()
		case KindPhony:
			return n.Phony.Name
		default:
			return n.Name
		}
	}

	units := make(map[string]*unit)
	var order []string
	for _, name := range g.Order {
		n := g.Nodes[name]
		if n.Kind == KindSource {
			continue
		}
		key := keyOf(n)
		if _, exists := units[key]; exists {
			continue
		}
		u := &unit{key: key, file: n.File, phony: n.Phony}
		if n.File != nil {
			u.serialClass = n.File.SerialClass
		}
		for _, d := range n.Deps {
			dn, ok := g.Nodes[d]
			if !ok || dn.Kind == KindSource {
				continue
			}
			if dk := keyOf(dn); dk != key {
				u.deps = append(u.deps, dk)
			}
		}
		units[key] = u
		order = append(order, key)
	}
	return units, order
}

// Result is the outcome of a completed Run.
type Result struct {
	States map[string]State
	// Order is the sequence in which units were dispatched to a worker.
	Order []string
	// Err aggregates every target's failure (via go.uber.org/multierr); nil
	// iff every target reached done.
	Err error
}

// Executor runs a resolved Graph to completion honoring the global
// parallelism bound J, the per-serial-class bound S, and the keep-going
// policy.
type Executor struct {
	oracle    *Oracle
	shell     core.Shell
	jobs      *semaphore.Weighted
	nSerial   int64
	keepGoing bool

	mu           sync.Mutex
	cond         *sync.Cond
	classSems    map[string]*semaphore.Weighted
	state        map[string]State
	remaining    map[string]int
	successors   map[string][]string
	ready        map[string]struct{}
	running      int
	stopDispatch bool
	order        []string
	errs         error
}

// NewExecutor builds an executor for the given concurrency bounds. Values
// below 1 are clamped to 1, matching the CLI's documented defaults.
func NewExecutor(oracle *Oracle, shell core.Shell, nJobs, nSerial int, keepGoing bool) *Executor {
	if nJobs < 1 {
		nJobs = 1
	}
	if nSerial < 1 {
		nSerial = 1
	}
	e := &Executor{
		oracle:    oracle,
		shell:     shell,
		jobs:      semaphore.NewWeighted(int64(nJobs)),
		nSerial:   int64(nSerial),
		keepGoing: keepGoing,
		classSems: make(map[string]*semaphore.Weighted),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Run executes g to quiescence. It returns once every unit has reached a
// terminal state (done, failed, or cancelled) and no worker remains in
// flight. A context cancellation (e.g. the driver's SIGINT handler) puts
// the executor into fail-fast mode: in-flight actions are allowed to
// finish, but no new work is dispatched.
func (e *Executor) Run(ctx context.Context, g *Graph) (*Result, error) {
	units, order := buildUnits(g)

	e.state = make(map[string]State, len(units))
	e.remaining = make(map[string]int, len(units))
	e.successors = make(map[string][]string, len(units))
	e.ready = make(map[string]struct{})
	e.order = nil
	e.errs = nil
	e.stopDispatch = false
	e.running = 0

	for _, key := range order {
		e.state[key] = Pending
		e.remaining[key] = len(units[key].deps)
	}
	for _, key := range order {
		for _, d := range units[key].deps {
			e.successors[d] = append(e.successors[d], key)
		}
	}
	for key := range e.successors {
		sort.Strings(e.successors[key])
	}
	for _, key := range order {
		if e.remaining[key] == 0 {
			e.state[key] = Ready
			e.ready[key] = struct{}{}
		}
	}

	// Actions run under a context detached from ctx's cancellation, so an
	// interrupt stops dispatch without killing an in-flight action.
	eg, egCtx := errgroup.WithContext(context.WithoutCancel(ctx))

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.stopDispatch = true
			e.cond.Broadcast()
			e.mu.Unlock()
		case <-watchDone:
		}
	}()

	e.mu.Lock()
	for {
		e.dispatchLocked(eg, egCtx, units)
		if len(e.ready) == 0 && e.running == 0 {
			break
		}
		e.cond.Wait()
	}
	e.mu.Unlock()

	_ = eg.Wait() // worker goroutines only ever return nil; failures are recorded in e.state/e.errs

	if e.errs == nil && ctx.Err() != nil {
		for _, s := range e.state {
			if s != Done {
				e.errs = fmt.Errorf("build interrupted: %w", ctx.Err())
				break
			}
		}
	}

	return &Result{States: e.snapshot(), Order: append([]string(nil), e.order...), Err: e.errs}, nil
}

// dispatchLocked scans the ready set in lexicographic tie-break order and
// launches every unit whose admission bounds (J and, if tagged, S) currently
// have room. Called with e.mu held.
func (e *Executor) dispatchLocked(eg *errgroup.Group, ctx context.Context, units map[string]*unit) {
	if e.stopDispatch {
		for key := range e.ready {
			e.state[key] = Cancelled
			delete(e.ready, key)
			e.cancelSuccessorsLocked(key)
		}
		return
	}

	keys := make([]string, 0, len(e.ready))
	for k := range e.ready {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		u := units[key]
		if !e.jobs.TryAcquire(1) {
			continue
		}
		var classSem *semaphore.Weighted
		if u.serialClass != "" {
			classSem = e.classSemLocked(u.serialClass)
			if !classSem.TryAcquire(1) {
				e.jobs.Release(1)
				continue
			}
		}

		delete(e.ready, key)
		e.state[key] = Running
		e.running++
		e.order = append(e.order, key)

		eg.Go(func() error {
			e.runUnit(ctx, key, u, classSem)
			return nil
		})
	}
}

func (e *Executor) classSemLocked(class string) *semaphore.Weighted {
	s, ok := e.classSems[class]
	if !ok {
		s = semaphore.NewWeighted(e.nSerial)
		e.classSems[class] = s
	}
	return s
}

// runUnit performs the execution step for one unit outside the lock, then
// records the outcome under the lock.
func (e *Executor) runUnit(ctx context.Context, key string, u *unit, classSem *semaphore.Weighted) {
	failErr := e.execute(ctx, key, u)

	e.mu.Lock()
	e.jobs.Release(1)
	if classSem != nil {
		classSem.Release(1)
	}
	e.running--

	if failErr != nil {
		e.state[key] = Failed
		e.errs = multierr.Append(e.errs, failErr)
		if !e.keepGoing {
			e.stopDispatch = true
		}
		e.cancelSuccessorsLocked(key)
	} else {
		e.state[key] = Done
		for _, succ := range e.successors[key] {
			e.remaining[succ]--
			if e.remaining[succ] == 0 && e.state[succ] == Pending {
				if e.stopDispatch {
					e.state[succ] = Cancelled
					e.cancelSuccessorsLocked(succ)
				} else {
					e.state[succ] = Ready
					e.ready[succ] = struct{}{}
				}
			}
		}
	}
	e.cond.Broadcast()
	e.mu.Unlock()
}

// execute runs the freshness check and, if needed, the action for a single
// unit. It never touches executor state; it returns the target's failure,
// if any.
func (e *Executor) execute(ctx context.Context, key string, u *unit) error {
	if u.phony != nil {
		return nil // propagates dependencies only; nothing to run
	}

	t := u.file
	fresh, err := e.oracle.Fresh(t)
	if err != nil {
		return fmt.Errorf("target %q: checking freshness: %w: %v", key, core.ErrActionFailed, err)
	}
	if fresh {
		return nil
	}

	job := core.JobContext{Outputs: t.Outputs, Inputs: t.Inputs, Shell: e.shell}
	if err := t.Action.Run(ctx, job); err != nil {
		return fmt.Errorf("target %q: %w: %v", key, core.ErrActionFailed, err)
	}

	for _, out := range t.Outputs {
		if _, err := os.Stat(out); err != nil {
			return &OutputMissingError{Target: key, Output: out}
		}
	}

	if err := e.oracle.RecordSuccess(t); err != nil {
		return fmt.Errorf("target %q: recording digest: %w: %v", key, core.ErrActionFailed, err)
	}
	return nil
}

// cancelSuccessorsLocked marks every non-terminal, non-running descendant
// of key as cancelled, recursively. Called with e.mu held.
func (e *Executor) cancelSuccessorsLocked(key string) {
	for _, s := range e.successors[key] {
		switch e.state[s] {
		case Done, Failed, Cancelled, Running:
			continue
		}
		e.state[s] = Cancelled
		delete(e.ready, s)
		e.cancelSuccessorsLocked(s)
	}
}

func (e *Executor) snapshot() map[string]State {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[string]State, len(e.state))
	for k, v := range e.state {
		cp[k] = v
	}
	return cp
}
