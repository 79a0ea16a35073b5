package supervisor_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/backoff"
	"github.com/saverio-kantox/tarearbol/hook"
	"github.com/saverio-kantox/tarearbol/id"
	"github.com/saverio-kantox/tarearbol/supervisor"
	"github.com/saverio-kantox/tarearbol/worker"
)

// memStore is a mutex-guarded stand-in for the coordinator.
type memStore struct {
	mu    sync.Mutex
	descs map[string]worker.Descriptor
	ready bool
}

func newMemStore(descs ...worker.Descriptor) *memStore {
	s := &memStore{descs: make(map[string]worker.Descriptor), ready: true}
	for _, d := range descs {
		s.descs[d.ID] = d
	}
	return s
}

func (s *memStore) Get(id string) (worker.Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.descs[id]
	return d, ok
}

func (s *memStore) Put(d worker.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descs[d.ID] = d
}

func (s *memStore) Del(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.descs, id)
}

func (s *memStore) SetResult(string, any) {}

func (s *memStore) Alive() bool { return true }

func (s *memStore) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *memStore) setReady(v bool) {
	s.mu.Lock()
	s.ready = v
	s.mu.Unlock()
}

// countingEmitter implements supervisor.Emitter with atomic counters.
type countingEmitter struct {
	started   atomic.Int32
	halted    atomic.Int32
	replaced  atomic.Int32
	restarted atomic.Int32
	abandoned atomic.Int32
	overruns  atomic.Int32
	ticks     atomic.Int32
}

func (e *countingEmitter) EmitStepOverrun(context.Context, hook.Overrun) { e.overruns.Add(1) }
func (e *countingEmitter) EmitTickCompleted(context.Context, string, any, time.Duration) {
	e.ticks.Add(1)
}
func (e *countingEmitter) EmitUnitStarted(context.Context, string, id.UnitID, worker.Descriptor) {
	e.started.Add(1)
}
func (e *countingEmitter) EmitUnitHalted(context.Context, string, id.UnitID) { e.halted.Add(1) }
func (e *countingEmitter) EmitUnitReplaced(context.Context, string, id.UnitID, worker.Descriptor) {
	e.replaced.Add(1)
}
func (e *countingEmitter) EmitUnitRestarted(context.Context, string, id.UnitID, int, error) {
	e.restarted.Add(1)
}
func (e *countingEmitter) EmitUnitAbandoned(context.Context, string, error) { e.abandoned.Add(1) }

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestFaultInOneUnitDoesNotAffectSiblings(t *testing.T) {
	dGood := worker.MustNew("good", worker.WithTimeout(5*time.Millisecond))
	dBad := worker.MustNew("bad", worker.WithTimeout(5*time.Millisecond))
	store := newMemStore(dGood, dBad)
	emitter := &countingEmitter{}

	var goodTicks atomic.Int32
	step := func(_ context.Context, inv worker.Invocation) (worker.Directive, error) {
		if inv.ID == "bad" {
			panic("worker exploded")
		}
		return worker.Done(int(goodTicks.Add(1))), nil
	}

	sup := supervisor.New(store,
		supervisor.WithHandler(step),
		supervisor.WithEmitter(emitter),
		supervisor.WithBackoff(backoff.NewConstant(time.Millisecond)),
		supervisor.WithRestartLimit(2, time.Minute),
	)
	defer sup.StopAll(context.Background())

	ctx := context.Background()
	if _, err := sup.Start(ctx, dGood); err != nil {
		t.Fatalf("Start(good): %v", err)
	}
	if _, err := sup.Start(ctx, dBad); err != nil {
		t.Fatalf("Start(bad): %v", err)
	}

	waitFor(t, func() bool { return emitter.abandoned.Load() == 1 }, "bad unit never abandoned")

	// The sibling keeps ticking well past the abandonment.
	before := goodTicks.Load()
	waitFor(t, func() bool { return goodTicks.Load() > before+2 }, "good unit stopped ticking")

	if _, live := sup.Lookup("bad"); live {
		t.Error("abandoned unit should be removed")
	}
	if _, live := sup.Lookup("good"); !live {
		t.Error("sibling unit should still be live")
	}
}

func TestStartDuplicateID(t *testing.T) {
	d := worker.MustNew("w1", worker.WithTimeout(time.Hour))
	store := newMemStore(d)

	step := func(context.Context, worker.Invocation) (worker.Directive, error) {
		return worker.Done(nil), nil
	}
	sup := supervisor.New(store, supervisor.WithHandler(step))
	defer sup.StopAll(context.Background())

	if _, err := sup.Start(context.Background(), d); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := sup.Start(context.Background(), d); !errors.Is(err, tarearbol.ErrDuplicateID) {
		t.Errorf("second Start error = %v, want ErrDuplicateID", err)
	}
}

func TestStartRequiresReadyCoordinator(t *testing.T) {
	d := worker.MustNew("w1")
	store := newMemStore(d)
	store.setReady(false)

	sup := supervisor.New(store, supervisor.WithHandler(func(context.Context, worker.Invocation) (worker.Directive, error) {
		return worker.Halt(), nil
	}))

	if _, err := sup.Start(context.Background(), d); !errors.Is(err, tarearbol.ErrNotReady) {
		t.Errorf("Start error = %v, want ErrNotReady", err)
	}
}

func TestRestartBudgetExhaustionAbandonsUnit(t *testing.T) {
	d := worker.MustNew("w1", worker.WithTimeout(time.Millisecond))
	store := newMemStore(d)
	emitter := &countingEmitter{}

	fault := errors.New("persistent fault")
	step := func(context.Context, worker.Invocation) (worker.Directive, error) {
		return worker.Directive{}, fault
	}

	sup := supervisor.New(store,
		supervisor.WithHandler(step),
		supervisor.WithEmitter(emitter),
		supervisor.WithBackoff(backoff.NewConstant(time.Millisecond)),
		supervisor.WithRestartLimit(3, time.Minute),
	)
	defer sup.StopAll(context.Background())

	if _, err := sup.Start(context.Background(), d); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return emitter.abandoned.Load() == 1 }, "unit never abandoned")

	if got := emitter.restarted.Load(); got != 3 {
		t.Errorf("restarts = %d, want 3 (the budget)", got)
	}
	if _, ok := store.Get("w1"); ok {
		t.Error("descriptor should be removed after abandonment")
	}
}

func TestRestartedUnitGetsFreshUnitID(t *testing.T) {
	d := worker.MustNew("w1", worker.WithTimeout(time.Millisecond))
	store := newMemStore(d)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var calls atomic.Int32

	step := func(_ context.Context, inv worker.Invocation) (worker.Directive, error) {
		mu.Lock()
		seen[inv.Unit.String()] = true
		mu.Unlock()
		if calls.Add(1) == 1 {
			return worker.Directive{}, errors.New("first tick faults")
		}
		return worker.Halt(), nil
	}

	sup := supervisor.New(store,
		supervisor.WithHandler(step),
		supervisor.WithBackoff(backoff.NewConstant(time.Millisecond)),
	)
	defer sup.StopAll(context.Background())

	u, err := sup.Start(context.Background(), d)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-u.Done()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("distinct unit ids = %d, want 2", len(seen))
	}
}

func TestHaltDestroysUnit(t *testing.T) {
	d := worker.MustNew("w1", worker.WithTimeout(time.Millisecond))
	store := newMemStore(d)
	emitter := &countingEmitter{}

	step := func(context.Context, worker.Invocation) (worker.Directive, error) {
		return worker.Halt(), nil
	}
	sup := supervisor.New(store, supervisor.WithHandler(step), supervisor.WithEmitter(emitter))

	u, err := sup.Start(context.Background(), d)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-u.Done()

	if emitter.halted.Load() != 1 {
		t.Errorf("halted events = %d, want 1", emitter.halted.Load())
	}
	if _, live := sup.Lookup("w1"); live {
		t.Error("halted unit should be removed")
	}
	if _, ok := store.Get("w1"); ok {
		t.Error("descriptor should be removed after halt")
	}
}

func TestReplaceStartsSuccessorUnit(t *testing.T) {
	d := worker.MustNew("w2", worker.WithTimeout(time.Millisecond))
	store := newMemStore(d)
	emitter := &countingEmitter{}

	step := func(_ context.Context, inv worker.Invocation) (worker.Directive, error) {
		if inv.ID == "w2" {
			return worker.Swap("w3", "payloadX"), nil
		}
		return worker.Done(inv.Payload), nil
	}

	sup := supervisor.New(store, supervisor.WithHandler(step), supervisor.WithEmitter(emitter))
	defer sup.StopAll(context.Background())

	if _, err := sup.Start(context.Background(), d); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool {
		_, live := sup.Lookup("w3")
		return live
	}, "successor unit never started")

	if _, ok := store.Get("w2"); ok {
		t.Error("old descriptor should be removed")
	}
	nd, ok := store.Get("w3")
	if !ok {
		t.Fatal("new descriptor should be registered")
	}
	if nd.Payload != "payloadX" {
		t.Errorf("new payload = %v, want payloadX", nd.Payload)
	}
	if emitter.replaced.Load() != 1 {
		t.Errorf("replaced events = %d, want 1", emitter.replaced.Load())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	d := worker.MustNew("w1", worker.WithTimeout(time.Millisecond))
	store := newMemStore(d)

	step := func(context.Context, worker.Invocation) (worker.Directive, error) {
		return worker.Done(nil), nil
	}
	sup := supervisor.New(store, supervisor.WithHandler(step))

	if _, err := sup.Start(context.Background(), d); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sup.Stop("w1")
	sup.Stop("w1")
	sup.Stop("never-existed")

	if _, live := sup.Lookup("w1"); live {
		t.Error("stopped unit should be removed")
	}
}

func TestSnapshotReportsLiveUnits(t *testing.T) {
	d1 := worker.MustNew("w1", worker.WithTimeout(time.Hour), worker.WithPayload("a"))
	d2 := worker.MustNew("w2", worker.WithTimeout(time.Hour), worker.WithPayload("b"))
	store := newMemStore(d1, d2)

	step := func(context.Context, worker.Invocation) (worker.Directive, error) {
		return worker.Done(nil), nil
	}
	sup := supervisor.New(store, supervisor.WithHandler(step))
	defer sup.StopAll(context.Background())

	ctx := context.Background()
	if _, err := sup.Start(ctx, d1); err != nil {
		t.Fatalf("Start(w1): %v", err)
	}
	if _, err := sup.Start(ctx, d2); err != nil {
		t.Fatalf("Start(w2): %v", err)
	}

	snap := sup.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(snap))
	}
	byID := make(map[string]worker.Descriptor)
	for _, lu := range snap {
		byID[lu.WorkerID] = lu.Descriptor
	}
	if byID["w1"].Payload != "a" || byID["w2"].Payload != "b" {
		t.Errorf("snapshot descriptors = %+v", byID)
	}
}

func TestStopAllRefusesNewStarts(t *testing.T) {
	store := newMemStore()
	sup := supervisor.New(store, supervisor.WithHandler(func(context.Context, worker.Invocation) (worker.Directive, error) {
		return worker.Halt(), nil
	}))

	sup.StopAll(context.Background())

	d := worker.MustNew("w1")
	if _, err := sup.Start(context.Background(), d); !errors.Is(err, tarearbol.ErrSupervisorDown) {
		t.Errorf("Start error = %v, want ErrSupervisorDown", err)
	}
}
