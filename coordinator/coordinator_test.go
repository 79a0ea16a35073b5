package coordinator_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/coordinator"
	"github.com/saverio-kantox/tarearbol/hook"
	"github.com/saverio-kantox/tarearbol/worker"
)

// verdictEmitter returns a configured verdict per status.
type verdictEmitter struct {
	verdicts map[tarearbol.Status]hook.Action
	seen     []tarearbol.Status
}

func (e *verdictEmitter) EmitStateChange(_ context.Context, status tarearbol.Status) hook.Action {
	e.seen = append(e.seen, status)
	if v, ok := e.verdicts[status]; ok {
		return v
	}
	return hook.Continue
}

func startCoordinator(t *testing.T, emitter coordinator.Emitter) *coordinator.Coordinator {
	t.Helper()
	c := coordinator.New(emitter, slog.Default())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestStartInvokesStateHookBeforeServing(t *testing.T) {
	e := &verdictEmitter{}
	c := startCoordinator(t, e)

	if len(e.seen) != 1 || e.seen[0] != tarearbol.StatusStarting {
		t.Errorf("hook saw %v, want [starting]", e.seen)
	}
	if !c.Ready() {
		t.Error("coordinator should be ready after Start")
	}
}

func TestStartVetoedByStateHook(t *testing.T) {
	e := &verdictEmitter{verdicts: map[tarearbol.Status]hook.Action{
		tarearbol.StatusStarting: hook.Restart,
	}}
	c := coordinator.New(e, slog.Default())

	if err := c.Start(context.Background()); !errors.Is(err, tarearbol.ErrRestartRequested) {
		t.Fatalf("Start error = %v, want ErrRestartRequested", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := startCoordinator(t, nil)

	d := worker.MustNew("w1", worker.WithPayload("data"), worker.WithTimeout(time.Second))
	c.Put(d)

	got, ok := c.Get("w1")
	if !ok {
		t.Fatal("Get(w1) after Put should find the descriptor")
	}
	if got.Payload != "data" || got.Timeout != time.Second {
		t.Errorf("descriptor = %+v", got)
	}
}

func TestPutReplacesExistingDescriptor(t *testing.T) {
	c := startCoordinator(t, nil)

	c.Put(worker.MustNew("w1", worker.WithPayload("old")))
	c.Put(worker.MustNew("w1", worker.WithPayload("new")))

	got, _ := c.Get("w1")
	if got.Payload != "new" {
		t.Errorf("payload = %v, want new", got.Payload)
	}
}

func TestDelRemovesDescriptor(t *testing.T) {
	c := startCoordinator(t, nil)

	c.Put(worker.MustNew("w1"))
	c.Del("w1")
	if _, ok := c.Get("w1"); ok {
		t.Error("Get(w1) after Del should be absent")
	}

	// Deleting an absent key is a no-op.
	c.Del("never-existed")
	if _, ok := c.Get("never-existed"); ok {
		t.Error("never-inserted key should be absent")
	}
}

func TestSetResultStoresAlongsideDescriptor(t *testing.T) {
	c := startCoordinator(t, nil)

	c.Put(worker.MustNew("w1"))
	if _, ok := c.Result("w1"); ok {
		t.Error("Result before any SetResult should be absent")
	}

	c.SetResult("w1", 42)
	r, ok := c.Result("w1")
	if !ok || r != 42 {
		t.Errorf("Result = %v, %v; want 42, true", r, ok)
	}

	// A result for a removed descriptor is dropped.
	c.Del("w1")
	c.SetResult("w1", 43)
	if _, ok := c.Result("w1"); ok {
		t.Error("SetResult after Del should be dropped")
	}
}

func TestSetStatusIsEventuallyObserved(t *testing.T) {
	c := startCoordinator(t, nil)

	c.SetStatus(tarearbol.StatusUp)

	// Async write: poll until the transition settles.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Status() == tarearbol.StatusUp {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Errorf("status = %v, want up", c.Status())
}

func TestRestartVerdictTerminatesLoop(t *testing.T) {
	e := &verdictEmitter{verdicts: map[tarearbol.Status]hook.Action{
		tarearbol.StatusUp: hook.Restart,
	}}
	c := startCoordinator(t, e)

	c.SetStatus(tarearbol.StatusUp)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("loop should terminate on a restart verdict")
	}
	if !errors.Is(c.Err(), tarearbol.ErrRestartRequested) {
		t.Errorf("Err() = %v, want ErrRestartRequested", c.Err())
	}
}

func TestCrashTerminatesLoopWithCause(t *testing.T) {
	c := startCoordinator(t, nil)

	cause := errors.New("injected fault")
	c.Crash(cause)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("loop should terminate on Crash")
	}
	if !errors.Is(c.Err(), cause) {
		t.Errorf("Err() = %v, want %v", c.Err(), cause)
	}
	if c.Alive() {
		t.Error("Alive() should be false after crash")
	}
	if c.Ready() {
		t.Error("Ready() should be false after crash")
	}

	// Reads against a dead coordinator do not block.
	if _, ok := c.Get("w1"); ok {
		t.Error("Get on a dead coordinator should be absent")
	}
	if got := c.Status(); got != tarearbol.StatusUnknown {
		t.Errorf("Status on a dead coordinator = %v, want unknown", got)
	}
}

func TestStopIsIdempotentAndClean(t *testing.T) {
	c := startCoordinator(t, nil)

	c.Stop()
	c.Stop()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done should close after Stop")
	}
	if c.Err() != nil {
		t.Errorf("Err() after clean Stop = %v, want nil", c.Err())
	}
}

func TestReadsBeforeStartDoNotBlock(t *testing.T) {
	c := coordinator.New(nil, slog.Default())

	if c.Ready() {
		t.Error("Ready before Start should be false")
	}
	if _, ok := c.Get("w1"); ok {
		t.Error("Get before Start should be absent")
	}
	if got := c.Status(); got != tarearbol.StatusDown {
		t.Errorf("Status before Start = %v, want down", got)
	}
}

func TestSnapshotCopiesAllDescriptors(t *testing.T) {
	c := startCoordinator(t, nil)

	c.Put(worker.MustNew("w1", worker.WithPayload("a")))
	c.Put(worker.MustNew("w2", worker.WithPayload("b")))

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(snap))
	}
	if snap["w1"].Payload != "a" || snap["w2"].Payload != "b" {
		t.Errorf("snapshot = %+v", snap)
	}
}
