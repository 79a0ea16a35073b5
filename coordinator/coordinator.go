package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/hook"
	"github.com/saverio-kantox/tarearbol/worker"
)

// Emitter emits pool state-change events. hook.Registry satisfies this
// interface; the narrow type keeps the coordinator decoupled from the full
// hook surface.
type Emitter interface {
	EmitStateChange(ctx context.Context, status tarearbol.Status) hook.Action
}

// record pairs a descriptor with the last result its step stored.
type record struct {
	desc      worker.Descriptor
	result    any
	hasResult bool
	updatedAt time.Time
}

// ──────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────

type command interface{ isCommand() }

type putCmd struct {
	id   string
	desc worker.Descriptor
}

type delCmd struct{ id string }

type setResultCmd struct {
	id     string
	result any
}

type setStatusCmd struct{ status tarearbol.Status }

type crashCmd struct{ err error }

type getReply struct {
	desc worker.Descriptor
	ok   bool
}

type getCmd struct {
	id    string
	reply chan getReply
}

type resultReply struct {
	result any
	ok     bool
}

type resultCmd struct {
	id    string
	reply chan resultReply
}

type statusCmd struct{ reply chan tarearbol.Status }

type snapshotCmd struct{ reply chan map[string]worker.Descriptor }

func (putCmd) isCommand()       {}
func (delCmd) isCommand()       {}
func (setResultCmd) isCommand() {}
func (setStatusCmd) isCommand() {}
func (crashCmd) isCommand()     {}
func (getCmd) isCommand()       {}
func (resultCmd) isCommand()    {}
func (statusCmd) isCommand()    {}
func (snapshotCmd) isCommand()  {}

// ──────────────────────────────────────────────────
// Coordinator
// ──────────────────────────────────────────────────

// Coordinator is the single serialization point for pool status and
// descriptor mutation. Create one with New, bring it up with Start, and
// watch Done for unexpected termination.
type Coordinator struct {
	emitter Emitter
	logger  *slog.Logger

	cmds    chan command
	quit    chan struct{}
	done    chan struct{}
	serving atomic.Bool

	errMu sync.Mutex
	err   error

	stopOnce sync.Once

	// Loop-owned state. Touched only by the loop goroutine (and by Start
	// before the loop exists).
	records map[string]record
	status  tarearbol.Status
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMailboxSize sets the command buffer size. Writers block only when the
// mailbox is full.
func WithMailboxSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.cmds = make(chan command, n)
		}
	}
}

// New creates a Coordinator. The emitter may be nil, in which case state
// transitions are not observed.
func New(emitter Emitter, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		emitter: emitter,
		logger:  logger,
		cmds:    make(chan command, 128),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		records: make(map[string]record),
		status:  tarearbol.StatusDown,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start transitions the store to starting, invokes the state-change hook
// before accepting any other traffic, and launches the command loop.
// Returns tarearbol.ErrRestartRequested if the hook vetoes the transition.
func (c *Coordinator) Start(ctx context.Context) error {
	c.status = tarearbol.StatusStarting
	if c.emitter != nil {
		if c.emitter.EmitStateChange(ctx, tarearbol.StatusStarting) == hook.Restart {
			return tarearbol.ErrRestartRequested
		}
	}

	c.serving.Store(true)
	go c.loop()

	c.logger.Debug("coordinator started")
	return nil
}

// Stop terminates the command loop. Writes submitted after Stop are
// dropped; reads report not-found. Idempotent.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.quit) })
}

// Done is closed when the command loop has exited, whether by Stop, by an
// injected fault, or by a restart verdict from the state hook.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Err reports why the loop exited. Nil after a clean Stop.
func (c *Coordinator) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Alive reports whether the command loop is still serving.
func (c *Coordinator) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Ready reports whether the coordinator has completed its starting
// transition and is accepting pool operations.
func (c *Coordinator) Ready() bool {
	if !c.serving.Load() || !c.Alive() {
		return false
	}
	switch c.Status() {
	case tarearbol.StatusStarting, tarearbol.StatusUp:
		return true
	}
	return false
}

// ──────────────────────────────────────────────────
// Writes — asynchronous, fire-and-forget
// ──────────────────────────────────────────────────

// Put upserts the descriptor for its worker key.
func (c *Coordinator) Put(d worker.Descriptor) {
	c.send(putCmd{id: d.ID, desc: d})
}

// Del removes the descriptor for id. No-op if absent.
func (c *Coordinator) Del(id string) {
	c.send(delCmd{id: id})
}

// SetResult stores a step result alongside the descriptor for id.
// Dropped if the descriptor has been removed in the meantime.
func (c *Coordinator) SetResult(id string, result any) {
	c.send(setResultCmd{id: id, result: result})
}

// SetStatus requests a pool status transition. The caller gets no
// acknowledgement; a Status read issued immediately after is not guaranteed
// to observe the transition.
func (c *Coordinator) SetStatus(status tarearbol.Status) {
	c.send(setStatusCmd{status: status})
}

// Crash injects a coordinator fault: the command loop terminates with err
// as if the store itself had failed, and Done is closed. The manager reacts
// with a full ordered restart of everything downstream.
func (c *Coordinator) Crash(err error) {
	c.send(crashCmd{err: err})
}

// send enqueues a command, dropping it if the loop has exited.
func (c *Coordinator) send(cmd command) {
	select {
	case <-c.done:
	case c.cmds <- cmd:
	}
}

// ──────────────────────────────────────────────────
// Reads — synchronous
// ──────────────────────────────────────────────────

// Get returns the descriptor stored under id.
func (c *Coordinator) Get(id string) (worker.Descriptor, bool) {
	if !c.serving.Load() {
		return worker.Descriptor{}, false
	}
	reply := make(chan getReply, 1)
	c.send(getCmd{id: id, reply: reply})
	select {
	case <-c.done:
		return worker.Descriptor{}, false
	case r := <-reply:
		return r.desc, r.ok
	}
}

// Result returns the last result stored for id's worker.
func (c *Coordinator) Result(id string) (any, bool) {
	if !c.serving.Load() {
		return nil, false
	}
	reply := make(chan resultReply, 1)
	c.send(resultCmd{id: id, reply: reply})
	select {
	case <-c.done:
		return nil, false
	case r := <-reply:
		return r.result, r.ok
	}
}

// Status returns the latest transitioned pool status, or StatusUnknown if
// the coordinator is unreachable.
func (c *Coordinator) Status() tarearbol.Status {
	if !c.serving.Load() {
		return tarearbol.StatusDown
	}
	reply := make(chan tarearbol.Status, 1)
	c.send(statusCmd{reply: reply})
	select {
	case <-c.done:
		return tarearbol.StatusUnknown
	case s := <-reply:
		return s
	}
}

// Snapshot returns a copy of the full descriptor mapping. Used by the
// manager's recovery path and for introspection.
func (c *Coordinator) Snapshot() map[string]worker.Descriptor {
	if !c.serving.Load() {
		return nil
	}
	reply := make(chan map[string]worker.Descriptor, 1)
	c.send(snapshotCmd{reply: reply})
	select {
	case <-c.done:
		return nil
	case m := <-reply:
		return m
	}
}

// ──────────────────────────────────────────────────
// Command loop
// ──────────────────────────────────────────────────

func (c *Coordinator) loop() {
	defer close(c.done)

	for {
		select {
		case <-c.quit:
			return
		case cmd := <-c.cmds:
			if err := c.apply(cmd); err != nil {
				c.errMu.Lock()
				c.err = err
				c.errMu.Unlock()
				c.logger.Error("coordinator loop terminated",
					slog.String("error", err.Error()),
				)
				return
			}
		}
	}
}

// apply processes one command. A non-nil return terminates the loop.
func (c *Coordinator) apply(cmd command) error {
	switch v := cmd.(type) {
	case putCmd:
		c.records[v.id] = record{desc: v.desc, updatedAt: time.Now().UTC()}

	case delCmd:
		delete(c.records, v.id)

	case setResultCmd:
		rec, ok := c.records[v.id]
		if !ok {
			return nil
		}
		rec.result = v.result
		rec.hasResult = true
		rec.updatedAt = time.Now().UTC()
		c.records[v.id] = rec

	case setStatusCmd:
		c.status = v.status
		c.logger.Debug("pool status transition", slog.String("status", string(v.status)))
		if c.emitter != nil {
			if c.emitter.EmitStateChange(context.Background(), v.status) == hook.Restart {
				return tarearbol.ErrRestartRequested
			}
		}

	case crashCmd:
		return v.err

	case getCmd:
		rec, ok := c.records[v.id]
		v.reply <- getReply{desc: rec.desc, ok: ok}

	case resultCmd:
		rec, ok := c.records[v.id]
		v.reply <- resultReply{result: rec.result, ok: ok && rec.hasResult}

	case statusCmd:
		v.reply <- c.status

	case snapshotCmd:
		m := make(map[string]worker.Descriptor, len(c.records))
		for id, rec := range c.records {
			m[id] = rec.desc
		}
		v.reply <- m
	}

	return nil
}
