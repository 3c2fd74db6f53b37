// Package executor runs operations off the interaction loop. Mutations run
// one at a time in submission order; reads run concurrently up to a limit.
// Every submitted operation yields exactly one result on Results.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/interpretive-systems/gitscope/internal/op"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("executor closed")

// Runner runs one operation to completion.
type Runner interface {
	Run(ctx context.Context, o op.Operation) op.Result
}

type job struct {
	id     uint64
	op     op.Operation
	key    op.Key
	fp     string
	ctx    context.Context
	cancel context.CancelFunc
	// superseded is guarded by Executor.mu.
	superseded bool
}

// Executor schedules operations. It is safe for concurrent use.
type Executor struct {
	runner  Runner
	log     *slog.Logger
	reads   *semaphore.Weighted
	results chan op.Result

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	nextID   uint64
	closed   bool
	queue    []*job
	running  *job
	inflight map[*job]struct{}
	wake     chan struct{}

	outMu   sync.Mutex
	out     []op.Result
	outWake chan struct{}
	done    chan struct{}
}

// New starts an executor with at most readWorkers concurrent reads.
func New(r Runner, readWorkers int, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		runner:   r,
		log:      log,
		reads:    semaphore.NewWeighted(int64(max(readWorkers, 1))),
		results:  make(chan op.Result, 16),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[*job]struct{}),
		wake:     make(chan struct{}, 1),
		outWake:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	e.wg.Add(1)
	go e.mutations()
	go e.pump()
	return e
}

// Results delivers one result per submitted operation, in completion order.
// It is closed by Close.
func (e *Executor) Results() <-chan op.Result { return e.results }

// Submit schedules o and returns its ID. IDs increase monotonically. A
// submission identical to a pending or running operation joins it and
// returns that operation's ID instead.
func (e *Executor) Submit(o op.Operation) (uint64, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}

	j := &job{op: o, key: o.Key(), fp: o.Fingerprint()}
	if o.Kind.Mutating() {
		if id, ok := e.enqueueMutation(j); ok {
			return id, nil
		}
	} else if id, ok := e.startRead(j); ok {
		return id, nil
	}
	return j.id, nil
}

func (e *Executor) assignID(j *job) {
	e.nextID++
	j.id = e.nextID
}

// enqueueMutation queues j. It reports an existing ID when j joins an
// identical pending or running operation.
func (e *Executor) enqueueMutation(j *job) (uint64, bool) {
	super := j.op.Kind.Supersedable()
	if r := e.running; r != nil && super && r.key == j.key {
		if r.fp == j.fp && !r.superseded {
			e.log.Debug("operation joined running duplicate", "id", r.id, "op", j.op.String())
			return r.id, true
		}
		r.superseded = true
		e.log.Info("running operation superseded", "id", r.id, "op", r.op.String())
	}
	if super {
		for i, q := range e.queue {
			if q.key != j.key {
				continue
			}
			if q.fp == j.fp {
				e.log.Debug("operation joined queued duplicate", "id", q.id, "op", j.op.String())
				return q.id, true
			}
			e.assignID(j)
			e.queue[i] = j
			e.log.Info("queued operation superseded", "id", q.id, "by", j.id, "op", q.op.String())
			e.post(op.Result{ID: q.id, Op: q.op, Outcome: op.Superseded})
			return 0, false
		}
	}
	e.assignID(j)
	e.queue = append(e.queue, j)
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return 0, false
}

// startRead launches j. Reads of the same key cancel in-flight ones.
func (e *Executor) startRead(j *job) (uint64, bool) {
	for r := range e.inflight {
		if r.key != j.key || r.superseded {
			continue
		}
		if r.fp == j.fp {
			return r.id, true
		}
		if j.op.Kind.Supersedable() {
			r.superseded = true
			r.cancel()
			e.log.Debug("read superseded", "id", r.id, "op", r.op.String())
		}
	}
	e.assignID(j)
	j.ctx, j.cancel = context.WithCancel(e.ctx)
	e.inflight[j] = struct{}{}
	e.wg.Add(1)
	go e.read(j)
	return 0, false
}

func (e *Executor) read(j *job) {
	defer e.wg.Done()
	defer j.cancel()

	var res op.Result
	if err := e.reads.Acquire(j.ctx, 1); err != nil {
		res = op.Result{Outcome: op.Superseded, Cause: err}
	} else {
		res = e.run(j.ctx, j)
		e.reads.Release(1)
	}

	e.mu.Lock()
	delete(e.inflight, j)
	if j.superseded {
		res.Outcome = op.Superseded
	}
	e.mu.Unlock()
	res.ID, res.Op = j.id, j.op
	e.post(res)
}

func (e *Executor) mutations() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.mu.Unlock()
			<-e.wake
			e.mu.Lock()
		}
		if e.closed {
			e.mu.Unlock()
			return
		}
		j := e.queue[0]
		e.queue = e.queue[1:]
		e.running = j
		e.mu.Unlock()

		// Started mutations run to completion, even through Close.
		res := e.run(context.WithoutCancel(e.ctx), j)

		e.mu.Lock()
		e.running = nil
		if j.superseded {
			res.Outcome = op.Superseded
		}
		e.mu.Unlock()
		res.ID, res.Op = j.id, j.op
		e.post(res)
	}
}

func (e *Executor) run(ctx context.Context, j *job) op.Result {
	start := time.Now()
	e.log.Info("operation started", "id", j.id, "op", j.op.String())
	res := e.runner.Run(ctx, j.op)
	attrs := []any{"id", j.id, "op", j.op.String(), "outcome", res.Outcome.String(), "duration", time.Since(start)}
	if res.Outcome == op.Failed {
		e.log.Warn("operation failed", append(attrs, "exit", res.ExitCode, "stderr", res.Stderr)...)
	} else {
		e.log.Info("operation finished", attrs...)
	}
	return res
}

// post queues r for delivery without blocking the caller.
func (e *Executor) post(r op.Result) {
	e.outMu.Lock()
	e.out = append(e.out, r)
	e.outMu.Unlock()
	select {
	case e.outWake <- struct{}{}:
	default:
	}
}

func (e *Executor) pump() {
	defer close(e.results)
	for {
		e.outMu.Lock()
		if len(e.out) == 0 {
			e.outMu.Unlock()
			select {
			case <-e.outWake:
				continue
			case <-e.done:
				return
			}
		}
		r := e.out[0]
		e.out = e.out[1:]
		e.outMu.Unlock()
		select {
		case e.results <- r:
		case <-e.done:
			return
		}
	}
}

// Pending returns the number of queued and running operations.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.queue) + len(e.inflight)
	if e.running != nil {
		n++
	}
	return n
}

// Close stops accepting operations, cancels reads, drops queued mutations
// and waits for a running mutation to finish. Results not yet received are
// discarded and Results is closed.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	dropped := e.queue
	e.queue = nil
	e.mu.Unlock()

	for _, j := range dropped {
		e.log.Debug("queued operation dropped", "id", j.id, "op", j.op.String())
	}
	e.cancel()
	select {
	case e.wake <- struct{}{}:
	default:
	}
	e.wg.Wait()
	close(e.done)
	return nil
}
