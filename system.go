package arbor

import "log"

// Reactive marks anything a System can name as the origin of an error
// report: leaves, twigs, branches and wrapped signals.
type Reactive interface {
	Identity() Identity
}

// ErrorFunc receives errors no caller is positioned to handle: a branch
// failing inside a flush, an external feed failing after its Observe call
// returned, a teardown failing during a scheduled restart.
type ErrorFunc func(from Reactive, err error)

type connectorKind uint8

const (
	connectorTwig connectorKind = iota
	connectorBranch
	connectorProbe
)

// connector is a tracker currently evaluating its handler, eligible to
// accumulate dependencies. The kind tag is what branch creation inspects to
// enforce the no-branch-under-twig rule.
type connector interface {
	connect(Signal)
	kind() connectorKind
}

// System owns the tracking stack, the deferred-callback queue and the
// default scheduler. It is single-threaded and cooperative: every call into
// a System and the reactive entities it owns must come from one goroutine.
type System struct {
	stack    []connector
	deferred []func()
	sched    *Scheduler
	onError  ErrorFunc
}

type SystemOption func(*System)

// WithErrorFunc installs the process-wide error hook. Without it, errors
// that cannot be returned to a caller are logged.
func WithErrorFunc(fn ErrorFunc) SystemOption {
	return func(sys *System) { sys.onError = fn }
}

// WithDefer replaces the scheduling primitive backing the system's default
// scheduler. The default queues callbacks on the system itself, to be
// drained by RunDeferred.
func WithDefer(fn DeferFunc) SystemOption {
	return func(sys *System) { sys.sched = NewScheduler(sys, fn) }
}

func NewSystem(opts ...SystemOption) *System {
	sys := &System{}
	for _, opt := range opts {
		opt(sys)
	}
	if sys.sched == nil {
		sys.sched = NewScheduler(sys, nil)
	}
	return sys
}

// Scheduler returns the system's default scheduler, the one root branches
// run on unless told otherwise.
func (sys *System) Scheduler() *Scheduler { return sys.sched }

// Defer queues fn to run on the next RunDeferred pass: the cooperative
// stand-in for a next-turn callback.
func (sys *System) Defer(fn func()) {
	sys.deferred = append(sys.deferred, fn)
}

// RunDeferred drains the deferred queue, including callbacks queued while
// draining.
func (sys *System) RunDeferred() {
	for len(sys.deferred) > 0 {
		fns := sys.deferred
		sys.deferred = nil
		for _, fn := range fns {
			fn()
		}
	}
}

func (sys *System) push(c connector) { sys.stack = append(sys.stack, c) }

func (sys *System) pop() { sys.stack = sys.stack[:len(sys.stack)-1] }

func (sys *System) top() connector {
	if len(sys.stack) == 0 {
		return nil
	}
	return sys.stack[len(sys.stack)-1]
}

// Connect registers sig as a dependency of whichever tracker is evaluating
// right now. Only the topmost tracker sees the read; outside any tracked
// handler this is a no-op. Leaf and twig reads call it implicitly; custom
// signal sources call it to participate in tracking.
func (sys *System) Connect(sig Signal) {
	if top := sys.top(); top != nil {
		top.connect(sig)
	}
}

// probe accumulates signals without ever subscribing to them.
type probe struct {
	deps []Signal
}

func (p *probe) connect(sig Signal) { p.deps = addSignal(p.deps, sig) }

func (p *probe) kind() connectorKind { return connectorProbe }

// Collect runs fn under a throwaway tracker and returns the signals it
// read, sorted by identity. Meant for introspection and tests; nothing is
// subscribed.
func (sys *System) Collect(fn func()) []Signal {
	p := &probe{}
	sys.push(p)
	defer sys.pop()
	fn()
	return p.deps
}

func (sys *System) reportError(from Reactive, err error) {
	if sys.onError != nil {
		sys.onError(from, err)
		return
	}
	log.Printf("arbor: unhandled error from #%d: %v", from.Identity(), err)
}
