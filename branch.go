package arbor

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// BranchFunc is a branch handler. It receives the branch itself so the
// handler can freeze tracking, register teardowns, or spawn children.
type BranchFunc func(b *Branch) error

// Branch is a reactive procedure. It runs eagerly at creation, collects
// dependencies and child branches during its handler, and re-runs through
// its scheduler when a dependency notifies. Every run is a full restart:
// children from the previous run are disposed and teardowns run first.
// Branches form a strict ownership tree; disposing a parent disposes its
// whole subtree.
type Branch struct {
	sys   *System
	id    Identity
	fn    BranchFunc
	sched *Scheduler

	running  bool
	frozen   bool
	stopped  bool
	disposed bool

	deps    []Signal
	pending []Signal
	sub     Subscription

	parent     *Branch
	children   mapset.Set[*Branch]
	teardowns  []func() error
	finalizers []func() error
}

type BranchOption func(*Branch)

// WithScheduler overrides the scheduler the branch re-runs on. By default a
// child inherits its parent's scheduler and a root branch uses the system
// default.
func WithScheduler(s *Scheduler) BranchOption {
	return func(b *Branch) { b.sched = s }
}

// NewBranch creates a branch and runs it immediately. If a branch is
// currently evaluating, the new branch attaches to it as a child; creating
// a branch while a twig is evaluating is a contract violation. The
// returned branch is valid even when the first run reports an error.
func NewBranch(sys *System, fn BranchFunc, opts ...BranchOption) (*Branch, error) {
	b := &Branch{
		sys:      sys,
		id:       nextIdentity(),
		fn:       fn,
		children: mapset.NewSet[*Branch](),
	}
	for _, opt := range opts {
		opt(b)
	}
	if top := sys.top(); top != nil {
		switch top.kind() {
		case connectorTwig:
			return nil, ErrBranchUnderTwig
		case connectorBranch:
			parent := top.(*Branch)
			b.parent = parent
			parent.children.Add(b)
			if b.sched == nil {
				b.sched = parent.sched
			}
		}
	}
	if b.sched == nil {
		b.sched = sys.sched
	}
	return b, b.Run()
}

func (b *Branch) Identity() Identity { return b.id }

func (b *Branch) kind() connectorKind { return connectorBranch }

func (b *Branch) connect(sig Signal) {
	if b.frozen {
		return
	}
	b.pending = addSignal(b.pending, sig)
}

// Running reports whether the branch's handler is currently executing.
func (b *Branch) Running() bool { return b.running }

// Stopped reports whether the branch is stopped.
func (b *Branch) Stopped() bool { return b.stopped }

// Disposed reports whether the branch is permanently retired.
func (b *Branch) Disposed() bool { return b.disposed }

// Run restarts the branch: children from the previous run are disposed and
// teardowns run, then the handler executes with this branch as the active
// tracker. If the handler stops or disposes the branch from within, the
// run ends unsubscribed. A handler error does not skip reconciliation: the
// branch stays subscribed to whatever it read before failing, so the next
// change retries it.
func (b *Branch) Run() error {
	if b.disposed {
		return ErrBranchDisposed
	}
	if b.running {
		return ErrBranchRunning
	}

	restartErr := b.restart()

	b.running = true
	b.frozen = false
	b.stopped = false

	prev := b.deps
	b.pending = nil
	var handlerErr error
	b.sys.push(b)
	func() {
		defer b.sys.pop()
		handlerErr = b.fn(b)
	}()
	b.running = false

	b.deps = b.pending
	b.pending = nil
	if b.stopped || b.disposed {
		// Stopped from inside the handler: stay unsubscribed.
		b.deps = nil
	} else if sub, changed := reconcile(prev, b.deps, b.sub, b.onDepChange); changed {
		b.sub = sub
	}
	if handlerErr != nil {
		handlerErr = fmt.Errorf("branch handler: %w", handlerErr)
	}
	return errors.Join(restartErr, handlerErr)
}

func (b *Branch) onDepChange(Signal) { b.Schedule() }

// restart clears out everything the previous run owned. Every child and
// teardown runs even if an earlier one fails; the failures are joined.
func (b *Branch) restart() error {
	errs := b.disposeChildren()
	errs = append(errs, b.runTeardowns()...)
	return errors.Join(errs...)
}

func (b *Branch) disposeChildren() []error {
	var errs []error
	for _, child := range b.children.ToSlice() {
		if err := child.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	b.children.Clear()
	return errs
}

func (b *Branch) runTeardowns() []error {
	teardowns := b.teardowns
	b.teardowns = nil
	var errs []error
	for _, fn := range teardowns {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Stop halts the branch until the next explicit Run: it withdraws any
// pending scheduled run, cancels the dependency subscription, disposes all
// children and runs the teardowns. Stopping twice is safe; every operation
// underneath is idempotent.
func (b *Branch) Stop() error {
	b.stopped = true
	b.sched.UnscheduleBranch(b)
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.sub = nil
	}
	// The dependency list goes with the subscription, so a later Run
	// resubscribes from scratch instead of seeing an unchanged list.
	b.deps = nil
	errs := b.disposeChildren()
	errs = append(errs, b.runTeardowns()...)
	return errors.Join(errs...)
}

// Dispose permanently retires the branch: detach from the parent, then
// everything Stop does, then the finalizers, exactly once. A disposed
// branch ignores Schedule and refuses Run.
func (b *Branch) Dispose() error {
	if b.disposed {
		return nil
	}
	if b.parent != nil {
		b.parent.children.Remove(b)
		b.parent = nil
	}
	errs := []error{b.Stop()}
	finalizers := b.finalizers
	b.finalizers = nil
	for _, fn := range finalizers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	b.disposed = true
	return errors.Join(errs...)
}

// Freeze suspends dependency registration for the rest of the current
// handler invocation. Meaningful only while the handler is running; every
// run starts unfrozen.
func (b *Branch) Freeze() { b.frozen = true }

// Unfreeze resumes dependency registration.
func (b *Branch) Unfreeze() { b.frozen = false }

// Schedule queues the branch on its scheduler for the next flush. Silently
// ignored once disposed.
func (b *Branch) Schedule() {
	if b.disposed {
		return
	}
	b.sched.ScheduleBranch(b)
}

// Unschedule withdraws a pending run. It has no effect on a run already in
// progress.
func (b *Branch) Unschedule() { b.sched.UnscheduleBranch(b) }

// Teardown registers fn to run at the start of every subsequent stop or
// restart. On a branch that is already stopped or disposed, fn runs
// immediately rather than being dropped.
func (b *Branch) Teardown(fn func() error) error {
	if !b.running && (b.stopped || b.disposed) {
		return fn()
	}
	b.teardowns = append(b.teardowns, fn)
	return nil
}

// Finalize registers fn to run exactly once at dispose, with the same
// fail-safe as Teardown.
func (b *Branch) Finalize(fn func() error) error {
	if !b.running && (b.stopped || b.disposed) {
		return fn()
	}
	b.finalizers = append(b.finalizers, fn)
	return nil
}
