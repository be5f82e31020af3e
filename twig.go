package arbor

import "fmt"

// Twig is a cached derived value. The handler runs lazily: on the first
// read and again whenever a read finds the twig dirty. Signals read inside
// the handler become the twig's dependencies; a later notification from
// any of them marks the twig dirty and forwards the invalidation to the
// twig's own dependents, without recomputing anything.
type Twig[T comparable] struct {
	sys      *System
	id       Identity
	fn       func() (T, error)
	dirty    bool
	running  bool
	notified bool
	cached   T
	deps     []Signal
	pending  []Signal
	sub      Subscription
	notes    *Stream
}

func NewTwig[T comparable](sys *System, fn func() (T, error)) *Twig[T] {
	return &Twig[T]{
		sys:   sys,
		id:    nextIdentity(),
		fn:    fn,
		dirty: true,
		notes: NewStream(),
	}
}

func (tw *Twig[T]) Identity() Identity { return tw.id }

func (tw *Twig[T]) Notifications() *Stream { return tw.notes }

func (tw *Twig[T]) kind() connectorKind { return connectorTwig }

func (tw *Twig[T]) connect(sig Signal) {
	if s, ok := sig.(*Twig[T]); ok && s == tw {
		// Self-read during the handler; the value getter already
		// short-circuits, a self-dependency would only add a cycle.
		return
	}
	tw.pending = addSignal(tw.pending, sig)
}

// Dirty reports whether the cached value is stale.
func (tw *Twig[T]) Dirty() bool { return tw.dirty }

// MarkDirty forces a recompute on the next read.
func (tw *Twig[T]) MarkDirty() { tw.dirty = true }

// MarkClean accepts the cached value as current without recomputing.
func (tw *Twig[T]) MarkClean() { tw.dirty = false }

// Notify force-emits a change to the twig's dependents without touching
// the dirty flag. Manual invalidation signaling, distinct from MarkDirty,
// which only affects the twig's own next read.
func (tw *Twig[T]) Notify() { tw.notes.emit(tw) }

// Write always fails: twigs are computed, not assignable.
func (tw *Twig[T]) Write(T) error { return ErrTwigNotWritable }

// Value returns the cached value, recomputing it first when dirty. A twig
// that transitively reads itself during its own handler gets the stale
// cached value back instead of recursing. A handler error leaves the twig
// dirty with the stale cache in place and is returned to the caller; the
// dependencies collected before the failure are still subscribed, so a
// future change retries.
func (tw *Twig[T]) Value() (T, error) {
	tw.sys.Connect(tw)
	if !tw.dirty || tw.running {
		return tw.cached, nil
	}
	err := tw.run()
	return tw.cached, err
}

// Read is Value without the error, for handlers that want to treat a stale
// cache as acceptable; the twig stays dirty on failure either way.
func (tw *Twig[T]) Read() T {
	v, _ := tw.Value()
	return v
}

func (tw *Twig[T]) run() error {
	tw.running = true
	tw.notified = false
	prev := tw.deps
	tw.pending = nil
	tw.sys.push(tw)
	defer func() {
		tw.sys.pop()
		tw.running = false
		tw.deps = tw.pending
		tw.pending = nil
		// Reconcile whatever was collected, success or not, so the next
		// change reaches us and retries the handler.
		if sub, changed := reconcile(prev, tw.deps, tw.sub, tw.onDepChange); changed {
			tw.sub = sub
		}
	}()

	value, err := tw.fn()
	if err != nil {
		return fmt.Errorf("twig handler: %w", err)
	}
	tw.cached = value
	tw.dirty = false
	return nil
}

// onDepChange is the shared callback behind the merged dependency
// subscription: mark dirty, forward one notification downstream. The
// forward re-arms on every run attempt so dependents of a failing twig
// keep hearing about retrigger opportunities.
func (tw *Twig[T]) onDepChange(Signal) {
	tw.dirty = true
	if tw.notified {
		return
	}
	tw.notified = true
	tw.notes.emit(tw)
}
