package arbor

// Selector decides whether a newly pushed value counts as a change worth
// telling dependents about. prev is the value being replaced.
type Selector[T any] func(prev, next T) bool

// Leaf is a mutable reactive cell. Reading it inside a tracked handler
// registers it as a dependency of that handler's owner; writing it routes
// the value through the leaf's subject, whose selector decides whether
// dependents hear about it.
type Leaf[T comparable] struct {
	sys      *System
	id       Identity
	value    T
	selector Selector[T]
	notes    *Stream
	watchers *Feed[T]
	live     bool
	feeding  Subscription
}

func NewLeaf[T comparable](sys *System, value T) *Leaf[T] {
	return NewLeafWithSelector(sys, value, func(prev, next T) bool { return prev != next })
}

// NewLeafWithSelector creates a leaf with a custom change-detection policy.
// The selector is fixed for the life of the leaf: it must be chosen before
// anything observes the leaf, so there is no setter.
func NewLeafWithSelector[T comparable](sys *System, value T, sel Selector[T]) *Leaf[T] {
	return &Leaf[T]{
		sys:      sys,
		id:       nextIdentity(),
		value:    value,
		selector: sel,
	}
}

func (l *Leaf[T]) Identity() Identity { return l.id }

// Notifications lazily brings the subject to life: the first dependent
// subscription is what makes writes observable at all.
func (l *Leaf[T]) Notifications() *Stream {
	l.ensureSubject()
	return l.notes
}

func (l *Leaf[T]) ensureSubject() {
	if l.live {
		return
	}
	l.live = true
	l.notes = NewStream()
	l.watchers = NewFeed[T]()
}

// Read registers the leaf with the currently evaluating tracker, if any,
// and returns the value. No other side effects.
func (l *Leaf[T]) Read() T {
	l.sys.Connect(l)
	return l.value
}

// Write sets the value directly. A write always wins over an in-flight
// external feed, so any active Observe subscriptions are cancelled first.
// With no live subject the value is set silently: nothing is subscribed,
// so there is nothing to notify.
func (l *Leaf[T]) Write(v T) {
	l.Unobserve()
	if !l.live {
		l.value = v
		return
	}
	l.push(v)
}

// push routes a value through the live subject. The value is always
// stored; the selector decides whether watchers and dependents are told.
func (l *Leaf[T]) push(v T) {
	prev := l.value
	l.value = v
	if !l.selector(prev, v) {
		return
	}
	l.watchers.Publish(v)
	l.notes.emit(l)
}

func (l *Leaf[T]) accept(v T) {
	if l.live {
		l.push(v)
	} else {
		l.value = v
	}
}

// Observe feeds the leaf from an external source: each emission overwrites
// the value and flows through the subject when one is live. Observing a
// second source while the first is still active composites the two rather
// than cancelling; only Write or Unobserve cancels. A sole subscription
// that already closed on its own is silently replaced instead.
func (l *Leaf[T]) Observe(src Source[T]) Subscription {
	sub := src.Subscribe(l.accept, func(err error) {
		if err != nil {
			l.sys.reportError(l, err)
		}
	})
	switch {
	case l.feeding == nil || l.feeding.Closed():
		l.feeding = sub
	default:
		if comp, ok := l.feeding.(*compositeSubscription); ok {
			comp.add(sub)
		} else {
			l.feeding = &compositeSubscription{subs: []Subscription{l.feeding, sub}}
		}
	}
	return sub
}

// Unobserve cancels every subscription Observe created. Safe to call
// repeatedly.
func (l *Leaf[T]) Unobserve() {
	if l.feeding == nil {
		return
	}
	l.feeding.Unsubscribe()
	l.feeding = nil
}

// Subject returns the leaf's multicast channel. Subscribers immediately
// receive the current value, then every accepted change; values published
// into the subject update the leaf.
func (l *Leaf[T]) Subject() *Subject[T] {
	l.ensureSubject()
	return &Subject[T]{leaf: l}
}

// Subject is the live channel mirroring a leaf's value.
type Subject[T comparable] struct {
	leaf *Leaf[T]
}

func (s *Subject[T]) Publish(v T) { s.leaf.push(v) }

func (s *Subject[T]) Subscribe(next func(T), stop func(error)) Subscription {
	sub := s.leaf.watchers.Subscribe(next, stop)
	if next != nil {
		next(s.leaf.value)
	}
	return sub
}
