package arbor

// Source is a push-based, possibly never-terminating stream of values, the
// shape Leaf.Observe and WrapSignal consume. stop fires at most once per
// subscriber: nil on a normal close, the error on failure. A failure is
// delivered to every subscriber, not just the first.
type Source[T any] interface {
	Subscribe(next func(T), stop func(error)) Subscription
}

// Feed is the in-process multicast Source. Publishing fans out to every
// active subscriber; Close and Fail retire the feed for good.
type Feed[T any] struct {
	subs []*feedSub[T]
	done bool
	err  error
}

type feedSub[T any] struct {
	feed   *Feed[T]
	next   func(T)
	stop   func(error)
	closed bool
}

func (s *feedSub[T]) Unsubscribe() {
	if s.closed {
		return
	}
	s.closed = true
	s.feed.remove(s)
}

func (s *feedSub[T]) Closed() bool { return s.closed }

func NewFeed[T any]() *Feed[T] { return &Feed[T]{} }

// Subscribe attaches next/stop callbacks. Subscribing to a feed that
// already finished immediately invokes stop with the feed's outcome.
func (f *Feed[T]) Subscribe(next func(T), stop func(error)) Subscription {
	s := &feedSub[T]{feed: f, next: next, stop: stop}
	if f.done {
		s.closed = true
		if stop != nil {
			stop(f.err)
		}
		return s
	}
	f.subs = append(f.subs, s)
	return s
}

func (f *Feed[T]) Publish(v T) {
	if f.done {
		return
	}
	snapshot := make([]*feedSub[T], len(f.subs))
	copy(snapshot, f.subs)
	for _, s := range snapshot {
		if s.closed || s.next == nil {
			continue
		}
		s.next(v)
	}
}

// Close ends the feed normally.
func (f *Feed[T]) Close() { f.finish(nil) }

// Fail ends the feed with err, delivered to every subscriber.
func (f *Feed[T]) Fail(err error) { f.finish(err) }

func (f *Feed[T]) finish(err error) {
	if f.done {
		return
	}
	f.done = true
	f.err = err
	subs := f.subs
	f.subs = nil
	for _, s := range subs {
		if s.closed {
			continue
		}
		s.closed = true
		if s.stop != nil {
			s.stop(err)
		}
	}
}

func (f *Feed[T]) remove(s *feedSub[T]) {
	for i, cur := range f.subs {
		if cur == s {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return
		}
	}
}
