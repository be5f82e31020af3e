package arbor

// Subscription is a handle to an active subscription on a stream or source.
type Subscription interface {
	Unsubscribe()
	Closed() bool
}

// Signal is the capability every dependency satisfies: a stable identity and
// a notification stream that emits the signal itself on each relevant
// change. The stream never terminates normally; a misbehaving subscriber
// must not stop delivery to the others.
type Signal interface {
	Identity() Identity
	Notifications() *Stream
}

// Stream is a multicast stream of change notifications.
type Stream struct {
	observers []*streamObserver
}

type streamObserver struct {
	stream *Stream
	fn     func(Signal)
	closed bool
}

func (o *streamObserver) Unsubscribe() {
	if o.closed {
		return
	}
	o.closed = true
	o.stream.remove(o)
}

func (o *streamObserver) Closed() bool { return o.closed }

func NewStream() *Stream { return &Stream{} }

func (st *Stream) Subscribe(fn func(Signal)) Subscription {
	o := &streamObserver{stream: st, fn: fn}
	st.observers = append(st.observers, o)
	return o
}

func (st *Stream) remove(o *streamObserver) {
	for i, cur := range st.observers {
		if cur == o {
			st.observers = append(st.observers[:i], st.observers[i+1:]...)
			return
		}
	}
}

// emit delivers sig to every observer subscribed when the emit started.
// Observers added mid-emit only see later emissions; observers removed
// mid-emit are skipped.
func (st *Stream) emit(sig Signal) {
	snapshot := make([]*streamObserver, len(st.observers))
	copy(snapshot, st.observers)
	for _, o := range snapshot {
		if o.closed {
			continue
		}
		o.fn(sig)
	}
}

// compositeSubscription aggregates several subscriptions behind one handle.
type compositeSubscription struct {
	subs   []Subscription
	closed bool
}

func (c *compositeSubscription) add(sub Subscription) {
	c.subs = append(c.subs, sub)
}

func (c *compositeSubscription) Unsubscribe() {
	if c.closed {
		return
	}
	c.closed = true
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subs = nil
}

func (c *compositeSubscription) Closed() bool { return c.closed }
