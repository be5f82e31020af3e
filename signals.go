package arbor

// WrappedSignal adapts an arbitrary external source into a Signal: each
// emission becomes one notification carrying the wrapper itself. A source
// failure is reported through the system error hook; it never stops other
// signals from propagating.
type WrappedSignal[T any] struct {
	sys   *System
	id    Identity
	notes *Stream
	sub   Subscription
}

func WrapSignal[T any](sys *System, src Source[T]) *WrappedSignal[T] {
	w := &WrappedSignal[T]{
		sys:   sys,
		id:    nextIdentity(),
		notes: NewStream(),
	}
	w.sub = src.Subscribe(func(T) {
		w.notes.emit(w)
	}, func(err error) {
		if err != nil {
			sys.reportError(w, err)
		}
	})
	return w
}

func (w *WrappedSignal[T]) Identity() Identity { return w.id }

func (w *WrappedSignal[T]) Notifications() *Stream { return w.notes }

// Connect registers the wrapper with the currently evaluating tracker, for
// handlers that depend on the external stream without reading a value.
func (w *WrappedSignal[T]) Connect() { w.sys.Connect(w) }

// Unwire detaches the wrapper from its source; dependents keep their
// subscriptions but hear nothing further.
func (w *WrappedSignal[T]) Unwire() { w.sub.Unsubscribe() }
