package arbor

// DeferFunc invokes fn exactly once, after the current unit of work.
type DeferFunc func(fn func())

// Immediate is the synchronous scheduling primitive: the callback runs
// inline. For deterministic tests and effects that must not be batched.
func Immediate(fn func()) { fn() }

// Scheduler batches branch re-runs. A storm of near-simultaneous
// notifications collapses into one flush, and a flush executes branches in
// strictly ascending identity order, once each.
type Scheduler struct {
	sys      *System
	deferFn  DeferFunc
	pending  []*Branch
	inFlight []*Branch
	armed    bool
	draining bool
	reenter  bool
	current  Identity
}

// NewScheduler creates a scheduler on the given primitive. A nil deferFn
// uses the system's cooperative deferred queue.
func NewScheduler(sys *System, deferFn DeferFunc) *Scheduler {
	s := &Scheduler{sys: sys, deferFn: deferFn}
	if s.deferFn == nil {
		s.deferFn = sys.Defer
	}
	return s
}

// NewSyncScheduler returns a scheduler whose flush runs inline as soon as
// the first branch is scheduled.
func NewSyncScheduler(sys *System) *Scheduler {
	return NewScheduler(sys, Immediate)
}

// ScheduleBranch queues b for the next flush. A branch already queued
// stays where it is. A branch scheduled while a flush is draining joins
// the current drain only when its identity is past the branch executing
// right now; lower identities wait for the next flush, so one pass can
// never recurse into itself.
func (s *Scheduler) ScheduleBranch(b *Branch) {
	if containsBranch(s.pending, b.id) || containsBranch(s.inFlight, b.id) {
		return
	}
	if s.draining && b.id > s.current {
		s.inFlight = insertBranch(s.inFlight, b)
		return
	}
	s.pending = insertBranch(s.pending, b)
	if !s.armed {
		s.armed = true
		s.deferFn(s.Flush)
	}
}

// UnscheduleBranch removes b from whichever queue holds it. No-op when
// absent.
func (s *Scheduler) UnscheduleBranch(b *Branch) {
	s.pending = removeBranch(s.pending, b.id)
	s.inFlight = removeBranch(s.inFlight, b.id)
}

// Flush drains every queued branch in ascending identity order. A failing
// branch is reported through the system error hook and the drain
// continues; one branch's failure never corrupts the queues.
func (s *Scheduler) Flush() {
	if s.draining {
		// Inline primitives re-enter here when a lower-identity branch is
		// scheduled mid-drain; remember to start the next pass afterwards.
		s.reenter = true
		return
	}
	s.draining = true
	defer func() {
		s.draining = false
		s.current = 0
		if s.reenter {
			s.reenter = false
			if len(s.pending) > 0 {
				s.Flush()
			}
		}
	}()

	s.inFlight = append(s.inFlight, s.pending...)
	s.pending = nil
	s.armed = false
	for len(s.inFlight) > 0 {
		b := s.inFlight[0]
		s.inFlight = s.inFlight[1:]
		s.current = b.id
		if err := b.Run(); err != nil {
			s.sys.reportError(b, err)
		}
	}
}

func searchBranch(list []*Branch, id Identity) (int, bool) {
	lo, hi := 0, len(list)
	for lo < hi {
		mid := (lo + hi) / 2
		if list[mid].id < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(list) && list[lo].id == id
}

func containsBranch(list []*Branch, id Identity) bool {
	_, ok := searchBranch(list, id)
	return ok
}

func insertBranch(list []*Branch, b *Branch) []*Branch {
	at, ok := searchBranch(list, b.id)
	if ok {
		return list
	}
	list = append(list, nil)
	copy(list[at+1:], list[at:])
	list[at] = b
	return list
}

func removeBranch(list []*Branch, id Identity) []*Branch {
	at, ok := searchBranch(list, id)
	if !ok {
		return list
	}
	return append(list[:at], list[at+1:]...)
}
