package arbor

// addSignal inserts sig into deps at its binary-search position keyed by
// identity. A signal already sitting at that position is not added twice.
func addSignal(deps []Signal, sig Signal) []Signal {
	lo, hi := 0, len(deps)
	for lo < hi {
		mid := (lo + hi) / 2
		if deps[mid].Identity() < sig.Identity() {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(deps) && deps[lo] == sig {
		return deps
	}
	deps = append(deps, nil)
	copy(deps[lo+1:], deps[lo:])
	deps[lo] = sig
	return deps
}

// sameSignals reports whether two sorted dependency lists hold the same
// signals: equal length and pairwise identical at every index.
func sameSignals(prev, cur []Signal) bool {
	if len(prev) != len(cur) {
		return false
	}
	for i := range prev {
		if prev[i] != cur[i] {
			return false
		}
	}
	return true
}

// reconcile diffs the dependency list of a tracker's previous run against
// the one collected this run. An unchanged list keeps the existing merged
// subscription untouched. A changed one tears the old subscription down
// and, unless the new list is empty, subscribes onNotify to every signal's
// notification stream through one composite handle.
func reconcile(prev, cur []Signal, old Subscription, onNotify func(Signal)) (Subscription, bool) {
	if sameSignals(prev, cur) {
		return old, false
	}
	if old != nil {
		old.Unsubscribe()
	}
	if len(cur) == 0 {
		return nil, true
	}
	merged := &compositeSubscription{subs: make([]Subscription, 0, len(cur))}
	for _, sig := range cur {
		merged.add(sig.Notifications().Subscribe(onNotify))
	}
	return merged, true
}
