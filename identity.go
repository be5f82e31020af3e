package arbor

import "sync/atomic"

// Identity is a strictly increasing id assigned to every leaf, twig and
// branch at creation. Dependency lists are keyed by it, equality never needs
// deep comparison, and the scheduler runs branches in ascending identity
// order, which is creation order.
type Identity uint64

var lastIdentity atomic.Uint64

func nextIdentity() Identity {
	return Identity(lastIdentity.Add(1))
}
