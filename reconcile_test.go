package arbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addSignal keeps the list sorted by identity and never double-inserts
func TestAddSignalSortedDedup(t *testing.T) {
	sys := NewSystem()
	a := NewLeaf(sys, 0)
	b := NewLeaf(sys, 0)
	c := NewLeaf(sys, 0)

	var deps []Signal
	deps = addSignal(deps, b)
	deps = addSignal(deps, c)
	deps = addSignal(deps, a)
	deps = addSignal(deps, b)

	require.Len(t, deps, 3)
	assert.Equal(t, []Signal{a, b, c}, deps)
	for i := 1; i < len(deps); i++ {
		assert.True(t, deps[i-1].Identity() < deps[i].Identity())
	}
}

func TestSameSignals(t *testing.T) {
	sys := NewSystem()
	a := NewLeaf(sys, 0)
	b := NewLeaf(sys, 0)

	assert.True(t, sameSignals(nil, nil))
	assert.True(t, sameSignals([]Signal{a, b}, []Signal{a, b}))
	assert.False(t, sameSignals([]Signal{a}, []Signal{a, b}))
	assert.False(t, sameSignals([]Signal{a, b}, []Signal{b, a}))
}

// an unchanged dependency set keeps the existing subscription untouched
func TestTwigSubscriptionStability(t *testing.T) {
	sys := NewSystem()
	leaf := NewLeaf(sys, 0)
	twig := NewTwig(sys, func() (int, error) {
		return leaf.Read(), nil
	})

	_, err := twig.Value()
	require.NoError(t, err)
	firstSub := twig.sub
	require.NotNil(t, firstSub)

	leaf.Write(1)
	_, err = twig.Value()
	require.NoError(t, err)
	assert.Same(t, firstSub, twig.sub, "same dependency set, same subscription")
	assert.False(t, firstSub.Closed())
}

// a changed dependency set tears the old subscription down
func TestTwigSubscriptionRebuilt(t *testing.T) {
	sys := NewSystem()
	useFirst := NewLeaf(sys, true)
	first := NewLeaf(sys, 0)
	second := NewLeaf(sys, 0)
	twig := NewTwig(sys, func() (int, error) {
		if useFirst.Read() {
			return first.Read(), nil
		}
		return second.Read(), nil
	})

	_, _ = twig.Value()
	firstSub := twig.sub

	useFirst.Write(false)
	_, _ = twig.Value()
	assert.NotSame(t, firstSub, twig.sub)
	assert.True(t, firstSub.Closed())
}

// a run that drops every dependency leaves the twig unsubscribed, with its
// outgoing stream intact for existing dependents
func TestTwigZeroDependencyRun(t *testing.T) {
	sys := NewSystem()
	leaf := NewLeaf(sys, 1)
	twig := NewTwig(sys, func() (int, error) {
		return leaf.Read(), nil
	})

	_, _ = twig.Value()
	require.NotNil(t, twig.sub)
	notes := twig.Notifications()

	// the handler now reads nothing at all
	twig.fn = func() (int, error) { return -1, nil }
	twig.MarkDirty()
	_, err := twig.Value()
	require.NoError(t, err)
	assert.Nil(t, twig.sub)
	assert.Empty(t, twig.deps)

	assert.Same(t, notes, twig.Notifications())
	notified := 0
	twig.Notifications().Subscribe(func(Signal) { notified++ })
	twig.Notify()
	assert.Equal(t, 1, notified)
}

// collect returns the signals a function reads, sorted, without subscribing
func TestCollect(t *testing.T) {
	sys := NewSystem()
	a := NewLeaf(sys, 1)
	b := NewLeaf(sys, 2)
	twig := NewTwig(sys, func() (int, error) { return a.Read() + b.Read(), nil })

	signals := sys.Collect(func() {
		b.Read()
		_, _ = twig.Value()
		b.Read()
	})
	assert.Equal(t, []Identity{b.Identity(), twig.Identity()}, identitiesOf(signals))
}

func identitiesOf(signals []Signal) []Identity {
	ids := make([]Identity, len(signals))
	for i, s := range signals {
		ids[i] = s.Identity()
	}
	return ids
}
