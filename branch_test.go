package arbor_test

import (
	"errors"
	"testing"

	"github.com/arborlabs/arbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a branch runs eagerly at construction and re-runs per flush, not per write
func TestBranchEagerAndBatched(t *testing.T) {
	sys := newTestSystem(t)
	a := arbor.NewLeaf(sys, 0)

	counter := 0
	_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		a.Read()
		counter++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counter)

	a.Write(1)
	assert.Equal(t, 1, counter, "re-run waits for the flush")

	sys.RunDeferred()
	assert.Equal(t, 2, counter)

	// both writes collapse into one flush
	a.Write(2)
	a.Write(3)
	sys.RunDeferred()
	assert.Equal(t, 3, counter)
}

// writes to a leaf the branch never read must not reschedule it
func TestBranchIgnoresUnreadLeaf(t *testing.T) {
	sys := newTestSystem(t)
	read := arbor.NewLeaf(sys, 0)
	unread := arbor.NewLeaf(sys, 0)

	counter := 0
	_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		read.Read()
		counter++
		return nil
	})
	require.NoError(t, err)

	unread.Write(1)
	sys.RunDeferred()
	assert.Equal(t, 1, counter)
}

// reads between Freeze and Unfreeze do not register as dependencies
func TestBranchFreeze(t *testing.T) {
	sys := newTestSystem(t)
	x := arbor.NewLeaf(sys, 0)
	y := arbor.NewLeaf(sys, 0)

	counter := 0
	_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		counter++
		b.Freeze()
		x.Read()
		b.Unfreeze()
		y.Read()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counter)

	x.Write(1)
	sys.RunDeferred()
	assert.Equal(t, 1, counter, "frozen reads never reschedule")

	y.Write(1)
	sys.RunDeferred()
	assert.Equal(t, 2, counter)
}

// stopping twice is as safe as stopping once
func TestBranchStopIdempotent(t *testing.T) {
	sys := newTestSystem(t)
	a := arbor.NewLeaf(sys, 0)

	teardowns := 0
	counter := 0
	br, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		a.Read()
		counter++
		return b.Teardown(func() error {
			teardowns++
			return nil
		})
	})
	require.NoError(t, err)

	require.NoError(t, br.Stop())
	assert.Equal(t, 1, teardowns)
	require.NoError(t, br.Stop())
	assert.Equal(t, 1, teardowns, "teardowns are consumed by the first stop")

	a.Write(1)
	sys.RunDeferred()
	assert.Equal(t, 1, counter, "a stopped branch is unsubscribed")

	// a stopped branch can be run again
	require.NoError(t, br.Run())
	assert.Equal(t, 2, counter)
	a.Write(2)
	sys.RunDeferred()
	assert.Equal(t, 3, counter)
}

// each run is a full restart: teardowns run before the handler
func TestBranchTeardownOnRestart(t *testing.T) {
	sys := newTestSystem(t)
	a := arbor.NewLeaf(sys, 0)

	var trace []string
	_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		v := a.Read()
		trace = append(trace, "run")
		return b.Teardown(func() error {
			_ = v
			trace = append(trace, "teardown")
			return nil
		})
	})
	require.NoError(t, err)

	a.Write(1)
	sys.RunDeferred()
	assert.Equal(t, []string{"run", "teardown", "run"}, trace)
}

// disposing a parent disposes all descendants, finalizers exactly once
func TestBranchNestedDispose(t *testing.T) {
	sys := newTestSystem(t)
	leaf := arbor.NewLeaf(sys, 0)

	finalized := map[string]int{}
	outer, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		_, err := arbor.NewBranch(sys, func(inner *arbor.Branch) error {
			leaf.Read()
			_, err := arbor.NewBranch(sys, func(grandchild *arbor.Branch) error {
				return grandchild.Finalize(func() error {
					finalized["grandchild"]++
					return nil
				})
			})
			if err != nil {
				return err
			}
			return inner.Finalize(func() error {
				finalized["inner"]++
				return nil
			})
		})
		return err
	})
	require.NoError(t, err)

	require.NoError(t, outer.Dispose())
	assert.Equal(t, 1, finalized["inner"])
	assert.Equal(t, 1, finalized["grandchild"])

	require.NoError(t, outer.Dispose(), "dispose is idempotent")
	assert.Equal(t, 1, finalized["inner"])

	assert.ErrorIs(t, outer.Run(), arbor.ErrBranchDisposed)
}

// outer writes restart the whole subtree, inner writes only the child
func TestBranchNestedRestartScope(t *testing.T) {
	sys := newTestSystem(t)
	outerLeaf := arbor.NewLeaf(sys, 0)
	innerLeaf := arbor.NewLeaf(sys, 0)

	outerRuns, innerRuns, innerDisposed := 0, 0, 0
	_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		outerLeaf.Read()
		outerRuns++
		inner, err := arbor.NewBranch(sys, func(*arbor.Branch) error {
			innerLeaf.Read()
			innerRuns++
			return nil
		})
		if err != nil {
			return err
		}
		return inner.Finalize(func() error {
			innerDisposed++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outerRuns)
	assert.Equal(t, 1, innerRuns)

	// only the inner branch reads innerLeaf
	innerLeaf.Write(1)
	sys.RunDeferred()
	assert.Equal(t, 1, outerRuns)
	assert.Equal(t, 2, innerRuns)
	assert.Equal(t, 0, innerDisposed)

	// the outer restart disposes and recreates the inner branch
	outerLeaf.Write(1)
	sys.RunDeferred()
	assert.Equal(t, 2, outerRuns)
	assert.Equal(t, 3, innerRuns)
	assert.Equal(t, 1, innerDisposed)
}

// creating a branch while a twig is evaluating is a contract violation
func TestBranchUnderTwigRefused(t *testing.T) {
	sys := newTestSystem(t)
	twig := arbor.NewTwig(sys, func() (int, error) {
		_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error { return nil })
		return 0, err
	})
	_, err := twig.Value()
	assert.ErrorIs(t, err, arbor.ErrBranchUnderTwig)
}

// a branch stopped from inside its own handler ends the run unsubscribed
func TestBranchStopFromWithin(t *testing.T) {
	sys := newTestSystem(t)
	a := arbor.NewLeaf(sys, 0)

	counter := 0
	_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		a.Read()
		counter++
		if counter == 2 {
			return b.Stop()
		}
		return nil
	})
	require.NoError(t, err)

	a.Write(1)
	sys.RunDeferred()
	assert.Equal(t, 2, counter)

	a.Write(2)
	sys.RunDeferred()
	assert.Equal(t, 2, counter, "the second run unsubscribed itself")
}

// a reentrant Run is refused
func TestBranchReentrantRunRefused(t *testing.T) {
	sys := newTestSystem(t)
	var inner error
	_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		inner = b.Run()
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, arbor.ErrBranchRunning)
}

// teardown and finalize on an already stopped branch run immediately
func TestBranchLateCleanupRunsImmediately(t *testing.T) {
	sys := newTestSystem(t)
	br, err := arbor.NewBranch(sys, func(b *arbor.Branch) error { return nil })
	require.NoError(t, err)
	require.NoError(t, br.Stop())

	ran := 0
	require.NoError(t, br.Teardown(func() error {
		ran++
		return nil
	}))
	assert.Equal(t, 1, ran)

	require.NoError(t, br.Finalize(func() error {
		ran++
		return nil
	}))
	assert.Equal(t, 2, ran)
}

// every teardown in a failing subtree still runs, and the errors are joined
func TestBranchAggregateTeardownErrors(t *testing.T) {
	sys := newTestSystem(t)
	first := errors.New("first")
	second := errors.New("second")

	ran := 0
	br, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		if err := b.Teardown(func() error {
			ran++
			return first
		}); err != nil {
			return err
		}
		return b.Teardown(func() error {
			ran++
			return second
		})
	})
	require.NoError(t, err)

	stopErr := br.Stop()
	assert.Equal(t, 2, ran, "a failing teardown never blocks its siblings")
	assert.ErrorIs(t, stopErr, first)
	assert.ErrorIs(t, stopErr, second)
}

// a failing handler keeps the branch subscribed for a retry
func TestBranchHandlerErrorRetries(t *testing.T) {
	boom := errors.New("boom")
	var reported []error
	sys := arbor.NewSystem(arbor.WithErrorFunc(func(from arbor.Reactive, err error) {
		reported = append(reported, err)
	}))
	a := arbor.NewLeaf(sys, 0)

	fail := true
	counter := 0
	_, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		a.Read()
		counter++
		if fail {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, counter)

	fail = false
	a.Write(1)
	sys.RunDeferred()
	assert.Equal(t, 2, counter)
	assert.Empty(t, reported)
}

// unschedule withdraws a pending run
func TestBranchUnschedule(t *testing.T) {
	sys := newTestSystem(t)
	a := arbor.NewLeaf(sys, 0)

	counter := 0
	br, err := arbor.NewBranch(sys, func(b *arbor.Branch) error {
		a.Read()
		counter++
		return nil
	})
	require.NoError(t, err)

	a.Write(1)
	br.Unschedule()
	sys.RunDeferred()
	assert.Equal(t, 1, counter)
}
