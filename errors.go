package arbor

import "errors"

var (
	// ErrBranchUnderTwig is returned when a branch is created while a twig
	// is the active tracker; branches cannot nest under twigs.
	ErrBranchUnderTwig = errors.New("branches cannot nest under twigs")

	// ErrBranchRunning is returned by a reentrant Run on a branch whose
	// handler is still executing.
	ErrBranchRunning = errors.New("branch is already running")

	// ErrBranchDisposed is returned by Run on a disposed branch.
	ErrBranchDisposed = errors.New("branch is disposed")

	// ErrTwigNotWritable is returned by a twig's Write: twigs are computed,
	// not assignable.
	ErrTwigNotWritable = errors.New("twig is not writable")
)
