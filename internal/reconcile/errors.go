// Package reconcile builds the consolidated device/interface graph from the
// redeemer rows, OLSR MID data and the spider snapshot, merges what belongs
// together and emits the canonical devices into the store.
package reconcile

import (
	"errors"
	"fmt"
)

// ErrInvariant marks a broken structural invariant. Runs stop on it.
var ErrInvariant = errors.New("invariant violated")

var (
	// ErrAlreadyMerged is reported, callers decide whether to continue.
	ErrAlreadyMerged = errors.New("already merged")

	ErrMergeCycle     = fmt.Errorf("merge cycle: %w", ErrInvariant)
	ErrSelfMerge      = fmt.Errorf("merge with itself: %w", ErrInvariant)
	ErrForeignIface   = fmt.Errorf("interface of another device: %w", ErrInvariant)
	ErrAlreadyCreated = fmt.Errorf("already created: %w", ErrInvariant)
	ErrMergedAway     = fmt.Errorf("merged away: %w", ErrInvariant)
	ErrIPDone         = fmt.Errorf("ip consumed twice: %w", ErrInvariant)
)
