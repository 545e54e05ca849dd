// Package guard provides the per-component reentrancy lock.
package guard

import (
	"fmt"

	"tipLedger/internal/model"
)

// Lock is an owned "operation in progress" flag. It is not a mutex: a nested
// Enter from the same call stack fails instead of blocking. Serialization
// between callers is the ledger engine's job.
type Lock struct {
	name   string
	active string
}

// New returns a named lock.
func New(name string) *Lock {
	return &Lock{name: name}
}

// Enter marks op as in progress. It fails with model.ErrReentrancyDetected if
// any guarded operation of the component is already running.
func (l *Lock) Enter(op string) error {
	if l.active != "" {
		return fmt.Errorf("%w: %s.%s called during %s", model.ErrReentrancyDetected, l.name, op, l.active)
	}
	l.active = op
	return nil
}

// Exit clears the in-progress flag.
func (l *Lock) Exit() {
	l.active = ""
}

// Held reports whether an operation is in progress.
func (l *Lock) Held() bool {
	return l.active != ""
}

// Do runs fn between Enter and Exit.
func (l *Lock) Do(op string, fn func() error) error {
	if err := l.Enter(op); err != nil {
		return err
	}
	defer l.Exit()
	return fn()
}
