// Package journal records undo entries for ledger state so that a failing
// operation leaves every balance, account, rate and pending event exactly as
// it was before the call.
package journal

import (
	"github.com/ethereum/go-ethereum/core/types"
)

// Journal is an ordered list of undo entries plus the logs emitted since the
// last Drain. It is not safe for concurrent use.
type Journal struct {
	entries []func()
	logs    []*types.Log
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// Append records an undo entry for a mutation that has just been applied.
func (j *Journal) Append(undo func()) {
	j.entries = append(j.entries, undo)
}

// Snapshot returns an identifier for the current journal position.
func (j *Journal) Snapshot() int {
	return len(j.entries)
}

// RevertToSnapshot undoes every entry recorded after id, newest first.
func (j *Journal) RevertToSnapshot(id int) {
	if id < 0 || id > len(j.entries) {
		return
	}
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:id]
}

// Atomic runs fn and reverts all of its mutations if it fails.
func (j *Journal) Atomic(fn func() error) error {
	snap := j.Snapshot()
	if err := fn(); err != nil {
		j.RevertToSnapshot(snap)
		return err
	}
	return nil
}

// AddLog buffers an emitted event; the event is dropped again on revert.
func (j *Journal) AddLog(log *types.Log) {
	j.logs = append(j.logs, log)
	n := len(j.logs) - 1
	j.Append(func() { j.logs = j.logs[:n] })
}

// Logs returns the buffered events.
func (j *Journal) Logs() []*types.Log {
	return j.logs
}

// Commit forgets all undo entries and returns the buffered events, assigning
// their in-operation index.
func (j *Journal) Commit() []*types.Log {
	logs := j.logs
	for i, log := range logs {
		log.Index = uint(i)
	}
	j.entries = nil
	j.logs = nil
	return logs
}

// Len returns the number of pending undo entries.
func (j *Journal) Len() int {
	return len(j.entries)
}
