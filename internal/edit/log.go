package edit

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// Log applies commands against a dataset and records them in order so the
// whole sequence can be undone. A Log belongs to exactly one operation; it
// is not safe for concurrent use.
type Log struct {
	ds      *osmdata.DataSet
	applied []Command
	logger  *zap.Logger
}

// NewLog creates an empty log bound to a dataset.
func NewLog(ds *osmdata.DataSet, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{ds: ds, logger: logger}
}

// Apply executes the command against the dataset and records it. On failure
// nothing is recorded and the dataset is unchanged.
func (l *Log) Apply(cmd Command) error {
	if err := cmd.Apply(l.ds); err != nil {
		return fmt.Errorf("apply edit: %w", err)
	}
	l.applied = append(l.applied, cmd)
	return nil
}

// ApplyAll executes a batch of commands, stopping at the first failure.
func (l *Log) ApplyAll(cmds []Command) error {
	for _, cmd := range cmds {
		if err := l.Apply(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Checkpoint marks a phase boundary. Checkpoints carry no state; they exist
// so long operations read well in the logs.
func (l *Log) Checkpoint(name string) {
	l.logger.Debug("edit checkpoint", zap.String("phase", name), zap.Int("edits", len(l.applied)))
}

// Len returns the number of committed edits.
func (l *Log) Len() int {
	return len(l.applied)
}

// RollbackAll reverts every committed edit in reverse order, restoring the
// dataset to its pre-operation state. A revert failure indicates a corrupted
// log and is returned after attempting the remaining reverts.
func (l *Log) RollbackAll() error {
	var firstErr error
	for i := len(l.applied) - 1; i >= 0; i-- {
		cmd := l.applied[i]
		if err := cmd.Revert(l.ds); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("rollback %q: %w", cmd.String(), err)
		}
	}
	n := len(l.applied)
	l.applied = l.applied[:0]
	if firstErr != nil {
		return firstErr
	}
	l.logger.Debug("rolled back all edits", zap.Int("edits", n))
	return nil
}
