package history

import (
	"fmt"

	"github.com/roach88/boltview/internal/apperr"
)

// Stack holds the applied (undo) and reverted (redo) commands of one write
// transaction. It is not safe for concurrent use; the owner serializes calls.
type Stack struct {
	done   []Command
	undone []Command
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push applies c and records it. Any redo history is discarded.
// If Apply fails the stack is unchanged.
func (s *Stack) Push(m Mutator, c Command) error {
	if err := c.Apply(m); err != nil {
		return fmt.Errorf("push %s: %w", c, err)
	}
	s.done = append(s.done, c)
	s.undone = nil
	return nil
}

// Undo reverts the most recent command and moves it to the redo side.
//
// Errors:
//   - EMPTY_HISTORY: nothing to undo
func (s *Stack) Undo(m Mutator) (Command, error) {
	if len(s.done) == 0 {
		return Command{}, apperr.New(apperr.CodeEmptyHistory, "undo", "nothing to undo")
	}
	c := s.done[len(s.done)-1]
	if err := c.Inverse().Apply(m); err != nil {
		return Command{}, fmt.Errorf("undo %s: %w", c, err)
	}
	s.done = s.done[:len(s.done)-1]
	s.undone = append(s.undone, c)
	return c, nil
}

// Redo re-applies the most recently undone command.
//
// Errors:
//   - EMPTY_HISTORY: nothing to redo
func (s *Stack) Redo(m Mutator) (Command, error) {
	if len(s.undone) == 0 {
		return Command{}, apperr.New(apperr.CodeEmptyHistory, "redo", "nothing to redo")
	}
	c := s.undone[len(s.undone)-1]
	if err := c.Apply(m); err != nil {
		return Command{}, fmt.Errorf("redo %s: %w", c, err)
	}
	s.undone = s.undone[:len(s.undone)-1]
	s.done = append(s.done, c)
	return c, nil
}

// Rollback reverts the n most recent commands and forgets them, leaving the
// redo side untouched. Used to back out a partially applied batch.
func (s *Stack) Rollback(m Mutator, n int) error {
	if n > len(s.done) {
		n = len(s.done)
	}
	for ; n > 0; n-- {
		c := s.done[len(s.done)-1]
		if err := c.Inverse().Apply(m); err != nil {
			return fmt.Errorf("rollback %s: %w", c, err)
		}
		s.done = s.done[:len(s.done)-1]
	}
	return nil
}

// Clear drops both sides. Called when the owning transaction ends.
func (s *Stack) Clear() {
	s.done = nil
	s.undone = nil
}

// Entries returns the applied commands, oldest first.
func (s *Stack) Entries() []Command {
	return append([]Command(nil), s.done...)
}

// UndoLen returns the number of commands that can be undone.
func (s *Stack) UndoLen() int { return len(s.done) }

// RedoLen returns the number of commands that can be redone.
func (s *Stack) RedoLen() int { return len(s.undone) }
