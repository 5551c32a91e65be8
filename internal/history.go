package internal

import (
	"errors"
	"sync"
	"time"

	"github.com/lychee-technology/propval"
	"go.uber.org/zap"
)

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrCommandFailed = errors.New("command failed")
)

// undoEntry wraps a command with metadata.
type undoEntry struct {
	command   propval.Command
	timestamp time.Time
}

// History manages undo/redo stacks of editor commands.
//
// A command executed right after another one is offered the previous command
// through MaybeMergeWith; when it accepts, it replaces the previous entry so
// the merged chain undoes in one step.
type History struct {
	mu sync.Mutex

	undoStack []*undoEntry
	redoStack []*undoEntry

	maxEntries int
}

// NewHistory creates a new history manager.
func NewHistory(maxEntries int) *History {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &History{
		maxEntries: maxEntries,
	}
}

// Execute runs a command and records it. A command whose Execute reports
// false is not recorded.
func (h *History) Execute(cmd propval.Command) bool {
	if !cmd.Execute() {
		zap.S().Debugw("command rejected", "kind", cmd.Kind(), "description", cmd.Description())
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.undoStack); n > 0 && cmd.MaybeMergeWith(h.undoStack[n-1].command) {
		h.undoStack[n-1] = &undoEntry{command: cmd, timestamp: time.Now()}
		h.redoStack = nil
		return true
	}

	h.pushLocked(cmd)
	return true
}

// pushLocked adds a command without acquiring the lock.
func (h *History) pushLocked(cmd propval.Command) {
	h.undoStack = append(h.undoStack, &undoEntry{
		command:   cmd,
		timestamp: time.Now(),
	})

	h.redoStack = nil

	if len(h.undoStack) > h.maxEntries {
		excess := len(h.undoStack) - h.maxEntries
		h.undoStack = h.undoStack[excess:]
	}
}

// SealLast seals the most recent command, closing its merge window.
func (h *History) SealLast() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.undoStack); n > 0 {
		h.undoStack[n-1].command.Seal()
	}
}

// Undo undoes the last command. A command that fails to undo stays on the
// undo stack.
func (h *History) Undo() error {
	h.mu.Lock()
	if len(h.undoStack) == 0 {
		h.mu.Unlock()
		return ErrNothingToUndo
	}

	entry := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.mu.Unlock()

	if !entry.command.Undo() {
		h.mu.Lock()
		h.undoStack = append(h.undoStack, entry)
		h.mu.Unlock()
		return ErrCommandFailed
	}

	// An undone command never merges with whatever is executed next.
	entry.command.Seal()

	h.mu.Lock()
	h.redoStack = append(h.redoStack, entry)
	h.mu.Unlock()
	return nil
}

// Redo redoes the last undone command.
func (h *History) Redo() error {
	h.mu.Lock()
	if len(h.redoStack) == 0 {
		h.mu.Unlock()
		return ErrNothingToRedo
	}

	entry := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.mu.Unlock()

	if !entry.command.Execute() {
		h.mu.Lock()
		h.redoStack = append(h.redoStack, entry)
		h.mu.Unlock()
		return ErrCommandFailed
	}

	h.mu.Lock()
	h.undoStack = append(h.undoStack, entry)
	h.mu.Unlock()
	return nil
}

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack) > 0
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack) > 0
}

// UndoCount returns the number of undo operations available.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack)
}

// RedoCount returns the number of redo operations available.
func (h *History) RedoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack)
}

// Peek returns the command that Undo would revert, or nil.
func (h *History) Peek() propval.Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undoStack) == 0 {
		return nil
	}
	return h.undoStack[len(h.undoStack)-1].command
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undoStack = nil
	h.redoStack = nil
}
