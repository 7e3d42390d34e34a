// ABOUTME: Bounded undo/redo stacks of reversible changes.
// ABOUTME: Pushing past the limit silently evicts the oldest change.
package history

import "github.com/2389-research/logbook/internal/models"

// DefaultLimit is the stack capacity used when none is configured.
const DefaultLimit = 10

// Stack selects the undo or the redo stack.
type Stack int

const (
	Undo Stack = iota
	Redo
)

func (s Stack) String() string {
	if s == Redo {
		return "redo"
	}
	return "undo"
}

// Manager owns the undo and redo stacks. It only stores changes; the caller decides
// which stack a change goes to and when the redo stack is cleared.
//
// Manager is not safe for concurrent use.
type Manager struct {
	limit int
	// Both stacks keep the most recent change at the end of the slice.
	undo []Change
	redo []Change
}

// New creates a manager whose stacks hold at most limit changes each.
// A limit below 1 falls back to DefaultLimit.
func New(limit int) *Manager {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// Limit returns the per-stack capacity.
func (m *Manager) Limit() int {
	return m.limit
}

// Register pushes a copy of change onto target, evicting the oldest change if the stack
// is over capacity.
func (m *Manager) Register(target Stack, change Change) {
	stack := m.stack(target)
	*stack = append(*stack, change.Clone())
	if over := len(*stack) - m.limit; over > 0 {
		// Copy down so the evicted changes are not kept alive by the backing array.
		n := copy(*stack, (*stack)[over:])
		clear((*stack)[n:])
		*stack = (*stack)[:n]
	}
}

// RegisterAdd records the creation of the entry with id.
func (m *Manager) RegisterAdd(target Stack, id uint32) {
	m.Register(target, AddEntry(id))
}

// RegisterRemove records a removal with a snapshot of the removed entry.
func (m *Manager) RegisterRemove(target Stack, entry models.Entry) {
	m.Register(target, RemoveEntry(entry))
}

// RegisterChangeAttributes records the attributes an edit replaced.
func (m *Manager) RegisterChangeAttributes(target Stack, id uint32, prior Attributes) {
	m.Register(target, ChangeAttributes(id, prior))
}

// RegisterChangeContent records the content an edit replaced.
func (m *Manager) RegisterChangeContent(target Stack, id uint32, prior string) {
	m.Register(target, ChangeContent(id, prior))
}

// PopUndo removes and returns the most recent undo change.
func (m *Manager) PopUndo() (Change, bool) {
	return pop(&m.undo)
}

// PopRedo removes and returns the most recent redo change.
func (m *Manager) PopRedo() (Change, bool) {
	return pop(&m.redo)
}

// ClearRedo drops every redo change.
func (m *Manager) ClearRedo() {
	m.redo = nil
}

// Clear drops both stacks.
func (m *Manager) Clear() {
	m.undo = nil
	m.redo = nil
}

// UndoLen returns the number of undoable changes.
func (m *Manager) UndoLen() int {
	return len(m.undo)
}

// RedoLen returns the number of redoable changes.
func (m *Manager) RedoLen() int {
	return len(m.redo)
}

// Peek returns the most recent change on target without removing it.
func (m *Manager) Peek(target Stack) (Change, bool) {
	stack := *m.stack(target)
	if len(stack) == 0 {
		return Change{}, false
	}
	return stack[len(stack)-1].Clone(), true
}

func (m *Manager) stack(target Stack) *[]Change {
	if target == Redo {
		return &m.redo
	}
	return &m.undo
}

func pop(stack *[]Change) (Change, bool) {
	n := len(*stack)
	if n == 0 {
		return Change{}, false
	}
	change := (*stack)[n-1]
	(*stack)[n-1] = Change{}
	*stack = (*stack)[:n-1]
	return change, true
}
