// Package celledit implements the inline edit lifecycle of one grid cell.
//
// A cell moves Viewing -> Editing -> Submitting -> {Viewing, Editing}, and
// Editing -> Viewing on cancel. Submitting is not reentrant: a second submit
// while one is in flight is rejected, never queued.
package celledit

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/specialistvlad/cellgrid/internal/remote"
)

var (
	// ErrSubmitInProgress rejects a submit while another one is running.
	ErrSubmitInProgress = errors.New("submit already in progress")
	// ErrNotEditing rejects operations that need an open editor.
	ErrNotEditing = errors.New("cell is not being edited")
)

// DefaultPendingVisualDelay is how long the pending visual stays on after a
// submit settles.
const DefaultPendingVisualDelay = 500 * time.Millisecond

// historySize bounds the editor value history.
const historySize = 2

// State is a lifecycle state.
type State int

const (
	Viewing State = iota
	Editing
	Submitting
)

func (s State) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	}
	return "unknown"
}

// MarshalText renders the state name in YAML and JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event is an interaction observed by the autosave listeners.
type Event int

const (
	OutsideClick Event = iota
	KeyEnter
	KeyEscape
)

// Ticker defers work to the next scheduling tick.
type Ticker interface {
	Next(fn func())
}

// TickerFunc adapts a function to Ticker.
type TickerFunc func(fn func())

// Next implements Ticker.
func (f TickerFunc) Next(fn func()) { f(fn) }

// goTicker runs deferred work on its own goroutine.
var goTicker = TickerFunc(func(fn func()) { go fn() })

// OpenFunc customizes the standard editor. Returning false keeps the cell in
// Viewing.
type OpenFunc func(standard Editor) (Editor, bool)

// SubmitFunc persists an edited value. true closes the editor; false keeps it
// open.
type SubmitFunc func(ctx context.Context, value any) (bool, error)

// ChangeFunc observes editor value changes. Calling prevent reverts the
// change to the previous value.
type ChangeFunc func(ed Editor, prevent func())

// Config wires a Machine to its cell.
type Config struct {
	AutoSave           bool
	OnOpen             OpenFunc
	OnSubmit           SubmitFunc
	OnChange           ChangeFunc
	PendingVisualDelay time.Duration
	Ticker             Ticker
}

// View is a snapshot of a machine.
type View struct {
	State         State  `json:"state" yaml:"state"`
	Editor        Editor `json:"editor" yaml:"editor"`
	Listening     bool   `json:"listening" yaml:"listening"`
	PendingVisual bool   `json:"pending_visual" yaml:"pending_visual"`
	HasError      bool   `json:"has_error" yaml:"has_error"`
	ErrorMessage  string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	NotChanged    bool   `json:"not_changed" yaml:"not_changed"`
}

// Machine is the edit state machine of one cell.
type Machine struct {
	cfg Config

	mu         sync.Mutex
	state      State
	editor     Editor
	listening  bool
	pending    bool
	pendingGen int
	hasError   bool
	errMsg     string
	notChanged bool
	always     bool
	exitQueued bool
}

// New creates a machine in Viewing.
func New(cfg Config) *Machine {
	if cfg.PendingVisualDelay <= 0 {
		cfg.PendingVisualDelay = DefaultPendingVisualDelay
	}
	if cfg.Ticker == nil {
		cfg.Ticker = goTicker
	}
	if cfg.OnOpen == nil {
		cfg.OnOpen = func(std Editor) (Editor, bool) { return std, true }
	}
	return &Machine{cfg: cfg}
}

// Configure swaps the callbacks and flags, keeping the current state.
func (m *Machine) Configure(cfg Config) {
	fresh := New(cfg)
	m.mu.Lock()
	m.cfg = fresh.cfg
	m.mu.Unlock()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// View returns a snapshot.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{
		State:         m.state,
		Editor:        m.editor.clone(),
		Listening:     m.listening,
		PendingVisual: m.pending,
		HasError:      m.hasError,
		ErrorMessage:  m.errMsg,
		NotChanged:    m.notChanged,
	}
}

// Open enters Editing with the editor the open callback returns for
// standard. Opening an editing cell refreshes its editor.
func (m *Machine) Open(standard Editor) (bool, error) {
	m.mu.Lock()
	if m.state == Submitting {
		m.mu.Unlock()
		return false, ErrSubmitInProgress
	}
	onOpen := m.cfg.OnOpen
	m.mu.Unlock()

	standard.Open = true
	ed, ok := onOpen(standard)
	if !ok {
		return false, nil
	}
	ed = MapType(ed)
	ed.Edited = ed.Value
	ed.History = nil

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Submitting {
		return false, ErrSubmitInProgress
	}
	m.editor = ed
	m.hasError = false
	m.errMsg = ""
	m.notChanged = true
	if !ed.Open {
		m.state = Viewing
		m.listening = false
		return false, nil
	}
	m.state = Editing
	m.listening = m.cfg.AutoSave
	return true, nil
}

// ChangeValue records a new edited value and runs the change callback. It
// returns the edited value after the callback, which may have reverted it.
func (m *Machine) ChangeValue(value any) (any, error) {
	m.mu.Lock()
	if m.state != Editing {
		m.mu.Unlock()
		return nil, ErrNotEditing
	}
	m.editor.Edited = value
	m.notChanged = reflect.DeepEqual(value, m.editor.Value)
	m.editor.History = pushHistory(m.editor.History, value)
	snapshot := m.editor.clone()
	onChange := m.cfg.OnChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(snapshot, m.preventChange)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editor.Edited, nil
}

func (m *Machine) preventChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last any
	if len(m.editor.History) > 1 {
		last = m.editor.History[1]
	}
	if last == nil {
		last = m.editor.Value
	}
	m.editor.History = pushHistory(m.editor.History, last)
	m.editor.Edited = last
	m.notChanged = reflect.DeepEqual(last, m.editor.Value)
}

func pushHistory(h []any, v any) []any {
	out := make([]any, 0, historySize)
	out = append(out, v)
	for _, x := range h {
		if len(out) == historySize {
			break
		}
		out = append(out, x)
	}
	return out
}

// Submit runs the submit callback with value. On success the cell returns to
// Viewing when the callback closes the editor and to Editing otherwise. A
// failed submit returns to Editing with an error message; a superseded one
// returns to Editing silently.
func (m *Machine) Submit(ctx context.Context, value any) (bool, error) {
	m.mu.Lock()
	switch m.state {
	case Submitting:
		m.mu.Unlock()
		return false, ErrSubmitInProgress
	case Viewing:
		m.mu.Unlock()
		return false, ErrNotEditing
	}
	m.state = Submitting
	m.listening = false
	m.hasError = false
	m.errMsg = ""
	onSubmit := m.cfg.OnSubmit
	m.mu.Unlock()

	closed, err := true, error(nil)
	if onSubmit != nil {
		closed, err = safeSubmit(ctx, onSubmit, value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Submitting {
		// Cancelled while the callback ran.
		return closed, err
	}
	m.startPendingLocked()
	switch {
	case err != nil && remote.IsSuperseded(err):
		m.state = Editing
		m.listening = m.cfg.AutoSave
		return false, nil
	case err != nil:
		m.state = Editing
		m.hasError = true
		m.errMsg = Message(err)
		m.listening = m.cfg.AutoSave
		return false, err
	case closed:
		m.state = Viewing
		return true, nil
	default:
		m.state = Editing
		m.listening = m.cfg.AutoSave
		return false, nil
	}
}

func safeSubmit(ctx context.Context, fn SubmitFunc, value any) (closed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			closed = false
			err = errors.New(Message(r))
		}
	}()
	return fn(ctx, value)
}

// Cancel leaves Editing without submitting. Cancelling a viewing cell does
// nothing.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Viewing {
		return
	}
	m.state = Viewing
	m.listening = false
	m.pending = false
	m.pendingGen++
}

// Dispatch feeds an interaction to the autosave listeners. It is ignored
// unless the listeners are registered. Outside clicks and Enter submit the
// edited value (Enter is ignored by textarea editors); Escape cancels.
func (m *Machine) Dispatch(ctx context.Context, ev Event) error {
	m.mu.Lock()
	if !m.listening || m.state != Editing {
		m.mu.Unlock()
		return nil
	}
	value := m.editor.Edited
	textarea := m.editor.TypeFlags["is_textarea"]
	m.mu.Unlock()

	switch ev {
	case OutsideClick:
	case KeyEnter:
		if textarea {
			return nil
		}
	case KeyEscape:
		m.Cancel()
		return nil
	default:
		return nil
	}

	_, err := m.Submit(ctx, value)
	if errors.Is(err, ErrSubmitInProgress) || errors.Is(err, ErrNotEditing) {
		return nil
	}
	return err
}

// Sync applies the always-editing column flag on a recompute. While the flag
// is set a viewing cell opens immediately; when it turns off an editing cell
// leaves Editing on the next tick.
func (m *Machine) Sync(alwaysEditing bool, standard Editor) error {
	m.mu.Lock()
	was := m.always
	m.always = alwaysEditing
	state := m.state
	ticker := m.cfg.Ticker
	queue := !alwaysEditing && was && state == Editing && !m.exitQueued
	if queue {
		m.exitQueued = true
	}
	m.mu.Unlock()

	if alwaysEditing {
		if state == Viewing {
			_, err := m.Open(standard)
			return err
		}
		return nil
	}
	if queue {
		ticker.Next(func() {
			m.mu.Lock()
			m.exitQueued = false
			stillOff := !m.always
			m.mu.Unlock()
			if stillOff {
				m.Cancel()
			}
		})
	}
	return nil
}

// AlwaysEditing reports the last flag passed to Sync.
func (m *Machine) AlwaysEditing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.always
}

func (m *Machine) startPendingLocked() {
	m.pending = true
	m.pendingGen++
	gen := m.pendingGen
	time.AfterFunc(m.cfg.PendingVisualDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.pendingGen == gen {
			m.pending = false
		}
	})
}
