package grid

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/cellgrid/internal/celledit"
)

// target is a located cell: its context, callbacks and edit machine.
type target struct {
	rowKey  string
	cc      CallbackContext
	cbs     Callbacks
	machine *celledit.Machine
}

// locate finds the cell at (identity, column), deriving its row first when
// it has no record yet.
func (g *Grid) locate(identity any, column int) (target, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return target{}, ErrClosed
	}
	i, err := g.lookupLocked(identity)
	if err != nil {
		g.mu.Unlock()
		return target{}, err
	}
	if column < 0 || column >= len(g.columns) {
		g.mu.Unlock()
		return target{}, fmt.Errorf("%w: %d", ErrColumnNotFound, column)
	}
	rowKey := g.keys[i]
	_, computed := g.records[rowKey]
	snap := g.snapshotLocked()
	g.mu.Unlock()

	if !computed {
		g.computeRow(snap, i)
	}
	cc, cbs, err := g.callbackContext(rowKey, column)
	if err != nil {
		return target{}, err
	}
	m := g.machine(cellKey(rowKey, column))
	if m == nil {
		g.syncMachine(rowKey, column, cc.Cell)
		m = g.machine(cellKey(rowKey, column))
	}
	if m == nil {
		return target{}, ErrClosed
	}
	return target{rowKey: rowKey, cc: cc, cbs: cbs, machine: m}, nil
}

// OpenEditor opens the editor of an editable cell. It reports false when the
// cell is not editable or OnEdit declined.
func (g *Grid) OpenEditor(identity any, column int) (bool, error) {
	t, err := g.locate(identity, column)
	if err != nil {
		return false, err
	}
	if !t.cc.Cell.Editable && !t.cc.Cell.AlwaysEditing {
		return false, nil
	}
	return t.machine.Open(standardEditor(t.cc.Cell))
}

// ChangeValue records an edited value. It returns the value the editor holds
// afterwards, which OnValueChanged may have reverted.
func (g *Grid) ChangeValue(identity any, column int, value any) (any, error) {
	t, err := g.locate(identity, column)
	if err != nil {
		return nil, err
	}
	return t.machine.ChangeValue(value)
}

// Submit submits the edited value of a cell. It reports whether the editor
// closed.
func (g *Grid) Submit(ctx context.Context, identity any, column int) (bool, error) {
	t, err := g.locate(identity, column)
	if err != nil {
		return false, err
	}
	return t.machine.Submit(ctx, t.machine.View().Editor.Edited)
}

// Cancel closes the editor of a cell without submitting.
func (g *Grid) Cancel(identity any, column int) error {
	t, err := g.locate(identity, column)
	if err != nil {
		return err
	}
	t.machine.Cancel()
	return nil
}

// Dispatch delivers an interaction to every cell listening for autosave
// events. Failures of individual submits are joined.
func (g *Grid) Dispatch(ctx context.Context, ev celledit.Event) error {
	var errs []error
	for _, m := range g.machineList() {
		if err := m.Dispatch(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Grid) machineList() []*celledit.Machine {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*celledit.Machine, 0, len(g.machines))
	for _, m := range g.machines {
		out = append(out, m)
	}
	return out
}

// ToggleExpand flips the expansion of a tree row when OnExpandChanged of
// the tree column approves. It reports whether the row changed.
func (g *Grid) ToggleExpand(identity any) (bool, error) {
	if !g.opts.UsingTree {
		return false, ErrNotTree
	}
	t, err := g.locate(identity, g.opts.TreeIndex)
	if err != nil {
		return false, err
	}

	g.mu.Lock()
	i, err := g.lookupLocked(identity)
	if err != nil {
		g.mu.Unlock()
		return false, err
	}
	expand := !g.tree.Nodes[i].IsExpand
	g.mu.Unlock()

	if !t.cbs.OnExpandChanged(t.cc, expand) {
		return false, nil
	}
	if err := g.SetValue(identity, g.opts.Tree.ExpandField, expand); err != nil {
		return false, err
	}
	return true, nil
}

// ClickAction reports a click on the action with the given identity.
func (g *Grid) ClickAction(identity any, column int, action any) error {
	t, err := g.locate(identity, column)
	if err != nil {
		return err
	}
	t.cbs.OnActionClick(t.cc, action)
	return nil
}

// ClickButton runs OnButtonClick and opens the editor when the callback asks
// for it. It reports whether the editor opened.
func (g *Grid) ClickButton(identity any, column int) (bool, error) {
	t, err := g.locate(identity, column)
	if err != nil {
		return false, err
	}
	mode := &ButtonMode{}
	t.cbs.OnButtonClick(t.cc, mode)
	if !mode.Edit {
		return false, nil
	}
	return t.machine.Open(standardEditor(t.cc.Cell))
}

// ClickURL reports a click on the cell link.
func (g *Grid) ClickURL(identity any, column int) error {
	t, err := g.locate(identity, column)
	if err != nil {
		return err
	}
	t.cbs.OnURLClick(t.cc, t.cc.Cell.URL)
	return nil
}

// MouseIn reports the pointer entering a cell.
func (g *Grid) MouseIn(identity any, column int) error {
	t, err := g.locate(identity, column)
	if err != nil {
		return err
	}
	t.cbs.OnMouseIn(t.cc)
	return nil
}

// MouseOut reports the pointer leaving a cell.
func (g *Grid) MouseOut(identity any, column int) error {
	t, err := g.locate(identity, column)
	if err != nil {
		return err
	}
	t.cbs.OnMouseOut(t.cc)
	return nil
}

// SetSort sorts by field: the same field flips the direction, a new one
// starts descending. Columns whose header is not sortable leave the state
// as it is. It returns the resulting sort state.
func (g *Grid) SetSort(field string) (Sort, error) {
	headers := g.Headers()
	for _, h := range headers {
		if h.Field != field {
			continue
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		if !h.Sortable {
			return g.sort, nil
		}
		if g.sort.Field == field {
			g.sort.Desc = !g.sort.Desc
		} else {
			g.sort = Sort{Field: field, Desc: true}
		}
		return g.sort, nil
	}
	return Sort{}, fmt.Errorf("%w: %s", ErrColumnNotFound, field)
}

// Sort returns the current sort state.
func (g *Grid) Sort() Sort {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sort
}

// SaveAll collects every open editor and then cancels them all.
func (g *Grid) SaveAll() []EditedCell {
	g.mu.Lock()
	type entry struct {
		key string
		m   *celledit.Machine
	}
	entries := make([]entry, 0, len(g.machines))
	for key, m := range g.machines {
		entries = append(entries, entry{key, m})
	}
	columns := g.columns
	g.mu.Unlock()

	var out []EditedCell
	for _, e := range entries {
		v := e.m.View()
		if v.State != celledit.Editing {
			continue
		}
		rowKey, column := splitCellKey(e.key)
		ec := EditedCell{Column: column, Editor: v.Editor}
		if column >= 0 && column < len(columns) {
			ec.Field = columns[column].Field
		}
		if i, row, err := g.rowByKey(rowKey); err == nil {
			ec.Identity = row[g.opts.KeyField]
			ec.Index = i
		}
		out = append(out, ec)
	}
	slices.SortFunc(out, func(a, b EditedCell) int {
		if c := cmp.Compare(a.Index, b.Index); c != 0 {
			return c
		}
		return cmp.Compare(a.Column, b.Column)
	})
	g.CancelAll()
	return out
}

func (g *Grid) rowByKey(rowKey string) (int, map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.index[rowKey]
	if !ok {
		return 0, nil, ErrRowNotFound
	}
	return i, cloneRow(g.rows[i]), nil
}

// CancelAll cancels every open editor.
func (g *Grid) CancelAll() {
	for _, m := range g.machineList() {
		m.Cancel()
	}
}

// Editing reports whether the save-all buttons should show: save-all mode is
// on and at least one cell is being edited.
func (g *Grid) Editing() bool {
	if !g.opts.UsingSaveAll {
		return false
	}
	for _, m := range g.machineList() {
		if m.State() == celledit.Editing {
			return true
		}
	}
	return false
}
