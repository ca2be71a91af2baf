package grid

import (
	"context"
	"maps"

	"github.com/specialistvlad/cellgrid/internal/celledit"
)

// Column declares one grid column. Header and Cell entries may be plain
// values or confgraph values derived from the cell context.
type Column struct {
	Field        string         `json:"field" yaml:"field"`
	DisplayField string         `json:"display_field,omitempty" yaml:"display_field,omitempty"`
	Header       map[string]any `json:"header,omitempty" yaml:"header,omitempty"`
	Cell         map[string]any `json:"cell,omitempty" yaml:"cell,omitempty"`
	// Callbacks override the grid-wide callbacks for this column.
	Callbacks Callbacks `json:"-" yaml:"-"`
}

// ButtonMode lets a button callback request the editor.
type ButtonMode struct {
	Edit bool
}

// Callbacks are the user hooks of a column. Nil hooks fall back to the
// grid-wide ones and then to the defaults.
type Callbacks struct {
	// OnEdit customizes the standard editor. Returning false declines editing.
	OnEdit func(cc CallbackContext, standard celledit.Editor) (celledit.Editor, bool)
	// OnEditSubmit persists a value. true closes the editor.
	OnEditSubmit func(ctx context.Context, cc CallbackContext, value any) (bool, error)
	// OnValueChanged observes editor changes; prevent reverts the change.
	OnValueChanged func(cc CallbackContext, ed celledit.Editor, prevent func())
	// OnActionClick receives the identity of the clicked action.
	OnActionClick func(cc CallbackContext, identity any)
	// OnExpandChanged approves an expand toggle. Returning false keeps the
	// current state.
	OnExpandChanged func(cc CallbackContext, expand bool) bool
	OnButtonClick   func(cc CallbackContext, mode *ButtonMode)
	OnURLClick      func(cc CallbackContext, url string)
	OnMouseIn       func(cc CallbackContext)
	OnMouseOut      func(cc CallbackContext)
}

// or fills the nil hooks of c from fallback.
func (c Callbacks) or(fallback Callbacks) Callbacks {
	if c.OnEdit == nil {
		c.OnEdit = fallback.OnEdit
	}
	if c.OnEditSubmit == nil {
		c.OnEditSubmit = fallback.OnEditSubmit
	}
	if c.OnValueChanged == nil {
		c.OnValueChanged = fallback.OnValueChanged
	}
	if c.OnActionClick == nil {
		c.OnActionClick = fallback.OnActionClick
	}
	if c.OnExpandChanged == nil {
		c.OnExpandChanged = fallback.OnExpandChanged
	}
	if c.OnButtonClick == nil {
		c.OnButtonClick = fallback.OnButtonClick
	}
	if c.OnURLClick == nil {
		c.OnURLClick = fallback.OnURLClick
	}
	if c.OnMouseIn == nil {
		c.OnMouseIn = fallback.OnMouseIn
	}
	if c.OnMouseOut == nil {
		c.OnMouseOut = fallback.OnMouseOut
	}
	return c
}

// defaultCallbacks returns the stock behavior: the standard editor is used
// as is, submitted values are written to the row and expand toggles are
// always approved.
func defaultCallbacks() Callbacks {
	return Callbacks{
		OnEdit: func(_ CallbackContext, standard celledit.Editor) (celledit.Editor, bool) {
			return standard, true
		},
		OnEditSubmit: func(_ context.Context, cc CallbackContext, value any) (bool, error) {
			if cc.Field != "" {
				if err := cc.SetValue(cc.Field, value); err != nil {
					return false, err
				}
			}
			return true, nil
		},
		OnValueChanged:  func(CallbackContext, celledit.Editor, func()) {},
		OnActionClick:   func(CallbackContext, any) {},
		OnExpandChanged: func(CallbackContext, bool) bool { return true },
		OnButtonClick:   func(CallbackContext, *ButtonMode) {},
		OnURLClick:      func(CallbackContext, string) {},
		OnMouseIn:       func(CallbackContext) {},
		OnMouseOut:      func(CallbackContext) {},
	}
}

// CallbackContext describes the cell a callback fired for. Row is a copy;
// write through SetValue.
type CallbackContext struct {
	Identity any
	Row      map[string]any
	Index    int
	Column   int
	Field    string
	Cell     Cell

	grid *Grid
	rows []map[string]any
}

// Rows returns copies of every row, materialized on first call.
func (cc *CallbackContext) Rows() []map[string]any {
	if cc.rows == nil && cc.grid != nil {
		cc.rows = cc.grid.Rows()
	}
	return cc.rows
}

// SetValue writes field on the callback's row and schedules the row for
// recomputation.
func (cc CallbackContext) SetValue(field string, value any) error {
	if cc.grid == nil {
		return ErrRowNotFound
	}
	if err := cc.grid.SetValue(cc.Identity, field, value); err != nil {
		return err
	}
	if cc.Row != nil {
		cc.Row[field] = value
	}
	return nil
}

func cloneRow(row map[string]any) map[string]any {
	out := maps.Clone(row)
	if out == nil {
		out = map[string]any{}
	}
	return out
}
