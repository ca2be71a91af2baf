// Package grid orchestrates the view-state of an editable, optionally
// hierarchical data grid.
//
// # How It Works
//
// Columns and rows are the only inputs. Each cell gets its own configuration
// node whose provider exposes the row, the column field and the tree facts
// of the row; the cell generators read the merged cell configuration through
// it. A row is recomputed only when the content hash of (row, columns, tree
// facts, position) changes, otherwise the previous cell records are reused.
// Refresh spreads row recomputation over the grid's coalescer so bursts of
// changes are processed in bounded batches.
//
// Every cell owns an edit state machine. Machines outlive recomputation and
// are keyed by row identity and column index, so an open editor survives row
// reordering.
//
// # Thread-Safety
//
// Grid methods are safe for concurrent use. Shared state is guarded by one
// mutex; configuration nodes are confined to the goroutine deriving a cell
// and user callbacks always run outside the lock.
package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/specialistvlad/cellgrid/internal/celledit"
	"github.com/specialistvlad/cellgrid/internal/coalescer"
	"github.com/specialistvlad/cellgrid/internal/ctxlog"
	"github.com/specialistvlad/cellgrid/internal/memo"
	"github.com/specialistvlad/cellgrid/internal/metrics"
	"github.com/specialistvlad/cellgrid/internal/remote"
	"github.com/specialistvlad/cellgrid/internal/tree"
)

var (
	// ErrRowNotFound is returned when no row has the given identity.
	ErrRowNotFound = errors.New("row not found")
	// ErrColumnNotFound is returned for a column index or field the grid
	// does not have.
	ErrColumnNotFound = errors.New("column not found")
	// ErrClosed is returned by operations on a closed grid.
	ErrClosed = errors.New("grid is closed")
	// ErrNotTree is returned by tree operations on a flat grid.
	ErrNotTree = errors.New("grid is not in tree mode")
)

// DefaultKeyField is the row identity field used when Options.KeyField is
// empty.
const DefaultKeyField = "id"

// rowHighlightField switches the row hover highlight off when false.
const rowHighlightField = "hover_horizontal_highlight"

// Options configures a Grid.
type Options struct {
	KeyField  string
	UsingTree bool
	// TreeIndex is the column that carries the tree metadata.
	TreeIndex int
	// Tree names the parent and expansion fields. Its KeyField is replaced
	// by the grid's.
	Tree                tree.Options
	UsingSaveAll        bool
	OuterEditor         bool
	ShowColumnHighlight bool
	Scrollable          bool
	Policy              coalescer.Policy
	PendingVisualDelay  time.Duration
	// Callbacks apply to every column that does not override them.
	Callbacks Callbacks

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Ticker defers the exit of cells whose always-editing flag turned off.
	// Defaults to the grid's coalescer.
	Ticker celledit.Ticker
}

// RowView is one visible row with its cells.
type RowView struct {
	Identity any            `json:"identity" yaml:"identity"`
	Index    int            `json:"index" yaml:"index"`
	RowClass string         `json:"row_class" yaml:"row_class"`
	Row      map[string]any `json:"row" yaml:"row"`
	Cells    []Cell         `json:"cells" yaml:"cells"`

	key string
}

// EditedCell is an open editor collected by SaveAll.
type EditedCell struct {
	Identity any             `json:"identity" yaml:"identity"`
	Index    int             `json:"index" yaml:"index"`
	Column   int             `json:"column" yaml:"column"`
	Field    string          `json:"field" yaml:"field"`
	Editor   celledit.Editor `json:"editor" yaml:"editor"`
}

type rowRecord struct {
	hash  uint64
	view  RowView
	valid bool
}

// Grid holds the inputs, the derived tree and the cell records of one grid.
type Grid struct {
	opts    Options
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	metrics *metrics.Metrics
	memo    *memo.Store
	queue   *coalescer.Coalescer
	remote  *remote.Coordinator
	ticker  celledit.Ticker

	mu          sync.Mutex
	gen         uint64
	columns     []Column
	columnsHash uint64
	hasColumns  bool
	rows        []map[string]any
	rowsHash    uint64
	hasRows     bool
	keys        []string
	index       map[string]int
	tree        tree.Result
	records     map[string]rowRecord
	machines    map[string]*celledit.Machine
	sort        Sort
	closed      bool
}

// New creates an empty grid. The grid's background work stops when ctx is
// cancelled or Close is called.
func New(ctx context.Context, opts Options) *Grid {
	if opts.KeyField == "" {
		opts.KeyField = DefaultKeyField
	}
	opts.Tree = treeOptions(opts.Tree, opts.KeyField)
	logger := opts.Logger
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(ctx, logger))

	g := &Grid{
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		metrics:  opts.Metrics,
		memo:     memo.NewStore(opts.Metrics),
		queue:    coalescer.New(ctx, opts.Policy, coalescer.WithMetrics(opts.Metrics)),
		remote:   remote.NewCoordinator(remote.WithLogger(logger), remote.WithMetrics(opts.Metrics)),
		index:    map[string]int{},
		records:  map[string]rowRecord{},
		machines: map[string]*celledit.Machine{},
	}
	g.ticker = opts.Ticker
	if g.ticker == nil {
		g.ticker = celledit.TickerFunc(g.nextTick)
	}
	return g
}

// treeOptions fills the unset tree field names with the defaults and forces
// the grid's key field.
func treeOptions(o tree.Options, keyField string) tree.Options {
	def := tree.DefaultOptions()
	if o.ParentField == "" {
		o.ParentField = def.ParentField
	}
	if o.ExpandField == "" {
		o.ExpandField = def.ExpandField
	}
	if o.CanExpandField == "" {
		o.CanExpandField = def.CanExpandField
	}
	o.KeyField = keyField
	return o
}

// nextTick runs fn as a coalesced task, or inline once the queue is closed.
func (g *Grid) nextTick(fn func()) {
	err := g.queue.Enqueue(func(context.Context) error {
		fn()
		return nil
	})
	if err != nil {
		fn()
	}
}

// Remote returns the coordinator remote lookups of this grid should go
// through. It is torn down by Close.
func (g *Grid) Remote() *remote.Coordinator {
	return g.remote
}

// SetColumns replaces the column definitions. It reports false, and changes
// nothing, when the columns hash the same as the current ones.
func (g *Grid) SetColumns(columns []Column) bool {
	h := memo.Hash(columns, memo.DefaultDepth)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hasColumns && h == g.columnsHash {
		return false
	}
	g.columns = slices.Clone(columns)
	g.columnsHash = h
	g.hasColumns = true
	g.gen++
	for key := range g.machines {
		if _, col := splitCellKey(key); col >= len(columns) {
			g.machines[key].Cancel()
			delete(g.machines, key)
		}
	}
	g.logger.Debug("Columns updated.", "count", len(columns))
	return true
}

// SetRows replaces the rows. Rows without the key field are keyed by their
// position. It reports false, and changes nothing, when the keyed rows hash
// the same as the current ones.
func (g *Grid) SetRows(rows []map[string]any) bool {
	keyed := keyRows(rows, g.opts.KeyField)
	h := memo.Hash(keyed, memo.DefaultDepth)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hasRows && h == g.rowsHash {
		return false
	}
	g.rows = keyed
	g.rowsHash = h
	g.hasRows = true
	g.rebuildLocked()
	g.pruneLocked()
	g.logger.Debug("Rows updated.", "count", len(g.rows))
	return true
}

// keyRows copies rows, filling the key field with the row position when it
// is absent.
func keyRows(rows []map[string]any, keyField string) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		r := cloneRow(row)
		if _, ok := r[keyField]; !ok {
			r[keyField] = strconv.Itoa(i)
		}
		out[i] = r
	}
	return out
}

// rebuildLocked derives the tree and the identity index from g.rows.
func (g *Grid) rebuildLocked() {
	g.gen++
	g.tree = tree.Result{}
	if g.opts.UsingTree {
		g.tree = tree.Derive(g.rows, g.opts.Tree)
		g.rows = g.tree.Rows
	}
	g.keys = rowKeys(g.rows, g.opts.KeyField)
	g.index = make(map[string]int, len(g.rows))
	for i, key := range g.keys {
		g.index[key] = i
	}
}

// rowKeys gives every row a distinct key. The first row of an identity is
// keyed by it; later rows sharing it are keyed by their occurrence, so lookup
// by identity finds the first one.
func rowKeys(rows []map[string]any, keyField string) []string {
	keys := make([]string, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		key := identityKey(row[keyField], i)
		keys[i] = key
		if n := seen[key]; n > 0 {
			keys[i] = "d:" + strconv.Itoa(n) + ":" + key
		}
		seen[key]++
	}
	return keys
}

// pruneLocked drops records, hashes and machines of rows that are gone.
func (g *Grid) pruneLocked() {
	for key := range g.records {
		if _, ok := g.index[key]; !ok {
			delete(g.records, key)
		}
	}
	g.memo.Retain(func(key string) bool {
		_, ok := g.index[key]
		return ok
	})
	for key, m := range g.machines {
		if row, _ := splitCellKey(key); !g.hasIndex(row) {
			m.Cancel()
			delete(g.machines, key)
		}
	}
}

func (g *Grid) hasIndex(key string) bool {
	_, ok := g.index[key]
	return ok
}

// identityKey renders a row identity as a map key. Identities that are not
// scalars fall back to the row position.
func identityKey(identity any, index int) string {
	if s, ok := tree.KeyString(identity); ok {
		return s
	}
	return "i:" + strconv.Itoa(index)
}

func cellKey(row string, column int) string {
	return row + "#" + strconv.Itoa(column)
}

func splitCellKey(key string) (string, int) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '#' {
			col, err := strconv.Atoi(key[i+1:])
			if err != nil {
				return key, -1
			}
			return key[:i], col
		}
	}
	return key, -1
}

// snapshot is an immutable view of the grid inputs for one recomputation.
type snapshot struct {
	gen         uint64
	columns     []Column
	columnsHash uint64
	rows        []map[string]any
	keys        []string
	tree        tree.Result
}

func (g *Grid) snapshotLocked() snapshot {
	return snapshot{
		gen:         g.gen,
		columns:     g.columns,
		columnsHash: g.columnsHash,
		rows:        g.rows,
		keys:        g.keys,
		tree:        g.tree,
	}
}

// order returns the row indices to display, hidden tree rows excluded.
func (s snapshot) order(usingTree bool) []int {
	if !usingTree {
		out := make([]int, len(s.rows))
		for i := range out {
			out[i] = i
		}
		return out
	}
	var out []int
	for _, i := range s.tree.Order {
		if n := s.tree.Nodes[i]; n.IsRoot || n.IsShow {
			out = append(out, i)
		}
	}
	return out
}

func (s snapshot) copyRows() []map[string]any {
	out := make([]map[string]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = cloneRow(r)
	}
	return out
}

// Recompute derives every visible row synchronously and returns the views in
// display order.
func (g *Grid) Recompute(ctx context.Context) ([]RowView, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrClosed
	}
	snap := g.snapshotLocked()
	g.mu.Unlock()

	order := snap.order(g.opts.UsingTree)
	views := make([]RowView, 0, len(order))
	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("recompute row %d: %w", i, err)
		}
		views = append(views, g.computeRow(snap, i))
	}
	for range len(snap.rows) - len(order) {
		g.metrics.Row("hidden")
	}
	return g.attachEdits(views), nil
}

// Refresh schedules every visible row for recomputation on the coalescer.
// Use Wait to block until the work is done.
func (g *Grid) Refresh(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	snap := g.snapshotLocked()
	g.mu.Unlock()

	for _, i := range snap.order(g.opts.UsingTree) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.queue.Enqueue(func(context.Context) error {
			g.computeRow(snap, i)
			return nil
		}); err != nil {
			return fmt.Errorf("schedule row %d: %w", i, err)
		}
	}
	return nil
}

// refreshLater schedules a refresh after a row mutation.
func (g *Grid) refreshLater() {
	if err := g.Refresh(g.ctx); err != nil && !errors.Is(err, ErrClosed) {
		g.logger.Warn("Failed to schedule refresh.", "error", err)
	}
}

// Wait blocks until scheduled work has drained.
func (g *Grid) Wait(ctx context.Context) error {
	return g.queue.Wait(ctx)
}

// View returns the current records of the visible rows in display order.
// Rows that were never computed are skipped.
func (g *Grid) View() []RowView {
	g.mu.Lock()
	snap := g.snapshotLocked()
	var views []RowView
	for _, i := range snap.order(g.opts.UsingTree) {
		if rec, ok := g.records[snap.keys[i]]; ok && rec.valid {
			views = append(views, rec.view)
		}
	}
	g.mu.Unlock()
	return g.attachEdits(views)
}

// computeRow derives row i of snap, reusing the previous record when the
// row's content hash is unchanged.
func (g *Grid) computeRow(snap snapshot, i int) RowView {
	row := snap.rows[i]
	identity := row[g.opts.KeyField]
	key := snap.keys[i]

	var (
		node   *tree.Node
		fields map[string]any
	)
	if g.opts.UsingTree && i < len(snap.tree.Nodes) {
		node = &snap.tree.Nodes[i]
		fields = snap.tree.Fields(i)
	}
	h := memo.Combine(memo.DefaultDepth, row, snap.columnsHash, fields, i)

	g.mu.Lock()
	prev, ok := g.records[key]
	g.mu.Unlock()

	if changed := g.memo.ShouldRecompute(key, h); !changed && ok && prev.valid && prev.hash == h {
		g.metrics.Row("reused")
		return prev.view
	}

	view := RowView{
		Identity: identity,
		Index:    i,
		RowClass: rowClass(row),
		Row:      row,
		Cells:    make([]Cell, len(snap.columns)),
		key:      key,
	}
	failures := 0
	for c, col := range snap.columns {
		cell := deriveCell(cellInput{
			identity:            identity,
			index:               i,
			column:              c,
			columns:             len(snap.columns),
			col:                 col,
			row:                 row,
			node:                node,
			fields:              fields,
			usingTree:           g.opts.UsingTree,
			treeIndex:           g.opts.TreeIndex,
			rows:                snap.copyRows,
			outerEditor:         g.opts.OuterEditor,
			usingSaveAll:        g.opts.UsingSaveAll,
			showColumnHighlight: g.opts.ShowColumnHighlight,
		}, g.logger)
		failures += len(cell.Diagnostics)
		view.Cells[c] = cell
	}
	g.metrics.Row("computed")
	g.metrics.ResolveFailures(failures)

	g.mu.Lock()
	if g.gen == snap.gen && !g.closed {
		g.records[key] = rowRecord{hash: h, view: view, valid: true}
	}
	g.mu.Unlock()

	for c, cell := range view.Cells {
		g.syncMachine(key, c, cell)
	}
	return view
}

func rowClass(row map[string]any) string {
	highlight := true
	if v, ok := row[rowHighlightField].(bool); ok {
		highlight = v
	}
	return joinClass(when(!highlight, "none-highlight"), "slds-hint-parent")
}

// attachEdits returns copies of views carrying the current edit state of
// every cell.
func (g *Grid) attachEdits(views []RowView) []RowView {
	out := make([]RowView, len(views))
	for i, v := range views {
		v.Row = cloneRow(v.Row)
		v.Cells = slices.Clone(v.Cells)
		for c := range v.Cells {
			if m := g.machine(cellKey(v.key, c)); m != nil {
				v.Cells[c].Edit = m.View()
			}
		}
		out[i] = v
	}
	return out
}

func (g *Grid) machine(key string) *celledit.Machine {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.machines[key]
}

// syncMachine creates or reconfigures the edit machine of a cell and applies
// the always-editing flag.
func (g *Grid) syncMachine(rowKey string, column int, cell Cell) {
	key := cellKey(rowKey, column)
	cfg := g.machineConfig(rowKey, column, cell)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	m, ok := g.machines[key]
	if !ok {
		m = celledit.New(cfg)
		g.machines[key] = m
	}
	g.mu.Unlock()

	if ok {
		m.Configure(cfg)
	}
	if !ok && !cell.AlwaysEditing {
		return
	}
	if err := m.Sync(cell.AlwaysEditing, standardEditor(cell)); err != nil {
		g.logger.Debug("Failed to sync always-editing cell.", "row", rowKey, "column", column, "error", err)
	}
}

func (g *Grid) machineConfig(rowKey string, column int, cell Cell) celledit.Config {
	return celledit.Config{
		AutoSave:           cell.AutoSave,
		PendingVisualDelay: g.opts.PendingVisualDelay,
		Ticker:             g.ticker,
		OnOpen: func(standard celledit.Editor) (celledit.Editor, bool) {
			cc, cbs, err := g.callbackContext(rowKey, column)
			if err != nil {
				return standard, false
			}
			return cbs.OnEdit(cc, standard)
		},
		OnSubmit: func(ctx context.Context, value any) (bool, error) {
			cc, cbs, err := g.callbackContext(rowKey, column)
			if err != nil {
				return false, err
			}
			return cbs.OnEditSubmit(ctx, cc, value)
		},
		OnChange: func(ed celledit.Editor, prevent func()) {
			cc, cbs, err := g.callbackContext(rowKey, column)
			if err != nil {
				return
			}
			cbs.OnValueChanged(cc, ed, prevent)
		},
	}
}

// standardEditor is the editor a cell offers before OnEdit customizes it.
func standardEditor(cell Cell) celledit.Editor {
	option := map[string]any{
		"reference_api": cell.Editor.ReferenceAPI,
		"options":       cell.Editor.PicklistOptions,
	}
	if cell.DataType == "percent" {
		option["formatter"] = "percent"
		if cell.PercentFixed {
			option["formatter"] = "percent-fixed"
		}
	}
	return celledit.Standard(cell.RealValue, cell.DataType, option)
}

// callbackContext builds the context of a cell from the current grid state
// together with the callbacks of its column.
func (g *Grid) callbackContext(rowKey string, column int) (CallbackContext, Callbacks, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.index[rowKey]
	if !ok {
		return CallbackContext{}, Callbacks{}, ErrRowNotFound
	}
	if column < 0 || column >= len(g.columns) {
		return CallbackContext{}, Callbacks{}, ErrColumnNotFound
	}
	col := g.columns[column]
	row := g.rows[i]
	cc := CallbackContext{
		Identity: row[g.opts.KeyField],
		Row:      cloneRow(row),
		Index:    i,
		Column:   column,
		Field:    col.Field,
		grid:     g,
	}
	if rec, ok := g.records[rowKey]; ok && column < len(rec.view.Cells) {
		cc.Cell = rec.view.Cells[column]
	}
	return cc, col.Callbacks.or(g.opts.Callbacks).or(defaultCallbacks()), nil
}

// Rows returns copies of the current rows.
func (g *Grid) Rows() []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return snapshot{rows: g.rows}.copyRows()
}

// Row returns a copy of the row with the given identity.
func (g *Grid) Row(identity any) (map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, err := g.lookupLocked(identity)
	if err != nil {
		return nil, err
	}
	return cloneRow(g.rows[i]), nil
}

func (g *Grid) lookupLocked(identity any) (int, error) {
	s, ok := tree.KeyString(identity)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrRowNotFound, identity)
	}
	i, ok := g.index[s]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrRowNotFound, identity)
	}
	return i, nil
}

// SetValue writes field on the row with the given identity and schedules a
// refresh. Rows are replaced, never mutated, so snapshots in flight keep
// their inputs.
func (g *Grid) SetValue(identity any, field string, value any) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	i, err := g.lookupLocked(identity)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	row := cloneRow(g.rows[i])
	row[field] = value
	g.rows = slices.Clone(g.rows)
	g.rows[i] = row
	g.rowsHash = memo.Hash(g.rows, memo.DefaultDepth)
	g.rebuildLocked()
	g.mu.Unlock()

	g.refreshLater()
	return nil
}

// Headers resolves the header of every column.
func (g *Grid) Headers() []Header {
	g.mu.Lock()
	snap := g.snapshotLocked()
	sort := g.sort
	g.mu.Unlock()

	headers := make([]Header, len(snap.columns))
	for c, col := range snap.columns {
		headers[c] = deriveHeader(headerInput{
			column:     c,
			col:        col,
			columns:    len(snap.columns),
			sort:       sort,
			scrollable: g.opts.Scrollable,
			rows:       snap.copyRows,
		}, g.logger)
	}
	if g.opts.Scrollable {
		fixWidths(headers)
	}
	return headers
}

// Close stops background work, supersedes pending remote lookups and
// cancels every open editor. It is safe to call more than once.
func (g *Grid) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	machines := make([]*celledit.Machine, 0, len(g.machines))
	for _, m := range g.machines {
		machines = append(machines, m)
	}
	g.mu.Unlock()

	g.queue.Close()
	g.remote.Close()
	g.cancel()
	for _, m := range machines {
		m.Cancel()
	}
	g.logger.Debug("Grid closed.")
}
