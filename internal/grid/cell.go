package grid

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/specialistvlad/cellgrid/internal/celledit"
	"github.com/specialistvlad/cellgrid/internal/confgraph"
	"github.com/specialistvlad/cellgrid/internal/tree"
)

// Cell is the resolved view-state of one (row, column) pair.
type Cell struct {
	Identity     any    `json:"identity" yaml:"identity"`
	Index        int    `json:"index" yaml:"index"`
	Column       int    `json:"column" yaml:"column"`
	Field        string `json:"field" yaml:"field"`
	DisplayField string `json:"display_field,omitempty" yaml:"display_field,omitempty"`

	FieldValue   any    `json:"field_value" yaml:"field_value"`
	DisplayValue any    `json:"display_value,omitempty" yaml:"display_value,omitempty"`
	RealValue    any    `json:"real_value" yaml:"real_value"`
	Value        any    `json:"value" yaml:"value"`
	NoneURLValue string `json:"none_url_value,omitempty" yaml:"none_url_value,omitempty"`
	IsComputed   bool   `json:"is_computed" yaml:"is_computed"`
	HasTitle     bool   `json:"has_title" yaml:"has_title"`
	Title        any    `json:"title,omitempty" yaml:"title,omitempty"`

	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	UsingURL bool   `json:"using_url" yaml:"using_url"`
	URLValue string `json:"url_value,omitempty" yaml:"url_value,omitempty"`

	Tip        Tip  `json:"tip" yaml:"tip"`
	HasCellTip bool `json:"has_cell_tip" yaml:"has_cell_tip"`

	DataType       string `json:"data_type" yaml:"data_type"`
	CellType       string `json:"cell_type" yaml:"cell_type"`
	IsBoolean      bool   `json:"is_boolean" yaml:"is_boolean"`
	IsStandard     bool   `json:"is_standard" yaml:"is_standard"`
	Button         Button `json:"button" yaml:"button"`
	PercentFixed   bool   `json:"percent_fixed" yaml:"percent_fixed"`
	PercentUnit    string `json:"percent_unit" yaml:"percent_unit"`
	PercentDecimal int    `json:"percent_decimal" yaml:"percent_decimal"`

	Editor           EditorInfo `json:"editor" yaml:"editor"`
	Editable         bool       `json:"editable" yaml:"editable"`
	AlwaysEditing    bool       `json:"always_editing" yaml:"always_editing"`
	AutoSave         bool       `json:"auto_save" yaml:"auto_save"`
	EditIconPosition Position   `json:"edit_icon_position" yaml:"edit_icon_position"`
	HasSaveButton    bool       `json:"has_save_button" yaml:"has_save_button"`
	HasAvatar        bool       `json:"has_avatar" yaml:"has_avatar"`
	AvatarURL        string     `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`

	Tree        *TreeInfo `json:"tree,omitempty" yaml:"tree,omitempty"`
	PaddingLeft string    `json:"padding_left,omitempty" yaml:"padding_left,omitempty"`

	Actions               []Action `json:"actions" yaml:"actions"`
	ActionHasStart        bool     `json:"action_has_start" yaml:"action_has_start"`
	ActionHasInsertBefore bool     `json:"action_has_insert_before" yaml:"action_has_insert_before"`
	ActionHasAppend       bool     `json:"action_has_append" yaml:"action_has_append"`
	ActionHasEnd          bool     `json:"action_has_end" yaml:"action_has_end"`

	Align         string `json:"align" yaml:"align"`
	CellClass     string `json:"cell_class" yaml:"cell_class"`
	TDClass       string `json:"td_class" yaml:"td_class"`
	SpanStyle     string `json:"span_style,omitempty" yaml:"span_style,omitempty"`
	Style         string `json:"style" yaml:"style"`
	TextStyle     string `json:"text_style,omitempty" yaml:"text_style,omitempty"`
	HoverClass    string `json:"hover_class" yaml:"hover_class"`
	HoverStyle    string `json:"hover_style,omitempty" yaml:"hover_style,omitempty"`
	TextWrap      string `json:"text_wrap" yaml:"text_wrap"`
	TextInnerWrap string `json:"text_inner_wrap" yaml:"text_inner_wrap"`

	Popover      Popover    `json:"popover" yaml:"popover"`
	HasPopover   bool       `json:"has_popover" yaml:"has_popover"`
	IsCustomized bool       `json:"is_customized" yaml:"is_customized"`
	Customized   Customized `json:"customized" yaml:"customized"`

	Edit        celledit.View `json:"edit" yaml:"edit"`
	Diagnostics []string      `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

type Tip struct {
	Content  any      `json:"content,omitempty" yaml:"content,omitempty"`
	Variant  string   `json:"variant" yaml:"variant"`
	Icon     string   `json:"icon" yaml:"icon"`
	IsCustom bool     `json:"is_custom" yaml:"is_custom"`
	Position Position `json:"position" yaml:"position"`
}

type Button struct {
	Is       bool   `json:"is" yaml:"is"`
	Variant  string `json:"variant,omitempty" yaml:"variant,omitempty"`
	Disabled bool   `json:"disabled" yaml:"disabled"`
}

// EditorInfo is the editor metadata shown before the editor opens.
type EditorInfo struct {
	ClassName       string `json:"class_name" yaml:"class_name"`
	IsOuter         bool   `json:"is_outer" yaml:"is_outer"`
	TextareaExpand  bool   `json:"textarea_expand" yaml:"textarea_expand"`
	ReferenceAPI    string `json:"reference_api,omitempty" yaml:"reference_api,omitempty"`
	PicklistOptions []any  `json:"picklist_options,omitempty" yaml:"picklist_options,omitempty"`
	HelperText      string `json:"helper_text,omitempty" yaml:"helper_text,omitempty"`
	HasHelperText   bool   `json:"has_helper_text" yaml:"has_helper_text"`
}

// TreeInfo is the tree metadata of the tree column.
type TreeInfo struct {
	Indent       int    `json:"indent" yaml:"indent"`
	IsRoot       bool   `json:"is_root" yaml:"is_root"`
	IsShow       bool   `json:"is_show" yaml:"is_show"`
	IsExpand     bool   `json:"is_expand" yaml:"is_expand"`
	CanExpand    bool   `json:"can_expand" yaml:"can_expand"`
	ShowExpand   bool   `json:"show_expand" yaml:"show_expand"`
	ChildrenNum  int    `json:"children_num" yaml:"children_num"`
	HasChildren  bool   `json:"has_children" yaml:"has_children"`
	HasParent    bool   `json:"has_parent" yaml:"has_parent"`
	IsTreeHeader bool   `json:"is_tree_header" yaml:"is_tree_header"`
	TreeIcon     string `json:"tree_icon" yaml:"tree_icon"`
}

type Action struct {
	Identity          any      `json:"identity" yaml:"identity"`
	Position          Position `json:"position" yaml:"position"`
	Status            string   `json:"status" yaml:"status"`
	Describe          string   `json:"describe,omitempty" yaml:"describe,omitempty"`
	Type              string   `json:"type" yaml:"type"`
	Icon              string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Size              string   `json:"size,omitempty" yaml:"size,omitempty"`
	IconVariant       string   `json:"icon_variant,omitempty" yaml:"icon_variant,omitempty"`
	IconClass         string   `json:"icon_class,omitempty" yaml:"icon_class,omitempty"`
	ButtonVariant     string   `json:"button_variant,omitempty" yaml:"button_variant,omitempty"`
	ButtonIconVariant string   `json:"button_icon_variant,omitempty" yaml:"button_icon_variant,omitempty"`
	Tooltip           string   `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`
	Disabled          bool     `json:"disabled" yaml:"disabled"`
	IconPosition      string   `json:"icon_position,omitempty" yaml:"icon_position,omitempty"`
	Content           string   `json:"content,omitempty" yaml:"content,omitempty"`
	DynamicType       string   `json:"dynamic_type,omitempty" yaml:"dynamic_type,omitempty"`
	DynamicOption     any      `json:"dynamic_option,omitempty" yaml:"dynamic_option,omitempty"`
	Class             string   `json:"class" yaml:"class"`
	ButtonClass       string   `json:"button_class" yaml:"button_class"`
	IsIconType        bool     `json:"is_icon_type" yaml:"is_icon_type"`
	IsButtonIconType  bool     `json:"is_button_icon_type" yaml:"is_button_icon_type"`
	IsDynamicIconType bool     `json:"is_dynamic_icon_type" yaml:"is_dynamic_icon_type"`
	IsButtonType      bool     `json:"is_button_type" yaml:"is_button_type"`
}

type Popover struct {
	Title     any      `json:"title,omitempty" yaml:"title,omitempty"`
	BodyLines []string `json:"body_lines,omitempty" yaml:"body_lines,omitempty"`
	ClassName string   `json:"class_name" yaml:"class_name"`
}

// Customized holds the avatar description and progress bar renderings.
type Customized struct {
	IsAvatarDesc             bool    `json:"is_avatar_desc" yaml:"is_avatar_desc"`
	HasAvatarDesc            bool    `json:"has_avatar_desc" yaml:"has_avatar_desc"`
	Describe                 string  `json:"describe,omitempty" yaml:"describe,omitempty"`
	IsProgressBar            bool    `json:"is_progress_bar" yaml:"is_progress_bar"`
	ProgressPercent          float64 `json:"progress_percent" yaml:"progress_percent"`
	ProgressTitle            string  `json:"progress_title,omitempty" yaml:"progress_title,omitempty"`
	ProgressBarClass         string  `json:"progress_bar_class,omitempty" yaml:"progress_bar_class,omitempty"`
	ProgressStyle            string  `json:"progress_style,omitempty" yaml:"progress_style,omitempty"`
	ProgressPercentFormatter string  `json:"progress_percent_formatter,omitempty" yaml:"progress_percent_formatter,omitempty"`
}

// cellInput is everything a cell derivation reads. It is a snapshot; the
// derivation never touches grid state.
type cellInput struct {
	identity  any
	index     int
	column    int
	columns   int
	col       Column
	row       map[string]any
	node      *tree.Node
	fields    map[string]any
	usingTree bool
	treeIndex int
	rows      func() []map[string]any

	outerEditor         bool
	usingSaveAll        bool
	showColumnHighlight bool
}

// diagnostics renders the resolution failures recorded on the chain of n.
func diagnostics(n *confgraph.Node) []string {
	var out []string
	for _, d := range n.Diagnostics() {
		out = append(out, d.Property+": "+d.Err.Error())
	}
	return out
}

func (in cellInput) provider() map[string]any {
	p := map[string]any{
		"identity":      in.identity,
		"row":           in.row,
		"index":         in.index,
		"column":        in.column,
		"columns":       in.columns,
		"field":         in.col.Field,
		"display_field": in.col.DisplayField,
		"value":         in.row[in.col.Field],
		"display_value": nil,
		"tree":          nil,
		"rows": confgraph.DerivedFunc(func(*confgraph.Scope) any {
			if in.rows == nil {
				return []map[string]any(nil)
			}
			return in.rows()
		}),
	}
	if in.col.DisplayField != "" {
		p["display_value"] = in.row[in.col.DisplayField]
	}
	if in.fields != nil {
		p["tree"] = in.fields
	}
	return p
}

// deriveCell resolves the cell configuration of in and runs every generator
// over it.
func deriveCell(in cellInput, logger *slog.Logger) Cell {
	n := confgraph.New(
		merge(DefaultCell(), in.col.Cell),
		in.provider(),
		confgraph.WithLogger(logger),
	)
	c := Cell{
		Identity:     in.identity,
		Index:        in.index,
		Column:       in.column,
		Field:        in.col.Field,
		DisplayField: in.col.DisplayField,
		FieldValue:   in.row[in.col.Field],
	}
	if in.col.DisplayField != "" {
		c.DisplayValue = in.row[in.col.DisplayField]
	}

	c.computeValue(n)
	c.urlInfo(n)
	c.tipInfo(n)
	c.typeInfo(n)
	c.editorInfo(n, in)
	c.treeInfo(in)
	c.actionInfo(n)
	c.classStyle(n, in)
	c.RealValue = c.FieldValue
	c.Diagnostics = diagnostics(n)
	return c
}

func (c *Cell) computeValue(n *confgraph.Node) {
	c.IsComputed = n.Bool("do_compute")
	c.HasTitle = n.Bool("has_title")
	c.Title = n.Resolve("title")
	c.Value = c.FieldValue
	if c.DisplayField != "" {
		c.Value = c.DisplayValue
	}
	if c.IsComputed {
		c.Value = n.Resolve("computed_value")
	}
	if c.HasTitle && confgraph.AsString(c.Title) == "" {
		c.Title = c.Value
	}
}

// urlInfo splits the value around url_value: the matching part becomes the
// link text and the remainder is shown after it.
func (c *Cell) urlInfo(n *confgraph.Node) {
	c.URL = n.String("url")
	c.UsingURL = n.Bool("using_url")
	c.URLValue = n.String("url_value")
	if !c.UsingURL || c.URLValue == "" {
		return
	}
	value := looseString(c.Value)
	at := strings.Index(value, c.URLValue)
	if at == 0 || (at >= 0 && at+len(c.URLValue) >= len(value)) {
		c.Value = value[at : at+len(c.URLValue)]
		c.NoneURLValue = value[at+len(c.URLValue):]
	}
}

func (c *Cell) tipInfo(n *confgraph.Node) {
	c.HasCellTip = n.Bool("has_cell_tip")
	c.Tip = Tip{
		Content:  n.Resolve("cell_tip"),
		Variant:  n.String("cell_tip_variant"),
		Icon:     n.String("cell_tip_icon"),
		IsCustom: n.Bool("is_custom_cell_tip"),
		Position: parsePosition(n.String("cell_tip_position"), c.HasCellTip),
	}
}

func (c *Cell) typeInfo(n *confgraph.Node) {
	c.DataType = strings.ToLower(n.String("type"))
	c.CellType = strings.ToLower(n.String("cell_type"))
	c.PercentFixed = n.Bool("percent_fixed")
	c.PercentUnit = n.String("percent_unit")
	c.PercentDecimal, _ = n.Int("percent_decimal")

	switch c.DataType {
	case "reference":
		if !c.UsingURL {
			c.UsingURL = true
			c.URL = "/" + confgraph.AsString(c.FieldValue)
		}
	case "boolean":
		c.IsBoolean = true
		c.UsingURL = false
	case "percent":
		if s, ok := c.Value.(string); !ok || s != "" {
			c.Value = formatPercent(c.Value, c.PercentFixed, c.PercentDecimal, c.PercentUnit)
		}
		c.IsStandard = true
	default:
		c.IsStandard = true
		c.IsBoolean = false
	}

	if c.CellType == "button" {
		c.Button = Button{
			Is:       true,
			Variant:  n.String("button_variant"),
			Disabled: n.Bool("disabled"),
		}
		c.UsingURL = false
		c.IsStandard = false
	}
}

// formatPercent renders v as a percentage with decimals places. Fixed values
// are already scaled by 100. Non-numeric and infinite values render empty.
func formatPercent(v any, fixed bool, decimals int, unit string) string {
	f, ok := confgraph.AsFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if fixed {
		f /= 100
	}
	if decimals < 0 {
		decimals = 0
	}
	return strconv.FormatFloat(f*100, 'f', decimals, 64) + unit
}

func (c *Cell) editorInfo(n *confgraph.Node, in cellInput) {
	outer := in.outerEditor
	if v := n.Resolve("is_outer_editor"); v != nil {
		outer = confgraph.AsBool(v)
	}
	c.Editor = EditorInfo{
		ClassName: joinClass(
			"editor-input",
			"slds-p-around--x-small",
			"slds-is-relative",
			when(outer, "outer-editor"),
			when(outer && float64(in.column) > float64(in.columns)/2, "outer-editor-right"),
		),
		IsOuter:         outer,
		TextareaExpand:  n.Bool("textarea_expand"),
		ReferenceAPI:    n.String("reference_api"),
		PicklistOptions: n.List("picklist_options"),
		HelperText:      n.String("editor_helper_text"),
	}
	c.Editor.HasHelperText = c.Editor.HelperText != ""
	c.AvatarURL = n.String("avatar_url")
	c.HasAvatar = n.Bool("has_avatar") && c.AvatarURL != ""
	c.Editable = n.Bool("editable")
	c.AlwaysEditing = n.Bool("is_editing")
	c.AutoSave = n.Bool("auto_save")
	c.EditIconPosition = parsePosition(n.String("edit_icon_position"), c.Editable)
	c.HasSaveButton = !in.usingSaveAll && !c.AutoSave

	if labels := selectedLabels(c.FieldValue, c.Editor.PicklistOptions); len(labels) > 1 {
		c.Value = strings.Join(labels, ";")
	}
}

// selectedLabels returns the labels of the picklist options whose value is
// listed in the ';' separated field value.
func selectedLabels(fieldValue any, options []any) []string {
	s, ok := fieldValue.(string)
	if !ok {
		return nil
	}
	var selected []string
	for _, part := range strings.Split(s, ";") {
		selected = append(selected, strings.TrimSpace(part))
	}
	var labels []string
	for _, opt := range options {
		m := optionMap(opt)
		if m == nil {
			continue
		}
		if slices.Contains(selected, confgraph.AsString(m["value"])) {
			labels = append(labels, confgraph.AsString(m["label"]))
		}
	}
	return labels
}

func optionMap(v any) map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return x
	case *confgraph.Node:
		return x.Materialize()
	}
	return nil
}

func (c *Cell) treeInfo(in cellInput) {
	if !in.usingTree || in.column != in.treeIndex || in.node == nil {
		return
	}
	t := in.node
	c.Tree = &TreeInfo{
		Indent:       t.Indent,
		IsRoot:       t.IsRoot,
		IsShow:       t.IsShow,
		IsExpand:     t.IsExpand,
		CanExpand:    t.CanExpand,
		ShowExpand:   t.ShowExpand,
		ChildrenNum:  t.ChildrenNum,
		HasChildren:  t.HasChildren,
		HasParent:    t.HasParent,
		IsTreeHeader: true,
		TreeIcon:     "utility:chevronright",
	}
	if t.IsExpand {
		c.Tree.TreeIcon = "utility:chevrondown"
	}
	pad := t.Indent
	if !t.ShowExpand {
		pad++
	}
	c.PaddingLeft = fmt.Sprintf("padding-left: %drem", pad)
}

func (c *Cell) actionInfo(root *confgraph.Node) {
	list := root.List("actions")
	c.Actions = make([]Action, 0, len(list))
	for i, raw := range list {
		item := optionMap(raw)
		if item == nil {
			continue
		}
		n := root.Nest(fmt.Sprintf("actions.%d", i), merge(DefaultAction(), item))
		a := Action{
			Identity:          n.Resolve("identity"),
			Status:            n.String("status"),
			Describe:          n.String("describe"),
			Type:              n.String("type"),
			Icon:              n.String("icon"),
			Size:              n.String("size"),
			IconVariant:       n.String("icon_variant"),
			IconClass:         n.String("icon_class"),
			ButtonVariant:     n.String("button_variant"),
			ButtonIconVariant: n.String("button_icon_variant"),
			Tooltip:           n.String("tooltip"),
			Disabled:          n.Bool("disabled"),
			IconPosition:      n.String("icon_position"),
			Content:           n.String("content"),
			DynamicType:       n.String("dynamic_type"),
			DynamicOption:     n.Resolve("dynamic_option"),
			ButtonClass:       "slds-button icon-adapt",
		}
		if !confgraph.AsBool(a.Identity) {
			a.Identity = i
		}
		a.Position = parsePosition(n.String("position"), a.Status != "hidden")
		a.Class = joinClass(
			when(a.Status == "hover", "action-hover"),
			when(a.Status == "rowHover" || a.Status == "row_hover", "action-row-hover"),
			when(a.Status != "always", "hidden"),
		)
		a.IsIconType = a.Type == "icon"
		a.IsButtonIconType = a.Type == "button-icon"
		a.IsDynamicIconType = a.Type == "dynamic-icon"
		a.IsButtonType = a.Type == "button"
		c.Actions = append(c.Actions, a)

		c.ActionHasStart = c.ActionHasStart || a.Position.IsStart
		c.ActionHasInsertBefore = c.ActionHasInsertBefore || a.Position.IsInsertBefore
		c.ActionHasAppend = c.ActionHasAppend || a.Position.IsAppend
		c.ActionHasEnd = c.ActionHasEnd || a.Position.IsEnd
	}
}

func (c *Cell) classStyle(n *confgraph.Node, in cellInput) {
	c.Align = n.String("align")
	c.CellClass = joinClass(n.String("cell_class"), "slds-text-align--"+c.Align)
	c.TDClass = joinClass(
		"slds-is-relative",
		"_align-"+c.Align,
		when(in.showColumnHighlight && n.Bool("hover_vertical_highlight"), "column-highlight"),
	)

	var styles []string
	if pad := n.Child("padding"); pad != nil {
		for _, side := range []string{"top", "right", "bottom", "left"} {
			if v := pad.Resolve(side); confgraph.AsBool(v) {
				styles = append(styles, "padding-"+side+": "+confgraph.AsString(v)+"rem")
			}
		}
	}
	styles = append(styles,
		"line-height: "+n.String("line_height"),
		"height: "+n.String("height"),
	)
	var textStyles []string
	if bg := n.String("background"); bg != "" {
		styles = append(styles, "background: "+bg)
	}
	if color := n.String("text_color"); color != "" {
		styles = append(styles, "color: "+color)
		textStyles = append(textStyles, "color: "+color)
	}
	if ts := n.String("text_style"); ts != "" {
		textStyles = append(textStyles, ts)
	}
	c.Style = strings.Join(styles, "; ")
	c.TextStyle = strings.Join(textStyles, "; ")
	c.SpanStyle = c.PaddingLeft

	auto := "right-top"
	if in.columns > in.column*2 {
		auto = "left-top"
	}
	nubbin := map[string]string{"auto": auto, "left": "left-top", "right": "right-top"}[n.String("cell_popover_position")]
	if nubbin == "" {
		nubbin = auto
	}
	c.Popover = Popover{
		Title:     n.Resolve("cell_popover_title"),
		BodyLines: popoverLines(n.Resolve("cell_popover_body")),
		ClassName: joinClass("cell-popover", "slds-popover", "slds-nubbin_"+nubbin),
	}
	c.HasPopover = n.Bool("show_cell_popover")

	customize := n.String("customize_type")
	c.IsCustomized = customize != ""
	c.Customized = Customized{
		IsAvatarDesc:  customize == "avatar-desc",
		Describe:      n.String("describe"),
		IsProgressBar: customize == "process-bar",
		ProgressTitle: n.String("progress_title"),
	}
	if p, ok := n.Float("progress_percent"); ok && !math.IsNaN(p) {
		c.Customized.ProgressPercent = p
	}
	if cz := &c.Customized; cz.IsProgressBar {
		p := cz.ProgressPercent
		cz.ProgressBarClass = "slds-progress-bar slds-progress-bar_circular" + when(p > 1 && !math.IsInf(p, 1), " bar-overflow")
		width := p * 100
		if p > 1 {
			width = 1 / p * 100
		}
		cz.ProgressStyle = "width: " + strconv.FormatFloat(width, 'f', 0, 64) + "%"
		cz.ProgressPercentFormatter = convertPercent(p)
	}
	if c.Customized.IsAvatarDesc {
		c.Customized.HasAvatarDesc = c.Customized.Describe != ""
	}

	c.TextWrap = joinClass(
		"slds-show_inline-block slds-truncate",
		when(c.Customized.IsAvatarDesc, "avatar-desc"),
		when(c.Customized.IsProgressBar, "slds-size_1-of-1 no-truncate"),
	)
	c.TextInnerWrap = joinClass("slds-truncate", when(c.Customized.IsProgressBar, "progress-main-text"))

	shownOnHover := n.Bool("shown_on_hover")
	var hoverAlign string
	switch n.String("shown_on_hover_align") {
	case "right":
		hoverAlign = "shown-on-hover-right"
	case "auto":
		hoverAlign = when(float64(in.column) > float64(in.columns)/2, "shown-on-hover-right")
	}
	if maxWidth := n.String("shown_on_hover_max_width"); maxWidth != "" {
		c.HoverStyle = "max-width: " + maxWidth + "; min-width: " + n.String("shown_on_hover_min_width")
	}
	hasEnd := c.Tip.Position.IsEnd || c.ActionHasEnd || c.EditIconPosition.IsEnd
	hasStart := c.Tip.Position.IsStart || c.ActionHasStart || c.EditIconPosition.IsStart
	c.HoverClass = joinClass(
		"table-cell",
		when(c.Customized.IsProgressBar, "progress-bar-box"),
		when(n.Bool("is_wrap"), "wrapped-cell"),
		when(hasEnd, "has-cell-end"),
		when(hasStart, "has-cell-start"),
		when(c.EditIconPosition.IsStart, "hover-edit has-cell-edit-start"),
		when(c.EditIconPosition.IsEnd, "hover-edit has-cell-edit-end"),
		"cell-shown-on",
		when(shownOnHover, "shown-on-hover"),
		when(shownOnHover && n.Bool("shown_on_hover_nowrap"), "shown-on-nowrap"),
		hoverAlign,
	)
}

func popoverLines(body any) []string {
	if list, ok := body.([]any); ok {
		out := make([]string, 0, len(list))
		for _, l := range list {
			out = append(out, confgraph.AsString(l))
		}
		return out
	}
	return []string{confgraph.AsString(body)}
}

// convertPercent renders a ratio as a whole percentage. Infinite ratios
// render as 100%.
func convertPercent(p float64) string {
	if math.IsNaN(p) {
		p = 0
	}
	if math.IsInf(p, 0) {
		p = 1
	}
	return strconv.FormatFloat(p*100, 'f', 0, 64) + "%"
}

// looseString renders v as text, treating falsy values as empty.
func looseString(v any) string {
	if !confgraph.AsBool(v) {
		return ""
	}
	return confgraph.AsString(v)
}

func when(cond bool, class string) string {
	if cond {
		return class
	}
	return ""
}

// joinClass joins the non-empty class fragments with single spaces.
func joinClass(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
