package grid

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/specialistvlad/cellgrid/internal/confgraph"
)

// Sort is the single-column sort state.
type Sort struct {
	Field string `json:"field" yaml:"field"`
	Desc  bool   `json:"desc" yaml:"desc"`
}

// Header is the resolved view-state of a column header.
type Header struct {
	Field         string    `json:"field" yaml:"field"`
	Label         any       `json:"label" yaml:"label"`
	Width         string    `json:"width,omitempty" yaml:"width,omitempty"`
	HasWidth      bool      `json:"has_width" yaml:"has_width"`
	Style         string    `json:"style" yaml:"style"`
	InnerStyle    string    `json:"inner_style,omitempty" yaml:"inner_style,omitempty"`
	Align         string    `json:"align" yaml:"align"`
	HelpInfo      any       `json:"help_info,omitempty" yaml:"help_info,omitempty"`
	UsingHelpInfo bool      `json:"using_help_info" yaml:"using_help_info"`
	Sortable      bool      `json:"sortable" yaml:"sortable"`
	IsWrap        bool      `json:"is_wrap" yaml:"is_wrap"`
	Tooltips      []Tooltip `json:"tooltips" yaml:"tooltips"`
	THClass       string    `json:"th_class" yaml:"th_class"`
	InnerClass    string    `json:"inner_class" yaml:"inner_class"`
	ShowSort      bool      `json:"show_sort" yaml:"show_sort"`
	SortIcon      string    `json:"sort_icon,omitempty" yaml:"sort_icon,omitempty"`
	SortClass     string    `json:"sort_class,omitempty" yaml:"sort_class,omitempty"`
	Diagnostics   []string  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

type Tooltip struct {
	Key      string   `json:"key" yaml:"key"`
	Info     any      `json:"info,omitempty" yaml:"info,omitempty"`
	Icon     string   `json:"icon" yaml:"icon"`
	Variant  string   `json:"variant" yaml:"variant"`
	IsCustom bool     `json:"is_custom" yaml:"is_custom"`
	Position Position `json:"position" yaml:"position"`
}

// headerInput is the snapshot a header derivation reads.
type headerInput struct {
	column     int
	col        Column
	columns    int
	sort       Sort
	scrollable bool
	rows       func() []map[string]any
}

func deriveHeader(in headerInput, logger *slog.Logger) Header {
	n := confgraph.New(
		merge(DefaultHeader(), in.col.Header),
		map[string]any{
			"field":   in.col.Field,
			"column":  in.column,
			"columns": in.columns,
			"rows": confgraph.DerivedFunc(func(*confgraph.Scope) any {
				if in.rows == nil {
					return []map[string]any(nil)
				}
				return in.rows()
			}),
		},
		confgraph.WithLogger(logger),
	)

	h := Header{
		Field:         in.col.Field,
		Label:         n.Resolve("label"),
		Width:         strings.TrimSpace(n.String("width")),
		Align:         n.String("align"),
		HelpInfo:      n.Resolve("help_info"),
		UsingHelpInfo: n.Bool("using_help_info"),
		Sortable:      n.Bool("sortable"),
		IsWrap:        n.Bool("is_wrap"),
	}
	h.HasWidth = h.Width != ""
	h.Style = "width: auto;"
	if h.HasWidth {
		h.Style = "width: " + h.Width
	}

	tooltips := append(slices.Clone(n.List("tooltips")), map[string]any{
		"icon":      n.String("help_icon"),
		"position":  n.String("help_position"),
		"info":      h.HelpInfo,
		"variant":   n.String("help_variant"),
		"is_custom": n.Bool("is_custom_help_info"),
	})
	var hasStart, hasEnd bool
	for i, raw := range tooltips {
		item := optionMap(raw)
		if item == nil {
			continue
		}
		tn := n.Nest(fmt.Sprintf("tooltips.%d", i), item)
		t := Tooltip{
			Key:      "tooltip key " + strconv.Itoa(i),
			Info:     tn.Resolve("info"),
			Icon:     tn.String("icon"),
			Variant:  tn.String("variant"),
			IsCustom: tn.Bool("is_custom"),
		}
		t.Position = parsePosition(tn.String("position"), confgraph.AsBool(t.Info))
		hasStart = hasStart || t.Position.IsStart
		hasEnd = hasEnd || t.Position.IsEnd
		h.Tooltips = append(h.Tooltips, t)
	}

	h.THClass = joinClass(when(hasEnd, "has-cell-end"), when(hasStart, "has-cell-start"), "_align-"+h.Align)
	h.InnerClass = joinClass(when(in.scrollable, "slds-cell-fixed"), "slds-th__action cell-action slds-text-link_reset")
	if h.Sortable {
		h.ShowSort = in.sort.Field != "" && in.sort.Field == h.Field
		h.SortIcon = "utility:arrowup"
		arrow := "slds-icon-utility-arrowup"
		if in.sort.Desc {
			h.SortIcon = "utility:arrowdown"
			arrow = "slds-icon-utility-arrowdown"
		}
		h.SortClass = joinClass("slds-icon_container", arrow)
	}
	h.Diagnostics = diagnostics(n)
	return h
}

// fixWidths gives unsized columns an equal share of the width left over by
// the sized ones. It only applies to scrollable grids.
func fixWidths(headers []Header) {
	var sized []string
	for _, h := range headers {
		if h.HasWidth {
			sized = append(sized, h.Width)
		}
	}
	rest := len(headers) - len(sized)
	if rest == 0 {
		rest = 1
	}
	used := strings.Join(sized, " + ")
	if used == "" {
		used = "0px"
	}
	for i := range headers {
		if headers[i].HasWidth {
			headers[i].InnerStyle = "width: " + headers[i].Width
			continue
		}
		headers[i].InnerStyle = fmt.Sprintf("width: calc((100%% - (%s)) / %d)", used, rest)
	}
}
