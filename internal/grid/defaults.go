package grid

import "maps"

// DefaultHeader returns the header configuration every column starts from.
func DefaultHeader() map[string]any {
	return map[string]any{
		"width":               "",
		"label":               "",
		"help_info":           "",
		"using_help_info":     false,
		"align":               "left",
		"help_icon":           "utility:info",
		"help_variant":        "bare",
		"help_position":       "append",
		"is_custom_help_info": false,
		"sortable":            false,
		"tooltips":            []any{},
		"is_wrap":             false,
	}
}

// DefaultCell returns the cell configuration every column starts from.
func DefaultCell() map[string]any {
	return map[string]any{
		"align":                    "left",
		"cell_class":               "",
		"type":                     "text",
		"cell_type":                "basic",
		"url":                      "",
		"using_url":                false,
		"url_value":                "",
		"computed_value":           "",
		"do_compute":               false,
		"cell_tip":                 "",
		"editable":                 false,
		"has_cell_tip":             false,
		"cell_tip_icon":            "utility:info",
		"cell_tip_variant":         "bare",
		"cell_tip_position":        "append",
		"cell_popover_title":       "",
		"cell_popover_body":        "",
		"cell_popover_position":    "auto",
		"show_cell_popover":        false,
		"is_custom_cell_tip":       false,
		"edit_icon_position":       "end",
		"is_wrap":                  false,
		"reference_api":            "",
		"picklist_options":         []any{},
		"percent_fixed":            false,
		"is_editing":               false,
		"disabled":                 false,
		"button_variant":           "neutral",
		"background":               "",
		"shown_on_hover":           false,
		"shown_on_hover_align":     "left",
		"shown_on_hover_max_width": "20rem",
		"shown_on_hover_min_width": "100%",
		"shown_on_hover_nowrap":    true,
		"hover_vertical_highlight": false,
		"auto_save":                false,
		"actions":                  []any{DefaultAction()},
		"line_height":              "normal",
		"height":                   "auto",
		"padding":                  map[string]any{"top": 0, "right": 0, "bottom": 0, "left": 0},
		"text_color":               "",
		"text_style":               "",
		"has_title":                false,
		"title":                    "",
		"has_avatar":               false,
		"avatar_url":               "",
		"is_outer_editor":          nil,
		"textarea_expand":          false,
		"percent_unit":             "%",
		"percent_decimal":          0,
		"editor_helper_text":       "",
		"customize_type":           "",
		"describe":                 "",
		"progress_percent":         0,
		"progress_title":           "",
	}
}

// DefaultAction returns the configuration every cell action starts from.
func DefaultAction() map[string]any {
	return map[string]any{
		"identity":            "",
		"position":            "append",
		"status":              "hidden",
		"describe":            "",
		"type":                "icon",
		"icon":                "utility:info",
		"size":                "xx-small",
		"icon_variant":        "",
		"icon_class":          "",
		"button_variant":      "",
		"button_icon_variant": "",
		"tooltip":             "",
		"disabled":            false,
		"icon_position":       "",
		"content":             "",
		"dynamic_type":        "",
		"dynamic_option":      "",
	}
}

// merge overlays over onto a copy of base. nil entries in over are dropped so
// they never mask a default.
func merge(base, over map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range over {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// Position is a parsed slot position for tips, actions, tooltips and the edit
// icon.
type Position struct {
	IsAppend       bool `json:"is_append" yaml:"is_append"`
	IsInsertBefore bool `json:"is_insert_before" yaml:"is_insert_before"`
	IsStart        bool `json:"is_start" yaml:"is_start"`
	IsEnd          bool `json:"is_end" yaml:"is_end"`
}

// parsePosition maps a position name to its flags. Every flag is off when
// enabled is false.
func parsePosition(position string, enabled bool) Position {
	return Position{
		IsAppend:       enabled && position == "append",
		IsInsertBefore: enabled && (position == "insertBefore" || position == "insert_before"),
		IsStart:        enabled && position == "start",
		IsEnd:          enabled && position == "end",
	}
}
