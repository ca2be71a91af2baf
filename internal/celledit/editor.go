package celledit

import (
	"maps"
	"strings"
)

type mapping struct {
	typ    string
	option map[string]any
}

// typeMapper maps source data types to editor input types.
var typeMapper = map[string]mapping{
	"boolean":       {typ: "checkbox"},
	"combobox":      {typ: "text"},
	"date":          {typ: "date"},
	"time":          {typ: "time"},
	"datetime":      {typ: "datetime"},
	"email":         {typ: "email"},
	"long":          {typ: "number", option: map[string]any{"step": 1}},
	"double":        {typ: "number", option: map[string]any{"step": 0.01}},
	"integer":       {typ: "number", option: map[string]any{"step": 1}},
	"percent":       {typ: "number", option: map[string]any{"formatter": "percent"}},
	"currency":      {typ: "number", option: map[string]any{"formatter": "currency"}},
	"multipicklist": {typ: "multipicklist"},
	"phone":         {typ: "tel"},
	"picklist":      {typ: "picklist"},
	"reference":     {typ: "reference"},
	"textarea":      {typ: "textarea"},
	"url":           {typ: "url"},
}

// Editor is the editor configuration shown while a cell is being edited.
type Editor struct {
	Type      string          `json:"type" yaml:"type"`
	Value     any             `json:"value" yaml:"value"`
	Edited    any             `json:"edited" yaml:"edited"`
	History   []any           `json:"history,omitempty" yaml:"history,omitempty"`
	Option    map[string]any  `json:"option,omitempty" yaml:"option,omitempty"`
	TypeFlags map[string]bool `json:"type_flags,omitempty" yaml:"type_flags,omitempty"`
	// Open is false when the open callback declined editing.
	Open bool `json:"open" yaml:"open"`
}

// Standard returns the editor a cell offers before the open callback
// customizes it.
func Standard(value any, dataType string, option map[string]any) Editor {
	return Editor{
		Type:   dataType,
		Value:  value,
		Option: maps.Clone(option),
		Open:   true,
	}
}

// MapType resolves the editor's source data type into an input type, merges
// the type's default options under the editor's own and computes TypeFlags.
// Unknown types become text.
func MapType(ed Editor) Editor {
	source := strings.ToLower(ed.Type)
	m, ok := typeMapper[source]
	ed.Type = "text"
	if ok && m.typ != "" {
		ed.Type = m.typ
	}

	option := maps.Clone(m.option)
	if option == nil {
		option = map[string]any{}
	}
	maps.Copy(option, ed.Option)
	ed.Option = option

	flags := map[string]bool{}
	for _, mm := range typeMapper {
		flags["is_"+mm.typ] = ed.Type == mm.typ
	}
	flags["is_input"] = !(flags["is_reference"] || flags["is_multipicklist"] || flags["is_picklist"] || flags["is_textarea"])
	ed.TypeFlags = flags
	return ed
}

func (ed Editor) clone() Editor {
	ed.History = append([]any(nil), ed.History...)
	ed.Option = maps.Clone(ed.Option)
	ed.TypeFlags = maps.Clone(ed.TypeFlags)
	return ed
}
