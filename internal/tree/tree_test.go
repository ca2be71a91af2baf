package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(r Result, idx []int) []any {
	out := make([]any, len(idx))
	for i, j := range idx {
		out[i] = r.Nodes[j].Key
	}
	return out
}

func TestDerive_OrphanBecomesRoot(t *testing.T) {
	rows := []map[string]any{
		{"k": 1, "parent": nil},
		{"k": 2, "parent": 1},
		{"k": 3, "parent": 99},
	}
	r := Derive(rows, Options{KeyField: "k", ParentField: "parent"})

	assert.Equal(t, []any{1, 3}, keys(r, r.Roots()))
	assert.Equal(t, []any{1, 2, 3}, keys(r, r.Order))
	assert.Equal(t, 0, r.Nodes[0].Indent)
	assert.Equal(t, 1, r.Nodes[1].Indent)
	assert.Equal(t, 0, r.Nodes[2].Indent)

	assert.True(t, r.Nodes[0].HasChildren)
	assert.Equal(t, 1, r.Nodes[0].ChildrenNum)
	assert.True(t, r.Nodes[1].HasParent)
	assert.Equal(t, 0, r.Nodes[1].RootParent)
	assert.False(t, r.Nodes[2].HasParent)
}

func TestDerive_VisibilityFollowsExpansion(t *testing.T) {
	rows := []map[string]any{
		{"id": "a", "is_expand": true},
		{"id": "b", "parent_name": "a"},
		{"id": "c", "parent_name": "b"},
		{"id": "d", "parent_name": "a", "can_expand": true},
	}
	r := Derive(rows, DefaultOptions())

	assert.Equal(t, []any{"a", "b", "c", "d"}, keys(r, r.Order))
	assert.Equal(t, []any{"a", "b", "d"}, keys(r, r.Visible()), "c is hidden because b is collapsed")
	assert.Equal(t, 2, r.Nodes[2].Indent)
	assert.Equal(t, 0, r.Nodes[2].RootParent)

	assert.True(t, r.Nodes[0].ShowExpand)
	assert.True(t, r.Nodes[1].ShowExpand)
	assert.False(t, r.Nodes[2].ShowExpand)
	assert.True(t, r.Nodes[3].ShowExpand, "externally flagged as expandable")

	rows[1]["is_expand"] = true
	r = Derive(rows, DefaultOptions())
	assert.Equal(t, []any{"a", "b", "c", "d"}, keys(r, r.Visible()))
}

func TestDerive_PreOrderKeepsFirstSeenChildOrder(t *testing.T) {
	rows := []map[string]any{
		{"id": 3, "parent_name": 1},
		{"id": 1},
		{"id": 4, "parent_name": 2},
		{"id": 2, "parent_name": 1},
		{"id": 5},
	}
	r := Derive(rows, DefaultOptions())
	assert.Equal(t, []any{1, 3, 2, 4, 5}, keys(r, r.Order))
}

func TestDerive_SelfReferenceIsRoot(t *testing.T) {
	r := Derive([]map[string]any{{"id": "x", "parent_name": "x"}}, DefaultOptions())
	require.Len(t, r.Nodes, 1)
	assert.True(t, r.Nodes[0].IsRoot)
	assert.Equal(t, []int{0}, r.Order)
}

func TestDerive_CyclesAreBroken(t *testing.T) {
	rows := []map[string]any{
		{"id": "a", "parent_name": "b"},
		{"id": "b", "parent_name": "a"},
	}
	r := Derive(rows, DefaultOptions())

	require.Len(t, r.Order, 2)
	assert.Len(t, r.Roots(), 1)
	assert.True(t, r.HasDescendant(r.Roots()[0], 1-r.Roots()[0]))
}

func TestDerive_RepeatedChildBecomesRoot(t *testing.T) {
	rows := []map[string]any{
		{"id": 1, "is_expand": true},
		{"id": 2, "parent_name": 1},
		{"id": 2, "parent_name": 1, "v": "again"},
	}
	r := Derive(rows, DefaultOptions())

	assert.Equal(t, []int{0, 1, 2}, r.Order, "no row is dropped")
	assert.Equal(t, []int{1}, r.Nodes[0].Children)
	assert.True(t, r.Nodes[1].HasParent)
	assert.True(t, r.Nodes[2].IsRoot)
	assert.False(t, r.Nodes[2].HasParent)
	assert.Equal(t, 0, r.Nodes[2].Indent)
	assert.True(t, r.Nodes[2].IsShow)
}

func TestDerive_CollapseDuplicatesKeepsLast(t *testing.T) {
	rows := []map[string]any{
		{"id": 1, "v": "first"},
		{"id": 2, "v": "only"},
		{"id": 1, "v": "last"},
		{"id": 3},
	}
	r := Derive(rows, Options{CollapseDuplicates: true})

	want := []map[string]any{
		{"id": 2, "v": "only"},
		{"id": 1, "v": "last"},
		{"id": 3},
	}
	if diff := cmp.Diff(want, r.Rows); diff != "" {
		t.Errorf("collapsed rows mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, Derive(rows, DefaultOptions()).Rows, 4, "without collapsing duplicates stay")
}

func TestKeyString(t *testing.T) {
	one, ok := KeyString(1)
	require.True(t, ok)
	oneFloat, _ := KeyString(1.0)
	oneStr, _ := KeyString("1")
	assert.Equal(t, one, oneFloat)
	assert.NotEqual(t, one, oneStr)

	_, ok = KeyString("")
	assert.False(t, ok)
	_, ok = KeyString(nil)
	assert.False(t, ok)
}

func TestQueries(t *testing.T) {
	rows := []map[string]any{
		{"id": "root", "is_expand": true},
		{"id": "mid", "parent_name": "root"},
		{"id": "leaf", "parent_name": "mid"},
	}
	r := Derive(rows, DefaultOptions())

	i, ok := r.Find("leaf")
	require.True(t, ok)
	assert.Equal(t, 2, i)
	assert.True(t, r.HasDescendant(0, 2))
	assert.False(t, r.HasDescendant(2, 0))

	var walked []any
	r.Walk(func(i int, n Node) bool {
		walked = append(walked, n.Key)
		return n.Key != "mid"
	})
	assert.Equal(t, []any{"root", "mid"}, walked)

	fields := r.Fields(1)
	assert.Equal(t, 1, fields["indent"])
	assert.Equal(t, "root", fields["parent_name"])
	assert.Equal(t, true, fields["is_show"])
}
