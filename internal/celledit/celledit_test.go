package celledit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/cellgrid/internal/remote"
	"github.com/specialistvlad/cellgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapType(t *testing.T) {
	t.Run("known type merges default options", func(t *testing.T) {
		ed := MapType(Editor{Type: "Double", Option: map[string]any{"min": 0}})
		assert.Equal(t, "number", ed.Type)
		assert.Equal(t, map[string]any{"step": 0.01, "min": 0}, ed.Option)
		assert.True(t, ed.TypeFlags["is_number"])
		assert.True(t, ed.TypeFlags["is_input"])
		assert.False(t, ed.TypeFlags["is_checkbox"])
	})

	t.Run("editor options win over defaults", func(t *testing.T) {
		ed := MapType(Editor{Type: "percent", Option: map[string]any{"formatter": "percent-fixed"}})
		assert.Equal(t, "percent-fixed", ed.Option["formatter"])
	})

	t.Run("unknown type is text", func(t *testing.T) {
		ed := MapType(Editor{Type: "mystery"})
		assert.Equal(t, "text", ed.Type)
		assert.True(t, ed.TypeFlags["is_text"])
		assert.True(t, ed.TypeFlags["is_input"])
	})

	t.Run("non input editors", func(t *testing.T) {
		for _, typ := range []string{"picklist", "multipicklist", "reference", "textarea"} {
			ed := MapType(Editor{Type: typ})
			assert.False(t, ed.TypeFlags["is_input"], typ)
		}
	})
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "a; b", Message(errors.Join(errors.New("a"), errors.New("b"))))
	assert.Equal(t, "bad name; too short", Message(map[string]any{
		"fields": map[string]any{"name": []any{"bad name", ""}},
		"page":   "too short",
	}))
	assert.Equal(t, "", Message(nil))

	var deep any = "bottom"
	for i := 0; i < MaxMessageDepth+2; i++ {
		deep = []any{deep}
	}
	assert.Equal(t, "", Message(deep), "payloads nested past the depth cap are dropped")
}

func TestLifecycle_SubmitCloses(t *testing.T) {
	var got any
	m := New(Config{
		OnSubmit: func(ctx context.Context, value any) (bool, error) {
			got = value
			return true, nil
		},
	})
	assert.Equal(t, Viewing, m.State())

	opened, err := m.Open(Standard("Ada", "string", nil))
	require.NoError(t, err)
	require.True(t, opened)
	assert.Equal(t, Editing, m.State())
	assert.False(t, m.View().Listening, "no listeners without autosave")

	closed, err := m.Submit(context.Background(), "Grace")
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Equal(t, "Grace", got)
	assert.Equal(t, Viewing, m.State())
}

func TestLifecycle_Guards(t *testing.T) {
	gate := make(chan struct{})
	m := New(Config{
		OnSubmit: func(ctx context.Context, value any) (bool, error) {
			<-gate
			return true, nil
		},
	})

	_, err := m.Submit(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotEditing)
	_, err = m.ChangeValue(1)
	assert.ErrorIs(t, err, ErrNotEditing)

	_, err = m.Open(Standard(0, "integer", nil))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Submit(context.Background(), 1)
	}()
	require.Eventually(t, func() bool { return m.State() == Submitting }, time.Second, time.Millisecond)

	_, err = m.Submit(context.Background(), 2)
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	_, err = m.Open(Standard(0, "integer", nil))
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	close(gate)
	<-done
	assert.Equal(t, Viewing, m.State())
}

func TestLifecycle_FailureStaysEditing(t *testing.T) {
	m := New(Config{
		AutoSave: true,
		OnSubmit: func(ctx context.Context, value any) (bool, error) {
			return false, errors.New("validation failed")
		},
	})
	_, err := m.Open(Standard("x", "string", nil))
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), "y")
	assert.EqualError(t, err, "validation failed")

	v := m.View()
	assert.Equal(t, Editing, v.State)
	assert.True(t, v.HasError)
	assert.Equal(t, "validation failed", v.ErrorMessage)
	assert.True(t, v.Listening, "autosave listeners are registered again")
}

func TestLifecycle_NotClosedAndSuperseded(t *testing.T) {
	results := []error{nil, remote.ErrSuperseded}
	calls := 0
	m := New(Config{
		OnSubmit: func(ctx context.Context, value any) (bool, error) {
			err := results[calls]
			calls++
			return false, err
		},
	})
	_, err := m.Open(Standard("x", "string", nil))
	require.NoError(t, err)

	closed, err := m.Submit(context.Background(), "y")
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Equal(t, Editing, m.State())

	closed, err = m.Submit(context.Background(), "z")
	require.NoError(t, err, "superseded results are not errors")
	assert.False(t, closed)
	assert.False(t, m.View().HasError)
	assert.Equal(t, Editing, m.State())
}

func TestLifecycle_PanicInSubmitIsAnError(t *testing.T) {
	m := New(Config{
		OnSubmit: func(ctx context.Context, value any) (bool, error) { panic("kaput") },
	})
	_, err := m.Open(Standard("x", "string", nil))
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), "y")
	assert.EqualError(t, err, "kaput")
	assert.Equal(t, Editing, m.State())
}

func TestAutoSave_OutsideClickSubmitsExactlyOnce(t *testing.T) {
	var submits atomic.Int32
	gate := make(chan struct{})
	m := New(Config{
		AutoSave: true,
		OnSubmit: func(ctx context.Context, value any) (bool, error) {
			submits.Add(1)
			<-gate
			return true, nil
		},
	})
	_, err := m.Open(Standard("x", "string", nil))
	require.NoError(t, err)
	require.True(t, m.View().Listening)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Dispatch(context.Background(), OutsideClick))
		}()
	}
	require.Eventually(t, func() bool { return submits.Load() == 1 }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), submits.Load())
	assert.Equal(t, Viewing, m.State())

	require.NoError(t, m.Dispatch(context.Background(), OutsideClick))
	assert.Equal(t, int32(1), submits.Load(), "listeners are gone after the submit")
}

func TestAutoSave_Keys(t *testing.T) {
	var submitted []any
	newMachine := func() *Machine {
		return New(Config{
			AutoSave: true,
			OnSubmit: func(ctx context.Context, value any) (bool, error) {
				submitted = append(submitted, value)
				return true, nil
			},
		})
	}

	t.Run("enter submits the edited value", func(t *testing.T) {
		m := newMachine()
		_, err := m.Open(Standard("a", "string", nil))
		require.NoError(t, err)
		_, err = m.ChangeValue("b")
		require.NoError(t, err)

		require.NoError(t, m.Dispatch(context.Background(), KeyEnter))
		assert.Equal(t, []any{"b"}, submitted)
		assert.Equal(t, Viewing, m.State())
	})

	t.Run("enter is ignored by textarea", func(t *testing.T) {
		m := newMachine()
		_, err := m.Open(Standard("a", "textarea", nil))
		require.NoError(t, err)

		require.NoError(t, m.Dispatch(context.Background(), KeyEnter))
		assert.Equal(t, Editing, m.State())
	})

	t.Run("escape cancels", func(t *testing.T) {
		m := newMachine()
		_, err := m.Open(Standard("a", "string", nil))
		require.NoError(t, err)

		require.NoError(t, m.Dispatch(context.Background(), KeyEscape))
		v := m.View()
		assert.Equal(t, Viewing, v.State)
		assert.False(t, v.Listening)
		assert.False(t, v.PendingVisual)
	})

	t.Run("events without listeners are ignored", func(t *testing.T) {
		m := New(Config{})
		_, err := m.Open(Standard("a", "string", nil))
		require.NoError(t, err)
		require.NoError(t, m.Dispatch(context.Background(), KeyEscape))
		assert.Equal(t, Editing, m.State())
	})
}

func TestOpen_CallbackCustomizesOrDeclines(t *testing.T) {
	m := New(Config{
		OnOpen: func(std Editor) (Editor, bool) {
			std.Type = "picklist"
			std.Option = map[string]any{"options": []string{"a", "b"}}
			return std, true
		},
	})
	_, err := m.Open(Standard("a", "string", nil))
	require.NoError(t, err)
	v := m.View()
	assert.Equal(t, "picklist", v.Editor.Type)
	assert.Equal(t, "a", v.Editor.Edited)
	assert.False(t, v.Editor.TypeFlags["is_input"])

	declining := New(Config{OnOpen: func(std Editor) (Editor, bool) { return std, false }})
	opened, err := declining.Open(Standard("a", "string", nil))
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, Viewing, declining.State())
}

func TestChangeValue_HistoryAndPrevent(t *testing.T) {
	m := New(Config{
		OnChange: func(ed Editor, prevent func()) {
			if ed.Edited == "forbidden" {
				prevent()
			}
		},
	})
	_, err := m.Open(Standard("orig", "string", nil))
	require.NoError(t, err)

	v, err := m.ChangeValue("one")
	require.NoError(t, err)
	assert.Equal(t, "one", v)
	assert.False(t, m.View().NotChanged)

	v, err = m.ChangeValue("forbidden")
	require.NoError(t, err)
	assert.Equal(t, "one", v, "prevent restores the previous value")
	assert.Equal(t, []any{"one", "forbidden"}, m.View().Editor.History)

	v, err = m.ChangeValue("orig")
	require.NoError(t, err)
	assert.Equal(t, "orig", v)
	assert.True(t, m.View().NotChanged)
	assert.Len(t, m.View().Editor.History, 2)
}

func TestPendingVisual(t *testing.T) {
	m := New(Config{
		PendingVisualDelay: 20 * time.Millisecond,
		OnSubmit:           func(ctx context.Context, value any) (bool, error) { return true, nil },
	})
	_, err := m.Open(Standard("a", "string", nil))
	require.NoError(t, err)
	assert.False(t, m.View().PendingVisual)

	_, err = m.Submit(context.Background(), "b")
	require.NoError(t, err)
	assert.True(t, m.View().PendingVisual)
	assert.Eventually(t, func() bool { return !m.View().PendingVisual }, time.Second, 5*time.Millisecond)
}

func TestSync_AlwaysEditing(t *testing.T) {
	ticker := &testutil.ManualTicker{}
	m := New(Config{Ticker: ticker})
	std := Standard("a", "string", nil)

	require.NoError(t, m.Sync(true, std))
	assert.Equal(t, Editing, m.State(), "flag forces immediate entry")

	require.NoError(t, m.Sync(true, std))
	assert.Equal(t, 0, ticker.Pending())

	require.NoError(t, m.Sync(false, std))
	assert.Equal(t, Editing, m.State(), "exit waits for the next tick")
	require.NoError(t, m.Sync(false, std))
	assert.Equal(t, 1, ticker.Pending(), "exit is queued once")

	assert.Equal(t, 1, ticker.Flush())
	assert.Equal(t, Viewing, m.State())

	t.Run("flag back on before the tick keeps editing", func(t *testing.T) {
		require.NoError(t, m.Sync(true, std))
		require.NoError(t, m.Sync(false, std))
		require.NoError(t, m.Sync(true, std))
		ticker.Flush()
		assert.Equal(t, Editing, m.State())
	})
}
