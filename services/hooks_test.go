package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHooksRunAllHandlersAndJoinErrors(t *testing.T) {
	h := NewHooks()
	var order []int
	h.AddAction("x", func(context.Context, Event) error { order = append(order, 1); return errors.New("first") })
	h.AddAction("x", func(context.Context, Event) error { order = append(order, 2); return nil })
	h.AddAction("x", func(context.Context, Event) error { order = append(order, 3); return errors.New("third") })

	err := h.DoAction(context.Background(), Event{Name: "x"})
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.ErrorContains(t, err, "first")
	assert.ErrorContains(t, err, "third")

	assert.NoError(t, h.DoAction(context.Background(), Event{Name: "unregistered"}))
}

func TestHooksFiltersChain(t *testing.T) {
	h := NewHooks()
	h.AddFilter("f", func(v []string) []string { return append(v, "a") })
	h.AddFilter("f", func(v []string) []string { return append(v, "b") })

	assert.Equal(t, []string{"a", "b"}, h.ApplyFilters("f", nil))
	assert.True(t, h.HasFilter("f"))
	assert.False(t, h.HasAction("f"))
}

func TestNilHooksAreInert(t *testing.T) {
	var h *Hooks
	assert.NoError(t, h.DoAction(context.Background(), Event{Name: "x"}))
	assert.Equal(t, []string{"v"}, h.ApplyFilters("f", []string{"v"}))
	assert.False(t, h.HasAction("x"))
	assert.False(t, h.HasFilter("f"))
}

func TestPersistentContextIgnoresCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	detached := PersistentContext(ctx)
	cancel()
	assert.NoError(t, detached.Err())
}
