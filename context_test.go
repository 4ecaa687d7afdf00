// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbatch_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vbatch"
)

func TestContextRoutesBySpec(t *testing.T) {
	ctx := vbatch.NewContext()
	quads, lines := ctx.NewSpec(), ctx.NewSpec()
	require.NotEqual(t, quads, lines)

	qa, err := ctx.Attach(quads, stride, vbatch.WithLabel("quads"))
	require.NoError(t, err)
	la, err := ctx.Attach(lines, stride, vbatch.WithLabel("lines"))
	require.NoError(t, err)

	tq, err := ctx.Insert(tagged(t, quads, 1, 1, 1))
	require.NoError(t, err)
	tl, err := ctx.Insert(tagged(t, lines, 2))
	require.NoError(t, err)

	assert.True(t, tq.Valid())
	assert.Equal(t, quads, tq.Spec)
	assert.Equal(t, lines, tl.Spec)
	assert.Equal(t, 3, qa.Count())
	assert.Equal(t, 1, la.Count())
	assert.True(t, ctx.Contains(tq))
	assert.True(t, ctx.Contains(tl))

	got, ok := ctx.Artist(quads)
	require.True(t, ok)
	assert.Same(t, qa, got)
	assert.Equal(t, []*vbatch.Artist{qa, la}, ctx.Artists())

	require.NoError(t, ctx.Update(tl, tagged(t, lines, 3, 3)))
	assert.Equal(t, 2, la.Count())

	require.NoError(t, ctx.Remove(tq))
	assert.False(t, ctx.Contains(tq))
	assert.Equal(t, 0, qa.Count())

	stats := ctx.Stats()
	assert.Len(t, stats, 2)
	assert.Equal(t, 2, stats[lines].Records)
}

func TestContextInsertWithoutArtist(t *testing.T) {
	ctx := vbatch.NewContext()
	spec := ctx.NewSpec()

	tk, err := ctx.Insert(tagged(t, spec, 1))
	assert.ErrorIs(t, err, vbatch.ErrNoArtist)
	assert.False(t, tk.Valid())

	_, err = ctx.Insert(nil)
	assert.ErrorIs(t, err, vbatch.ErrNoArtist)

	err = ctx.Update(vbatch.Ticket{Spec: spec, Handle: 1}, tagged(t, spec, 1))
	assert.ErrorIs(t, err, vbatch.ErrNoArtist)
}

func TestContextAttachDuplicate(t *testing.T) {
	ctx := vbatch.NewContext()
	spec := ctx.NewSpec()
	_, err := ctx.Attach(spec, stride)
	require.NoError(t, err)

	_, err = ctx.Attach(spec, stride)
	assert.ErrorIs(t, err, vbatch.ErrDuplicateSpec)

	_, err = ctx.Attach(vbatch.InvalidSpec, stride)
	assert.ErrorIs(t, err, vbatch.ErrInvalidSpec)
	assert.Len(t, ctx.Artists(), 1, "a failed attach must not register anything")
}

func TestContextDetach(t *testing.T) {
	ctx := vbatch.NewContext()
	a, b := ctx.NewSpec(), ctx.NewSpec()
	artA, err := ctx.Attach(a, stride)
	require.NoError(t, err)
	_, err = ctx.Attach(b, stride)
	require.NoError(t, err)

	tk, err := ctx.Insert(tagged(t, a, 1))
	require.NoError(t, err)

	got, ok := ctx.Detach(a)
	require.True(t, ok)
	assert.Same(t, artA, got)
	assert.Len(t, ctx.Artists(), 1)

	_, ok = ctx.Detach(a)
	assert.False(t, ok)

	// Removing through a ticket whose Artist is gone is a no-op.
	assert.NoError(t, ctx.Remove(tk))
	assert.False(t, ctx.Contains(tk))

	// The spec can be attached again.
	_, err = ctx.Attach(a, stride)
	assert.NoError(t, err)
}

func TestContextRemoveUnknown(t *testing.T) {
	ctx := vbatch.NewContext()
	spec := ctx.NewSpec()
	art, err := ctx.Attach(spec, stride)
	require.NoError(t, err)

	tk, err := ctx.Insert(tagged(t, spec, 1, 2))
	require.NoError(t, err)
	require.NoError(t, ctx.Remove(tk))
	require.NoError(t, ctx.Remove(tk))
	assert.NoError(t, ctx.Remove(vbatch.Ticket{Spec: ctx.NewSpec(), Handle: 7}))
	assert.Equal(t, uint64(1), art.Stats().Removes)
}

func TestContextDrawJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	var order []string

	ctx := vbatch.NewContext()
	hook := func(name string, err error) vbatch.ResyncFunc {
		return func(vbatch.Store) error {
			order = append(order, name)
			return err
		}
	}

	specs := []vbatch.SpecID{ctx.NewSpec(), ctx.NewSpec(), ctx.NewSpec()}
	_, err := ctx.Attach(specs[0], stride, vbatch.WithResync(hook("a", errA)))
	require.NoError(t, err)
	b, err := ctx.Attach(specs[1], stride, vbatch.WithResync(hook("b", nil)))
	require.NoError(t, err)
	_, err = ctx.Attach(specs[2], stride, vbatch.WithResync(hook("c", errC)))
	require.NoError(t, err)

	for _, s := range specs {
		_, err := ctx.Insert(tagged(t, s, 1))
		require.NoError(t, err)
	}

	err = ctx.Draw()
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	assert.Equal(t, []string{"a", "b", "c"}, order, "every Artist runs in attach order")
	assert.False(t, b.Dirty())

	// Only the failed Artists are still dirty.
	order = nil
	_ = ctx.Draw()
	assert.Equal(t, []string{"a", "c"}, order)
}

func TestContextSharedSpecAllocator(t *testing.T) {
	specs := vbatch.NewSpecAllocator()
	c1 := vbatch.NewContext(vbatch.WithSpecAllocator(specs))
	c2 := vbatch.NewContext(vbatch.WithSpecAllocator(specs))

	assert.Same(t, specs, c1.Specs())
	s1, s2 := c1.NewSpec(), c2.NewSpec()
	assert.NotEqual(t, s1, s2)
	assert.Equal(t, s2, specs.Last())

	// Separate allocators mint overlapping IDs.
	c3 := vbatch.NewContext()
	assert.Equal(t, vbatch.SpecID(1), c3.NewSpec())
}
