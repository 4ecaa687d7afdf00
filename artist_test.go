// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbatch_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vbatch"
	"github.com/gogpu/vbatch/backend"
	"github.com/gogpu/vbatch/vbo"
)

// storeKind builds an Artist over one backend so every property runs
// against host memory and device copies alike.
type storeKind struct {
	name      string
	newArtist func(t *testing.T, spec vbatch.SpecID, opts ...vbatch.ArtistOption) *vbatch.Artist
}

var storeKinds = []storeKind{
	{
		name: "host",
		newArtist: func(t *testing.T, spec vbatch.SpecID, opts ...vbatch.ArtistOption) *vbatch.Artist {
			a, err := vbatch.NewArtist(spec, stride, opts...)
			require.NoError(t, err)
			return a
		},
	},
	{
		name: "device",
		newArtist: func(t *testing.T, spec vbatch.SpecID, opts ...vbatch.ArtistOption) *vbatch.Artist {
			dev := backend.NewSoftwareAdapter(1 << 20)
			buf, err := vbo.New(dev, spec, stride)
			require.NoError(t, err)
			t.Cleanup(buf.Destroy)
			a, err := vbatch.NewArtist(spec, stride, append(opts, vbatch.WithStore(buf))...)
			require.NoError(t, err)
			return a
		},
	},
}

func forEachStore(t *testing.T, fn func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist)) {
	for _, k := range storeKinds {
		t.Run(k.name, func(t *testing.T) {
			fn(t, func(spec vbatch.SpecID, opts ...vbatch.ArtistOption) *vbatch.Artist {
				return k.newArtist(t, spec, opts...)
			})
		})
	}
}

// contents returns the Artist's store bytes, reading back from the device
// when needed.
func contents(t *testing.T, a *vbatch.Artist) []byte {
	t.Helper()
	if vd, ok := a.Data(); ok {
		return append([]byte(nil), vd.Bytes()...)
	}
	buf, ok := a.Store().(*vbo.Buffer)
	require.True(t, ok, "unexpected store %T", a.Store())
	v, err := buf.Read()
	require.NoError(t, err)
	return v.Bytes()
}

// checkInvariants asserts the registry tiles the store exactly.
func checkInvariants(t *testing.T, a *vbatch.Artist) {
	t.Helper()
	require.NoError(t, a.Validate())

	sum, next := 0, 0
	for _, r := range a.Ranges() {
		assert.Equal(t, next, r.Offset, "ranges must be gap-free in insertion order")
		next = r.End()
		sum += r.Count
	}
	assert.Equal(t, a.Count(), sum, "record counts must sum to the store count")
}

func TestArtistOffsets(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)

		ha, err := a.Insert(tagged(t, 1, 'a', 'a'))
		require.NoError(t, err)
		hb, err := a.Insert(tagged(t, 1, 'b', 'b', 'b'))
		require.NoError(t, err)
		hc, err := a.Insert(tagged(t, 1, 'c', 'c', 'c', 'c'))
		require.NoError(t, err)
		checkInvariants(t, a)

		ra, _ := a.Find(ha)
		rb, _ := a.Find(hb)
		rc, _ := a.Find(hc)
		assert.Equal(t, vbatch.Range{Offset: 0, Count: 2}, ra)
		assert.Equal(t, vbatch.Range{Offset: 2, Count: 3}, rb)
		assert.Equal(t, vbatch.Range{Offset: 5, Count: 4}, rc)
		assert.Equal(t, 9, a.Count())

		require.NoError(t, a.Remove(hb))
		checkInvariants(t, a)

		ra, _ = a.Find(ha)
		rc, _ = a.Find(hc)
		assert.Equal(t, 0, ra.Offset, "records before the removed one keep their offset")
		assert.Equal(t, 2, rc.Offset, "records after the removed one shift left by its count")
		assert.False(t, a.Contains(hb))
		assert.Equal(t, 6, a.Count())
		assert.Equal(t, []byte("aacccc"), tags(contents(t, a)))
	})
}

func TestArtistRemoveIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)
		h, err := a.Insert(tagged(t, 1, 1, 2))
		require.NoError(t, err)
		_, err = a.Insert(tagged(t, 1, 3))
		require.NoError(t, err)

		require.NoError(t, a.Remove(h))
		assert.False(t, a.Contains(h))
		after := contents(t, a)
		stats := a.Stats()

		require.NoError(t, a.Remove(h))
		assert.False(t, a.Contains(h))
		assert.Equal(t, after, contents(t, a))
		assert.Equal(t, stats, a.Stats(), "a redundant remove must not count")
		checkInvariants(t, a)

		require.NoError(t, a.Remove(vbatch.Handle(12345)), "unknown handles are tolerated")
	})
}

func TestArtistInsertRemoveRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)
		_, err := a.Insert(tagged(t, 1, 1, 2, 3))
		require.NoError(t, err)
		mid, err := a.Insert(tagged(t, 1, 4))
		require.NoError(t, err)
		_, err = a.Insert(tagged(t, 1, 5, 6))
		require.NoError(t, err)
		require.NoError(t, a.Remove(mid))

		count, data := a.Count(), contents(t, a)

		h, err := a.Insert(tagged(t, 1, 7, 7, 7, 7))
		require.NoError(t, err)
		require.NoError(t, a.Remove(h))

		assert.Equal(t, count, a.Count())
		assert.Equal(t, data, contents(t, a))
		checkInvariants(t, a)
	})
}

func TestArtistCrossSpecRejection(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)
		_, err := a.Insert(tagged(t, 1, 1, 2))
		require.NoError(t, err)
		require.NoError(t, a.Draw())

		ranges, data, stats := a.Ranges(), contents(t, a), a.Stats()

		h, err := a.Insert(tagged(t, 2, 9, 9, 9))
		var mismatch *vbatch.SpecMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.ErrorIs(t, err, vbatch.ErrSpecMismatch)
		assert.Equal(t, vbatch.SpecID(1), mismatch.Want)
		assert.Equal(t, vbatch.SpecID(2), mismatch.Got)
		assert.Equal(t, vbatch.InvalidHandle, h)

		assert.Equal(t, ranges, a.Ranges())
		assert.Equal(t, data, contents(t, a))
		assert.Equal(t, stats, a.Stats())
		assert.False(t, a.Dirty(), "a rejected insert must not dirty the Artist")
		assert.False(t, a.CanInsert(tagged(t, 2, 1)))

		_, err = a.Insert(nil)
		assert.ErrorIs(t, err, vbatch.ErrSpecMismatch)
	})
}

func TestArtistDrawStaging(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		calls := 0
		a := newArtist(1, vbatch.WithResync(func(vbatch.Store) error {
			calls++
			return nil
		}))

		assert.False(t, a.Dirty())
		require.NoError(t, a.Draw())
		assert.Equal(t, 0, calls, "a clean Artist must not resync")

		h, err := a.Insert(tagged(t, 1, 1))
		require.NoError(t, err)
		assert.True(t, a.Dirty())
		require.NoError(t, a.Draw())
		assert.False(t, a.Dirty())
		assert.Equal(t, 1, calls)

		require.NoError(t, a.Draw())
		assert.Equal(t, 1, calls, "a second Draw without mutation must not resync")

		require.NoError(t, a.Remove(h))
		assert.True(t, a.Dirty())
		require.NoError(t, a.Draw())
		assert.Equal(t, 2, calls)
		assert.Equal(t, uint64(2), a.Stats().Resyncs)
	})
}

func TestArtistDrawFailureStaysDirty(t *testing.T) {
	fail := errors.New("upload failed")
	calls := 0
	a, err := vbatch.NewArtist(1, stride, vbatch.WithLabel("quads"), vbatch.WithResync(func(vbatch.Store) error {
		calls++
		if calls == 1 {
			return fail
		}
		return nil
	}))
	require.NoError(t, err)

	_, err = a.Insert(tagged(t, 1, 1))
	require.NoError(t, err)

	err = a.Draw()
	require.ErrorIs(t, err, fail)
	assert.Contains(t, err.Error(), "quads")
	assert.True(t, a.Dirty(), "a failed resync must be retried")

	require.NoError(t, a.Draw())
	assert.False(t, a.Dirty())
	assert.Equal(t, 2, calls)
}

func TestArtistUpdate(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)
		ha, err := a.Insert(tagged(t, 1, 'a', 'a'))
		require.NoError(t, err)
		hb, err := a.Insert(tagged(t, 1, 'b'))
		require.NoError(t, err)
		require.NoError(t, a.Draw())

		// Same count: overwritten in place.
		require.NoError(t, a.Update(ha, tagged(t, 1, 'x', 'y')))
		ra, _ := a.Find(ha)
		assert.Equal(t, vbatch.Range{Offset: 0, Count: 2}, ra)
		assert.Equal(t, []byte("xyb"), tags(contents(t, a)))
		assert.True(t, a.Dirty())

		// Different count: moves to the end under the same handle.
		require.NoError(t, a.Update(ha, tagged(t, 1, 'z', 'z', 'z')))
		ra, _ = a.Find(ha)
		rb, _ := a.Find(hb)
		assert.Equal(t, vbatch.Range{Offset: 1, Count: 3}, ra)
		assert.Equal(t, vbatch.Range{Offset: 0, Count: 1}, rb)
		assert.Equal(t, []byte("bzzz"), tags(contents(t, a)))
		checkInvariants(t, a)
		assert.Equal(t, uint64(2), a.Stats().Updates)

		assert.ErrorIs(t, a.Update(vbatch.Handle(999), tagged(t, 1, 1)), vbatch.ErrUnknownOwner)
		assert.ErrorIs(t, a.Update(hb, tagged(t, 2, 1)), vbatch.ErrSpecMismatch)
	})
}

func TestArtistInsertOwner(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)
		h, err := a.Insert(tagged(t, 1, 1))
		require.NoError(t, err)

		assert.ErrorIs(t, a.InsertOwner(h, tagged(t, 1, 2)), vbatch.ErrDuplicateOwner)
		assert.ErrorIs(t, a.InsertOwner(vbatch.InvalidHandle, tagged(t, 1, 2)), vbatch.ErrUnknownOwner)

		// Hide and show again under the same identity.
		require.NoError(t, a.Remove(h))
		require.NoError(t, a.InsertOwner(h, tagged(t, 1, 3, 3)))
		assert.True(t, a.Contains(h))

		// Minted handles never collide with caller-chosen ones.
		require.NoError(t, a.InsertOwner(vbatch.Handle(50), tagged(t, 1, 4)))
		next, err := a.Insert(tagged(t, 1, 5))
		require.NoError(t, err)
		assert.Greater(t, next, vbatch.Handle(50))
		checkInvariants(t, a)
	})
}

func TestArtistHandlesExhausted(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)
		top := vbatch.Handle(math.MaxUint64)
		require.NoError(t, a.InsertOwner(top, tagged(t, 1, 1)))

		h, err := a.Insert(tagged(t, 1, 2))
		assert.ErrorIs(t, err, vbatch.ErrHandlesExhausted)
		assert.Equal(t, vbatch.InvalidHandle, h)
		assert.False(t, a.Contains(vbatch.InvalidHandle))
		assert.Equal(t, 1, a.Len())

		// Removed handles can still be reused explicitly.
		require.NoError(t, a.Remove(top))
		require.NoError(t, a.InsertOwner(top, tagged(t, 1, 3)))
		assert.ErrorIs(t, a.InsertOwner(top, tagged(t, 1, 4)), vbatch.ErrDuplicateOwner)
		checkInvariants(t, a)
		assert.Equal(t, []byte{3}, tags(contents(t, a)))
	})
}

func TestArtistRejectsStrideMismatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)
		h, err := a.Insert(tagged(t, 1, 1, 2))
		require.NoError(t, err)
		data := contents(t, a)

		// Two records at half the stride.
		short, err := vbatch.NewVertexDataFrom(1, stride/2, make([]byte, stride))
		require.NoError(t, err)

		_, err = a.Insert(short)
		assert.ErrorIs(t, err, vbatch.ErrInvalidStride)
		assert.ErrorIs(t, a.Update(h, short), vbatch.ErrInvalidStride)

		assert.True(t, a.Contains(h), "a rejected update must keep the owner")
		assert.Equal(t, data, contents(t, a))
		checkInvariants(t, a)
	})
}

func TestNewArtistRejectsStoreStride(t *testing.T) {
	buf, err := vbo.New(backend.NewSoftwareAdapter(1<<20), 1, 2*stride)
	require.NoError(t, err)
	t.Cleanup(buf.Destroy)

	_, err = vbatch.NewArtist(1, stride, vbatch.WithStore(buf))
	assert.ErrorIs(t, err, vbatch.ErrInvalidStride)
}

func TestArtistClear(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)
		for i := 0; i < 5; i++ {
			_, err := a.Insert(tagged(t, 1, byte(i), byte(i)))
			require.NoError(t, err)
		}
		require.NoError(t, a.Clear())
		assert.Equal(t, 0, a.Len())
		assert.Equal(t, 0, a.Count())
		assert.Equal(t, uint64(0), a.Stats().BytesMoved, "clearing from the back moves nothing")
		checkInvariants(t, a)
	})
}

func TestArtistStats(t *testing.T) {
	a, err := vbatch.NewArtist(1, stride)
	require.NoError(t, err)
	ha, _ := a.Insert(tagged(t, 1, 1, 1))
	_, _ = a.Insert(tagged(t, 1, 2, 2, 2))
	require.NoError(t, a.Remove(ha))

	s := a.Stats()
	assert.Equal(t, 1, s.Owners)
	assert.Equal(t, 3, s.Records)
	assert.Equal(t, 3*stride, s.Bytes)
	assert.Equal(t, uint64(2), s.Inserts)
	assert.Equal(t, uint64(1), s.Removes)
	assert.Equal(t, uint64(3*stride), s.BytesMoved)
	assert.Equal(t, 3*stride, a.Size())
}

// TestArtistRandomOps checks the invariants and every owner's bytes after
// each step of a seeded random insert/remove/update sequence.
func TestArtistRandomOps(t *testing.T) {
	forEachStore(t, func(t *testing.T, newArtist func(vbatch.SpecID, ...vbatch.ArtistOption) *vbatch.Artist) {
		a := newArtist(1)
		rng := rand.New(rand.NewPCG(1, 2))
		model := make(map[vbatch.Handle][]byte) // owner -> record tags
		var live []vbatch.Handle
		tag := byte(0)

		payload := func() []byte {
			n := 1 + rng.IntN(5)
			out := make([]byte, n)
			for i := range out {
				tag++
				out[i] = tag
			}
			return out
		}

		for step := 0; step < 300; step++ {
			switch op := rng.IntN(10); {
			case op < 5 || len(live) == 0:
				p := payload()
				h, err := a.Insert(tagged(t, 1, p...))
				require.NoError(t, err)
				model[h] = p
				live = append(live, h)
			case op < 8:
				i := rng.IntN(len(live))
				require.NoError(t, a.Remove(live[i]))
				delete(model, live[i])
				live = append(live[:i], live[i+1:]...)
			default:
				h := live[rng.IntN(len(live))]
				p := payload()
				require.NoError(t, a.Update(h, tagged(t, 1, p...)))
				model[h] = p
			}

			checkInvariants(t, a)
			require.Equal(t, len(model), a.Len())

			got := tags(contents(t, a))
			for _, r := range a.Ranges() {
				require.Equal(t, model[r.Owner], got[r.Offset:r.End()], "step %d owner %v", step, r.Owner)
			}
		}
	})
}
