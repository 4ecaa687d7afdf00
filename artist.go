// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbatch

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
)

// Handle names an owner registered with an Artist. Handles are minted by
// Insert and never reused by the same Artist. The zero Handle is invalid.
type Handle uint64

// InvalidHandle is the zero Handle.
const InvalidHandle Handle = 0

// String returns the string representation of the Handle.
func (h Handle) String() string {
	return "owner(" + strconv.FormatUint(uint64(h), 10) + ")"
}

// Range is a run of records inside an Artist's store.
type Range struct {
	// Offset is the index of the first record.
	Offset int
	// Count is the number of records.
	Count int
}

// End returns the index one past the last record.
func (r Range) End() int { return r.Offset + r.Count }

// OwnerRange pairs an owner with its current range.
type OwnerRange struct {
	Owner Handle
	Range
}

// Stats holds Artist counters.
type Stats struct {
	Owners  int // registered owners
	Records int // records in the store
	Bytes   int // Records * stride

	Inserts    uint64 // successful inserts
	Removes    uint64 // removes that found their owner
	Updates    uint64 // successful updates
	Resyncs    uint64 // dirty draws that completed
	BytesMoved uint64 // suffix bytes shifted by compaction
}

// art is the registry entry for one owner.
type art struct {
	owner  Handle
	offset int
	count  int
}

// Artist batches many owners' records into one Store so a single draw call
// renders them all.
//
// Records are always appended at the end; removing an owner erases its range
// and shifts every later owner left by the removed count, so the store stays
// gap-free and the registry, kept in insertion order, tiles [0, Count())
// exactly:
//
//	insert A(2) B(3) C(4)   ->  A@0 B@2 C@5
//	remove B                ->  A@0 C@2
//
// Draw runs the resync hook only when a mutation happened since the last
// successful Draw.
//
// Artist is NOT safe for concurrent use. It is owned by the goroutine that
// drives its rendering context.
type Artist struct {
	spec   SpecID
	stride int
	label  string

	store   Store
	records []art          // insertion order == offset order
	index   map[Handle]int // owner -> position in records
	last    Handle

	dirty  bool
	resync ResyncFunc
	log    *slog.Logger

	stats Stats
}

// NewArtist creates an Artist for records of stride bytes bound to spec.
func NewArtist(spec SpecID, stride int, opts ...ArtistOption) (*Artist, error) {
	if !spec.Valid() {
		return nil, ErrInvalidSpec
	}
	if stride <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStride, stride)
	}

	o := defaultArtistOptions()
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		store = NewVertexData(spec, stride, 0)
	}
	if s, ok := store.(interface{ Spec() SpecID }); ok && s.Spec() != spec {
		return nil, &SpecMismatchError{Want: spec, Got: s.Spec()}
	}
	if s, ok := store.(interface{ Stride() int }); ok && s.Stride() != stride {
		return nil, fmt.Errorf("%w: store stride %d, artist stride %d", ErrInvalidStride, s.Stride(), stride)
	}
	if store.Count() != 0 {
		return nil, fmt.Errorf("vbatch: store must be empty, has %d records", store.Count())
	}

	label := o.label
	if label == "" {
		label = spec.String()
	}

	return &Artist{
		spec:   spec,
		stride: stride,
		label:  label,
		store:  store,
		index:  make(map[Handle]int),
		resync: o.resync,
		log:    o.logger,
	}, nil
}

// Spec returns the SpecID the Artist accepts.
func (a *Artist) Spec() SpecID { return a.spec }

// Stride returns the record size in bytes.
func (a *Artist) Stride() int { return a.stride }

// Label returns the debug label.
func (a *Artist) Label() string { return a.label }

// Store returns the backing store.
func (a *Artist) Store() Store { return a.store }

// Data returns the host buffer when the Artist is host-backed.
func (a *Artist) Data() (*VertexData, bool) {
	vd, ok := a.store.(*VertexData)
	return vd, ok
}

// Count returns the total number of records across all owners.
func (a *Artist) Count() int { return a.store.Count() }

// Size returns the total size of all records in bytes.
func (a *Artist) Size() int { return a.store.Count() * a.stride }

// Len returns the number of registered owners.
func (a *Artist) Len() int { return len(a.records) }

// Dirty reports whether a resync is owed.
func (a *Artist) Dirty() bool { return a.dirty }

// CanInsert reports whether v is bound to the Artist's spec.
func (a *Artist) CanInsert(v *VertexData) bool {
	return v != nil && v.Spec() == a.spec
}

// Insert registers a new owner whose records are v's, appended at the end
// of the store. It returns the handle naming the owner.
//
// A payload bound to another spec is rejected with ErrSpecMismatch before
// any state is touched. Once the largest handle has been used, Insert
// returns ErrHandlesExhausted; InsertOwner can still reuse removed handles.
func (a *Artist) Insert(v *VertexData) (Handle, error) {
	if a.last == math.MaxUint64 {
		return InvalidHandle, fmt.Errorf("%w: %s", ErrHandlesExhausted, a.label)
	}
	h := a.last + 1
	if err := a.insert(h, v); err != nil {
		return InvalidHandle, err
	}
	return h, nil
}

// InsertOwner is Insert for a caller-chosen handle, typically one previously
// returned by Insert and since removed, so an owner keeps its identity across
// hide/show cycles. Returns ErrDuplicateOwner if h is registered.
func (a *Artist) InsertOwner(h Handle, v *VertexData) error {
	if h == InvalidHandle {
		return fmt.Errorf("%w: %v", ErrUnknownOwner, h)
	}
	return a.insert(h, v)
}

func (a *Artist) insert(h Handle, v *VertexData) error {
	if v == nil {
		return fmt.Errorf("%w: nil vertex data", ErrSpecMismatch)
	}
	if !a.CanInsert(v) {
		return &SpecMismatchError{Want: a.spec, Got: v.Spec()}
	}
	if _, ok := a.index[h]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateOwner, h)
	}
	if err := a.checkData(v); err != nil {
		return err
	}

	offset := a.store.Count()
	if err := a.store.Append(v); err != nil {
		return fmt.Errorf("vbatch: %s: append %v: %w", a.label, h, err)
	}

	a.index[h] = len(a.records)
	a.records = append(a.records, art{owner: h, offset: offset, count: v.Count()})
	if h > a.last {
		a.last = h
	}
	a.dirty = true
	a.stats.Inserts++

	a.logger().Debug("vbatch: insert",
		"artist", a.label, "owner", h, "offset", offset, "count", v.Count())
	return nil
}

// Remove deregisters an owner and compacts the store: its range is erased
// and every owner after it shifts left by the removed count.
//
// Removing an owner that is not registered is a no-op, so Remove is
// idempotent. The redundant call is logged at debug level because it may
// hide a double deregistration in the caller.
func (a *Artist) Remove(h Handle) error {
	i, ok := a.index[h]
	if !ok {
		a.logger().Debug("vbatch: remove of unregistered owner", "artist", a.label, "owner", h)
		return nil
	}
	r := a.records[i]

	moved := (a.store.Count() - (r.offset + r.count)) * a.stride
	if err := a.store.Erase(r.offset, a.stride, r.count); err != nil {
		if errors.Is(err, ErrOutOfRange) {
			return fmt.Errorf("%w: %s: %w", ErrStoreCorrupt, a.label, err)
		}
		return fmt.Errorf("vbatch: %s: erase %v: %w", a.label, h, err)
	}

	a.records = append(a.records[:i], a.records[i+1:]...)
	delete(a.index, h)
	for j := i; j < len(a.records); j++ {
		rec := &a.records[j]
		if rec.offset > r.offset {
			rec.offset -= r.count
		}
		a.index[rec.owner] = j
	}

	a.dirty = true
	a.stats.Removes++
	if moved > 0 {
		a.stats.BytesMoved += uint64(moved)
	}

	a.logger().Debug("vbatch: remove",
		"artist", a.label, "owner", h, "offset", r.offset, "count", r.count, "moved", moved)
	return nil
}

// Update replaces an owner's records with v. When v has the same record
// count the range is overwritten in place; otherwise the owner is removed
// and re-appended, keeping its handle but moving to the end.
func (a *Artist) Update(h Handle, v *VertexData) error {
	i, ok := a.index[h]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownOwner, h)
	}
	if !a.CanInsert(v) {
		if v == nil {
			return fmt.Errorf("%w: nil vertex data", ErrSpecMismatch)
		}
		return &SpecMismatchError{Want: a.spec, Got: v.Spec()}
	}
	if err := a.checkData(v); err != nil {
		return err
	}

	r := a.records[i]
	if r.count != v.Count() {
		if err := a.Remove(h); err != nil {
			return err
		}
		if err := a.insert(h, v); err != nil {
			return err
		}
		a.stats.Updates++
		return nil
	}

	if err := a.store.Replace(r.offset, a.stride, v); err != nil {
		if errors.Is(err, ErrOutOfRange) {
			return fmt.Errorf("%w: %s: %w", ErrStoreCorrupt, a.label, err)
		}
		return fmt.Errorf("vbatch: %s: replace %v: %w", a.label, h, err)
	}
	a.dirty = true
	a.stats.Updates++
	return nil
}

// Clear removes every owner, last first so nothing has to shift.
func (a *Artist) Clear() error {
	for len(a.records) > 0 {
		if err := a.Remove(a.records[len(a.records)-1].owner); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether h is registered.
func (a *Artist) Contains(h Handle) bool {
	_, ok := a.index[h]
	return ok
}

// Find returns the current range of h.
func (a *Artist) Find(h Handle) (Range, bool) {
	i, ok := a.index[h]
	if !ok {
		return Range{}, false
	}
	r := a.records[i]
	return Range{Offset: r.offset, Count: r.count}, true
}

// Ranges returns every owner's range in insertion order.
func (a *Artist) Ranges() []OwnerRange {
	out := make([]OwnerRange, len(a.records))
	for i, r := range a.records {
		out[i] = OwnerRange{Owner: r.owner, Range: Range{Offset: r.offset, Count: r.count}}
	}
	return out
}

// Draw makes the backend reflect the registry before the caller issues its
// draw call. When the Artist is dirty the resync hook runs and, if it
// succeeds, the dirty flag is cleared. Draw renders nothing itself.
//
// A failing hook leaves the Artist dirty so the next Draw retries.
func (a *Artist) Draw() error {
	if !a.dirty {
		return nil
	}
	if a.resync != nil {
		if err := a.resync(a.store); err != nil {
			a.logger().Warn("vbatch: resync failed", "artist", a.label, "err", err)
			return fmt.Errorf("vbatch: %s: resync: %w", a.label, err)
		}
	}
	a.dirty = false
	a.stats.Resyncs++
	a.logger().Debug("vbatch: resync", "artist", a.label, "records", a.store.Count())
	return nil
}

// Stats returns a snapshot of the Artist's counters.
func (a *Artist) Stats() Stats {
	s := a.stats
	s.Owners = len(a.records)
	s.Records = a.store.Count()
	s.Bytes = s.Records * a.stride
	return s
}

// Validate checks the registry against the store: record counts sum to the
// store count and the ranges, in insertion order, tile [0, Count()) with no
// gaps or overlaps. It returns ErrStoreCorrupt describing the first violation.
func (a *Artist) Validate() error {
	next := 0
	for i, r := range a.records {
		if r.offset != next {
			return fmt.Errorf("%w: %s: %v at offset %d, want %d", ErrStoreCorrupt, a.label, r.owner, r.offset, next)
		}
		if j, ok := a.index[r.owner]; !ok || j != i {
			return fmt.Errorf("%w: %s: index for %v is stale", ErrStoreCorrupt, a.label, r.owner)
		}
		next += r.count
	}
	if len(a.index) != len(a.records) {
		return fmt.Errorf("%w: %s: %d indexed owners, %d records", ErrStoreCorrupt, a.label, len(a.index), len(a.records))
	}
	if next != a.store.Count() {
		return fmt.Errorf("%w: %s: registry holds %d records, store %d", ErrStoreCorrupt, a.label, next, a.store.Count())
	}
	return nil
}

// checkData rejects a payload whose byte length does not match its record
// count at the Artist's stride.
func (a *Artist) checkData(v *VertexData) error {
	if v.Size() != v.Count()*a.stride {
		return fmt.Errorf("%w: %d bytes for %d records of stride %d",
			ErrInvalidStride, v.Size(), v.Count(), a.stride)
	}
	return nil
}

func (a *Artist) logger() *slog.Logger {
	if a.log != nil {
		return a.log
	}
	return Logger()
}
