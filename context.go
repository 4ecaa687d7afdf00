// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbatch

import (
	"errors"
	"fmt"
	"log/slog"
)

// Ticket names an owner registered through a Context: the spec routes to
// the Artist, the handle names the owner inside it.
type Ticket struct {
	Spec   SpecID
	Handle Handle
}

// Valid reports whether t was returned by a successful Insert.
func (t Ticket) Valid() bool {
	return t.Spec.Valid() && t.Handle != InvalidHandle
}

// ContextOption configures a Context during creation.
type ContextOption func(*contextOptions)

type contextOptions struct {
	specs  *SpecAllocator
	logger *slog.Logger
}

// WithSpecAllocator makes the Context mint SpecIDs from a.
// Use it when several Contexts must agree on layout identities.
func WithSpecAllocator(a *SpecAllocator) ContextOption {
	return func(o *contextOptions) {
		o.specs = a
	}
}

// WithContextLogger sets the logger handed to Artists attached without
// their own WithLogger option.
func WithContextLogger(l *slog.Logger) ContextOption {
	return func(o *contextOptions) {
		o.logger = l
	}
}

// Context is the set of Artists belonging to one rendering context, keyed
// by SpecID. It owns the SpecAllocator that mints those IDs.
//
// Drawables attach through Insert and detach through Remove; the render
// loop calls Draw once per frame.
//
// Context is NOT safe for concurrent use.
type Context struct {
	specs   *SpecAllocator
	logger  *slog.Logger
	artists map[SpecID]*Artist
	order   []SpecID
}

// NewContext creates an empty Context.
func NewContext(opts ...ContextOption) *Context {
	var o contextOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.specs == nil {
		o.specs = NewSpecAllocator()
	}
	return &Context{
		specs:   o.specs,
		logger:  o.logger,
		artists: make(map[SpecID]*Artist),
	}
}

// Specs returns the Context's SpecAllocator.
func (c *Context) Specs() *SpecAllocator { return c.specs }

// NewSpec mints a SpecID for a new vertex layout.
func (c *Context) NewSpec() SpecID { return c.specs.Next() }

// Attach creates the Artist for spec.
func (c *Context) Attach(spec SpecID, stride int, opts ...ArtistOption) (*Artist, error) {
	if _, ok := c.artists[spec]; ok {
		return nil, fmt.Errorf("%w: %v", ErrDuplicateSpec, spec)
	}
	if c.logger != nil {
		opts = append([]ArtistOption{WithLogger(c.logger)}, opts...)
	}
	a, err := NewArtist(spec, stride, opts...)
	if err != nil {
		return nil, err
	}
	c.artists[spec] = a
	c.order = append(c.order, spec)
	return a, nil
}

// Detach drops the Artist for spec and returns it, so the caller can
// release any device resources behind its store.
func (c *Context) Detach(spec SpecID) (*Artist, bool) {
	a, ok := c.artists[spec]
	if !ok {
		return nil, false
	}
	delete(c.artists, spec)
	for i, s := range c.order {
		if s == spec {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return a, true
}

// Artist returns the Artist attached for spec.
func (c *Context) Artist(spec SpecID) (*Artist, bool) {
	a, ok := c.artists[spec]
	return a, ok
}

// Artists returns the attached Artists in attach order.
func (c *Context) Artists() []*Artist {
	out := make([]*Artist, 0, len(c.order))
	for _, s := range c.order {
		out = append(out, c.artists[s])
	}
	return out
}

// Insert routes v to the Artist matching its spec.
func (c *Context) Insert(v *VertexData) (Ticket, error) {
	if v == nil {
		return Ticket{}, fmt.Errorf("%w: nil vertex data", ErrNoArtist)
	}
	a, ok := c.artists[v.Spec()]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %v", ErrNoArtist, v.Spec())
	}
	h, err := a.Insert(v)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{Spec: v.Spec(), Handle: h}, nil
}

// Remove deregisters the owner named by t. Like Artist.Remove it is a
// no-op for an unknown owner, including one whose Artist was detached.
func (c *Context) Remove(t Ticket) error {
	a, ok := c.artists[t.Spec]
	if !ok {
		return nil
	}
	return a.Remove(t.Handle)
}

// Update replaces the records of the owner named by t.
func (c *Context) Update(t Ticket, v *VertexData) error {
	a, ok := c.artists[t.Spec]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoArtist, t.Spec)
	}
	return a.Update(t.Handle, v)
}

// Contains reports whether t names a registered owner.
func (c *Context) Contains(t Ticket) bool {
	a, ok := c.artists[t.Spec]
	return ok && a.Contains(t.Handle)
}

// Draw runs Draw on every Artist in attach order. Every Artist is visited
// even if one fails; the errors are joined.
func (c *Context) Draw() error {
	var errs []error
	for _, s := range c.order {
		if err := c.artists[s].Draw(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns per-spec statistics.
func (c *Context) Stats() map[SpecID]Stats {
	out := make(map[SpecID]Stats, len(c.artists))
	for s, a := range c.artists {
		out[s] = a.Stats()
	}
	return out
}
