package vbatch

import "log/slog"

// ArtistOption configures an Artist during creation.
//
// Example:
//
//	// Host-backed Artist that uploads to a device buffer on Draw
//	a, err := vbatch.NewArtist(spec, 24, vbatch.WithResync(vbo.Mirror(buf)))
//
//	// Artist compacting directly inside a device buffer
//	a, err := vbatch.NewArtist(spec, 24, vbatch.WithStore(buf))
type ArtistOption func(*artistOptions)

// artistOptions holds optional configuration for Artist creation.
type artistOptions struct {
	store  Store
	resync ResyncFunc
	label  string
	logger *slog.Logger
}

// defaultArtistOptions returns the default Artist options.
func defaultArtistOptions() artistOptions {
	return artistOptions{
		store:  nil, // Will be a host VertexData if nil
		resync: nil, // Draw only clears the dirty flag
	}
}

// WithStore sets the backing store. The store must be empty and bound to
// the Artist's spec. Use this to compact directly in device memory
// (see package vbo).
func WithStore(s Store) ArtistOption {
	return func(o *artistOptions) {
		o.store = s
	}
}

// WithResync sets the hook Draw runs when the store changed since the last
// successful Draw.
func WithResync(fn ResyncFunc) ArtistOption {
	return func(o *artistOptions) {
		o.resync = fn
	}
}

// WithLabel sets a debug label used in logs, errors and metrics.
func WithLabel(label string) ArtistOption {
	return func(o *artistOptions) {
		o.label = label
	}
}

// WithLogger sets a per-Artist logger instead of the package logger.
func WithLogger(l *slog.Logger) ArtistOption {
	return func(o *artistOptions) {
		o.logger = l
	}
}
