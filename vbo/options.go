// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbo

import (
	"log/slog"

	"github.com/gogpu/vbatch/gpucore"
)

// Option configures a Buffer during creation.
//
// Example:
//
//	buf, err := vbo.New(dev, spec, 24,
//	    vbo.WithLabel("quads"),
//	    vbo.WithInitialCapacity(1024),
//	)
type Option func(*options)

type options struct {
	usage    gpucore.BufferUsage
	label    string
	capacity int
	logger   *slog.Logger
}

// DefaultUsage is the usage of a vertex buffer that can grow and compact.
const DefaultUsage = gpucore.BufferUsageVertex | gpucore.BufferUsageCopySrc | gpucore.BufferUsageCopyDst

func defaultOptions() options {
	return options{
		usage: DefaultUsage,
		label: "vbatch_vbo",
	}
}

// WithUsage adds usage flags, e.g. gpucore.BufferUsageStorage for compute
// access. Copy source and destination are always set since growth and
// erase copy on the device.
func WithUsage(u gpucore.BufferUsage) Option {
	return func(o *options) {
		o.usage |= u
	}
}

// WithLabel sets the device debug label.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithInitialCapacity allocates room for n records up front. It is also
// the smallest capacity growth will pick.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithLogger sets a per-Buffer logger instead of vbatch.Logger().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
