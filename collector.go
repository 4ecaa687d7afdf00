// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the statistics of every Artist in a Context as
// Prometheus metrics labelled by artist label and spec.
//
// Context is single-threaded, so Collect reads it without locking. Gather
// from the goroutine that owns the Context, or between frames.
type Collector struct {
	ctx *Context

	owners     *prometheus.Desc
	records    *prometheus.Desc
	bytes      *prometheus.Desc
	inserts    *prometheus.Desc
	removes    *prometheus.Desc
	updates    *prometheus.Desc
	resyncs    *prometheus.Desc
	bytesMoved *prometheus.Desc
	dirty      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector for ctx.
func NewCollector(ctx *Context) *Collector {
	labels := []string{"artist", "spec"}
	return &Collector{
		ctx: ctx,

		owners: prometheus.NewDesc(
			"vbatch_artist_owners",
			"Number of owners registered with the artist",
			labels, nil,
		),
		records: prometheus.NewDesc(
			"vbatch_artist_records",
			"Number of records in the artist's store",
			labels, nil,
		),
		bytes: prometheus.NewDesc(
			"vbatch_artist_bytes",
			"Size of the artist's records in bytes",
			labels, nil,
		),
		inserts: prometheus.NewDesc(
			"vbatch_artist_inserts_total",
			"Total number of owners inserted",
			labels, nil,
		),
		removes: prometheus.NewDesc(
			"vbatch_artist_removes_total",
			"Total number of owners removed",
			labels, nil,
		),
		updates: prometheus.NewDesc(
			"vbatch_artist_updates_total",
			"Total number of owner updates",
			labels, nil,
		),
		resyncs: prometheus.NewDesc(
			"vbatch_artist_resyncs_total",
			"Total number of draws that resynced the backend",
			labels, nil,
		),
		bytesMoved: prometheus.NewDesc(
			"vbatch_artist_compaction_bytes_moved_total",
			"Total number of bytes shifted left by compaction",
			labels, nil,
		),
		dirty: prometheus.NewDesc(
			"vbatch_artist_dirty",
			"1 if the artist owes a resync",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.owners
	ch <- c.records
	ch <- c.bytes
	ch <- c.inserts
	ch <- c.removes
	ch <- c.updates
	ch <- c.resyncs
	ch <- c.bytesMoved
	ch <- c.dirty
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, a := range c.ctx.Artists() {
		s := a.Stats()
		lv := []string{a.Label(), a.Spec().String()}

		ch <- prometheus.MustNewConstMetric(c.owners, prometheus.GaugeValue, float64(s.Owners), lv...)
		ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(s.Records), lv...)
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(s.Bytes), lv...)
		ch <- prometheus.MustNewConstMetric(c.inserts, prometheus.CounterValue, float64(s.Inserts), lv...)
		ch <- prometheus.MustNewConstMetric(c.removes, prometheus.CounterValue, float64(s.Removes), lv...)
		ch <- prometheus.MustNewConstMetric(c.updates, prometheus.CounterValue, float64(s.Updates), lv...)
		ch <- prometheus.MustNewConstMetric(c.resyncs, prometheus.CounterValue, float64(s.Resyncs), lv...)
		ch <- prometheus.MustNewConstMetric(c.bytesMoved, prometheus.CounterValue, float64(s.BytesMoved), lv...)

		dirty := 0.0
		if a.Dirty() {
			dirty = 1
		}
		ch <- prometheus.MustNewConstMetric(c.dirty, prometheus.GaugeValue, dirty, lv...)
	}
}
