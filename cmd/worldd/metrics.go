package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timson/worlddb/storage"
	"github.com/timson/worlddb/world"
)

const metricsNamespace = "worlddb"

// newMetricsHandler exposes the store and world counters. Values are read
// from DB.Stat and World.Stats on every scrape.
func newMetricsHandler(db *storage.DB, w *world.World) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_page_id",
			Help:      "Highest page id minted so far.",
		}, func() float64 { return float64(db.Stat().LastPageID) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "file_size_bytes",
			Help:      "Size of the mapped database file.",
		}, func() float64 { return float64(db.Stat().FileSize) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_page_free_bytes",
			Help:      "Free arena left in the page accepting records.",
		}, func() float64 { return float64(db.Stat().ActiveFreeSpace) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_written_total",
			Help:      "Records written since the process started.",
		}, func() float64 { return float64(db.Stat().Pager.RecordsWritten) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "record_bytes_written_total",
			Help:      "Record payload bytes written since the process started.",
		}, func() float64 { return float64(db.Stat().Pager.BytesWritten) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "overflow_pages_total",
			Help:      "Overflow pages written since the process started.",
		}, func() float64 { return float64(db.Stat().Pager.OverflowPages) }),
		newCollectionCollector(w),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// collectionCollector reports one feature count per collection.
type collectionCollector struct {
	world *world.World
	desc  *prometheus.Desc
}

func newCollectionCollector(w *world.World) *collectionCollector {
	return &collectionCollector{
		world: w,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "collection", "features"),
			"Features stored per collection.",
			[]string{"collection"}, nil,
		),
	}
}

func (c *collectionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *collectionCollector) Collect(ch chan<- prometheus.Metric) {
	for name, count := range c.world.Stats() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(count), name)
	}
}
