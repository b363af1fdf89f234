package catalogmetrics

import (
	"context"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/catalog/internal/migration"
)

// ProductCounter reports how many products are stored.
type ProductCounter interface {
	CountProducts(ctx context.Context) (int64, error)
}

// SchemaReader reports the applied migration state.
type SchemaReader interface {
	SchemaState(ctx context.Context) (migration.State, error)
}

type metrics struct {
	productsTotal prometheus.Gauge
	schemaVersion *prometheus.GaugeVec
	schemaDirty   prometheus.Gauge
	memoryBytes   prometheus.Gauge
	refreshErrors *prometheus.CounterVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		productsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_products_total",
			Help: "Number of stored products.",
		}),
		schemaVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catalog_schema_version",
			Help: "Applied migration version, labelled with its revision id.",
		}, []string{"revision"}),
		schemaDirty: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_schema_dirty",
			Help: "1 when the last migration failed midway.",
		}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_process_memory_bytes",
			Help: "Bytes of memory obtained from the OS.",
		}),
		refreshErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_metrics_refresh_errors_total",
			Help: "Failed gauge refreshes by source.",
		}, []string{"source"}),
	}
	registry.MustRegister(m.productsTotal, m.schemaVersion, m.schemaDirty, m.memoryBytes, m.refreshErrors)
	return m
}

// Collector keeps catalog gauges in a dedicated registry so they can be pushed
// without dragging along the process-wide default registry.
type Collector struct {
	registry *prometheus.Registry
	metrics  *metrics
	products ProductCounter
	schema   SchemaReader
}

func NewCollector(products ProductCounter, schema SchemaReader) *Collector {
	registry := prometheus.NewRegistry()
	return &Collector{
		registry: registry,
		metrics:  newMetrics(registry),
		products: products,
		schema:   schema,
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Refresh updates every gauge. A failing source keeps its previous value and
// the first error is returned after all sources ran.
func (c *Collector) Refresh(ctx context.Context) error {
	var firstErr error
	record := func(source string, err error) {
		c.metrics.refreshErrors.WithLabelValues(source).Inc()
		if firstErr == nil {
			firstErr = err
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	c.metrics.memoryBytes.Set(float64(mem.Sys))

	if c.products != nil {
		count, err := c.products.CountProducts(ctx)
		if err != nil {
			record("products", err)
		} else {
			c.metrics.productsTotal.Set(float64(count))
		}
	}

	if c.schema != nil {
		state, err := c.schema.SchemaState(ctx)
		if err != nil {
			record("schema", err)
		} else {
			c.metrics.schemaVersion.Reset()
			c.metrics.schemaVersion.WithLabelValues(state.Revision).Set(float64(state.Version))
			dirty := 0.0
			if state.Dirty {
				dirty = 1
			}
			c.metrics.schemaDirty.Set(dirty)
		}
	}

	return firstErr
}
