package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is a snapshot of connection pool counters.
type PoolStats struct {
	Acquired        int32
	Idle            int32
	Total           int32
	Max             int32
	AcquireCount    int64
	AcquireSeconds  float64
	EmptyAcquires   int64
	NewConnsCreated int64
}

// PgxPoolStats adapts a pgx pool to a PoolStats source.
func PgxPoolStats(pool *pgxpool.Pool) func() PoolStats {
	return func() PoolStats {
		s := pool.Stat()
		return PoolStats{
			Acquired:        s.AcquiredConns(),
			Idle:            s.IdleConns(),
			Total:           s.TotalConns(),
			Max:             s.MaxConns(),
			AcquireCount:    s.AcquireCount(),
			AcquireSeconds:  s.AcquireDuration().Seconds(),
			EmptyAcquires:   s.EmptyAcquireCount(),
			NewConnsCreated: s.NewConnsCount(),
		}
	}
}

// PoolStatsCollector exports pool statistics as Prometheus metrics.
type PoolStatsCollector struct {
	stats   func() PoolStats
	service string

	acquired, idle, total, max   *prometheus.Desc
	acquireCount, acquireSeconds *prometheus.Desc
	emptyAcquires, newConns      *prometheus.Desc
}

// NewPoolStatsCollector creates a collector reading from stats on every scrape.
func NewPoolStatsCollector(stats func() PoolStats, service string) *PoolStatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(name, help, []string{"service"}, nil)
	}
	return &PoolStatsCollector{
		stats:          stats,
		service:        service,
		acquired:       desc("db_pool_acquired_connections", "Number of currently acquired connections"),
		idle:           desc("db_pool_idle_connections", "Number of currently idle connections"),
		total:          desc("db_pool_total_connections", "Total number of connections in the pool"),
		max:            desc("db_pool_max_connections", "Maximum number of connections allowed"),
		acquireCount:   desc("db_pool_acquire_count_total", "Total number of connection acquires"),
		acquireSeconds: desc("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections"),
		emptyAcquires:  desc("db_pool_empty_acquire_count_total", "Acquires that had to wait for a connection"),
		newConns:       desc("db_pool_new_connections_total", "Total number of new connections created"),
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.acquired, c.idle, c.total, c.max,
		c.acquireCount, c.acquireSeconds, c.emptyAcquires, c.newConns,
	} {
		ch <- d
	}
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, c.service)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, c.service)
	}

	gauge(c.acquired, float64(s.Acquired))
	gauge(c.idle, float64(s.Idle))
	gauge(c.total, float64(s.Total))
	gauge(c.max, float64(s.Max))
	counter(c.acquireCount, float64(s.AcquireCount))
	counter(c.acquireSeconds, s.AcquireSeconds)
	counter(c.emptyAcquires, float64(s.EmptyAcquires))
	counter(c.newConns, float64(s.NewConnsCreated))
}

// RegisterPoolMetrics registers a pool collector for pool with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	return reg.Register(NewPoolStatsCollector(PgxPoolStats(pool), service))
}
