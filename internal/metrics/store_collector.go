package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// storeCollector samples row counts from the store on scrape.
type storeCollector struct {
	db     *sql.DB
	logger *slog.Logger

	rowsDesc *prometheus.Desc
}

func newStoreCollector(db *sql.DB, logger *slog.Logger) *storeCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &storeCollector{
		db:     db,
		logger: logger,
		rowsDesc: prometheus.NewDesc(
			"pgxntester_store_rows",
			"Current row count per store table.",
			[]string{"table"},
			nil,
		),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rowsDesc
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	if c.db == nil {
		return
	}

	// Keep store reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, table := range []string{"users", "distributions", "distribution_versions", "machines", "results"} {
		var n int64
		if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			c.logger.Warn("prometheus store collector failed", "table", table, "err", err)
			return
		}
		m, err := prometheus.NewConstMetric(c.rowsDesc, prometheus.GaugeValue, float64(n), table)
		if err != nil {
			continue
		}
		ch <- m
	}
}

var registerStoreOnce sync.Once

// RegisterStoreCollector registers the row-count collector. Safe to call
// more than once; only the first registration wins.
func RegisterStoreCollector(db *sql.DB, logger *slog.Logger) {
	registerStoreOnce.Do(func() {
		if err := prometheus.Register(newStoreCollector(db, logger)); err != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("store collector registration failed", "err", err)
		}
	})
}
