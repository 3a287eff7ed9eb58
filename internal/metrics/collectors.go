package metrics

import (
	"context"
	"time"

	"costguardian/pkg/logger"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// CustomCollector reports store-level gauges at scrape time
type CustomCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn
	redis      *redis.Client

	storedPredictions  *prometheus.Desc
	performanceRecords *prometheus.Desc
	usageRecords       *prometheus.Desc
	cacheKeys          *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn, redis *redis.Client) *CustomCollector {
	return &CustomCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,
		redis:      redis,

		storedPredictions: prometheus.NewDesc(
			"costguardian_stored_predictions_24h",
			"Stored predictions created in the last 24h by period",
			[]string{"period"}, nil,
		),
		performanceRecords: prometheus.NewDesc(
			"costguardian_performance_records_24h",
			"Performance records appended in the last 24h by outcome",
			[]string{"status"}, nil,
		),
		usageRecords: prometheus.NewDesc(
			"costguardian_usage_records_24h",
			"Usage records ingested in the last 24h",
			nil, nil,
		),
		cacheKeys: prometheus.NewDesc(
			"costguardian_redis_keys",
			"Number of keys in the cache database",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.storedPredictions
	ch <- c.performanceRecords
	ch <- c.usageRecords
	ch <- c.cacheKeys
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectStoredPredictions(ctx, ch)
	c.collectPerformanceRecords(ctx, ch)
	c.collectUsageRecords(ctx, ch)
	c.collectCacheKeys(ctx, ch)
}

func (c *CustomCollector) collectStoredPredictions(ctx context.Context, ch chan<- prometheus.Metric) {
	type periodStat struct {
		Period string `db:"period"`
		Count  int    `db:"count"`
	}

	var stats []periodStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT period, COUNT(*) as count
		FROM stored_predictions
		WHERE created_at > NOW() - INTERVAL '24 hours'
		GROUP BY period
	`)
	if err != nil {
		c.log.Warnw("Failed to collect stored prediction stats", "error", err)
		return
	}

	for _, stat := range stats {
		ch <- prometheus.MustNewConstMetric(
			c.storedPredictions,
			prometheus.GaugeValue,
			float64(stat.Count),
			stat.Period,
		)
	}
}

func (c *CustomCollector) collectPerformanceRecords(ctx context.Context, ch chan<- prometheus.Metric) {
	type outcomeStat struct {
		Success bool `db:"success"`
		Count   int  `db:"count"`
	}

	var stats []outcomeStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT success, COUNT(*) as count
		FROM model_performance
		WHERE timestamp > NOW() - INTERVAL '24 hours'
		GROUP BY success
	`)
	if err != nil {
		c.log.Warnw("Failed to collect performance stats", "error", err)
		return
	}

	for _, stat := range stats {
		status := "failed"
		if stat.Success {
			status = "success"
		}
		ch <- prometheus.MustNewConstMetric(
			c.performanceRecords,
			prometheus.GaugeValue,
			float64(stat.Count),
			status,
		)
	}
}

func (c *CustomCollector) collectUsageRecords(ctx context.Context, ch chan<- prometheus.Metric) {
	var count uint64
	row := c.clickhouse.QueryRow(ctx, `
		SELECT count()
		FROM usage_records
		WHERE timestamp > now() - INTERVAL 24 HOUR
	`)
	if err := row.Scan(&count); err != nil {
		c.log.Warnw("Failed to collect usage record stats", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.usageRecords,
		prometheus.GaugeValue,
		float64(count),
	)
}

func (c *CustomCollector) collectCacheKeys(ctx context.Context, ch chan<- prometheus.Metric) {
	size, err := c.redis.DBSize(ctx).Result()
	if err != nil {
		c.log.Warnw("Failed to collect redis key count", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.cacheKeys,
		prometheus.GaugeValue,
		float64(size),
	)
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
