// Package influx provides InfluxDB client and time-series data operations for
// the mining pool. It handles metrics collection, hashrate tracking, and
// statistical data storage across the miners/workers/rounds/payments schema.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Client wraps InfluxDB operations for time-series metrics
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	queryAPI api.QueryAPI
	bucket   string
	org      string
}

// Config holds InfluxDB connection configuration
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewClient creates a new InfluxDB client
func NewClient(cfg *Config) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check InfluxDB health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	queryAPI := client.QueryAPI(cfg.Org)

	return &Client{
		client:   client,
		writeAPI: writeAPI,
		queryAPI: queryAPI,
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// Close closes the InfluxDB connection
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}

// Health checks InfluxDB connectivity
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("health check failed: %s", msg)
	}

	return nil
}

// Pool metrics

// WriteShareMetric writes a share submission metric, measurement "shares"
// tagged by minerID/workerID, matching the PoolStatistics/RoundStatistics
// projection named in the control surface.
func (c *Client) WriteShareMetric(minerID, workerID int64, difficulty, networkDifficulty float64, isValid, isBlockCandidate bool) {
	tags := map[string]string{
		"miner_id":  fmt.Sprintf("%d", minerID),
		"worker_id": fmt.Sprintf("%d", workerID),
		"valid":     fmt.Sprintf("%t", isValid),
		"block":     fmt.Sprintf("%t", isBlockCandidate),
	}

	fields := map[string]interface{}{
		"difficulty":         difficulty,
		"network_difficulty": networkDifficulty,
		"count":              1,
	}

	point := write.NewPoint("shares", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteHashrateMetric writes a per-worker hashrate sample.
func (c *Client) WriteHashrateMetric(minerID, workerID int64, hashrate float64) {
	tags := map[string]string{
		"miner_id":  fmt.Sprintf("%d", minerID),
		"worker_id": fmt.Sprintf("%d", workerID),
	}

	fields := map[string]interface{}{
		"hashrate": hashrate,
	}

	point := write.NewPoint("hashrate", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteRoundMetric writes a round-close (block discovery) metric, measurement
// "rounds" — the time-series twin of the postgres rounds table.
func (c *Client) WriteRoundMetric(blockHeight int64, blockHash string, minerID, workerID *int64, shareDifficulty float64, blockReward int64, status string) {
	tags := map[string]string{
		"status": status,
		"hash":   blockHash,
	}

	if minerID != nil {
		tags["miner_id"] = fmt.Sprintf("%d", *minerID)
	}
	if workerID != nil {
		tags["worker_id"] = fmt.Sprintf("%d", *workerID)
	}

	fields := map[string]interface{}{
		"height":           blockHeight,
		"share_difficulty": shareDifficulty,
		"reward":           blockReward,
		"count":            1,
	}

	point := write.NewPoint("rounds", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePaymentMetric writes a payment-sweep metric, measurement "payments".
func (c *Client) WritePaymentMetric(minerID int64, amount int64, status string) {
	tags := map[string]string{
		"miner_id": fmt.Sprintf("%d", minerID),
		"status":   status,
	}

	fields := map[string]interface{}{
		"amount": amount,
		"count":  1,
	}

	point := write.NewPoint("payments", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// Pool statistics

// WritePoolStatsMetric writes overall pool statistics, measurement "pool_stats".
func (c *Client) WritePoolStatsMetric(totalHashrate float64, activeWorkers, activeMiners, totalShares, validShares, invalidShares int64, networkHashrate, networkDifficulty float64) {
	fields := map[string]interface{}{
		"total_hashrate":     totalHashrate,
		"active_workers":     activeWorkers,
		"active_miners":      activeMiners,
		"total_shares":       totalShares,
		"valid_shares":       validShares,
		"invalid_shares":     invalidShares,
		"network_hashrate":   networkHashrate,
		"network_difficulty": networkDifficulty,
	}

	point := write.NewPoint("pool_stats", map[string]string{}, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteConnectionMetric writes Stratum session connection statistics.
func (c *Client) WriteConnectionMetric(activeConnections, totalConnections int64, avgLatency float64) {
	fields := map[string]interface{}{
		"active_connections": activeConnections,
		"total_connections":  totalConnections,
		"avg_latency":        avgLatency,
	}

	point := write.NewPoint("connections", map[string]string{}, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// System metrics

// WriteSystemMetric writes a fan-out consumer's process-level metrics
// (cmd/jobmanager, cmd/shareproc, cmd/blocksubmit report under their own
// service tag).
func (c *Client) WriteSystemMetric(service string, cpuUsage, memoryUsage float64, goroutines int64) {
	tags := map[string]string{
		"service": service,
	}

	fields := map[string]interface{}{
		"cpu_usage":    cpuUsage,
		"memory_usage": memoryUsage,
		"goroutines":   goroutines,
	}

	point := write.NewPoint("system", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// Query methods

// GetHashrateHistory retrieves hashrate history for a miner's worker.
func (c *Client) GetHashrateHistory(ctx context.Context, minerID, workerID int64, duration time.Duration) ([]HashratePoint, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -%s)
		|> filter(fn: (r) => r._measurement == "hashrate")
		|> filter(fn: (r) => r.miner_id == "%d")
		|> filter(fn: (r) => r.worker_id == "%d")
		|> filter(fn: (r) => r._field == "hashrate")
		|> aggregateWindow(every: 5m, fn: mean, createEmpty: false)
	`, c.bucket, duration.String(), minerID, workerID)

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query hashrate history: %w", err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			_ = err // best-effort cleanup; nothing actionable on a closed result set
		}
	}()

	var points []HashratePoint
	for result.Next() {
		record := result.Record()
		if value, ok := record.Value().(float64); ok {
			points = append(points, HashratePoint{
				Time:     record.Time(),
				Hashrate: value,
			})
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("error reading query result: %w", result.Err())
	}

	return points, nil
}

// GetShareStats retrieves a miner's share statistics for a time period.
func (c *Client) GetShareStats(ctx context.Context, minerID int64, duration time.Duration) (*ShareStats, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -%s)
		|> filter(fn: (r) => r._measurement == "shares")
		|> filter(fn: (r) => r.miner_id == "%d")
		|> filter(fn: (r) => r._field == "count")
		|> group(columns: ["valid"])
		|> sum()
	`, c.bucket, duration.String(), minerID)

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query share stats: %w", err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			_ = err // best-effort cleanup; nothing actionable on a closed result set
		}
	}()

	stats := &ShareStats{}
	for result.Next() {
		record := result.Record()
		if count, ok := record.Value().(int64); ok {
			if record.ValueByKey("valid") == "true" {
				stats.ValidShares = count
			} else {
				stats.InvalidShares = count
			}
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("error reading query result: %w", result.Err())
	}

	stats.TotalShares = stats.ValidShares + stats.InvalidShares
	if stats.TotalShares > 0 {
		stats.ValidPercent = float64(stats.ValidShares) / float64(stats.TotalShares) * 100
	}

	return stats, nil
}

// GetPoolHashrate retrieves the pool's aggregate hashrate over duration.
func (c *Client) GetPoolHashrate(ctx context.Context, duration time.Duration) (float64, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -%s)
		|> filter(fn: (r) => r._measurement == "hashrate")
		|> filter(fn: (r) => r._field == "hashrate")
		|> aggregateWindow(every: 5m, fn: mean, createEmpty: false)
		|> group()
		|> sum()
		|> last()
	`, c.bucket, duration.String())

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to query pool hashrate: %w", err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			_ = err // best-effort cleanup; nothing actionable on a closed result set
		}
	}()

	if result.Next() {
		record := result.Record()
		if hashrate, ok := record.Value().(float64); ok {
			return hashrate, nil
		}
	}

	if result.Err() != nil {
		return 0, fmt.Errorf("error reading query result: %w", result.Err())
	}

	return 0, nil
}

// Flush forces a write of all pending points
func (c *Client) Flush() {
	c.writeAPI.Flush()
}

// Data structures

// HashratePoint represents a hashrate measurement at a point in time
type HashratePoint struct {
	Time     time.Time `json:"time"`
	Hashrate float64   `json:"hashrate"`
}

// ShareStats represents a miner's aggregated share statistics
type ShareStats struct {
	TotalShares   int64   `json:"total_shares"`
	ValidShares   int64   `json:"valid_shares"`
	InvalidShares int64   `json:"invalid_shares"`
	ValidPercent  float64 `json:"valid_percent"`
}
