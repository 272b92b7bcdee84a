package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// pointWriter is the part of api.WriteAPI the client uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Client sends player telemetry through the non-blocking write API.
// Writes on a closed client are dropped.
type Client struct {
	influx influxdb2.Client
	points pointWriter
	open   atomic.Bool

	mu      sync.RWMutex
	site    string
	onError func(err error)
}

// Connect pings the server and opens a batched writer for cfg.Org and
// cfg.Bucket. It returns ErrDisabled when the section is switched off.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, influx); err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	api := influx.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{influx: influx, points: api}
	c.open.Store(true)
	go c.forwardErrors(api.Errors())
	return c, nil
}

// writeOptions applies batch size and flush interval, falling back to
// defaults for unset or negative values.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush / time.Millisecond))
}

func ping(ctx context.Context, influx influxdb2.Client) error {
	ok, err := influx.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("ping: server not ready")
	}
	return nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		fn := c.onError
		c.mu.RUnlock()
		if fn != nil {
			fn(err)
		}
	}
}

// SetSite sets the site tag added to every point.
func (c *Client) SetSite(site string) {
	c.mu.Lock()
	c.site = site
	c.mu.Unlock()
}

// SetOnError registers the callback for asynchronous write failures.
func (c *Client) SetOnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// IsConnected reports whether the client is open.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() || c.influx == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.influx); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush sends buffered points now. No-op once closed.
func (c *Client) Flush() {
	if c.IsConnected() && c.points != nil {
		c.points.Flush()
	}
}

// Close flushes buffered points and releases the client.
func (c *Client) Close() error {
	if !c.open.Swap(false) {
		return nil
	}
	if c.points != nil {
		c.points.Flush()
	}
	if c.influx != nil {
		c.influx.Close()
	}
	return nil
}

// emit writes one point tagged with the site, unless closed.
func (c *Client) emit(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() || c.points == nil {
		return
	}

	c.mu.RLock()
	site := c.site
	c.mu.RUnlock()

	all := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		all[k] = v
	}
	if site != "" {
		all["site"] = site
	}
	c.points.WritePoint(write.NewPoint(measurement, all, fields, time.Now()))
}
