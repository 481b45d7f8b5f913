package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

// DepthKeys names the queue structures the collector gauges. Populate
// it from a queue.KeySet.
type DepthKeys struct {
	Wait            string
	Active          string
	Prioritized     string
	Delayed         string
	Completed       string
	Failed          string
	WaitingChildren string
}

// Collector exports the depth of every queue structure as Prometheus
// gauges. Register it with a prometheus.Registerer; each scrape issues
// one pipelined round trip.
type Collector struct {
	client goredis.Cmdable
	queue  string
	keys   DepthKeys

	depthDesc *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector for one queue.
func NewCollector(client goredis.Cmdable, queueName string, keys DepthKeys) *Collector {
	return &Collector{
		client: client,
		queue:  queueName,
		keys:   keys,
		depthDesc: prometheus.NewDesc(
			"conveyor_queue_depth",
			"Number of jobs per queue structure.",
			[]string{"queue", "state"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depthDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := c.client.Pipeline()
	wait := pipe.LLen(ctx, c.keys.Wait)
	active := pipe.LLen(ctx, c.keys.Active)
	prioritized := pipe.ZCard(ctx, c.keys.Prioritized)
	delayed := pipe.ZCard(ctx, c.keys.Delayed)
	completed := pipe.ZCard(ctx, c.keys.Completed)
	failed := pipe.ZCard(ctx, c.keys.Failed)
	waitingChildren := pipe.ZCard(ctx, c.keys.WaitingChildren)
	if _, err := pipe.Exec(ctx); err != nil {
		// Scrape failures surface as absent samples; Redis being down is
		// already visible elsewhere.
		return
	}

	emit := func(state string, v int64) {
		ch <- prometheus.MustNewConstMetric(
			c.depthDesc, prometheus.GaugeValue, float64(v), c.queue, state)
	}
	emit("wait", wait.Val())
	emit("active", active.Val())
	emit("prioritized", prioritized.Val())
	emit("delayed", delayed.Val())
	emit("completed", completed.Val())
	emit("failed", failed.Val())
	emit("waiting-children", waitingChildren.Val())
}
