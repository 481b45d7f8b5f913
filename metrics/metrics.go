// Package metrics reads the per-minute counter rings the finishing
// procedure maintains, and exports queue gauges to Prometheus for
// operator dashboards. Only the procedures write metrics state.
package metrics

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

// Kind selects which counter ring to read.
type Kind string

const (
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
)

// Snapshot is one read of a counter ring. Data holds per-minute counts,
// newest first, capped at the procedure's maxMetricsSize.
type Snapshot struct {
	// Count is the total number of finishes since the ring was created.
	Count int64

	// PrevTS is the last bucketed minute, Unix ms.
	PrevTS int64

	// PrevCount is the running total as of PrevTS.
	PrevCount int64

	Data []int64
}

// Read fetches a ring snapshot. metricsKey is KeySet.Metrics(kind);
// the data list lives at metricsKey+":data". limit bounds how many data
// points are returned, 0 meaning all.
func Read(ctx context.Context, client goredis.Cmdable, metricsKey string, limit int64) (*Snapshot, error) {
	vals, err := client.HGetAll(ctx, metricsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/metrics: read %s: %w", metricsKey, err)
	}

	s := &Snapshot{}
	s.Count, _ = strconv.ParseInt(vals["count"], 10, 64)         //nolint:errcheck // best-effort parse from trusted store data
	s.PrevTS, _ = strconv.ParseInt(vals["prevTS"], 10, 64)       //nolint:errcheck // best-effort parse from trusted store data
	s.PrevCount, _ = strconv.ParseInt(vals["prevCount"], 10, 64) //nolint:errcheck // best-effort parse from trusted store data

	end := int64(-1)
	if limit > 0 {
		end = limit - 1
	}
	points, err := client.LRange(ctx, metricsKey+":data", 0, end).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/metrics: read %s data: %w", metricsKey, err)
	}
	s.Data = make([]int64, len(points))
	for i, p := range points {
		s.Data[i], _ = strconv.ParseInt(p, 10, 64) //nolint:errcheck // best-effort parse from trusted store data
	}
	return s, nil
}
