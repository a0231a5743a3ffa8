package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// TimeseriesWriter optionally records one point per completed generate
// session for longitudinal analysis, mirroring the teacher's
// InfluxDBStorage write path. It is a pure sink: nothing downstream of
// the pipeline reads it back, and its absence never changes pipeline
// behavior.
type TimeseriesWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewTimeseriesWriter connects to an InfluxDB instance at url using
// token, org, and bucket. Returns nil if url is empty — the
// spec treats this as a wholly optional component.
func NewTimeseriesWriter(url, token, org, bucket string) *TimeseriesWriter {
	if url == "" {
		return nil
	}
	client := influxdb2.NewClient(url, token)
	return &TimeseriesWriter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		org:      org,
		bucket:   bucket,
	}
}

// RecordSession writes one point capturing a completed session's shape:
// attempts used, whether it ultimately succeeded, the backend, and total
// latency. The write goes through InfluxDB's blocking write API, so the
// call waits for the server; write errors are returned for the caller to
// log.
func (w *TimeseriesWriter) RecordSession(ctx context.Context, backend string, attempts int, success bool, duration time.Duration) error {
	if w == nil {
		return nil
	}
	point := influxdb2.NewPoint(
		"generate_session",
		map[string]string{
			"backend": backend,
			"success": boolString(success),
		},
		map[string]interface{}{
			"attempts":         attempts,
			"duration_seconds": duration.Seconds(),
		},
		time.Now(),
	)
	return w.writeAPI.WritePoint(ctx, point)
}

// Close releases the underlying InfluxDB client. Safe to call on nil.
func (w *TimeseriesWriter) Close() {
	if w == nil {
		return
	}
	w.client.Close()
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
