// Package persistence is the append-only sink for sensor readings and
// risk assessments. Any durable store satisfying the contract would do;
// this one writes to InfluxDB. A nil *Store disables persistence, so
// the monitor runs standalone.
package persistence

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/minewatch/emergency/internal/model"
)

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type Store struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string

	mu      sync.RWMutex
	lastErr time.Time
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Store{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		lastErr:  time.Now().Add(-24 * time.Hour),
	}, nil
}

// WriteReading appends one sensor reading, keyed by its timestamp.
func (s *Store) WriteReading(ctx context.Context, r model.SensorReading) error {
	if s == nil {
		return nil
	}
	t := r.Timestamp
	if t.IsZero() {
		t = time.Now()
	}
	point := influxdb2.NewPoint(
		sanitizeMeasurement("sensor_reading"),
		map[string]string{
			"sensor_id":   r.SensorID,
			"sensor_type": r.SensorType,
			"zone":        r.Zone,
		},
		map[string]interface{}{
			"value":           r.Value,
			"status":          string(r.Status),
			"maintenance_due": r.MaintenanceDue,
		},
		t,
	)
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		s.noteError()
		return fmt.Errorf("write reading: %w", err)
	}
	return nil
}

// WriteAssessment appends one risk assessment.
func (s *Store) WriteAssessment(ctx context.Context, a model.RiskAssessment) error {
	if s == nil {
		return nil
	}
	point := influxdb2.NewPoint(
		sanitizeMeasurement("risk_assessment"),
		map[string]string{
			"level": string(a.CurrentLevel),
		},
		map[string]interface{}{
			"confidence":   a.Confidence,
			"data_quality": a.DataQuality,
			"degraded":     a.Degraded,
			"predicted_2h": string(a.PredictedLevel2h),
		},
		a.Timestamp,
	)
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		s.noteError()
		return fmt.Errorf("write assessment: %w", err)
	}
	return nil
}

// ReadingPoint is one stored reading as returned by trend queries.
type ReadingPoint struct {
	Time   time.Time `json:"time"`
	Value  float64   `json:"value"`
	Status string    `json:"status"`
}

// readingsQuery builds the Flux for one sensor's stored readings. The
// pivot folds the value and status fields into one row per timestamp.
func readingsQuery(bucket, sensorID string, since time.Time) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s)
  |> filter(fn: (r) => r._measurement == "sensor_reading" and r.sensor_id == %q)
  |> filter(fn: (r) => r._field == "value" or r._field == "status")
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"])`,
		bucket, since.UTC().Format(time.RFC3339), sensorID)
}

// ReadingsSince returns the stored values for one sensor from the given
// instant, oldest first.
func (s *Store) ReadingsSince(ctx context.Context, sensorID string, since time.Time) ([]ReadingPoint, error) {
	if s == nil {
		return nil, nil
	}
	result, err := s.queryAPI.Query(ctx, readingsQuery(s.bucket, sensorID, since))
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer result.Close()

	var out []ReadingPoint
	for result.Next() {
		rec := result.Record()
		value, ok := rec.ValueByKey("value").(float64)
		if !ok {
			continue
		}
		p := ReadingPoint{Time: rec.Time(), Value: value}
		if status, ok := rec.ValueByKey("status").(string); ok {
			p.Status = status
		}
		out = append(out, p)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("query readings: %w", result.Err())
	}
	return out, nil
}

// LastErrorAge reports how long ago the last write error happened; used
// by the health endpoint.
func (s *Store) LastErrorAge() time.Duration {
	if s == nil {
		return 24 * time.Hour
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastErr)
}

func (s *Store) Close() {
	if s == nil {
		return
	}
	s.client.Close()
}

func (s *Store) noteError() {
	s.mu.Lock()
	s.lastErr = time.Now()
	s.mu.Unlock()
	log.Printf("persistence: write error recorded")
}

func sanitizeMeasurement(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
