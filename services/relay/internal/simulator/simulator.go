package simulator

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

type Range struct {
	Min, Max float64
}

func (r Range) draw(rng *rand.Rand) float64 {
	v := r.Min + rng.Float64()*(r.Max-r.Min)
	return math.Round(v*100) / 100
}

// Sensor describes one simulated meter. Column is used as the record key.
// Anomaly readings are drawn from a wider range; the simulator does not flag
// them, detection happens downstream.
type Sensor struct {
	Topic         string
	Column        string
	Normal        Range
	Anomaly       Range
	AnomalyChance float64
}

var DefaultSensors = []Sensor{
	{Topic: "sensor/electricity", Column: "electricity", Normal: Range{0.5, 10}, Anomaly: Range{-50, 500}, AnomalyChance: 0.05},
	{Topic: "sensor/water", Column: "water", Normal: Range{10, 100}, Anomaly: Range{0, 10000}, AnomalyChance: 0.05},
	{Topic: "sensor/waste", Column: "waste", Normal: Range{10, 1000}, Anomaly: Range{0, 10000}, AnomalyChance: 0.05},
}

type Reading struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Simulator struct {
	Pub     Publisher
	Sensors []Sensor
	Log     *slog.Logger
	Now     func() time.Time

	rng *rand.Rand
}

func New(pub Publisher, sensors []Sensor, seed int64, log *slog.Logger) *Simulator {
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{
		Pub:     pub,
		Sensors: sensors,
		Log:     log,
		Now:     time.Now,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Tick publishes one reading per sensor. Publish failures are logged and
// counted.
func (s *Simulator) Tick(ctx context.Context) (failed int) {
	ts := s.Now().Unix()

	for _, sensor := range s.Sensors {
		value, anomaly := s.read(sensor)

		if err := s.Pub.PublishEvent(ctx, sensor.Topic, sensor.Column, Reading{Timestamp: ts, Value: value}); err != nil {
			s.Log.Warn("publish_failed", "topic", sensor.Topic, "error", err)
			failed++
			continue
		}
		s.Log.Debug("reading_published", "topic", sensor.Topic, "value", value, "anomaly_range", anomaly)
	}
	return failed
}

func (s *Simulator) read(sensor Sensor) (float64, bool) {
	if s.rng.Float64() < sensor.AnomalyChance {
		return sensor.Anomaly.draw(s.rng), true
	}
	return sensor.Normal.draw(s.rng), false
}

// Run ticks immediately and then every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
