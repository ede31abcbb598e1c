package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/relay"
)

const (
	Topic = "alerts"

	DefaultWindow    = 50
	DefaultThreshold = 3.0
)

// Columns maps each sensor topic to the column named in its alerts.
var Columns = map[string]string{
	"sensor/electricity": "electricity",
	"sensor/water":       "water",
	"sensor/waste":       "waste",
}

// SensorTopics lists the topics the detector consumes.
var SensorTopics = []string{"sensor/electricity", "sensor/water", "sensor/waste"}

var ErrMalformed = errors.New("malformed reading")

type Alert struct {
	Timestamp int64   `json:"timestamp"`
	Column    string  `json:"column"`
	Value     float64 `json:"value"`
}

type reading struct {
	Timestamp int64    `json:"timestamp"`
	Value     *float64 `json:"value"`
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// ZScore scores value against history. It reports false while history holds
// fewer than size values or when the population deviation is zero.
func ZScore(history []float64, size int, value float64) (float64, bool) {
	if len(history) < size || size <= 0 {
		return 0, false
	}
	window := history[len(history)-size:]

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(size)

	var sq float64
	for _, v := range window {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(size))
	if std == 0 {
		return 0, false
	}
	return (value - mean) / std, true
}

// Detector flags readings that sit more than Threshold deviations away from
// the previous Window readings of the same column.
type Detector struct {
	Pub       Publisher
	Window    int
	Threshold float64
	Log       *slog.Logger

	mu      sync.Mutex
	history map[string][]float64
}

func New(pub Publisher, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{
		Pub:       pub,
		Window:    DefaultWindow,
		Threshold: DefaultThreshold,
		Log:       log,
		history:   make(map[string][]float64),
	}
}

// Observe records one reading and returns the alert it raises, if any.
// Readings on topics outside Columns are ignored.
func (d *Detector) Observe(topic string, payload []byte) (*Alert, error) {
	column, ok := Columns[topic]
	if !ok {
		return nil, nil
	}

	var r reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if r.Value == nil {
		return nil, fmt.Errorf("%w: no value", ErrMalformed)
	}
	value := *r.Value

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.history == nil {
		d.history = make(map[string][]float64)
	}
	hist := d.history[column]
	z, scored := ZScore(hist, d.Window, value)

	hist = append(hist, value)
	if len(hist) > d.Window {
		hist = append(hist[:0], hist[len(hist)-d.Window:]...)
	}
	d.history[column] = hist

	if !scored || math.Abs(z) <= d.Threshold {
		return nil, nil
	}
	d.Log.Info("anomaly_detected", "column", column, "value", value, "z", z)
	return &Alert{Timestamp: r.Timestamp, Column: column, Value: value}, nil
}

// Handle applies one upstream event and publishes the resulting alert.
func (d *Detector) Handle(ctx context.Context, ev relay.Event) {
	switch ev := ev.(type) {
	case relay.MessageReceived:
		alert, err := d.Observe(ev.Topic, ev.Payload)
		if err != nil {
			d.Log.Warn("reading_skipped", "topic", ev.Topic, "error", err)
			return
		}
		if alert == nil {
			return
		}
		if err := d.Pub.PublishEvent(ctx, Topic, alert.Column, alert); err != nil {
			d.Log.Error("alert_publish_failed", "column", alert.Column, "error", err)
		}
	case relay.Errored:
		d.Log.Warn("upstream_error", "error", ev.Err)
	}
}

// Run handles events until ctx is done or events is closed.
func (d *Detector) Run(ctx context.Context, events <-chan relay.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.Handle(ctx, ev)
		}
	}
}
