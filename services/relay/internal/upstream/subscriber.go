package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/relay"
	"github.com/segmentio/kafka-go"
)

const defaultBackoff = 5 * time.Second

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Subscriber reads every configured topic from Kafka and turns the records
// into relay events. Each topic is consumed independently, so one missing or
// failing topic does not hold back the others.
//
// There is no consumer group and nothing is committed: every (re)subscribe
// starts at the partition end, so a restarted relay never replays backlog.
type Subscriber struct {
	Brokers []string
	Topics  []string
	Backoff time.Duration
	Log     *slog.Logger

	// Check and NewReader default to real broker calls.
	Check     func(ctx context.Context, kafkaTopic string) error
	NewReader func(kafkaTopic string) (MessageReader, error)
}

func NewSubscriber(brokers []string, topics []string, log *slog.Logger) *Subscriber {
	return &Subscriber{
		Brokers: brokers,
		Topics:  topics,
		Backoff: defaultBackoff,
		Log:     log,
	}
}

// Run blocks until ctx is done. Messages are sent to out as MessageReceived
// and failures as Errored with a nil connection.
func (s *Subscriber) Run(ctx context.Context, out chan<- relay.Event) {
	if s.Log == nil {
		s.Log = slog.Default()
	}
	if s.Backoff <= 0 {
		s.Backoff = defaultBackoff
	}
	if s.Check == nil {
		s.Check = s.checkBroker
	}
	if s.NewReader == nil {
		s.NewReader = s.kafkaReader
	}

	var wg sync.WaitGroup
	for _, topic := range s.Topics {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			s.consume(ctx, topic, out)
		}(topic)
	}
	wg.Wait()
}

func (s *Subscriber) consume(ctx context.Context, topic string, out chan<- relay.Event) {
	kt := KafkaTopic(topic)
	log := s.Log.With("topic", topic, "kafka_topic", kt)

	for ctx.Err() == nil {
		if err := s.Check(ctx, kt); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("subscribe_failed", "error", err, "retry_in", s.Backoff)
			s.emit(ctx, out, relay.Errored{Err: fmt.Errorf("subscribe %s: %w", topic, err)})
			if !sleep(ctx, s.Backoff) {
				return
			}
			continue
		}

		r, err := s.NewReader(kt)
		if err == nil {
			log.Info("subscribed")
			err = s.read(ctx, topic, r, out)
		}
		if err == nil || ctx.Err() != nil {
			return
		}

		log.Warn("read_failed", "error", err, "retry_in", s.Backoff)
		s.emit(ctx, out, relay.Errored{Err: fmt.Errorf("read %s: %w", topic, err)})
		if !sleep(ctx, s.Backoff) {
			return
		}
	}
}

func (s *Subscriber) read(ctx context.Context, topic string, r MessageReader, out chan<- relay.Event) error {
	defer r.Close()

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !s.emit(ctx, out, relay.MessageReceived{Topic: topic, Payload: m.Value}) {
			return nil
		}
	}
}

func (s *Subscriber) emit(ctx context.Context, out chan<- relay.Event, ev relay.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Subscriber) checkBroker(ctx context.Context, kafkaTopic string) error {
	if len(s.Brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}

	var errs []error
	for _, b := range s.Brokers {
		err := CheckTopic(ctx, b, kafkaTopic)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ReaderConfig is a partition reader on partition 0. Topics are created with
// a single partition, see EnsureTopics. StartOffset is ignored without a
// GroupID, so the caller seeks explicitly.
func ReaderConfig(brokers []string, kafkaTopic string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     kafkaTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   time.Second,
	}
}

// kafkaReader starts at the newest offset: clients only get live telemetry.
func (s *Subscriber) kafkaReader(kafkaTopic string) (MessageReader, error) {
	r := kafka.NewReader(ReaderConfig(s.Brokers, kafkaTopic))
	if err := r.SetOffset(kafka.LastOffset); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("seek to end: %w", err)
	}
	return r, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
