package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaConfig configures the Kafka producer behind KafkaSink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	RetryMax     int
	Timeout      time.Duration
	RequiredAcks sarama.RequiredAcks
}

// DefaultKafkaConfig returns producer settings for brokers and topic.
func DefaultKafkaConfig(brokers []string, topic string) KafkaConfig {
	return KafkaConfig{
		Brokers:      brokers,
		Topic:        topic,
		RetryMax:     3,
		Timeout:      10 * time.Second,
		RequiredAcks: sarama.WaitForAll,
	}
}

// SaramaConfig renders the sarama producer configuration.
func (c KafkaConfig) SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = c.RequiredAcks
	cfg.Producer.Retry.Max = c.RetryMax
	cfg.Producer.Timeout = c.Timeout
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

// KafkaSink publishes events keyed by desk code, so all events of one desk land
// on the same partition in order.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink connects a synchronous producer to the configured brokers.
func NewKafkaSink(config KafkaConfig) (*KafkaSink, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	producer, err := sarama.NewSyncProducer(config.Brokers, config.SaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, config.Topic), nil
}

// NewKafkaSinkWithProducer wraps an existing producer.
func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

// Record implements Sink.
func (s *KafkaSink) Record(_ context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic:     s.topic,
		Key:       sarama.StringEncoder(event.Key()),
		Value:     sarama.ByteEncoder(body),
		Timestamp: event.OccurredAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
