package metrics

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"sqlgateway/internal/logger"
)

// KafkaSink publishes every sampled PerformanceRecord to a topic via an
// async Sarama producer.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
}

// NewKafkaSink dials brokers eagerly; callers should treat a non-nil error
// as "fall back to an in-memory sink", not a fatal startup condition.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	cfg := sarama.NewConfig()
	// Acks are discarded; leaving Successes on without a drain loop would
	// back-pressure Input() once the channel buffer fills.
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	sink := &KafkaSink{producer: producer, topic: topic}
	go sink.drainErrors()
	return sink, nil
}

func (s *KafkaSink) drainErrors() {
	log := logger.WithComponent("metrics")
	for perr := range s.producer.Errors() {
		log.Warn("metrics kafka delivery failed", "error", perr.Err.Error())
	}
}

func (s *KafkaSink) Send(_ context.Context, rec PerformanceRecord) {
	msg, err := json.Marshal(rec)
	if err != nil {
		logger.WithComponent("metrics").Warn("marshaling performance record failed", "error", err.Error())
		return
	}

	s.producer.Input() <- &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(rec.EndpointName),
		Value: sarama.ByteEncoder(msg),
		Headers: []sarama.RecordHeader{
			{Key: []byte("request-id"), Value: []byte(rec.RequestID)},
		},
	}
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
