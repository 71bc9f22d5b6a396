package stream

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
)

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher ships committed event records to a Kafka topic. Records
// are keyed by tx hash so the events of one transaction stay ordered
// within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	// bounds one Publish call; the sequencer waits on it every block
	timeout time.Duration
}

// DefaultPublishTimeout caps how long a block commit waits on the brokers
const DefaultPublishTimeout = 2 * time.Second

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: time.Second,
			ReadTimeout:  time.Second,
			MaxAttempts:  2,
		},
		topic:   topic,
		timeout: DefaultPublishTimeout,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, records []eventlog.Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return errors.Wrapf(err, "marshal record %d", r.Seq)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.TxHash.Hex()),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event", Value: []byte(r.Kind)},
				{Key: "seq", Value: []byte(strconv.FormatUint(r.Seq, 10))},
				{Key: "height", Value: []byte(strconv.FormatInt(r.Height, 10))},
			},
		})
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrapf(err, "write %d records to %s", len(msgs), p.topic)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ eventlog.Publisher = (*KafkaPublisher)(nil)
