package changestream

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/qubitrhythm/disensor/internal/errors"
)

const kafkaSourceName = "kafka"

// KafkaConfig selects the topic and consumer group.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

// messageReader is the part of *kafka.Reader the source uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes one topic in a consumer group and commits each
// message after it has been handed to the sink.
type KafkaSource struct {
	cfg      KafkaConfig
	reader   messageReader
	sink     Sink
	recorder Recorder
}

// NewKafkaSource validates cfg and creates the reader. rec may be nil.
func NewKafkaSource(cfg KafkaConfig, sink Sink, rec Recorder) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, kafkaConfigError("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, kafkaConfigError("topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, kafkaConfigError("consumer group must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newKafkaSource(cfg, reader, sink, rec), nil
}

func newKafkaSource(cfg KafkaConfig, reader messageReader, sink Sink, rec Recorder) *KafkaSource {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if rec == nil {
		rec = noopRecorder{}
	}
	return &KafkaSource{cfg: cfg, reader: reader, sink: sink, recorder: rec}
}

// Name identifies the source in logs and metrics.
func (s *KafkaSource) Name() string { return kafkaSourceName }

// Run consumes until ctx is cancelled or the reader is closed, then closes the reader.
func (s *KafkaSource) Run(ctx context.Context) error {
	log.Info("change stream consumer started",
		"source", kafkaSourceName,
		"topic", s.cfg.Topic,
		"group", s.cfg.GroupID,
		"brokers", strings.Join(s.cfg.Brokers, ","))
	defer func() {
		if err := s.reader.Close(); err != nil {
			log.Warn("closing kafka reader", "error", err)
		}
		log.Info("change stream consumer stopped", "source", kafkaSourceName)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
		msg, err := s.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			log.Error("kafka fetch failed", "error", err)
			continue
		}

		handle(kafkaSourceName, s.sink, s.recorder, msg.Value, "")

		commitCtx, commitCancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
		if err := s.reader.CommitMessages(commitCtx, msg); err != nil && ctx.Err() == nil {
			log.Error("kafka commit failed", "offset", msg.Offset, "error", err)
		}
		commitCancel()
	}
}

func kafkaConfigError(msg string) error {
	return errors.Newf("kafka: %s", msg).
		Component("changestream").
		Category(errors.CategoryConfiguration).
		Build()
}
