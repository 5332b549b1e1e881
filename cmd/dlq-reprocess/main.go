package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	envKafkaBrokers    = "RESTAURANT_KAFKA_BROKERS"
)

type config struct {
	brokers     []string
	sourceTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return a.consumer.ConsumePartition(topic, partition, offset)
}

func (a saramaConsumerAdapter) Close() error {
	return a.consumer.Close()
}

var newReplayDependencies = func(cfg config) (offsetClient, partitionConsumerSource, replayProducer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	consumer := saramaConsumerAdapter{consumer: rawConsumer}

	if !cfg.execute {
		return client, consumer, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return client, consumer, producer, nil
}

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("dlq replay failed")
	}
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan/replay")
	fs.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv(envKafkaBrokers)
	}
	cfg.brokers = parseBrokers(brokersRaw)
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)

	var errs []error
	if len(cfg.brokers) == 0 {
		errs = append(errs, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers))
	}
	if cfg.sourceTopic == "" {
		errs = append(errs, errors.New("source-topic is required"))
	}
	if cfg.limit <= 0 {
		errs = append(errs, errors.New("limit must be > 0"))
	}
	if cfg.idleTimeout <= 0 {
		errs = append(errs, errors.New("idle-timeout must be > 0"))
	}
	if err := errors.Join(errs...); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	brokers := make([]string, 0)
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	client, consumer, producer, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		_ = consumer.Close()
		_ = client.Close()
	}()

	return (&replayer{
		cfg:      cfg,
		client:   client,
		consumer: consumer,
		producer: producer,
		logger:   log.WithField("component", "dlq-reprocess"),
		now:      time.Now,
	}).Run(ctx)
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

// replayer перечитывает DLQ и возвращает письма в исходные topics.
// В dry-run режиме кандидаты только логируются.
type replayer struct {
	cfg      config
	client   offsetClient
	consumer partitionConsumerSource
	producer replayProducer
	logger   *log.Entry
	now      func() time.Time
}

func (r *replayer) Run(ctx context.Context) (err error) {
	if r.cfg.execute && r.producer == nil {
		return errors.New("producer is required in execute mode")
	}

	partitions, err := r.client.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total replayStats
	defer func() {
		mode := "dry-run"
		if r.cfg.execute {
			mode = "execute"
		}
		r.logger.WithFields(log.Fields{
			"mode":      mode,
			"processed": total.processed,
			"replayed":  total.replayed,
			"skipped":   total.skipped,
		}).Info("dlq replay finished")
	}()

	for _, partition := range partitions {
		remaining := r.cfg.limit - total.processed
		if remaining <= 0 {
			break
		}
		stats, err := r.replayPartition(ctx, partition, remaining)
		total.add(stats)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *replayer) replayPartition(ctx context.Context, partition int32, limit int) (replayStats, error) {
	var stats replayStats

	oldest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	start := oldest
	if r.cfg.fromNewest {
		start = max(newest-int64(limit), oldest)
	}

	pc, err := r.consumer.ConsumePartition(r.cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr := <-pc.Errors():
			if cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idle.Reset(r.cfg.idleTimeout)

			stats.processed++
			if err := r.replayMessage(msg); err != nil {
				if errors.Is(err, errPublish) {
					return stats, err
				}
				stats.skipped++
				r.logger.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skip unsupported dlq message")
				continue
			}
			stats.replayed++

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

var errPublish = errors.New("publish replay message")

func (r *replayer) replayMessage(msg *sarama.ConsumerMessage) error {
	replay, err := kafka.DecodeDeadLetter(msg.Value, r.now())
	if err != nil {
		return err
	}

	fields := log.Fields{
		"partition":    msg.Partition,
		"offset":       msg.Offset,
		"target_topic": replay.Topic,
		"key":          replay.Key,
	}
	if !r.cfg.execute {
		r.logger.WithFields(fields).Info("dlq replay candidate")
		return nil
	}

	_, _, err = r.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     replay.Topic,
		Key:       sarama.StringEncoder(replay.Key),
		Value:     sarama.ByteEncoder(replay.Value),
		Timestamp: r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errPublish, err)
	}
	r.logger.WithFields(fields).Debug("dlq message replayed")
	return nil
}
