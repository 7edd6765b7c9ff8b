// Package bus carries pipeline messages between stages over Kafka topics,
// one topic per stage. Offsets are committed only after a message is
// handled, and the fetch position is rewound to the first unhandled record,
// so a transient failure leads to redelivery.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caracol-labs/salesmachine/internal/resilience"
)

// Stage names double as topic suffixes.
const (
	StageDiscovery   = "discovery"
	StageFingerprint = "fingerprint"
	StageDecision    = "decision"
	StageEnrich      = "enrich"
	StageCopies      = "copies"
)

// redeliveryBackoff spaces out re-fetches of a rewound record so a
// persistently failing message does not spin the consumer.
const redeliveryBackoff = 2 * time.Second

// Topic builds the topic name for a stage.
func Topic(prefix, stage string) string {
	return prefix + "." + stage
}

// Publisher sends messages to a stage topic, keyed by domain so all messages
// for one lead land on the same partition.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close()
}

// KafkaPublisher implements Publisher on a franz-go client.
type KafkaPublisher struct {
	client *kgo.Client
}

// NewPublisher connects a producer to the given brokers.
func NewPublisher(brokers []string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, eris.Wrap(err, "bus: create producer")
	}
	return &KafkaPublisher{client: client}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: payload}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return eris.Wrapf(err, "bus: publish %s", topic)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// Handler processes one message. A nil return or a permanent error acks the
// message; a transient error leaves it uncommitted for redelivery.
type Handler func(ctx context.Context, key string, payload []byte) error

// Consumer drives one stage handler from its topic within a consumer group.
type Consumer struct {
	client      *kgo.Client
	topic       string
	handler     Handler
	maxInFlight int
	backoff     time.Duration
}

// NewConsumer joins the consumer group for a stage topic. Auto-commit is
// disabled: the consumer commits each record explicitly after handling.
// Rebalances are blocked while a poll is being processed so the fetch
// position can be rewound on partitions the consumer still owns.
func NewConsumer(brokers []string, group, topic string, maxInFlight int, handler Handler) (*Consumer, error) {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "bus: create consumer %s", topic)
	}
	return &Consumer{
		client:      client,
		topic:       topic,
		handler:     handler,
		maxInFlight: maxInFlight,
		backoff:     redeliveryBackoff,
	}, nil
}

// Run polls and handles messages until the context is canceled. Partitions
// are processed concurrently up to the in-flight bound; records within a
// partition are handled in order, and a transient failure stops the
// partition's batch at the failed record.
//
// The committed offset alone does not bring an uncommitted record back:
// franz-go keeps fetching from its in-memory position, and the next commit
// on the partition would seal past the failure. After each poll the fetch
// position of every failed partition is therefore rewound to the first
// unhandled record, so it is fetched and handled again.
func (c *Consumer) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("topic", c.topic))
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error("fetch error", zap.Int32("partition", partition), zap.Error(err))
		})

		var mu sync.Mutex
		var failed []*kgo.Record

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.maxInFlight)
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			records := p.Records
			g.Go(func() error {
				for _, record := range records {
					if err := c.handle(gctx, log, record); err != nil {
						mu.Lock()
						failed = append(failed, record)
						mu.Unlock()
						return nil
					}
				}
				return nil
			})
		})
		_ = g.Wait()

		if len(failed) > 0 {
			c.client.SetOffsets(rewindTo(failed))
		}
		c.client.AllowRebalance()

		if len(failed) > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}
}

// rewindTo maps each failed record to the fetch offset that re-delivers it,
// keeping the lowest offset per partition.
func rewindTo(failed []*kgo.Record) map[string]map[int32]kgo.EpochOffset {
	offsets := make(map[string]map[int32]kgo.EpochOffset)
	for _, r := range failed {
		parts := offsets[r.Topic]
		if parts == nil {
			parts = make(map[int32]kgo.EpochOffset)
			offsets[r.Topic] = parts
		}
		if cur, ok := parts[r.Partition]; !ok || r.Offset < cur.Offset {
			parts[r.Partition] = kgo.EpochOffset{Epoch: r.LeaderEpoch, Offset: r.Offset}
		}
	}
	return offsets
}

// shouldCommit decides whether a handler outcome acks the record. Permanent
// errors are acked alongside successes; everything else is redelivered.
func shouldCommit(err error) bool {
	return err == nil || resilience.IsPermanent(err)
}

// handle runs the stage handler for one record. The returned error is
// non-nil only when the record was left uncommitted.
func (c *Consumer) handle(ctx context.Context, log *zap.Logger, record *kgo.Record) error {
	err := c.handler(ctx, string(record.Key), record.Value)
	if !shouldCommit(err) {
		log.Warn("rewinding message for redelivery",
			zap.String("key", string(record.Key)),
			zap.Int64("offset", record.Offset),
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err))
		return err
	}
	if err != nil {
		log.Warn("dropping message after permanent error",
			zap.String("key", string(record.Key)), zap.Error(err))
	}

	if err := c.client.CommitRecords(ctx, record); err != nil {
		log.Error("commit failed", zap.String("key", string(record.Key)), zap.Error(err))
		return err
	}
	return nil
}

// Close leaves the group and releases the client. The client may be blocking
// a rebalance when this is called, so the unblocking close is required.
func (c *Consumer) Close() {
	c.client.CloseAllowingRebalance()
}
