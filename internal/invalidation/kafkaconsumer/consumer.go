// Package kafkaconsumer purges the nearby-search cache when the permit
// dataset changes.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/food-facility-search/internal/cache"
	"github.com/mohammed-shakir/food-facility-search/internal/cache/keys"
	obs "github.com/mohammed-shakir/food-facility-search/internal/core/observability"
	"github.com/mohammed-shakir/food-facility-search/internal/invalidation"
	mylog "github.com/mohammed-shakir/food-facility-search/internal/logger"
)

var errNotReady = errors.New("invalidation consumer has no active session")

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	cache  cache.Interface
	dedupe *tsDedupe
	ready  atomic.Bool
}

func New(cfg Config, logger *slog.Logger, c cache.Interface) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		cache:  c,
		dedupe: newTSDedupe(cfg.DedupeSize),
	}
}

// Start consumes invalidation events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := c.handler()
	ctx = mylog.WithComponent(ctx, "invalidation_consumer")

	c.logger.InfoContext(ctx, "kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
			obs.IncKafkaError("invalidation", "consume")
			c.logger.ErrorContext(ctx, "kafka consumer error", "err", err, "topic", c.cfg.Topic)
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.RetryBackoff):
			}
		}
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "kafka invalidation consumer shutting down")
			return nil
		}
	}
}

func (c *Consumer) handler() *groupHandler {
	return &groupHandler{
		process: c.ProcessOne,
		onSetup: func(claims map[string][]int32) {
			c.ready.Store(true)
			c.logger.Info("invalidation consumer session started", "claims", claims)
		},
		onClean: func() { c.ready.Store(false) },
	}
}

// Ping reports whether a consumer group session is active.
func (c *Consumer) Ping(_ context.Context) error {
	if !c.ready.Load() {
		return errNotReady
	}
	return nil
}

// ProcessOne purges nearby results for one event. Undecodable or invalid
// events are logged and skipped; a failed purge is returned so the message
// is retried.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	log := c.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaError("invalidation", "decode")
		log.WarnContext(ctx, "skipping undecodable invalidation event", "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncKafkaError("invalidation", "validate")
		log.WarnContext(ctx, "skipping invalid invalidation event", "err", err)
		return nil
	}
	if !c.dedupe.shouldApply(ev.Dataset, ev.TS) {
		log.DebugContext(ctx, "stale invalidation event (skipping)", "dataset", ev.Dataset, "ts", ev.TS)
		return nil
	}

	n, err := c.cache.PurgePrefix(ctx, keys.NearbyPrefix)
	obs.ObserveUpstreamLatency("cache_purge", err, time.Since(start).Seconds())
	if err != nil {
		obs.IncKafkaError("invalidation", "purge")
		log.ErrorContext(ctx, "cache purge failed", "err", err, "cache", c.cache.Name())
		return fmt.Errorf("purge %s: %w", c.cache.Name(), err)
	}
	c.dedupe.applied(ev.Dataset, ev.TS)
	obs.IncCachePurge()

	log.InfoContext(ctx, "invalidated nearby cache",
		"op", ev.Op, "dataset", ev.Dataset, "source", ev.Source, "keys", n)
	return nil
}
