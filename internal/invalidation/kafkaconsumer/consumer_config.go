package kafkaconsumer

import (
	"time"

	"github.com/mohammed-shakir/food-facility-search/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	RetryBackoff        time.Duration
	DedupeSize          int
}

func FromConfig(c config.InvalidationCfg) Config {
	brokers := c.Brokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	topic := c.Topic
	if topic == "" {
		topic = "permit-invalidation"
	}
	group := c.GroupID
	if group == "" {
		group = "facility-cache-invalidator"
	}
	return Config{
		Brokers:             brokers,
		Topic:               topic,
		GroupID:             group,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: false,
		RetryBackoff:        2 * time.Second,
		DedupeSize:          256,
	}
}
