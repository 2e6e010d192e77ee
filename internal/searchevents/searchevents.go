// Package searchevents publishes one Kafka record per completed search.
package searchevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/food-facility-search/internal/core/observability"
)

type Event struct {
	Kind      string    `json:"kind"` // "nearby" or "applicant"
	Lat       string    `json:"lat,omitempty"`
	Lon       string    `json:"lon,omitempty"`
	Applicant string    `json:"applicant,omitempty"`
	Statuses  []string  `json:"statuses"`
	Results   int       `json:"results"`
	CacheHit  bool      `json:"cache_hit,omitempty"`
	TS        time.Time `json:"ts"`
}

// Publisher never blocks the caller: when its queue is full the event is
// dropped.
type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	stopped chan struct{}
	once    sync.Once

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("searchevents: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, logger), nil
}

// NewWithProducer wraps an existing producer (tests use sarama mocks).
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		logger:  logger,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("searchevents marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Kind),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncKafkaError("search_events", "produce")
				p.logger.Warn("searchevents producer error", "err", err)
			}
		}
	}()

	return p
}

func (p *Publisher) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	if ev.Statuses == nil {
		ev.Statuses = []string{}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		observability.IncKafkaError("search_events", "closed")
		return
	}
	select {
	case p.events <- ev:
	default:
		observability.IncKafkaError("search_events", "dropped")
	}
}

// Close drains queued events and closes the producer. Events published
// after Close are dropped.
func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()

		<-p.stopped
		if cerr := p.prod.Close(); cerr != nil {
			err = fmt.Errorf("searchevents: close producer: %w", cerr)
		}
	})
	return err
}
