package searchevents

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestPublish_SendsJSONToTopic(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	var got Event
	prod.ExpectInputWithCheckerFunctionAndSucceed(func(b []byte) error {
		return json.Unmarshal(b, &got)
	})

	p := NewWithProducer(prod, "search-events", 4, nil)
	p.Publish(Event{Kind: "nearby", Lat: "37.7749", Lon: "-122.4194", Results: 5})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got.Kind != "nearby" || got.Results != 5 || got.TS.IsZero() {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.Statuses == nil {
		t.Fatal("statuses must encode as [] not null")
	}
}

func TestPublish_DropsWhenQueueFull(t *testing.T) {
	// a producer whose input is never drained keeps the forwarder blocked
	prod := &stuckProducer{input: make(chan *sarama.ProducerMessage), errs: make(chan *sarama.ProducerError)}
	p := NewWithProducer(prod, "t", 1, nil)

	done := make(chan struct{})
	go func() {
		for range 10 {
			p.Publish(Event{Kind: "applicant"})
		}
		close(done)
	}()
	<-done // Publish returned for every event without blocking
}

type stuckProducer struct {
	sarama.AsyncProducer
	input chan *sarama.ProducerMessage
	errs  chan *sarama.ProducerError
}

func (s *stuckProducer) Input() chan<- *sarama.ProducerMessage { return s.input }
func (s *stuckProducer) Errors() <-chan *sarama.ProducerError  { return s.errs }

func TestPublish_AfterCloseIsDropped(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	p := NewWithProducer(prod, "search-events", 4, nil)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Publish after Close panicked: %v", r)
		}
	}()
	p.Publish(Event{Kind: "nearby"})
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
