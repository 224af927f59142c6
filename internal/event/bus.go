// Package event provides a pub/sub event system using watermill.
package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType represents the type of event.
type EventType string

const (
	CommandExecuted   EventType = "command.executed"
	ToolCalled        EventType = "tool.called"
	AgentStarted      EventType = "agent.started"
	AgentFinished     EventType = "agent.finished"
	FileEdited        EventType = "file.edited"
	ApprovalGranted   EventType = "permission.approved"
	ApprovalsReloaded EventType = "permission.reloaded"
)

// Topic is the watermill topic every event is mirrored on.
const Topic = "events"

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

// anyType keys subscribers that receive every event.
const anyType EventType = ""

// Bus is the event bus. Typed subscribers are called directly so Data keeps
// its Go type; every event is also published as a JSON message on the
// watermill gochannel so stream consumers (see Stream) can read it.
type Bus struct {
	mu     sync.RWMutex
	pubsub *gochannel.GoChannel
	subs   map[EventType]map[uint64]Subscriber
	nextID atomic.Uint64
	closed bool
}

var globalBus = newBus()

func newBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NopLogger{},
		),
		subs: make(map[EventType]map[uint64]Subscriber),
	}
}

// NewBus creates a new event bus instance.
func NewBus() *Bus {
	return newBus()
}

// Subscribe registers fn for one event type on the global bus and returns
// the function that removes it.
func Subscribe(eventType EventType, fn Subscriber) func() {
	return globalBus.Subscribe(eventType, fn)
}

func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	return b.add(eventType, fn)
}

// SubscribeAll registers fn for every event on the global bus.
func SubscribeAll(fn Subscriber) func() {
	return globalBus.SubscribeAll(fn)
}

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	return b.add(anyType, fn)
}

func (b *Bus) add(key EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	id := b.nextID.Add(1)
	if b.subs[key] == nil {
		b.subs[key] = make(map[uint64]Subscriber)
	}
	b.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[key], id)
		})
	}
}

// Publish delivers event to each subscriber on its own goroutine, so
// subscribers see no ordering guarantee across events.
func Publish(event Event) {
	globalBus.Publish(event)
}

func (b *Bus) Publish(event Event) {
	subs, ok := b.collect(event.Type)
	if !ok {
		return
	}
	b.mirror(event)

	for _, sub := range subs {
		go sub(event)
	}
}

// PublishSync sends an event to all subscribers before returning.
func PublishSync(event Event) {
	globalBus.PublishSync(event)
}

func (b *Bus) PublishSync(event Event) {
	subs, ok := b.collect(event.Type)
	if !ok {
		return
	}
	b.mirror(event)

	for _, sub := range subs {
		sub(event)
	}
}

func (b *Bus) collect(eventType EventType) ([]Subscriber, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, false
	}

	subs := make([]Subscriber, 0, len(b.subs[eventType])+len(b.subs[anyType]))
	for _, fn := range b.subs[eventType] {
		subs = append(subs, fn)
	}
	if eventType != anyType {
		for _, fn := range b.subs[anyType] {
			subs = append(subs, fn)
		}
	}
	return subs, true
}

// mirror publishes the event on the watermill topic. Events whose data
// cannot be marshaled are only delivered to direct subscribers.
func (b *Bus) mirror(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(event.Type))
	msg.Metadata.Set("published_at", time.Now().UTC().Format(time.RFC3339Nano))
	_ = b.pubsub.Publish(Topic, msg)
}

// Envelope is an event as read back from the watermill stream.
type Envelope struct {
	Type        EventType       `json:"type"`
	Data        json.RawMessage `json:"data"`
	PublishedAt string          `json:"-"`
}

// Stream subscribes to the watermill topic and returns decoded envelopes
// until ctx is cancelled or the bus is closed.
func Stream(ctx context.Context) (<-chan Envelope, error) {
	return globalBus.Stream(ctx)
}

func (b *Bus) Stream(ctx context.Context) (<-chan Envelope, error) {
	messages, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Envelope)
	go func() {
		defer close(out)
		for msg := range messages {
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err == nil {
				env.PublishedAt = msg.Metadata.Get("published_at")
				select {
				case out <- env:
				case <-ctx.Done():
					msg.Ack()
					return
				}
			}
			msg.Ack()
		}
	}()
	return out, nil
}

// Reset replaces the global bus (for testing).
func Reset() {
	old := globalBus
	globalBus = newBus()
	_ = old.Close()
}

// Close closes the bus and drops all subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subs = make(map[EventType]map[uint64]Subscriber)
	b.mu.Unlock()

	return b.pubsub.Close()
}
