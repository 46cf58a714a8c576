package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type Message struct {
	Topic string
	Key   string
	Value []byte
}

// RecordingPublisher keeps every published message in memory.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []Message
}

func (p *RecordingPublisher) Publish(_ context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Key: key, Value: value})
	return nil
}

func (p *RecordingPublisher) OnTopic(topic string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Decode unmarshals every message on topic into a fresh T.
func Decode[T any](p *RecordingPublisher, topic string) []T {
	var out []T
	for _, m := range p.OnTopic(topic) {
		var v T
		if json.Unmarshal(m.Value, &v) == nil {
			out = append(out, v)
		}
	}
	return out
}
