// Package pubsub publishes run notifications to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Sender is the subset of *pubsub.Topic used here.
type Sender interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Publisher wraps a Pub/Sub topic publisher.
type Publisher struct {
	sender Sender
	attrs  map[string]string
	close  func() error
}

// New creates a Publisher for the provided topic. attrs are copied
// onto every message.
func New(sender Sender, attrs map[string]string) *Publisher {
	return &Publisher{sender: sender, attrs: attrs}
}

// Dial connects to project and returns a Publisher for topic that owns the
// underlying client. Call Close when done.
func Dial(ctx context.Context, projectID, topic string) (*Publisher, error) {
	if projectID == "" || topic == "" {
		return nil, errors.New("pubsub project id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init: %w", err)
	}
	t := client.Topic(topic)
	p := New(t, map[string]string{"source": "weekly-snapshots"})
	p.close = func() error {
		t.Stop()
		if err := client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
		return nil
	}
	return p, nil
}

// Publish marshals the payload to JSON, publishes it with event recorded as
// an attribute and waits for the server-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) (string, error) {
	if p == nil || p.sender == nil {
		return "", errors.New("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: make(map[string]string, len(p.attrs)+1)}
	for k, v := range p.attrs {
		msg.Attributes[k] = v
	}
	if event != "" {
		msg.Attributes["event"] = event
	}

	id, err := p.sender.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client when owned.
func (p *Publisher) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}
