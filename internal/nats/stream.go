package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/talkbridge/internal/model"
)

const (
	// StreamName is the JetStream stream holding relayed room events.
	StreamName = "TALK"

	// SubjectPrefix is the prefix for all relay subjects.
	SubjectPrefix = "talk"
)

// Relay publishes observed Talk messages to JetStream and replays them.
type Relay struct {
	client *Client
}

// NewRelay creates a relay on an open connection.
func NewRelay(client *Client) *Relay {
	return &Relay{client: client}
}

// EnsureStream creates the relay stream if it does not exist.
func (r *Relay) EnsureStream(ctx context.Context) error {
	js := r.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Duplicates:  10 * time.Minute,
		Description: "Messages observed in watched Talk rooms",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// MessageSubject returns the subject for a room event.
func MessageSubject(token string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, subjectToken(token), eventType)
}

// RoomFilter returns the filter subject for every event of a room.
func RoomFilter(token string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, subjectToken(token))
}

// subjectToken keeps subject separators and wildcards out of a room token.
func subjectToken(token string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(token)
}

// Publish writes ev to the stream. The event id doubles as the JetStream
// message id so a republished message is deduplicated.
func (r *Relay) Publish(ctx context.Context, ev *model.RoomEvent) (uint64, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := r.client.JetStream().Publish(ctx, MessageSubject(ev.Room, ev.Type), data,
		jetstream.WithMsgID(ev.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// Replay returns up to limit events of a room stored after afterSequence.
func (r *Relay) Replay(ctx context.Context, token string, afterSequence uint64, limit int) ([]model.RoomEvent, uint64, error) {
	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: RoomFilter(token),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := r.client.JetStream().CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch events: %w", err)
	}

	var events []model.RoomEvent
	var lastSequence uint64
	for msg := range batch.Messages() {
		var ev model.RoomEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			ev.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}
		events = append(events, ev)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, 0, fmt.Errorf("batch error: %w", err)
	}

	return events, lastSequence, nil
}
