package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/talkbridge/internal/model"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/metrics"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

// Publisher receives every message a Watcher observes.
type Publisher interface {
	Publish(ctx context.Context, ev *model.RoomEvent) (uint64, error)
}

// WatcherConfig tunes a Watcher.
type WatcherConfig struct {
	// PollTimeout is how long the server holds each long-poll.
	PollTimeout time.Duration
	// Backoff is the pause after a failed poll.
	Backoff time.Duration
}

// Watcher long-polls rooms and hands each new message to the relay and the
// responder. Either may be nil.
type Watcher struct {
	rooms     *RoomService
	publisher Publisher
	responder *Responder
	cfg       WatcherConfig
	logger    *logger.Logger
}

// NewWatcher creates a watcher.
func NewWatcher(rooms *RoomService, publisher Publisher, responder *Responder, cfg WatcherConfig, log *logger.Logger) *Watcher {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = talk.DefaultReceiveTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}
	return &Watcher{
		rooms:     rooms,
		publisher: publisher,
		responder: responder,
		cfg:       cfg,
		logger:    log.Named("watcher"),
	}
}

// Run watches every token until ctx is cancelled. It starts one goroutine
// per room and returns once all of them have stopped.
func (w *Watcher) Run(ctx context.Context, tokens []string) {
	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			w.Watch(ctx, token)
		}(token)
	}
	wg.Wait()
}

// Watch runs the poll loop of one room until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, token string) {
	log := w.logger.WithRoom(token)

	metrics.WatchedRooms.Inc()
	defer metrics.WatchedRooms.Dec()

	conv, cursor, err := w.start(ctx, token)
	for err != nil {
		if ctx.Err() != nil {
			return
		}
		if terminal(err) {
			log.Error("cannot watch room", zap.Error(err))
			return
		}
		log.Warn("cannot start watching room", zap.Error(err))
		if !w.sleep(ctx) {
			return
		}
		conv, cursor, err = w.start(ctx, token)
	}

	log.Info("watching room", zap.Int("cursor", cursor))

	for ctx.Err() == nil {
		next, err := w.poll(ctx, conv, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("poll failed", zap.Error(err), zap.Int("cursor", cursor))
			if terminal(err) {
				log.Error("stopped watching room", zap.Error(err))
				return
			}
			if !w.sleep(ctx) {
				return
			}
			continue
		}
		cursor = next
	}
}

// start resolves the room and the id of its newest message, so the first
// poll only returns what arrives afterwards.
func (w *Watcher) start(ctx context.Context, token string) (*talk.Conversation, int, error) {
	conv, err := w.rooms.Get(ctx, token)
	if err != nil {
		return nil, 0, err
	}

	page, err := conv.Chat().ReceivePage(ctx, talk.ReceiveOptions{Limit: 1, KeepUnread: true})
	if err != nil {
		return nil, 0, err
	}

	if page.LastGiven > 0 {
		return conv, page.LastGiven, nil
	}
	if len(page.Messages) > 0 {
		return conv, page.Messages[0].ID, nil
	}
	return conv, 0, nil
}

// poll runs one long-poll and dispatches its messages. It returns the next
// cursor, taken from the Last-Given header of this poll. The Chat is shared
// with the responder and the gateway, so its header cache is not used here.
func (w *Watcher) poll(ctx context.Context, conv *talk.Conversation, cursor int) (int, error) {
	page, err := conv.Chat().ReceivePage(ctx, talk.ReceiveOptions{
		LookIntoFuture:     true,
		LastKnownMessageID: cursor,
		Timeout:            w.cfg.PollTimeout,
		KeepUnread:         true,
	})
	if err != nil {
		return cursor, err
	}

	for _, m := range page.Messages {
		w.dispatch(ctx, conv, m)
	}

	next := cursor
	if page.LastGiven > next {
		next = page.LastGiven
	}
	for _, m := range page.Messages {
		if m.ID > next {
			next = m.ID
		}
	}
	return next, nil
}

func (w *Watcher) dispatch(ctx context.Context, conv *talk.Conversation, m *talk.Message) {
	msg := model.MessageFromTalk(conv.Token, m)

	if w.publisher != nil {
		ev := &model.RoomEvent{
			ID:         conv.Token + "-" + strconv.Itoa(m.ID),
			Room:       conv.Token,
			Type:       model.EventTypeFor(msg),
			Message:    msg,
			ObservedAt: time.Now().UTC(),
		}
		if _, err := w.publisher.Publish(ctx, ev); err != nil {
			w.logger.Warn("relay publish failed",
				zap.String("token", conv.Token),
				zap.Int("message_id", m.ID),
				zap.Error(err),
			)
		} else {
			metrics.RelayPublishedTotal.WithLabelValues(string(m.MessageType)).Inc()
		}
	}

	if w.responder != nil {
		if err := w.responder.Handle(ctx, conv, m); err != nil {
			w.logger.Warn("auto-reply failed",
				zap.String("token", conv.Token),
				zap.Int("message_id", m.ID),
				zap.Error(err),
			)
		}
	}
}

// terminal reports errors that retrying cannot fix.
func terminal(err error) bool {
	return errors.Is(err, talk.ErrNotFound) || errors.Is(err, talk.ErrNotCapable) ||
		errors.Is(err, talk.ErrUnauthorized)
}

func (w *Watcher) sleep(ctx context.Context) bool {
	t := time.NewTimer(w.cfg.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
