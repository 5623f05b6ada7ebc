// Package service holds the bridge logic between the gateway and Talk.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/capitalize-ai/talkbridge/internal/model"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

// RoomService fetches rooms through the Talk client and keeps recently used
// snapshots in a short-lived cache keyed by token.
type RoomService struct {
	client *talk.Client
	cache  *expirable.LRU[string, *talk.Conversation]
	logger *logger.Logger
}

// NewRoomService creates a room service. size bounds the cache and ttl is
// how long a snapshot is served before it is fetched again.
func NewRoomService(client *talk.Client, size int, ttl time.Duration, log *logger.Logger) *RoomService {
	if size <= 0 {
		size = 256
	}
	return &RoomService{
		client: client,
		cache:  expirable.NewLRU[string, *talk.Conversation](size, nil, ttl),
		logger: log.Named("rooms"),
	}
}

// Client returns the underlying Talk client.
func (s *RoomService) Client() *talk.Client {
	return s.client
}

// Ready reports whether capability discovery succeeds.
func (s *RoomService) Ready(ctx context.Context) error {
	_, err := s.client.Capabilities(ctx)
	return err
}

// List returns the rooms of the bridge user and refreshes the cache with
// every snapshot.
func (s *RoomService) List(ctx context.Context) (*model.ListRoomsResponse, error) {
	api, err := s.client.Conversations(ctx)
	if err != nil {
		return nil, err
	}

	convs, err := api.List(ctx, talk.ListOptions{})
	if err != nil {
		return nil, err
	}

	rooms := make([]model.Room, 0, len(convs))
	for _, c := range convs {
		s.remember(c)
		rooms = append(rooms, model.RoomFromConversation(c))
	}

	return &model.ListRoomsResponse{Rooms: rooms, Total: len(rooms)}, nil
}

// Get returns a room by token, from the cache when fresh.
func (s *RoomService) Get(ctx context.Context, token string) (*talk.Conversation, error) {
	if conv, ok := s.cache.Get(token); ok {
		return conv, nil
	}

	api, err := s.client.Conversations(ctx)
	if err != nil {
		return nil, err
	}

	conv, err := api.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	s.remember(conv)
	return conv, nil
}

// Create creates a room from a gateway request.
func (s *RoomService) Create(ctx context.Context, req *model.CreateRoomRequest) (*talk.Conversation, error) {
	typ, err := talk.ParseConversationType(req.Type)
	if err != nil {
		return nil, err
	}

	api, err := s.client.Conversations(ctx)
	if err != nil {
		return nil, err
	}

	conv, err := api.New(ctx, talk.CreateOptions{
		Type:   typ,
		Invite: req.Invite,
		Source: req.Source,
		Name:   req.Name,
	})
	if err != nil {
		return nil, err
	}

	s.remember(conv)
	s.logger.Info("room created",
		zap.String("token", conv.Token),
		zap.String("type", typ.String()),
	)

	return conv, nil
}

// Rename renames a room. Cached snapshots are shared by concurrent
// requests and are never mutated: the rename runs on a copy, which then
// replaces the cache entry.
func (s *RoomService) Rename(ctx context.Context, token, name string) (*talk.Conversation, error) {
	cached, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	conv := *cached
	if err := conv.Rename(ctx, name); err != nil {
		return nil, err
	}

	s.cache.Add(token, &conv)
	return &conv, nil
}

// Delete deletes a room and forgets its snapshot.
func (s *RoomService) Delete(ctx context.Context, token string) error {
	conv, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if err := conv.Delete(ctx); err != nil {
		return err
	}

	s.cache.Remove(token)
	s.logger.Info("room deleted", zap.String("token", token))
	return nil
}

// Participants lists the attendees of a room.
func (s *RoomService) Participants(ctx context.Context, token string) (*model.ListParticipantsResponse, error) {
	conv, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	parts, err := conv.Participants(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list participants of %s: %w", token, err)
	}

	out := make([]model.Participant, 0, len(parts))
	for _, p := range parts {
		out = append(out, model.ParticipantFromTalk(p))
	}
	return &model.ListParticipantsResponse{Participants: out}, nil
}

// Invalidate drops the cached snapshot of a room.
func (s *RoomService) Invalidate(token string) {
	s.cache.Remove(token)
}

// remember caches conv unless a snapshot of the same room is already held.
// Keeping the existing entry keeps its Chat, so cursor state survives a
// List refresh.
func (s *RoomService) remember(conv *talk.Conversation) {
	if _, ok := s.cache.Peek(conv.Token); ok {
		return
	}
	s.cache.Add(conv.Token, conv)
}
