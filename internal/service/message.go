package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/talkbridge/internal/model"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
	"github.com/capitalize-ai/talkbridge/pkg/talk/richobject"
)

// MessageService reads and posts chat messages of rooms.
type MessageService struct {
	rooms  *RoomService
	logger *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(rooms *RoomService, log *logger.Logger) *MessageService {
	return &MessageService{
		rooms:  rooms,
		logger: log.Named("messages"),
	}
}

// History returns one page of older messages, newest first. lastKnown is
// the cursor from a previous page; zero starts at the newest message.
// History never moves the read marker.
func (s *MessageService) History(ctx context.Context, token string, lastKnown, limit int) (*model.ListMessagesResponse, error) {
	conv, err := s.rooms.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = talk.DefaultReceiveLimit
	}

	page, err := conv.Chat().ReceivePage(ctx, talk.ReceiveOptions{
		LastKnownMessageID: lastKnown,
		Limit:              limit,
		KeepUnread:         true,
	})
	if err != nil {
		return nil, err
	}

	return &model.ListMessagesResponse{
		Messages:  toModel(token, page.Messages),
		LastGiven: page.LastGiven,
		HasMore:   len(page.Messages) >= min(limit, talk.MaxReceiveLimit),
	}, nil
}

// Poll waits up to timeout for messages newer than lastKnown. It returns the
// messages and the cursor for the next poll, which is lastKnown when
// nothing arrived.
func (s *MessageService) Poll(ctx context.Context, token string, lastKnown int, timeout time.Duration) ([]model.Message, int, error) {
	conv, err := s.rooms.Get(ctx, token)
	if err != nil {
		return nil, lastKnown, err
	}

	page, err := conv.Chat().ReceivePage(ctx, talk.ReceiveOptions{
		LookIntoFuture:     true,
		LastKnownMessageID: lastKnown,
		Timeout:            timeout,
		KeepUnread:         true,
	})
	if err != nil {
		return nil, lastKnown, err
	}

	next := lastKnown
	if page.LastGiven > 0 {
		next = page.LastGiven
	}
	return toModel(token, page.Messages), next, nil
}

// Latest returns the id of the newest message in a room, or zero for an
// empty room.
func (s *MessageService) Latest(ctx context.Context, token string) (int, error) {
	conv, err := s.rooms.Get(ctx, token)
	if err != nil {
		return 0, err
	}

	page, err := conv.Chat().ReceivePage(ctx, talk.ReceiveOptions{Limit: 1, KeepUnread: true})
	if err != nil {
		return 0, err
	}
	if page.LastGiven > 0 {
		return page.LastGiven, nil
	}
	if len(page.Messages) > 0 {
		return page.Messages[0].ID, nil
	}
	return 0, nil
}

// Send posts a message.
func (s *MessageService) Send(ctx context.Context, token string, req *model.SendMessageRequest) (*model.Message, error) {
	conv, err := s.rooms.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	msg, err := conv.Send(ctx, req.Content, talk.SendOptions{
		ReplyTo: req.ReplyTo,
		Silent:  req.Silent,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("message sent",
		zap.String("token", token),
		zap.Int("message_id", msg.ID),
	)

	out := model.MessageFromTalk(token, msg)
	return &out, nil
}

// Share posts a rich object. The result is nil when the server answers
// without echoing the message.
func (s *MessageService) Share(ctx context.Context, token string, req *model.ShareRequest) (*model.Message, error) {
	obj, err := ShareObject(req)
	if err != nil {
		return nil, err
	}

	conv, err := s.rooms.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	msg, err := conv.ShareRichObject(ctx, obj, talk.SendOptions{})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("rich object shared",
		zap.String("token", token),
		zap.String("object_type", obj.Type()),
	)

	if msg == nil {
		return nil, nil
	}
	out := model.MessageFromTalk(token, msg)
	return &out, nil
}

// ClearHistory removes every message of a room.
func (s *MessageService) ClearHistory(ctx context.Context, token string) error {
	conv, err := s.rooms.Get(ctx, token)
	if err != nil {
		return err
	}
	return conv.ClearHistory(ctx)
}

// ShareObject builds the rich object described by a share request.
func ShareObject(req *model.ShareRequest) (richobject.Object, error) {
	switch strings.TrimSpace(req.Type) {
	case richobject.TypeGeoLocation:
		if req.Latitude == "" || req.Longitude == "" {
			return nil, fmt.Errorf("%w: geo-location needs latitude and longitude", talk.ErrInvalidArgument)
		}
		return richobject.NewGeoLocation(req.Name, req.Latitude, req.Longitude), nil
	case richobject.TypeCall:
		if req.ID == "" {
			return nil, fmt.Errorf("%w: call needs an id", talk.ErrInvalidArgument)
		}
		return richobject.Call{
			Base:     richobject.Base{ID: req.ID, Name: req.Name},
			CallType: req.CallType,
		}, nil
	}

	if req.ID == "" {
		return nil, fmt.Errorf("%w: rich object needs an id", talk.ErrInvalidArgument)
	}
	obj, err := richobject.New(req.Type, req.ID, req.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", talk.ErrInvalidArgument, err)
	}
	return obj, nil
}

func toModel(token string, msgs []*talk.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, model.MessageFromTalk(token, m))
	}
	return out
}
