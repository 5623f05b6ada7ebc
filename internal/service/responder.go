package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/talkbridge/internal/llm"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/metrics"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

const defaultSystemPrompt = "You are %s, a helpful participant in a Nextcloud Talk room. " +
	"Reply briefly in plain text. Each user line starts with the sender's name."

// ResponderConfig tunes a Responder.
type ResponderConfig struct {
	// BotID is the Talk user id the bridge logs in as.
	BotID string
	// BotName is used in the system prompt. Defaults to BotID.
	BotName string
	// HistoryDepth is how many recent messages go into the prompt.
	HistoryDepth int
	Model        string
}

// Responder answers comments that mention the bot with an LLM completion
// posted as a reply.
type Responder struct {
	llm    llm.Client
	cfg    ResponderConfig
	logger *logger.Logger
}

// NewResponder creates a responder.
func NewResponder(client llm.Client, cfg ResponderConfig, log *logger.Logger) *Responder {
	if cfg.BotName == "" {
		cfg.BotName = cfg.BotID
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 20
	}
	return &Responder{
		llm:    client,
		cfg:    cfg,
		logger: log.Named("responder"),
	}
}

// ShouldReply reports whether m is a comment from someone else that
// mentions the bot.
func (r *Responder) ShouldReply(m *talk.Message) bool {
	if m.MessageType != talk.MessageComment || m.Deleted() {
		return false
	}
	if m.ActorType == talk.ActorUsers && m.ActorID == r.cfg.BotID {
		return false
	}
	return m.Mentions(r.cfg.BotID)
}

// Handle replies to m when it mentions the bot.
func (r *Responder) Handle(ctx context.Context, conv *talk.Conversation, m *talk.Message) error {
	if !r.ShouldReply(m) {
		return nil
	}

	history, err := conv.Chat().ReceivePage(ctx, talk.ReceiveOptions{
		Limit:              r.cfg.HistoryDepth,
		LastKnownMessageID: m.ID,
		IncludeLastKnown:   true,
		KeepUnread:         true,
	})
	if err != nil {
		metrics.AutoRepliesTotal.WithLabelValues(r.llm.Name(), "error").Inc()
		return fmt.Errorf("load history: %w", err)
	}

	resp, err := r.llm.Complete(ctx, &llm.CompletionRequest{
		Model:    r.cfg.Model,
		System:   fmt.Sprintf(defaultSystemPrompt, r.cfg.BotName),
		Messages: r.Prompt(history.Messages),
	})
	if err != nil {
		metrics.AutoRepliesTotal.WithLabelValues(r.llm.Name(), "error").Inc()
		return fmt.Errorf("completion: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		metrics.AutoRepliesTotal.WithLabelValues(r.llm.Name(), "empty").Inc()
		return nil
	}

	opts := talk.SendOptions{}
	if m.IsReplyable {
		opts.ReplyTo = m.ID
	}
	if _, err := conv.Send(ctx, text, opts); err != nil {
		metrics.AutoRepliesTotal.WithLabelValues(r.llm.Name(), "error").Inc()
		return fmt.Errorf("post reply: %w", err)
	}

	metrics.AutoRepliesTotal.WithLabelValues(r.llm.Name(), "ok").Inc()
	r.logger.Info("auto-reply posted",
		zap.String("token", conv.Token),
		zap.Int("reply_to", m.ID),
		zap.String("model", resp.Model),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return nil
}

// Prompt turns chat history into completion turns, oldest first. The server
// returns history newest first. Only comments are kept.
func (r *Responder) Prompt(history []*talk.Message) []llm.ChatMessage {
	var turns []llm.ChatMessage
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.MessageType != talk.MessageComment || m.Deleted() {
			continue
		}
		if m.ActorType == talk.ActorUsers && m.ActorID == r.cfg.BotID {
			turns = append(turns, llm.ChatMessage{Role: llm.RoleAssistant, Content: m.Message})
			continue
		}
		name := m.ActorDisplayName
		if name == "" {
			name = m.ActorID
		}
		turns = append(turns, llm.ChatMessage{Role: llm.RoleUser, Content: name + ": " + m.Message})
	}
	return llm.MergeTurns(turns)
}
