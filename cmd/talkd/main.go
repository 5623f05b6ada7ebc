// Package main is the entry point for the Talk bridge daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/talkbridge/internal/config"
	"github.com/capitalize-ai/talkbridge/internal/handler"
	"github.com/capitalize-ai/talkbridge/internal/llm"
	natsclient "github.com/capitalize-ai/talkbridge/internal/nats"
	"github.com/capitalize-ai/talkbridge/internal/service"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
	"github.com/capitalize-ai/talkbridge/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting talk bridge", zap.String("talk_url", cfg.TalkURL))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "talkbridge", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	client, err := talk.New(talk.Config{
		BaseURL: cfg.TalkURL,
		Session: talk.NewHTTPSession(talk.HTTPSessionConfig{
			Username: cfg.TalkUser,
			Password: cfg.TalkPassword,
			Timeout:  cfg.TalkTimeout,
		}),
		Logger: log,
	})
	if err != nil {
		log.Fatal("failed to create talk client", zap.Error(err))
	}

	rooms := service.NewRoomService(client, cfg.RoomCacheSize, cfg.RoomCacheTTL, log)
	messages := service.NewMessageService(rooms, log)

	routerCfg := handler.RouterConfig{
		Rooms:             rooms,
		Messages:          messages,
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Stream: handler.StreamConfig{
			PollTimeout: cfg.PollTimeout,
			RetryAfter:  cfg.PollBackoff,
		},
		Logger: log,
	}

	var publisher service.Publisher
	if cfg.RelayEnabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		relay := natsclient.NewRelay(natsClient)
		if err := relay.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		publisher = relay
		routerCfg.Replayer = relay
		routerCfg.Relay = natsClient
	}

	responder := newResponder(cfg, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	var wg sync.WaitGroup
	if len(cfg.WatchRooms) > 0 {
		watcher := service.NewWatcher(rooms, publisher, responder, service.WatcherConfig{
			PollTimeout: cfg.PollTimeout,
			Backoff:     cfg.PollBackoff,
		}, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(ctx, cfg.WatchRooms)
		}()
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	wg.Wait()

	log.Info("server stopped")
}

func newLogger(level string) (*logger.Logger, error) {
	if os.Getenv("ENV") == "development" {
		return logger.NewDevelopment(level)
	}
	return logger.New(level)
}

// newResponder builds the auto-responder when an LLM key is configured.
// DEFAULT_LLM picks the provider when both keys are set.
func newResponder(cfg *config.Config, log *logger.Logger) *service.Responder {
	keys := map[llm.Provider]string{
		llm.ProviderAnthropic: cfg.AnthropicAPIKey,
		llm.ProviderOpenAI:    cfg.OpenAIAPIKey,
	}

	provider := llm.Provider(cfg.DefaultLLM)
	if keys[provider] == "" {
		provider = ""
		for _, p := range []llm.Provider{llm.ProviderAnthropic, llm.ProviderOpenAI} {
			if keys[p] != "" {
				provider = p
				break
			}
		}
	}
	if provider == "" {
		log.Info("no LLM key configured, auto-replies disabled")
		return nil
	}

	client, err := llm.NewClient(provider, keys[provider])
	if err != nil {
		log.Warn("failed to create LLM client, auto-replies disabled", zap.Error(err))
		return nil
	}

	log.Info("auto-replies enabled", zap.String("provider", client.Name()))
	return service.NewResponder(client, service.ResponderConfig{
		BotID:        cfg.TalkUser,
		BotName:      cfg.BotName,
		HistoryDepth: cfg.HistoryDepth,
	}, log)
}
